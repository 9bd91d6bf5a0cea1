package feed

import (
	"context"
	"io"
	"sort"
	"strings"

	"github.com/glorpus-work/pkgfeed/pkg/catalog"
	pkgerrors "github.com/glorpus-work/pkgfeed/pkg/errors"
	"github.com/glorpus-work/pkgfeed/pkg/feedlayout"
	"github.com/glorpus-work/pkgfeed/pkg/manifest"
	"github.com/glorpus-work/pkgfeed/pkg/semver"
)

// Rebuild re-derives the entire cache from the on-disk layout: enumerate
// every archive, parse each one's manifest, replace the cache contents,
// ingest anything sitting loose in the drop folder, recompute latest flags,
// and persist if anything changed. See §4.E.
func (e *Engine) Rebuild(ctx context.Context) error {
	if err := e.lock.Lock(ctx); err != nil {
		return err
	}
	e.watcherSuppressed.Store(true)
	defer func() {
		e.watcherSuppressed.Store(false)
		e.lock.Unlock()
	}()

	entries, err := e.layout.GetAll()
	if err != nil {
		return pkgerrors.WithKind(pkgerrors.KindInternal, "feed: enumerate archives for rebuild", err)
	}

	e.cache.Clear()
	for _, entry := range entries {
		record, err := e.deriveFromEntry(ctx, entry)
		if err != nil {
			e.log.Warn("feed: skip archive during rebuild", "path", entry.Path, "error", err)
			continue
		}
		e.cache.Add(record, e.cfg.EnableDelisting)
	}

	e.ingestDropFolderLocked(ctx)
	e.recomputeLatestFlagsAllLocked()

	if err := e.cache.PersistIfDirty(); err != nil {
		return pkgerrors.WithKind(pkgerrors.KindInternal, "feed: persist cache after rebuild", err)
	}
	e.needsRebuild.Store(false)
	return nil
}

// deriveFromEntry parses entry's archive and builds the ServerPackage
// record: manifest read for id/version/metadata, sidecar hash preferred
// over the freshly computed one, entry.Size/ModTime/Hidden for the physical
// fields.
func (e *Engine) deriveFromEntry(ctx context.Context, entry feedlayout.Entry) (*catalog.Package, error) {
	abs, err := e.fs.AbsPath(entry.Path)
	if err != nil {
		return nil, err
	}

	m, digest, err := manifest.Read(ctx, abs, manifest.HashAlgorithm(e.cfg.HashAlgorithm))
	if err != nil {
		return nil, err
	}

	record, err := deriveFromManifest(m, e.cfg.HashAlgorithm, digest, entry.Path, entry.Size, !entry.Hidden, entry.ModTime, entry.ModTime)
	if err != nil {
		return nil, err
	}

	if sidecar, err := e.readHashSidecar(record.ID, record.NormalizedVersion); err == nil && sidecar != "" {
		record.PackageHash = sidecar
	}
	return record, nil
}

func (e *Engine) readHashSidecar(id, normalizedVersion string) (string, error) {
	if normalizedVersion == "" {
		return "", nil
	}
	r, err := e.fs.Open(feedlayout.HashSidecarPath(id, normalizedVersion))
	if err != nil {
		return "", err
	}
	defer func() { _ = r.Close() }()
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ingestDropFolderLocked scans root for loose archives and ingests each.
// Must be called with the writer lock already held.
func (e *Engine) ingestDropFolderLocked(ctx context.Context) {
	infos, err := e.fs.Glob("*" + feedlayout.Extension)
	if err != nil {
		e.log.Warn("feed: scan drop folder", "error", err)
		return
	}
	for _, info := range infos {
		if info.IsDir || strings.Contains(info.Path, "/") {
			continue
		}
		if err := e.ingestDropFileLocked(ctx, info.Path); err != nil {
			e.log.Warn("feed: skip drop-folder file", "path", info.Path, "error", err)
		}
	}
}

// ingestDropFileLocked ingests one loose archive found directly under root.
// A rejection (symbols policy, existing-without-overwrite) still removes
// the source file, since both conditions are permanent, not transient — a
// left-in-place file would just be rejected again on every future scan.
func (e *Engine) ingestDropFileLocked(ctx context.Context, vfsPath string) error {
	abs, err := e.fs.AbsPath(vfsPath)
	if err != nil {
		return err
	}

	m, digest, err := manifest.Read(ctx, abs, manifest.HashAlgorithm(e.cfg.HashAlgorithm))
	if err != nil {
		return pkgerrors.WithKind(pkgerrors.KindTransient, "feed: read manifest for "+vfsPath, err)
	}

	if e.cfg.IgnoreSymbolsPackages && m.IsSymbols {
		e.log.Info("feed: rejecting symbols package from drop folder", "path", vfsPath)
		return e.fs.Remove(vfsPath)
	}

	v, err := semver.Parse(m.Version)
	if err != nil {
		return pkgerrors.WithKind(pkgerrors.KindTransient, "feed: invalid version in "+vfsPath, err)
	}
	normalizedVersion := v.Normalized()

	exists, err := e.layout.Exists(m.ID, normalizedVersion)
	if err != nil {
		return err
	}
	if exists && !e.cfg.AllowOverrideExistingPackageOnPush {
		e.log.Info("feed: rejecting existing package from drop folder", "path", vfsPath)
		return e.fs.Remove(vfsPath)
	}

	info, err := e.fs.Stat(vfsPath)
	if err != nil {
		return err
	}
	content, err := e.fs.Open(vfsPath)
	if err != nil {
		return err
	}

	err = e.layout.Add(ctx, m.ID, normalizedVersion, content, m.RawXML, digest, e.cfg.AllowOverrideExistingPackageOnPush)
	_ = content.Close()
	if err != nil {
		return err
	}

	if err := e.fs.Remove(vfsPath); err != nil {
		e.log.Warn("feed: remove ingested drop-folder source", "path", vfsPath, "error", err)
	}

	record, err := deriveFromManifest(m, e.cfg.HashAlgorithm, digest, feedlayout.ArchivePath(m.ID, normalizedVersion), info.Size, true, info.ModTime, info.ModTime)
	if err != nil {
		return err
	}
	e.cache.Add(record, e.cfg.EnableDelisting)
	return nil
}

func latestInSet(records []*catalog.Package) *catalog.Package {
	var best *catalog.Package
	var bestV *semver.Version
	for _, r := range records {
		v, err := semver.Parse(r.Version)
		if err != nil {
			continue
		}
		if best == nil || v.GreaterThan(bestV) {
			best, bestV = r, v
		}
	}
	return best
}

func latestNonPrereleaseInSet(records []*catalog.Package) *catalog.Package {
	filtered := make([]*catalog.Package, 0, len(records))
	for _, r := range records {
		if !r.HasPrerelease() {
			filtered = append(filtered, r)
		}
	}
	return latestInSet(filtered)
}

// recomputeLatestFlags implements the §4.E "Latest-flag computation" rules
// for one id's full set of records (mutated in place).
func recomputeLatestFlags(records []*catalog.Package) {
	for _, r := range records {
		r.SemVer1IsLatest, r.SemVer1IsAbsoluteLatest = false, false
		r.SemVer2IsLatest, r.SemVer2IsAbsoluteLatest = false, false
	}

	listed := make([]*catalog.Package, 0, len(records))
	for _, r := range records {
		if r.Listed {
			listed = append(listed, r)
		}
	}

	s1 := make([]*catalog.Package, 0, len(listed))
	for _, r := range listed {
		if !r.IsSemVer2 {
			s1 = append(s1, r)
		}
	}

	if abs := latestInSet(s1); abs != nil {
		abs.SemVer1IsAbsoluteLatest = true
	}
	if lat := latestNonPrereleaseInSet(s1); lat != nil {
		lat.SemVer1IsLatest = true
	}
	if abs := latestInSet(listed); abs != nil {
		abs.SemVer2IsAbsoluteLatest = true
	}
	if lat := latestNonPrereleaseInSet(listed); lat != nil {
		lat.SemVer2IsLatest = true
	}
}

func (e *Engine) recomputeLatestFlagsForIDLocked(id string) {
	records := e.cache.ByID(id)
	recomputeLatestFlags(records)
	for _, r := range records {
		e.cache.Add(r, e.cfg.EnableDelisting)
	}
}

func (e *Engine) recomputeLatestFlagsAllLocked() {
	all := e.cache.GetAll()
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	byID := make(map[string][]*catalog.Package)
	var order []string
	for _, p := range all {
		k := idKey(p.ID)
		if _, ok := byID[k]; !ok {
			order = append(order, k)
		}
		byID[k] = append(byID[k], p)
	}
	for _, k := range order {
		records := byID[k]
		recomputeLatestFlags(records)
		for _, r := range records {
			e.cache.Add(r, e.cfg.EnableDelisting)
		}
	}
}
