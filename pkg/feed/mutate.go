package feed

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/glorpus-work/pkgfeed/pkg/catalog"
	pkgerrors "github.com/glorpus-work/pkgfeed/pkg/errors"
	"github.com/glorpus-work/pkgfeed/pkg/feedhooks"
	"github.com/glorpus-work/pkgfeed/pkg/feedlayout"
	"github.com/glorpus-work/pkgfeed/pkg/manifest"
	"github.com/glorpus-work/pkgfeed/pkg/semver"
)

const incomingPrefix = ".pkgfeed/incoming-"

// AddPackage ingests content (a full archive stream) into the feed:
// manifest parse, symbols/existing-package policy checks, atomic layout
// write, cache insert, latest-flag recompute. Pre-push/post-push hooks run
// around the mutation per §4.G: the pre-hook runs inside the writer lock
// (a rejection aborts before anything is written), the post-hook after the
// lock is released (its error is logged only).
func (e *Engine) AddPackage(ctx context.Context, content io.Reader) (*catalog.Package, error) {
	var record *catalog.Package
	var postHookCtx feedhooks.Context
	runPostHook := false

	err := func() error {
		if err := e.lock.Lock(ctx); err != nil {
			return err
		}
		e.watcherSuppressed.Store(true)
		defer func() {
			e.watcherSuppressed.Store(false)
			e.lock.Unlock()
		}()

		tempPath := incomingPrefix + strconv.FormatInt(time.Now().UnixNano(), 10) + feedlayout.Extension
		w, err := e.fs.Create(tempPath)
		if err != nil {
			return pkgerrors.WithKind(pkgerrors.KindTransient, "feed: create incoming upload", err)
		}
		if _, err := io.Copy(w, content); err != nil {
			_ = w.Close()
			_ = e.fs.Remove(tempPath)
			return pkgerrors.WithKind(pkgerrors.KindTransient, "feed: write incoming upload", err)
		}
		if err := w.Close(); err != nil {
			_ = e.fs.Remove(tempPath)
			return pkgerrors.WithKind(pkgerrors.KindTransient, "feed: close incoming upload", err)
		}
		defer func() { _ = e.fs.Remove(tempPath) }()

		abs, err := e.fs.AbsPath(tempPath)
		if err != nil {
			return err
		}
		m, digest, err := manifest.Read(ctx, abs, manifest.HashAlgorithm(e.cfg.HashAlgorithm))
		if err != nil {
			return pkgerrors.WithKind(pkgerrors.KindInvalidArgument, "feed: read uploaded archive manifest", err)
		}

		if e.cfg.IgnoreSymbolsPackages && m.IsSymbols {
			return pkgerrors.Newf(pkgerrors.KindSymbolsRejected, "package %s %s is a symbols package", m.ID, m.Version)
		}

		v, err := semver.Parse(m.Version)
		if err != nil {
			return pkgerrors.WithKind(pkgerrors.KindInvalidArgument, "feed: invalid package version", err)
		}
		normalizedVersion := v.Normalized()

		exists, err := e.layout.Exists(m.ID, normalizedVersion)
		if err != nil {
			return pkgerrors.WithKind(pkgerrors.KindInternal, "feed: check existing package", err)
		}
		if exists && !e.cfg.AllowOverrideExistingPackageOnPush {
			return pkgerrors.Newf(pkgerrors.KindAlreadyExists, "package %s %s already exists", m.ID, m.Version)
		}

		archivePath := feedlayout.ArchivePath(m.ID, normalizedVersion)

		preHookCtx := feedhooks.Context{PackageID: m.ID, PackageVersion: m.Version, PackagePath: archivePath}
		if err := e.hooks.Run(feedhooks.PrePush, preHookCtx); err != nil {
			return pkgerrors.WithKind(pkgerrors.KindInvalidArgument, "feed: pre-push hook rejected package", err)
		}

		info, err := e.fs.Stat(tempPath)
		if err != nil {
			return err
		}
		uploaded, err := e.fs.Open(tempPath)
		if err != nil {
			return err
		}
		err = e.layout.Add(ctx, m.ID, normalizedVersion, uploaded, m.RawXML, digest, e.cfg.AllowOverrideExistingPackageOnPush)
		_ = uploaded.Close()
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		record, err = deriveFromManifest(m, e.cfg.HashAlgorithm, digest, archivePath, info.Size, true, now, now)
		if err != nil {
			return err
		}
		e.cache.Add(record, e.cfg.EnableDelisting)
		e.recomputeLatestFlagsForIDLocked(m.ID)
		record = e.cache.Find(m.ID, m.Version)

		postHookCtx = feedhooks.Context{PackageID: m.ID, PackageVersion: m.Version, PackagePath: archivePath}
		runPostHook = true
		return nil
	}()
	if err != nil {
		return nil, err
	}

	if runPostHook {
		if err := e.hooks.Run(feedhooks.PostPush, postHookCtx); err != nil {
			e.log.Warn("feed: post-push hook failed", "package", postHookCtx.PackageID, "version", postHookCtx.PackageVersion, "error", err)
		}
	}
	return record, nil
}

// RemovePackage removes (id, version) from the layout and cache. Removing
// an absent package is a no-op, matching §7's NotFound contract ("find/
// remove of an absent package is a no-op").
func (e *Engine) RemovePackage(ctx context.Context, id, version string) error {
	var postHookCtx feedhooks.Context
	runPostHook := false

	err := func() error {
		if err := e.lock.Lock(ctx); err != nil {
			return err
		}
		e.watcherSuppressed.Store(true)
		defer func() {
			e.watcherSuppressed.Store(false)
			e.lock.Unlock()
		}()

		rec := e.cache.Find(id, version)
		if rec == nil {
			return nil
		}

		preHookCtx := feedhooks.Context{PackageID: rec.ID, PackageVersion: rec.Version, PackagePath: rec.FullPath}
		if err := e.hooks.Run(feedhooks.PreDelete, preHookCtx); err != nil {
			return pkgerrors.WithKind(pkgerrors.KindInvalidArgument, "feed: pre-delete hook rejected removal", err)
		}

		if err := e.layout.Remove(rec.ID, rec.NormalizedVersion, e.cfg.EnableDelisting); err != nil {
			return err
		}
		e.cache.Remove(rec.ID, rec.NormalizedVersion, e.cfg.EnableDelisting)
		e.recomputeLatestFlagsForIDLocked(rec.ID)

		postHookCtx = feedhooks.Context{PackageID: rec.ID, PackageVersion: rec.Version, PackagePath: rec.FullPath}
		runPostHook = true
		return nil
	}()
	if err != nil {
		return err
	}

	if runPostHook {
		if err := e.hooks.Run(feedhooks.PostDelete, postHookCtx); err != nil {
			e.log.Warn("feed: post-delete hook failed", "package", postHookCtx.PackageID, "version", postHookCtx.PackageVersion, "error", err)
		}
	}
	return nil
}

// ClearCache empties the cache, persists the empty state, and marks the
// engine as needing a rebuild before the next query.
func (e *Engine) ClearCache(ctx context.Context) error {
	if err := e.lock.Lock(ctx); err != nil {
		return err
	}
	e.watcherSuppressed.Store(true)
	defer func() {
		e.watcherSuppressed.Store(false)
		e.lock.Unlock()
	}()

	e.cache.Clear()
	if err := e.cache.Persist(); err != nil {
		return pkgerrors.WithKind(pkgerrors.KindInternal, "feed: persist cleared cache", err)
	}
	e.needsRebuild.Store(true)
	return nil
}

// AddPackagesFromDropFolder scans root for loose archive files and ingests
// each, outside of a full Rebuild.
func (e *Engine) AddPackagesFromDropFolder(ctx context.Context) error {
	if err := e.lock.Lock(ctx); err != nil {
		return err
	}
	e.watcherSuppressed.Store(true)
	defer func() {
		e.watcherSuppressed.Store(false)
		e.lock.Unlock()
	}()

	e.ingestDropFolderLocked(ctx)
	e.recomputeLatestFlagsAllLocked()
	if err := e.cache.PersistIfDirty(); err != nil {
		return pkgerrors.WithKind(pkgerrors.KindInternal, "feed: persist cache after drop-folder ingest", err)
	}
	return nil
}
