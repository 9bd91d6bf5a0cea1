// Package feed is the repository engine: the façade that coordinates the
// on-disk layout, the metadata cache, the optional hook runner and
// filesystem watcher, and the background rebuild/persistence timers behind
// the single-writer-lock discipline described for this feed server.
//
// Grounded on the teacher's orchestration style in pkg/orchestrator and
// pkg/installer (one façade coordinating several lower-level managers) and
// on pkg/repository.repositoryManagerImpl's locking idiom, generalized from
// a single sync.RWMutex to a writer lock plus a watcher-suppression flag
// since reads here take a cache snapshot rather than holding any lock.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glorpus-work/pkgfeed/pkg/catalog"
	"github.com/glorpus-work/pkgfeed/pkg/config"
	pkgerrors "github.com/glorpus-work/pkgfeed/pkg/errors"
	"github.com/glorpus-work/pkgfeed/pkg/feed/query"
	"github.com/glorpus-work/pkgfeed/pkg/feedhooks"
	"github.com/glorpus-work/pkgfeed/pkg/feedlayout"
	"github.com/glorpus-work/pkgfeed/pkg/manifest"
	"github.com/glorpus-work/pkgfeed/pkg/metacache"
	"github.com/glorpus-work/pkgfeed/pkg/semver"
	"github.com/glorpus-work/pkgfeed/pkg/vfs"
)

// Engine is the repository engine. The zero value is not usable; construct
// with New.
type Engine struct {
	cfg *config.Config
	fs  vfs.FileSystem
	log *slog.Logger

	layout *feedlayout.Layout
	cache  *metacache.Cache
	hooks  feedhooks.Runner

	lock              *writerLock
	watcherSuppressed atomic.Bool
	needsRebuild      atomic.Bool

	watcher *watcher

	timersOnce sync.Once
	stopTimers chan struct{}
	timersWG   sync.WaitGroup
	closed     atomic.Bool
}

// New constructs an Engine rooted at fs per cfg. Construction validates
// cfg.CacheFileName independently of config.Config.Validate so a caller
// that builds a Config by hand (bypassing config.Load) still gets
// InvalidConfiguration rather than a panic or a silently wrong cache path.
func New(cfg *config.Config, fs vfs.FileSystem, log *slog.Logger) (*Engine, error) {
	if log == nil {
		log = slog.Default()
	}

	cacheFileName, err := metacache.ValidateFileName(cfg.CacheFileName)
	if err != nil {
		return nil, err
	}

	hooks, err := feedhooks.NewRunner(fs, cfg.HooksEnabled)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:        cfg,
		fs:         fs,
		log:        log,
		layout:     feedlayout.New(fs),
		cache:      metacache.New(fs, cacheFileName),
		hooks:      hooks,
		lock:       newWriterLock(),
		stopTimers: make(chan struct{}),
	}
	e.needsRebuild.Store(true)

	if err := e.cache.Load(); err != nil {
		return nil, err
	}

	if cfg.EnableFileSystemMonitoring {
		w, err := newWatcher(fs, log, e.onWatchEvent)
		if err != nil {
			return nil, pkgerrors.WithKind(pkgerrors.KindInternal, "feed: start filesystem watcher", err)
		}
		e.watcher = w
	}

	e.startTimers()
	return e, nil
}

// Close stops the engine's background timers and watcher. Safe to call
// once; subsequent calls are no-ops.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(e.stopTimers)
	e.timersWG.Wait()
	if e.watcher != nil {
		e.watcher.Close()
	}
	return nil
}

// Source returns the feed root, for the HTTP surface's informational
// endpoints.
func (e *Engine) Source() string {
	return e.cfg.Root
}

// CacheInfo reports where the metadata cache lives and how big it is,
// for the CLI's "cache info" command.
type CacheInfo struct {
	Root          string
	CacheFileName string
	CacheFileSize int64
	PackageCount  int
}

// CacheInfo returns the current cache stats without forcing a rebuild: a
// stale-but-present cache is still informative, and "cache info" has no
// side effect of its own.
func (e *Engine) CacheInfo() (CacheInfo, error) {
	info := CacheInfo{
		Root:          e.cfg.Root,
		CacheFileName: e.cache.FileName(),
		PackageCount:  len(e.cache.GetAll()),
	}
	if stat, err := e.fs.Stat(info.CacheFileName); err == nil {
		info.CacheFileSize = stat.Size
	}
	return info, nil
}

func (e *Engine) ensureRebuilt(ctx context.Context) error {
	if !e.needsRebuild.Load() {
		return nil
	}
	return e.Rebuild(ctx)
}

// GetPackages returns every record in the cache, filtered by compatibility.
func (e *Engine) GetPackages(ctx context.Context, compatibility catalog.CompatibilityProfile) ([]*catalog.Package, error) {
	if err := e.ensureRebuilt(ctx); err != nil {
		return nil, err
	}
	return query.ByCompatibility(e.cache.GetAll(), compatibility), nil
}

// FindPackage returns the first record matching id and version, or nil.
func (e *Engine) FindPackage(ctx context.Context, id, version string) (*catalog.Package, error) {
	if err := e.ensureRebuilt(ctx); err != nil {
		return nil, err
	}
	return query.FindVersion(e.cache.GetAll(), id, version), nil
}

// FindPackagesById returns every version of id under compatibility.
func (e *Engine) FindPackagesById(ctx context.Context, id string, compatibility catalog.CompatibilityProfile) ([]*catalog.Package, error) {
	if err := e.ensureRebuilt(ctx); err != nil {
		return nil, err
	}
	packages := query.ByCompatibility(e.cache.GetAll(), compatibility)
	return query.ByID(packages, id), nil
}

// Exists reports whether (id, version) is present, per the metadata cache's
// case-insensitive, build-metadata-agnostic identity rule.
func (e *Engine) Exists(ctx context.Context, id, version string) (bool, error) {
	if err := e.ensureRebuilt(ctx); err != nil {
		return false, err
	}
	return e.cache.Exists(id, version), nil
}

// Search applies the five-step filter sequence of §4.E.
func (e *Engine) Search(ctx context.Context, term string, targetFrameworks []string, allowPrerelease, allowUnlisted bool, compatibility catalog.CompatibilityProfile) ([]*catalog.Package, error) {
	if err := e.ensureRebuilt(ctx); err != nil {
		return nil, err
	}
	return query.Search(e.cache.GetAll(), query.SearchParams{
		Term:                      term,
		TargetFrameworks:          targetFrameworks,
		AllowPrerelease:           allowPrerelease,
		AllowUnlisted:             allowUnlisted,
		Compatibility:             compatibility,
		EnableDelisting:           e.cfg.EnableDelisting,
		FrameworkFilteringEnabled: e.cfg.EnableFrameworkFiltering,
	}), nil
}

// GetUpdates returns, per query, the applicable newer versions.
func (e *Engine) GetUpdates(ctx context.Context, queries []query.UpdateQuery, includePrerelease, includeAllVersions bool, targetFrameworks []string, compatibility catalog.CompatibilityProfile) (map[string][]*catalog.Package, error) {
	if err := e.ensureRebuilt(ctx); err != nil {
		return nil, err
	}
	return query.Updates(e.cache.GetAll(), queries, query.UpdatesParams{
		IncludePrerelease:         includePrerelease,
		IncludeAllVersions:        includeAllVersions,
		TargetFrameworks:          targetFrameworks,
		Compatibility:             compatibility,
		FrameworkFilteringEnabled: e.cfg.EnableFrameworkFiltering,
	}), nil
}

// deriveFromManifest builds a catalog.Package from a parsed manifest plus
// the physical attributes the caller already knows (size, hash, listed
// state, timestamps).
func deriveFromManifest(m *manifest.Manifest, hashAlgo, hashBase64, fullPath string, size int64, listed bool, createdUTC, updatedUTC time.Time) (*catalog.Package, error) {
	v, err := semver.Parse(m.Version)
	if err != nil {
		return nil, fmt.Errorf("feed: package %s has invalid version %q: %w", m.ID, m.Version, err)
	}
	return &catalog.Package{
		ID:                        m.ID,
		Version:                   m.Version,
		NormalizedVersion:         v.Normalized(),
		IsSemVer2:                 v.IsSemVer2() || dependenciesReferenceSemVer2(m.DependencySets),
		FullPath:                  fullPath,
		PackageSize:               size,
		PackageHash:               hashBase64,
		HashAlgorithm:             hashAlgo,
		Listed:                    listed,
		CreatedUTC:                createdUTC,
		LastUpdatedUTC:            updatedUTC,
		SupportedTargetFrameworks: m.SupportedTargetFrameworks,
		DependencySets:            m.DependencySets,
		MinClientVersion:          m.MinClientVersion,
		Authors:                   m.Authors,
		Description:               m.Description,
		Title:                     m.Title,
		Tags:                      m.Tags,
		ProjectURL:                m.ProjectURL,
		LicenseURL:                m.LicenseURL,
		IconURL:                   m.IconURL,
		RequireLicenseAcceptance:  m.RequireLicenseAcceptance,
		DevelopmentDependency:     m.DevelopmentDependency,
		ReleaseNotes:              m.ReleaseNotes,
		Copyright:                 m.Copyright,
		Summary:                   m.Summary,
		IsSymbols:                 m.IsSymbols,
	}, nil
}

// dependenciesReferenceSemVer2 reports whether any dependency group names a
// version range that itself bounds on a SemVer2 version. A package whose own
// version is SemVer1 can still require SemVer2-only feed behavior this way.
func dependenciesReferenceSemVer2(sets []catalog.DependencySet) bool {
	for _, set := range sets {
		for _, dep := range set.Dependencies {
			if semver.ReferencesSemVer2(dep.VersionRange) {
				return true
			}
		}
	}
	return false
}

func idKey(id string) string { return strings.ToLower(id) }
