// Package metacache is the in-memory catalog of derived per-package records:
// one map over catalog.Package keyed by (lower-cased id, normalized
// version), which id-only lookups scan case-insensitively; there is no
// separate by-id index. It is backed by a single JSON file with a schema
// version gate.
//
// Grounded on the teacher's pkg/index (Index/ParseIndex/ToJSON/AddPackage/
// RemovePackage/FindPackages — a flat-slice catalog keyed by name) and its
// atomic-persistence discipline on pkg/artifact/database.InstalledManagerImpl
// (temp file + rename; no fsync is issued), adapted here onto the
// vfs.FileSystem abstraction since this cache must be swappable onto an
// in-memory double for tests, and generalized from a flat slice to a map
// keyed by the (id, version) identity.
package metacache

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/glorpus-work/pkgfeed/pkg/catalog"
	pkgerrors "github.com/glorpus-work/pkgfeed/pkg/errors"
	"github.com/glorpus-work/pkgfeed/pkg/semver"
	"github.com/glorpus-work/pkgfeed/pkg/vfs"
)

// SchemaVersion is the only persistence format version this cache accepts.
const SchemaVersion = "3.0.0"

type file struct {
	SchemaVersion string            `json:"SchemaVersion"`
	Packages      []*catalog.Package `json:"Packages"`
}

// Cache is the in-memory catalog, held in a single map. All exported methods are safe
// for concurrent use; mutation methods additionally mark the cache dirty so
// PersistIfDirty can skip work when nothing changed.
type Cache struct {
	mu       sync.RWMutex
	fs       vfs.FileSystem
	fileName string

	byKey map[string]*catalog.Package // "lower(id)\x00normalizedVersion" -> record
	dirty bool
}

func key(id, normalizedVersion string) string {
	return strings.ToLower(id) + "\x00" + normalizedVersion
}

// FileName returns the relative path this cache persists to.
func (c *Cache) FileName() string {
	return c.fileName
}

// New returns an empty Cache persisting to fileName on fs.
func New(fs vfs.FileSystem, fileName string) *Cache {
	return &Cache{fs: fs, fileName: fileName, byKey: make(map[string]*catalog.Package)}
}

// Load reads the cache file. Any deserialization error or schema mismatch
// deletes the file and leaves the cache empty, per the spec's self-healing
// contract for cache corruption.
func (c *Cache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	exists, err := c.fs.Exists(c.fileName)
	if err != nil {
		return pkgerrors.WithKind(pkgerrors.KindInternal, "metacache: check cache file", err)
	}
	if !exists {
		c.byKey = make(map[string]*catalog.Package)
		return nil
	}

	r, err := c.fs.Open(c.fileName)
	if err != nil {
		return pkgerrors.WithKind(pkgerrors.KindInternal, "metacache: open cache file", err)
	}
	defer func() { _ = r.Close() }()

	var f file
	decodeErr := json.NewDecoder(r).Decode(&f)
	if decodeErr != nil || f.SchemaVersion != SchemaVersion {
		_ = c.fs.Remove(c.fileName)
		c.byKey = make(map[string]*catalog.Package)
		c.dirty = false
		return nil
	}

	byKey := make(map[string]*catalog.Package, len(f.Packages))
	for _, p := range f.Packages {
		if p.ID == "" || p.NormalizedVersion == "" {
			_ = c.fs.Remove(c.fileName)
			c.byKey = make(map[string]*catalog.Package)
			c.dirty = false
			return nil
		}
		byKey[key(p.ID, p.NormalizedVersion)] = p
	}
	c.byKey = byKey
	c.dirty = false
	return nil
}

// Add upserts pkg. If enableDelisting is false and pkg.Listed is false, the
// entry is dropped instead of stored (delisted packages are invisible
// entirely when the feed has no delisting concept enabled).
func (c *Cache) Add(pkg *catalog.Package, enableDelisting bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !enableDelisting && !pkg.Listed {
		delete(c.byKey, key(pkg.ID, pkg.NormalizedVersion))
		c.dirty = true
		return
	}
	c.byKey[key(pkg.ID, pkg.NormalizedVersion)] = pkg.Clone()
	c.dirty = true
}

// Remove deletes or delists (id, version). When enableDelisting is true, the
// entry's Listed flag is cleared rather than the entry being removed.
func (c *Cache) Remove(id, normalizedVersion string, enableDelisting bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key(id, normalizedVersion)
	if enableDelisting {
		if p, ok := c.byKey[k]; ok {
			p.Listed = false
			p.LastUpdatedUTC = time.Now().UTC()
			c.dirty = true
		}
		return
	}
	if _, ok := c.byKey[k]; ok {
		delete(c.byKey, k)
		c.dirty = true
	}
}

// Exists reports whether (id, version) is present, comparing id
// case-insensitively and version under semantic (build-metadata-agnostic)
// equality.
func (c *Cache) Exists(id, version string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, err := semver.Parse(version)
	if err != nil {
		return false
	}
	for _, p := range c.byKey {
		if !strings.EqualFold(p.ID, id) {
			continue
		}
		pv, err := semver.Parse(p.Version)
		if err != nil {
			continue
		}
		if pv.Equal(v) {
			return true
		}
	}
	return false
}

// Find returns the record for (id, version), comparing the way Exists does.
func (c *Cache) Find(id, version string) *catalog.Package {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, err := semver.Parse(version)
	if err != nil {
		return nil
	}
	for _, p := range c.byKey {
		if !strings.EqualFold(p.ID, id) {
			continue
		}
		pv, err := semver.Parse(p.Version)
		if err != nil {
			continue
		}
		if pv.Equal(v) {
			return p.Clone()
		}
	}
	return nil
}

// ByID returns every record for id (case-insensitive), in no particular
// order; callers needing sorted output sort the result themselves.
func (c *Cache) ByID(id string) []*catalog.Package {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []*catalog.Package
	for _, p := range c.byKey {
		if strings.EqualFold(p.ID, id) {
			out = append(out, p.Clone())
		}
	}
	return out
}

// GetAll returns a stable snapshot of every record: a copy, not a live view,
// so callers can iterate it while the cache continues to mutate.
func (c *Cache) GetAll() []*catalog.Package {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*catalog.Package, 0, len(c.byKey))
	for _, p := range c.byKey {
		out = append(out, p.Clone())
	}
	return out
}

// Clear empties the cache and marks it dirty.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byKey = make(map[string]*catalog.Package)
	c.dirty = true
}

// PersistIfDirty calls Persist only if the cache has mutated since the last
// successful Persist/Load.
func (c *Cache) PersistIfDirty() error {
	c.mu.RLock()
	dirty := c.dirty
	c.mu.RUnlock()
	if !dirty {
		return nil
	}
	return c.Persist()
}

// Persist writes the cache to fileName via a temp-file-then-rename, mirroring
// the teacher's InstalledManagerImpl.SaveDatabase atomic write discipline.
func (c *Cache) Persist() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	packages := make([]*catalog.Package, 0, len(c.byKey))
	for _, p := range c.byKey {
		packages = append(packages, p)
	}
	data, err := json.MarshalIndent(file{SchemaVersion: SchemaVersion, Packages: packages}, "", "  ")
	if err != nil {
		return pkgerrors.WithKind(pkgerrors.KindInternal, "metacache: marshal cache", err)
	}

	tempName := c.fileName + ".tmp-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	w, err := c.fs.Create(tempName)
	if err != nil {
		return pkgerrors.WithKind(pkgerrors.KindTransient, "metacache: create temp cache file", err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		_ = c.fs.Remove(tempName)
		return pkgerrors.WithKind(pkgerrors.KindTransient, "metacache: write temp cache file", err)
	}
	if err := w.Close(); err != nil {
		_ = c.fs.Remove(tempName)
		return pkgerrors.WithKind(pkgerrors.KindTransient, "metacache: close temp cache file", err)
	}
	if err := c.fs.Rename(tempName, c.fileName); err != nil {
		_ = c.fs.Remove(tempName)
		return pkgerrors.WithKind(pkgerrors.KindTransient, "metacache: rename cache file into place", err)
	}

	c.dirty = false
	return nil
}

// ValidateFileName enforces the configuration constraint that cacheFileName
// be a bare filename with the cache suffix appended if missing.
func ValidateFileName(name string) (string, error) {
	if name == "" {
		return "", pkgerrors.New(pkgerrors.KindInvalidConfiguration, "metacache: cache file name cannot be empty")
	}
	if strings.ContainsAny(name, "/\\") {
		return "", pkgerrors.Newf(pkgerrors.KindInvalidConfiguration, "metacache: cache file name %q must be a bare filename", name)
	}
	const suffix = ".cache.bin"
	if !strings.HasSuffix(name, suffix) {
		name += suffix
	}
	return name, nil
}
