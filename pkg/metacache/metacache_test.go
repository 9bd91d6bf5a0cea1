package metacache

import (
	"testing"
	"time"

	"github.com/glorpus-work/pkgfeed/pkg/catalog"
	"github.com/glorpus-work/pkgfeed/pkg/vfs"
)

func newPackage(id, version string, listed bool) *catalog.Package {
	return &catalog.Package{
		ID:                id,
		Version:           version,
		NormalizedVersion: version,
		Listed:            listed,
		CreatedUTC:        time.Now().UTC(),
		LastUpdatedUTC:    time.Now().UTC(),
	}
}

func TestAddAndFindCaseInsensitiveID(t *testing.T) {
	c := New(vfs.NewMem(), "test.cache.bin")
	c.Add(newPackage("Foo.Bar", "1.0.0", true), true)

	if !c.Exists("foo.bar", "1.0.0") {
		t.Fatalf("expected Exists to be case-insensitive on id")
	}
	found := c.Find("FOO.BAR", "1.0.0")
	if found == nil {
		t.Fatalf("expected Find to locate entry regardless of id case")
	}
}

func TestExistsIgnoresBuildMetadata(t *testing.T) {
	c := New(vfs.NewMem(), "test.cache.bin")
	c.Add(newPackage("Foo.Bar", "1.0.0+build1", true), true)

	if !c.Exists("Foo.Bar", "1.0.0+build2") {
		t.Fatalf("expected Exists to ignore build metadata")
	}
}

func TestAddDropsUnlistedWhenDelistingDisabled(t *testing.T) {
	c := New(vfs.NewMem(), "test.cache.bin")
	c.Add(newPackage("Foo.Bar", "1.0.0", false), false)

	if c.Exists("Foo.Bar", "1.0.0") {
		t.Fatalf("expected unlisted package to be dropped when delisting disabled")
	}
}

func TestRemoveWithDelistingFlipsListedFlag(t *testing.T) {
	c := New(vfs.NewMem(), "test.cache.bin")
	c.Add(newPackage("Foo.Bar", "1.0.0", true), true)

	c.Remove("Foo.Bar", "1.0.0", true)

	found := c.Find("Foo.Bar", "1.0.0")
	if found == nil {
		t.Fatalf("expected entry to still exist after delisting remove")
	}
	if found.Listed {
		t.Fatalf("expected Listed = false after delisting remove")
	}
}

func TestRemoveWithoutDelistingDeletesEntry(t *testing.T) {
	c := New(vfs.NewMem(), "test.cache.bin")
	c.Add(newPackage("Foo.Bar", "1.0.0", true), true)

	c.Remove("Foo.Bar", "1.0.0", false)

	if c.Exists("Foo.Bar", "1.0.0") {
		t.Fatalf("expected entry removed entirely")
	}
}

func TestPersistThenLoadRoundTrips(t *testing.T) {
	mem := vfs.NewMem()
	c := New(mem, "test.cache.bin")
	c.Add(newPackage("Foo.Bar", "1.0.0-beta+build5", true), true)
	c.Add(newPackage("Baz.Qux", "2.0.0", true), true)

	if err := c.Persist(); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	reloaded := New(mem, "test.cache.bin")
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	all := reloaded.GetAll()
	if len(all) != 2 {
		t.Fatalf("GetAll after reload returned %d entries, want 2", len(all))
	}

	found := reloaded.Find("Foo.Bar", "1.0.0-beta")
	if found == nil {
		t.Fatalf("expected Foo.Bar 1.0.0-beta to round-trip")
	}
	if found.Version != "1.0.0-beta+build5" {
		t.Errorf("Version = %q, want build metadata preserved as 1.0.0-beta+build5", found.Version)
	}
}

func TestLoadCorruptFileDeletesAndStartsEmpty(t *testing.T) {
	mem := vfs.NewMem()
	mem.WriteFile("test.cache.bin", []byte("not json"))

	c := New(mem, "test.cache.bin")
	if err := c.Load(); err != nil {
		t.Fatalf("Load should not error on corruption, got %v", err)
	}
	if len(c.GetAll()) != 0 {
		t.Fatalf("expected empty cache after corrupt load")
	}
	if ok, _ := mem.Exists("test.cache.bin"); ok {
		t.Fatalf("expected corrupt cache file to be deleted")
	}
}

func TestLoadWrongSchemaVersionDeletesAndStartsEmpty(t *testing.T) {
	mem := vfs.NewMem()
	mem.WriteFile("test.cache.bin", []byte(`{"SchemaVersion":"1.0.0","Packages":[]}`))

	c := New(mem, "test.cache.bin")
	if err := c.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok, _ := mem.Exists("test.cache.bin"); ok {
		t.Fatalf("expected mismatched schema version file to be deleted")
	}
}

func TestPersistIfDirtySkipsWhenClean(t *testing.T) {
	mem := vfs.NewMem()
	c := New(mem, "test.cache.bin")
	if err := c.PersistIfDirty(); err != nil {
		t.Fatalf("PersistIfDirty on empty clean cache: %v", err)
	}
	if ok, _ := mem.Exists("test.cache.bin"); ok {
		t.Fatalf("expected no file written when cache was never dirtied")
	}
}

func TestValidateFileNameAppendsSuffix(t *testing.T) {
	got, err := ValidateFileName("myhost")
	if err != nil {
		t.Fatalf("ValidateFileName: %v", err)
	}
	if got != "myhost.cache.bin" {
		t.Errorf("got %q, want myhost.cache.bin", got)
	}
}

func TestValidateFileNameRejectsPathSeparators(t *testing.T) {
	if _, err := ValidateFileName("sub/dir.cache.bin"); err == nil {
		t.Fatalf("expected error for cache file name containing a path separator")
	}
}
