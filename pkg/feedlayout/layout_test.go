package feedlayout

import (
	"bytes"
	"context"
	"testing"

	pkgerrors "github.com/glorpus-work/pkgfeed/pkg/errors"
	"github.com/glorpus-work/pkgfeed/pkg/vfs"
)

func TestAddThenExists(t *testing.T) {
	l := New(vfs.NewMem())
	ctx := context.Background()

	err := l.Add(ctx, "Foo.Bar", "1.0.0", bytes.NewBufferString("archive-bytes"), []byte("<package/>"), "abc123", false)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	exists, err := l.Exists("Foo.Bar", "1.0.0")
	if err != nil || !exists {
		t.Fatalf("Exists = %v, %v, want true, nil", exists, err)
	}
}

func TestAddRejectsDuplicateWithoutOverwrite(t *testing.T) {
	l := New(vfs.NewMem())
	ctx := context.Background()

	if err := l.Add(ctx, "Foo.Bar", "1.0.0", bytes.NewBufferString("v1"), nil, "h1", false); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	err := l.Add(ctx, "Foo.Bar", "1.0.0", bytes.NewBufferString("v1-again"), nil, "h1", false)
	if !pkgerrors.Is(err, pkgerrors.KindAlreadyExists) {
		t.Fatalf("expected KindAlreadyExists, got %v", err)
	}
}

func TestAddOverwriteReplacesContent(t *testing.T) {
	l := New(vfs.NewMem())
	ctx := context.Background()

	if err := l.Add(ctx, "Foo.Bar", "1.0.0", bytes.NewBufferString("v1"), nil, "h1", false); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if err := l.Add(ctx, "Foo.Bar", "1.0.0", bytes.NewBufferString("v2"), nil, "h2", true); err != nil {
		t.Fatalf("overwrite Add: %v", err)
	}

	exists, err := l.Exists("Foo.Bar", "1.0.0")
	if err != nil || !exists {
		t.Fatalf("Exists after overwrite = %v, %v", exists, err)
	}
}

func TestRemoveWithDelistingHidesRatherThanDeletes(t *testing.T) {
	l := New(vfs.NewMem())
	ctx := context.Background()
	if err := l.Add(ctx, "Foo.Bar", "1.0.0", bytes.NewBufferString("v1"), nil, "h1", false); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := l.Remove("Foo.Bar", "1.0.0", true); err != nil {
		t.Fatalf("Remove (delist): %v", err)
	}

	exists, err := l.Exists("Foo.Bar", "1.0.0")
	if err != nil || !exists {
		t.Fatalf("expected archive to still exist after delisting, got %v, %v", exists, err)
	}
	listed, err := l.IsListed("Foo.Bar", "1.0.0")
	if err != nil || listed {
		t.Fatalf("expected IsListed = false after delisting, got %v, %v", listed, err)
	}
}

func TestRemoveWithoutDelistingDeletes(t *testing.T) {
	l := New(vfs.NewMem())
	ctx := context.Background()
	if err := l.Add(ctx, "Foo.Bar", "1.0.0", bytes.NewBufferString("v1"), nil, "h1", false); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := l.Remove("Foo.Bar", "1.0.0", false); err != nil {
		t.Fatalf("Remove (delete): %v", err)
	}

	exists, err := l.Exists("Foo.Bar", "1.0.0")
	if err != nil || exists {
		t.Fatalf("expected archive gone after delete, got %v, %v", exists, err)
	}
}

func TestRemoveMissingReturnsNotFound(t *testing.T) {
	l := New(vfs.NewMem())
	err := l.Remove("Nope", "1.0.0", true)
	if !pkgerrors.Is(err, pkgerrors.KindNotFound) {
		t.Fatalf("expected KindNotFound, got %v", err)
	}
}

func TestGetAllSkipsTempUploads(t *testing.T) {
	l := New(vfs.NewMem())
	ctx := context.Background()
	if err := l.Add(ctx, "Foo.Bar", "1.0.0", bytes.NewBufferString("v1"), nil, "h1", false); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := l.Add(ctx, "Baz.Qux", "2.0.0", bytes.NewBufferString("v1"), nil, "h1", false); err != nil {
		t.Fatalf("Add: %v", err)
	}

	entries, err := l.GetAll()
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("GetAll returned %d entries, want 2: %+v", len(entries), entries)
	}
}

func TestIsKnownPath(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"foo.bar/1.0.0/foo.bar.1.0.0.nupkg", true},
		{"foo.bar/1.0.0/foo.bar.1.0.0.nupkg.sha512", true},
		{"foo.bar/1.0.0/foo.bar.nuspec", true},
		{"random-drop.nupkg", false},
		{"foo.bar/1.0.0/extra/deep.nupkg", false},
	}
	for _, c := range cases {
		if got := IsKnownPath(c.path); got != c.want {
			t.Errorf("IsKnownPath(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}
