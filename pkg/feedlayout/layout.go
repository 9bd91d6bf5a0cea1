// Package feedlayout maps package identity onto the canonical on-disk tree
// this feed serves archives from, and performs the atomic writes/removals
// that keep that tree consistent.
//
// Generalized from the teacher's pkg/repository, which maps a repository
// name to a synced, read-only index directory (Add/Remove/List of
// *repositories*, not packages). This package keeps the same shape —
// name/priority-free here since a package feed has only one root — but
// turns it into a writable layout: ingesting pushes, not just syncing.
package feedlayout

import (
	"context"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/glorpus-work/pkgfeed/pkg/errors"
	"github.com/glorpus-work/pkgfeed/pkg/vfs"
)

// Extension is the archive file extension this feed serves.
const Extension = ".nupkg"

const (
	hashSidecarSuffix   = ".sha512"
	manifestSidecarName = ".nuspec"
	tempUploadPrefix    = ".upload-"
)

// Layout maps (id, version) to canonical paths under a vfs.FileSystem root
// and performs atomic archive ingestion/removal.
type Layout struct {
	fs vfs.FileSystem
}

// New returns a Layout rooted at fs.
func New(fs vfs.FileSystem) *Layout {
	return &Layout{fs: fs}
}

// dirFor returns the canonical directory for (id, normalizedVersion):
// <id-lower>/<normalized-version>/.
func dirFor(id, normalizedVersion string) string {
	return path.Join(strings.ToLower(id), normalizedVersion)
}

// ArchivePath returns the canonical archive path for (id, normalizedVersion).
func ArchivePath(id, normalizedVersion string) string {
	return path.Join(dirFor(id, normalizedVersion), fmt.Sprintf("%s.%s%s", id, normalizedVersion, Extension))
}

// HashSidecarPath returns the canonical hash sidecar path.
func HashSidecarPath(id, normalizedVersion string) string {
	return ArchivePath(id, normalizedVersion) + hashSidecarSuffix
}

// ManifestPath returns the canonical manifest-copy path.
func ManifestPath(id, normalizedVersion string) string {
	return path.Join(dirFor(id, normalizedVersion), id+manifestSidecarName)
}

// Exists reports whether an archive is present for (id, normalizedVersion).
func (l *Layout) Exists(id, normalizedVersion string) (bool, error) {
	return l.fs.Exists(ArchivePath(id, normalizedVersion))
}

// Add ingests an archive's content plus its manifest copy and hash sidecar
// into the canonical layout. The archive bytes are written to a temp path
// first and then renamed into place, so a reader enumerating the tree never
// observes a partially-written archive. If the target already exists, Add
// fails unless overwrite is true, in which case the existing files are
// replaced.
func (l *Layout) Add(ctx context.Context, id, normalizedVersion string, content io.Reader, manifestXML []byte, hashBase64 string, overwrite bool) error {
	exists, err := l.Exists(id, normalizedVersion)
	if err != nil {
		return pkgerrors.WithKind(pkgerrors.KindInternal, "feedlayout: check existing archive", err)
	}
	if exists && !overwrite {
		return pkgerrors.Newf(pkgerrors.KindAlreadyExists, "package %s %s already exists", id, normalizedVersion)
	}

	tempPath := path.Join(dirFor(id, normalizedVersion), tempUploadPrefix+strconv.FormatInt(time.Now().UnixNano(), 10)+Extension)
	w, err := l.fs.Create(tempPath)
	if err != nil {
		return pkgerrors.WithKind(pkgerrors.KindTransient, "feedlayout: create temp upload", err)
	}
	if _, err := io.Copy(w, content); err != nil {
		_ = w.Close()
		_ = l.fs.Remove(tempPath)
		return pkgerrors.WithKind(pkgerrors.KindTransient, "feedlayout: write temp upload", err)
	}
	if err := w.Close(); err != nil {
		_ = l.fs.Remove(tempPath)
		return pkgerrors.WithKind(pkgerrors.KindTransient, "feedlayout: close temp upload", err)
	}

	archivePath := ArchivePath(id, normalizedVersion)
	if err := l.fs.Rename(tempPath, archivePath); err != nil {
		_ = l.fs.Remove(tempPath)
		return pkgerrors.WithKind(pkgerrors.KindTransient, "feedlayout: rename into place", err)
	}

	if err := l.writeSidecar(HashSidecarPath(id, normalizedVersion), []byte(hashBase64)); err != nil {
		return err
	}
	if err := l.writeSidecar(ManifestPath(id, normalizedVersion), manifestXML); err != nil {
		return err
	}

	_ = ctx
	return nil
}

func (l *Layout) writeSidecar(path string, data []byte) error {
	w, err := l.fs.Create(path)
	if err != nil {
		return pkgerrors.WithKind(pkgerrors.KindTransient, "feedlayout: create sidecar "+path, err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return pkgerrors.WithKind(pkgerrors.KindTransient, "feedlayout: write sidecar "+path, err)
	}
	return w.Close()
}

// Remove deletes or delists the archive at (id, normalizedVersion). When
// enableDelisting is true, the archive is hidden in place rather than
// deleted; otherwise the whole (id, version) subtree is removed.
func (l *Layout) Remove(id, normalizedVersion string, enableDelisting bool) error {
	archivePath := ArchivePath(id, normalizedVersion)
	exists, err := l.fs.Exists(archivePath)
	if err != nil {
		return pkgerrors.WithKind(pkgerrors.KindInternal, "feedlayout: check archive before remove", err)
	}
	if !exists {
		return pkgerrors.Newf(pkgerrors.KindNotFound, "package %s %s not found", id, normalizedVersion)
	}

	if enableDelisting {
		return l.fs.SetHidden(archivePath, true)
	}
	return l.fs.Remove(dirFor(id, normalizedVersion))
}

// Relist clears the hidden attribute on (id, normalizedVersion), reversing a
// prior delisting Remove.
func (l *Layout) Relist(id, normalizedVersion string) error {
	return l.fs.SetHidden(ArchivePath(id, normalizedVersion), false)
}

// IsListed reports whether (id, normalizedVersion)'s archive is not hidden.
func (l *Layout) IsListed(id, normalizedVersion string) (bool, error) {
	hidden, err := l.fs.IsHidden(ArchivePath(id, normalizedVersion))
	if err != nil {
		return false, err
	}
	return !hidden, nil
}

// Entry is one archive discovered by GetAll.
type Entry struct {
	Path    string
	Size    int64
	ModTime time.Time
	Hidden  bool
}

// GetAll enumerates every archive under the canonical layout.
func (l *Layout) GetAll() ([]Entry, error) {
	infos, err := l.fs.Glob("*/*/*" + Extension)
	if err != nil {
		return nil, pkgerrors.WithKind(pkgerrors.KindInternal, "feedlayout: enumerate archives", err)
	}
	out := make([]Entry, 0, len(infos))
	for _, info := range infos {
		if strings.Contains(path.Base(info.Path), tempUploadPrefix) {
			continue
		}
		out = append(out, Entry{Path: info.Path, Size: info.Size, ModTime: info.ModTime, Hidden: info.Hidden})
	}
	return out, nil
}

// IsKnownPath reports whether path matches the canonical layout shape
// (<id>/<version>/<id>.<version>.nupkg or one of its sidecars), used by the
// filesystem watcher to recognize engine-induced events versus foreign
// files dropped into the root.
func IsKnownPath(p string) bool {
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	parts := strings.Split(p, "/")
	if len(parts) != 3 {
		return false
	}
	base := parts[2]
	return strings.HasSuffix(base, Extension) ||
		strings.HasSuffix(base, Extension+hashSidecarSuffix) ||
		strings.HasSuffix(base, manifestSidecarName)
}
