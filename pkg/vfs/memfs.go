package vfs

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

type memFile struct {
	data    []byte
	modTime time.Time
	hidden  bool
}

// Mem is an in-memory FileSystem double for tests, grounded on the
// teacher's test/testutil server-fixture conventions: a self-contained
// fixture a test can construct without touching the real filesystem.
type Mem struct {
	mu    sync.Mutex
	files map[string]*memFile
}

// NewMem returns an empty in-memory FileSystem.
func NewMem() *Mem {
	return &Mem{files: make(map[string]*memFile)}
}

func clean(p string) string {
	return path.Clean("/" + filepath.ToSlash(p))
}

func (m *Mem) Exists(p string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[clean(p)]
	return ok, nil
}

type memReadCloser struct{ *bytes.Reader }

func (memReadCloser) Close() error { return nil }

func (m *Mem) Open(p string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[clean(p)]
	if !ok {
		return nil, fmt.Errorf("vfs: open %s: %w", p, ErrNotExist)
	}
	return memReadCloser{bytes.NewReader(f.data)}, nil
}

type memWriteCloser struct {
	buf  bytes.Buffer
	fs   *Mem
	path string
}

func (w *memWriteCloser) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *memWriteCloser) Close() error {
	w.fs.mu.Lock()
	defer w.fs.mu.Unlock()
	w.fs.files[w.path] = &memFile{data: append([]byte(nil), w.buf.Bytes()...), modTime: now()}
	return nil
}

func (m *Mem) Create(p string) (io.WriteCloser, error) {
	return &memWriteCloser{fs: m, path: clean(p)}, nil
}

func (m *Mem) Remove(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := clean(p)
	prefix := cp + "/"
	removed := false
	for k := range m.files {
		if k == cp || (len(k) > len(prefix) && k[:len(prefix)] == prefix) {
			delete(m.files, k)
			removed = true
		}
	}
	if !removed {
		return fmt.Errorf("vfs: remove %s: %w", p, ErrNotExist)
	}
	return nil
}

func (m *Mem) Rename(oldPath, newPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	oldCp, newCp := clean(oldPath), clean(newPath)
	f, ok := m.files[oldCp]
	if !ok {
		return fmt.Errorf("vfs: rename %s: %w", oldPath, ErrNotExist)
	}
	m.files[newCp] = f
	delete(m.files, oldCp)
	return nil
}

func (m *Mem) Glob(pattern string) ([]Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pat := clean(pattern)
	var out []Info
	for k, f := range m.files {
		ok, err := path.Match(pat, k)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, Info{
			Path:    k[1:],
			Size:    int64(len(f.data)),
			ModTime: f.modTime,
			Hidden:  f.hidden,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (m *Mem) Stat(p string) (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := clean(p)
	f, ok := m.files[cp]
	if !ok {
		return Info{}, fmt.Errorf("vfs: stat %s: %w", p, ErrNotExist)
	}
	return Info{Path: p, Size: int64(len(f.data)), ModTime: f.modTime, Hidden: f.hidden}, nil
}

func (m *Mem) SetHidden(p string, hidden bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := clean(p)
	f, ok := m.files[cp]
	if !ok {
		return fmt.Errorf("vfs: set hidden %s: %w", p, ErrNotExist)
	}
	f.hidden = hidden
	return nil
}

func (m *Mem) IsHidden(p string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := clean(p)
	f, ok := m.files[cp]
	if !ok {
		return false, fmt.Errorf("vfs: is hidden %s: %w", p, ErrNotExist)
	}
	return f.hidden, nil
}

// AbsPath always fails: the in-memory double has no real backing path, so
// any caller needing one (the archive reader) cannot run against it.
func (m *Mem) AbsPath(path string) (string, error) {
	return "", fmt.Errorf("vfs: AbsPath not supported by in-memory filesystem (path %s)", path)
}

// WriteFile is a test convenience for seeding fixtures directly.
func (m *Mem) WriteFile(p string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[clean(p)] = &memFile{data: append([]byte(nil), data...), modTime: now()}
}

func now() time.Time { return time.Now() }

var _ FileSystem = (*Mem)(nil)
var _ FileSystem = (*OS)(nil)
