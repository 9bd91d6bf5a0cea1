package vfs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// OS is a FileSystem rooted at a real directory on disk.
type OS struct {
	root string
}

// NewOS returns an OS-backed FileSystem rooted at root. root must already
// exist; the caller is responsible for creating it (mirroring the teacher's
// fsutil.EnsureDir convention at startup).
func NewOS(root string) *OS {
	return &OS{root: filepath.Clean(root)}
}

func (o *OS) abs(path string) (string, error) {
	if rel := filepath.Clean(filepath.FromSlash(path)); rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("vfs: path %q escapes root", path)
	}
	clean := filepath.Clean("/" + path)
	full := filepath.Join(o.root, clean)
	if !strings.HasPrefix(full, o.root) {
		return "", fmt.Errorf("vfs: path %q escapes root", path)
	}
	return full, nil
}

func (o *OS) Exists(path string) (bool, error) {
	full, err := o.abs(path)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (o *OS) Open(path string) (io.ReadCloser, error) {
	full, err := o.abs(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (o *OS) Create(path string) (io.WriteCloser, error) {
	full, err := o.abs(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(full), DirModeDefault); err != nil {
		return nil, fmt.Errorf("vfs: create parent dir for %s: %w", path, err)
	}
	f, err := os.OpenFile(full, os.O_RDWR|os.O_CREATE|os.O_TRUNC, FileModeDefault)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (o *OS) Remove(path string) error {
	full, err := o.abs(path)
	if err != nil {
		return err
	}
	return os.RemoveAll(full)
}

func (o *OS) Rename(oldPath, newPath string) error {
	oldFull, err := o.abs(oldPath)
	if err != nil {
		return err
	}
	newFull, err := o.abs(newPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(newFull), DirModeDefault); err != nil {
		return fmt.Errorf("vfs: create parent dir for %s: %w", newPath, err)
	}
	return os.Rename(oldFull, newFull)
}

func (o *OS) Glob(pattern string) ([]Info, error) {
	full, err := o.abs(pattern)
	if err != nil {
		return nil, err
	}
	matches, err := filepath.Glob(full)
	if err != nil {
		return nil, err
	}
	out := make([]Info, 0, len(matches))
	for _, m := range matches {
		st, err := os.Stat(m)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(o.root, m)
		if err != nil {
			continue
		}
		hidden, _ := o.IsHidden(filepath.ToSlash(rel))
		out = append(out, Info{
			Path:    filepath.ToSlash(rel),
			Size:    st.Size(),
			ModTime: st.ModTime(),
			IsDir:   st.IsDir(),
			Hidden:  hidden,
		})
	}
	return out, nil
}

func (o *OS) Stat(path string) (Info, error) {
	full, err := o.abs(path)
	if err != nil {
		return Info{}, err
	}
	st, err := os.Stat(full)
	if err != nil {
		return Info{}, err
	}
	hidden, _ := o.IsHidden(path)
	return Info{
		Path:    path,
		Size:    st.Size(),
		ModTime: st.ModTime(),
		IsDir:   st.IsDir(),
		Hidden:  hidden,
	}, nil
}

// hiddenMarkerSuffix marks a package as delisted without moving or renaming
// its canonical archive file, since the canonical layout's filename is fixed
// by (id, version). A sidecar is portable across platforms, unlike a real
// hidden-file attribute bit, which only Windows exposes.
const hiddenMarkerSuffix = ".delisted"

func (o *OS) SetHidden(path string, hidden bool) error {
	full, err := o.abs(path)
	if err != nil {
		return err
	}
	marker := full + hiddenMarkerSuffix
	if hidden {
		f, err := os.OpenFile(marker, os.O_RDWR|os.O_CREATE|os.O_TRUNC, FileModeDefault)
		if err != nil {
			return err
		}
		return f.Close()
	}
	err = os.Remove(marker)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// AbsPath resolves path to its real location under root, for callers (the
// archive reader) that need a real path rather than going through this
// interface.
func (o *OS) AbsPath(path string) (string, error) {
	return o.abs(path)
}

func (o *OS) IsHidden(path string) (bool, error) {
	full, err := o.abs(path)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full + hiddenMarkerSuffix)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
