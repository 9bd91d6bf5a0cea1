// Package feedhooks runs optional Tengo scripts around the repository
// engine's push/delete mutations. This is the one functional addition this
// server makes beyond its original source: the original has no scripting
// hook at all. It is grounded in the teacher's own client-side hook
// mechanism (pkg/hook's Tengo scripting for pre/post install/remove) and
// repurposed server-side for pre/post push/delete.
package feedhooks

import (
	"fmt"
	"io"
	"path"
	"sync"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"

	pkgerrors "github.com/glorpus-work/pkgfeed/pkg/errors"
	"github.com/glorpus-work/pkgfeed/pkg/vfs"
)

// Type identifies one of the four hook points the engine runs scripts at.
type Type string

// The four hook points, one script file each.
const (
	PrePush    Type = "pre-push"
	PostPush   Type = "post-push"
	PreDelete  Type = "pre-delete"
	PostDelete Type = "post-delete"
)

// hooksDir is the fixed location, relative to the feed root, scripts are
// loaded from.
const hooksDir = ".pkgfeed/hooks"

func scriptPath(t Type) string {
	return path.Join(hooksDir, string(t)+".tengo")
}

// Context carries the values a hook script can read: the package identity
// and path being pushed or deleted, plus arbitrary caller-supplied extras.
type Context struct {
	PackageID      string
	PackageVersion string
	PackagePath    string
	Vars           map[string]interface{}
}

// Runner executes hook scripts for the four hook points. A Runner with no
// script loaded for a given Type treats Run as a no-op.
type Runner interface {
	// Run executes the script for t, if one was loaded. A non-empty `err`
	// variable set by the script is returned as an error.
	Run(t Type, ctx Context) error
	// HasHook reports whether a script was loaded for t.
	HasHook(t Type) bool
}

// noopRunner is used when hooks are disabled by configuration.
type noopRunner struct{}

func (noopRunner) Run(Type, Context) error { return nil }
func (noopRunner) HasHook(Type) bool       { return false }

// tengoRunner runs loaded Tengo scripts, mirroring pkg/hook's TengoExecutor
// but keyed by push/delete hook points instead of install/remove ones, and
// loading scripts up front from the feed root rather than per-package
// directories.
type tengoRunner struct {
	mu      sync.RWMutex
	scripts map[Type]string
}

// NewRunner returns a Runner. If enabled is false, the returned Runner never
// runs anything. Otherwise it loads whichever of the four script files are
// present under <root>/.pkgfeed/hooks/ via fs; a missing script file for a
// given hook point is not an error, it just means that hook point is a
// no-op.
func NewRunner(fs vfs.FileSystem, enabled bool) (Runner, error) {
	if !enabled {
		return noopRunner{}, nil
	}

	r := &tengoRunner{scripts: make(map[Type]string)}
	for _, t := range []Type{PrePush, PostPush, PreDelete, PostDelete} {
		p := scriptPath(t)
		exists, err := fs.Exists(p)
		if err != nil {
			return nil, pkgerrors.WithKind(pkgerrors.KindInternal, "feedhooks: check "+p, err)
		}
		if !exists {
			continue
		}
		f, err := fs.Open(p)
		if err != nil {
			return nil, pkgerrors.WithKind(pkgerrors.KindInternal, "feedhooks: open "+p, err)
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, pkgerrors.WithKind(pkgerrors.KindInternal, "feedhooks: read "+p, err)
		}
		r.scripts[t] = string(data)
	}
	return r, nil
}

func (r *tengoRunner) HasHook(t Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.scripts[t]
	return ok
}

func (r *tengoRunner) Run(t Type, ctx Context) error {
	r.mu.RLock()
	script, ok := r.scripts[t]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	instance := tengo.NewScript([]byte(script))
	instance.SetImports(stdlib.GetModuleMap("fmt", "os", "strings", "time"))

	_ = instance.Add("packageId", ctx.PackageID)
	_ = instance.Add("packageVersion", ctx.PackageVersion)
	_ = instance.Add("packagePath", ctx.PackagePath)
	for k, v := range ctx.Vars {
		_ = instance.Add(k, v)
	}

	compiled, err := instance.Run()
	if err != nil {
		return pkgerrors.WithKind(pkgerrors.KindInvalidArgument, fmt.Sprintf("feedhooks: %s script failed", t), err)
	}

	errVar := compiled.Get("err")
	if errVar == nil {
		return nil
	}
	switch v := errVar.Value().(type) {
	case error:
		return pkgerrors.New(pkgerrors.KindInvalidArgument, fmt.Sprintf("feedhooks: %s: %s", t, v.Error()))
	case string:
		if v != "" {
			return pkgerrors.New(pkgerrors.KindInvalidArgument, fmt.Sprintf("feedhooks: %s: %s", t, v))
		}
	}
	return nil
}
