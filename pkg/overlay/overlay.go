// Package overlay provides configuration overlays: named, scoped string
// transformations that matchers and handlers apply to themselves to produce
// rewritten copies.
//
// An overlay targets one scope. Scopes are an open vocabulary of plain
// strings; the package defines the ones the built-in matchers and handlers
// understand.
package overlay

import (
	"path/filepath"
	"strings"
)

// Built-in scopes.
const (
	// ScopeURI rewrites request paths (URI matchers, proxy local bases).
	ScopeURI = "uri"
	// ScopeFile rewrites file locations (file and template handlers).
	ScopeFile = "file"
)

// Overlay is a scoped transformation. Implementations are immutable values.
type Overlay interface {
	// Scope returns the scope this overlay targets.
	Scope() string
	// IsFor reports whether the overlay targets scope.
	IsFor(scope string) bool
	// Apply transforms a value belonging to the overlay's scope.
	Apply(value string) string
}

// Context prefixes URIs. Apply joins the prefix and the value with exactly
// one slash; Apply("") is the normalized prefix itself.
func Context(prefix string) Overlay {
	return contextOverlay{prefix: normalizePrefix(prefix)}
}

type contextOverlay struct {
	prefix string
}

func (c contextOverlay) Scope() string           { return ScopeURI }
func (c contextOverlay) IsFor(scope string) bool { return scope == ScopeURI }

func (c contextOverlay) Apply(value string) string {
	if value == "" {
		return c.prefix
	}
	if c.prefix == "" {
		return value
	}
	return c.prefix + "/" + strings.TrimPrefix(value, "/")
}

func (c contextOverlay) String() string { return "context(" + c.prefix + ")" }

// normalizePrefix ensures a leading slash and strips trailing ones. The root
// prefix "/" becomes "".
func normalizePrefix(prefix string) string {
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return ""
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix
}

// FileRoot resolves relative file paths under dir. Absolute paths are left
// as they are.
func FileRoot(dir string) Overlay {
	return fileRootOverlay{dir: dir}
}

type fileRootOverlay struct {
	dir string
}

func (f fileRootOverlay) Scope() string           { return ScopeFile }
func (f fileRootOverlay) IsFor(scope string) bool { return scope == ScopeFile }

func (f fileRootOverlay) Apply(value string) string {
	if f.dir == "" || filepath.IsAbs(value) {
		return value
	}
	return filepath.Join(f.dir, value)
}

func (f fileRootOverlay) String() string { return "fileRoot(" + f.dir + ")" }

// Func builds an overlay for an arbitrary scope from a transform function.
// fn must be pure.
func Func(scope string, fn func(string) string) Overlay {
	return funcOverlay{scope: scope, fn: fn}
}

type funcOverlay struct {
	scope string
	fn    func(string) string
}

func (f funcOverlay) Scope() string           { return f.scope }
func (f funcOverlay) IsFor(scope string) bool { return scope == f.scope }

func (f funcOverlay) Apply(value string) string {
	if f.fn == nil {
		return value
	}
	return f.fn(value)
}

func (f funcOverlay) String() string { return "overlay(" + f.scope + ")" }
