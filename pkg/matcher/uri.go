package matcher

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/getmockd/stubd/internal/matching"
	"github.com/getmockd/stubd/pkg/overlay"
	"github.com/getmockd/stubd/pkg/request"
)

// The matchers in this file understand overlay.ScopeURI: applying a uri
// overlay rewrites their pattern instead of leaving them untouched.

type uriMatcher struct {
	pattern string
}

// URI matches the request path: exact, {named} segments or * wildcards.
func URI(pattern string) Matcher {
	return &uriMatcher{pattern: pattern}
}

func (m *uriMatcher) Match(r *request.Request) bool {
	return matching.MatchPath(m.pattern, r.Path)
}

func (m *uriMatcher) Apply(o overlay.Overlay) Matcher {
	if !o.IsFor(overlay.ScopeURI) {
		return m
	}
	return &uriMatcher{pattern: o.Apply(m.pattern)}
}

func (m *uriMatcher) HandlesScope(scope string) bool { return scope == overlay.ScopeURI }
func (m *uriMatcher) String() string                 { return fmt.Sprintf("uri(%q)", m.pattern) }

// Pattern returns the path pattern, for path parameter extraction.
func (m *uriMatcher) Pattern() string { return m.pattern }

type uriRegexMatcher struct {
	pattern string
	re      *regexp.Regexp
}

// URIRegex matches the request path against a regular expression.
func URIRegex(pattern string) (Matcher, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid uri regex %q: %w", pattern, err)
	}
	return &uriRegexMatcher{pattern: pattern, re: re}, nil
}

func (m *uriRegexMatcher) Match(r *request.Request) bool {
	ok, _ := matching.MatchPathRegexp(m.re, r.Path)
	return ok
}

// Apply anchors the expression under the overlay's prefix. An anchored
// expression keeps its own start right after the prefix; an unanchored one
// may still match anywhere below the prefix.
func (m *uriRegexMatcher) Apply(o overlay.Overlay) Matcher {
	if !o.IsFor(overlay.ScopeURI) {
		return m
	}
	prefix := regexp.QuoteMeta(o.Apply(""))
	var pattern string
	if rest, anchored := strings.CutPrefix(m.pattern, "^"); anchored {
		pattern = "^" + prefix + rest
	} else {
		pattern = "^" + prefix + "(?:/.*)?" + m.pattern
	}
	// Both parts compiled before, so the concatenation compiles too.
	return &uriRegexMatcher{pattern: pattern, re: regexp.MustCompile(pattern)}
}

func (m *uriRegexMatcher) HandlesScope(scope string) bool { return scope == overlay.ScopeURI }
func (m *uriRegexMatcher) String() string                 { return fmt.Sprintf("uriRegex(%q)", m.pattern) }

// Captures returns the named groups matched in path.
func (m *uriRegexMatcher) Captures(path string) map[string]string {
	_, captures := matching.MatchPathRegexp(m.re, path)
	return captures
}

type uriGlobMatcher struct {
	pattern string
}

// URIGlob matches the request path against a doublestar glob.
func URIGlob(pattern string) (Matcher, error) {
	if err := matching.ValidateGlob(pattern); err != nil {
		return nil, fmt.Errorf("invalid uri glob %q: %w", pattern, err)
	}
	return &uriGlobMatcher{pattern: pattern}, nil
}

func (m *uriGlobMatcher) Match(r *request.Request) bool {
	return matching.MatchGlob(m.pattern, r.Path)
}

func (m *uriGlobMatcher) Apply(o overlay.Overlay) Matcher {
	if !o.IsFor(overlay.ScopeURI) {
		return m
	}
	return &uriGlobMatcher{pattern: o.Apply(m.pattern)}
}

func (m *uriGlobMatcher) HandlesScope(scope string) bool { return scope == overlay.ScopeURI }
func (m *uriGlobMatcher) String() string                 { return fmt.Sprintf("uriGlob(%q)", m.pattern) }

type contextMatcher struct {
	prefix string
}

// Context matches paths at or below prefix on a segment boundary.
func Context(prefix string) Matcher {
	return &contextMatcher{prefix: prefix}
}

func (m *contextMatcher) Match(r *request.Request) bool {
	return matching.MatchPathPrefix(m.prefix, r.Path)
}

func (m *contextMatcher) Apply(o overlay.Overlay) Matcher {
	if !o.IsFor(overlay.ScopeURI) {
		return m
	}
	return &contextMatcher{prefix: o.Apply(m.prefix)}
}

func (m *contextMatcher) HandlesScope(scope string) bool { return scope == overlay.ScopeURI }
func (m *contextMatcher) String() string                 { return fmt.Sprintf("context(%q)", m.prefix) }

// PathParams extracts {name} and * captures from path for the first URI
// pattern in m that matches it, descending into composites. Branches of an
// Or that do not match path contribute nothing.
func PathParams(m Matcher, path string) map[string]string {
	switch v := m.(type) {
	case *uriMatcher:
		if !matching.MatchPath(v.pattern, path) {
			return nil
		}
		return matching.PathParams(v.pattern, path)
	case *uriRegexMatcher:
		return v.Captures(path)
	case *compositeMatcher:
		for _, child := range v.children {
			if params := PathParams(child, path); len(params) > 0 {
				return params
			}
		}
	}
	return nil
}
