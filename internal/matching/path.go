package matching

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// MatchPath reports whether path matches pattern. A pattern is an exact
// path, or contains {name} segments (one segment each) and * wildcards.
// A trailing "/*" also matches the bare prefix.
func MatchPath(pattern, path string) bool {
	if pattern == path {
		return true
	}
	if strings.Contains(pattern, "{") {
		if _, ok := bindSegments(pattern, path); ok {
			return true
		}
	}
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok && MatchPathPrefix(prefix, path) {
		return true
	}
	return strings.Contains(pattern, "*") && MatchWildcard(pattern, path)
}

// PathParams returns the segments of path captured by pattern: {name}
// segments by name and * segments by position ("0", "1", ...). A trailing
// * captures the rest of the path. It returns nil when path does not fit
// pattern segment by segment.
func PathParams(pattern, path string) map[string]string {
	params, ok := bindSegments(pattern, path)
	if !ok {
		return nil
	}
	return params
}

// bindSegments walks pattern and path segment by segment. On a mismatch
// the returned params are partial and must not be used.
func bindSegments(pattern, path string) (map[string]string, bool) {
	want := strings.Split(strings.Trim(pattern, "/"), "/")
	got := strings.Split(strings.Trim(path, "/"), "/")
	params := make(map[string]string)

	wildcards := 0
	for i, seg := range want {
		if i >= len(got) {
			return params, false
		}
		switch {
		case seg == "*" && i == len(want)-1:
			params[strconv.Itoa(wildcards)] = strings.Join(got[i:], "/")
			return params, true
		case seg == "*":
			params[strconv.Itoa(wildcards)] = got[i]
			wildcards++
		case strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}"):
			params[seg[1:len(seg)-1]] = got[i]
		case seg != got[i]:
			return params, false
		}
	}
	return params, len(want) == len(got)
}

// MatchPathPrefix reports whether path lies under prefix on a segment
// boundary: "/api" matches "/api" and "/api/users" but not "/apix".
// An empty or "/" prefix matches everything.
func MatchPathPrefix(prefix, path string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return true
	}
	rest, ok := strings.CutPrefix(path, prefix)
	return ok && (rest == "" || rest[0] == '/')
}

// MatchPathRegexp matches path against re and returns its named groups.
func MatchPathRegexp(re *regexp.Regexp, path string) (bool, map[string]string) {
	if re == nil {
		return false, nil
	}
	match := re.FindStringSubmatch(path)
	if match == nil {
		return false, nil
	}
	captures := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if name != "" {
			captures[name] = match[i]
		}
	}
	return true, captures
}

// MatchGlob matches path against a doublestar glob ("/static/**/*.js").
// An invalid pattern does not match.
func MatchGlob(pattern, path string) bool {
	ok, err := doublestar.Match(pattern, path)
	return err == nil && ok
}

// ValidateGlob checks a doublestar glob pattern.
func ValidateGlob(pattern string) error {
	if !doublestar.ValidatePattern(pattern) {
		return doublestar.ErrBadPattern
	}
	return nil
}
