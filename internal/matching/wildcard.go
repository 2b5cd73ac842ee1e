package matching

import "strings"

// MatchWildcard reports whether value matches pattern, where * stands for
// any run of characters, including none.
func MatchWildcard(pattern, value string) bool {
	head, tail, found := strings.Cut(pattern, "*")
	if !found {
		return pattern == value
	}
	rest, ok := strings.CutPrefix(value, head)
	if !ok {
		return false
	}

	parts := strings.Split(tail, "*")
	last := len(parts) - 1
	for _, part := range parts[:last] {
		i := strings.Index(rest, part)
		if i < 0 {
			return false
		}
		rest = rest[i+len(part):]
	}
	return strings.HasSuffix(rest, parts[last])
}
