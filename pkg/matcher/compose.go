package matcher

import (
	"strings"

	"github.com/getmockd/stubd/pkg/overlay"
	"github.com/getmockd/stubd/pkg/request"
)

type compositeKind int

const (
	kindAnd compositeKind = iota
	kindOr
)

type compositeMatcher struct {
	kind     compositeKind
	children []Matcher
}

// And matches when every child matches. And() matches everything; a single
// child is returned as is.
func And(children ...Matcher) Matcher {
	return newComposite(kindAnd, children)
}

// Or matches when at least one child matches. Or() matches nothing.
func Or(children ...Matcher) Matcher {
	return newComposite(kindOr, children)
}

func newComposite(kind compositeKind, children []Matcher) Matcher {
	if kind == kindAnd && len(children) == 0 {
		return Any()
	}
	if len(children) == 1 {
		return children[0]
	}
	return &compositeMatcher{kind: kind, children: append([]Matcher(nil), children...)}
}

func (m *compositeMatcher) Match(r *request.Request) bool {
	if m.kind == kindAnd {
		for _, c := range m.children {
			if !c.Match(r) {
				return false
			}
		}
		return true
	}
	for _, c := range m.children {
		if c.Match(r) {
			return true
		}
	}
	return false
}

// Apply rebuilds the composite only when a child changed; unchanged children
// are shared with the original.
func (m *compositeMatcher) Apply(o overlay.Overlay) Matcher {
	var applied []Matcher
	for i, c := range m.children {
		next := c.Apply(o)
		if applied == nil && next == c {
			continue
		}
		if applied == nil {
			applied = make([]Matcher, len(m.children))
			copy(applied, m.children[:i])
		}
		applied[i] = next
	}
	if applied == nil {
		return m
	}
	return &compositeMatcher{kind: m.kind, children: applied}
}

// HandlesScope: a conjunction is constrained as soon as one child is; a
// disjunction only when every branch is.
func (m *compositeMatcher) HandlesScope(scope string) bool {
	if m.kind == kindAnd {
		for _, c := range m.children {
			if c.HandlesScope(scope) {
				return true
			}
		}
		return false
	}
	if len(m.children) == 0 {
		return false
	}
	for _, c := range m.children {
		if !c.HandlesScope(scope) {
			return false
		}
	}
	return true
}

func (m *compositeMatcher) String() string {
	parts := make([]string, len(m.children))
	for i, c := range m.children {
		parts[i] = c.String()
	}
	name := "and"
	if m.kind == kindOr {
		name = "or"
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}

// Children returns the composite's operands.
func (m *compositeMatcher) Children() []Matcher {
	return append([]Matcher(nil), m.children...)
}

type notMatcher struct {
	child Matcher
}

// Not inverts a matcher.
func Not(child Matcher) Matcher {
	return &notMatcher{child: child}
}

func (m *notMatcher) Match(r *request.Request) bool { return !m.child.Match(r) }

func (m *notMatcher) Apply(o overlay.Overlay) Matcher {
	next := m.child.Apply(o)
	if next == m.child {
		return m
	}
	return &notMatcher{child: next}
}

// HandlesScope is always false: a negated constraint never narrows.
func (m *notMatcher) HandlesScope(string) bool { return false }
func (m *notMatcher) String() string           { return "not(" + m.child.String() + ")" }
