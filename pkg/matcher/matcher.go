// Package matcher provides request matchers: immutable predicates over a
// request.Request that compose with And, Or and Not and rewrite themselves
// when an overlay.Overlay is applied.
//
// Apply never mutates the receiver. When an overlay targets nothing inside
// a matcher, Apply returns the receiver itself so callers can detect the
// no-op by comparison. Implementations must therefore be comparable; every
// matcher in this package is a pointer.
package matcher

import (
	"github.com/getmockd/stubd/pkg/overlay"
	"github.com/getmockd/stubd/pkg/request"
)

// Matcher is a request predicate.
type Matcher interface {
	// Match reports whether r satisfies the matcher. It has no side effects.
	Match(r *request.Request) bool

	// Apply returns a matcher rewritten by o, or the receiver itself when o
	// targets nothing in it.
	Apply(o overlay.Overlay) Matcher

	// HandlesScope reports whether the matcher natively constrains requests
	// along scope, so that applying an overlay of that scope narrows it.
	HandlesScope(scope string) bool

	// String describes the matcher for logs and the validate command.
	String() string
}

// Any returns a matcher that accepts every request.
func Any() Matcher { return anyRequest }

var anyRequest = &anyMatcher{}

type anyMatcher struct{}

func (*anyMatcher) Match(*request.Request) bool     { return true }
func (m *anyMatcher) Apply(overlay.Overlay) Matcher { return m }
func (*anyMatcher) HandlesScope(string) bool        { return false }
func (*anyMatcher) String() string                  { return "any()" }
