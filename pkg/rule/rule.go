// Package rule defines Rule, the pairing of a request matcher with the
// response handler that answers matching requests.
//
// A rule is created unattached by its owner (a registry or a group),
// receives its handler exactly once through Response, and is registered
// into the owner at that moment. Attached rules are immutable: WithOverlay
// derives rewritten copies and never touches the original or its
// registration.
package rule

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/getmockd/stubd/internal/id"
	"github.com/getmockd/stubd/pkg/handler"
	"github.com/getmockd/stubd/pkg/matcher"
	"github.com/getmockd/stubd/pkg/overlay"
	"github.com/getmockd/stubd/pkg/request"
	"github.com/getmockd/stubd/pkg/response"
)

var (
	// ErrAlreadyAttached is returned by Response on a rule that already has
	// a handler.
	ErrAlreadyAttached = errors.New("rule already has a response")

	// ErrNoHandler is returned by Response when called without handlers.
	ErrNoHandler = errors.New("rule needs at least one response handler")

	// ErrUnattached is returned when a rule without a handler is registered
	// or asked to respond.
	ErrUnattached = errors.New("rule has no response")

	// ErrNotMatched is returned by Respond for a request the rule does not
	// match.
	ErrNotMatched = errors.New("request does not match rule")
)

// Registrar accepts attached rules. Registries and groups implement it.
type Registrar interface {
	Register(r *Rule) error
}

// Rule is a matcher plus a handler.
type Rule struct {
	id      string
	name    string
	matcher matcher.Matcher
	owner   Registrar

	// attached is set once, by Response.
	attached atomic.Pointer[attachment]
}

type attachment struct {
	handler handler.Handler
}

// Option configures a new rule.
type Option func(*Rule)

// WithName sets a human readable name used in logs.
func WithName(name string) Option {
	return func(r *Rule) { r.name = name }
}

// WithID overrides the generated identifier.
func WithID(ruleID string) Option {
	return func(r *Rule) {
		if ruleID != "" {
			r.id = ruleID
		}
	}
}

// New creates an unattached rule owned by owner. A nil owner means the rule
// is never registered anywhere; a nil matcher matches every request.
func New(owner Registrar, m matcher.Matcher, opts ...Option) *Rule {
	if m == nil {
		m = matcher.Any()
	}
	r := &Rule{id: id.Rule(), matcher: m, owner: owner}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Response attaches the handlers (run in order) and registers the rule into
// its owner. It succeeds at most once per rule; when the owner rejects the
// rule it is detached again and Response may be retried.
func (r *Rule) Response(handlers ...handler.Handler) error {
	if len(handlers) == 0 {
		return ErrNoHandler
	}
	if !r.attached.CompareAndSwap(nil, &attachment{handler: handler.And(handlers...)}) {
		return ErrAlreadyAttached
	}

	if r.owner == nil {
		return nil
	}
	if err := r.owner.Register(r); err != nil {
		r.attached.Store(nil)
		return fmt.Errorf("registering rule %s: %w", r, err)
	}
	return nil
}

// WithOverlay returns a new, unowned rule with the same id and name whose
// matcher and handler are rewritten by o.
//
// When o targets the uri scope and the rewritten matcher does not constrain
// the URI by itself, a context matcher for the overlay's base is added so
// that the result still only answers below that base.
func (r *Rule) WithOverlay(o overlay.Overlay) *Rule {
	m := r.matcher.Apply(o)
	if o.IsFor(overlay.ScopeURI) && !m.HandlesScope(overlay.ScopeURI) {
		m = matcher.And(m, matcher.Context(o.Apply("")))
	}

	out := &Rule{id: r.id, name: r.name, matcher: m}
	if a := r.attached.Load(); a != nil {
		out.attached.Store(&attachment{handler: a.handler.Apply(o)})
	}
	return out
}

// WithOverlays applies overlays in order, so the first one is the
// innermost.
func (r *Rule) WithOverlays(overlays ...overlay.Overlay) *Rule {
	out := r
	for _, o := range overlays {
		out = out.WithOverlay(o)
	}
	if out == r {
		out = &Rule{id: r.id, name: r.name, matcher: r.matcher}
		out.attached.Store(r.attached.Load())
	}
	return out
}

// Match reports whether req satisfies the rule's matcher.
func (r *Rule) Match(req *request.Request) bool {
	return r.matcher.Match(req)
}

// Respond builds the response for req. req must match the rule; otherwise
// ErrNotMatched is returned and no handler runs.
func (r *Rule) Respond(ctx context.Context, req *request.Request) (*response.Response, error) {
	if !r.Attached() {
		return nil, ErrUnattached
	}
	if !r.Match(req) {
		return nil, ErrNotMatched
	}
	return r.respond(ctx, req)
}

// TryRespond matches and responds in one call. ok is false when req does
// not match; err reports a handler failure for a matching request.
func (r *Rule) TryRespond(ctx context.Context, req *request.Request) (resp *response.Response, ok bool, err error) {
	if !r.Attached() {
		return nil, false, ErrUnattached
	}
	if !r.Match(req) {
		return nil, false, nil
	}
	resp, err = r.respond(ctx, req)
	return resp, true, err
}

func (r *Rule) respond(ctx context.Context, req *request.Request) (*response.Response, error) {
	ctx = handler.WithPathParams(ctx, matcher.PathParams(r.matcher, req.Path))
	resp := response.New()
	if err := r.attached.Load().handler.Handle(ctx, req, resp); err != nil {
		return nil, fmt.Errorf("rule %s: %w", r, err)
	}
	return resp, nil
}

// ID returns the rule identifier. Rules derived with WithOverlay share it.
func (r *Rule) ID() string { return r.id }

// Name returns the optional rule name.
func (r *Rule) Name() string { return r.name }

// Matcher returns the rule's matcher.
func (r *Rule) Matcher() matcher.Matcher { return r.matcher }

// Handler returns the attached handler, or nil.
func (r *Rule) Handler() handler.Handler {
	if a := r.attached.Load(); a != nil {
		return a.handler
	}
	return nil
}

// Attached reports whether Response has been called successfully.
func (r *Rule) Attached() bool { return r.attached.Load() != nil }

// String returns the name when set, the id otherwise.
func (r *Rule) String() string {
	if r.name != "" {
		return r.name
	}
	return r.id
}
