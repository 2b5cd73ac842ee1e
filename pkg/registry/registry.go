// Package registry holds ordered rule sets and evaluates requests against
// them: the first attached rule whose matcher accepts the request answers
// it.
package registry

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/getmockd/stubd/pkg/handler"
	"github.com/getmockd/stubd/pkg/logging"
	"github.com/getmockd/stubd/pkg/matcher"
	"github.com/getmockd/stubd/pkg/overlay"
	"github.com/getmockd/stubd/pkg/request"
	"github.com/getmockd/stubd/pkg/response"
	"github.com/getmockd/stubd/pkg/rule"
)

// Result is the outcome of Evaluate.
type Result struct {
	// Rule is the rule that matched, nil when none did.
	Rule *rule.Rule
	// Response is the built response, nil when no rule matched or the
	// handler failed.
	Response *response.Response
}

// Matched reports whether a rule matched the request.
func (r Result) Matched() bool { return r.Rule != nil }

// Registry is an ordered set of attached rules.
//
// Evaluation takes no lock: registration publishes a new immutable slice.
// Rules are expected to be registered before traffic starts; the engine
// replaces whole registries on reload.
type Registry struct {
	mu    sync.Mutex // serializes writers
	rules atomic.Pointer[[]*rule.Rule]
	log   *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for match tracing.
func WithLogger(log *slog.Logger) Option {
	return func(r *Registry) {
		if log != nil {
			r.log = log
		}
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{log: logging.Nop()}
	empty := []*rule.Rule{}
	r.rules.Store(&empty)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register appends an attached rule.
func (r *Registry) Register(rl *rule.Rule) error {
	if rl == nil || !rl.Attached() {
		return rule.ErrUnattached
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current := *r.rules.Load()
	next := make([]*rule.Rule, len(current), len(current)+1)
	copy(next, current)
	next = append(next, rl)
	r.rules.Store(&next)
	return nil
}

// Evaluate walks the rules in registration order and lets the first match
// respond. No match yields a zero Result and a nil error. A handler failure
// yields the matched rule and the error.
func (r *Registry) Evaluate(ctx context.Context, req *request.Request) (Result, error) {
	for _, rl := range *r.rules.Load() {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		resp, ok, err := rl.TryRespond(ctx, req)
		if !ok {
			continue
		}
		if err != nil {
			return Result{Rule: rl}, err
		}
		r.log.Debug("rule matched", "rule", rl.String(), "method", req.Method, "path", req.Path)
		return Result{Rule: rl, Response: resp}, nil
	}
	return Result{}, nil
}

// Request creates an unattached rule owned by the registry.
func (r *Registry) Request(m matcher.Matcher, opts ...rule.Option) *rule.Rule {
	return rule.New(r, m, opts...)
}

// Response registers a rule answering every request with handlers.
func (r *Registry) Response(handlers ...handler.Handler) error {
	return r.Request(matcher.Any()).Response(handlers...)
}

// Group returns a group whose rules are rewritten by overlays and
// registered here.
func (r *Registry) Group(overlays ...overlay.Overlay) *Group {
	return newGroup(r, overlays)
}

// Rules returns a snapshot of the registered rules in order.
func (r *Registry) Rules() []*rule.Rule {
	return append([]*rule.Rule(nil), *r.rules.Load()...)
}

// Len returns the number of registered rules.
func (r *Registry) Len() int {
	return len(*r.rules.Load())
}
