// Package handler provides response handlers: values that write into a
// response.Response being built for a matched request.
//
// Handlers are immutable apart from the cursor of Seq and Cycle. Like
// matchers, Apply returns the receiver itself when an overlay targets
// nothing in it, and every handler in this package is a pointer so the
// no-op can be detected by comparison.
package handler

import (
	"context"
	"strings"

	"github.com/getmockd/stubd/pkg/overlay"
	"github.com/getmockd/stubd/pkg/request"
	"github.com/getmockd/stubd/pkg/response"
)

// Handler builds (part of) a response.
type Handler interface {
	// Handle writes into resp. It must only be called for requests the
	// owning rule matched.
	Handle(ctx context.Context, req *request.Request, resp *response.Response) error

	// Apply returns a handler rewritten by o, or the receiver itself.
	Apply(o overlay.Overlay) Handler

	String() string
}

type pathParamsKey struct{}

// WithPathParams attaches the matched URI's path parameters to ctx for
// template handlers.
func WithPathParams(ctx context.Context, params map[string]string) context.Context {
	if len(params) == 0 {
		return ctx
	}
	return context.WithValue(ctx, pathParamsKey{}, params)
}

// PathParams returns the path parameters attached by WithPathParams.
func PathParams(ctx context.Context) map[string]string {
	params, _ := ctx.Value(pathParamsKey{}).(map[string]string)
	return params
}

type andHandler struct {
	children []Handler
}

// And runs its children in order, stopping at the first error. A single
// child is returned as is.
func And(children ...Handler) Handler {
	if len(children) == 1 {
		return children[0]
	}
	return &andHandler{children: append([]Handler(nil), children...)}
}

func (h *andHandler) Handle(ctx context.Context, req *request.Request, resp *response.Response) error {
	for _, c := range h.children {
		if err := c.Handle(ctx, req, resp); err != nil {
			return err
		}
	}
	return nil
}

func (h *andHandler) Apply(o overlay.Overlay) Handler {
	children, changed := applyAll(h.children, o)
	if !changed {
		return h
	}
	return &andHandler{children: children}
}

func (h *andHandler) String() string { return "and(" + joinHandlers(h.children) + ")" }

// applyAll applies o to every handler and reports whether any changed.
// Unchanged handlers are shared with the input.
func applyAll(handlers []Handler, o overlay.Overlay) ([]Handler, bool) {
	var applied []Handler
	for i, h := range handlers {
		next := h.Apply(o)
		if applied == nil && next == h {
			continue
		}
		if applied == nil {
			applied = make([]Handler, len(handlers))
			copy(applied, handlers[:i])
		}
		applied[i] = next
	}
	if applied == nil {
		return handlers, false
	}
	return applied, true
}

func joinHandlers(handlers []Handler) string {
	parts := make([]string, len(handlers))
	for i, h := range handlers {
		parts[i] = h.String()
	}
	return strings.Join(parts, ", ")
}
