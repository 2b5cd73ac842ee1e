package handler

import (
	"context"
	"sync/atomic"

	"github.com/getmockd/stubd/pkg/overlay"
	"github.com/getmockd/stubd/pkg/request"
	"github.com/getmockd/stubd/pkg/response"
)

// sequence is shared by Seq and Cycle. Every Handle call claims the next
// step with a single atomic add, so N concurrent calls observe N distinct
// steps.
type sequence struct {
	handlers []Handler
	cycle    bool
	cursor   atomic.Uint64
}

// Seq delegates the n-th call to the n-th handler and keeps using the last
// one once exhausted.
func Seq(handlers ...Handler) Handler {
	return &sequence{handlers: append([]Handler(nil), handlers...)}
}

// Cycle delegates calls to its handlers in round robin order.
func Cycle(handlers ...Handler) Handler {
	return &sequence{handlers: append([]Handler(nil), handlers...), cycle: true}
}

func (h *sequence) Handle(ctx context.Context, req *request.Request, resp *response.Response) error {
	n := uint64(len(h.handlers))
	if n == 0 {
		return nil
	}
	step := h.cursor.Add(1) - 1
	if h.cycle {
		step %= n
	} else if step >= n {
		step = n - 1
	}
	return h.handlers[step].Handle(ctx, req, resp)
}

// Apply returns a sequence with a fresh cursor when a child changed.
func (h *sequence) Apply(o overlay.Overlay) Handler {
	children, changed := applyAll(h.handlers, o)
	if !changed {
		return h
	}
	return &sequence{handlers: children, cycle: h.cycle}
}

func (h *sequence) String() string {
	name := "seq"
	if h.cycle {
		name = "cycle"
	}
	return name + "(" + joinHandlers(h.handlers) + ")"
}
