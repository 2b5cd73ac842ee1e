package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/getmockd/stubd/pkg/overlay"
	"github.com/getmockd/stubd/pkg/request"
	"github.com/getmockd/stubd/pkg/response"
)

type latencyHandler struct {
	delay time.Duration
}

// Latency delays the response by d. The wait ends early with the context's
// error when ctx is cancelled.
func Latency(d time.Duration) Handler {
	return &latencyHandler{delay: d}
}

func (h *latencyHandler) Handle(ctx context.Context, _ *request.Request, _ *response.Response) error {
	if h.delay <= 0 {
		return nil
	}
	timer := time.NewTimer(h.delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *latencyHandler) Apply(overlay.Overlay) Handler { return h }
func (h *latencyHandler) String() string                { return fmt.Sprintf("latency(%s)", h.delay) }
