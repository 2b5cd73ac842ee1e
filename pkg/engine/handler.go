package engine

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/getmockd/stubd/internal/id"
	"github.com/getmockd/stubd/pkg/handler"
	"github.com/getmockd/stubd/pkg/httputil"
	"github.com/getmockd/stubd/pkg/logging"
	"github.com/getmockd/stubd/pkg/metrics"
	"github.com/getmockd/stubd/pkg/registry"
	"github.com/getmockd/stubd/pkg/request"
	"github.com/getmockd/stubd/pkg/response"
)

// Reserved paths answered by the engine before any rule is consulted.
const (
	HealthPath  = "/__stubd/health"
	MetricsPath = "/__stubd/metrics"
)

// RequestIDHeader carries the id the engine assigns to each request.
const RequestIDHeader = "X-Request-Id"

// Handler is the http.Handler that answers requests from a registry.
// The registry can be replaced while serving (hot reload).
type Handler struct {
	registry    atomic.Pointer[registry.Registry]
	fallback    handler.Handler
	metrics     *metrics.Metrics
	log         *slog.Logger
	maxBodySize int64
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithHandlerLogger sets the request logger.
func WithHandlerLogger(log *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

// WithMetrics records requests into m and serves it on MetricsPath.
func WithMetrics(m *metrics.Metrics) HandlerOption {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithDefault answers requests no rule matched with d instead of a 404.
func WithDefault(d handler.Handler) HandlerOption {
	return func(h *Handler) {
		h.fallback = d
	}
}

// WithMaxBodySize limits the request bodies read for matching.
func WithMaxBodySize(n int64) HandlerOption {
	return func(h *Handler) {
		h.maxBodySize = n
	}
}

// NewHandler creates a Handler serving reg. A nil reg serves an empty
// registry.
func NewHandler(reg *registry.Registry, opts ...HandlerOption) *Handler {
	h := &Handler{
		log:         logging.Nop(),
		maxBodySize: request.MaxBodySize,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.SetRegistry(reg)
	return h
}

// Registry returns the registry currently serving requests.
func (h *Handler) Registry() *registry.Registry {
	return h.registry.Load()
}

// SetRegistry replaces the serving registry. In-flight requests finish on
// the registry they started with.
func (h *Handler) SetRegistry(reg *registry.Registry) {
	if reg == nil {
		reg = registry.New()
	}
	h.registry.Store(reg)
	if h.metrics != nil {
		h.metrics.SetRules(reg.Len())
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case HealthPath:
		h.serveHealth(w)
		return
	case MetricsPath:
		if h.metrics != nil {
			h.metrics.Handler().ServeHTTP(w, r)
			return
		}
	}

	start := time.Now()
	reqID := r.Header.Get(RequestIDHeader)
	if reqID == "" {
		reqID = id.UUID()
	}
	w.Header().Set(RequestIDHeader, reqID)
	log := h.log.With("request_id", reqID, "method", r.Method, "path", r.URL.Path)

	ruleName := metrics.NoRule
	status := h.serve(r.Context(), w, r, log, &ruleName)

	elapsed := time.Since(start)
	if h.metrics != nil {
		h.metrics.ObserveRequest(r.Method, ruleName, status, elapsed)
	}
	log.Debug("request served", "rule", ruleName, "status", status, "duration", elapsed)
}

func (h *Handler) serve(ctx context.Context, w http.ResponseWriter, r *http.Request, log *slog.Logger, ruleName *string) int {
	req, err := request.FromHTTP(r, h.maxBodySize)
	if err != nil {
		if errors.Is(err, request.ErrBodyTooLarge) {
			return httputil.Errorf(http.StatusRequestEntityTooLarge, "body_too_large",
				"request body exceeds %d bytes", h.maxBodySize).Write(w)
		}
		log.Warn("failed to read request", "error", err)
		return httputil.Errorf(http.StatusBadRequest, "bad_request", "%v", err).Write(w)
	}

	res, err := h.Registry().Evaluate(ctx, req)
	if res.Matched() {
		*ruleName = res.Rule.String()
	}
	switch {
	case err != nil && res.Matched():
		log.Error("handler failed", "rule", *ruleName, "error", err)
		if h.metrics != nil {
			h.metrics.HandlerError(*ruleName)
		}
		return httputil.Errorf(http.StatusBadGateway, "handler_error", "%v", err).Write(w)
	case err != nil:
		log.Debug("evaluation aborted", "error", err)
		return httputil.Errorf(http.StatusServiceUnavailable, "cancelled", "%v", err).Write(w)
	case res.Matched():
		return res.Response.Write(w)
	}

	if h.fallback != nil {
		resp := response.New()
		if err := h.fallback.Handle(ctx, req, resp); err != nil {
			log.Error("default handler failed", "error", err)
			return httputil.Errorf(http.StatusBadGateway, "handler_error", "%v", err).Write(w)
		}
		return resp.Write(w)
	}

	return httputil.Errorf(http.StatusNotFound, "no_match",
		"no rule matched %s %s", req.Method, req.URI()).Write(w)
}

// HealthResponse is the body of HealthPath.
type HealthResponse struct {
	Status    string    `json:"status"`
	Rules     int       `json:"rules"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *Handler) serveHealth(w http.ResponseWriter) {
	httputil.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Rules:     h.Registry().Len(),
		Timestamp: time.Now().UTC(),
	})
}
