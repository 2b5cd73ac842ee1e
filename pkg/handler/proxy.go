package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker"

	"github.com/getmockd/stubd/pkg/logging"
	"github.com/getmockd/stubd/pkg/overlay"
	"github.com/getmockd/stubd/pkg/request"
	"github.com/getmockd/stubd/pkg/response"
)

// MaxProxyBodySize caps the upstream body read by a proxy handler (10MB).
const MaxProxyBodySize = 10 << 20

// ErrUpstreamTooLarge is returned when an upstream body exceeds
// MaxProxyBodySize.
var ErrUpstreamTooLarge = errors.New("upstream response too large")

// ProxyConfig configures a proxy handler.
type ProxyConfig struct {
	// URL is the upstream base, e.g. "http://backend:8080/api".
	URL string

	// From is an optional local base path. When set, the part of the
	// request path below From is appended to URL; otherwise requests go to
	// URL itself. From follows uri overlays.
	From string

	// Timeout bounds a single upstream attempt. Defaults to 30s.
	Timeout time.Duration

	// Retries is the number of retries after a failed attempt.
	Retries int

	// TripAfter opens the circuit after that many consecutive failures.
	// Defaults to 5.
	TripAfter uint32

	// OpenTimeout is how long the circuit stays open. Defaults to 30s.
	OpenTimeout time.Duration

	Logger *slog.Logger
}

type proxyHandler struct {
	cfg    ProxyConfig
	target *url.URL
	client *http.Client
}

// Proxy forwards the request upstream and copies the upstream response.
// Upstream 5xx responses are passed through but count against the circuit
// breaker; transport errors and an open circuit are returned as errors.
func Proxy(cfg ProxyConfig) (Handler, error) {
	target, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy url %q: %w", cfg.URL, err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, fmt.Errorf("invalid proxy url %q: scheme must be http or https", cfg.URL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.TripAfter == 0 {
		cfg.TripAfter = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	return &proxyHandler{cfg: cfg, target: target, client: newProxyClient(cfg)}, nil
}

func newProxyClient(cfg ProxyConfig) *http.Client {
	logger := cfg.Logger.With("upstream", cfg.URL)

	rt := &circuitRoundTripper{
		base: http.DefaultTransport,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    cfg.URL,
			Timeout: cfg.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.TripAfter
			},
			OnStateChange: func(_ string, _, to gobreaker.State) {
				switch to {
				case gobreaker.StateOpen:
					logger.Error("circuit opened")
				case gobreaker.StateHalfOpen:
					logger.Warn("circuit half open")
				case gobreaker.StateClosed:
					logger.Info("circuit closed")
				}
			},
		}),
	}

	rc := retryablehttp.Client{
		HTTPClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: rt,
			// Redirects are the client's business.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		Logger:       logger,
		RetryWaitMin: 50 * time.Millisecond,
		RetryWaitMax: time.Second,
		RetryMax:     cfg.Retries,
		CheckRetry:   retryablehttp.DefaultRetryPolicy,
		Backoff:      retryablehttp.DefaultBackoff,
		ErrorHandler: retryablehttp.PassthroughErrorHandler,
	}
	return rc.StandardClient()
}

func (h *proxyHandler) Handle(ctx context.Context, req *request.Request, resp *response.Response) error {
	target := h.targetURL(req)

	out, err := http.NewRequestWithContext(ctx, req.Method, target, bytes.NewReader(req.Body))
	if err != nil {
		return fmt.Errorf("proxy %s: %w", target, err)
	}
	copyHeaders(out.Header, req.Header)
	removeHopByHopHeaders(out.Header)
	out.Header.Del("Host")
	if req.RemoteAddr != "" {
		out.Header.Set("X-Forwarded-For", req.RemoteAddr)
	}
	if host := req.Header.Get("Host"); host != "" {
		out.Header.Set("X-Forwarded-Host", host)
	}

	upstream, err := h.client.Do(out)
	if err != nil {
		return fmt.Errorf("proxy %s: %w", target, err)
	}
	defer func() { _ = upstream.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(upstream.Body, MaxProxyBodySize+1))
	if err != nil {
		return fmt.Errorf("proxy %s: reading body: %w", target, err)
	}
	if len(body) > MaxProxyBodySize {
		return fmt.Errorf("proxy %s: %w", target, ErrUpstreamTooLarge)
	}

	header := ensureHeader(resp)
	copyHeaders(header, upstream.Header)
	removeHopByHopHeaders(header)
	header.Del("Content-Length")
	resp.StatusCode = upstream.StatusCode
	resp.Body = body
	return nil
}

// targetURL maps the request onto the upstream base.
func (h *proxyHandler) targetURL(req *request.Request) string {
	u := *h.target
	if h.cfg.From != "" {
		rest := strings.TrimPrefix(req.Path, strings.TrimSuffix(h.cfg.From, "/"))
		u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(rest, "/")
		u.RawPath = ""
	}
	if req.RawQuery != "" {
		if u.RawQuery == "" {
			u.RawQuery = req.RawQuery
		} else {
			u.RawQuery += "&" + req.RawQuery
		}
	}
	return u.String()
}

// Apply moves the local base under a uri overlay. The upstream client and
// its circuit are shared with the original.
func (h *proxyHandler) Apply(o overlay.Overlay) Handler {
	if h.cfg.From == "" || !o.IsFor(overlay.ScopeURI) {
		return h
	}
	clone := *h
	clone.cfg.From = o.Apply(h.cfg.From)
	return &clone
}

func (h *proxyHandler) String() string {
	if h.cfg.From != "" {
		return fmt.Sprintf("proxy(from=%q, to=%q)", h.cfg.From, h.cfg.URL)
	}
	return fmt.Sprintf("proxy(%q)", h.cfg.URL)
}

// From returns the local base path.
func (h *proxyHandler) From() string { return h.cfg.From }

// upstreamStatusError marks a 5xx answer as a circuit failure while still
// handing the response back to the caller.
type upstreamStatusError struct {
	code int
}

func (e *upstreamStatusError) Error() string {
	return fmt.Sprintf("upstream status %d", e.code)
}

type circuitRoundTripper struct {
	base http.RoundTripper
	cb   *gobreaker.CircuitBreaker
}

func (rt *circuitRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	v, err := rt.cb.Execute(func() (interface{}, error) {
		resp, err := rt.base.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, &upstreamStatusError{code: resp.StatusCode}
		}
		return resp, nil
	})
	var statusErr *upstreamStatusError
	if errors.As(err, &statusErr) {
		return v.(*http.Response), nil
	}
	if err != nil {
		return nil, err
	}
	return v.(*http.Response), nil
}

func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}

var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"TE",
	"Trailers",
	"Transfer-Encoding",
	"Upgrade",
}

func removeHopByHopHeaders(h http.Header) {
	for _, header := range hopByHopHeaders {
		h.Del(header)
	}
}
