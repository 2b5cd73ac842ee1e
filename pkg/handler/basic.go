package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/getmockd/stubd/pkg/overlay"
	"github.com/getmockd/stubd/pkg/request"
	"github.com/getmockd/stubd/pkg/response"
)

type statusHandler struct {
	code int
}

// Status sets the status code.
func Status(code int) Handler {
	return &statusHandler{code: code}
}

func (h *statusHandler) Handle(_ context.Context, _ *request.Request, resp *response.Response) error {
	resp.StatusCode = h.code
	return nil
}

func (h *statusHandler) Apply(overlay.Overlay) Handler { return h }
func (h *statusHandler) String() string                { return fmt.Sprintf("status(%d)", h.code) }

type headerHandler struct {
	name  string
	value string
}

// Header sets a response header, replacing earlier values.
func Header(name, value string) Handler {
	return &headerHandler{name: http.CanonicalHeaderKey(name), value: value}
}

func (h *headerHandler) Handle(_ context.Context, _ *request.Request, resp *response.Response) error {
	ensureHeader(resp).Set(h.name, h.value)
	return nil
}

func (h *headerHandler) Apply(overlay.Overlay) Handler { return h }
func (h *headerHandler) String() string                { return fmt.Sprintf("header(%q, %q)", h.name, h.value) }

type cookieHandler struct {
	cookie http.Cookie
}

// Cookie adds a Set-Cookie header. Path defaults to "/".
func Cookie(c http.Cookie) Handler {
	if c.Path == "" {
		c.Path = "/"
	}
	return &cookieHandler{cookie: c}
}

func (h *cookieHandler) Handle(_ context.Context, _ *request.Request, resp *response.Response) error {
	ensureHeader(resp).Add("Set-Cookie", h.cookie.String())
	return nil
}

func (h *cookieHandler) Apply(overlay.Overlay) Handler { return h }
func (h *cookieHandler) String() string                { return fmt.Sprintf("cookie(%q)", h.cookie.Name) }

type textHandler struct {
	body []byte
}

// Text sets the body. The content type is sniffed unless a Header handler
// set one earlier.
func Text(body string) Handler {
	return &textHandler{body: []byte(body)}
}

func (h *textHandler) Handle(_ context.Context, _ *request.Request, resp *response.Response) error {
	resp.SetBody(h.body)
	return nil
}

func (h *textHandler) Apply(overlay.Overlay) Handler { return h }
func (h *textHandler) String() string                { return fmt.Sprintf("text(%d bytes)", len(h.body)) }

type jsonHandler struct {
	body []byte
}

// JSON encodes v once and sets it as an application/json body.
func JSON(v interface{}) (Handler, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding JSON body: %w", err)
	}
	return &jsonHandler{body: body}, nil
}

func (h *jsonHandler) Handle(_ context.Context, _ *request.Request, resp *response.Response) error {
	ensureHeader(resp).Set("Content-Type", "application/json")
	resp.SetBody(h.body)
	return nil
}

func (h *jsonHandler) Apply(overlay.Overlay) Handler { return h }
func (h *jsonHandler) String() string                { return fmt.Sprintf("json(%s)", h.body) }

func ensureHeader(resp *response.Response) http.Header {
	if resp.Header == nil {
		resp.Header = http.Header{}
	}
	return resp.Header
}
