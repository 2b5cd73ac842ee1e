// Package response defines the structured response that handlers build and
// the HTTP boundary writes out.
package response

import (
	"net/http"
	"strconv"
	"strings"
)

// Response is built up by handlers. A zero StatusCode is written as 200.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// New returns an empty 200 response.
func New() *Response {
	return &Response{StatusCode: http.StatusOK, Header: http.Header{}}
}

// Status returns the effective status code.
func (r *Response) Status() int {
	if r.StatusCode == 0 {
		return http.StatusOK
	}
	return r.StatusCode
}

// SetBody replaces the body. A Content-Type is sniffed when none was set.
func (r *Response) SetBody(body []byte) {
	r.Body = body
	if r.Header == nil {
		r.Header = http.Header{}
	}
	if r.Header.Get("Content-Type") == "" {
		r.Header.Set("Content-Type", DetectContentType(body))
	}
}

// Clone returns a deep copy.
func (r *Response) Clone() *Response {
	c := &Response{StatusCode: r.StatusCode, Header: r.Header.Clone()}
	if r.Body != nil {
		c.Body = append([]byte(nil), r.Body...)
	}
	return c
}

// Write sends the response to w and returns the status code written.
func (r *Response) Write(w http.ResponseWriter) int {
	for name, values := range r.Header {
		w.Header()[name] = append([]string(nil), values...)
	}
	if len(r.Body) > 0 && w.Header().Get("Content-Length") == "" {
		w.Header().Set("Content-Length", strconv.Itoa(len(r.Body)))
	}
	status := r.Status()
	w.WriteHeader(status)
	if len(r.Body) > 0 {
		_, _ = w.Write(r.Body)
	}
	return status
}

// DetectContentType guesses a content type from the body: JSON, XML or
// http.DetectContentType's answer.
func DetectContentType(body []byte) string {
	s := strings.TrimSpace(string(body))
	switch {
	case s == "":
		return "text/plain; charset=utf-8"
	case looksLikeJSON(s):
		return "application/json"
	case strings.HasPrefix(s, "<?xml"):
		return "application/xml"
	default:
		return http.DetectContentType(body)
	}
}

func looksLikeJSON(s string) bool {
	return (strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")) ||
		(strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]"))
}
