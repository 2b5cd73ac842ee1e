// Package request defines the parsed request value that rules are evaluated
// against, and the field selectors used by matchers and templates to read it.
package request

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// MaxBodySize is the default limit applied by FromHTTP (10MB).
const MaxBodySize = 10 << 20

// ErrBodyTooLarge is returned by FromHTTP when the body exceeds the limit.
var ErrBodyTooLarge = errors.New("request body too large")

// Request is an inbound HTTP request with its body fully read.
// A Request is not modified after construction and may be shared between
// goroutines.
type Request struct {
	Method     string
	Path       string
	RawQuery   string
	Header     http.Header
	Query      url.Values
	Cookies    map[string]string
	Body       []byte
	RemoteAddr string
	Proto      string

	form url.Values
}

// New builds a Request from its parts. target may carry a query string
// ("/users?page=2"). Nil headers are replaced by an empty header map.
func New(method, target string, header http.Header, body []byte) *Request {
	if header == nil {
		header = http.Header{}
	}
	path, rawQuery, _ := strings.Cut(target, "?")
	query, _ := url.ParseQuery(rawQuery)
	r := &Request{
		Method:   strings.ToUpper(method),
		Path:     path,
		RawQuery: rawQuery,
		Header:   header,
		Query:    query,
		Body:     body,
		Proto:    "HTTP/1.1",
	}
	r.Cookies = parseCookies(header)
	r.form = parseForm(header, body)
	return r
}

// FromHTTP reads r into a Request. At most limit bytes of body are read;
// a larger body yields ErrBodyTooLarge. A limit <= 0 means MaxBodySize.
func FromHTTP(r *http.Request, limit int64) (*Request, error) {
	if limit <= 0 {
		limit = MaxBodySize
	}

	var body []byte
	if r.Body != nil {
		data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
		if err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				return nil, ErrBodyTooLarge
			}
			return nil, fmt.Errorf("reading body: %w", err)
		}
		if int64(len(data)) > limit {
			return nil, ErrBodyTooLarge
		}
		body = data
		// Leave the body readable for anything downstream of the engine.
		r.Body = io.NopCloser(bytes.NewReader(body))
	}

	header := r.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	if r.Host != "" && header.Get("Host") == "" {
		header.Set("Host", r.Host)
	}

	req := &Request{
		Method:     r.Method,
		Path:       r.URL.Path,
		RawQuery:   r.URL.RawQuery,
		Header:     header,
		Query:      r.URL.Query(),
		Body:       body,
		RemoteAddr: r.RemoteAddr,
		Proto:      r.Proto,
	}
	req.Cookies = parseCookies(header)
	req.form = parseForm(header, body)
	return req, nil
}

// URI returns the path plus the raw query, as seen on the request line.
func (r *Request) URI() string {
	if r.RawQuery == "" {
		return r.Path
	}
	return r.Path + "?" + r.RawQuery
}

// Form returns the parsed urlencoded form body, or nil when the request has
// none.
func (r *Request) Form() url.Values {
	return r.form
}

func parseCookies(header http.Header) map[string]string {
	raw := header.Values("Cookie")
	if len(raw) == 0 {
		return nil
	}
	hr := http.Request{Header: http.Header{"Cookie": raw}}
	cookies := make(map[string]string)
	for _, c := range hr.Cookies() {
		cookies[c.Name] = c.Value
	}
	return cookies
}

func parseForm(header http.Header, body []byte) url.Values {
	ct := header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(ct), "application/x-www-form-urlencoded") || len(body) == 0 {
		return nil
	}
	form, err := url.ParseQuery(string(body))
	if err != nil {
		return nil
	}
	return form
}
