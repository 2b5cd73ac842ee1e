package request

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/getmockd/stubd/internal/matching"
)

// Field selects one string value out of a request. It is shared by field
// matchers and by template variable bindings.
type Field struct {
	name    string
	extract func(*Request) (string, bool)
}

// Name describes the selector, e.g. `header("X-Token")`.
func (f Field) Name() string { return f.name }

// Extract returns the selected value and whether it was present.
func (f Field) Extract(r *Request) (string, bool) {
	if r == nil || f.extract == nil {
		return "", false
	}
	return f.extract(r)
}

// MethodField selects the request method.
func MethodField() Field {
	return Field{name: "method", extract: func(r *Request) (string, bool) {
		return r.Method, true
	}}
}

// PathField selects the request path.
func PathField() Field {
	return Field{name: "path", extract: func(r *Request) (string, bool) {
		return r.Path, true
	}}
}

// URIField selects the path plus raw query string.
func URIField() Field {
	return Field{name: "uri", extract: func(r *Request) (string, bool) {
		return r.URI(), true
	}}
}

// HeaderField selects the first value of a header (case-insensitive name).
func HeaderField(name string) Field {
	return Field{name: fmt.Sprintf("header(%q)", name), extract: func(r *Request) (string, bool) {
		values := r.Header.Values(name)
		if len(values) == 0 {
			return "", false
		}
		return values[0], true
	}}
}

// QueryField selects the first value of a query parameter.
func QueryField(name string) Field {
	return Field{name: fmt.Sprintf("query(%q)", name), extract: func(r *Request) (string, bool) {
		values, ok := r.Query[name]
		if !ok || len(values) == 0 {
			return "", ok
		}
		return values[0], true
	}}
}

// CookieField selects a cookie value.
func CookieField(name string) Field {
	return Field{name: fmt.Sprintf("cookie(%q)", name), extract: func(r *Request) (string, bool) {
		v, ok := r.Cookies[name]
		return v, ok
	}}
}

// FormField selects a value from an urlencoded form body.
func FormField(name string) Field {
	return Field{name: fmt.Sprintf("form(%q)", name), extract: func(r *Request) (string, bool) {
		values, ok := r.form[name]
		if !ok || len(values) == 0 {
			return "", false
		}
		return values[0], true
	}}
}

// BodyField selects the whole body as text.
func BodyField() Field {
	return Field{name: "body", extract: func(r *Request) (string, bool) {
		return string(r.Body), len(r.Body) > 0
	}}
}

// JSONPathField selects the first value at a JSONPath in a JSON body.
// Strings are returned verbatim, anything else as compact JSON.
func JSONPathField(path string) Field {
	return Field{name: fmt.Sprintf("jsonPath(%q)", path), extract: func(r *Request) (string, bool) {
		v, ok := matching.ExtractJSONPath(path, r.Body)
		if !ok {
			return "", false
		}
		return stringify(v), true
	}}
}

// XPathField selects the text or attribute at an XPath in an XML body.
func XPathField(xpath string) Field {
	return Field{name: fmt.Sprintf("xpath(%q)", xpath), extract: func(r *Request) (string, bool) {
		return matching.ExtractXPath(matching.ParseXML(r.Body), xpath)
	}}
}

// ParseField builds a Field from its config form: a selector kind
// ("header", "query", "cookie", "form", "jsonPath", "xpath", "method",
// "path", "uri", "body") and an argument where the kind needs one.
func ParseField(kind, arg string) (Field, error) {
	switch strings.ToLower(kind) {
	case "method":
		return MethodField(), nil
	case "path":
		return PathField(), nil
	case "uri":
		return URIField(), nil
	case "body":
		return BodyField(), nil
	}

	if arg == "" {
		return Field{}, fmt.Errorf("field %q requires an argument", kind)
	}

	switch strings.ToLower(kind) {
	case "header":
		return HeaderField(arg), nil
	case "query":
		return QueryField(arg), nil
	case "cookie":
		return CookieField(arg), nil
	case "form":
		return FormField(arg), nil
	case "jsonpath":
		if err := matching.ValidateJSONPathExpression(arg); err != nil {
			return Field{}, err
		}
		return JSONPathField(arg), nil
	case "xpath":
		if err := matching.ValidateXPath(arg); err != nil {
			return Field{}, fmt.Errorf("invalid XPath %q: %w", arg, err)
		}
		return XPathField(arg), nil
	default:
		return Field{}, fmt.Errorf("unknown field kind %q", kind)
	}
}

func stringify(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
