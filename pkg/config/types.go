package config

import "time"

// Version is the only rule-set format version.
const Version = "1"

// Document is one parsed rule-set file.
type Document struct {
	Version  string   `yaml:"version"`
	Context  string   `yaml:"context,omitempty"`
	FileRoot string   `yaml:"fileRoot,omitempty"`
	Files    []string `yaml:"files,omitempty"`
	Rules    []Entry  `yaml:"rules,omitempty"`

	// Default answers requests no rule matches. Only honored on the root
	// document.
	Default *ResponseSpec `yaml:"default,omitempty"`

	// Path is the file the document was read from, Includes the documents
	// its Files patterns expanded to, in order.
	Path     string      `yaml:"-"`
	Includes []*Document `yaml:"-"`
}

// Entry is either a rule (Request/Response) or a Group.
type Entry struct {
	ID       string        `yaml:"id,omitempty"`
	Name     string        `yaml:"name,omitempty"`
	Request  *RequestSpec  `yaml:"request,omitempty"`
	Response *ResponseSpec `yaml:"response,omitempty"`
	Group    *GroupSpec    `yaml:"group,omitempty"`
}

// GroupSpec scopes nested rules under extra overlays.
type GroupSpec struct {
	Context  string  `yaml:"context,omitempty"`
	FileRoot string  `yaml:"fileRoot,omitempty"`
	Rules    []Entry `yaml:"rules"`
}

// RequestSpec describes a matcher. All set fields must match.
type RequestSpec struct {
	Method       string                 `yaml:"method,omitempty"`
	URI          string                 `yaml:"uri,omitempty"`
	URIRegex     string                 `yaml:"uriRegex,omitempty"`
	URIGlob      string                 `yaml:"uriGlob,omitempty"`
	Headers      map[string]string      `yaml:"headers,omitempty"`
	Query        map[string]string      `yaml:"query,omitempty"`
	Cookies      map[string]string      `yaml:"cookies,omitempty"`
	Form         map[string]string      `yaml:"form,omitempty"`
	Body         *string                `yaml:"body,omitempty"`
	BodyContains string                 `yaml:"bodyContains,omitempty"`
	BodyPattern  string                 `yaml:"bodyPattern,omitempty"`
	JSON         interface{}            `yaml:"json,omitempty"`
	JSONPath     map[string]interface{} `yaml:"jsonPath,omitempty"`
	XPath        map[string]string      `yaml:"xpath,omitempty"`
	Expr         string                 `yaml:"expr,omitempty"`
	Fields       []FieldSpec            `yaml:"fields,omitempty"`

	Not *RequestSpec  `yaml:"not,omitempty"`
	And []RequestSpec `yaml:"and,omitempty"`
	Or  []RequestSpec `yaml:"or,omitempty"`
}

// FieldSpec is a generic field condition:
//
//	{field: {header: X-Id}, op: regex, value: "^[0-9]+$"}
type FieldSpec struct {
	Field FieldRef `yaml:"field"`
	Op    string   `yaml:"op"`
	Value string   `yaml:"value,omitempty"`
}

// FieldRef names a request field as a single kind/argument pair, e.g.
// {jsonPath: "$.user.id"} or {method: ""}.
type FieldRef map[string]string

// ResponseSpec describes a handler chain. Latency runs first, then status,
// headers and cookies, then the body source. At most one body source may
// be set.
type ResponseSpec struct {
	Latency time.Duration       `yaml:"latency,omitempty"`
	Status  int                 `yaml:"status,omitempty"`
	Headers map[string]string   `yaml:"headers,omitempty"`
	Cookies []CookieSpec        `yaml:"cookies,omitempty"`
	Vars    map[string]FieldRef `yaml:"vars,omitempty"`

	Text         *string        `yaml:"text,omitempty"`
	JSON         interface{}    `yaml:"json,omitempty"`
	File         string         `yaml:"file,omitempty"`
	Template     string         `yaml:"template,omitempty"`
	TemplateFile string         `yaml:"templateFile,omitempty"`
	Proxy        *ProxySpec     `yaml:"proxy,omitempty"`
	Seq          []ResponseSpec `yaml:"seq,omitempty"`
	Cycle        []ResponseSpec `yaml:"cycle,omitempty"`
}

// CookieSpec is a Set-Cookie response cookie.
type CookieSpec struct {
	Name     string `yaml:"name"`
	Value    string `yaml:"value"`
	Path     string `yaml:"path,omitempty"`
	Domain   string `yaml:"domain,omitempty"`
	MaxAge   int    `yaml:"maxAge,omitempty"`
	HTTPOnly bool   `yaml:"httpOnly,omitempty"`
	Secure   bool   `yaml:"secure,omitempty"`
}

// ProxySpec forwards to an upstream. With From set, the request path below
// From is appended to To; otherwise every request goes to To itself.
type ProxySpec struct {
	To          string        `yaml:"to"`
	From        string        `yaml:"from,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
	Retries     int           `yaml:"retries,omitempty"`
	TripAfter   uint32        `yaml:"tripAfter,omitempty"`
	OpenTimeout time.Duration `yaml:"openTimeout,omitempty"`
}

// AllFiles returns the path of d and of every document it includes,
// depth first.
func (d *Document) AllFiles() []string {
	var out []string
	var walk func(*Document)
	walk = func(doc *Document) {
		if doc.Path != "" {
			out = append(out, doc.Path)
		}
		for _, inc := range doc.Includes {
			walk(inc)
		}
	}
	walk(d)
	return out
}
