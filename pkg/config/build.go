package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"github.com/getmockd/stubd/pkg/handler"
	"github.com/getmockd/stubd/pkg/logging"
	"github.com/getmockd/stubd/pkg/matcher"
	"github.com/getmockd/stubd/pkg/overlay"
	"github.com/getmockd/stubd/pkg/registry"
	"github.com/getmockd/stubd/pkg/request"
	"github.com/getmockd/stubd/pkg/rule"
	"github.com/getmockd/stubd/pkg/template"
)

// DefaultRuleName names the rule built from a document's default response.
const DefaultRuleName = "default"

// Target receives built rules. *registry.Registry and *registry.Group
// implement it.
type Target interface {
	Request(m matcher.Matcher, opts ...rule.Option) *rule.Rule
	Group(overlays ...overlay.Overlay) *registry.Group
}

// BuildOptions configures Build.
type BuildOptions struct {
	// Templates renders template responses. Sharing one engine shares
	// named sequences between rules. Defaults to a new engine.
	Templates *template.Engine
	Logger    *slog.Logger
}

// Build registers the rules of doc, then those of its includes, into
// target. Each document's context and fileRoot become the overlays of a
// group; fileRoot defaults to the document's directory. A default response
// on doc is registered last as an any-request rule that ignores context.
func Build(doc *Document, target Target, opts BuildOptions) error {
	b := &builder{templates: opts.Templates, log: opts.Logger}
	if b.templates == nil {
		b.templates = template.New()
	}
	if b.log == nil {
		b.log = logging.Nop()
	}

	if err := b.document(doc, target); err != nil {
		return err
	}
	if doc.Default != nil {
		g := target.Group(overlay.FileRoot(fileRoot(doc)))
		h, err := b.handler(*doc.Default)
		if err != nil {
			return fmt.Errorf("%sdefault: %w", docPrefix(doc), err)
		}
		if err := g.Request(matcher.Any(), rule.WithName(DefaultRuleName)).Response(h); err != nil {
			return fmt.Errorf("%sdefault: %w", docPrefix(doc), err)
		}
	}
	return nil
}

// BuildRegistry builds doc into a new registry.
func BuildRegistry(doc *Document, opts BuildOptions, regOpts ...registry.Option) (*registry.Registry, error) {
	reg := registry.New(regOpts...)
	if err := Build(doc, reg, opts); err != nil {
		return nil, err
	}
	return reg, nil
}

type builder struct {
	templates *template.Engine
	log       *slog.Logger
}

func docPrefix(doc *Document) string {
	if doc.Path == "" {
		return ""
	}
	return doc.Path + ": "
}

// fileRoot resolves the document's fileRoot against its directory.
func fileRoot(doc *Document) string {
	root := doc.FileRoot
	if doc.Path != "" && !filepath.IsAbs(root) {
		root = filepath.Join(filepath.Dir(doc.Path), root)
	}
	return root
}

func (b *builder) document(doc *Document, target Target) error {
	var overlays []overlay.Overlay
	if doc.Context != "" {
		overlays = append(overlays, overlay.Context(doc.Context))
	}
	if root := fileRoot(doc); root != "" {
		overlays = append(overlays, overlay.FileRoot(root))
	}

	g := target.Group(overlays...)
	if err := b.entries(doc.Rules, g, "rules"); err != nil {
		return fmt.Errorf("%s%w", docPrefix(doc), err)
	}
	for _, inc := range doc.Includes {
		if inc.Default != nil {
			b.log.Warn("default response in an included file is ignored", "file", inc.Path)
		}
		if err := b.document(inc, g); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) entries(entries []Entry, g *registry.Group, path string) error {
	for i, e := range entries {
		where := fmt.Sprintf("%s[%d]", path, i)

		if e.Group != nil {
			var overlays []overlay.Overlay
			if e.Group.Context != "" {
				overlays = append(overlays, overlay.Context(e.Group.Context))
			}
			if e.Group.FileRoot != "" {
				overlays = append(overlays, overlay.FileRoot(e.Group.FileRoot))
			}
			if err := b.entries(e.Group.Rules, g.Group(overlays...), where+".group.rules"); err != nil {
				return err
			}
			continue
		}

		if e.Response == nil {
			return fmt.Errorf("%s: response is required", where)
		}
		m := matcher.Any()
		if e.Request != nil {
			var err error
			if m, err = b.matcher(*e.Request); err != nil {
				return fmt.Errorf("%s.request: %w", where, err)
			}
		}
		h, err := b.handler(*e.Response)
		if err != nil {
			return fmt.Errorf("%s.response: %w", where, err)
		}

		var opts []rule.Option
		if e.ID != "" {
			opts = append(opts, rule.WithID(e.ID))
		}
		if e.Name != "" {
			opts = append(opts, rule.WithName(e.Name))
		}
		if err := g.Request(m, opts...).Response(h); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
	}
	return nil
}

func (b *builder) matcher(spec RequestSpec) (matcher.Matcher, error) {
	var ms []matcher.Matcher
	add := func(m matcher.Matcher, err error) error {
		if err != nil {
			return err
		}
		ms = append(ms, m)
		return nil
	}

	if spec.Method != "" {
		ms = append(ms, matcher.Method(spec.Method))
	}
	if spec.URI != "" {
		ms = append(ms, matcher.URI(spec.URI))
	}
	if spec.URIRegex != "" {
		if err := add(matcher.URIRegex(spec.URIRegex)); err != nil {
			return nil, fmt.Errorf("uriRegex: %w", err)
		}
	}
	if spec.URIGlob != "" {
		if err := add(matcher.URIGlob(spec.URIGlob)); err != nil {
			return nil, fmt.Errorf("uriGlob: %w", err)
		}
	}
	for _, name := range sortedKeys(spec.Headers) {
		value := spec.Headers[name]
		if strings.Contains(value, "*") {
			ms = append(ms, matcher.HeaderPattern(name, value))
		} else {
			ms = append(ms, matcher.Header(name, value))
		}
	}
	for _, name := range sortedKeys(spec.Query) {
		ms = append(ms, matcher.Query(name, spec.Query[name]))
	}
	for _, name := range sortedKeys(spec.Cookies) {
		ms = append(ms, matcher.Cookie(name, spec.Cookies[name]))
	}
	for _, name := range sortedKeys(spec.Form) {
		ms = append(ms, matcher.Form(name, spec.Form[name]))
	}
	if spec.Body != nil {
		ms = append(ms, matcher.Body(*spec.Body))
	}
	if spec.BodyContains != "" {
		ms = append(ms, matcher.BodyContains(spec.BodyContains))
	}
	if spec.BodyPattern != "" {
		if err := add(matcher.BodyPattern(spec.BodyPattern)); err != nil {
			return nil, fmt.Errorf("bodyPattern: %w", err)
		}
	}
	if spec.JSON != nil {
		if err := add(matcher.JSONValue(spec.JSON)); err != nil {
			return nil, fmt.Errorf("json: %w", err)
		}
	}
	if len(spec.JSONPath) > 0 {
		if err := add(matcher.JSONPath(spec.JSONPath)); err != nil {
			return nil, fmt.Errorf("jsonPath: %w", err)
		}
	}
	if len(spec.XPath) > 0 {
		if err := add(matcher.XPath(spec.XPath)); err != nil {
			return nil, fmt.Errorf("xpath: %w", err)
		}
	}
	if spec.Expr != "" {
		if err := add(matcher.Expr(spec.Expr)); err != nil {
			return nil, fmt.Errorf("expr: %w", err)
		}
	}
	for i, f := range spec.Fields {
		field, err := parseFieldRef(f.Field)
		if err == nil {
			err = add(matcher.Field(field, matcher.Operator(f.Op), f.Value))
		}
		if err != nil {
			return nil, fmt.Errorf("fields[%d]: %w", i, err)
		}
	}
	if spec.Not != nil {
		sub, err := b.matcher(*spec.Not)
		if err != nil {
			return nil, fmt.Errorf("not: %w", err)
		}
		ms = append(ms, matcher.Not(sub))
	}
	if len(spec.And) > 0 {
		subs, err := b.matchers(spec.And, "and")
		if err != nil {
			return nil, err
		}
		ms = append(ms, matcher.And(subs...))
	}
	if len(spec.Or) > 0 {
		subs, err := b.matchers(spec.Or, "or")
		if err != nil {
			return nil, err
		}
		ms = append(ms, matcher.Or(subs...))
	}

	switch len(ms) {
	case 0:
		return matcher.Any(), nil
	case 1:
		return ms[0], nil
	default:
		return matcher.And(ms...), nil
	}
}

func (b *builder) matchers(specs []RequestSpec, key string) ([]matcher.Matcher, error) {
	out := make([]matcher.Matcher, 0, len(specs))
	for i, spec := range specs {
		m, err := b.matcher(spec)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", key, i, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (b *builder) handler(spec ResponseSpec) (handler.Handler, error) {
	var hs []handler.Handler

	if spec.Latency > 0 {
		hs = append(hs, handler.Latency(spec.Latency))
	}
	if spec.Status != 0 {
		hs = append(hs, handler.Status(spec.Status))
	}
	for _, name := range sortedKeys(spec.Headers) {
		hs = append(hs, handler.Header(name, spec.Headers[name]))
	}
	for _, c := range spec.Cookies {
		hs = append(hs, handler.Cookie(http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			MaxAge:   c.MaxAge,
			HttpOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}))
	}

	if err := checkSingleBody(spec); err != nil {
		return nil, err
	}
	vars, err := parseVars(spec.Vars)
	if err != nil {
		return nil, err
	}
	if len(vars) > 0 && spec.Template == "" && spec.TemplateFile == "" {
		return nil, errors.New("vars require template or templateFile")
	}

	var body handler.Handler
	switch {
	case spec.Text != nil:
		body = handler.Text(*spec.Text)
	case spec.JSON != nil:
		if body, err = handler.JSON(spec.JSON); err != nil {
			return nil, fmt.Errorf("json: %w", err)
		}
	case spec.File != "":
		body = handler.File(spec.File)
	case spec.Template != "":
		body = handler.Template(b.templates, spec.Template, vars)
	case spec.TemplateFile != "":
		body = handler.TemplateFile(b.templates, spec.TemplateFile, vars)
	case spec.Proxy != nil:
		if body, err = handler.Proxy(handler.ProxyConfig{
			URL:         spec.Proxy.To,
			From:        spec.Proxy.From,
			Timeout:     spec.Proxy.Timeout,
			Retries:     spec.Proxy.Retries,
			TripAfter:   spec.Proxy.TripAfter,
			OpenTimeout: spec.Proxy.OpenTimeout,
			Logger:      b.log,
		}); err != nil {
			return nil, fmt.Errorf("proxy: %w", err)
		}
	case len(spec.Seq) > 0:
		steps, err := b.handlers(spec.Seq, "seq")
		if err != nil {
			return nil, err
		}
		body = handler.Seq(steps...)
	case len(spec.Cycle) > 0:
		steps, err := b.handlers(spec.Cycle, "cycle")
		if err != nil {
			return nil, err
		}
		body = handler.Cycle(steps...)
	}
	if body != nil {
		hs = append(hs, body)
	}

	return handler.And(hs...), nil
}

func (b *builder) handlers(specs []ResponseSpec, key string) ([]handler.Handler, error) {
	out := make([]handler.Handler, 0, len(specs))
	for i, spec := range specs {
		h, err := b.handler(spec)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", key, i, err)
		}
		out = append(out, h)
	}
	return out, nil
}

func checkSingleBody(spec ResponseSpec) error {
	var set []string
	if spec.Text != nil {
		set = append(set, "text")
	}
	if spec.JSON != nil {
		set = append(set, "json")
	}
	if spec.File != "" {
		set = append(set, "file")
	}
	if spec.Template != "" {
		set = append(set, "template")
	}
	if spec.TemplateFile != "" {
		set = append(set, "templateFile")
	}
	if spec.Proxy != nil {
		set = append(set, "proxy")
	}
	if len(spec.Seq) > 0 {
		set = append(set, "seq")
	}
	if len(spec.Cycle) > 0 {
		set = append(set, "cycle")
	}
	if len(set) > 1 {
		return fmt.Errorf("only one body source allowed, got %s", strings.Join(set, ", "))
	}
	return nil
}

func parseVars(specs map[string]FieldRef) (handler.Vars, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	vars := make(handler.Vars, len(specs))
	for _, name := range sortedKeys(specs) {
		field, err := parseFieldRef(specs[name])
		if err != nil {
			return nil, fmt.Errorf("vars.%s: %w", name, err)
		}
		vars[name] = field
	}
	return vars, nil
}

func parseFieldRef(ref FieldRef) (request.Field, error) {
	if len(ref) != 1 {
		return request.Field{}, fmt.Errorf("field needs exactly one selector, got %d", len(ref))
	}
	var kind, arg string
	for kind, arg = range ref {
	}
	return request.ParseField(kind, arg)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
