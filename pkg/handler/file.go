package handler

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/getmockd/stubd/pkg/overlay"
	"github.com/getmockd/stubd/pkg/request"
	"github.com/getmockd/stubd/pkg/response"
	"github.com/getmockd/stubd/pkg/template"
)

// The handlers in this file understand overlay.ScopeFile: a file overlay
// rewrites their file location.

type fileHandler struct {
	path string
}

// File serves the content of a file read at request time. The content type
// is derived from the extension unless already set.
func File(path string) Handler {
	return &fileHandler{path: path}
}

func (h *fileHandler) Handle(_ context.Context, _ *request.Request, resp *response.Response) error {
	data, err := os.ReadFile(h.path)
	if err != nil {
		return fmt.Errorf("reading body file: %w", err)
	}
	setTypeByExtension(resp, h.path)
	resp.SetBody(data)
	return nil
}

func (h *fileHandler) Apply(o overlay.Overlay) Handler {
	if !o.IsFor(overlay.ScopeFile) {
		return h
	}
	return &fileHandler{path: o.Apply(h.path)}
}

func (h *fileHandler) String() string { return fmt.Sprintf("file(%q)", h.path) }

// Path returns the file location.
func (h *fileHandler) Path() string { return h.path }

// Vars binds template variable names to request fields.
type Vars map[string]request.Field

func (v Vars) extract(r *request.Request) map[string]string {
	if len(v) == 0 {
		return nil
	}
	out := make(map[string]string, len(v))
	for name, f := range v {
		if value, ok := f.Extract(r); ok {
			out[name] = value
		}
	}
	return out
}

func (v Vars) String() string {
	names := make([]string, 0, len(v))
	for name := range v {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

type templateHandler struct {
	engine *template.Engine
	source string // inline template, unused when path is set
	path   string
	vars   Vars
}

// Template renders an inline template as the body.
func Template(engine *template.Engine, source string, vars Vars) Handler {
	return &templateHandler{engine: engine, source: source, vars: vars}
}

// TemplateFile renders the template stored in path, read at request time.
func TemplateFile(engine *template.Engine, path string, vars Vars) Handler {
	return &templateHandler{engine: engine, path: path, vars: vars}
}

func (h *templateHandler) Handle(ctx context.Context, req *request.Request, resp *response.Response) error {
	source := h.source
	if h.path != "" {
		data, err := os.ReadFile(h.path)
		if err != nil {
			return fmt.Errorf("reading template file: %w", err)
		}
		source = string(data)
		setTypeByExtension(resp, h.path)
	}

	tctx := template.NewContext(req, PathParams(ctx), h.vars.extract(req))
	resp.SetBody([]byte(h.engine.Process(source, tctx)))
	return nil
}

// Apply rewrites the file location; inline templates have nothing to
// rewrite.
func (h *templateHandler) Apply(o overlay.Overlay) Handler {
	if h.path == "" || !o.IsFor(overlay.ScopeFile) {
		return h
	}
	clone := *h
	clone.path = o.Apply(h.path)
	return &clone
}

func (h *templateHandler) String() string {
	if h.path != "" {
		return fmt.Sprintf("templateFile(%q, vars=[%s])", h.path, h.vars)
	}
	return fmt.Sprintf("template(%d bytes, vars=[%s])", len(h.source), h.vars)
}

func setTypeByExtension(resp *response.Response, path string) {
	header := ensureHeader(resp)
	if header.Get("Content-Type") != "" {
		return
	}
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		header.Set("Content-Type", ct)
	}
}
