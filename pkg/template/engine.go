package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Engine renders templates. Apart from its SequenceStore it holds no state
// and is safe for concurrent use.
type Engine struct {
	sequences *SequenceStore
}

// New creates an engine with its own sequence store.
func New() *Engine {
	return &Engine{sequences: NewSequenceStore()}
}

// NewWithSequences creates an engine sharing store with other engines.
func NewWithSequences(store *SequenceStore) *Engine {
	return &Engine{sequences: store}
}

// templateRegex matches {{expression}} with optional inner whitespace.
var templateRegex = regexp.MustCompile(`\{\{\s*([^}]+?)\s*\}\}`)

var (
	randomIntPattern    = regexp.MustCompile(`^random\.int\((-?\d+),\s*(-?\d+)\)$`)
	randomFloatPattern  = regexp.MustCompile(`^random\.float\((-?[0-9.]+),\s*(-?[0-9.]+)(?:,\s*(\d+))?\)$`)
	randomStringPattern = regexp.MustCompile(`^random\.string\((\d+)\)$`)
	sequencePattern     = regexp.MustCompile(`^sequence\("([^"]+)"(?:,\s*(-?\d+))?\)$`)
	funcCallPattern     = regexp.MustCompile(`^(\w+)\((.+)\)$`)
)

// Process replaces every {{expression}} in tmpl with its value in ctx.
// ctx may be nil, in which case request and variable references render
// empty.
func (e *Engine) Process(tmpl string, ctx *Context) string {
	return templateRegex.ReplaceAllStringFunc(tmpl, func(match string) string {
		inner := templateRegex.FindStringSubmatch(match)
		if len(inner) < 2 {
			return match
		}
		return e.evaluate(strings.TrimSpace(inner[1]), ctx)
	})
}

// ProcessValue renders every string inside a decoded JSON/YAML value and
// returns a new value. Other scalars are returned unchanged.
func (e *Engine) ProcessValue(data interface{}, ctx *Context) interface{} {
	switch v := data.(type) {
	case string:
		return e.Process(v, ctx)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, val := range v {
			out[key] = e.ProcessValue(val, ctx)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, val := range v {
			out[i] = e.ProcessValue(val, ctx)
		}
		return out
	default:
		return data
	}
}

func (e *Engine) evaluate(expr string, ctx *Context) string {
	switch expr {
	case "now":
		return time.Now().Format(time.RFC3339)
	case "uuid":
		return uuid.New().String()
	case "uuid.short":
		return uuid.New().String()[:8]
	case "timestamp", "timestamp.unix":
		return strconv.FormatInt(time.Now().Unix(), 10)
	case "timestamp.unix_ms":
		return strconv.FormatInt(time.Now().UnixMilli(), 10)
	case "timestamp.iso":
		return time.Now().UTC().Format(time.RFC3339Nano)
	case "random.int":
		return funcRandomInt(0, 100)
	case "random.float":
		return funcRandomFloat(0, 1, 6)
	case "random.string":
		return funcRandomString(10)
	}

	if result, ok := e.evaluateCall(expr, ctx); ok {
		return result
	}

	if rest, ok := strings.CutPrefix(expr, "request."); ok {
		return evaluateRequest(rest, ctx)
	}
	if name, ok := strings.CutPrefix(expr, "var."); ok {
		if ctx == nil {
			return ""
		}
		return ctx.Vars[name]
	}
	return ""
}

// evaluateCall handles the function-call forms: random.int(1, 10),
// sequence("n"), upper(x) and so on.
func (e *Engine) evaluateCall(expr string, ctx *Context) (string, bool) {
	if m := randomIntPattern.FindStringSubmatch(expr); m != nil {
		lo, _ := strconv.Atoi(m[1])
		hi, _ := strconv.Atoi(m[2])
		return funcRandomInt(lo, hi), true
	}

	if m := randomFloatPattern.FindStringSubmatch(expr); m != nil {
		lo, err1 := strconv.ParseFloat(m[1], 64)
		hi, err2 := strconv.ParseFloat(m[2], 64)
		if err1 != nil || err2 != nil {
			return "", true
		}
		precision := 2
		if m[3] != "" {
			precision, _ = strconv.Atoi(m[3])
		}
		return funcRandomFloat(lo, hi, precision), true
	}

	if m := randomStringPattern.FindStringSubmatch(expr); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n <= 0 {
			n = 10
		}
		return funcRandomString(n), true
	}

	if m := sequencePattern.FindStringSubmatch(expr); m != nil {
		return e.resolveSequence(m[1], m[2]), true
	}

	m := funcCallPattern.FindStringSubmatch(expr)
	if m == nil {
		return "", false
	}
	switch m[1] {
	case "upper":
		return strings.ToUpper(e.resolveValue(m[2], ctx)), true
	case "lower":
		return strings.ToLower(e.resolveValue(m[2], ctx)), true
	case "default":
		args := splitFuncArgs(m[2])
		if len(args) < 2 {
			return "", true
		}
		return funcDefault(e.resolveValue(args[0], ctx), unquote(args[1])), true
	}
	return "", false
}

func (e *Engine) resolveSequence(name, start string) string {
	if e.sequences == nil {
		return ""
	}
	from := int64(1)
	if start != "" {
		from, _ = strconv.ParseInt(start, 10, 64)
	}
	return strconv.FormatInt(e.sequences.Next(name, from), 10)
}

// resolveValue turns a function argument into a string: quoted literals are
// unquoted, anything else is evaluated as an expression.
func (e *Engine) resolveValue(ref string, ctx *Context) string {
	ref = strings.TrimSpace(ref)
	if isQuoted(ref) {
		return ref[1 : len(ref)-1]
	}
	return e.evaluate(ref, ctx)
}

func isQuoted(s string) bool {
	return len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0]
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if isQuoted(s) {
		return s[1 : len(s)-1]
	}
	return s
}

// splitFuncArgs splits on commas outside quotes.
func splitFuncArgs(s string) []string {
	var (
		args    []string
		current strings.Builder
		quote   byte
	)
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case quote != 0:
			current.WriteByte(ch)
			if ch == quote {
				quote = 0
			}
		case ch == '"' || ch == '\'':
			quote = ch
			current.WriteByte(ch)
		case ch == ',':
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}
	if current.Len() > 0 {
		args = append(args, strings.TrimSpace(current.String()))
	}
	return args
}

func evaluateRequest(expr string, ctx *Context) string {
	if ctx == nil || ctx.Request == nil {
		return ""
	}
	r := ctx.Request
	field, arg, _ := strings.Cut(expr, ".")

	switch field {
	case "method":
		return r.Method
	case "path":
		return r.Path
	case "uri":
		return r.URI()
	case "remoteAddr":
		return r.RemoteAddr
	case "rawBody":
		return string(r.Body)
	case "body":
		if arg == "" {
			return string(r.Body)
		}
		return lookupBodyField(ctx.body, arg)
	case "query":
		return r.Query.Get(arg)
	case "header":
		return r.Header.Get(arg)
	case "cookie":
		return r.Cookies[arg]
	case "form":
		return r.Form().Get(arg)
	case "pathParam":
		return ctx.PathParams[arg]
	}
	return ""
}

// lookupBodyField walks a decoded JSON body along a dotted path such as
// "user.name" or "items.0.id".
func lookupBodyField(body interface{}, path string) string {
	current := body
	for _, part := range strings.Split(path, ".") {
		switch v := current.(type) {
		case map[string]interface{}:
			next, ok := v[part]
			if !ok {
				return ""
			}
			current = next
		case []interface{}:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(v) {
				return ""
			}
			current = v[idx]
		default:
			return ""
		}
	}
	return formatValue(current)
}

func formatValue(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case map[string]interface{}, []interface{}:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	default:
		return fmt.Sprint(v)
	}
}
