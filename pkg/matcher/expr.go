package matcher

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/getmockd/stubd/pkg/overlay"
	"github.com/getmockd/stubd/pkg/request"
)

// ExprEnv is the environment an Expr matcher is evaluated in.
//
//	method == "POST" && headers["Content-Type"] startsWith "application/json"
//	query["page"] != "" && json.user.age >= 18
type ExprEnv struct {
	Method  string            `expr:"method"`
	Path    string            `expr:"path"`
	Headers map[string]string `expr:"headers"`
	Query   map[string]string `expr:"query"`
	Cookies map[string]string `expr:"cookies"`
	Body    string            `expr:"body"`
	JSON    interface{}       `expr:"json"`
}

type exprMatcher struct {
	source  string
	program *vm.Program
}

// Expr matches when the boolean expression evaluates to true. Evaluation
// errors count as no match.
func Expr(source string) (Matcher, error) {
	program, err := expr.Compile(source, expr.Env(ExprEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compiling expression %q: %w", source, err)
	}
	return &exprMatcher{source: source, program: program}, nil
}

func (m *exprMatcher) Match(r *request.Request) bool {
	out, err := expr.Run(m.program, newExprEnv(r))
	if err != nil {
		return false
	}
	ok, _ := out.(bool)
	return ok
}

func (m *exprMatcher) Apply(overlay.Overlay) Matcher { return m }
func (m *exprMatcher) HandlesScope(string) bool      { return false }
func (m *exprMatcher) String() string                { return fmt.Sprintf("expr(%q)", m.source) }

func newExprEnv(r *request.Request) ExprEnv {
	env := ExprEnv{
		Method:  r.Method,
		Path:    r.Path,
		Headers: make(map[string]string, len(r.Header)),
		Query:   make(map[string]string, len(r.Query)),
		Cookies: r.Cookies,
		Body:    string(r.Body),
	}
	for name, values := range r.Header {
		if len(values) > 0 {
			env.Headers[http.CanonicalHeaderKey(name)] = values[0]
		}
	}
	for name, values := range r.Query {
		if len(values) > 0 {
			env.Query[name] = values[0]
		}
	}
	if env.Cookies == nil {
		env.Cookies = map[string]string{}
	}
	if len(r.Body) > 0 {
		var decoded interface{}
		if json.Unmarshal(r.Body, &decoded) == nil {
			env.JSON = decoded
		}
	}
	return env
}
