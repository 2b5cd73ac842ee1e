package matcher

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/getmockd/stubd/internal/matching"
	"github.com/getmockd/stubd/pkg/overlay"
	"github.com/getmockd/stubd/pkg/request"
)

// Operator compares an extracted field value with an expected value.
type Operator string

// Supported operators.
const (
	OpEqual      Operator = "eq"
	OpEqualFold  Operator = "eqIgnoreCase"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "startsWith"
	OpEndsWith   Operator = "endsWith"
	OpRegex      Operator = "regex"
	OpWildcard   Operator = "wildcard"
	OpExists     Operator = "exists"
)

type fieldMatcher struct {
	field request.Field
	op    Operator
	value string
	re    *regexp.Regexp
}

// Field matches when the value selected by f satisfies op against value.
// OpExists ignores value. An unknown operator or invalid regex is an error.
func Field(f request.Field, op Operator, value string) (Matcher, error) {
	m := &fieldMatcher{field: f, op: op, value: value}
	switch op {
	case OpEqual, OpEqualFold, OpContains, OpStartsWith, OpEndsWith, OpWildcard, OpExists:
	case OpRegex:
		re, err := regexp.Compile(value)
		if err != nil {
			return nil, fmt.Errorf("invalid regex for %s: %w", f.Name(), err)
		}
		m.re = re
	default:
		return nil, fmt.Errorf("unknown operator %q", op)
	}
	return m, nil
}

// Exact matches when the selected value equals value.
func Exact(f request.Field, value string) Matcher {
	return &fieldMatcher{field: f, op: OpEqual, value: value}
}

// Method matches the request method, ignoring case.
func Method(method string) Matcher {
	return &fieldMatcher{field: request.MethodField(), op: OpEqualFold, value: method}
}

// Header matches a header value exactly.
func Header(name, value string) Matcher {
	return Exact(request.HeaderField(name), value)
}

// HeaderPattern matches a header against a *wildcard* pattern.
func HeaderPattern(name, pattern string) Matcher {
	return &fieldMatcher{field: request.HeaderField(name), op: OpWildcard, value: pattern}
}

// Query matches a query parameter value exactly.
func Query(name, value string) Matcher {
	return Exact(request.QueryField(name), value)
}

// Cookie matches a cookie value exactly.
func Cookie(name, value string) Matcher {
	return Exact(request.CookieField(name), value)
}

// Form matches an urlencoded form value exactly.
func Form(name, value string) Matcher {
	return Exact(request.FormField(name), value)
}

// Body matches the whole body exactly.
func Body(body string) Matcher {
	return Exact(request.BodyField(), body)
}

// BodyContains matches bodies containing substr.
func BodyContains(substr string) Matcher {
	return &fieldMatcher{field: request.BodyField(), op: OpContains, value: substr}
}

// BodyPattern matches bodies against a regular expression.
func BodyPattern(pattern string) (Matcher, error) {
	return Field(request.BodyField(), OpRegex, pattern)
}

func (m *fieldMatcher) Match(r *request.Request) bool {
	actual, ok := m.field.Extract(r)
	if m.op == OpExists {
		return ok
	}
	if !ok {
		return false
	}

	switch m.op {
	case OpEqual:
		return actual == m.value
	case OpEqualFold:
		return strings.EqualFold(actual, m.value)
	case OpContains:
		return strings.Contains(actual, m.value)
	case OpStartsWith:
		return strings.HasPrefix(actual, m.value)
	case OpEndsWith:
		return strings.HasSuffix(actual, m.value)
	case OpRegex:
		return m.re.MatchString(actual)
	case OpWildcard:
		return matching.MatchWildcard(m.value, actual)
	default:
		return false
	}
}

func (m *fieldMatcher) Apply(overlay.Overlay) Matcher { return m }
func (m *fieldMatcher) HandlesScope(string) bool      { return false }

func (m *fieldMatcher) String() string {
	if m.op == OpExists {
		return fmt.Sprintf("exists(%s)", m.field.Name())
	}
	return fmt.Sprintf("%s(%s, %q)", m.op, m.field.Name(), m.value)
}
