package matching

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"github.com/ohler55/ojg/jp"
)

// JSONPathCondition is a compiled JSONPath expression and the value it must
// select. An expected value of {"exists": bool} checks presence instead.
type JSONPathCondition struct {
	Path string
	Want interface{}

	expr   jp.Expr
	exists *bool
}

// CompileJSONPath compiles conditions, ordered by path. Expected values are
// normalized the way encoding/json decodes them, so an int 42 from YAML
// equals the 42 in a request body.
func CompileJSONPath(conditions map[string]interface{}) ([]JSONPathCondition, error) {
	compiled := make([]JSONPathCondition, 0, len(conditions))
	for path, want := range conditions {
		expr, err := jp.ParseString(path)
		if err != nil {
			return nil, fmt.Errorf("invalid JSONPath expression %q: %w", path, err)
		}
		c := JSONPathCondition{Path: path, Want: want, expr: expr}
		if m, ok := want.(map[string]interface{}); ok && len(m) == 1 {
			if b, ok := m["exists"].(bool); ok {
				c.exists = &b
			}
		}
		if c.exists == nil {
			if c.Want, err = normalizeJSON(want); err != nil {
				return nil, fmt.Errorf("jsonPath %q: %w", path, err)
			}
		}
		compiled = append(compiled, c)
	}
	sort.Slice(compiled, func(i, j int) bool { return compiled[i].Path < compiled[j].Path })
	return compiled, nil
}

// Holds reports whether the decoded document satisfies c. When a wildcard
// path selects several values, any one of them may match.
func (c JSONPathCondition) Holds(doc interface{}) bool {
	results := c.expr.Get(doc)
	if c.exists != nil {
		return (len(results) > 0) == *c.exists
	}
	for _, v := range results {
		if reflect.DeepEqual(v, c.Want) {
			return true
		}
	}
	return false
}

// MatchJSONPath reports whether body is JSON satisfying every condition.
// No conditions never match.
func MatchJSONPath(conditions []JSONPathCondition, body []byte) bool {
	if len(conditions) == 0 {
		return false
	}
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return false
	}
	for _, c := range conditions {
		if !c.Holds(doc) {
			return false
		}
	}
	return true
}

// ExtractJSONPath returns the first value selected by path in body.
func ExtractJSONPath(path string, body []byte) (interface{}, bool) {
	expr, err := jp.ParseString(path)
	if err != nil {
		return nil, false
	}
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, false
	}
	results := expr.Get(doc)
	if len(results) == 0 {
		return nil, false
	}
	return results[0], true
}

// ValidateJSONPathExpression checks a JSONPath expression at load time.
func ValidateJSONPathExpression(path string) error {
	if _, err := jp.ParseString(path); err != nil {
		return fmt.Errorf("invalid JSONPath expression %q: %w", path, err)
	}
	return nil
}

// MatchJSONEqual reports whether body is JSON structurally equal to the
// already decoded expected value. Key order and whitespace are ignored.
func MatchJSONEqual(expected interface{}, body []byte) bool {
	var actual interface{}
	if err := json.Unmarshal(body, &actual); err != nil {
		return false
	}
	return reflect.DeepEqual(actual, expected)
}

func normalizeJSON(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	err = json.Unmarshal(data, &out)
	return out, err
}
