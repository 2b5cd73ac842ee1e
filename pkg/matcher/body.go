package matcher

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/getmockd/stubd/internal/matching"
	"github.com/getmockd/stubd/pkg/overlay"
	"github.com/getmockd/stubd/pkg/request"
)

type jsonMatcher struct {
	raw      string
	expected interface{}
}

// JSON matches bodies that are structurally equal to the given JSON
// document. Whitespace and key order are ignored.
func JSON(document string) (Matcher, error) {
	var expected interface{}
	if err := json.Unmarshal([]byte(document), &expected); err != nil {
		return nil, fmt.Errorf("invalid JSON document: %w", err)
	}
	return &jsonMatcher{raw: document, expected: expected}, nil
}

// JSONValue is JSON for an already decoded value (e.g. from YAML config).
func JSONValue(v interface{}) (Matcher, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding JSON value: %w", err)
	}
	return JSON(string(data))
}

func (m *jsonMatcher) Match(r *request.Request) bool {
	return matching.MatchJSONEqual(m.expected, r.Body)
}

func (m *jsonMatcher) Apply(overlay.Overlay) Matcher { return m }
func (m *jsonMatcher) HandlesScope(string) bool      { return false }
func (m *jsonMatcher) String() string                { return fmt.Sprintf("json(%s)", m.raw) }

type jsonPathMatcher struct {
	conditions []matching.JSONPathCondition
}

// JSONPath matches JSON bodies where every path selects the expected value.
// An expected value of {"exists": bool} checks presence only.
func JSONPath(conditions map[string]interface{}) (Matcher, error) {
	if len(conditions) == 0 {
		return nil, fmt.Errorf("jsonPath matcher needs at least one condition")
	}
	compiled, err := matching.CompileJSONPath(conditions)
	if err != nil {
		return nil, err
	}
	return &jsonPathMatcher{conditions: compiled}, nil
}

func (m *jsonPathMatcher) Match(r *request.Request) bool {
	return matching.MatchJSONPath(m.conditions, r.Body)
}

func (m *jsonPathMatcher) Apply(overlay.Overlay) Matcher { return m }
func (m *jsonPathMatcher) HandlesScope(string) bool      { return false }

func (m *jsonPathMatcher) String() string {
	parts := make([]string, len(m.conditions))
	for i, c := range m.conditions {
		parts[i] = fmt.Sprintf("%s=%v", c.Path, c.Want)
	}
	return "jsonPath(" + strings.Join(parts, ", ") + ")"
}

type xpathMatcher struct {
	conditions map[string]string
}

// XPath matches XML bodies where every XPath selects the expected text.
func XPath(conditions map[string]string) (Matcher, error) {
	if len(conditions) == 0 {
		return nil, fmt.Errorf("xpath matcher needs at least one condition")
	}
	copied := make(map[string]string, len(conditions))
	for path, v := range conditions {
		if err := matching.ValidateXPath(path); err != nil {
			return nil, fmt.Errorf("invalid XPath %q: %w", path, err)
		}
		copied[path] = v
	}
	return &xpathMatcher{conditions: copied}, nil
}

func (m *xpathMatcher) Match(r *request.Request) bool {
	return matching.MatchXPath(matching.ParseXML(r.Body), m.conditions)
}

func (m *xpathMatcher) Apply(overlay.Overlay) Matcher { return m }
func (m *xpathMatcher) HandlesScope(string) bool      { return false }

func (m *xpathMatcher) String() string {
	parts := make([]string, 0, len(m.conditions))
	for path, v := range m.conditions {
		parts = append(parts, fmt.Sprintf("%s=%q", path, v))
	}
	sort.Strings(parts)
	return "xpath(" + strings.Join(parts, ", ") + ")"
}
