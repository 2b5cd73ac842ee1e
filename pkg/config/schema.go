package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "stubd-rules.json"

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	return compiler.Compile(schemaURL)
})

// ValidationError is one schema violation.
type ValidationError struct {
	Path    string // e.g. "rules[2].request"
	Message string
}

func (e ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is returned by Validate when a document violates the
// schema.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, ve := range e {
		msgs = append(msgs, ve.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks a YAML rule-set document against the schema.
func Validate(data []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("schema compilation error: %w", err)
	}

	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	// Round trip through JSON so the validator sees JSON types only
	// (float64 numbers, string-keyed maps, timestamps as strings).
	encoded, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("config is not representable as JSON: %w", err)
	}
	var doc interface{}
	if err := json.Unmarshal(encoded, &doc); err != nil {
		return fmt.Errorf("config is not representable as JSON: %w", err)
	}

	err = schema.Validate(doc)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	var out ValidationErrors
	collectSchemaErrors(verr, &out)
	if len(out) == 0 {
		out = append(out, ValidationError{Message: verr.Message})
	}
	return out
}

// collectSchemaErrors flattens the cause tree into its leaves.
func collectSchemaErrors(err *jsonschema.ValidationError, out *ValidationErrors) {
	if len(err.Causes) == 0 {
		ve := ValidationError{Path: pointerToPath(err.InstanceLocation), Message: err.Message}
		for _, seen := range *out {
			if seen == ve {
				return
			}
		}
		*out = append(*out, ve)
		return
	}
	for _, cause := range err.Causes {
		collectSchemaErrors(cause, out)
	}
}

// pointerToPath turns a JSON pointer ("/rules/2/request") into the path
// notation used in config errors ("rules[2].request").
func pointerToPath(pointer string) string {
	pointer = strings.TrimPrefix(pointer, "/")
	if pointer == "" {
		return ""
	}
	var sb strings.Builder
	for _, token := range strings.Split(pointer, "/") {
		token = strings.ReplaceAll(strings.ReplaceAll(token, "~1", "/"), "~0", "~")
		if _, err := strconv.Atoi(token); err == nil {
			sb.WriteString("[" + token + "]")
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(token)
	}
	return sb.String()
}
