package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// ErrIncludeCycle is returned when a document includes itself, directly or
// through other files.
var ErrIncludeCycle = errors.New("include cycle")

// envVarPattern matches ${VAR_NAME} or ${VAR_NAME:-default}
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnvVars expands ${VAR_NAME} and ${VAR_NAME:-default}. Unset or
// empty variables without a default expand to "".
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		submatch := envVarPattern.FindStringSubmatch(match)
		if val := os.Getenv(submatch[1]); val != "" {
			return val
		}
		return submatch[2]
	})
}

// Parse expands environment variables in data, validates it and decodes
// it into a Document. The returned document has no Path or Includes.
func Parse(data []byte) (*Document, error) {
	expanded := []byte(ExpandEnvVars(string(data)))
	if err := Validate(expanded); err != nil {
		return nil, err
	}

	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty config")
		}
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &doc, nil
}

// Load reads the rule set at path and, recursively, the files its `files`
// patterns match. Patterns are relative to the including file and support
// ** via doublestar; matches are loaded in lexical order.
func Load(path string) (*Document, error) {
	return load(path, map[string]bool{})
}

func load(path string, stack map[string]bool) (*Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	if stack[abs] {
		return nil, fmt.Errorf("%w at %s", ErrIncludeCycle, abs)
	}
	stack[abs] = true
	defer delete(stack, abs)

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	doc.Path = abs

	baseDir := filepath.Dir(abs)
	for i, pattern := range doc.Files {
		matches, err := expandGlob(resolvePath(baseDir, pattern))
		if err != nil {
			return nil, fmt.Errorf("%s: files[%d]: expanding glob pattern: %w", path, i, err)
		}
		for _, match := range matches {
			if match == abs {
				continue
			}
			inc, err := load(match, stack)
			if err != nil {
				return nil, err
			}
			doc.Includes = append(doc.Includes, inc)
		}
	}
	return doc, nil
}

// expandGlob lists the regular files matching pattern, sorted.
func expandGlob(pattern string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// resolvePath resolves target relative to baseDir unless it is absolute.
func resolvePath(baseDir, target string) string {
	if filepath.IsAbs(target) {
		return target
	}
	if strings.HasPrefix(target, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, target[2:])
		}
	}
	return filepath.Join(baseDir, target)
}

// DiscoveryOrder lists the file names Discover looks for.
var DiscoveryOrder = []string{"stubd.yaml", "stubd.yml"}

// Discover finds the rule set to load: $STUBD_CONFIG, then the
// DiscoveryOrder names in dir.
func Discover(dir string) (string, error) {
	if envPath := os.Getenv("STUBD_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
		return "", fmt.Errorf("STUBD_CONFIG points to non-existent file: %s", envPath)
	}

	for _, name := range DiscoveryOrder {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", errors.New("no rule set found: create stubd.yaml or specify --config")
}
