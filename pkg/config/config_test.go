package config

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/stubd/pkg/registry"
	"github.com/getmockd/stubd/pkg/request"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

type result struct {
	matched bool
	rule    string
	status  int
	body    string
	header  http.Header
}

func eval(t *testing.T, reg *registry.Registry, req *request.Request) result {
	t.Helper()
	res, err := reg.Evaluate(context.Background(), req)
	require.NoError(t, err)
	if !res.Matched() {
		return result{}
	}
	return result{
		matched: true,
		rule:    res.Rule.Name(),
		status:  res.Response.Status(),
		body:    string(res.Response.Body),
		header:  res.Response.Header,
	}
}

func get(target string) *request.Request {
	return request.New(http.MethodGet, target, nil, nil)
}

func loadRegistry(t *testing.T, path string) *registry.Registry {
	t.Helper()
	doc, err := Load(path)
	require.NoError(t, err)
	reg, err := BuildRegistry(doc, BuildOptions{})
	require.NoError(t, err)
	return reg
}

const mainConfig = `
version: "1"
context: /api
files:
  - "mocks/**/*.yaml"
rules:
  - name: get-user
    request:
      method: GET
      uri: /users/{id}
    response:
      status: 200
      headers:
        X-Rule: get-user
      template: '{"id":"{{request.pathParam.id}}","agent":"{{var.agent}}"}'
      vars:
        agent: {header: User-Agent}
  - name: create-user
    request:
      method: POST
      uri: /users
      jsonPath:
        $.name: alice
    response:
      status: 201
      json: {created: true}
  - name: fixture
    request:
      uri: /fixture
    response:
      file: fixtures/data.txt
  - group:
      context: /v2
      fileRoot: fixtures/v2
      rules:
        - name: v2-fixture
          request:
            uri: /fixture
          response:
            file: data.txt
  - name: flaky
    request:
      uri: /flaky
    response:
      cycle:
        - {status: 503}
        - {status: 200, text: recovered}
default:
  status: 404
  text: nothing here
`

func TestLoadAndBuild(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "stubd.yaml", mainConfig)
	writeFile(t, dir, "fixtures/data.txt", "root fixture")
	writeFile(t, dir, "fixtures/v2/data.txt", "v2 fixture")
	writeFile(t, dir, "mocks/orders/orders.yaml", `
version: "1"
context: /orders
rules:
  - name: list-orders
    request: {method: GET, uri: /}
    response: {file: orders.json}
`)
	writeFile(t, dir, "mocks/orders/orders.json", `[]`)

	reg := loadRegistry(t, path)
	assert.Equal(t, 7, reg.Len())

	t.Run("template with path param and var", func(t *testing.T) {
		t.Parallel()
		req := get("/api/users/42")
		req.Header.Set("User-Agent", "tests")
		got := eval(t, reg, req)
		assert.Equal(t, "get-user", got.rule)
		assert.Equal(t, `{"id":"42","agent":"tests"}`, got.body)
		assert.Equal(t, "get-user", got.header.Get("X-Rule"))
	})

	t.Run("context is required", func(t *testing.T) {
		t.Parallel()
		got := eval(t, reg, get("/users/42"))
		assert.Equal(t, "default", got.rule)
		assert.Equal(t, 404, got.status)
		assert.Equal(t, "nothing here", got.body)
	})

	t.Run("json path match", func(t *testing.T) {
		t.Parallel()
		req := request.New(http.MethodPost, "/api/users", http.Header{"Content-Type": {"application/json"}}, []byte(`{"name":"alice"}`))
		got := eval(t, reg, req)
		assert.Equal(t, "create-user", got.rule)
		assert.Equal(t, 201, got.status)
		assert.JSONEq(t, `{"created":true}`, got.body)
	})

	t.Run("file relative to document", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "root fixture", eval(t, reg, get("/api/fixture")).body)
	})

	t.Run("group context and file root nest", func(t *testing.T) {
		t.Parallel()
		got := eval(t, reg, get("/api/v2/fixture"))
		assert.Equal(t, "v2-fixture", got.rule)
		assert.Equal(t, "v2 fixture", got.body)
	})

	t.Run("included file under parent context", func(t *testing.T) {
		t.Parallel()
		got := eval(t, reg, get("/api/orders/"))
		assert.Equal(t, "list-orders", got.rule)
		assert.Equal(t, "[]", got.body)
	})
}

func TestBuild_Cycle(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	reg := loadRegistry(t, writeFile(t, dir, "stubd.yaml", mainConfig))

	statuses := make([]int, 0, 3)
	for range 3 {
		statuses = append(statuses, eval(t, reg, get("/api/flaky")).status)
	}
	assert.Equal(t, []int{503, 200, 503}, statuses)
}

func TestDocument_AllFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "stubd.yaml", "version: \"1\"\nfiles: [\"more/*.yaml\"]\n")
	writeFile(t, dir, "more/b.yaml", "version: \"1\"\n")
	writeFile(t, dir, "more/a.yaml", "version: \"1\"\n")
	writeFile(t, dir, "more/ignored.txt", "nope")

	doc, err := Load(path)
	require.NoError(t, err)

	files := doc.AllFiles()
	require.Len(t, files, 3)
	assert.Equal(t, "a.yaml", filepath.Base(files[1]))
	assert.Equal(t, "b.yaml", filepath.Base(files[2]))
}

func TestLoad_IncludeCycle(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "a.yaml", "version: \"1\"\nfiles: [sub/b.yaml]\n")
	writeFile(t, dir, "sub/b.yaml", "version: \"1\"\nfiles: [../a.yaml]\n")

	_, err := Load(path)
	require.ErrorIs(t, err, ErrIncludeCycle)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("STUBD_TEST_UPSTREAM", "http://backend:9000")
	t.Setenv("STUBD_TEST_EMPTY", "")

	tests := []struct {
		input string
		want  string
	}{
		{"${STUBD_TEST_UPSTREAM}/api", "http://backend:9000/api"},
		{"${STUBD_TEST_MISSING:-fallback}", "fallback"},
		{"${STUBD_TEST_EMPTY:-fallback}", "fallback"},
		{"${STUBD_TEST_MISSING}", ""},
		{"$STUBD_TEST_UPSTREAM", "$STUBD_TEST_UPSTREAM"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExpandEnvVars(tt.input), tt.input)
	}
}

func TestParse_ExpandsEnvironment(t *testing.T) {
	t.Setenv("STUBD_TEST_PREFIX", "/env")

	doc, err := Parse([]byte("version: \"1\"\ncontext: ${STUBD_TEST_PREFIX}\n"))
	require.NoError(t, err)
	assert.Equal(t, "/env", doc.Context)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		doc      string
		wantPath string
	}{
		{
			name:     "missing version",
			doc:      "rules: []",
			wantPath: "",
		},
		{
			name: "unknown request field",
			doc: `version: "1"
rules:
  - response: {text: ok}
  - request: {path: /x}
    response: {text: ok}`,
			wantPath: "rules[1].request",
		},
		{
			name: "status out of range",
			doc: `version: "1"
rules:
  - response: {status: 42}`,
			wantPath: "rules[0].response.status",
		},
		{
			name: "bad latency",
			doc: `version: "1"
rules:
  - response: {latency: soon}`,
			wantPath: "rules[0].response.latency",
		},
		{
			name: "proxy needs http url",
			doc: `version: "1"
rules:
  - response: {proxy: {to: "ftp://x"}}`,
			wantPath: "rules[0].response.proxy.to",
		},
		{
			name: "field ref with two selectors",
			doc: `version: "1"
rules:
  - request:
      fields:
        - {field: {header: A, query: b}, op: eq, value: x}
    response: {text: ok}`,
			wantPath: "rules[0].request.fields[0].field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Validate([]byte(tt.doc))
			require.Error(t, err)

			var verrs ValidationErrors
			require.ErrorAs(t, err, &verrs)
			paths := make([]string, 0, len(verrs))
			for _, ve := range verrs {
				paths = append(paths, ve.Path)
			}
			assert.Contains(t, paths, tt.wantPath)
		})
	}
}

func TestValidate_Valid(t *testing.T) {
	t.Parallel()

	require.NoError(t, Validate([]byte(mainConfig)))
	require.NoError(t, Validate([]byte(`
version: "1"
rules:
  - request:
      or:
        - {headers: {Accept: "application/*"}}
        - {not: {method: DELETE}}
      fields:
        - {field: {jsonPath: $.id}, op: exists}
    response:
      latency: 150ms
      cookies: [{name: session, value: abc, httpOnly: true}]
      proxy: {to: "https://example.com", from: /ext, timeout: 2s, retries: 1}
`)))
}

func TestValidate_GroupAndRuleAreExclusive(t *testing.T) {
	t.Parallel()

	err := Validate([]byte(`version: "1"
rules:
  - group: {rules: []}
    response: {text: ok}`))
	require.Error(t, err)
}

func TestBuild_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name: "invalid uri regex",
			doc: `version: "1"
rules:
  - response: {text: ok}
  - request: {uriRegex: "(["}
    response: {text: ok}`,
			wantErr: "rules[1].request: uriRegex:",
		},
		{
			name: "two body sources",
			doc: `version: "1"
rules:
  - response: {text: ok, file: x.json}`,
			wantErr: "rules[0].response: only one body source allowed, got text, file",
		},
		{
			name: "vars without template",
			doc: `version: "1"
rules:
  - response: {text: ok, vars: {a: {header: X}}}`,
			wantErr: "rules[0].response: vars require template or templateFile",
		},
		{
			name: "nested group error",
			doc: `version: "1"
rules:
  - group:
      rules:
        - request: {expr: "method =="}
          response: {text: ok}`,
			wantErr: "rules[0].group.rules[0].request: expr:",
		},
		{
			name: "nested seq error",
			doc: `version: "1"
rules:
  - response:
      seq:
        - {text: a}
        - {text: b, json: {}}`,
			wantErr: "rules[0].response: seq[1]: only one body source allowed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			doc, err := Parse([]byte(tt.doc))
			require.NoError(t, err)

			_, err = BuildRegistry(doc, BuildOptions{})
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), "got %q", err.Error())
		})
	}
}

func TestBuild_IntoGroup(t *testing.T) {
	t.Parallel()

	doc, err := Parse([]byte(`version: "1"
rules:
  - request: {uri: /ping}
    response: {text: pong}`))
	require.NoError(t, err)

	reg := registry.New()
	require.NoError(t, Build(doc, reg.Group(), BuildOptions{}))
	assert.Equal(t, "pong", eval(t, reg, get("/ping")).body)
}

func TestPointerToPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", pointerToPath(""))
	assert.Equal(t, "rules[2].request", pointerToPath("/rules/2/request"))
	assert.Equal(t, "rules[0].response.headers.a/b", pointerToPath("/rules/0/response/headers/a~1b"))
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STUBD_CONFIG", "")

	_, err := Discover(dir)
	require.Error(t, err)

	yml := writeFile(t, dir, "stubd.yml", "version: \"1\"\n")
	got, err := Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, yml, got)

	yamlPath := writeFile(t, dir, "stubd.yaml", "version: \"1\"\n")
	got, err = Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, yamlPath, got)

	custom := writeFile(t, dir, "custom.yaml", "version: \"1\"\n")
	t.Setenv("STUBD_CONFIG", custom)
	got, err = Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, custom, got)

	t.Setenv("STUBD_CONFIG", filepath.Join(dir, "missing.yaml"))
	_, err = Discover(dir)
	require.Error(t, err)
}

func TestExampleRuleSet(t *testing.T) {
	t.Parallel()

	reg := loadRegistry(t, filepath.Join("..", "..", "examples", "with-config-file", "stubd.yaml"))
	assert.Equal(t, 6, reg.Len())

	got := eval(t, reg, get("/api/fixture"))
	assert.Equal(t, "fixture", got.rule)
	assert.Contains(t, got.body, `"Grace"`)

	assert.Equal(t, "pending", eval(t, reg, get("/api/orders/7")).body)
	assert.Equal(t, "shipped", eval(t, reg, get("/api/orders/7")).body)

	got = eval(t, reg, get("/elsewhere"))
	assert.Equal(t, DefaultRuleName, got.rule)
	assert.Equal(t, http.StatusNotFound, got.status)
}
