package template

import (
	"net/http"
	"regexp"
	"strconv"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/stubd/pkg/request"
)

func newRequest() *request.Request {
	h := http.Header{}
	h.Set("X-Token", "abc")
	h.Set("Content-Type", "application/json")
	h.Set("Cookie", "session=s-1")
	return request.New("post", "/users/42?page=2&name=Ada",
		h, []byte(`{"user": {"name": "ada", "age": 36, "admin": true}, "items": [{"id": "i-1"}, {"id": "i-2"}]}`))
}

func TestProcess_RequestValues(t *testing.T) {
	e := New()
	ctx := NewContext(newRequest(), map[string]string{"id": "42"}, map[string]string{"tenant": "acme"})

	tests := []struct {
		tmpl string
		want string
	}{
		{tmpl: "{{request.method}}", want: "POST"},
		{tmpl: "{{request.path}}", want: "/users/42"},
		{tmpl: "{{request.uri}}", want: "/users/42?page=2&name=Ada"},
		{tmpl: "{{request.query.page}}", want: "2"},
		{tmpl: "{{request.header.x-token}}", want: "abc"},
		{tmpl: "{{request.cookie.session}}", want: "s-1"},
		{tmpl: "{{request.body.user.name}}", want: "ada"},
		{tmpl: "{{request.body.user.age}}", want: "36"},
		{tmpl: "{{request.body.user.admin}}", want: "true"},
		{tmpl: "{{request.body.items.1.id}}", want: "i-2"},
		{tmpl: "{{request.body.items.9.id}}", want: ""},
		{tmpl: "{{request.pathParam.id}}", want: "42"},
		{tmpl: "{{var.tenant}}", want: "acme"},
		{tmpl: "{{var.missing}}", want: ""},
		{tmpl: "{{ request.method }} {{request.path}}!", want: "POST /users/42!"},
		{tmpl: "{{unknown.thing}}", want: ""},
		{tmpl: "no expressions", want: "no expressions"},
	}

	for _, tt := range tests {
		t.Run(tt.tmpl, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Process(tt.tmpl, ctx))
		})
	}
}

func TestProcess_Functions(t *testing.T) {
	e := New()
	ctx := NewContext(newRequest(), nil, map[string]string{"empty": ""})

	assert.Equal(t, "ADA", e.Process("{{upper(request.body.user.name)}}", ctx))
	assert.Equal(t, "ada", e.Process("{{lower(request.query.name)}}", ctx))
	assert.Equal(t, "HELLO", e.Process(`{{upper("hello")}}`, ctx))
	assert.Equal(t, "n/a", e.Process(`{{default(var.empty, "n/a")}}`, ctx))
	assert.Equal(t, "2", e.Process(`{{default(request.query.page, "1")}}`, ctx))
	assert.Equal(t, "a, b", e.Process(`{{default(var.empty, "a, b")}}`, ctx))
}

func TestProcess_Builtins(t *testing.T) {
	e := New()

	_, err := uuid.Parse(e.Process("{{uuid}}", nil))
	assert.NoError(t, err)
	assert.Len(t, e.Process("{{uuid.short}}", nil), 8)

	ts, err := strconv.ParseInt(e.Process("{{timestamp}}", nil), 10, 64)
	require.NoError(t, err)
	assert.Positive(t, ts)

	assert.NotEmpty(t, e.Process("{{now}}", nil))

	for range 20 {
		n, err := strconv.Atoi(e.Process("{{random.int(5, 7)}}", nil))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 5)
		assert.LessOrEqual(t, n, 7)
	}

	assert.Regexp(t, regexp.MustCompile(`^[a-zA-Z0-9]{16}$`), e.Process("{{random.string(16)}}", nil))
	assert.Regexp(t, regexp.MustCompile(`^1\.\d{3}$`), e.Process("{{random.float(1, 1.5, 3)}}", nil))
}

func TestProcess_NilContext(t *testing.T) {
	e := New()
	assert.Equal(t, "[]", e.Process("[{{request.path}}{{var.x}}]", nil))
}

func TestSequence(t *testing.T) {
	e := New()
	assert.Equal(t, "1", e.Process(`{{sequence("orders")}}`, nil))
	assert.Equal(t, "2", e.Process(`{{sequence("orders")}}`, nil))
	assert.Equal(t, "100", e.Process(`{{sequence("invoices", 100)}}`, nil))
	assert.Equal(t, "3", e.Process(`{{sequence("orders")}}`, nil))
}

func TestSequence_SharedStore(t *testing.T) {
	store := NewSequenceStore()
	a := NewWithSequences(store)
	b := NewWithSequences(store)

	assert.Equal(t, "1", a.Process(`{{sequence("n")}}`, nil))
	assert.Equal(t, "2", b.Process(`{{sequence("n")}}`, nil))

	store.Reset("n")
	assert.Equal(t, "1", a.Process(`{{sequence("n")}}`, nil))
}

func TestSequenceStore_Concurrent(t *testing.T) {
	store := NewSequenceStore()
	const n = 200

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]bool)
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := store.Next("c", 1)
			mu.Lock()
			seen[v] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
	for i := int64(1); i <= n; i++ {
		assert.True(t, seen[i], "missing %d", i)
	}
}

func TestProcessValue(t *testing.T) {
	e := New()
	ctx := NewContext(newRequest(), nil, nil)

	in := map[string]interface{}{
		"method": "{{request.method}}",
		"nested": []interface{}{"{{request.query.page}}", 3.0, true},
	}
	out := e.ProcessValue(in, ctx)

	assert.Equal(t, map[string]interface{}{
		"method": "POST",
		"nested": []interface{}{"2", 3.0, true},
	}, out)
	assert.Equal(t, "{{request.method}}", in["method"], "input is not modified")
}

func TestNewContext_NonJSONBody(t *testing.T) {
	r := request.New("POST", "/", nil, []byte("plain text"))
	ctx := NewContext(r, nil, nil)
	e := New()
	assert.Equal(t, "", e.Process("{{request.body.field}}", ctx))
	assert.Equal(t, "plain text", e.Process("{{request.rawBody}}", ctx))
}
