package matcher

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/stubd/pkg/overlay"
	"github.com/getmockd/stubd/pkg/request"
)

func get(path string) *request.Request {
	return request.New(http.MethodGet, path, nil, nil)
}

func withHeader(path, name, value string) *request.Request {
	h := http.Header{}
	h.Set(name, value)
	return request.New(http.MethodGet, path, h, nil)
}

func TestField(t *testing.T) {
	r := withHeader("/x", "Authorization", "Bearer abc")

	tests := []struct {
		name  string
		op    Operator
		value string
		want  bool
	}{
		{name: "eq", op: OpEqual, value: "Bearer abc", want: true},
		{name: "eq mismatch", op: OpEqual, value: "bearer abc", want: false},
		{name: "eq ignore case", op: OpEqualFold, value: "bearer ABC", want: true},
		{name: "contains", op: OpContains, value: "arer", want: true},
		{name: "startsWith", op: OpStartsWith, value: "Bearer ", want: true},
		{name: "endsWith", op: OpEndsWith, value: "abc", want: true},
		{name: "regex", op: OpRegex, value: `^Bearer [a-z]+$`, want: true},
		{name: "wildcard", op: OpWildcard, value: "Bearer *", want: true},
		{name: "exists", op: OpExists, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Field(request.HeaderField("Authorization"), tt.op, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Match(r))
		})
	}
}

func TestField_MissingValue(t *testing.T) {
	exists, err := Field(request.HeaderField("X-Missing"), OpExists, "")
	require.NoError(t, err)
	assert.False(t, exists.Match(get("/")))

	assert.False(t, Header("X-Missing", "").Match(get("/")))
}

func TestField_Errors(t *testing.T) {
	_, err := Field(request.BodyField(), OpRegex, "(")
	assert.Error(t, err)

	_, err = Field(request.BodyField(), Operator("like"), "x")
	assert.Error(t, err)
}

func TestLeafHelpers(t *testing.T) {
	h := http.Header{}
	h.Set("Cookie", "session=s1")
	h.Set("Content-Type", "application/x-www-form-urlencoded")
	r := request.New("post", "/login?next=home", h, []byte("user=ada"))

	assert.True(t, Method("POST").Match(r))
	assert.True(t, Method("post").Match(r))
	assert.False(t, Method("GET").Match(r))
	assert.True(t, Query("next", "home").Match(r))
	assert.True(t, Cookie("session", "s1").Match(r))
	assert.True(t, Form("user", "ada").Match(r))
	assert.True(t, Body("user=ada").Match(r))
	assert.True(t, BodyContains("ada").Match(r))
	assert.True(t, HeaderPattern("Content-Type", "*form*").Match(r))

	p, err := BodyPattern(`^user=\w+$`)
	require.NoError(t, err)
	assert.True(t, p.Match(r))
}

func TestLeafMatchers_IgnoreForeignOverlays(t *testing.T) {
	ctx := overlay.Context("/api")
	jsonM, err := JSON(`{"a":1}`)
	require.NoError(t, err)
	exprM, err := Expr(`method == "GET"`)
	require.NoError(t, err)

	for _, m := range []Matcher{Any(), Header("X", "1"), Method("GET"), jsonM, exprM} {
		assert.Same(t, m, m.Apply(ctx), m.String())
		assert.False(t, m.HandlesScope(overlay.ScopeURI), m.String())
	}
}

func TestURI(t *testing.T) {
	m := URI("/users/{id}")
	assert.True(t, m.Match(get("/users/7")))
	assert.False(t, m.Match(get("/api/users/7")))
	assert.True(t, m.HandlesScope(overlay.ScopeURI))
	assert.False(t, m.HandlesScope(overlay.ScopeFile))

	applied := m.Apply(overlay.Context("/api"))
	assert.NotSame(t, m, applied)
	assert.True(t, applied.Match(get("/api/users/7")))
	assert.False(t, applied.Match(get("/users/7")))

	// The original is untouched.
	assert.True(t, m.Match(get("/users/7")))

	assert.Same(t, m, m.Apply(overlay.FileRoot("fixtures")))
}

func TestURIRegex(t *testing.T) {
	anchored, err := URIRegex(`^/users/(?P<id>\d+)$`)
	require.NoError(t, err)

	applied := anchored.Apply(overlay.Context("/api"))
	assert.True(t, applied.Match(get("/api/users/12")))
	assert.False(t, applied.Match(get("/users/12")))
	assert.False(t, applied.Match(get("/api/v1/users/12")))
	assert.Equal(t, map[string]string{"id": "12"}, PathParams(applied, "/api/users/12"))

	unanchored, err := URIRegex(`/users/\d+`)
	require.NoError(t, err)
	applied = unanchored.Apply(overlay.Context("/api"))
	assert.True(t, applied.Match(get("/api/users/12")))
	assert.True(t, applied.Match(get("/api/v1/users/12")))
	assert.False(t, applied.Match(get("/other/users/12")))

	_, err = URIRegex(`(`)
	assert.Error(t, err)
}

func TestURIGlob(t *testing.T) {
	m, err := URIGlob("/static/**/*.css")
	require.NoError(t, err)
	assert.True(t, m.Match(get("/static/css/site.css")))

	applied := m.Apply(overlay.Context("/app"))
	assert.True(t, applied.Match(get("/app/static/css/site.css")))
	assert.False(t, applied.Match(get("/static/css/site.css")))

	_, err = URIGlob("/static/[")
	assert.Error(t, err)
}

func TestContext(t *testing.T) {
	m := Context("/v1")
	assert.True(t, m.Match(get("/v1")))
	assert.True(t, m.Match(get("/v1/users")))
	assert.False(t, m.Match(get("/v10")))

	applied := m.Apply(overlay.Context("/api"))
	assert.True(t, applied.Match(get("/api/v1/users")))
	assert.False(t, applied.Match(get("/v1/users")))
}

func TestAnd(t *testing.T) {
	uri := URI("/users")
	method := Method("GET")
	m := And(method, uri)

	assert.True(t, m.Match(get("/users")))
	assert.False(t, m.Match(request.New("POST", "/users", nil, nil)))
	assert.True(t, m.HandlesScope(overlay.ScopeURI))

	applied := m.Apply(overlay.Context("/api"))
	require.NotSame(t, m, applied)
	children := applied.(*compositeMatcher).Children()
	assert.Same(t, method, children[0], "unchanged child is shared")
	assert.NotSame(t, uri, children[1])
	assert.True(t, applied.Match(get("/api/users")))

	headerOnly := And(Method("GET"), Header("X", "1"))
	assert.Same(t, headerOnly, headerOnly.Apply(overlay.Context("/api")))
	assert.False(t, headerOnly.HandlesScope(overlay.ScopeURI))
}

func TestAnd_Degenerate(t *testing.T) {
	assert.Same(t, Any(), And())
	single := URI("/x")
	assert.Same(t, single, And(single))
}

func TestOr(t *testing.T) {
	m := Or(URI("/a"), URI("/b"))
	assert.True(t, m.Match(get("/a")))
	assert.True(t, m.Match(get("/b")))
	assert.False(t, m.Match(get("/c")))
	assert.True(t, m.HandlesScope(overlay.ScopeURI))

	mixed := Or(URI("/a"), Header("X", "1"))
	assert.False(t, mixed.HandlesScope(overlay.ScopeURI), "an unconstrained branch leaves the disjunction unconstrained")

	assert.False(t, Or().Match(get("/")))
}

func TestNot(t *testing.T) {
	inner := URI("/private")
	m := Not(inner)
	assert.False(t, m.Match(get("/private")))
	assert.True(t, m.Match(get("/public")))
	assert.False(t, m.HandlesScope(overlay.ScopeURI))

	applied := m.Apply(overlay.Context("/api"))
	assert.NotSame(t, m, applied)
	assert.False(t, applied.Match(get("/api/private")))
	assert.True(t, applied.Match(get("/private")))

	header := Not(Header("X", "1"))
	assert.Same(t, header, header.Apply(overlay.Context("/api")))
}

func TestString(t *testing.T) {
	m := And(Method("GET"), Or(URI("/a"), Not(Header("X", "1"))))
	assert.Equal(t, `and(eqIgnoreCase(method, "GET"), or(uri("/a"), not(eq(header("X"), "1"))))`, m.String())
}

func TestPathParams(t *testing.T) {
	m := And(Method("GET"), URI("/users/{id}/posts/{post}"))
	assert.Equal(t, map[string]string{"id": "1", "post": "2"}, PathParams(m, "/users/1/posts/2"))
	assert.Nil(t, PathParams(Header("X", "1"), "/users/1"))

	either := Or(URI("/users/{id}/profile"), URI("/users/{name}"))
	assert.Equal(t, map[string]string{"name": "bob"}, PathParams(either, "/users/bob"))
	assert.Nil(t, PathParams(URI("/users/{id}/profile"), "/users/bob"))
}
