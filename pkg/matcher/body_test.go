package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/stubd/pkg/request"
)

func post(body string) *request.Request {
	return request.New("POST", "/", nil, []byte(body))
}

func TestJSON(t *testing.T) {
	m, err := JSON(`{"name": "ada", "tags": ["x", "y"]}`)
	require.NoError(t, err)

	assert.True(t, m.Match(post(`{"tags":["x","y"],"name":"ada"}`)))
	assert.False(t, m.Match(post(`{"tags":["y","x"],"name":"ada"}`)))
	assert.False(t, m.Match(post(`name=ada`)))

	_, err = JSON(`{broken`)
	assert.Error(t, err)
}

func TestJSONValue(t *testing.T) {
	m, err := JSONValue(map[string]interface{}{"id": 1, "ok": true})
	require.NoError(t, err)
	assert.True(t, m.Match(post(`{"ok": true, "id": 1.0}`)))
}

func TestJSONPath(t *testing.T) {
	m, err := JSONPath(map[string]interface{}{
		"$.user.role": "admin",
		"$.user.age":  30,
	})
	require.NoError(t, err)

	assert.True(t, m.Match(post(`{"user": {"role": "admin", "age": 30}}`)))
	assert.False(t, m.Match(post(`{"user": {"role": "admin", "age": 31}}`)))
	assert.Equal(t, `jsonPath($.user.age=30, $.user.role=admin)`, m.String())

	_, err = JSONPath(nil)
	assert.Error(t, err)
	_, err = JSONPath(map[string]interface{}{"$[[": 1})
	assert.Error(t, err)
}

func TestXPath(t *testing.T) {
	m, err := XPath(map[string]string{"/order/@id": "42", "//sku": "A1"})
	require.NoError(t, err)

	assert.True(t, m.Match(post(`<order id="42"><line><sku>A1</sku></line></order>`)))
	assert.False(t, m.Match(post(`<order id="43"><line><sku>A1</sku></line></order>`)))
	assert.False(t, m.Match(post(`{"not": "xml"}`)))

	_, err = XPath(nil)
	assert.Error(t, err)
}

func TestExpr(t *testing.T) {
	m, err := Expr(`method == "POST" && headers["X-Env"] == "dev" && json.user.age >= 18`)
	require.NoError(t, err)

	r := request.New("POST", "/signup", map[string][]string{"X-Env": {"dev"}}, []byte(`{"user": {"age": 21}}`))
	assert.True(t, m.Match(r))

	minor := request.New("POST", "/signup", map[string][]string{"X-Env": {"dev"}}, []byte(`{"user": {"age": 12}}`))
	assert.False(t, m.Match(minor))

	q, err := Expr(`query["page"] == "2" && path == "/items"`)
	require.NoError(t, err)
	assert.True(t, q.Match(request.New("GET", "/items?page=2", nil, nil)))

	_, err = Expr(`method ==`)
	assert.Error(t, err)

	_, err = Expr(`"not a bool"`)
	assert.Error(t, err)
}
