package response

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponse_Write(t *testing.T) {
	r := New()
	r.StatusCode = http.StatusCreated
	r.Header.Set("X-Stub", "1")
	r.SetBody([]byte(`{"ok":true}`))

	rec := httptest.NewRecorder()
	status := r.Write(rec)

	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Stub"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "11", rec.Header().Get("Content-Length"))
	assert.Equal(t, `{"ok":true}`, rec.Body.String())
}

func TestResponse_ZeroStatusWritesOK(t *testing.T) {
	rec := httptest.NewRecorder()
	(&Response{}).Write(rec)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestResponse_SetBodyKeepsExplicitContentType(t *testing.T) {
	r := New()
	r.Header.Set("Content-Type", "text/csv")
	r.SetBody([]byte("{not,really,json}"))
	assert.Equal(t, "text/csv", r.Header.Get("Content-Type"))
}

func TestResponse_Clone(t *testing.T) {
	r := New()
	r.Header.Set("A", "1")
	r.SetBody([]byte("x"))

	c := r.Clone()
	c.Header.Set("A", "2")
	c.Body[0] = 'y'

	assert.Equal(t, "1", r.Header.Get("A"))
	assert.Equal(t, "x", string(r.Body))
}

func TestDetectContentType(t *testing.T) {
	assert.Equal(t, "application/json", DetectContentType([]byte(` [1,2] `)))
	assert.Equal(t, "application/xml", DetectContentType([]byte(`<?xml version="1.0"?><a/>`)))
	assert.Equal(t, "text/html; charset=utf-8", DetectContentType([]byte(`<html><body>hi</body></html>`)))
	assert.Equal(t, "text/plain; charset=utf-8", DetectContentType([]byte(`plain words`)))
	assert.Equal(t, "text/plain; charset=utf-8", DetectContentType(nil))
}
