package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fpang/sketchflow/internal/auth"
	"github.com/fpang/sketchflow/internal/conversion"
	"github.com/stretchr/testify/assert"
)

func TestLoginMux_RoutesCallbackAndLanding(t *testing.T) {
	hits := 0
	cb := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusTeapot)
	})
	mux := loginMux("/auth/callback", cb)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, 1, hits)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/result", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "return to the terminal")
	assert.Equal(t, 1, hits)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "(unknown)", displayName(nil))
	assert.Equal(t, "(unknown)", displayName(&auth.Session{}))
	assert.Equal(t, "u-1", displayName(&auth.Session{User: auth.User{ID: "u-1"}}))
	assert.Equal(t, "a@b.c", displayName(&auth.Session{User: auth.User{ID: "u-1", Email: "a@b.c"}}))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/xml", contentType(conversion.FormatGraphXML))
	assert.Equal(t, "text/plain; charset=utf-8", contentType(conversion.FormatDiagramScript))
	assert.Equal(t, "text/plain; charset=utf-8", contentType(conversion.FormatUMLScript))
}
