package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func csrfHandler(enabled bool) http.Handler {
	return CSRFOriginCheck(func() bool { return enabled }, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCSRFRejectsCrossOriginWrites(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "http://app.example.org/reports", nil)
	req.Header.Set("Origin", "http://evil.example.net")

	rec := httptest.NewRecorder()
	csrfHandler(true).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCSRFAllowsSameOriginAndSafeMethods(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "http://app.example.org/reports", nil)
	req.Header.Set("Origin", "http://app.example.org")
	rec := httptest.NewRecorder()
	csrfHandler(true).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// GET is never checked, whatever the origin.
	req = httptest.NewRequest(http.MethodGet, "http://app.example.org/reports", nil)
	req.Header.Set("Origin", "http://evil.example.net")
	rec = httptest.NewRecorder()
	csrfHandler(true).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCSRFDisabledPassesEverything(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "http://app.example.org/reports", nil)
	req.Header.Set("Origin", "http://evil.example.net")
	rec := httptest.NewRecorder()
	csrfHandler(false).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCSRFAllowsNonBrowserClients(t *testing.T) {
	// No Origin header at all: API clients pass.
	req := httptest.NewRequest(http.MethodPost, "http://app.example.org/reports", nil)
	rec := httptest.NewRecorder()
	csrfHandler(true).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
