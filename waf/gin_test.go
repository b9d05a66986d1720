package waf

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"pollguard/store"
)

func newGinRouter(e *Engine) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(e.GinRateLimit(), e.GinMiddleware())
	router.GET("/observers/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"observer": c.Param("id")})
	})
	return router
}

func TestGinMiddlewarePassesCleanRequest(t *testing.T) {
	e := NewEngine(DefaultConfig(), store.NewLocalStore())
	defer e.Shutdown()
	router := newGinRouter(e)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/observers/42", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGinMiddlewareScansPathParams(t *testing.T) {
	e := NewEngine(DefaultConfig(), store.NewLocalStore())
	defer e.Shutdown()
	router := newGinRouter(e)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/observers/1%27%20OR%201=1%20--", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGinMiddlewareDeniesBlockedClient(t *testing.T) {
	e := NewEngine(DefaultConfig(), store.NewLocalStore())
	defer e.Shutdown()
	e.BlockIP("198.51.100.40", "test", "manual")
	router := newGinRouter(e)

	req := httptest.NewRequest(http.MethodGet, "/observers/42", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.40")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGinRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRequestsPerWindow = 1
	e := NewEngine(cfg, store.NewLocalStore())
	defer e.Shutdown()
	router := newGinRouter(e)

	req := httptest.NewRequest(http.MethodGet, "/observers/42", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.41")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/observers/42", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.41")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
