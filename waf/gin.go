package waf

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GinMiddleware adapts the inspection pipeline to Gin so the platform's
// router mounts the firewall natively. Route parameters become scan
// surfaces in addition to query, body and URL.
//
//	router := gin.Default()
//	router.Use(engine.GinRateLimit(), engine.GinMiddleware())
func (e *Engine) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		params := make(map[string]string, len(c.Params))
		for _, p := range c.Params {
			params[p.Key] = p.Value
		}

		passed := false
		e.pipeline(params, http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			// The pipeline may have rewritten query/body; hand the
			// sanitized request to the rest of the chain.
			c.Request = r
			passed = true
		})).ServeHTTP(c.Writer, c.Request)

		if !passed {
			c.Abort()
			return
		}
		c.Next()
	}
}

// GinRateLimit adapts the fixed-window limiter to Gin.
func (e *Engine) GinRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		passed := false
		e.RateLimitMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			passed = true
		})).ServeHTTP(c.Writer, c.Request)
		if !passed {
			c.Abort()
			return
		}
		c.Next()
	}
}
