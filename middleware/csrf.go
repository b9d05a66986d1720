package middleware

import (
	"encoding/json"
	"net/http"
	"net/url"

	"pollguard/logger"
)

// CSRFOriginCheck rejects state-changing cross-origin requests whose Origin
// header names a different host. Requests without an Origin header (non-
// browser clients) pass through. enabled is read per request so config
// updates apply immediately.
func CSRFOriginCheck(enabled func() bool, next http.Handler) http.Handler {
	safeMethods := map[string]bool{
		http.MethodGet:     true,
		http.MethodHead:    true,
		http.MethodOptions: true,
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !enabled() || safeMethods[r.Method] {
			next.ServeHTTP(w, r)
			return
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}
		parsed, err := url.Parse(origin)
		if err != nil || parsed.Host != r.Host {
			logger.Warn("cross-origin request rejected",
				"origin", origin, "host", r.Host, "path", r.URL.Path, "method", r.Method)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{"error": "Forbidden", "message": "Cross-origin request rejected"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
