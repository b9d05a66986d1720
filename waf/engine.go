package waf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"pollguard/logger"
	"pollguard/store"
)

const maxInspectBody = 1 << 20 // 1 MiB

// Engine composes the firewall: block-set and allow-list checks, the
// geoblocking filter, the threat scan, sanitization, rate limiting, and the
// administrative entry points. One engine serves all in-flight requests.
type Engine struct {
	cfg      atomic.Pointer[Config]
	cfgMu    sync.Mutex // serializes config writers; readers load the pointer
	blocks   store.Storer
	tracker  *ActivityTracker
	limiter  *RateLimiter
	geo      *GeoFilter
	OnManual func(ip, reason string) // optional alert hook for manual blocks
}

// NewEngine wires the engine around the given config and block-set backend.
// Call Start to begin the activity sweep and Shutdown to release everything.
func NewEngine(cfg *Config, blocks store.Storer) *Engine {
	e := &Engine{
		blocks:  blocks,
		tracker: NewActivityTracker(blocks, defaultEscalationThreshold, defaultRetention),
		limiter: NewRateLimiter(),
		geo:     NewGeoFilter(cfg.GeoIPDBPath),
	}
	e.cfg.Store(cfg)
	return e
}

// Start begins the background activity sweep.
func (e *Engine) Start() { e.tracker.Start() }

// Tracker exposes the escalation table to the admin surface.
func (e *Engine) Tracker() *ActivityTracker { return e.tracker }

func (e *Engine) Shutdown() {
	e.tracker.Stop()
	e.limiter.Stop()
	e.geo.Close()
}

// Config returns the current immutable snapshot.
func (e *Engine) Config() *Config { return e.cfg.Load() }

// UpdateConfig applies a partial update atomically: readers observe either
// the old snapshot or the new one, never a mix.
func (e *Engine) UpdateConfig(p ConfigPatch) *Config {
	e.cfgMu.Lock()
	defer e.cfgMu.Unlock()
	next := e.cfg.Load().merged(p)
	e.cfg.Store(next)
	logger.Info("firewall config updated")
	return next
}

// BlockIP adds ip to the block set. source is "manual" for admin calls.
func (e *Engine) BlockIP(ip, reason, source string) {
	e.blocks.Block(ip, store.BlockInfo{Source: source, Reason: reason, CreatedAt: time.Now()})
	logger.Warn("ip blocked", "ip", ip, "source", source, "reason", reason)
	if source == "manual" && e.OnManual != nil {
		e.OnManual(ip, reason)
	}
}

// UnblockIP removes ip from both the dynamic set and the static config
// list. Unblocking an IP that is not blocked is a no-op.
func (e *Engine) UnblockIP(ip string) error {
	if err := e.blocks.Unblock(ip); err != nil {
		return err
	}
	e.cfgMu.Lock()
	cur := e.cfg.Load()
	if contains(cur.BlockedIPs, ip) {
		kept := make([]string, 0, len(cur.BlockedIPs))
		for _, b := range cur.BlockedIPs {
			if b != ip {
				kept = append(kept, b)
			}
		}
		next := *cur
		next.BlockedIPs = kept
		e.cfg.Store(&next)
	}
	e.cfgMu.Unlock()
	logger.Info("ip unblocked", "ip", ip)
	return nil
}

// IsBlocked reports whether ip is in the union of the static list and the
// dynamic block set.
func (e *Engine) IsBlocked(ip string) bool {
	if contains(e.cfg.Load().BlockedIPs, ip) {
		return true
	}
	return e.blocks.IsBlocked(ip)
}

// BlockedIPs returns the full block set for the admin surface.
func (e *Engine) BlockedIPs() map[string]store.BlockInfo {
	out, err := e.blocks.ListBlocks()
	if err != nil {
		logger.Error("listing block set failed", "err", err)
		out = map[string]store.BlockInfo{}
	}
	now := time.Now()
	for _, ip := range e.cfg.Load().BlockedIPs {
		if _, ok := out[ip]; !ok {
			out[ip] = store.BlockInfo{Source: "static", Reason: "configured", CreatedAt: now}
		}
	}
	return out
}

// ClientID resolves the client identity: X-Forwarded-For first hop, then
// X-Real-IP, then the socket address.
func ClientID(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return strings.TrimSpace(real)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware is the synchronous inspection pipeline: block set → allow list
// → geoblock → threat scan → sanitize → forward. Terminal on first denial.
func (e *Engine) Middleware(next http.Handler) http.Handler {
	return e.pipeline(nil, next)
}

// pipeline is the shared implementation behind Middleware and the framework
// adapters. pathParams carries route parameters when the host router has
// them (gin); nil otherwise.
func (e *Engine) pipeline(pathParams map[string]string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cfg := e.cfg.Load()
		client := ClientID(r)

		if e.IsBlocked(client) {
			logger.Warn("denied: blocked ip", "client", client, "path", r.URL.Path, "method", r.Method)
			blockedRequests.WithLabelValues("block_set", "BLOCKED_IP").Inc()
			writeJSONError(w, http.StatusForbidden, "Forbidden", "Access denied")
			return
		}

		if cfg.EnableIPWhitelist {
			if _, ok := cfg.allowedIPSet()[client]; !ok {
				logger.Warn("denied: not on allow list", "client", client, "path", r.URL.Path, "method", r.Method)
				blockedRequests.WithLabelValues("allow_list", "IP_NOT_WHITELISTED").Inc()
				writeJSONError(w, http.StatusForbidden, "Forbidden", "Access denied")
				return
			}
		}

		if !e.geo.Allowed(cfg, client) {
			logger.Warn("denied: country not allowed", "client", client,
				"country", e.geo.CountryCode(client), "path", r.URL.Path)
			blockedRequests.WithLabelValues("geoblock", "COUNTRY_NOT_ALLOWED").Inc()
			writeJSONError(w, http.StatusForbidden, "Forbidden", "Access denied")
			return
		}

		// Content inspection and sanitization run fail-open: if the firewall
		// itself malfunctions the request is forwarded, trading strictness
		// for platform availability. Deliberate; do not flip to fail-closed.
		forward, denied := e.inspectAndSanitize(w, r, cfg, client, pathParams)
		if denied {
			return
		}
		next.ServeHTTP(w, forward)
	})
}

// inspectAndSanitize scans the request surfaces and, when clean, rewrites
// query/body with sanitized values. Returns the request to forward and
// whether the response was already written (denial).
func (e *Engine) inspectAndSanitize(w http.ResponseWriter, r *http.Request, cfg *Config, client string, pathParams map[string]string) (out *http.Request, denied bool) {
	out = r
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("inspection error, failing open",
				"client", client, "path", r.URL.Path, "panic", fmt.Sprint(rec))
			out, denied = r, false
		}
	}()

	surfaces, body := collectSurfaces(r)
	surfaces.PathParams = pathParams
	result := NewInspector(cfg).Inspect(surfaces)
	if result.Threat {
		f := result.Finding
		logger.Error("threat detected",
			"finding_id", f.ID, "kind", f.Kind.String(), "severity", f.Severity.String(),
			"field", f.MatchedField, "detail", f.Detail,
			"client", client, "path", r.URL.Path, "method", r.Method)
		threatFindings.WithLabelValues(f.Kind.String(), f.Severity.String()).Inc()
		blockedRequests.WithLabelValues("threat_scan", f.Kind.String()).Inc()
		e.tracker.Record(client, f.Severity)
		writeJSONError(w, http.StatusBadRequest, "Bad Request", "Request rejected")
		return r, true
	}

	if !PathExempt(r.URL.Path) {
		out = sanitizeRequest(r, body)
	}
	return out, false
}

// collectSurfaces snapshots the request's textual surfaces. The body is
// consumed and returned so the caller can restore or rewrite it. Only
// top-level string values are collected; nested structures stay opaque.
func collectSurfaces(r *http.Request) (RequestSurfaces, *bodyPayload) {
	s := RequestSurfaces{
		Path:   r.URL.Path,
		RawURL: r.URL.String(),
		Query:  r.URL.Query(),
	}
	body := readBody(r)
	if body != nil {
		s.BodyFields = body.stringFields()
	}
	return s, body
}

// bodyPayload holds a buffered request body plus its decoded form, for
// scanning and later sanitized re-serialization.
type bodyPayload struct {
	jsonFields map[string]any
	formFields url.Values
}

func readBody(r *http.Request) *bodyPayload {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	ct := r.Header.Get("Content-Type")
	isJSON := strings.HasPrefix(ct, "application/json")
	isForm := strings.HasPrefix(ct, "application/x-www-form-urlencoded")
	if !isJSON && !isForm {
		return nil
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxInspectBody+1))
	if err != nil || len(raw) > maxInspectBody {
		// Oversized or unreadable bodies bypass content inspection: the
		// scan buffer is bounded and the firewall fails open. Stitch the
		// consumed prefix back onto the stream so downstream reads the
		// exact bytes the client sent.
		r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(raw), r.Body))
		return nil
	}
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(raw))

	p := &bodyPayload{}
	if isJSON {
		var fields map[string]any
		if json.Unmarshal(raw, &fields) == nil {
			p.jsonFields = fields
		}
	} else {
		if vals, err := url.ParseQuery(string(raw)); err == nil {
			p.formFields = vals
		}
	}
	return p
}

func (p *bodyPayload) stringFields() map[string]string {
	out := make(map[string]string)
	for key, val := range p.jsonFields {
		if s, ok := val.(string); ok {
			out[key] = s
		}
	}
	for key, vals := range p.formFields {
		if len(vals) > 0 {
			out[key] = vals[0]
		}
	}
	return out
}

// sanitizeRequest strips dangerous substrings from query and body values
// and rewrites the request accordingly.
func sanitizeRequest(r *http.Request, body *bodyPayload) *http.Request {
	query := r.URL.Query()
	if SanitizeValues(query) {
		r.URL.RawQuery = query.Encode()
	}

	if body != nil {
		switch {
		case body.jsonFields != nil:
			if SanitizeFields(body.jsonFields) {
				if raw, err := json.Marshal(body.jsonFields); err == nil {
					replaceBody(r, raw)
				}
			}
		case body.formFields != nil:
			if SanitizeValues(body.formFields) {
				replaceBody(r, []byte(body.formFields.Encode()))
			}
		}
	}
	return r
}

func replaceBody(r *http.Request, raw []byte) {
	r.Body = io.NopCloser(bytes.NewReader(raw))
	r.ContentLength = int64(len(raw))
	r.Header.Set("Content-Length", fmt.Sprint(len(raw)))
}

// RateLimitMiddleware applies fixed-window limiting. Composed independently
// of the inspection pipeline.
func (e *Engine) RateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cfg := e.cfg.Load()
		if !cfg.EnableRateLimit {
			next.ServeHTTP(w, r)
			return
		}
		client := ClientID(r)
		if !e.limiter.Allow(client, cfg.MaxRequestsPerWindow, cfg.WindowDuration()) {
			retry := e.limiter.RetryAfter(client, cfg.WindowDuration())
			logger.Warn("rate limit exceeded", "client", client, "path", r.URL.Path)
			blockedRequests.WithLabelValues("rate_limit", "RATE_LIMIT_EXCEEDED").Inc()
			w.Header().Set("Retry-After", fmt.Sprint(int(retry.Seconds())+1))
			writeJSONError(w, http.StatusTooManyRequests, "Too Many Requests", "Rate limit exceeded, retry later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// TestRules runs the detection pipeline against a synthetic input with no
// side effects: no activity recording, no metrics, no security logging.
func (e *Engine) TestRules(input string) (blocked bool, reason string) {
	surfaces := RequestSurfaces{
		Path:   "/",
		RawURL: "/",
		Query:  map[string][]string{"input": {input}},
	}
	result := NewInspector(e.cfg.Load()).Inspect(surfaces)
	if result.Threat {
		return true, result.Finding.Kind.String()
	}
	return false, ""
}

func writeJSONError(w http.ResponseWriter, status int, errMsg, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": errMsg, "message": message})
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
