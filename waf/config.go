package waf

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config is an immutable snapshot of the firewall's tunable parameters.
// Readers get the whole snapshot or none of it: updates build a fresh copy
// and swap it in atomically, never mutate in place.
type Config struct {
	EnableRateLimit              bool     `json:"enable_rate_limit"`
	EnableSQLInjectionProtection bool     `json:"enable_sql_injection_protection"`
	EnableXSSProtection          bool     `json:"enable_xss_protection"`
	EnableCSRFProtection         bool     `json:"enable_csrf_protection"`
	EnableIPWhitelist            bool     `json:"enable_ip_whitelist"`
	EnableGeoblocking            bool     `json:"enable_geoblocking"`
	AllowedCountries             []string `json:"allowed_countries"`
	BlockedIPs                   []string `json:"blocked_ips"`
	AllowedIPs                   []string `json:"allowed_ips"`
	MaxRequestsPerWindow         int      `json:"max_requests_per_window"`
	WindowDurationMs             int      `json:"window_duration_ms"`
	GeoIPDBPath                  string   `json:"geoip_db_path"`
	WebhookURL                   string   `json:"webhook_url"`
}

// ConfigPatch carries a partial update. Nil fields are left untouched.
type ConfigPatch struct {
	EnableRateLimit              *bool     `json:"enable_rate_limit"`
	EnableSQLInjectionProtection *bool     `json:"enable_sql_injection_protection"`
	EnableXSSProtection          *bool     `json:"enable_xss_protection"`
	EnableCSRFProtection         *bool     `json:"enable_csrf_protection"`
	EnableIPWhitelist            *bool     `json:"enable_ip_whitelist"`
	EnableGeoblocking            *bool     `json:"enable_geoblocking"`
	AllowedCountries             *[]string `json:"allowed_countries"`
	BlockedIPs                   *[]string `json:"blocked_ips"`
	AllowedIPs                   *[]string `json:"allowed_ips"`
	MaxRequestsPerWindow         *int      `json:"max_requests_per_window"`
	WindowDurationMs             *int      `json:"window_duration_ms"`
}

// WindowDuration returns the rate-limit window as a duration.
func (c *Config) WindowDuration() time.Duration {
	return time.Duration(c.WindowDurationMs) * time.Millisecond
}

func (c *Config) allowedIPSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.AllowedIPs))
	for _, ip := range c.AllowedIPs {
		set[ip] = struct{}{}
	}
	return set
}

func (c *Config) allowedCountrySet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.AllowedCountries))
	for _, cc := range c.AllowedCountries {
		set[cc] = struct{}{}
	}
	return set
}

// merged returns a copy of c with the non-nil fields of p applied.
func (c *Config) merged(p ConfigPatch) *Config {
	next := *c
	next.AllowedCountries = append([]string(nil), c.AllowedCountries...)
	next.BlockedIPs = append([]string(nil), c.BlockedIPs...)
	next.AllowedIPs = append([]string(nil), c.AllowedIPs...)

	if p.EnableRateLimit != nil {
		next.EnableRateLimit = *p.EnableRateLimit
	}
	if p.EnableSQLInjectionProtection != nil {
		next.EnableSQLInjectionProtection = *p.EnableSQLInjectionProtection
	}
	if p.EnableXSSProtection != nil {
		next.EnableXSSProtection = *p.EnableXSSProtection
	}
	if p.EnableCSRFProtection != nil {
		next.EnableCSRFProtection = *p.EnableCSRFProtection
	}
	if p.EnableIPWhitelist != nil {
		next.EnableIPWhitelist = *p.EnableIPWhitelist
	}
	if p.EnableGeoblocking != nil {
		next.EnableGeoblocking = *p.EnableGeoblocking
	}
	if p.AllowedCountries != nil {
		next.AllowedCountries = append([]string(nil), *p.AllowedCountries...)
	}
	if p.BlockedIPs != nil {
		next.BlockedIPs = append([]string(nil), *p.BlockedIPs...)
	}
	if p.AllowedIPs != nil {
		next.AllowedIPs = append([]string(nil), *p.AllowedIPs...)
	}
	if p.MaxRequestsPerWindow != nil {
		next.MaxRequestsPerWindow = *p.MaxRequestsPerWindow
	}
	if p.WindowDurationMs != nil {
		next.WindowDurationMs = *p.WindowDurationMs
	}
	return &next
}

// DefaultConfig returns the baseline configuration: all protections on,
// whitelist and geoblocking off, 100 requests per minute.
func DefaultConfig() *Config {
	return &Config{
		EnableRateLimit:              true,
		EnableSQLInjectionProtection: true,
		EnableXSSProtection:          true,
		EnableCSRFProtection:         true,
		MaxRequestsPerWindow:         100,
		WindowDurationMs:             60_000,
	}
}

// LoadConfig reads a JSON config file and applies POLLGUARD_* environment
// overrides. A missing file is not an error; defaults fill the gaps.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if file, err := os.Open(path); err == nil {
		err = json.NewDecoder(file).Decode(cfg)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if val := os.Getenv("POLLGUARD_MAX_REQUESTS"); val != "" {
		fmt.Sscanf(val, "%d", &cfg.MaxRequestsPerWindow)
	}
	if val := os.Getenv("POLLGUARD_WINDOW_MS"); val != "" {
		fmt.Sscanf(val, "%d", &cfg.WindowDurationMs)
	}
	if val := os.Getenv("POLLGUARD_GEOIP_DB"); val != "" {
		cfg.GeoIPDBPath = val
	}
	if val := os.Getenv("POLLGUARD_WEBHOOK_URL"); val != "" {
		cfg.WebhookURL = val
	}

	if cfg.MaxRequestsPerWindow <= 0 {
		cfg.MaxRequestsPerWindow = 100
	}
	if cfg.WindowDurationMs <= 0 {
		cfg.WindowDurationMs = 60_000
	}
	return cfg, nil
}
