package waf

import (
	"net"
	"time"

	"github.com/oschwald/geoip2-golang"
	gocache "github.com/patrickmn/go-cache"

	"pollguard/logger"
)

// GeoFilter resolves client IPs to country codes for the geoblocking check.
// Lookups are memoized; a missing database disables the filter entirely.
type GeoFilter struct {
	db    *geoip2.Reader
	cache *gocache.Cache
}

func NewGeoFilter(dbPath string) *GeoFilter {
	var db *geoip2.Reader
	if dbPath != "" {
		var err error
		db, err = geoip2.Open(dbPath)
		if err != nil {
			logger.Warn("geoblocking bypassed: GeoIP database unavailable",
				"path", dbPath, "err", err)
			db = nil
		}
	}
	return &GeoFilter{
		db:    db,
		cache: gocache.New(time.Hour, 10*time.Minute),
	}
}

// CountryCode returns the ISO country code for ip, or "" when unresolvable.
func (g *GeoFilter) CountryCode(ip string) string {
	if g.db == nil {
		return ""
	}
	if code, ok := g.cache.Get(ip); ok {
		return code.(string)
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}
	record, err := g.db.Country(parsed)
	if err != nil {
		return ""
	}
	code := record.Country.IsoCode
	g.cache.SetDefault(ip, code)
	return code
}

// Allowed applies the country allow-list. Unresolvable IPs pass: the filter
// only denies a positive match outside the allowed set.
func (g *GeoFilter) Allowed(cfg *Config, ip string) bool {
	if !cfg.EnableGeoblocking || g.db == nil {
		return true
	}
	code := g.CountryCode(ip)
	if code == "" {
		return true
	}
	_, ok := cfg.allowedCountrySet()[code]
	return ok
}

func (g *GeoFilter) Close() {
	if g.db != nil {
		g.db.Close()
	}
}
