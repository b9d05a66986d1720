package waf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGeoFilterBypassedWithoutDatabase(t *testing.T) {
	g := NewGeoFilter("")
	defer g.Close()

	cfg := DefaultConfig()
	cfg.EnableGeoblocking = true
	cfg.AllowedCountries = []string{"US"}

	// No database: the filter must not deny anyone.
	assert.True(t, g.Allowed(cfg, "8.8.8.8"))
	assert.Empty(t, g.CountryCode("8.8.8.8"))
}

func TestGeoFilterDisabledByConfig(t *testing.T) {
	g := NewGeoFilter("/nonexistent/GeoLite2-Country.mmdb")
	defer g.Close()

	cfg := DefaultConfig()
	assert.True(t, g.Allowed(cfg, "198.51.100.1"), "geoblocking off allows everything")
}
