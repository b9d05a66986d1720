package waf

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspectFindsThreatInQuery(t *testing.T) {
	in := NewInspector(DefaultConfig())
	res := in.Inspect(RequestSurfaces{
		Path:   "/api/observers",
		RawURL: "/api/observers?name=x",
		Query:  map[string][]string{"name": {"' OR 1=1 --"}},
	})
	require.True(t, res.Threat)
	assert.Equal(t, KindSQLInjection, res.Finding.Kind)
	assert.Equal(t, "query:name", res.Finding.MatchedField)
	assert.NotEmpty(t, res.Finding.ID)
}

func TestInspectFindsThreatInBodyAndParams(t *testing.T) {
	in := NewInspector(DefaultConfig())

	res := in.Inspect(RequestSurfaces{
		Path:       "/api/reports",
		RawURL:     "/api/reports",
		BodyFields: map[string]string{"comment": "<script>steal()</script>"},
	})
	require.True(t, res.Threat)
	assert.Equal(t, "body:comment", res.Finding.MatchedField)

	res = in.Inspect(RequestSurfaces{
		Path:       "/api/observers/x",
		RawURL:     "/api/observers/x",
		PathParams: map[string]string{"id": "../../etc/passwd"},
	})
	require.True(t, res.Threat)
	assert.Equal(t, "param:id", res.Finding.MatchedField)
}

func TestInspectExemptPathSkipsEverything(t *testing.T) {
	in := NewInspector(DefaultConfig())
	res := in.Inspect(RequestSurfaces{
		Path:   "/healthz",
		RawURL: "/healthz?q=' OR 1=1 --",
		Query:  map[string][]string{"q": {"' OR 1=1 --"}},
	})
	assert.False(t, res.Threat, "exempt path must bypass the whole scan")
}

func TestInspectTruncatesDetail(t *testing.T) {
	in := NewInspector(DefaultConfig())
	long := "' OR 1=1 --" + strings.Repeat("A", 500)
	res := in.Inspect(RequestSurfaces{
		Path:  "/api",
		Query: map[string][]string{"q": {long}},
	})
	require.True(t, res.Threat)
	assert.Len(t, res.Finding.Detail, maxDetailLen)
}

func TestInspectHonorsProtectionFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableSQLInjectionProtection = false
	in := NewInspector(cfg)

	res := in.Inspect(RequestSurfaces{
		Path:  "/api",
		Query: map[string][]string{"q": {"1 UNION SELECT secret FROM votes"}},
	})
	assert.False(t, res.Threat, "disabled class must not classify")

	// XSS stays active.
	res = in.Inspect(RequestSurfaces{
		Path:  "/api",
		Query: map[string][]string{"q": {"<script>x</script>"}},
	})
	assert.True(t, res.Threat)
}

func TestInspectStableOrderFirstMatchWins(t *testing.T) {
	in := NewInspector(DefaultConfig())
	// Both query keys carry threats; keys iterate sorted, "a" wins.
	res := in.Inspect(RequestSurfaces{
		Path: "/api",
		Query: map[string][]string{
			"b": {"<script>x</script>"},
			"a": {"' OR 1=1 --"},
		},
	})
	require.True(t, res.Threat)
	assert.Equal(t, "query:a", res.Finding.MatchedField)
}
