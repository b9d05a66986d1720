package waf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeValue(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"hello <b>world</b>", "hello bworld/b"},
		{"javascript:alert(1)", "alert(1)"},
		{"JavaScript:alert(1)", "alert(1)"},
		{`x" onerror=alert(1)`, `x" alert(1)`},
		{"plain text", "plain text"},
		{"", ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, SanitizeValue(tc.in), "input %q", tc.in)
	}
}

func TestSanitizeValuesReportsChange(t *testing.T) {
	m := map[string][]string{
		"a": {"clean"},
		"b": {"<i>x</i>", "also clean"},
	}
	assert.True(t, SanitizeValues(m))
	assert.Equal(t, "ix/i", m["b"][0])
	assert.Equal(t, "clean", m["a"][0])

	clean := map[string][]string{"a": {"nothing here"}}
	assert.False(t, SanitizeValues(clean))
}

func TestSanitizeFieldsSkipsNonStrings(t *testing.T) {
	m := map[string]any{
		"name":  "x<script>",
		"count": 7,
		"meta":  map[string]any{"nested": "<kept-as-is>"},
	}
	assert.True(t, SanitizeFields(m))
	assert.Equal(t, "xscript", m["name"])
	assert.Equal(t, 7, m["count"])
	// Nested structures are out of scan scope and left untouched.
	assert.Equal(t, "<kept-as-is>", m["meta"].(map[string]any)["nested"])
}
