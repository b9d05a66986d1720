package waf

import (
	"regexp"
	"strings"
)

// Best-effort stripping for values allowed through to the application.
// Defense in depth only: the block-on-detect scan is the primary control.
var (
	jsProtoRe      = regexp.MustCompile(`(?i)javascript:`)
	eventHandlerRe = regexp.MustCompile(`(?i)\bon[a-z]+\s*=`)
)

// SanitizeValue strips angle brackets, javascript: prefixes and inline
// event-handler attributes from a single value.
func SanitizeValue(s string) string {
	s = strings.ReplaceAll(s, "<", "")
	s = strings.ReplaceAll(s, ">", "")
	s = jsProtoRe.ReplaceAllString(s, "")
	s = eventHandlerRe.ReplaceAllString(s, "")
	return s
}

// SanitizeValues sanitizes every value of a multi-valued map (query params)
// and reports whether anything changed.
func SanitizeValues(m map[string][]string) bool {
	changed := false
	for key, vals := range m {
		for i, v := range vals {
			if clean := SanitizeValue(v); clean != v {
				m[key][i] = clean
				changed = true
			}
		}
	}
	return changed
}

// SanitizeFields sanitizes the string values of a decoded body and reports
// whether anything changed. Non-string values pass through untouched.
func SanitizeFields(m map[string]any) bool {
	changed := false
	for key, val := range m {
		if s, ok := val.(string); ok {
			if clean := SanitizeValue(s); clean != s {
				m[key] = clean
				changed = true
			}
		}
	}
	return changed
}
