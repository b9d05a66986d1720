package waf

import (
	"sort"

	"github.com/google/uuid"
)

const maxDetailLen = 100

// ThreatFinding is one detected threat instance. Findings only ever reach
// the log sink and the activity counter; they are not persisted.
type ThreatFinding struct {
	ID           string     `json:"id"`
	Kind         ThreatKind `json:"kind"`
	Severity     Severity   `json:"severity"`
	Detail       string     `json:"detail"`
	MatchedField string     `json:"matched_field"`
}

// InspectionResult is the outcome of scanning one request.
type InspectionResult struct {
	Threat  bool
	Finding *ThreatFinding
}

// RequestSurfaces is the framework-neutral snapshot of a request's textual
// surfaces. Only top-level string values are carried; nested objects and
// arrays are not flattened (documented scope, see DESIGN.md).
type RequestSurfaces struct {
	Path       string
	RawURL     string
	Query      map[string][]string
	PathParams map[string]string
	BodyFields map[string]string
}

// Inspector applies the pattern library to a request's surfaces.
type Inspector struct {
	disabled map[ThreatKind]bool
}

// NewInspector builds an inspector honoring the per-class protection flags.
func NewInspector(cfg *Config) *Inspector {
	disabled := make(map[ThreatKind]bool, 2)
	if !cfg.EnableSQLInjectionProtection {
		disabled[KindSQLInjection] = true
	}
	if !cfg.EnableXSSProtection {
		disabled[KindXSS] = true
	}
	return &Inspector{disabled: disabled}
}

// Inspect scans the surfaces in a stable order and returns on the first
// classification. An exempt path skips the scan entirely.
func (in *Inspector) Inspect(s RequestSurfaces) InspectionResult {
	if PathExempt(s.Path) {
		return InspectionResult{}
	}

	if f := in.scan(s.Path, "path", s.Path); f != nil {
		return InspectionResult{Threat: true, Finding: f}
	}
	if f := in.scan(s.RawURL, "url", s.Path); f != nil {
		return InspectionResult{Threat: true, Finding: f}
	}
	for _, key := range sortedKeys(s.Query) {
		for _, val := range s.Query[key] {
			if f := in.scan(val, "query:"+key, s.Path); f != nil {
				return InspectionResult{Threat: true, Finding: f}
			}
		}
	}
	for _, key := range sortedMapKeys(s.PathParams) {
		if f := in.scan(s.PathParams[key], "param:"+key, s.Path); f != nil {
			return InspectionResult{Threat: true, Finding: f}
		}
	}
	for _, key := range sortedMapKeys(s.BodyFields) {
		if f := in.scan(s.BodyFields[key], "body:"+key, s.Path); f != nil {
			return InspectionResult{Threat: true, Finding: f}
		}
	}
	return InspectionResult{}
}

func (in *Inspector) scan(value, field, path string) *ThreatFinding {
	if value == "" {
		return nil
	}
	c := classify(value, path, in.disabled)
	if c == nil {
		return nil
	}
	return &ThreatFinding{
		ID:           uuid.NewString(),
		Kind:         c.Kind,
		Severity:     c.Severity,
		Detail:       truncate(value, maxDetailLen),
		MatchedField: field,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedMapKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
