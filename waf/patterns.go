package waf

import (
	"regexp"
	"strings"
)

// ThreatKind identifies the class of a matched signature.
type ThreatKind int

const (
	KindSQLInjection ThreatKind = iota
	KindXSS
	KindPathTraversal
	KindCommandInjection
)

func (k ThreatKind) String() string {
	switch k {
	case KindSQLInjection:
		return "sql_injection"
	case KindXSS:
		return "xss"
	case KindPathTraversal:
		return "path_traversal"
	case KindCommandInjection:
		return "command_injection"
	}
	return "unknown"
}

// Severity of a finding. Escalation to the block set requires High or above.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	}
	return "UNKNOWN"
}

// threatClass couples a kind with its compiled signature set and the
// severity assigned to any match of that class.
type threatClass struct {
	kind       ThreatKind
	severity   Severity
	signatures []*regexp.Regexp
}

var (
	sqliSignatures = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(union.{0,20}select|insert.{0,20}into|drop.{0,10}table|delete.{0,20}from|update.{0,20}set)`),
		regexp.MustCompile(`(?i)(' *or *'1' *= *'1|" *or *"1" *= *"1|or +1 *= *1)`),
		regexp.MustCompile(`(--|/\*|;.*--)`),
		regexp.MustCompile(`(?i)(exec\(|sp_executesql|xp_cmdshell|information_schema|sysdatabases|waitfor +delay)`),
	}

	xssSignatures = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<script[^>]*>`),
		regexp.MustCompile(`(?i)(javascript:|vbscript:|data:text/html)`),
		regexp.MustCompile(`(?i)on(error|load|click|mouseover|focus|blur)\s*=`),
		regexp.MustCompile(`(?i)(<iframe|<embed|<object|document\.(cookie|location)|window\.(location|open)|String\.fromCharCode|eval\()`),
	}

	traversalSignatures = []*regexp.Regexp{
		regexp.MustCompile(`(\.\./|\.\.\\|%2e%2e%2f|%2e%2e/|\.\.%2f)`),
		regexp.MustCompile(`(?i)(/etc/passwd|/etc/shadow|/proc/self|/windows/system32|boot\.ini|win\.ini)`),
	}

	cmdInjSignatures = []*regexp.Regexp{
		regexp.MustCompile("(;|\\||&&|`|\\$\\()\\s*(cat|ls|id|whoami|pwd|uname|curl|wget|nc|bash|sh|python|perl)\\b"),
		regexp.MustCompile(`(?i)(/bin/(ba)?sh|nc\s+-e|powershell\s+-|cmd\.exe)`),
	}
)

// classes in classification priority order. First match wins; later classes
// are not consulted once an earlier one matches.
var classes = []threatClass{
	{kind: KindSQLInjection, severity: SeverityHigh, signatures: sqliSignatures},
	{kind: KindXSS, severity: SeverityHigh, signatures: xssSignatures},
	{kind: KindPathTraversal, severity: SeverityHigh, signatures: traversalSignatures},
	{kind: KindCommandInjection, severity: SeverityCritical, signatures: cmdInjSignatures},
}

// devPathFragments suppress command-injection matches only. Build tooling
// (vite, webpack HMR, sourcemaps) legitimately ships shell-looking tokens.
var devPathFragments = []string{
	"/@vite",
	"/__webpack",
	"/node_modules/",
	"/hot-update",
	".map",
}

// pathExemptions skip content inspection entirely for the request.
var pathExemptions = []*regexp.Regexp{
	regexp.MustCompile(`^/health(z|check)?$`),
	regexp.MustCompile(`^/ready$`),
	regexp.MustCompile(`^/metrics$`),
	regexp.MustCompile(`^/(static|assets|public)/`),
	regexp.MustCompile(`^/favicon\.ico$`),
	regexp.MustCompile(`\.(css|js|png|jpg|jpeg|gif|svg|woff2?|ttf|ico)$`),
	regexp.MustCompile(`^/@vite|^/__webpack|hot-update`),
}

// Classification is the result of matching one textual value.
type Classification struct {
	Kind     ThreatKind
	Severity Severity
}

// Classify runs the signature classes in priority order against text and
// returns the first match, or nil when the text is clean. requestPath is
// consulted only for the command-injection dev-path suppression.
func Classify(text, requestPath string) *Classification {
	return classify(text, requestPath, nil)
}

// classify is the single classification loop. disabled suppresses whole
// classes (per-class protection flags); nil means all classes active.
func classify(text, requestPath string, disabled map[ThreatKind]bool) *Classification {
	for _, c := range classes {
		if disabled[c.kind] {
			continue
		}
		if c.kind == KindCommandInjection && isDevToolPath(requestPath) {
			continue
		}
		for _, re := range c.signatures {
			if re.MatchString(text) {
				return &Classification{Kind: c.kind, Severity: c.severity}
			}
		}
	}
	return nil
}

func isDevToolPath(path string) bool {
	for _, frag := range devPathFragments {
		if strings.Contains(path, frag) {
			return true
		}
	}
	return false
}

// PathExempt reports whether the request path matches a known-benign shape
// (health checks, static assets, dev tooling) that bypasses content
// inspection. Block-set and allow-list checks are unaffected.
func PathExempt(path string) bool {
	for _, re := range pathExemptions {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}
