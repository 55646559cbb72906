package privacy

import (
	"regexp"
	"strings"
)

// Placeholder tokens substituted for redacted spans. Clients compare these
// byte for byte.
const (
	PlaceholderEmail    = "<REDACTED_EMAIL>"
	PlaceholderPhone    = "<REDACTED_PHONE>"
	PlaceholderIP       = "<REDACTED_IP>"
	PlaceholderHostname = "<REDACTED_HOSTNAME>"
)

// minHostnameLength is the shortest matched literal still reported as a hostname.
const minHostnameLength = 5

var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	// North-American numbers; the three digit groups are captured for rendering.
	// \s is ASCII-only in RE2, so Unicode space separators (NBSP, thin space) are added.
	phonePattern = regexp.MustCompile(`\b(?:\+?1[-.\s\p{Zs}]?)?\(?([0-9]{3})\)?[-.\s\p{Zs}]?([0-9]{3})[-.\s\p{Zs}]?([0-9]{4})\b`)

	// Dotted-quad shape only. Octets above 255 still match.
	ipPattern = regexp.MustCompile(`\b(?:[0-9]{1,3}\.){3}[0-9]{1,3}\b`)

	hostnamePattern = regexp.MustCompile(`\b(?:[A-Za-z0-9-]+\.){2,}[A-Za-z]{2,}\b`)
)

// GetDefaultRules returns the registry in redaction order: EMAIL, PHONE, IP, HOSTNAME.
func GetDefaultRules() []DetectionRule {
	return []DetectionRule{
		{
			Category:    CategoryEmail,
			Pattern:     emailPattern,
			Replacement: PlaceholderEmail,
		},
		{
			Category:    CategoryPhone,
			Pattern:     phonePattern,
			Replacement: PlaceholderPhone,
			Render:      renderPhone,
		},
		{
			Category:    CategoryIP,
			Pattern:     ipPattern,
			Replacement: PlaceholderIP,
		},
		{
			Category:    CategoryHostname,
			Pattern:     hostnamePattern,
			Replacement: PlaceholderHostname,
			Keep:        keepHostname,
		},
	}
}

// renderPhone joins the area code, exchange and line number without separators.
func renderPhone(submatches []string) string {
	if len(submatches) < 4 {
		return submatches[0]
	}
	return strings.Join(submatches[1:4], "")
}

func keepHostname(match string) bool {
	return len(match) >= minHostnameLength && strings.Contains(match, ".")
}

// value returns the reported form of a match.
func (r DetectionRule) value(submatches []string) string {
	if r.Render == nil {
		return submatches[0]
	}
	return r.Render(submatches)
}

// keep applies the rule's post-filter.
func (r DetectionRule) keep(match string) bool {
	return r.Keep == nil || r.Keep(match)
}

// redact replaces every kept match of the rule in text.
func (r DetectionRule) redact(text string) string {
	if r.Keep == nil {
		return r.Pattern.ReplaceAllLiteralString(text, r.Replacement)
	}
	return r.Pattern.ReplaceAllStringFunc(text, func(match string) string {
		if r.Keep(match) {
			return r.Replacement
		}
		return match
	})
}
