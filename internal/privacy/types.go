package privacy

import "regexp"

// Category tags a kind of sensitive information
type Category string

const (
	CategoryEmail    Category = "EMAIL"
	CategoryPhone    Category = "PHONE"
	CategoryIP       Category = "IP"
	CategoryHostname Category = "HOSTNAME"
)

// Categories lists every category in registry order
var Categories = []Category{CategoryEmail, CategoryPhone, CategoryIP, CategoryHostname}

// DetectionRule represents a single leak detection rule
type DetectionRule struct {
	Category    Category
	Pattern     *regexp.Regexp
	Replacement string

	// Keep filters raw matches. It is applied the same way by Detect and Redact
	// so a rule never masks text it would not also report.
	Keep func(match string) bool

	// Render builds the reported value from a match and its submatches.
	// Nil reports the matched literal.
	Render func(submatches []string) string
}

// Finding represents a single detected leak
type Finding struct {
	Category Category `json:"category"`
	Value    string   `json:"value"`
}

// String renders the finding in its wire form, "<CATEGORY>: <value>".
func (f Finding) String() string {
	return string(f.Category) + ": " + f.Value
}

// ProcessResult contains the result of processing one text snapshot
type ProcessResult struct {
	RedactedText string    `json:"redacted_text"`
	Leaks        []string  `json:"leaks"`
	Findings     []Finding `json:"-"`
}

// Clean reports whether no finding was produced.
func (r ProcessResult) Clean() bool {
	return len(r.Findings) == 0
}

// CountByCategory tallies findings per category.
func (r ProcessResult) CountByCategory() map[Category]int {
	counts := make(map[Category]int, len(Categories))
	for _, f := range r.Findings {
		counts[f.Category]++
	}
	return counts
}
