package privacy

import (
	"github.com/raaihank/incident-sentinel/internal/logger"
	"go.uber.org/zap"
)

// Detector finds and masks sensitive spans in free text.
//
// A Detector holds no mutable state after construction; Detect, Redact and
// Process are safe for concurrent use.
type Detector struct {
	rules  []DetectionRule
	logger *logger.Logger
}

// New creates a detector over the default rule registry
func New(log *logger.Logger) *Detector {
	detector := &Detector{
		rules:  GetDefaultRules(),
		logger: log,
	}

	log.Info("Leak detector initialized",
		zap.Int("total_rules", len(detector.rules)),
	)

	return detector
}

// Detect runs every rule against text and returns the distinct findings.
// Findings are deduplicated by their rendered form; their order carries no meaning.
func (d *Detector) Detect(text string) []Finding {
	findings := make([]Finding, 0)
	seen := make(map[string]struct{})

	for _, rule := range d.rules {
		for _, submatches := range rule.Pattern.FindAllStringSubmatch(text, -1) {
			if !rule.keep(submatches[0]) {
				continue
			}

			finding := Finding{Category: rule.Category, Value: rule.value(submatches)}
			key := finding.String()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			findings = append(findings, finding)
		}
	}

	return findings
}

// Redact substitutes every match with its rule's placeholder. Rules run in
// registry order, each over the output of the previous one.
func (d *Detector) Redact(text string) string {
	for _, rule := range d.rules {
		text = rule.redact(text)
	}
	return text
}

// Process detects and redacts the same text snapshot.
func (d *Detector) Process(text string) ProcessResult {
	findings := d.Detect(text)
	redacted := d.Redact(text)

	leaks := make([]string, len(findings))
	for i, f := range findings {
		leaks[i] = f.String()
	}

	result := ProcessResult{
		RedactedText: redacted,
		Leaks:        leaks,
		Findings:     findings,
	}

	if len(findings) > 0 {
		for category, count := range result.CountByCategory() {
			d.logger.Debug("Sensitive data detected and masked",
				zap.String("category", string(category)),
				zap.Int("count", count),
			)
		}
	}

	return result
}

// Rules returns a copy of the active registry.
func (d *Detector) Rules() []DetectionRule {
	rules := make([]DetectionRule, len(d.rules))
	copy(rules, d.rules)
	return rules
}
