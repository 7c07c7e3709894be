package utils

// Severity ranks a threat rule. Only high severity blocks a field.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Valid reports whether s is one of the three known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// ThreatCategory labels a finding with the list its rule belongs to
type ThreatCategory string

const (
	CategoryPromptInjection       ThreatCategory = "prompt_injection"
	CategorySuspiciousContent     ThreatCategory = "suspicious_content"
	CategoryPotentiallySuspicious ThreatCategory = "potentially_suspicious"
)

// DefaultCategory returns the category paired with a severity tier.
func DefaultCategory(s Severity) ThreatCategory {
	switch s {
	case SeverityHigh:
		return CategoryPromptInjection
	case SeverityMedium:
		return CategorySuspiciousContent
	default:
		return CategoryPotentiallySuspicious
	}
}

// ThreatFinding represents one match of one rule against one field
type ThreatFinding struct {
	// Classification information
	Severity Severity       `json:"severity"`
	Category ThreatCategory `json:"category"`
	RuleID   string         `json:"rule_id,omitempty"`

	// Context is the label of the scanned field, e.g. "transcript"
	Context     string `json:"context"`
	MatchedText string `json:"matched_text"`
	Description string `json:"description"`

	// Byte offsets of the match within the scanned text
	StartIndex int `json:"start"`
	EndIndex   int `json:"end"`
}

// HasSeverity reports whether any finding carries the given severity.
func HasSeverity(findings []ThreatFinding, s Severity) bool {
	for _, f := range findings {
		if f.Severity == s {
			return true
		}
	}
	return false
}

// CountBySeverity tallies findings per severity.
func CountBySeverity(findings []ThreatFinding) map[Severity]int {
	counts := make(map[Severity]int, 3)
	for _, f := range findings {
		counts[f.Severity]++
	}
	return counts
}
