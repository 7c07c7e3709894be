package core

import (
	"fmt"

	"github.com/SamuelRCrider/callbridge/utils"
)

// Detector applies a catalog to free text. It holds no mutable state.
type Detector struct {
	catalog *Catalog
}

// NewDetector creates a detector over catalog, or over DefaultCatalog when
// catalog is nil.
func NewDetector(catalog *Catalog) *Detector {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Detector{catalog: catalog}
}

// Catalog returns the catalog the detector scans with.
func (d *Detector) Catalog() *Catalog {
	return d.catalog
}

// Scan returns one finding per non-overlapping match of every rule, in
// catalog order (high, medium, low) and match order within a rule. All tiers
// are always scanned so callers can log the full evidence.
func (d *Detector) Scan(text, context string) []utils.ThreatFinding {
	if text == "" {
		return nil
	}

	var findings []utils.ThreatFinding
	for _, tier := range d.catalog.tiers() {
		for _, p := range tier {
			for _, loc := range p.Regex.FindAllStringIndex(text, -1) {
				findings = append(findings, utils.ThreatFinding{
					Severity:    p.Severity,
					Category:    p.Category,
					RuleID:      p.ID,
					Context:     context,
					MatchedText: text[loc[0]:loc[1]],
					Description: describeFinding(p.Severity, context),
					StartIndex:  loc[0],
					EndIndex:    loc[1],
				})
			}
		}
	}
	return findings
}

// IsSafe scans text and allows it unless a high severity finding exists.
// Medium and low findings are returned for the caller to log.
func (d *Detector) IsSafe(text, context string) (bool, []utils.ThreatFinding) {
	findings := d.Scan(text, context)
	return !utils.HasSeverity(findings, utils.SeverityHigh), findings
}

// ScanResult summarizes a scan for reporting
type ScanResult struct {
	// Input context label
	Context string `json:"context"`

	// All findings in catalog order
	Findings []utils.ThreatFinding `json:"findings"`

	// Risk summary
	RiskAssessment RiskAssessment `json:"risk_assessment"`

	// Allowed is the admission verdict
	Allowed bool `json:"allowed"`
}

// RiskAssessment counts findings per tier
type RiskAssessment struct {
	HighestSeverity utils.Severity `json:"highest_severity,omitempty"`
	High            int            `json:"high"`
	Medium          int            `json:"medium"`
	Low             int            `json:"low"`
}

// Analyze scans text and builds a ScanResult.
func (d *Detector) Analyze(text, context string) *ScanResult {
	allowed, findings := d.IsSafe(text, context)
	counts := utils.CountBySeverity(findings)

	assessment := RiskAssessment{
		High:   counts[utils.SeverityHigh],
		Medium: counts[utils.SeverityMedium],
		Low:    counts[utils.SeverityLow],
	}
	switch {
	case assessment.High > 0:
		assessment.HighestSeverity = utils.SeverityHigh
	case assessment.Medium > 0:
		assessment.HighestSeverity = utils.SeverityMedium
	case assessment.Low > 0:
		assessment.HighestSeverity = utils.SeverityLow
	}

	return &ScanResult{
		Context:        context,
		Findings:       findings,
		RiskAssessment: assessment,
		Allowed:        allowed,
	}
}

func describeFinding(severity utils.Severity, context string) string {
	switch severity {
	case utils.SeverityHigh:
		return fmt.Sprintf("Potential prompt injection detected in %s", context)
	case utils.SeverityMedium:
		return fmt.Sprintf("Suspicious content detected in %s", context)
	default:
		return fmt.Sprintf("Potentially suspicious content in %s", context)
	}
}
