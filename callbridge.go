// Package callbridge screens voice-AI call records for prompt injection
// before they are written to a CRM.
package callbridge

import (
	"fmt"

	"github.com/SamuelRCrider/callbridge/core"
	"github.com/SamuelRCrider/callbridge/utils"
)

// The built-in policy is compiled once. Validator and Detector are
// immutable, so sharing them is safe.
var (
	defaultDetector  = core.NewDetector(core.DefaultCatalog())
	defaultValidator = core.NewValidator(defaultDetector)
)

// ValidateCallData runs the built-in screen over a call record
func ValidateCallData(data map[string]any) (bool, string, map[string]any) {
	result := defaultValidator.ValidateCallData(data)
	return result.OK, result.Message, result.Record
}

// Screen reports whether one field of text is admissible and why
func Screen(text, context string) (bool, []utils.ThreatFinding) {
	return defaultDetector.IsSafe(text, context)
}

// SanitizeText is core.Sanitize, re-exported for callers that only need cleaning
func SanitizeText(text string, maxLength int) string {
	return core.Sanitize(text, maxLength)
}

// ValidatorFromPolicy loads a YAML policy and builds a validator over it
func ValidatorFromPolicy(path string) (*core.Validator, error) {
	policy, err := core.LoadPolicy(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}

	catalog, err := policy.Catalog()
	if err != nil {
		return nil, fmt.Errorf("failed to compile policy: %w", err)
	}

	return core.NewValidator(core.NewDetector(catalog)), nil
}

// ScreenWithPolicy validates a call record against the policy at path
func ScreenWithPolicy(path string, data map[string]any) (*core.ValidationResult, error) {
	validator, err := ValidatorFromPolicy(path)
	if err != nil {
		return nil, err
	}

	result := validator.ValidateCallData(data)
	return &result, nil
}
