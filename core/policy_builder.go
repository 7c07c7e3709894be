package core

import (
	"fmt"
	"time"

	"github.com/SamuelRCrider/callbridge/utils"
)

// PolicyBuilder provides a fluent interface for creating threat policies
type PolicyBuilder struct {
	policy *Policy
}

// NewPolicyBuilder creates a new, empty policy builder
func NewPolicyBuilder() *PolicyBuilder {
	now := time.Now().UTC()
	return &PolicyBuilder{
		policy: &Policy{
			Metadata: PolicyMetadata{
				CreatedAt: now,
				UpdatedAt: now,
			},
			Rules: []Rule{},
		},
	}
}

// FromPolicy starts a builder from a copy of an existing policy.
func FromPolicy(p *Policy) *PolicyBuilder {
	b := NewPolicyBuilder()
	b.policy.Metadata = p.Metadata
	b.policy.Metadata.Hash = ""
	b.policy.Rules = append(b.policy.Rules, p.Rules...)
	return b
}

// WithMetadata sets the policy metadata
func (b *PolicyBuilder) WithMetadata(version, description, author string) *PolicyBuilder {
	b.policy.Metadata.Version = version
	b.policy.Metadata.Description = description
	b.policy.Metadata.Author = author
	return b
}

// AddRule adds a case-insensitive rule with the category of its severity
func (b *PolicyBuilder) AddRule(id, pattern string, severity utils.Severity, description string) *PolicyBuilder {
	b.policy.Rules = append(b.policy.Rules, Rule{
		ID:          id,
		Pattern:     pattern,
		Severity:    severity,
		Category:    utils.DefaultCategory(severity),
		Description: description,
	})
	return b
}

// AddCaseSensitiveRule adds a rule matched with exact case
func (b *PolicyBuilder) AddCaseSensitiveRule(id, pattern string, severity utils.Severity, description string) *PolicyBuilder {
	b.AddRule(id, pattern, severity, description)
	b.policy.Rules[len(b.policy.Rules)-1].CaseSensitive = true
	return b
}

// RemoveRule drops every rule with the given ID
func (b *PolicyBuilder) RemoveRule(id string) *PolicyBuilder {
	kept := b.policy.Rules[:0]
	for _, r := range b.policy.Rules {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	b.policy.Rules = kept
	return b
}

// Build validates the policy and returns it
func (b *PolicyBuilder) Build() (*Policy, error) {
	if err := validatePolicy(b.policy); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}
	return b.policy, nil
}

// BuildCatalog validates the policy and compiles it
func (b *PolicyBuilder) BuildCatalog() (*Catalog, error) {
	policy, err := b.Build()
	if err != nil {
		return nil, err
	}
	return policy.Catalog()
}
