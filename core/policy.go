package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/SamuelRCrider/callbridge/utils"
)

// PolicyMetadata contains information about the threat policy
type PolicyMetadata struct {
	// Version of the policy
	Version string `yaml:"version"`

	// When the policy was created
	CreatedAt time.Time `yaml:"created_at"`

	// Last modification time
	UpdatedAt time.Time `yaml:"updated_at"`

	// Description of the policy
	Description string `yaml:"description"`

	// Author of the policy
	Author string `yaml:"author"`

	// Hash of the policy content for integrity verification
	Hash string `yaml:"hash,omitempty"`
}

// Rule is the on-disk form of one detection rule
type Rule struct {
	// Unique identifier for the rule
	ID string `yaml:"id"`

	// Regular expression in RE2 syntax
	Pattern string `yaml:"pattern"`

	// Severity tier: high, medium or low
	Severity utils.Severity `yaml:"severity"`

	// Category label; defaults from the severity when empty
	Category utils.ThreatCategory `yaml:"category,omitempty"`

	// Patterns compile case-insensitively unless this is set
	CaseSensitive bool `yaml:"case_sensitive,omitempty"`

	// Description of what the rule catches
	Description string `yaml:"description,omitempty"`
}

// Policy is a versioned threat rule catalog
type Policy struct {
	// Metadata about the policy
	Metadata PolicyMetadata `yaml:"metadata"`

	// Rules in evaluation order within each severity tier
	Rules []Rule `yaml:"rules"`
}

// LoadPolicy reads a YAML policy file and unmarshals it into a Policy struct
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	return ParsePolicy(data)
}

// ParsePolicy decodes and validates policy YAML.
func ParsePolicy(data []byte) (*Policy, error) {
	var policy Policy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("failed to parse policy: %w", err)
	}

	// Ensure all rules have IDs before validation so duplicates are reported by ID
	for i := range policy.Rules {
		if policy.Rules[i].ID == "" {
			policy.Rules[i].ID = fmt.Sprintf("rule-%d", i+1)
		}
		if policy.Rules[i].Category == "" {
			policy.Rules[i].Category = utils.DefaultCategory(policy.Rules[i].Severity)
		}
	}

	if err := validatePolicy(&policy); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}

	policy.Metadata.Hash = calculatePolicyHash(data)
	return &policy, nil
}

// SavePolicy writes a policy to disk with a refreshed hash
func SavePolicy(policy *Policy, path string) error {
	policy.Metadata.UpdatedAt = time.Now().UTC()
	policy.Metadata.Hash = ""

	data, err := yaml.Marshal(policy)
	if err != nil {
		return fmt.Errorf("failed to serialize policy: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create policy directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write policy file: %w", err)
	}

	// Hash covers the bytes on disk, which is what LoadPolicy will see
	policy.Metadata.Hash = calculatePolicyHash(data)
	return nil
}

// Catalog compiles the policy rules into an immutable catalog.
func (p *Policy) Catalog() (*Catalog, error) {
	patterns := make([]Pattern, 0, len(p.Rules))
	for _, rule := range p.Rules {
		compiled, err := compileRule(rule)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, compiled)
	}
	return NewCatalog(patterns), nil
}

func compileRule(rule Rule) (Pattern, error) {
	expr := rule.Pattern
	if !rule.CaseSensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, fmt.Errorf("rule %s: invalid pattern: %w", rule.ID, err)
	}
	category := rule.Category
	if category == "" {
		category = utils.DefaultCategory(rule.Severity)
	}
	return Pattern{
		ID:          rule.ID,
		Regex:       re,
		Severity:    rule.Severity,
		Category:    category,
		Description: rule.Description,
	}, nil
}

// validatePolicy checks if a policy is usable as a catalog
func validatePolicy(policy *Policy) error {
	if len(policy.Rules) == 0 {
		return fmt.Errorf("policy has no rules")
	}

	seen := make(map[string]bool, len(policy.Rules))
	for i, rule := range policy.Rules {
		if rule.Pattern == "" {
			return fmt.Errorf("rule %d (%s) has no pattern", i, rule.ID)
		}

		if !rule.Severity.Valid() {
			return fmt.Errorf("rule %d (%s) has unknown severity %q", i, rule.ID, rule.Severity)
		}

		if seen[rule.ID] {
			return fmt.Errorf("duplicate rule id %s", rule.ID)
		}
		seen[rule.ID] = true

		if _, err := compileRule(rule); err != nil {
			return err
		}
	}

	return nil
}

// calculatePolicyHash generates a hash of the policy content for integrity checking
func calculatePolicyHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// DefaultPolicy returns the built-in prompt-injection catalog.
func DefaultPolicy() *Policy {
	return &Policy{
		Metadata: PolicyMetadata{
			Version:     "1.0.0",
			CreatedAt:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			UpdatedAt:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			Description: "Prompt-injection screen for voice-AI call records",
			Author:      "callbridge",
		},
		Rules: append(append(defaultHighRules(), defaultMediumRules()...), defaultLowRules()...),
	}
}

func defaultHighRules() []Rule {
	high := func(id, pattern, desc string) Rule {
		return Rule{ID: id, Pattern: pattern, Severity: utils.SeverityHigh, Category: utils.CategoryPromptInjection, Description: desc}
	}
	return []Rule{
		high("instruction-override", `(ignore|forget|disregard).{0,50}(previous|above|prior|earlier).{0,50}(instruction|prompt|rule|command)`, "Override of earlier instructions"),
		high("assistant-redirect", `(system|assistant|ai|bot).{0,20}(now|please|must|should).{0,20}(ignore|forget|respond|answer)`, "Redirecting the assistant"),
		high("act-as-other", `act\s+as\s+(a\s+)?(different|new|another|other)`, "Role reassignment"),
		high("you-are-now", `(you\s+are|you're)\s+(now|actually|really)\s+(a|an)`, "Role reassignment"),
		high("new-instructions", `(new|different|updated|changed)\s+(instructions|rules|guidelines|prompt)`, "Replacement instructions"),
		high("pretend-role", `(assume|pretend|roleplay|act\s+like|behave\s+as)\s+(you\s+are|you're)`, "Role play framing"),
		high("privileged-mode", `(developer|admin|root|system)\s+(mode|access|override|bypass)`, "Privileged mode request"),
		high("jailbreak", `(jailbreak|break\s+out|escape|override|bypass)`, "Jailbreak vocabulary"),
		high("reveal-prompt", `(show|reveal|display|tell\s+me)\s+(your|the)\s+(prompt|instructions|rules|guidelines)`, "System prompt extraction"),
		high("original-prompt", `(what\s+are|show\s+me)\s+(your|the)\s+(original|initial|system)\s+(prompt|instructions)`, "System prompt extraction"),
		high("print-system", `print\s*\(\s*["'].*system.*["']\s*\)`, "Code printing system data"),
		high("code-execution", `(execute|run|eval|import|subprocess|os\.system)`, "Code execution tokens"),
		high("template-delimiters", `(__|\$\{|<%|<\?|\{\{)`, "Template injection delimiters"),
		high("script-language", `(script|javascript|python|bash|shell|cmd)`, "Script language names"),
		high("credentials", `(api\s+key|secret|token|password|credential)`, "Credential request"),
		high("database-ops", `(database|sql|query|select|insert|update|delete)`, "Database operations"),
		high("file-access", `(file|directory|path|folder|read|write|access)`, "File system access"),
	}
}

func defaultMediumRules() []Rule {
	medium := func(id, pattern, desc string) Rule {
		return Rule{ID: id, Pattern: pattern, Severity: utils.SeverityMedium, Category: utils.CategorySuspiciousContent, Description: desc}
	}
	caps := medium("all-caps-run", `[A-Z]{5,}`, "Long all-caps run")
	caps.CaseSensitive = true
	return []Rule{
		medium("soft-override", `(please|now|must|should)\s+(ignore|skip|bypass|override)`, "Soft override language"),
		medium("contrast-override", `(instead|but|however|actually|really)\s+(ignore|disregard|forget)`, "Soft override language"),
		medium("tell-me-everything", `(tell|show|give)\s+me\s+(everything|all|any)`, "Broad disclosure request"),
		medium("hypothetical", `(hypothetical|imagine|suppose|what\s+if)\s+(you|I|we)\s+(could|can|were)`, "Hypothetical framing"),
		medium("bracket-nesting", `[\[\]{}()<>].*[\[\]{}()<>]`, "Multiple brackets"),
		medium("triple-quotes", "[\"'`]{3,}", "Triple quote run"),
		caps,
		medium("privilege-words", `(admin|root|sudo|privilege|escalate|elevate)`, "Privilege vocabulary"),
		medium("exploit-words", `(hack|crack|exploit|vulnerability|inject)`, "Exploit vocabulary"),
		medium("malware-words", `(malware|virus|trojan|backdoor|payload)`, "Malware vocabulary"),
	}
}

func defaultLowRules() []Rule {
	low := func(id, pattern, desc string) Rule {
		return Rule{ID: id, Pattern: pattern, Severity: utils.SeverityLow, Category: utils.CategoryPotentiallySuspicious, Description: desc}
	}
	return []Rule{
		low("testing-words", `(test|testing|debug|debugging)`, "Testing vocabulary"),
		low("example-words", `(example|sample|demo|demonstration)`, "Example vocabulary"),
		low("help-words", `(help|assist|support|guidance)`, "Help vocabulary"),
	}
}
