package core

import (
	"regexp"

	"github.com/SamuelRCrider/callbridge/utils"
)

// Pattern is a compiled detection rule
type Pattern struct {
	ID          string
	Regex       *regexp.Regexp
	Severity    utils.Severity
	Category    utils.ThreatCategory
	Description string
}

// Catalog holds the detection rules grouped by severity. It is never
// mutated after construction and is safe for concurrent use.
type Catalog struct {
	high   []Pattern
	medium []Pattern
	low    []Pattern
}

// NewCatalog groups patterns into severity tiers, keeping their relative
// order inside each tier. Patterns with an unknown severity are dropped.
func NewCatalog(patterns []Pattern) *Catalog {
	c := &Catalog{}
	for _, p := range patterns {
		switch p.Severity {
		case utils.SeverityHigh:
			c.high = append(c.high, p)
		case utils.SeverityMedium:
			c.medium = append(c.medium, p)
		case utils.SeverityLow:
			c.low = append(c.low, p)
		}
	}
	return c
}

// DefaultCatalog compiles DefaultPolicy. The built-in patterns are known to
// compile, so a failure here is a programming error.
func DefaultCatalog() *Catalog {
	catalog, err := DefaultPolicy().Catalog()
	if err != nil {
		panic("core: default policy does not compile: " + err.Error())
	}
	return catalog
}

// Patterns returns a copy of every pattern in scan order: high, medium, low.
func (c *Catalog) Patterns() []Pattern {
	out := make([]Pattern, 0, c.Len())
	out = append(out, c.high...)
	out = append(out, c.medium...)
	return append(out, c.low...)
}

// Len is the total number of patterns.
func (c *Catalog) Len() int {
	return len(c.high) + len(c.medium) + len(c.low)
}

func (c *Catalog) tiers() [3][]Pattern {
	return [3][]Pattern{c.high, c.medium, c.low}
}
