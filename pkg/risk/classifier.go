package risk

import (
	"strings"

	"github.com/angela-sh/angela/pkg/shlex"
)

// Classifier assigns a risk tier and impact summary to a command string.
// It never executes the command and never fails: malformed or unknown
// input always yields a valid (tier, reason) pair.
type Classifier struct {
	table *RuleTable
}

// New builds a Classifier with the built-in rule corpus.
func New() *Classifier { return &Classifier{table: NewRuleTable()} }

// NewWithTable builds a Classifier over a caller-supplied rule table,
// e.g. one extended with user overrides loaded from configstore.
func NewWithTable(table *RuleTable) *Classifier { return &Classifier{table: table} }

// Classify returns the risk tier and the reason the winning rule gives.
// Algorithm (spec.md §4.1):
//  1. Empty/whitespace-only command -> SAFE, "empty".
//  2. Override buckets FORCE_CRITICAL -> FORCE_HIGH -> FORCE_MEDIUM -> FORCE_SAFE,
//     first match decides.
//  3. Tier buckets CRITICAL down to SAFE, first match decides.
//  4. No match -> MEDIUM, "unrecognised".
func (c *Classifier) Classify(command string) (Tier, string) {
	trimmed := strings.TrimSpace(command)
	if trimmed == "" {
		return Safe, "empty"
	}
	if _, err := shlex.Split(trimmed); err != nil {
		return Medium, "unparseable"
	}

	for _, tier := range overrideOrder {
		for _, rule := range c.table.overrides[tier] {
			if rule.Pattern.MatchString(trimmed) {
				return tier, rule.Reason
			}
		}
	}

	for _, tier := range allTiersDescending {
		for _, rule := range c.table.tiers[tier] {
			if rule.Pattern.MatchString(trimmed) {
				return tier, rule.Reason
			}
		}
	}

	return Medium, "unrecognised"
}

// ClassifyWithImpact classifies the command and also derives its
// ImpactSummary in one call, the shape most callers in pkg/safety need.
func (c *Classifier) ClassifyWithImpact(command string) (Tier, string, ImpactSummary) {
	tier, reason := c.Classify(command)
	return tier, reason, AnalyzeImpact(command)
}
