package guardrail

import (
	"sort"
	"strings"
)

// Apply prepends cfg's instruction rules to base, highest priority
// first. Rules sharing a priority keep their stored order. Configs with
// no applicable instructions leave base untouched.
func Apply(base string, cfg *Config) string {
	if cfg == nil || len(cfg.Rules) == 0 {
		return base
	}

	rules := make([]Rule, len(cfg.Rules))
	copy(rules, cfg.Rules)
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority > rules[j].Priority
	})

	var parts []string
	for _, r := range rules {
		if r.Type != RuleTypeInstruction || r.Content == "" {
			continue
		}
		parts = append(parts, r.Content)
	}
	if len(parts) == 0 {
		return base
	}

	return strings.Join(parts, "\n\n") + "\n\n" + base
}
