package memory

import (
	"strings"

	"github.com/memctx/memctx/internal/storage"
)

// tagRule is one substring-set -> tag inference rule.
type tagRule struct {
	tag       string
	substrings []string
}

var tagRules = []tagRule{
	{tag: "bugfix", substrings: []string{"fix", "bug", "error", "issue", "broken", "crash", "failure"}},
	{tag: "tech-debt", substrings: []string{"todo", "hack", "workaround", "temporary", "temp fix", "quick fix", "tech debt", "refactor later"}},
	{tag: "perf", substrings: []string{"perf", "performance", "slow", "fast", "optim", "speed", "latency", "cache"}},
}

var warningSubstrings = []string{"warn", "avoid", "don't"}

// inferTags derives the auto-tag set for content per the category-aware
// substring rules, then unions it with the caller-supplied tags without
// duplicating an already-present tag (case-insensitive).
func inferTags(category storage.Category, content string, callerTags []string) []string {
	lower := strings.ToLower(content)
	present := make(map[string]struct{}, len(callerTags))
	for _, t := range callerTags {
		present[strings.ToLower(t)] = struct{}{}
	}

	out := append([]string(nil), callerTags...)
	add := func(tag string) {
		if _, ok := present[tag]; ok {
			return
		}
		present[tag] = struct{}{}
		out = append(out, tag)
	}

	for _, rule := range tagRules {
		if containsAny(lower, rule.substrings) {
			add(rule.tag)
		}
	}

	if string(category) == "warning" {
		add("warning")
	} else if containsAny(lower, warningSubstrings) {
		add("warning")
	}

	return out
}

func containsAny(haystack string, substrings []string) bool {
	for _, s := range substrings {
		if strings.Contains(haystack, s) {
			return true
		}
	}
	return false
}
