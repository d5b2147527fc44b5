package extract

import (
	"regexp"
	"strings"
)

// Tag names.
const (
	TagDefinitions  = "definitions"
	TagCoverage     = "coverage"
	TagCost         = "cost"
	TagRequirements = "requirements"
	TagClaims       = "claims"
	TagExclusions   = "exclusions"
	TagPolicyTerms  = "policy_terms"
)

type tagRule struct {
	tag        string
	onQuestion bool
	pattern    *regexp.Regexp
}

var tagRules = []tagRule{
	{TagDefinitions, true, regexp.MustCompile(`\b(what|define|definition|mean|refers?)\b`)},
	{TagCoverage, false, regexp.MustCompile(`\b(cover|covers|covered|coverage|included|excluded)\b`)},
	{TagCost, false, regexp.MustCompile(`\b(cost|price|premium|deductible|fee)\b`)},
	{TagRequirements, false, regexp.MustCompile(`\b(require|required|qualification|eligible|condition)\b`)},
	{TagClaims, false, regexp.MustCompile(`\b(claim|claims|damage|loss|incident)\b`)},
	{TagExclusions, false, regexp.MustCompile(`\b(exclude|excluded|not covered|exception)\b`)},
	{TagPolicyTerms, false, regexp.MustCompile(`\b(policy|term|agreement|condition|provision)\b`)},
}

// InferTags classifies a pair by keyword. Pairs matching nothing are tagged
// definitions.
func InferTags(question, answer string) []string {
	q, a := strings.ToLower(question), strings.ToLower(answer)
	var tags []string
	for _, r := range tagRules {
		text := a
		if r.onQuestion {
			text = q
		}
		if r.pattern.MatchString(text) {
			tags = append(tags, r.tag)
		}
	}
	if len(tags) == 0 {
		return []string{TagDefinitions}
	}
	return tags
}

// mergeTags prepends extra to tags without duplicates.
func mergeTags(extra, tags []string) []string {
	out := make([]string, 0, len(extra)+len(tags))
	seen := make(map[string]bool, len(extra)+len(tags))
	for _, t := range append(append([]string(nil), extra...), tags...) {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
