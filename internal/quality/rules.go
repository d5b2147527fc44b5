package quality

import (
	"regexp"
	"strings"
)

var marketingTerms = []string{
	"best", "leading", "award-winning", "trusted", "exclusive", "premium",
	"state-of-the-art", "cutting-edge", "revolutionary", "innovative",
	"industry-leading", "our experts", "top rated", "highly recommended",
	"click here", "learn more", "contact us", "call now", "get a quote",
	"call today", "free quote", "special offer", "limited time", "buy now",
}

var legalAdviceTerms = []string{
	"should consult", "should contact", "must consult", "legal advice",
	"consult an attorney", "talk to a lawyer", "seek legal counsel",
	"not legal advice", "we are not lawyers", "not a substitute",
}

type regionRule struct {
	name    string
	pattern *regexp.Regexp
}

var regionRules = []regionRule{
	{"US", phraseSet("United States", "USA", "US waters", "USCG", "federal waters", "continental shelf")},
	{"UK", phraseSet("United Kingdom", "UK waters", "UK Flag", "Crown Dependencies")},
	{"EU", phraseSet("European", "EU waters", "European Union")},
	{"AUSTRALIA", phraseSet("Australia", "Australian", "Great Barrier")},
}

var marketingPattern = phraseSet(marketingTerms...)

// phraseSet matches any of the phrases as whole words, case-insensitively.
func phraseSet(phrases ...string) *regexp.Regexp {
	quoted := make([]string, len(phrases))
	for i, p := range phrases {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

func hasMarketingTone(text string) bool {
	return marketingPattern.MatchString(text)
}

func hasLegalAdvice(text string) bool {
	lower := strings.ToLower(text)
	for _, term := range legalAdviceTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// detectRegions names the jurisdictions a pair is specific to.
func detectRegions(question, answer string) []string {
	combined := question + " " + answer
	var out []string
	for _, r := range regionRules {
		if r.pattern.MatchString(combined) {
			out = append(out, r.name)
		}
	}
	return out
}

var (
	punctStrip = regexp.MustCompile(`[?!.]`)
	spaceRun   = regexp.MustCompile(`\s+`)
)

// NormalizeQuestion is the cross-batch duplicate key for a question.
func NormalizeQuestion(q string) string {
	q = punctStrip.ReplaceAllString(strings.ToLower(q), "")
	return strings.TrimSpace(spaceRun.ReplaceAllString(q, " "))
}
