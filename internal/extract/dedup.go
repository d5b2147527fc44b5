package extract

import (
	"regexp"
	"strings"

	"github.com/JakeFAU/yacht-qa-crawler/internal/pipeline"
)

var questionPunct = regexp.MustCompile(`[?!.]`)

// QuestionKey is the in-batch identity of a question.
func QuestionKey(question string) string {
	return strings.TrimSpace(questionPunct.ReplaceAllString(strings.ToLower(question), ""))
}

// Dedup keeps one draft per question key. Higher confidence replaces an
// earlier draft in place; ties keep the first one seen.
func Dedup(drafts []pipeline.Draft) []pipeline.Draft {
	index := make(map[string]int, len(drafts))
	out := make([]pipeline.Draft, 0, len(drafts))
	for _, d := range drafts {
		key := QuestionKey(d.Question)
		if i, ok := index[key]; ok {
			if d.Confidence > out[i].Confidence {
				out[i] = d
			}
			continue
		}
		index[key] = len(out)
		out = append(out, d)
	}
	return out
}
