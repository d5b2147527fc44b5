package extract

import (
	"regexp"
	"strings"

	"github.com/JakeFAU/yacht-qa-crawler/internal/pipeline"
)

// RawPair is an unnormalized question/answer pair found by a Strategy.
type RawPair struct {
	Question string
	Answer   string
	// ExtraTags are prepended to the content-inferred tags.
	ExtraTags []string
}

// Strategy finds raw pairs in cleaned text.
type Strategy interface {
	Name() pipeline.ExtractionMethod
	Extract(text string) []RawPair
}

// DefaultStrategies returns the FAQ, header and definition strategies in
// the order their results are unioned.
func DefaultStrategies() []Strategy {
	return []Strategy{FAQStrategy{}, HeaderStrategy{}, DefinitionStrategy{}}
}

var (
	questionMarker = regexp.MustCompile(`(?i)^\s*(?:question|q)\s*:\s*(.*)$`)
	answerMarker   = regexp.MustCompile(`(?i)^\s*(?:answer|a)\s*:\s*(.*)$`)
	headerLine     = regexp.MustCompile(`^(#{1,3})\s+(.+)$`)
	genericHeader  = regexp.MustCompile(`(?i)^(overview|introduction|summary|details|information)$`)
	interrogative  = regexp.MustCompile(`(?i)^(when|why|how|what|where|which)`)
	definitionExpr = regexp.MustCompile(`\b([A-Z][a-zA-Z\s&]+)\s+(?:is|refers to|means|denotes|signifies)\s+([^.!?]+[.!?])`)
)

// FAQStrategy pairs "Q:"/"Question:" lines with the "A:"/"Answer:" block that
// follows. The answer runs until the next question marker, a header line or
// the end of the text.
type FAQStrategy struct{}

// Name implements Strategy.
func (FAQStrategy) Name() pipeline.ExtractionMethod { return pipeline.MethodFAQPattern }

// Extract implements Strategy.
func (FAQStrategy) Extract(text string) []RawPair {
	lines := strings.Split(text, "\n")
	var out []RawPair
	for i := 0; i < len(lines); i++ {
		qm := questionMarker.FindStringSubmatch(lines[i])
		if qm == nil {
			continue
		}
		question := strings.TrimSpace(qm[1])

		j := i + 1
		for j < len(lines) && strings.TrimSpace(lines[j]) == "" {
			j++
		}
		if j >= len(lines) {
			break
		}
		am := answerMarker.FindStringSubmatch(lines[j])
		if am == nil {
			continue
		}
		answer := []string{am[1]}
		k := j + 1
		for ; k < len(lines); k++ {
			if questionMarker.MatchString(lines[k]) || headerLine.MatchString(lines[k]) {
				break
			}
			answer = append(answer, lines[k])
		}
		i = k - 1

		ans := strings.TrimSpace(strings.Join(answer, "\n"))
		if len(question) > 10 && len(ans) > 20 {
			out = append(out, RawPair{Question: question, Answer: ans})
		}
	}
	return out
}

// HeaderStrategy turns level 1-3 headers into questions answered by the first
// three lines of the section body.
type HeaderStrategy struct{}

// Name implements Strategy.
func (HeaderStrategy) Name() pipeline.ExtractionMethod { return pipeline.MethodHeader }

// Extract implements Strategy.
func (HeaderStrategy) Extract(text string) []RawPair {
	lines := strings.Split(text, "\n")
	var out []RawPair
	for i, line := range lines {
		hm := headerLine.FindStringSubmatch(line)
		if hm == nil {
			continue
		}
		header := strings.TrimSpace(hm[2])

		j := i + 1
		if j < len(lines) && strings.TrimSpace(lines[j]) == "" {
			j++
		}
		var body []string
		for ; j < len(lines) && len(body) < 3; j++ {
			l := strings.TrimSpace(lines[j])
			if l == "" || headerLine.MatchString(l) {
				break
			}
			body = append(body, l)
		}
		joined := strings.Join(body, " ")
		if len(header) <= 5 || len(joined) <= 30 {
			continue
		}
		question, ok := HeaderToQuestion(header)
		if !ok {
			continue
		}
		out = append(out, RawPair{Question: question, Answer: joined})
	}
	return out
}

// HeaderToQuestion rewrites a section header as a question. Generic headers
// such as "Overview" yield false.
func HeaderToQuestion(header string) (string, bool) {
	header = strings.TrimSpace(header)
	switch {
	case genericHeader.MatchString(header):
		return "", false
	case strings.HasSuffix(header, "?"):
		return header, true
	case interrogative.MatchString(header):
		return header + "?", true
	default:
		return "What is " + strings.ToLower(header) + "?", true
	}
}

// DefinitionStrategy finds "Term is/refers to/means ..." sentences.
type DefinitionStrategy struct{}

// Name implements Strategy.
func (DefinitionStrategy) Name() pipeline.ExtractionMethod { return pipeline.MethodDefinition }

// Extract implements Strategy.
func (DefinitionStrategy) Extract(text string) []RawPair {
	var out []RawPair
	for _, m := range definitionExpr.FindAllStringSubmatch(text, -1) {
		term := strings.TrimSpace(m[1])
		definition := strings.TrimSpace(m[2])
		if len(term) >= 50 || len(definition) <= 20 || len(definition) >= 200 {
			continue
		}
		out = append(out, RawPair{
			Question:  "What is " + term + "?",
			Answer:    definition,
			ExtraTags: []string{TagDefinitions},
		})
	}
	return out
}
