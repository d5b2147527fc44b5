package extract

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

const (
	maxSentenceWords = 15
	maxAnswerWords   = 120
	minAnswerWords   = 40

	// Confidence bands assigned from the answer word count.
	ConfidenceThin      = 0.4
	ConfidenceTruncated = 0.6
	ConfidenceGood      = 0.8
)

var (
	leadingInterrogative = regexp.MustCompile(`(?i)^(what|why|how|when|where|who|which)\s+`)
	trailingPunct        = regexp.MustCompile(`[?!]+$`)
	whitespaceRun        = regexp.MustCompile(`\s+`)
	sentenceBreak        = regexp.MustCompile(`([.!?])\s+`)
	marketingPhrases     = regexp.MustCompile(
		`(?i)\b(?:click here|learn more|get a quote|contact us|trusted by|lead the industry|our experts|call today)\b`,
	)
)

var stripPolicy = bluemonday.StrictPolicy()

// Normalized is one pair after normalization.
type Normalized struct {
	Question   string
	Answer     string
	Tags       []string
	Confidence float64
}

// Normalize applies question and answer normalization, tagging and
// confidence scoring to a raw pair.
func Normalize(rawQuestion, rawAnswer string) Normalized {
	question := NormalizeQuestion(rawQuestion)
	answer, words := normalizeAnswer(rawAnswer)
	return Normalized{
		Question:   question,
		Answer:     answer,
		Tags:       InferTags(question, answer),
		Confidence: ConfidenceFor(words),
	}
}

// NormalizeQuestion collapses the space after a leading interrogative and
// ends the question with exactly one "?".
func NormalizeQuestion(raw string) string {
	q := strings.TrimSpace(raw)
	q = leadingInterrogative.ReplaceAllString(q, "${1} ")
	q = strings.TrimSpace(trailingPunct.ReplaceAllString(q, ""))
	return q + "?"
}

// NormalizeAnswer cleans, re-chunks and truncates an answer.
func NormalizeAnswer(raw string) string {
	answer, _ := normalizeAnswer(raw)
	return answer
}

// normalizeAnswer also returns the word count before truncation.
func normalizeAnswer(raw string) (string, int) {
	answer := html.UnescapeString(stripPolicy.Sanitize(raw))
	answer = collapse(answer)
	answer = collapse(marketingPhrases.ReplaceAllString(answer, ""))
	answer = strings.TrimSpace(BreakLongSentences(answer))

	words := strings.Fields(answer)
	if len(words) > maxAnswerWords {
		answer = strings.Join(words[:maxAnswerWords], " ") + " ..."
	}
	return answer, len(words)
}

// ConfidenceFor maps an answer word count to a confidence band.
func ConfidenceFor(words int) float64 {
	switch {
	case words < minAnswerWords:
		return ConfidenceThin
	case words > maxAnswerWords:
		return ConfidenceTruncated
	default:
		return ConfidenceGood
	}
}

// BreakLongSentences splits every sentence longer than 15 words into
// period separated chunks of at most 15 words.
func BreakLongSentences(text string) string {
	var b strings.Builder
	last := 0
	for _, m := range sentenceBreak.FindAllStringSubmatchIndex(text, -1) {
		writeChunked(&b, text[last:m[0]])
		b.WriteString(text[m[2]:m[3]])
		b.WriteByte(' ')
		last = m[1]
	}
	writeChunked(&b, text[last:])
	return b.String()
}

func writeChunked(b *strings.Builder, part string) {
	words := strings.Fields(part)
	if len(words) <= maxSentenceWords {
		b.WriteString(part)
		return
	}
	for i := 0; i < len(words); i += maxSentenceWords {
		if i > 0 {
			b.WriteString(". ")
		}
		end := min(i+maxSentenceWords, len(words))
		b.WriteString(strings.Join(words[i:end], " "))
	}
}

func collapse(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// WordCount counts whitespace separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
