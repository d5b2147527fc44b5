package quality

import (
	"math"
	"strings"

	"github.com/JakeFAU/yacht-qa-crawler/internal/extract"
	"github.com/JakeFAU/yacht-qa-crawler/internal/pipeline"
)

var flagPenalties = map[string]int{
	FlagTooShort:      25,
	FlagTooLong:       10,
	FlagMarketingTone: 15,
	FlagLegalAdvice:   100,
	FlagLowConfidence: 20,
	FlagDuplicate:     100,
	FlagUnclearScope:  30,
}

const (
	defaultFlagPenalty = 5
	faqBonus           = 15
)

// Score rates a candidate from 0 to 100 for reviewers. Each flag costs its
// penalty (5 for unlisted flags), confidence above 0.5 adds up to 5 points and
// FAQ extraction adds 15.
func Score(flags []string, confidence float64, method pipeline.ExtractionMethod) int {
	score := 100
	for _, f := range flags {
		base, _, _ := strings.Cut(f, ":")
		if p, ok := flagPenalties[base]; ok {
			score -= p
		} else {
			score -= defaultFlagPenalty
		}
	}
	score += int(math.Round((confidence - 0.5) * 10))
	if method == pipeline.MethodFAQPattern {
		score += faqBonus
	}
	return min(100, max(0, score))
}

// Suggestion is a proposed edit for a borderline candidate.
type Suggestion struct {
	Question     string   `json:"suggestedQuestion"`
	Answer       string   `json:"suggestedAnswer"`
	Improvements []string `json:"improvements"`
}

// Suggest proposes edits for a candidate based on its flags. Improvements is
// empty when nothing would change.
func Suggest(c pipeline.Candidate) Suggestion {
	s := Suggestion{Question: c.Question, Answer: c.Answer, Improvements: []string{}}

	for _, f := range c.QualityFlags {
		if f == FlagMarketingTone {
			s.Answer = extract.NormalizeAnswer(c.Answer)
			s.Improvements = append(s.Improvements, "Removed marketing language")
			break
		}
	}

	if !strings.HasSuffix(c.Question, "?") {
		s.Question = strings.TrimRight(c.Question, "?! ") + "?"
		s.Improvements = append(s.Improvements, "Standardized question format")
	}

	for _, f := range c.QualityFlags {
		list, ok := strings.CutPrefix(f, flagRegionSpecific)
		if !ok || list == "" {
			continue
		}
		regions := strings.Split(list, ",")
		label := "(" + regions[0] + ")"
		if !strings.Contains(s.Answer, label) && !strings.Contains(s.Question, label) {
			s.Question = strings.TrimSuffix(s.Question, "?") + " " + label + "?"
			s.Improvements = append(s.Improvements, "Added regional context: "+strings.Join(regions, ", "))
		}
		break
	}
	return s
}
