// Package quality decides which extracted drafts become review candidates
// and annotates borderline ones with flags.
package quality

import (
	"strings"

	"github.com/JakeFAU/yacht-qa-crawler/internal/hash/sha256"
	"github.com/JakeFAU/yacht-qa-crawler/internal/pipeline"
)

// Flags attached to validated drafts.
const (
	FlagTooShort        = "too_short"
	FlagTooLong         = "too_long"
	FlagLowConfidence   = "low_confidence"
	FlagMarketingTone   = "marketing_tone"
	FlagLegalAdvice     = "legal_advice_phrasing"
	FlagDuplicate       = "duplicate"
	FlagUnclearScope    = "unclear_scope"
	FlagBelowMin        = "below_min_confidence"
	FlagNonEnglish      = "non_english"
	flagRegionSpecific  = "region_specific:"
	minWords            = 40
	maxWords            = 120
	faqConfidenceFloor  = 0.7
	baseConfidenceFloor = 0.65
	minAnswerChars      = 20
)

// DefaultMinConfidence matches the extractor's thin band.
const DefaultMinConfidence = 0.4

// Config tunes the gate.
type Config struct {
	MinConfidence float64
	// Language enables the non_english flag when set.
	Language LanguageDetector
}

// Validated is a draft with its gate decision.
type Validated struct {
	pipeline.Draft
	QuestionHash    string   `json:"question_hash"`
	AnswerHash      string   `json:"answer_hash"`
	QualityFlags    []string `json:"quality_flags"`
	IsApproved      bool     `json:"is_approved"`
	RejectionReason string   `json:"rejection_reason,omitempty"`
	Score           int      `json:"quality_score"`
}

// Candidate converts an approved draft into the persisted candidate shape.
func (v Validated) Candidate(runID string, rawPageID int64) pipeline.Candidate {
	return pipeline.Candidate{
		RunID:            runID,
		RawPageID:        rawPageID,
		SourceURL:        v.SourceURL,
		Question:         v.Question,
		Answer:           v.Answer,
		QuestionHash:     v.QuestionHash,
		AnswerHash:       v.AnswerHash,
		Tags:             append([]string(nil), v.Tags...),
		Confidence:       v.Confidence,
		ExtractionMethod: v.ExtractionMethod,
		Entities:         append([]pipeline.Entity(nil), v.Entities...),
		QualityFlags:     append([]string(nil), v.QualityFlags...),
		ReviewStatus:     pipeline.StatusPending,
	}
}

// Gate validates drafts.
type Gate struct {
	cfg    Config
	hasher pipeline.Hasher
}

// New builds a Gate. A zero MinConfidence uses DefaultMinConfidence.
func New(cfg Config, hasher pipeline.Hasher) *Gate {
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = DefaultMinConfidence
	}
	if hasher == nil {
		hasher = sha256.New()
	}
	return &Gate{cfg: cfg, hasher: hasher}
}

// ValidateBatch validates drafts in order. A draft is a duplicate when its
// normalized question matches an existing pending question or an earlier
// draft of the same batch.
func (g *Gate) ValidateBatch(drafts []pipeline.Draft, existingPending []string) []Validated {
	seen := make(map[string]struct{}, len(existingPending)+len(drafts))
	for _, q := range existingPending {
		seen[NormalizeQuestion(q)] = struct{}{}
	}
	out := make([]Validated, 0, len(drafts))
	for _, d := range drafts {
		key := NormalizeQuestion(d.Question)
		_, dup := seen[key]
		out = append(out, g.validate(d, dup))
		seen[key] = struct{}{}
	}
	return out
}

// Validate checks a single draft against existing pending questions.
func (g *Gate) Validate(d pipeline.Draft, existingPending []string) Validated {
	return g.ValidateBatch([]pipeline.Draft{d}, existingPending)[0]
}

func (g *Gate) validate(d pipeline.Draft, duplicate bool) Validated {
	v := Validated{
		Draft:        d,
		QuestionHash: g.hasher.HashString(d.Question),
		AnswerHash:   g.hasher.HashString(d.Answer),
		IsApproved:   true,
	}
	reject := func(flag, reason string) {
		v.QualityFlags = append(v.QualityFlags, flag)
		v.IsApproved = false
		v.RejectionReason = reason
	}

	switch words := len(strings.Fields(d.Answer)); {
	case words < minWords:
		v.QualityFlags = append(v.QualityFlags, FlagTooShort)
	case words > maxWords:
		v.QualityFlags = append(v.QualityFlags, FlagTooLong)
	}

	if hasMarketingTone(d.Answer) {
		v.QualityFlags = append(v.QualityFlags, FlagMarketingTone)
	}

	// Low-confidence FAQ drafts are only flagged; other strategies are rejected.
	switch {
	case d.ExtractionMethod == pipeline.MethodFAQPattern:
		if d.Confidence < faqConfidenceFloor {
			v.QualityFlags = append(v.QualityFlags, FlagLowConfidence)
		}
	case d.Confidence < baseConfidenceFloor:
		reject(FlagLowConfidence, "Confidence below threshold and not from FAQ pattern")
	}
	if d.Confidence < g.cfg.MinConfidence {
		reject(FlagBelowMin, "Confidence below minimum threshold")
	}

	if hasLegalAdvice(d.Answer) {
		reject(FlagLegalAdvice, "Contains legal advice phrasing (disallowed)")
	}

	if duplicate {
		reject(FlagDuplicate, "Semantically duplicate question")
	}

	if regions := detectRegions(d.Question, d.Answer); len(regions) > 0 {
		v.QualityFlags = append(v.QualityFlags, flagRegionSpecific+strings.Join(regions, ","))
	}

	if g.cfg.Language != nil && !g.cfg.Language.IsEnglish(d.Question+" "+d.Answer) {
		v.QualityFlags = append(v.QualityFlags, FlagNonEnglish)
	}

	if !strings.HasSuffix(d.Question, "?") || len(d.Answer) <= minAnswerChars {
		reject(FlagUnclearScope, "Unclear question or minimal answer")
	}
	v.Score = Score(v.QualityFlags, d.Confidence, d.ExtractionMethod)
	return v
}

// Approved returns the approved subset.
func Approved(validated []Validated) []Validated {
	var out []Validated
	for _, v := range validated {
		if v.IsApproved {
			out = append(out, v)
		}
	}
	return out
}

// Summary counts gate outcomes.
type Summary struct {
	Total              int            `json:"total"`
	Approved           int            `json:"approved"`
	Rejected           int            `json:"rejected"`
	RejectionsByReason map[string]int `json:"rejectionsByReason"`
}

// Summarize tallies a validated batch.
func Summarize(validated []Validated) Summary {
	s := Summary{Total: len(validated), RejectionsByReason: map[string]int{}}
	for _, v := range validated {
		if v.IsApproved {
			s.Approved++
			continue
		}
		s.Rejected++
		if v.RejectionReason != "" {
			s.RejectionsByReason[v.RejectionReason]++
		}
	}
	return s
}
