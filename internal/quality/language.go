package quality

import (
	"sync"

	"github.com/pemistahl/lingua-go"
)

// LanguageDetector decides whether text is English. Uncertain input counts
// as English.
type LanguageDetector interface {
	IsEnglish(text string) bool
}

// LinguaDetector detects language with lingua-go. Models load on first use.
type LinguaDetector struct {
	languages []lingua.Language
	once      sync.Once
	detector  lingua.LanguageDetector
}

// NewLinguaDetector builds a detector over English and the languages most
// often seen on European and Latin American marine sites.
func NewLinguaDetector() *LinguaDetector {
	return &LinguaDetector{languages: []lingua.Language{
		lingua.English, lingua.Spanish, lingua.French, lingua.German,
		lingua.Italian, lingua.Portuguese, lingua.Dutch,
	}}
}

// IsEnglish implements LanguageDetector.
func (d *LinguaDetector) IsEnglish(text string) bool {
	d.once.Do(func() {
		d.detector = lingua.NewLanguageDetectorBuilder().FromLanguages(d.languages...).Build()
	})
	lang, ok := d.detector.DetectLanguageOf(text)
	return !ok || lang == lingua.English
}
