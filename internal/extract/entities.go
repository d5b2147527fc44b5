package extract

import (
	"regexp"
	"slices"

	"github.com/JakeFAU/yacht-qa-crawler/internal/pipeline"
)

// Entity types.
const (
	EntityProvider   = "provider"
	EntityRegion     = "region"
	EntityVesselType = "vessel_type"
)

var (
	providers = []string{
		"Travelers", "GEICO", "Chubb", "Progressive", "State Farm",
		"AXA XL", "Allianz", "QBE", "Zurich", "Markel",
		"Pantaenius", "BoatUS", "W3 Insurance", "Howden", "Marsh",
		"Gallagher", "Lockton", "Aon", "Brown & Brown", "HUB International",
	}
	regions = []string{
		"Caribbean", "Mediterranean", "Atlantic", "Gulf of Mexico",
		"Pacific", "North Sea", "Baltic", "Southeast Asia",
		"Florida", "Bahamas", "US", "UK", "Europe", "Canada",
	}
	vesselTypes = []string{
		"sailboat", "motor yacht", "catamaran", "monohull",
		"trawler", "powerboat", "sailship", "superyacht",
		"cruising yacht", "racing yacht", "tugboat",
	}
)

// commonWords are spellings of vocabulary terms that are ordinary English
// words in running prose. "us" is a pronoun, "US" is a region.
var commonWords = map[string][]string{
	"US": {"us", "Us"},
}

type vocabEntry struct {
	typ        string
	value      string
	confidence float64
	pattern    *regexp.Regexp
	ignore     []string
}

var vocabulary = buildVocabulary()

func buildVocabulary() []vocabEntry {
	var out []vocabEntry
	add := func(typ string, conf float64, values []string) {
		for _, v := range values {
			out = append(out, vocabEntry{
				typ:        typ,
				value:      v,
				confidence: conf,
				pattern:    wholeWord(v),
				ignore:     commonWords[v],
			})
		}
	}
	add(EntityProvider, 0.9, providers)
	add(EntityRegion, 0.8, regions)
	add(EntityVesselType, 0.7, vesselTypes)
	return out
}

// wholeWord matches term as a whole word, case-insensitively.
func wholeWord(term string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
}

func (v vocabEntry) matches(text string) bool {
	if len(v.ignore) == 0 {
		return v.pattern.MatchString(text)
	}
	for _, m := range v.pattern.FindAllString(text, -1) {
		if !slices.Contains(v.ignore, m) {
			return true
		}
	}
	return false
}

// ExtractEntities lists the known providers, regions and vessel types
// mentioned in text, in vocabulary order.
func ExtractEntities(text string) []pipeline.Entity {
	var out []pipeline.Entity
	for _, v := range vocabulary {
		if v.matches(text) {
			out = append(out, pipeline.Entity{Type: v.typ, Value: v.value, Confidence: v.confidence})
		}
	}
	return out
}
