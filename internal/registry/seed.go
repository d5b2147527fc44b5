package registry

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/yacht-qa-crawler/internal/pipeline"
)

//go:embed sources.yaml
var sourcesYAML []byte

const seedNote = "Auto-seeded from prioritized sources"

type seedFile struct {
	Sources []seedSource `yaml:"sources"`
}

type seedSource struct {
	URL                string `yaml:"url"`
	Domain             string `yaml:"domain"`
	SourceType         string `yaml:"source_type"`
	Tier               int    `yaml:"tier"`
	CrawlFrequencyDays int    `yaml:"crawl_frequency_days"`
}

// SeedSources returns the built-in prioritized source list.
func SeedSources() ([]pipeline.Source, error) {
	return parseSeed(sourcesYAML)
}

func parseSeed(data []byte) ([]pipeline.Source, error) {
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse seed sources: %w", err)
	}
	out := make([]pipeline.Source, 0, len(file.Sources))
	for i, s := range file.Sources {
		if s.URL == "" || s.Domain == "" {
			return nil, fmt.Errorf("seed source %d: url and domain are required", i)
		}
		out = append(out, pipeline.Source{
			URL:                s.URL,
			Domain:             s.Domain,
			Tier:               s.Tier,
			SourceType:         s.SourceType,
			Allowed:            true,
			CrawlFrequencyDays: s.CrawlFrequencyDays,
			Notes:              seedNote,
		})
	}
	return out, nil
}
