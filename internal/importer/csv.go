package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DefaultConfidence applies to rows with an empty confidence column.
const DefaultConfidence = 0.7

// Row is one operator-supplied question/answer pair.
type Row struct {
	Question   string   `json:"question"`
	Answer     string   `json:"answer"`
	SourceURL  string   `json:"source_url"`
	Domain     string   `json:"domain"`
	Confidence float64  `json:"confidence"`
	Tags       []string `json:"tags"`
}

var requiredColumns = []string{"question", "answer"}

// ParseCSV reads rows from a CSV with a header line. Column names are
// matched case-insensitively; tags are semicolon-joined.
func ParseCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoEntries
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("csv header missing %q column", c)
		}
	}

	field := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var rows []Row
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		if isBlank(rec) {
			continue
		}
		row := Row{
			Question:   field(rec, "question"),
			Answer:     field(rec, "answer"),
			SourceURL:  field(rec, "source_url"),
			Domain:     field(rec, "domain"),
			Confidence: DefaultConfidence,
			Tags:       splitTags(field(rec, "tags")),
		}
		if raw := field(rec, "confidence"); raw != "" {
			conf, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("csv line %d: confidence %q: %w", line, raw, err)
			}
			row.Confidence = conf
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, ErrNoEntries
	}
	return rows, nil
}

func splitTags(raw string) []string {
	var out []string
	for _, t := range strings.Split(raw, ";") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
