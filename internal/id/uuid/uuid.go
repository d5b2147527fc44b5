// Package uuid provides run identifier generation.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates UUIDv7 based identifiers, optionally prefixed.
type Generator struct {
	prefix string
}

// New creates a Generator producing bare UUIDv7 strings.
func New() *Generator {
	return &Generator{}
}

// NewPrefixed creates a Generator producing "{prefix}_{uuidv7}" identifiers,
// e.g. batch_0190c3a4-....
func NewPrefixed(prefix string) *Generator {
	return &Generator{prefix: prefix}
}

// NewID returns a new identifier.
func (g Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	if g.prefix == "" {
		return id.String(), nil
	}
	return g.prefix + "_" + id.String(), nil
}
