package review

import (
	"errors"
	"fmt"

	"github.com/JakeFAU/yacht-qa-crawler/internal/pipeline"
)

var (
	// ErrStateConflict matches every StateError.
	ErrStateConflict = errors.New("review state conflict")
	// ErrValidation reports edited text that fails the length rules.
	ErrValidation = errors.New("invalid edit")
	// ErrConflict reports that the candidate's hash pair is already a public entry.
	ErrConflict = errors.New("entry already published")
)

// StateError is returned when an action needs a pending candidate.
type StateError struct {
	CandidateID int64
	Status      pipeline.ReviewStatus
}

func (e *StateError) Error() string {
	return fmt.Sprintf("candidate already %s", e.Status)
}

// Is makes errors.Is(err, ErrStateConflict) true.
func (e *StateError) Is(target error) bool {
	return target == ErrStateConflict
}
