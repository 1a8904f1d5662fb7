package ai

import (
	"errors"
	"fmt"
)

// ErrMalformedResponse marks provider output that does not match the declared shape.
var ErrMalformedResponse = errors.New("malformed provider response")

// ExtractionError reports that facts could not be obtained for a proposal,
// either because the provider call failed or because its output was unusable.
type ExtractionError struct {
	ProposalID int64
	Err        error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract facts from proposal %d: %v", e.ProposalID, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ScoringError reports that a proposal could not be scored.
type ScoringError struct {
	ProposalID int64
	Err        error
}

func (e *ScoringError) Error() string {
	return fmt.Sprintf("score proposal %d: %v", e.ProposalID, e.Err)
}

func (e *ScoringError) Unwrap() error { return e.Err }
