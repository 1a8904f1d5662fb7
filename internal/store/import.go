package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/spigell/rfp-evaluator/internal/logger"
	"github.com/spigell/rfp-evaluator/internal/rfp"
	"go.uber.org/zap"
)

// ImportResult describes what ImportCohort stored.
type ImportResult struct {
	RFP       rfp.RFP
	Proposals []rfp.Proposal
	Skipped   int
}

// ImportCohort stores the cohort's RFP, its vendors and their proposals.
// A vendor replying twice keeps only the first proposal. The RFP ends up in RESPONSES_RECEIVED.
func (s *Store) ImportCohort(ctx context.Context, cohort *rfp.Cohort) (ImportResult, error) {
	if err := cohort.Validate(); err != nil {
		return ImportResult{}, err
	}

	status := rfp.StatusDraft
	if len(cohort.Proposals) > 0 {
		status = rfp.StatusResponsesReceived
	}

	created, err := s.CreateRFP(ctx, rfp.RFP{
		Title:        cohort.RFP.Title,
		RawPrompt:    cohort.RawPrompt,
		Requirements: cohort.RFP,
		Status:       status,
	})
	if err != nil {
		return ImportResult{}, err
	}

	result := ImportResult{RFP: created}
	for _, entry := range cohort.Proposals {
		vendor, err := s.UpsertVendor(ctx, entry.Vendor)
		if err != nil {
			return result, fmt.Errorf("store vendor %q: %w", entry.Vendor.Label(), err)
		}

		proposal, err := s.CreateProposal(ctx, rfp.Proposal{RFPID: created.ID, Vendor: vendor, RawText: entry.Text})
		if errors.Is(err, ErrDuplicateProposal) {
			s.logger.Warn("proposal already exists, skipping",
				logger.StringFields(logger.StringField{Key: logger.FieldVendor, Value: vendor.Label()})...,
			)
			result.Skipped++
			continue
		}
		if err != nil {
			return result, err
		}
		result.Proposals = append(result.Proposals, proposal)
	}

	s.logger.Info("cohort imported",
		zap.Int64("rfp_id", created.ID),
		zap.Int("proposals", len(result.Proposals)),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}
