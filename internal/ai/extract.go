package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spigell/rfp-evaluator/internal/logger"
	"github.com/spigell/rfp-evaluator/internal/rfp"
	"go.uber.org/zap"
)

var factKeys = []string{"totalPrice", "deliveryDays", "warrantyYears"}

// Extractor turns a proposal's raw text into numeric facts.
type Extractor struct {
	generator Generator
	logger    *zap.Logger
	maxLogLen int
}

func NewExtractor(generator Generator, maxLogLength int, log *zap.Logger) *Extractor {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Extractor{
		generator: generator,
		logger:    logger.WithFields(log),
		maxLogLen: maxLogLength,
	}
}

// ExtractFacts fails with *ExtractionError when the provider call fails or its output is unusable.
// A value the provider reports as null is unknown, not an error.
func (e *Extractor) ExtractFacts(ctx context.Context, proposal rfp.Proposal) (rfp.Facts, error) {
	fields := logger.ProposalFields(proposal)

	raw, err := call(ctx, e.generator, e.logger, e.maxLogLen, extractSystemPrompt, proposalMessage(proposal), fields...)
	if err != nil {
		return rfp.Facts{}, &ExtractionError{ProposalID: proposal.ID, Err: err}
	}

	facts, err := parseFacts(raw)
	if err != nil {
		e.logger.Debug("unusable facts response",
			append(fields, zap.String("response", raw), zap.Error(err))...,
		)
		return rfp.Facts{}, &ExtractionError{ProposalID: proposal.ID, Err: err}
	}

	e.logger.Debug("facts extracted",
		append(fields,
			zap.Stringer("total_price", facts.TotalPrice),
			zap.Stringer("delivery_days", facts.DeliveryDays),
			zap.Stringer("warranty_years", facts.WarrantyYears),
		)...,
	)

	return facts, nil
}

func proposalMessage(proposal rfp.Proposal) string {
	return "Proposal:\n" + strings.TrimSpace(proposal.RawText)
}

type factsPayload struct {
	TotalPrice    *float64 `mapstructure:"totalPrice"`
	DeliveryDays  *float64 `mapstructure:"deliveryDays"`
	WarrantyYears *float64 `mapstructure:"warrantyYears"`
}

func parseFacts(raw string) (rfp.Facts, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return rfp.Facts{}, err
	}

	coerceNumbers(obj, factKeys...)

	if err := validate(factsSchema, obj); err != nil {
		return rfp.Facts{}, err
	}

	var payload factsPayload
	if err := mapstructure.Decode(obj, &payload); err != nil {
		return rfp.Facts{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return rfp.Facts{
		TotalPrice:    numberFrom(payload.TotalPrice),
		DeliveryDays:  numberFrom(payload.DeliveryDays),
		WarrantyYears: numberFrom(payload.WarrantyYears),
	}, nil
}

func numberFrom(v *float64) rfp.Number {
	if v == nil {
		return rfp.Unknown()
	}
	return rfp.Known(*v)
}
