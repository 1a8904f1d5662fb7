package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spigell/rfp-evaluator/internal/logger"
	"github.com/spigell/rfp-evaluator/internal/rfp"
	"go.uber.org/zap"
)

var breakdownKeys = []string{"requirementMatch", "clarity", "feasibility", "valueForMoney"}

// Scorer obtains the independent qualitative assessment of a single proposal.
type Scorer struct {
	generator Generator
	logger    *zap.Logger
	maxLogLen int
}

func NewScorer(generator Generator, maxLogLength int, log *zap.Logger) *Scorer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Scorer{
		generator: generator,
		logger:    logger.WithFields(log),
		maxLogLen: maxLogLength,
	}
}

// ScoreProposal rates a proposal against the rubric. The base score is the sum of the
// clamped sub-scores; the total reported by the provider is kept for reference only.
func (s *Scorer) ScoreProposal(ctx context.Context, proposal rfp.Proposal, req rfp.Requirements) (rfp.Assessment, error) {
	fields := logger.ProposalFields(proposal)

	message, err := buildScoreRequest(proposal, req)
	if err != nil {
		return rfp.Assessment{}, &ScoringError{ProposalID: proposal.ID, Err: err}
	}

	raw, err := call(ctx, s.generator, s.logger, s.maxLogLen, scoreSystemPrompt, message, fields...)
	if err != nil {
		return rfp.Assessment{}, &ScoringError{ProposalID: proposal.ID, Err: err}
	}

	assessment, err := parseAssessment(raw)
	if err != nil {
		s.logger.Debug("unusable assessment response",
			append(fields, zap.String("response", raw), zap.Error(err))...,
		)
		return rfp.Assessment{}, &ScoringError{ProposalID: proposal.ID, Err: err}
	}

	if math.Round(assessment.ReportedScore) != float64(assessment.BaseScore) {
		s.logger.Warn("reported score differs from breakdown sum",
			append(fields,
				zap.Float64("reported_score", assessment.ReportedScore),
				zap.Int("base_score", assessment.BaseScore),
			)...,
		)
	}

	s.logger.Debug("proposal scored",
		append(fields,
			zap.Int("base_score", assessment.BaseScore),
			zap.String("recommendation", string(assessment.Recommendation)),
		)...,
	)

	return assessment, nil
}

func buildScoreRequest(proposal rfp.Proposal, req rfp.Requirements) (string, error) {
	data, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode requirements: %w", err)
	}

	vendor := proposal.Vendor.Label()
	if vendor == "" {
		vendor = "unknown vendor"
	}

	message := strings.ReplaceAll(scoreRequestTemplate, "{{RFP_JSON}}", string(data))
	message = strings.ReplaceAll(message, "{{VENDOR}}", vendor)
	message = strings.ReplaceAll(message, "{{PROPOSAL_TEXT}}", strings.TrimSpace(proposal.RawText))

	return message, nil
}

type assessmentPayload struct {
	Breakdown struct {
		RequirementMatch float64 `mapstructure:"requirementMatch"`
		Clarity          float64 `mapstructure:"clarity"`
		Feasibility      float64 `mapstructure:"feasibility"`
		ValueForMoney    float64 `mapstructure:"valueForMoney"`
	} `mapstructure:"breakdown"`
	Score          float64 `mapstructure:"score"`
	Summary        string  `mapstructure:"summary"`
	Recommendation string  `mapstructure:"recommendation"`
}

func parseAssessment(raw string) (rfp.Assessment, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return rfp.Assessment{}, err
	}

	coerceNumbers(obj, "score")
	if breakdown, ok := obj["breakdown"].(map[string]any); ok {
		coerceNumbers(breakdown, breakdownKeys...)
	}

	if err := validate(assessmentSchema, obj); err != nil {
		return rfp.Assessment{}, err
	}

	var payload assessmentPayload
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &payload,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return rfp.Assessment{}, err
	}
	if err := decoder.Decode(obj); err != nil {
		return rfp.Assessment{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	recommendation, err := rfp.ParseRecommendation(payload.Recommendation)
	if err != nil {
		return rfp.Assessment{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	breakdown := rfp.Breakdown{
		RequirementMatch: clampScore(payload.Breakdown.RequirementMatch, rfp.MaxRequirementMatch),
		Clarity:          clampScore(payload.Breakdown.Clarity, rfp.MaxClarity),
		Feasibility:      clampScore(payload.Breakdown.Feasibility, rfp.MaxFeasibility),
		ValueForMoney:    clampScore(payload.Breakdown.ValueForMoney, rfp.MaxValueForMoney),
	}

	return rfp.Assessment{
		Breakdown:      breakdown,
		BaseScore:      breakdown.Total(),
		ReportedScore:  payload.Score,
		Summary:        strings.TrimSpace(payload.Summary),
		Recommendation: recommendation,
	}, nil
}

// clampScore rounds a sub-score and keeps it within [0, limit].
func clampScore(v float64, limit int) int {
	if math.IsNaN(v) {
		return 0
	}
	rounded := int(math.Round(math.Max(0, math.Min(v, float64(limit)))))
	return rounded
}
