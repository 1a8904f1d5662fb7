package evaluation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spigell/rfp-evaluator/internal/logger"
	"github.com/spigell/rfp-evaluator/internal/rfp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultConcurrency = 4
	DefaultCallTimeout = 90 * time.Second
)

// ErrEmptyCohort is returned when there is nothing to evaluate.
var ErrEmptyCohort = errors.New("cohort has no proposals")

type FactExtractor interface {
	ExtractFacts(ctx context.Context, proposal rfp.Proposal) (rfp.Facts, error)
}

type ProposalScorer interface {
	ScoreProposal(ctx context.Context, proposal rfp.Proposal, req rfp.Requirements) (rfp.Assessment, error)
}

// Stage names one step of an evaluation run.
type Stage string

const (
	StageExtract   Stage = "extract"
	StageBenchmark Stage = "benchmark"
	StageScore     Stage = "score"
	StageAdjust    Stage = "adjust"
)

type State string

const (
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// StageError reports the stage at which a run failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Run is the outcome of one completed evaluation over a cohort.
type Run struct {
	ID         uuid.UUID
	RFPTitle   string
	State      State
	Benchmark  rfp.Benchmark
	Results    []rfp.EvaluationResult
	StartedAt  time.Time
	FinishedAt time.Time
}

type Options struct {
	// Concurrency bounds the in-flight provider calls per stage. 1 runs them sequentially.
	Concurrency int
	// CallTimeout bounds every single provider call.
	CallTimeout time.Duration
}

// Evaluator ranks a cohort of proposals against one RFP.
type Evaluator struct {
	extractor   FactExtractor
	scorer      ProposalScorer
	concurrency int
	callTimeout time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

func NewEvaluator(extractor FactExtractor, scorer ProposalScorer, opts Options, log *zap.Logger) *Evaluator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}

	return &Evaluator{
		extractor:   extractor,
		scorer:      scorer,
		concurrency: opts.Concurrency,
		callTimeout: opts.CallTimeout,
		logger:      logger.WithFields(log),
		now:         time.Now,
	}
}

// Evaluate runs extract, benchmark, score and adjust over the cohort.
// It either returns a result for every proposal, in input order, or an error and no results.
func (e *Evaluator) Evaluate(ctx context.Context, req rfp.Requirements, proposals []rfp.Proposal) (*Run, error) {
	if len(proposals) == 0 {
		return nil, ErrEmptyCohort
	}

	run := &Run{
		ID:        uuid.New(),
		RFPTitle:  req.Title,
		StartedAt: e.now(),
	}
	log := e.logger.With(
		zap.String(logger.FieldRun, run.ID.String()),
		zap.String(logger.FieldRFP, req.Title),
	)
	log.Info("evaluation started", zap.Int("proposals", len(proposals)), zap.Int("concurrency", e.concurrency))

	fail := func(stage Stage, err error) (*Run, error) {
		log.Error("evaluation failed", zap.String("stage", string(stage)), zap.Error(err))
		return nil, &StageError{Stage: stage, Err: err}
	}

	started := e.now()
	facts, err := fanOut(ctx, e.concurrency, e.callTimeout, proposals, e.extractor.ExtractFacts)
	if err != nil {
		return fail(StageExtract, err)
	}
	e.logStage(log, StageExtract, len(proposals), started)

	run.Benchmark = ComputeBenchmark(facts)
	log.Info("evaluation stage",
		zap.String("name", string(StageBenchmark)),
		zap.Stringer("lowest_price", run.Benchmark.LowestPrice),
		zap.Stringer("fastest_delivery", run.Benchmark.FastestDelivery),
		zap.Stringer("longest_warranty", run.Benchmark.LongestWarranty),
	)

	started = e.now()
	assessments, err := fanOut(ctx, e.concurrency, e.callTimeout, proposals,
		func(ctx context.Context, p rfp.Proposal) (rfp.Assessment, error) {
			return e.scorer.ScoreProposal(ctx, p, req)
		},
	)
	if err != nil {
		return fail(StageScore, err)
	}
	e.logStage(log, StageScore, len(proposals), started)

	started = e.now()
	results := make([]rfp.EvaluationResult, len(proposals))
	adjusted := 0
	for i, p := range proposals {
		results[i] = compose(p, facts[i], assessments[i], run.Benchmark)
		if len(results[i].Deductions) > 0 {
			adjusted++
		}
	}
	e.logStage(log, StageAdjust, len(proposals), started, zap.Int("penalized", adjusted))

	run.Results = results
	run.State = StateCompleted
	run.FinishedAt = e.now()

	log.Info("evaluation completed", zap.Duration("took", run.FinishedAt.Sub(run.StartedAt)))

	return run, nil
}

func (e *Evaluator) logStage(log *zap.Logger, stage Stage, processed int, started time.Time, fields ...zap.Field) {
	log.Info("evaluation stage", append([]zap.Field{
		zap.String("name", string(stage)),
		zap.Int("processed", processed),
		zap.Duration("took", e.now().Sub(started)),
	}, fields...)...)
}

func compose(p rfp.Proposal, facts rfp.Facts, assessment rfp.Assessment, bench rfp.Benchmark) rfp.EvaluationResult {
	adjustment := Adjust(assessment.BaseScore, facts, bench)

	return rfp.EvaluationResult{
		ProposalID:     p.ID,
		Vendor:         p.Vendor,
		Facts:          facts,
		Breakdown:      assessment.Breakdown,
		BaseScore:      assessment.BaseScore,
		Score:          adjustment.Score,
		Deductions:     adjustment.Deductions,
		Summary:        ComposeSummary(assessment.Summary, adjustment.Deductions),
		Recommendation: assessment.Recommendation,
	}
}

// fanOut applies fn to every proposal with at most limit calls in flight.
// Results keep the input order. The first failure cancels the remaining calls.
func fanOut[T any](ctx context.Context, limit int, timeout time.Duration, proposals []rfp.Proposal, fn func(context.Context, rfp.Proposal) (T, error)) ([]T, error) {
	results := make([]T, len(proposals))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, p := range proposals {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			callCtx, cancel := context.WithTimeout(gctx, timeout)
			defer cancel()

			out, err := fn(callCtx, p)
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
