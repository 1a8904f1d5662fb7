package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spigell/rfp-evaluator/internal/evaluation"
	"github.com/spigell/rfp-evaluator/internal/rfp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(SQLiteBackend, filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Migrate(LatestVersion))
	return s
}

func TestParseBackend(t *testing.T) {
	for input, want := range map[string]Backend{"": SQLiteBackend, "SQLite": SQLiteBackend, "postgresql": PostgresBackend, "pgx": PostgresBackend, "mysql": MySQLBackend} {
		got, err := ParseBackend(input)
		require.NoError(t, err)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseBackend("mongodb")
	require.Error(t, err)
}

func TestRebind(t *testing.T) {
	pg := &Store{backend: PostgresBackend}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))

	lite := &Store{backend: SQLiteBackend}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestMigrateUpDownUp(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "migrate.db")
	s, err := Open(SQLiteBackend, dsn, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.NoError(t, s.Migrate(LatestVersion))
	require.NoError(t, s.Migrate(LatestVersion), "second run is a no-op")
	require.NoError(t, s.Migrate(0))

	_, err = s.ListRFPs(context.Background())
	require.Error(t, err, "tables are gone after rolling back")

	require.NoError(t, s.Migrate(1))
	_, err = s.ListRFPs(context.Background())
	require.NoError(t, err)
}

func TestRFPRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateRFP(ctx, rfp.RFP{
		RawPrompt: "Need 20 laptops",
		Requirements: rfp.Requirements{
			Title:  "Office laptops",
			Items:  []rfp.Item{{Name: "Laptop", Quantity: 20, Specifications: "16GB RAM"}},
			Budget: rfp.Known(50000),
		},
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	assert.Equal(t, "Office laptops", created.Title)
	assert.Equal(t, rfp.StatusDraft, created.Status)

	got, err := s.GetRFP(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Requirements, got.Requirements)
	assert.WithinDuration(t, created.CreatedAt, got.CreatedAt, time.Millisecond)

	require.NoError(t, s.SetRFPStatus(ctx, created.ID, rfp.StatusSent))
	got, err = s.GetRFP(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, rfp.StatusSent, got.Status)

	_, err = s.GetRFP(ctx, created.ID+100)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, s.SetRFPStatus(ctx, created.ID+100, rfp.StatusSent), ErrNotFound)

	all, err := s.ListRFPs(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	_, err = s.CreateRFP(ctx, rfp.RFP{})
	require.Error(t, err)
}

func TestUpsertVendor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.UpsertVendor(ctx, rfp.Vendor{Name: "Acme", Email: " Sales@ACME.test "})
	require.NoError(t, err)
	assert.Equal(t, "sales@acme.test", first.Email)

	again, err := s.UpsertVendor(ctx, rfp.Vendor{Name: "Acme Corp", Email: "sales@acme.test", Notes: "preferred"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "Acme Corp", again.Name)

	keep, err := s.UpsertVendor(ctx, rfp.Vendor{Email: "SALES@acme.test"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, keep.ID)
	assert.Equal(t, "Acme Corp", keep.Name)
	assert.Equal(t, "preferred", keep.Notes)

	anonymous, err := s.UpsertVendor(ctx, rfp.Vendor{Name: "Walk-in"})
	require.NoError(t, err)
	sameAnonymous, err := s.UpsertVendor(ctx, rfp.Vendor{Name: "Walk-in"})
	require.NoError(t, err)
	assert.Equal(t, anonymous.ID, sameAnonymous.ID)
	assert.NotEqual(t, first.ID, anonymous.ID)

	_, err = s.UpsertVendor(ctx, rfp.Vendor{})
	require.Error(t, err)
}

func seedCohort(t *testing.T, s *Store) (rfp.RFP, []rfp.Proposal) {
	t.Helper()
	ctx := context.Background()

	r, err := s.CreateRFP(ctx, rfp.RFP{Requirements: rfp.Requirements{Title: "Chairs"}})
	require.NoError(t, err)

	var proposals []rfp.Proposal
	for _, v := range []rfp.Vendor{{Name: "V1", Email: "v1@test"}, {Name: "V2", Email: "v2@test"}, {Name: "V3", Email: "v3@test"}} {
		vendor, err := s.UpsertVendor(ctx, v)
		require.NoError(t, err)
		p, err := s.CreateProposal(ctx, rfp.Proposal{RFPID: r.ID, Vendor: vendor, RawText: "offer from " + v.Name})
		require.NoError(t, err)
		proposals = append(proposals, p)
	}
	return r, proposals
}

func TestCreateProposalRejectsDuplicates(t *testing.T) {
	s := newTestStore(t)
	r, proposals := seedCohort(t, s)

	_, err := s.CreateProposal(context.Background(), rfp.Proposal{RFPID: r.ID, Vendor: proposals[0].Vendor, RawText: "second try"})
	require.ErrorIs(t, err, ErrDuplicateProposal)

	_, err = s.CreateProposal(context.Background(), rfp.Proposal{RFPID: r.ID, Vendor: rfp.Vendor{Name: "unsaved"}, RawText: "x"})
	require.Error(t, err)
}

func completedRun(results ...rfp.EvaluationResult) *evaluation.Run {
	now := time.Now().UTC()
	return &evaluation.Run{
		ID:         uuid.New(),
		State:      evaluation.StateCompleted,
		Benchmark:  rfp.Benchmark{LowestPrice: rfp.Known(90)},
		Results:    results,
		StartedAt:  now.Add(-time.Second),
		FinishedAt: now,
	}
}

func TestSaveEvaluationReplacesPriorResults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r, proposals := seedCohort(t, s)

	listed, err := s.ListProposals(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	for i, sp := range listed {
		assert.Equal(t, proposals[i].ID, sp.ID)
		assert.False(t, sp.Scored())
		assert.Nil(t, sp.EvaluatedAt)
	}

	first := completedRun(
		rfp.EvaluationResult{ProposalID: proposals[0].ID, Score: 75, Summary: "first", Recommendation: rfp.Consider},
		rfp.EvaluationResult{ProposalID: proposals[1].ID, Score: 74, Summary: "first", Recommendation: rfp.Reject},
		rfp.EvaluationResult{ProposalID: proposals[2].ID, Score: 79, Summary: "first", Recommendation: rfp.Accept},
	)
	require.NoError(t, s.SaveEvaluation(ctx, r.ID, first))

	second := completedRun(
		rfp.EvaluationResult{ProposalID: proposals[0].ID, Score: 60, Summary: "second", Recommendation: rfp.Reject},
		rfp.EvaluationResult{ProposalID: proposals[1].ID, Score: 88, Summary: "second", Recommendation: rfp.Accept},
		rfp.EvaluationResult{ProposalID: proposals[2].ID, Score: 70, Summary: "second", Recommendation: rfp.Consider},
	)
	require.NoError(t, s.SaveEvaluation(ctx, r.ID, second))

	listed, err = s.ListProposals(ctx, r.ID)
	require.NoError(t, err)
	wantScores := []int{60, 88, 70}
	for i, sp := range listed {
		require.True(t, sp.Scored())
		assert.Equal(t, wantScores[i], *sp.Score)
		assert.Equal(t, "second", sp.Summary)
		assert.Equal(t, second.ID.String(), sp.RunID)
		require.NotNil(t, sp.EvaluatedAt)
		assert.Equal(t, "v"+string(rune('1'+i))+"@test", sp.Vendor.Email)
	}
	assert.Equal(t, rfp.Reject, listed[0].Recommendation)

	var runs int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM evaluation_runs WHERE rfp_id = ?`, r.ID).Scan(&runs))
	assert.Equal(t, 2, runs)
}

func TestSaveEvaluationClearsProposalsOutsideRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r, proposals := seedCohort(t, s)

	first := completedRun(
		rfp.EvaluationResult{ProposalID: proposals[0].ID, Score: 75, Summary: "first", Recommendation: rfp.Consider},
		rfp.EvaluationResult{ProposalID: proposals[1].ID, Score: 90, Summary: "first", Recommendation: rfp.Accept},
		rfp.EvaluationResult{ProposalID: proposals[2].ID, Score: 40, Summary: "first", Recommendation: rfp.Reject},
	)
	require.NoError(t, s.SaveEvaluation(ctx, r.ID, first))

	// the second proposal was screened out of the next run
	second := completedRun(
		rfp.EvaluationResult{ProposalID: proposals[0].ID, Score: 70, Summary: "second", Recommendation: rfp.Consider},
		rfp.EvaluationResult{ProposalID: proposals[2].ID, Score: 50, Summary: "second", Recommendation: rfp.Consider},
	)
	require.NoError(t, s.SaveEvaluation(ctx, r.ID, second))

	listed, err := s.ListProposals(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, listed, 3)

	dropped := listed[1]
	assert.False(t, dropped.Scored())
	assert.Empty(t, dropped.Summary)
	assert.Empty(t, dropped.Recommendation)
	assert.Empty(t, dropped.RunID)
	assert.Nil(t, dropped.EvaluatedAt)

	for _, sp := range []StoredProposal{listed[0], listed[2]} {
		require.True(t, sp.Scored())
		assert.Equal(t, "second", sp.Summary)
		assert.Equal(t, second.ID.String(), sp.RunID)
	}
}

func TestSaveEvaluationIsAllOrNothing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r, proposals := seedCohort(t, s)

	run := completedRun(
		rfp.EvaluationResult{ProposalID: proposals[0].ID, Score: 75, Summary: "ok"},
		rfp.EvaluationResult{ProposalID: 9999, Score: 50, Summary: "unknown proposal"},
	)
	require.ErrorIs(t, s.SaveEvaluation(ctx, r.ID, run), ErrNotFound)

	listed, err := s.ListProposals(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, listed[0].Scored(), "the first update must be rolled back")

	require.Error(t, s.SaveEvaluation(ctx, r.ID, &evaluation.Run{State: evaluation.StateFailed}))
	require.Error(t, s.SaveEvaluation(ctx, r.ID, nil))
}

func TestProposalsForEvaluation(t *testing.T) {
	s := newTestStore(t)
	r, seeded := seedCohort(t, s)

	proposals, err := s.Proposals(context.Background(), r.ID)
	require.NoError(t, err)
	require.Len(t, proposals, 3)
	for i, p := range proposals {
		assert.Equal(t, seeded[i].ID, p.ID)
		assert.Equal(t, seeded[i].RawText, p.RawText)
		assert.Equal(t, seeded[i].Vendor.Name, p.Vendor.Name)
	}
}

func TestImportCohort(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cohort := &rfp.Cohort{
		RawPrompt: "We need chairs",
		RFP:       rfp.Requirements{Title: "Chairs", Budget: rfp.Known(1000)},
		Proposals: []rfp.CohortProposal{
			{Vendor: rfp.Vendor{Name: "V1", Email: "V1@test"}, Text: "first"},
			{Vendor: rfp.Vendor{Name: "V2"}, Text: "second"},
			{Vendor: rfp.Vendor{Name: "V1 again", Email: "v1@test"}, Text: "duplicate"},
		},
	}

	result, err := s.ImportCohort(ctx, cohort)
	require.NoError(t, err)
	assert.Equal(t, rfp.StatusResponsesReceived, result.RFP.Status)
	assert.Equal(t, "We need chairs", result.RFP.RawPrompt)
	require.Len(t, result.Proposals, 2)
	assert.Equal(t, 1, result.Skipped)

	stored, err := s.ListProposals(ctx, result.RFP.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "first", stored[0].RawText)
	assert.Equal(t, "v1@test", stored[0].Vendor.Email)
	assert.Equal(t, "V1 again", stored[0].Vendor.Name, "vendor details are refreshed on upsert")
	assert.Equal(t, "", stored[1].Vendor.Email)

	_, err = s.ImportCohort(ctx, &rfp.Cohort{})
	require.Error(t, err)
}
