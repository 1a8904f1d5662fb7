package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spigell/rfp-evaluator/internal/evaluation"
	"github.com/spigell/rfp-evaluator/internal/rfp"
	"go.uber.org/zap"
)

// StoredProposal is a proposal together with the outcome of its latest evaluation.
type StoredProposal struct {
	rfp.Proposal
	Score          *int
	Summary        string
	Recommendation rfp.Recommendation
	RunID          string
	EvaluatedAt    *time.Time
}

// Scored reports whether the proposal has been evaluated.
func (p StoredProposal) Scored() bool {
	return p.Score != nil
}

// CreateRFP stores a new RFP in DRAFT status unless another status is set.
func (s *Store) CreateRFP(ctx context.Context, r rfp.RFP) (rfp.RFP, error) {
	if strings.TrimSpace(r.Title) == "" {
		r.Title = r.Requirements.Title
	}
	if strings.TrimSpace(r.Title) == "" {
		return rfp.RFP{}, errors.New("rfp title is required")
	}
	if r.Status == "" {
		r.Status = rfp.StatusDraft
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}

	requirements, err := json.Marshal(r.Requirements)
	if err != nil {
		return rfp.RFP{}, fmt.Errorf("encode requirements: %w", err)
	}

	id, err := s.insert(ctx, s.db,
		`INSERT INTO rfps (title, raw_prompt, requirements, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		r.Title, r.RawPrompt, string(requirements), string(r.Status), s.timeValue(r.CreatedAt),
	)
	if err != nil {
		return rfp.RFP{}, fmt.Errorf("insert rfp: %w", err)
	}

	r.ID = id
	return r, nil
}

func (s *Store) GetRFP(ctx context.Context, id int64) (rfp.RFP, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, title, raw_prompt, requirements, status, created_at FROM rfps WHERE id = ?`), id)

	r, err := scanRFP(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rfp.RFP{}, fmt.Errorf("rfp %d: %w", id, ErrNotFound)
	}
	return r, err
}

// ListRFPs returns every RFP, newest first.
func (s *Store) ListRFPs(ctx context.Context) ([]rfp.RFP, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, raw_prompt, requirements, status, created_at FROM rfps ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query rfps: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []rfp.RFP
	for rows.Next() {
		r, err := scanRFP(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rfps: %w", err)
	}
	return result, nil
}

func (s *Store) SetRFPStatus(ctx context.Context, id int64, status rfp.Status) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE rfps SET status = ? WHERE id = ?`), string(status), id)
	if err != nil {
		return fmt.Errorf("update rfp status: %w", err)
	}
	return expectRow(res, fmt.Sprintf("rfp %d", id))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRFP(row rowScanner) (rfp.RFP, error) {
	var (
		r            rfp.RFP
		requirements text
		status       string
		created      timestamp
	)
	if err := row.Scan(&r.ID, &r.Title, &r.RawPrompt, &requirements, &status, &created); err != nil {
		return rfp.RFP{}, err
	}
	if err := json.Unmarshal([]byte(requirements), &r.Requirements); err != nil {
		return rfp.RFP{}, fmt.Errorf("decode requirements of rfp %d: %w", r.ID, err)
	}
	r.Status = rfp.Status(status)
	r.CreatedAt = created.Time
	return r, nil
}

// UpsertVendor finds a vendor by its lower-cased email, or by name when no email is known,
// and creates it when missing. A known vendor gets its name and notes refreshed.
func (s *Store) UpsertVendor(ctx context.Context, v rfp.Vendor) (rfp.Vendor, error) {
	v.Name = strings.TrimSpace(v.Name)
	v.Email = strings.ToLower(strings.TrimSpace(v.Email))
	if v.Name == "" && v.Email == "" {
		return rfp.Vendor{}, errors.New("vendor needs a name or an email")
	}

	var email any
	var lookup *sql.Row
	if v.Email != "" {
		email = v.Email
		lookup = s.db.QueryRowContext(ctx, s.rebind(`SELECT id, name, notes FROM vendors WHERE email = ?`), v.Email)
	} else {
		lookup = s.db.QueryRowContext(ctx, s.rebind(`SELECT id, name, notes FROM vendors WHERE email IS NULL AND name = ?`), v.Name)
	}

	var existing rfp.Vendor
	err := lookup.Scan(&existing.ID, &existing.Name, &existing.Notes)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		id, err := s.insert(ctx, s.db,
			`INSERT INTO vendors (name, email, notes, created_at) VALUES (?, ?, ?, ?)`,
			v.Name, email, v.Notes, s.timeValue(s.now()),
		)
		if err != nil {
			return rfp.Vendor{}, fmt.Errorf("insert vendor: %w", err)
		}
		v.ID = id
		return v, nil
	case err != nil:
		return rfp.Vendor{}, fmt.Errorf("lookup vendor: %w", err)
	}

	if v.Name == "" {
		v.Name = existing.Name
	}
	if v.Notes == "" {
		v.Notes = existing.Notes
	}
	if v.Name != existing.Name || v.Notes != existing.Notes {
		if _, err := s.db.ExecContext(ctx, s.rebind(`UPDATE vendors SET name = ?, notes = ? WHERE id = ?`), v.Name, v.Notes, existing.ID); err != nil {
			return rfp.Vendor{}, fmt.Errorf("update vendor: %w", err)
		}
	}

	v.ID = existing.ID
	return v, nil
}

// CreateProposal stores a vendor's reply. A vendor may answer an RFP only once.
func (s *Store) CreateProposal(ctx context.Context, p rfp.Proposal) (rfp.Proposal, error) {
	if p.Vendor.ID == 0 {
		return rfp.Proposal{}, errors.New("proposal vendor must be stored first")
	}
	if strings.TrimSpace(p.RawText) == "" {
		return rfp.Proposal{}, errors.New("proposal text is empty")
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}

	var exists int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM proposals WHERE rfp_id = ? AND vendor_id = ?`), p.RFPID, p.Vendor.ID).Scan(&exists)
	if err != nil {
		return rfp.Proposal{}, fmt.Errorf("check existing proposal: %w", err)
	}
	if exists > 0 {
		return rfp.Proposal{}, fmt.Errorf("vendor %q on rfp %d: %w", p.Vendor.Label(), p.RFPID, ErrDuplicateProposal)
	}

	id, err := s.insert(ctx, s.db,
		`INSERT INTO proposals (rfp_id, vendor_id, raw_text, created_at) VALUES (?, ?, ?, ?)`,
		p.RFPID, p.Vendor.ID, p.RawText, s.timeValue(p.CreatedAt),
	)
	if err != nil {
		return rfp.Proposal{}, fmt.Errorf("insert proposal: %w", err)
	}

	p.ID = id
	return p, nil
}

// ListProposals returns the RFP's proposals in the order they were received.
func (s *Store) ListProposals(ctx context.Context, rfpID int64) ([]StoredProposal, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT p.id, p.rfp_id, p.raw_text, p.created_at, p.score, p.summary, p.recommendation,
		       p.evaluation_run_id, p.evaluated_at, v.id, v.name, v.email, v.notes
		FROM proposals p
		JOIN vendors v ON v.id = p.vendor_id
		WHERE p.rfp_id = ?
		ORDER BY p.id`), rfpID)
	if err != nil {
		return nil, fmt.Errorf("query proposals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []StoredProposal
	for rows.Next() {
		var (
			sp                           StoredProposal
			created, evaluated           timestamp
			score                        sql.NullInt64
			summary, recommendation, run text
			email                        sql.NullString
		)
		if err := rows.Scan(
			&sp.ID, &sp.RFPID, &sp.RawText, &created, &score, &summary, &recommendation,
			&run, &evaluated, &sp.Vendor.ID, &sp.Vendor.Name, &email, &sp.Vendor.Notes,
		); err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}

		sp.CreatedAt = created.Time
		sp.Vendor.Email = email.String
		sp.Summary = string(summary)
		sp.Recommendation = rfp.Recommendation(recommendation)
		sp.RunID = string(run)
		if score.Valid {
			v := int(score.Int64)
			sp.Score = &v
		}
		if evaluated.Valid {
			t := evaluated.Time
			sp.EvaluatedAt = &t
		}

		result = append(result, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate proposals: %w", err)
	}

	return result, nil
}

// Proposals returns the plain proposals of an RFP, ready to be evaluated.
func (s *Store) Proposals(ctx context.Context, rfpID int64) ([]rfp.Proposal, error) {
	stored, err := s.ListProposals(ctx, rfpID)
	if err != nil {
		return nil, err
	}
	proposals := make([]rfp.Proposal, 0, len(stored))
	for _, sp := range stored {
		proposals = append(proposals, sp.Proposal)
	}
	return proposals, nil
}

// SaveEvaluation replaces the score, summary and recommendation of every evaluated
// proposal with the run's results and records the run. Proposals of the RFP the run
// left out, for example dropped by screening, lose their earlier results.
// Everything happens in one transaction.
func (s *Store) SaveEvaluation(ctx context.Context, rfpID int64, run *evaluation.Run) error {
	if run == nil || run.State != evaluation.StateCompleted {
		return errors.New("only completed runs can be saved")
	}

	benchmark, err := json.Marshal(run.Benchmark)
	if err != nil {
		return fmt.Errorf("encode benchmark: %w", err)
	}
	results, err := json.Marshal(run.Results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	finished := s.timeValue(run.FinishedAt)
	for _, result := range run.Results {
		res, err := tx.ExecContext(ctx, s.rebind(`
			UPDATE proposals
			SET score = ?, summary = ?, recommendation = ?, evaluation_run_id = ?, evaluated_at = ?
			WHERE id = ? AND rfp_id = ?`),
			result.Score, result.Summary, string(result.Recommendation), run.ID.String(), finished,
			result.ProposalID, rfpID,
		)
		if err != nil {
			return fmt.Errorf("update proposal %d: %w", result.ProposalID, err)
		}
		if err := expectRow(res, fmt.Sprintf("proposal %d of rfp %d", result.ProposalID, rfpID)); err != nil {
			return err
		}
	}

	res, err := tx.ExecContext(ctx, s.rebind(`
		UPDATE proposals
		SET score = NULL, summary = NULL, recommendation = NULL, evaluation_run_id = NULL, evaluated_at = NULL
		WHERE rfp_id = ? AND (evaluation_run_id IS NULL OR evaluation_run_id <> ?)`),
		rfpID, run.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("clear results outside run: %w", err)
	}
	cleared, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("clear results outside run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, s.rebind(`
		INSERT INTO evaluation_runs (id, rfp_id, state, proposal_count, benchmark, results, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		run.ID.String(), rfpID, string(run.State), len(run.Results), string(benchmark), string(results),
		s.timeValue(run.StartedAt), finished,
	); err != nil {
		return fmt.Errorf("record evaluation run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit evaluation: %w", err)
	}

	s.logger.Info("evaluation saved",
		zap.String("run_id", run.ID.String()),
		zap.Int64("rfp_id", rfpID),
		zap.Int("proposals", len(run.Results)),
		zap.Int64("cleared", cleared),
	)
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// insert runs an INSERT and returns the generated id.
func (s *Store) insert(ctx context.Context, db execer, query string, args ...any) (int64, error) {
	if s.backend == PostgresBackend {
		var id int64
		if err := db.QueryRowContext(ctx, s.rebind(query+" RETURNING id"), args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func expectRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
