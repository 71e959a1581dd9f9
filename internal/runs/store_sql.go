package runs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/qcm-las/qcm-server/internal/quiz"
)

// SQLStore keeps run history in the quiz_runs table, portable across the
// sqlite and postgres drivers ($n placeholders work for both).
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) PutRun(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO quiz_runs (id, mode, title, mean, note20, answered_count, question_count, snapshot_json, started_at, ended_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		 ON CONFLICT (id) DO NOTHING`,
		r.ID, string(r.Mode), r.Title, r.Mean, r.Note20, r.AnsweredCount, r.QuestionCount,
		r.SnapshotJSON, r.StartedAt, r.EndedAt)
	if err != nil {
		return fmt.Errorf("put run: %w", err)
	}
	return nil
}

func (s *SQLStore) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, mode, title, mean, note20, answered_count, question_count, snapshot_json, started_at, ended_at
		 FROM quiz_runs WHERE id=$1`, id)
	var r Run
	var mode string
	if err := row.Scan(&r.ID, &mode, &r.Title, &r.Mean, &r.Note20, &r.AnsweredCount,
		&r.QuestionCount, &r.SnapshotJSON, &r.StartedAt, &r.EndedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, ErrNotFound
		}
		return Run{}, err
	}
	r.Mode = quiz.Mode(mode)
	return r, nil
}

func (s *SQLStore) ListRuns(ctx context.Context, opts ListOpts) ([]Run, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := `SELECT id, mode, title, mean, note20, answered_count, question_count, started_at, ended_at
	      FROM quiz_runs`
	args := []any{}
	if opts.Mode != "" {
		q += ` WHERE mode=$1`
		args = append(args, opts.Mode)
	}
	q += fmt.Sprintf(` ORDER BY ended_at DESC LIMIT %d OFFSET %d`, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Run{}
	for rows.Next() {
		var r Run
		var mode string
		if err := rows.Scan(&r.ID, &mode, &r.Title, &r.Mean, &r.Note20,
			&r.AnsweredCount, &r.QuestionCount, &r.StartedAt, &r.EndedAt); err != nil {
			return nil, err
		}
		r.Mode = quiz.Mode(mode)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) Stats(ctx context.Context) (Stats, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(note20), 0), COALESCE(MAX(note20), 0) FROM quiz_runs`)
	var st Stats
	if err := row.Scan(&st.RunCount, &st.MeanNote20, &st.BestNote20); err != nil {
		return Stats{}, err
	}
	return st, nil
}
