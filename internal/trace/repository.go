package trace

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Repository persists finished traces.
type Repository interface {
	Save(ctx context.Context, t *Trace) error
	Get(ctx context.Context, runID string) (*Trace, error)
	ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*Trace, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// SQLiteRepository implements Repository using the traces table.
// The full trace is stored as JSON in body; the other columns exist for
// lookup and pruning.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Save inserts or replaces a trace.
func (r *SQLiteRepository) Save(ctx context.Context, t *Trace) error {
	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshalling trace: %w", err)
	}

	var finished any
	if t.Finish != nil {
		finished = t.Finish.Format(time.RFC3339Nano)
	}

	query := `
		INSERT INTO traces (run_id, workflow_id, state, started_at, finished_at, body)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id) DO UPDATE SET
			state = excluded.state,
			finished_at = excluded.finished_at,
			body = excluded.body`

	_, err = r.db.ExecContext(ctx, query,
		t.RunID,
		t.WorkflowID,
		t.State,
		t.Start.Format(time.RFC3339Nano),
		finished,
		string(body),
	)
	if err != nil {
		return fmt.Errorf("saving trace: %w", err)
	}
	return nil
}

// Get retrieves a trace by run id.
func (r *SQLiteRepository) Get(ctx context.Context, runID string) (*Trace, error) {
	var body string
	err := r.db.QueryRowContext(ctx, `SELECT body FROM traces WHERE run_id = ?`, runID).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTraceNotFound
		}
		return nil, fmt.Errorf("querying trace: %w", err)
	}
	return decode(body)
}

// ListByWorkflow returns the most recent traces of a workflow, newest first.
func (r *SQLiteRepository) ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*Trace, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT body FROM traces WHERE workflow_id = ? ORDER BY started_at DESC LIMIT ?`,
		workflowID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying traces: %w", err)
	}
	defer rows.Close()

	var out []*Trace
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scanning trace: %w", err)
		}
		t, err := decode(body)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating traces: %w", err)
	}
	return out, nil
}

// DeleteBefore removes traces that started before the given time.
func (r *SQLiteRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM traces WHERE started_at < ?`, before.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("pruning traces: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

func decode(body string) (*Trace, error) {
	var t Trace
	if err := json.Unmarshal([]byte(body), &t); err != nil {
		return nil, fmt.Errorf("unmarshalling trace: %w", err)
	}
	return &t, nil
}
