package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jackzampolin/bindery/internal/doc"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id               TEXT PRIMARY KEY,
	state            TEXT NOT NULL,
	request          TEXT NOT NULL,
	docx_path        TEXT NOT NULL DEFAULT '',
	pdf_path         TEXT NOT NULL DEFAULT '',
	error_kind       TEXT NOT NULL DEFAULT '',
	error_message    TEXT NOT NULL DEFAULT '',
	warnings         TEXT NOT NULL DEFAULT '[]',
	cancel_requested INTEGER NOT NULL DEFAULT 0,
	created_at       TEXT NOT NULL,
	started_at       TEXT,
	completed_at     TEXT,
	updated_at       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_state ON jobs(state);
`

// Store persists job records in sqlite so job status stays answerable
// across process restarts.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the job store at path with the
// production pragmas applied.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open job store: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db, logger: logger.With("component", "jobstore")}, nil
}

// OpenMemory opens an in-memory store for tests.
func OpenMemory(logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory store: %w", err)
	}
	// A single connection keeps every query on the same in-memory
	// database.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db, logger: logger.With("component", "jobstore")}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create inserts a new queued record for a request and returns it.
func (s *Store) Create(ctx context.Context, req doc.Request) (*Record, error) {
	rec := NewRecord(req)

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, state, request, warnings, created_at, updated_at)
		VALUES (?, ?, ?, '[]', ?, ?)`,
		rec.ID, string(rec.State), string(reqJSON),
		rec.CreatedAt.Format(time.RFC3339Nano), rec.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Info("job created", "id", rec.ID)
	return rec, nil
}

// Get returns a job record by id.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, state, request, docx_path, pdf_path, error_kind, error_message,
		       warnings, cancel_requested, created_at, started_at, completed_at, updated_at
		FROM jobs WHERE id = ?`, id)
	return scanRecord(row)
}

// List returns jobs in a given state, newest first. An empty state
// lists everything.
func (s *Store) List(ctx context.Context, state State, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, state, request, docx_path, pdf_path, error_kind, error_message,
		       warnings, cancel_requested, created_at, started_at, completed_at, updated_at
		FROM jobs`
	args := []any{}
	if state != "" {
		query += " WHERE state = ?"
		args = append(args, string(state))
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// QueuedIDs returns ids of jobs awaiting dispatch, oldest first.
func (s *Store) QueuedIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM jobs WHERE state = ? ORDER BY created_at ASC`, string(StateQueued))
	if err != nil {
		return nil, fmt.Errorf("failed to query queued jobs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Claim atomically transitions a job from queued to running, recording
// the start timestamp. It returns false when the job was already
// claimed, cancelled or unknown, guaranteeing at-most-once dispatch.
func (s *Store) Claim(ctx context.Context, id string) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET state = ?, started_at = ?, updated_at = ?
		WHERE id = ? AND state = ?`,
		string(StateRunning), now, now, id, string(StateQueued))
	if err != nil {
		return false, fmt.Errorf("failed to claim job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkCompleted transitions a running job to completed with its output
// locations and accumulated warnings.
func (s *Store) MarkCompleted(ctx context.Context, id, docxPath, pdfPath string, warnings []string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET state = ?, docx_path = ?, pdf_path = ?, warnings = ?,
		       completed_at = ?, updated_at = ?
		WHERE id = ? AND state = ?`,
		string(StateCompleted), docxPath, pdfPath, marshalWarnings(warnings),
		now, now, id, string(StateRunning))
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	return requireTransition(res, id)
}

// MarkFailed transitions a running job to failed with the error detail.
func (s *Store) MarkFailed(ctx context.Context, id, kind, message string, warnings []string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET state = ?, error_kind = ?, error_message = ?, warnings = ?,
		       completed_at = ?, updated_at = ?
		WHERE id = ? AND state = ?`,
		string(StateFailed), kind, message, marshalWarnings(warnings),
		now, now, id, string(StateRunning))
	if err != nil {
		return fmt.Errorf("failed to fail job: %w", err)
	}
	return requireTransition(res, id)
}

// MarkCancelled transitions a queued or running job to cancelled.
func (s *Store) MarkCancelled(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET state = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND state IN (?, ?)`,
		string(StateCancelled), now, now, id, string(StateQueued), string(StateRunning))
	if err != nil {
		return fmt.Errorf("failed to cancel job: %w", err)
	}
	return requireTransition(res, id)
}

// RequestCancel flags a non-terminal job for cancellation. Terminal
// jobs are left untouched.
func (s *Store) RequestCancel(ctx context.Context, id string) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec.State.Terminal() {
		return nil
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE jobs SET cancel_requested = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("failed to request cancel: %w", err)
	}
	return nil
}

// CancelRequested reports whether cancellation has been requested.
func (s *Store) CancelRequested(ctx context.Context, id string) (bool, error) {
	var flag int
	err := s.db.QueryRowContext(ctx,
		`SELECT cancel_requested FROM jobs WHERE id = ?`, id).Scan(&flag)
	if err == sql.ErrNoRows {
		return false, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return false, err
	}
	return flag == 1, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		rec                 Record
		state, reqJSON      string
		warningsJSON        string
		cancelFlag          int
		createdAt, updated  string
		startedAt, complete sql.NullString
	)
	err := row.Scan(&rec.ID, &state, &reqJSON, &rec.DOCXPath, &rec.PDFPath,
		&rec.ErrorKind, &rec.ErrorMessage, &warningsJSON, &cancelFlag,
		&createdAt, &startedAt, &complete, &updated)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	rec.State = State(state)
	rec.CancelRequested = cancelFlag == 1

	if err := json.Unmarshal([]byte(reqJSON), &rec.Request); err != nil {
		return nil, fmt.Errorf("failed to unmarshal request: %w", err)
	}
	if warningsJSON != "" {
		if err := json.Unmarshal([]byte(warningsJSON), &rec.Warnings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal warnings: %w", err)
		}
	}

	rec.CreatedAt = parseTime(createdAt)
	rec.UpdatedAt = parseTime(updated)
	if startedAt.Valid {
		t := parseTime(startedAt.String)
		rec.StartedAt = &t
	}
	if complete.Valid {
		t := parseTime(complete.String)
		rec.CompletedAt = &t
	}
	return &rec, nil
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func marshalWarnings(warnings []string) string {
	if len(warnings) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(warnings)
	return string(b)
}

// requireTransition maps a zero-row update to ErrNotFound: either the
// id is unknown or the job was not in a state the transition allows.
func requireTransition(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s (or illegal transition)", ErrNotFound, id)
	}
	return nil
}
