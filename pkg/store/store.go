// Package store persists runs, browser logs, snapshots, and audit records
// to PostgreSQL. All event tables are append-only; the runner never mutates
// or deletes rows it has written, with the single exception of attaching a
// recording path to an existing run.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/entrhq/scout/pkg/logging"
)

// Repository is the narrow persistence surface the runner depends on.
// Implementations must be safe for use from a single invocation goroutine;
// cross-invocation serialization is the planner's responsibility.
type Repository interface {
	CreateLog(ctx context.Context, entry LogEntry) error
	CountLogs(ctx context.Context, runID string) (int64, error)
	CreateSnapshot(ctx context.Context, snap *Snapshot) (string, error)
	LatestSnapshot(ctx context.Context, runID, stepID string) (*Snapshot, error)
	CreateAudit(ctx context.Context, audit Audit) error
	UpdateRunRecording(ctx context.Context, runID, recordingPath string) error
}

// DBPool abstracts pgxpool.Pool to allow mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the PostgreSQL implementation of Repository.
type Store struct {
	pool DBPool
	log  *logging.Logger
}

// requiredTables are probed at construction. A missing table is a fatal
// setup error, surfaced before any session is launched rather than on
// first use.
var requiredTables = []string{
	"agent_runs",
	"browser_logs",
	"browser_snapshots",
	"audit_logs",
}

// New creates a store and verifies both connectivity and schema readiness.
func New(ctx context.Context, pool DBPool, log *logging.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{pool: pool, log: log}
	if err := s.checkSchema(ctx); err != nil {
		return nil, err
	}
	s.log.Debugf("schema ready: %d tables verified", len(requiredTables))
	return s, nil
}

// checkSchema verifies every required table resolves to a relation.
func (s *Store) checkSchema(ctx context.Context) error {
	for _, table := range requiredTables {
		var regclass *string
		err := s.pool.QueryRow(ctx, `SELECT to_regclass($1)::text`, table).Scan(&regclass)
		if err != nil {
			return fmt.Errorf("failed to probe table %s: %w", table, err)
		}
		if regclass == nil {
			return fmt.Errorf("browser agent storage is not set up: missing table %s", table)
		}
	}
	return nil
}

// CreateLog appends one browser log entry.
func (s *Store) CreateLog(ctx context.Context, entry LogEntry) error {
	metadata, err := marshalJSONMap(entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode log metadata: %w", err)
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO browser_logs (run_id, step_id, level, message, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.RunID, nullable(entry.StepID), string(entry.Level), entry.Message, metadata, createdAt)
	if err != nil {
		return fmt.Errorf("failed to insert browser log: %w", err)
	}
	return nil
}

// CountLogs returns the total number of log entries for a run.
func (s *Store) CountLogs(ctx context.Context, runID string) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM browser_logs WHERE run_id = $1`, runID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count browser logs: %w", err)
	}
	return count, nil
}

// CreateSnapshot appends one snapshot row and returns its id.
func (s *Store) CreateSnapshot(ctx context.Context, snap *Snapshot) (string, error) {
	id := snap.ID
	if id == "" {
		id = uuid.New().String()
	}

	createdAt := snap.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO browser_snapshots
		 (id, run_id, step_id, url, title, dom_html, dom_text,
		  screenshot_data, screenshot_path, viewport_width, viewport_height,
		  mouse_x, mouse_y, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		id, snap.RunID, nullable(snap.StepID), snap.URL, snap.Title,
		snap.DOMHTML, snap.DOMText, snap.ScreenshotData, snap.ScreenshotPath,
		snap.ViewportWidth, snap.ViewportHeight, snap.MouseX, snap.MouseY, createdAt)
	if err != nil {
		return "", fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return id, nil
}

// LatestSnapshot returns the most recently created snapshot for a run,
// scoped to stepID when provided. Returns nil when no snapshot exists.
func (s *Store) LatestSnapshot(ctx context.Context, runID, stepID string) (*Snapshot, error) {
	query := `SELECT id, run_id, COALESCE(step_id, ''), url, title, dom_html, dom_text,
	                 screenshot_data, screenshot_path, viewport_width, viewport_height,
	                 mouse_x, mouse_y, created_at
	          FROM browser_snapshots WHERE run_id = $1`
	args := []any{runID}
	if stepID != "" {
		query += ` AND step_id = $2`
		args = append(args, stepID)
	}
	query += ` ORDER BY created_at DESC LIMIT 1`

	snap := &Snapshot{}
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&snap.ID, &snap.RunID, &snap.StepID, &snap.URL, &snap.Title,
		&snap.DOMHTML, &snap.DOMText, &snap.ScreenshotData, &snap.ScreenshotPath,
		&snap.ViewportWidth, &snap.ViewportHeight, &snap.MouseX, &snap.MouseY,
		&snap.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query latest snapshot: %w", err)
	}
	return snap, nil
}

// CreateAudit appends one audit record.
func (s *Store) CreateAudit(ctx context.Context, audit Audit) error {
	details, err := marshalJSONMap(audit.Details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}

	createdAt := audit.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_logs (run_id, step_id, kind, message, details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		audit.RunID, nullable(audit.StepID), audit.Kind, audit.Message, details, createdAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// CreateRun inserts a run row. In production runs are created by the
// planner; this exists for local development against an EnsureSchema
// database and for tests.
func (s *Store) CreateRun(ctx context.Context, run *Run) error {
	id := run.ID
	if id == "" {
		id = uuid.New().String()
		run.ID = id
	}

	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO agent_runs (id, model, engine, headless, prompt, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, run.Model, run.Engine, run.Headless, run.Prompt, createdAt)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// GetRun fetches one run by id. Returns nil when the run does not exist.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	run := &Run{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, model, engine, headless, prompt, COALESCE(recording_path, ''), created_at
		 FROM agent_runs WHERE id = $1`, runID).Scan(
		&run.ID, &run.Model, &run.Engine, &run.Headless, &run.Prompt,
		&run.RecordingPath, &run.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	return run, nil
}

// UpdateRunRecording attaches a recording path to an existing run. This is
// the only mutation the runner performs against planner-owned rows.
func (s *Store) UpdateRunRecording(ctx context.Context, runID, recordingPath string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE agent_runs SET recording_path = $2 WHERE id = $1`,
		runID, recordingPath)
	if err != nil {
		return fmt.Errorf("failed to update run recording path: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run not found: %s", runID)
	}
	return nil
}

// marshalJSONMap encodes an optional metadata map, defaulting to an empty
// JSON object so jsonb columns never receive SQL null.
func marshalJSONMap(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// nullable maps an empty string to SQL null.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
