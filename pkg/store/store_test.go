package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/scout/pkg/logging"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace for
// more robust SQL mock testing.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	log, _ := logging.NewLogger("store-test")
	t.Cleanup(func() { log.Close() })
	return log
}

// expectSchemaProbe queues the to_regclass probe for every required table.
func expectSchemaProbe(mockPool pgxmock.PgxPoolIface) {
	for _, table := range requiredTables {
		name := table
		mockPool.ExpectQuery(flexibleSQLMatcher(`SELECT to_regclass($1)::text`)).
			WithArgs(name).
			WillReturnRows(pgxmock.NewRows([]string{"to_regclass"}).AddRow(&name))
	}
}

func newTestStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()

	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	mockPool.ExpectPing().WillReturnError(nil)
	expectSchemaProbe(mockPool)

	s, err := New(context.Background(), mockPool, testLogger(t))
	require.NoError(t, err)
	return s, mockPool
}

func TestNew(t *testing.T) {
	t.Run("ping failure is propagated", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		pingErr := errors.New("database unavailable")
		mockPool.ExpectPing().WillReturnError(pingErr)

		_, err = New(context.Background(), mockPool, testLogger(t))
		require.Error(t, err)
		assert.ErrorIs(t, err, pingErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("missing table fails construction", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectPing().WillReturnError(nil)

		// First table resolves, second does not
		name := requiredTables[0]
		mockPool.ExpectQuery(flexibleSQLMatcher(`SELECT to_regclass($1)::text`)).
			WithArgs(name).
			WillReturnRows(pgxmock.NewRows([]string{"to_regclass"}).AddRow(&name))
		mockPool.ExpectQuery(flexibleSQLMatcher(`SELECT to_regclass($1)::text`)).
			WithArgs(requiredTables[1]).
			WillReturnRows(pgxmock.NewRows([]string{"to_regclass"}).AddRow((*string)(nil)))

		_, err = New(context.Background(), mockPool, testLogger(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storage is not set up")
		assert.Contains(t, err.Error(), requiredTables[1])
	})
}

func TestCreateLog(t *testing.T) {
	s, mockPool := newTestStore(t)

	mockPool.ExpectExec(flexibleSQLMatcher(`INSERT INTO browser_logs`)).
		WithArgs("run-1", pgxmock.AnyArg(), "info", "navigated", []byte(`{"url":"https://example.com"}`), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.CreateLog(context.Background(), LogEntry{
		RunID:    "run-1",
		StepID:   "step-1",
		Level:    LevelInfo,
		Message:  "navigated",
		Metadata: map[string]any{"url": "https://example.com"},
	})
	require.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestCreateLogEmptyMetadata(t *testing.T) {
	s, mockPool := newTestStore(t)

	// jsonb column must never receive SQL null
	mockPool.ExpectExec(flexibleSQLMatcher(`INSERT INTO browser_logs`)).
		WithArgs("run-1", pgxmock.AnyArg(), "warning", "request failed", []byte("{}"), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.CreateLog(context.Background(), LogEntry{
		RunID:   "run-1",
		Level:   LevelWarning,
		Message: "request failed",
	})
	require.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestCountLogs(t *testing.T) {
	s, mockPool := newTestStore(t)

	mockPool.ExpectQuery(flexibleSQLMatcher(`SELECT COUNT(*) FROM browser_logs WHERE run_id = $1`)).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(7)))

	count, err := s.CountLogs(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
}

func TestCreateSnapshot(t *testing.T) {
	s, mockPool := newTestStore(t)

	mockPool.ExpectExec(flexibleSQLMatcher(`INSERT INTO browser_snapshots`)).
		WithArgs(pgxmock.AnyArg(), "run-1", pgxmock.AnyArg(), "https://example.com", "Example",
			"<html></html>", "Example Domain", "data:image/png;base64,xyz", "/tmp/shot.png",
			1280, 720, (*int)(nil), (*int)(nil), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := s.CreateSnapshot(context.Background(), &Snapshot{
		RunID:          "run-1",
		StepID:         "step-1",
		URL:            "https://example.com",
		Title:          "Example",
		DOMHTML:        "<html></html>",
		DOMText:        "Example Domain",
		ScreenshotData: "data:image/png;base64,xyz",
		ScreenshotPath: "/tmp/shot.png",
		ViewportWidth:  1280,
		ViewportHeight: 720,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestLatestSnapshot(t *testing.T) {
	s, mockPool := newTestStore(t)
	created := time.Now().UTC()

	rows := pgxmock.NewRows([]string{
		"id", "run_id", "step_id", "url", "title", "dom_html", "dom_text",
		"screenshot_data", "screenshot_path", "viewport_width", "viewport_height",
		"mouse_x", "mouse_y", "created_at",
	}).AddRow("snap-1", "run-1", "step-1", "https://example.com", "Example",
		"<html></html>", "Example Domain", "data:image/png;base64,xyz", "/tmp/shot.png",
		1280, 720, (*int)(nil), (*int)(nil), created)

	mockPool.ExpectQuery(flexibleSQLMatcher(`FROM browser_snapshots WHERE run_id = $1 AND step_id = $2`)).
		WithArgs("run-1", "step-1").
		WillReturnRows(rows)

	snap, err := s.LatestSnapshot(context.Background(), "run-1", "step-1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "snap-1", snap.ID)
	assert.Equal(t, "https://example.com", snap.URL)
	assert.Equal(t, created, snap.CreatedAt)
}

func TestLatestSnapshotNone(t *testing.T) {
	s, mockPool := newTestStore(t)

	mockPool.ExpectQuery(flexibleSQLMatcher(`FROM browser_snapshots WHERE run_id = $1`)).
		WithArgs("run-2").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "run_id", "step_id", "url", "title", "dom_html", "dom_text",
			"screenshot_data", "screenshot_path", "viewport_width", "viewport_height",
			"mouse_x", "mouse_y", "created_at",
		}))

	snap, err := s.LatestSnapshot(context.Background(), "run-2", "")
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestCreateAudit(t *testing.T) {
	s, mockPool := newTestStore(t)

	mockPool.ExpectExec(flexibleSQLMatcher(`INSERT INTO audit_logs`)).
		WithArgs("run-1", pgxmock.AnyArg(), AuditExtraction, "tier succeeded",
			[]byte(`{"count":3}`), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.CreateAudit(context.Background(), Audit{
		RunID:   "run-1",
		StepID:  "step-1",
		Kind:    AuditExtraction,
		Message: "tier succeeded",
		Details: map[string]any{"count": 3},
	})
	require.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestCreateRun(t *testing.T) {
	t.Run("generates an id when absent", func(t *testing.T) {
		s, mockPool := newTestStore(t)

		mockPool.ExpectExec(flexibleSQLMatcher(
			`INSERT INTO agent_runs (id, model, engine, headless, prompt, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`)).
			WithArgs(pgxmock.AnyArg(), "gpt-4o", "chromium", true, "visit https://example.com", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		run := &Run{Model: "gpt-4o", Engine: "chromium", Headless: true, Prompt: "visit https://example.com"}
		require.NoError(t, s.CreateRun(context.Background(), run))
		assert.NotEmpty(t, run.ID)
	})
}

func TestGetRun(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		s, mockPool := newTestStore(t)

		created := time.Now().UTC()
		mockPool.ExpectQuery(flexibleSQLMatcher(
			`SELECT id, model, engine, headless, prompt, COALESCE(recording_path, ''), created_at
			 FROM agent_runs WHERE id = $1`)).
			WithArgs("run-1").
			WillReturnRows(pgxmock.NewRows([]string{
				"id", "model", "engine", "headless", "prompt", "recording_path", "created_at",
			}).AddRow("run-1", "gpt-4o", "firefox", false, "extract emails", "/tmp/run-1/recording.webm", created))

		run, err := s.GetRun(context.Background(), "run-1")
		require.NoError(t, err)
		require.NotNil(t, run)
		assert.Equal(t, "firefox", run.Engine)
		assert.Equal(t, "/tmp/run-1/recording.webm", run.RecordingPath)
	})

	t.Run("missing run returns nil", func(t *testing.T) {
		s, mockPool := newTestStore(t)

		mockPool.ExpectQuery(flexibleSQLMatcher(
			`SELECT id, model, engine, headless, prompt, COALESCE(recording_path, ''), created_at
			 FROM agent_runs WHERE id = $1`)).
			WithArgs("run-x").
			WillReturnRows(pgxmock.NewRows([]string{
				"id", "model", "engine", "headless", "prompt", "recording_path", "created_at",
			}))

		run, err := s.GetRun(context.Background(), "run-x")
		require.NoError(t, err)
		assert.Nil(t, run)
	})
}

func TestUpdateRunRecording(t *testing.T) {
	t.Run("updates existing run", func(t *testing.T) {
		s, mockPool := newTestStore(t)

		mockPool.ExpectExec(flexibleSQLMatcher(`UPDATE agent_runs SET recording_path = $2 WHERE id = $1`)).
			WithArgs("run-1", "/tmp/run-1/recording.webm").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := s.UpdateRunRecording(context.Background(), "run-1", "/tmp/run-1/recording.webm")
		require.NoError(t, err)
	})

	t.Run("unknown run is an error", func(t *testing.T) {
		s, mockPool := newTestStore(t)

		mockPool.ExpectExec(flexibleSQLMatcher(`UPDATE agent_runs SET recording_path = $2 WHERE id = $1`)).
			WithArgs("run-x", "/tmp/run-x/recording.webm").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := s.UpdateRunRecording(context.Background(), "run-x", "/tmp/run-x/recording.webm")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "run not found")
	})
}

func TestEnsureSchema(t *testing.T) {
	t.Run("executes the DDL once", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectExec("CREATE TABLE IF NOT EXISTS agent_runs").
			WillReturnResult(pgxmock.NewResult("CREATE", 0))

		require.NoError(t, EnsureSchema(context.Background(), mockPool))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("exec failure is wrapped", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectExec("CREATE TABLE IF NOT EXISTS agent_runs").
			WillReturnError(errors.New("permission denied"))

		err = EnsureSchema(context.Background(), mockPool)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create schema")
	})
}
