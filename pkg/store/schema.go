package store

import (
	"context"
	"fmt"
)

// schemaDDL creates the runner's tables for local development. In
// production the tables are owned by the planner's migration tooling and
// must already exist; New refuses to construct against a partial schema.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS agent_runs (
	id             TEXT PRIMARY KEY,
	model          TEXT NOT NULL DEFAULT '',
	engine         TEXT NOT NULL DEFAULT 'chromium',
	headless       BOOLEAN NOT NULL DEFAULT TRUE,
	prompt         TEXT NOT NULL DEFAULT '',
	recording_path TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS browser_logs (
	id         BIGSERIAL PRIMARY KEY,
	run_id     TEXT NOT NULL,
	step_id    TEXT,
	level      TEXT NOT NULL,
	message    TEXT NOT NULL,
	metadata   JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS browser_logs_run_idx ON browser_logs (run_id, created_at);

CREATE TABLE IF NOT EXISTS browser_snapshots (
	id              TEXT PRIMARY KEY,
	run_id          TEXT NOT NULL,
	step_id         TEXT,
	url             TEXT NOT NULL DEFAULT '',
	title           TEXT NOT NULL DEFAULT '',
	dom_html        TEXT NOT NULL DEFAULT '',
	dom_text        TEXT NOT NULL DEFAULT '',
	screenshot_data TEXT NOT NULL DEFAULT '',
	screenshot_path TEXT NOT NULL DEFAULT '',
	viewport_width  INTEGER NOT NULL DEFAULT 0,
	viewport_height INTEGER NOT NULL DEFAULT 0,
	mouse_x         INTEGER,
	mouse_y         INTEGER,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS browser_snapshots_run_idx ON browser_snapshots (run_id, created_at);

CREATE TABLE IF NOT EXISTS audit_logs (
	id         BIGSERIAL PRIMARY KEY,
	run_id     TEXT NOT NULL,
	step_id    TEXT,
	kind       TEXT NOT NULL,
	message    TEXT NOT NULL,
	details    JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS audit_logs_run_idx ON audit_logs (run_id, created_at);
`

// EnsureSchema creates the runner tables if they do not exist. Intended for
// local development and tests only.
func EnsureSchema(ctx context.Context, pool DBPool) error {
	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
