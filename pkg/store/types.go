package store

import (
	"time"
)

// LogLevel classifies a browser log entry.
type LogLevel string

const (
	LevelInfo    LogLevel = "info"
	LevelWarning LogLevel = "warning"
	LevelError   LogLevel = "error"
)

// Run identifies one agent execution. Runs are created by the external
// planner before the tool is invoked; the runner only attaches a recording
// path on teardown.
type Run struct {
	ID            string
	Model         string
	Engine        string
	Headless      bool
	Prompt        string
	RecordingPath string
	CreatedAt     time.Time
}

// LogEntry is one structured browser event. Entries are append-only and
// ordered by creation time; they are the source of truth for what happened
// during a run, independent of whether the invocation succeeded.
type LogEntry struct {
	RunID     string
	StepID    string // optional correlation key owned by the planner
	Level     LogLevel
	Message   string
	Metadata  map[string]any
	CreatedAt time.Time
}

// Snapshot is a point-in-time capture of page state. One row per capture,
// append-only; "latest snapshot" is derived by creation time, never stored
// as a pointer.
type Snapshot struct {
	ID             string
	RunID          string
	StepID         string
	URL            string
	Title          string
	DOMHTML        string
	DOMText        string
	ScreenshotData string // base64 data URL
	ScreenshotPath string // on-disk path under the run artifact directory
	ViewportWidth  int
	ViewportHeight int
	MouseX         *int
	MouseY         *int
	CreatedAt      time.Time
}

// Audit is a coarser, semantically richer record than LogEntry: extraction
// results, inference outcomes, UI inventory captures. Same append-only
// discipline.
type Audit struct {
	RunID     string
	StepID    string
	Kind      string
	Message   string
	Details   map[string]any
	CreatedAt time.Time
}

// Audit kinds written by the runner.
const (
	AuditExtraction  = "extraction"
	AuditInference   = "inference"
	AuditUIInventory = "ui_inventory"
	AuditLogin       = "login"
)
