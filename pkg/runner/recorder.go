package runner

import (
	"context"

	"github.com/entrhq/scout/pkg/browser"
	"github.com/entrhq/scout/pkg/logging"
	"github.com/entrhq/scout/pkg/store"
)

// tryAdvisory runs an auxiliary enrichment step. Failures are logged
// at warning and swallowed, returning the zero value, so an advisory
// subsystem can never abort a primary browser action that already
// produced value.
func tryAdvisory[T any](log *logging.Logger, what string, fn func() (T, error)) T {
	value, err := fn()
	if err != nil {
		log.Warnf("%s failed: %v", what, err)
		var zero T
		return zero
	}
	return value
}

// recorder correlates everything one invocation persists: log entries,
// snapshots and audits, all keyed by run and optional step.
type recorder struct {
	store  store.Repository
	log    *logging.Logger
	runID  string
	stepID string
}

// logEvent appends one browser log entry. A storage failure is
// downgraded to a local warning; the append-only log is best-effort on
// the write side even though it is the source of truth on the read side.
func (r *recorder) logEvent(ctx context.Context, level store.LogLevel, message string, metadata map[string]any) {
	err := r.store.CreateLog(ctx, store.LogEntry{
		RunID:    r.runID,
		StepID:   r.stepID,
		Level:    level,
		Message:  message,
		Metadata: metadata,
	})
	if err != nil {
		r.log.Warnf("could not persist log entry %q: %v", message, err)
	}
}

// audit appends one coarse audit record.
func (r *recorder) audit(ctx context.Context, kind, message string, details map[string]any) {
	err := r.store.CreateAudit(ctx, store.Audit{
		RunID:   r.runID,
		StepID:  r.stepID,
		Kind:    kind,
		Message: message,
		Details: details,
	})
	if err != nil {
		r.log.Warnf("could not persist %s audit: %v", kind, err)
	}
}

// persistSnapshot writes one snapshot row from a capture.
func (r *recorder) persistSnapshot(ctx context.Context, capture *browser.Capture) error {
	_, err := r.store.CreateSnapshot(ctx, &store.Snapshot{
		RunID:          r.runID,
		StepID:         r.stepID,
		URL:            capture.URL,
		Title:          capture.Title,
		DOMHTML:        capture.DOMHTML,
		DOMText:        capture.DOMText,
		ScreenshotData: capture.ScreenshotData,
		ScreenshotPath: capture.ScreenshotPath,
		ViewportWidth:  capture.ViewportWidth,
		ViewportHeight: capture.ViewportHeight,
	})
	return err
}

// sink adapts session events into persisted log entries.
func (r *recorder) sink(ctx context.Context) browser.EventSink {
	return func(event browser.Event) {
		level := store.LevelInfo
		switch event.Level {
		case browser.LevelWarning:
			level = store.LevelWarning
		case browser.LevelError:
			level = store.LevelError
		}
		r.logEvent(ctx, level, event.Message, event.Metadata)
	}
}
