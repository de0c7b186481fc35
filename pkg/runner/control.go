package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/entrhq/scout/pkg/browser"
	"github.com/entrhq/scout/pkg/store"
)

// Control actions.
const (
	ActionGoto     = "goto"
	ActionReload   = "reload"
	ActionSnapshot = "snapshot"
)

// ControlInput is the sibling entry point for ad-hoc actions outside
// the main tool flow.
type ControlInput struct {
	RunID     string `json:"runId"`
	Action    string `json:"action"`
	URL       string `json:"url,omitempty"`
	StepID    string `json:"stepId,omitempty"`
	StepLabel string `json:"stepLabel,omitempty"`
}

// RunControl executes one control action: goto navigates to a URL,
// reload and snapshot revisit the run's last captured page. Every
// action ends with a persisted snapshot, mirroring the main flow.
func (r *Runner) RunControl(ctx context.Context, input ControlInput) AgentToolResult {
	if input.RunID == "" {
		return AgentToolResult{OK: false, Error: "runId is required"}
	}

	target := input.URL
	switch input.Action {
	case ActionGoto:
		if target == "" {
			return AgentToolResult{OK: false, Error: "url is required for goto"}
		}
	case ActionReload, ActionSnapshot:
		if target == "" {
			snap, err := r.store.LatestSnapshot(ctx, input.RunID, "")
			if err != nil || snap == nil {
				return AgentToolResult{OK: false, Error: fmt.Sprintf("no page to %s for this run", input.Action)}
			}
			target = snap.URL
		}
	default:
		return AgentToolResult{OK: false, Error: fmt.Sprintf("unsupported action: %s", input.Action)}
	}

	log := r.log.WithRun(input.RunID)
	rec := &recorder{store: r.store, log: log, runID: input.RunID, stepID: input.StepID}

	artifactDir := filepath.Join(r.cfg.Artifacts.Dir, input.RunID)
	if err := os.MkdirAll(artifactDir, 0o755); err != nil {
		return r.unexpected(ctx, rec, fmt.Errorf("could not create artifact directory: %w", err))
	}

	session, err := r.launcher.Launch(browser.SessionOptions{
		Engine:            browser.Engine(r.cfg.Browser.Engine),
		Headless:          r.cfg.Browser.Headless,
		ArtifactDir:       artifactDir,
		NavigationTimeout: time.Duration(r.cfg.Browser.NavigationTimeoutMs) * time.Millisecond,
		Events:            rec.sink(ctx),
	})
	if err != nil {
		return r.unexpected(ctx, rec, fmt.Errorf("session launch failed: %w", err))
	}
	defer session.Close()

	result := r.executeControl(ctx, session, rec, input, target)

	recordingPath, closeErr := session.Close()
	if closeErr != nil {
		log.Warnf("session teardown reported: %v", closeErr)
	}
	if recordingPath != "" {
		if err := r.store.UpdateRunRecording(ctx, input.RunID, recordingPath); err != nil {
			log.Warnf("could not attach recording path to run: %v", err)
		}
	}

	r.assembleOutput(ctx, rec, &result)
	return result
}

func (r *Runner) executeControl(ctx context.Context, session AgentSession, rec *recorder, input ControlInput, target string) AgentToolResult {
	rec.logEvent(ctx, store.LevelInfo, fmt.Sprintf("control %s: %s", input.Action, target), map[string]any{
		"stepLabel": input.StepLabel,
	})
	if err := session.Navigate(target); err != nil {
		return r.unexpected(ctx, rec, err)
	}
	if input.Action == ActionReload {
		if err := session.Reload(); err != nil {
			return r.unexpected(ctx, rec, err)
		}
	}

	label := input.StepLabel
	if label == "" {
		label = "control-" + input.Action
	}
	capture, _, err := r.capturePage(ctx, session, rec, label)
	if err != nil {
		return r.unexpected(ctx, rec, err)
	}

	return AgentToolResult{
		OK:     true,
		Output: &ToolOutput{URL: capture.URL, DOMText: capture.DOMText},
	}
}
