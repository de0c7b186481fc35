// Package runner executes one step of an agent's plan against a live
// browser session: launch, navigate, snapshot, detect challenges, then
// branch into extraction or login depending on the prompt. Every
// observation is persisted append-only so a run can be replayed from
// storage alone.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/scout/pkg/browser"
	"github.com/entrhq/scout/pkg/config"
	"github.com/entrhq/scout/pkg/extract"
	"github.com/entrhq/scout/pkg/llm"
	"github.com/entrhq/scout/pkg/logging"
	"github.com/entrhq/scout/pkg/prompt"
	"github.com/entrhq/scout/pkg/store"
)

// Fixed caller-visible failure messages. The planner branches on these,
// so they must stay stable.
const (
	MsgChallengeDetected      = "Cloudflare challenge detected; requires human."
	MsgLoginFormNotVisible    = "Login form not visible after attempting to open."
	MsgLoginFieldsNotDetected = "Login fields not detected on the page."
	MsgNoSubmitAction         = "No submit action performed for login."
	MsgNoEmails               = "No emails extracted."
	MsgNoProducts             = "No product names extracted."
)

// ToolInput is the contract consumed from the external planner.
type ToolInput struct {
	Prompt      string `json:"prompt,omitempty"`
	Browser     string `json:"browser,omitempty"`
	RunID       string `json:"runId"`
	RunHeadless bool   `json:"runHeadless,omitempty"`
	StepID      string `json:"stepId,omitempty"`
	StepLabel   string `json:"stepLabel,omitempty"`
}

// ToolOutput is returned to the planner on both success and the
// structured failure paths. It is never persisted directly; everything
// in it can be reconstructed from snapshots and logs.
type ToolOutput struct {
	URL            string   `json:"url"`
	DOMText        string   `json:"domText"`
	SnapshotID     string   `json:"snapshotId,omitempty"`
	LogCount       int64    `json:"logCount"`
	ExtractedItems []string `json:"extractedItems,omitempty"`
	ExtractedTotal int      `json:"extractedTotal"`
	ExtractionType string   `json:"extractionType,omitempty"`
}

// AgentToolResult is the envelope every invocation resolves to. The
// planner never sees a raw error from this component.
type AgentToolResult struct {
	OK      bool        `json:"ok"`
	Output  *ToolOutput `json:"output,omitempty"`
	Error   string      `json:"error,omitempty"`
	ErrorID string      `json:"errorId,omitempty"`
}

// AgentSession is the slice of a browser session the runner drives.
// *browser.Session satisfies it; tests substitute fakes.
type AgentSession interface {
	Navigate(url string) error
	Reload() error
	URL() string
	CaptureSnapshot(label string) (*browser.Capture, error)
	CollectInventory() (*browser.UIInventory, error)
	AutoScroll() error
	DismissConsent()
	SettleAfterNavigation(selector string, timeout time.Duration)
	WaitVisible(selector string, timeout time.Duration) bool
	HasVisible(selector string) bool
	FillFirstVisible(value string, selectors ...string) bool
	ClickFirstVisible(selectors ...string) bool
	PressFirstVisible(key string, selectors ...string) bool
	WaitForNavigationOrDelay(navTimeout, delay time.Duration)
	TripChallenge() bool
	ChallengeTripped() bool
	Close() (string, error)
}

// SessionLauncher creates sessions. The Playwright-backed implementation
// wraps browser.Launcher; tests inject spies.
type SessionLauncher interface {
	Launch(opts browser.SessionOptions) (AgentSession, error)
}

type playwrightLauncher struct {
	inner *browser.Launcher
}

// NewPlaywrightLauncher adapts a browser.Launcher to SessionLauncher.
func NewPlaywrightLauncher(inner *browser.Launcher) SessionLauncher {
	return &playwrightLauncher{inner: inner}
}

func (l *playwrightLauncher) Launch(opts browser.SessionOptions) (AgentSession, error) {
	session, err := l.inner.Launch(opts)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Runner executes tool and control invocations. One Runner serves many
// sequential invocations; each invocation gets its own session.
type Runner struct {
	store     store.Repository
	launcher  SessionLauncher
	inference *llm.Inference
	cfg       *config.Config
	log       *logging.Logger
}

// New creates a runner. Storage readiness was already verified when the
// store was constructed.
func New(repo store.Repository, launcher SessionLauncher, inference *llm.Inference, cfg *config.Config, log *logging.Logger) *Runner {
	return &Runner{
		store:     repo,
		launcher:  launcher,
		inference: inference,
		cfg:       cfg,
		log:       log,
	}
}

// Run executes one tool invocation end to end. The session is torn
// down exactly once on every path, and the returned output references
// the persisted state (latest snapshot, log count) rather than
// anything held across the teardown boundary.
func (r *Runner) Run(ctx context.Context, input ToolInput) AgentToolResult {
	if input.RunID == "" {
		return AgentToolResult{OK: false, Error: "runId is required"}
	}

	log := r.log.WithRun(input.RunID)
	rec := &recorder{store: r.store, log: log, runID: input.RunID, stepID: input.StepID}

	artifactDir := filepath.Join(r.cfg.Artifacts.Dir, input.RunID)
	if err := os.MkdirAll(artifactDir, 0o755); err != nil {
		return r.unexpected(ctx, rec, fmt.Errorf("could not create artifact directory: %w", err))
	}

	engine := browser.Engine(input.Browser)
	if engine == "" {
		engine = browser.Engine(r.cfg.Browser.Engine)
	}

	session, err := r.launcher.Launch(browser.SessionOptions{
		Engine:            engine,
		Headless:          input.RunHeadless,
		ArtifactDir:       artifactDir,
		NavigationTimeout: time.Duration(r.cfg.Browser.NavigationTimeoutMs) * time.Millisecond,
		Events:            rec.sink(ctx),
	})
	if err != nil {
		return r.unexpected(ctx, rec, fmt.Errorf("session launch failed: %w", err))
	}
	defer session.Close()

	result := r.execute(ctx, session, rec, input)

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

// execute drives the branch logic inside a live session. It never
// closes the session; Run owns teardown.
func (r *Runner) execute(ctx context.Context, session AgentSession, rec *recorder, input ToolInput) AgentToolResult {
	target := prompt.ExtractTargetURL(input.Prompt)
	if target == "" {
		target = "about:blank"
	}

	rec.logEvent(ctx, store.LevelInfo, fmt.Sprintf("navigating to %s", target), map[string]any{
		"stepLabel": input.StepLabel,
	})
	if err := session.Navigate(target); err != nil {
		return r.unexpected(ctx, rec, err)
	}

	label := input.StepLabel
	if label == "" {
		label = "after-navigation"
	}
	capture, inventory, err := r.capturePage(ctx, session, rec, label)
	if err != nil {
		return r.unexpected(ctx, rec, err)
	}

	if r.challenged(ctx, session, rec, capture) {
		return AgentToolResult{
			OK:     false,
			Error:  MsgChallengeDetected,
			Output: &ToolOutput{URL: capture.URL, DOMText: capture.DOMText},
		}
	}

	if request := prompt.ParseExtractionRequest(input.Prompt); request != nil {
		return r.runExtraction(ctx, session, rec, request, capture, inventory)
	}
	if creds := prompt.ParseCredentials(input.Prompt); creds != nil {
		return r.runLogin(ctx, session, rec, creds)
	}

	return AgentToolResult{
		OK:     true,
		Output: &ToolOutput{URL: capture.URL, DOMText: capture.DOMText},
	}
}

// capturePage is the snapshot/inventory coupling: every persisted
// capture gets a matching structural inventory so extraction and
// selector inference always have both. Inventory failure degrades to
// nil; snapshot failure is a primary error.
func (r *Runner) capturePage(ctx context.Context, session AgentSession, rec *recorder, label string) (*browser.Capture, *browser.UIInventory, error) {
	capture, err := session.CaptureSnapshot(label)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot capture failed: %w", err)
	}

	if err := rec.persistSnapshot(ctx, capture); err != nil {
		rec.log.Warnf("could not persist snapshot %q: %v", label, err)
	}
	rec.logEvent(ctx, store.LevelInfo, fmt.Sprintf("captured snapshot %q", label), map[string]any{
		"url":        capture.URL,
		"htmlLength": len(capture.DOMHTML),
		"textLength": len(capture.DOMText),
		"screenshot": capture.ScreenshotPath,
	})

	inventory := tryAdvisory(rec.log, "ui inventory collection", func() (*browser.UIInventory, error) {
		return session.CollectInventory()
	})
	if inventory != nil {
		rec.audit(ctx, store.AuditUIInventory, fmt.Sprintf("ui inventory for %q", label), map[string]any{
			"inputs":   len(inventory.Inputs),
			"buttons":  len(inventory.Buttons),
			"links":    len(inventory.Links),
			"headings": len(inventory.Headings),
			"forms":    len(inventory.Forms),
		})
	}
	return capture, inventory, nil
}

// challenged runs the challenge detector over the latest capture and
// reports whether the session is blocked. Repeat detections keep
// logging but the flag only trips once.
func (r *Runner) challenged(ctx context.Context, session AgentSession, rec *recorder, capture *browser.Capture) bool {
	if browser.DetectChallenge(capture.DOMText) || browser.DetectChallenge(capture.DOMHTML) {
		first := session.TripChallenge()
		rec.logEvent(ctx, store.LevelWarning, "anti-bot challenge detected", map[string]any{
			"url":            capture.URL,
			"firstDetection": first,
		})
	}
	return session.ChallengeTripped()
}

// unexpected handles any failure outside the structured error paths:
// assign a correlation id, best-effort log it, and return it to the
// caller. The log write is itself guarded so a storage failure cannot
// mask the original error.
func (r *Runner) unexpected(ctx context.Context, rec *recorder, err error) AgentToolResult {
	errorID := uuid.New().String()
	rec.logEvent(ctx, store.LevelError, fmt.Sprintf("unexpected failure: %v", err), map[string]any{
		"errorId": errorID,
	})
	return AgentToolResult{OK: false, Error: err.Error(), ErrorID: errorID}
}

// assembleOutput fills snapshot id, log count and any missing page
// state from storage after teardown, so the caller can reference what
// was just captured without the runner holding state across Close.
func (r *Runner) assembleOutput(ctx context.Context, rec *recorder, result *AgentToolResult) {
	if result.Output == nil {
		return
	}
	snap := tryAdvisory(rec.log, "latest snapshot query", func() (*store.Snapshot, error) {
		return r.store.LatestSnapshot(ctx, rec.runID, rec.stepID)
	})
	if snap != nil {
		result.Output.SnapshotID = snap.ID
		if result.Output.URL == "" {
			result.Output.URL = snap.URL
		}
		if result.Output.DOMText == "" {
			result.Output.DOMText = snap.DOMText
		}
	}
	count, err := r.store.CountLogs(ctx, rec.runID)
	if err != nil {
		rec.log.Warnf("log count query failed: %v", err)
		return
	}
	result.Output.LogCount = count
}

// runExtraction handles the extraction branch for both entity types.
func (r *Runner) runExtraction(ctx context.Context, session AgentSession, rec *recorder, request *prompt.ExtractionRequest, capture *browser.Capture, inventory *browser.UIInventory) AgentToolResult {
	if request.Type == prompt.ExtractEmails {
		result := extract.ExtractEmails(capture.DOMText, request.Count)
		if result == nil {
			rec.audit(ctx, store.AuditExtraction, "no emails found in page text", nil)
			return AgentToolResult{
				OK:    false,
				Error: MsgNoEmails,
				Output: &ToolOutput{
					URL:            capture.URL,
					DOMText:        capture.DOMText,
					ExtractionType: string(prompt.ExtractEmails),
				},
			}
		}
		rec.audit(ctx, store.AuditExtraction, fmt.Sprintf("extracted %d emails", result.Total), map[string]any{
			"tier": result.Tier,
		})
		return extractionSuccess(capture, result)
	}

	state := &extract.PageState{
		Session:   session,
		Capture:   capture,
		Inventory: inventory,
	}
	// Recapture refreshes the shared state in place after a tier
	// mutated the page, and re-runs challenge detection like every
	// other snapshot does.
	state.Recapture = func(label string) error {
		newCapture, newInventory, err := r.capturePage(ctx, session, rec, label)
		if err != nil {
			return err
		}
		state.Capture = newCapture
		state.Inventory = newInventory
		if r.challenged(ctx, session, rec, newCapture) {
			return extract.ErrChallenged
		}
		return nil
	}

	engine := extract.NewEngine(r.inference, rec.log, func(tier string, count int) {
		kind := store.AuditExtraction
		if strings.HasPrefix(tier, "llm-") {
			kind = store.AuditInference
		}
		rec.audit(ctx, kind, fmt.Sprintf("tier %s yielded %d items", tier, count), nil)
	})
	result := engine.ExtractProducts(ctx, state, request.Count)

	if session.ChallengeTripped() {
		return AgentToolResult{
			OK:     false,
			Error:  MsgChallengeDetected,
			Output: &ToolOutput{URL: state.Capture.URL, DOMText: state.Capture.DOMText},
		}
	}
	if result == nil {
		rec.audit(ctx, store.AuditExtraction, "no product names found after all tiers", nil)
		return AgentToolResult{
			OK:    false,
			Error: MsgNoProducts,
			Output: &ToolOutput{
				URL:            state.Capture.URL,
				DOMText:        state.Capture.DOMText,
				ExtractionType: string(prompt.ExtractProductNames),
			},
		}
	}
	rec.audit(ctx, store.AuditExtraction, fmt.Sprintf("extracted %d product names via %s", result.Total, result.Tier), nil)
	return extractionSuccess(state.Capture, result)
}

func extractionSuccess(capture *browser.Capture, result *extract.Result) AgentToolResult {
	return AgentToolResult{
		OK: true,
		Output: &ToolOutput{
			URL:            capture.URL,
			DOMText:        capture.DOMText,
			ExtractedItems: result.Items,
			ExtractedTotal: result.Total,
			ExtractionType: string(result.Type),
		},
	}
}
