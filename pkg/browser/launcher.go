package browser

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/scout/pkg/logging"
)

// Launcher owns the Playwright driver process and creates sessions
// from it. One Launcher serves many sequential sessions.
type Launcher struct {
	mu          sync.Mutex
	playwright  *playwright.Playwright
	initialized bool
	log         *logging.Logger
}

// NewLauncher creates a launcher. Initialize must be called before
// the first Launch.
func NewLauncher(log *logging.Logger) *Launcher {
	return &Launcher{log: log}
}

// Initialize installs browser binaries if needed and starts the
// Playwright driver. Safe to call more than once.
func (l *Launcher) Initialize() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.initialized {
		return nil
	}

	// Driver output goes nowhere useful in a headless tool run
	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	l.playwright = pw
	l.initialized = true
	return nil
}

// Launch starts a browser, an isolated recording context, and one page,
// and wires the passive page listeners before any navigation happens.
// The caller must Close the session regardless of what happens next.
func (l *Launcher) Launch(opts SessionOptions) (*Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.initialized {
		return nil, fmt.Errorf("launcher not initialized")
	}

	if opts.Engine == "" {
		opts.Engine = EngineChromium
	}
	if opts.NavigationTimeout == 0 {
		opts.NavigationTimeout = DefaultNavigationTimeout
	}

	var browserType playwright.BrowserType
	switch opts.Engine {
	case EngineChromium:
		browserType = l.playwright.Chromium
	case EngineFirefox:
		browserType = l.playwright.Firefox
	case EngineWebkit:
		browserType = l.playwright.WebKit
	default:
		return nil, fmt.Errorf("unsupported browser engine: %s", opts.Engine)
	}

	browser, err := browserType.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch %s: %w", opts.Engine, err)
	}

	contextOpts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  DefaultViewportWidth,
			Height: DefaultViewportHeight,
		},
	}
	if opts.ArtifactDir != "" {
		contextOpts.RecordVideo = &playwright.RecordVideo{
			Dir: opts.ArtifactDir,
			Size: &playwright.Size{
				Width:  DefaultViewportWidth,
				Height: DefaultViewportHeight,
			},
		}
	}
	context, err := browser.NewContext(contextOpts)
	if err != nil {
		browser.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := context.NewPage()
	if err != nil {
		context.Close()
		browser.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(float64(opts.NavigationTimeout.Milliseconds()))

	session := &Session{
		Browser:     browser,
		Context:     context,
		Page:        page,
		Engine:      opts.Engine,
		Headless:    opts.Headless,
		ArtifactDir: opts.ArtifactDir,
		CreatedAt:   time.Now(),
		events:      opts.Events,
		log:         l.log,
		navTout:     opts.NavigationTimeout,
	}
	session.wireListeners()
	return session, nil
}

// Shutdown stops the Playwright driver. Sessions must be closed first.
func (l *Launcher) Shutdown() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.initialized || l.playwright == nil {
		return nil
	}
	if err := l.playwright.Stop(); err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	l.initialized = false
	return nil
}

// wireListeners registers the passive page observers: console output,
// uncaught page errors, failed requests, and 403 responses from known
// challenge domains. All of them only emit events; none drive the page.
func (s *Session) wireListeners() {
	s.Page.OnConsole(func(msg playwright.ConsoleMessage) {
		level := LevelInfo
		if msg.Type() == "error" {
			level = LevelError
		}
		s.emit(level, fmt.Sprintf("console[%s]: %s", msg.Type(), msg.Text()), nil)
	})

	s.Page.OnPageError(func(err error) {
		s.emit(LevelError, fmt.Sprintf("page error: %v", err), nil)
	})

	s.Page.OnRequestFailed(func(req playwright.Request) {
		s.emit(LevelWarning, fmt.Sprintf("request failed: %s", req.URL()), map[string]any{
			"failure": req.Failure(),
		})
	})

	s.Page.OnResponse(func(resp playwright.Response) {
		if resp.Status() != 403 || !IsChallengeURL(resp.URL()) {
			return
		}
		s.TripChallenge()
		s.emit(LevelWarning, fmt.Sprintf("403 from challenge domain: %s", resp.URL()), map[string]any{
			"status": resp.Status(),
		})
	})
}
