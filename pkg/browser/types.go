package browser

import (
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/scout/pkg/logging"
)

// Engine identifies the browser engine driving a session.
type Engine string

const (
	EngineChromium Engine = "chromium"
	EngineFirefox  Engine = "firefox"
	EngineWebkit   Engine = "webkit"
)

// EventLevel classifies a session event for downstream logging.
type EventLevel string

const (
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// Event is a single notable occurrence observed on a live page:
// a console message, an uncaught script error, a failed request.
type Event struct {
	Level    EventLevel
	Message  string
	Metadata map[string]any
}

// EventSink receives session events as they happen. Sinks must not
// block; they are invoked from Playwright's event dispatch goroutine.
type EventSink func(Event)

// SessionOptions configures a new browser session.
type SessionOptions struct {
	// Engine selects the browser engine (defaults to chromium)
	Engine Engine

	// Headless controls whether the browser runs without a visible window
	Headless bool

	// ArtifactDir is the run-scoped directory receiving screenshots and
	// the session video recording. Empty disables video capture.
	ArtifactDir string

	// NavigationTimeout bounds page navigations (0 means default)
	NavigationTimeout time.Duration

	// Events receives page events; may be nil
	Events EventSink
}

// Session is one live browser session: a browser process, an isolated
// context with video recording, and a single page.
type Session struct {
	// Browser is the Playwright browser instance
	Browser playwright.Browser

	// Context is the isolated browser context
	Context playwright.BrowserContext

	// Page is the session's single page
	Page playwright.Page

	// Engine is the engine the session was launched with
	Engine Engine

	// Headless indicates if the browser runs without a visible window
	Headless bool

	// ArtifactDir is where screenshots and the recording land
	ArtifactDir string

	// CreatedAt is when the session was launched
	CreatedAt time.Time

	events  EventSink
	log     *logging.Logger
	navTout time.Duration

	mu               sync.Mutex
	challengeTripped bool

	closeOnce     sync.Once
	closeErr      error
	recordingPath string
}

// Capture is one point-in-time snapshot of the page.
type Capture struct {
	URL            string
	Title          string
	DOMHTML        string
	DOMText        string
	ScreenshotData string
	ScreenshotPath string
	ViewportWidth  int
	ViewportHeight int
}

// UIElement describes one visible element on the page.
type UIElement struct {
	Tag         string `json:"tag"`
	ID          string `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	Type        string `json:"type,omitempty"`
	Text        string `json:"text,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	AriaLabel   string `json:"ariaLabel,omitempty"`
	Role        string `json:"role,omitempty"`
	Selector    string `json:"selector"`
}

// UIInventory is a bounded structural description of the visible
// interactive surface of a page.
type UIInventory struct {
	URL       string          `json:"url"`
	Inputs    []UIElement     `json:"inputs"`
	Buttons   []UIElement     `json:"buttons"`
	Links     []UIElement     `json:"links"`
	Headings  []UIElement     `json:"headings"`
	Forms     []UIElement     `json:"forms"`
	Truncated map[string]bool `json:"truncated,omitempty"`
}

// Defaults for session geometry and timing.
const (
	DefaultViewportWidth     = 1280
	DefaultViewportHeight    = 720
	DefaultNavigationTimeout = 30 * time.Second

	// RecordingName is the fixed filename the session video is moved to
	// inside ArtifactDir on teardown.
	RecordingName = "session-recording.webm"
)

func (s *Session) emit(level EventLevel, message string, metadata map[string]any) {
	if s.events == nil {
		return
	}
	s.events(Event{Level: level, Message: message, Metadata: metadata})
}

// TripChallenge marks the session as blocked by an anti-bot challenge.
// It returns true only on the first trip; later calls are no-ops so
// callers can keep logging detections without re-triggering aborts.
func (s *Session) TripChallenge() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.challengeTripped {
		return false
	}
	s.challengeTripped = true
	return true
}

// ChallengeTripped reports whether an anti-bot challenge was detected
// at any point during the session.
func (s *Session) ChallengeTripped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.challengeTripped
}
