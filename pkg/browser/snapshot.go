package browser

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/playwright-community/playwright-go"
)

var labelSanitizeRe = regexp.MustCompile(`[^a-z0-9._-]+`)

// sanitizeLabel turns a free-text snapshot label into a safe filename
// fragment.
func sanitizeLabel(label string) string {
	clean := labelSanitizeRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(label)), "-")
	clean = strings.Trim(clean, "-")
	if clean == "" {
		clean = "snapshot"
	}
	if len(clean) > 80 {
		clean = clean[:80]
	}
	return clean
}

// CaptureSnapshot reads the page's full HTML, visible body text, title
// and URL, and takes a full-page screenshot. The screenshot is encoded
// as a data URL and, when the session has an artifact directory, also
// written to disk under a filename derived from label.
func (s *Session) CaptureSnapshot(label string) (*Capture, error) {
	html, err := s.Page.Content()
	if err != nil {
		return nil, fmt.Errorf("failed to read page content: %w", err)
	}

	text, err := s.BodyText()
	if err != nil {
		// A page without readable body text is still worth capturing
		text = ""
	}

	title, err := s.Page.Title()
	if err != nil {
		title = ""
	}

	capture := &Capture{
		URL:            s.Page.URL(),
		Title:          title,
		DOMHTML:        html,
		DOMText:        text,
		ViewportWidth:  DefaultViewportWidth,
		ViewportHeight: DefaultViewportHeight,
	}

	screenshotOpts := playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
	}
	if s.ArtifactDir != "" {
		capture.ScreenshotPath = filepath.Join(s.ArtifactDir, sanitizeLabel(label)+".png")
		screenshotOpts.Path = playwright.String(capture.ScreenshotPath)
	}

	shot, err := s.Page.Screenshot(screenshotOpts)
	if err != nil {
		// Screenshot failure downgrades the capture, it does not void it
		if s.log != nil {
			s.log.Warnf("screenshot failed for %q: %v", label, err)
		}
		capture.ScreenshotPath = ""
		return capture, nil
	}
	capture.ScreenshotData = "data:image/png;base64," + base64.StdEncoding.EncodeToString(shot)
	return capture, nil
}
