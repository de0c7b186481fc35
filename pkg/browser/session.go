package browser

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Navigate drives the page to url and waits for the load event.
func (s *Session) Navigate(url string) error {
	_, err := s.Page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   playwright.Float(float64(s.navTout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// Reload reloads the current page and waits for the load event.
func (s *Session) Reload() error {
	_, err := s.Page.Reload(playwright.PageReloadOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   playwright.Float(float64(s.navTout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("reload failed: %w", err)
	}
	return nil
}

// URL returns the page's current URL.
func (s *Session) URL() string {
	return s.Page.URL()
}

// BodyText returns the page's visible body text, or "" when the page
// has no body.
func (s *Session) BodyText() (string, error) {
	body, err := s.Page.QuerySelector("body")
	if err != nil {
		return "", fmt.Errorf("body query failed: %w", err)
	}
	if body == nil {
		return "", nil
	}
	text, err := body.InnerText()
	if err != nil {
		return "", fmt.Errorf("text extraction failed: %w", err)
	}
	return text, nil
}

// WaitVisible waits until an element matching selector becomes visible.
// Returns false on timeout instead of an error; callers treat absence
// as a normal outcome.
func (s *Session) WaitVisible(selector string, timeout time.Duration) bool {
	state := playwright.WaitForSelectorStateVisible
	handle, err := s.Page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		State:   state,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	return err == nil && handle != nil
}

// FirstVisible returns the first element matching selector that is
// currently visible, or nil when none is.
func (s *Session) FirstVisible(selector string) playwright.ElementHandle {
	handles, err := s.Page.QuerySelectorAll(selector)
	if err != nil {
		return nil
	}
	for _, handle := range handles {
		visible, err := handle.IsVisible()
		if err == nil && visible {
			return handle
		}
	}
	return nil
}

// FillFirstVisible fills the first visible element matching any of the
// selectors, tried in order. Returns false when nothing matched.
func (s *Session) FillFirstVisible(value string, selectors ...string) bool {
	for _, selector := range selectors {
		handle := s.FirstVisible(selector)
		if handle == nil {
			continue
		}
		if err := handle.Fill(value); err == nil {
			return true
		}
	}
	return false
}

// ClickFirstVisible clicks the first visible element matching any of
// the selectors, tried in order. Returns false when nothing matched.
func (s *Session) ClickFirstVisible(selectors ...string) bool {
	for _, selector := range selectors {
		handle := s.FirstVisible(selector)
		if handle == nil {
			continue
		}
		if err := handle.Click(); err == nil {
			return true
		}
	}
	return false
}

// PressFirstVisible sends a key press to the first visible element
// matching any of the selectors. Returns false when nothing matched.
func (s *Session) PressFirstVisible(key string, selectors ...string) bool {
	for _, selector := range selectors {
		handle := s.FirstVisible(selector)
		if handle == nil {
			continue
		}
		if err := handle.Press(key); err == nil {
			return true
		}
	}
	return false
}

// HasVisible reports whether any element matching selector is visible
// right now, without waiting.
func (s *Session) HasVisible(selector string) bool {
	return s.FirstVisible(selector) != nil
}

// WaitForNavigationOrDelay races a navigation event against a flat
// delay. Used after form submits where the page may or may not
// navigate; either outcome lets the flow continue.
func (s *Session) WaitForNavigationOrDelay(navTimeout, delay time.Duration) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Page.ExpectNavigation(func() error { return nil }, playwright.PageExpectNavigationOptions{
			Timeout: playwright.Float(float64(navTimeout.Milliseconds())),
		})
	}()
	select {
	case <-done:
	case <-time.After(delay):
	}
}

// Close tears the session down exactly once: page, then context, then
// browser. The context closes before the browser because the video
// file is only finalized on context close. After the context closes
// the recording is moved into ArtifactDir under RecordingName; a
// missing or unmovable video is tolerated and leaves the path empty.
func (s *Session) Close() (recordingPath string, err error) {
	s.closeOnce.Do(func() {
		var video playwright.Video
		if s.ArtifactDir != "" {
			video = s.Page.Video()
		}

		_ = s.Page.Close()
		if cerr := s.Context.Close(); cerr != nil {
			s.closeErr = fmt.Errorf("context close failed: %w", cerr)
		}

		if video != nil {
			s.recordingPath = s.relocateVideo(video)
		}

		if berr := s.Browser.Close(); berr != nil && s.closeErr == nil {
			s.closeErr = fmt.Errorf("browser close failed: %w", berr)
		}
	})
	return s.recordingPath, s.closeErr
}

// relocateVideo moves the context's auto-named recording to a fixed
// name inside ArtifactDir. Best-effort: any failure logs and returns "".
func (s *Session) relocateVideo(video playwright.Video) string {
	dest := filepath.Join(s.ArtifactDir, RecordingName)
	if err := video.SaveAs(dest); err != nil {
		if s.log != nil {
			s.log.Warnf("could not save session recording: %v", err)
		}
		return ""
	}
	if err := video.Delete(); err != nil && s.log != nil {
		s.log.Debugf("could not remove original recording: %v", err)
	}
	return dest
}
