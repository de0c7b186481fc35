package browser

import (
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

// autoScrollScript walks the page down one viewport at a time with a
// short pause per step so lazy-loaded content gets a chance to mount,
// then returns to the top. Step count is bounded regardless of page
// height.
const autoScrollScript = `async (maxSteps) => {
	const step = window.innerHeight || 720;
	let position = 0;
	let steps = 0;
	while (position < document.body.scrollHeight && steps < maxSteps) {
		window.scrollBy(0, step);
		position += step;
		steps++;
		await new Promise((resolve) => setTimeout(resolve, 250));
	}
	window.scrollTo(0, 0);
	return steps;
}`

const maxScrollSteps = 12

// AutoScroll scrolls the full page height in bounded steps to trigger
// lazy-loaded content.
func (s *Session) AutoScroll() error {
	if _, err := s.Page.Evaluate(autoScrollScript, maxScrollSteps); err != nil {
		return fmt.Errorf("auto scroll failed: %w", err)
	}
	return nil
}

// consentSelectors match common cookie and consent banner accept
// buttons, including the text variants seen on European storefronts.
var consentSelectors = []string{
	"#onetrust-accept-btn-handler",
	"button#accept-cookies",
	`button:has-text("Accept all")`,
	`button:has-text("Accept")`,
	`button:has-text("Agree")`,
	`button:has-text("I agree")`,
	`button:has-text("Zgadzam się")`,
	`button:has-text("Akceptuję")`,
	`button:has-text("OK")`,
}

// DismissConsent clicks the first matching cookie banner button, if
// any. Best-effort; a page without a banner is the common case.
func (s *Session) DismissConsent() {
	for _, selector := range consentSelectors {
		err := s.Page.Click(selector, playwright.PageClickOptions{
			Timeout: playwright.Float(2000),
		})
		if err == nil {
			s.emit(LevelInfo, fmt.Sprintf("dismissed consent banner via %s", selector), nil)
			return
		}
	}
}

// SettleAfterNavigation waits briefly for dynamic listing pages to
// finish their first wave of rendering: either a matching selector
// appears or the wait times out.
func (s *Session) SettleAfterNavigation(selector string, timeout time.Duration) {
	if selector != "" && s.WaitVisible(selector, timeout) {
		return
	}
	_ = s.Page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}
