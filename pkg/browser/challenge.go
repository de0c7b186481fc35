package browser

import "strings"

// challengeMarkers are text fragments that show up in anti-bot
// interstitials. Matching any of them means the page is a challenge,
// not real content.
var challengeMarkers = []string{
	"cloudflare",
	"attention required",
	"cf-browser-verification",
	"challenge-platform",
	"cf-turnstile",
	"verify you are human",
	"checking your browser",
}

// challengeDomains are URL substrings of services that serve anti-bot
// or login walls. A 403 from one of these is a weak challenge signal.
var challengeDomains = []string{
	"cloudflare",
	"challenges.cloudflare.com",
	"hcaptcha.com",
	"recaptcha",
	"perimeterx",
	"/login",
}

// DetectChallenge reports whether text contains an anti-bot challenge
// marker. Case-insensitive; meant to run over both visible text and
// raw HTML.
func DetectChallenge(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, marker := range challengeMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// IsChallengeURL reports whether a URL belongs to a known anti-bot or
// login domain.
func IsChallengeURL(url string) bool {
	lower := strings.ToLower(url)
	for _, domain := range challengeDomains {
		if strings.Contains(lower, domain) {
			return true
		}
	}
	return false
}
