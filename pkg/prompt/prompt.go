// Package prompt extracts structured intent from free-text agent prompts:
// a target URL, login credentials, and an extraction request. Matching is
// best-effort and conservative — when a prompt is ambiguous the parsers
// return nil rather than guess.
package prompt

import (
	"regexp"
	"strconv"
	"strings"
)

// ExtractionType classifies what an extraction request is after.
type ExtractionType string

const (
	ExtractProductNames ExtractionType = "product_names"
	ExtractEmails       ExtractionType = "emails"
)

// Credentials holds login credentials parsed from a prompt. Either Email or
// Username is set alongside Password; partial credentials are never
// returned.
type Credentials struct {
	Email    string
	Username string
	Password string
}

// ExtractionRequest describes what to extract and, optionally, how many
// items were requested.
type ExtractionRequest struct {
	Type  ExtractionType
	Count int // 0 means unspecified
}

var (
	urlRe        = regexp.MustCompile(`https?://[^\s"'<>]+`)
	bareDomainRe = regexp.MustCompile(`\b([a-zA-Z0-9][a-zA-Z0-9-]*\.)+(com|org|net|io|dev|pl|se|co|shop|store)\b[^\s"'<>]*`)

	emailRe    = regexp.MustCompile(`(?i)\b[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}\b`)
	passwordRe = regexp.MustCompile(`(?i)(?:password|pass|pwd)(?:\s+is)?\s*[:=]?\s*(\S+)`)
	usernameRe = regexp.MustCompile(`(?i)(?:username|user|login)(?:\s+is)?\s*[:=]?\s*(\S+)`)

	extractVerbRe = regexp.MustCompile(`(?i)\b(extract|collect|find|list|get)\b`)
	countRe       = regexp.MustCompile(`(?i)\b(\d+)\s+(products|emails)\b`)
)

// ExtractTargetURL returns the first URL-looking token in the prompt. Bare
// domains are promoted to https. Returns "" when nothing resembles a URL;
// the caller decides the fallback (typically about:blank).
func ExtractTargetURL(text string) string {
	if m := urlRe.FindString(text); m != "" {
		return strings.TrimRight(m, ".,;)")
	}

	if m := bareDomainRe.FindString(text); m != "" {
		// Skip emails masquerading as domains
		if !strings.Contains(text, "@"+m) {
			return "https://" + strings.TrimRight(m, ".,;)")
		}
	}

	if strings.Contains(strings.ToLower(text), "saucedemo") {
		return "https://www.saucedemo.com"
	}

	return ""
}

// ParseCredentials extracts login credentials. A password-like token is
// required along with an email-like or username-like token; otherwise nil
// is returned and no login is attempted.
func ParseCredentials(text string) *Credentials {
	pw := passwordRe.FindStringSubmatch(text)
	if pw == nil {
		return nil
	}
	password := strings.Trim(pw[1], `"',`)
	if password == "" {
		return nil
	}

	creds := &Credentials{Password: password}

	if email := emailRe.FindString(text); email != "" {
		creds.Email = email
		return creds
	}

	if user := usernameRe.FindStringSubmatch(text); user != nil {
		username := strings.Trim(user[1], `"',`)
		if isUsernameToken(username) && !strings.EqualFold(username, password) {
			creds.Username = username
			return creds
		}
	}

	return nil
}

// isUsernameToken filters out filler words the username regex can capture
// from phrases like "login with password x".
func isUsernameToken(s string) bool {
	if s == "" {
		return false
	}
	switch strings.ToLower(s) {
	case "with", "using", "to", "into", "in", "as", "and", "the", "is",
		"password", "pass", "pwd", "form", "page":
		return false
	}
	return true
}

// ParseExtractionRequest classifies whether the prompt asks for data
// extraction and what kind. An explicit "task type: web_task" tag
// suppresses extraction even when extraction verbs appear. Without either
// an explicit "task type: extract_info" tag or an extraction verb, nil is
// returned. Ambiguous free text (no product/email keyword) only defaults
// to emails when the explicit tag was present.
func ParseExtractionRequest(text string) *ExtractionRequest {
	lower := strings.ToLower(text)

	if strings.Contains(lower, "task type: web_task") {
		return nil
	}

	taggedExtract := strings.Contains(lower, "task type: extract_info")
	if !taggedExtract && !extractVerbRe.MatchString(text) {
		return nil
	}

	count := 0
	if m := countRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			count = n
		}
	}

	switch {
	case strings.Contains(lower, "email"):
		return &ExtractionRequest{Type: ExtractEmails, Count: count}
	case strings.Contains(lower, "product"):
		return &ExtractionRequest{Type: ExtractProductNames, Count: count}
	case taggedExtract:
		// Tagged but keyword-free prompts default to emails. Preserved
		// for planner compatibility.
		return &ExtractionRequest{Type: ExtractEmails, Count: count}
	default:
		return nil
	}
}
