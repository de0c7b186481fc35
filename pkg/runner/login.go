package runner

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/entrhq/scout/pkg/browser"
	"github.com/entrhq/scout/pkg/prompt"
	"github.com/entrhq/scout/pkg/store"
)

const (
	loginTriggerTimeout  = 10 * time.Second
	loginFallbackTimeout = 5 * time.Second
	postSubmitNavTimeout = 10 * time.Second
	postSubmitDelay      = 5 * time.Second

	passwordSelector = `input[type="password"], input[name*="pass" i]`
)

// loginTriggerTexts are localized labels of links and buttons that
// open a login form.
var loginTriggerTexts = []string{
	"log in", "login", "sign in",
	"zaloguj",      // Polish
	"anmelden",     // German
	"connexion",    // French
	"iniciar sesi", // Spanish
	"accedi",       // Italian
	"entrar",       // Portuguese
	"inloggen",     // Dutch
	"logga in",     // Swedish
}

var usernameSelectors = []string{
	`input[type="email"]`,
	`input[autocomplete="email"]`,
	`input[name*="email" i]`,
	`input[type="text"][name*="user" i]`,
	`input[name*="login" i]`,
	`input[type="text"]`,
}

var submitSelectors = []string{
	`button[type="submit"]`,
	`input[type="submit"]`,
	`button:has-text("Log in")`,
	`button:has-text("Sign in")`,
	`button:has-text("Continue")`,
}

// runLogin drives the login state machine: open the form, check for a
// challenge, fill credentials, submit, then snapshot the outcome. No
// success verification happens here; the planner judges the returned
// DOM text.
func (r *Runner) runLogin(ctx context.Context, session AgentSession, rec *recorder, creds *prompt.Credentials) AgentToolResult {
	if !r.ensureLoginFormVisible(ctx, session, rec) {
		rec.audit(ctx, store.AuditLogin, "login form not found", nil)
		return AgentToolResult{OK: false, Error: MsgLoginFormNotVisible}
	}

	formCapture, inventory, err := r.capturePage(ctx, session, rec, "login-form-visible")
	if err != nil {
		return r.unexpected(ctx, rec, err)
	}
	if r.challenged(ctx, session, rec, formCapture) {
		return AgentToolResult{
			OK:     false,
			Error:  MsgChallengeDetected,
			Output: &ToolOutput{URL: formCapture.URL, DOMText: formCapture.DOMText},
		}
	}

	// Candidate scoring is purely for audit; it never gates the flow
	if inventory != nil {
		candidates := scoreLoginCandidates(inventory)
		rec.audit(ctx, store.AuditLogin, fmt.Sprintf("scored %d login candidates", len(candidates)), map[string]any{
			"candidates": candidates,
		})
	}

	username := creds.Email
	if username == "" {
		username = creds.Username
	}
	usernameFilled := session.FillFirstVisible(username, usernameSelectors...)
	passwordFilled := session.FillFirstVisible(creds.Password, passwordSelector)
	if !usernameFilled && !passwordFilled {
		rec.audit(ctx, store.AuditLogin, "no login fields accepted input", nil)
		return AgentToolResult{OK: false, Error: MsgLoginFieldsNotDetected}
	}
	rec.logEvent(ctx, store.LevelInfo, "filled login form", map[string]any{
		"usernameFilled": usernameFilled,
		"passwordFilled": passwordFilled,
	})

	submitted := session.ClickFirstVisible(submitSelectors...)
	if !submitted {
		submitted = session.PressFirstVisible("Enter", passwordSelector)
	}
	if !submitted {
		rec.audit(ctx, store.AuditLogin, "form filled but not submitted", nil)
		return AgentToolResult{OK: false, Error: MsgNoSubmitAction}
	}
	rec.logEvent(ctx, store.LevelInfo, "submitted login form", nil)

	session.WaitForNavigationOrDelay(postSubmitNavTimeout, postSubmitDelay)

	postCapture, _, err := r.capturePage(ctx, session, rec, "after-login-attempt")
	if err != nil {
		return r.unexpected(ctx, rec, err)
	}
	if r.challenged(ctx, session, rec, postCapture) {
		return AgentToolResult{
			OK:     false,
			Error:  MsgChallengeDetected,
			Output: &ToolOutput{URL: postCapture.URL, DOMText: postCapture.DOMText},
		}
	}

	rec.audit(ctx, store.AuditLogin, "login attempt completed", map[string]any{"url": postCapture.URL})
	return AgentToolResult{
		OK:     true,
		Output: &ToolOutput{URL: postCapture.URL, DOMText: postCapture.DOMText},
	}
}

// ensureLoginFormVisible makes a password field visible: already there,
// via a localized login trigger, or by navigating to {origin}/login.
func (r *Runner) ensureLoginFormVisible(ctx context.Context, session AgentSession, rec *recorder) bool {
	if session.HasVisible(passwordSelector) {
		return true
	}

	var triggers []string
	for _, text := range loginTriggerTexts {
		triggers = append(triggers,
			fmt.Sprintf(`a:has-text(%q)`, text),
			fmt.Sprintf(`button:has-text(%q)`, text),
		)
	}
	if session.ClickFirstVisible(triggers...) {
		rec.logEvent(ctx, store.LevelInfo, "clicked login trigger", nil)
		if session.WaitVisible(passwordSelector, loginTriggerTimeout) {
			return true
		}
	}

	if origin := pageOrigin(session.URL()); origin != "" {
		loginURL := origin + "/login"
		rec.logEvent(ctx, store.LevelInfo, fmt.Sprintf("falling back to %s", loginURL), nil)
		if err := session.Navigate(loginURL); err == nil {
			if session.WaitVisible(passwordSelector, loginFallbackTimeout) {
				return true
			}
		}
	}

	return session.HasVisible(passwordSelector)
}

func pageOrigin(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host
}

// loginCandidate is one scored element from the login heuristics audit.
type loginCandidate struct {
	Selector string `json:"selector"`
	Kind     string `json:"kind"`
	Score    int    `json:"score"`
}

var loginVerbRe = regexp.MustCompile(`(?i)\b(log ?in|sign ?in|continue|submit|zaloguj|anmelden|entrar)\b`)

// scoreLoginCandidates ranks visible inputs and buttons by how likely
// they belong to a login form. Attribute type matches score highest,
// name and placeholder hints lower, and submit-like buttons by verb.
func scoreLoginCandidates(inventory *browser.UIInventory) []loginCandidate {
	var candidates []loginCandidate

	for _, input := range inventory.Inputs {
		score := 0
		switch input.Type {
		case "email", "password":
			score += 5
		}
		hints := strings.ToLower(input.Name + " " + input.Placeholder)
		if strings.Contains(hints, "pass") {
			score += 4
		}
		if strings.Contains(hints, "user") || strings.Contains(hints, "login") {
			score += 3
		}
		if score > 0 {
			candidates = append(candidates, loginCandidate{
				Selector: input.Selector,
				Kind:     "input",
				Score:    score,
			})
		}
	}

	for _, button := range inventory.Buttons {
		if loginVerbRe.MatchString(button.Text) {
			candidates = append(candidates, loginCandidate{
				Selector: button.Selector,
				Kind:     "button",
				Score:    5,
			})
		}
	}

	return candidates
}
