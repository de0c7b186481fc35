package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/scout/pkg/browser"
)

const loginPrompt = "log in to https://shop.example.com with email admin@example.com password hunter2"

func TestRunLogin_FormNotVisible(t *testing.T) {
	repo := newFakeRepo()
	session := &fakeSession{text: "welcome"}
	launcher := &fakeLauncher{session: session}
	r := newTestRunner(t, repo, launcher)

	result := r.Run(context.Background(), ToolInput{RunID: "r1", Prompt: loginPrompt})

	assert.False(t, result.OK)
	assert.Equal(t, MsgLoginFormNotVisible, result.Error)
	assert.Equal(t, 1, session.closes)
}

func TestRunLogin_FieldsNotDetected(t *testing.T) {
	repo := newFakeRepo()
	session := &fakeSession{text: "login page", hasPassword: true}
	launcher := &fakeLauncher{session: session}
	r := newTestRunner(t, repo, launcher)

	result := r.Run(context.Background(), ToolInput{RunID: "r1", Prompt: loginPrompt})

	assert.False(t, result.OK)
	assert.Equal(t, MsgLoginFieldsNotDetected, result.Error)
}

func TestRunLogin_NoSubmitAction(t *testing.T) {
	repo := newFakeRepo()
	session := &fakeSession{
		text:        "login page",
		hasPassword: true,
		fillUser:    true,
		fillPass:    true,
	}
	launcher := &fakeLauncher{session: session}
	r := newTestRunner(t, repo, launcher)

	result := r.Run(context.Background(), ToolInput{RunID: "r1", Prompt: loginPrompt})

	assert.False(t, result.OK)
	assert.Equal(t, MsgNoSubmitAction, result.Error)
}

func TestRunLogin_SubmitViaEnterFallback(t *testing.T) {
	repo := newFakeRepo()
	session := &fakeSession{
		text:        "dashboard",
		hasPassword: true,
		fillUser:    true,
		fillPass:    true,
		pressOK:     true,
	}
	launcher := &fakeLauncher{session: session}
	r := newTestRunner(t, repo, launcher)

	result := r.Run(context.Background(), ToolInput{RunID: "r1", Prompt: loginPrompt})

	require.True(t, result.OK, "error was: %s", result.Error)
	require.NotNil(t, result.Output)
	assert.Equal(t, "dashboard", result.Output.DOMText)
	// form-visible snapshot plus post-submit snapshot
	assert.Len(t, repo.snapshots, 3)
}

func TestRunLogin_PasswordOnlyFillStillSubmits(t *testing.T) {
	repo := newFakeRepo()
	session := &fakeSession{
		text:        "login page",
		hasPassword: true,
		fillPass:    true,
		clickOK:     true,
	}
	launcher := &fakeLauncher{session: session}
	r := newTestRunner(t, repo, launcher)

	result := r.Run(context.Background(), ToolInput{RunID: "r1", Prompt: loginPrompt})

	assert.True(t, result.OK, "one filled field is enough to proceed")
}

func TestPageOrigin(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{name: "https url", url: "https://shop.example.com/cart?x=1", expected: "https://shop.example.com"},
		{name: "http with port", url: "http://localhost:3000/admin", expected: "http://localhost:3000"},
		{name: "about blank", url: "about:blank", expected: ""},
		{name: "empty", url: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, pageOrigin(tt.url))
		})
	}
}

func TestScoreLoginCandidates(t *testing.T) {
	inventory := &browser.UIInventory{
		Inputs: []browser.UIElement{
			{Tag: "input", Type: "email", Selector: "#email"},
			{Tag: "input", Type: "password", Name: "password", Selector: "#pass"},
			{Tag: "input", Type: "text", Name: "username", Selector: "#user"},
			{Tag: "input", Type: "search", Name: "q", Selector: "#q"},
		},
		Buttons: []browser.UIElement{
			{Tag: "button", Text: "Sign in", Selector: "#submit"},
			{Tag: "button", Text: "Add to cart", Selector: "#cart"},
		},
	}

	candidates := scoreLoginCandidates(inventory)

	bySelector := make(map[string]loginCandidate)
	for _, c := range candidates {
		bySelector[c.Selector] = c
	}
	assert.Equal(t, 5, bySelector["#email"].Score)
	assert.Equal(t, 9, bySelector["#pass"].Score, "type match plus name hint")
	assert.Equal(t, 3, bySelector["#user"].Score)
	assert.Equal(t, 5, bySelector["#submit"].Score)
	assert.NotContains(t, bySelector, "#q")
	assert.NotContains(t, bySelector, "#cart")
}
