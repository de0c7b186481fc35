// Package llm provides chat-completion access for selector and plan
// inference. Two providers are available: an Ollama-style endpoint
// (the default wire contract) and an OpenAI-compatible endpoint.
//
// Inference is strictly advisory — callers must treat every failure as
// "no answer" and move on to their next fallback.
package llm

import (
	"context"
)

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Message roles.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Options configures a single completion call.
type Options struct {
	// Temperature for sampling. Inference calls use 0.2.
	Temperature float64
}

// Provider defines the interface for chat-completion backends.
type Provider interface {
	// Complete sends messages and returns the assistant's reply content.
	Complete(ctx context.Context, messages []Message, opts Options) (string, error)
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}
