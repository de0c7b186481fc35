package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/entrhq/scout/pkg/logging"
)

// InferenceTemperature is the default for selector/plan inference calls.
const InferenceTemperature = 0.2

const selectorSystemPrompt = `You are a web automation assistant. Given a UI inventory and a DOM text sample from a web page, reply with a JSON object of the form {"selectors": ["css-selector", ...]} containing CSS selectors relevant to the stated task. Reply with JSON only.`

const planSystemPrompt = `You are a web automation assistant. Given a target data type, a UI inventory, and a DOM text sample from a web page, propose an extraction plan as a JSON object of the form {"target": string, "fields": [string], "primarySelectors": [string], "fallbackSelectors": [string], "notes": string}. Reply with JSON only.`

// ExtractionPlan is an LLM-proposed strategy for pulling structured data
// from a page. Any malformed field degrades to its zero value.
type ExtractionPlan struct {
	Target            string   `json:"target"`
	Fields            []string `json:"fields"`
	PrimarySelectors  []string `json:"primarySelectors"`
	FallbackSelectors []string `json:"fallbackSelectors"`
	Notes             string   `json:"notes"`
}

// PlanRequest carries the page context for plan inference.
type PlanRequest struct {
	Target        string `json:"target"`
	DOMTextSample string `json:"domTextSample"`
	UIInventory   any    `json:"uiInventory"`
}

// Inference calls the chat provider to infer CSS selectors or extraction
// plans from page context. Every entry point is advisory: network and
// parse failures degrade to an empty result with a warning log, never an
// error the caller must handle.
type Inference struct {
	provider        Provider
	log             *logging.Logger
	maxPromptTokens int
	temperature     float64
}

// InferenceOption customizes an Inference client.
type InferenceOption func(*Inference)

// WithTemperature overrides the sampling temperature for inference calls.
func WithTemperature(temperature float64) InferenceOption {
	return func(c *Inference) {
		c.temperature = temperature
	}
}

// NewInference creates an inference client. maxPromptTokens bounds the DOM
// sample included in each request; 0 disables the bound.
func NewInference(provider Provider, log *logging.Logger, maxPromptTokens int, opts ...InferenceOption) *Inference {
	c := &Inference{
		provider:        provider,
		log:             log,
		maxPromptTokens: maxPromptTokens,
		temperature:     InferenceTemperature,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// InferSelectors asks the model for CSS selectors relevant to task.
// Returns nil on any failure; non-string entries in the reply are
// filtered out.
func (c *Inference) InferSelectors(ctx context.Context, inventory any, domSample, task string) []string {
	payload := map[string]any{
		"task":        task,
		"domSample":   TruncateToTokens(domSample, c.maxPromptTokens),
		"uiInventory": inventory,
	}

	content, err := c.call(ctx, selectorSystemPrompt, payload)
	if err != nil {
		c.log.Warnf("selector inference failed: %v", err)
		return nil
	}

	var parsed struct {
		Selectors []any `json:"selectors"`
	}
	if err := ExtractJSONObject(content, &parsed); err != nil {
		c.log.Warnf("selector inference returned unparseable content: %v", err)
		return nil
	}

	selectors := make([]string, 0, len(parsed.Selectors))
	for _, s := range parsed.Selectors {
		if str, ok := s.(string); ok && str != "" {
			selectors = append(selectors, str)
		}
	}
	return selectors
}

// BuildExtractionPlan asks the model for a structured extraction plan.
// Returns nil on any failure.
func (c *Inference) BuildExtractionPlan(ctx context.Context, req PlanRequest) *ExtractionPlan {
	req.DOMTextSample = TruncateToTokens(req.DOMTextSample, c.maxPromptTokens)

	content, err := c.call(ctx, planSystemPrompt, req)
	if err != nil {
		c.log.Warnf("extraction plan inference failed: %v", err)
		return nil
	}

	plan := &ExtractionPlan{}
	if err := ExtractJSONObject(content, plan); err != nil {
		c.log.Warnf("extraction plan returned unparseable content: %v", err)
		return nil
	}
	return plan
}

// call serializes the context payload as the user message. The payload
// crosses the provider boundary as a value — inference never sees host
// state beyond what is serialized here.
func (c *Inference) call(ctx context.Context, systemPrompt string, payload any) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode inference payload: %w", err)
	}

	messages := []Message{
		NewSystemMessage(systemPrompt),
		NewUserMessage(string(encoded)),
	}

	return c.provider.Complete(ctx, messages, Options{Temperature: c.temperature})
}
