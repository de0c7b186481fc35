package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/scout/pkg/logging"
)

// fakeProvider returns a canned reply or error and records the last call.
type fakeProvider struct {
	reply    string
	err      error
	messages []Message
	opts     Options
}

func (f *fakeProvider) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	f.messages = messages
	f.opts = opts
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func newTestInference(t *testing.T, provider Provider) *Inference {
	t.Helper()
	log, _ := logging.NewLogger("llm-test")
	t.Cleanup(func() { log.Close() })
	return NewInference(provider, log, 2048)
}

func TestInferSelectors(t *testing.T) {
	provider := &fakeProvider{reply: `Here you go: {"selectors": [".product h2", 42, "", ".card .title"]}`}
	inf := newTestInference(t, provider)

	selectors := inf.InferSelectors(context.Background(), map[string]any{"buttons": []string{}}, "<div>sample</div>", "Extract product names from this page.")

	// Non-string and empty entries filtered out
	assert.Equal(t, []string{".product h2", ".card .title"}, selectors)

	// Calls use the default inference temperature unless overridden
	assert.Equal(t, InferenceTemperature, provider.opts.Temperature)
	require.Len(t, provider.messages, 2)
	assert.Equal(t, RoleSystem, provider.messages[0].Role)
	assert.Contains(t, provider.messages[1].Content, "Extract product names from this page.")
}

func TestWithTemperature(t *testing.T) {
	provider := &fakeProvider{reply: `{"selectors": [".a"]}`}
	inf := NewInference(provider, nil, 0, WithTemperature(0.7))

	inf.InferSelectors(context.Background(), nil, "", "task")
	assert.Equal(t, 0.7, provider.opts.Temperature)
}

func TestInferSelectorsProviderError(t *testing.T) {
	provider := &fakeProvider{err: errors.New("connection refused")}
	inf := newTestInference(t, provider)

	selectors := inf.InferSelectors(context.Background(), nil, "", "task")
	assert.Nil(t, selectors)
}

func TestInferSelectorsMalformedReply(t *testing.T) {
	provider := &fakeProvider{reply: "I'm sorry, I can't help with that."}
	inf := newTestInference(t, provider)

	selectors := inf.InferSelectors(context.Background(), nil, "", "task")
	assert.Nil(t, selectors)
}

func TestBuildExtractionPlan(t *testing.T) {
	provider := &fakeProvider{reply: `{"target": "product_names", "fields": ["name"], "primarySelectors": [".product .name"], "fallbackSelectors": ["h2"], "notes": "grid layout"}`}
	inf := newTestInference(t, provider)

	plan := inf.BuildExtractionPlan(context.Background(), PlanRequest{
		Target:        "product_names",
		DOMTextSample: "Widget A\nWidget B",
	})

	require.NotNil(t, plan)
	assert.Equal(t, "product_names", plan.Target)
	assert.Equal(t, []string{".product .name"}, plan.PrimarySelectors)
	assert.Equal(t, []string{"h2"}, plan.FallbackSelectors)
	assert.Equal(t, "grid layout", plan.Notes)
}

func TestBuildExtractionPlanDegrades(t *testing.T) {
	t.Run("provider error", func(t *testing.T) {
		inf := newTestInference(t, &fakeProvider{err: errors.New("timeout")})
		assert.Nil(t, inf.BuildExtractionPlan(context.Background(), PlanRequest{Target: "emails"}))
	})

	t.Run("no JSON in reply", func(t *testing.T) {
		inf := newTestInference(t, &fakeProvider{reply: "no structured answer"})
		assert.Nil(t, inf.BuildExtractionPlan(context.Background(), PlanRequest{Target: "emails"}))
	})

	t.Run("partial object still usable", func(t *testing.T) {
		inf := newTestInference(t, &fakeProvider{reply: `{"primarySelectors": [".x"]}`})
		plan := inf.BuildExtractionPlan(context.Background(), PlanRequest{Target: "emails"})
		require.NotNil(t, plan)
		assert.Equal(t, []string{".x"}, plan.PrimarySelectors)
		assert.Empty(t, plan.FallbackSelectors)
	})
}

func TestTruncateToTokens(t *testing.T) {
	long := ""
	for i := 0; i < 5000; i++ {
		long += "word "
	}

	truncated := TruncateToTokens(long, 100)
	assert.Less(t, len(truncated), len(long))

	short := "short text"
	assert.Equal(t, short, TruncateToTokens(short, 100))
	assert.Equal(t, short, TruncateToTokens(short, 0))
}
