package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// getEncoding lazily initializes the cl100k_base tokenizer. Initialization
// can fail (the BPE ranks may need fetching); callers must handle nil.
func getEncoding() *tiktoken.Tiktoken {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})
	return encoding
}

// TruncateToTokens bounds text to at most maxTokens tokens. When the
// tokenizer is unavailable it falls back to an approximate character bound
// (4 chars per token).
func TruncateToTokens(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}

	if enc := getEncoding(); enc != nil {
		tokens := enc.Encode(text, nil, nil)
		if len(tokens) <= maxTokens {
			return text
		}
		return enc.Decode(tokens[:maxTokens])
	}

	maxChars := maxTokens * 4
	if len(text) <= maxChars {
		return text
	}

	// Cut on a rune boundary
	runes := []rune(text)
	if len(runes) > maxChars {
		runes = runes[:maxChars]
	}
	return string(runes)
}
