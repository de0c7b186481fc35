package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ExtractJSONObject pulls the first balanced {...} block out of text and
// unmarshals it into v. Model replies frequently wrap the object in prose
// or markdown fences; malformed JSON is run through jsonrepair before
// giving up.
func ExtractJSONObject(text string, v any) error {
	block := firstBalancedObject(text)
	if block == "" {
		return fmt.Errorf("no JSON object found in response")
	}

	if err := json.Unmarshal([]byte(block), v); err == nil {
		return nil
	}

	repaired, err := jsonrepair.JSONRepair(block)
	if err != nil {
		return fmt.Errorf("failed to repair JSON object: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("failed to parse JSON object: %w", err)
	}
	return nil
}

// firstBalancedObject scans for the first top-level balanced brace block,
// ignoring braces inside string literals.
func firstBalancedObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}

	// Unbalanced: return the tail and let jsonrepair try to close it
	return text[start:]
}
