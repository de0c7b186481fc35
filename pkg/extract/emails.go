package extract

import (
	"regexp"
	"strings"

	"github.com/entrhq/scout/pkg/prompt"
)

var emailRe = regexp.MustCompile(`(?i)[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}`)

// ExtractEmails matches email addresses in the page's visible text.
// Single-tier: there is no fallback escalation for emails. Returns nil
// when the text contains none.
func ExtractEmails(text string, requestedCount int) *Result {
	matches := emailRe.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	var emails []string
	for _, match := range matches {
		key := strings.ToLower(match)
		if seen[key] {
			continue
		}
		seen[key] = true
		emails = append(emails, match)
	}

	return &Result{
		Items: capItems(emails, requestedCount),
		Total: len(emails),
		Type:  prompt.ExtractEmails,
		Tier:  "email-regex",
	}
}
