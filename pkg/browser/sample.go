package browser

import (
	"strings"

	"golang.org/x/net/html"
)

// DOMSample produces a bounded text sample of a capture for LLM
// consumption. Visible text is preferred; when the page exposed none,
// the sample is recovered from the raw HTML with markup noise removed.
func DOMSample(capture *Capture, maxLen int) string {
	text := strings.TrimSpace(capture.DOMText)
	if text == "" {
		text = visibleTextFromHTML(capture.DOMHTML)
	}
	if len(text) > maxLen {
		// Cut on a rune boundary
		runes := []rune(text)
		if len(runes) > maxLen {
			runes = runes[:maxLen]
		}
		text = string(runes)
	}
	return text
}

// visibleTextFromHTML extracts readable text from raw HTML, skipping
// script, style and other non-content subtrees.
func visibleTextFromHTML(rawHTML string) string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}

	var builder strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && isNoiseElement(strings.ToLower(n.Data)) {
			return
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if builder.Len() > 0 {
					builder.WriteString(" ")
				}
				builder.WriteString(text)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return builder.String()
}

func isNoiseElement(tagName string) bool {
	switch tagName {
	case "script", "style", "noscript", "template", "svg", "iframe", "head":
		return true
	}
	return false
}
