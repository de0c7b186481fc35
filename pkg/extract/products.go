package extract

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/entrhq/scout/pkg/browser"
	"github.com/entrhq/scout/pkg/llm"
)

// productContainerSelectors match elements that typically wrap one
// product on listing pages.
var productContainerSelectors = []string{
	"[data-product]",
	"[data-product-id]",
	"[data-product-name]",
	`[itemtype*="Product"]`,
	".product",
	".product-item",
	".product-card",
	".product-tile",
	"li.product",
	".grid-product",
	".card-product",
	".inventory_item",
}

// productNameSelectors locate the name inside a product container.
var productNameSelectors = []string{
	".product-name",
	".product-title",
	".product-item-name",
	".inventory_item_name",
	".name",
	".title",
	"h2",
	"h3",
	"h4",
	"a",
}

// listingKeywords mark links that likely lead to product listings.
var listingKeywords = []string{"shop", "store", "product", "collection", "catalog", "menu"}

const (
	maxListingLinks = 5
	listingSettle   = 5 * time.Second
	productTask     = "Extract product names from this page."
)

var whitespaceRe = regexp.MustCompile(`\s+`)

func cleanName(raw string) string {
	name := whitespaceRe.ReplaceAllString(strings.TrimSpace(raw), " ")
	if len(name) < 2 || len(name) > 200 {
		return ""
	}
	return name
}

func appendUnique(items []string, seen map[string]bool, raw string) []string {
	name := cleanName(raw)
	if name == "" {
		return items
	}
	key := strings.ToLower(name)
	if seen[key] {
		return items
	}
	seen[key] = true
	return append(items, name)
}

// collectBySelectors applies container selectors to captured HTML and
// resolves a name inside each match: name selectors first, then the
// data-product-name attribute, then an image alt text.
func collectBySelectors(rawHTML string, containers, names []string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}
	seen := make(map[string]bool)
	var items []string
	for _, container := range containers {
		doc.Find(container).Each(func(_ int, sel *goquery.Selection) {
			items = appendUnique(items, seen, resolveName(sel, names))
		})
	}
	return items
}

func resolveName(sel *goquery.Selection, names []string) string {
	for _, nameSel := range names {
		if text := strings.TrimSpace(sel.Find(nameSel).First().Text()); text != "" {
			return text
		}
	}
	if attr, ok := sel.Attr("data-product-name"); ok && strings.TrimSpace(attr) != "" {
		return attr
	}
	if alt, ok := sel.Find("img").First().Attr("alt"); ok {
		return alt
	}
	return ""
}

// selectorSweep is the first tier: fixed container selectors, product
// link text, and h2-h4 headings over the captured HTML.
type selectorSweep struct{}

func (s *selectorSweep) Name() string { return "selector-sweep" }

func (s *selectorSweep) Extract(_ context.Context, state *PageState) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(state.Capture.DOMHTML))
	if err != nil {
		return nil, fmt.Errorf("could not parse captured page: %w", err)
	}

	seen := make(map[string]bool)
	items := collectBySelectors(state.Capture.DOMHTML, productContainerSelectors, productNameSelectors)
	for _, item := range items {
		seen[strings.ToLower(item)] = true
	}

	doc.Find(`a[href*="product"]`).Each(func(_ int, sel *goquery.Selection) {
		items = appendUnique(items, seen, sel.Text())
	})
	doc.Find("h2, h3, h4").Each(func(_ int, sel *goquery.Selection) {
		items = appendUnique(items, seen, sel.Text())
	})
	return items, nil
}

// scrollRetry triggers lazy-loaded content by scrolling the full page
// height, refreshes the capture, and reruns the sweep.
type scrollRetry struct {
	sweep *selectorSweep
}

func (s *scrollRetry) Name() string { return "scroll-retry" }

func (s *scrollRetry) Extract(ctx context.Context, state *PageState) ([]string, error) {
	if state.Session == nil || state.Recapture == nil {
		return nil, nil
	}
	if err := state.Session.AutoScroll(); err != nil {
		return nil, err
	}
	if err := state.Recapture("after-auto-scroll"); err != nil {
		return nil, err
	}
	return s.sweep.Extract(ctx, state)
}

// listingDiscovery follows up to five same-origin links whose text or
// href look like a product listing, rerunning the sweep on each until
// one yields items.
type listingDiscovery struct {
	sweep *selectorSweep
}

func (l *listingDiscovery) Name() string { return "listing-discovery" }

func (l *listingDiscovery) Extract(ctx context.Context, state *PageState) ([]string, error) {
	if state.Session == nil || state.Recapture == nil {
		return nil, nil
	}
	links := listingLinks(state.Capture.DOMHTML, state.Capture.URL, maxListingLinks)
	for _, link := range links {
		if err := state.Session.Navigate(link); err != nil {
			continue
		}
		state.Session.DismissConsent()
		state.Session.SettleAfterNavigation(productContainerSelectors[0], listingSettle)
		if err := state.Recapture("listing-discovery"); err != nil {
			if errors.Is(err, ErrChallenged) {
				return nil, err
			}
			continue
		}
		items, err := l.sweep.Extract(ctx, state)
		if err != nil {
			continue
		}
		if len(items) > 0 {
			return items, nil
		}
	}
	return nil, nil
}

// listingLinks finds same-origin anchors that look like they lead to a
// product listing, judged by link text or href keywords.
func listingLinks(rawHTML, baseURL string, limit int) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var links []string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		if !looksLikeListing(sel.Text(), href) {
			return true
		}
		resolved, err := base.Parse(href)
		if err != nil || resolved.Host != base.Host {
			return true
		}
		resolved.Fragment = ""
		target := resolved.String()
		if seen[target] || target == baseURL {
			return true
		}
		seen[target] = true
		links = append(links, target)
		return len(links) < limit
	})
	return links
}

func looksLikeListing(text, href string) bool {
	lowerText := strings.ToLower(text)
	lowerHref := strings.ToLower(href)
	for _, keyword := range listingKeywords {
		if strings.Contains(lowerText, keyword) || strings.Contains(lowerHref, keyword) {
			return true
		}
	}
	return false
}

// inferredSelectors asks the LLM for container selectors given the UI
// inventory and a bounded DOM text sample, then applies them with the
// standard name resolution.
type inferredSelectors struct {
	inference *llm.Inference
}

func (i *inferredSelectors) Name() string { return "llm-selectors" }

func (i *inferredSelectors) Extract(ctx context.Context, state *PageState) ([]string, error) {
	if i.inference == nil {
		return nil, nil
	}
	sample := browser.DOMSample(state.Capture, 2000)
	selectors := i.inference.InferSelectors(ctx, state.Inventory, sample, productTask)
	if len(selectors) == 0 {
		return nil, nil
	}
	return collectBySelectors(state.Capture.DOMHTML, selectors, productNameSelectors), nil
}

// plannedSelectors asks the LLM for a full extraction plan and tries
// its primary selectors, then its fallbacks.
type plannedSelectors struct {
	inference *llm.Inference
}

func (p *plannedSelectors) Name() string { return "llm-plan" }

func (p *plannedSelectors) Extract(ctx context.Context, state *PageState) ([]string, error) {
	if p.inference == nil {
		return nil, nil
	}
	plan := p.inference.BuildExtractionPlan(ctx, llm.PlanRequest{
		Target:        "product_names",
		DOMTextSample: browser.DOMSample(state.Capture, 2000),
		UIInventory:   state.Inventory,
	})
	if plan == nil {
		return nil, nil
	}
	if items := collectBySelectors(state.Capture.DOMHTML, plan.PrimarySelectors, productNameSelectors); len(items) > 0 {
		return items, nil
	}
	return collectBySelectors(state.Capture.DOMHTML, plan.FallbackSelectors, productNameSelectors), nil
}

// headingFallback is the last resort: any heading, title or name
// classed element on the page.
type headingFallback struct{}

func (h *headingFallback) Name() string { return "heading-fallback" }

var fallbackSelectors = []string{"h1", "h2", "h3", ".title", ".name", `[class*="heading"]`}

func (h *headingFallback) Extract(_ context.Context, state *PageState) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(state.Capture.DOMHTML))
	if err != nil {
		return nil, fmt.Errorf("could not parse captured page: %w", err)
	}
	seen := make(map[string]bool)
	var items []string
	for _, selector := range fallbackSelectors {
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			items = appendUnique(items, seen, sel.Text())
		})
	}
	return items, nil
}
