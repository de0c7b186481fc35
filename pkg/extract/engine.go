// Package extract pulls structured items (product names, email
// addresses) out of a live page. Product extraction runs an ordered
// list of strategies and stops at the first one that yields anything;
// later strategies escalate from cheap DOM sweeps to LLM-guided
// selector inference.
package extract

import (
	"context"
	"errors"
	"time"

	"github.com/entrhq/scout/pkg/browser"
	"github.com/entrhq/scout/pkg/llm"
	"github.com/entrhq/scout/pkg/logging"
	"github.com/entrhq/scout/pkg/prompt"
)

// maxItemFloor is the smallest truncation cap; a requested count below
// it never shrinks the returned list further.
const maxItemFloor = 10

// ErrChallenged is returned by Recapture when a bot challenge appeared
// on the page. The engine stops escalating immediately; retrying tiers
// against a challenge page cannot produce data.
var ErrChallenged = errors.New("challenge detected during extraction")

// Pager is the slice of the browser session the escalating tiers
// drive. *browser.Session satisfies it.
type Pager interface {
	Navigate(url string) error
	AutoScroll() error
	DismissConsent()
	SettleAfterNavigation(selector string, timeout time.Duration)
}

// PageState is the page context strategies operate on. Capture and
// Inventory reflect the most recent snapshot; Recapture refreshes both
// after a strategy mutated the page (scrolling, navigating).
type PageState struct {
	Session   Pager
	Capture   *browser.Capture
	Inventory *browser.UIInventory
	Recapture func(label string) error
}

// Strategy is one extraction tier. Returning an empty slice means the
// tier found nothing and the engine moves on; an error is treated the
// same way after logging, except ErrChallenged which stops the engine.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, state *PageState) ([]string, error)
}

// Result is the outcome of a successful extraction. Items is truncated
// to the caller's cap; Total is the count before truncation.
type Result struct {
	Items []string
	Total int
	Type  prompt.ExtractionType
	Tier  string
}

// AuditFunc records which tier ran and what it produced. Advisory;
// never gates the flow.
type AuditFunc func(tier string, count int)

// Engine walks strategies in order until one produces items.
type Engine struct {
	strategies []Strategy
	log        *logging.Logger
	audit      AuditFunc
}

// NewEngine builds the product extraction pipeline in escalation
// order: selector sweep, scroll-and-retry, listing discovery,
// LLM-inferred selectors, LLM extraction plan, generic headings.
func NewEngine(inference *llm.Inference, log *logging.Logger, audit AuditFunc) *Engine {
	sweep := &selectorSweep{}
	return &Engine{
		strategies: []Strategy{
			sweep,
			&scrollRetry{sweep: sweep},
			&listingDiscovery{sweep: sweep},
			&inferredSelectors{inference: inference},
			&plannedSelectors{inference: inference},
			&headingFallback{},
		},
		log:   log,
		audit: audit,
	}
}

// Strategies exposes the tier order, mostly for tests.
func (e *Engine) Strategies() []Strategy {
	return e.strategies
}

// ExtractProducts runs the tiers in order. Returns nil when every tier
// came up empty; the caller owns the user-facing failure message.
func (e *Engine) ExtractProducts(ctx context.Context, state *PageState, requestedCount int) *Result {
	for _, strategy := range e.strategies {
		items, err := strategy.Extract(ctx, state)
		if err != nil {
			if errors.Is(err, ErrChallenged) {
				if e.log != nil {
					e.log.Warnf("extraction aborted at tier %s: %v", strategy.Name(), err)
				}
				return nil
			}
			if e.log != nil {
				e.log.Warnf("extraction tier %s failed: %v", strategy.Name(), err)
			}
			continue
		}
		if e.audit != nil {
			e.audit(strategy.Name(), len(items))
		}
		if len(items) > 0 {
			total := len(items)
			return &Result{
				Items: capItems(items, requestedCount),
				Total: total,
				Type:  prompt.ExtractProductNames,
				Tier:  strategy.Name(),
			}
		}
	}
	return nil
}

// capItems truncates items to max(requestedCount, maxItemFloor).
func capItems(items []string, requestedCount int) []string {
	limit := maxItemFloor
	if requestedCount > limit {
		limit = requestedCount
	}
	if len(items) > limit {
		return items[:limit]
	}
	return items
}
