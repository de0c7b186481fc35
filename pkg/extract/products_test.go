package extract

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/scout/pkg/browser"
	"github.com/entrhq/scout/pkg/llm"
)

const listingHTML = `<html><body>
	<div class="product-card"><h3>Red Mug</h3><span class="price">$9</span></div>
	<div class="product-card"><h3>Blue Mug</h3></div>
	<div class="product-card" data-product-name="Green Mug"><span class="price">$11</span></div>
	<div class="product-card"><img src="mug.png" alt="Yellow Mug"></div>
</body></html>`

func pageState(html string) *PageState {
	return &PageState{Capture: &browser.Capture{URL: "https://shop.example.com/", DOMHTML: html}}
}

func TestSelectorSweep_ContainerNameResolution(t *testing.T) {
	sweep := &selectorSweep{}
	items, err := sweep.Extract(context.Background(), pageState(listingHTML))
	require.NoError(t, err)
	// The data-product-name container selector runs before the class
	// sweep, so Green Mug surfaces first.
	assert.Equal(t, []string{"Green Mug", "Red Mug", "Blue Mug", "Yellow Mug"}, items)
}

func TestSelectorSweep_ProductLinksAndHeadings(t *testing.T) {
	html := `<html><body>
		<a href="/products/1">Walnut Desk</a>
		<a href="/about">About us</a>
		<h3>Oak Shelf</h3>
		<h5>Not a product heading</h5>
	</body></html>`

	sweep := &selectorSweep{}
	items, err := sweep.Extract(context.Background(), pageState(html))
	require.NoError(t, err)
	assert.Contains(t, items, "Walnut Desk")
	assert.Contains(t, items, "Oak Shelf")
	assert.NotContains(t, items, "About us")
	assert.NotContains(t, items, "Not a product heading")
}

func TestSelectorSweep_Deduplicates(t *testing.T) {
	html := `<html><body>
		<div class="product-card"><h3>Red Mug</h3></div>
		<h3>Red Mug</h3>
		<h3>red mug</h3>
	</body></html>`

	sweep := &selectorSweep{}
	items, err := sweep.Extract(context.Background(), pageState(html))
	require.NoError(t, err)
	assert.Equal(t, []string{"Red Mug"}, items)
}

func TestListingLinks(t *testing.T) {
	html := `<html><body>
		<a href="/shop">Shop</a>
		<a href="/collections/mugs">Mugs</a>
		<a href="https://other.example.org/store">External store</a>
		<a href="/about">About</a>
		<a href="/shop">Shop again</a>
	</body></html>`

	links := listingLinks(html, "https://shop.example.com/", maxListingLinks)
	assert.Equal(t, []string{
		"https://shop.example.com/shop",
		"https://shop.example.com/collections/mugs",
	}, links)
}

func TestListingLinks_Limit(t *testing.T) {
	html := `<html><body>
		<a href="/shop/1">Shop 1</a>
		<a href="/shop/2">Shop 2</a>
		<a href="/shop/3">Shop 3</a>
	</body></html>`

	links := listingLinks(html, "https://shop.example.com/", 2)
	assert.Len(t, links, 2)
}

func TestHeadingFallback(t *testing.T) {
	html := `<html><body>
		<h1>Catalog</h1>
		<p class="title">Spring Chair</p>
		<div class="promo-heading">Sale now on</div>
	</body></html>`

	fallback := &headingFallback{}
	items, err := fallback.Extract(context.Background(), pageState(html))
	require.NoError(t, err)
	assert.Contains(t, items, "Catalog")
	assert.Contains(t, items, "Spring Chair")
	assert.Contains(t, items, "Sale now on")
}

func TestEngine_StopsAtFirstNonEmptyTier(t *testing.T) {
	var audited []string
	engine := NewEngine(nil, nil, func(tier string, count int) {
		audited = append(audited, tier)
	})

	result := engine.ExtractProducts(context.Background(), pageState(listingHTML), 0)
	require.NotNil(t, result)
	assert.Equal(t, "selector-sweep", result.Tier)
	assert.Equal(t, 4, result.Total)
	assert.Equal(t, []string{"selector-sweep"}, audited)
}

func TestEngine_ExhaustsAllTiers(t *testing.T) {
	html := `<html><body><p>Nothing structured here</p></body></html>`
	var audited []string
	engine := NewEngine(nil, nil, func(tier string, count int) {
		audited = append(audited, tier)
		assert.Zero(t, count)
	})

	result := engine.ExtractProducts(context.Background(), pageState(html), 0)
	assert.Nil(t, result)
	assert.Len(t, audited, len(engine.Strategies()))
}

type countingPager struct {
	navigations int
}

func (p *countingPager) Navigate(string) error { p.navigations++; return nil }

func (p *countingPager) AutoScroll() error { return nil }

func (p *countingPager) DismissConsent() {}

func (p *countingPager) SettleAfterNavigation(string, time.Duration) {}

func TestEngine_AbortsWhenChallengeAppears(t *testing.T) {
	provider := &stubProvider{response: `{"selectors": [".tile"]}`}
	pager := &countingPager{}

	// No products, but a listing link a later tier would follow.
	state := pageState(`<html><body><a href="/shop">Shop now</a></body></html>`)
	state.Session = pager
	state.Recapture = func(string) error { return ErrChallenged }

	var audited []string
	engine := NewEngine(llm.NewInference(provider, nil, 0), nil, func(tier string, count int) {
		audited = append(audited, tier)
	})

	result := engine.ExtractProducts(context.Background(), state, 0)

	assert.Nil(t, result)
	assert.Equal(t, []string{"selector-sweep"}, audited, "escalation stops at the tripping tier")
	assert.Zero(t, pager.navigations, "no navigation once the challenge trips")
	assert.Zero(t, provider.calls, "no inference against a challenge page")
}

func TestListingDiscovery_PropagatesChallenge(t *testing.T) {
	pager := &countingPager{}
	state := pageState(`<html><body><a href="/shop">Shop now</a><a href="/store">Store</a></body></html>`)
	state.Session = pager
	state.Recapture = func(string) error { return ErrChallenged }

	tier := &listingDiscovery{sweep: &selectorSweep{}}
	_, err := tier.Extract(context.Background(), state)

	require.ErrorIs(t, err, ErrChallenged)
	assert.Equal(t, 1, pager.navigations, "remaining listing links are not visited")
}

func TestCapItems_TruncationInvariant(t *testing.T) {
	items := make([]string, 40)
	for i := range items {
		items[i] = "item"
	}

	tests := []struct {
		name      string
		requested int
		expected  int
	}{
		{name: "zero request uses floor", requested: 0, expected: 10},
		{name: "below floor uses floor", requested: 4, expected: 10},
		{name: "above floor honored", requested: 15, expected: 15},
		{name: "request above length keeps all", requested: 100, expected: 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, capItems(items, tt.requested), tt.expected)
		})
	}
}
