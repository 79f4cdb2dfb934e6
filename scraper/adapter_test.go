package scraper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"dealscout/config"
	"dealscout/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(data)
}

func siteAdapter(t *testing.T, name string) *SourceAdapter {
	t.Helper()
	catalog, err := config.LoadSites("")
	require.NoError(t, err)
	site, ok := catalog.Site(name)
	require.True(t, ok)
	return NewSourceAdapter(site)
}

func TestSearchURL(t *testing.T) {
	assert.Equal(t, "https://www.flipkart.com/search?q=gaming+laptop&sort=price_asc",
		siteAdapter(t, "Flipkart").SearchURL(" gaming laptop "))
	assert.Equal(t, "https://www.amazon.in/s?k=usb-c+cable+%26+charger",
		siteAdapter(t, "Amazon").SearchURL("usb-c cable & charger"))
}

func TestFlipkartSearch(t *testing.T) {
	adapter := siteAdapter(t, "Flipkart")
	searchURL := adapter.SearchURL("laptop")
	renderer := NewStaticRenderer(map[string]string{searchURL: loadFixture(t, "flipkart_search.html")})

	products, err := adapter.Search(context.Background(), renderer, "laptop", 50000)
	require.NoError(t, err)
	require.Len(t, products, 2)

	first := products[0]
	assert.Equal(t, "Lenovo IdeaPad Slim 3 Intel Core i5 12th Gen - (16 GB/512 GB SSD/Windows 11 Home)", first.Title)
	assert.Equal(t, 45990.0, first.Price)
	assert.Equal(t, "4.2", first.Rating.String())
	assert.Equal(t, models.SourceFlipkart, first.Source)
	assert.Equal(t, "https://www.flipkart.com/lenovo-ideapad-slim-3-intel-core-i5-12th-gen/p/itm1a2b3c4d5e6f7?pid=COMGZ6K9SDQZ5VHF", first.URL)
	require.NotNil(t, first.Discount)
	assert.Equal(t, 35.4, *first.Discount)
	require.NotNil(t, first.ReviewsCount)
	assert.Equal(t, 3812, *first.ReviewsCount)

	atBudget := products[1]
	assert.Equal(t, 50000.0, atBudget.Price, "budget filter is inclusive")
	assert.Equal(t, models.RatingUnavailable(), atBudget.Rating)

	assert.Equal(t, 1, renderer.ClosedPages())
}

func TestAmazonSearch(t *testing.T) {
	adapter := siteAdapter(t, "Amazon")
	searchURL := adapter.SearchURL("laptop")
	renderer := NewStaticRenderer(map[string]string{searchURL: loadFixture(t, "amazon_search.html")})

	products, err := adapter.Search(context.Background(), renderer, "laptop", 45000)
	require.NoError(t, err)
	require.Len(t, products, 2)

	assert.Equal(t, `ASUS Vivobook 15, Intel Core i5-1235U 12th Gen, 15.6" FHD Laptop`, products[0].Title)
	assert.Equal(t, 38990.0, products[0].Price)
	assert.Equal(t, 4.1, products[0].Rating.OrZero())
	assert.Equal(t, "https://www.amazon.in/ASUS-Vivobook-i5-1235U-Windows-X1502ZA-EJ532WS/dp/B0C1ASUS15/ref=sr_1_1?keywords=laptop", products[0].URL)
	require.NotNil(t, products[0].ReviewsCount)
	assert.Equal(t, 1204, *products[0].ReviewsCount)

	assert.Equal(t, "HP 255 G9 Laptop, AMD Ryzen 5 5625U, 8GB DDR4, 512GB SSD", products[1].Title)
	assert.Equal(t, 3.9, products[1].Rating.OrZero())
	assert.Equal(t, "https://www.amazon.in/HP-Laptop-255-G9-Ryzen/dp/B0D2HP255G/ref=sr_1_2", products[1].URL)
}

func TestSearchBudgetFilter(t *testing.T) {
	adapter := siteAdapter(t, "Amazon")
	renderer := NewStaticRenderer(map[string]string{adapter.SearchURL("laptop"): loadFixture(t, "amazon_search.html")})

	products, err := adapter.Search(context.Background(), renderer, "laptop", 38990)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, 38990.0, products[0].Price)

	products, err = adapter.Search(context.Background(), renderer, "laptop", 38989)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestSearchNavigationFailure(t *testing.T) {
	adapter := siteAdapter(t, "Flipkart")
	renderer := NewStaticRenderer(nil)
	renderer.FailOn(adapter.SearchURL("tv"), errors.New("net::ERR_TIMED_OUT"))

	products, err := adapter.Search(context.Background(), renderer, "tv", 30000)
	assert.Empty(t, products)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERR_TIMED_OUT")
}

func TestSearchZeroCards(t *testing.T) {
	adapter := siteAdapter(t, "Amazon")
	renderer := NewStaticRenderer(map[string]string{adapter.SearchURL("tv"): loadFixture(t, "captcha.html")})

	products, err := adapter.Search(context.Background(), renderer, "tv", 30000)
	assert.Empty(t, products)
	require.ErrorIs(t, err, ErrNoCards)
	assert.Contains(t, err.Error(), string(BlockCaptcha))
	assert.Equal(t, 1, renderer.ClosedPages())
}

func TestSearchCancelledContext(t *testing.T) {
	adapter := siteAdapter(t, "Flipkart")
	renderer := NewStaticRenderer(map[string]string{adapter.SearchURL("laptop"): loadFixture(t, "flipkart_search.html")})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	products, err := adapter.Search(ctx, renderer, "laptop", 50000)
	assert.Empty(t, products)
	assert.ErrorIs(t, err, context.Canceled)
}

type fakePage struct {
	fakeNode
	closed bool
}

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}

type fakeRenderer struct {
	page *fakePage
}

func (r *fakeRenderer) Open(context.Context, PageRequest) (Page, error) {
	return r.page, nil
}

func flipkartCard(title, price string) Node {
	return &fakeNode{children: map[string][]Node{
		"._4rR01T": {&fakeNode{text: title}},
		"._30jeq3": {&fakeNode{text: price}},
	}}
}

// explodingCard panics on every lookup
type explodingCard struct{ fakeNode }

func (c *explodingCard) Find(string) ([]Node, error) {
	panic(errors.New("renderer crashed"))
}

func TestSearchSurvivesBadCard(t *testing.T) {
	adapter := siteAdapter(t, "Flipkart")
	cards := []Node{
		flipkartCard("Samsung Galaxy M14 5G (Blue, 128 GB)", "₹11,999"),
		&explodingCard{},
		flipkartCard("Motorola G54 5G (Mint Green, 256 GB)", "₹15,999"),
	}
	page := &fakePage{fakeNode: fakeNode{children: map[string][]Node{"[data-id]": cards}}}

	products, err := adapter.Search(context.Background(), &fakeRenderer{page: page}, "phone", 20000)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, 11999.0, products[0].Price)
	assert.Equal(t, 15999.0, products[1].Price)
	assert.True(t, page.closed)
}

func TestSearchCardCap(t *testing.T) {
	adapter := siteAdapter(t, "Flipkart")
	var cards []Node
	for i := 0; i < 25; i++ {
		cards = append(cards, flipkartCard("Realme Narzo 60x 5G (Stellar Green)", "₹12,999"))
	}
	page := &fakePage{fakeNode: fakeNode{children: map[string][]Node{
		"[data-id]": cards,
		"._1AtVbE":  {flipkartCard("Should never be read at all", "₹999")},
	}}}

	products, err := adapter.Search(context.Background(), &fakeRenderer{page: page}, "phone", 20000)
	require.NoError(t, err)
	assert.Len(t, products, 20)
}

func TestSearchFallsBackToLaterCardSelector(t *testing.T) {
	adapter := siteAdapter(t, "Flipkart")
	page := &fakePage{fakeNode: fakeNode{children: map[string][]Node{
		"._13oc-S": {flipkartCard("Noise ColorFit Pulse 2 Max Smartwatch", "₹1,499")},
	}}}

	products, err := adapter.Search(context.Background(), &fakeRenderer{page: page}, "watch", 2000)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Noise ColorFit Pulse 2 Max Smartwatch", products[0].Title)
}

func TestNewSourceAdapters(t *testing.T) {
	catalog, err := config.LoadSites("")
	require.NoError(t, err)

	adapters := NewSourceAdapters(catalog)
	require.Len(t, adapters, 2)
	assert.Equal(t, models.SourceFlipkart, adapters[0].Source())
	assert.Equal(t, models.SourceAmazon, adapters[1].Source())
}
