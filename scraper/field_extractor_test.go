package scraper

import (
	"context"
	"errors"
	"testing"

	"dealscout/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNode is a hand-built DOM node for exercising failure paths
type fakeNode struct {
	text     string
	attrs    map[string]string
	children map[string][]Node
	findErr  error
	textErr  error
	panics   bool
}

func (n *fakeNode) Find(selector string) ([]Node, error) {
	if n.panics {
		panic("detached node")
	}
	if n.findErr != nil {
		return nil, n.findErr
	}
	return n.children[selector], nil
}

func (n *fakeNode) Text() (string, error) {
	if n.panics {
		panic("detached node")
	}
	if n.textErr != nil {
		return "", n.textErr
	}
	return n.text, nil
}

func (n *fakeNode) Attr(name string) (string, bool, error) {
	v, ok := n.attrs[name]
	return v, ok, nil
}

func cardFromHTML(t *testing.T, html string) Node {
	t.Helper()
	renderer := NewStaticRenderer(map[string]string{"https://fixture.test/": html})
	page, err := renderer.Open(context.Background(), PageRequest{URL: "https://fixture.test/"})
	require.NoError(t, err)
	cards, err := page.Find(".card")
	require.NoError(t, err)
	require.NotEmpty(t, cards)
	return cards[0]
}

func TestExtractPriorityOrder(t *testing.T) {
	card := cardFromHTML(t, `<div class="card">
		<span class="a">₹1,499</span>
		<span class="b">₹2,999</span>
	</div>`)

	got, ok := Extract(card, config.FieldSpec{Selectors: []string{".a", ".b"}, MaxMatches: 3}, ParsePrice)
	require.True(t, ok)
	assert.Equal(t, 1499.0, got)

	got, ok = Extract(card, config.FieldSpec{Selectors: []string{".b", ".a"}, MaxMatches: 3}, ParsePrice)
	require.True(t, ok)
	assert.Equal(t, 2999.0, got)
}

func TestExtractSkipsInvalidCandidates(t *testing.T) {
	card := cardFromHTML(t, `<div class="card">
		<span class="missing-selector-decoy"></span>
		<span class="p">₹50</span>
		<span class="p">₹75</span>
		<span class="q">₹8,999</span>
	</div>`)

	got, ok := Extract(card, config.FieldSpec{Selectors: []string{".nope", ".p", ".q"}, MaxMatches: 3}, ParsePrice)
	require.True(t, ok)
	assert.Equal(t, 8999.0, got)
}

func TestExtractMatchCap(t *testing.T) {
	card := cardFromHTML(t, `<div class="card">
		<span class="t">short</span>
		<span class="t">tiny</span>
		<span class="t">small</span>
		<span class="t">A title that is long enough</span>
	</div>`)

	_, ok := Extract(card, config.FieldSpec{Selectors: []string{".t"}, MaxMatches: 3}, ParseTitle)
	assert.False(t, ok)

	got, ok := Extract(card, config.FieldSpec{Selectors: []string{".t"}, MaxMatches: 4}, ParseTitle)
	assert.True(t, ok)
	assert.Equal(t, "A title that is long enough", got)
}

func TestExtractAttributes(t *testing.T) {
	card := cardFromHTML(t, `<div class="card">
		<a class="l" title="Redmi Note 13 5G (Arctic White)" href="/redmi/p/itm9"></a>
		<span class="r" aria-label="4.2 out of 5 stars"></span>
	</div>`)

	title, ok := Extract(card, config.FieldSpec{Selectors: []string{"a.l"}, FallbackAttr: "title", MaxMatches: 3}, ParseTitle)
	require.True(t, ok)
	assert.Equal(t, "Redmi Note 13 5G (Arctic White)", title)

	rating, ok := Extract(card, config.FieldSpec{Selectors: []string{".r"}, FallbackAttr: "aria-label", MaxMatches: 3}, ParseRating)
	require.True(t, ok)
	assert.Equal(t, 4.2, rating)

	href, ok := Extract(card, config.FieldSpec{Selectors: []string{"a.l"}, Attr: "href", MaxMatches: 3},
		productURLParser("https://www.flipkart.com", []string{"/p/"}))
	require.True(t, ok)
	assert.Equal(t, "https://www.flipkart.com/redmi/p/itm9", href)
}

func TestExtractSwallowsFailures(t *testing.T) {
	spec := config.FieldSpec{Selectors: []string{".broken", ".detached", ".good"}, MaxMatches: 3}
	card := &fakeNode{children: map[string][]Node{
		".broken":   {&fakeNode{textErr: errors.New("node is detached")}},
		".detached": {&fakeNode{panics: true, text: "₹9,999"}},
		".good":     {&fakeNode{text: "₹12,499"}},
	}}

	got, ok := Extract(card, spec, ParsePrice)
	require.True(t, ok)
	assert.Equal(t, 12499.0, got)

	_, ok = Extract(&fakeNode{findErr: errors.New("timeout")}, spec, ParsePrice)
	assert.False(t, ok)

	_, ok = Extract(&fakeNode{panics: true}, spec, ParsePrice)
	assert.False(t, ok)
}

func TestFieldExtractorExtractCard(t *testing.T) {
	catalog, err := config.LoadSites("")
	require.NoError(t, err)
	site, _ := catalog.Site("Flipkart")
	extractor := NewFieldExtractor(site)

	card := cardFromHTML(t, `<div class="card">
		<a href="/apple-iphone-15/p/itm6ac6485515ae4" title="Apple iPhone 15 (Black, 128 GB)">
			<div class="_4rR01T">Apple iPhone 15 (Black, 128 GB)</div>
		</a>
		<div class="_3LWZlK">4.6</div>
		<div class="_30jeq3">₹65,999</div>
		<div class="_3I9_wc">₹79,900</div>
		<span class="_2_R_DZ"><span>(1,23,456)</span></span>
	</div>`)

	raw := extractor.ExtractCard(card)
	require.NotNil(t, raw.Title)
	require.NotNil(t, raw.Price)
	require.NotNil(t, raw.Rating)
	require.NotNil(t, raw.URL)
	require.NotNil(t, raw.MRP)
	require.NotNil(t, raw.ReviewsCount)
	assert.Equal(t, "Apple iPhone 15 (Black, 128 GB)", *raw.Title)
	assert.Equal(t, 65999.0, *raw.Price)
	assert.Equal(t, 4.6, *raw.Rating)
	assert.Equal(t, "https://www.flipkart.com/apple-iphone-15/p/itm6ac6485515ae4", *raw.URL)
	assert.Equal(t, 79900.0, *raw.MRP)
	assert.Equal(t, 123456, *raw.ReviewsCount)
}
