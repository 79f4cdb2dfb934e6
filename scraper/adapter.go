package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"

	"dealscout/config"
	"dealscout/models"

	"github.com/mattn/go-runewidth"
)

// ErrNoCards is returned when no card selector matched on a results page
var ErrNoCards = errors.New("no product cards found")

// logTitleWidth bounds product titles in log lines
const logTitleWidth = 50

// ShortTitle truncates a title to a fixed display width for logging
func ShortTitle(title string) string {
	return runewidth.Truncate(title, logTitleWidth, "...")
}

// SourceAdapter searches one marketplace and returns admitted products
type SourceAdapter struct {
	site      *config.SiteConfig
	source    models.Source
	extractor *FieldExtractor
	detector  *BotDetector
}

// NewSourceAdapter creates an adapter from a site catalog entry
func NewSourceAdapter(site *config.SiteConfig) *SourceAdapter {
	return &SourceAdapter{
		site:      site,
		source:    models.Source(site.Name),
		extractor: NewFieldExtractor(site),
		detector:  NewBotDetector(),
	}
}

// NewSourceAdapters creates one adapter per catalog site
func NewSourceAdapters(catalog *config.Catalog) []*SourceAdapter {
	adapters := make([]*SourceAdapter, 0, len(catalog.Sites))
	for i := range catalog.Sites {
		adapters = append(adapters, NewSourceAdapter(&catalog.Sites[i]))
	}
	return adapters
}

// Source returns the marketplace this adapter reads
func (a *SourceAdapter) Source() models.Source {
	return a.source
}

// SearchURL builds the results URL for a query
func (a *SourceAdapter) SearchURL(query string) string {
	return strings.ReplaceAll(a.site.SearchURL, config.QueryPlaceholder, url.QueryEscape(strings.TrimSpace(query)))
}

// Search opens the results page, extracts every card and keeps products
// priced at or below budget. Any site-wide failure yields no products and
// a non-nil error for the caller to log.
func (a *SourceAdapter) Search(ctx context.Context, renderer Renderer, query string, budget float64) ([]models.Product, error) {
	searchURL := a.SearchURL(query)
	log.Printf("🔍 Searching %s: %s", a.source, searchURL)

	page, err := renderer.Open(ctx, PageRequest{
		URL:           searchURL,
		ReadySelector: a.site.ReadySelector,
		ReadyTimeout:  a.site.ReadyTimeout,
		Settle:        a.site.Settle,
	})
	if err != nil {
		return nil, fmt.Errorf("%s search failed: %w", a.source, err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Printf("⚠️  Failed to close %s page: %v", a.source, err)
		}
	}()

	cards := a.enumerateCards(page)
	if len(cards) == 0 {
		diagnosis := a.diagnose(page)
		return nil, fmt.Errorf("%s: %w (%s)", a.source, ErrNoCards, diagnosis)
	}

	var products []models.Product
	rejected, failed := 0, 0
	for i, card := range cards {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%s search interrupted: %w", a.source, err)
		}

		product, ok, err := a.processCard(card)
		if err != nil {
			failed++
			log.Printf("⚠️  %s card %d skipped: %v", a.source, i+1, err)
			continue
		}
		if !ok {
			rejected++
			continue
		}
		if product.Price <= budget {
			products = append(products, product)
			log.Printf("✅ %s: %s - ₹%.0f", a.source, ShortTitle(product.Title), product.Price)
		}
	}

	log.Printf("📦 %s: %d cards, %d within budget, %d rejected, %d failed",
		a.source, len(cards), len(products), rejected, failed)

	return products, nil
}

// enumerateCards returns the matches of the first card selector that finds any
func (a *SourceAdapter) enumerateCards(page Node) []Node {
	for _, selector := range a.site.CardSelectors {
		cards, err := page.Find(selector)
		if err != nil || len(cards) == 0 {
			continue
		}
		if len(cards) > a.site.MaxCards {
			cards = cards[:a.site.MaxCards]
		}
		return cards
	}
	return nil
}

// processCard extracts and normalizes one card, converting panics to errors
func (a *SourceAdapter) processCard(card Node) (product models.Product, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("card extraction panicked: %v", r)
		}
	}()

	raw := a.extractor.ExtractCard(card)
	product, ok = Normalize(raw, a.source, a.site.Origin)
	return product, ok, nil
}

func (a *SourceAdapter) diagnose(page Page) Diagnosis {
	text, err := page.Text()
	if err != nil {
		return Diagnosis{Type: BlockNone, Reasons: []string{"page text unavailable: " + err.Error()}}
	}
	diagnosis := a.detector.Diagnose(text)
	if diagnosis.Blocked() {
		log.Printf("🚫 %s returned a %s page (score %.1f)", a.source, diagnosis.Type, diagnosis.Score)
	}
	return diagnosis
}
