package services

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"dealscout/llm"
	"dealscout/models"
	"dealscout/scraper"

	"github.com/google/uuid"
)

// DefaultAdapterTimeout bounds a single marketplace search
const DefaultAdapterTimeout = 60 * time.Second

// ObservationRecorder stores scraped prices. The agent only writes to it.
type ObservationRecorder interface {
	RecordObservations(ctx context.Context, observations []models.PriceObservation) error
}

// AgentOptions tunes the pipeline
type AgentOptions struct {
	TopN           int
	DefaultBudget  float64
	AdapterTimeout time.Duration
}

// ShoppingAgent runs one query through intent parsing, marketplace search,
// ranking and rendering
type ShoppingAgent struct {
	parser         *IntentParser
	ranker         *Ranker
	adapters       []*scraper.SourceAdapter
	sessions       scraper.SessionFactory
	recorder       ObservationRecorder
	adapterTimeout time.Duration
	now            func() time.Time
}

// NewShoppingAgent wires the pipeline stages together
func NewShoppingAgent(generator llm.Generator, sessions scraper.SessionFactory, adapters []*scraper.SourceAdapter, opts AgentOptions) *ShoppingAgent {
	timeout := opts.AdapterTimeout
	if timeout <= 0 {
		timeout = DefaultAdapterTimeout
	}

	return &ShoppingAgent{
		parser:         NewIntentParser(generator, opts.DefaultBudget),
		ranker:         NewRanker(generator, opts.TopN),
		adapters:       adapters,
		sessions:       sessions,
		adapterTimeout: timeout,
		now:            time.Now,
	}
}

// SetRecorder enables price history recording
func (a *ShoppingAgent) SetRecorder(recorder ObservationRecorder) {
	a.recorder = recorder
}

// Process runs a query and always returns text for the user. Failures and
// panics become an error message.
func (a *ShoppingAgent) Process(ctx context.Context, query string) (report string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Recovered from panic while processing %q: %v", query, r)
			report = RenderError(fmt.Errorf("%v", r))
		}
	}()

	result, err := a.Search(ctx, query)
	if err != nil {
		return RenderError(err)
	}
	return result.Report
}

// Search runs the full pipeline and returns the structured result
func (a *ShoppingAgent) Search(ctx context.Context, query string) (*models.SearchResult, error) {
	queryID := uuid.NewString()[:8]
	log.Printf("[%s] 🔍 Parsing your query...", queryID)

	intent, err := a.parser.Parse(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to parse query: %w", err)
	}
	log.Printf("[%s] 📱 %q with budget ₹%s (%s)", queryID, intent.ProductName, FormatRupees(intent.Budget), intent.Origin)

	products, err := a.collect(ctx, queryID, intent)
	if err != nil {
		return nil, err
	}

	products = Dedupe(products)
	log.Printf("[%s] ✅ Total products found: %d", queryID, len(products))

	a.record(ctx, queryID, query, products)

	log.Printf("[%s] 🤖 Analyzing products...", queryID)
	recs, err := a.ranker.Rank(ctx, products, query)
	if err != nil {
		return nil, fmt.Errorf("failed to rank products: %w", err)
	}

	return &models.SearchResult{
		QueryID:         queryID,
		Query:           query,
		Intent:          intent,
		Recommendations: recs,
		Report:          RenderReport(recs),
	}, nil
}

// collect searches every marketplace in parallel over one shared session.
// Each adapter gets its own deadline; a failing adapter contributes nothing.
func (a *ShoppingAgent) collect(ctx context.Context, queryID string, intent models.QueryIntent) ([]models.Product, error) {
	log.Printf("[%s] 🛒 Searching for products...", queryID)

	session, err := a.sessions.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start browser session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Printf("[%s] ⚠️ Failed to close browser session: %v", queryID, err)
		}
	}()

	results := make([][]models.Product, len(a.adapters))
	var wg sync.WaitGroup

	for i, adapter := range a.adapters {
		wg.Add(1)
		go func(i int, adapter *scraper.SourceAdapter) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[%s] ❌ %s search panicked: %v", queryID, adapter.Source(), r)
				}
			}()

			adapterCtx, cancel := context.WithTimeout(ctx, a.adapterTimeout)
			defer cancel()

			log.Printf("[%s]   📦 Searching %s...", queryID, adapter.Source())
			products, err := adapter.Search(adapterCtx, session, intent.ProductName, intent.Budget)
			if err != nil {
				log.Printf("[%s]   ❌ %s search failed: %v", queryID, adapter.Source(), err)
				return
			}
			log.Printf("[%s]   ✅ Found %d products from %s", queryID, len(products), adapter.Source())
			results[i] = products
		}(i, adapter)
	}
	wg.Wait()

	var all []models.Product
	for _, products := range results {
		all = append(all, products...)
	}
	return all, nil
}

func (a *ShoppingAgent) record(ctx context.Context, queryID, query string, products []models.Product) {
	if a.recorder == nil || len(products) == 0 {
		return
	}

	at := a.now().UTC()
	observations := make([]models.PriceObservation, 0, len(products))
	for _, p := range products {
		observations = append(observations, models.NewPriceObservation(queryID, query, p, at))
	}

	if err := a.recorder.RecordObservations(ctx, observations); err != nil {
		log.Printf("[%s] ⚠️ Failed to record price history: %v", queryID, err)
	}
}

// Dedupe drops repeated listings, keeping the first. Products with a URL
// are keyed by scheme, host and path; others by source and title.
func Dedupe(products []models.Product) []models.Product {
	seen := make(map[string]bool, len(products))
	unique := make([]models.Product, 0, len(products))
	for _, p := range products {
		key := dedupeKey(p)
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, p)
	}
	return unique
}

func dedupeKey(p models.Product) string {
	if p.HasURL() {
		if u, err := url.Parse(p.URL); err == nil && u.Host != "" {
			return "url:" + strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host) + u.Path
		}
	}
	return "title:" + string(p.Source) + ":" + strings.ToLower(strings.TrimSpace(p.Title))
}
