package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"

	"dealscout/config"
	"dealscout/models"
	"dealscout/scraper"
	"dealscout/services"

	"github.com/robfig/cron/v3"
)

// SearchFunc runs one shopping query end to end
type SearchFunc func(ctx context.Context, query string) (*models.SearchResult, error)

// Watcher re-runs saved queries on a cron schedule so their prices land in
// the observation history
type Watcher struct {
	cron       *cron.Cron
	search     SearchFunc
	queries    []string
	schedule   string
	retries    *RetryQueue
	retryEvery string

	ctx    context.Context
	cancel context.CancelFunc
	// runMu serializes runs
	runMu sync.Mutex
	// startup tracks the immediate run kicked off by Start
	startup sync.WaitGroup
}

func NewWatcher(search SearchFunc, cfg config.WatchConfig) *Watcher {
	ctx, cancel := context.WithCancel(context.Background())
	retries := NewRetryQueue(cfg.MaxRetries, cfg.RetryInterval)
	return &Watcher{
		cron:       cron.New(cron.WithSeconds()),
		search:     search,
		queries:    cfg.Queries,
		schedule:   cfg.Schedule,
		retries:    retries,
		retryEvery: fmt.Sprintf("@every %s", retries.baseDelay),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start schedules the watch list and runs it once immediately
func (w *Watcher) Start() error {
	if len(w.queries) == 0 {
		return fmt.Errorf("no watch queries configured")
	}

	if _, err := w.cron.AddFunc(w.schedule, w.runAll); err != nil {
		return fmt.Errorf("failed to schedule watcher: %w", err)
	}
	if w.retries.maxRetries > 0 {
		if _, err := w.cron.AddFunc(w.retryEvery, w.processRetries); err != nil {
			return fmt.Errorf("failed to schedule retries: %w", err)
		}
	}

	w.startup.Add(1)
	go func() {
		defer w.startup.Done()
		w.runAll()
	}()

	w.cron.Start()
	log.Printf("Watcher scheduled %d queries with %q", len(w.queries), w.schedule)
	return nil
}

// Stop cancels in-flight searches and waits for running jobs, including
// the startup run
func (w *Watcher) Stop() {
	w.cancel()
	<-w.cron.Stop().Done()
	w.startup.Wait()
	log.Println("🛑 Watcher stopped")
}

// RunOnce runs every watched query now
func (w *Watcher) RunOnce() {
	log.Println("Manual watch run triggered")
	w.runAll()
}

func (w *Watcher) runAll() {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	log.Printf("Starting scheduled run for %d watched queries", len(w.queries))
	for _, query := range w.queries {
		if w.ctx.Err() != nil {
			return
		}
		w.runQuery(query)
	}
}

func (w *Watcher) processRetries() {
	due := w.retries.Due()
	if len(due) == 0 {
		return
	}

	w.runMu.Lock()
	defer w.runMu.Unlock()

	log.Printf("🔄 Processing %d queries for retry", len(due))
	for _, query := range due {
		if w.ctx.Err() != nil {
			return
		}
		w.runQuery(query)
	}
}

// runQuery searches once; errors and empty results go to the retry queue
func (w *Watcher) runQuery(query string) {
	log.Printf("Checking prices for: %s", query)

	result, err := w.search(w.ctx, query)
	if err != nil {
		log.Printf("❌ Watch query %q failed: %v", query, err)
		w.retries.MarkFailed(query)
		return
	}

	if len(result.Recommendations) == 0 {
		log.Printf("⚠️ Watch query %q returned no products", query)
		w.retries.MarkFailed(query)
		return
	}

	w.retries.MarkSucceeded(query)
	best := result.Recommendations[0].Product
	log.Printf("✅ [%s] %q: top pick %s at ₹%s from %s", result.QueryID, query, scraper.ShortTitle(best.Title), services.FormatRupees(best.Price), best.Source)
	log.Print(result.Report)
}
