package scheduler

import (
	"log"
	"sort"
	"sync"
	"time"
)

type retryEntry struct {
	query       string
	attempts    int
	nextRetryAt time.Time
}

// RetryQueue tracks watched queries that came back empty or failed and
// schedules them again with exponential backoff
type RetryQueue struct {
	mu         sync.Mutex
	entries    map[string]*retryEntry
	maxRetries int
	baseDelay  time.Duration
	now        func() time.Time
}

// NewRetryQueue creates a queue that gives up after maxRetries attempts
func NewRetryQueue(maxRetries int, baseDelay time.Duration) *RetryQueue {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 5 * time.Minute
	}
	return &RetryQueue{
		entries:    make(map[string]*retryEntry),
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		now:        time.Now,
	}
}

// MarkFailed records a failed run and reports whether another attempt is scheduled
func (q *RetryQueue) MarkFailed(query string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.entries[query]
	if !ok {
		entry = &retryEntry{query: query}
		q.entries[query] = entry
	}
	entry.attempts++

	if entry.attempts > q.maxRetries {
		delete(q.entries, query)
		log.Printf("❌ Giving up on %q after %d retries", query, q.maxRetries)
		return false
	}

	delay := q.baseDelay << (entry.attempts - 1)
	entry.nextRetryAt = q.now().Add(delay)
	log.Printf("🔄 Retry %d/%d for %q scheduled in %v", entry.attempts, q.maxRetries, query, delay)
	return true
}

// MarkSucceeded forgets a query's failure history
func (q *RetryQueue) MarkSucceeded(query string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.entries, query)
}

// Due returns queries whose next retry time has passed, oldest first
func (q *RetryQueue) Due() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var due []*retryEntry
	for _, entry := range q.entries {
		if !entry.nextRetryAt.After(now) {
			due = append(due, entry)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].nextRetryAt.Before(due[j].nextRetryAt)
	})

	queries := make([]string, 0, len(due))
	for _, entry := range due {
		queries = append(queries, entry.query)
	}
	return queries
}

// Len returns the number of queries awaiting retry
func (q *RetryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
