package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dealscout/config"
	"dealscout/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSearch struct {
	mu      sync.Mutex
	queries []string
	fail    map[string]bool
}

func (s *recordingSearch) search(_ context.Context, query string) (*models.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	if s.fail[query] {
		return nil, errors.New("no browser")
	}
	return &models.SearchResult{
		QueryID: "abc",
		Query:   query,
		Recommendations: []models.Recommendation{{
			Rank:    1,
			Product: models.Product{Title: "Some Product Title", Price: 1999, Source: models.SourceAmazon},
		}},
	}, nil
}

func (s *recordingSearch) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

func watchConfig(queries ...string) config.WatchConfig {
	return config.WatchConfig{
		Schedule:      "0 0 */12 * * *",
		Queries:       queries,
		RetryInterval: time.Minute,
		MaxRetries:    2,
	}
}

func TestWatcherRunOnce(t *testing.T) {
	s := &recordingSearch{fail: map[string]bool{"tv under 40k": true}}
	w := NewWatcher(s.search, watchConfig("laptop under 50000", "tv under 40k"))

	w.RunOnce()

	assert.Equal(t, []string{"laptop under 50000", "tv under 40k"}, s.seen())
	assert.Equal(t, 1, w.retries.Len(), "failed query is queued for retry")
}

func TestWatcherRetrySucceeds(t *testing.T) {
	s := &recordingSearch{fail: map[string]bool{"tv under 40k": true}}
	w := NewWatcher(s.search, watchConfig("tv under 40k"))

	now := time.Now()
	w.retries.now = func() time.Time { return now }
	w.RunOnce()
	require.Equal(t, 1, w.retries.Len())

	s.mu.Lock()
	s.fail = nil
	s.mu.Unlock()

	now = now.Add(2 * time.Minute)
	w.processRetries()
	assert.Equal(t, 0, w.retries.Len())
	assert.Equal(t, []string{"tv under 40k", "tv under 40k"}, s.seen())
}

func TestWatcherStartValidation(t *testing.T) {
	s := &recordingSearch{}

	err := NewWatcher(s.search, watchConfig()).Start()
	assert.Error(t, err)

	cfg := watchConfig("phone")
	cfg.Schedule = "not a schedule"
	err = NewWatcher(s.search, cfg).Start()
	assert.ErrorContains(t, err, "failed to schedule watcher")
}

func TestWatcherStartRunsImmediately(t *testing.T) {
	s := &recordingSearch{}
	w := NewWatcher(s.search, watchConfig("phone under 20000"))

	require.NoError(t, w.Start())
	defer w.Stop()

	assert.Eventually(t, func() bool { return len(s.seen()) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherStopWaitsForStartupRun(t *testing.T) {
	started := make(chan struct{})
	var finished atomic.Bool
	search := func(ctx context.Context, _ string) (*models.SearchResult, error) {
		close(started)
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
		return nil, ctx.Err()
	}
	w := NewWatcher(search, watchConfig("phone under 20000", "tv under 40k"))

	require.NoError(t, w.Start())
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "startup run did not begin")
	}

	w.Stop()
	assert.True(t, finished.Load(), "Stop returned while the startup search was still running")
}
