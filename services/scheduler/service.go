package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"seriescomplete/models"
	"seriescomplete/services/resolver"
)

// seriesStore is the repository slice the refresh job needs.
type seriesStore interface {
	ListStale(cutoff time.Time) ([]models.Series, error)
	SaveResolution(id int64, meta *models.SeriesMetadata) error
}

type metadataResolver interface {
	Resolve(ctx context.Context, name string, year int, opts resolver.Options) (*models.SeriesMetadata, error)
	Flush()
}

// Service periodically re-resolves tracked series whose metadata has gone
// stale, with bounded concurrency.
type Service struct {
	store    seriesStore
	resolver metadataResolver
	interval time.Duration
	maxAge   time.Duration
	workers  int

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewService(store seriesStore, res metadataResolver, interval, maxAge time.Duration, workers int) *Service {
	if workers <= 0 {
		workers = 3
	}
	return &Service{
		store:    store,
		resolver: res,
		interval: interval,
		maxAge:   maxAge,
		workers:  workers,
	}
}

// Start begins the background refresh loop.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	s.wg.Add(1)
	go s.loop(ctx)
	log.Printf("[scheduler] refresh loop started (interval=%s)", s.interval)
}

// Stop cancels the loop, waits for the in-flight pass to finish and flushes
// pending cache writes so they survive the restart.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.resolver.Flush()
	log.Printf("[scheduler] refresh loop stopped")
}

func (s *Service) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RefreshStale(ctx)
		}
	}
}

// RefreshStale re-resolves every series whose resolution is older than the
// configured maximum age. Returns how many series were refreshed.
func (s *Service) RefreshStale(ctx context.Context) int {
	stale, err := s.store.ListStale(time.Now().Add(-s.maxAge))
	if err != nil {
		log.Printf("[scheduler] failed to list stale series: %v", err)
		return 0
	}
	if len(stale) == 0 {
		return 0
	}
	log.Printf("[scheduler] refreshing %d stale series", len(stale))

	var mu sync.Mutex
	refreshed := 0
	p := pool.New().WithMaxGoroutines(s.workers)
	for _, series := range stale {
		series := series
		p.Go(func() {
			if ctx.Err() != nil {
				return
			}
			meta, err := s.resolver.Resolve(ctx, series.Title, series.Year, resolver.Options{})
			if err != nil || meta == nil {
				return
			}
			if err := s.store.SaveResolution(series.ID, meta); err != nil {
				log.Printf("[scheduler] failed to persist refresh for %q: %v", series.Title, err)
				return
			}
			mu.Lock()
			refreshed++
			mu.Unlock()
		})
	}
	p.Wait()
	return refreshed
}
