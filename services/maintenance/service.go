package maintenance

import (
	"context"
	"log"
	"sync"
	"time"
)

// compactor is the slice of the document repository the compaction task
// needs.
type compactor interface {
	DeleteOlderThan(ctx context.Context, collection string, cutoff time.Time) (int64, error)
}

// Service physically deletes cache rows older than the freshness window.
// The read path already treats those rows as misses, so compaction never
// changes observable cache behavior; it only bounds growth. The service is
// opt-in and off by default.
type Service struct {
	repo       compactor
	collection string
	ttl        time.Duration
	interval   time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewService creates a compactor for one collection.
func NewService(repo compactor, collection string, ttl, interval time.Duration) *Service {
	return &Service{repo: repo, collection: collection, ttl: ttl, interval: interval}
}

// Start begins the background compaction loop.
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
	log.Printf("[maintenance] compaction started interval=%s ttl=%s", s.interval, s.ttl)
}

// Stop cancels the loop and waits for an in-flight pass to finish, bounded
// by the caller's context.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Println("[maintenance] compaction stopped")
	case <-ctx.Done():
		log.Println("[maintenance] compaction stopped (timeout)")
	}
	s.running = false
}

func (s *Service) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run one pass immediately on start.
	s.compact(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.compact(ctx)
		}
	}
}

// compact removes rows created before now-ttl. Failures are logged and the
// loop keeps going; the next tick retries.
func (s *Service) compact(ctx context.Context) {
	cutoff := time.Now().Add(-s.ttl)
	removed, err := s.repo.DeleteOlderThan(ctx, s.collection, cutoff)
	if err != nil {
		log.Printf("[maintenance] compaction pass failed: %v", err)
		return
	}
	if removed > 0 {
		log.Printf("[maintenance] removed %d expired %s rows", removed, s.collection)
	}
}
