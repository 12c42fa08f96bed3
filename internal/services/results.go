package services

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/votepay/backend/internal/ledger"
	"github.com/votepay/backend/internal/metrics"
	"github.com/votepay/backend/internal/models"
)

// ResultsService is the Live Aggregation Cache: a Redis read-through cache
// over vote tallies. Without Redis it computes every request from the store.
//
// Every Invalidate bumps the event's generation. A recompute that started
// under an older generation never leaves its tally in the cache.
type ResultsService struct {
	repo    ledger.Repository
	redis   *redis.Client
	ttl     time.Duration
	metrics *metrics.Metrics
	group   singleflight.Group
	now     func() time.Time

	mu          sync.Mutex
	generations map[uuid.UUID]uint64
}

func NewResultsService(repo ledger.Repository, redisClient *redis.Client, ttl time.Duration, m *metrics.Metrics) *ResultsService {
	return &ResultsService{
		repo:        repo,
		redis:       redisClient,
		ttl:         ttl,
		metrics:     m,
		now:         func() time.Time { return time.Now().UTC() },
		generations: make(map[uuid.UUID]uint64),
	}
}

func (s *ResultsService) generation(eventID uuid.UUID) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[eventID]
}

func resultsKey(eventID uuid.UUID) string {
	return "results:" + eventID.String()
}

func (s *ResultsService) GetResults(ctx context.Context, eventID uuid.UUID) (*models.EventResults, error) {
	key := resultsKey(eventID)

	if s.redis != nil {
		data, err := s.redis.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var cached models.EventResults
			if jsonErr := json.Unmarshal(data, &cached); jsonErr == nil {
				s.metrics.ResultsCache.WithLabelValues("hit").Inc()
				return &cached, nil
			}
			log.Printf("[RESULTS] Discarding unreadable cache entry %s", key)
		case err != redis.Nil:
			s.metrics.ResultsCache.WithLabelValues("error").Inc()
			log.Printf("[RESULTS] Cache read failed for %s: %v", key, err)
		}
	}
	s.metrics.ResultsCache.WithLabelValues("miss").Inc()

	// The shared recompute outlives any single caller; readers arriving after
	// an invalidation start a new one.
	gen := s.generation(eventID)
	flight := key + "@" + strconv.FormatUint(gen, 10)
	ch := s.group.DoChan(flight, func() (interface{}, error) {
		return s.recompute(context.WithoutCancel(ctx), eventID, gen)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.EventResults), nil
	}
}

// recompute sums vote rows per candidate and reports counters that drifted
func (s *ResultsService) recompute(ctx context.Context, eventID uuid.UUID, gen uint64) (*models.EventResults, error) {
	tallies, err := s.repo.TallyEventVotes(ctx, eventID)
	if err != nil {
		return nil, err
	}

	for _, t := range tallies {
		if t.Votes != t.Counter {
			s.metrics.ResultsDrift.Inc()
			log.Printf("[RESULTS] Drift on candidate %s: counter=%d votes=%d", t.CandidateID, t.Counter, t.Votes)
		}
	}

	results := &models.EventResults{
		EventID:    eventID,
		Candidates: tallies,
		AsOf:       s.now(),
	}

	if s.redis != nil {
		s.store(ctx, results, gen)
	}
	return results, nil
}

// store caches results unless an invalidation happened since gen. The check
// is repeated after the write to catch an invalidation that raced the SET.
func (s *ResultsService) store(ctx context.Context, results *models.EventResults, gen uint64) {
	key := resultsKey(results.EventID)
	if s.generation(results.EventID) != gen {
		s.metrics.ResultsCache.WithLabelValues("stale").Inc()
		log.Printf("[RESULTS] Not caching %s: invalidated during recompute", key)
		return
	}

	data, err := json.Marshal(results)
	if err == nil {
		err = s.redis.Set(ctx, key, data, s.ttl).Err()
	}
	if err != nil {
		log.Printf("[RESULTS] Cache write failed for %s: %v", key, err)
		return
	}

	if s.generation(results.EventID) != gen {
		s.metrics.ResultsCache.WithLabelValues("stale").Inc()
		if err := s.redis.Del(ctx, key).Err(); err != nil {
			log.Printf("[RESULTS] Failed to drop stale entry %s: %v", key, err)
		}
	}
}

// Invalidate drops the cached entry so the next read recomputes
func (s *ResultsService) Invalidate(ctx context.Context, eventID uuid.UUID) error {
	s.mu.Lock()
	s.generations[eventID]++
	s.mu.Unlock()

	if s.redis == nil {
		return nil
	}
	return s.redis.Del(ctx, resultsKey(eventID)).Err()
}
