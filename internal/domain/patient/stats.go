package patient

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	statsCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "records_stats_cache_hits_total",
		Help: "Dashboard statistics served from cache.",
	})
	statsCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "records_stats_cache_misses_total",
		Help: "Dashboard statistics recomputed from the record store.",
	})
)

const statsKey = "dashboard"

// StatsCache serves dashboard aggregates from a short-lived cache in front of
// the record store.
type StatsCache struct {
	store RecordStore
	cache *expirable.LRU[string, *Stats]
}

func NewStatsCache(store RecordStore, ttl time.Duration) *StatsCache {
	return &StatsCache{
		store: store,
		cache: expirable.NewLRU[string, *Stats](1, nil, ttl),
	}
}

// Get returns cached statistics, computing them on a miss. Errors are not
// cached.
func (c *StatsCache) Get(ctx context.Context) (*Stats, error) {
	if s, ok := c.cache.Get(statsKey); ok {
		statsCacheHits.Inc()
		return s, nil
	}
	statsCacheMisses.Inc()

	s, err := c.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.Add(statsKey, s)
	return s, nil
}

// Invalidate drops the cached statistics after a mutation.
func (c *StatsCache) Invalidate() {
	c.cache.Remove(statsKey)
}
