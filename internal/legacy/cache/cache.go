// Package cache adds a Redis read-through layer over legacy registry
// lookups so repeated poll cycles do not hammer the externally owned
// registry with identical queries.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"github.com/bcgov/nr-forest-client-sub003/internal/legacy"
	"github.com/bcgov/nr-forest-client-sub003/pkg/names"
)

var (
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nrfc_legacy_cache_hits_total",
		Help: "Legacy registry lookups served from cache, by lookup kind",
	}, []string{"lookup"})
	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nrfc_legacy_cache_misses_total",
		Help: "Legacy registry lookups that fell through to the registry, by lookup kind",
	}, []string{"lookup"})
)

const keyPrefix = "nrfc:legacy:"

// Registry decorates a legacy.Registry with a Redis cache. Cache failures
// degrade to direct lookups; empty (no match) results are cached too so a
// cold registry miss is not re-queried every cycle.
type Registry struct {
	inner  legacy.Registry
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// New constructs the caching decorator.
func New(inner legacy.Registry, client *redis.Client, ttl time.Duration, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{inner: inner, client: client, ttl: ttl, logger: logger}
}

func (r *Registry) FindByIncorporationNumber(ctx context.Context, incorporationNumber string) ([]string, error) {
	return r.lookup(ctx, "incorporation", key("incorp", incorporationNumber), func() ([]string, error) {
		return r.inner.FindByIncorporationNumber(ctx, incorporationNumber)
	})
}

func (r *Registry) FindByOrganizationName(ctx context.Context, name string) ([]string, error) {
	return r.lookup(ctx, "organization", key("org", names.Normalize(name)), func() ([]string, error) {
		return r.inner.FindByOrganizationName(ctx, name)
	})
}

func (r *Registry) FindByIndividual(ctx context.Context, firstName, lastName, birthdate string) ([]string, error) {
	k := key("ind", names.Normalize(firstName), names.Normalize(lastName), birthdate)
	return r.lookup(ctx, "individual", k, func() ([]string, error) {
		return r.inner.FindByIndividual(ctx, firstName, lastName, birthdate)
	})
}

func (r *Registry) FindByIndividualNames(ctx context.Context, firstName, lastName string) ([]string, error) {
	k := key("indname", names.Normalize(firstName), names.Normalize(lastName))
	return r.lookup(ctx, "individual_names", k, func() ([]string, error) {
		return r.inner.FindByIndividualNames(ctx, firstName, lastName)
	})
}

func (r *Registry) FindByDoingBusinessAs(ctx context.Context, name string) ([]string, error) {
	return r.lookup(ctx, "doing_business_as", key("dba", names.Normalize(name)), func() ([]string, error) {
		return r.inner.FindByDoingBusinessAs(ctx, name)
	})
}

func (r *Registry) lookup(ctx context.Context, kind, key string, fetch func() ([]string, error)) ([]string, error) {
	if cached, ok := r.get(ctx, key); ok {
		cacheHits.WithLabelValues(kind).Inc()
		return cached, nil
	}
	cacheMisses.WithLabelValues(kind).Inc()

	numbers, err := fetch()
	if err != nil {
		return nil, err
	}
	r.set(ctx, key, numbers)
	return numbers, nil
}

func (r *Registry) get(ctx context.Context, key string) ([]string, bool) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		r.logger.Warn("legacy cache read failed, falling through", "key", key, "error", err)
		return nil, false
	}
	var numbers []string
	if err := json.Unmarshal(data, &numbers); err != nil {
		r.logger.Warn("legacy cache entry corrupt, falling through", "key", key, "error", err)
		return nil, false
	}
	return numbers, true
}

func (r *Registry) set(ctx context.Context, key string, numbers []string) {
	if numbers == nil {
		numbers = []string{}
	}
	data, err := json.Marshal(numbers)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		r.logger.Warn("legacy cache write failed", "key", key, "error", err)
	}
}

func key(parts ...string) string {
	return keyPrefix + strings.Join(parts, ":")
}
