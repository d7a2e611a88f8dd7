// Package station combines a station cache with the remote transit API.
//
// Reads are served from the cache while it is fresh enough for the caller;
// otherwise the remote is asked and the answer is written back. The bbox
// read path refreshes the whole collection at most once per interval.
package station

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/Sternrassler/transit-cache/pkg/cache"
	"github.com/Sternrassler/transit-cache/pkg/geo"
	"github.com/Sternrassler/transit-cache/pkg/refresh"
)

// Station is a cacheable value with a position.
type Station interface {
	cache.Entity
	Coordinates() geo.Point
}

// Remote retrieves stations from the transit API. Failures are returned as
// *client.FetchError by the HTTP implementation.
type Remote[T any] interface {
	RetrieveFreshStation(ctx context.Context, id string) (T, error)
	RetrieveAllStations(ctx context.Context) ([]T, error)
}

// Policy holds the freshness rules of one station kind.
type Policy struct {
	// TTL is the normal maximum age of a cached station.
	TTL time.Duration

	// FreshTTL is the near-real-time maximum age used by GetFreshStation.
	FreshTTL time.Duration

	// GlobalRefreshInterval is the minimum time between two full collection
	// fetches.
	GlobalRefreshInterval time.Duration
}

// Validate checks that every duration is positive.
func (p Policy) Validate() error {
	if p.TTL <= 0 {
		return fmt.Errorf("ttl must be positive, got %v", p.TTL)
	}
	if p.FreshTTL <= 0 {
		return fmt.Errorf("fresh ttl must be positive, got %v", p.FreshTTL)
	}
	if p.GlobalRefreshInterval <= 0 {
		return fmt.Errorf("global refresh interval must be positive, got %v", p.GlobalRefreshInterval)
	}
	return nil
}

// BikePolicy suits live bike availability.
func BikePolicy() Policy {
	return Policy{
		TTL:                   15 * time.Minute,
		FreshTTL:              30 * time.Second,
		GlobalRefreshInterval: 5 * time.Minute,
	}
}

// SubwayPolicy suits subway stations, which rarely change.
func SubwayPolicy() Policy {
	return Policy{
		TTL:                   24 * time.Hour,
		FreshTTL:              time.Hour,
		GlobalRefreshInterval: 24 * time.Hour,
	}
}

// Provider serves stations of one kind from cache or remote.
type Provider[T Station] struct {
	cache  *cache.Provider[T]
	remote Remote[T]
	policy Policy
	stamp  refresh.Stamp
	group  singleflight.Group
	logger zerolog.Logger
	now    func() time.Time
}

// NewProvider creates a station provider. The last global refresh starts at
// the zero time unless stamp says otherwise; pass nil for an in-memory stamp.
func NewProvider[T Station](c *cache.Provider[T], remote Remote[T], policy Policy, stamp refresh.Stamp, logger zerolog.Logger) *Provider[T] {
	if c == nil {
		panic("cache provider cannot be nil")
	}
	if remote == nil {
		panic("remote cannot be nil")
	}
	if err := policy.Validate(); err != nil {
		panic(fmt.Sprintf("invalid %s policy: %v", c.TypeName(), err))
	}
	if stamp == nil {
		stamp = refresh.NewMemoryStamp()
	}
	return &Provider[T]{
		cache:  c,
		remote: remote,
		policy: policy,
		stamp:  stamp,
		logger: logger.With().Str("station_type", c.TypeName()).Logger(),
		now:    time.Now,
	}
}

// SetClock sets the time source used for freshness decisions (for testing).
// It does not affect the timestamps the cache writes.
func (p *Provider[T]) SetClock(now func() time.Time) {
	p.now = now
}

// Policy returns the freshness rules.
func (p *Provider[T]) Policy() Policy {
	return p.policy
}

// GetStation returns the station, fetching it when it is not cached or older
// than the normal TTL.
func (p *Provider[T]) GetStation(ctx context.Context, id string) (T, error) {
	return p.get(ctx, id, p.policy.TTL, "normal")
}

// GetFreshStation is GetStation with the near-real-time TTL.
func (p *Provider[T]) GetFreshStation(ctx context.Context, id string) (T, error) {
	return p.get(ctx, id, p.policy.FreshTTL, "fresh")
}

func (p *Provider[T]) get(ctx context.Context, id string, ttl time.Duration, mode string) (T, error) {
	var zero T

	entry, found, err := p.cache.Load(ctx, id)
	if err != nil {
		return zero, err
	}

	// An uncached station is infinitely stale.
	if found && !entry.IsStale(p.now(), ttl) {
		StationReads.WithLabelValues(p.cache.TypeName(), mode, "cache").Inc()
		return entry.Value, nil
	}

	p.logger.Debug().
		Str("id", id).
		Bool("cached", found).
		Dur("ttl", ttl).
		Msg("Fetching station from remote")

	station, err := p.remote.RetrieveFreshStation(ctx, id)
	if err != nil {
		StationReads.WithLabelValues(p.cache.TypeName(), mode, "error").Inc()
		return zero, fmt.Errorf("retrieve %s %s: %w", p.cache.TypeName(), id, err)
	}

	if err := p.cache.Replace(ctx, station); err != nil {
		return zero, err
	}

	StationReads.WithLabelValues(p.cache.TypeName(), mode, "remote").Inc()
	return station, nil
}

// GetStations returns the stations inside bbox.
//
// A global refresh is due when the refresh interval has elapsed and the
// cached bbox entries are either empty or include a stale one. A due refresh
// fetches the whole collection, stores it atomically and returns the fetched
// stations inside bbox. Otherwise the cached entries are returned as they are.
func (p *Provider[T]) GetStations(ctx context.Context, bbox geo.BBox) ([]T, error) {
	if !bbox.Valid() {
		return nil, fmt.Errorf("%w: %s", geo.ErrInvalidBBox, bbox)
	}

	entries, err := p.cache.LoadBBox(ctx, bbox)
	if err != nil {
		return nil, err
	}

	due, err := p.refreshDue(ctx, entries)
	if err != nil {
		return nil, err
	}

	if !due {
		StationReads.WithLabelValues(p.cache.TypeName(), "bbox", "cache").Inc()
		out := make([]T, len(entries))
		for i, e := range entries {
			out[i] = e.Value
		}
		return out, nil
	}

	all, err := p.refreshAll(ctx)
	if err != nil {
		StationReads.WithLabelValues(p.cache.TypeName(), "bbox", "error").Inc()
		return nil, err
	}

	StationReads.WithLabelValues(p.cache.TypeName(), "bbox", "remote").Inc()
	var out []T
	for _, s := range all {
		if bbox.ContainsPoint(s.Coordinates()) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (p *Provider[T]) refreshDue(ctx context.Context, entries []cache.Entry[T]) (bool, error) {
	now := p.now()

	last, err := p.stamp.Last(ctx)
	if err != nil {
		return false, fmt.Errorf("read last global refresh: %w", err)
	}
	if now.Sub(last) < p.policy.GlobalRefreshInterval {
		return false, nil
	}

	if len(entries) == 0 {
		return true, nil
	}
	for _, e := range entries {
		if e.IsStale(now, p.policy.TTL) {
			return true, nil
		}
	}
	return false, nil
}

// refreshAll fetches and stores the whole collection. Concurrent callers
// share one fetch, which runs detached from any single caller's
// cancellation; a cancelled caller stops waiting without failing the others.
func (p *Provider[T]) refreshAll(ctx context.Context) ([]T, error) {
	fetchCtx := context.WithoutCancel(ctx)
	ch := p.group.DoChan("global", func() (any, error) {
		start := p.now()
		p.logger.Info().Msg("Starting global refresh")

		all, err := p.remote.RetrieveAllStations(fetchCtx)
		if err != nil {
			GlobalRefreshes.WithLabelValues(p.cache.TypeName(), "error").Inc()
			p.logger.Error().Err(err).Msg("Global refresh failed")
			return nil, fmt.Errorf("retrieve all %s: %w", p.cache.TypeName(), err)
		}

		if err := p.cache.ReplaceAll(fetchCtx, all); err != nil {
			GlobalRefreshes.WithLabelValues(p.cache.TypeName(), "error").Inc()
			return nil, err
		}

		if err := p.stamp.Mark(fetchCtx, start); err != nil {
			// The data is stored; the next call refreshes again at worst.
			p.logger.Warn().Err(err).Msg("Failed to record global refresh")
		}

		GlobalRefreshes.WithLabelValues(p.cache.TypeName(), "success").Inc()
		p.logger.Info().
			Int("stations", len(all)).
			Dur("duration", p.now().Sub(start)).
			Msg("Global refresh complete")
		return all, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			p.logger.Debug().Msg("Joined in-flight global refresh")
		}
		return res.Val.([]T), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
