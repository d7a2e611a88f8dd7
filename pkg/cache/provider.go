package cache

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/transit-cache/pkg/geo"
	"github.com/Sternrassler/transit-cache/pkg/storage"
)

// Provider is a durable cache for one entity kind. It records and reports
// LastUpdate but never decides freshness; callers apply their own TTLs.
type Provider[T Entity] struct {
	db      *sql.DB
	meta    *MetadataStore
	handler EntryHandler[T]
	logger  zerolog.Logger
	now     func() time.Time
}

// NewProvider creates a cache provider composing the metadata store with handler.
func NewProvider[T Entity](db *sql.DB, handler EntryHandler[T], logger zerolog.Logger) *Provider[T] {
	if db == nil {
		panic("db cannot be nil")
	}
	if handler == nil {
		panic("handler cannot be nil")
	}
	return &Provider[T]{
		db:      db,
		meta:    NewMetadataStore(),
		handler: handler,
		logger:  logger.With().Str("cache_type", handler.TypeName()).Logger(),
		now:     time.Now,
	}
}

// TypeName returns the metadata namespace of the handled kind.
func (p *Provider[T]) TypeName() string {
	return p.handler.TypeName()
}

// SetClock sets the time source used to stamp writes (for testing).
func (p *Provider[T]) SetClock(now func() time.Time) {
	p.now = now
}

// Replace writes value and stamps its metadata with the current time.
// Metadata and payload become visible together.
func (p *Provider[T]) Replace(ctx context.Context, value T) error {
	if err := storage.WithTx(ctx, p.db, func(q storage.Querier) error {
		return p.replace(ctx, q, value, p.now())
	}); err != nil {
		CacheErrors.WithLabelValues("replace").Inc()
		return err
	}
	CacheWrites.WithLabelValues(p.TypeName()).Inc()
	return nil
}

// ReplaceAll writes every value in one transaction: readers see all of them
// or none of them.
func (p *Provider[T]) ReplaceAll(ctx context.Context, values []T) error {
	if len(values) == 0 {
		return nil
	}

	now := p.now()
	if err := storage.WithTx(ctx, p.db, func(q storage.Querier) error {
		for _, v := range values {
			if err := p.replace(ctx, q, v, now); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		CacheErrors.WithLabelValues("replace").Inc()
		return err
	}

	CacheWrites.WithLabelValues(p.TypeName()).Add(float64(len(values)))
	p.logger.Debug().Int("count", len(values)).Msg("Replaced cache entries")
	return nil
}

func (p *Provider[T]) replace(ctx context.Context, q storage.Querier, value T, at time.Time) error {
	id := value.EntityID()
	if err := p.meta.Replace(ctx, q, p.TypeName(), id, at); err != nil {
		return err
	}
	if err := p.handler.Replace(ctx, q, id, value); err != nil {
		return storage.Fail("replace "+p.TypeName(), err)
	}
	return nil
}

// Load returns the cached entry for id. found is false when the entity has no
// metadata, which is not an error.
//
// Metadata and payload are read without a transaction. A payload missing
// behind existing metadata is reported as not found with a consistency warning.
func (p *Provider[T]) Load(ctx context.Context, id string) (Entry[T], bool, error) {
	lastUpdate, found, err := p.meta.LastUpdate(ctx, p.db, p.TypeName(), id)
	if err != nil {
		CacheErrors.WithLabelValues("load").Inc()
		return Entry[T]{}, false, err
	}
	if !found {
		CacheMisses.WithLabelValues(p.TypeName()).Inc()
		p.logger.Debug().Str("id", id).Msg("Cache miss")
		return Entry[T]{}, false, nil
	}

	value, found, err := p.handler.LoadByID(ctx, p.db, id)
	if err != nil {
		CacheErrors.WithLabelValues("load").Inc()
		return Entry[T]{}, false, storage.Fail("load "+p.TypeName(), err)
	}
	if !found {
		ConsistencyWarnings.WithLabelValues(p.TypeName()).Inc()
		CacheMisses.WithLabelValues(p.TypeName()).Inc()
		p.logger.Warn().Str("id", id).Msg("Metadata without payload, treating as miss")
		return Entry[T]{}, false, nil
	}

	CacheHits.WithLabelValues(p.TypeName()).Inc()
	p.logger.Debug().
		Str("id", id).
		Time("last_update", lastUpdate).
		Msg("Cache hit")
	return Entry[T]{Value: value, LastUpdate: lastUpdate}, true, nil
}

// LoadBBox returns every cached entry positioned inside bbox. Values without
// metadata are dropped with a consistency warning.
func (p *Provider[T]) LoadBBox(ctx context.Context, bbox geo.BBox) ([]Entry[T], error) {
	values, err := p.handler.LoadByBBox(ctx, p.db, bbox)
	if err != nil {
		CacheErrors.WithLabelValues("load_bbox").Inc()
		return nil, storage.Fail("load "+p.TypeName()+" by bbox", err)
	}

	entries := make([]Entry[T], 0, len(values))
	for _, v := range values {
		id := v.EntityID()
		lastUpdate, found, err := p.meta.LastUpdate(ctx, p.db, p.TypeName(), id)
		if err != nil {
			CacheErrors.WithLabelValues("load_bbox").Inc()
			return nil, err
		}
		if !found {
			ConsistencyWarnings.WithLabelValues(p.TypeName()).Inc()
			p.logger.Warn().
				Str("id", id).
				Str("bbox", bbox.String()).
				Msg("Payload without metadata, dropping entry")
			continue
		}
		entries = append(entries, Entry[T]{Value: v, LastUpdate: lastUpdate})
	}

	p.logger.Debug().
		Str("bbox", bbox.String()).
		Int("count", len(entries)).
		Msg("Loaded cache entries by bbox")
	return entries, nil
}

// Contains reports whether id has been cached, regardless of age.
func (p *Provider[T]) Contains(ctx context.Context, id string) (bool, error) {
	ok, err := p.meta.Exists(ctx, p.db, p.TypeName(), id)
	if err != nil {
		CacheErrors.WithLabelValues("contains").Inc()
		return false, err
	}
	return ok, nil
}

// Delete removes the metadata and payload for id.
func (p *Provider[T]) Delete(ctx context.Context, id string) error {
	if err := storage.WithTx(ctx, p.db, func(q storage.Querier) error {
		if err := p.meta.Delete(ctx, q, p.TypeName(), id); err != nil {
			return err
		}
		return storage.Fail("delete "+p.TypeName(), p.handler.Delete(ctx, q, id))
	}); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return err
	}
	return nil
}
