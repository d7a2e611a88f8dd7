// Package explore remembers which map rectangles have already been queried
// for each data category, so panning over a known area does not trigger
// another remote fetch.
//
// Stored regions of one category form a containment antichain: no region
// contains another. MarkExplored maintains this on every write.
package explore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/transit-cache/pkg/geo"
	"github.com/Sternrassler/transit-cache/pkg/storage"
)

// Config holds tracker configuration.
type Config struct {
	// TTL is how long an explored region stays fresh.
	TTL time.Duration
}

// DefaultConfig returns a configuration with a one hour TTL.
func DefaultConfig() Config {
	return Config{TTL: time.Hour}
}

// Region is a stored explored rectangle.
type Region struct {
	BBox       geo.BBox  `json:"bbox"`
	Type       string    `json:"type"`
	LastUpdate time.Time `json:"last_update"`
}

// Tracker records explored regions per category. Create one per store at
// startup and share it.
type Tracker struct {
	db     *sql.DB
	ttl    time.Duration
	logger zerolog.Logger
	now    func() time.Time
}

// NewTracker creates a tracker over the explored_region table.
func NewTracker(db *sql.DB, cfg Config, logger zerolog.Logger) *Tracker {
	if db == nil {
		panic("db cannot be nil")
	}
	if cfg.TTL <= 0 {
		panic(fmt.Sprintf("explore TTL must be positive, got %v", cfg.TTL))
	}
	return &Tracker{
		db:     db,
		ttl:    cfg.TTL,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock sets the time source (for testing).
func (t *Tracker) SetClock(now func() time.Time) {
	t.now = now
}

// TTL returns the configured region lifetime.
func (t *Tracker) TTL() time.Duration {
	return t.ttl
}

// MarkExplored records bbox as explored for typ.
//
// If a fresh region of typ already contains bbox nothing changes, and that
// region keeps its timestamp. Otherwise every region of typ that bbox
// contains is removed, along with expired regions containing bbox, and bbox
// is stored with the current time.
func (t *Tracker) MarkExplored(ctx context.Context, bbox geo.BBox, typ string) error {
	if !bbox.Valid() {
		return fmt.Errorf("%w: %s", geo.ErrInvalidBBox, bbox)
	}

	now := t.now()
	var (
		covered    bool
		expired    []Region
		superseded int64
	)

	err := storage.WithTx(ctx, t.db, func(q storage.Querier) error {
		containing, err := t.containing(ctx, q, bbox, typ)
		if err != nil {
			return err
		}

		for _, r := range containing {
			if t.isFresh(r, now) {
				covered = true
				return nil
			}
			expired = append(expired, r)
		}

		for _, r := range expired {
			if err := deleteRegion(ctx, q, r); err != nil {
				return err
			}
		}

		res, err := q.ExecContext(ctx, `
			DELETE FROM explored_region
			WHERE type = ? AND west >= ? AND north <= ? AND east <= ? AND south >= ?`,
			typ, bbox.West, bbox.North, bbox.East, bbox.South)
		if err != nil {
			return storage.Fail("delete contained regions", err)
		}
		superseded, _ = res.RowsAffected()

		_, err = q.ExecContext(ctx, `
			INSERT INTO explored_region (west, north, east, south, type, last_update)
			VALUES (?, ?, ?, ?, ?, ?)`,
			bbox.West, bbox.North, bbox.East, bbox.South, typ, now.Unix())
		if err != nil {
			return storage.Fail("insert region", err)
		}
		return nil
	})
	if err != nil {
		ExploreErrors.WithLabelValues("mark").Inc()
		return err
	}

	if covered {
		t.logger.Debug().
			Str("type", typ).
			Str("bbox", bbox.String()).
			Msg("Region already covered by fresh region")
		return nil
	}

	RegionsMarked.WithLabelValues(typ).Inc()
	RegionsEvicted.WithLabelValues(typ, "expired").Add(float64(len(expired)))
	RegionsEvicted.WithLabelValues(typ, "superseded").Add(float64(superseded))
	t.logger.Debug().
		Str("type", typ).
		Str("bbox", bbox.String()).
		Int64("superseded", superseded).
		Msg("Region marked explored")
	return nil
}

// IsExplored reports whether a fresh region of typ contains bbox.
//
// Every expired containing region met during the scan is deleted. An expired
// candidate never hides a fresh one.
func (t *Tracker) IsExplored(ctx context.Context, bbox geo.BBox, typ string) (bool, error) {
	if !bbox.Valid() {
		return false, fmt.Errorf("%w: %s", geo.ErrInvalidBBox, bbox)
	}

	now := t.now()
	containing, err := t.containing(ctx, t.db, bbox, typ)
	if err != nil {
		ExploreErrors.WithLabelValues("is_explored").Inc()
		return false, err
	}

	var (
		fresh   bool
		expired []Region
	)
	for _, r := range containing {
		if t.isFresh(r, now) {
			fresh = true
		} else {
			expired = append(expired, r)
		}
	}

	if len(expired) > 0 {
		if err := storage.WithTx(ctx, t.db, func(q storage.Querier) error {
			for _, r := range expired {
				if err := deleteRegion(ctx, q, r); err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			ExploreErrors.WithLabelValues("evict").Inc()
			return false, err
		}
		RegionsEvicted.WithLabelValues(typ, "expired").Add(float64(len(expired)))
		t.logger.Debug().
			Str("type", typ).
			Int("count", len(expired)).
			Msg("Evicted expired regions")
	}

	ExploreLookups.WithLabelValues(typ, fmt.Sprint(fresh)).Inc()
	return fresh, nil
}

// Regions lists the stored regions of typ, expired ones included.
func (t *Tracker) Regions(ctx context.Context, typ string) ([]Region, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT west, north, east, south, type, last_update FROM explored_region
		WHERE type = ?
		ORDER BY west, north, east, south`, typ)
	if err != nil {
		return nil, storage.Fail("list regions", err)
	}
	regions, err := scanRegions(rows)
	if err != nil {
		return nil, storage.Fail("list regions", err)
	}
	return regions, nil
}

// isFresh compares at the one-second resolution regions are stored with.
func (t *Tracker) isFresh(r Region, now time.Time) bool {
	return time.Unix(now.Unix(), 0).Sub(r.LastUpdate) <= t.ttl
}

// containing returns the regions of typ that contain bbox. Rows are fully
// read before returning so the caller may write on the same connection.
func (t *Tracker) containing(ctx context.Context, q storage.Querier, bbox geo.BBox, typ string) ([]Region, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT west, north, east, south, type, last_update FROM explored_region
		WHERE type = ? AND west <= ? AND north >= ? AND east >= ? AND south <= ?`,
		typ, bbox.West, bbox.North, bbox.East, bbox.South)
	if err != nil {
		return nil, storage.Fail("find containing regions", err)
	}
	regions, err := scanRegions(rows)
	if err != nil {
		return nil, storage.Fail("find containing regions", err)
	}
	return regions, nil
}

func scanRegions(rows *sql.Rows) ([]Region, error) {
	defer rows.Close()

	var out []Region
	for rows.Next() {
		var (
			r    Region
			secs int64
		)
		if err := rows.Scan(&r.BBox.West, &r.BBox.North, &r.BBox.East, &r.BBox.South, &r.Type, &secs); err != nil {
			return nil, err
		}
		r.LastUpdate = time.Unix(secs, 0)
		out = append(out, r)
	}
	return out, rows.Err()
}

func deleteRegion(ctx context.Context, q storage.Querier, r Region) error {
	_, err := q.ExecContext(ctx, `
		DELETE FROM explored_region
		WHERE type = ? AND west = ? AND north = ? AND east = ? AND south = ? AND last_update = ?`,
		r.Type, r.BBox.West, r.BBox.North, r.BBox.East, r.BBox.South, r.LastUpdate.Unix())
	return storage.Fail("delete region", err)
}
