package cache

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/transit-cache/pkg/geo"
	"github.com/Sternrassler/transit-cache/pkg/storage"
)

type dock struct {
	ID       string
	Name     string
	Location geo.Point
}

func (d dock) EntityID() string { return d.ID }

// dockHandler stores docks in a table created by the test.
type dockHandler struct {
	failOn string
}

func (h *dockHandler) TypeName() string { return "dock" }

func (h *dockHandler) Replace(ctx context.Context, q storage.Querier, id string, d dock) error {
	if id == h.failOn {
		return errors.New("refusing " + id)
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO dock (id, name, lat, lon) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, lat = excluded.lat, lon = excluded.lon`,
		id, d.Name, d.Location.Lat, d.Location.Lon)
	return err
}

func (h *dockHandler) Delete(ctx context.Context, q storage.Querier, id string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM dock WHERE id = ?`, id)
	return err
}

func (h *dockHandler) LoadByID(ctx context.Context, q storage.Querier, id string) (dock, bool, error) {
	var d dock
	err := q.QueryRowContext(ctx, `SELECT id, name, lat, lon FROM dock WHERE id = ?`, id).
		Scan(&d.ID, &d.Name, &d.Location.Lat, &d.Location.Lon)
	if errors.Is(err, sql.ErrNoRows) {
		return dock{}, false, nil
	}
	if err != nil {
		return dock{}, false, err
	}
	return d, true, nil
}

func (h *dockHandler) LoadByBBox(ctx context.Context, q storage.Querier, b geo.BBox) ([]dock, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, lat, lon FROM dock
		WHERE lon >= ? AND lon <= ? AND lat >= ? AND lat <= ?
		ORDER BY id`, b.West, b.East, b.South, b.North)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []dock
	for rows.Next() {
		var d dock
		if err := rows.Scan(&d.ID, &d.Name, &d.Location.Lat, &d.Location.Lon); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// tag has no position.
type tag struct {
	Name string
}

func (t tag) EntityID() string { return t.Name }

type tagHandler struct {
	NonSpatial[tag]
}

func (tagHandler) TypeName() string { return "tag" }

func (tagHandler) Replace(ctx context.Context, q storage.Querier, id string, _ tag) error {
	_, err := q.ExecContext(ctx, `INSERT OR REPLACE INTO tag (name) VALUES (?)`, id)
	return err
}

func (tagHandler) Delete(ctx context.Context, q storage.Querier, id string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM tag WHERE name = ?`, id)
	return err
}

func (tagHandler) LoadByID(ctx context.Context, q storage.Querier, id string) (tag, bool, error) {
	var name string
	err := q.QueryRowContext(ctx, `SELECT name FROM tag WHERE name = ?`, id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return tag{}, false, nil
	}
	return tag{Name: name}, err == nil, err
}

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func countRows(t *testing.T, db *sql.DB, q string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(q, args...).Scan(&n))
	return n
}

func setupProvider(t *testing.T) (*Provider[dock], *dockHandler, *sql.DB, *fakeClock) {
	t.Helper()

	ctx := context.Background()
	db, err := storage.Open(ctx, storage.DefaultConfig(filepath.Join(t.TempDir(), "cache.db")), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE dock (id TEXT PRIMARY KEY, name TEXT, lat INTEGER, lon INTEGER)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE tag (name TEXT PRIMARY KEY)`)
	require.NoError(t, err)

	h := &dockHandler{}
	clock := newFakeClock()
	p := NewProvider[dock](db, h, zerolog.Nop())
	p.SetClock(clock.Now)
	return p, h, db, clock
}

func TestNewProvider_Panic(t *testing.T) {
	assert.Panics(t, func() { NewProvider[dock](nil, &dockHandler{}, zerolog.Nop()) })
}

func TestProvider_ReplaceAndLoad(t *testing.T) {
	p, _, _, clock := setupProvider(t)
	ctx := context.Background()

	d := dock{ID: "d1", Name: "Kamppi", Location: geo.PointFromDegrees(60.1690, 24.9310)}
	require.NoError(t, p.Replace(ctx, d))

	entry, found, err := p.Load(ctx, "d1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, d, entry.Value)
	assert.True(t, entry.LastUpdate.Equal(clock.Now()), "lastUpdate = %v, want %v", entry.LastUpdate, clock.Now())
}

func TestProvider_Load_Absent(t *testing.T) {
	p, _, _, _ := setupProvider(t)

	_, found, err := p.Load(context.Background(), "missing")
	require.NoError(t, err, "absence is not an error")
	assert.False(t, found)
}

func TestProvider_Replace_IsUpsert(t *testing.T) {
	p, _, db, clock := setupProvider(t)
	ctx := context.Background()

	require.NoError(t, p.Replace(ctx, dock{ID: "d1", Name: "old"}))
	clock.Advance(10 * time.Minute)
	require.NoError(t, p.Replace(ctx, dock{ID: "d1", Name: "new"}))

	assert.Equal(t, 1, countRows(t, db, `SELECT COUNT(*) FROM cache_metadata WHERE type = 'dock' AND id = 'd1'`))

	entry, found, err := p.Load(ctx, "d1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "new", entry.Value.Name)
	assert.True(t, entry.LastUpdate.Equal(clock.Now()), "timestamp must be bumped")
}

func TestProvider_Contains_IgnoresAge(t *testing.T) {
	p, _, _, clock := setupProvider(t)
	ctx := context.Background()

	ok, err := p.Contains(ctx, "d1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, p.Replace(ctx, dock{ID: "d1"}))
	clock.Advance(365 * 24 * time.Hour)

	ok, err = p.Contains(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestProvider_ReplaceAll_Atomic(t *testing.T) {
	p, h, db, _ := setupProvider(t)
	ctx := context.Background()

	h.failOn = "d3"
	err := p.ReplaceAll(ctx, []dock{{ID: "d1"}, {ID: "d2"}, {ID: "d3"}})
	require.Error(t, err)
	assert.True(t, storage.IsFailure(err))

	assert.Equal(t, 0, countRows(t, db, `SELECT COUNT(*) FROM cache_metadata`))
	assert.Equal(t, 0, countRows(t, db, `SELECT COUNT(*) FROM dock`))

	h.failOn = ""
	require.NoError(t, p.ReplaceAll(ctx, []dock{{ID: "d1"}, {ID: "d2"}, {ID: "d3"}}))
	assert.Equal(t, 3, countRows(t, db, `SELECT COUNT(*) FROM cache_metadata WHERE type = 'dock'`))
	assert.Equal(t, 3, countRows(t, db, `SELECT COUNT(*) FROM dock`))
}

func TestProvider_ReplaceAll_Empty(t *testing.T) {
	p, _, _, _ := setupProvider(t)
	assert.NoError(t, p.ReplaceAll(context.Background(), nil))
}

func TestProvider_LoadBBox(t *testing.T) {
	p, _, _, _ := setupProvider(t)
	ctx := context.Background()

	inside := dock{ID: "in", Location: geo.PointFromDegrees(60.17, 24.94)}
	outside := dock{ID: "out", Location: geo.PointFromDegrees(61.50, 23.76)}
	require.NoError(t, p.ReplaceAll(ctx, []dock{inside, outside}))

	entries, err := p.LoadBBox(ctx, geo.BBoxFromDegrees(24.8, 60.3, 25.1, 60.1))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, inside, entries[0].Value)
}

func TestProvider_LoadBBox_DropsOrphanPayload(t *testing.T) {
	p, _, db, _ := setupProvider(t)
	ctx := context.Background()

	require.NoError(t, p.Replace(ctx, dock{ID: "kept", Location: geo.PointFromDegrees(60.17, 24.94)}))
	_, err := db.Exec(`INSERT INTO dock (id, name, lat, lon) VALUES ('orphan', '', ?, ?)`,
		geo.FromDegrees(60.18), geo.FromDegrees(24.95))
	require.NoError(t, err)

	entries, err := p.LoadBBox(ctx, geo.BBoxFromDegrees(24.8, 60.3, 25.1, 60.1))
	require.NoError(t, err, "missing metadata is a warning, not an error")
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0].Value.ID)
}

func TestProvider_Load_MetadataWithoutPayload(t *testing.T) {
	p, _, db, _ := setupProvider(t)
	ctx := context.Background()

	require.NoError(t, p.Replace(ctx, dock{ID: "d1"}))
	_, err := db.Exec(`DELETE FROM dock WHERE id = 'd1'`)
	require.NoError(t, err)

	_, found, err := p.Load(ctx, "d1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestProvider_Delete(t *testing.T) {
	p, _, db, _ := setupProvider(t)
	ctx := context.Background()

	require.NoError(t, p.Replace(ctx, dock{ID: "d1"}))
	require.NoError(t, p.Delete(ctx, "d1"))

	ok, err := p.Contains(ctx, "d1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, countRows(t, db, `SELECT COUNT(*) FROM dock`))

	require.NoError(t, p.Delete(ctx, "never-existed"))
}

func TestProvider_NonSpatialBBoxIsEmpty(t *testing.T) {
	_, _, db, _ := setupProvider(t)
	ctx := context.Background()

	tags := NewProvider[tag](db, tagHandler{}, zerolog.Nop())
	require.NoError(t, tags.Replace(ctx, tag{Name: "M1"}))

	entries, err := tags.LoadBBox(ctx, geo.BBoxFromDegrees(-180, 90, 180, -90))
	require.NoError(t, err)
	assert.Empty(t, entries)

	entry, found, err := tags.Load(ctx, "M1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "M1", entry.Value.Name)
}

func TestProvider_TypesAreNamespaced(t *testing.T) {
	p, _, db, _ := setupProvider(t)
	ctx := context.Background()

	tags := NewProvider[tag](db, tagHandler{}, zerolog.Nop())
	require.NoError(t, tags.Replace(ctx, tag{Name: "same-id"}))

	ok, err := p.Contains(ctx, "same-id")
	require.NoError(t, err)
	assert.False(t, ok, "a tag id must not be visible to the dock provider")
}

func TestMetadataStore_Count(t *testing.T) {
	p, _, db, _ := setupProvider(t)
	ctx := context.Background()

	require.NoError(t, p.ReplaceAll(ctx, []dock{{ID: "a"}, {ID: "b"}}))
	n, err := NewMetadataStore().Count(ctx, db, "dock")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
