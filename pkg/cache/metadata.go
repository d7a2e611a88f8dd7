package cache

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Sternrassler/transit-cache/pkg/storage"
)

// MetadataStore persists the (type, id) -> last update mapping. It is the only
// source of truth for when an entity was last written.
//
// Methods take a storage.Querier so the same store can take part in the
// caller's transaction.
type MetadataStore struct{}

// NewMetadataStore creates a metadata store over the cache_metadata table.
func NewMetadataStore() *MetadataStore {
	return &MetadataStore{}
}

// Replace upserts the row for (typ, id) with the given timestamp.
func (s *MetadataStore) Replace(ctx context.Context, q storage.Querier, typ, id string, at time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO cache_metadata (type, id, last_update) VALUES (?, ?, ?)
		ON CONFLICT (type, id) DO UPDATE SET last_update = excluded.last_update`,
		typ, id, at.UnixMilli())
	return storage.Fail("replace metadata", err)
}

// LastUpdate returns when (typ, id) was last written. found is false when no
// row exists.
func (s *MetadataStore) LastUpdate(ctx context.Context, q storage.Querier, typ, id string) (time.Time, bool, error) {
	var millis int64
	err := q.QueryRowContext(ctx,
		`SELECT last_update FROM cache_metadata WHERE type = ? AND id = ?`, typ, id).Scan(&millis)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, storage.Fail("load metadata", err)
	}
	return time.UnixMilli(millis), true, nil
}

// Exists reports whether a row for (typ, id) exists.
func (s *MetadataStore) Exists(ctx context.Context, q storage.Querier, typ, id string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx,
		`SELECT 1 FROM cache_metadata WHERE type = ? AND id = ?`, typ, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storage.Fail("check metadata", err)
	}
	return true, nil
}

// Delete removes the row for (typ, id). Deleting a missing row is not an error.
func (s *MetadataStore) Delete(ctx context.Context, q storage.Querier, typ, id string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM cache_metadata WHERE type = ? AND id = ?`, typ, id)
	return storage.Fail("delete metadata", err)
}

// Count returns the number of rows for typ.
func (s *MetadataStore) Count(ctx context.Context, q storage.Querier, typ string) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cache_metadata WHERE type = ?`, typ).Scan(&n); err != nil {
		return 0, storage.Fail("count metadata", err)
	}
	return n, nil
}
