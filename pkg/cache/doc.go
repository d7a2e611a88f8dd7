// Package cache provides a durable per-entity-type cache on top of the embedded
// SQLite store.
//
// A Provider composes two pieces:
//
// - MetadataStore: one row per (type, id) recording when the entity was last
// written. It is the only source of truth for freshness.
// - EntryHandler: a strategy owning the table of one entity kind. It is the
// only translator between domain values and rows.
//
// The provider records LastUpdate but never decides freshness. Different
// callers apply different TTLs to the same data, so TTL policy stays with the
// caller (see package station).
//
// # Basic Usage
//
//	db, err := storage.Open(ctx, storage.DefaultConfig("transit.db"), logger)
//	if err != nil {
//		return err
//	}
//
//	bikes := cache.NewProvider[transit.BikeStation](db, transit.NewBikeStationHandler(), logger)
//
//	// Write one station (metadata and payload in one transaction)
//	if err := bikes.Replace(ctx, station); err != nil {
//		return err
//	}
//
//	// Read it back
//	entry, found, err := bikes.Load(ctx, "042")
//	if err != nil {
//		return err // storage failure
//	}
//	if !found {
//		// not cached - fetch from remote
//	}
//	if entry.IsStale(time.Now(), 15*time.Minute) {
//		// caller-specific TTL
//	}
//
// # Bulk Writes
//
// ReplaceAll writes a whole collection in one transaction so readers never
// observe a half-synchronized collection.
//
// # Spatial Reads
//
// LoadBBox delegates the spatial predicate to the handler and joins each
// result with its metadata. Handlers of kinds without a position embed
// NonSpatial, which matches nothing.
//
// # Consistency
//
// Single-entry reads are not isolated from writes: metadata and payload are
// read by separate statements. A payload found without metadata (or the
// reverse) is dropped and logged as a consistency warning, never returned as
// an error.
//
// # Metrics
//
//   - transit_cache_hits_total{type} - Loads that found an entry
//   - transit_cache_misses_total{type} - Loads that found nothing
//   - transit_cache_writes_total{type} - Entities written
//   - transit_cache_consistency_warnings_total{type} - Dropped mismatched entries
//   - transit_cache_errors_total{operation} - Storage errors
package cache
