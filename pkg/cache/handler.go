package cache

import (
	"context"

	"github.com/Sternrassler/transit-cache/pkg/geo"
	"github.com/Sternrassler/transit-cache/pkg/storage"
)

// EntryHandler translates one kind of domain value to and from its own table.
// It is the only code that knows the table layout; Provider is schema-agnostic.
type EntryHandler[T any] interface {
	// TypeName is the metadata namespace for this kind.
	TypeName() string

	// Replace upserts the payload for id.
	Replace(ctx context.Context, q storage.Querier, id string, value T) error

	// Delete removes the payload for id. Deleting a missing payload is not an error.
	Delete(ctx context.Context, q storage.Querier, id string) error

	// LoadByID returns the payload for id. found is false when there is none;
	// err is reserved for storage failures.
	LoadByID(ctx context.Context, q storage.Querier, id string) (value T, found bool, err error)

	// LoadByBBox returns every payload positioned inside bbox.
	LoadByBBox(ctx context.Context, q storage.Querier, bbox geo.BBox) ([]T, error)
}

// NonSpatial can be embedded by handlers whose values have no position.
// Its LoadByBBox matches nothing.
type NonSpatial[T any] struct{}

// LoadByBBox returns an empty result.
func (NonSpatial[T]) LoadByBBox(context.Context, storage.Querier, geo.BBox) ([]T, error) {
	return nil, nil
}
