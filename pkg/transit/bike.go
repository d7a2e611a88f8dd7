package transit

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Sternrassler/transit-cache/pkg/cache"
	"github.com/Sternrassler/transit-cache/pkg/geo"
	"github.com/Sternrassler/transit-cache/pkg/storage"
)

// BikeStationHandler persists bike stations in the bike_station table.
type BikeStationHandler struct{}

var _ cache.EntryHandler[BikeStation] = (*BikeStationHandler)(nil)

// NewBikeStationHandler creates a bike station handler.
func NewBikeStationHandler() *BikeStationHandler {
	return &BikeStationHandler{}
}

// TypeName implements cache.EntryHandler.
func (h *BikeStationHandler) TypeName() string { return TypeBikeStation }

// Replace implements cache.EntryHandler.
func (h *BikeStationHandler) Replace(ctx context.Context, q storage.Querier, id string, s BikeStation) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO bike_station (id, name, lat, lon, free_bikes, empty_slots, online)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			lat = excluded.lat,
			lon = excluded.lon,
			free_bikes = excluded.free_bikes,
			empty_slots = excluded.empty_slots,
			online = excluded.online`,
		id, s.Name, s.Location.Lat, s.Location.Lon, s.FreeBikes, s.EmptySlots, s.Online)
	return err
}

// Delete implements cache.EntryHandler.
func (h *BikeStationHandler) Delete(ctx context.Context, q storage.Querier, id string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM bike_station WHERE id = ?`, id)
	return err
}

const bikeColumns = `id, name, lat, lon, free_bikes, empty_slots, online`

// LoadByID implements cache.EntryHandler.
func (h *BikeStationHandler) LoadByID(ctx context.Context, q storage.Querier, id string) (BikeStation, bool, error) {
	s, err := scanBike(q.QueryRowContext(ctx, `SELECT `+bikeColumns+` FROM bike_station WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return BikeStation{}, false, nil
	}
	if err != nil {
		return BikeStation{}, false, err
	}
	return s, true, nil
}

// LoadByBBox implements cache.EntryHandler. Edges are inclusive.
func (h *BikeStationHandler) LoadByBBox(ctx context.Context, q storage.Querier, b geo.BBox) ([]BikeStation, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+bikeColumns+` FROM bike_station
		WHERE lat BETWEEN ? AND ? AND lon BETWEEN ? AND ?
		ORDER BY id`,
		b.South, b.North, b.West, b.East)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BikeStation
	for rows.Next() {
		s, err := scanBike(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBike(row scanner) (BikeStation, error) {
	var s BikeStation
	err := row.Scan(&s.ID, &s.Name, &s.Location.Lat, &s.Location.Lon, &s.FreeBikes, &s.EmptySlots, &s.Online)
	return s, err
}
