package transit

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Sternrassler/transit-cache/pkg/cache"
	"github.com/Sternrassler/transit-cache/pkg/storage"
)

// BusRouteHandler persists routes in the bus_route table and their stops in
// bus_route_station, one row per stop in route order.
type BusRouteHandler struct {
	cache.NonSpatial[BusRoute]
}

var _ cache.EntryHandler[BusRoute] = (*BusRouteHandler)(nil)

// NewBusRouteHandler creates a bus route handler.
func NewBusRouteHandler() *BusRouteHandler {
	return &BusRouteHandler{}
}

// TypeName implements cache.EntryHandler.
func (h *BusRouteHandler) TypeName() string { return TypeBusRoute }

// Replace implements cache.EntryHandler. The previous stop list is dropped
// first so a shorter route leaves no trailing stops behind.
func (h *BusRouteHandler) Replace(ctx context.Context, q storage.Querier, id string, r BusRoute) error {
	if err := h.Delete(ctx, q, id); err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, `INSERT INTO bus_route (route_id) VALUES (?)`, id); err != nil {
		return err
	}
	for seq, stationID := range r.StationIDs {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO bus_route_station (route_id, seq, station_id) VALUES (?, ?, ?)`,
			id, seq, stationID); err != nil {
			return err
		}
	}
	return nil
}

// Delete implements cache.EntryHandler.
func (h *BusRouteHandler) Delete(ctx context.Context, q storage.Querier, id string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM bus_route_station WHERE route_id = ?`, id); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx, `DELETE FROM bus_route WHERE route_id = ?`, id)
	return err
}

// LoadByID implements cache.EntryHandler. A stored route without stops is
// found with a nil stop list.
func (h *BusRouteHandler) LoadByID(ctx context.Context, q storage.Querier, id string) (BusRoute, bool, error) {
	var routeID string
	err := q.QueryRowContext(ctx, `SELECT route_id FROM bus_route WHERE route_id = ?`, id).Scan(&routeID)
	if errors.Is(err, sql.ErrNoRows) {
		return BusRoute{}, false, nil
	}
	if err != nil {
		return BusRoute{}, false, err
	}

	rows, err := q.QueryContext(ctx,
		`SELECT station_id FROM bus_route_station WHERE route_id = ? ORDER BY seq`, id)
	if err != nil {
		return BusRoute{}, false, err
	}
	defer rows.Close()

	r := BusRoute{RouteID: id}
	for rows.Next() {
		var stationID string
		if err := rows.Scan(&stationID); err != nil {
			return BusRoute{}, false, err
		}
		r.StationIDs = append(r.StationIDs, stationID)
	}
	if err := rows.Err(); err != nil {
		return BusRoute{}, false, err
	}
	return r, true, nil
}
