package transit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Sternrassler/transit-cache/pkg/cache"
	"github.com/Sternrassler/transit-cache/pkg/geo"
	"github.com/Sternrassler/transit-cache/pkg/storage"
)

// SubwayStationHandler persists subway stations in the subway_station table.
// The served lines are stored as a JSON array.
type SubwayStationHandler struct{}

var _ cache.EntryHandler[SubwayStation] = (*SubwayStationHandler)(nil)

// NewSubwayStationHandler creates a subway station handler.
func NewSubwayStationHandler() *SubwayStationHandler {
	return &SubwayStationHandler{}
}

// TypeName implements cache.EntryHandler.
func (h *SubwayStationHandler) TypeName() string { return TypeSubwayStation }

// Replace implements cache.EntryHandler.
func (h *SubwayStationHandler) Replace(ctx context.Context, q storage.Querier, id string, s SubwayStation) error {
	lines := s.Lines
	if lines == nil {
		lines = []string{}
	}
	encoded, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("encode lines of %s: %w", id, err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO subway_station (id, name, lat, lon, lines)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			lat = excluded.lat,
			lon = excluded.lon,
			lines = excluded.lines`,
		id, s.Name, s.Location.Lat, s.Location.Lon, string(encoded))
	return err
}

// Delete implements cache.EntryHandler.
func (h *SubwayStationHandler) Delete(ctx context.Context, q storage.Querier, id string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM subway_station WHERE id = ?`, id)
	return err
}

// LoadByID implements cache.EntryHandler.
func (h *SubwayStationHandler) LoadByID(ctx context.Context, q storage.Querier, id string) (SubwayStation, bool, error) {
	s, err := scanSubway(q.QueryRowContext(ctx,
		`SELECT id, name, lat, lon, lines FROM subway_station WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return SubwayStation{}, false, nil
	}
	if err != nil {
		return SubwayStation{}, false, err
	}
	return s, true, nil
}

// LoadByBBox implements cache.EntryHandler. Edges are inclusive.
func (h *SubwayStationHandler) LoadByBBox(ctx context.Context, q storage.Querier, b geo.BBox) ([]SubwayStation, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, lat, lon, lines FROM subway_station
		WHERE lat BETWEEN ? AND ? AND lon BETWEEN ? AND ?
		ORDER BY id`,
		b.South, b.North, b.West, b.East)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SubwayStation
	for rows.Next() {
		s, err := scanSubway(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSubway(row scanner) (SubwayStation, error) {
	var (
		s     SubwayStation
		lines string
	)
	if err := row.Scan(&s.ID, &s.Name, &s.Location.Lat, &s.Location.Lon, &lines); err != nil {
		return SubwayStation{}, err
	}
	if err := json.Unmarshal([]byte(lines), &s.Lines); err != nil {
		return SubwayStation{}, fmt.Errorf("decode lines of %s: %w", s.ID, err)
	}
	return s, nil
}
