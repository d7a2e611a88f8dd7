// Package transit defines the cached domain entities and the cache handlers
// that persist them, one table per entity kind.
package transit

import (
	"github.com/Sternrassler/transit-cache/pkg/geo"
)

// Type names used as cache metadata namespaces and exploration categories.
const (
	TypeBikeStation   = "bike_station"
	TypeSubwayStation = "subway_station"
	TypeLineIcon      = "line_icon"
	TypeBusRoute      = "bus_route"
)

// BikeStation is a bike-share dock with its live availability.
type BikeStation struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Location   geo.Point `json:"location"`
	FreeBikes  int       `json:"free_bikes"`
	EmptySlots int       `json:"empty_slots"`
	Online     bool      `json:"online"`
}

// EntityID implements cache.Entity.
func (s BikeStation) EntityID() string { return s.ID }

// Coordinates returns the station position.
func (s BikeStation) Coordinates() geo.Point { return s.Location }

// SubwayStation is a metro stop and the lines serving it.
type SubwayStation struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Location geo.Point `json:"location"`
	Lines    []string  `json:"lines"`
}

// EntityID implements cache.Entity.
func (s SubwayStation) EntityID() string { return s.ID }

// Coordinates returns the station position.
func (s SubwayStation) Coordinates() geo.Point { return s.Location }

// LineIcon is the rendered pictogram of a transit line.
type LineIcon struct {
	Line     string `json:"line"`
	Color    string `json:"color"`
	MimeType string `json:"mime_type"`
	Image    []byte `json:"image"`
}

// EntityID implements cache.Entity.
func (i LineIcon) EntityID() string { return i.Line }

// BusRoute is the ordered list of stations a bus route serves.
type BusRoute struct {
	RouteID    string   `json:"route_id"`
	StationIDs []string `json:"station_ids"`
}

// EntityID implements cache.Entity.
func (r BusRoute) EntityID() string { return r.RouteID }
