// Package geo provides fixed-point geographic coordinates and bounding boxes.
//
// Coordinates are stored as microdegrees (degrees × 1,000,000) in signed 32-bit
// integers, the same convention used by the map stack. All comparisons are exact
// integer comparisons, so containment checks never suffer from float rounding.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Microdegrees is a fixed-point coordinate equal to degrees × 1e6.
type Microdegrees int32

// microPerDegree is the fixed-point scale.
const microPerDegree = 1_000_000

// ErrInvalidBBox is returned for boxes that fail Valid or cannot be parsed.
var ErrInvalidBBox = errors.New("invalid bbox")

// FromDegrees converts decimal degrees to microdegrees, rounding to nearest.
func FromDegrees(deg float64) Microdegrees {
	return Microdegrees(math.Round(deg * microPerDegree))
}

// Degrees returns the coordinate as decimal degrees.
func (m Microdegrees) Degrees() float64 {
	return float64(m) / microPerDegree
}

// Point is a geographic position.
type Point struct {
	Lat Microdegrees `json:"lat"`
	Lon Microdegrees `json:"lon"`
}

// PointFromDegrees builds a Point from decimal degrees.
func PointFromDegrees(lat, lon float64) Point {
	return Point{Lat: FromDegrees(lat), Lon: FromDegrees(lon)}
}

// BBox is an axis-aligned rectangle. North is the larger latitude, East the
// larger longitude. Edges are inclusive.
type BBox struct {
	West  Microdegrees `json:"west"`
	North Microdegrees `json:"north"`
	East  Microdegrees `json:"east"`
	South Microdegrees `json:"south"`
}

// BBoxFromDegrees builds a BBox from decimal degrees.
func BBoxFromDegrees(west, north, east, south float64) BBox {
	return BBox{
		West:  FromDegrees(west),
		North: FromDegrees(north),
		East:  FromDegrees(east),
		South: FromDegrees(south),
	}
}

// Valid reports whether the box has non-negative width and height.
func (b BBox) Valid() bool {
	return b.West <= b.East && b.South <= b.North
}

// Contains reports whether other lies entirely within b (edges included).
func (b BBox) Contains(other BBox) bool {
	return b.West <= other.West &&
		b.East >= other.East &&
		b.North >= other.North &&
		b.South <= other.South
}

// ContainsPoint reports whether p lies within b (edges included).
func (b BBox) ContainsPoint(p Point) bool {
	return p.Lon >= b.West && p.Lon <= b.East &&
		p.Lat >= b.South && p.Lat <= b.North
}

// String returns the box as "west,north,east,south" in decimal degrees.
func (b BBox) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f",
		b.West.Degrees(), b.North.Degrees(), b.East.Degrees(), b.South.Degrees())
}

// ParseBBox parses "west,north,east,south" given in decimal degrees.
func ParseBBox(s string) (BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BBox{}, fmt.Errorf("%w %q: want 4 comma-separated values, got %d", ErrInvalidBBox, s, len(parts))
	}

	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BBox{}, fmt.Errorf("%w %q: value %d: %v", ErrInvalidBBox, s, i, err)
		}
		vals[i] = v
	}

	b := BBoxFromDegrees(vals[0], vals[1], vals[2], vals[3])
	if !b.Valid() {
		return BBox{}, fmt.Errorf("%w %q: west must be <= east and south <= north", ErrInvalidBBox, s)
	}
	return b, nil
}
