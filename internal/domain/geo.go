package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"sosnet/pkg/e"
)

// BoundingBox is a viewport on the map. MinLng > MaxLng describes a box
// that crosses the antimeridian.
type BoundingBox struct {
	MinLat float64 `json:"minLat"`
	MinLng float64 `json:"minLng"`
	MaxLat float64 `json:"maxLat"`
	MaxLng float64 `json:"maxLng"`
}

var WorldBox = BoundingBox{MinLat: -90, MinLng: -180, MaxLat: 90, MaxLng: 180}

func (b BoundingBox) Validate() error {
	for _, v := range []float64{b.MinLat, b.MinLng, b.MaxLat, b.MaxLng} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return e.NewValidationError("bbox", "coordinates must be finite")
		}
	}
	if b.MinLat < -90 || b.MaxLat > 90 {
		return e.NewValidationError("bbox", "latitude out of range")
	}
	if b.MinLng < -180 || b.MinLng > 180 || b.MaxLng < -180 || b.MaxLng > 180 {
		return e.NewValidationError("bbox", "longitude out of range")
	}
	if b.MinLat > b.MaxLat {
		return e.NewValidationError("bbox", "minLat greater than maxLat")
	}
	return nil
}

func (b BoundingBox) CrossesAntimeridian() bool {
	return b.MinLng > b.MaxLng
}

func (b BoundingBox) Contains(loc Location) bool {
	if loc.Lat < b.MinLat || loc.Lat > b.MaxLat {
		return false
	}
	if b.CrossesAntimeridian() {
		return loc.Lng >= b.MinLng || loc.Lng <= b.MaxLng
	}
	return loc.Lng >= b.MinLng && loc.Lng <= b.MaxLng
}

// Split returns one or two non-wrapping boxes covering b.
func (b BoundingBox) Split() []BoundingBox {
	if !b.CrossesAntimeridian() {
		return []BoundingBox{b}
	}
	return []BoundingBox{
		{MinLat: b.MinLat, MinLng: b.MinLng, MaxLat: b.MaxLat, MaxLng: 180},
		{MinLat: b.MinLat, MinLng: -180, MaxLat: b.MaxLat, MaxLng: b.MaxLng},
	}
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", b.MinLat, b.MinLng, b.MaxLat, b.MaxLng)
}

// ParseBoundingBox parses "minLat,minLng,maxLat,maxLng". An empty string
// yields the whole world.
func ParseBoundingBox(s string) (BoundingBox, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return WorldBox, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BoundingBox{}, e.NewValidationError("bbox", fmt.Sprintf("expected 4 comma separated values, got %d", len(parts)))
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BoundingBox{}, e.NewValidationError("bbox", fmt.Sprintf("value %d is not a number", i+1))
		}
		vals[i] = v
	}
	box := BoundingBox{MinLat: vals[0], MinLng: vals[1], MaxLat: vals[2], MaxLng: vals[3]}
	if err := box.Validate(); err != nil {
		return BoundingBox{}, err
	}
	return box, nil
}

// ParseStates parses a comma separated state filter. Empty input returns nil.
func ParseStates(s string) ([]IncidentState, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var out []IncidentState
	for _, p := range strings.Split(s, ",") {
		st := IncidentState(strings.TrimSpace(p))
		if !st.Valid() {
			return nil, e.NewValidationError("state", fmt.Sprintf("unknown value %q", st))
		}
		out = append(out, st)
	}
	return out, nil
}
