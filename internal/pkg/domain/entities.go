package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

//MinPolygonPoints is the smallest number of points that closes a polygon
const MinPolygonPoints int = 3

var (
	ErrMalformedDocument = errors.New("malformed region document")
	ErrEmptyName         = errors.New("region name must not be empty")
	ErrTooFewPoints      = fmt.Errorf("region must have at least %d points", MinPolygonPoints)
	ErrInvalidPoint      = errors.New("point is outside valid latitude/longitude range")
	ErrMissingField      = errors.New("required field is missing")
)

//Point is a geographic position in decimal degrees
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

//UnmarshalJSON requires both lat and lng to be present
func (p *Point) UnmarshalJSON(data []byte) error {
	w := struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	}{}

	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	if w.Lat == nil || w.Lng == nil {
		return fmt.Errorf("point %s: lat and lng: %w", string(data), ErrMissingField)
	}

	p.Lat, p.Lng = *w.Lat, *w.Lng
	return nil
}

//Valid reports whether the point lies within the WGS84 coordinate ranges
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

//Region contains a named polygon drawn over the campus map
type Region struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Paths       []Point `json:"paths"`
}

type storedRegion struct {
	ID          *int64  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Paths       []Point `json:"paths"`
}

//ValidatePaths checks that paths describe a closed polygon with valid points
func ValidatePaths(paths []Point) error {
	if len(paths) < MinPolygonPoints {
		return ErrTooFewPoints
	}

	for i, p := range paths {
		if !p.Valid() {
			return fmt.Errorf("point %d (%f,%f): %w", i, p.Lat, p.Lng, ErrInvalidPoint)
		}
	}

	return nil
}

//DecodeRegions parses a stored document and rejects it as a whole if any
//record is malformed or if two records share an id
func DecodeRegions(data []byte) ([]Region, error) {
	var stored []storedRegion

	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedDocument, err.Error())
	}

	if stored == nil {
		return nil, fmt.Errorf("%w: document is not a list", ErrMalformedDocument)
	}

	regions := make([]Region, 0, len(stored))
	seen := make(map[int64]struct{}, len(stored))

	for i, sr := range stored {
		if sr.ID == nil {
			return nil, fmt.Errorf("%w: record %d has no id", ErrMalformedDocument, i)
		}

		r := Region{ID: *sr.ID, Name: sr.Name, Description: sr.Description, Paths: sr.Paths}

		if r.Name == "" {
			return nil, fmt.Errorf("%w: record %d has no name", ErrMalformedDocument, i)
		}

		if err := ValidatePaths(r.Paths); err != nil {
			return nil, fmt.Errorf("%w: record %d (%d): %s", ErrMalformedDocument, i, r.ID, err.Error())
		}

		if _, ok := seen[r.ID]; ok {
			return nil, fmt.Errorf("%w: duplicate id %d", ErrMalformedDocument, r.ID)
		}
		seen[r.ID] = struct{}{}

		regions = append(regions, r)
	}

	return regions, nil
}

//EncodeRegions serialises regions into the stored document format. A nil
//slice is written as an empty list, never as null.
func EncodeRegions(regions []Region) ([]byte, error) {
	if regions == nil {
		regions = []Region{}
	}
	return json.Marshal(regions)
}
