package regions

import (
	"math"
	"strings"

	"github.com/niper/niper-map/internal/pkg/domain"
)

//FilterByName returns the regions whose name contains term, ignoring case,
//in their original order. An empty term returns regions unchanged.
func FilterByName(regions []domain.Region, term string) []domain.Region {
	if term == "" {
		return regions
	}

	term = strings.ToLower(term)
	matches := []domain.Region{}

	for _, r := range regions {
		if strings.Contains(strings.ToLower(r.Name), term) {
			matches = append(matches, r)
		}
	}

	return matches
}

//CenterOf returns the midpoint of the bounding box around paths. This is not
//an area centroid and may fall outside a concave polygon. An empty paths
//yields the zero Point.
func CenterOf(paths []domain.Point) domain.Point {
	if len(paths) == 0 {
		return domain.Point{}
	}

	minLat, maxLat := math.Inf(1), math.Inf(-1)
	minLng, maxLng := math.Inf(1), math.Inf(-1)

	for _, p := range paths {
		minLat = math.Min(minLat, p.Lat)
		maxLat = math.Max(maxLat, p.Lat)
		minLng = math.Min(minLng, p.Lng)
		maxLng = math.Max(maxLng, p.Lng)
	}

	return domain.Point{
		Lat: (minLat + maxLat) / 2,
		Lng: (minLng + maxLng) / 2,
	}
}
