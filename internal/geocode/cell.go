package geocode

import (
	"fmt"
	"math"
)

// metersPerDegree is the approximate ground distance of one degree of
// latitude.
const metersPerDegree = 111320.0

// Cell identifies one quantized grid cell. Photos whose coordinates fall
// in the same cell share a single provider lookup.
type Cell struct {
	LatBucket int64
	LonBucket int64
}

// snapToGrid maps a coordinate to its cell at the given cell size in
// meters. Longitude steps widen toward the poles; the cosine is clamped
// away from zero so cells stay finite at extreme latitudes.
func snapToGrid(lat, lon float64, cellM int) Cell {
	latStep := float64(cellM) / metersPerDegree

	cosLat := math.Abs(math.Cos(lat * math.Pi / 180))
	if cosLat < 0.1 {
		cosLat = 0.1
	}
	lonStep := float64(cellM) / (metersPerDegree * cosLat)

	return Cell{
		LatBucket: int64(math.Floor(lat / latStep)),
		LonBucket: int64(math.Floor(lon / lonStep)),
	}
}

// CacheKey returns the cache key for a coordinate: provider, cell size,
// and the two bucket indexes.
func CacheKey(provider string, cellM int, lat, lon float64) string {
	cell := snapToGrid(lat, lon, cellM)
	return fmt.Sprintf("%s:%d:%d:%d", provider, cellM, cell.LatBucket, cell.LonBucket)
}
