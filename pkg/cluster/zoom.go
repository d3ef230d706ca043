package cluster

// ZoomBand maps zooms at or above MinZoom to a minimum marker separation
// in degrees.
type ZoomBand struct {
	MinZoom     float64 `yaml:"min_zoom" json:"min_zoom"`
	MinDistance float64 `yaml:"min_distance" json:"min_distance"`
}

// FallbackDistance applies below the lowest band
const FallbackDistance = 0.08 // ~8km

// DefaultZoomBands lists bands from highest zoom down
var DefaultZoomBands = []ZoomBand{
	{MinZoom: 14.0, MinDistance: 0.0005}, // ~50m
	{MinZoom: 12.0, MinDistance: 0.002},  // ~200m
	{MinZoom: 10.0, MinDistance: 0.005},  // ~500m
	{MinZoom: 9.0, MinDistance: 0.01},    // ~1km
	{MinZoom: 8.0, MinDistance: 0.02},    // ~2km
	{MinZoom: 7.0, MinDistance: 0.04},    // ~4km
}

// MinDistanceForZoom returns the minimum separation for a zoom level
// using DefaultZoomBands.
func MinDistanceForZoom(zoom float64) float64 {
	return minDistanceFor(DefaultZoomBands, FallbackDistance, zoom)
}

// minDistanceFor walks bands top-down; the first band whose MinZoom is
// reached wins.
func minDistanceFor(bands []ZoomBand, fallback, zoom float64) float64 {
	for _, band := range bands {
		if zoom >= band.MinZoom {
			return band.MinDistance
		}
	}
	return fallback
}
