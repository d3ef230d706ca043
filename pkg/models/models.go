package models

import "math"

// Location represents a geographic location with latitude and longitude
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Point is a station coordinate carrying the index of the station
// in the caller's list. The index is never dereferenced here.
type Point struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Index int32   `json:"index"`
}

// BoundingBox represents a rectangular lat/lon extent
type BoundingBox struct {
	MinLat float64 `json:"min_lat" yaml:"min_lat"`
	MaxLat float64 `json:"max_lat" yaml:"max_lat"`
	MinLon float64 `json:"min_lon" yaml:"min_lon"`
	MaxLon float64 `json:"max_lon" yaml:"max_lon"`
}

// Contains reports whether (lat, lon) lies inside the box, edges included.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat &&
		lon >= b.MinLon && lon <= b.MaxLon
}

// Mid returns the midpoint of both axes.
func (b BoundingBox) Mid() (midLat, midLon float64) {
	return (b.MinLat + b.MaxLat) / 2.0, (b.MinLon + b.MaxLon) / 2.0
}

// Center returns the midpoint as a Location
func (b BoundingBox) Center() Location {
	lat, lon := b.Mid()
	return Location{Lat: lat, Lon: lon}
}

// Valid reports whether min <= max holds on both axes.
func (b BoundingBox) Valid() bool {
	return b.MinLat <= b.MaxLat && b.MinLon <= b.MaxLon
}

// Pad grows the box on each axis by max(minPad, fraction*range).
func (b BoundingBox) Pad(minPad, fraction float64) BoundingBox {
	latPad := math.Max(minPad, (b.MaxLat-b.MinLat)*fraction)
	lonPad := math.Max(minPad, (b.MaxLon-b.MinLon)*fraction)

	return BoundingBox{
		MinLat: b.MinLat - latPad,
		MaxLat: b.MaxLat + latPad,
		MinLon: b.MinLon - lonPad,
		MaxLon: b.MaxLon + lonPad,
	}
}

// BoundsOf returns the observed extent of points, skipping non-finite
// coordinates. The second value is false when no point is usable.
func BoundsOf(points []Point) (BoundingBox, bool) {
	var box BoundingBox
	found := false
	for _, p := range points {
		if !finite(p.Lat) || !finite(p.Lon) {
			continue
		}
		if !found {
			box = BoundingBox{MinLat: p.Lat, MaxLat: p.Lat, MinLon: p.Lon, MaxLon: p.Lon}
			found = true
			continue
		}
		box.MinLat = math.Min(box.MinLat, p.Lat)
		box.MaxLat = math.Max(box.MaxLat, p.Lat)
		box.MinLon = math.Min(box.MinLon, p.Lon)
		box.MaxLon = math.Max(box.MaxLon, p.Lon)
	}
	return box, found
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ClusterItem is one marker handed to the rendering layer.
// StationIndex is -1 for aggregated clusters.
type ClusterItem struct {
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	Count        int     `json:"count"`
	IsCluster    bool    `json:"isCluster"`
	StationIndex int32   `json:"stationIndex"`
}
