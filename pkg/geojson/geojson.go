// Package geojson renders extracted markers as a GeoJSON FeatureCollection.
package geojson

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/1F47E/station-cluster/pkg/models"
)

// Property keys set on every feature
const (
	PropCount        = "count"
	PropCluster      = "cluster"
	PropStationIndex = "stationIndex"
)

// FeatureCollection converts markers to point features. GeoJSON orders
// coordinates lon, lat.
func FeatureCollection(items []models.ClusterItem) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if len(items) == 0 {
		return fc
	}

	bound := orb.Bound{
		Min: orb.Point{items[0].Lon, items[0].Lat},
		Max: orb.Point{items[0].Lon, items[0].Lat},
	}
	for _, item := range items {
		p := orb.Point{item.Lon, item.Lat}
		bound = bound.Extend(p)

		f := geojson.NewFeature(p)
		f.Properties[PropCount] = item.Count
		f.Properties[PropCluster] = item.IsCluster
		f.Properties[PropStationIndex] = int(item.StationIndex)
		fc.Append(f)
	}
	fc.BBox = geojson.NewBBox(bound)

	return fc
}

// Marshal encodes markers as a GeoJSON document
func Marshal(items []models.ClusterItem) ([]byte, error) {
	data, err := FeatureCollection(items).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal feature collection: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a document written by Marshal
func Unmarshal(data []byte) ([]models.ClusterItem, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal feature collection: %w", err)
	}

	items := make([]models.ClusterItem, 0, len(fc.Features))
	for i, f := range fc.Features {
		if f.Geometry == nil {
			return nil, fmt.Errorf("feature %d: missing geometry", i)
		}
		p, ok := f.Geometry.(orb.Point)
		if !ok {
			return nil, fmt.Errorf("feature %d: expected Point geometry, got %s", i, f.Geometry.GeoJSONType())
		}
		items = append(items, models.ClusterItem{
			Lat:          p.Lat(),
			Lon:          p.Lon(),
			Count:        f.Properties.MustInt(PropCount, 1),
			IsCluster:    f.Properties.MustBool(PropCluster, false),
			StationIndex: int32(f.Properties.MustInt(PropStationIndex, -1)),
		})
	}
	return items, nil
}

// Viewport converts an orb bound into a models bounding box
func Viewport(b orb.Bound) models.BoundingBox {
	return models.BoundingBox{
		MinLat: b.Min.Lat(),
		MaxLat: b.Max.Lat(),
		MinLon: b.Min.Lon(),
		MaxLon: b.Max.Lon(),
	}
}
