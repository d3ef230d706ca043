package geojson

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1F47E/station-cluster/pkg/models"
)

func sampleItems() []models.ClusterItem {
	return []models.ClusterItem{
		{Lat: 51.5074, Lon: -0.1278, Count: 1, StationIndex: 3},
		{Lat: 53.4, Lon: -2.2, Count: 14, IsCluster: true, StationIndex: -1},
	}
}

func TestFeatureCollection(t *testing.T) {
	fc := FeatureCollection(sampleItems())
	require.Len(t, fc.Features, 2)

	first := fc.Features[0]
	point, ok := first.Geometry.(orb.Point)
	require.True(t, ok)
	assert.Equal(t, -0.1278, point.Lon())
	assert.Equal(t, 51.5074, point.Lat())
	assert.Equal(t, 1, first.Properties[PropCount])
	assert.Equal(t, false, first.Properties[PropCluster])
	assert.Equal(t, 3, first.Properties[PropStationIndex])

	second := fc.Features[1]
	assert.Equal(t, 14, second.Properties[PropCount])
	assert.Equal(t, true, second.Properties[PropCluster])
	assert.Equal(t, -1, second.Properties[PropStationIndex])

	bound := fc.BBox.Bound()
	assert.Equal(t, orb.Point{-2.2, 51.5074}, bound.Min)
	assert.Equal(t, orb.Point{-0.1278, 53.4}, bound.Max)
}

func TestFeatureCollectionEmpty(t *testing.T) {
	fc := FeatureCollection(nil)
	assert.Empty(t, fc.Features)
	assert.Nil(t, fc.BBox)

	data, err := Marshal(nil)
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "FeatureCollection", doc["type"])
}

func TestMarshalShape(t *testing.T) {
	data, err := Marshal(sampleItems())
	require.NoError(t, err)

	var doc struct {
		Type     string `json:"type"`
		Features []struct {
			Type     string `json:"type"`
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Equal(t, "FeatureCollection", doc.Type)
	require.Len(t, doc.Features, 2)
	assert.Equal(t, "Feature", doc.Features[0].Type)
	assert.Equal(t, "Point", doc.Features[0].Geometry.Type)
	assert.Equal(t, []float64{-0.1278, 51.5074}, doc.Features[0].Geometry.Coordinates)
	assert.Equal(t, float64(14), doc.Features[1].Properties[PropCount])
}

func TestUnmarshal(t *testing.T) {
	data, err := Marshal(sampleItems())
	require.NoError(t, err)

	items, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, sampleItems(), items)
}

func TestUnmarshalErrors(t *testing.T) {
	testCases := []struct {
		name string
		data string
	}{
		{"not json", `{`},
		{"line geometry", `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]},"properties":{}}]}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tc.data))
			assert.Error(t, err)
		})
	}
}

func TestViewport(t *testing.T) {
	box := Viewport(orb.Bound{Min: orb.Point{-8, 49}, Max: orb.Point{2, 61}})
	assert.Equal(t, models.BoundingBox{MinLat: 49, MaxLat: 61, MinLon: -8, MaxLon: 2}, box)
}
