package markers

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/1F47E/station-cluster/pkg/cluster"
	"github.com/1F47E/station-cluster/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ukMarkers() []models.ClusterItem {
	return []models.ClusterItem{
		{Lat: 51.5074, Lon: -0.1278, Count: 1, StationIndex: 0},                   // London
		{Lat: 53.4808, Lon: -2.2426, Count: 1, StationIndex: 1},                   // Manchester
		{Lat: 55.9533, Lon: -3.1883, Count: 1, StationIndex: 2},                   // Edinburgh
		{Lat: 51.4545, Lon: -2.5879, Count: 12, IsCluster: true, StationIndex: -1}, // Bristol area
		{Lat: 50.3755, Lon: -4.1427, Count: 1, StationIndex: 4},                   // Plymouth
	}
}

func TestNewIndex(t *testing.T) {
	index := NewIndex(ukMarkers())
	assert.NotNil(t, index)
	assert.NotNil(t, index.tree)
	assert.Equal(t, int64(5), index.Count())

	empty := NewIndex(nil)
	assert.Equal(t, int64(0), empty.Count())
	assert.Empty(t, empty.Nearest(models.Location{Lat: 51, Lon: 0}, 3))
}

func TestQueryBox(t *testing.T) {
	index := NewIndex(ukMarkers())

	// South of England
	box := models.BoundingBox{MinLat: 50.0, MaxLat: 52.0, MinLon: -5.0, MaxLon: 0.0}
	results, err := index.QueryBox(box)
	require.NoError(t, err)
	assert.Len(t, results, 3)

	seen := make(map[int32]bool)
	for _, item := range results {
		seen[item.StationIndex] = true
	}
	assert.True(t, seen[0])
	assert.True(t, seen[-1])
	assert.True(t, seen[4])
	assert.False(t, seen[1])
	assert.False(t, seen[2])
}

func TestQueryBoxEdgesIncluded(t *testing.T) {
	index := NewIndex(ukMarkers())

	box := models.BoundingBox{MinLat: 51.5074, MaxLat: 51.5074, MinLon: -0.1278, MaxLon: -0.1278}
	results, err := index.QueryBox(box)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int32(0), results[0].StationIndex)
}

func TestQueryBoxInvalid(t *testing.T) {
	index := NewIndex(ukMarkers())

	_, err := index.QueryBox(models.BoundingBox{MinLat: 55, MaxLat: 50, MinLon: -1, MaxLon: 0})
	assert.Error(t, err)
}

func TestNearest(t *testing.T) {
	index := NewIndex(ukMarkers())

	// Reading is closest to London, then Bristol
	results := index.Nearest(models.Location{Lat: 51.4543, Lon: -0.9781}, 2)
	require.Len(t, results, 2)
	assert.Equal(t, int32(0), results[0].StationIndex)
	assert.Equal(t, int32(-1), results[1].StationIndex)

	assert.Nil(t, index.Nearest(models.Location{}, 0))
}

func TestHit(t *testing.T) {
	index := NewIndex(ukMarkers())

	testCases := []struct {
		name     string
		center   models.Location
		radiusKm float64
		found    bool
		expected int32
	}{
		{"tap on London", models.Location{Lat: 51.508, Lon: -0.128}, 1, true, 0},
		{"tap near Edinburgh", models.Location{Lat: 55.96, Lon: -3.19}, 2, true, 2},
		{"tap in the North Sea", models.Location{Lat: 56.5, Lon: 1.5}, 5, false, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			item, ok := index.Hit(tc.center, tc.radiusKm)
			assert.Equal(t, tc.found, ok)
			if tc.found {
				assert.Equal(t, tc.expected, item.StationIndex)
			}
		})
	}
}

func TestNearestUsesGreatCircleDistance(t *testing.T) {
	// at 52N a degree of longitude is much shorter than a degree of
	// latitude, so east is nearer than north on the ground
	center := models.Location{Lat: 52, Lon: 0}
	index := NewIndex([]models.ClusterItem{
		{Lat: 52, Lon: 0.009, Count: 1, StationIndex: 1},   // 0.62 km east
		{Lat: 52.0085, Lon: 0, Count: 1, StationIndex: 2},  // 0.95 km north
		{Lat: 52.05, Lon: 0.05, Count: 1, StationIndex: 3}, // far away
	})

	nearest := index.Nearest(center, 1)
	require.Len(t, nearest, 1)
	assert.Equal(t, int32(1), nearest[0].StationIndex)

	nearest = index.Nearest(center, 2)
	require.Len(t, nearest, 2)
	assert.Equal(t, int32(1), nearest[0].StationIndex)
	assert.Equal(t, int32(2), nearest[1].StationIndex)

	item, ok := index.Hit(center, 0.7)
	require.True(t, ok)
	assert.Equal(t, int32(1), item.StationIndex)

	_, ok = index.Hit(center, 0.5)
	assert.False(t, ok)

	item, ok = index.Hit(models.Location{Lat: 52.0084, Lon: 0}, 0.7)
	require.True(t, ok)
	assert.Equal(t, int32(2), item.StationIndex)
}

func TestNearestMatchesExhaustiveSearch(t *testing.T) {
	items := generateRandomMarkers(2000)
	index := NewIndex(items)

	centers := []models.Location{
		{Lat: 52, Lon: -1},
		{Lat: 58.7, Lon: -5.2},
		{Lat: 49.2, Lon: 1.9},
		{Lat: 60.9, Lon: -7.9},
	}

	for _, center := range centers {
		t.Run(fmt.Sprintf("%.1f,%.1f", center.Lat, center.Lon), func(t *testing.T) {
			sorted := make([]models.ClusterItem, len(items))
			copy(sorted, items)
			sort.SliceStable(sorted, func(i, j int) bool {
				return Distance(center.Lat, center.Lon, sorted[i].Lat, sorted[i].Lon) <
					Distance(center.Lat, center.Lon, sorted[j].Lat, sorted[j].Lon)
			})

			nearest := index.Nearest(center, 10)
			require.Len(t, nearest, 10)
			for i := range nearest {
				assert.Equal(t, sorted[i].StationIndex, nearest[i].StationIndex, "rank %d", i)
			}

			radius := Distance(center.Lat, center.Lon, sorted[0].Lat, sorted[0].Lon) + 0.001
			item, ok := index.Hit(center, radius)
			require.True(t, ok)
			assert.Equal(t, sorted[0].StationIndex, item.StationIndex)
		})
	}
}

func TestLoadReplaces(t *testing.T) {
	index := NewIndex(ukMarkers())
	index.Load(ukMarkers()[:2])
	assert.Equal(t, int64(2), index.Count())

	results, err := index.QueryBox(models.BoundingBox{MinLat: 49, MaxLat: 61, MinLon: -8, MaxLon: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestVisible(t *testing.T) {
	b := cluster.NewBuilder(cluster.DefaultOptions())
	b.Build([]models.Point{
		{Lat: 51.5074, Lon: -0.1278, Index: 0},
		{Lat: 53.4808, Lon: -2.2426, Index: 1},
		{Lat: 55.9533, Lon: -3.1883, Index: 2},
	})

	results, err := Visible(b, 14, models.BoundingBox{MinLat: 53, MaxLat: 56, MinLon: -4, MaxLon: -2})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestConcurrentQueries(t *testing.T) {
	items := generateRandomMarkers(2000)
	index := NewIndex(items)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, err := index.QueryBox(models.BoundingBox{MinLat: 50, MaxLat: 55, MinLon: -5, MaxLon: 0})
				assert.NoError(t, err)
				return
			}
			assert.Len(t, index.Nearest(models.Location{Lat: 52, Lon: -1}, 5), 5)
		}(i)
	}
	wg.Wait()
}

func TestDistance(t *testing.T) {
	testCases := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		expected               float64
		delta                  float64
	}{
		{"Same point", 51.5074, -0.1278, 51.5074, -0.1278, 0, 0.01},
		{"London to Reading", 51.5074, -0.1278, 51.4543, -0.9781, 59.0, 2.0},
		{"London to Edinburgh", 51.5074, -0.1278, 55.9533, -3.1883, 534.0, 5.0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, Distance(tc.lat1, tc.lon1, tc.lat2, tc.lon2), tc.delta)
		})
	}
}

// Helper function to generate random markers over the UK
func generateRandomMarkers(n int) []models.ClusterItem {
	r := rand.New(rand.NewSource(11))
	items := make([]models.ClusterItem, n)
	for i := 0; i < n; i++ {
		items[i] = models.ClusterItem{
			Lat:          49 + r.Float64()*12,
			Lon:          -8 + r.Float64()*10,
			Count:        1,
			StationIndex: int32(i),
		}
	}
	return items
}

func BenchmarkQueryBox(b *testing.B) {
	index := NewIndex(generateRandomMarkers(10000))
	box := models.BoundingBox{MinLat: 51, MaxLat: 52, MinLon: -1, MaxLon: 0}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = index.QueryBox(box)
	}
}

func BenchmarkNearest(b *testing.B) {
	index := NewIndex(generateRandomMarkers(10000))

	for _, k := range []int{1, 10} {
		b.Run(fmt.Sprintf("k=%d", k), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_ = index.Nearest(models.Location{Lat: 52, Lon: -1}, k)
			}
		})
	}
}
