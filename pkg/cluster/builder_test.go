package cluster

import (
	"bytes"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/1F47E/station-cluster/pkg/metrics"
	"github.com/1F47E/station-cluster/pkg/models"
	"github.com/1F47E/station-cluster/pkg/quadtree"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinDistanceForZoom(t *testing.T) {
	testCases := []struct {
		zoom     float64
		expected float64
	}{
		{20, 0.0005},
		{14, 0.0005},
		{13.99, 0.002},
		{12, 0.002},
		{11.99, 0.005},
		{10, 0.005},
		{9.99, 0.01},
		{9, 0.01},
		{8.99, 0.02},
		{8, 0.02},
		{7.99, 0.04},
		{7, 0.04},
		{6.99, 0.08},
		{0, 0.08},
		{-3, 0.08},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("zoom %v", tc.zoom), func(t *testing.T) {
			assert.Equal(t, tc.expected, MinDistanceForZoom(tc.zoom))
		})
	}
}

func TestMinDistanceIsNonIncreasing(t *testing.T) {
	prev := math.Inf(1)
	for zoom := -2.0; zoom <= 22; zoom += 0.25 {
		d := MinDistanceForZoom(zoom)
		assert.LessOrEqual(t, d, prev, "zoom %v", zoom)
		prev = d
	}
}

func TestCustomBandsAreSortedTopDown(t *testing.T) {
	b := NewBuilder(Options{
		Bands: []ZoomBand{
			{MinZoom: 5, MinDistance: 0.5},
			{MinZoom: 15, MinDistance: 0.001},
			{MinZoom: 10, MinDistance: 0.01},
		},
		Fallback: 1,
	})

	assert.Equal(t, 0.001, b.MinDistance(16))
	assert.Equal(t, 0.01, b.MinDistance(12))
	assert.Equal(t, 0.5, b.MinDistance(5))
	assert.Equal(t, 1.0, b.MinDistance(4))
}

func TestDefaultsApplied(t *testing.T) {
	opts := NewBuilder(Options{}).Options()

	assert.Equal(t, DefaultMaxDepth, opts.MaxDepth)
	assert.Equal(t, UKDomain, opts.Domain)
	assert.Equal(t, DefaultZoomBands, opts.Bands)
	assert.Equal(t, FallbackDistance, opts.Fallback)
	assert.NotNil(t, opts.Logger)
}

func TestZeroIndividualZoomFlowsThrough(t *testing.T) {
	points := []models.Point{
		{Lat: 51.5074, Lon: -0.1278, Index: 0},
		{Lat: 51.5080, Lon: -0.1300, Index: 1},
		{Lat: 51.5100, Lon: -0.1250, Index: 2},
	}

	stock := NewBuilder(DefaultOptions())
	stock.Build(points)
	require.Len(t, stock.ExtractAt(0), 1)

	opts := DefaultOptions()
	opts.Policy.IndividualZoom = 0
	b := NewBuilder(opts)
	b.Build(points)

	items := b.ExtractAt(0)
	require.Len(t, items, 3)
	for _, item := range items {
		assert.False(t, item.IsCluster)
	}
}

func TestBuildEmptyInput(t *testing.T) {
	b := NewBuilder(DefaultOptions())

	result := b.Build(nil)
	assert.Equal(t, BuildResult{}, result)

	for _, zoom := range []float64{0, 6, 8, 10, 14, 20} {
		items := b.ExtractAt(zoom)
		assert.NotNil(t, items)
		assert.Empty(t, items)
	}
	assert.Equal(t, int64(0), b.Count())

	_, ok := b.Bounds()
	assert.False(t, ok)
}

func TestBuildEmptyInputClearsPreviousTree(t *testing.T) {
	b := NewBuilder(DefaultOptions())
	b.Build([]models.Point{{Lat: 51.5, Lon: -0.1, Index: 0}})
	require.Equal(t, int64(1), b.Count())

	b.Build([]models.Point{})
	assert.Equal(t, int64(0), b.Count())
	assert.Empty(t, b.ExtractAt(14))
}

func TestBuildPadding(t *testing.T) {
	testCases := []struct {
		name     string
		points   []models.Point
		expected models.BoundingBox
	}{
		{
			name:     "single point gets the minimum padding",
			points:   []models.Point{{Lat: 51, Lon: 0}},
			expected: models.BoundingBox{MinLat: 50.9, MaxLat: 51.1, MinLon: -0.1, MaxLon: 0.1},
		},
		{
			name:     "wide extent gets ten percent",
			points:   []models.Point{{Lat: 50, Lon: -1}, {Lat: 52, Lon: 1}},
			expected: models.BoundingBox{MinLat: 49.8, MaxLat: 52.2, MinLon: -1.2, MaxLon: 1.2},
		},
		{
			name:     "axes padded independently",
			points:   []models.Point{{Lat: 50, Lon: -1}, {Lat: 55, Lon: -0.5}},
			expected: models.BoundingBox{MinLat: 49.5, MaxLat: 55.5, MinLon: -1.1, MaxLon: -0.4},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBuilder(DefaultOptions())
			result := b.Build(tc.points)

			assert.InDelta(t, tc.expected.MinLat, result.Bounds.MinLat, 1e-9)
			assert.InDelta(t, tc.expected.MaxLat, result.Bounds.MaxLat, 1e-9)
			assert.InDelta(t, tc.expected.MinLon, result.Bounds.MinLon, 1e-9)
			assert.InDelta(t, tc.expected.MaxLon, result.Bounds.MaxLon, 1e-9)

			bounds, ok := b.Bounds()
			require.True(t, ok)
			assert.Equal(t, result.Bounds, bounds)
		})
	}
}

func TestDomainFiltering(t *testing.T) {
	b := NewBuilder(DefaultOptions())
	points := []models.Point{
		{Lat: 51.5, Lon: -0.1, Index: 0},
		{Lat: 70.0, Lon: 10.0, Index: 1},
		{Lat: 53.4, Lon: -2.9, Index: 2},
		{Lat: math.NaN(), Lon: -1, Index: 3},
	}

	result := b.Build(points)
	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, 2, result.Dropped)
	assert.Equal(t, int64(2), b.Count())

	for zoom := 0.0; zoom <= 20; zoom += 0.5 {
		for _, c := range b.Clusters(zoom) {
			assert.NotContains(t, c.Members, int32(1))
			assert.NotContains(t, c.Members, int32(3))
		}
		for _, item := range b.ExtractAt(zoom) {
			assert.NotEqual(t, int32(1), item.StationIndex)
		}
	}
}

func TestCustomDomain(t *testing.T) {
	b := NewBuilder(Options{Domain: WorldDomain})
	result := b.Build([]models.Point{
		{Lat: 51.5, Lon: -0.1, Index: 0},
		{Lat: 70.0, Lon: 10.0, Index: 1},
	})
	assert.Equal(t, 2, result.Inserted)
	assert.Len(t, b.ExtractAt(14), 2)
}

func TestHighZoomIndividuality(t *testing.T) {
	for n := 1; n <= 10; n++ {
		t.Run(fmt.Sprintf("%d points", n), func(t *testing.T) {
			b := NewBuilder(DefaultOptions())
			points := make([]models.Point, n)
			for i := range points {
				points[i] = models.Point{Lat: 52 + float64(i)*0.001, Lon: -1.5, Index: int32(i)}
			}
			b.Build(points)

			items := b.ExtractAt(14)
			require.Len(t, items, n)
			for i, item := range items {
				assert.Equal(t, 1, item.Count)
				assert.False(t, item.IsCluster)
				assert.Equal(t, int32(i), item.StationIndex)
			}
		})
	}
}

func TestLowZoomAggregation(t *testing.T) {
	b := NewBuilder(DefaultOptions())
	points := []models.Point{
		{Lat: 51.500, Lon: -0.120, Index: 7},
		{Lat: 51.503, Lon: -0.125, Index: 8},
		{Lat: 51.506, Lon: -0.118, Index: 9},
	}
	b.Build(points)

	items := b.ExtractAt(6)
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Count)
	assert.True(t, items[0].IsCluster)
	assert.Equal(t, int32(-1), items[0].StationIndex)
	assert.InDelta(t, (51.500+51.503+51.506)/3, items[0].Lat, 1e-9)
	assert.InDelta(t, (-0.120-0.125-0.118)/3, items[0].Lon, 1e-9)

	clusters := b.Clusters(6)
	require.Len(t, clusters, 1)
	assert.ElementsMatch(t, []int32{7, 8, 9}, clusters[0].Members)
}

func TestRebuildReplacesTree(t *testing.T) {
	b := NewBuilder(DefaultOptions())
	b.Build([]models.Point{{Lat: 51, Lon: -1, Index: 0}, {Lat: 52, Lon: -2, Index: 1}})
	b.Build([]models.Point{{Lat: 55, Lon: -3, Index: 5}})

	items := b.ExtractAt(14)
	require.Len(t, items, 1)
	assert.Equal(t, int32(5), items[0].StationIndex)

	b.Reset()
	assert.Empty(t, b.ExtractAt(14))
}

func TestBuilderPartition(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	points := make([]models.Point, 1500)
	var expected []int32
	for i := range points {
		lat := 48 + r.Float64()*14
		lon := -9 + r.Float64()*12
		points[i] = models.Point{Lat: lat, Lon: lon, Index: int32(i)}
		if UKDomain.Contains(lat, lon) {
			expected = append(expected, int32(i))
		}
	}

	b := NewBuilder(DefaultOptions())
	result := b.Build(points)
	require.Equal(t, len(expected), result.Inserted)

	for zoom := 0.0; zoom <= 18; zoom += 0.5 {
		var members []int32
		total := 0
		for _, c := range b.Clusters(zoom) {
			members = append(members, c.Members...)
			total += c.Count
		}
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
		assert.Equal(t, expected, members, "zoom %v", zoom)

		itemTotal := 0
		for _, item := range b.ExtractAt(zoom) {
			itemTotal += item.Count
		}
		assert.Equal(t, total, itemTotal)
	}
}

func TestToItem(t *testing.T) {
	single := ToItem(clusterOf(1))
	assert.False(t, single.IsCluster)
	assert.Equal(t, int32(0), single.StationIndex)

	group := ToItem(clusterOf(4))
	assert.True(t, group.IsCluster)
	assert.Equal(t, int32(-1), group.StationIndex)
	assert.Equal(t, 4, group.Count)
}

func TestConcurrentExtractDuringRebuild(t *testing.T) {
	b := NewBuilder(DefaultOptions())
	points := make([]models.Point, 500)
	for i := range points {
		points[i] = models.Point{Lat: 50 + float64(i%50)*0.2, Lon: -6 + float64(i/50)*0.7, Index: int32(i)}
	}
	b.Build(points)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				total := 0
				for _, item := range b.ExtractAt(float64((w + i) % 16)) {
					total += item.Count
				}
				assert.Equal(t, len(points), total)
			}
		}(w)
	}

	for i := 0; i < 10; i++ {
		b.Build(points)
	}
	wg.Wait()
}

func TestBuilderLogsAndMetrics(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	reg := prometheus.NewRegistry()

	opts := DefaultOptions()
	opts.Logger = logger
	opts.Metrics = metrics.NewCollector(reg)
	b := NewBuilder(opts)

	b.Build([]models.Point{{Lat: 51.5, Lon: -0.1}, {Lat: 70, Lon: 10, Index: 1}})
	b.ExtractAt(9)
	b.ExtractAt(14.2)

	assert.Contains(t, buf.String(), "cluster index built")
	assert.Contains(t, buf.String(), "dropped=1")

	count, err := testutil.GatherAndCount(reg, "stationcluster_extract_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func clusterOf(n int) (c quadtree.Cluster) {
	c.Count = n
	for i := 0; i < n; i++ {
		c.Members = append(c.Members, int32(i))
	}
	return c
}
