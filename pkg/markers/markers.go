// Package markers indexes the markers of one extraction in an R-Tree so
// the rendering layer can cull to a viewport and hit-test taps.
package markers

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dhconnelly/rtreego"

	"github.com/1F47E/station-cluster/pkg/cluster"
	"github.com/1F47E/station-cluster/pkg/models"
)

const (
	tolerance   = 1e-9
	minChildren = 25
	maxChildren = 50
	dimensions  = 2
	earthRadius = 6371.0 // km
)

// spatialMarker wraps a marker to implement rtreego.Spatial
type spatialMarker struct {
	models.ClusterItem
	rect *rtreego.Rect
}

func (sm *spatialMarker) Bounds() *rtreego.Rect {
	return sm.rect
}

// Index is a thread-safe R-Tree over markers
type Index struct {
	tree      *rtreego.Rtree
	mu        sync.RWMutex
	itemCount atomic.Int64
}

// NewIndex creates an index holding items
func NewIndex(items []models.ClusterItem) *Index {
	idx := &Index{tree: rtreego.NewTree(dimensions, minChildren, maxChildren)}
	idx.Load(items)
	return idx
}

// Load replaces the indexed markers
func (idx *Index) Load(items []models.ClusterItem) {
	spatials := make([]rtreego.Spatial, 0, len(items))
	for _, item := range items {
		rect := rtreego.Point{item.Lat, item.Lon}.ToRect(tolerance)
		spatials = append(spatials, &spatialMarker{ClusterItem: item, rect: rect})
	}

	// bulk load builds a better packed tree than repeated inserts
	tree := rtreego.NewTree(dimensions, minChildren, maxChildren, spatials...)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.tree = tree
	idx.itemCount.Store(int64(len(spatials)))
}

// QueryBox returns the markers inside box, edges included
func (idx *Index) QueryBox(box models.BoundingBox) ([]models.ClusterItem, error) {
	if !box.Valid() {
		return nil, fmt.Errorf("invalid bounding box: %+v", box)
	}

	// rtreego rejects zero-length sides
	size := []float64{
		math.Max(box.MaxLat-box.MinLat, tolerance),
		math.Max(box.MaxLon-box.MinLon, tolerance),
	}
	bounds, err := rtreego.NewRect(rtreego.Point{box.MinLat, box.MinLon}, size)
	if err != nil {
		return nil, fmt.Errorf("invalid bounding box: %w", err)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	results := idx.tree.SearchIntersect(bounds)

	items := make([]models.ClusterItem, 0, len(results))
	for _, result := range results {
		marker, ok := result.(*spatialMarker)
		if !ok {
			continue
		}
		// Strict boundary check
		if box.Contains(marker.Lat, marker.Lon) {
			items = append(items, marker.ClusterItem)
		}
	}
	return items, nil
}

// Nearest returns up to n markers closest to center by great-circle
// distance, nearest first
func (idx *Index) Nearest(center models.Location, n int) []models.ClusterItem {
	if n <= 0 {
		return nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	// rtreego ranks by planar degrees, so its n nearest only bound the
	// great-circle radius that holds the true n nearest
	seeds := idx.tree.NearestNeighbors(n, rtreego.Point{center.Lat, center.Lon})
	radius := 0.0
	found := false
	for _, seed := range seeds {
		marker, ok := seed.(*spatialMarker)
		if !ok || marker == nil {
			continue
		}
		found = true
		radius = math.Max(radius, Distance(center.Lat, center.Lon, marker.Lat, marker.Lon))
	}
	if !found {
		return []models.ClusterItem{}
	}

	nearest := idx.withinRadius(center, radius)
	if len(nearest) > n {
		nearest = nearest[:n]
	}

	items := make([]models.ClusterItem, len(nearest))
	for i, r := range nearest {
		items[i] = r.item
	}
	return items
}

// Hit returns the marker nearest to center if it lies within radiusKm
func (idx *Index) Hit(center models.Location, radiusKm float64) (models.ClusterItem, bool) {
	if radiusKm < 0 || math.IsNaN(radiusKm) {
		return models.ClusterItem{}, false
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	nearest := idx.withinRadius(center, radiusKm)
	if len(nearest) == 0 {
		return models.ClusterItem{}, false
	}
	return nearest[0].item, true
}

type rankedMarker struct {
	item     models.ClusterItem
	distance float64
}

// withinRadius returns the markers within radiusKm of center sorted by
// great-circle distance. The caller holds the read lock.
func (idx *Index) withinRadius(center models.Location, radiusKm float64) []rankedMarker {
	bounds, err := rtreego.NewRect(radiusBox(center, radiusKm))
	if err != nil {
		return nil
	}

	results := idx.tree.SearchIntersect(bounds)

	ranked := make([]rankedMarker, 0, len(results))
	for _, result := range results {
		marker, ok := result.(*spatialMarker)
		if !ok || marker == nil {
			continue
		}
		d := Distance(center.Lat, center.Lon, marker.Lat, marker.Lon)
		if d > radiusKm*(1+tolerance)+tolerance {
			continue
		}
		ranked = append(ranked, rankedMarker{item: marker.ClusterItem, distance: d})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].distance < ranked[j].distance
	})
	return ranked
}

// radiusBox returns the corner and side lengths in degrees of the
// lat/lon box enclosing a great circle of radiusKm around center
func radiusBox(center models.Location, radiusKm float64) (rtreego.Point, []float64) {
	angular := radiusKm / earthRadius
	dLat := angular * 180.0 / math.Pi

	// longitude span widens with 1/cos(lat) and covers everything near a pole
	dLon := 180.0
	latRad := center.Lat * math.Pi / 180.0
	if s := math.Sin(angular) / math.Cos(latRad); angular < math.Pi/2 && s >= 0 && s < 1 {
		dLon = math.Asin(s) * 180.0 / math.Pi
	}

	// pad so markers sitting exactly on the circle stay inside
	dLat += tolerance
	dLon += tolerance

	corner := rtreego.Point{center.Lat - dLat, center.Lon - dLon}
	return corner, []float64{2 * dLat, 2 * dLon}
}

// Count returns the number of indexed markers
func (idx *Index) Count() int64 {
	return idx.itemCount.Load()
}

// Visible extracts markers at zoom and keeps those inside viewport
func Visible(b *cluster.Builder, zoom float64, viewport models.BoundingBox) ([]models.ClusterItem, error) {
	return NewIndex(b.ExtractAt(zoom)).QueryBox(viewport)
}

// Distance calculates the Haversine distance between two points in kilometers
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180.0
	lon1Rad := lon1 * math.Pi / 180.0
	lat2Rad := lat2 * math.Pi / 180.0
	lon2Rad := lon2 * math.Pi / 180.0

	dLat := lat2Rad - lat1Rad
	dLon := lon2Rad - lon1Rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadius * c
}
