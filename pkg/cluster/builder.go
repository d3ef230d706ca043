// Package cluster builds a quadtree over a station point set and turns
// extractions into map markers.
//
// A Builder publishes each new tree with an atomic swap, so ExtractAt may
// be called from any number of goroutines while a rebuild is in flight.
package cluster

import (
	"sync/atomic"
	"time"

	"github.com/1F47E/station-cluster/pkg/models"
	"github.com/1F47E/station-cluster/pkg/quadtree"
)

// index is an immutable, fully built tree
type index struct {
	root   *quadtree.Node
	bounds models.BoundingBox
}

// Builder owns the current quadtree for one station list
type Builder struct {
	opts    Options
	current atomic.Pointer[index]
}

// BuildResult summarises a build
type BuildResult struct {
	Inserted int                `json:"inserted"`
	Dropped  int                `json:"dropped"`
	Bounds   models.BoundingBox `json:"bounds"`
	Stats    quadtree.TreeStats `json:"stats"`
}

// NewBuilder creates a builder with no tree
func NewBuilder(opts Options) *Builder {
	return &Builder{opts: opts.withDefaults()}
}

// Options returns the effective options
func (b *Builder) Options() Options {
	return b.opts
}

// Build replaces the current tree with one holding points. Points outside
// the valid domain are dropped. An empty input publishes no tree.
func (b *Builder) Build(points []models.Point) BuildResult {
	start := time.Now()

	extent, ok := models.BoundsOf(points)
	if !ok {
		b.current.Store(nil)
		b.opts.Logger.Debug("cluster index cleared", "reason", "empty input")
		b.opts.Metrics.ObserveBuild(0, 0, time.Since(start))
		return BuildResult{}
	}

	bounds := extent.Pad(b.opts.MinPadding, b.opts.PaddingFraction)
	root := quadtree.NewWithPolicy(bounds, b.opts.MaxDepth, b.opts.Policy)

	for _, p := range points {
		if b.opts.Domain.Contains(p.Lat, p.Lon) {
			root.Insert(p)
		}
	}

	result := BuildResult{
		Inserted: root.Len(),
		Dropped:  len(points) - root.Len(),
		Bounds:   bounds,
		Stats:    root.Stats(),
	}

	b.current.Store(&index{root: root, bounds: bounds})

	elapsed := time.Since(start)
	b.opts.Metrics.ObserveBuild(result.Inserted, result.Dropped, elapsed)
	b.opts.Logger.Debug("cluster index built",
		"inserted", result.Inserted,
		"dropped", result.Dropped,
		"nodes", result.Stats.Nodes,
		"depth", result.Stats.MaxDepth,
		"elapsed", elapsed,
	)
	return result
}

// MinDistance returns the separation used at zoom under the builder's bands
func (b *Builder) MinDistance(zoom float64) float64 {
	return minDistanceFor(b.opts.Bands, b.opts.Fallback, zoom)
}

// Clusters returns the raw extraction for zoom, member indices included.
// Without a tree it returns an empty slice.
func (b *Builder) Clusters(zoom float64) []quadtree.Cluster {
	idx := b.current.Load()
	if idx == nil {
		return []quadtree.Cluster{}
	}

	start := time.Now()
	clusters := idx.root.Extract(zoom, b.MinDistance(zoom))
	b.opts.Metrics.ObserveExtract(zoom, len(clusters), time.Since(start))
	return clusters
}

// ExtractAt returns the markers to draw at zoom. An empty result means
// nothing to render.
func (b *Builder) ExtractAt(zoom float64) []models.ClusterItem {
	clusters := b.Clusters(zoom)

	items := make([]models.ClusterItem, 0, len(clusters))
	for _, c := range clusters {
		items = append(items, ToItem(c))
	}
	return items
}

// ToItem maps a cluster to a marker
func ToItem(c quadtree.Cluster) models.ClusterItem {
	item := models.ClusterItem{
		Lat:          c.Lat,
		Lon:          c.Lon,
		Count:        c.Count,
		IsCluster:    c.Count > 1,
		StationIndex: -1,
	}
	if !item.IsCluster && len(c.Members) > 0 {
		item.StationIndex = c.Members[0]
	}
	return item
}

// Count returns the number of points in the published tree
func (b *Builder) Count() int64 {
	idx := b.current.Load()
	if idx == nil {
		return 0
	}
	return int64(idx.root.Len())
}

// Bounds returns the padded root extent. The second value is false
// when no tree is published.
func (b *Builder) Bounds() (models.BoundingBox, bool) {
	idx := b.current.Load()
	if idx == nil {
		return models.BoundingBox{}, false
	}
	return idx.bounds, true
}

// Stats describes the published tree
func (b *Builder) Stats() quadtree.TreeStats {
	idx := b.current.Load()
	if idx == nil {
		return quadtree.TreeStats{}
	}
	return idx.root.Stats()
}

// Reset drops the published tree
func (b *Builder) Reset() {
	b.current.Store(nil)
}
