// Package quadtree implements the region quadtree used to cluster station
// markers. Nodes own their children exclusively and are built once per
// point set; there is no removal or incremental rebalancing.
package quadtree

import (
	"github.com/1F47E/station-cluster/pkg/models"
)

// Quadrant identifies one of the four children of a branch node
type Quadrant int

const (
	NW Quadrant = iota
	NE
	SW
	SE
)

func (q Quadrant) String() string {
	switch q {
	case NW:
		return "NW"
	case NE:
		return "NE"
	case SW:
		return "SW"
	case SE:
		return "SE"
	}
	return "unknown"
}

// quadrantOf routes a coordinate to a child. Points on a midline go
// North and/or East.
func quadrantOf(lat, lon, midLat, midLon float64) Quadrant {
	if lat >= midLat {
		if lon >= midLon {
			return NE
		}
		return NW
	}
	if lon >= midLon {
		return SE
	}
	return SW
}

// Node is a quadtree node. A node is either a leaf holding points or a
// branch with exactly four children, never both.
type Node struct {
	bounds   models.BoundingBox
	depth    int
	maxDepth int
	policy   Policy

	// count is the number of points held by this subtree
	count    int
	points   []models.Point
	children *[4]*Node
}

// New creates a root node with the default policy
func New(bounds models.BoundingBox, maxDepth int) *Node {
	return NewWithPolicy(bounds, maxDepth, DefaultPolicy())
}

// NewWithPolicy creates a root node. The zero Policy means DefaultPolicy;
// a partial one keeps its zoom thresholds, including zero, and takes
// non-positive counts and factors from DefaultPolicy.
func NewWithPolicy(bounds models.BoundingBox, maxDepth int, policy Policy) *Node {
	if maxDepth < 0 {
		maxDepth = 0
	}
	return &Node{
		bounds:   bounds,
		maxDepth: maxDepth,
		policy:   policy.withDefaults(),
	}
}

func (n *Node) newChild(bounds models.BoundingBox) *Node {
	return &Node{
		bounds:   bounds,
		depth:    n.depth + 1,
		maxDepth: n.maxDepth,
		policy:   n.policy,
	}
}

// Insert adds a point to the subtree. Points outside the node's bounds
// are dropped.
func (n *Node) Insert(p models.Point) {
	if !n.bounds.Contains(p.Lat, p.Lon) {
		return
	}

	node := n
	for {
		node.count++
		if node.children == nil {
			break
		}
		midLat, midLon := node.bounds.Mid()
		node = node.children[quadrantOf(p.Lat, p.Lon, midLat, midLon)]
	}

	node.points = append(node.points, p)
	if node.shouldSubdivide() {
		node.subdivide()
	}
}

func (n *Node) shouldSubdivide() bool {
	return len(n.points) > n.policy.SubdivideThreshold && n.depth < n.maxDepth
}

// subdivide splits the node into four equal quadrants and moves every
// held point into exactly one of them.
func (n *Node) subdivide() {
	if n.children != nil {
		return
	}

	b := n.bounds
	midLat, midLon := b.Mid()

	var children [4]*Node
	children[NW] = n.newChild(models.BoundingBox{MinLat: midLat, MaxLat: b.MaxLat, MinLon: b.MinLon, MaxLon: midLon})
	children[NE] = n.newChild(models.BoundingBox{MinLat: midLat, MaxLat: b.MaxLat, MinLon: midLon, MaxLon: b.MaxLon})
	children[SW] = n.newChild(models.BoundingBox{MinLat: b.MinLat, MaxLat: midLat, MinLon: b.MinLon, MaxLon: midLon})
	children[SE] = n.newChild(models.BoundingBox{MinLat: b.MinLat, MaxLat: midLat, MinLon: midLon, MaxLon: b.MaxLon})

	for _, p := range n.points {
		child := children[quadrantOf(p.Lat, p.Lon, midLat, midLon)]
		child.points = append(child.points, p)
		child.count++
	}

	n.children = &children
	n.points = nil

	// Coincident points can overfill a child; keep splitting until the
	// threshold or maxDepth stops it.
	for _, child := range children {
		if child.shouldSubdivide() {
			child.subdivide()
		}
	}
}

// Bounds returns the node's extent
func (n *Node) Bounds() models.BoundingBox {
	return n.bounds
}

// Depth returns the node's depth; the root is 0.
func (n *Node) Depth() int {
	return n.depth
}

// IsLeaf reports whether the node holds points directly
func (n *Node) IsLeaf() bool {
	return n.children == nil
}

// Child returns the child in quadrant q, or nil for a leaf
func (n *Node) Child(q Quadrant) *Node {
	if n.children == nil {
		return nil
	}
	return n.children[q]
}

// Len returns the number of points held by the subtree
func (n *Node) Len() int {
	return n.count
}

// TreeStats summarises the shape of a tree
type TreeStats struct {
	Nodes    int `json:"nodes"`
	Leaves   int `json:"leaves"`
	MaxDepth int `json:"max_depth"`
	Points   int `json:"points"`
}

// Stats walks the subtree and reports its shape
func (n *Node) Stats() TreeStats {
	var stats TreeStats
	n.walk(func(node *Node) {
		stats.Nodes++
		if node.depth > stats.MaxDepth {
			stats.MaxDepth = node.depth
		}
		if node.IsLeaf() {
			stats.Leaves++
			stats.Points += len(node.points)
		}
	})
	return stats
}

// walk visits nodes depth-first, children in NW, NE, SW, SE order
func (n *Node) walk(fn func(*Node)) {
	fn(n)
	if n.children == nil {
		return
	}
	for _, child := range n.children {
		child.walk(fn)
	}
}
