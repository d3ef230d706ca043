package quadtree

import (
	"math"

	"github.com/1F47E/station-cluster/pkg/models"
)

// Cluster is a single point or an aggregated group of points.
// Lat/Lon is the mean of the members' coordinates.
type Cluster struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Count   int     `json:"count"`
	Members []int32 `json:"members"`
}

type extractContext struct {
	zoom              float64
	minDistanceMeters float64
	metersPerDegLat   float64
	metersPerDegLon   float64
}

// Extract returns the clusters for a zoom level and a minimum separation
// in degrees. Every inserted point appears in exactly one cluster.
// Children are visited NW, NE, SW, SE; points keep insertion order.
func (n *Node) Extract(zoom, minDistanceDegrees float64) []Cluster {
	midLat, _ := n.bounds.Mid()
	mpd := n.policy.MetersPerDegree

	ctx := extractContext{
		zoom:              zoom,
		minDistanceMeters: minDistanceDegrees * mpd,
		metersPerDegLat:   mpd,
		metersPerDegLon:   mpd * math.Cos(midLat*math.Pi/180.0),
	}

	clusters := make([]Cluster, 0, 16)
	n.extract(&ctx, &clusters)
	return clusters
}

func (n *Node) extract(ctx *extractContext, out *[]Cluster) {
	if n.children == nil {
		n.extractLeaf(ctx, out)
		return
	}

	if ctx.zoom < n.policy.RecurseZoom && n.count <= n.policy.DenseSubtree {
		if n.count > 0 {
			*out = append(*out, n.aggregate())
		}
		return
	}

	for _, child := range n.children {
		child.extract(ctx, out)
	}
}

func (n *Node) extractLeaf(ctx *extractContext, out *[]Cluster) {
	if ctx.zoom >= n.policy.IndividualZoom ||
		len(n.points) <= 1 ||
		n.footprintMeters(ctx) < ctx.minDistanceMeters*n.policy.LeafSpreadFactor {
		for _, p := range n.points {
			*out = append(*out, Cluster{
				Lat:     p.Lat,
				Lon:     p.Lon,
				Count:   1,
				Members: []int32{p.Index},
			})
		}
		return
	}

	*out = append(*out, n.aggregate())
}

// footprintMeters is the diagonal of the node's bounds
func (n *Node) footprintMeters(ctx *extractContext) float64 {
	width := (n.bounds.MaxLon - n.bounds.MinLon) * ctx.metersPerDegLon
	height := (n.bounds.MaxLat - n.bounds.MinLat) * ctx.metersPerDegLat
	return math.Sqrt(width*width + height*height)
}

// aggregate folds every point of the subtree into one cluster
func (n *Node) aggregate() Cluster {
	c := Cluster{Members: make([]int32, 0, n.count)}

	var sumLat, sumLon float64
	n.walk(func(node *Node) {
		for _, p := range node.points {
			sumLat += p.Lat
			sumLon += p.Lon
			c.Members = append(c.Members, p.Index)
		}
	})

	c.Count = len(c.Members)
	if c.Count > 0 {
		c.Lat = sumLat / float64(c.Count)
		c.Lon = sumLon / float64(c.Count)
	}
	return c
}

// Points returns every point of the subtree in extraction order
func (n *Node) Points() []models.Point {
	points := make([]models.Point, 0, n.count)
	n.walk(func(node *Node) {
		points = append(points, node.points...)
	})
	return points
}
