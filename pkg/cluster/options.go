package cluster

import (
	"log/slog"
	"sort"

	"github.com/1F47E/station-cluster/pkg/metrics"
	"github.com/1F47E/station-cluster/pkg/models"
	"github.com/1F47E/station-cluster/pkg/quadtree"
)

const (
	// DefaultMaxDepth bounds quadtree subdivision
	DefaultMaxDepth = 10
	// DefaultMinPadding is the minimum padding in degrees added around the observed extent
	DefaultMinPadding = 0.1
	// DefaultPaddingFraction is the share of the observed range added as padding
	DefaultPaddingFraction = 0.1
)

var (
	// UKDomain is the valid coordinate domain for UK monitoring stations
	UKDomain = models.BoundingBox{MinLat: 49.0, MaxLat: 61.0, MinLon: -8.0, MaxLon: 2.0}
	// WorldDomain accepts every valid WGS84 coordinate
	WorldDomain = models.BoundingBox{MinLat: -90, MaxLat: 90, MinLon: -180, MaxLon: 180}
)

// Options configures a Builder. Zero fields take the defaults, so a
// MaxDepth of 0 means DefaultMaxDepth. The zero Policy means
// quadtree.DefaultPolicy; any other Policy keeps its zoom thresholds.
type Options struct {
	MaxDepth int
	// Domain drops points outside it before insertion
	Domain          models.BoundingBox
	Policy          quadtree.Policy
	Bands           []ZoomBand
	Fallback        float64
	MinPadding      float64
	PaddingFraction float64

	Logger  *slog.Logger
	Metrics *metrics.Collector
}

// DefaultOptions returns the stock configuration: depth 10, UK domain,
// default thresholds and zoom bands.
func DefaultOptions() Options {
	return Options{
		MaxDepth:        DefaultMaxDepth,
		Domain:          UKDomain,
		Policy:          quadtree.DefaultPolicy(),
		Bands:           DefaultZoomBands,
		Fallback:        FallbackDistance,
		MinPadding:      DefaultMinPadding,
		PaddingFraction: DefaultPaddingFraction,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MaxDepth <= 0 {
		o.MaxDepth = def.MaxDepth
	}
	if o.Domain == (models.BoundingBox{}) {
		o.Domain = def.Domain
	}
	if o.Policy == (quadtree.Policy{}) {
		o.Policy = def.Policy
	}
	if len(o.Bands) == 0 {
		o.Bands = def.Bands
	} else {
		bands := make([]ZoomBand, len(o.Bands))
		copy(bands, o.Bands)
		sort.SliceStable(bands, func(i, j int) bool { return bands[i].MinZoom > bands[j].MinZoom })
		o.Bands = bands
	}
	if o.Fallback <= 0 {
		o.Fallback = def.Fallback
	}
	if o.MinPadding <= 0 {
		o.MinPadding = def.MinPadding
	}
	if o.PaddingFraction <= 0 {
		o.PaddingFraction = def.PaddingFraction
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}
