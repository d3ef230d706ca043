package quadtree

const (
	// DefaultSubdivideThreshold is the leaf size above which a leaf splits
	DefaultSubdivideThreshold = 10
	// DefaultIndividualZoom is the zoom from which leaves always emit single points
	DefaultIndividualZoom = 10.0
	// DefaultRecurseZoom is the zoom below which sparse branches collapse
	DefaultRecurseZoom = 8.0
	// DefaultDenseSubtree is the point count above which a low-zoom branch still recurses
	DefaultDenseSubtree = 100
	// DefaultLeafSpreadFactor scales the min distance a leaf footprint is compared against
	DefaultLeafSpreadFactor = 0.5
	// DefaultMetersPerDegree is the equirectangular length of one degree of latitude
	DefaultMetersPerDegree = 111000.0
)

// Policy holds the tunable thresholds of insertion and extraction
type Policy struct {
	SubdivideThreshold int     `yaml:"subdivide_threshold" json:"subdivide_threshold"`
	IndividualZoom     float64 `yaml:"individual_zoom" json:"individual_zoom"`
	RecurseZoom        float64 `yaml:"recurse_zoom" json:"recurse_zoom"`
	DenseSubtree       int     `yaml:"dense_subtree" json:"dense_subtree"`
	LeafSpreadFactor   float64 `yaml:"leaf_spread_factor" json:"leaf_spread_factor"`
	MetersPerDegree    float64 `yaml:"meters_per_degree" json:"meters_per_degree"`
}

// DefaultPolicy returns the stock thresholds
func DefaultPolicy() Policy {
	return Policy{
		SubdivideThreshold: DefaultSubdivideThreshold,
		IndividualZoom:     DefaultIndividualZoom,
		RecurseZoom:        DefaultRecurseZoom,
		DenseSubtree:       DefaultDenseSubtree,
		LeafSpreadFactor:   DefaultLeafSpreadFactor,
		MetersPerDegree:    DefaultMetersPerDegree,
	}
}

// withDefaults maps the zero Policy to DefaultPolicy. Otherwise the zoom
// thresholds are taken as given and non-positive counts and factors are
// filled in.
func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p == (Policy{}) {
		return def
	}
	if p.SubdivideThreshold <= 0 {
		p.SubdivideThreshold = def.SubdivideThreshold
	}
	if p.DenseSubtree <= 0 {
		p.DenseSubtree = def.DenseSubtree
	}
	if p.LeafSpreadFactor <= 0 {
		p.LeafSpreadFactor = def.LeafSpreadFactor
	}
	if p.MetersPerDegree <= 0 {
		p.MetersPerDegree = def.MetersPerDegree
	}
	return p
}
