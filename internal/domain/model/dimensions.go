package model

// Dimension ceilings. They sum to 100, so a score total needs no further
// weighting.
const (
	MaxData      = 20
	MaxInfo      = 15
	MaxKnowledge = 15
	MaxInsight   = 20
	MaxApproval  = 15
	MaxAward     = 15

	MinDimension = 1
)

// Dimension names as they appear on the wire.
const (
	DimensionData      = "data"
	DimensionInfo      = "info"
	DimensionKnowledge = "knowledge"
	DimensionInsight   = "insight"
	DimensionApproval  = "approval"
	DimensionAward     = "award"
)

// Dimensions is the closed set of six scored facets. Each field is bounded
// by its own ceiling; the validate tags are enforced by scoring.ValidateDimensions.
type Dimensions struct {
	Data      int `json:"data" validate:"min=1,max=20"`
	Info      int `json:"info" validate:"min=1,max=15"`
	Knowledge int `json:"knowledge" validate:"min=1,max=15"`
	Insight   int `json:"insight" validate:"min=1,max=20"`
	Approval  int `json:"approval" validate:"min=1,max=15"`
	Award     int `json:"award" validate:"min=1,max=15"`
}

// Total returns the unweighted sum of all dimensions.
func (d Dimensions) Total() int {
	return d.Data + d.Info + d.Knowledge + d.Insight + d.Approval + d.Award
}

// DimensionSpec describes one dimension and its ceiling.
type DimensionSpec struct {
	Name string `json:"name"`
	Max  int    `json:"max"`
}

// DimensionSpecs lists every dimension in display order.
func DimensionSpecs() []DimensionSpec {
	return []DimensionSpec{
		{Name: DimensionData, Max: MaxData},
		{Name: DimensionInfo, Max: MaxInfo},
		{Name: DimensionKnowledge, Max: MaxKnowledge},
		{Name: DimensionInsight, Max: MaxInsight},
		{Name: DimensionApproval, Max: MaxApproval},
		{Name: DimensionAward, Max: MaxAward},
	}
}

// MaxFor returns the ceiling for a dimension name, or 0 if unknown.
func MaxFor(name string) int {
	for _, ds := range DimensionSpecs() {
		if ds.Name == name {
			return ds.Max
		}
	}
	return 0
}

// Value returns the value of the named dimension and whether the name is known.
func (d Dimensions) Value(name string) (int, bool) {
	switch name {
	case DimensionData:
		return d.Data, true
	case DimensionInfo:
		return d.Info, true
	case DimensionKnowledge:
		return d.Knowledge, true
	case DimensionInsight:
		return d.Insight, true
	case DimensionApproval:
		return d.Approval, true
	case DimensionAward:
		return d.Award, true
	default:
		return 0, false
	}
}
