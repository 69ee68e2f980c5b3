// Package scoring validates submitted dimensions and turns a project's
// score set into a weighted result.
package scoring

import (
	"math"

	"github.com/liusai0820/smartscore/internal/domain/model"
)

// Bloc weights. They are fixed for every event.
const (
	PrimaryWeight   = 0.6
	SecondaryWeight = 0.4
)

// DimensionAverages holds the mean of each dimension across contributing scores.
type DimensionAverages struct {
	Data      float64 `json:"data"`
	Info      float64 `json:"info"`
	Knowledge float64 `json:"knowledge"`
	Insight   float64 `json:"insight"`
	Approval  float64 `json:"approval"`
	Award     float64 `json:"award"`
}

// Result is the unrounded aggregate for one project.
type Result struct {
	ProjectID        string
	PrimaryAverage   float64
	SecondaryAverage float64
	HasPrimary       bool
	HasSecondary     bool
	FinalScore       float64
	Dimensions       DimensionAverages
	// StdDev is the population standard deviation of contributing totals.
	StdDev float64
	// ScoreCount counts every stored score, contributing or not.
	ScoreCount int
	// ContributingCount counts scores from active, known reviewers.
	ContributingCount int
}

// Roster indexes reviewers by id.
type Roster map[string]model.Reviewer

// NewRoster builds a Roster from a reviewer list.
func NewRoster(reviewers []model.Reviewer) Roster {
	r := make(Roster, len(reviewers))
	for _, rev := range reviewers {
		r[rev.ID] = rev
	}
	return r
}

// Aggregate combines scores for projectID. Only scores whose reviewer is in
// roster and active contribute to averages; scores from inactive or unknown
// reviewers are still counted in ScoreCount.
func Aggregate(projectID string, scores []model.Score, roster Roster) Result {
	res := Result{ProjectID: projectID, ScoreCount: len(scores)}

	var (
		primarySum, secondarySum float64
		primaryN, secondaryN     int
		totals                   = make([]float64, 0, len(scores))
		dims                     DimensionAverages
	)

	for _, s := range scores {
		rev, ok := roster[s.ReviewerID]
		if !ok || !rev.Active {
			continue
		}
		total := float64(s.Total())
		switch rev.Bloc {
		case model.BlocPrimary:
			primarySum += total
			primaryN++
		case model.BlocSecondary:
			secondarySum += total
			secondaryN++
		default:
			continue
		}
		totals = append(totals, total)
		dims.Data += float64(s.Dimensions.Data)
		dims.Info += float64(s.Dimensions.Info)
		dims.Knowledge += float64(s.Dimensions.Knowledge)
		dims.Insight += float64(s.Dimensions.Insight)
		dims.Approval += float64(s.Dimensions.Approval)
		dims.Award += float64(s.Dimensions.Award)
	}

	res.ContributingCount = len(totals)
	if primaryN > 0 {
		res.HasPrimary = true
		res.PrimaryAverage = primarySum / float64(primaryN)
	}
	if secondaryN > 0 {
		res.HasSecondary = true
		res.SecondaryAverage = secondarySum / float64(secondaryN)
	}
	res.FinalScore = combine(res)

	if n := float64(len(totals)); n > 0 {
		res.Dimensions = DimensionAverages{
			Data:      dims.Data / n,
			Info:      dims.Info / n,
			Knowledge: dims.Knowledge / n,
			Insight:   dims.Insight / n,
			Approval:  dims.Approval / n,
			Award:     dims.Award / n,
		}
		res.StdDev = populationStdDev(totals)
	}
	return res
}

func combine(r Result) float64 {
	switch {
	case r.HasPrimary && r.HasSecondary:
		return PrimaryWeight*r.PrimaryAverage + SecondaryWeight*r.SecondaryAverage
	case r.HasPrimary:
		return r.PrimaryAverage
	case r.HasSecondary:
		return r.SecondaryAverage
	default:
		return 0
	}
}

func populationStdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(xs)))
}

// Round rounds x half away from zero to the given number of decimal places.
func Round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
