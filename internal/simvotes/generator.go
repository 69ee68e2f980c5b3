package simvotes

import (
	"crypto/rand"
	"math/big"

	"github.com/liusai0820/smartscore/internal/domain/model"
)

// Generated values fall between 60% and 95% of each ceiling.
const (
	lowShare  = 0.60
	highShare = 0.95
)

// randomIn returns a uniformly random integer in [lo, hi].
func randomIn(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(hi-lo+1)))
	if err != nil {
		return lo
	}
	return lo + int(n.Int64())
}

func randomValue(ceiling int) int {
	lo := max(1, int(float64(ceiling)*lowShare))
	hi := max(lo, int(float64(ceiling)*highShare))
	return randomIn(lo, hi)
}

// RandomDimensions returns an in-range score for every dimension.
func RandomDimensions() model.Dimensions {
	return model.Dimensions{
		Data:      randomValue(model.MaxData),
		Info:      randomValue(model.MaxInfo),
		Knowledge: randomValue(model.MaxKnowledge),
		Insight:   randomValue(model.MaxInsight),
		Approval:  randomValue(model.MaxApproval),
		Award:     randomValue(model.MaxAward),
	}
}
