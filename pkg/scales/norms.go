package scales

import (
	"fmt"
	"math"

	"github.com/pans-scales-server/internal/domain"
)

// NormLabel describes where a score lies relative to a reference population.
type NormLabel string

const (
	NormBelowAverage     NormLabel = "below_average"
	NormAverage          NormLabel = "average"
	NormAboveAverage     NormLabel = "above_average"
	NormWellAboveAverage NormLabel = "well_above_average"
)

// z-score cutpoints for NormLabel.
const (
	BelowAverageZ     = -0.5
	AboveAverageZ     = 0.5
	WellAboveAverageZ = 1.5
)

// NormReference is a published reference population.
type NormReference struct {
	Population string  `json:"population"`
	Mean       float64 `json:"mean"`
	SD         float64 `json:"sd"`
}

// Validate rejects a reference that cannot produce a z-score.
func (n NormReference) Validate() error {
	if math.IsNaN(n.Mean) || math.IsInf(n.Mean, 0) {
		return fmt.Errorf("%w: %q mean must be finite", domain.ErrInvalidNorm, n.Population)
	}
	if n.SD <= 0 || math.IsNaN(n.SD) || math.IsInf(n.SD, 0) {
		return fmt.Errorf("%w: %q sd must be positive and finite", domain.ErrInvalidNorm, n.Population)
	}
	return nil
}

// NormComparison is the result of comparing a score to a NormReference.
type NormComparison struct {
	Score      int       `json:"score"`
	Population string    `json:"population"`
	Mean       float64   `json:"mean"`
	SD         float64   `json:"sd"`
	ZScore     float64   `json:"z_score"`
	Label      NormLabel `json:"label"`
}

// CompareToNorm computes the z-score of score against ref.
func CompareToNorm(score int, ref NormReference) (NormComparison, error) {
	if err := ref.Validate(); err != nil {
		return NormComparison{}, err
	}
	z := (float64(score) - ref.Mean) / ref.SD
	return NormComparison{
		Score:      score,
		Population: ref.Population,
		Mean:       ref.Mean,
		SD:         ref.SD,
		ZScore:     math.Round(z*100) / 100,
		Label:      labelForZ(z),
	}, nil
}

func labelForZ(z float64) NormLabel {
	switch {
	case z < BelowAverageZ:
		return NormBelowAverage
	case z <= AboveAverageZ:
		return NormAverage
	case z <= WellAboveAverageZ:
		return NormAboveAverage
	default:
		return NormWellAboveAverage
	}
}

// NormFromConfig converts a configured norm.
func NormFromConfig(cfg domain.NormConfig) NormReference {
	return NormReference{Population: cfg.Population, Mean: cfg.Mean, SD: cfg.SD}
}

// Norm keys. Subscale norms use "cbi_<subscale>".
const (
	NormKeyCBI = "cbi"
)

// CBISubscaleNormKey returns the configuration key for a CBI subscale norm.
func CBISubscaleNormKey(subscale string) string {
	return NormKeyCBI + "_" + subscale
}

// DefaultCBINorm is the reference population used when none is configured.
var DefaultCBINorm = NormReference{
	Population: "caregivers of children with PANS",
	Mean:       35.5,
	SD:         18.6,
}
