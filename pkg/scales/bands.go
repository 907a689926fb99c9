package scales

import (
	"fmt"

	"github.com/pans-scales-server/internal/domain"
)

// Band is a closed score interval with a severity label.
type Band struct {
	Label          string `json:"label"`
	Min            int    `json:"min"`
	Max            int    `json:"max"`
	Interpretation string `json:"interpretation,omitempty"`
}

// Contains reports whether score lies within the band.
func (b Band) Contains(score int) bool {
	return score >= b.Min && score <= b.Max
}

// BandSet is an ordered, contiguous list of bands.
type BandSet struct {
	Name  string `json:"name"`
	Bands []Band `json:"bands"`
}

// NewBandSet builds and validates a band set.
func NewBandSet(name string, bands []Band) (BandSet, error) {
	bs := BandSet{Name: name, Bands: append([]Band(nil), bands...)}
	if err := bs.Validate(); err != nil {
		return BandSet{}, err
	}
	return bs, nil
}

// Validate checks that bands are non-empty, ascending and contiguous.
func (s BandSet) Validate() error {
	if len(s.Bands) == 0 {
		return fmt.Errorf("%w: %s has no bands", domain.ErrInvalidBands, s.Name)
	}
	for i, b := range s.Bands {
		if b.Label == "" {
			return fmt.Errorf("%w: %s band %d has no label", domain.ErrInvalidBands, s.Name, i)
		}
		if b.Min > b.Max {
			return fmt.Errorf("%w: %s band %q has min %d > max %d", domain.ErrInvalidBands, s.Name, b.Label, b.Min, b.Max)
		}
		if i > 0 && b.Min != s.Bands[i-1].Max+1 {
			return fmt.Errorf("%w: %s band %q starts at %d, expected %d",
				domain.ErrInvalidBands, s.Name, b.Label, b.Min, s.Bands[i-1].Max+1)
		}
	}
	return nil
}

// Covers checks that the set spans exactly [lo, hi].
func (s BandSet) Covers(lo, hi int) error {
	if len(s.Bands) == 0 {
		return fmt.Errorf("%w: %s has no bands", domain.ErrInvalidBands, s.Name)
	}
	first, last := s.Bands[0], s.Bands[len(s.Bands)-1]
	if first.Min != lo || last.Max != hi {
		return fmt.Errorf("%w: %s covers %d-%d, expected %d-%d",
			domain.ErrInvalidBands, s.Name, first.Min, last.Max, lo, hi)
	}
	return nil
}

// Classify returns the band containing score.
func (s BandSet) Classify(score int) (Band, error) {
	for _, b := range s.Bands {
		if b.Contains(score) {
			return b, nil
		}
	}
	return Band{}, fmt.Errorf("%w: %s score %d", domain.ErrScoreOutOfBands, s.Name, score)
}

// Lowest returns the first band.
func (s BandSet) Lowest() Band {
	if len(s.Bands) == 0 {
		return Band{}
	}
	return s.Bands[0]
}

// Labels returns the band labels in order.
func (s BandSet) Labels() []string {
	out := make([]string, len(s.Bands))
	for i, b := range s.Bands {
		out[i] = b.Label
	}
	return out
}

// BandSetFromConfig converts configured bands into a validated BandSet.
func BandSetFromConfig(name string, cfg []domain.BandConfig) (BandSet, error) {
	bands := make([]Band, len(cfg))
	for i, c := range cfg {
		bands[i] = Band{Label: c.Label, Min: c.Min, Max: c.Max, Interpretation: c.Interpretation}
	}
	return NewBandSet(name, bands)
}

// PTECBandCount is the fixed number of PTEC severity bands.
const PTECBandCount = 5

// Default band sets. Deployments may override these through configuration;
// the cutpoints here are the published-default severity ranges.
var (
	SymptomScaleBands = BandSet{
		Name: "symptom_scale",
		Bands: []Band{
			{"minimal", 0, 19, "Minimal symptom burden"},
			{"mild", 20, 39, "Mild symptoms"},
			{"moderate", 40, 59, "Moderate symptoms"},
			{"severe", 60, 79, "Severe symptoms"},
			{"extreme", 80, 100, "Extreme symptoms"},
		},
	}

	PANS31Bands = BandSet{
		Name: "pans31",
		Bands: []Band{
			{"minimal", 0, 15, "Minimal symptoms"},
			{"mild", 16, 35, "Mild symptoms"},
			{"moderate", 36, 60, "Moderate symptoms"},
			{"severe", 61, 90, "Severe symptoms"},
			{"extreme", 91, 124, "Extreme symptoms"},
		},
	}

	// PTECBands has exactly PTECBandCount ordered bands; overrides must too.
	PTECBands = BandSet{
		Name: "ptec",
		Bands: []Band{
			{"minimal", 0, 30, "Minimal current symptoms"},
			{"mild", 31, 80, "Mild current symptoms"},
			{"moderate", 81, 150, "Moderate current symptoms"},
			{"severe", 151, 220, "Severe current symptoms"},
			{"very_severe", 221, 306, "Very severe current symptoms"},
		},
	}

	CBIBands = BandSet{
		Name: "cbi",
		Bands: []Band{
			{"low", 0, 18, "Low caregiver burden"},
			{"moderate", 19, 36, "Moderate caregiver burden"},
			{"high", 37, 60, "High caregiver burden"},
			{"severe", 61, 96, "Severe caregiver burden"},
		},
	}
)
