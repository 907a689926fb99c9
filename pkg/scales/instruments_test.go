package scales

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pans-scales-server/internal/domain"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(opts...)
	require.NoError(t, err)
	return e
}

func uniformRatings(cat Catalog, v int) map[string]int {
	out := make(map[string]int, len(cat.Items))
	for _, it := range cat.Items {
		out[it.Key] = v
	}
	return out
}

func uniformSymptomForm(v int) SymptomScaleForm {
	form := SymptomScaleForm{Ratings: map[string]domain.TimeWindowedRating{}}
	for _, it := range SymptomScaleCatalog.Items {
		form.Ratings[it.Key] = domain.TimeWindowedRating{
			Before:  domain.IntPtr(v),
			After:   domain.IntPtr(v),
			Current: domain.IntPtr(v),
		}
	}
	return form
}

func TestCatalogLayout(t *testing.T) {
	tests := []struct {
		cat      Catalog
		items    int
		domains  int
		maxTotal int
	}{
		{SymptomScaleCatalog, 19, 9, 95},
		{PANS31Catalog, 31, 6, 124},
		{PTECCatalog, 102, 10, 306},
		{CBICatalog, 24, 5, 96},
	}

	for _, tt := range tests {
		t.Run(string(tt.cat.Instrument), func(t *testing.T) {
			assert.Len(t, tt.cat.Items, tt.items)
			assert.Len(t, tt.cat.Domains(), tt.domains)
			assert.Equal(t, tt.maxTotal, tt.cat.MaxTotal())

			seen := map[string]bool{}
			for _, it := range tt.cat.Items {
				assert.False(t, seen[it.Key], "duplicate key %s", it.Key)
				seen[it.Key] = true
			}
		})
	}

	sizes := PANS31Catalog.DomainSizes()
	assert.Equal(t, 6, sizes["ocd"])
	assert.Equal(t, 7, sizes["behavior"])
	assert.Equal(t, 3, sizes["eating"])
	assert.Equal(t, 4, sizes["cognitive_somatic"])
	assert.Equal(t, 4, CBICatalog.DomainSizes()["physical"])
	assert.Equal(t, 19, PTECCatalog.DomainSizes()["ocd"])
}

func TestSymptomScale(t *testing.T) {
	e := newTestEngine(t)

	t.Run("primary items at five in the current window only", func(t *testing.T) {
		form := uniformSymptomForm(0)
		for _, key := range []string{"ocd", "restricted_eating"} {
			r := form.Ratings[key]
			r.Current = domain.IntPtr(5)
			form.Ratings[key] = r
		}

		b, err := e.ScoreSymptomScale(form)
		require.NoError(t, err)
		require.Len(t, b.Windows, 3)

		cur, ok := b.Window(domain.WindowCurrent)
		require.True(t, ok)
		assert.Equal(t, 25, cur.Primary)
		assert.Equal(t, 0, cur.Associated)
		assert.Equal(t, 0, cur.Functional)
		assert.Equal(t, 25, cur.Total)
		assert.Equal(t, "mild", cur.Severity.Label)

		for _, w := range []domain.TimeWindow{domain.WindowBefore, domain.WindowAfter} {
			ws, _ := b.Window(w)
			assert.Equal(t, 0, ws.Total, "window %s", w)
			assert.Equal(t, "minimal", ws.Severity.Label)
		}

		assert.Equal(t, Summary{Total: 25, Severity: "mild"}, b.Summary())
	})

	t.Run("primary is five times the maximum primary rating per window", func(t *testing.T) {
		form := uniformSymptomForm(0)
		form.Ratings["ocd"] = domain.TimeWindowedRating{Before: domain.IntPtr(1), After: domain.IntPtr(4), Current: domain.IntPtr(2)}
		form.Ratings["restricted_eating"] = domain.TimeWindowedRating{Before: domain.IntPtr(3), After: domain.IntPtr(0), Current: domain.IntPtr(2)}

		b, err := e.ScoreSymptomScale(form)
		require.NoError(t, err)

		want := map[domain.TimeWindow]int{domain.WindowBefore: 15, domain.WindowAfter: 20, domain.WindowCurrent: 10}
		for w, primary := range want {
			ws, _ := b.Window(w)
			assert.Equal(t, primary, ws.Primary, "window %s", w)
		}
	})

	t.Run("maximum ratings", func(t *testing.T) {
		b, err := e.ScoreSymptomScale(uniformSymptomForm(5))
		require.NoError(t, err)
		for _, ws := range b.Windows {
			assert.Equal(t, 25, ws.Primary)
			assert.Equal(t, 25, ws.Associated)
			assert.Equal(t, 50, ws.Functional)
			assert.Equal(t, 100, ws.Total)
			assert.Equal(t, "extreme", ws.Severity.Label)
			assert.Len(t, ws.Domains, 7)
			assert.Len(t, ws.TopDomains, AssociatedTopDomains)
		}
	})

	t.Run("associated score is the sum of the five highest domain maxima", func(t *testing.T) {
		form := uniformSymptomForm(0)
		set := map[string]int{
			"separation_anxiety":    2,
			"generalized_anxiety":   5,
			"depression":            1,
			"aggression":            4,
			"behavioral_regression": 3,
			"school_decline":        3,
			"tics":                  2,
			"sleep_disturbance":     1,
		}
		for key, v := range set {
			form.Ratings[key] = domain.TimeWindowedRating{Before: domain.IntPtr(0), After: domain.IntPtr(0), Current: domain.IntPtr(v)}
		}

		b, err := e.ScoreSymptomScale(form)
		require.NoError(t, err)
		cur, _ := b.Window(domain.WindowCurrent)
		// domain maxima: anxiety 5, emotional 1, irritability 4, regression 3, school 3, sensory 2, somatic 1
		assert.Equal(t, 17, cur.Associated)
		assert.Equal(t, "anxiety", cur.TopDomains[0].Domain)
		assert.LessOrEqual(t, cur.Associated, 25)
	})

	t.Run("missing window is incomplete input", func(t *testing.T) {
		form := uniformSymptomForm(1)
		form.Ratings["tics"] = domain.TimeWindowedRating{Before: domain.IntPtr(1), After: domain.IntPtr(1)}
		delete(form.Ratings, "functional_impairment")

		_, err := e.ScoreSymptomScale(form)
		var inc *domain.IncompleteInputError
		require.True(t, errors.As(err, &inc))
		assert.Equal(t, []string{
			"tics.current",
			"functional_impairment.before",
			"functional_impairment.after",
			"functional_impairment.current",
		}, inc.Missing)
	})

	t.Run("out of range rating", func(t *testing.T) {
		form := uniformSymptomForm(1)
		form.Ratings["ocd"] = domain.TimeWindowedRating{Before: domain.IntPtr(6), After: domain.IntPtr(1), Current: domain.IntPtr(1)}
		_, err := e.ScoreSymptomScale(form)
		assert.ErrorIs(t, err, domain.ErrRatingOutOfRange)
	})

	t.Run("unknown item", func(t *testing.T) {
		form := uniformSymptomForm(1)
		form.Ratings["hallucinations"] = domain.TimeWindowedRating{}
		_, err := e.ScoreSymptomScale(form)
		assert.ErrorIs(t, err, domain.ErrUnknownItem)
	})
}

func TestPANS31(t *testing.T) {
	e := newTestEngine(t)

	t.Run("all zero", func(t *testing.T) {
		b, err := e.ScorePANS31(PANS31Form{Ratings: uniformRatings(PANS31Catalog, 0)})
		require.NoError(t, err)
		assert.Equal(t, 0, b.Total)
		assert.Equal(t, PANS31Bands.Lowest(), b.Severity)
		assert.Empty(t, b.HighSeverityItems)
		assert.Len(t, b.Categories, 6)
	})

	t.Run("all four", func(t *testing.T) {
		b, err := e.ScorePANS31(PANS31Form{Ratings: uniformRatings(PANS31Catalog, 4)})
		require.NoError(t, err)
		assert.Equal(t, 124, b.Total)
		assert.Equal(t, 124, b.MaxTotal)
		assert.Equal(t, "extreme", b.Severity.Label)
		assert.Len(t, b.HighSeverityItems, 31)
		assert.Equal(t, 28, b.Categories[2].Value, "behavior has 7 items")
	})

	t.Run("high-severity items in catalog order", func(t *testing.T) {
		ratings := uniformRatings(PANS31Catalog, 1)
		ratings["urinary_symptoms"] = 3
		ratings["panic"] = 4
		ratings["rages"] = 2

		b, err := e.ScorePANS31(PANS31Form{Ratings: ratings})
		require.NoError(t, err)
		assert.Equal(t, []string{"panic", "urinary_symptoms"}, b.HighSeverityItems)
		assert.Equal(t, 31+2+3+1, b.Total)
		assert.Equal(t, "moderate", b.Severity.Label)
	})

	t.Run("missing item is not defaulted to zero", func(t *testing.T) {
		ratings := uniformRatings(PANS31Catalog, 0)
		delete(ratings, "memory")
		_, err := e.ScorePANS31(PANS31Form{Ratings: ratings})
		assert.ErrorIs(t, err, domain.ErrIncompleteInput)
	})

	t.Run("rating above four", func(t *testing.T) {
		ratings := uniformRatings(PANS31Catalog, 0)
		ratings["memory"] = 5
		_, err := e.ScorePANS31(PANS31Form{Ratings: ratings})
		var re *domain.RangeError
		require.True(t, errors.As(err, &re))
		assert.Equal(t, "memory", re.Field)
		assert.Equal(t, 4, re.Max)
	})
}

func TestPTEC(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		name     string
		rating   int
		total    int
		severity string
	}{
		{"all zero", 0, 0, "minimal"},
		{"all one", 1, 102, "moderate"},
		{"all two", 2, 204, "severe"},
		{"all three", 3, 306, "very_severe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := e.ScorePTEC(PTECForm{Ratings: uniformRatings(PTECCatalog, tt.rating)})
			require.NoError(t, err)
			assert.Equal(t, tt.total, b.Total)
			assert.Equal(t, tt.severity, b.Severity.Label)
			assert.Len(t, b.Categories, 10)
			assert.Equal(t, tt.total, SumValues(b.Categories))
		})
	}

	t.Run("rating of four is rejected", func(t *testing.T) {
		ratings := uniformRatings(PTECCatalog, 0)
		ratings["sleep_03"] = 4
		_, err := e.ScorePTEC(PTECForm{Ratings: ratings})
		assert.ErrorIs(t, err, domain.ErrRatingOutOfRange)
	})
}

func cbiRatings(subscaleSums map[string]int) map[string]int {
	ratings := uniformRatings(CBICatalog, 0)
	for sub, sum := range subscaleSums {
		for i := 1; sum > 0; i++ {
			v := min(sum, CBICatalog.Scale.Max)
			ratings[fmt.Sprintf("%s_%02d", sub, i)] = v
			sum -= v
		}
	}
	return ratings
}

func TestCBI(t *testing.T) {
	e := newTestEngine(t)

	t.Run("subscale sums 5/3/2/4/1", func(t *testing.T) {
		b, err := e.ScoreCBI(CBIForm{Ratings: cbiRatings(map[string]int{
			"time_dependence": 5,
			"developmental":   3,
			"physical":        2,
			"social":          4,
			"emotional":       1,
		})})
		require.NoError(t, err)

		scores := []int{}
		maxima := []int{}
		for _, s := range b.Subscales {
			scores = append(scores, s.Score)
			maxima = append(maxima, s.Max)
		}
		assert.Equal(t, []int{5, 3, 2, 4, 1}, scores)
		assert.Equal(t, []int{20, 20, 16, 20, 20}, maxima)
		assert.Equal(t, 15, b.Total)
		assert.Equal(t, 96, b.MaxTotal)
		assert.False(t, b.NeedsRespite)
		assert.Equal(t, RespiteCutoff, b.RespiteCutoff)
		assert.Equal(t, "low", b.Severity.Label)
		assert.Equal(t, NormBelowAverage, b.Norm.Label)
		assert.Equal(t, DefaultCBINorm.Mean, b.Norm.Mean)
	})

	t.Run("respite cutoff boundary", func(t *testing.T) {
		for _, total := range []int{0, 35, 36, 37, 60, 96} {
			sums := map[string]int{}
			remaining := total
			for _, s := range CBISubscales {
				v := min(remaining, s.Items*CBICatalog.Scale.Max)
				sums[s.Name] = v
				remaining -= v
			}
			b, err := e.ScoreCBI(CBIForm{Ratings: cbiRatings(sums)})
			require.NoError(t, err)
			assert.Equal(t, total, b.Total)
			assert.Equal(t, total > 36, b.NeedsRespite, "total %d", total)
		}
	})

	t.Run("subscale norms when configured", func(t *testing.T) {
		e := newTestEngine(t, WithNorm(CBISubscaleNormKey("physical"), NormReference{Population: "p", Mean: 4, SD: 2}))
		b, err := e.ScoreCBI(CBIForm{Ratings: cbiRatings(map[string]int{"physical": 8})})
		require.NoError(t, err)
		for _, s := range b.Subscales {
			if s.Subscale == "physical" {
				require.NotNil(t, s.Norm)
				assert.InDelta(t, 2.0, s.Norm.ZScore, 0.001)
				assert.Equal(t, NormWellAboveAverage, s.Norm.Label)
				continue
			}
			assert.Nil(t, s.Norm)
		}
	})

	t.Run("unknown item", func(t *testing.T) {
		ratings := uniformRatings(CBICatalog, 0)
		ratings["physical_05"] = 1
		_, err := e.ScoreCBI(CBIForm{Ratings: ratings})
		assert.ErrorIs(t, err, domain.ErrUnknownItem)
	})
}
