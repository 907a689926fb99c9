package scales

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pans-scales-server/internal/domain"
)

func TestGroupByDomain(t *testing.T) {
	values := []DomainValue{
		{"b", 2}, {"a", 1}, {"b", 4}, {"c", 0}, {"a", 3},
	}

	t.Run("max reducer keeps first-encountered order", func(t *testing.T) {
		got := GroupByDomain(values, MaxReducer)
		assert.Equal(t, []DomainScore{
			{Domain: "b", Value: 4, Items: 2},
			{Domain: "a", Value: 3, Items: 2},
			{Domain: "c", Value: 0, Items: 1},
		}, got)
	})

	t.Run("sum reducer", func(t *testing.T) {
		got := GroupByDomain(values, SumReducer)
		assert.Equal(t, 6, got[0].Value)
		assert.Equal(t, 4, got[1].Value)
		assert.Equal(t, 0, got[2].Value)
		assert.Equal(t, 10, SumValues(got))
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, GroupByDomain(nil, SumReducer))
	})
}

func TestTopN(t *testing.T) {
	groups := []DomainScore{
		{Domain: "a", Value: 3},
		{Domain: "b", Value: 5},
		{Domain: "c", Value: 3},
		{Domain: "d", Value: 3},
		{Domain: "e", Value: 1},
	}

	tests := []struct {
		name    string
		n       int
		domains []string
		sum     int
	}{
		{"ties at the boundary resolve by first-encountered order", 2, []string{"b", "a"}, 8},
		{"all tied domains fit", 4, []string{"b", "a", "c", "d"}, 14},
		{"fewer domains than n sums all", 10, []string{"b", "a", "c", "d", "e"}, 15},
		{"zero", 0, []string{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			top, sum := TopN(groups, tt.n)
			names := []string{}
			for _, g := range top {
				names = append(names, g.Domain)
			}
			assert.Equal(t, tt.domains, names)
			assert.Equal(t, tt.sum, sum)
		})
	}

	// input order must not change
	assert.Equal(t, "a", groups[0].Domain)
}

func TestBandSetValidate(t *testing.T) {
	tests := []struct {
		name    string
		bands   []Band
		wantErr bool
	}{
		{"contiguous", []Band{{"low", 0, 4, ""}, {"high", 5, 9, ""}}, false},
		{"gap", []Band{{"low", 0, 4, ""}, {"high", 6, 9, ""}}, true},
		{"overlap", []Band{{"low", 0, 5, ""}, {"high", 5, 9, ""}}, true},
		{"descending", []Band{{"high", 5, 9, ""}, {"low", 0, 4, ""}}, true},
		{"inverted band", []Band{{"low", 4, 0, ""}}, true},
		{"missing label", []Band{{"", 0, 4, ""}}, true},
		{"empty", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBandSet("test", tt.bands)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, domain.ErrInvalidBands))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestBandSetClassify(t *testing.T) {
	for _, bs := range []BandSet{SymptomScaleBands, PANS31Bands, PTECBands, CBIBands} {
		require.NoError(t, bs.Validate(), bs.Name)
	}

	band, err := PANS31Bands.Classify(0)
	require.NoError(t, err)
	assert.Equal(t, "minimal", band.Label)

	band, err = PANS31Bands.Classify(124)
	require.NoError(t, err)
	assert.Equal(t, "extreme", band.Label)

	band, err = PTECBands.Classify(31)
	require.NoError(t, err)
	assert.Equal(t, "mild", band.Label)

	_, err = PTECBands.Classify(307)
	assert.ErrorIs(t, err, domain.ErrScoreOutOfBands)
	_, err = PTECBands.Classify(-1)
	assert.ErrorIs(t, err, domain.ErrScoreOutOfBands)

	assert.NoError(t, PTECBands.Covers(0, 306))
	assert.ErrorIs(t, PTECBands.Covers(0, 300), domain.ErrInvalidBands)
	assert.Equal(t, []string{"low", "moderate", "high", "severe"}, CBIBands.Labels())
}

func TestCompareToNorm(t *testing.T) {
	ref := NormReference{Population: "reference", Mean: 40, SD: 10}

	tests := []struct {
		score int
		label NormLabel
		z     float64
	}{
		{20, NormBelowAverage, -2},
		{35, NormAverage, -0.5},
		{45, NormAverage, 0.5},
		{50, NormAboveAverage, 1},
		{55, NormAboveAverage, 1.5},
		{56, NormWellAboveAverage, 1.6},
	}

	for _, tt := range tests {
		t.Run(string(tt.label), func(t *testing.T) {
			got, err := CompareToNorm(tt.score, ref)
			require.NoError(t, err)
			assert.Equal(t, tt.label, got.Label)
			assert.InDelta(t, tt.z, got.ZScore, 0.001)
			assert.Equal(t, tt.score, got.Score)
			assert.Equal(t, 40.0, got.Mean)
			assert.Equal(t, 10.0, got.SD)
		})
	}

	_, err := CompareToNorm(10, NormReference{Mean: 10, SD: 0})
	assert.Error(t, err)
}
