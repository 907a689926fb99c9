package scales

import (
	"github.com/pans-scales-server/internal/domain"
)

// PTECForm holds the 102 treatment evaluation ratings keyed by item.
type PTECForm struct {
	Ratings map[string]int `json:"ratings" yaml:"ratings"`
}

// Instrument implements Form.
func (PTECForm) Instrument() domain.InstrumentKind { return domain.PTEC }

// PTECBreakdown is the result of one treatment evaluation run. Comparing two
// runs is left to the caller.
type PTECBreakdown struct {
	Categories []DomainScore `json:"categories"`
	Total      int           `json:"total"`
	MaxTotal   int           `json:"max_total"`
	Severity   Band          `json:"severity"`
}

// Instrument implements Breakdown.
func (b *PTECBreakdown) Instrument() domain.InstrumentKind { return domain.PTEC }

// Summary implements Breakdown.
func (b *PTECBreakdown) Summary() Summary {
	return Summary{Total: b.Total, Severity: b.Severity.Label}
}

// ScorePTEC sums the ten categories and bands the total.
func (e *Engine) ScorePTEC(form PTECForm) (*PTECBreakdown, error) {
	cat := PTECCatalog
	ratings, err := cat.ratings(form.Ratings)
	if err != nil {
		return nil, err
	}

	values := make([]DomainValue, len(cat.Items))
	for i, it := range cat.Items {
		values[i] = DomainValue{Domain: it.Domain, Value: ratings[i].Value()}
	}

	out := &PTECBreakdown{MaxTotal: cat.MaxTotal()}
	out.Categories = GroupByDomain(values, SumReducer)
	out.Total = SumValues(out.Categories)
	out.Severity, err = e.Bands(domain.PTEC).Classify(out.Total)
	if err != nil {
		return nil, err
	}
	return out, nil
}
