package scales

import (
	"github.com/pans-scales-server/internal/domain"
)

// HighSeverityRating is the item rating at or above which an item is surfaced
// separately from the total.
const HighSeverityRating = 3

// PANS31Form holds the 31 item ratings keyed by item.
type PANS31Form struct {
	Ratings map[string]int `json:"ratings" yaml:"ratings"`
}

// Instrument implements Form.
func (PANS31Form) Instrument() domain.InstrumentKind { return domain.PANS31 }

// PANS31Breakdown is the result of scoring the 31-item scale.
type PANS31Breakdown struct {
	Categories        []DomainScore `json:"categories"`
	Total             int           `json:"total"`
	MaxTotal          int           `json:"max_total"`
	Severity          Band          `json:"severity"`
	HighSeverityItems []string      `json:"high_severity_items"`
}

// Instrument implements Breakdown.
func (b *PANS31Breakdown) Instrument() domain.InstrumentKind { return domain.PANS31 }

// Summary implements Breakdown.
func (b *PANS31Breakdown) Summary() Summary {
	return Summary{Total: b.Total, Severity: b.Severity.Label}
}

// ScorePANS31 sums each category and bands the total.
func (e *Engine) ScorePANS31(form PANS31Form) (*PANS31Breakdown, error) {
	cat := PANS31Catalog
	ratings, err := cat.ratings(form.Ratings)
	if err != nil {
		return nil, err
	}

	out := &PANS31Breakdown{MaxTotal: cat.MaxTotal(), HighSeverityItems: []string{}}
	values := make([]DomainValue, len(cat.Items))
	for i, it := range cat.Items {
		v := ratings[i].Value()
		values[i] = DomainValue{Domain: it.Domain, Value: v}
		if v >= HighSeverityRating {
			out.HighSeverityItems = append(out.HighSeverityItems, it.Key)
		}
	}
	out.Categories = GroupByDomain(values, SumReducer)
	out.Total = SumValues(out.Categories)

	out.Severity, err = e.Bands(domain.PANS31).Classify(out.Total)
	if err != nil {
		return nil, err
	}
	return out, nil
}
