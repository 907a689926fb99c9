package scales

import (
	"github.com/pans-scales-server/internal/domain"
)

// RespiteCutoff is the CBI total above which respite support is indicated.
const RespiteCutoff = 36

// CBIForm holds the 24 caregiver burden ratings keyed by item.
type CBIForm struct {
	Ratings map[string]int `json:"ratings" yaml:"ratings"`
}

// Instrument implements Form.
func (CBIForm) Instrument() domain.InstrumentKind { return domain.CBI }

// SubscaleScore is a CBI subscale sum with its maximum.
type SubscaleScore struct {
	Subscale string          `json:"subscale"`
	Score    int             `json:"score"`
	Max      int             `json:"max"`
	Norm     *NormComparison `json:"norm,omitempty"`
}

// CBIBreakdown is the result of scoring the caregiver burden inventory.
type CBIBreakdown struct {
	Subscales     []SubscaleScore `json:"subscales"`
	Total         int             `json:"total"`
	MaxTotal      int             `json:"max_total"`
	Severity      Band            `json:"severity"`
	RespiteCutoff int             `json:"respite_cutoff"`
	NeedsRespite  bool            `json:"needs_respite"`
	Norm          NormComparison  `json:"norm"`
}

// Instrument implements Breakdown.
func (b *CBIBreakdown) Instrument() domain.InstrumentKind { return domain.CBI }

// Summary implements Breakdown.
func (b *CBIBreakdown) Summary() Summary {
	return Summary{Total: b.Total, Severity: b.Severity.Label}
}

// ScoreCBI sums the subscales, applies the respite cutoff and compares the
// total, and every subscale with a configured reference, to its norm.
func (e *Engine) ScoreCBI(form CBIForm) (*CBIBreakdown, error) {
	cat := CBICatalog
	ratings, err := cat.ratings(form.Ratings)
	if err != nil {
		return nil, err
	}

	values := make([]DomainValue, len(cat.Items))
	for i, it := range cat.Items {
		values[i] = DomainValue{Domain: it.Domain, Value: ratings[i].Value()}
	}
	sums := GroupByDomain(values, SumReducer)
	return e.cbiFromSubscales(sums)
}

func (e *Engine) cbiFromSubscales(sums []DomainScore) (*CBIBreakdown, error) {
	out := &CBIBreakdown{
		Subscales:     make([]SubscaleScore, len(sums)),
		MaxTotal:      CBICatalog.MaxTotal(),
		RespiteCutoff: RespiteCutoff,
	}
	for i, s := range sums {
		sub := SubscaleScore{Subscale: s.Domain, Score: s.Value, Max: s.Items * CBICatalog.Scale.Max}
		if ref, ok := e.norms[CBISubscaleNormKey(s.Domain)]; ok {
			cmp, err := CompareToNorm(s.Value, ref)
			if err != nil {
				return nil, err
			}
			sub.Norm = &cmp
		}
		out.Subscales[i] = sub
		out.Total += s.Value
	}
	out.NeedsRespite = out.Total > RespiteCutoff

	var err error
	out.Severity, err = e.Bands(domain.CBI).Classify(out.Total)
	if err != nil {
		return nil, err
	}
	out.Norm, err = CompareToNorm(out.Total, e.Norm(NormKeyCBI))
	if err != nil {
		return nil, err
	}
	return out, nil
}
