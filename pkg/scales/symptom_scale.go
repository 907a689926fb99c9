package scales

import (
	"fmt"
	"sort"

	"github.com/pans-scales-server/internal/domain"
)

// Symptom scale weights.
const (
	PrimaryMultiplier    = 5
	FunctionalMultiplier = 10
	AssociatedTopDomains = 5
	SymptomScaleMaxTotal = 100
)

// SymptomScaleForm holds every item of the symptom scale for all three windows.
type SymptomScaleForm struct {
	Ratings map[string]domain.TimeWindowedRating `json:"ratings" yaml:"ratings"`
}

// Instrument implements Form.
func (SymptomScaleForm) Instrument() domain.InstrumentKind { return domain.SymptomScale }

// WindowScore is the score of one observation window.
type WindowScore struct {
	Window     domain.TimeWindow `json:"window"`
	Primary    int               `json:"primary"`
	Associated int               `json:"associated"`
	Functional int               `json:"functional"`
	Total      int               `json:"total"`
	Domains    []DomainScore     `json:"domains"`
	TopDomains []DomainScore     `json:"top_domains"`
	Severity   Band              `json:"severity"`
}

// SymptomScaleBreakdown holds one WindowScore per window, in chronological order.
type SymptomScaleBreakdown struct {
	Windows []WindowScore `json:"windows"`
}

// Instrument implements Breakdown.
func (b *SymptomScaleBreakdown) Instrument() domain.InstrumentKind { return domain.SymptomScale }

// Summary reports the current window.
func (b *SymptomScaleBreakdown) Summary() Summary {
	ws, _ := b.Window(domain.WindowCurrent)
	return Summary{Total: ws.Total, Severity: ws.Severity.Label}
}

// Window returns the score of window w.
func (b *SymptomScaleBreakdown) Window(w domain.TimeWindow) (WindowScore, bool) {
	for _, ws := range b.Windows {
		if ws.Window == w {
			return ws, true
		}
	}
	return WindowScore{}, false
}

// ScoreSymptomScale scores each window independently with the same formulas.
func (e *Engine) ScoreSymptomScale(form SymptomScaleForm) (*SymptomScaleBreakdown, error) {
	cat := SymptomScaleCatalog

	var unknown []string
	for key := range form.Ratings {
		if !cat.has(key) {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrUnknownItem, cat.Instrument, unknown)
	}

	var missing []string
	for _, it := range cat.Items {
		twr := form.Ratings[it.Key]
		for _, w := range domain.TimeWindows {
			if twr.In(w) == nil {
				missing = append(missing, it.Key+"."+string(w))
			}
		}
	}
	if len(missing) > 0 {
		return nil, &domain.IncompleteInputError{Instrument: cat.Instrument, Missing: missing}
	}

	bands := e.Bands(domain.SymptomScale)
	out := &SymptomScaleBreakdown{Windows: make([]WindowScore, 0, len(domain.TimeWindows))}
	for _, w := range domain.TimeWindows {
		answers := make(map[string]int, len(cat.Items))
		for _, it := range cat.Items {
			answers[it.Key] = *form.Ratings[it.Key].In(w)
		}
		ratings, err := cat.ratings(answers)
		if err != nil {
			return nil, fmt.Errorf("%s window: %w", w, err)
		}
		ws, err := scoreWindow(w, ratings, bands)
		if err != nil {
			return nil, err
		}
		out.Windows = append(out.Windows, ws)
	}
	return out, nil
}

func scoreWindow(w domain.TimeWindow, ratings []domain.Rating, bands BandSet) (WindowScore, error) {
	ws := WindowScore{Window: w}

	primaryMax := 0
	var associated []DomainValue
	for i, it := range SymptomScaleCatalog.Items {
		v := ratings[i].Value()
		switch it.Domain {
		case DomainPrimary:
			if v > primaryMax {
				primaryMax = v
			}
		case DomainFunctional:
			ws.Functional = v * FunctionalMultiplier
		default:
			associated = append(associated, DomainValue{Domain: it.Domain, Value: v})
		}
	}

	ws.Primary = primaryMax * PrimaryMultiplier
	ws.Domains = GroupByDomain(associated, MaxReducer)
	ws.TopDomains, ws.Associated = TopN(ws.Domains, AssociatedTopDomains)
	ws.Total = ws.Primary + ws.Associated + ws.Functional

	band, err := bands.Classify(ws.Total)
	if err != nil {
		return WindowScore{}, err
	}
	ws.Severity = band
	return ws, nil
}
