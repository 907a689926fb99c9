package scales

import (
	"fmt"
	"strings"

	"github.com/pans-scales-server/internal/domain"
)

// Form is a complete answer snapshot for one instrument.
type Form interface {
	Instrument() domain.InstrumentKind
}

// Summary is the instrument-independent headline of a breakdown.
type Summary struct {
	Total    int    `json:"total"`
	Severity string `json:"severity,omitempty"`
	Outcome  string `json:"outcome,omitempty"`
}

// Breakdown is the result of scoring one Form.
type Breakdown interface {
	Instrument() domain.InstrumentKind
	Summary() Summary
}

// Engine scores instrument forms. Band sets and norm references are fixed at
// construction; an Engine is safe for concurrent use.
type Engine struct {
	bands map[domain.InstrumentKind]BandSet
	norms map[string]NormReference
}

// Option configures an Engine.
type Option func(*Engine) error

// WithBands replaces the default band set of an instrument. The set must span
// the instrument's full total range.
func WithBands(kind domain.InstrumentKind, bs BandSet) Option {
	return func(e *Engine) error {
		lo, hi, ok := bandedRange(kind)
		if !ok {
			return fmt.Errorf("%w: %s does not use severity bands", domain.ErrInvalidBands, kind)
		}
		if err := bs.Validate(); err != nil {
			return err
		}
		if kind == domain.PTEC && len(bs.Bands) != PTECBandCount {
			return fmt.Errorf("%w: %s needs %d bands, got %d", domain.ErrInvalidBands, kind, PTECBandCount, len(bs.Bands))
		}
		if err := bs.Covers(lo, hi); err != nil {
			return err
		}
		e.bands[kind] = bs
		return nil
	}
}

// WithNorm sets a reference population. Valid keys are "cbi" and
// "cbi_<subscale>".
func WithNorm(key string, ref NormReference) Option {
	return func(e *Engine) error {
		if !validNormKey(key) {
			return fmt.Errorf("unknown norm key %q", key)
		}
		if err := ref.Validate(); err != nil {
			return err
		}
		e.norms[key] = ref
		return nil
	}
}

// WithScoringConfig applies band and norm overrides read from configuration.
func WithScoringConfig(cfg domain.ScoringConfig) Option {
	return func(e *Engine) error {
		for name, bands := range cfg.Bands {
			if len(bands) == 0 {
				continue
			}
			kind, err := domain.ParseInstrumentKind(name)
			if err != nil {
				return fmt.Errorf("scoring.bands: %w", err)
			}
			bs, err := BandSetFromConfig(name, bands)
			if err != nil {
				return err
			}
			if err := WithBands(kind, bs)(e); err != nil {
				return err
			}
		}
		for key, norm := range cfg.Norms {
			if err := WithNorm(key, NormFromConfig(norm))(e); err != nil {
				return fmt.Errorf("scoring.norms: %w", err)
			}
		}
		return nil
	}
}

// NewEngine creates an engine with the default band sets and norms, then
// applies opts.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		bands: map[domain.InstrumentKind]BandSet{
			domain.SymptomScale: SymptomScaleBands,
			domain.PANS31:       PANS31Bands,
			domain.PTEC:         PTECBands,
			domain.CBI:          CBIBands,
		},
		norms: map[string]NormReference{
			NormKeyCBI: DefaultCBINorm,
		},
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Bands returns the band set in use for kind.
func (e *Engine) Bands(kind domain.InstrumentKind) BandSet {
	return e.bands[kind]
}

// Norm returns the reference population for key.
func (e *Engine) Norm(key string) NormReference {
	return e.norms[key]
}

// Compute dispatches form to the scorer of its instrument. Both value and
// pointer forms are accepted.
func (e *Engine) Compute(form Form) (Breakdown, error) {
	var (
		b   Breakdown
		err error
	)
	switch f := formValue(form).(type) {
	case SymptomScaleForm:
		b, err = e.ScoreSymptomScale(f)
	case DiagnosticForm:
		b, err = e.EvaluateDiagnosticCriteria(f)
	case PANS31Form:
		b, err = e.ScorePANS31(f)
	case PTECForm:
		b, err = e.ScorePTEC(f)
	case CBIForm:
		b, err = e.ScoreCBI(f)
	default:
		return nil, fmt.Errorf("%w: unsupported form %T", domain.ErrUnknownInstrument, form)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func formValue(form Form) Form {
	switch f := form.(type) {
	case *SymptomScaleForm:
		if f != nil {
			return *f
		}
	case *DiagnosticForm:
		if f != nil {
			return *f
		}
	case *PANS31Form:
		if f != nil {
			return *f
		}
	case *PTECForm:
		if f != nil {
			return *f
		}
	case *CBIForm:
		if f != nil {
			return *f
		}
	default:
		return form
	}
	return nil
}

// NewForm returns an empty form of the given instrument, ready to be decoded into.
func NewForm(kind domain.InstrumentKind) (Form, error) {
	switch kind {
	case domain.SymptomScale:
		return &SymptomScaleForm{}, nil
	case domain.DiagnosticCriteria:
		return &DiagnosticForm{}, nil
	case domain.PANS31:
		return &PANS31Form{}, nil
	case domain.PTEC:
		return &PTECForm{}, nil
	case domain.CBI:
		return &CBIForm{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownInstrument, kind)
	}
}

// DomainInfo describes one domain of an instrument.
type DomainInfo struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

// InstrumentInfo describes an instrument for listing endpoints.
type InstrumentInfo struct {
	Kind      domain.InstrumentKind `json:"kind"`
	Title     string                `json:"title"`
	ItemCount int                   `json:"item_count"`
	RatingMax int                   `json:"rating_max"`
	MaxTotal  int                   `json:"max_total"`
	Domains   []DomainInfo          `json:"domains"`
	Bands     []Band                `json:"bands,omitempty"`
}

// Instruments lists every instrument with its layout and active bands.
func (e *Engine) Instruments() []InstrumentInfo {
	out := make([]InstrumentInfo, 0, len(domain.AllInstruments))
	for _, kind := range domain.AllInstruments {
		out = append(out, e.Describe(kind))
	}
	return out
}

// Describe returns metadata for one instrument.
func (e *Engine) Describe(kind domain.InstrumentKind) InstrumentInfo {
	info := InstrumentInfo{Kind: kind, Title: kind.Title()}

	if kind == domain.DiagnosticCriteria {
		groups := []DomainInfo{
			{Name: "mandatory", Items: MandatoryCriteria},
			{Name: "core", Items: CoreCriteria},
			{Name: "secondary_group1", Items: SecondaryGroup1Criteria},
			{Name: "secondary_group2", Items: SecondaryGroup2Criteria},
		}
		for _, g := range groups {
			info.ItemCount += len(g.Items)
		}
		info.Domains = groups
		info.RatingMax = domain.CriterionSeverity.Max
		info.MaxTotal = int(ConfidenceMax)
		return info
	}

	cat, ok := catalogFor(kind)
	if !ok {
		return info
	}
	info.ItemCount = len(cat.Items)
	info.RatingMax = cat.Scale.Max
	info.MaxTotal = cat.MaxTotal()
	if kind == domain.SymptomScale {
		info.MaxTotal = SymptomScaleMaxTotal
	}
	for _, name := range cat.Domains() {
		d := DomainInfo{Name: name}
		for _, it := range cat.Items {
			if it.Domain == name {
				d.Items = append(d.Items, it.Key)
			}
		}
		info.Domains = append(info.Domains, d)
	}
	info.Bands = e.bands[kind].Bands
	return info
}

func catalogFor(kind domain.InstrumentKind) (Catalog, bool) {
	switch kind {
	case domain.SymptomScale:
		return SymptomScaleCatalog, true
	case domain.PANS31:
		return PANS31Catalog, true
	case domain.PTEC:
		return PTECCatalog, true
	case domain.CBI:
		return CBICatalog, true
	default:
		return Catalog{}, false
	}
}

// bandedRange returns the total range that a band set for kind must span.
func bandedRange(kind domain.InstrumentKind) (int, int, bool) {
	switch kind {
	case domain.SymptomScale:
		return 0, SymptomScaleMaxTotal, true
	case domain.PANS31, domain.PTEC, domain.CBI:
		cat, _ := catalogFor(kind)
		return 0, cat.MaxTotal(), true
	default:
		return 0, 0, false
	}
}

func validNormKey(key string) bool {
	if key == NormKeyCBI {
		return true
	}
	sub, ok := strings.CutPrefix(key, NormKeyCBI+"_")
	if !ok {
		return false
	}
	for _, s := range CBISubscales {
		if s.Name == sub {
			return true
		}
	}
	return false
}
