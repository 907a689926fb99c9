package scales

import (
	"fmt"
	"math"
	"sort"

	"github.com/pans-scales-server/internal/domain"
)

// Formula thresholds.
const (
	CoreThreshold      = 2
	SecondaryThreshold = 3
)

// Confidence component weights and caps.
const (
	GateWeight              = 20.0
	CoreWeight              = 20.0
	SecondaryWeight         = 20.0
	SecondaryCoverageWeight = 10.0

	ClinicalMax   = 80.0
	TreatmentMax  = 10.0
	LabsMax       = 5.0
	MarginMax     = 5.0
	ConfidenceMax = 100.0

	TreatmentResponsePoints = 5.0
	LabPositivePoints       = 5.0
	LabBorderlinePoints     = 3.0
	MarginPoints            = 5.0
)

// DiagnosticForm is a complete answer set for the diagnostic criteria evaluator.
type DiagnosticForm struct {
	SuddenOnset      domain.CriterionResponse `json:"sudden_onset" yaml:"sudden_onset"`
	RecallsOnset     domain.CriterionResponse `json:"recalls_onset" yaml:"recalls_onset"`
	DynamicEvolution domain.CriterionResponse `json:"dynamic_evolution" yaml:"dynamic_evolution"`

	Core       map[string]domain.CriterionWithSeverity `json:"core" yaml:"core"`
	Secondary1 map[string]domain.CriterionWithSeverity `json:"secondary_group1" yaml:"secondary_group1"`
	Secondary2 map[string]domain.CriterionWithSeverity `json:"secondary_group2" yaml:"secondary_group2"`

	AntibioticResponse domain.CriterionResponse `json:"antibiotic_response" yaml:"antibiotic_response"`
	SteroidResponse    domain.CriterionResponse `json:"steroid_response" yaml:"steroid_response"`
	LabStatus          domain.LabStatus         `json:"lab_status" yaml:"lab_status"`
}

// Instrument implements Form.
func (DiagnosticForm) Instrument() domain.InstrumentKind { return domain.DiagnosticCriteria }

// CriteriaCounts holds the number of criteria marked present per group.
type CriteriaCounts struct {
	Mandatory  int `json:"mandatory"`
	Core       int `json:"core"`
	Secondary1 int `json:"secondary_group1"`
	Secondary2 int `json:"secondary_group2"`
}

// SecondaryTotal is the combined secondary count.
func (c CriteriaCounts) SecondaryTotal() int {
	return c.Secondary1 + c.Secondary2
}

// ConfidenceBreakdown decomposes the diagnostic confidence percentage.
type ConfidenceBreakdown struct {
	Clinical  float64 `json:"clinical"`
	Treatment float64 `json:"treatment"`
	Labs      float64 `json:"labs"`
	Margin    float64 `json:"margin"`
	Total     float64 `json:"total"`
}

// DiagnosisResult is the breakdown of the diagnostic criteria evaluator.
type DiagnosisResult struct {
	MandatoryMet    bool                    `json:"mandatory_met"`
	Counts          CriteriaCounts          `json:"counts"`
	Formula1        bool                    `json:"formula1"`
	Formula2        bool                    `json:"formula2"`
	Outcome         domain.DiagnosisOutcome `json:"outcome"`
	Description     string                  `json:"description"`
	Confidence      ConfidenceBreakdown     `json:"confidence"`
	PresentCriteria []string                `json:"present_criteria"`
	UnknownCriteria []string                `json:"unknown_criteria"`
}

// Instrument implements Breakdown.
func (r *DiagnosisResult) Instrument() domain.InstrumentKind { return domain.DiagnosticCriteria }

// Summary reports the rounded confidence total and the outcome.
func (r *DiagnosisResult) Summary() Summary {
	return Summary{
		Total:   int(math.Round(r.Confidence.Total)),
		Outcome: string(r.Outcome),
	}
}

type criteriaGroup struct {
	name    string
	keys    []string
	answers map[string]domain.CriterionWithSeverity
}

func (f DiagnosticForm) groups() []criteriaGroup {
	return []criteriaGroup{
		{"core", CoreCriteria, f.Core},
		{"secondary_group1", SecondaryGroup1Criteria, f.Secondary1},
		{"secondary_group2", SecondaryGroup2Criteria, f.Secondary2},
	}
}

func (f DiagnosticForm) responses() []struct {
	name  string
	value domain.CriterionResponse
} {
	return []struct {
		name  string
		value domain.CriterionResponse
	}{
		{"sudden_onset", f.SuddenOnset},
		{"recalls_onset", f.RecallsOnset},
		{"dynamic_evolution", f.DynamicEvolution},
		{"antibiotic_response", f.AntibioticResponse},
		{"steroid_response", f.SteroidResponse},
	}
}

// validate checks that every criterion is answered with a recognised value and
// that severities, when given, are on the 0-4 scale.
func (f DiagnosticForm) validate() error {
	var unknown []string
	for _, g := range f.groups() {
		for key := range g.answers {
			if !containsKey(g.keys, key) {
				unknown = append(unknown, g.name+"."+key)
			}
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("%w: %s: %v", domain.ErrUnknownItem, domain.DiagnosticCriteria, unknown)
	}

	var missing []string
	for _, r := range f.responses() {
		if !r.value.IsAnswered() {
			missing = append(missing, r.name)
		}
	}
	for _, g := range f.groups() {
		for _, key := range g.keys {
			if !g.answers[key].Response.IsAnswered() {
				missing = append(missing, g.name+"."+key)
			}
		}
	}
	if f.LabStatus == "" {
		missing = append(missing, "lab_status")
	}
	if len(missing) > 0 {
		return &domain.IncompleteInputError{Instrument: domain.DiagnosticCriteria, Missing: missing}
	}

	for _, r := range f.responses() {
		if !r.value.IsValid() {
			return fmt.Errorf("%w: %s is %q", domain.ErrInvalidResponse, r.name, r.value)
		}
	}
	for _, g := range f.groups() {
		for _, key := range g.keys {
			c := g.answers[key]
			if !c.Response.IsValid() {
				return fmt.Errorf("%w: %s.%s is %q", domain.ErrInvalidResponse, g.name, key, c.Response)
			}
			if c.Severity != nil {
				if _, err := domain.CriterionSeverity.Rating(g.name+"."+key+".severity", *c.Severity); err != nil {
					return fmt.Errorf("%s: %w", domain.DiagnosticCriteria, err)
				}
			}
		}
	}
	if !f.LabStatus.IsValid() {
		return fmt.Errorf("%w: lab_status is %q", domain.ErrInvalidResponse, f.LabStatus)
	}
	return nil
}

// EvaluateDiagnosticCriteria applies the mandatory gate, both formulas and
// the confidence weighting.
func (e *Engine) EvaluateDiagnosticCriteria(form DiagnosticForm) (*DiagnosisResult, error) {
	if err := form.validate(); err != nil {
		return nil, err
	}

	res := &DiagnosisResult{
		PresentCriteria: []string{},
		UnknownCriteria: []string{},
	}

	for _, r := range []domain.CriterionResponse{form.SuddenOnset, form.RecallsOnset, form.DynamicEvolution} {
		if r == domain.Yes {
			res.Counts.Mandatory++
		}
	}
	for i, r := range []domain.CriterionResponse{form.SuddenOnset, form.RecallsOnset, form.DynamicEvolution} {
		if r == domain.Unknown {
			res.UnknownCriteria = append(res.UnknownCriteria, MandatoryCriteria[i])
		}
	}
	res.MandatoryMet = res.Counts.Mandatory == len(MandatoryCriteria)

	counts := []*int{&res.Counts.Core, &res.Counts.Secondary1, &res.Counts.Secondary2}
	for i, g := range form.groups() {
		for _, key := range g.keys {
			switch g.answers[key].Response {
			case domain.Yes:
				*counts[i]++
				res.PresentCriteria = append(res.PresentCriteria, g.name+"."+key)
			case domain.Unknown:
				res.UnknownCriteria = append(res.UnknownCriteria, g.name+"."+key)
			}
		}
	}

	res.Formula1 = formula1(form.SuddenOnset, res.MandatoryMet, res.Counts)
	res.Formula2 = formula2(res.Counts)
	res.Outcome = determineOutcome(res)
	res.Description = res.Outcome.Description()
	res.Confidence = confidence(res.Counts, form)
	return res, nil
}

// formula1 is the core pathway.
func formula1(suddenOnset domain.CriterionResponse, mandatoryMet bool, c CriteriaCounts) bool {
	return suddenOnset == domain.Yes && mandatoryMet && c.Core >= CoreThreshold
}

// formula2 is the secondary pathway: enough core criteria plus at least one
// criterion from each secondary group.
func formula2(c CriteriaCounts) bool {
	return c.Core >= CoreThreshold &&
		c.SecondaryTotal() >= SecondaryThreshold &&
		c.Secondary1 >= 1 &&
		c.Secondary2 >= 1
}

// determineOutcome ranks the outcomes. "inconclusive" means nothing was marked
// present but at least one gate or criterion was answered "unknown"; "not_met"
// means every criterion was explicitly answered "no".
func determineOutcome(r *DiagnosisResult) domain.DiagnosisOutcome {
	switch {
	case r.Formula1:
		return domain.OutcomeFormula1
	case r.Formula2:
		return domain.OutcomeFormula2
	case r.Counts.Core >= 1 || r.Counts.SecondaryTotal() >= 1:
		return domain.OutcomePartial
	case len(r.UnknownCriteria) > 0:
		return domain.OutcomeInconclusive
	default:
		return domain.OutcomeNotMet
	}
}

func confidence(c CriteriaCounts, form DiagnosticForm) ConfidenceBreakdown {
	clinical := GateWeight*float64(c.Mandatory)/float64(len(MandatoryCriteria)) +
		CoreWeight*float64(min(c.Core, CoreThreshold))/CoreThreshold +
		SecondaryWeight*float64(min(c.SecondaryTotal(), SecondaryThreshold))/SecondaryThreshold
	if c.Secondary1 >= 1 {
		clinical += SecondaryCoverageWeight
	}
	if c.Secondary2 >= 1 {
		clinical += SecondaryCoverageWeight
	}

	treatment := 0.0
	if form.AntibioticResponse == domain.Yes {
		treatment += TreatmentResponsePoints
	}
	if form.SteroidResponse == domain.Yes {
		treatment += TreatmentResponsePoints
	}

	labs := 0.0
	switch form.LabStatus {
	case domain.LabPositive:
		labs = LabPositivePoints
	case domain.LabBorderline:
		labs = LabBorderlinePoints
	}

	cb := ConfidenceBreakdown{
		Clinical:  round2(math.Min(clinical, ClinicalMax)),
		Treatment: math.Min(treatment, TreatmentMax),
		Labs:      math.Min(labs, LabsMax),
		Margin:    math.Min(MarginPoints, MarginMax),
	}
	cb.Total = round2(math.Min(cb.Clinical+cb.Treatment+cb.Labs+cb.Margin, ConfidenceMax))
	return cb
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
