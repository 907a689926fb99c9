// Package domain contains the core entities shared by the PANS screening instrument
// engine and the service around it: instrument kinds, rating scales, criterion
// responses, error types, configuration and persistence records.
//
// Reference: Swedo SE, Leckman JF, Rose NR (2012). From research subgroup to clinical
// syndrome: modifying the PANDAS criteria to describe PANS. Pediatr Therapeut 2:113.
package domain

import (
	"fmt"
)

// InstrumentKind identifies one of the supported screening instruments.
type InstrumentKind string

const (
	SymptomScale       InstrumentKind = "symptom_scale"
	DiagnosticCriteria InstrumentKind = "diagnostic_criteria"
	PANS31             InstrumentKind = "pans31"
	PTEC               InstrumentKind = "ptec"
	CBI                InstrumentKind = "cbi"
)

// AllInstruments lists every supported instrument in presentation order.
var AllInstruments = []InstrumentKind{SymptomScale, DiagnosticCriteria, PANS31, PTEC, CBI}

// IsValid reports whether the kind is a supported instrument.
func (k InstrumentKind) IsValid() bool {
	switch k {
	case SymptomScale, DiagnosticCriteria, PANS31, PTEC, CBI:
		return true
	default:
		return false
	}
}

// String returns the wire identifier of the instrument.
func (k InstrumentKind) String() string {
	return string(k)
}

// Title returns a human-readable instrument name for reports and logs.
func (k InstrumentKind) Title() string {
	switch k {
	case SymptomScale:
		return "PANS Symptom Severity Scale"
	case DiagnosticCriteria:
		return "PANS Diagnostic Criteria"
	case PANS31:
		return "PANS-31 Symptom Rating Scale"
	case PTEC:
		return "PANS/PANDAS Treatment Evaluation Checklist"
	case CBI:
		return "Caregiver Burden Inventory"
	default:
		return "Unknown instrument"
	}
}

// ParseInstrumentKind converts a wire identifier into an InstrumentKind.
func ParseInstrumentKind(s string) (InstrumentKind, error) {
	k := InstrumentKind(s)
	if !k.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownInstrument, s)
	}
	return k, nil
}

// CriterionResponse is the answer to a binary clinical fact.
// The zero value means the question was not answered.
type CriterionResponse string

const (
	Yes     CriterionResponse = "yes"
	No      CriterionResponse = "no"
	Unknown CriterionResponse = "unknown"
)

// IsValid reports whether the response is one of yes/no/unknown.
func (r CriterionResponse) IsValid() bool {
	switch r {
	case Yes, No, Unknown:
		return true
	default:
		return false
	}
}

// IsAnswered reports whether a response was given at all.
func (r CriterionResponse) IsAnswered() bool {
	return r != ""
}

// CriterionWithSeverity pairs a criterion response with an optional severity
// sub-rating. Severity is only meaningful when Response is yes.
type CriterionWithSeverity struct {
	Response CriterionResponse `json:"response" yaml:"response"`
	Severity *int              `json:"severity,omitempty" yaml:"severity,omitempty"`
}

// Present reports whether the criterion was marked present.
func (c CriterionWithSeverity) Present() bool {
	return c.Response == Yes
}

// LabStatus summarises the overall laboratory work-up for the diagnostic instrument.
type LabStatus string

const (
	LabPositive   LabStatus = "positive"
	LabBorderline LabStatus = "borderline"
	LabNegative   LabStatus = "negative"
	LabNotTested  LabStatus = "not_tested"
)

// IsValid reports whether the lab status is recognised.
func (s LabStatus) IsValid() bool {
	switch s {
	case LabPositive, LabBorderline, LabNegative, LabNotTested:
		return true
	default:
		return false
	}
}

// DiagnosisOutcome is the categorical result of the diagnostic criteria evaluation.
type DiagnosisOutcome string

const (
	OutcomeFormula1     DiagnosisOutcome = "formula1"
	OutcomeFormula2     DiagnosisOutcome = "formula2"
	OutcomePartial      DiagnosisOutcome = "partial"
	OutcomeInconclusive DiagnosisOutcome = "inconclusive"
	OutcomeNotMet       DiagnosisOutcome = "not_met"
)

// IsValid reports whether the outcome belongs to the fixed enumeration.
func (o DiagnosisOutcome) IsValid() bool {
	switch o {
	case OutcomeFormula1, OutcomeFormula2, OutcomePartial, OutcomeInconclusive, OutcomeNotMet:
		return true
	default:
		return false
	}
}

// String returns the wire value of the outcome.
func (o DiagnosisOutcome) String() string {
	return string(o)
}

// Description returns a clinician-facing summary of the outcome.
func (o DiagnosisOutcome) Description() string {
	switch o {
	case OutcomeFormula1:
		return "Criteria met via the core pathway (abrupt onset with at least two core symptoms)"
	case OutcomeFormula2:
		return "Criteria met via the secondary pathway (core symptoms with secondary symptoms from both groups)"
	case OutcomePartial:
		return "Some criteria present but neither pathway satisfied"
	case OutcomeInconclusive:
		return "No criteria present, but unknown answers prevent ruling the diagnosis out"
	case OutcomeNotMet:
		return "Criteria explicitly absent"
	default:
		return "Unknown outcome"
	}
}

// MeetsCriteria reports whether the outcome represents a satisfied diagnostic pathway.
func (o DiagnosisOutcome) MeetsCriteria() bool {
	return o == OutcomeFormula1 || o == OutcomeFormula2
}

// LogFields returns structured logging fields for audit trails.
func (o DiagnosisOutcome) LogFields() map[string]any {
	return map[string]any{
		"outcome":        string(o),
		"is_valid":       o.IsValid(),
		"meets_criteria": o.MeetsCriteria(),
	}
}
