package domain

// Scale is a closed integer rating range [0, Max] used by an instrument.
type Scale struct {
	Name string
	Max  int
}

// Rating scales used by the instruments.
var (
	SymptomScaleRating = Scale{Name: "symptom_scale", Max: 5}
	PANS31Rating       = Scale{Name: "pans31", Max: 4}
	PTECRating         = Scale{Name: "ptec", Max: 3}
	CBIRating          = Scale{Name: "cbi", Max: 4}
	CriterionSeverity  = Scale{Name: "criterion_severity", Max: 4}
)

// Rating is a value that has been checked against its Scale.
// The only way to obtain a non-zero Rating is through Scale.Rating.
type Rating struct {
	value int
	max   int
}

// Rating validates v against the scale. Out-of-range values are rejected, never clamped.
func (s Scale) Rating(field string, v int) (Rating, error) {
	if v < 0 || v > s.Max {
		return Rating{}, &RangeError{Field: field, Value: v, Min: 0, Max: s.Max}
	}
	return Rating{value: v, max: s.Max}, nil
}

// Value returns the integer rating.
func (r Rating) Value() int {
	return r.value
}

// Max returns the upper bound of the scale the rating was built from.
func (r Rating) Max() int {
	return r.max
}

// TimeWindow names one of the three observation windows of the symptom scale.
type TimeWindow string

const (
	WindowBefore  TimeWindow = "before"
	WindowAfter   TimeWindow = "after"
	WindowCurrent TimeWindow = "current"
)

// TimeWindows lists the observation windows in chronological order.
var TimeWindows = []TimeWindow{WindowBefore, WindowAfter, WindowCurrent}

// TimeWindowedRating holds raw answers for one item across the three windows.
// Pointers distinguish "not answered" from a rating of zero.
type TimeWindowedRating struct {
	Before  *int `json:"before" yaml:"before"`
	After   *int `json:"after" yaml:"after"`
	Current *int `json:"current" yaml:"current"`
}

// In returns the raw answer for a window, or nil when unanswered.
func (t TimeWindowedRating) In(w TimeWindow) *int {
	switch w {
	case WindowBefore:
		return t.Before
	case WindowAfter:
		return t.After
	case WindowCurrent:
		return t.Current
	default:
		return nil
	}
}

// IntPtr is a small helper for building forms in code and tests.
func IntPtr(v int) *int {
	return &v
}
