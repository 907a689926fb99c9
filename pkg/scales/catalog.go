package scales

import (
	"fmt"
	"sort"

	"github.com/pans-scales-server/internal/domain"
)

// Item is one question of an instrument, tagged with its scoring domain.
type Item struct {
	Key    string `json:"key"`
	Domain string `json:"domain"`
}

// Catalog is the fixed item layout of an instrument. Question text is out of
// scope; only the stable keys and their domain membership matter for scoring.
type Catalog struct {
	Instrument domain.InstrumentKind
	Scale      domain.Scale
	Items      []Item
}

// Domains returns the distinct domains in catalog order.
func (c Catalog) Domains() []string {
	seen := make(map[string]bool)
	var out []string
	for _, it := range c.Items {
		if !seen[it.Domain] {
			seen[it.Domain] = true
			out = append(out, it.Domain)
		}
	}
	return out
}

// DomainSizes returns the number of items per domain in catalog order.
func (c Catalog) DomainSizes() map[string]int {
	sizes := make(map[string]int)
	for _, it := range c.Items {
		sizes[it.Domain]++
	}
	return sizes
}

// MaxTotal is the sum of per-item maxima.
func (c Catalog) MaxTotal() int {
	return len(c.Items) * c.Scale.Max
}

func (c Catalog) has(key string) bool {
	for _, it := range c.Items {
		if it.Key == key {
			return true
		}
	}
	return false
}

// ratings validates a flat answer map against the catalog and returns ratings
// aligned with c.Items. Unknown keys are rejected first, then missing answers
// (all of them, in catalog order), then the first out-of-range value.
func (c Catalog) ratings(answers map[string]int) ([]domain.Rating, error) {
	var unknown []string
	for key := range answers {
		if !c.has(key) {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrUnknownItem, c.Instrument, unknown)
	}

	var missing []string
	for _, it := range c.Items {
		if _, ok := answers[it.Key]; !ok {
			missing = append(missing, it.Key)
		}
	}
	if len(missing) > 0 {
		return nil, &domain.IncompleteInputError{Instrument: c.Instrument, Missing: missing}
	}

	out := make([]domain.Rating, len(c.Items))
	for i, it := range c.Items {
		r, err := c.Scale.Rating(it.Key, answers[it.Key])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.Instrument, err)
		}
		out[i] = r
	}
	return out, nil
}

// Symptom scale layout. Primary and functional items are scored on their own;
// associated items are grouped by clinical domain.
const (
	DomainPrimary    = "primary"
	DomainFunctional = "functional"

	FunctionalImpairmentItem = "functional_impairment"
)

// SymptomScaleCatalog is the item layout of the time-windowed symptom scale.
var SymptomScaleCatalog = Catalog{
	Instrument: domain.SymptomScale,
	Scale:      domain.SymptomScaleRating,
	Items: []Item{
		{"ocd", DomainPrimary},
		{"restricted_eating", DomainPrimary},

		{"separation_anxiety", "anxiety"},
		{"generalized_anxiety", "anxiety"},
		{"emotional_lability", "emotional_lability"},
		{"depression", "emotional_lability"},
		{"irritability", "irritability_aggression"},
		{"aggression", "irritability_aggression"},
		{"oppositional_behavior", "irritability_aggression"},
		{"behavioral_regression", "behavioral_regression"},
		{"attention_difficulty", "school_performance"},
		{"school_decline", "school_performance"},
		{"handwriting_decline", "school_performance"},
		{"sensory_sensitivity", "sensory_motor"},
		{"tics", "sensory_motor"},
		{"motor_abnormalities", "sensory_motor"},
		{"sleep_disturbance", "somatic"},
		{"urinary_symptoms", "somatic"},

		{FunctionalImpairmentItem, DomainFunctional},
	},
}

// Diagnostic criteria groups.
var (
	MandatoryCriteria = []string{"sudden_onset", "recalls_onset", "dynamic_evolution"}

	CoreCriteria = []string{
		"obsessive_compulsive",
		"food_restriction",
		"tic_onset",
		"acute_behavioral_change",
	}

	SecondaryGroup1Criteria = []string{
		"anxiety",
		"emotional_lability_depression",
		"irritability_aggression",
		"behavioral_regression",
		"school_deterioration",
	}

	SecondaryGroup2Criteria = []string{
		"sensory_amplification",
		"motor_abnormalities",
		"sleep_disturbance",
		"enuresis",
		"urinary_frequency",
		"handwriting_deterioration",
		"hyperactivity",
		"inattention",
		"hallucinations",
		"mydriasis",
		"choreiform_movements",
		"headaches",
		"joint_pain",
	}
)

// PANS31Catalog is the 31-item layout, six categories of 6/6/7/3/5/4 items.
var PANS31Catalog = Catalog{
	Instrument: domain.PANS31,
	Scale:      domain.PANS31Rating,
	Items: []Item{
		{"contamination_obsessions", "ocd"},
		{"harm_obsessions", "ocd"},
		{"checking_compulsions", "ocd"},
		{"washing_compulsions", "ocd"},
		{"ordering_rituals", "ocd"},
		{"intrusive_thoughts", "ocd"},

		{"separation_anxiety", "anxiety_mood"},
		{"generalized_anxiety", "anxiety_mood"},
		{"panic", "anxiety_mood"},
		{"depressed_mood", "anxiety_mood"},
		{"emotional_lability", "anxiety_mood"},
		{"suicidal_thoughts", "anxiety_mood"},

		{"irritability", "behavior"},
		{"aggression", "behavior"},
		{"oppositional", "behavior"},
		{"impulsivity", "behavior"},
		{"hyperactivity", "behavior"},
		{"developmental_regression", "behavior"},
		{"rages", "behavior"},

		{"food_restriction", "eating"},
		{"fear_of_choking", "eating"},
		{"texture_aversion", "eating"},

		{"sensory_sensitivity", "sensory_motor"},
		{"motor_tics", "sensory_motor"},
		{"vocal_tics", "sensory_motor"},
		{"choreiform_movements", "sensory_motor"},
		{"handwriting_deterioration", "sensory_motor"},

		{"concentration", "cognitive_somatic"},
		{"memory", "cognitive_somatic"},
		{"sleep_disturbance", "cognitive_somatic"},
		{"urinary_symptoms", "cognitive_somatic"},
	},
}

// PTECCategories lists the ten treatment-evaluation categories and their sizes.
var PTECCategories = []struct {
	Name  string
	Items int
}{
	{"ocd", 19},
	{"eating", 9},
	{"anxiety", 11},
	{"mood", 10},
	{"behavior", 13},
	{"sensory", 10},
	{"motor", 10},
	{"cognitive", 8},
	{"sleep", 6},
	{"somatic", 6},
}

// PTECCatalog is the 102-item treatment evaluation layout. Item keys are
// "<category>_<nn>" since the question labels themselves are not scored.
var PTECCatalog = buildNumberedCatalog(domain.PTEC, domain.PTECRating, PTECCategories)

// CBISubscales lists the five burden subscales and their sizes.
var CBISubscales = []struct {
	Name  string
	Items int
}{
	{"time_dependence", 5},
	{"developmental", 5},
	{"physical", 4},
	{"social", 5},
	{"emotional", 5},
}

// CBICatalog is the 24-item caregiver burden layout.
var CBICatalog = buildNumberedCatalog(domain.CBI, domain.CBIRating, CBISubscales)

func buildNumberedCatalog(kind domain.InstrumentKind, scale domain.Scale, groups []struct {
	Name  string
	Items int
}) Catalog {
	c := Catalog{Instrument: kind, Scale: scale}
	for _, g := range groups {
		for i := 1; i <= g.Items; i++ {
			c.Items = append(c.Items, Item{Key: fmt.Sprintf("%s_%02d", g.Name, i), Domain: g.Name})
		}
	}
	return c
}
