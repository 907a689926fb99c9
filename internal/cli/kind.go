package cli

import (
	"strings"

	"github.com/pans-scales-server/internal/domain"
)

var kindAliases = map[string]domain.InstrumentKind{
	"symptoms":      domain.SymptomScale,
	"symptom-scale": domain.SymptomScale,
	"diagnostic":    domain.DiagnosticCriteria,
	"criteria":      domain.DiagnosticCriteria,
	"pans-31":       domain.PANS31,
	"pans_31":       domain.PANS31,
	"treatment":     domain.PTEC,
	"caregiver":     domain.CBI,
	"burden":        domain.CBI,
}

// scalesKind normalizes user input to an instrument identifier. Unknown
// values pass through and are rejected by the service.
func scalesKind(s string) domain.InstrumentKind {
	key := strings.ToLower(strings.TrimSpace(s))
	if k, ok := kindAliases[key]; ok {
		return k
	}
	return domain.InstrumentKind(key)
}

func parseKind(s string) (domain.InstrumentKind, error) {
	return domain.ParseInstrumentKind(string(scalesKind(s)))
}
