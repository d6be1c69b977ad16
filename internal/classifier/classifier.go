// Package classifier implements the rule-based emergency assessment engine.
//
// The classifier maps a free-text emergency description to a severity,
// a set of suggested services, and a natural-language recommendation. Rules
// are an explicit ordered list evaluated in sequence with short-circuit on
// the first match, which keeps the ordering contract visible and
// independently testable. There is no keyword-overlap resolution beyond
// first-match: an input matching both the cardiac and fire patterns is
// classified only under cardiac, because that rule is checked first.
package classifier

import (
	"strings"

	"github.com/rgoodwin/beacon/internal/domain"
)

// =============================================================================
// Rule Definition
// =============================================================================

// rule pairs a predicate with a result builder. Builders receive the
// lowercased input so compound rules can inspect it for escalation.
type rule struct {
	name  string
	match func(text string) bool
	build func(text string) domain.Assessment
}

// containsAny reports whether text contains at least one of the needles.
func containsAny(text string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

// =============================================================================
// Rule Table
// =============================================================================

// rules is evaluated top to bottom; the first matching rule wins and later
// rules are never consulted.
var rules = []rule{
	{
		name: "cardiac",
		match: func(text string) bool {
			return containsAny(text, "heart attack", "cardiac", "chest pain", "breathing")
		},
		build: func(text string) domain.Assessment {
			return domain.Assessment{
				Severity:       domain.SeverityHigh,
				Services:       []domain.ServiceTag{domain.ServiceAmbulance},
				Keywords:       []string{"cardiac symptoms", "medical emergency"},
				Recommendation: "This sounds like a medical emergency. Call an ambulance immediately and keep the person calm and still until help arrives.",
			}
		},
	},
	{
		name: "fire",
		match: func(text string) bool {
			return containsAny(text, "fire", "burning", "smoke")
		},
		build: func(text string) domain.Assessment {
			return domain.Assessment{
				Severity:       domain.SeverityHigh,
				Services:       []domain.ServiceTag{domain.ServiceFire},
				Keywords:       []string{"fire hazard"},
				Recommendation: "This sounds like a fire hazard. Evacuate the area immediately and call the fire service. Do not attempt to fight a large fire yourself.",
			}
		},
	},
	{
		name: "vehicle accident",
		match: func(text string) bool {
			if containsAny(text, "accident", "crash", "collision") {
				return true
			}
			// "car" alone does not match; it must pair with "hit" or "damage".
			return strings.Contains(text, "car") && containsAny(text, "hit", "damage")
		},
		build: func(text string) domain.Assessment {
			a := domain.Assessment{
				Severity:       domain.SeverityMedium,
				Services:       []domain.ServiceTag{domain.ServicePolice},
				Keywords:       []string{"vehicle accident"},
				Recommendation: "This sounds like a vehicle accident. Contact the police to file a report and secure the scene.",
			}
			if containsAny(text, "injured", "hurt", "bleeding") {
				a.Severity = domain.SeverityHigh
				a.Services = append(a.Services, domain.ServiceAmbulance)
				a.Keywords = append(a.Keywords, "injuries")
				a.Recommendation = "This sounds like a vehicle accident with injuries. Call the police and an ambulance. Do not move injured persons unless they are in immediate danger."
			}
			return a
		},
	},
	{
		name: "injury",
		match: func(text string) bool {
			return containsAny(text, "injured", "wound", "bleeding", "fell", "fall")
		},
		build: func(text string) domain.Assessment {
			return domain.Assessment{
				Severity:       domain.SeverityMedium,
				Services:       []domain.ServiceTag{domain.ServiceAmbulance},
				Keywords:       []string{"injury"},
				Recommendation: "This sounds like an injury. Call an ambulance if the person cannot move or the bleeding does not stop. Apply pressure to any wound.",
			}
		},
	},
	{
		name: "crime",
		match: func(text string) bool {
			return containsAny(text, "break in", "thief", "stolen", "robbery")
		},
		build: func(text string) domain.Assessment {
			return domain.Assessment{
				Severity:       domain.SeverityMedium,
				Services:       []domain.ServiceTag{domain.ServicePolice},
				Keywords:       []string{"crime"},
				Recommendation: "This sounds like a crime. Contact the police and avoid confronting the suspect. Preserve the scene if it is safe to do so.",
			}
		},
	},
}

// fallback is returned when no rule matches.
var fallback = domain.Assessment{
	Severity:       domain.SeverityLow,
	Services:       []domain.ServiceTag{},
	Keywords:       []string{},
	Recommendation: "I cannot identify a specific emergency from your description. If you are in immediate danger, call your local emergency number. Otherwise, please describe what happened in more detail.",
}

// =============================================================================
// Assess
// =============================================================================

// Assess classifies a free-text emergency description.
//
// Assess is pure and deterministic: matching is case-insensitive substring
// containment against the lowercased input, and rules are evaluated in a
// fixed order with the first match winning.
func Assess(text string) domain.Assessment {
	lowered := strings.ToLower(text)
	for _, r := range rules {
		if r.match(lowered) {
			return r.build(lowered)
		}
	}
	return fallback
}
