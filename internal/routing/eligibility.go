package routing

import (
	"strings"

	"github.com/routedesk/backend/internal/models"
)

// Eligibility reason codes.
const (
	ReasonNoManagers       = "NO_MANAGERS_IN_OFFICE"
	ReasonVIPRequired      = "VIP_SKILL_REQUIRED"
	ReasonChiefRequired    = "CHIEF_POSITION_REQUIRED"
	ReasonLanguageRequired = "LANGUAGE_SKILL_REQUIRED"
)

type EligibilityStage struct {
	Name       string
	Candidates []models.Manager
}

// EligibilityResult is the staged outcome of the hard and soft filters.
// An empty Eligible set is a valid outcome, not an error: it triggers the
// orchestrator's fallback-office escalation.
type EligibilityResult struct {
	Eligible    []models.Manager
	ReasonCode  string
	ReasonText  string
	Stages      []EligibilityStage
	NeedsVIP    bool
	NeedsChief  bool
	NeedsLang   string
	NeedsSenior bool
}

// FilterEligible reduces the office roster to managers satisfying the hard
// skill constraints, then applies the soft seniority preference.
//
// Hard filters, all required:
//   - VIP/Priority segment  -> VIP skill
//   - "Change of data" type -> Chief Specialist position
//   - KZ language -> KZ skill; ENG language -> ENG skill (RU adds nothing)
//
// Soft preference: negative sentiment narrows to Senior/Chief Specialists
// when any are present, otherwise the full hard-filtered pool stands.
func FilterEligible(managers []models.Manager, attrs TicketAttributes) EligibilityResult {
	result := EligibilityResult{
		NeedsVIP:    attrs.IsVIP(),
		NeedsChief:  attrs.IsDataChange(),
		NeedsSenior: attrs.NeedsSenior(),
	}
	if lang := attrs.NormalizedLanguage(); lang != "RU" {
		result.NeedsLang = lang
	}

	result.Stages = append(result.Stages, EligibilityStage{Name: "office_candidates", Candidates: managers})
	if len(managers) == 0 {
		result.ReasonCode = ReasonNoManagers
		result.ReasonText = "No managers in selected office"
		return result
	}

	// Position equality is the cheapest check, skill scans follow.
	afterChief := managers
	if result.NeedsChief {
		afterChief = keepManagers(afterChief, func(m models.Manager) bool {
			return m.Position == models.PositionChief
		})
	}
	result.Stages = append(result.Stages, EligibilityStage{Name: "position_rule", Candidates: afterChief})
	if result.NeedsChief && len(afterChief) == 0 {
		result.ReasonCode = ReasonChiefRequired
		result.ReasonText = "Data change requires a Chief Specialist"
		return result
	}

	afterVIP := afterChief
	if result.NeedsVIP {
		afterVIP = keepManagers(afterVIP, func(m models.Manager) bool {
			return hasSkill(m.Skills, "VIP")
		})
	}
	result.Stages = append(result.Stages, EligibilityStage{Name: "vip_rule", Candidates: afterVIP})
	if result.NeedsVIP && len(afterVIP) == 0 {
		result.ReasonCode = ReasonVIPRequired
		result.ReasonText = "VIP skill required"
		return result
	}

	afterLang := afterVIP
	if result.NeedsLang != "" {
		afterLang = keepManagers(afterLang, func(m models.Manager) bool {
			return hasSkill(m.Skills, result.NeedsLang)
		})
	}
	result.Stages = append(result.Stages, EligibilityStage{Name: "language_rule", Candidates: afterLang})
	if result.NeedsLang != "" && len(afterLang) == 0 {
		result.ReasonCode = ReasonLanguageRequired
		result.ReasonText = "Language skill " + result.NeedsLang + " required"
		return result
	}

	// Soft preference only narrows a non-empty pool; it can never empty it.
	final := afterLang
	if result.NeedsSenior {
		seniors := keepManagers(afterLang, func(m models.Manager) bool {
			return m.Position == models.PositionSenior || m.Position == models.PositionChief
		})
		if len(seniors) > 0 {
			final = seniors
		}
	}
	result.Stages = append(result.Stages, EligibilityStage{Name: "seniority_pref", Candidates: final})

	result.Eligible = final
	return result
}

func hasSkill(skills []string, target string) bool {
	for _, s := range skills {
		if strings.EqualFold(strings.TrimSpace(s), target) {
			return true
		}
	}
	return false
}

func keepManagers(managers []models.Manager, keep func(models.Manager) bool) []models.Manager {
	out := make([]models.Manager, 0, len(managers))
	for _, m := range managers {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}
