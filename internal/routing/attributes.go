package routing

import (
	"strings"

	"github.com/routedesk/backend/internal/models"
)

// TicketAttributes is the classified, immutable view of a ticket the engine
// consumes. Attributes come from the classification adapter and the raw
// ticket; the engine never touches free text. Spam-typed tickets are
// filtered upstream and must not reach the engine.
type TicketAttributes struct {
	TicketID  string
	Segment   string
	Type      string
	Sentiment string
	Language  string
	Country   string
	Region    string
	City      string
	Street    string
	House     string
}

// IsVIP reports whether the segment demands the VIP skill.
func (a TicketAttributes) IsVIP() bool {
	seg := strings.TrimSpace(a.Segment)
	return strings.EqualFold(seg, models.SegmentVIP) || strings.EqualFold(seg, models.SegmentPriority)
}

// IsDataChange reports whether the ticket requires a Chief Specialist.
func (a TicketAttributes) IsDataChange() bool {
	return strings.EqualFold(strings.TrimSpace(a.Type), models.TypeDataChange)
}

// NeedsSenior reports whether the soft seniority preference applies.
func (a TicketAttributes) NeedsSenior() bool {
	return strings.EqualFold(strings.TrimSpace(a.Sentiment), models.SentimentNegative)
}

// NormalizedLanguage collapses the language to KZ, ENG or RU. Only KZ and
// ENG impose a skill constraint; everything else is treated as RU.
func (a TicketAttributes) NormalizedLanguage() string {
	switch strings.ToUpper(strings.TrimSpace(a.Language)) {
	case "KZ":
		return "KZ"
	case "ENG":
		return "ENG"
	default:
		return "RU"
	}
}
