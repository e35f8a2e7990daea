package ai

import (
	"context"

	"github.com/routedesk/backend/internal/models"
)

// Adapter classifies a raw ticket into routing attributes. The second
// return value is the classification latency in milliseconds.
type Adapter interface {
	AnalyzeTicket(ctx context.Context, t models.Ticket) (models.TicketAnalysis, int64, error)
}
