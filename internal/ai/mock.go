package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/routedesk/backend/internal/models"
	"github.com/routedesk/backend/internal/utils"
)

// MockAdapter derives a stable pseudo-classification from the ticket ID.
// The same ticket always classifies the same way, which keeps routing runs
// reproducible without a model endpoint.
type MockAdapter struct {
	ModelVersion string
}

func (m MockAdapter) AnalyzeTicket(ctx context.Context, t models.Ticket) (models.TicketAnalysis, int64, error) {
	start := time.Now()
	h := utils.HashStringToUint64(t.ID)

	priorities := []int{3, 5, 7, 9, 10}
	langs := []string{"RU", "RU", "KZ", "ENG"}
	types := []string{
		models.TypeConsultation,
		models.TypeComplaint,
		models.TypeTechnical,
		models.TypeDataChange,
		models.TypeFraud,
	}
	sentiments := []string{models.SentimentPositive, models.SentimentNeutral, models.SentimentNegative}

	aiType := types[int(h/13)%len(types)]
	if h%23 == 0 {
		aiType = models.TypeSpam
	}

	analysis := models.TicketAnalysis{
		TicketID:       t.ID,
		Type:           aiType,
		Sentiment:      sentiments[int(h/17)%len(sentiments)],
		Priority:       priorities[int(h)%len(priorities)],
		Language:       langs[int(h/7)%len(langs)],
		Summary:        fmt.Sprintf("Ticket %s auto-summary", t.ID),
		Recommendation: "Follow standard process",
		ModelVersion:   m.ModelVersion,
		CreatedAt:      time.Now().UTC(),
	}

	return analysis, time.Since(start).Milliseconds(), nil
}
