package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/routedesk/backend/internal/models"
)

// HTTPAdapter calls an external classification service.
type HTTPAdapter struct {
	BaseURL string
	Client  *http.Client
}

type requestBody struct {
	TicketID string `json:"ticket_id"`
	Segment  string `json:"segment"`
	Country  string `json:"country"`
	Region   string `json:"region"`
	City     string `json:"city"`
	Street   string `json:"street"`
	House    string `json:"house"`
	Message  string `json:"message"`
}

type responseBody struct {
	TicketID       string `json:"ticket_id"`
	Type           string `json:"type"`
	Sentiment      string `json:"sentiment"`
	Priority       int    `json:"priority"`
	Language       string `json:"language"`
	Summary        string `json:"summary"`
	Recommendation string `json:"recommendation"`
	ModelVersion   string `json:"model_version"`
}

func (h HTTPAdapter) AnalyzeTicket(ctx context.Context, t models.Ticket) (models.TicketAnalysis, int64, error) {
	if h.Client == nil {
		h.Client = &http.Client{Timeout: 15 * time.Second}
	}

	payload := requestBody{
		TicketID: t.ID,
		Segment:  t.Segment,
		Country:  t.Country,
		Region:   t.Region,
		City:     t.City,
		Street:   t.Street,
		House:    t.House,
		Message:  t.Message,
	}
	b, _ := json.Marshal(payload)
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/analyze", bytes.NewBuffer(b))
	if err != nil {
		return models.TicketAnalysis{}, 0, err
	}

	req.Header.Set("Content-Type", "application/json")
	resp, err := h.Client.Do(req)
	if err != nil {
		return models.TicketAnalysis{}, time.Since(start).Milliseconds(), err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.TicketAnalysis{}, time.Since(start).Milliseconds(), fmt.Errorf("classification service returned %d", resp.StatusCode)
	}

	var r responseBody
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return models.TicketAnalysis{}, time.Since(start).Milliseconds(), err
	}

	analysis := models.TicketAnalysis{
		TicketID:       t.ID,
		Type:           r.Type,
		Sentiment:      r.Sentiment,
		Priority:       r.Priority,
		Language:       r.Language,
		Summary:        r.Summary,
		Recommendation: r.Recommendation,
		ModelVersion:   r.ModelVersion,
		CreatedAt:      time.Now().UTC(),
	}
	return analysis, time.Since(start).Milliseconds(), nil
}
