package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/routedesk/backend/internal/db"
	"github.com/routedesk/backend/internal/geocode"
	"github.com/routedesk/backend/internal/models"
	"github.com/routedesk/backend/internal/routing"
)

type fixedAdapter struct{}

func (fixedAdapter) AnalyzeTicket(_ context.Context, t models.Ticket) (models.TicketAnalysis, int64, error) {
	return models.TicketAnalysis{
		TicketID:  t.ID,
		Type:      models.TypeConsultation,
		Sentiment: models.SentimentNeutral,
		Priority:  5,
		Language:  "RU",
		CreatedAt: time.Now().UTC(),
	}, 1, nil
}

func TestProcessTicketsContinuesPastBrokenTicket(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	store, err := db.New(ctx, url)
	if err != nil {
		t.Fatalf("db connect: %v", err)
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if _, err := store.Pool.Exec(ctx, `TRUNCATE tickets, managers, business_units, ticket_analysis, assignments RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	if _, err := store.InsertBusinessUnits(ctx, []models.BusinessUnit{
		{ID: "bu-1", Name: "Павлодар", City: "Павлодар", Lat: 52.2856, Lon: 76.9412},
	}); err != nil {
		t.Fatalf("insert units: %v", err)
	}
	// A negative load makes every routing attempt against this office fail.
	if _, err := store.InsertManagers(ctx, []models.Manager{
		{ID: "m-bad", Name: "m-bad", Office: "Павлодар", Position: models.PositionSpecialist, CurrentLoad: -1, UpdatedAt: time.Now().UTC()},
	}); err != nil {
		t.Fatalf("insert managers: %v", err)
	}
	if _, err := store.InsertTickets(ctx, []models.Ticket{
		{ID: "t-1", CreatedAt: time.Now().UTC(), Segment: models.SegmentMass, Country: "Казахстан", City: "Павлодар"},
		{ID: "t-2", CreatedAt: time.Now().UTC(), Segment: models.SegmentMass, Country: "Казахстан", City: "Павлодар"},
	}); err != nil {
		t.Fatalf("insert tickets: %v", err)
	}

	svc := &ProcessingService{
		Store:           store,
		AI:              fixedAdapter{},
		Resolver:        geocode.NewResolver(nil, geocode.ResolverConfig{Logger: zerolog.Nop()}),
		Allocator:       routing.NewAllocator(),
		Logger:          zerolog.Nop(),
		FallbackOffices: [2]string{"Астана", "Алматы"},
	}

	summary, err := svc.ProcessTickets(ctx, false)
	if err != nil {
		t.Fatalf("run must survive per-ticket routing failures: %v", err)
	}
	if got := summary.Counts["routing_errors"]; got != 2 {
		t.Fatalf("expected 2 routing errors, got %v", got)
	}

	for _, id := range []string{"t-1", "t-2"} {
		details, err := store.GetTicketDetails(ctx, id)
		if err != nil {
			t.Fatalf("details for %s: %v", id, err)
		}
		assignment, ok := details["assignment"].(map[string]any)
		if !ok {
			t.Fatalf("expected an error record for %s", id)
		}
		status, _ := assignment["status"].(*string)
		if status == nil || *status != StatusError {
			t.Fatalf("expected status %q for %s, got %v", StatusError, id, assignment["status"])
		}
	}
}

func TestNormalizeAnalysisRussianLabels(t *testing.T) {
	a := NormalizeAnalysis(models.TicketAnalysis{
		Type:      "Смена данных",
		Language:  "rus",
		Sentiment: "Негативный",
	})

	if a.Type != models.TypeDataChange {
		t.Fatalf("expected %q, got %q", models.TypeDataChange, a.Type)
	}
	if a.Language != "RU" {
		t.Fatalf("expected RU, got %q", a.Language)
	}
	if a.Sentiment != models.SentimentNegative {
		t.Fatalf("expected %q, got %q", models.SentimentNegative, a.Sentiment)
	}
}

func TestNormalizeAnalysisEnglishPassthrough(t *testing.T) {
	a := NormalizeAnalysis(models.TicketAnalysis{
		Type:      "complaint",
		Language:  "english",
		Sentiment: "neutral",
	})

	if a.Type != models.TypeComplaint {
		t.Fatalf("expected %q, got %q", models.TypeComplaint, a.Type)
	}
	if a.Language != "ENG" {
		t.Fatalf("expected ENG, got %q", a.Language)
	}
	if a.Sentiment != models.SentimentNeutral {
		t.Fatalf("expected %q, got %q", models.SentimentNeutral, a.Sentiment)
	}
}

func TestNormalizeAnalysisUnknownValuesKept(t *testing.T) {
	a := NormalizeAnalysis(models.TicketAnalysis{Type: "  Billing dispute ", Language: "tr"})

	if a.Type != "Billing dispute" {
		t.Fatalf("unknown type should pass through trimmed, got %q", a.Type)
	}
	if a.Language != "TR" {
		t.Fatalf("unknown language should pass through uppercased, got %q", a.Language)
	}
}

func TestNormalizeAnalysisSpam(t *testing.T) {
	a := NormalizeAnalysis(models.TicketAnalysis{Type: "Спам"})
	if a.Type != models.TypeSpam {
		t.Fatalf("expected %q, got %q", models.TypeSpam, a.Type)
	}
}

func TestDefaultString(t *testing.T) {
	if got := defaultString("  ", "Mass"); got != "Mass" {
		t.Fatalf("expected fallback, got %q", got)
	}
	if got := defaultString("VIP", "Mass"); got != "VIP" {
		t.Fatalf("expected VIP, got %q", got)
	}
}
