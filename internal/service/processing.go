package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/routedesk/backend/internal/ai"
	"github.com/routedesk/backend/internal/db"
	"github.com/routedesk/backend/internal/geocode"
	"github.com/routedesk/backend/internal/metrics"
	"github.com/routedesk/backend/internal/models"
	"github.com/routedesk/backend/internal/routing"
)

// Assignment statuses as persisted. "spam" marks analytics-only tickets
// that never entered routing.
const (
	StatusAssigned   = routing.StatusAssigned
	StatusUnassigned = routing.StatusUnassigned
	StatusSpam       = "spam"
	StatusError      = "error"
)

const defaultWorkers = 4

// ProcessingService drives a full routing run: classification, geo
// resolution, office selection, eligibility, allocation, persistence.
// The Allocator lives for the process lifetime so alternation counters
// survive across runs; loads are reloaded from the store every run.
type ProcessingService struct {
	Store     *db.Store
	AI        ai.Adapter
	Resolver  *geocode.Resolver
	Allocator *routing.Allocator
	Logger    zerolog.Logger

	Workers         int
	EquidistantKm   float64
	FallbackOffices [2]string

	mu      sync.Mutex
	locator *routing.Locator
}

type RunSummary struct {
	Events  []map[string]any `json:"events"`
	Counts  map[string]any   `json:"counts"`
	Samples []map[string]any `json:"samples,omitempty"`
}

// ResetAllocator clears the round-robin alternation counters. Persisted
// loads are untouched.
func (s *ProcessingService) ResetAllocator() {
	s.Allocator.Reset()
}

// ProcessTickets routes every ticket that has no assignment yet. With
// debug set, a handful of unassigned ticket reasonings is sampled into
// the summary.
func (s *ProcessingService) ProcessTickets(ctx context.Context, debug bool) (RunSummary, error) {
	runStart := time.Now()

	tickets, err := s.Store.GetTicketsForProcessing(ctx)
	if err != nil {
		return RunSummary{}, err
	}
	units, err := s.Store.ListBusinessUnits(ctx)
	if err != nil {
		return RunSummary{}, err
	}
	managers, err := s.Store.ListManagers(ctx, "", "")
	if err != nil {
		return RunSummary{}, err
	}

	loads := routing.NewLoadTracker(managers)
	engine, err := routing.NewEngine(managers, units, routing.EngineConfig{
		Resolver:  s.Resolver,
		Locator:   s.locatorFor(units),
		Allocator: s.Allocator,
		Loads:     loads,
		Logger:    s.Logger,
	})
	if err != nil {
		return RunSummary{}, err
	}

	summary := RunSummary{Counts: map[string]any{}}
	summary.Events = append(summary.Events, map[string]any{
		"type":    "import_summary",
		"message": "Tickets ready for processing",
		"count":   len(tickets),
		"time":    time.Now().UTC(),
	})

	var (
		statsMu              sync.Mutex
		enrichedCount        int
		latencyTotal         int64
		geoCoverage          int
		fallbackCount        int
		assignedCount        int
		escalatedCount       int
		unassignedCount      int
		spamCount            int
		aiErrors             int
		routingErrors        int
		topUnassignedReasons = map[string]int{}
		samples              []map[string]any
	)

	workers := s.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, t := range tickets {
		t := t
		g.Go(func() error {
			analysis, latencyMs, err := s.AI.AnalyzeTicket(gctx, t)
			if err != nil {
				s.Logger.Error().Err(err).Str("ticket_id", t.ID).Msg("classification failed")
				s.writeClassificationError(gctx, t, err)
				metrics.TicketsProcessed.WithLabelValues("error").Inc()
				statsMu.Lock()
				aiErrors++
				statsMu.Unlock()
				return nil
			}
			analysis = normalizeAnalysis(analysis)

			statsMu.Lock()
			enrichedCount++
			latencyTotal += latencyMs
			statsMu.Unlock()

			if analysis.Type == models.TypeSpam {
				// Analytics only: no routing, no priority, no manager.
				analysis.Priority = 0
				analysis.Sentiment = models.SentimentNeutral
				err := s.writeSpam(gctx, t, analysis)
				if err != nil {
					s.Logger.Error().Err(err).Str("ticket_id", t.ID).Msg("spam write failed")
				}
				metrics.TicketsProcessed.WithLabelValues("spam").Inc()
				statsMu.Lock()
				spamCount++
				statsMu.Unlock()
				return nil
			}

			routingStart := time.Now()
			res, err := engine.Process(gctx, routing.TicketAttributes{
				TicketID:  t.ID,
				Segment:   defaultString(t.Segment, models.SegmentMass),
				Type:      defaultString(analysis.Type, models.TypeConsultation),
				Sentiment: defaultString(analysis.Sentiment, models.SentimentNeutral),
				Language:  defaultString(analysis.Language, "RU"),
				Country:   t.Country,
				Region:    t.Region,
				City:      t.City,
				Street:    t.Street,
				House:     t.House,
			})
			if err != nil {
				// One broken ticket must not abandon the rest of the run.
				s.Logger.Error().Err(err).Str("ticket_id", t.ID).Msg("routing failed")
				s.writeRoutingError(gctx, t, analysis, err)
				metrics.TicketsProcessed.WithLabelValues("error").Inc()
				statsMu.Lock()
				routingErrors++
				statsMu.Unlock()
				return nil
			}
			metrics.TicketDurationSeconds.Observe(time.Since(routingStart).Seconds())

			if err := s.writeResult(gctx, t, analysis, res); err != nil {
				s.Logger.Error().Err(err).Str("ticket_id", t.ID).Msg("assignment write failed")
				metrics.TicketsProcessed.WithLabelValues("error").Inc()
				return nil
			}

			metrics.TicketsProcessed.WithLabelValues(res.Status).Inc()

			statsMu.Lock()
			defer statsMu.Unlock()
			if res.Location.Resolved {
				geoCoverage++
			} else {
				fallbackCount++
			}
			if res.Status == StatusAssigned {
				assignedCount++
				if res.Office != res.Selection.Office {
					escalatedCount++
				}
				return nil
			}
			unassignedCount++
			lastReason := res.ReasonCode
			if len(res.Attempts) > 0 && res.Attempts[len(res.Attempts)-1].ReasonCode != "" {
				lastReason = res.Attempts[len(res.Attempts)-1].ReasonCode
			}
			topUnassignedReasons[lastReason]++
			metrics.UnassignedByReason.WithLabelValues(lastReason).Inc()
			if debug && len(samples) < 5 {
				samples = append(samples, map[string]any{
					"ticket_id":   t.ID,
					"reason_code": res.ReasonCode,
					"reason_text": res.ReasonText,
					"reasoning":   buildReasoning(res),
				})
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return RunSummary{}, err
	}

	summary.Samples = samples
	summary.Events = append(summary.Events, map[string]any{
		"type":           "classification",
		"message":        "Ticket classification complete",
		"count":          enrichedCount,
		"avg_latency_ms": avgLatency(latencyTotal, enrichedCount),
		"errors":         aiErrors,
		"time":           time.Now().UTC(),
	})
	summary.Events = append(summary.Events, map[string]any{
		"type":           "geo_resolution",
		"geo_coverage":   geoCoverage,
		"fallback_count": fallbackCount,
		"time":           time.Now().UTC(),
	})
	summary.Events = append(summary.Events, map[string]any{
		"type":       "assignment",
		"assigned":   assignedCount,
		"escalated":  escalatedCount,
		"unassigned": unassignedCount,
		"spam":       spamCount,
		"errors":     routingErrors,
		"time":       time.Now().UTC(),
	})
	summary.Events = append(summary.Events, map[string]any{
		"type":       "db_save",
		"message":    "Processing saved",
		"elapsed_ms": time.Since(runStart).Milliseconds(),
		"time":       time.Now().UTC(),
	})

	summary.Counts["tickets_processed"] = len(tickets)
	summary.Counts["assigned"] = assignedCount
	summary.Counts["escalated"] = escalatedCount
	summary.Counts["unassigned"] = unassignedCount
	summary.Counts["spam"] = spamCount
	summary.Counts["ai_errors"] = aiErrors
	summary.Counts["routing_errors"] = routingErrors
	summary.Counts["top_unassigned_reasons"] = topUnassignedReasons

	metrics.RunDurationSeconds.Observe(time.Since(runStart).Seconds())
	return summary, nil
}

// locatorFor returns the process-lifetime locator so the 50/50 hub
// alternation survives across runs; units are stable reference data, the
// locator is rebuilt only if their count changes.
func (s *ProcessingService) locatorFor(units []models.BusinessUnit) *routing.Locator {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locator == nil || s.locator.UnitCount() != len(units) {
		s.locator = routing.NewLocator(units, routing.LocatorConfig{
			EquidistantKm: s.EquidistantKm,
			FallbackHubs:  s.FallbackOffices,
		})
	}
	return s.locator
}

func (s *ProcessingService) writeResult(ctx context.Context, t models.Ticket, analysis models.TicketAnalysis, res routing.Result) error {
	reasoningJSON, _ := json.Marshal(buildReasoning(res))

	return s.Store.WithTx(ctx, func(tx pgx.Tx) error {
		if err := s.Store.UpsertAnalysis(ctx, tx, analysis); err != nil {
			return err
		}

		a := models.Assignment{
			TicketID:   t.ID,
			Office:     res.Office,
			Status:     res.Status,
			ReasonCode: res.ReasonCode,
			ReasonText: res.ReasonText,
			RRIndex:    res.RRIndex,
			GeoSource:  string(res.Location.Source),
			Reasoning:  reasoningJSON,
			AssignedAt: time.Now().UTC(),
		}
		if res.ManagerID != "" {
			id := res.ManagerID
			a.ManagerID = &id
		}
		if res.Location.Resolved {
			lat, lon := res.Location.Lat, res.Location.Lon
			a.ClientLat = &lat
			a.ClientLon = &lon
		}
		if err := s.Store.UpsertAssignment(ctx, tx, a); err != nil {
			return err
		}
		if res.ManagerID != "" {
			return s.Store.UpdateManagerLoad(ctx, tx, res.ManagerID, 1)
		}
		return nil
	})
}

func (s *ProcessingService) writeSpam(ctx context.Context, t models.Ticket, analysis models.TicketAnalysis) error {
	return s.Store.WithTx(ctx, func(tx pgx.Tx) error {
		if err := s.Store.UpsertAnalysis(ctx, tx, analysis); err != nil {
			return err
		}
		return s.Store.UpsertAssignment(ctx, tx, models.Assignment{
			TicketID:   t.ID,
			Status:     StatusSpam,
			ReasonCode: "SPAM_ANALYTICS_ONLY",
			ReasonText: "Spam tickets are recorded without routing",
			GeoSource:  string(geocode.SourceNone),
			AssignedAt: time.Now().UTC(),
		})
	})
}

func (s *ProcessingService) writeRoutingError(ctx context.Context, t models.Ticket, analysis models.TicketAnalysis, cause error) {
	details, _ := json.Marshal(map[string]any{"error": cause.Error()})
	err := s.Store.WithTx(ctx, func(tx pgx.Tx) error {
		if err := s.Store.UpsertAnalysis(ctx, tx, analysis); err != nil {
			return err
		}
		return s.Store.UpsertAssignment(ctx, tx, models.Assignment{
			TicketID:   t.ID,
			Status:     StatusError,
			ReasonCode: "ROUTING_ERROR",
			ReasonText: "Ticket routing failed",
			GeoSource:  string(geocode.SourceNone),
			Reasoning:  details,
			AssignedAt: time.Now().UTC(),
		})
	})
	if err != nil {
		s.Logger.Error().Err(err).Str("ticket_id", t.ID).Msg("error record write failed")
	}
}

func (s *ProcessingService) writeClassificationError(ctx context.Context, t models.Ticket, cause error) {
	details, _ := json.Marshal(map[string]any{"error": cause.Error()})
	err := s.Store.WithTx(ctx, func(tx pgx.Tx) error {
		return s.Store.UpsertAssignment(ctx, tx, models.Assignment{
			TicketID:   t.ID,
			Status:     StatusError,
			ReasonCode: "AI_ERROR",
			ReasonText: "Ticket classification failed",
			GeoSource:  string(geocode.SourceNone),
			Reasoning:  details,
			AssignedAt: time.Now().UTC(),
		})
	})
	if err != nil {
		s.Logger.Error().Err(err).Str("ticket_id", t.ID).Msg("error record write failed")
	}
}

func buildReasoning(res routing.Result) map[string]any {
	attempts := make([]map[string]any, 0, len(res.Attempts))
	for _, a := range res.Attempts {
		item := map[string]any{
			"office":     a.Office,
			"candidates": a.Candidates,
			"eligible":   a.Eligible,
		}
		if a.ReasonCode != "" {
			item["failed_reason_code"] = a.ReasonCode
		}
		attempts = append(attempts, item)
	}

	reasoning := map[string]any{
		"office_selected": res.Selection.Office,
		"office_rule":     res.Selection.Rule,
		"attempts":        attempts,
		"geo": map[string]any{
			"source":   string(res.Location.Source),
			"resolved": res.Location.Resolved,
		},
	}
	if res.Location.Resolved {
		reasoning["geo"].(map[string]any)["lat"] = res.Location.Lat
		reasoning["geo"].(map[string]any)["lon"] = res.Location.Lon
	}
	if len(res.Selection.Ranked) > 0 {
		top := res.Selection.Ranked
		if len(top) > 3 {
			top = top[:3]
		}
		reasoning["ranked_offices"] = top
	}
	if res.ManagerID != "" {
		reasoning["picked"] = map[string]any{
			"manager_id":  res.ManagerID,
			"method":      "least_loaded_round_robin",
			"rr_index":    res.RRIndex,
			"fingerprint": res.Fingerprint,
		}
	}
	return reasoning
}

func avgLatency(total int64, count int) int64 {
	if count == 0 {
		return 0
	}
	return total / int64(count)
}

func defaultString(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func normalizeAnalysis(a models.TicketAnalysis) models.TicketAnalysis {
	a.Type = normalizeType(a.Type)
	a.Language = normalizeLanguage(a.Language)
	a.Sentiment = normalizeSentiment(a.Sentiment)
	return a
}

// NormalizeAnalysis exposes normalization for the debug endpoint.
func NormalizeAnalysis(a models.TicketAnalysis) models.TicketAnalysis {
	return normalizeAnalysis(a)
}

func normalizeType(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	switch v {
	case "complaint", "жалоба":
		return models.TypeComplaint
	case "consultation", "консультация":
		return models.TypeConsultation
	case "fraud", "мошеннические действия":
		return models.TypeFraud
	case "change of data", "смена данных":
		return models.TypeDataChange
	case "technical issue", "неработоспособность приложения":
		return models.TypeTechnical
	case "spam", "спам":
		return models.TypeSpam
	default:
		return strings.TrimSpace(value)
	}
}

func normalizeLanguage(value string) string {
	v := strings.ToUpper(strings.TrimSpace(value))
	switch v {
	case "RU", "RUS", "RUSSIAN":
		return "RU"
	case "KZ", "KAZ", "KAZAKH":
		return "KZ"
	case "EN", "ENG", "ENGLISH":
		return "ENG"
	default:
		return v
	}
}

func normalizeSentiment(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	switch v {
	case "positive", "позитивный", "положительный":
		return models.SentimentPositive
	case "neutral", "нейтральный":
		return models.SentimentNeutral
	case "negative", "негативный", "отрицательный":
		return models.SentimentNegative
	default:
		return strings.TrimSpace(value)
	}
}
