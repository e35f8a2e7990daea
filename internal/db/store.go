package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/routedesk/backend/internal/models"
)

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) InsertTickets(ctx context.Context, tickets []models.Ticket) (int64, error) {
	rows := make([][]any, 0, len(tickets))
	for _, t := range tickets {
		rows = append(rows, []any{t.ID, t.CreatedAt, t.Segment, t.Country, t.Region, t.City, t.Street, t.House, t.Message, t.RawJSON})
	}
	return s.Pool.CopyFrom(ctx, pgx.Identifier{"tickets"},
		[]string{"id", "created_at", "segment", "country", "region", "city", "street", "house", "message", "raw_json"},
		pgx.CopyFromRows(rows))
}

func (s *Store) InsertManagers(ctx context.Context, managers []models.Manager) (int64, error) {
	rows := make([][]any, 0, len(managers))
	for _, m := range managers {
		rows = append(rows, []any{m.ID, m.Name, m.Office, m.Position, m.Skills, m.CurrentLoad, m.UpdatedAt})
	}
	return s.Pool.CopyFrom(ctx, pgx.Identifier{"managers"},
		[]string{"id", "name", "office", "position", "skills", "current_load", "updated_at"},
		pgx.CopyFromRows(rows))
}

func (s *Store) InsertBusinessUnits(ctx context.Context, units []models.BusinessUnit) (int64, error) {
	rows := make([][]any, 0, len(units))
	for _, u := range units {
		rows = append(rows, []any{u.ID, u.Name, u.City, u.Address, u.Lat, u.Lon})
	}
	return s.Pool.CopyFrom(ctx, pgx.Identifier{"business_units"},
		[]string{"id", "name", "city", "address", "lat", "lon"},
		pgx.CopyFromRows(rows))
}

func (s *Store) ListBusinessUnits(ctx context.Context) ([]models.BusinessUnit, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id, name, city, address, lat, lon FROM business_units ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.BusinessUnit
	for rows.Next() {
		var u models.BusinessUnit
		if err := rows.Scan(&u.ID, &u.Name, &u.City, &u.Address, &u.Lat, &u.Lon); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) ListManagers(ctx context.Context, office, skill string) ([]models.Manager, error) {
	query := `SELECT id, name, office, position, skills, current_load, updated_at FROM managers`
	var args []any
	var wheres []string
	if office != "" {
		args = append(args, office)
		wheres = append(wheres, fmt.Sprintf("office = $%d", len(args)))
	}
	if skill != "" {
		args = append(args, skill)
		wheres = append(wheres, fmt.Sprintf("$%d = ANY(skills)", len(args)))
	}
	if len(wheres) > 0 {
		query += " WHERE " + strings.Join(wheres, " AND ")
	}
	query += " ORDER BY current_load ASC, id ASC"

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Manager
	for rows.Next() {
		var m models.Manager
		if err := rows.Scan(&m.ID, &m.Name, &m.Office, &m.Position, &m.Skills, &m.CurrentLoad, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetTicketsForProcessing returns tickets that have no assignment yet, in
// arrival order. Already-routed tickets stay untouched so a re-run cannot
// double-count loads.
func (s *Store) GetTicketsForProcessing(ctx context.Context) ([]models.Ticket, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT t.id, t.created_at, t.segment, t.country, t.region, t.city, t.street, t.house, t.message, t.raw_json
		FROM tickets t
		LEFT JOIN assignments a ON a.ticket_id = t.id
		WHERE a.ticket_id IS NULL
		ORDER BY t.created_at ASC, t.id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Ticket
	for rows.Next() {
		var t models.Ticket
		if err := rows.Scan(&t.ID, &t.CreatedAt, &t.Segment, &t.Country, &t.Region, &t.City, &t.Street, &t.House, &t.Message, &t.RawJSON); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) ListTickets(ctx context.Context, status, office, language, q string, limit, offset int) ([]map[string]any, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT t.id, t.created_at, t.segment, t.country, t.region, t.city, t.street, t.house, t.message,
		a.status, a.office, a.manager_id, a.reason_code, a.reason_text,
		an.language, an.priority, an.type, an.sentiment
		FROM tickets t
		LEFT JOIN assignments a ON a.ticket_id = t.id
		LEFT JOIN ticket_analysis an ON an.ticket_id = t.id`
	var args []any
	var wheres []string
	if status != "" {
		args = append(args, status)
		wheres = append(wheres, fmt.Sprintf("a.status = $%d", len(args)))
	}
	if office != "" {
		args = append(args, office)
		wheres = append(wheres, fmt.Sprintf("a.office = $%d", len(args)))
	}
	if language != "" {
		args = append(args, language)
		wheres = append(wheres, fmt.Sprintf("an.language = $%d", len(args)))
	}
	if q != "" {
		args = append(args, "%"+q+"%")
		wheres = append(wheres, fmt.Sprintf("(t.message ILIKE $%d OR t.id ILIKE $%d)", len(args), len(args)))
	}
	if len(wheres) > 0 {
		query += " WHERE " + strings.Join(wheres, " AND ")
	}
	query += " ORDER BY t.created_at DESC LIMIT $" + fmt.Sprint(len(args)+1) + " OFFSET $" + fmt.Sprint(len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		var (
			t          models.Ticket
			st         *string
			officeVal  *string
			managerID  *string
			reasonCode *string
			reasonText *string
			lang       *string
			priority   *int
			anType     *string
			sentiment  *string
		)
		if err := rows.Scan(&t.ID, &t.CreatedAt, &t.Segment, &t.Country, &t.Region, &t.City, &t.Street, &t.House, &t.Message,
			&st, &officeVal, &managerID, &reasonCode, &reasonText, &lang, &priority, &anType, &sentiment); err != nil {
			return nil, err
		}
		out = append(out, map[string]any{
			"id":          t.ID,
			"created_at":  t.CreatedAt,
			"segment":     t.Segment,
			"country":     t.Country,
			"region":      t.Region,
			"city":        t.City,
			"street":      t.Street,
			"house":       t.House,
			"message":     t.Message,
			"status":      st,
			"office":      officeVal,
			"manager_id":  managerID,
			"reason_code": reasonCode,
			"reason_text": reasonText,
			"language":    lang,
			"priority":    priority,
			"type":        anType,
			"sentiment":   sentiment,
		})
	}
	return out, rows.Err()
}

func (s *Store) GetTicketDetails(ctx context.Context, ticketID string) (map[string]any, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT t.id, t.created_at, t.segment, t.country, t.region, t.city, t.street, t.house, t.message, t.raw_json,
			a.id, a.manager_id, a.office, a.status, a.reason_code, a.reason_text, a.rr_index,
			a.client_lat, a.client_lon, a.geo_source, a.reasoning, a.assigned_at,
			an.id, an.type, an.sentiment, an.priority, an.language, an.summary, an.recommendation, an.model_version, an.created_at
		FROM tickets t
		LEFT JOIN assignments a ON a.ticket_id = t.id
		LEFT JOIN ticket_analysis an ON an.ticket_id = t.id
		WHERE t.id = $1
	`, ticketID)

	var (
		t            models.Ticket
		aID          *string
		managerID    *string
		aOffice      *string
		aStatus      *string
		reasonCode   *string
		reasonText   *string
		rrIndex      *int
		clientLat    *float64
		clientLon    *float64
		geoSource    *string
		reasoning    []byte
		assignedAt   *time.Time
		anID         *string
		anType       *string
		sentiment    *string
		priority     *int
		language     *string
		summary      *string
		rec          *string
		modelVersion *string
		anCreated    *time.Time
	)

	if err := row.Scan(
		&t.ID, &t.CreatedAt, &t.Segment, &t.Country, &t.Region, &t.City, &t.Street, &t.House, &t.Message, &t.RawJSON,
		&aID, &managerID, &aOffice, &aStatus, &reasonCode, &reasonText, &rrIndex,
		&clientLat, &clientLon, &geoSource, &reasoning, &assignedAt,
		&anID, &anType, &sentiment, &priority, &language, &summary, &rec, &modelVersion, &anCreated,
	); err != nil {
		return nil, err
	}

	result := map[string]any{"ticket": t}
	if aID != nil {
		result["assignment"] = map[string]any{
			"id":          *aID,
			"manager_id":  managerID,
			"office":      aOffice,
			"status":      aStatus,
			"reason_code": reasonCode,
			"reason_text": reasonText,
			"rr_index":    rrIndex,
			"client_lat":  clientLat,
			"client_lon":  clientLon,
			"geo_source":  geoSource,
			"reasoning":   rawJSONValue(reasoning),
			"assigned_at": assignedAt,
		}
	}
	if anID != nil {
		result["analysis"] = map[string]any{
			"id":             *anID,
			"type":           derefString(anType),
			"sentiment":      derefString(sentiment),
			"priority":       derefInt(priority),
			"language":       derefString(language),
			"summary":        derefString(summary),
			"recommendation": derefString(rec),
			"model_version":  derefString(modelVersion),
			"created_at":     anCreated,
		}
	}
	return result, nil
}

func (s *Store) UpsertAnalysis(ctx context.Context, tx pgx.Tx, an models.TicketAnalysis) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO ticket_analysis (ticket_id, type, sentiment, priority, language, summary, recommendation, model_version, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (ticket_id) DO UPDATE SET
			type = EXCLUDED.type,
			sentiment = EXCLUDED.sentiment,
			priority = EXCLUDED.priority,
			language = EXCLUDED.language,
			summary = EXCLUDED.summary,
			recommendation = EXCLUDED.recommendation,
			model_version = EXCLUDED.model_version,
			created_at = EXCLUDED.created_at
	`, an.TicketID, an.Type, an.Sentiment, an.Priority, an.Language, an.Summary, an.Recommendation, an.ModelVersion, an.CreatedAt)
	return err
}

func (s *Store) UpsertAssignment(ctx context.Context, tx pgx.Tx, a models.Assignment) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO assignments (ticket_id, manager_id, office, status, reason_code, reason_text, rr_index, client_lat, client_lon, geo_source, reasoning, assigned_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (ticket_id) DO UPDATE SET
			manager_id = EXCLUDED.manager_id,
			office = EXCLUDED.office,
			status = EXCLUDED.status,
			reason_code = EXCLUDED.reason_code,
			reason_text = EXCLUDED.reason_text,
			rr_index = EXCLUDED.rr_index,
			client_lat = EXCLUDED.client_lat,
			client_lon = EXCLUDED.client_lon,
			geo_source = EXCLUDED.geo_source,
			reasoning = EXCLUDED.reasoning,
			assigned_at = EXCLUDED.assigned_at
	`, a.TicketID, a.ManagerID, a.Office, a.Status, a.ReasonCode, a.ReasonText, a.RRIndex, a.ClientLat, a.ClientLon, a.GeoSource, a.Reasoning, a.AssignedAt)
	return err
}

func (s *Store) UpdateManagerLoad(ctx context.Context, tx pgx.Tx, managerID string, delta int) error {
	_, err := tx.Exec(ctx, `UPDATE managers SET current_load = current_load + $1, updated_at = NOW() WHERE id = $2`, delta, managerID)
	return err
}

func (s *Store) CreateRun(ctx context.Context, status string) (string, error) {
	var id string
	err := s.Pool.QueryRow(ctx, `INSERT INTO runs (status, started_at) VALUES ($1, NOW()) RETURNING id`, status).Scan(&id)
	return id, err
}

func (s *Store) FinishRun(ctx context.Context, runID, status string, summary []byte) error {
	_, err := s.Pool.Exec(ctx, `UPDATE runs SET status = $1, summary = $2, finished_at = NOW() WHERE id = $3`, status, summary, runID)
	return err
}

func (s *Store) GetLatestRun(ctx context.Context) (map[string]any, error) {
	row := s.Pool.QueryRow(ctx, `SELECT id, started_at, finished_at, status, summary FROM runs ORDER BY started_at DESC LIMIT 1`)
	var (
		id       string
		started  time.Time
		finished *time.Time
		status   string
		summary  []byte
	)
	if err := row.Scan(&id, &started, &finished, &status, &summary); err != nil {
		return nil, err
	}
	return map[string]any{
		"id":          id,
		"started_at":  started,
		"finished_at": finished,
		"status":      status,
		"summary":     rawJSONValue(summary),
	}, nil
}

func (s *Store) Reassign(ctx context.Context, ticketID, managerID, office string, reasoning []byte, reasonText string, override bool) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		var prevManager *string
		if err := tx.QueryRow(ctx, `SELECT manager_id FROM assignments WHERE ticket_id = $1`, ticketID).Scan(&prevManager); err != nil {
			return err
		}

		// Loads follow the assignment: decrement the previous holder,
		// increment the new one, once each.
		switch {
		case prevManager == nil:
			if err := s.UpdateManagerLoad(ctx, tx, managerID, 1); err != nil {
				return err
			}
		case *prevManager != managerID:
			if err := s.UpdateManagerLoad(ctx, tx, *prevManager, -1); err != nil {
				return err
			}
			if err := s.UpdateManagerLoad(ctx, tx, managerID, 1); err != nil {
				return err
			}
		}

		reasonCode := "MANUAL_REASSIGN"
		if override {
			reasonCode = "MANUAL_OVERRIDE"
		}

		_, err := tx.Exec(ctx, `
			UPDATE assignments
			SET manager_id = $1, office = $2, status = $3, reason_code = $4, reason_text = $5, reasoning = $6, assigned_at = NOW()
			WHERE ticket_id = $7
		`, managerID, office, "assigned", reasonCode, reasonText, reasoning, ticketID)
		return err
	})
}

func rawJSONValue(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
