package handlers

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/routedesk/backend/internal/db"
	"github.com/routedesk/backend/internal/geocode"
	"github.com/routedesk/backend/internal/models"
	"github.com/routedesk/backend/internal/routing"
	"github.com/routedesk/backend/internal/service"
)

type Handler struct {
	Store      *db.Store
	Processing *service.ProcessingService
	Resolver   *geocode.Resolver
	Validator  *validator.Validate
	Logger     zerolog.Logger
	AdminKey   string
}

type ImportSummary struct {
	Tickets struct {
		Parsed   int `json:"parsed"`
		Inserted int `json:"inserted"`
		Errors   int `json:"errors"`
	} `json:"tickets"`
	Managers struct {
		Parsed   int `json:"parsed"`
		Inserted int `json:"inserted"`
		Errors   int `json:"errors"`
	} `json:"managers"`
	BusinessUnits struct {
		Parsed   int `json:"parsed"`
		Inserted int `json:"inserted"`
		Errors   int `json:"errors"`
	} `json:"business_units"`
	Errors []string `json:"errors"`
}

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary Import CSV data
// @Description Upload tickets, managers, and business units CSV files
// @Tags import
// @Accept multipart/form-data
// @Produce json
// @Param tickets formData file true "tickets.csv"
// @Param managers formData file true "managers.csv"
// @Param business_units formData file true "business_units.csv"
// @Success 200 {object} ImportSummary
// @Failure 400 {object} map[string]any
// @Router /api/import [post]
func (h *Handler) Import(c *gin.Context) {
	ticketsFile, err := c.FormFile("tickets")
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "tickets file required", nil)
		return
	}
	managersFile, err := c.FormFile("managers")
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "managers file required", nil)
		return
	}
	unitsFile, err := c.FormFile("business_units")
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "business_units file required", nil)
		return
	}

	if !validateExt(ticketsFile.Filename) || !validateExt(managersFile.Filename) || !validateExt(unitsFile.Filename) {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "all files must be .csv", nil)
		return
	}

	summary := ImportSummary{Errors: []string{}}
	ctx := c.Request.Context()

	tickets, errs := parseTicketsCSV(ticketsFile)
	summary.Tickets.Parsed = len(tickets)
	summary.Tickets.Errors = len(errs)
	summary.Errors = append(summary.Errors, errs...)

	units, errs := parseBusinessUnitsCSV(unitsFile)
	summary.BusinessUnits.Parsed = len(units)
	summary.BusinessUnits.Errors = len(errs)
	summary.Errors = append(summary.Errors, errs...)

	managers, errs := parseManagersCSV(managersFile)
	summary.Managers.Parsed = len(managers)
	summary.Managers.Errors = len(errs)
	summary.Errors = append(summary.Errors, errs...)

	if len(summary.Errors) > 0 {
		writeError(c, http.StatusBadRequest, "CSV_PARSE_ERROR", "CSV validation errors", summary.Errors)
		return
	}

	err = h.Store.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `TRUNCATE tickets, managers, business_units, ticket_analysis, assignments RESTART IDENTITY CASCADE`)
		return err
	})
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to reset tables", err.Error())
		return
	}

	inserted, err := h.Store.InsertTickets(ctx, tickets)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to insert tickets", err.Error())
		return
	}
	summary.Tickets.Inserted = int(inserted)

	inserted, err = h.Store.InsertManagers(ctx, managers)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to insert managers", err.Error())
		return
	}
	summary.Managers.Inserted = int(inserted)

	inserted, err = h.Store.InsertBusinessUnits(ctx, units)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to insert business units", err.Error())
		return
	}
	summary.BusinessUnits.Inserted = int(inserted)

	c.JSON(http.StatusOK, summary)
}

// @Summary Process tickets
// @Tags process
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/process [post]
func (h *Handler) Process(c *gin.Context) {
	runID, err := h.Store.CreateRun(c.Request.Context(), "RUNNING")
	if err != nil {
		h.Logger.Error().Err(err).Msg("failed to create run")
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to create run", err.Error())
		return
	}

	debug := c.Query("debug")
	summary, err := h.Processing.ProcessTickets(c.Request.Context(), debug == "1" || strings.EqualFold(debug, "true"))
	status := "SUCCESS"
	if err != nil {
		status = "FAILED"
	}
	b, _ := json.Marshal(summary)
	if finishErr := h.Store.FinishRun(c.Request.Context(), runID, status, b); finishErr != nil {
		h.Logger.Error().Err(finishErr).Msg("failed to finish run")
	}

	if err != nil {
		h.Logger.Error().Err(err).Msg("processing failed")
		writeError(c, http.StatusInternalServerError, "PROCESSING_ERROR", "Processing failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, summary)
}

// @Summary Reset allocation counters
// @Tags process
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/allocator/reset [post]
func (h *Handler) AllocatorReset(c *gin.Context) {
	h.Processing.ResetAllocator()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary Latest run
// @Tags runs
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/runs/latest [get]
func (h *Handler) RunsLatest(c *gin.Context) {
	result, err := h.Store.GetLatestRun(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "No runs found", err.Error())
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) TicketsList(c *gin.Context) {
	status := c.Query("status")
	office := normalizeOfficeName(c.Query("office"))
	language := strings.ToUpper(strings.TrimSpace(c.Query("language")))
	q := c.Query("q")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, err := h.Store.ListTickets(c.Request.Context(), status, office, language, q, limit, offset)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list tickets", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "limit": limit, "offset": offset})
}

func (h *Handler) TicketDetails(c *gin.Context) {
	id := c.Param("id")
	result, err := h.Store.GetTicketDetails(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Ticket not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to get ticket", err.Error())
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) ManagersList(c *gin.Context) {
	office := normalizeOfficeName(c.Query("office"))
	skill := strings.ToUpper(strings.TrimSpace(c.Query("skill")))
	items, err := h.Store.ListManagers(c.Request.Context(), office, skill)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list managers", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) BusinessUnitsList(c *gin.Context) {
	items, err := h.Store.ListBusinessUnits(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list business units", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// @Summary Debug routing decision
// @Description Dry-run geo resolution, office selection and eligibility for a ticket. No counters or loads move.
// @Tags debug
// @Produce json
// @Param ticket_id query string true "Ticket ID"
// @Success 200 {object} map[string]any
// @Router /api/debug/routing [get]
func (h *Handler) DebugRouting(c *gin.Context) {
	ticketID := strings.TrimSpace(c.Query("ticket_id"))
	if ticketID == "" {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "ticket_id is required", nil)
		return
	}

	ticket, analysis, ok := h.loadTicketWithAnalysis(c, ticketID)
	if !ok {
		return
	}

	units, err := h.Store.ListBusinessUnits(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load business units", err.Error())
		return
	}

	attrs := routing.TicketAttributes{
		TicketID:  ticket.ID,
		Segment:   ticket.Segment,
		Type:      analysis.Type,
		Sentiment: analysis.Sentiment,
		Language:  analysis.Language,
		Country:   ticket.Country,
		Region:    ticket.Region,
		City:      ticket.City,
		Street:    ticket.Street,
		House:     ticket.House,
	}

	// A throwaway locator keeps the dry run free of hub-counter side
	// effects; its alternation always starts at the first hub.
	locator := routing.NewLocator(units, routing.LocatorConfig{})

	loc := geocode.Unresolved()
	if strings.TrimSpace(ticket.Country) != "" && !geocode.IsForeign(ticket.Country) {
		loc = h.Resolver.Resolve(c.Request.Context(), ticket.Country, ticket.Region, ticket.City, ticket.Street)
	}
	sel := locator.Locate(loc, shortcutCityFor(ticket), nil)

	managers, err := h.Store.ListManagers(c.Request.Context(), "", "")
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load managers", err.Error())
		return
	}
	byOffice := map[string][]models.Manager{}
	for _, m := range managers {
		byOffice[m.Office] = append(byOffice[m.Office], m)
	}

	offices := []string{sel.Office}
	for _, hub := range locator.FallbackHubs() {
		if hub != sel.Office {
			offices = append(offices, hub)
		}
	}

	attempts := []gin.H{}
	for _, office := range offices {
		elig := routing.FilterEligible(byOffice[office], attrs)
		stageIDs := map[string][]string{}
		for _, stage := range elig.Stages {
			ids := []string{}
			for _, m := range stage.Candidates {
				ids = append(ids, m.ID)
			}
			stageIDs[stage.Name] = ids
		}
		attempts = append(attempts, gin.H{
			"office":      office,
			"stages":      stageIDs,
			"eligible":    len(elig.Eligible),
			"reason_code": elig.ReasonCode,
			"reason_text": elig.ReasonText,
		})
		if len(elig.Eligible) > 0 {
			break
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"ticket_id": ticket.ID,
		"geo": gin.H{
			"resolved": loc.Resolved,
			"lat":      loc.Lat,
			"lon":      loc.Lon,
			"source":   string(loc.Source),
		},
		"office_selected": sel.Office,
		"office_rule":     sel.Rule,
		"attempts":        attempts,
	})
}

type ReassignRequest struct {
	ManagerID string `json:"manager_id" validate:"required"`
	Reason    string `json:"reason" validate:"required"`
}

func (h *Handler) Reassign(c *gin.Context) {
	id := c.Param("id")
	var req ReassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	managerList, err := h.Store.ListManagers(c.Request.Context(), "", "")
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load managers", err.Error())
		return
	}
	var manager *models.Manager
	for i := range managerList {
		if managerList[i].ID == req.ManagerID {
			manager = &managerList[i]
			break
		}
	}
	if manager == nil {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Manager not found", nil)
		return
	}

	ticket, analysis, ok := h.loadTicketWithAnalysis(c, id)
	if !ok {
		return
	}

	attrs := routing.TicketAttributes{
		TicketID:  ticket.ID,
		Segment:   ticket.Segment,
		Type:      analysis.Type,
		Sentiment: analysis.Sentiment,
		Language:  analysis.Language,
	}
	elig := routing.FilterEligible([]models.Manager{*manager}, attrs)
	override := len(elig.Eligible) == 0

	reasoning, _ := json.Marshal(map[string]any{
		"manual":   true,
		"override": override,
		"reason":   req.Reason,
	})
	if err := h.Store.Reassign(c.Request.Context(), id, req.ManagerID, manager.Office, reasoning, req.Reason, override); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Ticket has no assignment", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to reassign", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "override": override})
}

func (h *Handler) loadTicketWithAnalysis(c *gin.Context, ticketID string) (models.Ticket, models.TicketAnalysis, bool) {
	details, err := h.Store.GetTicketDetails(c.Request.Context(), ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Ticket not found", nil)
			return models.Ticket{}, models.TicketAnalysis{}, false
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load ticket", err.Error())
		return models.Ticket{}, models.TicketAnalysis{}, false
	}

	ticket, ok := details["ticket"].(models.Ticket)
	if !ok {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Ticket load failed", nil)
		return models.Ticket{}, models.TicketAnalysis{}, false
	}
	raw, ok := details["analysis"].(map[string]any)
	if !ok {
		writeError(c, http.StatusBadRequest, "INVALID_STATE", "Ticket has no analysis yet", nil)
		return models.Ticket{}, models.TicketAnalysis{}, false
	}

	analysis := service.NormalizeAnalysis(models.TicketAnalysis{
		TicketID:  ticket.ID,
		Type:      getString(raw, "type"),
		Sentiment: getString(raw, "sentiment"),
		Priority:  getInt(raw, "priority"),
		Language:  getString(raw, "language"),
	})
	return ticket, analysis, true
}

// shortcutCityFor mirrors the engine's office-selection guard: foreign and
// blank countries go to the hub pool without a shortcut, and an exact street
// address means distance ranking decides.
func shortcutCityFor(t models.Ticket) string {
	if strings.TrimSpace(t.Country) == "" || geocode.IsForeign(t.Country) {
		return ""
	}
	if strings.TrimSpace(t.Street) != "" {
		return ""
	}
	return t.City
}

func writeError(c *gin.Context, status int, code, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

func validateExt(name string) bool {
	return strings.ToLower(filepath.Ext(name)) == ".csv"
}

func parseTicketsCSV(file *multipart.FileHeader) ([]models.Ticket, []string) {
	f, err := file.Open()
	if err != nil {
		return nil, []string{err.Error()}
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	headers, err := reader.Read()
	if err != nil {
		return nil, []string{"failed to read header"}
	}
	index := headerIndex(headers)
	var parseErrors []string
	var out []models.Ticket

	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			parseErrors = append(parseErrors, err.Error())
			continue
		}

		id := getFieldAny(rec, index, "id", "ticket_id", "guid", "guid клиента", "client_guid")
		createdAtStr := getFieldAny(rec, index, "created_at", "created", "date", "дата", "дата создания")
		segment := getFieldAny(rec, index, "segment", "сегмент клиента", "сегмент")
		country := getFieldAny(rec, index, "country", "страна")
		region := getFieldAny(rec, index, "region", "область")
		city := getFieldAny(rec, index, "city", "город", "населённый пункт", "населенный пункт")
		street := getFieldAny(rec, index, "street", "улица")
		house := getFieldAny(rec, index, "house", "дом")
		message := getFieldAny(rec, index, "message", "описание", "description", "text", "текст")

		createdAt, err := time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			createdAt = time.Now().UTC()
		}
		if id == "" {
			id = fmt.Sprintf("TICK-%04d", len(out)+1)
		}

		out = append(out, models.Ticket{
			ID:        id,
			CreatedAt: createdAt,
			Segment:   normalizeSegment(segment),
			Country:   country,
			Region:    region,
			City:      city,
			Street:    street,
			House:     house,
			Message:   message,
		})
	}
	return out, parseErrors
}

func parseManagersCSV(file *multipart.FileHeader) ([]models.Manager, []string) {
	f, err := file.Open()
	if err != nil {
		return nil, []string{err.Error()}
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	headers, err := reader.Read()
	if err != nil {
		return nil, []string{"failed to read header"}
	}
	index := headerIndex(headers)
	var parseErrors []string
	var out []models.Manager

	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			parseErrors = append(parseErrors, err.Error())
			continue
		}

		id := getFieldAny(rec, index, "id", "manager_id")
		name := getFieldAny(rec, index, "name", "фио")
		office := getFieldAny(rec, index, "office", "офис")
		position := getFieldAny(rec, index, "position", "role", "должность")
		skillsRaw := getFieldAny(rec, index, "skills", "навыки")
		loadStr := getFieldAny(rec, index, "current_load", "количество обращений в работе")
		load, _ := strconv.Atoi(loadStr)

		if id == "" {
			id = fmt.Sprintf("MGR-%03d", len(out)+1)
		}

		m := models.Manager{
			ID:          id,
			Name:        name,
			Office:      normalizeOfficeName(office),
			Position:    normalizePosition(position),
			Skills:      normalizeSkills(skillsRaw),
			CurrentLoad: load,
			UpdatedAt:   time.Now().UTC(),
		}
		if m.Name == "" || m.Office == "" {
			parseErrors = append(parseErrors, "manager name/office required")
			continue
		}
		out = append(out, m)
	}
	return out, parseErrors
}

func parseBusinessUnitsCSV(file *multipart.FileHeader) ([]models.BusinessUnit, []string) {
	f, err := file.Open()
	if err != nil {
		return nil, []string{err.Error()}
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	headers, err := reader.Read()
	if err != nil {
		return nil, []string{"failed to read header"}
	}
	index := headerIndex(headers)
	officeCoords := geocode.DefaultOfficeCoords()
	var parseErrors []string
	var out []models.BusinessUnit

	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			parseErrors = append(parseErrors, err.Error())
			continue
		}

		id := getFieldAny(rec, index, "id", "office_id")
		name := normalizeOfficeName(getFieldAny(rec, index, "name", "office", "office_name", "офис"))
		city := getFieldAny(rec, index, "city", "город")
		address := getFieldAny(rec, index, "address", "адрес")
		lat, _ := strconv.ParseFloat(getFieldAny(rec, index, "lat", "latitude"), 64)
		lon, _ := strconv.ParseFloat(getFieldAny(rec, index, "lon", "longitude"), 64)

		if city == "" {
			city = name
		}
		if lat == 0 && lon == 0 {
			if coord, ok := officeCoords[name]; ok {
				lat, lon = coord.Lat, coord.Lon
			}
		}
		if name == "" {
			parseErrors = append(parseErrors, "business unit name required")
			continue
		}
		if lat == 0 && lon == 0 {
			parseErrors = append(parseErrors, fmt.Sprintf("no coordinates for office %q", name))
			continue
		}
		if id == "" {
			id = fmt.Sprintf("office-%d", len(out)+1)
		}

		out = append(out, models.BusinessUnit{
			ID:      id,
			Name:    name,
			City:    city,
			Address: address,
			Lat:     lat,
			Lon:     lon,
		})
	}
	return out, parseErrors
}

func headerIndex(headers []string) map[string]int {
	idx := map[string]int{}
	for i, h := range headers {
		idx[normalizeHeader(h)] = i
	}
	return idx
}

func getField(rec []string, idx map[string]int, name string) string {
	pos, ok := idx[name]
	if !ok || pos >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[pos])
}

func getFieldAny(rec []string, idx map[string]int, names ...string) string {
	for _, name := range names {
		if v := getField(rec, idx, normalizeHeader(name)); v != "" {
			return v
		}
	}
	return ""
}

func normalizeHeader(h string) string {
	h = strings.ReplaceAll(h, "\uFEFF", "")
	return strings.ToLower(strings.TrimSpace(h))
}

// normalizeOfficeName maps a free-form office label to the canonical
// Cyrillic city name business units are keyed by.
func normalizeOfficeName(value string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		return ""
	}
	if mapped, ok := geocode.DefaultAliases()[strings.ToLower(v)]; ok {
		return mapped
	}
	return v
}

func normalizeSegment(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	switch {
	case v == "":
		return models.SegmentMass
	case strings.Contains(v, "vip") || strings.Contains(v, "вип"):
		return models.SegmentVIP
	case strings.Contains(v, "priority") || strings.Contains(v, "приоритет"):
		return models.SegmentPriority
	case strings.Contains(v, "mass") || strings.Contains(v, "масс"):
		return models.SegmentMass
	default:
		return strings.TrimSpace(value)
	}
}

func normalizePosition(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	for strings.Contains(v, "  ") {
		v = strings.ReplaceAll(v, "  ", " ")
	}
	switch {
	case v == "":
		return models.PositionSpecialist
	case strings.Contains(v, "глав") || strings.Contains(v, "chief"):
		return models.PositionChief
	case strings.Contains(v, "ведущ") || strings.Contains(v, "senior") || strings.Contains(v, "lead"):
		return models.PositionSenior
	case strings.Contains(v, "спец") || strings.Contains(v, "special"):
		return models.PositionSpecialist
	default:
		return strings.TrimSpace(value)
	}
}

func normalizeSkills(raw string) []string {
	raw = strings.ReplaceAll(raw, ";", ",")
	parts := strings.Split(raw, ",")
	seen := map[string]struct{}{}
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		upper := strings.ToUpper(p)
		switch upper {
		case "RU", "RUS", "RUSSIAN":
			upper = "RU"
		case "KZ", "KAZ", "KAZAKH":
			upper = "KZ"
		case "EN", "ENG", "ENGLISH":
			upper = "ENG"
		}
		if _, ok := seen[upper]; ok {
			continue
		}
		seen[upper] = struct{}{}
		out = append(out, upper)
	}
	return out
}

func getString(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	if s, ok := v.(*string); ok && s != nil {
		return *s
	}
	return ""
}

func getInt(m map[string]any, key string) int {
	v, ok := m[key]
	if !ok || v == nil {
		return 0
	}
	switch t := v.(type) {
	case int:
		return t
	case float64:
		return int(t)
	case json.Number:
		i, _ := t.Int64()
		return int(i)
	case *int:
		if t != nil {
			return *t
		}
		return 0
	default:
		return 0
	}
}
