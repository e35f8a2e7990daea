package models

import "time"

// Client segments.
const (
	SegmentMass     = "Mass"
	SegmentPriority = "Priority"
	SegmentVIP      = "VIP"
)

// Manager positions, lowest tier first.
const (
	PositionSpecialist = "Specialist"
	PositionSenior     = "Senior Specialist"
	PositionChief      = "Chief Specialist"
)

// Ticket types produced by the classification adapter.
const (
	TypeComplaint    = "Complaint"
	TypeConsultation = "Consultation"
	TypeFraud        = "Fraud"
	TypeDataChange   = "Change of data"
	TypeTechnical    = "Technical issue"
	TypeSpam         = "Spam"
)

// Sentiments.
const (
	SentimentPositive = "Positive"
	SentimentNeutral  = "Neutral"
	SentimentNegative = "Negative"
)

type Ticket struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Segment   string    `json:"segment"`
	Country   string    `json:"country"`
	Region    string    `json:"region"`
	City      string    `json:"city"`
	Street    string    `json:"street"`
	House     string    `json:"house"`
	Message   string    `json:"message"`
	RawJSON   string    `json:"raw_json,omitempty"`
}

type Manager struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Office      string    `json:"office"`
	Position    string    `json:"position"`
	Skills      []string  `json:"skills"`
	CurrentLoad int       `json:"current_load"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BusinessUnit is a physical service office with fixed coordinates.
// The reference set is loaded once per run and treated as read-only.
type BusinessUnit struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	City    string  `json:"city"`
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

type TicketAnalysis struct {
	ID             string    `json:"id"`
	TicketID       string    `json:"ticket_id"`
	Type           string    `json:"type"`
	Sentiment      string    `json:"sentiment"`
	Priority       int       `json:"priority"`
	Language       string    `json:"language"`
	Summary        string    `json:"summary"`
	Recommendation string    `json:"recommendation"`
	ModelVersion   string    `json:"model_version"`
	CreatedAt      time.Time `json:"created_at"`
}

type Assignment struct {
	ID         string    `json:"id"`
	TicketID   string    `json:"ticket_id"`
	ManagerID  *string   `json:"manager_id"`
	Office     string    `json:"office"`
	Status     string    `json:"status"`
	ReasonCode string    `json:"reason_code"`
	ReasonText string    `json:"reason_text"`
	RRIndex    int       `json:"rr_index"`
	ClientLat  *float64  `json:"client_lat"`
	ClientLon  *float64  `json:"client_lon"`
	GeoSource  string    `json:"geo_source"`
	Reasoning  []byte    `json:"reasoning"`
	AssignedAt time.Time `json:"assigned_at"`
}

type Run struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Status     string    `json:"status"`
	Summary    []byte    `json:"summary"`
}
