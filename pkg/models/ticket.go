package models

import "time"

// TicketCategory classifies what kind of field observation a ticket asks for.
type TicketCategory string

const (
	CategoryBehavior    TicketCategory = "behavior"
	CategoryCrash       TicketCategory = "crash"
	CategoryPerformance TicketCategory = "performance"
	CategoryUsability   TicketCategory = "usability"
	CategoryOther       TicketCategory = "other"
)

// TicketStatus is the derived lifecycle state of a ticket as seen by one
// viewer. It is computed on every read and never persisted.
type TicketStatus string

const (
	StatusOpen      TicketStatus = "open"
	StatusAccepted  TicketStatus = "accepted"
	StatusProcessed TicketStatus = "processed"
)

// Ticket is a unit of work inside a project. RequiredObservations is the
// completion target shown to contributors; it does not influence the derived
// status. Status is filled in by the read path, per viewer.
type Ticket struct {
	ID                   int            `json:"id" db:"id"`
	EntryKey             string         `json:"project_key" db:"entry_key"`
	Name                 string         `json:"name" db:"name"`
	Summary              string         `json:"summary" db:"summary"`
	Description          string         `json:"description" db:"description"`
	Category             TicketCategory `json:"category" db:"category"`
	RequiredObservations int            `json:"required_observations" db:"required_observations"`
	Status               TicketStatus   `json:"status"`
	CreatedAt            time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at" db:"updated_at"`
}

// Acceptance is a contributor's claim on a ticket. At most one row per
// (contributor, ticket) pair; it gates observation submission.
type Acceptance struct {
	LoginName string    `json:"login_name" db:"login_name"`
	TicketID  int       `json:"ticket_id" db:"ticket_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Observation is an append-only log entry a contributor records against a
// ticket they accepted. Never mutated; purged with the ticket.
type Observation struct {
	ID        string    `json:"id" db:"id"`
	TicketID  int       `json:"ticket_id" db:"ticket_id"`
	LoginName string    `json:"login_name" db:"login_name"`
	Outcome   string    `json:"outcome" db:"outcome"`
	Quantity  int       `json:"quantity" db:"quantity"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TicketUpsertRequest creates a ticket when ID is nil and updates it
// otherwise, mirroring the project upsert shape.
type TicketUpsertRequest struct {
	ID                   *int           `json:"id,omitempty"`
	EntryKey             string         `json:"project_key"`
	Name                 string         `json:"name"`
	Summary              string         `json:"summary"`
	Description          string         `json:"description"`
	Category             TicketCategory `json:"category"`
	RequiredObservations int            `json:"required_observations"`
}

// ObservationRequest is the payload for submitting an observation.
type ObservationRequest struct {
	Outcome  string `json:"outcome"`
	Quantity int    `json:"quantity"`
}
