// Package store defines the persistence boundary. Two implementations exist:
// a Postgres store for deployments and an in-memory store for local
// development and tests.
package store

import (
	"context"
	"errors"

	"crowdtrack-backend/pkg/models"
)

// Sentinel errors implementations translate their backend failures into.
// Handlers branch on these, never on driver error types.
var (
	// ErrNotFound reports that the referenced row does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicate reports a uniqueness violation, such as a second
	// membership for the same contributor and project.
	ErrDuplicate = errors.New("store: duplicate")
)

// Store is the persistence interface the handlers depend on.
//
// Deletion methods cascade: removing a project purges its tickets, and each
// ticket purge removes its acceptances, observations, and messages, then the
// project's memberships. Removing an account purges its memberships and
// acceptances; observations and messages it authored stay with their tickets.
type Store interface {
	// Accounts. Login names are unique across both roles.
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccount(ctx context.Context, loginName string) (*models.Account, error)
	UpdateAccount(ctx context.Context, account *models.Account) error
	SetPassword(ctx context.Context, loginName, digest string) error
	DeleteAccount(ctx context.Context, loginName string) error
	ListAccounts(ctx context.Context, role models.AccountRole) ([]*models.Account, error)

	// Projects.
	CreateProject(ctx context.Context, project *models.Project) error
	GetProject(ctx context.Context, entryKey string) (*models.Project, error)
	UpdateProject(ctx context.Context, project *models.Project) error
	DeleteProject(ctx context.Context, entryKey string) error
	ListProjectsByOwner(ctx context.Context, ownerLogin string) ([]*models.Project, error)

	// Memberships.
	AddMember(ctx context.Context, entryKey, loginName string) error
	RemoveMember(ctx context.Context, entryKey, loginName string) error
	IsMember(ctx context.Context, entryKey, loginName string) (bool, error)
	ListMembers(ctx context.Context, entryKey string) ([]*models.Account, error)

	// Tickets. CreateTicket assigns and fills the ticket's ID.
	CreateTicket(ctx context.Context, ticket *models.Ticket) error
	GetTicket(ctx context.Context, id int) (*models.Ticket, error)
	UpdateTicket(ctx context.Context, ticket *models.Ticket) error
	DeleteTicket(ctx context.Context, id int) error
	ListTicketsByProject(ctx context.Context, entryKey string) ([]*models.Ticket, error)

	// Acceptances and observations.
	AcceptTicket(ctx context.Context, ticketID int, loginName string) error
	HasAccepted(ctx context.Context, ticketID int, loginName string) (bool, error)
	AddObservation(ctx context.Context, obs *models.Observation) error
	ListObservations(ctx context.Context, ticketID int) ([]*models.Observation, error)
	CountObservations(ctx context.Context, ticketID int, loginName string) (int, error)

	// Messages. AddMessage assigns the ID and sequence number.
	// WaitForMessages blocks until a message with Seq > afterSeq exists on
	// the ticket or ctx is done, then returns everything after afterSeq.
	AddMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, ticketID int, afterSeq int64) ([]*models.Message, error)
	WaitForMessages(ctx context.Context, ticketID int, afterSeq int64) ([]*models.Message, error)

	HealthCheck(ctx context.Context) error
	Close() error
}
