package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"crowdtrack-backend/pkg/models"
)

// MemoryStore is an in-process Store for development and tests. All maps are
// guarded by one mutex; contention is irrelevant at this scale.
type MemoryStore struct {
	mu sync.Mutex

	accounts    map[string]*models.Account            // login -> account
	projects    map[string]*models.Project            // entry key -> project
	memberships map[string]map[string]time.Time       // entry key -> login -> joined at
	tickets     map[int]*models.Ticket                // id -> ticket
	acceptances map[int]map[string]time.Time          // ticket id -> login -> accepted at
	observation map[int][]*models.Observation         // ticket id -> ordered log
	messages    map[int][]*models.Message             // ticket id -> ordered log

	nextTicketID int
	nextSeq      int64

	// broadcast is closed and replaced on every AddMessage so long-poll
	// waiters wake, re-check their ticket, and either return or re-arm.
	broadcast chan struct{}
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:     make(map[string]*models.Account),
		projects:     make(map[string]*models.Project),
		memberships:  make(map[string]map[string]time.Time),
		tickets:      make(map[int]*models.Ticket),
		acceptances:  make(map[int]map[string]time.Time),
		observation:  make(map[int][]*models.Observation),
		messages:     make(map[int][]*models.Message),
		nextTicketID: 1,
		nextSeq:      0,
		broadcast:    make(chan struct{}),
	}
}

func (m *MemoryStore) CreateAccount(_ context.Context, account *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[account.LoginName]; ok {
		return ErrDuplicate
	}
	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now
	cp := *account
	m.accounts[account.LoginName] = &cp
	return nil
}

func (m *MemoryStore) GetAccount(_ context.Context, loginName string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[loginName]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *account
	return &cp, nil
}

func (m *MemoryStore) UpdateAccount(_ context.Context, account *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.accounts[account.LoginName]
	if !ok {
		return ErrNotFound
	}
	account.CreatedAt = existing.CreatedAt
	account.UpdatedAt = time.Now()
	cp := *account
	m.accounts[account.LoginName] = &cp
	return nil
}

func (m *MemoryStore) SetPassword(_ context.Context, loginName, digest string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[loginName]
	if !ok {
		return ErrNotFound
	}
	account.Password = digest
	account.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) DeleteAccount(_ context.Context, loginName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[loginName]
	if !ok {
		return ErrNotFound
	}
	// An owner takes their projects down with them; a project may never
	// reference a login that no longer exists.
	if account.Role == models.RoleOwner {
		for key, project := range m.projects {
			if project.Owner == loginName {
				m.purgeProjectLocked(key)
			}
		}
	}
	delete(m.accounts, loginName)
	for _, members := range m.memberships {
		delete(members, loginName)
	}
	for _, acceptors := range m.acceptances {
		delete(acceptors, loginName)
	}
	return nil
}

func (m *MemoryStore) ListAccounts(_ context.Context, role models.AccountRole) ([]*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Account
	for _, account := range m.accounts {
		if account.Role != role {
			continue
		}
		cp := *account
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LoginName < out[j].LoginName })
	return out, nil
}

func (m *MemoryStore) CreateProject(_ context.Context, project *models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[project.EntryKey]; ok {
		return ErrDuplicate
	}
	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now
	cp := *project
	m.projects[project.EntryKey] = &cp
	m.memberships[project.EntryKey] = make(map[string]time.Time)
	return nil
}

func (m *MemoryStore) GetProject(_ context.Context, entryKey string) (*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	project, ok := m.projects[entryKey]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *project
	return &cp, nil
}

func (m *MemoryStore) UpdateProject(_ context.Context, project *models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.projects[project.EntryKey]
	if !ok {
		return ErrNotFound
	}
	project.CreatedAt = existing.CreatedAt
	project.UpdatedAt = time.Now()
	cp := *project
	m.projects[project.EntryKey] = &cp
	return nil
}

func (m *MemoryStore) DeleteProject(_ context.Context, entryKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[entryKey]; !ok {
		return ErrNotFound
	}
	m.purgeProjectLocked(entryKey)
	return nil
}

// purgeProjectLocked removes a project, its tickets, and their dependent
// rows. Caller holds mu.
func (m *MemoryStore) purgeProjectLocked(entryKey string) {
	for id, ticket := range m.tickets {
		if ticket.EntryKey == entryKey {
			m.purgeTicketLocked(id)
		}
	}
	delete(m.memberships, entryKey)
	delete(m.projects, entryKey)
}

func (m *MemoryStore) ListProjectsByOwner(_ context.Context, ownerLogin string) ([]*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Project
	for _, project := range m.projects {
		if project.Owner != ownerLogin {
			continue
		}
		cp := *project
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntryKey < out[j].EntryKey })
	return out, nil
}

func (m *MemoryStore) AddMember(_ context.Context, entryKey, loginName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	members, ok := m.memberships[entryKey]
	if !ok {
		return ErrNotFound
	}
	if _, dup := members[loginName]; dup {
		return ErrDuplicate
	}
	members[loginName] = time.Now()
	return nil
}

func (m *MemoryStore) RemoveMember(_ context.Context, entryKey, loginName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	members, ok := m.memberships[entryKey]
	if !ok {
		return ErrNotFound
	}
	if _, isMember := members[loginName]; !isMember {
		return ErrNotFound
	}
	delete(members, loginName)
	return nil
}

func (m *MemoryStore) IsMember(_ context.Context, entryKey, loginName string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	members, ok := m.memberships[entryKey]
	if !ok {
		return false, nil
	}
	_, isMember := members[loginName]
	return isMember, nil
}

func (m *MemoryStore) ListMembers(_ context.Context, entryKey string) ([]*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	members, ok := m.memberships[entryKey]
	if !ok {
		return nil, ErrNotFound
	}
	var out []*models.Account
	for login := range members {
		if account, ok := m.accounts[login]; ok {
			cp := *account
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LoginName < out[j].LoginName })
	return out, nil
}

func (m *MemoryStore) CreateTicket(_ context.Context, ticket *models.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[ticket.EntryKey]; !ok {
		return ErrNotFound
	}
	ticket.ID = m.nextTicketID
	m.nextTicketID++
	now := time.Now()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	cp := *ticket
	m.tickets[ticket.ID] = &cp
	m.acceptances[ticket.ID] = make(map[string]time.Time)
	return nil
}

func (m *MemoryStore) GetTicket(_ context.Context, id int) (*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ticket, ok := m.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ticket
	return &cp, nil
}

func (m *MemoryStore) UpdateTicket(_ context.Context, ticket *models.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.tickets[ticket.ID]
	if !ok {
		return ErrNotFound
	}
	ticket.EntryKey = existing.EntryKey
	ticket.CreatedAt = existing.CreatedAt
	ticket.UpdatedAt = time.Now()
	cp := *ticket
	m.tickets[ticket.ID] = &cp
	return nil
}

func (m *MemoryStore) DeleteTicket(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tickets[id]; !ok {
		return ErrNotFound
	}
	m.purgeTicketLocked(id)
	return nil
}

// purgeTicketLocked removes a ticket and its dependent rows, waking blocked
// long-polls so they observe the deletion. Caller holds mu.
func (m *MemoryStore) purgeTicketLocked(id int) {
	delete(m.tickets, id)
	delete(m.acceptances, id)
	delete(m.observation, id)
	delete(m.messages, id)

	close(m.broadcast)
	m.broadcast = make(chan struct{})
}

func (m *MemoryStore) ListTicketsByProject(_ context.Context, entryKey string) ([]*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[entryKey]; !ok {
		return nil, ErrNotFound
	}
	var out []*models.Ticket
	for _, ticket := range m.tickets {
		if ticket.EntryKey != entryKey {
			continue
		}
		cp := *ticket
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) AcceptTicket(_ context.Context, ticketID int, loginName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	acceptors, ok := m.acceptances[ticketID]
	if !ok {
		return ErrNotFound
	}
	if _, dup := acceptors[loginName]; dup {
		return ErrDuplicate
	}
	acceptors[loginName] = time.Now()
	return nil
}

func (m *MemoryStore) HasAccepted(_ context.Context, ticketID int, loginName string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acceptors, ok := m.acceptances[ticketID]
	if !ok {
		return false, nil
	}
	_, accepted := acceptors[loginName]
	return accepted, nil
}

func (m *MemoryStore) AddObservation(_ context.Context, obs *models.Observation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tickets[obs.TicketID]; !ok {
		return ErrNotFound
	}
	obs.ID = uuid.New().String()
	obs.CreatedAt = time.Now()
	cp := *obs
	m.observation[obs.TicketID] = append(m.observation[obs.TicketID], &cp)
	return nil
}

func (m *MemoryStore) ListObservations(_ context.Context, ticketID int) ([]*models.Observation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tickets[ticketID]; !ok {
		return nil, ErrNotFound
	}
	out := make([]*models.Observation, 0, len(m.observation[ticketID]))
	for _, obs := range m.observation[ticketID] {
		cp := *obs
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryStore) CountObservations(_ context.Context, ticketID int, loginName string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, obs := range m.observation[ticketID] {
		if obs.LoginName == loginName {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) AddMessage(_ context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tickets[msg.TicketID]; !ok {
		return ErrNotFound
	}
	m.nextSeq++
	msg.ID = uuid.New().String()
	msg.Seq = m.nextSeq
	msg.CreatedAt = time.Now()
	cp := *msg
	m.messages[msg.TicketID] = append(m.messages[msg.TicketID], &cp)

	close(m.broadcast)
	m.broadcast = make(chan struct{})
	return nil
}

func (m *MemoryStore) ListMessages(_ context.Context, ticketID int, afterSeq int64) ([]*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tickets[ticketID]; !ok {
		return nil, ErrNotFound
	}
	return m.messagesAfterLocked(ticketID, afterSeq), nil
}

func (m *MemoryStore) messagesAfterLocked(ticketID int, afterSeq int64) []*models.Message {
	out := []*models.Message{}
	for _, msg := range m.messages[ticketID] {
		if msg.Seq > afterSeq {
			cp := *msg
			out = append(out, &cp)
		}
	}
	return out
}

func (m *MemoryStore) WaitForMessages(ctx context.Context, ticketID int, afterSeq int64) ([]*models.Message, error) {
	for {
		m.mu.Lock()
		if _, ok := m.tickets[ticketID]; !ok {
			m.mu.Unlock()
			return nil, ErrNotFound
		}
		pending := m.messagesAfterLocked(ticketID, afterSeq)
		wake := m.broadcast
		m.mu.Unlock()

		if len(pending) > 0 {
			return pending, nil
		}
		select {
		case <-wake:
		case <-ctx.Done():
			return []*models.Message{}, nil
		}
	}
}

func (m *MemoryStore) HealthCheck(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
