package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"crowdtrack-backend/pkg/models"
)

// messageChannel is the NOTIFY channel new messages are announced on. The
// payload is the ticket id.
const messageChannel = "ticket_messages"

// PostgresStore implements Store on PostgreSQL via lib/pq. A shared
// pq.Listener fans NOTIFY wakeups out to the long-poll waiters.
type PostgresStore struct {
	db       *sql.DB
	listener *pq.Listener
	logger   *zap.Logger

	mu      sync.Mutex
	waiters map[int][]chan struct{} // ticket id -> blocked long-polls
}

// NewPostgresStore connects, applies the schema, and starts the notification
// listener.
func NewPostgresStore(dsn string, logger *zap.Logger) (*PostgresStore, error) {
	dsn = strings.TrimSpace(dsn)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s := &PostgresStore{
		db:      db,
		logger:  logger,
		waiters: make(map[int][]chan struct{}),
	}

	s.listener = pq.NewListener(dsn, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn("message listener event", zap.Int("event", int(ev)), zap.Error(err))
		}
	})
	if err := s.listener.Listen(messageChannel); err != nil {
		db.Close()
		return nil, fmt.Errorf("listen on %s: %w", messageChannel, err)
	}
	go s.dispatchNotifications()

	return s, nil
}

// dispatchNotifications wakes the waiters of the ticket named in each NOTIFY
// payload until the listener channel closes.
func (s *PostgresStore) dispatchNotifications() {
	for n := range s.listener.Notify {
		if n == nil {
			// Reconnect marker. Wake everyone so they re-read.
			s.wakeAll()
			continue
		}
		var ticketID int
		if _, err := fmt.Sscanf(n.Extra, "%d", &ticketID); err != nil {
			s.logger.Warn("unparseable notification payload", zap.String("payload", n.Extra))
			continue
		}
		s.wake(ticketID)
	}
}

func (s *PostgresStore) wake(ticketID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.waiters[ticketID] {
		close(ch)
	}
	delete(s.waiters, ticketID)
}

func (s *PostgresStore) wakeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, chans := range s.waiters {
		for _, ch := range chans {
			close(ch)
		}
		delete(s.waiters, id)
	}
}

// translateErr maps driver errors onto the store sentinels.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

func (s *PostgresStore) CreateAccount(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (login_name, password_digest, first_name, last_name, role, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		account.LoginName, account.Password, account.FirstName, account.LastName, account.Role, account.Phone,
	).Scan(&account.CreatedAt, &account.UpdatedAt)
	if err := translateErr(err); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return err
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAccount(ctx context.Context, loginName string) (*models.Account, error) {
	query := `
		SELECT login_name, password_digest, first_name, last_name, role, COALESCE(phone, ''), created_at, updated_at
		FROM accounts
		WHERE login_name = $1
	`
	var a models.Account
	err := s.db.QueryRowContext(ctx, query, loginName).Scan(
		&a.LoginName, &a.Password, &a.FirstName, &a.LastName, &a.Role, &a.Phone, &a.CreatedAt, &a.UpdatedAt,
	)
	if err := translateErr(err); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}

func (s *PostgresStore) UpdateAccount(ctx context.Context, account *models.Account) error {
	query := `
		UPDATE accounts
		SET first_name = $2, last_name = $3, phone = $4, updated_at = NOW()
		WHERE login_name = $1
		RETURNING created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		account.LoginName, account.FirstName, account.LastName, account.Phone,
	).Scan(&account.CreatedAt, &account.UpdatedAt)
	if err := translateErr(err); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("update account: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetPassword(ctx context.Context, loginName, digest string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET password_digest = $2, updated_at = NOW() WHERE login_name = $1`,
		loginName, digest,
	)
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteAccount(ctx context.Context, loginName string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete account: begin: %w", err)
	}
	defer tx.Rollback()

	// Owned projects go down with the owner, dependents first. The
	// statements are no-ops for contributors.
	for _, stmt := range []string{
		`DELETE FROM acceptances WHERE ticket_id IN (SELECT id FROM tickets WHERE entry_key IN (SELECT entry_key FROM projects WHERE owner_login = $1))`,
		`DELETE FROM observations WHERE ticket_id IN (SELECT id FROM tickets WHERE entry_key IN (SELECT entry_key FROM projects WHERE owner_login = $1))`,
		`DELETE FROM messages WHERE ticket_id IN (SELECT id FROM tickets WHERE entry_key IN (SELECT entry_key FROM projects WHERE owner_login = $1))`,
		`DELETE FROM tickets WHERE entry_key IN (SELECT entry_key FROM projects WHERE owner_login = $1)`,
		`DELETE FROM memberships WHERE entry_key IN (SELECT entry_key FROM projects WHERE owner_login = $1)`,
		`DELETE FROM projects WHERE owner_login = $1`,
		`DELETE FROM memberships WHERE login_name = $1`,
		`DELETE FROM acceptances WHERE login_name = $1`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, loginName); err != nil {
			return fmt.Errorf("delete account cascade: %w", err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE login_name = $1`, loginName)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.wakeAll()
	return nil
}

func (s *PostgresStore) ListAccounts(ctx context.Context, role models.AccountRole) ([]*models.Account, error) {
	query := `
		SELECT login_name, password_digest, first_name, last_name, role, COALESCE(phone, ''), created_at, updated_at
		FROM accounts
		WHERE role = $1
		ORDER BY login_name
	`
	rows, err := s.db.QueryContext(ctx, query, role)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []*models.Account
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.LoginName, &a.Password, &a.FirstName, &a.LastName, &a.Role, &a.Phone, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("list accounts: scan: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateProject(ctx context.Context, project *models.Project) error {
	query := `
		INSERT INTO projects (entry_key, name, owner_login, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query, project.EntryKey, project.Name, project.Owner).
		Scan(&project.CreatedAt, &project.UpdatedAt)
	if err := translateErr(err); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return err
		}
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProject(ctx context.Context, entryKey string) (*models.Project, error) {
	query := `
		SELECT entry_key, name, owner_login, created_at, updated_at
		FROM projects
		WHERE entry_key = $1
	`
	var p models.Project
	err := s.db.QueryRowContext(ctx, query, entryKey).
		Scan(&p.EntryKey, &p.Name, &p.Owner, &p.CreatedAt, &p.UpdatedAt)
	if err := translateErr(err); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) UpdateProject(ctx context.Context, project *models.Project) error {
	query := `
		UPDATE projects
		SET name = $2, updated_at = NOW()
		WHERE entry_key = $1
		RETURNING created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query, project.EntryKey, project.Name).
		Scan(&project.CreatedAt, &project.UpdatedAt)
	if err := translateErr(err); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("update project: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteProject(ctx context.Context, entryKey string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete project: begin: %w", err)
	}
	defer tx.Rollback()

	// Dependent rows of every ticket in the project go first.
	for _, stmt := range []string{
		`DELETE FROM acceptances WHERE ticket_id IN (SELECT id FROM tickets WHERE entry_key = $1)`,
		`DELETE FROM observations WHERE ticket_id IN (SELECT id FROM tickets WHERE entry_key = $1)`,
		`DELETE FROM messages WHERE ticket_id IN (SELECT id FROM tickets WHERE entry_key = $1)`,
		`DELETE FROM tickets WHERE entry_key = $1`,
		`DELETE FROM memberships WHERE entry_key = $1`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, entryKey); err != nil {
			return fmt.Errorf("delete project cascade: %w", err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE entry_key = $1`, entryKey)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.wakeAll()
	return nil
}

func (s *PostgresStore) ListProjectsByOwner(ctx context.Context, ownerLogin string) ([]*models.Project, error) {
	query := `
		SELECT entry_key, name, owner_login, created_at, updated_at
		FROM projects
		WHERE owner_login = $1
		ORDER BY entry_key
	`
	rows, err := s.db.QueryContext(ctx, query, ownerLogin)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []*models.Project
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.EntryKey, &p.Name, &p.Owner, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("list projects: scan: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AddMember(ctx context.Context, entryKey, loginName string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memberships (entry_key, login_name, created_at) VALUES ($1, $2, NOW())`,
		entryKey, loginName,
	)
	if err := translateErr(err); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return err
		}
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveMember(ctx context.Context, entryKey, loginName string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM memberships WHERE entry_key = $1 AND login_name = $2`,
		entryKey, loginName,
	)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) IsMember(ctx context.Context, entryKey, loginName string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM memberships WHERE entry_key = $1 AND login_name = $2)`,
		entryKey, loginName,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("is member: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListMembers(ctx context.Context, entryKey string) ([]*models.Account, error) {
	query := `
		SELECT a.login_name, a.password_digest, a.first_name, a.last_name, a.role, COALESCE(a.phone, ''), a.created_at, a.updated_at
		FROM accounts a
		JOIN memberships m ON m.login_name = a.login_name
		WHERE m.entry_key = $1
		ORDER BY a.login_name
	`
	rows, err := s.db.QueryContext(ctx, query, entryKey)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var out []*models.Account
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.LoginName, &a.Password, &a.FirstName, &a.LastName, &a.Role, &a.Phone, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("list members: scan: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	query := `
		INSERT INTO tickets (entry_key, name, summary, description, category, required_observations, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		ticket.EntryKey, ticket.Name, ticket.Summary, ticket.Description, ticket.Category, ticket.RequiredObservations,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create ticket: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTicket(ctx context.Context, id int) (*models.Ticket, error) {
	query := `
		SELECT id, entry_key, name, summary, description, category, required_observations, created_at, updated_at
		FROM tickets
		WHERE id = $1
	`
	var t models.Ticket
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.EntryKey, &t.Name, &t.Summary, &t.Description, &t.Category, &t.RequiredObservations, &t.CreatedAt, &t.UpdatedAt,
	)
	if err := translateErr(err); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return &t, nil
}

func (s *PostgresStore) UpdateTicket(ctx context.Context, ticket *models.Ticket) error {
	query := `
		UPDATE tickets
		SET name = $2, summary = $3, description = $4, category = $5, required_observations = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING entry_key, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		ticket.ID, ticket.Name, ticket.Summary, ticket.Description, ticket.Category, ticket.RequiredObservations,
	).Scan(&ticket.EntryKey, &ticket.CreatedAt, &ticket.UpdatedAt)
	if err := translateErr(err); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("update ticket: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteTicket(ctx context.Context, id int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete ticket: begin: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM acceptances WHERE ticket_id = $1`,
		`DELETE FROM observations WHERE ticket_id = $1`,
		`DELETE FROM messages WHERE ticket_id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("delete ticket cascade: %w", err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM tickets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete ticket: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.wake(id)
	return nil
}

func (s *PostgresStore) ListTicketsByProject(ctx context.Context, entryKey string) ([]*models.Ticket, error) {
	query := `
		SELECT id, entry_key, name, summary, description, category, required_observations, created_at, updated_at
		FROM tickets
		WHERE entry_key = $1
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, entryKey)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var out []*models.Ticket
	for rows.Next() {
		var t models.Ticket
		if err := rows.Scan(&t.ID, &t.EntryKey, &t.Name, &t.Summary, &t.Description, &t.Category, &t.RequiredObservations, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("list tickets: scan: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AcceptTicket(ctx context.Context, ticketID int, loginName string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO acceptances (ticket_id, login_name, created_at) VALUES ($1, $2, NOW())`,
		ticketID, loginName,
	)
	if err := translateErr(err); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return err
		}
		return fmt.Errorf("accept ticket: %w", err)
	}
	return nil
}

func (s *PostgresStore) HasAccepted(ctx context.Context, ticketID int, loginName string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM acceptances WHERE ticket_id = $1 AND login_name = $2)`,
		ticketID, loginName,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("has accepted: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) AddObservation(ctx context.Context, obs *models.Observation) error {
	obs.ID = uuid.New().String()
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO observations (id, ticket_id, login_name, outcome, quantity, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 RETURNING created_at`,
		obs.ID, obs.TicketID, obs.LoginName, obs.Outcome, obs.Quantity,
	).Scan(&obs.CreatedAt)
	if err != nil {
		return fmt.Errorf("add observation: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListObservations(ctx context.Context, ticketID int) ([]*models.Observation, error) {
	query := `
		SELECT id, ticket_id, login_name, outcome, quantity, created_at
		FROM observations
		WHERE ticket_id = $1
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list observations: %w", err)
	}
	defer rows.Close()

	out := []*models.Observation{}
	for rows.Next() {
		var o models.Observation
		if err := rows.Scan(&o.ID, &o.TicketID, &o.LoginName, &o.Outcome, &o.Quantity, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("list observations: scan: %w", err)
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountObservations(ctx context.Context, ticketID int, loginName string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM observations WHERE ticket_id = $1 AND login_name = $2`,
		ticketID, loginName,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count observations: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) AddMessage(ctx context.Context, msg *models.Message) error {
	msg.ID = uuid.New().String()
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO messages (id, ticket_id, sender, content, created_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 RETURNING seq, created_at`,
		msg.ID, msg.TicketID, msg.Sender, msg.Content,
	).Scan(&msg.Seq, &msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("add message: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`SELECT pg_notify($1, $2)`, messageChannel, fmt.Sprintf("%d", msg.TicketID),
	); err != nil {
		s.logger.Warn("notify failed", zap.Int("ticket_id", msg.TicketID), zap.Error(err))
	}
	return nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, ticketID int, afterSeq int64) ([]*models.Message, error) {
	query := `
		SELECT id, seq, ticket_id, sender, content, created_at
		FROM messages
		WHERE ticket_id = $1 AND seq > $2
		ORDER BY seq
	`
	rows, err := s.db.QueryContext(ctx, query, ticketID, afterSeq)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	out := []*models.Message{}
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.Seq, &m.TicketID, &m.Sender, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("list messages: scan: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) WaitForMessages(ctx context.Context, ticketID int, afterSeq int64) ([]*models.Message, error) {
	for {
		// Register before reading so a NOTIFY landing between the read
		// and the block is not lost.
		wake := make(chan struct{})
		s.mu.Lock()
		s.waiters[ticketID] = append(s.waiters[ticketID], wake)
		s.mu.Unlock()

		pending, err := s.ListMessages(ctx, ticketID, afterSeq)
		if err != nil {
			s.unregister(ticketID, wake)
			return nil, err
		}
		if len(pending) > 0 {
			s.unregister(ticketID, wake)
			return pending, nil
		}

		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM tickets WHERE id = $1)`, ticketID,
		).Scan(&exists); err != nil {
			s.unregister(ticketID, wake)
			return nil, fmt.Errorf("wait for messages: %w", err)
		}
		if !exists {
			s.unregister(ticketID, wake)
			return nil, ErrNotFound
		}

		select {
		case <-wake:
		case <-ctx.Done():
			s.unregister(ticketID, wake)
			return []*models.Message{}, nil
		}
	}
}

// unregister drops a waiter that timed out before any wakeup arrived.
func (s *PostgresStore) unregister(ticketID int, wake chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chans := s.waiters[ticketID]
	for i, ch := range chans {
		if ch == wake {
			s.waiters[ticketID] = append(chans[:i], chans[i+1:]...)
			break
		}
	}
	if len(s.waiters[ticketID]) == 0 {
		delete(s.waiters, ticketID)
	}
}

func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	if s.listener != nil {
		s.listener.Close()
	}
	return s.db.Close()
}
