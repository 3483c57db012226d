package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"crowdtrack-backend/pkg/models"
)

func seededStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	ctx := context.Background()

	accounts := []*models.Account{
		{LoginName: "admin", Password: "x", Role: models.RoleOwner},
		{LoginName: "alice", Password: "x", Role: models.RoleContributor},
		{LoginName: "bob", Password: "x", Role: models.RoleContributor},
	}
	for _, a := range accounts {
		if err := s.CreateAccount(ctx, a); err != nil {
			t.Fatalf("CreateAccount(%s): %v", a.LoginName, err)
		}
	}
	if err := s.CreateProject(ctx, &models.Project{EntryKey: "proj", Name: "Project", Owner: "admin"}); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if err := s.AddMember(ctx, "proj", "alice"); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	return s
}

func TestMemoryStore_AccountUniquenessAcrossRoles(t *testing.T) {
	s := seededStore(t)
	err := s.CreateAccount(context.Background(), &models.Account{
		LoginName: "alice", Password: "x", Role: models.RoleOwner,
	})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
}

func TestMemoryStore_DuplicateMembership(t *testing.T) {
	s := seededStore(t)
	if err := s.AddMember(context.Background(), "proj", "alice"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
}

func TestMemoryStore_DuplicateAcceptance(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()
	ticket := &models.Ticket{EntryKey: "proj", Name: "T", Category: models.CategoryOther, RequiredObservations: 1}
	if err := s.CreateTicket(ctx, ticket); err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if err := s.AcceptTicket(ctx, ticket.ID, "alice"); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	if err := s.AcceptTicket(ctx, ticket.ID, "alice"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second accept err = %v, want ErrDuplicate", err)
	}
}

func TestMemoryStore_ProjectDeletionCascades(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()

	ticket := &models.Ticket{EntryKey: "proj", Name: "T", Category: models.CategoryCrash, RequiredObservations: 2}
	if err := s.CreateTicket(ctx, ticket); err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if err := s.AcceptTicket(ctx, ticket.ID, "alice"); err != nil {
		t.Fatalf("AcceptTicket: %v", err)
	}
	if err := s.AddObservation(ctx, &models.Observation{TicketID: ticket.ID, LoginName: "alice", Outcome: "ok", Quantity: 1}); err != nil {
		t.Fatalf("AddObservation: %v", err)
	}
	if err := s.AddMessage(ctx, &models.Message{TicketID: ticket.ID, Sender: "alice", Content: "hi"}); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	if err := s.DeleteProject(ctx, "proj"); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}

	if _, err := s.GetProject(ctx, "proj"); !errors.Is(err, ErrNotFound) {
		t.Errorf("project survived deletion: %v", err)
	}
	if _, err := s.GetTicket(ctx, ticket.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("ticket survived project deletion: %v", err)
	}
	if accepted, _ := s.HasAccepted(ctx, ticket.ID, "alice"); accepted {
		t.Error("acceptance survived project deletion")
	}
	if member, _ := s.IsMember(ctx, "proj", "alice"); member {
		t.Error("membership survived project deletion")
	}
}

func TestMemoryStore_AccountDeletionCascades(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()

	ticket := &models.Ticket{EntryKey: "proj", Name: "T", Category: models.CategoryOther, RequiredObservations: 1}
	if err := s.CreateTicket(ctx, ticket); err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if err := s.AcceptTicket(ctx, ticket.ID, "alice"); err != nil {
		t.Fatalf("AcceptTicket: %v", err)
	}
	if err := s.AddObservation(ctx, &models.Observation{TicketID: ticket.ID, LoginName: "alice", Outcome: "ok", Quantity: 1}); err != nil {
		t.Fatalf("AddObservation: %v", err)
	}

	if err := s.DeleteAccount(ctx, "alice"); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}

	if member, _ := s.IsMember(ctx, "proj", "alice"); member {
		t.Error("membership survived account deletion")
	}
	if accepted, _ := s.HasAccepted(ctx, ticket.ID, "alice"); accepted {
		t.Error("acceptance survived account deletion")
	}
	// Observations stay with the ticket until the ticket goes.
	obs, err := s.ListObservations(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("ListObservations: %v", err)
	}
	if len(obs) != 1 {
		t.Errorf("observations = %d, want 1", len(obs))
	}
}

func TestMemoryStore_OwnerDeletionCascadesProjects(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()

	ticket := &models.Ticket{EntryKey: "proj", Name: "T", Category: models.CategoryOther, RequiredObservations: 1}
	if err := s.CreateTicket(ctx, ticket); err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}

	if err := s.DeleteAccount(ctx, "admin"); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}

	if _, err := s.GetAccount(ctx, "admin"); !errors.Is(err, ErrNotFound) {
		t.Errorf("account survived deletion: %v", err)
	}
	if _, err := s.GetProject(ctx, "proj"); !errors.Is(err, ErrNotFound) {
		t.Errorf("owned project survived owner deletion: %v", err)
	}
	if _, err := s.GetTicket(ctx, ticket.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("ticket survived owner deletion: %v", err)
	}
	if member, _ := s.IsMember(ctx, "proj", "alice"); member {
		t.Error("membership survived owner deletion")
	}
}

func TestMemoryStore_MessageSequence(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()
	ticket := &models.Ticket{EntryKey: "proj", Name: "T", Category: models.CategoryOther, RequiredObservations: 1}
	if err := s.CreateTicket(ctx, ticket); err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}

	var lastSeq int64
	for i := 0; i < 3; i++ {
		msg := &models.Message{TicketID: ticket.ID, Sender: "alice", Content: "m"}
		if err := s.AddMessage(ctx, msg); err != nil {
			t.Fatalf("AddMessage: %v", err)
		}
		if msg.Seq <= lastSeq {
			t.Fatalf("seq %d not monotonic after %d", msg.Seq, lastSeq)
		}
		lastSeq = msg.Seq
	}

	tail, err := s.ListMessages(ctx, ticket.ID, lastSeq-1)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(tail) != 1 || tail[0].Seq != lastSeq {
		t.Errorf("tail after seq %d = %d messages", lastSeq-1, len(tail))
	}
}

func TestMemoryStore_WaitForMessagesWakes(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()
	ticket := &models.Ticket{EntryKey: "proj", Name: "T", Category: models.CategoryOther, RequiredObservations: 1}
	if err := s.CreateTicket(ctx, ticket); err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}

	type result struct {
		msgs []*models.Message
		err  error
	}
	done := make(chan result, 1)
	go func() {
		waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		msgs, err := s.WaitForMessages(waitCtx, ticket.ID, 0)
		done <- result{msgs, err}
	}()

	// Give the waiter a moment to block before publishing.
	time.Sleep(20 * time.Millisecond)
	if err := s.AddMessage(ctx, &models.Message{TicketID: ticket.ID, Sender: "admin", Content: "wake up"}); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("WaitForMessages: %v", r.err)
		}
		if len(r.msgs) != 1 || r.msgs[0].Content != "wake up" {
			t.Errorf("got %d messages", len(r.msgs))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("waiter never woke")
	}
}

func TestMemoryStore_WaitForMessagesNotFoundAfterTicketDeletion(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()
	ticket := &models.Ticket{EntryKey: "proj", Name: "T", Category: models.CategoryOther, RequiredObservations: 1}
	if err := s.CreateTicket(ctx, ticket); err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_, err := s.WaitForMessages(waitCtx, ticket.ID, 0)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	if err := s.DeleteTicket(ctx, ticket.ID); err != nil {
		t.Fatalf("DeleteTicket: %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("waiter never observed the deletion")
	}
}

func TestMemoryStore_WaitForMessagesTimesOutEmpty(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()
	ticket := &models.Ticket{EntryKey: "proj", Name: "T", Category: models.CategoryOther, RequiredObservations: 1}
	if err := s.CreateTicket(ctx, ticket); err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	msgs, err := s.WaitForMessages(waitCtx, ticket.ID, 0)
	if err != nil {
		t.Fatalf("WaitForMessages: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("got %d messages, want 0", len(msgs))
	}
}
