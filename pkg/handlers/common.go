// Package handlers implements the HTTP endpoints. Each handler loads the
// facts the operation depends on, asks the policy package for a decision,
// and only then touches the store.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"crowdtrack-backend/pkg/models"
	"crowdtrack-backend/pkg/policy"
	"crowdtrack-backend/pkg/store"
	"crowdtrack-backend/pkg/utils"
)

// respondDeny maps a policy denial onto the wire.
func respondDeny(w http.ResponseWriter, d policy.Decision) {
	switch d.Code {
	case policy.DenyNotFound:
		utils.WriteNotFoundResponse(w, d.Reason)
	case policy.DenyConflict:
		utils.WriteConflictResponse(w, d.Reason)
	default:
		utils.WriteForbiddenResponse(w, d.Reason)
	}
}

// projectFacts loads the snapshot fields for a project-scoped action.
// A missing project leaves the zero snapshot, which Decide reads as
// NotFound.
func projectFacts(ctx context.Context, s store.Store, entryKey string, id policy.Identity) (policy.Snapshot, *models.Project, error) {
	var snap policy.Snapshot

	project, err := s.GetProject(ctx, entryKey)
	if errors.Is(err, store.ErrNotFound) {
		return snap, nil, nil
	}
	if err != nil {
		return snap, nil, err
	}
	snap.ProjectExists = true
	snap.ProjectOwner = project.Owner

	if id.IsContributor() {
		member, err := s.IsMember(ctx, entryKey, id.LoginName)
		if err != nil {
			return snap, nil, err
		}
		snap.IsMember = member
	}
	return snap, project, nil
}

// ticketFacts loads the snapshot fields for a ticket-scoped action,
// including the parent project's facts.
func ticketFacts(ctx context.Context, s store.Store, ticketID int, id policy.Identity) (policy.Snapshot, *models.Ticket, error) {
	var snap policy.Snapshot

	ticket, err := s.GetTicket(ctx, ticketID)
	if errors.Is(err, store.ErrNotFound) {
		return snap, nil, nil
	}
	if err != nil {
		return snap, nil, err
	}
	snap.TicketExists = true

	project, err := s.GetProject(ctx, ticket.EntryKey)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return snap, nil, err
	}
	if project != nil {
		snap.ProjectExists = true
		snap.ProjectOwner = project.Owner
	}

	if id.IsContributor() {
		member, err := s.IsMember(ctx, ticket.EntryKey, id.LoginName)
		if err != nil {
			return snap, nil, err
		}
		snap.IsMember = member

		accepted, err := s.HasAccepted(ctx, ticketID, id.LoginName)
		if err != nil {
			return snap, nil, err
		}
		snap.HasAccepted = accepted
	}
	return snap, ticket, nil
}

// decorateTicket fills the viewer-dependent status on a ticket.
func decorateTicket(ctx context.Context, s store.Store, ticket *models.Ticket, viewer policy.Identity) error {
	accepted := false
	count := 0
	if viewer.IsContributor() {
		var err error
		accepted, err = s.HasAccepted(ctx, ticket.ID, viewer.LoginName)
		if err != nil {
			return err
		}
		if accepted {
			count, err = s.CountObservations(ctx, ticket.ID, viewer.LoginName)
			if err != nil {
				return err
			}
		}
	}
	ticket.Status = policy.DeriveStatus(viewer, accepted, count)
	return nil
}
