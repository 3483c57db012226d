package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"crowdtrack-backend/pkg/config"
	"crowdtrack-backend/pkg/middleware"
	"crowdtrack-backend/pkg/models"
	"crowdtrack-backend/pkg/policy"
	"crowdtrack-backend/pkg/store"
	"crowdtrack-backend/pkg/utils"
)

// TicketsHandler serves ticket administration, acceptance, and observations.
type TicketsHandler struct {
	config *config.Config
	store  store.Store
	logger *zap.Logger
}

// NewTicketsHandler wires the ticket endpoints.
func NewTicketsHandler(cfg *config.Config, s store.Store, logger *zap.Logger) *TicketsHandler {
	return &TicketsHandler{config: cfg, store: s, logger: logger}
}

// ticketID parses the {id} route parameter.
func ticketID(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "id"))
}

func validCategory(c models.TicketCategory) bool {
	switch c {
	case models.CategoryBehavior, models.CategoryCrash, models.CategoryPerformance,
		models.CategoryUsability, models.CategoryOther:
		return true
	}
	return false
}

// Upsert creates a ticket when no id is given and updates it otherwise. Both
// paths require the caller to own the parent project.
func (h *TicketsHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.RequireIdentity(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Not authenticated")
		return
	}

	var req models.TicketUpsertRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.Name == "" {
		utils.WriteValidationErrorResponse(w, "name is required", "")
		return
	}
	if !validCategory(req.Category) {
		utils.WriteValidationErrorResponse(w, "unknown ticket category", string(req.Category))
		return
	}
	if req.RequiredObservations < 1 {
		utils.WriteValidationErrorResponse(w, "required_observations must be at least 1", "")
		return
	}

	if req.ID == nil {
		h.createTicket(w, r, identity, req)
		return
	}
	h.updateTicket(w, r, identity, *req.ID, req)
}

func (h *TicketsHandler) createTicket(w http.ResponseWriter, r *http.Request, identity policy.Identity, req models.TicketUpsertRequest) {
	if req.EntryKey == "" {
		utils.WriteValidationErrorResponse(w, "project_key is required", "")
		return
	}

	snap, _, err := projectFacts(r.Context(), h.store, req.EntryKey, identity)
	if err != nil {
		h.logger.Error("project facts failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to load project")
		return
	}
	if decision := policy.Decide(identity, policy.ActionCreateTicket, snap); !decision.Allowed {
		respondDeny(w, decision)
		return
	}

	ticket := &models.Ticket{
		EntryKey:             req.EntryKey,
		Name:                 req.Name,
		Summary:              req.Summary,
		Description:          req.Description,
		Category:             req.Category,
		RequiredObservations: req.RequiredObservations,
	}
	if err := h.store.CreateTicket(r.Context(), ticket); err != nil {
		h.logger.Error("ticket create failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to create ticket")
		return
	}
	ticket.Status = models.StatusOpen

	h.logger.Info("ticket created", zap.Int("ticket_id", ticket.ID), zap.String("entry_key", ticket.EntryKey))
	utils.WriteCreatedResponse(w, ticket)
}

func (h *TicketsHandler) updateTicket(w http.ResponseWriter, r *http.Request, identity policy.Identity, id int, req models.TicketUpsertRequest) {
	snap, ticket, err := ticketFacts(r.Context(), h.store, id, identity)
	if err != nil {
		h.logger.Error("ticket facts failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to load ticket")
		return
	}
	if decision := policy.Decide(identity, policy.ActionUpdateTicket, snap); !decision.Allowed {
		respondDeny(w, decision)
		return
	}

	ticket.Name = req.Name
	ticket.Summary = req.Summary
	ticket.Description = req.Description
	ticket.Category = req.Category
	ticket.RequiredObservations = req.RequiredObservations
	if err := h.store.UpdateTicket(r.Context(), ticket); err != nil {
		h.logger.Error("ticket update failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to update ticket")
		return
	}
	ticket.Status = models.StatusOpen

	utils.WriteSuccessResponse(w, ticket)
}

// Get returns one ticket with the caller's derived status.
func (h *TicketsHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.RequireIdentity(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Not authenticated")
		return
	}
	id, err := ticketID(r)
	if err != nil {
		utils.WriteBadRequestResponse(w, "Invalid ticket id")
		return
	}

	snap, ticket, err := ticketFacts(r.Context(), h.store, id, identity)
	if err != nil {
		h.logger.Error("ticket facts failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to load ticket")
		return
	}
	if decision := policy.Decide(identity, policy.ActionViewTicket, snap); !decision.Allowed {
		respondDeny(w, decision)
		return
	}

	if err := decorateTicket(r.Context(), h.store, ticket, identity); err != nil {
		h.logger.Error("ticket status derivation failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to load ticket")
		return
	}
	utils.WriteSuccessResponse(w, ticket)
}

// Delete removes a ticket and its acceptances, observations, and messages.
func (h *TicketsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.RequireIdentity(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Not authenticated")
		return
	}
	id, err := ticketID(r)
	if err != nil {
		utils.WriteBadRequestResponse(w, "Invalid ticket id")
		return
	}

	snap, _, err := ticketFacts(r.Context(), h.store, id, identity)
	if err != nil {
		h.logger.Error("ticket facts failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to load ticket")
		return
	}
	if decision := policy.Decide(identity, policy.ActionDeleteTicket, snap); !decision.Allowed {
		respondDeny(w, decision)
		return
	}

	if err := h.store.DeleteTicket(r.Context(), id); err != nil {
		h.logger.Error("ticket delete failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to delete ticket")
		return
	}
	h.logger.Info("ticket deleted", zap.Int("ticket_id", id))
	utils.WriteSuccessResponse(w, map[string]int{"deleted": id})
}

// Accept records the caller's claim on a ticket. Accepting a ticket twice is
// a no-op, not an error.
func (h *TicketsHandler) Accept(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.RequireIdentity(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Not authenticated")
		return
	}
	id, err := ticketID(r)
	if err != nil {
		utils.WriteBadRequestResponse(w, "Invalid ticket id")
		return
	}

	snap, ticket, err := ticketFacts(r.Context(), h.store, id, identity)
	if err != nil {
		h.logger.Error("ticket facts failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to load ticket")
		return
	}
	if decision := policy.Decide(identity, policy.ActionAcceptTicket, snap); !decision.Allowed {
		respondDeny(w, decision)
		return
	}

	if err := h.store.AcceptTicket(r.Context(), id, identity.LoginName); err != nil && !errors.Is(err, store.ErrDuplicate) {
		h.logger.Error("accept failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to accept ticket")
		return
	}

	if err := decorateTicket(r.Context(), h.store, ticket, identity); err != nil {
		h.logger.Error("ticket status derivation failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to accept ticket")
		return
	}
	h.logger.Info("ticket accepted", zap.Int("ticket_id", id), zap.String("login_name", identity.LoginName))
	utils.WriteSuccessResponse(w, ticket)
}

// SubmitObservation appends a field observation to a ticket the caller has
// accepted.
func (h *TicketsHandler) SubmitObservation(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.RequireIdentity(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Not authenticated")
		return
	}
	id, err := ticketID(r)
	if err != nil {
		utils.WriteBadRequestResponse(w, "Invalid ticket id")
		return
	}

	var req models.ObservationRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.Outcome == "" {
		utils.WriteValidationErrorResponse(w, "outcome is required", "")
		return
	}
	if req.Quantity < 1 {
		utils.WriteValidationErrorResponse(w, "quantity must be at least 1", "")
		return
	}

	snap, ticket, err := ticketFacts(r.Context(), h.store, id, identity)
	if err != nil {
		h.logger.Error("ticket facts failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to load ticket")
		return
	}
	if decision := policy.Decide(identity, policy.ActionSubmitObservation, snap); !decision.Allowed {
		respondDeny(w, decision)
		return
	}

	obs := &models.Observation{
		TicketID:  id,
		LoginName: identity.LoginName,
		Outcome:   req.Outcome,
		Quantity:  req.Quantity,
	}
	if err := h.store.AddObservation(r.Context(), obs); err != nil {
		h.logger.Error("observation failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to record observation")
		return
	}

	if err := decorateTicket(r.Context(), h.store, ticket, identity); err != nil {
		h.logger.Error("ticket status derivation failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to record observation")
		return
	}
	h.logger.Info("observation recorded", zap.Int("ticket_id", id), zap.String("login_name", identity.LoginName))
	utils.WriteCreatedResponse(w, map[string]interface{}{
		"observation": obs,
		"ticket":      ticket,
	})
}

// ListObservations returns a ticket's full observation log.
func (h *TicketsHandler) ListObservations(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.RequireIdentity(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Not authenticated")
		return
	}
	id, err := ticketID(r)
	if err != nil {
		utils.WriteBadRequestResponse(w, "Invalid ticket id")
		return
	}

	snap, _, err := ticketFacts(r.Context(), h.store, id, identity)
	if err != nil {
		h.logger.Error("ticket facts failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to load ticket")
		return
	}
	if decision := policy.Decide(identity, policy.ActionListObservations, snap); !decision.Allowed {
		respondDeny(w, decision)
		return
	}

	observations, err := h.store.ListObservations(r.Context(), id)
	if err != nil {
		h.logger.Error("observation list failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to list observations")
		return
	}
	utils.WriteSuccessResponse(w, observations)
}
