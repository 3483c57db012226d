package handlers

import (
	"context"
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

// MessagesHandler serves the per-ticket discussion channel, including the
// long-poll read used by clients to wait for new messages.
type MessagesHandler struct {
	config *config.Config
	store  store.Store
	logger *zap.Logger
}

// NewMessagesHandler wires the message endpoints.
func NewMessagesHandler(cfg *config.Config, s store.Store, logger *zap.Logger) *MessagesHandler {
	return &MessagesHandler{config: cfg, store: s, logger: logger}
}

// Send posts a message to a ticket's channel.
func (h *MessagesHandler) Send(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.RequireIdentity(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Not authenticated")
		return
	}
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteBadRequestResponse(w, "Invalid ticket id")
		return
	}

	var req models.MessageRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.Content == "" {
		utils.WriteValidationErrorResponse(w, "content is required", "")
		return
	}

	snap, _, err := ticketFacts(r.Context(), h.store, id, identity)
	if err != nil {
		h.logger.Error("ticket facts failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to load ticket")
		return
	}
	if decision := policy.Decide(identity, policy.ActionSendMessage, snap); !decision.Allowed {
		respondDeny(w, decision)
		return
	}

	msg := &models.Message{
		TicketID: id,
		Sender:   identity.LoginName,
		Content:  req.Content,
	}
	if err := h.store.AddMessage(r.Context(), msg); err != nil {
		h.logger.Error("message send failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to send message")
		return
	}
	utils.WriteCreatedResponse(w, msg)
}

// List returns the messages on a ticket after the given sequence number.
func (h *MessagesHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.RequireIdentity(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Not authenticated")
		return
	}
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
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
	if decision := policy.Decide(identity, policy.ActionListMessages, snap); !decision.Allowed {
		respondDeny(w, decision)
		return
	}

	afterSeq := utils.GetQueryInt64(r, "after", 0)
	messages, err := h.store.ListMessages(r.Context(), id, afterSeq)
	if err != nil {
		h.logger.Error("message list failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to list messages")
		return
	}
	utils.WriteSuccessResponse(w, messages)
}

// Listen holds the request open until a message newer than "after" arrives
// or the configured wait elapses, then answers with whatever exists. An
// empty batch on timeout is a normal response, not an error.
func (h *MessagesHandler) Listen(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.RequireIdentity(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Not authenticated")
		return
	}
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
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
	if decision := policy.Decide(identity, policy.ActionListMessages, snap); !decision.Allowed {
		respondDeny(w, decision)
		return
	}

	afterSeq := utils.GetQueryInt64(r, "after", 0)
	ctx, cancel := context.WithTimeout(r.Context(), h.config.LongPollWait)
	defer cancel()

	messages, err := h.store.WaitForMessages(ctx, id, afterSeq)
	if errors.Is(err, store.ErrNotFound) {
		// The ticket was deleted while we were waiting.
		utils.WriteNotFoundResponse(w, "ticket not found")
		return
	}
	if err != nil {
		h.logger.Error("message wait failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to wait for messages")
		return
	}
	utils.WriteSuccessResponse(w, messages)
}
