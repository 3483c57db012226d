package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"crowdtrack-backend/pkg/config"
	"crowdtrack-backend/pkg/middleware"
	"crowdtrack-backend/pkg/models"
	"crowdtrack-backend/pkg/policy"
	"crowdtrack-backend/pkg/store"
	"crowdtrack-backend/pkg/utils"
)

// ProjectsHandler serves project administration, membership management, and
// the contributor join flow.
type ProjectsHandler struct {
	config *config.Config
	store  store.Store
	logger *zap.Logger
}

// NewProjectsHandler wires the project endpoints.
func NewProjectsHandler(cfg *config.Config, s store.Store, logger *zap.Logger) *ProjectsHandler {
	return &ProjectsHandler{config: cfg, store: s, logger: logger}
}

// List returns the projects owned by the caller.
func (h *ProjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.RequireIdentity(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Not authenticated")
		return
	}

	projects, err := h.store.ListProjectsByOwner(r.Context(), identity.LoginName)
	if err != nil {
		h.logger.Error("project list failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to list projects")
		return
	}
	if projects == nil {
		projects = []*models.Project{}
	}
	utils.WriteSuccessResponse(w, projects)
}

// Upsert creates a project under the caller, or renames one the caller
// already owns.
func (h *ProjectsHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.RequireIdentity(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Not authenticated")
		return
	}

	var req models.ProjectUpsertRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.EntryKey == "" || req.Name == "" {
		utils.WriteValidationErrorResponse(w, "entry_key and name are required", "")
		return
	}

	existing, err := h.store.GetProject(r.Context(), req.EntryKey)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.logger.Error("project lookup failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to load project")
		return
	}

	if existing == nil {
		decision := policy.Decide(identity, policy.ActionCreateProject, policy.Snapshot{})
		if !decision.Allowed {
			respondDeny(w, decision)
			return
		}
		project := &models.Project{
			EntryKey: req.EntryKey,
			Name:     req.Name,
			Owner:    identity.LoginName,
		}
		if err := h.store.CreateProject(r.Context(), project); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				utils.WriteConflictResponse(w, "entry key already exists")
				return
			}
			h.logger.Error("project create failed", zap.Error(err))
			utils.WriteInternalServerErrorResponse(w, "Failed to create project")
			return
		}
		h.logger.Info("project created", zap.String("entry_key", project.EntryKey), zap.String("owner", identity.LoginName))
		utils.WriteCreatedResponse(w, project)
		return
	}

	decision := policy.Decide(identity, policy.ActionUpdateProject, policy.Snapshot{
		ProjectExists: true,
		ProjectOwner:  existing.Owner,
	})
	if !decision.Allowed {
		respondDeny(w, decision)
		return
	}
	existing.Name = req.Name
	if err := h.store.UpdateProject(r.Context(), existing); err != nil {
		h.logger.Error("project update failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to update project")
		return
	}
	utils.WriteSuccessResponse(w, existing)
}

// Get returns a project the caller owns.
func (h *ProjectsHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.RequireIdentity(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Not authenticated")
		return
	}
	entryKey := chi.URLParam(r, "key")

	snap, project, err := projectFacts(r.Context(), h.store, entryKey, identity)
	if err != nil {
		h.logger.Error("project facts failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to load project")
		return
	}
	if decision := policy.Decide(identity, policy.ActionViewProject, snap); !decision.Allowed {
		respondDeny(w, decision)
		return
	}
	utils.WriteSuccessResponse(w, project)
}

// Delete removes a project and everything under it.
func (h *ProjectsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.RequireIdentity(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Not authenticated")
		return
	}
	entryKey := chi.URLParam(r, "key")

	snap, _, err := projectFacts(r.Context(), h.store, entryKey, identity)
	if err != nil {
		h.logger.Error("project facts failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to load project")
		return
	}
	if decision := policy.Decide(identity, policy.ActionDeleteProject, snap); !decision.Allowed {
		respondDeny(w, decision)
		return
	}

	if err := h.store.DeleteProject(r.Context(), entryKey); err != nil {
		h.logger.Error("project delete failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to delete project")
		return
	}
	h.logger.Info("project deleted", zap.String("entry_key", entryKey))
	utils.WriteSuccessResponse(w, map[string]string{"deleted": entryKey})
}

// ListTickets returns the project's tickets with the caller's derived status
// on each.
func (h *ProjectsHandler) ListTickets(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.RequireIdentity(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Not authenticated")
		return
	}
	entryKey := chi.URLParam(r, "key")

	snap, _, err := projectFacts(r.Context(), h.store, entryKey, identity)
	if err != nil {
		h.logger.Error("project facts failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to load project")
		return
	}
	if decision := policy.Decide(identity, policy.ActionListProjectTickets, snap); !decision.Allowed {
		respondDeny(w, decision)
		return
	}

	tickets, err := h.store.ListTicketsByProject(r.Context(), entryKey)
	if err != nil {
		h.logger.Error("ticket list failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to list tickets")
		return
	}
	if tickets == nil {
		tickets = []*models.Ticket{}
	}
	for _, ticket := range tickets {
		if err := decorateTicket(r.Context(), h.store, ticket, identity); err != nil {
			h.logger.Error("ticket status derivation failed", zap.Int("ticket_id", ticket.ID), zap.Error(err))
			utils.WriteInternalServerErrorResponse(w, "Failed to list tickets")
			return
		}
	}
	utils.WriteSuccessResponse(w, tickets)
}

// ListMembers returns the contributors enrolled in a project the caller owns.
func (h *ProjectsHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.RequireIdentity(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Not authenticated")
		return
	}
	entryKey := chi.URLParam(r, "key")

	snap, _, err := projectFacts(r.Context(), h.store, entryKey, identity)
	if err != nil {
		h.logger.Error("project facts failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to load project")
		return
	}
	if decision := policy.Decide(identity, policy.ActionListProjectMembers, snap); !decision.Allowed {
		respondDeny(w, decision)
		return
	}

	members, err := h.store.ListMembers(r.Context(), entryKey)
	if err != nil {
		h.logger.Error("member list failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to list members")
		return
	}
	if members == nil {
		members = []*models.Account{}
	}
	utils.WriteSuccessResponse(w, members)
}

// RemoveMember expels a contributor from a project the caller owns.
func (h *ProjectsHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.RequireIdentity(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Not authenticated")
		return
	}
	entryKey := chi.URLParam(r, "key")
	targetLogin := chi.URLParam(r, "login")

	snap, _, err := projectFacts(r.Context(), h.store, entryKey, identity)
	if err != nil {
		h.logger.Error("project facts failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to load project")
		return
	}

	target, err := h.store.GetAccount(r.Context(), targetLogin)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.logger.Error("account lookup failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to load account")
		return
	}
	if target != nil {
		snap.TargetExists = true
		snap.TargetLogin = target.LoginName
		isMember, err := h.store.IsMember(r.Context(), entryKey, targetLogin)
		if err != nil {
			h.logger.Error("membership lookup failed", zap.Error(err))
			utils.WriteInternalServerErrorResponse(w, "Failed to load membership")
			return
		}
		snap.TargetIsMember = isMember
	}

	if decision := policy.Decide(identity, policy.ActionRemoveProjectMember, snap); !decision.Allowed {
		respondDeny(w, decision)
		return
	}

	if err := h.store.RemoveMember(r.Context(), entryKey, targetLogin); err != nil {
		h.logger.Error("member removal failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to remove member")
		return
	}
	h.logger.Info("member removed", zap.String("entry_key", entryKey), zap.String("login_name", targetLogin))
	utils.WriteSuccessResponse(w, map[string]string{"removed": targetLogin})
}

// Join enrolls the calling contributor in the project named by the entry key.
func (h *ProjectsHandler) Join(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.RequireIdentity(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Not authenticated")
		return
	}

	var req models.JoinRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.EntryKey == "" {
		utils.WriteValidationErrorResponse(w, "entry_key is required", "")
		return
	}

	snap, project, err := projectFacts(r.Context(), h.store, req.EntryKey, identity)
	if err != nil {
		h.logger.Error("project facts failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to load project")
		return
	}
	if decision := policy.Decide(identity, policy.ActionJoinProject, snap); !decision.Allowed {
		respondDeny(w, decision)
		return
	}

	if err := h.store.AddMember(r.Context(), req.EntryKey, identity.LoginName); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			utils.WriteConflictResponse(w, "already a member of the project")
			return
		}
		h.logger.Error("join failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to join project")
		return
	}
	h.logger.Info("project joined", zap.String("entry_key", req.EntryKey), zap.String("login_name", identity.LoginName))
	utils.WriteCreatedResponse(w, project)
}

// JoinPreview shows a contributor the project behind an entry key before
// committing to the join.
func (h *ProjectsHandler) JoinPreview(w http.ResponseWriter, r *http.Request) {
	entryKey := chi.URLParam(r, "key")
	project, err := h.store.GetProject(r.Context(), entryKey)
	if errors.Is(err, store.ErrNotFound) {
		utils.WriteNotFoundResponse(w, "project not found")
		return
	}
	if err != nil {
		h.logger.Error("project lookup failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to load project")
		return
	}
	utils.WriteSuccessResponse(w, project)
}

// Leave drops the calling contributor's membership.
func (h *ProjectsHandler) Leave(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.RequireIdentity(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Not authenticated")
		return
	}
	entryKey := chi.URLParam(r, "key")

	snap, _, err := projectFacts(r.Context(), h.store, entryKey, identity)
	if err != nil {
		h.logger.Error("project facts failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to load project")
		return
	}
	if decision := policy.Decide(identity, policy.ActionLeaveProject, snap); !decision.Allowed {
		respondDeny(w, decision)
		return
	}

	if err := h.store.RemoveMember(r.Context(), entryKey, identity.LoginName); err != nil {
		h.logger.Error("leave failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to leave project")
		return
	}
	h.logger.Info("project left", zap.String("entry_key", entryKey), zap.String("login_name", identity.LoginName))
	utils.WriteSuccessResponse(w, map[string]string{"left": entryKey})
}
