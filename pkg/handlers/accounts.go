package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"crowdtrack-backend/pkg/config"
	"crowdtrack-backend/pkg/middleware"
	"crowdtrack-backend/pkg/models"
	"crowdtrack-backend/pkg/policy"
	"crowdtrack-backend/pkg/store"
	"crowdtrack-backend/pkg/utils"
)

// AccountsHandler serves owner and contributor account administration. All
// routes here sit behind the owner role gate.
type AccountsHandler struct {
	config *config.Config
	store  store.Store
	logger *zap.Logger
}

// NewAccountsHandler wires the account administration endpoints.
func NewAccountsHandler(cfg *config.Config, s store.Store, logger *zap.Logger) *AccountsHandler {
	return &AccountsHandler{config: cfg, store: s, logger: logger}
}

// authorize resolves the caller and consults the policy for account
// administration. It writes the response on failure.
func (h *AccountsHandler) authorize(w http.ResponseWriter, r *http.Request) (policy.Identity, bool) {
	identity, err := middleware.RequireIdentity(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Not authenticated")
		return policy.Identity{}, false
	}
	if decision := policy.Decide(identity, policy.ActionManageAccounts, policy.Snapshot{}); !decision.Allowed {
		respondDeny(w, decision)
		return policy.Identity{}, false
	}
	return identity, true
}

// UpsertOwner creates or updates an owner account. Creating requires a
// password; on update an owner may only change their own password.
func (h *AccountsHandler) UpsertOwner(w http.ResponseWriter, r *http.Request) {
	h.upsert(w, r, models.RoleOwner)
}

// UpsertContributor creates or updates a contributor account. Owners set
// contributor passwords freely.
func (h *AccountsHandler) UpsertContributor(w http.ResponseWriter, r *http.Request) {
	h.upsert(w, r, models.RoleContributor)
}

func (h *AccountsHandler) upsert(w http.ResponseWriter, r *http.Request, role models.AccountRole) {
	identity, ok := h.authorize(w, r)
	if !ok {
		return
	}

	var req models.AccountUpsertRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.LoginName == "" {
		utils.WriteValidationErrorResponse(w, "login_name is required", "")
		return
	}
	if role == models.RoleOwner && req.Phone != "" {
		utils.WriteValidationErrorResponse(w, "owners do not carry a phone number", "")
		return
	}

	existing, err := h.store.GetAccount(r.Context(), req.LoginName)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.logger.Error("account lookup failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to load account")
		return
	}

	if existing == nil {
		h.create(w, r, role, req)
		return
	}
	// Login names are shared across roles; an existing account of the
	// other kind blocks this name entirely.
	if existing.Role != role {
		utils.WriteConflictResponse(w, "login name is taken by a different account type")
		return
	}
	h.update(w, r, identity, existing, req)
}

func (h *AccountsHandler) create(w http.ResponseWriter, r *http.Request, role models.AccountRole, req models.AccountUpsertRequest) {
	if req.Password == nil || *req.Password == "" {
		utils.WriteValidationErrorResponse(w, "password is required for new accounts", "")
		return
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("password hash failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to create account")
		return
	}

	account := &models.Account{
		LoginName: req.LoginName,
		Password:  string(digest),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      role,
		Phone:     req.Phone,
	}
	if err := h.store.CreateAccount(r.Context(), account); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			utils.WriteConflictResponse(w, "login name already exists")
			return
		}
		h.logger.Error("account create failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to create account")
		return
	}

	h.logger.Info("account created", zap.String("login_name", account.LoginName), zap.String("role", string(role)))
	utils.WriteCreatedResponse(w, account)
}

func (h *AccountsHandler) update(w http.ResponseWriter, r *http.Request, identity policy.Identity, existing *models.Account, req models.AccountUpsertRequest) {
	if req.Password != nil && existing.Role == models.RoleOwner {
		decision := policy.Decide(identity, policy.ActionSetOwnerPassword, policy.Snapshot{TargetLogin: existing.LoginName})
		if !decision.Allowed {
			respondDeny(w, decision)
			return
		}
	}

	existing.FirstName = req.FirstName
	existing.LastName = req.LastName
	if existing.Role == models.RoleContributor {
		existing.Phone = req.Phone
	}
	if err := h.store.UpdateAccount(r.Context(), existing); err != nil {
		h.logger.Error("account update failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to update account")
		return
	}

	if req.Password != nil && *req.Password != "" {
		digest, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			h.logger.Error("password hash failed", zap.Error(err))
			utils.WriteInternalServerErrorResponse(w, "Failed to update password")
			return
		}
		if err := h.store.SetPassword(r.Context(), existing.LoginName, string(digest)); err != nil {
			h.logger.Error("password update failed", zap.Error(err))
			utils.WriteInternalServerErrorResponse(w, "Failed to update password")
			return
		}
	}

	utils.WriteSuccessResponse(w, existing)
}

// ListOwners returns every owner account.
func (h *AccountsHandler) ListOwners(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, models.RoleOwner)
}

// ListContributors returns every contributor account.
func (h *AccountsHandler) ListContributors(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, models.RoleContributor)
}

func (h *AccountsHandler) list(w http.ResponseWriter, r *http.Request, role models.AccountRole) {
	if _, ok := h.authorize(w, r); !ok {
		return
	}
	accounts, err := h.store.ListAccounts(r.Context(), role)
	if err != nil {
		h.logger.Error("account list failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to list accounts")
		return
	}
	if accounts == nil {
		accounts = []*models.Account{}
	}
	utils.WriteSuccessResponse(w, accounts)
}

// GetOwner returns one owner account by login name.
func (h *AccountsHandler) GetOwner(w http.ResponseWriter, r *http.Request) {
	h.get(w, r, models.RoleOwner)
}

// GetContributor returns one contributor account by login name.
func (h *AccountsHandler) GetContributor(w http.ResponseWriter, r *http.Request) {
	h.get(w, r, models.RoleContributor)
}

func (h *AccountsHandler) get(w http.ResponseWriter, r *http.Request, role models.AccountRole) {
	if _, ok := h.authorize(w, r); !ok {
		return
	}
	loginName := chi.URLParam(r, "login")
	account, err := h.store.GetAccount(r.Context(), loginName)
	if errors.Is(err, store.ErrNotFound) {
		utils.WriteNotFoundResponse(w, "account not found")
		return
	}
	if err != nil {
		h.logger.Error("account get failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to load account")
		return
	}
	if account.Role != role {
		utils.WriteNotFoundResponse(w, "account not found")
		return
	}
	utils.WriteSuccessResponse(w, account)
}

// DeleteOwner removes an owner account.
func (h *AccountsHandler) DeleteOwner(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, models.RoleOwner)
}

// DeleteContributor removes a contributor account together with their
// memberships and acceptances.
func (h *AccountsHandler) DeleteContributor(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, models.RoleContributor)
}

func (h *AccountsHandler) delete(w http.ResponseWriter, r *http.Request, role models.AccountRole) {
	if _, ok := h.authorize(w, r); !ok {
		return
	}
	loginName := chi.URLParam(r, "login")
	account, err := h.store.GetAccount(r.Context(), loginName)
	if errors.Is(err, store.ErrNotFound) {
		utils.WriteNotFoundResponse(w, "account not found")
		return
	}
	if err != nil {
		h.logger.Error("account get failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to load account")
		return
	}
	if account.Role != role {
		utils.WriteNotFoundResponse(w, "account not found")
		return
	}

	if err := h.store.DeleteAccount(r.Context(), loginName); err != nil {
		h.logger.Error("account delete failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to delete account")
		return
	}

	h.logger.Info("account deleted", zap.String("login_name", loginName), zap.String("role", string(role)))
	utils.WriteSuccessResponse(w, map[string]string{"deleted": loginName})
}
