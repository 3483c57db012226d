package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"crowdtrack-backend/pkg/config"
	"crowdtrack-backend/pkg/middleware"
	"crowdtrack-backend/pkg/models"
	"crowdtrack-backend/pkg/store"
	"crowdtrack-backend/pkg/utils"
)

// AuthHandler serves login, token refresh, and session introspection.
type AuthHandler struct {
	config *config.Config
	store  store.Store
	jwt    *utils.JWTService
	logger *zap.Logger
}

// NewAuthHandler wires the auth endpoints.
func NewAuthHandler(cfg *config.Config, s store.Store, jwt *utils.JWTService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{config: cfg, store: s, jwt: jwt, logger: logger}
}

// Login verifies credentials and issues a token pair. Unknown accounts and
// wrong passwords are indistinguishable to the caller.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.LoginName == "" || req.Password == "" {
		utils.WriteValidationErrorResponse(w, "login_name and password are required", "")
		return
	}

	account, err := h.store.GetAccount(r.Context(), req.LoginName)
	if errors.Is(err, store.ErrNotFound) {
		utils.WriteUnauthorizedResponse(w, "Invalid credentials")
		return
	}
	if err != nil {
		h.logger.Error("login lookup failed", zap.String("login_name", req.LoginName), zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to authenticate")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(account.Password), []byte(req.Password)) != nil {
		utils.WriteUnauthorizedResponse(w, "Invalid credentials")
		return
	}

	accessToken, refreshToken, expiresIn, err := h.jwt.GenerateTokenPair(account.LoginName, account.Role)
	if err != nil {
		h.logger.Error("token generation failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to generate tokens")
		return
	}

	h.logger.Info("login", zap.String("login_name", account.LoginName), zap.String("role", string(account.Role)))
	utils.WriteSuccessResponse(w, models.LoginResponse{
		Account:      *account,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
	})
}

// Refresh exchanges a refresh token for a new access token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshTokenRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.RefreshToken == "" {
		utils.WriteValidationErrorResponse(w, "refresh_token is required", "")
		return
	}

	accessToken, expiresIn, err := h.jwt.RefreshAccessToken(req.RefreshToken)
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Invalid refresh token")
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"access_token": accessToken,
		"expires_in":   expiresIn,
	})
}

// Session returns the account behind the presented access token.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.RequireIdentity(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Not authenticated")
		return
	}

	account, err := h.store.GetAccount(r.Context(), identity.LoginName)
	if errors.Is(err, store.ErrNotFound) {
		// Token outlived the account.
		utils.WriteUnauthorizedResponse(w, "Account no longer exists")
		return
	}
	if err != nil {
		h.logger.Error("session lookup failed", zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to load session")
		return
	}

	utils.WriteSuccessResponse(w, account)
}
