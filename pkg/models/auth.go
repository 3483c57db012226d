package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest carries the credentials presented to the login endpoint.
type LoginRequest struct {
	LoginName string `json:"login_name"`
	Password  string `json:"password"`
}

// LoginResponse returns the authenticated account together with a token pair.
type LoginResponse struct {
	Account      Account `json:"account"`
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	ExpiresIn    int64   `json:"expires_in"`
}

// RefreshTokenRequest is the payload for exchanging a refresh token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenClaims are the JWT claims carried by access and refresh tokens. The
// role claim lets the transport layer resolve the caller's identity without
// a store lookup.
type TokenClaims struct {
	LoginName string      `json:"login_name"`
	Role      AccountRole `json:"role"`
	Type      string      `json:"type"` // "access" or "refresh"
	Exp       int64       `json:"exp"`
	Iat       int64       `json:"iat"`
}

// GetExpirationTime implements jwt.Claims.
func (c *TokenClaims) GetExpirationTime() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.Exp, 0)), nil
}

// GetIssuedAt implements jwt.Claims.
func (c *TokenClaims) GetIssuedAt() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.Iat, 0)), nil
}

// GetNotBefore implements jwt.Claims.
func (c *TokenClaims) GetNotBefore() (*jwt.NumericDate, error) {
	return nil, nil
}

// GetIssuer implements jwt.Claims.
func (c *TokenClaims) GetIssuer() (string, error) {
	return "", nil
}

// GetSubject implements jwt.Claims.
func (c *TokenClaims) GetSubject() (string, error) {
	return c.LoginName, nil
}

// GetAudience implements jwt.Claims.
func (c *TokenClaims) GetAudience() (jwt.ClaimStrings, error) {
	return nil, nil
}
