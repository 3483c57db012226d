package utils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"crowdtrack-backend/pkg/models"
)

// JWTService signs and validates the HMAC token pair used for stateless
// authentication. The role claim travels in the token so the transport layer
// never needs a store lookup to resolve the caller.
type JWTService struct {
	secretKey     []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
}

// NewJWTService builds a service around a shared HMAC secret.
func NewJWTService(secretKey string, accessExpiry, refreshExpiry time.Duration) *JWTService {
	return &JWTService{
		secretKey:     []byte(secretKey),
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
	}
}

// GenerateTokenPair issues an access and a refresh token for the account.
func (j *JWTService) GenerateTokenPair(loginName string, role models.AccountRole) (accessToken, refreshToken string, expiresIn int64, err error) {
	now := time.Now()

	accessExpiry := now.Add(j.accessExpiry)
	accessClaims := &models.TokenClaims{
		LoginName: loginName,
		Role:      role,
		Type:      "access",
		Exp:       accessExpiry.Unix(),
		Iat:       now.Unix(),
	}
	accessToken, err = jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).SignedString(j.secretKey)
	if err != nil {
		return "", "", 0, fmt.Errorf("generate access token: %w", err)
	}

	refreshClaims := &models.TokenClaims{
		LoginName: loginName,
		Role:      role,
		Type:      "refresh",
		Exp:       now.Add(j.refreshExpiry).Unix(),
		Iat:       now.Unix(),
	}
	refreshToken, err = jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString(j.secretKey)
	if err != nil {
		return "", "", 0, fmt.Errorf("generate refresh token: %w", err)
	}

	return accessToken, refreshToken, accessExpiry.Unix(), nil
}

// GenerateAccessToken issues a fresh access token only.
func (j *JWTService) GenerateAccessToken(loginName string, role models.AccountRole) (string, int64, error) {
	now := time.Now()
	expiry := now.Add(j.accessExpiry)

	claims := &models.TokenClaims{
		LoginName: loginName,
		Role:      role,
		Type:      "access",
		Exp:       expiry.Unix(),
		Iat:       now.Unix(),
	}
	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secretKey)
	if err != nil {
		return "", 0, fmt.Errorf("generate access token: %w", err)
	}
	return tokenString, expiry.Unix(), nil
}

// ValidateToken parses and verifies a token of either type.
func (j *JWTService) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*models.TokenClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	if time.Now().Unix() > claims.Exp {
		return nil, fmt.Errorf("token expired")
	}
	return claims, nil
}

// ValidateRefreshToken verifies a token and requires the refresh type.
func (j *JWTService) ValidateRefreshToken(tokenString string) (*models.TokenClaims, error) {
	claims, err := j.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != "refresh" {
		return nil, fmt.Errorf("invalid token type: expected refresh, got %s", claims.Type)
	}
	return claims, nil
}

// RefreshAccessToken exchanges a valid refresh token for a new access token.
func (j *JWTService) RefreshAccessToken(refreshToken string) (string, int64, error) {
	claims, err := j.ValidateRefreshToken(refreshToken)
	if err != nil {
		return "", 0, fmt.Errorf("invalid refresh token: %w", err)
	}
	return j.GenerateAccessToken(claims.LoginName, claims.Role)
}
