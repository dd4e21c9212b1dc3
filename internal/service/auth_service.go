package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/microblog-api/internal/cache"
	"github.com/microblog-api/internal/config"
	"github.com/microblog-api/internal/models"
	"github.com/microblog-api/internal/repository"
)

const tokenIssuer = "microblog-api"

// JWTClaims binds a token to a user id. The jti makes two logins within
// the same second produce different tokens, so revoking one session never
// revokes another.
type JWTClaims struct {
	UserID string `json:"_id"`
	jwt.RegisteredClaims
}

// AuthService is the authorization gate: it signs and verifies bearer
// tokens, resolves them to users and performs ownership checks.
type AuthService struct {
	users     repository.UserRepository
	sessions  cache.SessionCache
	jwtConfig config.JWTConfig
}

// NewAuthService creates a new AuthService
func NewAuthService(users repository.UserRepository, sessions cache.SessionCache, jwtConfig config.JWTConfig) *AuthService {
	if sessions == nil {
		sessions = cache.NoopSessionCache{}
	}
	return &AuthService{
		users:     users,
		sessions:  sessions,
		jwtConfig: jwtConfig,
	}
}

// GenerateToken signs a new token for userID
func (s *AuthService) GenerateToken(userID string) (string, error) {
	now := time.Now()
	claims := &JWTClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(now),
			Issuer:   tokenIssuer,
		},
	}
	if s.jwtConfig.ExpireHours > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(time.Duration(s.jwtConfig.ExpireHours) * time.Hour))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtConfig.Secret))
}

// ValidateToken verifies the signature and returns the claims
func (s *AuthService) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.jwtConfig.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid && claims.UserID != "" {
		return claims, nil
	}
	return nil, ErrUnauthenticated
}

// Resolve maps a bearer token to the user currently holding it. A token
// that verifies but has been revoked fails with ErrUnauthenticated.
//
// On a cache hit the returned user carries only public fields; operations
// that mutate the user reload it from the store.
func (s *AuthService) Resolve(ctx context.Context, tokenString string) (*models.User, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	if view, ok := s.sessions.Get(ctx, tokenString); ok && view.ID == claims.UserID {
		return &models.User{
			ID:        view.ID,
			Username:  view.Username,
			Email:     view.Email,
			CreatedAt: view.CreatedAt,
			UpdatedAt: view.UpdatedAt,
		}, nil
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if !user.HasToken(tokenString) {
		return nil, ErrUnauthenticated
	}

	s.sessions.Set(ctx, tokenString, user.PublicView())

	// A logout that removed the token after the read above has already
	// evicted, so the entry just written would outlive the revocation.
	// Revocation always removes before it evicts; checking again after Set
	// closes that window.
	current, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil || !current.HasToken(tokenString) {
		s.sessions.Delete(ctx, tokenString)
		if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
			return nil, err
		}
		return nil, ErrUnauthenticated
	}
	return current, nil
}

// Authorize checks that actor is the owner recorded in authorID.
func (s *AuthService) Authorize(actor *models.User, authorID string) error {
	if actor == nil || actor.ID != authorID {
		return ErrForbidden
	}
	return nil
}

// Forget evicts cached sessions. Called whenever tokens are revoked or the
// profile they describe changes.
func (s *AuthService) Forget(ctx context.Context, tokens ...string) {
	s.sessions.Delete(ctx, tokens...)
}
