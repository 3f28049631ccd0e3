package services

import (
	"context"
	"errors"
	"time"

	"kalonconnect/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

type contextKey string

const (
	userIDContextKey contextKey = "user_id"
	roleContextKey   contextKey = "user_role"
)

type AuthService interface {
	GenerateToken(userID domain.UserID, role domain.UserRole) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
	RequireRole(claims *Claims, required domain.UserRole) error
}

type Claims struct {
	UserID domain.UserID   `json:"user_id"`
	Role   domain.UserRole `json:"role"`
	jwt.RegisteredClaims
}

type authService struct {
	jwtSecret      []byte
	accessTokenTTL time.Duration
}

func NewAuthService(jwtSecret string, accessTokenTTL time.Duration) AuthService {
	return &authService{
		jwtSecret:      []byte(jwtSecret),
		accessTokenTTL: accessTokenTTL,
	}
}

func (s *authService) GenerateToken(userID domain.UserID, role domain.UserRole) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(userID),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *authService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

// RequireRole checks the caller's role. Admins pass every check.
func (s *authService) RequireRole(claims *Claims, required domain.UserRole) error {
	if claims == nil {
		return ErrUnauthorized
	}
	if claims.Role == domain.RoleAdmin || claims.Role == required {
		return nil
	}
	return ErrForbidden
}

// WithUser stores the authenticated caller on ctx.
func WithUser(ctx context.Context, claims *Claims) context.Context {
	ctx = context.WithValue(ctx, userIDContextKey, claims.UserID)
	return context.WithValue(ctx, roleContextKey, claims.Role)
}

func UserFromContext(ctx context.Context) (domain.UserID, domain.UserRole, error) {
	userID, ok := ctx.Value(userIDContextKey).(domain.UserID)
	if !ok {
		return "", "", ErrUnauthorized
	}
	role, _ := ctx.Value(roleContextKey).(domain.UserRole)
	return userID, role, nil
}
