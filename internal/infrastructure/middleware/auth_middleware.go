package middleware

import (
	"errors"
	"strings"

	"kalonconnect/internal/core/domain"
	"kalonconnect/internal/core/services"
	apperrors "kalonconnect/pkg/errors"
	"kalonconnect/pkg/logger"

	"github.com/gin-gonic/gin"
)

const claimsKey = "claims"

func AuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			AbortWithError(c, apperrors.NewUnauthorizedError("authorization header required"))
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			AbortWithError(c, apperrors.NewUnauthorizedError("invalid authorization header format"))
			return
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			AbortWithError(c, apperrors.NewUnauthorizedError(err.Error()))
			return
		}

		// Store user info in context
		c.Set(claimsKey, claims)
		c.Set("user_id", claims.UserID)
		ctx := services.WithUser(c.Request.Context(), claims)
		ctx = logger.WithValue(ctx, logger.UserIDKey, string(claims.UserID))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireRole must run after AuthMiddleware.
func RequireRole(authService services.AuthService, role domain.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, _ := ClaimsFrom(c)
		if err := authService.RequireRole(claims, role); err != nil {
			if errors.Is(err, services.ErrForbidden) {
				AbortWithError(c, apperrors.NewForbiddenError("insufficient permissions"))
				return
			}
			AbortWithError(c, apperrors.NewUnauthorizedError("authentication required"))
			return
		}
		c.Next()
	}
}

func ClaimsFrom(c *gin.Context) (*services.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*services.Claims)
	return claims, ok
}
