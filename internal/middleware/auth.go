package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"englishmastery/internal/config"
	"englishmastery/internal/models"
	"englishmastery/internal/security"
	"englishmastery/internal/service"
)

const currentUserKey = "current_user"

type IdentityStore interface {
	EnsureIdentity(ctx context.Context, id service.Identity) (models.User, error)
	Touch(ctx context.Context, userID string)
}

// abort writes the failure envelope shared with the handlers.
func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}

// Auth resolves the bearer identity to a stored user. Browsers cannot set
// headers on websocket upgrades, so the token may also come as access_token.
func Auth(cfg config.SecurityConfig, users IdentityStore, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := security.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			tokenStr = c.Query("access_token")
		}
		if tokenStr == "" {
			abort(c, http.StatusUnauthorized, "missing token")
			return
		}

		claims, err := security.ParseIdentityToken(tokenStr, cfg.JWTSecret, cfg.JWTIssuer)
		if err != nil {
			abort(c, http.StatusUnauthorized, "invalid token")
			return
		}

		user, err := users.EnsureIdentity(c.Request.Context(), service.Identity{
			UserID: claims.Subject,
			Email:  claims.Email,
			Role:   models.UserRole(claims.Role),
		})
		if err != nil {
			if errors.Is(err, service.ErrValidation) {
				abort(c, http.StatusUnauthorized, "invalid token")
				return
			}
			log.Error().Err(err).Str("user_id", claims.Subject).Msg("resolve identity failed")
			abort(c, http.StatusInternalServerError, "internal server error")
			return
		}

		if !user.IsActive {
			abort(c, http.StatusForbidden, "user inactive")
			return
		}

		users.Touch(c.Request.Context(), user.ID)

		c.Set(currentUserKey, user)
		c.Next()
	}
}

func CurrentUser(c *gin.Context) (models.User, bool) {
	v, exists := c.Get(currentUserKey)
	if !exists {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}

// CronAuth guards scheduler callbacks with the shared cron secret.
func CronAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !security.CronAuthorized(c.GetHeader("Authorization"), secret) {
			abort(c, http.StatusUnauthorized, "unauthorized")
			return
		}
		c.Next()
	}
}
