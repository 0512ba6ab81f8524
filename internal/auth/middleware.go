package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tunehaven/tunehaven/internal/httpx"
	"github.com/tunehaven/tunehaven/pkg/models"
	"github.com/tunehaven/tunehaven/pkg/storage"
)

const (
	CookieName = "auth_token"

	userKey    = "user"
	sessionKey = "session_id"
)

// Middleware rejects requests without a live session and stores the session
// user in the gin context.
func (h *Handler) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, _ := c.Cookie(CookieName)
		if raw == "" {
			if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
				raw = strings.TrimPrefix(header, "Bearer ")
			}
		}
		if raw == "" {
			httpx.Error(c, http.StatusUnauthorized, "authentication required")
			return
		}

		claims, err := h.signer.ValidateToken(raw)
		if err != nil {
			httpx.Error(c, http.StatusUnauthorized, "invalid session")
			return
		}

		ctx := c.Request.Context()
		userID, err := h.sessions.Lookup(ctx, claims.SessionID)
		if err != nil {
			if !errors.Is(err, ErrNoSession) {
				h.log.Warn("session lookup failed", zap.Error(err))
			}
			httpx.Error(c, http.StatusUnauthorized, "session expired")
			return
		}
		if userID != claims.UserID {
			httpx.Error(c, http.StatusUnauthorized, "invalid session")
			return
		}

		user, err := h.users.GetUser(ctx, userID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				httpx.Error(c, http.StatusUnauthorized, "invalid session")
				return
			}
			httpx.Internal(c, h.log, err, zap.Int64("user_id", userID))
			return
		}

		c.Set(userKey, user)
		c.Set(sessionKey, claims.SessionID)
		c.Next()
	}
}

// RequireAdmin must run after Middleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			httpx.Error(c, http.StatusUnauthorized, "authentication required")
			return
		}
		if !user.IsAdmin {
			httpx.Error(c, http.StatusForbidden, "admin access required")
			return
		}
		c.Next()
	}
}

// CurrentUser returns the session user, or nil outside authenticated routes.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

func UserID(c *gin.Context) int64 {
	if user := CurrentUser(c); user != nil {
		return user.ID
	}
	return 0
}

func IsAdmin(c *gin.Context) bool {
	user := CurrentUser(c)
	return user != nil && user.IsAdmin
}

// SessionID returns the id of the session that authenticated the request.
func SessionID(c *gin.Context) string {
	return c.GetString(sessionKey)
}
