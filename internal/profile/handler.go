package profile

import (
	"context"
	"errors"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tunehaven/tunehaven/internal/auth"
	"github.com/tunehaven/tunehaven/internal/httpx"
	"github.com/tunehaven/tunehaven/internal/upload"
	"github.com/tunehaven/tunehaven/pkg/models"
	"github.com/tunehaven/tunehaven/pkg/password"
	"github.com/tunehaven/tunehaven/pkg/storage"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type Store interface {
	storage.UserStore
	storage.HistoryStore
}

type Options struct {
	// ResetPerMinute caps password reset requests per client IP.
	ResetPerMinute int
	// ExposeResetToken returns the reset token in the response body. There
	// is no mail transport, so this is the only way to deliver it.
	ExposeResetToken bool
	// Sessions, when set, is used to sign out other devices after a
	// password change or reset.
	Sessions SessionRevoker
}

type SessionRevoker interface {
	DeleteUser(ctx context.Context, userID int64, except string) error
}

type Handler struct {
	store       Store
	files       *upload.Store
	log         *zap.Logger
	resetLimit  *keyedLimiter
	exposeToken bool
	sessions    SessionRevoker
}

func NewHandler(store Store, files *upload.Store, log *zap.Logger, opts Options) *Handler {
	perMinute := opts.ResetPerMinute
	if perMinute <= 0 {
		perMinute = 5
	}
	return &Handler{
		store:       store,
		files:       files,
		log:         log,
		resetLimit:  newKeyedLimiter(perMinute),
		exposeToken: opts.ExposeResetToken,
		sessions:    opts.Sessions,
	}
}

// RegisterRoutes mounts the password reset endpoints on public and the rest
// on protected.
func (h *Handler) RegisterRoutes(public, protected *gin.RouterGroup) {
	reset := public.Group("/password-reset")
	{
		reset.POST("/request", h.requestReset)
		reset.POST("/reset", h.resetPassword)
	}

	protected.GET("/profile", h.getProfile)
	protected.PATCH("/profile", h.updateProfile)
	protected.POST("/profile/image", h.files.Limit(upload.Image), h.uploadImage)
	protected.GET("/user/stats", h.stats)
	protected.GET("/user/history", h.history)
}

func (h *Handler) getProfile(c *gin.Context) {
	c.JSON(http.StatusOK, auth.CurrentUser(c))
}

type updateRequest struct {
	Email           *string   `json:"email" binding:"omitempty,email"`
	DisplayName     *string   `json:"displayName" binding:"omitempty,min=1,max=64"`
	FirstName       *string   `json:"firstName" binding:"omitempty,max=64"`
	LastName        *string   `json:"lastName" binding:"omitempty,max=64"`
	Bio             *string   `json:"bio" binding:"omitempty,max=1000"`
	FavoriteArtists *[]string `json:"favoriteArtists"`
	FavoriteSongs   *[]int64  `json:"favoriteSongs"`
	CurrentPassword string    `json:"currentPassword"`
	NewPassword     string    `json:"newPassword" binding:"omitempty,strongpassword"`
}

// updateProfile changes the password only when the current one checks out.
func (h *Handler) updateProfile(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}

	ctx := c.Request.Context()
	user := auth.CurrentUser(c)

	if req.NewPassword != "" {
		if req.CurrentPassword == "" {
			httpx.InvalidField(c, "currentPassword", "is required to change the password")
			return
		}
		ok, err := password.Verify(req.CurrentPassword, user.Password)
		if err != nil {
			httpx.Internal(c, h.log, err, zap.Int64("user_id", user.ID))
			return
		}
		if !ok {
			httpx.InvalidField(c, "currentPassword", "is incorrect")
			return
		}
	}

	upd := models.UserUpdate{
		Email:           req.Email,
		DisplayName:     req.DisplayName,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Bio:             req.Bio,
		FavoriteArtists: req.FavoriteArtists,
		FavoriteSongs:   req.FavoriteSongs,
	}
	if req.NewPassword != "" {
		upd.Password = &req.NewPassword
	}

	updated, err := h.store.UpdateUser(ctx, user.ID, upd)
	if err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			httpx.InvalidField(c, "email", "is already in use")
			return
		}
		httpx.StoreError(c, h.log, err, "user")
		return
	}

	if req.NewPassword != "" {
		h.log.Info("password changed", zap.Int64("user_id", user.ID))
		h.revokeSessions(ctx, user.ID, auth.SessionID(c))
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) uploadImage(c *gin.Context) {
	fh, err := c.FormFile("image")
	if err != nil {
		httpx.InvalidField(c, "image", "is required")
		return
	}
	saved, err := h.files.Save(upload.Image, fh)
	if err != nil {
		if errors.Is(err, upload.ErrUnsupportedType) || errors.Is(err, upload.ErrTooLarge) {
			httpx.InvalidField(c, "image", err.Error())
			return
		}
		httpx.Internal(c, h.log, err)
		return
	}

	user := auth.CurrentUser(c)
	updated, err := h.store.UpdateUser(c.Request.Context(), user.ID, models.UserUpdate{ProfileImage: &saved.URL})
	if err != nil {
		h.files.Remove(saved.Path)
		httpx.StoreError(c, h.log, err, "user")
		return
	}

	if old := user.ProfileImage; old != nil && strings.HasPrefix(*old, upload.URLPrefix+"/") {
		oldPath := filepath.Join(h.files.Dir(), path.Base(*old))
		if err := h.files.Remove(oldPath); err != nil {
			h.log.Warn("failed to remove old profile image", zap.String("path", oldPath), zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) stats(c *gin.Context) {
	stats, err := h.store.GetUserListeningStats(c.Request.Context(), auth.UserID(c))
	if err != nil {
		httpx.Internal(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) history(c *gin.Context) {
	limit := min(httpx.QueryInt(c, "limit", defaultHistoryLimit), maxHistoryLimit)
	entries, err := h.store.ListHistory(c.Request.Context(), auth.UserID(c), limit)
	if err != nil {
		httpx.Internal(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

type resetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

const resetRequestedMessage = "if the email is registered, a reset link has been issued"

// requestReset answers the same way whether or not the email is known.
func (h *Handler) requestReset(c *gin.Context) {
	if !h.resetLimit.Allow(c.ClientIP()) {
		httpx.Error(c, http.StatusTooManyRequests, "too many reset requests, try again later")
		return
	}
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}

	ctx := c.Request.Context()
	user, err := h.store.GetUserByEmail(ctx, req.Email)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusOK, gin.H{"message": resetRequestedMessage})
		return
	}
	if err != nil {
		httpx.Internal(c, h.log, err)
		return
	}

	token, err := h.store.CreatePasswordResetToken(ctx, user.ID)
	if err != nil {
		httpx.Internal(c, h.log, err, zap.Int64("user_id", user.ID))
		return
	}
	h.log.Info("password reset requested", zap.Int64("user_id", user.ID))

	body := gin.H{"message": resetRequestedMessage}
	if h.exposeToken {
		body["token"] = token
	}
	c.JSON(http.StatusOK, body)
}

type resetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,strongpassword"`
}

func (h *Handler) resetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}

	ctx := c.Request.Context()
	user, err := h.store.ValidatePasswordResetToken(ctx, req.Token)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidToken) {
			httpx.Error(c, http.StatusBadRequest, "invalid or expired reset token")
			return
		}
		httpx.Internal(c, h.log, err)
		return
	}
	if err := h.store.UpdatePassword(ctx, user.ID, req.Password); err != nil {
		httpx.Internal(c, h.log, err, zap.Int64("user_id", user.ID))
		return
	}
	h.log.Info("password reset", zap.Int64("user_id", user.ID))
	h.revokeSessions(ctx, user.ID, "")
	c.JSON(http.StatusOK, gin.H{"message": "password has been reset"})
}

// revokeSessions signs the user out everywhere but keep. The password is
// already stored by then, so a failure is only logged.
func (h *Handler) revokeSessions(ctx context.Context, userID int64, keep string) {
	if h.sessions == nil {
		return
	}
	if err := h.sessions.DeleteUser(ctx, userID, keep); err != nil {
		h.log.Error("failed to revoke sessions", zap.Int64("user_id", userID), zap.Error(err))
	}
}
