package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tunehaven/tunehaven/internal/httpx"
	"github.com/tunehaven/tunehaven/pkg/jwt"
	"github.com/tunehaven/tunehaven/pkg/models"
	"github.com/tunehaven/tunehaven/pkg/password"
	"github.com/tunehaven/tunehaven/pkg/storage"
)

type Handler struct {
	users        storage.UserStore
	sessions     SessionStore
	signer       *jwt.Signer
	log          *zap.Logger
	secureCookie bool
}

func NewHandler(users storage.UserStore, sessions SessionStore, signer *jwt.Signer, log *zap.Logger, secureCookie bool) *Handler {
	return &Handler{
		users:        users,
		sessions:     sessions,
		signer:       signer,
		log:          log,
		secureCookie: secureCookie,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/register", h.register)
	r.POST("/login", h.login)

	protected := r.Group("", h.Middleware())
	protected.POST("/logout", h.logout)
	protected.GET("/user", h.user)
}

type registerRequest struct {
	Username    string `json:"username" binding:"required,min=3,max=32"`
	Password    string `json:"password" binding:"required,strongpassword"`
	Email       string `json:"email" binding:"omitempty,email"`
	DisplayName string `json:"displayName" binding:"max=64"`
	FirstName   string `json:"firstName" binding:"max=64"`
	LastName    string `json:"lastName" binding:"max=64"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}

	user, err := h.users.CreateUser(c.Request.Context(), models.NewUser{
		Username:    strings.TrimSpace(req.Username),
		Password:    req.Password,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
	})
	if err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			httpx.InvalidField(c, "email", "is already registered")
			return
		}
		if errors.Is(err, storage.ErrDuplicate) {
			httpx.InvalidField(c, "username", "is already taken")
			return
		}
		httpx.Internal(c, h.log, err)
		return
	}

	if !h.startSession(c, user) {
		return
	}
	h.log.Info("user registered", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
	c.JSON(http.StatusCreated, user)
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}

	user, err := h.users.GetUserByUsername(c.Request.Context(), req.Username)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		httpx.Internal(c, h.log, err)
		return
	}
	if user == nil {
		httpx.Error(c, http.StatusUnauthorized, "invalid username or password")
		return
	}

	ok, err := password.Verify(req.Password, user.Password)
	if err != nil {
		httpx.Internal(c, h.log, err, zap.Int64("user_id", user.ID))
		return
	}
	if !ok {
		httpx.Error(c, http.StatusUnauthorized, "invalid username or password")
		return
	}

	if !h.startSession(c, user) {
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) logout(c *gin.Context) {
	if sid := c.GetString(sessionKey); sid != "" {
		if err := h.sessions.Delete(c.Request.Context(), sid); err != nil {
			h.log.Warn("failed to delete session", zap.Error(err))
		}
	}
	h.setCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *Handler) user(c *gin.Context) {
	c.JSON(http.StatusOK, CurrentUser(c))
}

// startSession registers a new session and sets the cookie. It writes the
// error response itself and reports false on failure.
func (h *Handler) startSession(c *gin.Context, user *models.User) bool {
	sessionID := uuid.New().String()
	if err := h.sessions.Create(c.Request.Context(), sessionID, user.ID, h.signer.TTL()); err != nil {
		httpx.Internal(c, h.log, err, zap.Int64("user_id", user.ID))
		return false
	}

	token, err := h.signer.GenerateToken(user.ID, sessionID)
	if err != nil {
		httpx.Internal(c, h.log, err, zap.Int64("user_id", user.ID))
		return false
	}

	h.setCookie(c, token, int(h.signer.TTL().Seconds()))
	return true
}

func (h *Handler) setCookie(c *gin.Context, value string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
