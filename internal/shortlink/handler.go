package shortlink

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tunehaven/tunehaven/internal/auth"
	"github.com/tunehaven/tunehaven/internal/httpx"
	"github.com/tunehaven/tunehaven/pkg/models"
	"github.com/tunehaven/tunehaven/pkg/storage"
)

const (
	shortIDLength   = 8
	maxShortIDTries = 5
)

type Handler struct {
	store storage.ShortLinkStore
	log   *zap.Logger
}

func NewHandler(store storage.ShortLinkStore, log *zap.Logger) *Handler {
	return &Handler{store: store, log: log}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	links := r.Group("/short-links")
	{
		links.GET("", h.list)
		links.POST("", h.create)
		links.DELETE("/:id", h.delete)
	}
}

// RegisterRedirect mounts the public resolver at /s/:shortId.
func (h *Handler) RegisterRedirect(r gin.IRoutes) {
	r.GET("/s/:shortId", h.resolve)
}

func newShortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:shortIDLength]
}

func (h *Handler) list(c *gin.Context) {
	links, err := h.store.ListShortLinksByUser(c.Request.Context(), auth.UserID(c))
	if err != nil {
		httpx.Internal(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, links)
}

type createRequest struct {
	TargetURL   string `json:"targetUrl" binding:"required,max=2048"`
	Type        string `json:"type" binding:"required,oneof=song playlist album artist profile other"`
	ReferenceID *int64 `json:"referenceId"`
}

// validTarget accepts site-relative paths and absolute http(s) URLs.
func validTarget(raw string) bool {
	if strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//") {
		return true
	}
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}
	if !validTarget(req.TargetURL) {
		httpx.InvalidField(c, "targetUrl", "must be a path or an http(s) URL")
		return
	}

	ctx := c.Request.Context()
	for i := 0; i < maxShortIDTries; i++ {
		link, err := h.store.CreateShortLink(ctx, models.NewShortLink{
			ShortID:     newShortID(),
			TargetURL:   req.TargetURL,
			Type:        req.Type,
			ReferenceID: req.ReferenceID,
			UserID:      auth.UserID(c),
		})
		if errors.Is(err, storage.ErrDuplicate) {
			continue
		}
		if err != nil {
			httpx.Internal(c, h.log, err)
			return
		}
		c.JSON(http.StatusCreated, link)
		return
	}
	httpx.Internal(c, h.log, fmt.Errorf("no free short id after %d tries", maxShortIDTries))
}

func (h *Handler) delete(c *gin.Context) {
	id, ok := httpx.ParamID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	link, err := h.store.GetShortLink(ctx, id)
	if err != nil {
		httpx.StoreError(c, h.log, err, "short link")
		return
	}
	if link.UserID != auth.UserID(c) && !auth.IsAdmin(c) {
		httpx.Error(c, http.StatusForbidden, "not your short link")
		return
	}
	if _, err := h.store.DeleteShortLink(ctx, id); err != nil {
		httpx.Internal(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) resolve(c *gin.Context) {
	link, err := h.store.IncrementShortLinkClicks(c.Request.Context(), c.Param("shortId"))
	if err != nil {
		httpx.StoreError(c, h.log, err, "short link")
		return
	}
	c.Redirect(http.StatusFound, link.TargetURL)
}
