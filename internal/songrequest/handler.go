package songrequest

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tunehaven/tunehaven/internal/auth"
	"github.com/tunehaven/tunehaven/internal/httpx"
	"github.com/tunehaven/tunehaven/pkg/events"
	"github.com/tunehaven/tunehaven/pkg/models"
	"github.com/tunehaven/tunehaven/pkg/storage"
)

type Handler struct {
	store  storage.SongRequestStore
	events events.Publisher
	log    *zap.Logger
}

func NewHandler(store storage.SongRequestStore, publisher events.Publisher, log *zap.Logger) *Handler {
	return &Handler{store: store, events: publisher, log: log}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	requests := r.Group("/song-requests")
	{
		requests.GET("", h.list)
		requests.POST("", h.create)
		requests.DELETE("/:id", h.delete)

		admin := requests.Group("", auth.RequireAdmin())
		admin.GET("/pending", h.listPending)
		admin.PATCH("/:id/status", h.updateStatus)
	}
}

// list returns every request to admins and the caller's own otherwise.
func (h *Handler) list(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		requests []*models.SongRequest
		err      error
	)
	if auth.IsAdmin(c) {
		requests, err = h.store.ListSongRequests(ctx)
	} else {
		requests, err = h.store.ListSongRequestsByUser(ctx, auth.UserID(c))
	}
	if err != nil {
		httpx.Internal(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, requests)
}

func (h *Handler) listPending(c *gin.Context) {
	requests, err := h.store.ListPendingSongRequests(c.Request.Context())
	if err != nil {
		httpx.Internal(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, requests)
}

type createRequest struct {
	Title           string   `json:"title" binding:"required,max=200"`
	ArtistName      string   `json:"artistName" binding:"required,max=200"`
	ArtistID        *int64   `json:"artistId"`
	FeaturedArtists []string `json:"featuredArtists" binding:"max=20,dive,max=200"`
	Album           string   `json:"album" binding:"max=200"`
	Year            *int     `json:"year" binding:"omitempty,gte=1000,lte=2100"`
	CoverImage      *string  `json:"coverImage"`
	Notes           string   `json:"notes" binding:"max=2000"`
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}

	request, err := h.store.CreateSongRequest(c.Request.Context(), models.NewSongRequest{
		Title:           strings.TrimSpace(req.Title),
		ArtistName:      strings.TrimSpace(req.ArtistName),
		ArtistID:        req.ArtistID,
		FeaturedArtists: req.FeaturedArtists,
		Album:           req.Album,
		Year:            req.Year,
		CoverImage:      req.CoverImage,
		Notes:           req.Notes,
		UserID:          auth.UserID(c),
	})
	if err != nil {
		httpx.Internal(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, request)
}

type statusRequest struct {
	Status       models.SongRequestStatus `json:"status" binding:"required,oneof=pending approved rejected"`
	AdminMessage *string                  `json:"adminMessage" binding:"omitempty,max=2000"`
}

// updateStatus allows any transition, including re-opening a decided request.
func (h *Handler) updateStatus(c *gin.Context) {
	id, ok := httpx.ParamID(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}

	ctx := c.Request.Context()
	request, err := h.store.UpdateSongRequestStatus(ctx, id, req.Status, req.AdminMessage)
	if err != nil {
		httpx.StoreError(c, h.log, err, "song request")
		return
	}

	if err := h.events.Publish(ctx, events.EventTypeRequestStatusChanged, request.UserID, events.RequestStatusPayload{
		RequestID: request.ID,
		Status:    string(request.Status),
	}); err != nil {
		h.log.Warn("failed to publish event", zap.String("type", string(events.EventTypeRequestStatusChanged)), zap.Error(err))
	}
	c.JSON(http.StatusOK, request)
}

func (h *Handler) delete(c *gin.Context) {
	id, ok := httpx.ParamID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	request, err := h.store.GetSongRequest(ctx, id)
	if err != nil {
		httpx.StoreError(c, h.log, err, "song request")
		return
	}
	if request.UserID != auth.UserID(c) && !auth.IsAdmin(c) {
		httpx.Error(c, http.StatusForbidden, "not your request")
		return
	}
	if _, err := h.store.DeleteSongRequest(ctx, id); err != nil {
		httpx.Internal(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
