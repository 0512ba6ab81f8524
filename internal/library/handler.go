package library

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tunehaven/tunehaven/internal/auth"
	"github.com/tunehaven/tunehaven/internal/httpx"
	"github.com/tunehaven/tunehaven/pkg/models"
	"github.com/tunehaven/tunehaven/pkg/storage"
)

type Store interface {
	storage.LibraryStore
	GetSong(ctx context.Context, id int64) (*models.Song, error)
}

type Handler struct {
	store Store
	log   *zap.Logger
}

func NewHandler(store Store, log *zap.Logger) *Handler {
	return &Handler{store: store, log: log}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	library := r.Group("/library")
	{
		library.GET("", h.list)
		library.GET("/:songId", h.check)
		library.POST("/:songId", h.add)
		library.DELETE("/:songId", h.remove)
	}
}

func (h *Handler) list(c *gin.Context) {
	songs, err := h.store.ListLibrary(c.Request.Context(), auth.UserID(c))
	if err != nil {
		httpx.Internal(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, songs)
}

func (h *Handler) check(c *gin.Context) {
	songID, ok := httpx.ParamID(c, "songId")
	if !ok {
		return
	}
	saved, err := h.store.IsInLibrary(c.Request.Context(), auth.UserID(c), songID)
	if err != nil {
		httpx.Internal(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"inLibrary": saved})
}

func (h *Handler) add(c *gin.Context) {
	songID, ok := httpx.ParamID(c, "songId")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.store.GetSong(ctx, songID); err != nil {
		httpx.StoreError(c, h.log, err, "song")
		return
	}
	entry, err := h.store.AddToLibrary(ctx, auth.UserID(c), songID)
	if err != nil {
		httpx.Internal(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (h *Handler) remove(c *gin.Context) {
	songID, ok := httpx.ParamID(c, "songId")
	if !ok {
		return
	}
	removed, err := h.store.RemoveFromLibrary(c.Request.Context(), auth.UserID(c), songID)
	if err != nil {
		httpx.Internal(c, h.log, err)
		return
	}
	if !removed {
		httpx.Error(c, http.StatusNotFound, "song is not in your library")
		return
	}
	c.Status(http.StatusNoContent)
}
