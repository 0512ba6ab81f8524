package favorite

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
	storage.FavoriteStore
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
	favorites := r.Group("/favorites")
	{
		favorites.GET("", h.list)
		favorites.GET("/:songId", h.check)
		favorites.POST("/:songId", h.add)
		favorites.DELETE("/:songId", h.remove)
	}
}

func (h *Handler) list(c *gin.Context) {
	songs, err := h.store.ListFavorites(c.Request.Context(), auth.UserID(c))
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
	fav, err := h.store.IsFavorite(c.Request.Context(), auth.UserID(c), songID)
	if err != nil {
		httpx.Internal(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"isFavorite": fav})
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
	fav, err := h.store.AddToFavorites(ctx, auth.UserID(c), songID)
	if err != nil {
		httpx.Internal(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, fav)
}

func (h *Handler) remove(c *gin.Context) {
	songID, ok := httpx.ParamID(c, "songId")
	if !ok {
		return
	}
	removed, err := h.store.RemoveFromFavorites(c.Request.Context(), auth.UserID(c), songID)
	if err != nil {
		httpx.Internal(c, h.log, err)
		return
	}
	if !removed {
		httpx.Error(c, http.StatusNotFound, "song is not a favorite")
		return
	}
	c.Status(http.StatusNoContent)
}
