package playlist

import (
	"context"
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

type Store interface {
	storage.PlaylistStore
	GetSong(ctx context.Context, id int64) (*models.Song, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

type Handler struct {
	store  Store
	events events.Publisher
	log    *zap.Logger
}

func NewHandler(store Store, publisher events.Publisher, log *zap.Logger) *Handler {
	return &Handler{store: store, events: publisher, log: log}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	playlists := r.Group("/playlists")
	{
		playlists.GET("", h.listPlaylists)
		playlists.POST("", h.createPlaylist)
		playlists.GET("/:id", h.getPlaylist)
		playlists.PATCH("/:id", h.updatePlaylist)
		playlists.DELETE("/:id", h.deletePlaylist)

		playlists.GET("/:id/songs", h.listSongs)
		playlists.POST("/:id/songs", h.addSong)
		playlists.DELETE("/:id/songs/:songId", h.removeSong)

		playlists.POST("/:id/collaborators", h.addCollaborator)
		playlists.DELETE("/:id/collaborators/:userId", h.removeCollaborator)
	}
}

func (h *Handler) listPlaylists(c *gin.Context) {
	playlists, err := h.store.ListPlaylistsByUser(c.Request.Context(), auth.UserID(c))
	if err != nil {
		httpx.Internal(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, playlists)
}

type createRequest struct {
	Name          string  `json:"name" binding:"required,max=100"`
	Description   string  `json:"description" binding:"max=500"`
	CoverImage    *string `json:"coverImage"`
	Collaborative bool    `json:"isCollaborative"`
}

func (h *Handler) createPlaylist(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		httpx.InvalidField(c, "name", "is required")
		return
	}

	ctx := c.Request.Context()
	userID := auth.UserID(c)
	playlist, err := h.store.CreatePlaylist(ctx, models.NewPlaylist{
		Name:          name,
		Description:   req.Description,
		CoverImage:    req.CoverImage,
		UserID:        userID,
		Collaborative: req.Collaborative,
	})
	if err != nil {
		httpx.Internal(c, h.log, err, zap.Int64("user_id", userID))
		return
	}

	if err := h.events.Publish(ctx, events.EventTypePlaylistCreated, userID, events.PlaylistPayload{
		PlaylistID: playlist.ID,
		Name:       playlist.Name,
	}); err != nil {
		h.log.Warn("failed to publish event", zap.String("type", string(events.EventTypePlaylistCreated)), zap.Error(err))
	}
	c.JSON(http.StatusCreated, playlist)
}

type playlistView struct {
	*models.Playlist
	Songs []*models.Song `json:"songs"`
}

// getPlaylist is readable by any signed-in user so playlists can be shared.
func (h *Handler) getPlaylist(c *gin.Context) {
	playlist, ok := h.load(c)
	if !ok {
		return
	}
	songs, err := h.store.GetPlaylistSongs(c.Request.Context(), playlist.ID)
	if err != nil {
		httpx.Internal(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, playlistView{Playlist: playlist, Songs: songs})
}

type updateRequest struct {
	Name          *string `json:"name" binding:"omitempty,min=1,max=100"`
	Description   *string `json:"description" binding:"omitempty,max=500"`
	CoverImage    *string `json:"coverImage"`
	Collaborative *bool   `json:"isCollaborative"`
}

func (h *Handler) updatePlaylist(c *gin.Context) {
	playlist, ok := h.loadOwned(c)
	if !ok {
		return
	}
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}

	updated, err := h.store.UpdatePlaylist(c.Request.Context(), playlist.ID, models.PlaylistUpdate{
		Name:          req.Name,
		Description:   req.Description,
		CoverImage:    req.CoverImage,
		Collaborative: req.Collaborative,
	})
	if err != nil {
		httpx.StoreError(c, h.log, err, "playlist")
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) deletePlaylist(c *gin.Context) {
	playlist, ok := h.loadOwned(c)
	if !ok {
		return
	}
	deleted, err := h.store.DeletePlaylist(c.Request.Context(), playlist.ID)
	if err != nil {
		httpx.Internal(c, h.log, err)
		return
	}
	if !deleted {
		httpx.Error(c, http.StatusNotFound, "playlist not found")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listSongs(c *gin.Context) {
	playlist, ok := h.load(c)
	if !ok {
		return
	}
	songs, err := h.store.GetPlaylistSongs(c.Request.Context(), playlist.ID)
	if err != nil {
		httpx.Internal(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, songs)
}

type addSongRequest struct {
	SongID int64 `json:"songId" binding:"required,gt=0"`
}

// addSong checks access to the playlist only. Any existing song may be
// added, whoever uploaded it.
func (h *Handler) addSong(c *gin.Context) {
	playlist, ok := h.loadEditable(c)
	if !ok {
		return
	}
	var req addSongRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}

	ctx := c.Request.Context()
	if _, err := h.store.GetSong(ctx, req.SongID); err != nil {
		httpx.StoreError(c, h.log, err, "song")
		return
	}
	row, err := h.store.AddSongToPlaylist(ctx, playlist.ID, req.SongID, auth.UserID(c))
	if err != nil {
		httpx.Internal(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, row)
}

func (h *Handler) removeSong(c *gin.Context) {
	playlist, ok := h.loadEditable(c)
	if !ok {
		return
	}
	songID, ok := httpx.ParamID(c, "songId")
	if !ok {
		return
	}
	removed, err := h.store.RemoveSongFromPlaylist(c.Request.Context(), playlist.ID, songID)
	if err != nil {
		httpx.Internal(c, h.log, err)
		return
	}
	if !removed {
		httpx.Error(c, http.StatusNotFound, "song is not on this playlist")
		return
	}
	c.Status(http.StatusNoContent)
}

type collaboratorRequest struct {
	UserID int64 `json:"userId" binding:"required,gt=0"`
}

func (h *Handler) addCollaborator(c *gin.Context) {
	playlist, ok := h.loadOwned(c)
	if !ok {
		return
	}
	var req collaboratorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}
	if req.UserID == playlist.UserID {
		httpx.InvalidField(c, "userId", "is the playlist owner")
		return
	}

	ctx := c.Request.Context()
	if _, err := h.store.GetUser(ctx, req.UserID); err != nil {
		httpx.StoreError(c, h.log, err, "user")
		return
	}
	updated, err := h.store.AddCollaborator(ctx, playlist.ID, req.UserID)
	if err != nil {
		httpx.StoreError(c, h.log, err, "playlist")
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) removeCollaborator(c *gin.Context) {
	playlist, ok := h.loadOwned(c)
	if !ok {
		return
	}
	userID, ok := httpx.ParamID(c, "userId")
	if !ok {
		return
	}
	updated, err := h.store.RemoveCollaborator(c.Request.Context(), playlist.ID, userID)
	if err != nil {
		httpx.StoreError(c, h.log, err, "playlist")
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) load(c *gin.Context) (*models.Playlist, bool) {
	id, ok := httpx.ParamID(c, "id")
	if !ok {
		return nil, false
	}
	playlist, err := h.store.GetPlaylist(c.Request.Context(), id)
	if err != nil {
		httpx.StoreError(c, h.log, err, "playlist")
		return nil, false
	}
	return playlist, true
}

// loadOwned answers 403 unless the caller owns the playlist.
func (h *Handler) loadOwned(c *gin.Context) (*models.Playlist, bool) {
	playlist, ok := h.load(c)
	if !ok {
		return nil, false
	}
	if playlist.UserID != auth.UserID(c) {
		httpx.Error(c, http.StatusForbidden, "only the owner can change this playlist")
		return nil, false
	}
	return playlist, true
}

// loadEditable also admits collaborators.
func (h *Handler) loadEditable(c *gin.Context) (*models.Playlist, bool) {
	playlist, ok := h.load(c)
	if !ok {
		return nil, false
	}
	if !playlist.CanEdit(auth.UserID(c)) {
		httpx.Error(c, http.StatusForbidden, "you cannot edit this playlist")
		return nil, false
	}
	return playlist, true
}
