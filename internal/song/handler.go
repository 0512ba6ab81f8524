package song

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tunehaven/tunehaven/internal/auth"
	"github.com/tunehaven/tunehaven/internal/httpx"
	"github.com/tunehaven/tunehaven/internal/metrics"
	"github.com/tunehaven/tunehaven/internal/upload"
	"github.com/tunehaven/tunehaven/pkg/models"
)

// AudioContentType is sent with every stream response.
const AudioContentType = "audio/mpeg"

const (
	defaultRecentLimit = 10
	maxRecentLimit     = 50
)

type Handler struct {
	service *Service
	store   Store
	files   *upload.Store
	log     *zap.Logger
}

func NewHandler(service *Service, store Store, files *upload.Store, log *zap.Logger) *Handler {
	return &Handler{service: service, store: store, files: files, log: log}
}

// RegisterRoutes expects r to be behind the session middleware.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	songs := r.Group("/songs")
	{
		songs.GET("", h.listSongs)
		songs.GET("/recent", h.recentSongs)
		songs.GET("/barcode/:code", h.getByBarcode)
		songs.GET("/:id", h.getSong)
		songs.GET("/:id/stream", h.stream)
		songs.POST("/:id/play", h.recordPlay)
		songs.PUT("/:id/lyrics", h.updateLyrics)
		songs.GET("/:id/comments", h.listComments)
		songs.POST("/:id/comments", h.createComment)

		admin := songs.Group("", auth.RequireAdmin())
		admin.POST("", h.files.Limit(upload.Audio, upload.Image), h.uploadSong)
		admin.PATCH("/:id", h.updateSong)
		admin.DELETE("/:id", h.deleteSong)
	}
	r.DELETE("/comments/:id", h.deleteComment)
}

func (h *Handler) listSongs(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		songs []*models.Song
		err   error
	)
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		songs, err = h.store.SearchSongs(ctx, q)
	} else {
		songs, err = h.store.ListSongs(ctx)
	}
	if err != nil {
		httpx.Internal(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, songs)
}

func (h *Handler) recentSongs(c *gin.Context) {
	limit := min(httpx.QueryInt(c, "limit", defaultRecentLimit), maxRecentLimit)
	songs, err := h.store.RecentSongs(c.Request.Context(), limit)
	if err != nil {
		httpx.Internal(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, songs)
}

func (h *Handler) getByBarcode(c *gin.Context) {
	song, err := h.store.GetSongByBarcode(c.Request.Context(), c.Param("code"))
	if err != nil {
		httpx.StoreError(c, h.log, err, "song")
		return
	}
	c.JSON(http.StatusOK, song)
}

func (h *Handler) getSong(c *gin.Context) {
	id, ok := httpx.ParamID(c, "id")
	if !ok {
		return
	}
	song, err := h.store.GetSong(c.Request.Context(), id)
	if err != nil {
		httpx.StoreError(c, h.log, err, "song")
		return
	}
	c.JSON(http.StatusOK, song)
}

type uploadForm struct {
	Title             string  `form:"title" binding:"max=200"`
	Artist            string  `form:"artist" binding:"max=200"`
	Duration          int     `form:"duration" binding:"required,gt=0"`
	ArtistID          *int64  `form:"artistId"`
	FeaturedArtistIDs []int64 `form:"featuredArtistIds"`
	Album             string  `form:"album" binding:"max=200"`
	AlbumID           *int64  `form:"albumId"`
	Genre             string  `form:"genre" binding:"max=100"`
	Year              *int    `form:"year" binding:"omitempty,gte=1000,lte=2100"`
	Lyrics            *string `form:"lyrics"`
}

// uploadSong takes a multipart body with the audio under "audio" and an
// optional cover image under "cover". Title and artist may be omitted when
// the audio carries them in its tags.
func (h *Handler) uploadSong(c *gin.Context) {
	var form uploadForm
	if err := c.ShouldBind(&form); err != nil {
		httpx.Invalid(c, err)
		return
	}

	audioHeader, err := c.FormFile("audio")
	if err != nil {
		httpx.InvalidField(c, "audio", "is required")
		return
	}
	if err := h.files.Check(upload.Audio, audioHeader); err != nil {
		httpx.InvalidField(c, "audio", uploadMessage(err))
		return
	}

	var cover *upload.Saved
	if coverHeader, err := c.FormFile("cover"); err == nil {
		if cover, err = h.files.Save(upload.Image, coverHeader); err != nil {
			h.saveFailed(c, "cover", err)
			return
		}
	}

	audio, err := h.files.Save(upload.Audio, audioHeader)
	if err != nil {
		if cover != nil {
			h.files.Remove(cover.Path)
		}
		h.saveFailed(c, "audio", err)
		return
	}

	song, err := h.service.Create(c.Request.Context(), models.NewSong{
		Title:             strings.TrimSpace(form.Title),
		Artist:            strings.TrimSpace(form.Artist),
		ArtistID:          form.ArtistID,
		FeaturedArtistIDs: form.FeaturedArtistIDs,
		Album:             form.Album,
		AlbumID:           form.AlbumID,
		Genre:             form.Genre,
		Year:              form.Year,
		Duration:          form.Duration,
		Lyrics:            form.Lyrics,
		UserID:            auth.UserID(c),
	}, audio, cover)
	if err != nil {
		if errors.Is(err, ErrUnknownAlbum) {
			httpx.InvalidField(c, "albumId", "does not exist")
			return
		}
		var missing *MissingFieldError
		if errors.As(err, &missing) {
			httpx.InvalidField(c, missing.Field, "is required")
			return
		}
		httpx.Internal(c, h.log, err, zap.Int64("user_id", auth.UserID(c)))
		return
	}

	h.log.Info("song uploaded", zap.Int64("song_id", song.ID), zap.Int64("user_id", song.UserID))
	c.JSON(http.StatusCreated, song)
}

func (h *Handler) saveFailed(c *gin.Context, field string, err error) {
	if errors.Is(err, upload.ErrUnsupportedType) || errors.Is(err, upload.ErrTooLarge) {
		httpx.InvalidField(c, field, uploadMessage(err))
		return
	}
	httpx.Internal(c, h.log, err)
}

func uploadMessage(err error) string {
	switch {
	case errors.Is(err, upload.ErrTooLarge):
		return "file is too large"
	case errors.Is(err, upload.ErrUnsupportedType):
		return "unsupported file type"
	}
	return "could not be stored"
}

type updateRequest struct {
	Title             *string  `json:"title" binding:"omitempty,min=1,max=200"`
	Artist            *string  `json:"artist" binding:"omitempty,min=1,max=200"`
	ArtistID          *int64   `json:"artistId"`
	FeaturedArtistIDs *[]int64 `json:"featuredArtistIds"`
	Album             *string  `json:"album" binding:"omitempty,max=200"`
	AlbumID           *int64   `json:"albumId"`
	Genre             *string  `json:"genre" binding:"omitempty,max=100"`
	Year              *int     `json:"year" binding:"omitempty,gte=1000,lte=2100"`
	Duration          *int     `json:"duration" binding:"omitempty,gt=0"`
	CoverImage        *string  `json:"coverImage"`
	Lyrics            *string  `json:"lyrics"`
}

func (h *Handler) updateSong(c *gin.Context) {
	id, ok := httpx.ParamID(c, "id")
	if !ok {
		return
	}
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}

	song, err := h.service.Update(c.Request.Context(), id, models.SongUpdate{
		Title:             req.Title,
		Artist:            req.Artist,
		ArtistID:          req.ArtistID,
		FeaturedArtistIDs: req.FeaturedArtistIDs,
		Album:             req.Album,
		AlbumID:           req.AlbumID,
		Genre:             req.Genre,
		Year:              req.Year,
		Duration:          req.Duration,
		CoverImage:        req.CoverImage,
		Lyrics:            req.Lyrics,
	})
	if err != nil {
		if errors.Is(err, ErrUnknownAlbum) {
			httpx.InvalidField(c, "albumId", "does not exist")
			return
		}
		httpx.StoreError(c, h.log, err, "song")
		return
	}
	c.JSON(http.StatusOK, song)
}

type lyricsRequest struct {
	Lyrics *string `json:"lyrics" binding:"required,max=20000"`
}

// updateLyrics is open to the uploader as well as admins.
func (h *Handler) updateLyrics(c *gin.Context) {
	id, ok := httpx.ParamID(c, "id")
	if !ok {
		return
	}
	var req lyricsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}

	ctx := c.Request.Context()
	song, err := h.store.GetSong(ctx, id)
	if err != nil {
		httpx.StoreError(c, h.log, err, "song")
		return
	}
	if song.UserID != auth.UserID(c) && !auth.IsAdmin(c) {
		httpx.Error(c, http.StatusForbidden, "only the uploader can edit lyrics")
		return
	}

	song, err = h.store.UpdateSong(ctx, id, models.SongUpdate{Lyrics: req.Lyrics})
	if err != nil {
		httpx.StoreError(c, h.log, err, "song")
		return
	}
	c.JSON(http.StatusOK, song)
}

func (h *Handler) deleteSong(c *gin.Context) {
	id, ok := httpx.ParamID(c, "id")
	if !ok {
		return
	}
	deleted, err := h.service.Delete(c.Request.Context(), id)
	if err != nil {
		httpx.Internal(c, h.log, err, zap.Int64("song_id", id))
		return
	}
	if !deleted {
		httpx.Error(c, http.StatusNotFound, "song not found")
		return
	}
	c.Status(http.StatusNoContent)
}

// stream serves the audio file, honoring Range headers.
func (h *Handler) stream(c *gin.Context) {
	id, ok := httpx.ParamID(c, "id")
	if !ok {
		return
	}
	song, err := h.store.GetSong(c.Request.Context(), id)
	if err != nil {
		httpx.StoreError(c, h.log, err, "song")
		return
	}

	f, err := os.Open(song.FilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			httpx.Error(c, http.StatusNotFound, "audio file not found")
			return
		}
		httpx.Internal(c, h.log, err, zap.Int64("song_id", id))
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		httpx.Internal(c, h.log, err, zap.Int64("song_id", id))
		return
	}

	metrics.SongsStreamed.Inc()
	c.Header("Content-Type", AudioContentType)
	c.Header("Accept-Ranges", "bytes")
	http.ServeContent(c.Writer, c.Request, filepath.Base(song.FilePath), info.ModTime(), f)
}

type playRequest struct {
	Duration int `json:"duration" binding:"gte=0"`
}

func (h *Handler) recordPlay(c *gin.Context) {
	id, ok := httpx.ParamID(c, "id")
	if !ok {
		return
	}
	var req playRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}

	entry, err := h.service.RecordPlay(c.Request.Context(), auth.UserID(c), id, req.Duration)
	if err != nil {
		httpx.StoreError(c, h.log, err, "song")
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (h *Handler) listComments(c *gin.Context) {
	id, ok := httpx.ParamID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.store.GetSong(ctx, id); err != nil {
		httpx.StoreError(c, h.log, err, "song")
		return
	}
	comments, err := h.store.ListComments(ctx, id)
	if err != nil {
		httpx.Internal(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

type commentRequest struct {
	Comment   string `json:"comment" binding:"required,max=1000"`
	Timestamp *int   `json:"timestamp" binding:"omitempty,gte=0"`
}

func (h *Handler) createComment(c *gin.Context) {
	id, ok := httpx.ParamID(c, "id")
	if !ok {
		return
	}
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}
	if strings.TrimSpace(req.Comment) == "" {
		httpx.InvalidField(c, "comment", "is required")
		return
	}

	ctx := c.Request.Context()
	if _, err := h.store.GetSong(ctx, id); err != nil {
		httpx.StoreError(c, h.log, err, "song")
		return
	}
	comment, err := h.store.CreateComment(ctx, models.NewComment{
		SongID:    id,
		UserID:    auth.UserID(c),
		Comment:   strings.TrimSpace(req.Comment),
		Timestamp: req.Timestamp,
	})
	if err != nil {
		httpx.Internal(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *Handler) deleteComment(c *gin.Context) {
	id, ok := httpx.ParamID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	comment, err := h.store.GetComment(ctx, id)
	if err != nil {
		httpx.StoreError(c, h.log, err, "comment")
		return
	}
	if comment.UserID != auth.UserID(c) && !auth.IsAdmin(c) {
		httpx.Error(c, http.StatusForbidden, "not your comment")
		return
	}
	if _, err := h.store.DeleteComment(ctx, id); err != nil {
		httpx.Internal(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
