// Package catalog serves artists and albums. Everyone signed in can read;
// only admins write.
package catalog

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tunehaven/tunehaven/internal/auth"
	"github.com/tunehaven/tunehaven/internal/httpx"
	"github.com/tunehaven/tunehaven/internal/upload"
	"github.com/tunehaven/tunehaven/pkg/models"
	"github.com/tunehaven/tunehaven/pkg/storage"
)

type Store interface {
	storage.CatalogStore
	ListSongsByArtist(ctx context.Context, artistID int64) ([]*models.Song, error)
	ListSongsByAlbum(ctx context.Context, albumID int64) ([]*models.Song, error)
}

type Handler struct {
	store Store
	files *upload.Store
	log   *zap.Logger
}

func NewHandler(store Store, files *upload.Store, log *zap.Logger) *Handler {
	return &Handler{store: store, files: files, log: log}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	artists := r.Group("/artists")
	{
		artists.GET("", h.listArtists)
		artists.GET("/:id", h.getArtist)
		artists.GET("/:id/songs", h.artistSongs)
		artists.GET("/:id/albums", h.artistAlbums)
		artists.POST("", auth.RequireAdmin(), h.files.Limit(upload.Image), h.createArtist)
		artists.PATCH("/:id", auth.RequireAdmin(), h.updateArtist)
	}

	albums := r.Group("/albums")
	{
		albums.GET("", h.listAlbums)
		albums.GET("/:id", h.getAlbum)
		albums.GET("/:id/songs", h.albumSongs)
		albums.POST("", auth.RequireAdmin(), h.files.Limit(upload.Image), h.createAlbum)
		albums.PATCH("/:id", auth.RequireAdmin(), h.updateAlbum)
	}
}

// optionalImage stores the multipart file under field, if the request has
// one. It writes the error response itself and reports false on failure.
func (h *Handler) optionalImage(c *gin.Context, field string) (*string, bool) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, true
	}
	saved, err := h.files.Save(upload.Image, fh)
	if err != nil {
		if errors.Is(err, upload.ErrUnsupportedType) || errors.Is(err, upload.ErrTooLarge) {
			httpx.InvalidField(c, field, err.Error())
			return nil, false
		}
		httpx.Internal(c, h.log, err)
		return nil, false
	}
	return &saved.URL, true
}

func (h *Handler) listArtists(c *gin.Context) {
	artists, err := h.store.ListArtists(c.Request.Context())
	if err != nil {
		httpx.Internal(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, artists)
}

func (h *Handler) getArtist(c *gin.Context) {
	artist, ok := h.loadArtist(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, artist)
}

func (h *Handler) loadArtist(c *gin.Context) (*models.Artist, bool) {
	id, ok := httpx.ParamID(c, "id")
	if !ok {
		return nil, false
	}
	artist, err := h.store.GetArtist(c.Request.Context(), id)
	if err != nil {
		httpx.StoreError(c, h.log, err, "artist")
		return nil, false
	}
	return artist, true
}

func (h *Handler) artistSongs(c *gin.Context) {
	artist, ok := h.loadArtist(c)
	if !ok {
		return
	}
	songs, err := h.store.ListSongsByArtist(c.Request.Context(), artist.ID)
	if err != nil {
		httpx.Internal(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, songs)
}

func (h *Handler) artistAlbums(c *gin.Context) {
	artist, ok := h.loadArtist(c)
	if !ok {
		return
	}
	albums, err := h.store.ListAlbumsByArtist(c.Request.Context(), artist.ID)
	if err != nil {
		httpx.Internal(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, albums)
}

type artistRequest struct {
	Name   string   `json:"name" form:"name" binding:"required,max=200"`
	Bio    string   `json:"bio" form:"bio" binding:"max=5000"`
	Image  *string  `json:"image" form:"-"`
	Genres []string `json:"genres" form:"genres" binding:"max=20,dive,max=100"`
}

// createArtist accepts JSON, or a multipart form with the picture under "image".
func (h *Handler) createArtist(c *gin.Context) {
	var req artistRequest
	if err := c.ShouldBind(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}
	image, ok := h.optionalImage(c, "image")
	if !ok {
		return
	}
	if image == nil {
		image = req.Image
	}

	artist, err := h.store.CreateArtist(c.Request.Context(), models.NewArtist{
		Name:   strings.TrimSpace(req.Name),
		Bio:    req.Bio,
		Image:  image,
		Genres: req.Genres,
	})
	if err != nil {
		httpx.Internal(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, artist)
}

type artistUpdate struct {
	Name   *string   `json:"name" binding:"omitempty,min=1,max=200"`
	Bio    *string   `json:"bio" binding:"omitempty,max=5000"`
	Image  *string   `json:"image"`
	Genres *[]string `json:"genres"`
}

func (h *Handler) updateArtist(c *gin.Context) {
	id, ok := httpx.ParamID(c, "id")
	if !ok {
		return
	}
	var req artistUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}
	artist, err := h.store.UpdateArtist(c.Request.Context(), id, models.ArtistUpdate{
		Name:   req.Name,
		Bio:    req.Bio,
		Image:  req.Image,
		Genres: req.Genres,
	})
	if err != nil {
		httpx.StoreError(c, h.log, err, "artist")
		return
	}
	c.JSON(http.StatusOK, artist)
}

func (h *Handler) listAlbums(c *gin.Context) {
	albums, err := h.store.ListAlbums(c.Request.Context())
	if err != nil {
		httpx.Internal(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, albums)
}

func (h *Handler) loadAlbum(c *gin.Context) (*models.Album, bool) {
	id, ok := httpx.ParamID(c, "id")
	if !ok {
		return nil, false
	}
	album, err := h.store.GetAlbum(c.Request.Context(), id)
	if err != nil {
		httpx.StoreError(c, h.log, err, "album")
		return nil, false
	}
	return album, true
}

func (h *Handler) getAlbum(c *gin.Context) {
	album, ok := h.loadAlbum(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, album)
}

func (h *Handler) albumSongs(c *gin.Context) {
	album, ok := h.loadAlbum(c)
	if !ok {
		return
	}
	songs, err := h.store.ListSongsByAlbum(c.Request.Context(), album.ID)
	if err != nil {
		httpx.Internal(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, songs)
}

type albumRequest struct {
	Title       string  `json:"title" form:"title" binding:"required,max=200"`
	ArtistID    int64   `json:"artistId" form:"artistId" binding:"required,gt=0"`
	CoverImage  *string `json:"coverImage" form:"-"`
	ReleaseYear *int    `json:"releaseYear" form:"releaseYear" binding:"omitempty,gte=1000,lte=2100"`
	Genre       string  `json:"genre" form:"genre" binding:"max=100"`
}

// createAlbum accepts JSON, or a multipart form with the cover under "cover".
func (h *Handler) createAlbum(c *gin.Context) {
	var req albumRequest
	if err := c.ShouldBind(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}

	ctx := c.Request.Context()
	if _, err := h.store.GetArtist(ctx, req.ArtistID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httpx.InvalidField(c, "artistId", "does not exist")
			return
		}
		httpx.Internal(c, h.log, err)
		return
	}

	cover, ok := h.optionalImage(c, "cover")
	if !ok {
		return
	}
	if cover == nil {
		cover = req.CoverImage
	}

	album, err := h.store.CreateAlbum(ctx, models.NewAlbum{
		Title:       strings.TrimSpace(req.Title),
		ArtistID:    req.ArtistID,
		CoverImage:  cover,
		ReleaseYear: req.ReleaseYear,
		Genre:       req.Genre,
	})
	if err != nil {
		httpx.Internal(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, album)
}

type albumUpdate struct {
	Title       *string `json:"title" binding:"omitempty,min=1,max=200"`
	ArtistID    *int64  `json:"artistId" binding:"omitempty,gt=0"`
	CoverImage  *string `json:"coverImage"`
	ReleaseYear *int    `json:"releaseYear" binding:"omitempty,gte=1000,lte=2100"`
	Genre       *string `json:"genre" binding:"omitempty,max=100"`
}

func (h *Handler) updateAlbum(c *gin.Context) {
	id, ok := httpx.ParamID(c, "id")
	if !ok {
		return
	}
	var req albumUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}

	ctx := c.Request.Context()
	if req.ArtistID != nil {
		if _, err := h.store.GetArtist(ctx, *req.ArtistID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				httpx.InvalidField(c, "artistId", "does not exist")
				return
			}
			httpx.Internal(c, h.log, err)
			return
		}
	}

	album, err := h.store.UpdateAlbum(ctx, id, models.AlbumUpdate{
		Title:       req.Title,
		ArtistID:    req.ArtistID,
		CoverImage:  req.CoverImage,
		ReleaseYear: req.ReleaseYear,
		Genre:       req.Genre,
	})
	if err != nil {
		httpx.StoreError(c, h.log, err, "album")
		return
	}
	c.JSON(http.StatusOK, album)
}
