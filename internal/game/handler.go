package game

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tunehaven/tunehaven/internal/auth"
	"github.com/tunehaven/tunehaven/internal/httpx"
	"github.com/tunehaven/tunehaven/pkg/models"
	"github.com/tunehaven/tunehaven/pkg/storage"
)

const (
	defaultLeaderboardSize = 10
	maxLeaderboardSize     = 100
)

type Handler struct {
	store storage.GameStore
	log   *zap.Logger
}

func NewHandler(store storage.GameStore, log *zap.Logger) *Handler {
	return &Handler{store: store, log: log}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	games := r.Group("/games")
	{
		games.GET("", h.list)
		games.POST("", h.create)
		games.GET("/leaderboard", h.leaderboard)
	}
}

type createRequest struct {
	GameType        string `json:"gameType" binding:"required,max=64"`
	Score           int    `json:"score" binding:"gte=0"`
	DurationSeconds int    `json:"durationSeconds" binding:"gte=0"`
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Invalid(c, err)
		return
	}
	game, err := h.store.CreateGame(c.Request.Context(), models.NewGame{
		UserID:          auth.UserID(c),
		GameType:        strings.TrimSpace(req.GameType),
		Score:           req.Score,
		DurationSeconds: req.DurationSeconds,
	})
	if err != nil {
		httpx.Internal(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, game)
}

func (h *Handler) list(c *gin.Context) {
	games, err := h.store.ListGamesByUser(c.Request.Context(), auth.UserID(c))
	if err != nil {
		httpx.Internal(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, games)
}

func (h *Handler) leaderboard(c *gin.Context) {
	limit := min(httpx.QueryInt(c, "limit", defaultLeaderboardSize), maxLeaderboardSize)
	games, err := h.store.TopGames(c.Request.Context(), c.Query("type"), limit)
	if err != nil {
		httpx.Internal(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, games)
}
