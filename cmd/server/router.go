package main

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tunehaven/tunehaven/internal/auth"
	"github.com/tunehaven/tunehaven/internal/catalog"
	"github.com/tunehaven/tunehaven/internal/config"
	"github.com/tunehaven/tunehaven/internal/favorite"
	"github.com/tunehaven/tunehaven/internal/game"
	"github.com/tunehaven/tunehaven/internal/library"
	"github.com/tunehaven/tunehaven/internal/metrics"
	"github.com/tunehaven/tunehaven/internal/playlist"
	"github.com/tunehaven/tunehaven/internal/profile"
	"github.com/tunehaven/tunehaven/internal/remote"
	"github.com/tunehaven/tunehaven/internal/shortlink"
	"github.com/tunehaven/tunehaven/internal/song"
	"github.com/tunehaven/tunehaven/internal/songrequest"
	"github.com/tunehaven/tunehaven/internal/upload"
	"github.com/tunehaven/tunehaven/pkg/events"
	"github.com/tunehaven/tunehaven/pkg/jwt"
	"github.com/tunehaven/tunehaven/pkg/storage"
)

type deps struct {
	store     storage.Store
	sessions  auth.SessionStore
	files     *upload.Store
	publisher events.Publisher
	log       *zap.Logger
}

func newRouter(cfg *config.Config, d deps) *gin.Engine {
	router := gin.New()
	router.Use(ginzap.Ginzap(d.log, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(d.log, true))
	router.Use(metrics.Middleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Range"},
		ExposeHeaders:    []string{"Content-Length", "Content-Range", "Accept-Ranges"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", metrics.Handler())
	router.Static(upload.URLPrefix, d.files.Dir())

	authHandler := auth.NewHandler(d.store, d.sessions, jwt.NewSigner(cfg.JWTSecret, cfg.SessionTTL), d.log, cfg.Production())
	songService := song.NewService(d.store, d.files, d.publisher, d.log)
	links := shortlink.NewHandler(d.store, d.log)

	api := router.Group("/api")
	authHandler.RegisterRoutes(api)

	protected := api.Group("", authHandler.Middleware())
	{
		song.NewHandler(songService, d.store, d.files, d.log).RegisterRoutes(protected)
		catalog.NewHandler(d.store, d.files, d.log).RegisterRoutes(protected)
		playlist.NewHandler(d.store, d.publisher, d.log).RegisterRoutes(protected)
		favorite.NewHandler(d.store, d.log).RegisterRoutes(protected)
		library.NewHandler(d.store, d.log).RegisterRoutes(protected)
		game.NewHandler(d.store, d.log).RegisterRoutes(protected)
		songrequest.NewHandler(d.store, d.publisher, d.log).RegisterRoutes(protected)
		links.RegisterRoutes(protected)
		remote.NewHandler(remote.NewHub(), cfg.CORSOrigins, d.log).RegisterRoutes(protected)
	}

	profile.NewHandler(d.store, d.files, d.log, profile.Options{
		ResetPerMinute:   cfg.ResetPerMinute,
		ExposeResetToken: cfg.ExposeResetCode,
		Sessions:         d.sessions,
	}).RegisterRoutes(api, protected)

	links.RegisterRedirect(router)

	return router
}
