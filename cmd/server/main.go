package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tunehaven/tunehaven/internal/auth"
	"github.com/tunehaven/tunehaven/internal/config"
	"github.com/tunehaven/tunehaven/internal/logger"
	"github.com/tunehaven/tunehaven/internal/upload"
	"github.com/tunehaven/tunehaven/internal/validate"
	"github.com/tunehaven/tunehaven/pkg/database"
	"github.com/tunehaven/tunehaven/pkg/events"
	"github.com/tunehaven/tunehaven/pkg/models"
	"github.com/tunehaven/tunehaven/pkg/redis"
	"github.com/tunehaven/tunehaven/pkg/storage"
)

func main() {
	cfg, fromFile := config.Load()

	zl, err := logger.New(cfg.LogLevel, !cfg.Production())
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zl.Sync() //nolint:errcheck

	if !fromFile {
		zl.Info("no .env file found, using process environment")
	}
	if err := cfg.Validate(); err != nil {
		zl.Fatal("invalid configuration", zap.Error(err))
	}
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	validate.Register()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(cfg, zl)
	if err != nil {
		return err
	}
	defer closeStore()

	sessions, closeSessions, err := openSessions(ctx, cfg, zl)
	if err != nil {
		return err
	}
	defer closeSessions()

	var publisher events.Publisher = events.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaClient(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		zl.Info("publishing events to kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}
	defer publisher.Close()

	files, err := upload.NewStore(cfg.UploadDir, cfg.MaxAudioSizeMB<<20, cfg.MaxImageSizeMB<<20)
	if err != nil {
		return err
	}

	if err := seedUsers(ctx, store, cfg); err != nil {
		return err
	}

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: newRouter(cfg, deps{
			store:     store,
			sessions:  sessions,
			files:     files,
			publisher: publisher,
			log:       zl,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		zl.Info("server starting", zap.String("port", cfg.Port), zap.String("storage", cfg.StorageDriver))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(cfg *config.Config, zl *zap.Logger) (storage.Store, func(), error) {
	if cfg.StorageDriver != "mysql" {
		return storage.NewMemory(), func() {}, nil
	}
	db, err := database.NewMySQLDB(database.Config{
		Host:     cfg.MySQL.Host,
		Port:     cfg.MySQL.Port,
		User:     cfg.MySQL.User,
		Password: cfg.MySQL.Password,
		Database: cfg.MySQL.Database,
		Debug:    !cfg.Production(),
	}, zl)
	if err != nil {
		return nil, nil, err
	}
	return db, func() {
		if err := db.Close(); err != nil {
			zl.Warn("closing database", zap.Error(err))
		}
	}, nil
}

func openSessions(ctx context.Context, cfg *config.Config, zl *zap.Logger) (auth.SessionStore, func(), error) {
	addr := cfg.Redis.Addr()
	if addr == "" {
		return auth.NewMemorySessions(), func() {}, nil
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	store := redis.NewSessionStore(client)
	if err := store.Ping(ctx); err != nil {
		client.Close()
		return nil, nil, err
	}
	zl.Info("using redis sessions", zap.String("addr", addr))
	closeFn := func() {
		if err := store.Close(); err != nil {
			zl.Warn("closing redis", zap.Error(err))
		}
	}
	return auth.RedisSessions{SessionStore: store}, closeFn, nil
}

// seedUsers creates the admin and demo accounts unless they already exist.
func seedUsers(ctx context.Context, store storage.UserStore, cfg *config.Config) error {
	seeds := []models.NewUser{
		{Username: cfg.AdminUsername, Password: cfg.AdminPassword, Email: cfg.AdminUsername + "@tunehaven.local", DisplayName: "Administrator", IsAdmin: true},
		{Username: cfg.DemoUsername, Password: cfg.DemoPassword, Email: cfg.DemoUsername + "@tunehaven.local", DisplayName: "Demo User"},
	}
	for _, in := range seeds {
		if _, err := store.CreateUser(ctx, in); err != nil && !errors.Is(err, storage.ErrDuplicate) {
			return err
		}
	}
	return nil
}
