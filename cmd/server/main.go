package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatbot-console/internal/api"
	"chatbot-console/internal/auth"
	"chatbot-console/internal/backend"
	"chatbot-console/internal/config"
	"chatbot-console/internal/database"
	"chatbot-console/internal/graph"
	"chatbot-console/internal/logger"
	"chatbot-console/internal/store"
	"chatbot-console/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// openStore picks redis when REDIS_URL is set, the configured SQL database
// otherwise.
func openStore(ctx context.Context, cfg *config.Config, log *logrus.Entry) (store.Store, error) {
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, err
		}
		log.Info("Using redis store")
		return store.NewRedisStore(rdb, 0, nil), nil
	}

	if err := database.InitGorm(cfg, log); err != nil {
		return nil, err
	}
	return store.NewGormStore(database.GormDB, nil), nil
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.CheckAuth(); err != nil {
		logrus.Fatal(err)
	}
	if _, err := logger.Init(cfg.Log); err != nil {
		logrus.Fatalf("Failed to init logger: %v", err)
	}
	log := logger.For("server")

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openStore(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to open store")
	}

	hub := ws.NewHub(api.OriginChecker(cfg.CORSOrigins), logger.For("ws"))
	go hub.Run(ctx)

	deps := &api.Deps{
		Config: cfg,
		Backend: backend.NewClient(cfg.BackendURL,
			backend.WithTokenSource(auth.RequestTokens{}),
			backend.WithLogger(logger.For("backend"))),
		Graph: graph.NewClient(cfg.GraphAPIURL, nil),
		Hub:   hub,
		Store: s,
		Log:   logger.For("api"),
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: api.NewRouter(deps),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Server shutdown")
		}
	}()

	log.Infof("Server starting on port %s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("Failed to run server")
	}
}
