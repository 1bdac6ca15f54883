package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shrimpcod/RealTimeChat/internal/config"
	"github.com/shrimpcod/RealTimeChat/internal/database"
	"github.com/shrimpcod/RealTimeChat/internal/handlers"
	"github.com/shrimpcod/RealTimeChat/internal/middleware"
	"github.com/shrimpcod/RealTimeChat/internal/realtime"
	"github.com/shrimpcod/RealTimeChat/internal/routes"
	"github.com/shrimpcod/RealTimeChat/internal/services"
	"github.com/shrimpcod/RealTimeChat/internal/storage"
	"github.com/shrimpcod/RealTimeChat/internal/telemetry"
	"github.com/shrimpcod/RealTimeChat/pkg/logger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"
)

func main() {
	// 0. Load Config & Initialize Logger
	config.LoadConfig()
	cfg := config.AppConfig
	logger.Init(cfg.Env)
	logger.Info().Str("environment", cfg.Env).Msg("Starting RealTimeChat backend...")

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := telemetry.Init(ctx, cfg)

	// 1. Store
	database.Connect()
	if err := database.Migrate(database.DB); err != nil {
		logger.Fatal().Err(err).Msg("Failed to migrate database")
	}
	logger.Info().Msg("Database migrations complete")

	rdb := database.InitRedis(ctx)
	redisStore := database.NewRedisStore(rdb)

	var avatars services.ObjectStore
	s3Store, err := storage.NewS3Store(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to init avatar storage")
	}
	if s3Store != nil {
		avatars = s3Store
	} else {
		logger.Warn().Msg("S3_BUCKET not set, avatar upload disabled")
	}

	// 2. Core
	sessions := realtime.NewSessionManager()
	engine := services.NewChatEngine(database.DB, sessions)
	presence := services.NewPresenceTracker(database.DB, sessions)
	accounts := services.NewAccountService(database.DB, redisStore, avatars, presence)
	if _, err := presence.ResetAll(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to reset presence")
	}

	socketServer := realtime.NewSocketServer(realtime.SocketDeps{
		Sessions:       sessions,
		Engine:         engine,
		Presence:       presence,
		Verifier:       accounts,
		Limiter:        database.NewMessageLimiter(redisStore, cfg.SocketMessageLimit, cfg.SocketMessageWindow()),
		AllowedOrigins: middleware.AllowedOrigins(),
	})

	// 3. Router
	r := gin.New()
	r.Use(otelgin.Middleware(telemetry.ServiceName))
	r.Use(middleware.LoggingMiddleware())
	r.Use(middleware.ErrorHandlerMiddleware())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORSMiddleware())

	// socket.io has its own per-user limit
	general := middleware.GeneralRateLimit()
	r.Use(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/socket.io/") {
			c.Next()
			return
		}
		general(c)
	})

	routes.Register(r, routes.Handlers{
		Auth:   handlers.NewAuthHandler(accounts),
		Users:  handlers.NewUserHandler(accounts),
		Chats:  handlers.NewChatHandler(engine),
		Health: handlers.NewHealthHandler(database.DB, rdb),
	}, middleware.AuthMiddleware(accounts))

	r.GET("/socket.io/*any", socketServer.Handler())
	r.POST("/socket.io/*any", socketServer.Handler())

	// 4. Serve until a signal arrives
	port := cfg.Port
	if port == "" {
		port = "5000"
	}
	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return socketServer.Run(gctx)
	})
	g.Go(func() error {
		logger.Info().Str("port", port).Str("env", cfg.Env).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down server gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Server forced to shutdown")
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("Tracer shutdown failed")
		}
		if rdb != nil {
			_ = rdb.Close()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("Server stopped with error")
	}
	logger.Info().Msg("Server exited gracefully")
}
