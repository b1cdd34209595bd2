package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/r0gig0r/double-take/config"
	"github.com/r0gig0r/double-take/internal/api/handlers"
	"github.com/r0gig0r/double-take/internal/api/middleware"
	"github.com/r0gig0r/double-take/internal/auth"
	"github.com/r0gig0r/double-take/internal/database"
	"github.com/r0gig0r/double-take/internal/db/repository"
	"github.com/r0gig0r/double-take/internal/integrations/compreface"
	"github.com/r0gig0r/double-take/internal/integrations/mqtt"
	"github.com/r0gig0r/double-take/internal/logger"
	"github.com/r0gig0r/double-take/internal/review"
	"github.com/r0gig0r/double-take/internal/server/sse"
	"github.com/r0gig0r/double-take/internal/storage"
	"github.com/r0gig0r/double-take/internal/training"
	"github.com/r0gig0r/double-take/internal/util/timezone"
)

const defaultConfigPath = "/config/config.yaml"

func main() {
	configPath := os.Getenv("DOUBLE_TAKE_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(cfg.Log); err != nil {
		log.Errorf("Failed to initialize logger completely: %v", err)
	}
	timezone.Initialize()

	log.Info("Initializing database...")
	if err := database.Init(cfg.DB); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	log.Info("Database initialization complete.")

	repo := repository.NewGormRepository(database.DB)
	authSvc := auth.NewService(cfg.Auth)
	media := storage.NewDiskStore(cfg.Media)
	provider := compreface.NewClient(cfg.CompreFace)

	hub := sse.NewHub()
	go hub.Run()

	publisher := mqtt.NewPublisher(cfg.MQTT)
	if cfg.MQTT.Enabled {
		if err := publisher.Start(); err != nil {
			log.Warnf("Failed to start MQTT publisher: %v. Continuing without MQTT.", err)
		}
	}
	defer publisher.Stop()

	enricher := review.NewEnricher(media, authSvc)
	defer enricher.Shutdown()

	reconciler := training.NewReconciler(repo, media, provider, hub, publisher)

	if log.GetLevel() < log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api", middleware.RequireAuth(authSvc))
	handlers.NewReviewHandler(repo, enricher, reconciler, provider, hub).RegisterRoutes(api)
	handlers.NewSystemHandler().RegisterRoutes(api)

	// Snapshot links carry their own storage-scoped token
	storageGroup := router.Group("/api", middleware.RequireScope(authSvc, auth.RouteStorage))
	handlers.NewStorageHandler(media).RegisterRoutes(storageGroup)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Infof("HTTP server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP server shutdown error: %v", err)
	}
	log.Info("Shutdown complete.")
}
