package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Strizzyy/LegalSaathi-sub001/config"
	"github.com/Strizzyy/LegalSaathi-sub001/handler"
	"github.com/Strizzyy/LegalSaathi-sub001/middleware"
	"github.com/Strizzyy/LegalSaathi-sub001/pkg/logger"
	"github.com/Strizzyy/LegalSaathi-sub001/service"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("configuration loaded successfully")

	// Initialize storage
	db, err := service.OpenDB(cfg.Store.Path)
	if err != nil {
		slog.Error("failed to open review database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store := service.NewReviewStore(db)
	experts := service.NewExpertStore(db)
	if err := experts.Seed(cfg.Experts); err != nil {
		slog.Error("failed to seed expert registry", "error", err)
		os.Exit(1)
	}

	// Initialize document archive
	archive, err := service.NewArchiveService(&cfg.Archive)
	if err != nil {
		slog.Error("failed to initialize document archive", "error", err)
		os.Exit(1)
	}
	if err := archive.EnsureBucket(context.Background()); err != nil {
		slog.Error("failed to ensure archive bucket", "error", err)
		os.Exit(1)
	}

	// Start the queue escalation job
	escalator := service.NewEscalator(store, archive, &cfg.Queue)
	escalator.Start()
	defer escalator.Stop()

	// Initialize handlers
	authHandler := handler.NewAuthHandler(cfg, experts)
	reviewHandler := handler.NewReviewHandler(store, experts, archive)
	adminHandler := handler.NewAdminHandler(experts)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New() // Use New() instead of Default() to avoid default middleware

	// Add custom middleware
	router.Use(middleware.RequestID())                 // Request ID for tracing
	router.Use(middleware.Recovery())                  // Panic recovery
	router.Use(middleware.RequestLogger())             // Access logging
	router.Use(middleware.CORS())                      // CORS
	router.Use(middleware.RateLimit(100, time.Minute)) // Rate limiting: 100 requests per minute

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// Public routes
	api := router.Group("/api/expert")
	{
		api.POST("/auth/login", authHandler.Login)
		api.POST("/review/submit", reviewHandler.Submit)
	}

	// Expert routes
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		protected.GET("/auth/me", authHandler.Me)
		protected.GET("/queue/list", reviewHandler.ListQueue)
		protected.GET("/queue/next", reviewHandler.Next)
		protected.GET("/queue/stats", reviewHandler.Stats)
		protected.POST("/review/:id/assign", reviewHandler.Assign)
		protected.GET("/review/:id/preview", reviewHandler.Preview)
		protected.GET("/review/:id/document", reviewHandler.Document)
		protected.POST("/review/:id/complete", reviewHandler.Complete)
		protected.POST("/review/:id/cancel", reviewHandler.Cancel)
	}

	// Admin routes
	admin := protected.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	{
		admin.GET("/experts", adminHandler.ListExperts)
		admin.POST("/assign-role", adminHandler.AssignRole)
		admin.DELETE("/remove-role/:uid", adminHandler.RemoveRole)
	}

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}
