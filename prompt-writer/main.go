package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err == nil {
		logrus.Info("✓ .env loaded")
	}

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetLevel(logrus.InfoLevel)

	cfg := LoadConfig()
	if cfg.APIKey == "" {
		log.Fatal("OPENROUTER_API_KEY environment variable not set")
	}
	if cfg.IsDevelopment() {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	templates := NewTemplateService(cfg.TemplatesDir)
	if err := templates.LoadAllTemplates(); err != nil {
		log.Fatalf("Failed to load templates: %v", err)
	}

	ai := NewOpenRouterService(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.CallTimeout)
	retrier := NewRetrier(cfg.MaxRetries, cfg.RetryBaseDelay)
	recovery := NewJSONRecovery(ai)
	builder := NewPromptBuilder(templates)
	service := NewSegmentService(ai, builder, recovery, retrier, cfg.SequentialThreshold, cfg.SegmentConcurrency)

	r := gin.Default()
	r.Use(corsMiddleware())
	r.Use(rateLimitMiddleware(newRateLimiter(cfg.RateLimitWindow, cfg.RateLimitMax)))

	r.GET("/health", handleHealth)
	r.POST("/api/generate-prompts", handleGeneratePrompts(service, cfg))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		logrus.Infof("🎬 Video Prompt Automation API starting on port %s (model: %s)", cfg.Port, cfg.Model)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForShutdown(srv, quit, cfg.RouteDeadline)
}

// waitForShutdown blocks until a termination signal arrives, then drains
// in-flight requests before returning. The drain budget matches the route
// deadline so a request accepted just before the signal can still finish.
func waitForShutdown(srv *http.Server, quit <-chan os.Signal, drain time.Duration) {
	<-quit
	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), drain)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
	logrus.Info("Server stopped")
}
