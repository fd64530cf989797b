package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/voicebridge/voicebridge/adapters/heygen"
	"github.com/voicebridge/voicebridge/adapters/stt"
	"github.com/voicebridge/voicebridge/domain/repositories"
	"github.com/voicebridge/voicebridge/internal/api"
	"github.com/voicebridge/voicebridge/internal/auth"
	"github.com/voicebridge/voicebridge/internal/config"
	"github.com/voicebridge/voicebridge/internal/websocket"
	"github.com/voicebridge/voicebridge/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err == nil {
		logger.Info("Loaded environment from .env")
	}

	cfg := config.Load()

	// Avatar vendor client
	avatarAPI, err := heygen.NewClient(heygen.Config{
		APIKey:     cfg.HeyGenAPIKey,
		APIBaseURL: cfg.HeyGenAPIURL,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create avatar vendor client", zap.Error(err))
	}

	// Avatar credential table; optional for deployments that never issue
	// streaming tokens.
	creds, err := config.LoadAvatarCredentials(cfg.AvatarCredentialsPath)
	if err != nil {
		logger.Warn("Avatar credential table unavailable, streaming tokens disabled",
			zap.String("path", cfg.AvatarCredentialsPath),
			zap.Error(err))
		creds, _ = config.ParseAvatarCredentials(nil)
	}

	// Session lifecycle service and its expiry sweep
	avatarService := usecase.NewAvatarService(avatarAPI, creds, usecase.AvatarServiceConfig{
		BypassToken: cfg.BypassToken,
	}, logger)

	cleanup := usecase.NewCleanupService(avatarService, cfg.CleanupInterval, logger)
	cleanup.Start()
	defer cleanup.Stop()

	transport, err := usecase.NewTransport(cfg.AvatarTransport, cfg.IframeBaseURL, avatarService)
	if err != nil {
		logger.Fatal("Failed to select avatar transport", zap.Error(err))
	}

	// Speech recognition adapter
	var speechToText repositories.SpeechToText
	switch cfg.STTProvider {
	case "mock":
		speechToText = stt.NewMockSpeechToText(logger)
	default:
		speechToText = stt.NewGoogleSpeechToText(logger)
	}

	// Gateways
	sttGateway := websocket.NewSTTGateway(speechToText, cfg.DefaultLanguage, logger)
	avatarHub := websocket.NewAvatarHub(avatarService, transport, logger)
	go avatarHub.Run()

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	issuer := auth.NewTokenIssuer(cfg.JWTSecret)
	handler := api.NewHandler(avatarService, transport, issuer, logger)
	api.InitRoutes(e, handler, sttGateway, avatarHub, logger)

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("port", cfg.Port),
		zap.String("sttProvider", cfg.STTProvider),
		zap.String("avatarTransport", transport.Kind()))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
