package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/goldvein/goldvein/internal/config"
	"github.com/goldvein/goldvein/internal/database"
	"github.com/goldvein/goldvein/internal/handlers"
	"github.com/goldvein/goldvein/internal/referral"
	"github.com/goldvein/goldvein/internal/telegram"

	"github.com/gin-gonic/gin"
)

const AppVersion = "1.0.0"

func main() {
	httpOnly := flag.Bool("http-only", false, "Serve plain HTTP (for running behind a reverse proxy)")
	selfSigned := flag.Bool("self-signed", false, "Serve HTTPS with a generated self-signed certificate")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg.HTTPOnly = *httpOnly

	logger.Info(fmt.Sprintf("Goldvein server v%s", AppVersion), "environment", cfg.Environment)

	if cfg.BotToken == "" {
		if cfg.IsProduction() {
			logger.Warn("TELEGRAM_BOT_TOKEN is not set; all API requests will be rejected")
		} else if cfg.AllowUnsafeAuth {
			logger.Warn("unsafe auth enabled: init data is NOT verified")
		}
	}

	db, err := database.Initialize(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to initialize database", "error", err, "path", cfg.DatabasePath)
		os.Exit(1)
	}

	h := handlers.New(
		cfg,
		referral.NewStore(db),
		telegram.NewVerifier(cfg.BotToken),
		logger,
	)

	router := setupRouter(h, cfg, logger)
	startServer(router, cfg, *selfSigned, logger)
}

func setupRouter(h *handlers.Handlers, cfg *config.Config, logger *slog.Logger) *gin.Engine {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(slogGinLogger(logger))
	router.Use(h.Recovery())
	router.Use(corsMiddleware(cfg))

	router.GET("/healthz", h.Healthz)

	api := router.Group("/api/referrals")
	api.Use(h.TelegramAuth())
	{
		api.POST("/generate", h.GenerateCode)
		api.POST("/validate", h.ValidateReferral)
		api.GET("/stats", h.ReferralStats)
		api.POST("/reward", h.AwardReward)
	}

	return router
}

func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := "*"
		if cfg.FrontendURI != "" {
			origin = cfg.FrontendURI
		}
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Origin, X-Telegram-Init-Data, X-Debug-Telegram-User")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func startServer(router *gin.Engine, cfg *config.Config, selfSigned bool, logger *slog.Logger) {
	if cfg.HTTPOnly {
		server := newHTTPServer(":"+cfg.HTTPPort, router, nil)
		logger.Info("HTTP server starting", "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if selfSigned {
		startSelfSignedHTTPS(router, cfg, logger)
		return
	}

	startAutocertHTTPS(router, cfg, logger)
}

func newHTTPServer(addr string, handler http.Handler, errorLog *log.Logger) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     errorLog,
	}
}
