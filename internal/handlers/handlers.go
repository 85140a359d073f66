package handlers

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/goldvein/goldvein/internal/config"
	"github.com/goldvein/goldvein/internal/referral"
	"github.com/goldvein/goldvein/internal/telegram"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	config   *config.Config
	store    *referral.Store
	verifier *telegram.Verifier
	logger   *slog.Logger
}

func New(cfg *config.Config, store *referral.Store, verifier *telegram.Verifier, logger *slog.Logger) *Handlers {
	return &Handlers{
		config:   cfg,
		store:    store,
		verifier: verifier,
		logger:   logger,
	}
}

func (h *Handlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Recovery turns panics into a generic JSON 500 instead of a dropped
// connection.
func (h *Handlers) Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("panic recovered",
					"panic", r,
					"path", c.Request.URL.Path,
					"stack", string(debug.Stack()),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
		}()
		c.Next()
	}
}

// internalError hides the failure behind a generic message; the single-line
// detail is the error text already carried by the error value.
func (h *Handlers) internalError(c *gin.Context, err error) {
	h.logger.Error("request failed",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"error", err,
	)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":  "internal error",
		"detail": err.Error(),
	})
}
