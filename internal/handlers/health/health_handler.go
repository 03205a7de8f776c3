package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Checker pings one dependency
type Checker interface {
	Ping(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// Handler serves liveness and readiness probes.
//
// GET /healthz answers as long as the process is up. GET /readyz pings
// every registered dependency and answers 503 when any of them fails.
type Handler struct {
	checkers  map[string]Checker
	timeout   time.Duration
	startTime time.Time
	logger    *zap.Logger
}

// NewHandler creates a new health handler
func NewHandler(timeout time.Duration, logger *zap.Logger) *Handler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Handler{
		checkers:  make(map[string]Checker),
		timeout:   timeout,
		startTime: time.Now(),
		logger:    logger,
	}
}

// Register adds a dependency to the readiness probe
func (h *Handler) Register(name string, checker Checker) {
	h.checkers[name] = checker
}

// RegisterRoutes mounts /healthz and /readyz on r
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/healthz", h.GetLiveness)
	r.GET("/readyz", h.GetReadiness)
}

// GetLiveness handles GET /healthz
func (h *Handler) GetLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(h.startTime).Round(time.Second).String(),
	})
}

// GetReadiness handles GET /readyz
func (h *Handler) GetReadiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	components := make(map[string]string, len(h.checkers))
	ready := true
	for name, checker := range h.checkers {
		if err := checker.Ping(ctx); err != nil {
			h.logger.Warn("dependency not ready", zap.String("dependency", name), zap.Error(err))
			components[name] = "unavailable"
			ready = false
			continue
		}
		components[name] = "ok"
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":     status,
		"components": components,
	})
}
