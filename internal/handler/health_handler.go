package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/scenekit/builder-backend/pkg/cache"
	"gorm.io/gorm"
)

// HealthHandler reports liveness of the API and its backing stores
type HealthHandler struct {
	db    *gorm.DB
	cache cache.Service
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db *gorm.DB, cacheSvc cache.Service) *HealthHandler {
	return &HealthHandler{db: db, cache: cacheSvc}
}

// Health handles GET /health. A failing cache degrades the report but the
// service stays healthy.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{"database": "ok", "cache": "disabled"}
	healthy := true

	if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		checks["database"] = "down"
		healthy = false
	}
	if h.cache != nil && h.cache.IsAvailable() {
		checks["cache"] = "ok"
		if err := h.cache.Ping(ctx); err != nil {
			checks["cache"] = "degraded"
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"ok":      healthy,
		"service": "builder-backend",
		"checks":  checks,
		"time":    time.Now().Unix(),
	})
}
