package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/ivspro/tariff-import/internal/utils"
)

// HealthHandler reports service liveness and dependency reachability.
type HealthHandler struct {
	db    *sqlx.DB
	redis *redis.Client
}

// NewHealthHandler constructs a HealthHandler.
func NewHealthHandler(db *sqlx.DB, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient}
}

// GetHealth handles GET /v1/health
func (h *HealthHandler) GetHealth(c *gin.Context) {
	status := gin.H{"database": "ok", "redis": "ok"}
	healthy := true

	if err := h.db.PingContext(c.Request.Context()); err != nil {
		status["database"] = err.Error()
		healthy = false
	}
	if err := h.redis.Ping(c.Request.Context()).Err(); err != nil {
		status["redis"] = err.Error()
		healthy = false
	}

	if !healthy {
		utils.Error(c, 503, "UNHEALTHY", "One or more dependencies are down")
		return
	}
	utils.Success(c, 200, "Service healthy", status)
}
