package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

const healthPingTimeout = 3 * time.Second

// HealthHandler отвечает на проверки живости балансировщика.
type HealthHandler struct {
	db *sqlx.DB
}

// NewHealthHandler создаёт handler. db == nil означает хранилище в памяти.
func NewHealthHandler(db *sqlx.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// HealthResponse ответ GET /health.
type HealthResponse struct {
	Status     string            `json:"status"`
	ServerTime time.Time         `json:"server_time"`
	Checks     map[string]string `json:"checks"`
}

// Health GET /health. 503, если Postgres не отвечает.
func (h *HealthHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:     "healthy",
		ServerTime: time.Now().UTC(),
		Checks:     map[string]string{},
	}

	if h.db == nil {
		resp.Checks["storage"] = "memory"
		c.JSON(http.StatusOK, resp)
		return
	}

	resp.Checks["storage"] = "postgres"
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		resp.Status = "unhealthy"
		resp.Checks["database"] = "unreachable"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	resp.Checks["database"] = "ok"

	// Под advisory-блокировками пул легко исчерпать, поэтому занятость видна отдельно.
	if stats := h.db.Stats(); stats.MaxOpenConnections > 0 && stats.InUse >= stats.MaxOpenConnections {
		resp.Checks["connection_pool"] = "saturated"
	} else {
		resp.Checks["connection_pool"] = "ok"
	}

	c.JSON(http.StatusOK, resp)
}
