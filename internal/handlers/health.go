package handlers

import (
  "context"
  "net/http"
  "time"

  "github.com/gin-gonic/gin"
  "github.com/redis/go-redis/v9"

  "github.com/gakusta-org/gakusta-backend/internal/db"
)

type HealthHandler struct {
  database    *db.Database
  redisClient *redis.Client
}

// redisClient may be nil when Redis is not configured.
func NewHealthHandler(database *db.Database, redisClient *redis.Client) *HealthHandler {
  return &HealthHandler{database: database, redisClient: redisClient}
}

func (hh *HealthHandler) Healthz(c *gin.Context) {
  ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
  defer cancel()

  status, dbState, redisState := "ok", "ok", "disabled"
  code := http.StatusOK
  if err := hh.database.Ping(ctx); err != nil {
    status, dbState = "degraded", err.Error()
    code = http.StatusServiceUnavailable
  }
  if hh.redisClient != nil {
    redisState = "ok"
    if err := hh.redisClient.Ping(ctx).Err(); err != nil {
      redisState = err.Error()
      if code == http.StatusOK {
        status = "degraded"
      }
    }
  }
  c.JSON(code, gin.H{"status": status, "db": dbState, "redis": redisState})
}
