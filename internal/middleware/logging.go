package middleware

import (
  "time"

  "github.com/gin-gonic/gin"

  "github.com/gakusta-org/gakusta-backend/internal/errordata"
  "github.com/gakusta-org/gakusta-backend/internal/logger"
  "github.com/gakusta-org/gakusta-backend/internal/requestdata"
)

func RequestLogger(log *logger.Logger) gin.HandlerFunc {
  accessLog := log.With("middleware", "RequestLogger")
  return func(c *gin.Context) {
    start := time.Now()
    c.Next()

    ctx := c.Request.Context()
    status := c.Writer.Status()
    kv := []interface{}{
      "method", c.Request.Method,
      "path", c.Request.URL.Path,
      "status", status,
      "latency", time.Since(start),
      "clientIP", c.ClientIP(),
    }
    if rd := requestdata.GetRequestData(ctx); rd != nil && rd.UserID != "" {
      kv = append(kv, "userID", rd.UserID)
    }
    if ed := errordata.GetErrorData(ctx); ed != nil && ed.HasError() {
      kv = append(kv, "errorCode", ed.Code())
    }
    switch {
    case status >= 500:
      accessLog.Error("Request failed", kv...)
    case status >= 400:
      accessLog.Warn("Request rejected", kv...)
    default:
      accessLog.Info("Request served", kv...)
    }
  }
}
