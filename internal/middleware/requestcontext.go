package middleware

import (
  "context"
  "errors"
  "time"

  "github.com/gin-gonic/gin"

  "github.com/gakusta-org/gakusta-backend/internal/errordata"
  "github.com/gakusta-org/gakusta-backend/internal/eventdata"
)

// AttachRequestContext gives every request its own error and event slots.
func AttachRequestContext() gin.HandlerFunc {
  return func(c *gin.Context) {
    ctx := c.Request.Context()
    ctx = eventdata.WithEventData(ctx)
    ctx = errordata.WithErrorData(ctx)
    c.Request = c.Request.WithContext(ctx)
    c.Next()
  }
}

var errRequestTimeout = errors.New("request timed out waiting for the database")

// RequestTimeout bounds how long a request may wait on the database; gorm
// honors the deadline while acquiring a pooled connection.
func RequestTimeout(d time.Duration) gin.HandlerFunc {
  return func(c *gin.Context) {
    if d <= 0 {
      c.Next()
      return
    }
    ctx, cancel := context.WithTimeoutCause(c.Request.Context(), d, errRequestTimeout)
    defer cancel()
    c.Request = c.Request.WithContext(ctx)
    c.Next()
  }
}
