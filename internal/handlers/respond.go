package handlers

import (
  "net/http"

  "github.com/getsentry/sentry-go"
  "github.com/gin-gonic/gin"

  "github.com/gakusta-org/gakusta-backend/internal/apperrors"
  "github.com/gakusta-org/gakusta-backend/internal/errordata"
  "github.com/gakusta-org/gakusta-backend/internal/eventdata"
  "github.com/gakusta-org/gakusta-backend/internal/logger"
  "github.com/gakusta-org/gakusta-backend/internal/requestdata"
  "github.com/gakusta-org/gakusta-backend/internal/socket"
)

// respondError writes {"error","code"}; infrastructure failures also carry
// "details" and are reported to Sentry.
func respondError(c *gin.Context, log *logger.Logger, err error) {
  appErr := apperrors.From(err)
  ctx := c.Request.Context()
  if ed := errordata.GetErrorData(ctx); ed != nil {
    ed.SetError(appErr)
  }
  status := apperrors.HTTPStatus(appErr)
  body := gin.H{"error": appErr.Message, "code": appErr.Code}
  if status >= http.StatusInternalServerError {
    log.Error("Request failed", "path", c.FullPath(), "code", appErr.Code, "error", err)
    if appErr.Err != nil {
      body["details"] = appErr.Err.Error()
    }
    captureException(c, err)
  }
  c.JSON(status, body)
}

func captureException(c *gin.Context, err error) {
  hub := sentry.CurrentHub().Clone()
  hub.WithScope(func(scope *sentry.Scope) {
    scope.SetTag("route", c.FullPath())
    scope.SetRequest(c.Request)
    if rd := requestdata.GetRequestData(c.Request.Context()); rd != nil && rd.UserID != "" {
      scope.SetUser(sentry.User{ID: rd.UserID})
    }
    hub.CaptureException(err)
  })
}

// respondOK broadcasts the events the request collected, now that its
// transaction has committed, then writes body.
func respondOK(c *gin.Context, hub *socket.Hub, body interface{}) {
  if ed := eventdata.GetEventData(c.Request.Context()); ed != nil && hub != nil {
    hub.BroadcastAll(c.Request.Context(), ed.Drain())
  }
  c.JSON(http.StatusOK, body)
}

func currentUser(c *gin.Context) *requestdata.RequestData {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil {
    return &requestdata.RequestData{}
  }
  return rd
}
