package handlers

import (
  "context"
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/gorilla/websocket"

  "github.com/gakusta-org/gakusta-backend/internal/apperrors"
  "github.com/gakusta-org/gakusta-backend/internal/logger"
  "github.com/gakusta-org/gakusta-backend/internal/socket"
)

var upgrader = websocket.Upgrader{
  CheckOrigin: func(r *http.Request) bool {
    return true
  },
}

// TeacherWsHandler streams the dashboard feed. Teachers may additionally
// follow any student's channel.
func TeacherWsHandler(hub *socket.Hub, log *logger.Logger) gin.HandlerFunc {
  return wsHandler(hub, log.With("handler", "TeacherWs"), func(uid string) ([]string, func(string) bool) {
    return []string{socket.TeachersChannel}, func(ch string) bool {
      return ch == socket.TeachersChannel || socket.IsStudentChannel(ch)
    }
  })
}

// StudentWsHandler streams a student's own events only.
func StudentWsHandler(hub *socket.Hub, log *logger.Logger) gin.HandlerFunc {
  return wsHandler(hub, log.With("handler", "StudentWs"), func(uid string) ([]string, func(string) bool) {
    own := socket.StudentChannel(uid)
    return []string{own}, func(ch string) bool { return ch == own }
  })
}

func wsHandler(hub *socket.Hub, log *logger.Logger, channelsFor func(uid string) ([]string, func(string) bool)) gin.HandlerFunc {
  return func(c *gin.Context) {
    rd := currentUser(c)
    if rd.UserID == "" {
      respondError(c, log, apperrors.Unauthenticated("No token provided"))
      return
    }
    conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
    if err != nil {
      log.Warn("Failed to upgrade to websocket", "error", err)
      return
    }

    // the request context ends with this handler; the connection outlives it
    ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
    channels, allow := channelsFor(rd.UserID)
    client := socket.NewClient(conn, hub, rd.UserID, allow, cancel, log)
    hub.Subscribe(client, channels)

    go client.WriteLoop(ctx)
    go client.ReadLoop(ctx)
  }
}
