package handlers

import (
  "time"

  "github.com/gin-gonic/gin"

  "github.com/gakusta-org/gakusta-backend/internal/logger"
  "github.com/gakusta-org/gakusta-backend/internal/services"
  "github.com/gakusta-org/gakusta-backend/internal/socket"
  "github.com/gakusta-org/gakusta-backend/internal/types"
)

type TeacherHandler struct {
  log              *logger.Logger
  hub              *socket.Hub
  codeService      services.CodeService
  reportingService services.ReportingService
}

func NewTeacherHandler(log *logger.Logger, hub *socket.Hub, codeService services.CodeService, reportingService services.ReportingService) *TeacherHandler {
  return &TeacherHandler{
    log:              log.With("handler", "TeacherHandler"),
    hub:              hub,
    codeService:      codeService,
    reportingService: reportingService,
  }
}

func (th *TeacherHandler) GetStats(c *gin.Context) {
  stats, students, err := th.reportingService.TeacherStats(c.Request.Context())
  if err != nil {
    respondError(c, th.log, err)
    return
  }
  respondOK(c, th.hub, gin.H{"stats": stats, "students": students})
}

func (th *TeacherHandler) ListCodes(c *gin.Context) {
  codes, err := th.codeService.ListCodes(c.Request.Context())
  if err != nil {
    respondError(c, th.log, err)
    return
  }
  respondOK(c, th.hub, gin.H{"codes": codes})
}

func (th *TeacherHandler) GenerateCode(c *gin.Context) {
  var req struct {
    Type         string     `json:"type" binding:"required,codetype"`
    StampImageID *string    `json:"stampImageId"`
  }
  if err := bindJSON(c, &req, "Invalid code type"); err != nil {
    respondError(c, th.log, err)
    return
  }
  issued, err := th.codeService.IssueCode(c.Request.Context(), currentUser(c).UserID, types.CodeType(req.Type), req.StampImageID)
  if err != nil {
    respondError(c, th.log, err)
    return
  }
  respondOK(c, th.hub, gin.H{
    "success":   true,
    "code":      issued.Code,
    "expiresAt": issued.ExpiresAt.UTC().Format(time.RFC3339Nano),
  })
}

func (th *TeacherHandler) GetStudent(c *gin.Context) {
  detail, err := th.reportingService.StudentDetail(c.Request.Context(), c.Param("id"))
  if err != nil {
    respondError(c, th.log, err)
    return
  }
  respondOK(c, th.hub, detail)
}
