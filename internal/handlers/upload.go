package handlers

import (
  "errors"
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/gakusta-org/gakusta-backend/internal/apperrors"
  "github.com/gakusta-org/gakusta-backend/internal/logger"
  "github.com/gakusta-org/gakusta-backend/internal/services"
)

// multipart overhead allowed on top of the file itself
const uploadFormSlack = 1 << 20

type UploadHandler struct {
  log           *logger.Logger
  uploadService services.UploadService
}

func NewUploadHandler(log *logger.Logger, uploadService services.UploadService) *UploadHandler {
  return &UploadHandler{log: log.With("handler", "UploadHandler"), uploadService: uploadService}
}

func (uh *UploadHandler) UploadStampImage(c *gin.Context) {
  c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, services.MaxUploadBytes+uploadFormSlack)
  fh, err := c.FormFile("file")
  if err != nil {
    var maxErr *http.MaxBytesError
    if errors.As(err, &maxErr) {
      respondError(c, uh.log, apperrors.Validation(apperrors.CodeFileTooLarge, "File size must be less than 5MB"))
      return
    }
    respondError(c, uh.log, apperrors.Validation(apperrors.CodeMissingFields, "File is required"))
    return
  }
  fileName := c.PostForm("fileName")
  if fileName == "" {
    fileName = fh.Filename
  }

  f, err := fh.Open()
  if err != nil {
    respondError(c, uh.log, apperrors.Internal("failed to open upload", err))
    return
  }
  defer f.Close()

  res, err := uh.uploadService.UploadStampImage(c.Request.Context(), fileName, fh.Header.Get("Content-Type"), fh.Size, f)
  if err != nil {
    respondError(c, uh.log, err)
    return
  }
  respondOK(c, nil, gin.H{"success": true, "imagePath": res.ImagePath, "fileName": res.FileName})
}
