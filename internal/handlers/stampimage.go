package handlers

import (
  "fmt"

  "github.com/gin-gonic/gin"

  "github.com/gakusta-org/gakusta-backend/internal/logger"
  "github.com/gakusta-org/gakusta-backend/internal/services"
  "github.com/gakusta-org/gakusta-backend/internal/socket"
)

type StampImageHandler struct {
  log               *logger.Logger
  hub               *socket.Hub
  stampImageService services.StampImageService
}

func NewStampImageHandler(log *logger.Logger, hub *socket.Hub, stampImageService services.StampImageService) *StampImageHandler {
  return &StampImageHandler{
    log:               log.With("handler", "StampImageHandler"),
    hub:               hub,
    stampImageService: stampImageService,
  }
}

func (sh *StampImageHandler) ListStampImages(c *gin.Context) {
  images, err := sh.stampImageService.ListStampImages(c.Request.Context())
  if err != nil {
    respondError(c, sh.log, err)
    return
  }
  respondOK(c, sh.hub, gin.H{"stampImages": images})
}

func (sh *StampImageHandler) CreateStampImage(c *gin.Context) {
  var req struct {
    Name     string `json:"name" binding:"required"`
    ImageURL string `json:"imageUrl" binding:"required"`
  }
  if err := bindJSON(c, &req, "Name and image URL are required"); err != nil {
    respondError(c, sh.log, err)
    return
  }
  img, err := sh.stampImageService.CreateStampImage(c.Request.Context(), currentUser(c).UserID, req.Name, req.ImageURL)
  if err != nil {
    respondError(c, sh.log, err)
    return
  }
  respondOK(c, sh.hub, gin.H{"success": true, "stampImageId": img.ID})
}

func (sh *StampImageHandler) UpdateStampImage(c *gin.Context) {
  var req struct {
    IsActive *bool `json:"isActive" binding:"required"`
  }
  if err := bindJSON(c, &req, "isActive field is required"); err != nil {
    respondError(c, sh.log, err)
    return
  }
  if err := sh.stampImageService.SetActive(c.Request.Context(), c.Param("id"), *req.IsActive); err != nil {
    respondError(c, sh.log, err)
    return
  }
  state := "deactivated"
  if *req.IsActive {
    state = "activated"
  }
  respondOK(c, sh.hub, gin.H{"success": true, "message": fmt.Sprintf("Stamp image %s successfully", state)})
}

func (sh *StampImageHandler) GenerateStampImage(c *gin.Context) {
  var req struct {
    Name string `json:"name" binding:"required"`
  }
  if err := bindJSON(c, &req, "Name is required"); err != nil {
    respondError(c, sh.log, err)
    return
  }
  img, err := sh.stampImageService.GenerateStampImage(c.Request.Context(), currentUser(c).UserID, req.Name)
  if err != nil {
    respondError(c, sh.log, err)
    return
  }
  respondOK(c, sh.hub, gin.H{"success": true, "stampImageId": img.ID, "imageUrl": img.ImageURL})
}
