package handlers

import (
  "github.com/gin-gonic/gin"

  "github.com/gakusta-org/gakusta-backend/internal/logger"
  "github.com/gakusta-org/gakusta-backend/internal/services"
  "github.com/gakusta-org/gakusta-backend/internal/socket"
)

type StudentHandler struct {
  log               *logger.Logger
  hub               *socket.Hub
  redemptionService services.RedemptionService
  reportingService  services.ReportingService
}

func NewStudentHandler(log *logger.Logger, hub *socket.Hub, redemptionService services.RedemptionService, reportingService services.ReportingService) *StudentHandler {
  return &StudentHandler{
    log:               log.With("handler", "StudentHandler"),
    hub:               hub,
    redemptionService: redemptionService,
    reportingService:  reportingService,
  }
}

type redeemRequest struct {
  Code string `json:"code" binding:"required"`
}

func (sh *StudentHandler) GetCards(c *gin.Context) {
  cards, err := sh.reportingService.StudentCards(c.Request.Context(), currentUser(c).UserID)
  if err != nil {
    respondError(c, sh.log, err)
    return
  }
  respondOK(c, sh.hub, gin.H{"cards": cards})
}

func (sh *StudentHandler) GetCollection(c *gin.Context) {
  gifts, err := sh.reportingService.StudentCollection(c.Request.Context(), currentUser(c).UserID)
  if err != nil {
    respondError(c, sh.log, err)
    return
  }
  respondOK(c, sh.hub, gin.H{"gifts": gifts})
}

func (sh *StudentHandler) UseStampCode(c *gin.Context) {
  var req redeemRequest
  if err := bindJSON(c, &req, "Code is required"); err != nil {
    respondError(c, sh.log, err)
    return
  }
  res, err := sh.redemptionService.RedeemStampCode(c.Request.Context(), currentUser(c).UserID, req.Code)
  if err != nil {
    respondError(c, sh.log, err)
    return
  }
  respondOK(c, sh.hub, gin.H{
    "success":        true,
    "message":        "Stamp added successfully",
    "cardCompleted":  res.CardCompleted,
    "newCardCreated": res.NewCardCreated,
  })
}

func (sh *StudentHandler) ExchangeGift(c *gin.Context) {
  var req redeemRequest
  if err := bindJSON(c, &req, "Code is required"); err != nil {
    respondError(c, sh.log, err)
    return
  }
  res, err := sh.redemptionService.RedeemGiftCode(c.Request.Context(), currentUser(c).UserID, req.Code)
  if err != nil {
    respondError(c, sh.log, err)
    return
  }
  respondOK(c, sh.hub, gin.H{
    "success":  true,
    "message":  "Gift exchanged successfully",
    "giftName": res.GiftName,
  })
}
