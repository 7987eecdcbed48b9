package handlers

import (
  "github.com/gin-gonic/gin"

  "github.com/gakusta-org/gakusta-backend/internal/logger"
  "github.com/gakusta-org/gakusta-backend/internal/services"
)

type AuthHandler struct {
  log             *logger.Logger
  authService     services.AuthService
}

func NewAuthHandler(log *logger.Logger, authService services.AuthService) *AuthHandler {
  return &AuthHandler{log: log.With("handler", "AuthHandler"), authService: authService}
}

func principal(c *gin.Context) *services.Principal {
  rd := currentUser(c)
  if rd.UserID == "" {
    return nil
  }
  return &services.Principal{UID: rd.UserID, Email: rd.Email}
}

func (ah *AuthHandler) RegisterStudent(c *gin.Context) {
  var req struct {
    UID         string          `json:"uid"`
    Email       string          `json:"email"`
    Name        string          `json:"name"`
    Major       string          `json:"major"`
    PhoneNumber *string         `json:"phoneNumber,omitempty"`
  }
  if err := bindJSON(c, &req, "Missing required fields"); err != nil {
    respondError(c, ah.log, err)
    return
  }
  _, err := ah.authService.RegisterStudent(c.Request.Context(), principal(c), services.StudentRegistration{
    UID:         req.UID,
    Email:       req.Email,
    Name:        req.Name,
    Major:       req.Major,
    PhoneNumber: req.PhoneNumber,
  })
  if err != nil {
    respondError(c, ah.log, err)
    return
  }
  respondOK(c, nil, gin.H{"success": true})
}

func (ah *AuthHandler) RegisterTeacher(c *gin.Context) {
  var req struct {
    UID                  string     `json:"uid"`
    Email                string     `json:"email"`
    Name                 string     `json:"name"`
    RegistrationPassword string     `json:"registrationPassword"`
    PhoneNumber          *string    `json:"phoneNumber,omitempty"`
  }
  if err := bindJSON(c, &req, "Missing required fields"); err != nil {
    respondError(c, ah.log, err)
    return
  }
  _, err := ah.authService.RegisterTeacher(c.Request.Context(), principal(c), services.TeacherRegistration{
    UID:                  req.UID,
    Email:                req.Email,
    Name:                 req.Name,
    RegistrationPassword: req.RegistrationPassword,
    PhoneNumber:          req.PhoneNumber,
  })
  if err != nil {
    respondError(c, ah.log, err)
    return
  }
  respondOK(c, nil, gin.H{"success": true})
}

func (ah *AuthHandler) GetUserRole(c *gin.Context) {
  role, err := ah.authService.GetUserRole(c.Request.Context(), currentUser(c).UserID)
  if err != nil {
    respondError(c, ah.log, err)
    return
  }
  respondOK(c, nil, gin.H{"role": role})
}
