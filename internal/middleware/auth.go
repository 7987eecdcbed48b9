package middleware

import (
  "net/http"
  "strings"

  "github.com/gin-gonic/gin"

  "github.com/gakusta-org/gakusta-backend/internal/apperrors"
  "github.com/gakusta-org/gakusta-backend/internal/errordata"
  "github.com/gakusta-org/gakusta-backend/internal/logger"
  "github.com/gakusta-org/gakusta-backend/internal/repos"
  "github.com/gakusta-org/gakusta-backend/internal/requestdata"
  "github.com/gakusta-org/gakusta-backend/internal/services"
)

type AuthMiddleware struct {
  log               *logger.Logger
  verifier          services.IdentityVerifier
  userRepo          repos.UserRepo
}

func NewAuthMiddleware(log *logger.Logger, verifier services.IdentityVerifier, userRepo repos.UserRepo) *AuthMiddleware {
  middlewareLogger := log.With("middleware", "AuthMiddleware")
  return &AuthMiddleware{log: middlewareLogger, verifier: verifier, userRepo: userRepo}
}

// RequireAuth verifies the identity token and stores the principal in the
// request's requestdata. It does not require the principal to be registered.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
  return func(c *gin.Context) {
    tokenString := extractToken(c)
    if tokenString == "" {
      abortWithError(c, apperrors.Unauthenticated("No token provided"))
      return
    }
    principal, err := am.verifier.Verify(c.Request.Context(), tokenString)
    if err != nil {
      am.log.Debug("Token rejected", "error", err)
      abortWithError(c, apperrors.Unauthenticated("Invalid token"))
      return
    }
    ctx := requestdata.WithRequestData(c.Request.Context(), &requestdata.RequestData{
      TokenString: tokenString,
      UserID:      principal.UID,
      Email:       principal.Email,
    })
    c.Request = c.Request.WithContext(ctx)
    c.Next()
  }
}

// RequireRole must run after RequireAuth. It loads the caller's user row and
// rejects callers whose role differs from role.
func (am *AuthMiddleware) RequireRole(role string) gin.HandlerFunc {
  return func(c *gin.Context) {
    ctx := c.Request.Context()
    rd := requestdata.GetRequestData(ctx)
    if rd == nil || rd.UserID == "" {
      abortWithError(c, apperrors.Unauthenticated("No token provided"))
      return
    }
    user, err := am.userRepo.GetByID(ctx, nil, rd.UserID)
    if err != nil {
      abortWithError(c, apperrors.Internal("failed to load user", err))
      return
    }
    if user == nil {
      abortWithError(c, apperrors.NotFound(apperrors.CodeUserNotFound, "User not found"))
      return
    }
    rd.Role = user.Role
    if user.Role != role {
      am.log.Warn("Role gate rejected caller", "userID", user.ID, "role", user.Role, "required", role)
      abortWithError(c, apperrors.Forbidden(apperrors.CodeForbiddenRole, "Access denied"))
      return
    }
    c.Next()
  }
}

// extractToken reads the bearer header first; browsers cannot set headers on
// websocket upgrades, so ?token= is accepted as a fallback.
func extractToken(c *gin.Context) string {
  authHeader := c.GetHeader("Authorization")
  if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
    return strings.TrimSpace(authHeader[7:])
  }
  return c.Query("token")
}

// abortWithError writes the {"error","code"} body used across the API and
// records the code for the access log.
func abortWithError(c *gin.Context, err error) {
  appErr := apperrors.From(err)
  if ed := errordata.GetErrorData(c.Request.Context()); ed != nil {
    ed.SetError(appErr)
  }
  body := gin.H{"error": appErr.Message, "code": appErr.Code}
  status := apperrors.HTTPStatus(appErr)
  if status == http.StatusInternalServerError && appErr.Err != nil {
    body["details"] = appErr.Err.Error()
  }
  c.AbortWithStatusJSON(status, body)
}
