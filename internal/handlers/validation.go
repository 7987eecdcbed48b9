package handlers

import (
  "errors"
  "fmt"
  "sync"

  "github.com/gin-gonic/gin"
  "github.com/gin-gonic/gin/binding"
  "github.com/go-playground/validator/v10"

  "github.com/gakusta-org/gakusta-backend/internal/apperrors"
  "github.com/gakusta-org/gakusta-backend/internal/types"
)

var registerOnce sync.Once

// RegisterValidators adds the custom binding rules to gin's validator.
func RegisterValidators() error {
  var err error
  registerOnce.Do(func() {
    v, ok := binding.Validator.Engine().(*validator.Validate)
    if !ok {
      err = fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
      return
    }
    err = v.RegisterValidation("codetype", func(fl validator.FieldLevel) bool {
      return types.CodeType(fl.Field().String()).Valid()
    })
  })
  return err
}

// bindJSON maps binding failures onto the API's error codes. missingMsg is
// used for absent required fields.
func bindJSON(c *gin.Context, dst interface{}, missingMsg string) error {
  err := c.ShouldBindJSON(dst)
  if err == nil {
    return nil
  }
  var verrs validator.ValidationErrors
  if errors.As(err, &verrs) {
    for _, fe := range verrs {
      if fe.Tag() == "codetype" {
        return apperrors.Validation(apperrors.CodeInvalidCodeType, "Invalid code type")
      }
    }
    return apperrors.Validation(apperrors.CodeMissingFields, missingMsg)
  }
  return apperrors.Validation(apperrors.CodeMissingFields, "Invalid request body")
}
