package apperrors

import (
  "errors"
  "fmt"
  "net/http"
)

type Kind int

const (
  KindInfrastructure Kind = iota
  KindValidation
  KindAuth
  KindForbidden
  KindNotFound
  KindConflict
  KindCapacity
  KindRateLimited
)

// Code is the machine readable error identifier returned to clients.
type Code string

const (
  CodeMissingFields               Code = "MISSING_FIELDS"
  CodeInvalidCodeType             Code = "INVALID_CODE_TYPE"
  CodeStampImageRequired          Code = "STAMP_IMAGE_REQUIRED"
  CodeStampImageNotFound          Code = "STAMP_IMAGE_NOT_FOUND"
  CodeStampImageInactive          Code = "STAMP_IMAGE_INACTIVE"
  CodeInvalidFileType             Code = "INVALID_FILE_TYPE"
  CodeFileTooLarge                Code = "FILE_TOO_LARGE"
  CodeImageTooLarge               Code = "IMAGE_TOO_LARGE"
  CodeUnauthenticated             Code = "UNAUTHENTICATED"
  CodeUIDMismatch                 Code = "UID_MISMATCH"
  CodeInvalidRegistrationPassword Code = "INVALID_REGISTRATION_PASSWORD"
  CodeForbiddenRole               Code = "FORBIDDEN_ROLE"
  CodeUserNotFound                Code = "USER_NOT_FOUND"
  CodeStudentNotFound             Code = "STUDENT_NOT_FOUND"
  CodeUserAlreadyExists           Code = "USER_ALREADY_EXISTS"
  CodeCodeNotFound                Code = "CODE_NOT_FOUND"
  CodeCodeAlreadyUsed             Code = "CODE_ALREADY_USED"
  CodeCodeExpired                 Code = "CODE_EXPIRED"
  CodeNoAvailableCardSlot         Code = "NO_AVAILABLE_CARD_SLOT"
  CodeNoCompletedCardAvailable    Code = "NO_COMPLETED_CARD_AVAILABLE"
  CodeCodeGenerationExhausted     Code = "CODE_GENERATION_EXHAUSTED"
  CodeCardSlotTaken               Code = "CARD_SLOT_TAKEN"
  CodeRateLimited                 Code = "RATE_LIMITED"
  CodeInternal                    Code = "INTERNAL"
)

type Error struct {
  Kind    Kind
  Code    Code
  Message string
  Err     error
}

func (e *Error) Error() string {
  if e.Err != nil {
    return fmt.Sprintf("%s: %v", e.Message, e.Err)
  }
  return e.Message
}

func (e *Error) Unwrap() error {
  return e.Err
}

// Is matches on Code so callers can write errors.Is(err, apperrors.CodeExpiredErr).
func (e *Error) Is(target error) bool {
  t, ok := target.(*Error)
  if !ok {
    return false
  }
  return t.Code == e.Code
}

func New(kind Kind, code Code, msg string) *Error {
  return &Error{Kind: kind, Code: code, Message: msg}
}

func Wrap(kind Kind, code Code, msg string, err error) *Error {
  return &Error{Kind: kind, Code: code, Message: msg, Err: err}
}

func Validation(code Code, msg string) *Error { return New(KindValidation, code, msg) }
func Unauthenticated(msg string) *Error     { return New(KindAuth, CodeUnauthenticated, msg) }
func Forbidden(code Code, msg string) *Error  { return New(KindForbidden, code, msg) }
func NotFound(code Code, msg string) *Error   { return New(KindNotFound, code, msg) }
func Conflict(code Code, msg string) *Error   { return New(KindConflict, code, msg) }
func Capacity(code Code, msg string) *Error   { return New(KindCapacity, code, msg) }

func Internal(msg string, err error) *Error {
  return Wrap(KindInfrastructure, CodeInternal, msg, err)
}

// Sentinels for errors.Is checks in tests and callers.
var (
  ErrCodeNotFound             = New(KindValidation, CodeCodeNotFound, "")
  ErrCodeAlreadyUsed          = New(KindValidation, CodeCodeAlreadyUsed, "")
  ErrCodeExpired              = New(KindValidation, CodeCodeExpired, "")
  ErrNoAvailableCardSlot      = New(KindCapacity, CodeNoAvailableCardSlot, "")
  ErrNoCompletedCardAvailable = New(KindCapacity, CodeNoCompletedCardAvailable, "")
  ErrCodeGenerationExhausted  = New(KindInfrastructure, CodeCodeGenerationExhausted, "")
  ErrUserAlreadyExists        = New(KindConflict, CodeUserAlreadyExists, "")
)

// From returns err as *Error, wrapping unknown errors as infrastructure failures.
func From(err error) *Error {
  if err == nil {
    return nil
  }
  var appErr *Error
  if errors.As(err, &appErr) {
    return appErr
  }
  return Internal("internal server error", err)
}

func HTTPStatus(err error) int {
  appErr := From(err)
  if appErr == nil {
    return http.StatusOK
  }
  switch appErr.Kind {
  case KindValidation, KindCapacity:
    return http.StatusBadRequest
  case KindAuth:
    return http.StatusUnauthorized
  case KindForbidden:
    return http.StatusForbidden
  case KindNotFound:
    return http.StatusNotFound
  case KindConflict:
    return http.StatusConflict
  case KindRateLimited:
    return http.StatusTooManyRequests
  default:
    return http.StatusInternalServerError
  }
}
