package apperrors

import (
  "errors"
  "fmt"
  "net/http"
  "testing"
)

func TestHTTPStatusMapping(t *testing.T) {
  cases := []struct {
    err  error
    want int
  }{
    {Validation(CodeCodeAlreadyUsed, "Code already used"), http.StatusBadRequest},
    {Capacity(CodeNoCompletedCardAvailable, "none"), http.StatusBadRequest},
    {Unauthenticated("bad token"), http.StatusUnauthorized},
    {Forbidden(CodeUIDMismatch, "mismatch"), http.StatusForbidden},
    {NotFound(CodeUserNotFound, "missing"), http.StatusNotFound},
    {Conflict(CodeUserAlreadyExists, "dup"), http.StatusConflict},
    {New(KindRateLimited, CodeRateLimited, "slow down"), http.StatusTooManyRequests},
    {errors.New("db down"), http.StatusInternalServerError},
  }
  for _, tc := range cases {
    if got := HTTPStatus(tc.err); got != tc.want {
      t.Fatalf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
    }
  }
}

func TestErrorsIsMatchesByCode(t *testing.T) {
  err := fmt.Errorf("redeem: %w", Validation(CodeCodeExpired, "Code expired"))
  if !errors.Is(err, ErrCodeExpired) {
    t.Fatalf("expected wrapped error to match ErrCodeExpired")
  }
  if errors.Is(err, ErrCodeAlreadyUsed) {
    t.Fatalf("did not expect match on a different code")
  }
}

func TestFromWrapsUnknownErrors(t *testing.T) {
  base := errors.New("connection refused")
  appErr := From(base)
  if appErr.Code != CodeInternal || appErr.Kind != KindInfrastructure {
    t.Fatalf("unexpected wrap: %+v", appErr)
  }
  if !errors.Is(appErr, base) {
    t.Fatalf("expected Unwrap to expose the cause")
  }
}
