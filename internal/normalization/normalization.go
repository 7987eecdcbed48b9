package normalization

import (
  "regexp"
  "strings"
)

func ParseInputString(s string) string {
  return strings.TrimSpace(s)
}

func ParseInputStringPtr(s *string) *string {
  if s == nil {
    return nil
  }
  trimmed := strings.TrimSpace(*s)
  if trimmed == "" {
    return nil
  }
  return &trimmed
}

func ParseEmail(s string) string {
  return strings.ToLower(strings.TrimSpace(s))
}

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9]`)

// SafeFileStem replaces everything but ASCII letters and digits with '_'.
func SafeFileStem(s string) string {
  stem := unsafeFileChars.ReplaceAllString(strings.TrimSpace(s), "_")
  if stem == "" {
    return "file"
  }
  return stem
}
