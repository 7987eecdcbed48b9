package utils

import (
  "os"
  "strconv"
  "strings"
  "time"

  "github.com/gakusta-org/gakusta-backend/internal/logger"
)

func GetEnv(key, defaultVal string, log *logger.Logger) string {
  if log != nil {
    log = log.With("env_var", key)
    log.Debug("Attempting to load environment variable (string)...")
  }
  val, ok := os.LookupEnv(key)
  if !ok {
    if log != nil {
      log.Debug("Environment variable not found, using default value", "defaultValue", defaultVal)
    }
    return defaultVal
  }
  if log != nil {
    log.Debug("Environment variable found (string), using environment variable value")
  }
  return val
}

func GetEnvAsInt(key string, defaultVal int, log *logger.Logger) int {
  if log != nil {
    log = log.With("env_var", key)
    log.Debug("Attempting to load environment variable (int)...")
  }
  valStr, ok := os.LookupEnv(key)
  if !ok {
    if log != nil {
      log.Debug("Environment variable not found, using default int", "defaultVal", defaultVal)
    }
    return defaultVal
  }
  i, err := strconv.Atoi(strings.TrimSpace(valStr))
  if err != nil {
    if log != nil {
      log.Warn("Environment variable could not be parsed as int, using default", "providedVal", valStr, "defaultVal", defaultVal, "error", err)
    }
    return defaultVal
  }
  if log != nil {
    log.Debug("Environment variable found (int), using environment variable value", "value", i)
  }
  return i
}

func GetEnvAsBool(key string, defaultVal bool, log *logger.Logger) bool {
  if log != nil {
    log = log.With("env_var", key)
  }
  valStr, ok := os.LookupEnv(key)
  if !ok {
    return defaultVal
  }
  b, err := strconv.ParseBool(strings.TrimSpace(valStr))
  if err != nil {
    if log != nil {
      log.Warn("Environment variable could not be parsed as bool, using default", "providedVal", valStr, "defaultVal", defaultVal)
    }
    return defaultVal
  }
  return b
}

// GetEnvAsDuration accepts Go durations ("90s", "5m") or a bare number of seconds.
func GetEnvAsDuration(key string, defaultVal time.Duration, log *logger.Logger) time.Duration {
  if log != nil {
    log = log.With("env_var", key)
  }
  valStr, ok := os.LookupEnv(key)
  if !ok {
    return defaultVal
  }
  valStr = strings.TrimSpace(valStr)
  if secs, err := strconv.Atoi(valStr); err == nil {
    return time.Duration(secs) * time.Second
  }
  d, err := time.ParseDuration(valStr)
  if err != nil {
    if log != nil {
      log.Warn("Environment variable could not be parsed as duration, using default", "providedVal", valStr, "defaultVal", defaultVal)
    }
    return defaultVal
  }
  return d
}

// GetEnvAsList splits a comma separated value, dropping empty entries.
func GetEnvAsList(key string, defaultVal []string, log *logger.Logger) []string {
  raw := GetEnv(key, "", log)
  if raw == "" {
    return defaultVal
  }
  var out []string
  for _, part := range strings.Split(raw, ",") {
    if p := strings.TrimSpace(part); p != "" {
      out = append(out, p)
    }
  }
  if len(out) == 0 {
    return defaultVal
  }
  return out
}
