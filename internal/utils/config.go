package utils

import (
  "errors"
  "fmt"
  "io/fs"
  "os"
  "strings"

  "github.com/joho/godotenv"
  "gopkg.in/yaml.v3"

  "github.com/gakusta-org/gakusta-backend/internal/logger"
)

// LoadConfigFiles fills the process environment from a .env file and, when
// CONFIG_FILE is set, from a flat YAML map. Variables already present in the
// real environment always win.
func LoadConfigFiles(log *logger.Logger) error {
  if err := godotenv.Load(); err != nil {
    if !errors.Is(err, fs.ErrNotExist) {
      return fmt.Errorf("failed to load .env: %w", err)
    }
    if log != nil {
      log.Debug("No .env file found, skipping")
    }
  }
  path := os.Getenv("CONFIG_FILE")
  if path == "" {
    return nil
  }
  return LoadYAMLDefaults(path, log)
}

func LoadYAMLDefaults(path string, log *logger.Logger) error {
  data, err := os.ReadFile(path)
  if err != nil {
    return fmt.Errorf("failed to read config file %s: %w", path, err)
  }
  var values map[string]interface{}
  if err := yaml.Unmarshal(data, &values); err != nil {
    return fmt.Errorf("failed to parse config file %s: %w", path, err)
  }
  applied := 0
  for key, raw := range values {
    envKey := strings.ToUpper(strings.TrimSpace(key))
    if envKey == "" {
      continue
    }
    if _, exists := os.LookupEnv(envKey); exists {
      continue
    }
    var val string
    switch v := raw.(type) {
    case nil:
      continue
    case []interface{}:
      parts := make([]string, 0, len(v))
      for _, p := range v {
        parts = append(parts, fmt.Sprint(p))
      }
      val = strings.Join(parts, ",")
    default:
      val = fmt.Sprint(v)
    }
    if err := os.Setenv(envKey, val); err != nil {
      return fmt.Errorf("failed to export %s: %w", envKey, err)
    }
    applied++
  }
  if log != nil {
    log.Info("Loaded config defaults from YAML", "path", path, "applied", applied)
  }
  return nil
}
