package utils

import (
  "os"
  "path/filepath"
  "testing"
  "time"
)

func TestGetEnvHelpers(t *testing.T) {
  t.Setenv("TEST_STR", "hello")
  t.Setenv("TEST_INT", " 42 ")
  t.Setenv("TEST_BAD_INT", "forty")
  t.Setenv("TEST_BOOL", "true")
  t.Setenv("TEST_DUR", "90s")
  t.Setenv("TEST_DUR_SECS", "5")
  t.Setenv("TEST_LIST", "a, b,,c")

  if got := GetEnv("TEST_STR", "x", nil); got != "hello" {
    t.Fatalf("GetEnv = %q", got)
  }
  if got := GetEnv("TEST_MISSING", "fallback", nil); got != "fallback" {
    t.Fatalf("GetEnv default = %q", got)
  }
  if got := GetEnvAsInt("TEST_INT", 1, nil); got != 42 {
    t.Fatalf("GetEnvAsInt = %d", got)
  }
  if got := GetEnvAsInt("TEST_BAD_INT", 7, nil); got != 7 {
    t.Fatalf("GetEnvAsInt bad = %d", got)
  }
  if !GetEnvAsBool("TEST_BOOL", false, nil) {
    t.Fatalf("GetEnvAsBool expected true")
  }
  if got := GetEnvAsDuration("TEST_DUR", time.Second, nil); got != 90*time.Second {
    t.Fatalf("GetEnvAsDuration = %s", got)
  }
  if got := GetEnvAsDuration("TEST_DUR_SECS", time.Second, nil); got != 5*time.Second {
    t.Fatalf("GetEnvAsDuration secs = %s", got)
  }
  list := GetEnvAsList("TEST_LIST", nil, nil)
  if len(list) != 3 || list[0] != "a" || list[2] != "c" {
    t.Fatalf("GetEnvAsList = %v", list)
  }
}

func TestLoadYAMLDefaultsDoesNotOverrideEnv(t *testing.T) {
  path := filepath.Join(t.TempDir(), "config.yaml")
  content := "port: 9999\ncors_origins:\n  - http://a\n  - http://b\nyaml_only_key: fromyaml\n"
  if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
    t.Fatalf("write config: %v", err)
  }
  t.Setenv("PORT", "8080")
  t.Setenv("YAML_ONLY_KEY", "")
  os.Unsetenv("YAML_ONLY_KEY")
  os.Unsetenv("CORS_ORIGINS")
  t.Cleanup(func() {
    os.Unsetenv("YAML_ONLY_KEY")
    os.Unsetenv("CORS_ORIGINS")
  })

  if err := LoadYAMLDefaults(path, nil); err != nil {
    t.Fatalf("load yaml: %v", err)
  }
  if got := os.Getenv("PORT"); got != "8080" {
    t.Fatalf("expected real env to win, got %q", got)
  }
  if got := os.Getenv("YAML_ONLY_KEY"); got != "fromyaml" {
    t.Fatalf("expected yaml default, got %q", got)
  }
  if got := os.Getenv("CORS_ORIGINS"); got != "http://a,http://b" {
    t.Fatalf("expected joined list, got %q", got)
  }
}
