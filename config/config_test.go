package config

import (
	"os"
	"path/filepath"
	"testing"
)

// writeConfig writes a config file whose media, db and log paths all
// point into the test's temp directory.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
server:
  port: 8080
db:
  file: `+filepath.Join(dir, "app.db")+`
media:
  path: `+filepath.Join(dir, "media")+`
compreface:
  enabled: true
  url: http://compreface:8000
  recognition_api_key: test-key
  timeout: 30
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("expected default host, got %s", cfg.Server.Host)
	}
	if !cfg.CompreFace.Enabled || cfg.CompreFace.URL != "http://compreface:8000" {
		t.Errorf("unexpected compreface config: %+v", cfg.CompreFace)
	}
	if cfg.CompreFace.TimeoutSeconds != 30 {
		t.Errorf("expected timeout 30, got %d", cfg.CompreFace.TimeoutSeconds)
	}

	// Load creates the matches namespace under the media path.
	if _, err := os.Stat(filepath.Join(dir, "media", "matches")); err != nil {
		t.Errorf("expected matches directory to be created: %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
db:
  file: `+filepath.Join(dir, "app.db")+`
media:
  path: `+filepath.Join(dir, "media")+`
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 3000 || cfg.Log.Level != "info" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Auth.Enabled {
		t.Error("expected auth disabled by default")
	}
	if cfg.Auth.TokenTTLMinutes != 60 {
		t.Errorf("expected default token TTL 60, got %d", cfg.Auth.TokenTTLMinutes)
	}
	if cfg.CompreFace.Enabled {
		t.Error("expected compreface disabled by default")
	}
	if cfg.MQTT.Port != 1883 || cfg.MQTT.ClientID != "double-take" {
		t.Errorf("unexpected mqtt defaults: %+v", cfg.MQTT)
	}
}

func TestLoad_AuthRequiresSecret(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
auth:
  enabled: true
db:
  file: `+filepath.Join(dir, "app.db")+`
media:
  path: `+filepath.Join(dir, "media")+`
`)

	if _, err := Load(path); err == nil {
		t.Error("expected Load to fail when auth is enabled without a secret")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DOUBLE_TAKE_DB_FILE", filepath.Join(dir, "app.db"))
	t.Setenv("DOUBLE_TAKE_MEDIA_PATH", filepath.Join(dir, "media"))

	cfg, err := Load(filepath.Join(dir, "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("expected default port, got %d", cfg.Server.Port)
	}
	if cfg.DB.File != filepath.Join(dir, "app.db") {
		t.Errorf("expected env override for db file, got %s", cfg.DB.File)
	}
}
