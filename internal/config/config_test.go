package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Addr() != "127.0.0.1:8788" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
	if !cfg.Browser.Headless {
		t.Error("headless should default to true")
	}
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keeper.yaml")
	content := `
host: 0.0.0.0
port: 9000
db_path: /tmp/keeper.db
browser:
  headless: false
  executable_path: /usr/bin/chromium
auth:
  client_id: file_client
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("KEEPER_PORT", "9100")
	t.Setenv("KEEPER_CLIENT_ID", "env_client")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Host != "0.0.0.0" {
		t.Errorf("Host = %q", cfg.Host)
	}
	if cfg.Port != 9100 {
		t.Errorf("Port = %d, env should override file", cfg.Port)
	}
	if cfg.DBPath != "/tmp/keeper.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.Browser.Headless {
		t.Error("file should disable headless")
	}
	if cfg.Auth.ClientID != "env_client" {
		t.Errorf("ClientID = %q, env should override file", cfg.Auth.ClientID)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keeper.yaml")
	if err := os.WriteFile(path, []byte("host: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("invalid YAML should fail")
	}
}
