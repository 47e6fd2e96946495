package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wxstack.yaml")
	content := `app_name: backyard
config_path: /home/station/wxstack.conf
root: /home/station
logger:
  level: 5
  format: json
  output: file
  output_file: /var/log/wxstack/wxstack.log
alerting:
  endpoint: https://alerts.example.com/v2
  api_key: secret
  heartbeat_interval: 90s
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AppName != "backyard" || cfg.Root != "/home/station" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.ConfigPath != "/home/station/wxstack.conf" {
		t.Errorf("config_path = %q", cfg.ConfigPath)
	}
	if cfg.Logger.Level != 5 || cfg.Logger.Format != "json" || cfg.Logger.OutputFile != "/var/log/wxstack/wxstack.log" {
		t.Errorf("logger = %+v", cfg.Logger)
	}
	if cfg.Alerting.Endpoint != "https://alerts.example.com/v2" {
		t.Errorf("endpoint = %q", cfg.Alerting.Endpoint)
	}
	if cfg.Alerting.HeartbeatInterval != 90*time.Second {
		t.Errorf("heartbeat = %s", cfg.Alerting.HeartbeatInterval)
	}
	// File settings merge over defaults.
	if cfg.RunMode != "release" {
		t.Errorf("run_mode = %q", cfg.RunMode)
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit file")
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("WXSTACK_RUN_MODE", "debug")
	path := filepath.Join(t.TempDir(), "wxstack.yaml")
	if err := os.WriteFile(path, []byte("app_name: backyard\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RunMode != "debug" {
		t.Errorf("run_mode = %q", cfg.RunMode)
	}
}
