package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"spindle/internal/config"
	"spindle/internal/policy"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantCatalog := filepath.Join(tempHome, ".local", "share", "vpo", "vpo.db")
	if cfg.Paths.CatalogPath != wantCatalog {
		t.Fatalf("unexpected catalog path: got %q want %q", cfg.Paths.CatalogPath, wantCatalog)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7487" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Execution.OnError != policy.OnErrorFail {
		t.Fatalf("expected default on_error=fail, got %q", cfg.Execution.OnError)
	}
	if cfg.Execution.HardwareAcceleration.Enabled != config.HWAccelNone {
		t.Fatalf("expected default hardware acceleration none, got %q", cfg.Execution.HardwareAcceleration.Enabled)
	}
	if !cfg.Execution.BackupOriginal {
		t.Fatal("expected backup_original to default true")
	}
	if cfg.Workflow.Concurrency != config.Default().Workflow.Concurrency {
		t.Fatalf("unexpected concurrency: %d", cfg.Workflow.Concurrency)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.LogDir, cfg.Paths.AdmissionDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be a directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "vpo.toml")

	type payload struct {
		Execution struct {
			OnError  string `toml:"on_error"`
			CPUCores int    `toml:"cpu_cores"`
		} `toml:"execution"`
		Workflow struct {
			Concurrency int `toml:"concurrency"`
		} `toml:"workflow"`
	}
	custom := payload{}
	custom.Execution.OnError = "skip"
	custom.Execution.CPUCores = 8
	custom.Workflow.Concurrency = 6
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Execution.OnError != policy.OnErrorSkip {
		t.Fatalf("expected on_error=skip, got %q", cfg.Execution.OnError)
	}
	if cfg.Execution.CPUCores != 8 {
		t.Fatalf("expected cpu_cores=8, got %d", cfg.Execution.CPUCores)
	}
	if cfg.Workflow.Concurrency != 6 {
		t.Fatalf("expected concurrency=6, got %d", cfg.Workflow.Concurrency)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "catalog_path") {
		t.Fatalf("sample config missing catalog_path: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.CatalogPath, "vpo") {
		t.Fatalf("expected catalog path to contain vpo, got %q", cfg.Paths.CatalogPath)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := config.Default()
	cfg.Execution.TranscodeTimeout = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive transcode timeout")
	}

	cfg = config.Default()
	cfg.Execution.OnError = "bogus"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported on_error")
	}

	cfg = config.Default()
	cfg.Execution.HardwareAcceleration.Enabled = "bogus"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported hardware_acceleration mode")
	}

	cfg = config.Default()
	cfg.Workflow.Concurrency = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive concurrency")
	}

	cfg = config.Default()
	cfg.Paths.CatalogPath = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty catalog_path")
	}
}

func TestNormalizeFallsBackToNoneForUnknownHardwareAccelMode(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	configPath := filepath.Join(t.TempDir(), "vpo.toml")

	contents := "[execution.hardware_acceleration]\nenabled = \"totally-unknown\"\n"
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Execution.HardwareAcceleration.Enabled != config.HWAccelNone {
		t.Fatalf("expected unknown mode to normalize to none, got %q", cfg.Execution.HardwareAcceleration.Enabled)
	}
}
