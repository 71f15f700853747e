package config_test

import (
	"os"
	"testing"

	"github.com/charq/charq/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	os.Unsetenv("CHARQ_CONFIG_FILE")
	os.Unsetenv("CHARQ_WORKER_COUNT")

	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	want := config.Default()
	if cfg.WorkerCount != want.WorkerCount {
		t.Fatalf("expected default worker count %d, got %d", want.WorkerCount, cfg.WorkerCount)
	}
	if cfg.HTTPAddr != want.HTTPAddr {
		t.Fatalf("expected default http addr %q, got %q", want.HTTPAddr, cfg.HTTPAddr)
	}
}

func TestEnvOverridesDefault(t *testing.T) {
	os.Unsetenv("CHARQ_CONFIG_FILE")
	os.Setenv("CHARQ_WORKER_COUNT", "7")
	defer os.Unsetenv("CHARQ_WORKER_COUNT")

	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.WorkerCount != 7 {
		t.Fatalf("expected env override to set worker count to 7, got %d", cfg.WorkerCount)
	}
}

func TestFileOverlayAppliesBeforeEnv(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.yaml"
	if err := os.WriteFile(path, []byte("worker_count: 4\nlease_seconds: 60\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	os.Setenv("CHARQ_CONFIG_FILE", path)
	os.Setenv("CHARQ_WORKER_COUNT", "9")
	defer os.Unsetenv("CHARQ_CONFIG_FILE")
	defer os.Unsetenv("CHARQ_WORKER_COUNT")

	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LeaseSeconds != 60 {
		t.Fatalf("expected file overlay to set lease_seconds=60, got %d", cfg.LeaseSeconds)
	}
	if cfg.WorkerCount != 9 {
		t.Fatalf("expected env to take precedence over file, got %d", cfg.WorkerCount)
	}
}
