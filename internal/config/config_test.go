package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultHasTaintBounds(t *testing.T) {
	cfg := Default()
	if cfg.Taint.MaxDepth != 40 {
		t.Errorf("MaxDepth = %d, want 40", cfg.Taint.MaxDepth)
	}
	if cfg.Taint.MaxSignaturesPerState != 32 {
		t.Errorf("MaxSignaturesPerState = %d, want 32", cfg.Taint.MaxSignaturesPerState)
	}
	if cfg.Docs.MaxPages != 50 {
		t.Errorf("MaxPages = %d, want 50", cfg.Docs.MaxPages)
	}
}

func TestLoadAppliesYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	yml := "workers: 8\ntaint:\n  max_depth: 100\ndeps:\n  check_latest: true\n"
	if err := os.WriteFile(filepath.Join(dir, "auditor.yml"), []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Workers != 8 {
		t.Errorf("Workers = %d, want 8", cfg.Workers)
	}
	if cfg.Taint.MaxDepth != 100 {
		t.Errorf("MaxDepth = %d, want 100", cfg.Taint.MaxDepth)
	}
	if !cfg.Deps.CheckLatest {
		t.Error("expected CheckLatest true from yaml")
	}
	// Untouched default preserved.
	if cfg.Taint.MaxSignaturesPerState != 32 {
		t.Errorf("MaxSignaturesPerState = %d, want default 32", cfg.Taint.MaxSignaturesPerState)
	}
}

func TestLoadWithoutYAMLReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Workers != 0 {
		t.Errorf("Workers = %d, want 0 (default)", cfg.Workers)
	}
	if cfg.Root != dir {
		t.Errorf("Root = %q, want %q", cfg.Root, dir)
	}
}

func TestApplyEnvOverridesWorkersAndMaxDepth(t *testing.T) {
	t.Setenv("AUDITOR_WORKERS", "4")
	t.Setenv("AUDITOR_MAX_DEPTH", "12")
	t.Setenv("AUDITOR_VERBOSE", "true")

	cfg := Default()
	applyEnv(cfg)

	if cfg.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Workers)
	}
	if cfg.Taint.MaxDepth != 12 {
		t.Errorf("MaxDepth = %d, want 12", cfg.Taint.MaxDepth)
	}
	if !cfg.Verbose {
		t.Error("expected Verbose true from AUDITOR_VERBOSE=true")
	}
}

func TestApplyEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("AUDITOR_WORKERS", "not-a-number")
	t.Setenv("AUDITOR_MAX_DEPTH", "-5")

	cfg := Default()
	applyEnv(cfg)

	if cfg.Workers != 0 {
		t.Errorf("Workers = %d, want unchanged default 0", cfg.Workers)
	}
	if cfg.Taint.MaxDepth != 40 {
		t.Errorf("MaxDepth = %d, want unchanged default 40", cfg.Taint.MaxDepth)
	}
}
