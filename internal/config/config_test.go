package config

import (
	"flag"
	"os"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.GuardrailThresholdKT != 3.0 || cfg.MaxLoops != 8 || cfg.RequestDeadlineMS != 30000 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.LLMBackend != "pattern" {
		t.Fatalf("LLMBackend = %q, want pattern", cfg.LLMBackend)
	}
}

func TestLoadFileMissingFallsBackToDefaults(t *testing.T) {
	cfg, err := LoadFile("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg != Defaults() {
		t.Fatalf("expected defaults for missing file, got %+v", cfg)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "cfg-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("guardrail_threshold_kt: 5.5\nmax_loops: 4\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	cfg, err := LoadFile(f.Name())
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.GuardrailThresholdKT != 5.5 || cfg.MaxLoops != 4 {
		t.Fatalf("file overrides not applied: %+v", cfg)
	}
	if cfg.LLMBackend != "pattern" {
		t.Fatalf("untouched fields should retain defaults, got %q", cfg.LLMBackend)
	}
}

func TestApplyEnvOverridesFile(t *testing.T) {
	cfg := Defaults()
	t.Setenv("MAX_LOOPS", "3")
	t.Setenv("LLM_BACKEND", "external")
	cfg.ApplyEnv()
	if cfg.MaxLoops != 3 || cfg.LLMBackend != "external" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestRegisterFlagsOverridesEnv(t *testing.T) {
	cfg := Defaults()
	cfg.MaxLoops = 3 // simulate an env override already applied

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg.RegisterFlags(fs)
	if err := fs.Parse([]string{"-max-loops=6"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.MaxLoops != 6 {
		t.Fatalf("MaxLoops = %d, want 6 (flag should win)", cfg.MaxLoops)
	}
}
