// Package config loads the aviation assistant's runtime configuration from
// a YAML file, environment variables, and command-line flags, in that order
// of increasing precedence — the same three-tier layering the enrichment
// API uses for its Postgres flags.
package config

import (
	"flag"
	"os"
	"strconv"

	"go.yaml.in/yaml/v3"
)

// Config holds the seven configuration keys from the external interface
// table; the audit sink path (AuditLogPath) is one of the seven.
type Config struct {
	GuardrailThresholdKT      float64 `yaml:"guardrail_threshold_kt"`
	MaxLoops                  int     `yaml:"max_loops"`
	UseGustForVerification    bool    `yaml:"use_gust_for_verification"`
	MagneticCorrectionEnabled bool    `yaml:"magnetic_correction_enabled"`
	LLMBackend                string  `yaml:"llm_backend"`
	RequestDeadlineMS         int     `yaml:"request_deadline_ms"`
	AuditLogPath              string  `yaml:"audit_log_path"`
}

// Defaults returns the representative defaults named in the external
// interface table.
func Defaults() Config {
	return Config{
		GuardrailThresholdKT:      3.0,
		MaxLoops:                  8,
		UseGustForVerification:    false,
		MagneticCorrectionEnabled: false,
		LLMBackend:                "pattern",
		RequestDeadlineMS:         30000,
		AuditLogPath:              "audit.log.jsonl",
	}
}

// LoadFile reads a YAML config file into cfg, starting from Defaults().
// A missing file is not an error — it just leaves the defaults in place.
func LoadFile(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg's fields from environment variables named after
// the external interface table's configuration keys.
func (c *Config) ApplyEnv() {
	if v, ok := envFloat("GUARDRAIL_THRESHOLD_KT"); ok {
		c.GuardrailThresholdKT = v
	}
	if v, ok := envInt("MAX_LOOPS"); ok {
		c.MaxLoops = v
	}
	if v, ok := envBool("USE_GUST_FOR_VERIFICATION"); ok {
		c.UseGustForVerification = v
	}
	if v, ok := envBool("MAGNETIC_CORRECTION_ENABLED"); ok {
		c.MagneticCorrectionEnabled = v
	}
	if v := os.Getenv("LLM_BACKEND"); v != "" {
		c.LLMBackend = v
	}
	if v, ok := envInt("REQUEST_DEADLINE_MS"); ok {
		c.RequestDeadlineMS = v
	}
	if v := os.Getenv("AUDIT_LOG_PATH"); v != "" {
		c.AuditLogPath = v
	}
}

// RegisterFlags binds cfg's fields to flags on fs, defaulted to cfg's
// current values (so flags take final precedence over file + env when
// fs.Parse is called after LoadFile/ApplyEnv).
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.Float64Var(&c.GuardrailThresholdKT, "guardrail-threshold-kt", c.GuardrailThresholdKT, "crosswind discrepancy tolerance in knots")
	fs.IntVar(&c.MaxLoops, "max-loops", c.MaxLoops, "hard ceiling on agent loop iterations")
	fs.BoolVar(&c.UseGustForVerification, "use-gust-for-verification", c.UseGustForVerification, "use gust speed over sustained when verifying")
	fs.BoolVar(&c.MagneticCorrectionEnabled, "magnetic-correction-enabled", c.MagneticCorrectionEnabled, "apply station variation before computing angle")
	fs.StringVar(&c.LLMBackend, "llm-backend", c.LLMBackend, `"pattern" or an external backend identifier`)
	fs.IntVar(&c.RequestDeadlineMS, "request-deadline-ms", c.RequestDeadlineMS, "overall per-request deadline in milliseconds")
	fs.StringVar(&c.AuditLogPath, "audit-log-path", c.AuditLogPath, "audit sink path (file path or clickhouse://... DSN)")
}

func envFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return i, true
}

func envBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}
