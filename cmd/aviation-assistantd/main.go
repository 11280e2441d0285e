// Command aviation-assistantd runs the aviation assistant's HTTP server: the
// agentic question-answering loop (C5) behind chi routes (internal/httpapi), backed by a
// METAR provider, a runway catalog, and an audit sink chosen by
// -audit-log-path.
//
// Usage:
//
//	aviation-assistantd [options]
//
// Options:
//
//	-config PATH                  YAML config file (optional)
//	-port N                       HTTP port (default: 8090)
//	-metar-base-url URL           upstream METAR JSON endpoint
//	-runway-catalog PATH          SQLite runway catalog path (empty: in-memory, seeded)
//	-nats-url URL                 NATS server for streaming event fan-out (optional)
//	-llm-endpoint URL             external chat-completions endpoint (when -llm-backend is not "pattern")
//	-llm-model NAME               model name sent to the external endpoint
//	-llm-api-key KEY              bearer token for the external endpoint (env: LLM_API_KEY)
//
// Plus every flag registered by internal/config.Config.RegisterFlags.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/flightline/aviation-assistant/internal/agent"
	"github.com/flightline/aviation-assistant/internal/audit"
	"github.com/flightline/aviation-assistant/internal/config"
	"github.com/flightline/aviation-assistant/internal/guardrail"
	"github.com/flightline/aviation-assistant/internal/httpapi"
	"github.com/flightline/aviation-assistant/internal/llm"
	"github.com/flightline/aviation-assistant/internal/runway"
	"github.com/flightline/aviation-assistant/internal/tools"
	"github.com/flightline/aviation-assistant/internal/weather"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	port := flag.Int("port", 8090, "HTTP port")
	metarBaseURL := flag.String("metar-base-url", envOrDefault("METAR_BASE_URL", "https://aviationweather.gov/api/data"), "upstream METAR JSON endpoint")
	runwayCatalogPath := flag.String("runway-catalog", envOrDefault("RUNWAY_CATALOG_PATH", ""), "SQLite runway catalog path (empty: in-memory, seeded)")
	natsURL := flag.String("nats-url", envOrDefault("NATS_URL", ""), "NATS server for streaming event fan-out")
	llmEndpoint := flag.String("llm-endpoint", envOrDefault("LLM_ENDPOINT", ""), "external chat-completions endpoint")
	llmModel := flag.String("llm-model", envOrDefault("LLM_MODEL", "gpt-4o-mini"), "model name sent to the external endpoint")
	llmAPIKey := flag.String("llm-api-key", os.Getenv("LLM_API_KEY"), "bearer token for the external endpoint")

	cfg := config.Defaults()
	cfg.ApplyEnv()
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()

	// -config is only known after Parse: load the file now, apply env over
	// it, then re-apply the flags given on the command line over both.
	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyEnv()
	overrides := flag.NewFlagSet("config-overrides", flag.ContinueOnError)
	cfg.RegisterFlags(overrides)
	flag.Visit(func(f *flag.Flag) { _ = overrides.Set(f.Name, f.Value.String()) })

	ctx := context.Background()

	sink, err := audit.Open(ctx, cfg.AuditLogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening audit sink: %v\n", err)
		os.Exit(1)
	}
	defer sink.Close()

	catalog, err := runway.OpenCatalog(*runwayCatalogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening runway catalog: %v\n", err)
		os.Exit(1)
	}
	defer catalog.Close()
	if err := catalog.Seed(); err != nil {
		fmt.Fprintf(os.Stderr, "Error seeding runway catalog: %v\n", err)
		os.Exit(1)
	}

	provider := weather.NewHTTPProvider(*metarBaseURL, 5*time.Second)
	fetcher := weather.NewFetcher(provider, sink)

	reg := tools.New()
	tools.Register(reg, fetcher, catalog)

	decider := buildDecider(cfg, *llmEndpoint, *llmModel, *llmAPIKey)

	policy := guardrail.Policy{
		ThresholdKT:               cfg.GuardrailThresholdKT,
		UseGustForVerification:    cfg.UseGustForVerification,
		MagneticCorrectionEnabled: cfg.MagneticCorrectionEnabled,
	}
	requestDeadline := time.Duration(cfg.RequestDeadlineMS) * time.Millisecond
	a := agent.New(reg, decider, sink, policy, cfg.MaxLoops, requestDeadline)

	var pub *agent.NatsPublisher
	if *natsURL != "" {
		conn, err := nats.Connect(*natsURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not connect to NATS at %s: %v\n", *natsURL, err)
		} else {
			defer conn.Close()
			pub = &agent.NatsPublisher{Conn: conn}
		}
	}

	server := httpapi.NewServer(a, sink, pub, httpapi.Config{Port: *port, RequestDeadline: requestDeadline})
	if err := server.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

// buildDecider chooses between the pattern-matching decider and an external
// chat-completions backend per cfg.LLMBackend, falling back to Pattern when
// no endpoint is configured even if an external backend was requested. The
// external backend's own HTTP client timeout is its own concern, distinct
// from cfg.RequestDeadlineMS, which bounds the whole agent.Run call; passing
// 0 here takes NewExternal's own default.
func buildDecider(cfg config.Config, endpoint, model, apiKey string) llm.Decider {
	if cfg.LLMBackend == "pattern" || endpoint == "" {
		return llm.NewPattern()
	}
	return llm.NewExternal(endpoint, model, apiKey, 0)
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
