// Command askpilot runs a single query through the aviation assistant's
// agent loop (C5) and prints the resulting FinalResponse as JSON.
//
// Usage:
//
//	askpilot -query "crosswind landing at KDEN" [-pretty]
//	echo "metar KMCO" | askpilot [-pretty]
//
// Options:
//
//	-query TEXT          the question to ask (default: read one line from stdin)
//	-config PATH          YAML config file (optional)
//	-metar-base-url URL   upstream METAR JSON endpoint
//	-runway-catalog PATH  SQLite runway catalog path (empty: in-memory, seeded)
//	-pretty                indent the JSON output
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/flightline/aviation-assistant/internal/agent"
	"github.com/flightline/aviation-assistant/internal/audit"
	"github.com/flightline/aviation-assistant/internal/config"
	"github.com/flightline/aviation-assistant/internal/guardrail"
	"github.com/flightline/aviation-assistant/internal/llm"
	"github.com/flightline/aviation-assistant/internal/runway"
	"github.com/flightline/aviation-assistant/internal/tools"
	"github.com/flightline/aviation-assistant/internal/weather"
)

func main() {
	query := flag.String("query", "", "the question to ask (default: read one line from stdin)")
	configPath := flag.String("config", "", "YAML config file")
	metarBaseURL := flag.String("metar-base-url", envOrDefault("METAR_BASE_URL", "https://aviationweather.gov/api/data"), "upstream METAR JSON endpoint")
	runwayCatalogPath := flag.String("runway-catalog", envOrDefault("RUNWAY_CATALOG_PATH", ""), "SQLite runway catalog path (empty: in-memory, seeded)")
	pretty := flag.Bool("pretty", false, "indent the JSON output")
	flag.Parse()

	q := *query
	if q == "" {
		scanner := bufio.NewScanner(os.Stdin)
		if scanner.Scan() {
			q = strings.TrimSpace(scanner.Text())
		}
	}
	if q == "" {
		fmt.Fprintln(os.Stderr, "Error: no query given (-query or stdin)")
		os.Exit(1)
	}

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyEnv()

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

	policy := guardrail.Policy{
		ThresholdKT:               cfg.GuardrailThresholdKT,
		UseGustForVerification:    cfg.UseGustForVerification,
		MagneticCorrectionEnabled: cfg.MagneticCorrectionEnabled,
	}
	a := agent.New(reg, llm.NewPattern(), sink, policy, cfg.MaxLoops, time.Duration(cfg.RequestDeadlineMS)*time.Millisecond)

	resp, err := a.Run(ctx, q)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(resp); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding response: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
