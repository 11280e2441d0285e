package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/flightline/aviation-assistant/internal/geometry"
)

// icaoPattern matches a 4-letter uppercase ICAO code, optionally introduced
// by "at" or "for" and optionally surrounded by spaces. Matching is
// case-sensitive, so ordinary words such as "what" are not taken for a
// station code. Unlike claim extraction (which
// the design notes specifically steer away from regex, §9), a single fixed
// 4-letter-code pattern is exactly the kind of narrow, well-understood
// grammar regexp is good at, and the spec's own wording for this decider
// ("extracts an ICAO by regex") calls for it directly.
var icaoPattern = regexp.MustCompile(`\b(?:at|for)?\s*([A-Z]{4})\b`)

// runwayPattern matches an explicit runway designator in a query, e.g.
// "runway 26" or "rwy 17L".
var runwayPattern = regexp.MustCompile(`(?i)\b(?:runway|rwy)\s*([0-9]{1,2}[LRC]?)\b`)

// queryClass is the pattern decider's coarse classification of a query.
type queryClass int

const (
	classGeneric queryClass = iota
	classMetar
	classLanding
)

// Pattern is the deterministic decider described in §4.5: used for tests
// and whenever no LLM backend is configured. It classifies the query,
// extracts an ICAO, dispatches the minimum tool chain for that class, and
// returns a templated final answer — producing the same FinalResponse
// shape an LLM-backed decision would.
type Pattern struct{}

// NewPattern constructs a Pattern decider.
func NewPattern() *Pattern { return &Pattern{} }

func (p *Pattern) Decide(_ context.Context, query string, transcript []Step, _ []ToolDescriptor, tracked Tracked) (Decision, error) {
	class := classify(query)
	icao, hasICAO := extractICAO(query)

	switch class {
	case classMetar:
		return decideMetar(transcript, icao, hasICAO)
	case classLanding:
		return decideLanding(transcript, query, icao, hasICAO, tracked)
	default:
		return decideGeneric(query), nil
	}
}

func classify(query string) queryClass {
	lower := strings.ToLower(query)
	switch {
	case strings.Contains(lower, "crosswind") || strings.Contains(lower, "landing") || strings.Contains(lower, "cross wind"):
		return classLanding
	case strings.Contains(lower, "metar") || strings.Contains(lower, "weather"):
		return classMetar
	default:
		return classGeneric
	}
}

func extractICAO(query string) (string, bool) {
	m := icaoPattern.FindStringSubmatch(query)
	if m == nil {
		return "", false
	}
	return strings.ToUpper(m[1]), true
}

func extractRunway(query string) (string, bool) {
	m := runwayPattern.FindStringSubmatch(query)
	if m == nil {
		return "", false
	}
	return strings.ToUpper(m[1]), true
}

func decideGeneric(query string) Decision {
	return Decision{Kind: KindFinal, Text: fmt.Sprintf("Hello! Ask me about current METAR conditions or crosswind/landing guidance for an airport by its ICAO code. (You said: %q)", query)}
}

func decideMetar(transcript []Step, icao string, hasICAO bool) (Decision, error) {
	if !hasICAO {
		return Decision{Kind: KindFinal, Text: "I couldn't find a 4-letter ICAO code in your question. Try something like \"metar KMCO\"."}, nil
	}
	if !calledTool(transcript, "fetch_metar") {
		return Decision{Kind: KindTool, ToolName: "fetch_metar", ToolArgs: map[string]any{"icao": icao}}, nil
	}
	return Decision{Kind: KindFinal, Text: fmt.Sprintf("Here is the current METAR for %s.", icao)}, nil
}

func decideLanding(transcript []Step, query, icao string, hasICAO bool, tracked Tracked) (Decision, error) {
	if !hasICAO {
		return Decision{Kind: KindFinal, Text: "I couldn't find a 4-letter ICAO code in your question. Try something like \"crosswind landing at KDEN runway 26\"."}, nil
	}
	if !calledTool(transcript, "fetch_metar") {
		return Decision{Kind: KindTool, ToolName: "fetch_metar", ToolArgs: map[string]any{"icao": icao}}, nil
	}
	if !calledTool(transcript, "select_best_runway") {
		args := map[string]any{"icao": icao}
		if rwy, ok := extractRunway(query); ok {
			args["runway_id"] = rwy
		}
		return Decision{Kind: KindTool, ToolName: "select_best_runway", ToolArgs: args}, nil
	}
	return Decision{Kind: KindFinal, Text: summarizeLanding(icao, tracked)}, nil
}

func calledTool(transcript []Step, name string) bool {
	for _, s := range transcript {
		if s.ToolName == name {
			return true
		}
	}
	return false
}

// summarizeLanding builds the final answer directly from tracked state —
// the same wind and runway data the guardrail will re-derive its truth
// from. It uses sustained wind and true heading, so its answer passes
// verification under the default policy (no gust, no magnetic correction);
// with either option enabled the verifier's truth can differ.
func summarizeLanding(icao string, tracked Tracked) string {
	if !tracked.HasMetar || !tracked.HasRunway || tracked.WindDir == nil {
		return fmt.Sprintf("Landing guidance for %s: insufficient wind or runway data to compute a crosswind component.", icao)
	}
	delta := geometry.AngleBetween(*tracked.WindDir, tracked.RunwayHeading)
	cross := geometry.Crosswind(float64(tracked.WindSpeed), delta)
	return fmt.Sprintf("Landing guidance for %s: the crosswind component is %.1f kt on the selected runway (heading %d°).", icao, cross, tracked.RunwayHeading)
}
