package llm

import (
	"context"
	"strings"
	"testing"
)

func TestClassifyRoutesOnKeywords(t *testing.T) {
	cases := map[string]queryClass{
		"what's the crosswind landing at KDEN runway 26": classLanding,
		"metar for KMCO":                                 classMetar,
		"tell me a joke":                                 classGeneric,
	}
	for q, want := range cases {
		if got := classify(q); got != want {
			t.Errorf("classify(%q) = %v, want %v", q, got, want)
		}
	}
}

func TestExtractICAO(t *testing.T) {
	icao, ok := extractICAO("metar for KMCO please")
	if !ok || icao != "KMCO" {
		t.Fatalf("extractICAO = (%q, %v), want (KMCO, true)", icao, ok)
	}
	if _, ok := extractICAO("what's the weather like"); ok {
		t.Fatal("expected no ICAO match")
	}
}

func TestExtractRunway(t *testing.T) {
	rwy, ok := extractRunway("crosswind at KDEN runway 26")
	if !ok || rwy != "26" {
		t.Fatalf("extractRunway = (%q, %v), want (26, true)", rwy, ok)
	}
	rwy, ok = extractRunway("rwy 17L in use")
	if !ok || rwy != "17L" {
		t.Fatalf("extractRunway = (%q, %v), want (17L, true)", rwy, ok)
	}
}

func TestDecideGenericAnswersDirectly(t *testing.T) {
	p := NewPattern()
	d, err := p.Decide(context.Background(), "tell me a joke", nil, nil, Tracked{})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Kind != KindFinal {
		t.Fatalf("Kind = %v, want KindFinal", d.Kind)
	}
}

func TestDecideMetarWithoutICAOAsksForOne(t *testing.T) {
	p := NewPattern()
	d, err := p.Decide(context.Background(), "what's the metar", nil, nil, Tracked{})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Kind != KindFinal || !strings.Contains(d.Text, "ICAO") {
		t.Fatalf("expected a final answer asking for an ICAO, got %+v", d)
	}
}

func TestDecideMetarDispatchesThenSummarizes(t *testing.T) {
	p := NewPattern()
	ctx := context.Background()

	d, err := p.Decide(ctx, "metar for KMCO", nil, nil, Tracked{})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Kind != KindTool || d.ToolName != "fetch_metar" || d.ToolArgs["icao"] != "KMCO" {
		t.Fatalf("first decision = %+v, want fetch_metar(KMCO)", d)
	}

	transcript := []Step{{ToolName: "fetch_metar", Observation: "ok"}}
	d, err = p.Decide(ctx, "metar for KMCO", transcript, nil, Tracked{})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Kind != KindFinal || !strings.Contains(d.Text, "KMCO") {
		t.Fatalf("second decision = %+v, want a final answer mentioning KMCO", d)
	}
}

func TestDecideLandingSequencesToolsBeforeFinal(t *testing.T) {
	p := NewPattern()
	ctx := context.Background()
	query := "crosswind landing at KDEN runway 26"

	d, err := p.Decide(ctx, query, nil, nil, Tracked{})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Kind != KindTool || d.ToolName != "fetch_metar" {
		t.Fatalf("step 1 = %+v, want fetch_metar", d)
	}

	afterMetar := []Step{{ToolName: "fetch_metar", Observation: "ok"}}
	d, err = p.Decide(ctx, query, afterMetar, nil, Tracked{})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Kind != KindTool || d.ToolName != "select_best_runway" {
		t.Fatalf("step 2 = %+v, want select_best_runway", d)
	}
	if d.ToolArgs["runway_id"] != "26" {
		t.Fatalf("expected runway_id override of 26, got %+v", d.ToolArgs)
	}

	afterBoth := []Step{
		{ToolName: "fetch_metar", Observation: "ok"},
		{ToolName: "select_best_runway", Observation: "ok"},
	}
	dir := 220
	tracked := Tracked{HasMetar: true, WindDir: &dir, WindSpeed: 10, HasRunway: true, RunwayHeading: 260}
	d, err = p.Decide(ctx, query, afterBoth, nil, tracked)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Kind != KindFinal {
		t.Fatalf("step 3 kind = %v, want KindFinal", d.Kind)
	}
	if !strings.Contains(d.Text, "KDEN") || !strings.Contains(d.Text, "kt") {
		t.Fatalf("final text = %q, want mention of KDEN and a kt figure", d.Text)
	}
}

func TestSummarizeLandingWithoutTrackedDataIsHonest(t *testing.T) {
	text := summarizeLanding("KDEN", Tracked{})
	if !strings.Contains(text, "insufficient") {
		t.Fatalf("expected an honest insufficient-data answer, got %q", text)
	}
}

func TestSummarizeLandingMatchesGeometry(t *testing.T) {
	dir := 220
	tracked := Tracked{HasMetar: true, WindDir: &dir, WindSpeed: 10, HasRunway: true, RunwayHeading: 260}
	text := summarizeLanding("KDEN", tracked)
	// delta = |260-220| = 40, crosswind = 10*sin(40deg) ~= 6.4
	if !strings.Contains(text, "6.4") {
		t.Fatalf("expected computed crosswind ~6.4 in text, got %q", text)
	}
}
