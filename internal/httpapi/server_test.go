package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/flightline/aviation-assistant/internal/agent"
	"github.com/flightline/aviation-assistant/internal/audit"
	"github.com/flightline/aviation-assistant/internal/guardrail"
	"github.com/flightline/aviation-assistant/internal/llm"
	"github.com/flightline/aviation-assistant/internal/runway"
	"github.com/flightline/aviation-assistant/internal/tools"
	"github.com/flightline/aviation-assistant/internal/weather"
)

type fakeProvider struct{ raw weather.RawMETAR }

func (f *fakeProvider) FetchMETAR(_ context.Context, icao string) (weather.RawMETAR, error) {
	raw := f.raw
	raw.Station = icao
	return raw, nil
}

func newTestRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	dir, speed := 220, 10
	fetcher := weather.NewFetcher(&fakeProvider{raw: weather.RawMETAR{
		WindDirDeg: &dir, WindSpeedKt: &speed, FlightCat: "VFR",
	}}, nil)

	cat, err := runway.OpenCatalog("")
	if err != nil {
		t.Fatalf("OpenCatalog: %v", err)
	}
	if err := cat.Seed(); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	t.Cleanup(func() { _ = cat.Close() })

	reg := tools.New()
	tools.Register(reg, fetcher, cat)
	return reg
}

type scriptedDecider struct {
	mu    sync.Mutex
	steps []llm.Decision
	i     int
}

func (d *scriptedDecider) Decide(_ context.Context, _ string, _ []llm.Step, _ []llm.ToolDescriptor, _ llm.Tracked) (llm.Decision, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.i >= len(d.steps) {
		return llm.Decision{Kind: llm.KindFinal, Text: "no more scripted steps"}, nil
	}
	step := d.steps[d.i]
	d.i++
	return step, nil
}

type fakeSink struct {
	mu      sync.Mutex
	records []audit.Record
}

func (s *fakeSink) Write(_ context.Context, rec audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}
func (s *fakeSink) Close() error { return nil }

func newTestServer(t *testing.T, sink audit.Sink) *Server {
	reg := newTestRegistry(t)
	decider := &scriptedDecider{steps: []llm.Decision{
		{Kind: llm.KindTool, ToolName: "fetch_metar", ToolArgs: map[string]any{"icao": "KMCO"}},
		{Kind: llm.KindFinal, Text: "Current conditions at KMCO are VFR with wind 220 at 10."},
	}}
	a := agent.New(reg, decider, sink, guardrail.Policy{ThresholdKT: 3.0}, 8, 0)
	return NewServer(a, sink, nil, Config{Port: 0})
}

func TestHandleHealthReturnsOK(t *testing.T) {
	s := newTestServer(t, &fakeSink{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
}

func TestHandleAskReturnsFinalResponse(t *testing.T) {
	s := newTestServer(t, &fakeSink{})
	body, _ := json.Marshal(map[string]string{"query": "metar KMCO"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rr.Code, rr.Body.String())
	}
	var resp agent.FinalResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.ResponseType != "metar" {
		t.Errorf("response_type = %q, want metar", resp.ResponseType)
	}
}

func TestHandleAskRejectsEmptyQuery(t *testing.T) {
	s := newTestServer(t, &fakeSink{})
	body, _ := json.Marshal(map[string]string{"query": ""})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestHandleAskStreamEmitsNDJSONWithFinalLast(t *testing.T) {
	s := newTestServer(t, &fakeSink{})
	body, _ := json.Marshal(map[string]string{"query": "metar KMCO"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ask/stream", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	if len(lines) == 0 {
		t.Fatal("expected at least one streamed event")
	}
	var last map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &last); err != nil {
		t.Fatalf("unmarshal last line: %v", err)
	}
	if last["type"] != "final" {
		t.Errorf("last event type = %v, want final", last["type"])
	}
}

func TestHandleAuditLookupFindsWrittenRecord(t *testing.T) {
	dir := t.TempDir()
	sink, err := audit.NewFileSink(dir + "/audit.jsonl")
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	defer sink.Close()

	rec := audit.NewRecord("known-trace-id", audit.CategoryGuardrailPass, map[string]any{"answer": "ok"})
	if err := sink.Write(context.Background(), rec); err != nil {
		t.Fatalf("Write: %v", err)
	}

	s := newTestServer(t, sink)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/audit/known-trace-id", nil)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rr.Code, rr.Body.String())
	}
	var got audit.Record
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.TraceID != "known-trace-id" {
		t.Errorf("trace_id = %q, want known-trace-id", got.TraceID)
	}
}

func TestHandleAuditLookupMissReturns404(t *testing.T) {
	dir := t.TempDir()
	sink, err := audit.NewFileSink(dir + "/audit.jsonl")
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	defer sink.Close()

	s := newTestServer(t, sink)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/audit/nonexistent", nil)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestHandleAuditLookupReportsNotImplementedForNonFileSink(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/audit/some-trace", nil)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d, want 501", rr.Code)
	}
}

func TestCORSHeadersPresentOnResponse(t *testing.T) {
	s := newTestServer(t, &fakeSink{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("missing CORS header")
	}
}
