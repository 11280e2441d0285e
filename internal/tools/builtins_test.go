package tools

import (
	"context"
	"testing"

	"github.com/flightline/aviation-assistant/internal/runway"
	"github.com/flightline/aviation-assistant/internal/weather"
)

type fakeProvider struct {
	err error
	raw weather.RawMETAR
}

func (f *fakeProvider) FetchMETAR(_ context.Context, icao string) (weather.RawMETAR, error) {
	if f.err != nil {
		return weather.RawMETAR{}, f.err
	}
	return f.raw, nil
}

func newTestCatalog(t *testing.T) *runway.Catalog {
	t.Helper()
	cat, err := runway.OpenCatalog("")
	if err != nil {
		t.Fatalf("OpenCatalog: %v", err)
	}
	if err := cat.Seed(); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	t.Cleanup(func() { _ = cat.Close() })
	return cat
}

func TestFetchMetarToolReturnsMetarResult(t *testing.T) {
	dir, speed := 220, 10
	fetcher := weather.NewFetcher(&fakeProvider{raw: weather.RawMETAR{Station: "KDEN", WindDirDeg: &dir, WindSpeedKt: &speed, FlightCat: "VFR"}}, nil)

	reg := New()
	Register(reg, fetcher, newTestCatalog(t))

	res := reg.Dispatch(context.Background(), "fetch_metar", Args{"icao": "KDEN"})
	if !res.OK() {
		t.Fatalf("expected success, got %q", res.Err)
	}
	mr, ok := res.Payload.(MetarResult)
	if !ok {
		t.Fatalf("payload type = %T, want MetarResult", res.Payload)
	}
	if mr.Record.Station != "KDEN" {
		t.Errorf("station = %q, want KDEN", mr.Record.Station)
	}
}

func TestSelectBestRunwayToolWithExplicitWind(t *testing.T) {
	fetcher := weather.NewFetcher(&fakeProvider{}, nil)
	reg := New()
	Register(reg, fetcher, newTestCatalog(t))

	res := reg.Dispatch(context.Background(), "select_best_runway", Args{
		"icao": "KDEN", "wind_dir": float64(220), "wind_speed": float64(10),
	})
	if !res.OK() {
		t.Fatalf("expected success, got %q", res.Err)
	}
	rr, ok := res.Payload.(RunwayResult)
	if !ok {
		t.Fatalf("payload type = %T, want RunwayResult", res.Payload)
	}
	if rr.Selection.HeadingTrue != 260 {
		t.Errorf("heading = %d, want 260", rr.Selection.HeadingTrue)
	}
}

func TestStubToolsReturnNotAvailable(t *testing.T) {
	fetcher := weather.NewFetcher(&fakeProvider{}, nil)
	reg := New()
	Register(reg, fetcher, newTestCatalog(t))

	res := reg.Dispatch(context.Background(), "query_manual", Args{"query": "stall recovery"})
	if !res.OK() {
		t.Fatalf("stub tool should not fail dispatch, got %q", res.Err)
	}
	if _, ok := res.Payload.(NotAvailableResult); !ok {
		t.Fatalf("payload type = %T, want NotAvailableResult", res.Payload)
	}
}
