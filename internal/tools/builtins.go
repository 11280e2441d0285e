package tools

import (
	"context"
	"fmt"

	"github.com/flightline/aviation-assistant/internal/runway"
	"github.com/flightline/aviation-assistant/internal/weather"
)

// MetarResult is the structured payload of a successful fetch_metar call.
// Its shape is what AgentState.track (C5 OBSERVE) recognizes as "this
// result is a MetarRecord".
type MetarResult struct {
	Record weather.MetarRecord `json:"metar"`
}

// RunwayResult is the structured payload of a successful select_best_runway
// call — the shape AgentState.track recognizes as "this result carries a tracked
// runway heading".
type RunwayResult struct {
	Selection runway.Selection `json:"selection"`
}

// NotAvailableResult is returned by the stub tools (§4.4): no real
// aircraft-performance database or manual corpus ships with this core
// (§1 non-goals), so these tools return a typed "not available" result
// rather than panicking the dispatcher.
type NotAvailableResult struct {
	Reason string `json:"reason"`
}

// Register installs the six §4.4 tools into reg: fetch_metar,
// select_best_runway, fetch_aircraft_specs, calculate_fuel_burn,
// query_manual, log_flight_event.
func Register(reg *Registry, fetcher *weather.Fetcher, catalog *runway.Catalog) {
	reg.Register(fetchMetarTool(fetcher))
	reg.Register(selectBestRunwayTool(fetcher, catalog))
	reg.Register(stubTool("fetch_aircraft_specs", "Look up performance specifications for an aircraft type.",
		[]ArgSpec{{Name: "aircraft_type", Required: true, Kind: KindString}}))
	reg.Register(stubTool("calculate_fuel_burn", "Estimate fuel burn for a given aircraft and route.",
		[]ArgSpec{{Name: "aircraft_type", Required: true, Kind: KindString}, {Name: "distance_nm", Required: false, Kind: KindNumber}}))
	reg.Register(stubTool("query_manual", "Search the aircraft flight manual for a procedure.",
		[]ArgSpec{{Name: "query", Required: true, Kind: KindString}}))
	reg.Register(logFlightEventTool())
}

func fetchMetarTool(fetcher *weather.Fetcher) *Tool {
	return &Tool{
		Name:        "fetch_metar",
		Description: "Fetch the current METAR observation for an ICAO airport code.",
		ArgSchema:   []ArgSpec{{Name: "icao", Required: true, Kind: KindString}},
		Fn: func(ctx context.Context, args Args) Result {
			icao, _ := args["icao"].(string)
			rec, err := fetcher.FetchMETAR(ctx, icao)
			if err != nil {
				return Result{ToolName: "fetch_metar", Err: err.Error()}
			}
			return Result{ToolName: "fetch_metar", Payload: MetarResult{Record: rec}}
		},
	}
}

func selectBestRunwayTool(fetcher *weather.Fetcher, catalog *runway.Catalog) *Tool {
	return &Tool{
		Name:        "select_best_runway",
		Description: "Select the runway that minimizes crosswind for the current wind at an airport, or report the crosswind for a caller-named runway_id.",
		ArgSchema: []ArgSpec{
			{Name: "icao", Required: true, Kind: KindString},
			{Name: "runway_id", Required: false, Kind: KindString},
			{Name: "wind_dir", Required: false, Kind: KindNumber, Min: 0, Max: 360},
			{Name: "wind_speed", Required: false, Kind: KindNumber, Min: 0, Max: 300},
		},
		Fn: func(ctx context.Context, args Args) Result {
			icao, _ := args["icao"].(string)

			w, err := resolveWind(ctx, fetcher, icao, args)
			if err != nil {
				return Result{ToolName: "select_best_runway", Err: err.Error()}
			}

			var sel runway.Selection
			if runwayID, ok := args["runway_id"].(string); ok && runwayID != "" {
				sel, err = runway.SelectByID(catalog, icao, runwayID, w)
			} else {
				sel, err = runway.Select(catalog, icao, w)
			}
			if err != nil {
				return Result{ToolName: "select_best_runway", Err: err.Error()}
			}
			return Result{ToolName: "select_best_runway", Payload: RunwayResult{Selection: sel}}
		},
	}
}

// resolveWind uses explicit wind_dir/wind_speed arguments when given,
// otherwise fetches the station's current METAR to derive them.
func resolveWind(ctx context.Context, fetcher *weather.Fetcher, icao string, args Args) (runway.Wind, error) {
	if d, ok := args["wind_dir"]; ok {
		dir := int(toFloat(d))
		speed := 0
		if s, ok := args["wind_speed"]; ok {
			speed = int(toFloat(s))
		}
		return runway.Wind{Dir: &dir, Speed: speed}, nil
	}

	rec, err := fetcher.FetchMETAR(ctx, icao)
	if err != nil {
		return runway.Wind{}, err
	}
	speed := 0
	if rec.WindSpeed != nil {
		speed = *rec.WindSpeed
	}
	return runway.Wind{Dir: rec.WindDirection, Speed: speed}, nil
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func stubTool(name, description string, schema []ArgSpec) *Tool {
	return &Tool{
		Name:        name,
		Description: description,
		ArgSchema:   schema,
		Fn: func(_ context.Context, _ Args) Result {
			return Result{ToolName: name, Payload: NotAvailableResult{Reason: fmt.Sprintf("%s is not available in this deployment", name)}}
		},
	}
}

// FlightEventResult is the payload of a successful log_flight_event call.
// Persistence beyond this in-memory acknowledgement is a stub per §1
// non-goals ("Persistence of flight logs ... not implemented in the source
// beyond stubs").
type FlightEventResult struct {
	Logged bool   `json:"logged"`
	Event  string `json:"event"`
}

func logFlightEventTool() *Tool {
	return &Tool{
		Name:        "log_flight_event",
		Description: "Record a flight event for later review.",
		ArgSchema:   []ArgSpec{{Name: "event", Required: true, Kind: KindString}},
		Fn: func(_ context.Context, args Args) Result {
			event, _ := args["event"].(string)
			return Result{ToolName: "log_flight_event", Payload: FlightEventResult{Logged: true, Event: event}}
		},
	}
}
