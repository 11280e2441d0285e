package agent

import (
	"github.com/flightline/aviation-assistant/internal/geometry"
	"github.com/flightline/aviation-assistant/internal/guardrail"
	"github.com/flightline/aviation-assistant/internal/weather"
)

// MetarPayload is the §6 response shape's "metar" block.
type MetarPayload struct {
	Station        string                  `json:"station"`
	Time           string                  `json:"time"`
	Raw            string                  `json:"raw"`
	WindDirection  *int                    `json:"wind_direction"`
	WindSpeed      *int                    `json:"wind_speed"`
	WindGust       *int                    `json:"wind_gust"`
	TemperatureC   *int                    `json:"temperature_c"`
	DewpointC      *int                    `json:"dewpoint_c"`
	FlightCategory weather.FlightCategory  `json:"flight_category"`
	Source         weather.Source          `json:"source"`
}

func metarPayload(rec weather.MetarRecord) MetarPayload {
	return MetarPayload{
		Station:        rec.Station,
		Time:           rec.ObservationTime,
		Raw:            rec.Raw,
		WindDirection:  rec.WindDirection,
		WindSpeed:      rec.WindSpeed,
		WindGust:       rec.WindGust,
		TemperatureC:   rec.TemperatureC,
		DewpointC:      rec.DewpointC,
		FlightCategory: rec.FlightCategory,
		Source:         rec.Source,
	}
}

// LandingPayload is the §6 response shape's "landing" block.
type LandingPayload struct {
	RunwayNumber  string  `json:"runway_number"`
	RunwayHeading int     `json:"runway_heading"`
	CrosswindKT   float64 `json:"crosswind_kt"`
	HeadwindKT    float64 `json:"headwind_kt"`
}

func landingPayload(rec weather.MetarRecord, runwayHdg int, runwayNumber string) LandingPayload {
	speed := 0
	if rec.WindSpeed != nil {
		speed = *rec.WindSpeed
	}
	delta := 0.0
	if rec.WindDirection != nil {
		delta = geometry.AngleBetween(*rec.WindDirection, runwayHdg)
	}
	return LandingPayload{
		RunwayNumber:  runwayNumber,
		RunwayHeading: runwayHdg,
		CrosswindKT:   geometry.Crosswind(float64(speed), delta),
		HeadwindKT:    geometry.Headwind(float64(speed), delta),
	}
}

// FinalResponse is the §6 non-streaming response shape.
type FinalResponse struct {
	ResponseType    string          `json:"response_type"`
	Metar           *MetarPayload   `json:"metar,omitempty"`
	Landing         *LandingPayload `json:"landing,omitempty"`
	TextResponse    string          `json:"text_response,omitempty"`
	GuardrailStatus guardrail.Status `json:"guardrail_status"`
	IsFallback      bool            `json:"is_fallback"`
	Details         map[string]any  `json:"details,omitempty"`
}
