package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RawMETAR is the upstream provider's raw decoded observation, before
// normalization into a MetarRecord.
type RawMETAR struct {
	Station       string  `json:"station"`
	ObservedAt    string  `json:"observation_time"`
	RawText       string  `json:"raw_text"`
	WindDirDeg    *int    `json:"wind_dir_degrees"`
	WindSpeedKt   *int    `json:"wind_speed_kt"`
	WindGustKt    *int    `json:"wind_gust_kt"`
	TempC         *int    `json:"temp_c"`
	DewpointC     *int    `json:"dewpoint_c"`
	VisibilitySM  *float64 `json:"visibility_statute_miles"`
	AltimeterInHg *string `json:"altim_in_hg"`
	FlightCat     string  `json:"flight_category"`
}

// Provider is the upstream aviation weather data contract. Exact transport
// is out of scope (§1); only the fetch contract is specified.
type Provider interface {
	FetchMETAR(ctx context.Context, icao string) (RawMETAR, error)
}

// HTTPProvider is a stdlib net/http adapter over a JSON METAR endpoint.
// The teacher pack never imports an HTTP client library anywhere (chi is a
// server router, not a client), so this stays on stdlib net/http rather
// than pulling in one more dependency for a single GET request.
type HTTPProvider struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPProvider builds an HTTPProvider with a bounded-timeout client.
func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPProvider{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: timeout},
	}
}

// FetchMETAR issues "<BaseURL>/metar/<icao>" and decodes a RawMETAR.
func (p *HTTPProvider) FetchMETAR(ctx context.Context, icao string) (RawMETAR, error) {
	url := fmt.Sprintf("%s/metar/%s", p.BaseURL, icao)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return RawMETAR{}, fmt.Errorf("weather: build request: %w", err)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return RawMETAR{}, fmt.Errorf("weather: upstream request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return RawMETAR{}, fmt.Errorf("weather: upstream status %d: %s", resp.StatusCode, string(body))
	}

	var raw RawMETAR
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return RawMETAR{}, fmt.Errorf("weather: decode upstream response: %w", err)
	}
	return raw, nil
}

func normalizeRaw(raw RawMETAR) MetarRecord {
	cat := FlightCategory(raw.FlightCat)
	switch cat {
	case CategoryVFR, CategoryMVFR, CategoryIFR, CategoryLIFR:
	default:
		cat = CategoryUnknown
	}
	return MetarRecord{
		Station:         raw.Station,
		ObservationTime: raw.ObservedAt,
		Raw:             raw.RawText,
		WindDirection:   raw.WindDirDeg,
		WindSpeed:       raw.WindSpeedKt,
		WindGust:        raw.WindGustKt,
		TemperatureC:    raw.TempC,
		DewpointC:       raw.DewpointC,
		VisibilitySM:    raw.VisibilitySM,
		Altimeter:       raw.AltimeterInHg,
		FlightCategory:  cat,
		Source:          SourceLive,
	}
}
