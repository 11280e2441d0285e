package weather

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/sync/singleflight"

	"github.com/flightline/aviation-assistant/internal/audit"
)

// ErrInvalidStation is returned when the ICAO code is not 4 uppercase
// letters. This never reaches the guardrail: it's a client error, not a
// weather observation.
var ErrInvalidStation = errors.New("weather: invalid station code")

// Fetcher implements the §4.2 contract: FetchMETAR never fails the caller
// for upstream reasons, only for a malformed station code.
type Fetcher struct {
	provider Provider
	sink     audit.Sink
	group    singleflight.Group
}

// NewFetcher builds a Fetcher over the given upstream Provider, writing
// fetch traces to sink. sink may be nil, in which case traces are dropped.
func NewFetcher(provider Provider, sink audit.Sink) *Fetcher {
	return &Fetcher{provider: provider, sink: sink}
}

// ValidateICAO normalizes and validates a 4-letter ICAO station code.
func ValidateICAO(icao string) (string, error) {
	icao = strings.ToUpper(strings.TrimSpace(icao))
	if len(icao) != 4 {
		return "", fmt.Errorf("%w: %q", ErrInvalidStation, icao)
	}
	for _, r := range icao {
		if !unicode.IsLetter(r) || r > unicode.MaxASCII {
			return "", fmt.Errorf("%w: %q", ErrInvalidStation, icao)
		}
	}
	return icao, nil
}

// FetchMETAR fetches and normalizes the current METAR for icao. Upstream
// failures degrade to a deterministic fallback record rather than
// propagating an error; only a malformed ICAO code returns an error.
//
// Concurrent calls for the same station within this process's lifetime are
// deduplicated via singleflight.Group so only one upstream round trip is in
// flight at a time. Each caller receives its own copy of the MetarRecord
// struct; its pointer fields (wind, temperature, dewpoint) point at the same
// values for every caller that shared one upstream fetch, and for every
// request served the same fallbackCatalog entry. Nothing writes through
// them after construction.
func (f *Fetcher) FetchMETAR(ctx context.Context, icao string) (MetarRecord, error) {
	station, err := ValidateICAO(icao)
	if err != nil {
		return MetarRecord{}, err
	}

	start := time.Now()
	v, err, _ := f.group.Do(station, func() (any, error) {
		raw, err := f.provider.FetchMETAR(ctx, station)
		if err != nil {
			return MetarRecord{}, err
		}
		return normalizeRaw(raw), nil
	})
	latency := time.Since(start)

	if err != nil {
		rec, ok := fallbackCatalog[station]
		if !ok {
			rec = minimalUnknownRecord(station)
		}
		f.trace(ctx, station, false, latency)
		return rec, nil
	}

	f.trace(ctx, station, true, latency)
	return v.(MetarRecord), nil
}

func (f *Fetcher) trace(ctx context.Context, station string, ok bool, latency time.Duration) {
	if f.sink == nil {
		return
	}
	rec := audit.NewRecord(audit.NewTraceID(time.Now().UnixMilli()), audit.CategoryFetch, map[string]any{
		"type":       "fetch",
		"station":    station,
		"ok":         ok,
		"latency_ms": latency.Milliseconds(),
	})
	_ = f.sink.Write(ctx, rec)
}
