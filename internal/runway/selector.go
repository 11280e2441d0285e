package runway

import (
	"fmt"
	"strings"

	"github.com/flightline/aviation-assistant/internal/geometry"
)

// Wind is the minimal wind shape Select needs: direction and speed, already
// resolved from a MetarRecord by the caller (C5/C4), keeping this package
// free of a weather import.
type Wind struct {
	Dir   *int
	Speed int
}

// Selection is the result of picking a runway for a given wind: the chosen
// runway heading and a human-readable (not machine-parsed) rationale.
type Selection struct {
	ICAO        string
	RunwayID    string
	HeadingTrue int
	Variation   *int // station magnetic variation, nil for a synthetic selection
	Rationale   string
}

// Select picks the runway from the catalog (when available) that minimizes
// the crosswind component against wind, breaking ties by preferring the
// larger headwind. When the catalog has no entry for icao, it derives a
// synthetic heading directly from the wind direction.
func Select(cat *Catalog, icao string, wind Wind) (Selection, error) {
	airport, ok, err := cat.Lookup(icao)
	if err != nil {
		return Selection{}, fmt.Errorf("runway: select for %s: %w", icao, err)
	}
	if !ok || len(airport.Runways) == 0 {
		return syntheticSelection(icao, wind), nil
	}
	return selectFromCatalog(airport, wind), nil
}

// SelectByID reports the crosswind/headwind for a caller-specified runway
// rather than the wind-optimal one Select would pick, for a query that
// names the runway explicitly (e.g. "runway 26"). It returns an error when
// the catalog has no entry for icao or no runway matching runwayID.
func SelectByID(cat *Catalog, icao, runwayID string, wind Wind) (Selection, error) {
	airport, ok, err := cat.Lookup(icao)
	if err != nil {
		return Selection{}, fmt.Errorf("runway: select %s/%s: %w", icao, runwayID, err)
	}
	if !ok {
		return Selection{}, fmt.Errorf("runway: no catalog entry for %s", icao)
	}
	for _, r := range airport.Runways {
		if !strings.EqualFold(r.ID, runwayID) {
			continue
		}
		cross, head := scoreRunway(r, wind)
		rationale := fmt.Sprintf(
			"Runway %s (heading %d°) as requested: crosswind %.1f kt, headwind %.1f kt for the reported wind.",
			r.ID, r.HeadingTrue, cross, head,
		)
		return Selection{ICAO: airport.ICAO, RunwayID: r.ID, HeadingTrue: r.HeadingTrue, Variation: r.Variation, Rationale: rationale}, nil
	}
	return Selection{}, fmt.Errorf("runway: no runway %s at %s", runwayID, icao)
}

func selectFromCatalog(airport Airport, wind Wind) Selection {
	best := airport.Runways[0]
	bestCross, bestHead := scoreRunway(best, wind)

	for _, r := range airport.Runways[1:] {
		cross, head := scoreRunway(r, wind)
		if cross < bestCross-1e-9 {
			best, bestCross, bestHead = r, cross, head
			continue
		}
		if cross < bestCross+1e-9 && head > bestHead {
			// Tie on crosswind: prefer the larger headwind (never choose a
			// tailwind over a headwind when one is available).
			best, bestCross, bestHead = r, cross, head
		}
	}

	rationale := fmt.Sprintf(
		"Runway %s (heading %d°) minimizes crosswind at %.1f kt (headwind %.1f kt) for the reported wind.",
		best.ID, best.HeadingTrue, bestCross, bestHead,
	)
	return Selection{ICAO: airport.ICAO, RunwayID: best.ID, HeadingTrue: best.HeadingTrue, Variation: best.Variation, Rationale: rationale}
}

func scoreRunway(r Runway, wind Wind) (crosswind, headwind float64) {
	if wind.Dir == nil {
		return 0, float64(wind.Speed)
	}
	delta := geometry.AngleBetween(*wind.Dir, r.HeadingTrue)
	return geometry.Crosswind(float64(wind.Speed), delta), geometry.Headwind(float64(wind.Speed), delta)
}

// syntheticSelection derives a plausible headwind-aligned heading directly
// from the wind direction when no catalog entry exists, reporting a
// synthetic runway number per §4.3.
func syntheticSelection(icao string, wind Wind) Selection {
	heading := 0
	if wind.Dir != nil {
		heading = *wind.Dir
	}
	number := (heading + 5) / 10
	if number == 0 {
		number = 36
	}
	if number > 36 {
		number = number % 36
	}
	runwayHeading := number * 10 % 360

	rationale := fmt.Sprintf(
		"No runway catalog entry for %s; derived a synthetic headwind-aligned runway %02d (heading %d°) from the reported wind direction.",
		icao, number, runwayHeading,
	)
	return Selection{ICAO: icao, RunwayID: fmt.Sprintf("%02d", number), HeadingTrue: runwayHeading, Rationale: rationale}
}
