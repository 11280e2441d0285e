package weather

// fallbackCatalog ships deterministic records for a fixed small set of
// stations, used whenever the upstream provider is unavailable or the
// station has no live data. Values are representative, hand-picked
// conditions rather than genuinely current observations.
var fallbackCatalog = map[string]MetarRecord{
	"KMCO": fallbackRecord("KMCO", 90, 8, nil, 27, 21, CategoryVFR),
	"KDEN": fallbackRecord("KDEN", 220, 10, nil, 15, -2, CategoryVFR),
	"KJFK": fallbackRecord("KJFK", 280, 14, intp(22), 12, 4, CategoryMVFR),
	"KORD": fallbackRecord("KORD", 240, 12, nil, 8, 1, CategoryVFR),
	"RPLL": fallbackRecord("RPLL", 270, 11, nil, 31, 25, CategoryVFR),
}

func intp(v int) *int { return &v }

func fallbackRecord(station string, dir, speed int, gust *int, tempC, dewC int, cat FlightCategory) MetarRecord {
	d, s, t, dp := dir, speed, tempC, dewC
	return MetarRecord{
		Station:         station,
		ObservationTime: "fallback",
		Raw:             station + " FALLBACK DATA",
		WindDirection:   &d,
		WindSpeed:       &s,
		WindGust:        gust,
		TemperatureC:    &t,
		DewpointC:       &dp,
		FlightCategory:  cat,
		Source:          SourceFallback,
	}
}

// minimalUnknownRecord is returned when a station has neither live data nor
// a registered fallback: all numerics are null and the category is UNKNOWN,
// per §4.2.
func minimalUnknownRecord(station string) MetarRecord {
	return MetarRecord{
		Station:        station,
		Raw:            "",
		FlightCategory: CategoryUnknown,
		Source:         SourceFallback,
	}
}
