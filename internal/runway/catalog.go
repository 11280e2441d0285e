// Package runway implements runway selection (C3): picking the runway
// heading that minimizes crosswind for a given wind, from a preloaded
// catalog when one exists, or a synthetic derivation otherwise.
package runway

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/paulmach/orb"
)

// Runway is one catalog entry: a runway identifier and its true heading,
// plus the station's magnetic variation when known.
type Runway struct {
	ICAO        string
	ID          string // e.g. "26", "17L"
	HeadingTrue int
	Variation   *int // degrees east-positive; nil when unknown
}

// Airport is descriptive catalog metadata: a reference point plus its
// runways. The point is descriptive only: neither the rationale text nor the
// crosswind math, which is heading-only per spec, uses it.
type Airport struct {
	ICAO     string
	Point    orb.Point // [lon, lat]
	Runways  []Runway
}

// Catalog is a lookup of known airports and their runways, backed by an
// embedded SQLite database opened read-write (Seed inserts the built-in
// rows; lookups only read) — grounded on internal/storage.OpenSQLite and
// internal/state.Tracker's schema-on-open shape.
type Catalog struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS airports (
	icao TEXT PRIMARY KEY,
	lon  REAL NOT NULL,
	lat  REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS runways (
	icao         TEXT NOT NULL,
	runway_id    TEXT NOT NULL,
	heading_true INTEGER NOT NULL,
	variation    INTEGER,
	PRIMARY KEY (icao, runway_id)
);
`

// OpenCatalog opens (creating if necessary) a SQLite-backed runway catalog
// at path. An empty path opens an in-memory catalog. OpenCatalog creates
// only the schema; callers load the built-in airports with Seed.
func OpenCatalog(path string) (*Catalog, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("runway: open catalog: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("runway: create schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Close closes the catalog's database handle.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Seed inserts a fixed set of well-known airports and their runways. Safe
// to call repeatedly; existing rows are replaced.
func (c *Catalog) Seed() error {
	for _, a := range defaultAirports {
		if _, err := c.db.Exec(`INSERT OR REPLACE INTO airports (icao, lon, lat) VALUES (?, ?, ?)`,
			a.ICAO, a.Point[0], a.Point[1]); err != nil {
			return fmt.Errorf("runway: seed airport %s: %w", a.ICAO, err)
		}
		for _, r := range a.Runways {
			if _, err := c.db.Exec(`INSERT OR REPLACE INTO runways (icao, runway_id, heading_true, variation) VALUES (?, ?, ?, ?)`,
				r.ICAO, r.ID, r.HeadingTrue, r.Variation); err != nil {
				return fmt.Errorf("runway: seed runway %s/%s: %w", r.ICAO, r.ID, err)
			}
		}
	}
	return nil
}

// Lookup returns the airport and its runways for icao, or ok=false when the
// catalog has no entry.
func (c *Catalog) Lookup(icao string) (Airport, bool, error) {
	row := c.db.QueryRow(`SELECT lon, lat FROM airports WHERE icao = ?`, icao)
	var lon, lat float64
	if err := row.Scan(&lon, &lat); err != nil {
		if err == sql.ErrNoRows {
			return Airport{}, false, nil
		}
		return Airport{}, false, fmt.Errorf("runway: lookup airport %s: %w", icao, err)
	}

	rows, err := c.db.Query(`SELECT runway_id, heading_true, variation FROM runways WHERE icao = ?`, icao)
	if err != nil {
		return Airport{}, false, fmt.Errorf("runway: lookup runways %s: %w", icao, err)
	}
	defer rows.Close()

	a := Airport{ICAO: icao, Point: orb.Point{lon, lat}}
	for rows.Next() {
		var r Runway
		var variation sql.NullInt64
		if err := rows.Scan(&r.ID, &r.HeadingTrue, &variation); err != nil {
			return Airport{}, false, fmt.Errorf("runway: scan runway row: %w", err)
		}
		r.ICAO = icao
		if variation.Valid {
			v := int(variation.Int64)
			r.Variation = &v
		}
		a.Runways = append(a.Runways, r)
	}
	return a, true, nil
}

func variationPtr(v int) *int { return &v }

// defaultAirports is the fixed catalog the core ships with.
var defaultAirports = []Airport{
	{
		ICAO:  "KDEN",
		Point: orb.Point{-104.6737, 39.8561},
		Runways: []Runway{
			{ICAO: "KDEN", ID: "08", HeadingTrue: 80, Variation: variationPtr(8)},
			{ICAO: "KDEN", ID: "26", HeadingTrue: 260, Variation: variationPtr(8)},
			{ICAO: "KDEN", ID: "17L", HeadingTrue: 170, Variation: variationPtr(8)},
			{ICAO: "KDEN", ID: "35R", HeadingTrue: 350, Variation: variationPtr(8)},
		},
	},
	{
		ICAO:  "KMCO",
		Point: orb.Point{-81.3089, 28.4294},
		Runways: []Runway{
			{ICAO: "KMCO", ID: "18L", HeadingTrue: 180, Variation: variationPtr(-5)},
			{ICAO: "KMCO", ID: "36R", HeadingTrue: 360, Variation: variationPtr(-5)},
			{ICAO: "KMCO", ID: "09", HeadingTrue: 90, Variation: variationPtr(-5)},
			{ICAO: "KMCO", ID: "27", HeadingTrue: 270, Variation: variationPtr(-5)},
		},
	},
	{
		ICAO:  "RPLL",
		Point: orb.Point{121.0198, 14.5086},
		Runways: []Runway{
			{ICAO: "RPLL", ID: "06", HeadingTrue: 60, Variation: variationPtr(1)},
			{ICAO: "RPLL", ID: "24", HeadingTrue: 240, Variation: variationPtr(1)},
		},
	},
}
