package store

// Schema v1 - Initial database schema
//
// Three strata share one database file: raw_records (as received from
// the upstream feed), the canonical tables this core writes, and the
// points_rules input table (read-only during scoring).
const schemaV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Raw feed records, persisted upstream of this core.
-- One row per record as received; payload is the source JSON object.
CREATE TABLE IF NOT EXISTS raw_records (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  source TEXT NOT NULL,
  session_key TEXT NOT NULL,
  payload TEXT NOT NULL,
  fetched_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_raw_records_source ON raw_records(source, session_key);

-- Canonical drivers; created once, never deleted
CREATE TABLE IF NOT EXISTS drivers (
  driver_id TEXT PRIMARY KEY,
  first_name TEXT,
  last_name TEXT,
  full_name TEXT,
  short_code TEXT,
  country_code TEXT
);

-- Curated + seeded name aliases; many aliases per driver
CREATE TABLE IF NOT EXISTS driver_alias (
  alias TEXT PRIMARY KEY,
  driver_id TEXT NOT NULL REFERENCES drivers(driver_id)
);

CREATE INDEX IF NOT EXISTS idx_driver_alias_driver ON driver_alias(driver_id);

-- Country code aliases (e.g. upstream three-letter variants)
CREATE TABLE IF NOT EXISTS country_alias (
  alias TEXT PRIMARY KEY,
  country_code TEXT NOT NULL
);

-- One car number per (driver, season)
CREATE TABLE IF NOT EXISTS season_car_numbers (
  driver_id TEXT NOT NULL REFERENCES drivers(driver_id),
  season INTEGER NOT NULL,
  car_number INTEGER NOT NULL,
  PRIMARY KEY (driver_id, season)
);

CREATE INDEX IF NOT EXISTS idx_season_car_numbers_lookup ON season_car_numbers(season, car_number);

CREATE TABLE IF NOT EXISTS meetings (
  meeting_id TEXT PRIMARY KEY,
  meeting_key TEXT UNIQUE NOT NULL,
  season INTEGER,
  circuit_short_name TEXT,
  circuit_name TEXT
);

CREATE TABLE IF NOT EXISTS sessions (
  session_id TEXT PRIMARY KEY,
  session_key TEXT UNIQUE NOT NULL,
  meeting_id TEXT REFERENCES meetings(meeting_id),
  session_type TEXT,
  points_category TEXT NOT NULL DEFAULT 'none',
  scheduled_laps INTEGER,
  start_time DATETIME,
  end_time DATETIME
);

CREATE INDEX IF NOT EXISTS idx_sessions_meeting ON sessions(meeting_id);

CREATE TABLE IF NOT EXISTS laps (
  lap_id INTEGER PRIMARY KEY AUTOINCREMENT,
  session_id TEXT NOT NULL REFERENCES sessions(session_id),
  driver_id TEXT NOT NULL REFERENCES drivers(driver_id),
  lap_number INTEGER NOT NULL,
  date_start TEXT NOT NULL,
  duration_ms INTEGER,
  is_pit_out_lap INTEGER NOT NULL DEFAULT 0,
  is_pit_in_lap INTEGER NOT NULL DEFAULT 0,
  is_valid INTEGER NOT NULL DEFAULT 1,
  UNIQUE (session_id, driver_id, lap_number, date_start)
);

CREATE INDEX IF NOT EXISTS idx_laps_session ON laps(session_id);
CREATE INDEX IF NOT EXISTS idx_laps_driver_lap ON laps(session_id, driver_id, lap_number);

CREATE TABLE IF NOT EXISTS pit_stops (
  pit_stop_id INTEGER PRIMARY KEY AUTOINCREMENT,
  session_id TEXT NOT NULL REFERENCES sessions(session_id),
  driver_id TEXT NOT NULL REFERENCES drivers(driver_id),
  lap_id INTEGER REFERENCES laps(lap_id),
  duration_ms INTEGER,
  UNIQUE (session_id, driver_id, lap_id)
);

CREATE INDEX IF NOT EXISTS idx_pit_stops_lap ON pit_stops(lap_id);

CREATE TABLE IF NOT EXISTS race_control (
  message_id INTEGER PRIMARY KEY AUTOINCREMENT,
  session_id TEXT NOT NULL REFERENCES sessions(session_id),
  date TEXT,
  category TEXT,
  flag TEXT,
  scope TEXT,
  message TEXT,
  driver_id TEXT REFERENCES drivers(driver_id),
  referenced_lap_id INTEGER REFERENCES laps(lap_id),
  UNIQUE (session_id, date, category, message)
);

CREATE INDEX IF NOT EXISTS idx_race_control_session ON race_control(session_id);
CREATE INDEX IF NOT EXISTS idx_race_control_ref_lap ON race_control(referenced_lap_id);

CREATE TABLE IF NOT EXISTS results (
  session_id TEXT NOT NULL REFERENCES sessions(session_id),
  driver_id TEXT NOT NULL REFERENCES drivers(driver_id),
  finish_position INTEGER,
  status TEXT NOT NULL DEFAULT 'finished',
  laps_completed INTEGER,
  fastest_lap INTEGER NOT NULL DEFAULT 0,
  points REAL NOT NULL DEFAULT 0,
  PRIMARY KEY (session_id, driver_id)
);

-- Declarative points ruleset; read-only input to scoring
CREATE TABLE IF NOT EXISTS points_rules (
  season INTEGER NOT NULL,
  race_category TEXT NOT NULL,
  completion_band TEXT NOT NULL,
  position INTEGER,
  bonus TEXT,
  points REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_points_rules_lookup ON points_rules(season, race_category, completion_band);
`

// Schema v2 - Performance indexes for derivation and scoring passes
const schemaV2 = `
CREATE INDEX IF NOT EXISTS idx_laps_validity ON laps(session_id, is_valid);
CREATE INDEX IF NOT EXISTS idx_results_session ON results(session_id, finish_position);
CREATE INDEX IF NOT EXISTS idx_race_control_category ON race_control(session_id, category, flag);
`
