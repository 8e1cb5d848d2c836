package store

import (
	"database/sql"
	"fmt"
)

// PitStop references the lap it ended; it does not own the lap row
type PitStop struct {
	PitStopID  int64
	SessionID  string
	DriverID   string
	LapID      int64 // 0 when the lap could not be resolved
	DurationMS int64
}

// NaturalKey returns the dedup key for a pit stop
func (p *PitStop) NaturalKey() string {
	return fmt.Sprintf("%s|%s|%d", p.SessionID, p.DriverID, p.LapID)
}

// GetPitStopKeys preloads the natural keys already present for a
// session. An empty sessionID loads the whole table.
func (s *Store) GetPitStopKeys(sessionID string) (map[string]bool, error) {
	query := "SELECT session_id, driver_id, lap_id FROM pit_stops WHERE lap_id IS NOT NULL"
	args := []interface{}{}
	if sessionID != "" {
		query += " AND session_id = ?"
		args = append(args, sessionID)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pit stop keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]bool)
	for rows.Next() {
		p := PitStop{}
		if err := rows.Scan(&p.SessionID, &p.DriverID, &p.LapID); err != nil {
			return nil, fmt.Errorf("failed to scan pit stop key: %w", err)
		}
		keys[p.NaturalKey()] = true
	}

	return keys, rows.Err()
}

// UpsertPitStops inserts or updates pit stop rows in one transaction,
// keyed by (session, driver, lap).
func (s *Store) UpsertPitStops(stops []*PitStop) error {
	if len(stops) == 0 {
		return nil
	}

	return s.Transaction(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO pit_stops (session_id, driver_id, lap_id, duration_ms)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(session_id, driver_id, lap_id) DO UPDATE SET
				duration_ms = excluded.duration_ms
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare pit stop upsert: %w", err)
		}
		defer stmt.Close()

		for _, p := range stops {
			var lapID interface{}
			if p.LapID != 0 {
				lapID = p.LapID
			}
			if _, err := stmt.Exec(p.SessionID, p.DriverID, lapID, p.DurationMS); err != nil {
				return fmt.Errorf("failed to upsert pit stop: %w", err)
			}
		}
		return nil
	})
}

// GetPitStopLapIDs returns the set of lap_ids referenced by pit stops.
// An empty sessionID covers the whole table.
func (s *Store) GetPitStopLapIDs(sessionID string) (map[int64]bool, error) {
	query := "SELECT DISTINCT lap_id FROM pit_stops WHERE lap_id IS NOT NULL"
	args := []interface{}{}
	if sessionID != "" {
		query += " AND session_id = ?"
		args = append(args, sessionID)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pit stop laps: %w", err)
	}
	defer rows.Close()

	lapIDs := make(map[int64]bool)
	for rows.Next() {
		var lapID int64
		if err := rows.Scan(&lapID); err != nil {
			return nil, fmt.Errorf("failed to scan pit stop lap: %w", err)
		}
		lapIDs[lapID] = true
	}

	return lapIDs, rows.Err()
}
