package store

import (
	"database/sql"
	"fmt"
)

// Lap represents one canonical lap row.
// IsPitInLap and IsValid are derived flags, recomputed by the validity pass.
type Lap struct {
	LapID       int64
	SessionID   string
	DriverID    string
	LapNumber   int
	DateStart   string
	DurationMS  int64
	IsPitOutLap bool
	IsPitInLap  bool
	IsValid     bool
}

// NaturalKey returns the dedup key for a lap: laps from repeated
// ingestion runs collapse onto this key.
func (l *Lap) NaturalKey() string {
	return fmt.Sprintf("%s|%s|%d|%s", l.SessionID, l.DriverID, l.LapNumber, l.DateStart)
}

// GetLapKeys preloads the natural keys already present for a session.
// An empty sessionID loads the whole table.
func (s *Store) GetLapKeys(sessionID string) (map[string]int64, error) {
	query := "SELECT lap_id, session_id, driver_id, lap_number, date_start FROM laps"
	args := []interface{}{}
	if sessionID != "" {
		query += " WHERE session_id = ?"
		args = append(args, sessionID)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lap keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]int64)
	for rows.Next() {
		l := Lap{}
		if err := rows.Scan(&l.LapID, &l.SessionID, &l.DriverID, &l.LapNumber, &l.DateStart); err != nil {
			return nil, fmt.Errorf("failed to scan lap key: %w", err)
		}
		keys[l.NaturalKey()] = l.LapID
	}

	return keys, rows.Err()
}

// InsertLaps appends new lap rows in one transaction
func (s *Store) InsertLaps(laps []*Lap) error {
	if len(laps) == 0 {
		return nil
	}

	return s.Transaction(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO laps (session_id, driver_id, lap_number, date_start, duration_ms, is_pit_out_lap)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare lap insert: %w", err)
		}
		defer stmt.Close()

		for _, l := range laps {
			if _, err := stmt.Exec(l.SessionID, l.DriverID, l.LapNumber,
				l.DateStart, l.DurationMS, boolToInt(l.IsPitOutLap)); err != nil {
				return fmt.Errorf("failed to insert lap: %w", err)
			}
		}
		return nil
	})
}

// UpdateLaps rewrites the mutable payload of existing lap rows in one
// transaction, matched by lap_id.
func (s *Store) UpdateLaps(laps []*Lap) error {
	if len(laps) == 0 {
		return nil
	}

	return s.Transaction(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			UPDATE laps SET duration_ms = ?, is_pit_out_lap = ?
			WHERE lap_id = ?
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare lap update: %w", err)
		}
		defer stmt.Close()

		for _, l := range laps {
			if _, err := stmt.Exec(l.DurationMS, boolToInt(l.IsPitOutLap), l.LapID); err != nil {
				return fmt.Errorf("failed to update lap: %w", err)
			}
		}
		return nil
	})
}

// GetLapIDByNumber resolves a lap_id from (session, driver, lap number).
// Returns 0 when no such lap exists.
func (s *Store) GetLapIDByNumber(sessionID, driverID string, lapNumber int) (int64, error) {
	var lapID int64
	err := s.db.QueryRow(`
		SELECT lap_id FROM laps
		WHERE session_id = ? AND driver_id = ? AND lap_number = ?
	`, sessionID, driverID, lapNumber).Scan(&lapID)

	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to resolve lap id: %w", err)
	}

	return lapID, nil
}

// GetLapsBySession retrieves all laps for a session ordered by driver and number.
// An empty sessionID retrieves the whole table.
func (s *Store) GetLapsBySession(sessionID string) ([]*Lap, error) {
	query := `
		SELECT lap_id, session_id, driver_id, lap_number, date_start,
		       COALESCE(duration_ms, 0), is_pit_out_lap, is_pit_in_lap, is_valid
		FROM laps`
	args := []interface{}{}
	if sessionID != "" {
		query += " WHERE session_id = ?"
		args = append(args, sessionID)
	}
	query += " ORDER BY session_id, driver_id, lap_number"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query laps: %w", err)
	}
	defer rows.Close()

	var laps []*Lap
	for rows.Next() {
		l := &Lap{}
		var pitOut, pitIn, valid int
		if err := rows.Scan(&l.LapID, &l.SessionID, &l.DriverID, &l.LapNumber,
			&l.DateStart, &l.DurationMS, &pitOut, &pitIn, &valid); err != nil {
			return nil, fmt.Errorf("failed to scan lap: %w", err)
		}
		l.IsPitOutLap = pitOut != 0
		l.IsPitInLap = pitIn != 0
		l.IsValid = valid != 0
		laps = append(laps, l)
	}

	return laps, rows.Err()
}

// RewriteLapFlags overwrites the derived flags for a scope of laps in one
// transaction. pitIn holds lap_ids with a pit stop, deleted holds lap_ids
// struck by race control. An empty sessionID rewrites every lap.
func (s *Store) RewriteLapFlags(sessionID string, pitIn, deleted map[int64]bool) (int, error) {
	scope := ""
	args := []interface{}{}
	if sessionID != "" {
		scope = " WHERE session_id = ?"
		args = append(args, sessionID)
	}

	updated := 0
	err := s.Transaction(func(tx *sql.Tx) error {
		// Reset: every lap in scope starts valid with no pit-in flag
		if _, err := tx.Exec("UPDATE laps SET is_pit_in_lap = 0, is_valid = 1"+scope, args...); err != nil {
			return fmt.Errorf("failed to reset lap flags: %w", err)
		}

		// Pit-out laps are never valid
		res, err := tx.Exec("UPDATE laps SET is_valid = 0"+whereAnd(scope)+" is_pit_out_lap = 1", args...)
		if err != nil {
			return fmt.Errorf("failed to invalidate pit-out laps: %w", err)
		}
		n, _ := res.RowsAffected()
		updated += int(n)

		pitInStmt, err := tx.Prepare("UPDATE laps SET is_pit_in_lap = 1, is_valid = 0 WHERE lap_id = ?")
		if err != nil {
			return fmt.Errorf("failed to prepare pit-in update: %w", err)
		}
		defer pitInStmt.Close()

		for lapID := range pitIn {
			res, err := pitInStmt.Exec(lapID)
			if err != nil {
				return fmt.Errorf("failed to flag pit-in lap: %w", err)
			}
			n, _ := res.RowsAffected()
			updated += int(n)
		}

		deletedStmt, err := tx.Prepare("UPDATE laps SET is_valid = 0 WHERE lap_id = ?")
		if err != nil {
			return fmt.Errorf("failed to prepare deleted-lap update: %w", err)
		}
		defer deletedStmt.Close()

		for lapID := range deleted {
			res, err := deletedStmt.Exec(lapID)
			if err != nil {
				return fmt.Errorf("failed to invalidate deleted lap: %w", err)
			}
			n, _ := res.RowsAffected()
			updated += int(n)
		}

		return nil
	})

	if err != nil {
		return 0, err
	}

	return updated, nil
}

// MaxValidLapNumber returns the highest valid lap number in a session, or 0
func (s *Store) MaxValidLapNumber(sessionID string) (int, error) {
	var max int
	err := s.db.QueryRow(`
		SELECT COALESCE(MAX(lap_number), 0) FROM laps
		WHERE session_id = ? AND is_valid = 1
	`, sessionID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to query max valid lap: %w", err)
	}
	return max, nil
}

// CountLapsBySession returns the canonical lap count per session partition
func (s *Store) CountLapsBySession(sessionID string) (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM laps WHERE session_id = ?", sessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count laps: %w", err)
	}
	return count, nil
}

func whereAnd(scope string) string {
	if scope == "" {
		return " WHERE"
	}
	return scope + " AND"
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
