package store

import (
	"database/sql"
	"fmt"
)

// Result statuses
const (
	StatusFinished      = "finished"
	StatusDNF           = "dnf"
	StatusDNS           = "dns"
	StatusDSQ           = "dsq"
	StatusNotClassified = "not_classified"
)

// Result represents one driver's classification in one session.
// Points is derived by the scoring pass and owned by it alone.
type Result struct {
	SessionID      string
	DriverID       string
	FinishPosition int // 0 = not classified
	Status         string
	LapsCompleted  int
	FastestLap     bool
	Points         float64
}

// NaturalKey returns the dedup key for a result
func (r *Result) NaturalKey() string {
	return fmt.Sprintf("%s|%s", r.SessionID, r.DriverID)
}

// GetResultKeys preloads the natural keys already present for a
// session. An empty sessionID loads the whole table.
func (s *Store) GetResultKeys(sessionID string) (map[string]bool, error) {
	query := "SELECT session_id, driver_id FROM results"
	args := []interface{}{}
	if sessionID != "" {
		query += " WHERE session_id = ?"
		args = append(args, sessionID)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query result keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]bool)
	for rows.Next() {
		r := Result{}
		if err := rows.Scan(&r.SessionID, &r.DriverID); err != nil {
			return nil, fmt.Errorf("failed to scan result key: %w", err)
		}
		keys[r.NaturalKey()] = true
	}

	return keys, rows.Err()
}

// UpsertResults inserts or updates result rows in one transaction,
// keyed by (session, driver). Points is left untouched on update so a
// re-ingest cannot clobber an earlier scoring pass.
func (s *Store) UpsertResults(results []*Result) error {
	if len(results) == 0 {
		return nil
	}

	return s.Transaction(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO results (session_id, driver_id, finish_position, status, laps_completed, fastest_lap)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(session_id, driver_id) DO UPDATE SET
				finish_position = excluded.finish_position,
				status = excluded.status,
				laps_completed = excluded.laps_completed,
				fastest_lap = excluded.fastest_lap
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare result upsert: %w", err)
		}
		defer stmt.Close()

		for _, r := range results {
			var position interface{}
			if r.FinishPosition > 0 {
				position = r.FinishPosition
			}
			if _, err := stmt.Exec(r.SessionID, r.DriverID, position,
				r.Status, r.LapsCompleted, boolToInt(r.FastestLap)); err != nil {
				return fmt.Errorf("failed to upsert result: %w", err)
			}
		}
		return nil
	})
}

// GetResultsBySession retrieves all results for a session ordered by
// finish position, unclassified last.
func (s *Store) GetResultsBySession(sessionID string) ([]*Result, error) {
	rows, err := s.db.Query(`
		SELECT session_id, driver_id, COALESCE(finish_position, 0), status,
		       COALESCE(laps_completed, 0), fastest_lap, points
		FROM results WHERE session_id = ?
		ORDER BY finish_position IS NULL, finish_position
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var results []*Result
	for rows.Next() {
		r := &Result{}
		var fastest int
		if err := rows.Scan(&r.SessionID, &r.DriverID, &r.FinishPosition,
			&r.Status, &r.LapsCompleted, &fastest, &r.Points); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.FastestLap = fastest != 0
		results = append(results, r)
	}

	return results, rows.Err()
}

// UpdateResultPoints overwrites the points of one result row
func (s *Store) UpdateResultPoints(sessionID, driverID string, points float64) error {
	_, err := s.db.Exec(`
		UPDATE results SET points = ?
		WHERE session_id = ? AND driver_id = ?
	`, points, sessionID, driverID)
	if err != nil {
		return fmt.Errorf("failed to update result points: %w", err)
	}
	return nil
}

// ZeroSessionPoints sets points to 0 for every result in a session and
// returns the number of rows touched.
func (s *Store) ZeroSessionPoints(sessionID string) (int, error) {
	res, err := s.db.Exec("UPDATE results SET points = 0 WHERE session_id = ?", sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to zero session points: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// MaxLapsCompleted returns the highest laps_completed among a session's
// results; the bool is false when no result row carries a count.
func (s *Store) MaxLapsCompleted(sessionID string) (int, bool, error) {
	var max sql.NullInt64
	err := s.db.QueryRow(`
		SELECT MAX(laps_completed) FROM results WHERE session_id = ?
	`, sessionID).Scan(&max)
	if err != nil {
		return 0, false, fmt.Errorf("failed to query laps completed: %w", err)
	}
	return int(max.Int64), max.Valid, nil
}
