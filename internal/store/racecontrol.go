package store

import (
	"database/sql"
	"fmt"
)

// RaceControlMessage represents one regulatory message for a session.
// DriverID and ReferencedLapID are resolved or parsed, never required.
type RaceControlMessage struct {
	MessageID       int64
	SessionID       string
	Date            string
	Category        string
	Flag            string
	Scope           string
	Message         string
	DriverID        string // empty when unresolved
	ReferencedLapID int64  // 0 when unresolved
}

// NaturalKey returns the dedup key for a message
func (m *RaceControlMessage) NaturalKey() string {
	return fmt.Sprintf("%s|%s|%s|%s", m.SessionID, m.Date, m.Category, m.Message)
}

// GetRaceControlKeys preloads the natural keys already present for a
// session. An empty sessionID loads the whole table.
func (s *Store) GetRaceControlKeys(sessionID string) (map[string]bool, error) {
	query := "SELECT session_id, COALESCE(date, ''), COALESCE(category, ''), COALESCE(message, '') FROM race_control"
	args := []interface{}{}
	if sessionID != "" {
		query += " WHERE session_id = ?"
		args = append(args, sessionID)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query race control keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]bool)
	for rows.Next() {
		m := RaceControlMessage{}
		if err := rows.Scan(&m.SessionID, &m.Date, &m.Category, &m.Message); err != nil {
			return nil, fmt.Errorf("failed to scan race control key: %w", err)
		}
		keys[m.NaturalKey()] = true
	}

	return keys, rows.Err()
}

// UpsertRaceControlMessages inserts or updates messages in one transaction,
// deduplicated on (session, date, category, message).
func (s *Store) UpsertRaceControlMessages(msgs []*RaceControlMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	return s.Transaction(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO race_control (session_id, date, category, flag, scope, message, driver_id, referenced_lap_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(session_id, date, category, message) DO UPDATE SET
				flag = excluded.flag,
				scope = excluded.scope,
				driver_id = excluded.driver_id,
				referenced_lap_id = excluded.referenced_lap_id
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare race control upsert: %w", err)
		}
		defer stmt.Close()

		for _, m := range msgs {
			var driverID, lapID interface{}
			if m.DriverID != "" {
				driverID = m.DriverID
			}
			if m.ReferencedLapID != 0 {
				lapID = m.ReferencedLapID
			}
			if _, err := stmt.Exec(m.SessionID, m.Date, m.Category, m.Flag,
				m.Scope, m.Message, driverID, lapID); err != nil {
				return fmt.Errorf("failed to upsert race control message: %w", err)
			}
		}
		return nil
	})
}

// GetDeletedLapIDs returns lap_ids struck by a race control message whose
// text contains "deleted" (case-insensitive). An empty sessionID covers
// the whole table.
func (s *Store) GetDeletedLapIDs(sessionID string) (map[int64]bool, error) {
	query := `
		SELECT DISTINCT referenced_lap_id
		FROM race_control
		WHERE referenced_lap_id IS NOT NULL
		  AND message IS NOT NULL
		  AND LOWER(message) LIKE '%deleted%'`
	args := []interface{}{}
	if sessionID != "" {
		query += " AND session_id = ?"
		args = append(args, sessionID)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query deleted laps: %w", err)
	}
	defer rows.Close()

	lapIDs := make(map[int64]bool)
	for rows.Next() {
		var lapID int64
		if err := rows.Scan(&lapID); err != nil {
			return nil, fmt.Errorf("failed to scan deleted lap: %w", err)
		}
		lapIDs[lapID] = true
	}

	return lapIDs, rows.Err()
}

// HasTrackGreenFlag reports whether the session saw a track-scope green
// flag that was not just the pit exit opening.
func (s *Store) HasTrackGreenFlag(sessionID string) (bool, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM race_control
		WHERE session_id = ?
		  AND category = 'Flag'
		  AND flag = 'GREEN'
		  AND scope = 'Track'
		  AND COALESCE(message, '') NOT LIKE '%PIT EXIT OPEN%'
	`, sessionID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query green flags: %w", err)
	}
	return count > 0, nil
}

// HasDRSEnabled reports whether race control enabled DRS in the session
func (s *Store) HasDRSEnabled(sessionID string) (bool, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM race_control
		WHERE session_id = ?
		  AND category = 'Drs'
		  AND UPPER(COALESCE(message, '')) LIKE '%DRS ENABLED%'
	`, sessionID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query DRS messages: %w", err)
	}
	return count > 0, nil
}

// GetRaceControlBySession retrieves all messages for a session
func (s *Store) GetRaceControlBySession(sessionID string) ([]*RaceControlMessage, error) {
	rows, err := s.db.Query(`
		SELECT message_id, session_id, COALESCE(date, ''), COALESCE(category, ''),
		       COALESCE(flag, ''), COALESCE(scope, ''), COALESCE(message, ''),
		       COALESCE(driver_id, ''), COALESCE(referenced_lap_id, 0)
		FROM race_control WHERE session_id = ?
		ORDER BY message_id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query race control: %w", err)
	}
	defer rows.Close()

	var msgs []*RaceControlMessage
	for rows.Next() {
		m := &RaceControlMessage{}
		if err := rows.Scan(&m.MessageID, &m.SessionID, &m.Date, &m.Category,
			&m.Flag, &m.Scope, &m.Message, &m.DriverID, &m.ReferencedLapID); err != nil {
			return nil, fmt.Errorf("failed to scan race control message: %w", err)
		}
		msgs = append(msgs, m)
	}

	return msgs, rows.Err()
}
