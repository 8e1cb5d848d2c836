package store

import (
	"database/sql"
	"fmt"
)

// Meeting represents one race weekend
type Meeting struct {
	MeetingID        string
	MeetingKey       string
	Season           int
	CircuitShortName string
	CircuitName      string
}

// Session represents one timed session within a meeting.
// Immutable once ingested apart from re-runs of the same upsert.
type Session struct {
	SessionID      string
	SessionKey     string
	MeetingID      string
	SessionType    string
	PointsCategory string
	ScheduledLaps  int    // 0 when the feed carries no scheduled distance
	StartTime      string // ISO 8601 as received
	EndTime        string
}

// Session types derived from upstream session names
const (
	SessionPractice         = "practice"
	SessionQualifying       = "qualifying"
	SessionSprintQualifying = "sprint_qualifying"
	SessionSprint           = "sprint"
	SessionRace             = "race"
)

// Points categories
const (
	PointsNone   = "none"
	PointsSprint = "sprint"
	PointsRace   = "race"
)

// UpsertMeeting inserts or updates a meeting row
func (s *Store) UpsertMeeting(m *Meeting) error {
	_, err := s.db.Exec(`
		INSERT INTO meetings (meeting_id, meeting_key, season, circuit_short_name, circuit_name)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(meeting_key) DO UPDATE SET
			season = excluded.season,
			circuit_short_name = excluded.circuit_short_name,
			circuit_name = excluded.circuit_name
	`, m.MeetingID, m.MeetingKey, m.Season, m.CircuitShortName, m.CircuitName)

	if err != nil {
		return fmt.Errorf("failed to upsert meeting: %w", err)
	}

	return nil
}

// GetMeetingKeyMap returns the meeting_key -> meeting row mapping
func (s *Store) GetMeetingKeyMap() (map[string]*Meeting, error) {
	rows, err := s.db.Query(`
		SELECT meeting_id, meeting_key, COALESCE(season, 0),
		       COALESCE(circuit_short_name, ''), COALESCE(circuit_name, '')
		FROM meetings
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query meetings: %w", err)
	}
	defer rows.Close()

	meetings := make(map[string]*Meeting)
	for rows.Next() {
		m := &Meeting{}
		if err := rows.Scan(&m.MeetingID, &m.MeetingKey, &m.Season,
			&m.CircuitShortName, &m.CircuitName); err != nil {
			return nil, fmt.Errorf("failed to scan meeting: %w", err)
		}
		meetings[m.MeetingKey] = m
	}

	return meetings, rows.Err()
}

// UpsertSession inserts or updates a session row keyed by session_key
func (s *Store) UpsertSession(sess *Session) error {
	_, err := s.db.Exec(`
		INSERT INTO sessions (session_id, session_key, meeting_id, session_type,
		                      points_category, scheduled_laps, start_time, end_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_key) DO UPDATE SET
			meeting_id = excluded.meeting_id,
			session_type = excluded.session_type,
			points_category = excluded.points_category,
			scheduled_laps = excluded.scheduled_laps,
			start_time = excluded.start_time,
			end_time = excluded.end_time
	`, sess.SessionID, sess.SessionKey, sess.MeetingID, sess.SessionType,
		sess.PointsCategory, sess.ScheduledLaps, sess.StartTime, sess.EndTime)

	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}

	return nil
}

// GetSession retrieves a session by its canonical ID, or nil if absent
func (s *Store) GetSession(sessionID string) (*Session, error) {
	sess := &Session{}
	err := s.db.QueryRow(`
		SELECT session_id, session_key, COALESCE(meeting_id, ''),
		       COALESCE(session_type, ''), points_category,
		       COALESCE(scheduled_laps, 0), COALESCE(start_time, ''), COALESCE(end_time, '')
		FROM sessions WHERE session_id = ?
	`, sessionID).Scan(
		&sess.SessionID, &sess.SessionKey, &sess.MeetingID,
		&sess.SessionType, &sess.PointsCategory,
		&sess.ScheduledLaps, &sess.StartTime, &sess.EndTime,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return sess, nil
}

// SessionRef carries the pieces of a session that reference resolution needs
type SessionRef struct {
	SessionID   string
	Season      int
	SessionType string
}

// GetSessionKeyMap returns the session_key -> session reference mapping,
// with the season resolved through the owning meeting.
func (s *Store) GetSessionKeyMap() (map[string]*SessionRef, error) {
	rows, err := s.db.Query(`
		SELECT s.session_key, s.session_id, COALESCE(m.season, 0), COALESCE(s.session_type, '')
		FROM sessions s
		LEFT JOIN meetings m ON s.meeting_id = m.meeting_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query session keys: %w", err)
	}
	defer rows.Close()

	sessions := make(map[string]*SessionRef)
	for rows.Next() {
		var key string
		ref := &SessionRef{}
		if err := rows.Scan(&key, &ref.SessionID, &ref.Season, &ref.SessionType); err != nil {
			return nil, fmt.Errorf("failed to scan session key: %w", err)
		}
		sessions[key] = ref
	}

	return sessions, rows.Err()
}

// GetSessionSeason resolves a session's season through its meeting.
// Returns 0 when the session has no meeting or the meeting no season.
func (s *Store) GetSessionSeason(sessionID string) (int, error) {
	var season int
	err := s.db.QueryRow(`
		SELECT COALESCE(m.season, 0)
		FROM sessions s
		LEFT JOIN meetings m ON s.meeting_id = m.meeting_id
		WHERE s.session_id = ?
	`, sessionID).Scan(&season)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to resolve session season: %w", err)
	}
	return season, nil
}

// GetSessionIDsWithResults returns the IDs of sessions that have result rows
func (s *Store) GetSessionIDsWithResults() ([]string, error) {
	rows, err := s.db.Query(`
		SELECT DISTINCT session_id FROM results ORDER BY session_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions with results: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
