package store

import (
	"fmt"
)

// Raw record sources, matching the upstream feed endpoints
const (
	SourceMeetings    = "meetings"
	SourceSessions    = "sessions"
	SourceDrivers     = "drivers"
	SourceLaps        = "laps"
	SourcePitStops    = "pit_stops"
	SourceRaceControl = "race_control"
	SourceResults     = "results"
)

// RawRecord is one feed record as the excluded fetcher persisted it.
// This core only ever reads this stratum.
type RawRecord struct {
	ID         int64
	Source     string
	SessionKey string
	Payload    string
}

// InsertRawRecord appends a raw record. Exists for tests and local
// seeding; production raw rows are written by the fetcher.
func (s *Store) InsertRawRecord(r *RawRecord) error {
	res, err := s.db.Exec(`
		INSERT INTO raw_records (source, session_key, payload)
		VALUES (?, ?, ?)
	`, r.Source, r.SessionKey, r.Payload)
	if err != nil {
		return fmt.Errorf("failed to insert raw record: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		r.ID = id
	}

	return nil
}

// GetRawRecords retrieves raw records for one source, optionally limited
// to one session partition.
func (s *Store) GetRawRecords(source, sessionKey string) ([]*RawRecord, error) {
	query := "SELECT id, source, session_key, payload FROM raw_records WHERE source = ?"
	args := []interface{}{source}
	if sessionKey != "" {
		query += " AND session_key = ?"
		args = append(args, sessionKey)
	}
	query += " ORDER BY id"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query raw records: %w", err)
	}
	defer rows.Close()

	var records []*RawRecord
	for rows.Next() {
		r := &RawRecord{}
		if err := rows.Scan(&r.ID, &r.Source, &r.SessionKey, &r.Payload); err != nil {
			return nil, fmt.Errorf("failed to scan raw record: %w", err)
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

// GetRawPartitions returns the distinct session partitions present for a
// source with their raw row counts.
func (s *Store) GetRawPartitions(source string) (map[string]int, error) {
	rows, err := s.db.Query(`
		SELECT session_key, COUNT(*) FROM raw_records
		WHERE source = ?
		GROUP BY session_key
		ORDER BY session_key
	`, source)
	if err != nil {
		return nil, fmt.Errorf("failed to query raw partitions: %w", err)
	}
	defer rows.Close()

	partitions := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("failed to scan raw partition: %w", err)
		}
		partitions[key] = count
	}

	return partitions, rows.Err()
}
