package main

import (
	"path/filepath"
	"testing"

	"github.com/gavinmiller/pitwall/internal/store"
)

func TestCheckSQLite(t *testing.T) {
	result := checkSQLite()

	if result.error {
		t.Errorf("SQLite check failed: %s", result.message)
	}
	if result.message == "" {
		t.Error("expected version information in message")
	}
}

func TestCheckDatabase_NonExistent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nonexistent.db")

	results, db := checkDatabase(dbPath)
	if db != nil {
		t.Fatal("expected no open store for a missing database")
	}

	// Should not error - database will be created on first run
	if len(results) != 1 || results[0].error {
		t.Errorf("non-existent database check should not error: %+v", results)
	}
}

func TestCheckDatabase_Existing(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	seed, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	seed.Close()

	results, db := checkDatabase(dbPath)
	if db == nil {
		t.Fatal("expected an open store for an existing database")
	}
	defer db.Close()

	for _, r := range results {
		if r.error {
			t.Errorf("existing database check failed: %s: %s", r.name, r.message)
		}
	}
}

func TestConsistencyChecksOnEmptyDataset(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")

	db, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	defer db.Close()

	checks := []checkResult{
		checkOrphanLaps(db),
		checkDanglingResults(db),
		checkRulesetCoverage(db),
	}
	for _, r := range checks {
		if r.error || r.warning {
			t.Errorf("empty dataset should pass %s, got %+v", r.name, r)
		}
	}
}

func TestCheckRulesetCoverageWarns(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "coverage.db")

	db, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	defer db.Close()

	if err := db.UpsertMeeting(&store.Meeting{
		MeetingID: "mtg:spa-2024", MeetingKey: "1240", Season: 2024,
	}); err != nil {
		t.Fatalf("failed to seed meeting: %v", err)
	}
	if err := db.UpsertSession(&store.Session{
		SessionID: "ses:spa-2024-race-9001", SessionKey: "9001",
		MeetingID: "mtg:spa-2024", SessionType: store.SessionRace,
		PointsCategory: store.PointsRace,
	}); err != nil {
		t.Fatalf("failed to seed session: %v", err)
	}

	if r := checkRulesetCoverage(db); !r.warning {
		t.Errorf("expected a coverage warning for a ruleless awarding season, got %+v", r)
	}

	if err := db.ReplacePointsRules([]*store.PointsRule{{
		Season: 2024, RaceCategory: store.PointsRace,
		CompletionBand: "full", Position: 1, Points: 25,
	}}); err != nil {
		t.Fatalf("failed to seed rules: %v", err)
	}

	if r := checkRulesetCoverage(db); r.warning || r.error {
		t.Errorf("expected coverage check to pass once rules exist, got %+v", r)
	}
}
