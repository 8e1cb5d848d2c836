package validity

import (
	"context"
	"os"
	"testing"

	"github.com/gavinmiller/pitwall/internal/report"
	"github.com/gavinmiller/pitwall/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()

	tmpFile := t.TempDir() + "/validity-test.db"
	t.Cleanup(func() {
		os.Remove(tmpFile)
		os.Remove(tmpFile + "-shm")
		os.Remove(tmpFile + "-wal")
	})

	s, err := store.Open(tmpFile)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s
}

func seedSession(t *testing.T, s *store.Store) string {
	t.Helper()

	if err := s.UpsertMeeting(&store.Meeting{
		MeetingID:        "mtg:spa-2024",
		MeetingKey:       "1240",
		Season:           2024,
		CircuitShortName: "Spa",
	}); err != nil {
		t.Fatalf("failed to seed meeting: %v", err)
	}

	sessionID := "ses:spa-2024-race-9001"
	if err := s.UpsertSession(&store.Session{
		SessionID:      sessionID,
		SessionKey:     "9001",
		MeetingID:      "mtg:spa-2024",
		SessionType:    store.SessionRace,
		PointsCategory: store.PointsRace,
		ScheduledLaps:  44,
	}); err != nil {
		t.Fatalf("failed to seed session: %v", err)
	}

	if err := s.UpsertDriver(&store.Driver{DriverID: "drv:max-verstappen"}); err != nil {
		t.Fatalf("failed to seed driver: %v", err)
	}

	return sessionID
}

func seedLaps(t *testing.T, s *store.Store, sessionID string, count int, pitOut map[int]bool) {
	t.Helper()

	laps := make([]*store.Lap, 0, count)
	for n := 1; n <= count; n++ {
		laps = append(laps, &store.Lap{
			SessionID:   sessionID,
			DriverID:    "drv:max-verstappen",
			LapNumber:   n,
			DateStart:   "2024-07-28T14:00:00+00:00",
			DurationMS:  106000,
			IsPitOutLap: pitOut[n],
		})
	}
	if err := s.InsertLaps(laps); err != nil {
		t.Fatalf("failed to seed laps: %v", err)
	}
}

func lapsByNumber(t *testing.T, s *store.Store, sessionID string) map[int]*store.Lap {
	t.Helper()

	laps, err := s.GetLapsBySession(sessionID)
	if err != nil {
		t.Fatalf("failed to load laps: %v", err)
	}
	byNumber := make(map[int]*store.Lap, len(laps))
	for _, l := range laps {
		byNumber[l.LapNumber] = l
	}
	return byNumber
}

func TestDeriveFlags(t *testing.T) {
	s := openTestStore(t)
	sessionID := seedSession(t, s)
	seedLaps(t, s, sessionID, 6, map[int]bool{4: true})

	// Lap 3 ends in the pits, lap 5 gets deleted by race control
	lap3, err := s.GetLapIDByNumber(sessionID, "drv:max-verstappen", 3)
	if err != nil || lap3 == 0 {
		t.Fatalf("failed to resolve lap 3: id=%d err=%v", lap3, err)
	}
	if err := s.UpsertPitStops([]*store.PitStop{{
		SessionID:  sessionID,
		DriverID:   "drv:max-verstappen",
		LapID:      lap3,
		DurationMS: 22000,
	}}); err != nil {
		t.Fatalf("failed to seed pit stop: %v", err)
	}

	lap5, err := s.GetLapIDByNumber(sessionID, "drv:max-verstappen", 5)
	if err != nil || lap5 == 0 {
		t.Fatalf("failed to resolve lap 5: id=%d err=%v", lap5, err)
	}
	if err := s.UpsertRaceControlMessages([]*store.RaceControlMessage{{
		SessionID:       sessionID,
		Date:            "2024-07-28T14:20:00+00:00",
		Category:        "Other",
		Message:         "CAR 1 (VER) TIME DELETED - LAP 5 TRACK LIMITS",
		DriverID:        "drv:max-verstappen",
		ReferencedLapID: lap5,
	}}); err != nil {
		t.Fatalf("failed to seed race control: %v", err)
	}

	d := New(&Config{Store: s, Logger: report.NullLogger()})
	result, err := d.Derive(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}

	if result.LapsProcessed != 6 {
		t.Errorf("expected 6 laps processed, got %d", result.LapsProcessed)
	}
	if result.PitInLaps != 1 || result.DeletedLaps != 1 {
		t.Errorf("expected 1 pit-in and 1 deleted, got %d and %d", result.PitInLaps, result.DeletedLaps)
	}

	byNumber := lapsByNumber(t, s, sessionID)

	expectations := []struct {
		lapNumber int
		pitIn     bool
		valid     bool
	}{
		{1, false, true},
		{2, false, true},
		{3, true, false},  // ends in the pits
		{4, false, false}, // pit-out lap
		{5, false, false}, // deleted by race control
		{6, false, true},
	}
	for _, exp := range expectations {
		lap := byNumber[exp.lapNumber]
		if lap == nil {
			t.Fatalf("lap %d missing", exp.lapNumber)
		}
		if lap.IsPitInLap != exp.pitIn || lap.IsValid != exp.valid {
			t.Errorf("lap %d: expected pitIn=%t valid=%t, got pitIn=%t valid=%t",
				exp.lapNumber, exp.pitIn, exp.valid, lap.IsPitInLap, lap.IsValid)
		}
	}
}

func TestDeriveIsFullRewrite(t *testing.T) {
	s := openTestStore(t)
	sessionID := seedSession(t, s)
	seedLaps(t, s, sessionID, 3, nil)

	lap2, err := s.GetLapIDByNumber(sessionID, "drv:max-verstappen", 2)
	if err != nil || lap2 == 0 {
		t.Fatalf("failed to resolve lap 2: id=%d err=%v", lap2, err)
	}
	if err := s.UpsertRaceControlMessages([]*store.RaceControlMessage{{
		SessionID:       sessionID,
		Date:            "2024-07-28T14:05:00+00:00",
		Category:        "Other",
		Message:         "CAR 1 (VER) TIME DELETED - LAP 2",
		ReferencedLapID: lap2,
	}}); err != nil {
		t.Fatalf("failed to seed race control: %v", err)
	}

	d := New(&Config{Store: s, Logger: report.NullLogger()})
	if _, err := d.Derive(context.Background(), sessionID); err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	if lap := lapsByNumber(t, s, sessionID)[2]; lap.IsValid {
		t.Fatal("expected lap 2 invalid after first pass")
	}

	// Curating away the deletion and re-running restores validity;
	// flags never only ratchet downward.
	if _, err := s.DB().Exec("DELETE FROM race_control WHERE session_id = ?", sessionID); err != nil {
		t.Fatalf("failed to clear race control: %v", err)
	}
	if _, err := d.Derive(context.Background(), sessionID); err != nil {
		t.Fatalf("second derive failed: %v", err)
	}
	if lap := lapsByNumber(t, s, sessionID)[2]; !lap.IsValid {
		t.Error("expected lap 2 valid again after rewrite")
	}
}

func TestDeriveIdempotent(t *testing.T) {
	s := openTestStore(t)
	sessionID := seedSession(t, s)
	seedLaps(t, s, sessionID, 4, map[int]bool{2: true})

	d := New(&Config{Store: s, Logger: report.NullLogger()})
	if _, err := d.Derive(context.Background(), sessionID); err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	first := lapsByNumber(t, s, sessionID)

	if _, err := d.Derive(context.Background(), sessionID); err != nil {
		t.Fatalf("second derive failed: %v", err)
	}
	second := lapsByNumber(t, s, sessionID)

	for n, lap := range first {
		other := second[n]
		if lap.IsPitInLap != other.IsPitInLap || lap.IsValid != other.IsValid {
			t.Errorf("lap %d changed between identical runs", n)
		}
	}
}
