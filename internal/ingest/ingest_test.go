package ingest

import (
	"context"
	"os"
	"testing"

	"github.com/gavinmiller/pitwall/internal/report"
	"github.com/gavinmiller/pitwall/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()

	tmpFile := t.TempDir() + "/ingest-test.db"
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

func newTestIngestor(s *store.Store) *Ingestor {
	return New(&Config{Store: s, Logger: report.NullLogger()})
}

func seedRaw(t *testing.T, s *store.Store, source, sessionKey, payload string) {
	t.Helper()
	if err := s.InsertRawRecord(&store.RawRecord{
		Source:     source,
		SessionKey: sessionKey,
		Payload:    payload,
	}); err != nil {
		t.Fatalf("failed to seed raw record: %v", err)
	}
}

// seedBaseline builds the canonical rows the reference-carrying sources
// need: one meeting, one race session, one driver with a season car
// number.
func seedBaseline(t *testing.T, s *store.Store) string {
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

	if err := s.UpsertDriver(&store.Driver{
		DriverID:  "drv:max-verstappen",
		FirstName: "Max",
		LastName:  "Verstappen",
		FullName:  "Max Verstappen",
	}); err != nil {
		t.Fatalf("failed to seed driver: %v", err)
	}
	if err := s.UpsertSeasonCarNumber(&store.SeasonCarNumber{
		DriverID:  "drv:max-verstappen",
		Season:    2024,
		CarNumber: 1,
	}); err != nil {
		t.Fatalf("failed to seed car number: %v", err)
	}

	return sessionID
}

func TestIngestMeetingsAndSessions(t *testing.T) {
	s := openTestStore(t)
	in := newTestIngestor(s)
	ctx := context.Background()

	seedRaw(t, s, store.SourceMeetings, "",
		`{"meeting_key": "1240", "season": "2024", "circuit_short_name": "Spa", "circuit_name": "Spa-Francorchamps"}`)
	seedRaw(t, s, store.SourceSessions, "9001",
		`{"session_key": "9001", "meeting_key": "1240", "session_name": "Race", "scheduled_laps": "44"}`)
	seedRaw(t, s, store.SourceSessions, "9002",
		`{"session_key": "9002", "meeting_key": "1240", "session_name": "Sprint Qualifying"}`)
	// Unknown meeting reference is a counted skip, not a failure
	seedRaw(t, s, store.SourceSessions, "9003",
		`{"session_key": "9003", "meeting_key": "9999", "session_name": "Race"}`)

	summary, err := in.IngestMeetings(ctx)
	if err != nil {
		t.Fatalf("meeting ingest failed: %v", err)
	}
	if summary.Inserted != 1 {
		t.Errorf("expected 1 meeting inserted, got %d", summary.Inserted)
	}

	summary, err = in.IngestSessions(ctx)
	if err != nil {
		t.Fatalf("session ingest failed: %v", err)
	}
	if summary.Inserted != 2 || summary.Skipped != 1 {
		t.Errorf("expected 2 inserted and 1 skipped, got %d and %d", summary.Inserted, summary.Skipped)
	}
	if summary.SkipReasons[skipUnresolvedRef] != 1 {
		t.Errorf("expected unresolved-reference skip, got %v", summary.SkipReasons)
	}

	sessions, err := s.GetSessionKeyMap()
	if err != nil {
		t.Fatalf("failed to load sessions: %v", err)
	}
	race, ok := sessions["9001"]
	if !ok {
		t.Fatal("race session missing")
	}
	if race.SessionType != store.SessionRace || race.Season != 2024 {
		t.Errorf("unexpected race session: %+v", race)
	}
	if sprint, ok := sessions["9002"]; !ok || sprint.SessionType != store.SessionSprintQualifying {
		t.Errorf("expected sprint qualifying session, got %+v", sprint)
	}

	// Re-running converges instead of duplicating
	again, err := in.IngestSessions(ctx)
	if err != nil {
		t.Fatalf("second session ingest failed: %v", err)
	}
	if again.Inserted != 0 || again.Updated != 2 {
		t.Errorf("expected 0 inserted and 2 updated on re-run, got %d and %d", again.Inserted, again.Updated)
	}
}

func TestDeriveSessionType(t *testing.T) {
	testCases := []struct {
		sessionName string
		expected    string
	}{
		{"Race", store.SessionRace},
		{"Qualifying", store.SessionQualifying},
		{"Sprint", store.SessionSprint},
		{"Sprint Qualifying", store.SessionSprintQualifying},
		{"Sprint Shootout", store.SessionSprintQualifying},
		{"Practice 2", store.SessionPractice},
		{"Day 3", ""},
		{"", ""},
	}

	for _, tc := range testCases {
		if got := deriveSessionType(tc.sessionName); got != tc.expected {
			t.Errorf("deriveSessionType(%q): expected %q, got %q", tc.sessionName, tc.expected, got)
		}
	}
}

func TestIngestDriversSeedsAliases(t *testing.T) {
	s := openTestStore(t)
	in := newTestIngestor(s)
	ctx := context.Background()

	seedRaw(t, s, store.SourceDrivers, "9001",
		`{"first_name": "Max", "last_name": "Verstappen", "full_name": "Max Verstappen", "name_acronym": "VER", "country_code": "NED", "driver_number": "1"}`)
	// Reversed name order in a second feed resolves via the seeded alias
	seedRaw(t, s, store.SourceDrivers, "9002",
		`{"first_name": "Verstappen", "last_name": "Max", "driver_number": "1"}`)

	summary, err := in.IngestDrivers(ctx)
	if err != nil {
		t.Fatalf("driver ingest failed: %v", err)
	}
	if summary.Inserted != 1 {
		t.Errorf("expected 1 driver inserted, got %d", summary.Inserted)
	}

	ids, err := s.GetDriverIDs()
	if err != nil {
		t.Fatalf("failed to load driver ids: %v", err)
	}
	if len(ids) != 1 || !ids["drv:max-verstappen"] {
		t.Errorf("expected exactly drv:max-verstappen, got %v", ids)
	}

	aliases, err := s.GetDriverAliasMap()
	if err != nil {
		t.Fatalf("failed to load aliases: %v", err)
	}
	if aliases["Max Verstappen"] != "drv:max-verstappen" {
		t.Errorf("expected natural-spelling alias, got %v", aliases)
	}
}

func TestIngestCarNumbersResolvesConflicts(t *testing.T) {
	s := openTestStore(t)
	seedBaseline(t, s)

	// A second session in the same season with a conflicting number
	if err := s.UpsertSession(&store.Session{
		SessionID:      "ses:spa-2024-practice-9000",
		SessionKey:     "9000",
		MeetingID:      "mtg:spa-2024",
		SessionType:    store.SessionPractice,
		PointsCategory: store.PointsNone,
	}); err != nil {
		t.Fatalf("failed to seed practice session: %v", err)
	}

	// Practice says 33, the race entry list says 1; race context wins
	seedRaw(t, s, store.SourceDrivers, "9000",
		`{"first_name": "Max", "last_name": "Verstappen", "driver_number": "33"}`)
	seedRaw(t, s, store.SourceDrivers, "9001",
		`{"first_name": "Max", "last_name": "Verstappen", "driver_number": "1"}`)
	// Unknown driver never fabricates a row
	seedRaw(t, s, store.SourceDrivers, "9001",
		`{"first_name": "Liam", "last_name": "Lawson", "driver_number": "30"}`)

	in := newTestIngestor(s)
	summary, err := in.IngestCarNumbers(context.Background())
	if err != nil {
		t.Fatalf("car number ingest failed: %v", err)
	}
	if summary.Skipped != 1 {
		t.Errorf("expected 1 skip for the unknown driver, got %d", summary.Skipped)
	}

	numbers, err := s.GetSeasonCarNumbers(2024)
	if err != nil {
		t.Fatalf("failed to load car numbers: %v", err)
	}
	if len(numbers) != 1 {
		t.Fatalf("expected one car number row, got %d", len(numbers))
	}
	if numbers["drv:max-verstappen"] != 1 {
		t.Errorf("expected race-weighted number 1, got %v", numbers)
	}
}

func TestIngestLapsIdempotent(t *testing.T) {
	s := openTestStore(t)
	sessionID := seedBaseline(t, s)
	in := newTestIngestor(s)
	ctx := context.Background()

	seedRaw(t, s, store.SourceLaps, "9001",
		`{"driver_number": "1", "lap_number": "1", "date_start": "2024-07-28T14:02:00+00:00", "lap_duration_s": "107.532", "is_pit_out_lap": "true"}`)
	seedRaw(t, s, store.SourceLaps, "9001",
		`{"driver_number": "1", "lap_number": "2", "date_start": "2024-07-28T14:03:48+00:00", "lap_duration_s": "106.101"}`)
	// Unknown car number cannot be attributed
	seedRaw(t, s, store.SourceLaps, "9001",
		`{"driver_number": "99", "lap_number": "1", "date_start": "2024-07-28T14:02:00+00:00"}`)
	// Malformed lap number
	seedRaw(t, s, store.SourceLaps, "9001",
		`{"driver_number": "1", "lap_number": "abc", "date_start": "2024-07-28T14:02:00+00:00"}`)

	summary, err := in.IngestLaps(ctx, "9001")
	if err != nil {
		t.Fatalf("lap ingest failed: %v", err)
	}
	if summary.Inserted != 2 || summary.Updated != 0 {
		t.Errorf("expected 2 inserted, got %d inserted %d updated", summary.Inserted, summary.Updated)
	}
	if summary.SkipReasons[skipUnresolvedRef] != 1 || summary.SkipReasons[skipMalformed] != 1 {
		t.Errorf("unexpected skip reasons: %v", summary.SkipReasons)
	}

	count, err := s.CountLapsBySession(sessionID)
	if err != nil {
		t.Fatalf("failed to count laps: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 canonical laps, got %d", count)
	}

	// Second run lands every survivor on its existing row
	again, err := in.IngestLaps(ctx, "9001")
	if err != nil {
		t.Fatalf("second lap ingest failed: %v", err)
	}
	if again.Inserted != 0 || again.Updated != 2 {
		t.Errorf("expected 0 inserted and 2 updated on re-run, got %d and %d", again.Inserted, again.Updated)
	}
	if count, _ = s.CountLapsBySession(sessionID); count != 2 {
		t.Errorf("expected row count unchanged on re-run, got %d", count)
	}
}

func TestIngestLapsBulkSkipsCompletePartitions(t *testing.T) {
	s := openTestStore(t)
	seedBaseline(t, s)
	in := newTestIngestor(s)
	ctx := context.Background()

	seedRaw(t, s, store.SourceLaps, "9001",
		`{"driver_number": "1", "lap_number": "1", "date_start": "2024-07-28T14:02:00+00:00"}`)

	summary, err := in.IngestLapsBulk(ctx)
	if err != nil {
		t.Fatalf("bulk ingest failed: %v", err)
	}
	if summary.Inserted != 1 {
		t.Errorf("expected 1 lap inserted, got %d", summary.Inserted)
	}

	// The partition now matches its raw count, so a resume passes it by
	// without touching the rows
	again, err := in.IngestLapsBulk(ctx)
	if err != nil {
		t.Fatalf("second bulk ingest failed: %v", err)
	}
	if again.Inserted != 0 || again.Updated != 0 {
		t.Errorf("expected resumed run to skip the partition, got %+v", again)
	}
	if again.SkipReasons["partition already loaded"] != 1 {
		t.Errorf("expected partition skip reason, got %v", again.SkipReasons)
	}
}

func TestIngestPitStops(t *testing.T) {
	s := openTestStore(t)
	sessionID := seedBaseline(t, s)
	in := newTestIngestor(s)
	ctx := context.Background()

	seedRaw(t, s, store.SourceLaps, "9001",
		`{"driver_number": "1", "lap_number": "12", "date_start": "2024-07-28T14:25:00+00:00"}`)
	if _, err := in.IngestLaps(ctx, "9001"); err != nil {
		t.Fatalf("lap ingest failed: %v", err)
	}

	seedRaw(t, s, store.SourcePitStops, "9001",
		`{"driver_number": "1", "lap_number": "12", "pit_duration_s": "22.5"}`)
	// References a lap that was never ingested
	seedRaw(t, s, store.SourcePitStops, "9001",
		`{"driver_number": "1", "lap_number": "30", "pit_duration_s": "21.0"}`)

	summary, err := in.IngestPitStops(ctx, "9001")
	if err != nil {
		t.Fatalf("pit stop ingest failed: %v", err)
	}
	if summary.Inserted != 1 || summary.SkipReasons[skipUnresolvedRef] != 1 {
		t.Errorf("expected 1 inserted and 1 unresolved skip, got %+v", summary)
	}

	lapIDs, err := s.GetPitStopLapIDs(sessionID)
	if err != nil {
		t.Fatalf("failed to load pit stop laps: %v", err)
	}
	if len(lapIDs) != 1 {
		t.Errorf("expected 1 pit stop lap, got %d", len(lapIDs))
	}

	// A re-run lands on the existing row and reports it as an update
	again, err := in.IngestPitStops(ctx, "9001")
	if err != nil {
		t.Fatalf("pit stop re-ingest failed: %v", err)
	}
	if again.Inserted != 0 || again.Updated != 1 {
		t.Errorf("expected 0 inserted and 1 updated on re-run, got %+v", again)
	}
}

func TestIngestRaceControlAttribution(t *testing.T) {
	s := openTestStore(t)
	sessionID := seedBaseline(t, s)
	in := newTestIngestor(s)
	ctx := context.Background()

	seedRaw(t, s, store.SourceLaps, "9001",
		`{"driver_number": "1", "lap_number": "15", "date_start": "2024-07-28T14:30:00+00:00"}`)
	if _, err := in.IngestLaps(ctx, "9001"); err != nil {
		t.Fatalf("lap ingest failed: %v", err)
	}

	// Driver and lap live only in the free text
	seedRaw(t, s, store.SourceRaceControl, "9001",
		`{"date": "2024-07-28T14:31:00+00:00", "category": "Other", "message": "CAR 1 (VER) TIME 1:47.114 DELETED - LAP 15 TRACK LIMITS"}`)
	// Plain session-scope message survives without attribution
	seedRaw(t, s, store.SourceRaceControl, "9001",
		`{"date": "2024-07-28T14:32:00+00:00", "category": "Flag", "flag": "YELLOW", "scope": "Sector", "message": "YELLOW IN SECTOR 7"}`)

	summary, err := in.IngestRaceControl(ctx, "9001")
	if err != nil {
		t.Fatalf("race control ingest failed: %v", err)
	}
	if summary.Inserted != 2 || summary.Skipped != 0 {
		t.Errorf("expected 2 inserted and 0 skipped, got %+v", summary)
	}

	msgs, err := s.GetRaceControlBySession(sessionID)
	if err != nil {
		t.Fatalf("failed to load messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	deleted := msgs[0]
	if deleted.DriverID != "drv:max-verstappen" {
		t.Errorf("expected parsed car attribution, got %q", deleted.DriverID)
	}
	if deleted.ReferencedLapID == 0 {
		t.Error("expected parsed lap reference")
	}
	if msgs[1].DriverID != "" || msgs[1].ReferencedLapID != 0 {
		t.Errorf("expected unattributed sector message, got %+v", msgs[1])
	}

	lapIDs, err := s.GetDeletedLapIDs(sessionID)
	if err != nil {
		t.Fatalf("failed to load deleted laps: %v", err)
	}
	if len(lapIDs) != 1 {
		t.Errorf("expected 1 deleted lap, got %d", len(lapIDs))
	}

	// A re-run deduplicates onto the existing rows
	again, err := in.IngestRaceControl(ctx, "9001")
	if err != nil {
		t.Fatalf("race control re-ingest failed: %v", err)
	}
	if again.Inserted != 0 || again.Updated != 2 {
		t.Errorf("expected 0 inserted and 2 updated on re-run, got %+v", again)
	}
}

func TestIngestResults(t *testing.T) {
	s := openTestStore(t)
	sessionID := seedBaseline(t, s)
	in := newTestIngestor(s)
	ctx := context.Background()

	seedRaw(t, s, store.SourceResults, "9001",
		`{"driver_number": "1", "position": "1", "laps_completed": "44", "fastest_lap": "true"}`)

	summary, err := in.IngestResults(ctx, "9001")
	if err != nil {
		t.Fatalf("result ingest failed: %v", err)
	}
	if summary.Inserted != 1 {
		t.Errorf("expected 1 result inserted, got %d", summary.Inserted)
	}

	results, err := s.GetResultsBySession(sessionID)
	if err != nil {
		t.Fatalf("failed to load results: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.Status != store.StatusFinished || r.FinishPosition != 1 || !r.FastestLap {
		t.Errorf("unexpected result: %+v", r)
	}

	// A re-run lands on the existing classification row
	again, err := in.IngestResults(ctx, "9001")
	if err != nil {
		t.Fatalf("result re-ingest failed: %v", err)
	}
	if again.Inserted != 0 || again.Updated != 1 {
		t.Errorf("expected 0 inserted and 1 updated on re-run, got %+v", again)
	}
}

func TestDeriveStatus(t *testing.T) {
	testCases := []struct {
		name     string
		raw      rawResult
		position int
		expected string
	}{
		{"finisher", rawResult{}, 5, store.StatusFinished},
		{"retired", rawResult{DNF: "true"}, 0, store.StatusDNF},
		{"no show", rawResult{DNS: "true"}, 0, store.StatusDNS},
		{"disqualified", rawResult{DSQ: "true"}, 0, store.StatusDSQ},
		{"dsq wins over dnf", rawResult{DNF: "true", DSQ: "true"}, 0, store.StatusDSQ},
		{"no position no flags", rawResult{}, 0, store.StatusNotClassified},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := deriveStatus(&tc.raw, tc.position); got != tc.expected {
				t.Errorf("expected %s, got %s", tc.expected, got)
			}
		})
	}
}

func TestImportAliases(t *testing.T) {
	s := openTestStore(t)
	seedBaseline(t, s)
	in := newTestIngestor(s)

	summary, err := in.ImportAliases(context.Background(), []string{
		"alias,driver_id",
		"M. Verstappen,drv:max-verstappen",
		"Verstappen Max,drv:max-verstappen",
		"Ghost Driver,drv:nobody", // unknown target
		"",
	})
	if err != nil {
		t.Fatalf("alias import failed: %v", err)
	}
	if summary.Inserted != 2 || summary.SkipReasons[skipUnresolvedRef] != 1 {
		t.Errorf("expected 2 inserted and 1 unresolved skip, got %+v", summary)
	}

	aliases, err := s.GetDriverAliasMap()
	if err != nil {
		t.Fatalf("failed to load aliases: %v", err)
	}
	if aliases["M. Verstappen"] != "drv:max-verstappen" {
		t.Errorf("expected curated alias, got %v", aliases)
	}
}
