package ingest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gavinmiller/pitwall/internal/report"
	"github.com/gavinmiller/pitwall/internal/store"
	"github.com/gavinmiller/pitwall/internal/util"
	"github.com/schollz/progressbar/v3"
)

// IngestLaps reconciles raw laps in row-level mode: existing natural
// keys for the scope are preloaded, incoming rows are partitioned into
// insert and update sets, and each set is applied as one batch. An
// empty sessionKey covers every raw lap partition.
func (in *Ingestor) IngestLaps(ctx context.Context, sessionKey string) (*report.RunSummary, error) {
	util.InfoLog("Ingesting laps (row-level)")

	records, err := in.store.GetRawRecords(store.SourceLaps, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read raw laps: %w", err)
	}

	refs, err := in.loadRefs()
	if err != nil {
		return nil, err
	}

	scopeSession := ""
	if sessionKey != "" {
		ref, ok := refs.sessions[sessionKey]
		if !ok {
			return nil, fmt.Errorf("%w: unknown session partition %q", util.ErrUnresolvedRef, sessionKey)
		}
		scopeSession = ref.SessionID
	}
	existing, err := in.store.GetLapKeys(scopeSession)
	if err != nil {
		return nil, fmt.Errorf("failed to preload lap keys: %w", err)
	}

	summary := report.NewRunSummary()
	var inserts, updates []*store.Lap
	batchSeen := make(map[string]bool)

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		summary.Processed++

		lap, reason := in.parseLap(record, refs)
		if lap == nil {
			summary.Skip(reason)
			in.logger.LogSkip(store.SourceLaps, record.SessionKey, reason)
			continue
		}

		key := lap.NaturalKey()
		if batchSeen[key] {
			// Duplicate within the raw batch collapses onto one row
			summary.Skip("duplicate in batch")
			continue
		}
		batchSeen[key] = true

		if lapID, ok := existing[key]; ok {
			lap.LapID = lapID
			updates = append(updates, lap)
		} else {
			inserts = append(inserts, lap)
		}
	}

	if err := in.store.InsertLaps(inserts); err != nil {
		return nil, err
	}
	if err := in.store.UpdateLaps(updates); err != nil {
		return nil, err
	}
	summary.Inserted = len(inserts)
	summary.Updated = len(updates)

	in.logger.LogEvent(&report.Event{
		Level:  report.LevelInfo,
		Event:  report.EventIngest,
		Source: store.SourceLaps,
		Count:  summary.Processed,
		Reason: fmt.Sprintf("%d inserted, %d updated, %d skipped", summary.Inserted, summary.Updated, summary.Skipped),
	})

	return summary, nil
}

// IngestLapsBulk reconciles raw laps in source-level mode, for backlogs
// where a per-row existence check is not affordable. A session
// partition whose canonical row count already matches its raw count is
// skipped wholesale; anything else is re-reconciled. Partitions are
// disjoint natural-key scopes, so independent workers process them in
// parallel without coordination.
func (in *Ingestor) IngestLapsBulk(ctx context.Context) (*report.RunSummary, error) {
	util.InfoLog("Ingesting laps (source-level)")

	partitions, err := in.store.GetRawPartitions(store.SourceLaps)
	if err != nil {
		return nil, fmt.Errorf("failed to list raw partitions: %w", err)
	}

	sessions, err := in.store.GetSessionKeyMap()
	if err != nil {
		return nil, err
	}

	// Decide per partition before any writes
	var pending []string
	summary := report.NewRunSummary()
	for key, rawCount := range partitions {
		ref, ok := sessions[key]
		if !ok {
			summary.Skip(skipUnresolvedRef)
			in.logger.LogSkip(store.SourceLaps, key, "unknown session")
			continue
		}

		canonicalCount, err := in.store.CountLapsBySession(ref.SessionID)
		if err != nil {
			return nil, err
		}
		if canonicalCount >= rawCount {
			summary.Skip("partition already loaded")
			continue
		}
		pending = append(pending, key)
	}
	sort.Strings(pending)

	if len(pending) == 0 {
		util.InfoLog("All %d partitions already loaded", len(partitions))
		return summary, nil
	}

	util.InfoLog("Processing %d of %d partitions with %d workers",
		len(pending), len(partitions), in.concurrency)

	bar := progressbar.NewOptions(len(pending),
		progressbar.OptionSetDescription("Loading laps"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("partitions"),
		progressbar.OptionThrottle(200*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)

	// Each worker owns whole partitions; no two workers ever touch the
	// same session's laps.
	work := make(chan string, len(pending))
	for _, key := range pending {
		work <- key
	}
	close(work)

	results := make(chan *report.RunSummary, len(pending))
	errs := make(chan error, in.concurrency)

	var wg sync.WaitGroup
	for i := 0; i < in.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for key := range work {
				if ctx.Err() != nil {
					return
				}
				partial, err := in.IngestLaps(ctx, key)
				if err != nil {
					errs <- err
					return
				}
				results <- partial
				bar.Add(1)
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
		close(errs)
	}()

	for partial := range results {
		summary.Merge(partial)
	}
	if err := <-errs; err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return summary, nil
}

// refMaps carries the preloaded lookups reference resolution needs
type refMaps struct {
	sessions   map[string]*store.SessionRef
	carNumbers map[store.CarNumberKey]string
}

// scopeSession maps a raw partition key to its canonical session ID,
// or "" when the scope is the whole table or the key is unknown
func (r *refMaps) scopeSession(sessionKey string) string {
	if ref, ok := r.sessions[sessionKey]; sessionKey != "" && ok {
		return ref.SessionID
	}
	return ""
}

func (in *Ingestor) loadRefs() (*refMaps, error) {
	sessions, err := in.store.GetSessionKeyMap()
	if err != nil {
		return nil, err
	}
	carNumbers, err := in.store.GetCarNumberDriverMap()
	if err != nil {
		return nil, err
	}
	return &refMaps{sessions: sessions, carNumbers: carNumbers}, nil
}

// resolveDriver maps (session partition, car number) to a driver via the
// session's season.
func (r *refMaps) resolveDriver(sessionKey string, carNumber int) (string, *store.SessionRef, bool) {
	ref, ok := r.sessions[sessionKey]
	if !ok {
		return "", nil, false
	}
	driverID, ok := r.carNumbers[store.CarNumberKey{Season: ref.Season, CarNumber: carNumber}]
	if !ok {
		return "", ref, false
	}
	return driverID, ref, true
}

// parseLap turns one raw record into a canonical lap, or returns the
// skip reason.
func (in *Ingestor) parseLap(record *store.RawRecord, refs *refMaps) (*store.Lap, string) {
	var raw rawLap
	if err := decodePayload(record.Payload, &raw); err != nil {
		return nil, skipMalformed
	}

	number, ok := parseInt(raw.DriverNumber)
	if !ok {
		return nil, skipMalformed
	}
	lapNumber, ok := parseInt(raw.LapNumber)
	if !ok {
		return nil, skipMalformed
	}
	dateStart, ok := parseTimestamp(raw.DateStart)
	if !ok {
		return nil, skipMalformed
	}

	driverID, ref, ok := refs.resolveDriver(record.SessionKey, number)
	if !ok {
		return nil, skipUnresolvedRef
	}

	durationMS, _ := parseSecondsToMS(raw.LapDurationS) // open laps have none

	return &store.Lap{
		SessionID:   ref.SessionID,
		DriverID:    driverID,
		LapNumber:   lapNumber,
		DateStart:   dateStart,
		DurationMS:  durationMS,
		IsPitOutLap: parseBool(raw.IsPitOutLap),
	}, ""
}
