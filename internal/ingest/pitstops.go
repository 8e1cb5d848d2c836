package ingest

import (
	"context"
	"fmt"

	"github.com/gavinmiller/pitwall/internal/report"
	"github.com/gavinmiller/pitwall/internal/store"
	"github.com/gavinmiller/pitwall/internal/util"
)

// IngestPitStops reconciles raw pit stops. A stop that references a lap
// not yet in the canonical stratum is a counted skip, so laps should be
// ingested first.
func (in *Ingestor) IngestPitStops(ctx context.Context, sessionKey string) (*report.RunSummary, error) {
	util.InfoLog("Ingesting pit stops")

	records, err := in.store.GetRawRecords(store.SourcePitStops, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read raw pit stops: %w", err)
	}

	refs, err := in.loadRefs()
	if err != nil {
		return nil, err
	}

	existing, err := in.store.GetPitStopKeys(refs.scopeSession(sessionKey))
	if err != nil {
		return nil, fmt.Errorf("failed to preload pit stop keys: %w", err)
	}

	summary := report.NewRunSummary()
	var stops []*store.PitStop
	batchSeen := make(map[string]bool)

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		summary.Processed++

		var raw rawPitStop
		if err := decodePayload(record.Payload, &raw); err != nil {
			summary.Skip(skipMalformed)
			in.logger.LogSkip(store.SourcePitStops, record.SessionKey, skipMalformed)
			continue
		}

		number, ok := parseInt(raw.DriverNumber)
		if !ok {
			summary.Skip(skipMalformed)
			in.logger.LogSkip(store.SourcePitStops, record.SessionKey, skipMalformed)
			continue
		}
		lapNumber, ok := parseInt(raw.LapNumber)
		if !ok {
			summary.Skip(skipMalformed)
			in.logger.LogSkip(store.SourcePitStops, record.SessionKey, skipMalformed)
			continue
		}

		driverID, ref, ok := refs.resolveDriver(record.SessionKey, number)
		if !ok {
			summary.Skip(skipUnresolvedRef)
			in.logger.LogSkip(store.SourcePitStops, record.SessionKey, skipUnresolvedRef)
			continue
		}

		lapID, err := in.store.GetLapIDByNumber(ref.SessionID, driverID, lapNumber)
		if err != nil {
			return nil, err
		}
		if lapID == 0 {
			summary.Skip(skipUnresolvedRef)
			in.logger.LogSkip(store.SourcePitStops, record.SessionKey,
				fmt.Sprintf("no lap %d for %s", lapNumber, driverID))
			continue
		}

		durationMS, _ := parseSecondsToMS(raw.PitDurationS)

		stop := &store.PitStop{
			SessionID:  ref.SessionID,
			DriverID:   driverID,
			LapID:      lapID,
			DurationMS: durationMS,
		}

		key := stop.NaturalKey()
		if batchSeen[key] {
			summary.Skip("duplicate in batch")
			continue
		}
		batchSeen[key] = true

		if existing[key] {
			summary.Updated++
		} else {
			summary.Inserted++
		}
		stops = append(stops, stop)
	}

	if err := in.store.UpsertPitStops(stops); err != nil {
		return nil, err
	}

	in.logger.LogEvent(&report.Event{
		Level:  report.LevelInfo,
		Event:  report.EventIngest,
		Source: store.SourcePitStops,
		Count:  summary.Processed,
	})

	return summary, nil
}
