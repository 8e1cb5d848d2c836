package ingest

import (
	"context"
	"fmt"

	"github.com/gavinmiller/pitwall/internal/report"
	"github.com/gavinmiller/pitwall/internal/store"
	"github.com/gavinmiller/pitwall/internal/util"
)

// IngestResults reconciles raw classification rows. Status is derived
// from the dnf/dns/dsq flags; a row with none of them set and a finish
// position is a finisher.
func (in *Ingestor) IngestResults(ctx context.Context, sessionKey string) (*report.RunSummary, error) {
	util.InfoLog("Ingesting session results")

	records, err := in.store.GetRawRecords(store.SourceResults, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read raw results: %w", err)
	}

	refs, err := in.loadRefs()
	if err != nil {
		return nil, err
	}

	existing, err := in.store.GetResultKeys(refs.scopeSession(sessionKey))
	if err != nil {
		return nil, fmt.Errorf("failed to preload result keys: %w", err)
	}

	summary := report.NewRunSummary()
	var results []*store.Result
	batchSeen := make(map[string]bool)

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		summary.Processed++

		var raw rawResult
		if err := decodePayload(record.Payload, &raw); err != nil {
			summary.Skip(skipMalformed)
			in.logger.LogSkip(store.SourceResults, record.SessionKey, skipMalformed)
			continue
		}

		number, ok := parseInt(raw.DriverNumber)
		if !ok {
			summary.Skip(skipMalformed)
			in.logger.LogSkip(store.SourceResults, record.SessionKey, skipMalformed)
			continue
		}

		driverID, ref, ok := refs.resolveDriver(record.SessionKey, number)
		if !ok {
			summary.Skip(skipUnresolvedRef)
			in.logger.LogSkip(store.SourceResults, record.SessionKey, skipUnresolvedRef)
			continue
		}

		position, _ := parseInt(raw.Position)
		lapsCompleted, _ := parseInt(raw.LapsCompleted)

		result := &store.Result{
			SessionID:      ref.SessionID,
			DriverID:       driverID,
			FinishPosition: position,
			Status:         deriveStatus(&raw, position),
			LapsCompleted:  lapsCompleted,
			FastestLap:     parseBool(raw.FastestLap),
		}

		key := result.NaturalKey()
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
		results = append(results, result)
	}

	if err := in.store.UpsertResults(results); err != nil {
		return nil, err
	}

	in.logger.LogEvent(&report.Event{
		Level:  report.LevelInfo,
		Event:  report.EventIngest,
		Source: store.SourceResults,
		Count:  summary.Processed,
	})

	return summary, nil
}

// deriveStatus maps the upstream classification flags to one status.
// Disqualification wins over retirement, which wins over a no-show.
func deriveStatus(raw *rawResult, position int) string {
	switch {
	case parseBool(raw.DSQ):
		return store.StatusDSQ
	case parseBool(raw.DNS):
		return store.StatusDNS
	case parseBool(raw.DNF):
		return store.StatusDNF
	case position > 0:
		return store.StatusFinished
	}
	return store.StatusNotClassified
}
