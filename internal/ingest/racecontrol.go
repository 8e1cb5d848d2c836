package ingest

import (
	"context"
	"fmt"

	"github.com/gavinmiller/pitwall/internal/report"
	"github.com/gavinmiller/pitwall/internal/store"
	"github.com/gavinmiller/pitwall/internal/util"
	"github.com/gavinmiller/pitwall/internal/validity"
)

// IngestRaceControl reconciles raw race control messages. Driver and lap
// references are best effort: a message that names neither stays a plain
// session-scope message, it is never skipped for that alone.
func (in *Ingestor) IngestRaceControl(ctx context.Context, sessionKey string) (*report.RunSummary, error) {
	util.InfoLog("Ingesting race control messages")

	records, err := in.store.GetRawRecords(store.SourceRaceControl, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read raw race control: %w", err)
	}

	refs, err := in.loadRefs()
	if err != nil {
		return nil, err
	}

	existing, err := in.store.GetRaceControlKeys(refs.scopeSession(sessionKey))
	if err != nil {
		return nil, fmt.Errorf("failed to preload race control keys: %w", err)
	}

	summary := report.NewRunSummary()
	var msgs []*store.RaceControlMessage
	batchSeen := make(map[string]bool)

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		summary.Processed++

		var raw rawRaceControl
		if err := decodePayload(record.Payload, &raw); err != nil {
			summary.Skip(skipMalformed)
			in.logger.LogSkip(store.SourceRaceControl, record.SessionKey, skipMalformed)
			continue
		}

		ref, ok := refs.sessions[record.SessionKey]
		if !ok {
			summary.Skip(skipUnresolvedRef)
			in.logger.LogSkip(store.SourceRaceControl, record.SessionKey, "unknown session")
			continue
		}

		date, ok := parseTimestamp(raw.Date)
		if !ok {
			summary.Skip(skipMalformed)
			in.logger.LogSkip(store.SourceRaceControl, record.SessionKey, skipMalformed)
			continue
		}

		msg := &store.RaceControlMessage{
			SessionID: ref.SessionID,
			Date:      date,
			Category:  raw.Category,
			Flag:      raw.Flag,
			Scope:     raw.Scope,
			Message:   raw.Message,
		}

		// Driver attribution: the structured field first, then "CAR N"
		// parsed out of the message text
		number, hasNumber := parseInt(raw.DriverNumber)
		if !hasNumber {
			number, hasNumber = validity.ExtractCarNumber(raw.Message)
		}
		if hasNumber {
			if driverID, _, ok := refs.resolveDriver(record.SessionKey, number); ok {
				msg.DriverID = driverID
			}
		}

		// Lap attribution needs a resolved driver to land on one row
		if msg.DriverID != "" {
			if lapNumber, ok := validity.ExtractLapNumber(raw.Message); ok {
				lapID, err := in.store.GetLapIDByNumber(ref.SessionID, msg.DriverID, lapNumber)
				if err != nil {
					return nil, err
				}
				msg.ReferencedLapID = lapID
			}
		}

		key := msg.NaturalKey()
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
		msgs = append(msgs, msg)
	}

	if err := in.store.UpsertRaceControlMessages(msgs); err != nil {
		return nil, err
	}

	in.logger.LogEvent(&report.Event{
		Level:  report.LevelInfo,
		Event:  report.EventIngest,
		Source: store.SourceRaceControl,
		Count:  summary.Processed,
	})

	return summary, nil
}
