package ingest

import (
	"context"
	"fmt"

	"github.com/gavinmiller/pitwall/internal/report"
	"github.com/gavinmiller/pitwall/internal/store"
	"github.com/gavinmiller/pitwall/internal/util"
)

// IngestMeetings upserts meetings from raw feed records
func (in *Ingestor) IngestMeetings(ctx context.Context) (*report.RunSummary, error) {
	util.InfoLog("Ingesting meetings")

	records, err := in.store.GetRawRecords(store.SourceMeetings, "")
	if err != nil {
		return nil, fmt.Errorf("failed to read raw meetings: %w", err)
	}

	existing, err := in.store.GetMeetingKeyMap()
	if err != nil {
		return nil, fmt.Errorf("failed to load meetings: %w", err)
	}

	summary := report.NewRunSummary()
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		summary.Processed++

		var raw rawMeeting
		if err := decodePayload(record.Payload, &raw); err != nil {
			summary.Skip(skipMalformed)
			in.logger.LogSkip(store.SourceMeetings, record.SessionKey, err.Error())
			continue
		}

		if raw.MeetingKey == "" {
			summary.Skip(skipMissingRequired)
			continue
		}

		season, ok := parseInt(raw.Season)
		if !ok {
			summary.Skip(skipMalformed)
			in.logger.LogSkip(store.SourceMeetings, record.SessionKey, "bad season: "+raw.Season)
			continue
		}

		meeting := &store.Meeting{
			MeetingID:        "mtg:" + sanitizeIDPart(raw.CircuitShortName) + "-" + raw.Season,
			MeetingKey:       raw.MeetingKey,
			Season:           season,
			CircuitShortName: raw.CircuitShortName,
			CircuitName:      raw.CircuitName,
		}

		if err := in.store.UpsertMeeting(meeting); err != nil {
			return nil, err
		}
		if _, ok := existing[meeting.MeetingKey]; ok {
			summary.Updated++
		} else {
			summary.Inserted++
			existing[meeting.MeetingKey] = meeting
		}
	}

	return summary, nil
}

// IngestSessions upserts sessions from raw feed records, deriving the
// session type from the upstream session name and the points category
// from the type.
func (in *Ingestor) IngestSessions(ctx context.Context) (*report.RunSummary, error) {
	util.InfoLog("Ingesting sessions")

	records, err := in.store.GetRawRecords(store.SourceSessions, "")
	if err != nil {
		return nil, fmt.Errorf("failed to read raw sessions: %w", err)
	}

	meetings, err := in.store.GetMeetingKeyMap()
	if err != nil {
		return nil, fmt.Errorf("failed to load meetings: %w", err)
	}

	existing, err := in.store.GetSessionKeyMap()
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	summary := report.NewRunSummary()
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		summary.Processed++

		var raw rawSession
		if err := decodePayload(record.Payload, &raw); err != nil {
			summary.Skip(skipMalformed)
			in.logger.LogSkip(store.SourceSessions, record.SessionKey, err.Error())
			continue
		}

		if raw.SessionKey == "" {
			summary.Skip(skipMissingRequired)
			continue
		}

		meeting, ok := meetings[raw.MeetingKey]
		if !ok {
			summary.Skip(skipUnresolvedRef)
			in.logger.LogSkip(store.SourceSessions, raw.SessionKey, "unknown meeting "+raw.MeetingKey)
			continue
		}

		sessionType := deriveSessionType(raw.SessionName)
		if sessionType == "" {
			summary.Skip(skipMalformed)
			in.logger.LogSkip(store.SourceSessions, raw.SessionKey, "unrecognized session name "+raw.SessionName)
			continue
		}

		scheduledLaps, _ := parseInt(raw.ScheduledLaps) // optional; 0 = unknown

		startTime, _ := parseTimestamp(raw.DateStart)
		endTime, _ := parseTimestamp(raw.DateEnd)

		session := &store.Session{
			SessionID: fmt.Sprintf("ses:%s-%d-%s-%s",
				sanitizeIDPart(meeting.CircuitShortName), meeting.Season, sessionType, raw.SessionKey),
			SessionKey:     raw.SessionKey,
			MeetingID:      meeting.MeetingID,
			SessionType:    sessionType,
			PointsCategory: derivePointsCategory(sessionType),
			ScheduledLaps:  scheduledLaps,
			StartTime:      startTime,
			EndTime:        endTime,
		}

		if err := in.store.UpsertSession(session); err != nil {
			return nil, err
		}
		if _, ok := existing[session.SessionKey]; ok {
			summary.Updated++
		} else {
			summary.Inserted++
			existing[session.SessionKey] = &store.SessionRef{
				SessionID:   session.SessionID,
				Season:      meeting.Season,
				SessionType: sessionType,
			}
		}
	}

	return summary, nil
}
