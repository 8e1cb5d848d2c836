package validity

import (
	"context"
	"fmt"

	"github.com/gavinmiller/pitwall/internal/report"
	"github.com/gavinmiller/pitwall/internal/store"
	"github.com/gavinmiller/pitwall/internal/util"
)

// Deriver recomputes the derived lap flags as a pure post-pass over
// persisted laps, pit stops and race control messages.
type Deriver struct {
	store  *store.Store
	logger *report.EventLogger
}

// Config holds deriver configuration
type Config struct {
	Store  *store.Store
	Logger *report.EventLogger
}

// New creates a new Deriver
func New(cfg *Config) *Deriver {
	return &Deriver{
		store:  cfg.Store,
		logger: cfg.Logger,
	}
}

// Result represents a derivation run
type Result struct {
	LapsProcessed int
	PitInLaps     int
	DeletedLaps   int
	Invalidated   int
}

// Derive rewrites is_pit_in_lap and is_valid for every lap in scope.
// An empty sessionID covers the full backlog. The pass is a full
// rewrite, so running it twice on unchanged inputs is a no-op.
func (d *Deriver) Derive(ctx context.Context, sessionID string) (*Result, error) {
	if sessionID == "" {
		util.InfoLog("Deriving lap validity for all sessions")
	} else {
		util.InfoLog("Deriving lap validity for session %s", sessionID)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if sessionID != "" {
		sess, err := d.store.GetSession(sessionID)
		if err != nil {
			return nil, err
		}
		if sess == nil {
			return nil, fmt.Errorf("%w: session %s", util.ErrNotFound, sessionID)
		}
	}

	pitIn, err := d.store.GetPitStopLapIDs(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pit stop laps: %w", err)
	}

	deleted, err := d.store.GetDeletedLapIDs(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load deleted laps: %w", err)
	}

	invalidated, err := d.store.RewriteLapFlags(sessionID, pitIn, deleted)
	if err != nil {
		return nil, fmt.Errorf("failed to rewrite lap flags: %w", err)
	}

	laps, err := d.store.GetLapsBySession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to count laps: %w", err)
	}

	result := &Result{
		LapsProcessed: len(laps),
		PitInLaps:     len(pitIn),
		DeletedLaps:   len(deleted),
		Invalidated:   invalidated,
	}

	d.logger.LogEvent(&report.Event{
		Level:     report.LevelInfo,
		Event:     report.EventDerive,
		SessionID: sessionID,
		Reason:    fmt.Sprintf("%d laps, %d pit-in, %d deleted", result.LapsProcessed, result.PitInLaps, result.DeletedLaps),
	})

	util.InfoLog("  Laps processed: %d", result.LapsProcessed)
	util.InfoLog("  Pit-in laps: %d", result.PitInLaps)
	util.InfoLog("  Deleted laps: %d", result.DeletedLaps)

	return result, nil
}
