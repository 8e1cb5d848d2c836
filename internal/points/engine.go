package points

import (
	"context"
	"fmt"

	"github.com/gavinmiller/pitwall/internal/report"
	"github.com/gavinmiller/pitwall/internal/store"
	"github.com/gavinmiller/pitwall/internal/util"
)

// Engine scores finalized session results against the ruleset. It only
// ever overwrites results.points, so a re-run at any time converges on
// the same values.
type Engine struct {
	store  *store.Store
	logger *report.EventLogger
	rules  map[store.RuleKey]float64
}

// Config holds engine configuration
type Config struct {
	Store  *store.Store
	Logger *report.EventLogger
}

// New creates a new Engine with the ruleset loaded from the store
func New(cfg *Config) (*Engine, error) {
	rules, err := cfg.Store.GetPointsRuleMap()
	if err != nil {
		return nil, fmt.Errorf("failed to load points rules: %w", err)
	}

	return &Engine{
		store:  cfg.Store,
		logger: cfg.Logger,
		rules:  rules,
	}, nil
}

// Result represents a scoring run
type Result struct {
	SessionsProcessed int
	ResultsUpdated    int
	ResultsZeroed     int
	SessionsSkipped   int
}

// sessionContext is the per-session state computed in step 1
type sessionContext struct {
	season        int
	category      string
	scheduledLaps int
	completedLaps int
	band          string
	gateOpen      bool
}

// ScoreAll scores every session that has results. Sessions are
// independent: each one only reads its own rows plus the ruleset, so
// processing order is irrelevant.
func (e *Engine) ScoreAll(ctx context.Context) (*Result, error) {
	sessionIDs, err := e.store.GetSessionIDsWithResults()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	util.InfoLog("Scoring %d sessions", len(sessionIDs))

	total := &Result{}
	for _, sessionID := range sessionIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := e.ScoreSession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		total.SessionsProcessed += result.SessionsProcessed
		total.ResultsUpdated += result.ResultsUpdated
		total.ResultsZeroed += result.ResultsZeroed
		total.SessionsSkipped += result.SessionsSkipped
	}

	return total, nil
}

// ScoreSession evaluates steps 1-4 for one session
func (e *Engine) ScoreSession(ctx context.Context, sessionID string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sctx, err := e.sessionContext(sessionID)
	if err != nil {
		return nil, err
	}
	if sctx == nil {
		util.WarnLog("Session %s not found, skipping", sessionID)
		return &Result{SessionsSkipped: 1}, nil
	}

	util.DebugLog("Session %s: season=%d category=%s band=%s completed=%d/%d",
		sessionID, sctx.season, sctx.category, sctx.band, sctx.completedLaps, sctx.scheduledLaps)

	result := &Result{SessionsProcessed: 1}

	// Sessions that award nothing, and minimal-distance sessions that
	// never saw real racing laps, zero out wholesale.
	if sctx.category == store.PointsNone || (sctx.band == BandMinimal && !sctx.gateOpen) {
		zeroed, err := e.store.ZeroSessionPoints(sessionID)
		if err != nil {
			return nil, err
		}
		result.ResultsZeroed = zeroed

		e.logger.LogEvent(&report.Event{
			Level:     report.LevelInfo,
			Event:     report.EventScore,
			SessionID: sessionID,
			Reason:    fmt.Sprintf("no points: category=%s band=%s gate=%t", sctx.category, sctx.band, sctx.gateOpen),
			Count:     zeroed,
		})
		return result, nil
	}

	results, err := e.store.GetResultsBySession(sessionID)
	if err != nil {
		return nil, err
	}

	bonusKey := store.RuleKey{
		Season:         sctx.season,
		RaceCategory:   sctx.category,
		CompletionBand: sctx.band,
		Bonus:          BonusFastestLap,
	}
	bonusPoints, bonusExists := e.rules[bonusKey]

	for _, r := range results {
		points := e.scoreResult(sctx, r, bonusPoints, bonusExists)
		if err := e.store.UpdateResultPoints(sessionID, r.DriverID, points); err != nil {
			return nil, err
		}
		result.ResultsUpdated++
	}

	e.logger.LogEvent(&report.Event{
		Level:     report.LevelInfo,
		Event:     report.EventScore,
		SessionID: sessionID,
		Reason:    fmt.Sprintf("band=%s", sctx.band),
		Count:     result.ResultsUpdated,
	})

	return result, nil
}

// scoreResult computes one result's total points
func (e *Engine) scoreResult(sctx *sessionContext, r *store.Result, bonusPoints float64, bonusExists bool) float64 {
	if r.Status != store.StatusFinished {
		return 0
	}

	base := 0.0
	if r.FinishPosition > 0 {
		baseKey := store.RuleKey{
			Season:         sctx.season,
			RaceCategory:   sctx.category,
			CompletionBand: sctx.band,
			Position:       r.FinishPosition,
		}
		base = e.rules[baseKey]
	}

	bonus := 0.0
	if bonusExists && r.FastestLap && r.FinishPosition > 0 && r.FinishPosition <= 10 {
		bonus = bonusPoints
	}

	return base + bonus
}

// sessionContext gathers step-1 state for one session, or nil when the
// session does not exist.
func (e *Engine) sessionContext(sessionID string) (*sessionContext, error) {
	sess, err := e.store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}

	season, err := e.store.GetSessionSeason(sessionID)
	if err != nil {
		return nil, err
	}

	completed, err := e.completedLaps(sessionID)
	if err != nil {
		return nil, err
	}

	band := completionBand(completed, sess.ScheduledLaps)

	gateOpen := true
	if band == BandMinimal {
		gateOpen, err = e.hasMinimumRaceLaps(sessionID, completed)
		if err != nil {
			return nil, err
		}
	}

	return &sessionContext{
		season:        season,
		category:      sess.PointsCategory,
		scheduledLaps: sess.ScheduledLaps,
		completedLaps: completed,
		band:          band,
		gateOpen:      gateOpen,
	}, nil
}

// completedLaps is the max laps completed by any classified driver.
// The lap table stands in only when no result carries a count; a
// recorded count is authoritative even when more lap rows exist.
func (e *Engine) completedLaps(sessionID string) (int, error) {
	fromResults, ok, err := e.store.MaxLapsCompleted(sessionID)
	if err != nil {
		return 0, err
	}
	if ok {
		return fromResults, nil
	}

	return e.store.MaxValidLapNumber(sessionID)
}

// completionBand maps the completed/scheduled ratio to a band. An
// unknown scheduled distance is treated as fully completed.
func completionBand(completed, scheduled int) string {
	if scheduled <= 0 {
		return BandFull
	}

	ratio := float64(completed) / float64(scheduled)
	switch {
	case ratio >= 0.75:
		return BandFull
	case ratio >= 0.50:
		return BandThreeQuarter
	case ratio >= 0.25:
		return BandHalf
	default:
		return BandMinimal
	}
}

// hasMinimumRaceLaps decides whether a minimal-distance session saw at
// least two genuine racing laps. Three completed laps always qualify and
// fewer than two never do. The two-lap boundary is a heuristic: no
// authoritative "raced under green" fact exists in the feed, so a
// track-scope green flag (not the pit exit opening) or a DRS-enabled
// message stands in as evidence of real racing. Replace this if the
// feed ever grows an authoritative signal.
func (e *Engine) hasMinimumRaceLaps(sessionID string, completed int) (bool, error) {
	if completed >= 3 {
		return true, nil
	}
	if completed < 2 {
		return false, nil
	}

	greenFlag, err := e.store.HasTrackGreenFlag(sessionID)
	if err != nil {
		return false, err
	}
	if greenFlag {
		return true, nil
	}

	return e.store.HasDRSEnabled(sessionID)
}
