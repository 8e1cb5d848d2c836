package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gavinmiller/pitwall/internal/points"
	"github.com/gavinmiller/pitwall/internal/util"
	"github.com/spf13/cobra"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Award championship points to session results",
	Long: `Award championship points to finalized session results under the
loaded ruleset.

Each session is scored independently: the completed distance selects a
completion band, the band and season select the applicable rules, and
every classified finisher gets base points for position plus any
fastest-lap bonus. Sessions that award nothing have their points zeroed
so the pass always converges. Load a ruleset first with
pitwall rules load.`,
	RunE: runScore,
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().String("session", "", "restrict to one canonical session ID")
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	applyLogFlags()

	db, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	logger := newEventLogger()
	defer logger.Close()

	engine, err := points.New(&points.Config{Store: db, Logger: logger})
	if err != nil {
		return err
	}

	sessionID, _ := cmd.Flags().GetString("session")

	startTime := time.Now()

	var result *points.Result
	if sessionID != "" {
		result, err = engine.ScoreSession(ctx, sessionID)
	} else {
		result, err = engine.ScoreAll(ctx)
	}
	if err != nil {
		return fmt.Errorf("scoring failed: %w", err)
	}

	util.SuccessLog("Scoring complete in %v", time.Since(startTime).Round(time.Millisecond))
	util.InfoLog("  Sessions processed: %d", result.SessionsProcessed)
	util.InfoLog("  Results updated: %d", result.ResultsUpdated)
	util.InfoLog("  Results zeroed: %d", result.ResultsZeroed)
	if result.SessionsSkipped > 0 {
		util.WarnLog("  Sessions skipped: %d", result.SessionsSkipped)
	}

	return nil
}
