package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gavinmiller/pitwall/internal/util"
	"github.com/gavinmiller/pitwall/internal/validity"
	"github.com/spf13/cobra"
)

var deriveCmd = &cobra.Command{
	Use:   "derive",
	Short: "Recompute derived lap validity flags",
	Long: `Recompute is_pit_in_lap and is_valid for every lap in scope.

A lap is invalid when it is a pit-out lap, ends in a pit stop, or was
deleted by a race control message. The pass is a full rewrite over the
persisted rows, so it can run any number of times and always converges
on the same flags.`,
	RunE: runDerive,
}

func init() {
	rootCmd.AddCommand(deriveCmd)

	deriveCmd.Flags().String("session", "", "restrict to one canonical session ID")
}

func runDerive(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	applyLogFlags()

	db, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	logger := newEventLogger()
	defer logger.Close()

	sessionID, _ := cmd.Flags().GetString("session")

	deriver := validity.New(&validity.Config{Store: db, Logger: logger})

	startTime := time.Now()
	result, err := deriver.Derive(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("derivation failed: %w", err)
	}

	util.SuccessLog("Derivation complete in %v", time.Since(startTime).Round(time.Millisecond))
	util.InfoLog("  Laps invalidated: %d", result.Invalidated)
	util.InfoLog("")
	util.InfoLog("Next step: pitwall score")

	return nil
}
