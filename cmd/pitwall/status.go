package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/gavinmiller/pitwall/internal/store"
	"github.com/gavinmiller/pitwall/internal/util"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show dataset counts and reconciliation progress",
	Long: `Show row counts for the raw and canonical strata, and how much of
the raw lap backlog has been reconciled.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	applyLogFlags()

	db, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	util.InfoLog("")
	util.InfoLog("=== Raw stratum ===")
	rawSources := []string{
		store.SourceMeetings, store.SourceSessions, store.SourceDrivers,
		store.SourceLaps, store.SourcePitStops, store.SourceRaceControl,
		store.SourceResults,
	}
	for _, source := range rawSources {
		partitions, err := db.GetRawPartitions(source)
		if err != nil {
			return err
		}
		total := 0
		for _, count := range partitions {
			total += count
		}
		util.InfoLog("  %-14s %8s records in %d partitions",
			source, humanize.Comma(int64(total)), len(partitions))
	}

	util.InfoLog("")
	util.InfoLog("=== Canonical stratum ===")
	tables := []string{
		"meetings", "sessions", "drivers", "driver_alias",
		"season_car_numbers", "laps", "pit_stops", "race_control",
		"results", "points_rules",
	}
	for _, table := range tables {
		count, err := db.TableCount(table)
		if err != nil {
			return err
		}
		util.InfoLog("  %-20s %8s rows", table, humanize.Comma(int64(count)))
	}

	// Lap backlog progress: partitions whose canonical count matches raw
	partitions, err := db.GetRawPartitions(store.SourceLaps)
	if err != nil {
		return err
	}
	sessions, err := db.GetSessionKeyMap()
	if err != nil {
		return err
	}

	loaded := 0
	for key, rawCount := range partitions {
		ref, ok := sessions[key]
		if !ok {
			continue
		}
		canonical, err := db.CountLapsBySession(ref.SessionID)
		if err != nil {
			return err
		}
		if canonical >= rawCount {
			loaded++
		}
	}

	if len(partitions) > 0 {
		util.InfoLog("")
		util.InfoLog("Lap backlog: %d of %d partitions reconciled", loaded, len(partitions))
		if loaded < len(partitions) {
			util.InfoLog("Resume with: pitwall ingest --source laps --bulk")
		}
	}

	return nil
}
