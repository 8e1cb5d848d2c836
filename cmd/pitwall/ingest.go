package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gavinmiller/pitwall/internal/ingest"
	"github.com/gavinmiller/pitwall/internal/report"
	"github.com/gavinmiller/pitwall/internal/store"
	"github.com/gavinmiller/pitwall/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Reconcile raw feed records into the canonical dataset",
	Long: `Reconcile raw feed records into the canonical dataset.

Sources run in dependency order: meetings, sessions, drivers, car
numbers, then laps, pit stops, race control and results. Re-running is
safe; every record lands on its natural key.

Use --source to run a single source, --session to limit the
reference-carrying sources to one session partition, and --bulk to load
the lap backlog in source-level mode, which skips partitions whose
canonical row count already matches the raw count.`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().String("source", "", "single source to ingest (meetings, sessions, drivers, car_numbers, laps, pit_stops, race_control, results)")
	ingestCmd.Flags().String("session", "", "restrict to one session partition key")
	ingestCmd.Flags().Bool("bulk", false, "source-level mode for the lap backlog")
	ingestCmd.Flags().Int("concurrency", 4, "partition workers in source-level mode")
	viper.BindPFlag("concurrency", ingestCmd.Flags().Lookup("concurrency"))
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	applyLogFlags()

	db, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	logger := newEventLogger()
	defer logger.Close()

	in := ingest.New(&ingest.Config{
		Store:       db,
		Logger:      logger,
		Concurrency: viper.GetInt("concurrency"),
	})

	source, _ := cmd.Flags().GetString("source")
	sessionKey, _ := cmd.Flags().GetString("session")
	bulk, _ := cmd.Flags().GetBool("bulk")

	type step struct {
		name string
		run  func() (*report.RunSummary, error)
	}

	lapStep := step{store.SourceLaps, func() (*report.RunSummary, error) {
		if bulk {
			return in.IngestLapsBulk(ctx)
		}
		return in.IngestLaps(ctx, sessionKey)
	}}

	steps := []step{
		{store.SourceMeetings, func() (*report.RunSummary, error) { return in.IngestMeetings(ctx) }},
		{store.SourceSessions, func() (*report.RunSummary, error) { return in.IngestSessions(ctx) }},
		{store.SourceDrivers, func() (*report.RunSummary, error) { return in.IngestDrivers(ctx) }},
		{"car_numbers", func() (*report.RunSummary, error) { return in.IngestCarNumbers(ctx) }},
		lapStep,
		{store.SourcePitStops, func() (*report.RunSummary, error) { return in.IngestPitStops(ctx, sessionKey) }},
		{store.SourceRaceControl, func() (*report.RunSummary, error) { return in.IngestRaceControl(ctx, sessionKey) }},
		{store.SourceResults, func() (*report.RunSummary, error) { return in.IngestResults(ctx, sessionKey) }},
	}

	if source != "" {
		found := false
		for _, s := range steps {
			if s.name == source {
				steps = []step{s}
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: unknown source %q", util.ErrInvalidConfig, source)
		}
	}

	startTime := time.Now()
	total := report.NewRunSummary()

	for _, s := range steps {
		summary, err := s.run()
		if err != nil {
			logger.LogError(report.EventIngest, s.name, err)
			return fmt.Errorf("%s ingest failed: %w", s.name, err)
		}
		summary.Print(s.name)
		total.Merge(summary)
		util.InfoLog("")
	}

	util.SuccessLog("Ingest complete in %v", time.Since(startTime).Round(time.Millisecond))
	total.Print("all sources")

	if len(total.IdentityWarnings) > 0 {
		util.WarnLog("")
		util.WarnLog("Identity collisions need curated aliases: pitwall aliases import <file>")
	}

	util.InfoLog("")
	util.InfoLog("Next step: pitwall derive")

	return nil
}
