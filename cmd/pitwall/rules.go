package main

import (
	"fmt"

	"github.com/gavinmiller/pitwall/internal/points"
	"github.com/gavinmiller/pitwall/internal/util"
	"github.com/spf13/cobra"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage the points ruleset",
}

var rulesLoadCmd = &cobra.Command{
	Use:   "load <ruleset.yaml>",
	Short: "Load a points ruleset from a YAML file",
	Long: `Load a points ruleset from a YAML file into the dataset.

The file holds one rule per entry: season, race category, completion
band, and either a finishing position or a bonus kind, with the points
awarded. Loading replaces all rules for the seasons the file covers and
leaves other seasons alone.`,
	Args: cobra.ExactArgs(1),
	RunE: runRulesLoad,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesLoadCmd)
}

func runRulesLoad(cmd *cobra.Command, args []string) error {
	applyLogFlags()

	rules, err := points.LoadRuleFile(args[0])
	if err != nil {
		return err
	}

	db, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.ReplacePointsRules(rules); err != nil {
		return fmt.Errorf("failed to store ruleset: %w", err)
	}

	seasons := make(map[int]bool)
	for _, r := range rules {
		seasons[r.Season] = true
	}

	util.SuccessLog("Loaded %d rules covering %d seasons", len(rules), len(seasons))
	util.InfoLog("Re-run scoring to apply: pitwall score")

	return nil
}
