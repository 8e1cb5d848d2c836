package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/gavinmiller/pitwall/internal/ingest"
	"github.com/gavinmiller/pitwall/internal/report"
	"github.com/spf13/cobra"
)

var aliasesCmd = &cobra.Command{
	Use:   "aliases",
	Short: "Manage curated driver aliases",
}

var aliasesImportCmd = &cobra.Command{
	Use:   "import <aliases.csv>",
	Short: "Import curated driver aliases from a CSV file",
	Long: `Import curated driver aliases from a CSV file of "alias,driver_id"
lines.

Aliases take precedence over synthesized IDs during resolution, so this
is the fix for identity collisions and alternate name spellings. Every
target driver ID must already exist in the canonical table.`,
	Args: cobra.ExactArgs(1),
	RunE: runAliasesImport,
}

var aliasesCountriesCmd = &cobra.Command{
	Use:   "countries <countries.csv>",
	Short: "Import curated country code mappings from a CSV file",
	Long: `Import curated country code mappings from a CSV file of
"alias,country_code" lines. Driver ingestion rewrites upstream country
codes through this table.`,
	Args: cobra.ExactArgs(1),
	RunE: runAliasesCountries,
}

func init() {
	rootCmd.AddCommand(aliasesCmd)
	aliasesCmd.AddCommand(aliasesImportCmd)
	aliasesCmd.AddCommand(aliasesCountriesCmd)
}

func runAliasesImport(cmd *cobra.Command, args []string) error {
	return importAliasFile(args[0], "aliases",
		func(in *ingest.Ingestor, lines []string) (*report.RunSummary, error) {
			return in.ImportAliases(context.Background(), lines)
		})
}

func runAliasesCountries(cmd *cobra.Command, args []string) error {
	return importAliasFile(args[0], "country aliases",
		func(in *ingest.Ingestor, lines []string) (*report.RunSummary, error) {
			return in.ImportCountryAliases(context.Background(), lines)
		})
}

func importAliasFile(path, title string, run func(*ingest.Ingestor, []string) (*report.RunSummary, error)) error {
	applyLogFlags()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open alias file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read alias file: %w", err)
	}

	db, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	logger := newEventLogger()
	defer logger.Close()

	in := ingest.New(&ingest.Config{Store: db, Logger: logger})

	summary, err := run(in, lines)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	summary.Print(title)

	return nil
}
