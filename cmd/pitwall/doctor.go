package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gavinmiller/pitwall/internal/store"
	"github.com/gavinmiller/pitwall/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the dataset and configuration",
	Long: `Run diagnostic checks to ensure pitwall can operate correctly.

This command checks:
- SQLite availability and version
- Database accessibility and integrity
- Referential consistency of the canonical stratum
- Points ruleset coverage for the seasons on record
- Artifacts directory writability

Use this command to troubleshoot issues before running pitwall operations.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	applyLogFlags()

	util.InfoLog("=== Pitwall Doctor - Dataset Diagnostics ===")
	util.InfoLog("")

	results := []checkResult{}

	// 1. Check SQLite
	results = append(results, checkSQLite())

	// 2. Check database file and integrity
	dbPath := viper.GetString("db")
	dbChecks, db := checkDatabase(dbPath)
	results = append(results, dbChecks...)

	// 3. Dataset consistency checks need an open database
	if db != nil {
		defer db.Close()
		results = append(results, checkOrphanLaps(db))
		results = append(results, checkDanglingResults(db))
		results = append(results, checkRulesetCoverage(db))
	}

	// 4. Check artifacts directory
	results = append(results, checkArtifactsDir())

	// Print results
	util.InfoLog("")
	util.InfoLog("=== Diagnostic Results ===")
	util.InfoLog("")

	hasErrors := false
	hasWarnings := false

	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += fmt.Sprintf(": %s", r.message)
		}

		if r.error {
			util.ErrorLog("%s", line)
		} else if r.warning {
			util.WarnLog("%s", line)
		} else {
			util.SuccessLog("%s", line)
		}
	}

	util.InfoLog("")
	if hasErrors {
		util.ErrorLog("Some critical checks failed. Please resolve errors before running pitwall.")
		return fmt.Errorf("dataset diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("Some checks produced warnings. Review them before proceeding.")
	} else {
		util.SuccessLog("All checks passed. Dataset is ready.")
	}

	return nil
}

// checkSQLite verifies the embedded SQLite is usable
func checkSQLite() checkResult {
	version := store.SQLiteVersion()
	if version == "" {
		return checkResult{
			name:    "SQLite",
			error:   true,
			message: "unable to determine version",
		}
	}

	return checkResult{
		name:    "SQLite",
		message: fmt.Sprintf("version %s (built-in)", version),
	}
}

// checkDatabase verifies database accessibility and integrity, and hands
// back the open store for the consistency checks.
func checkDatabase(dbPath string) ([]checkResult, *store.Store) {
	if dbPath == "" {
		return []checkResult{{
			name:    "Database",
			warning: true,
			message: "no database path specified (use --db flag or config)",
		}}, nil
	}

	if info, err := os.Stat(dbPath); err != nil {
		if os.IsNotExist(err) {
			return []checkResult{{
				name:    "Database",
				message: fmt.Sprintf("%s (will be created on first run)", dbPath),
			}}, nil
		}
		return []checkResult{{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", dbPath, err),
		}}, nil
	} else if !info.Mode().IsRegular() {
		return []checkResult{{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("%s is not a regular file", dbPath),
		}}, nil
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return []checkResult{{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot open %s: %v", dbPath, err),
		}}, nil
	}

	results := []checkResult{{
		name:    "Database",
		message: dbPath,
	}}

	if err := db.CheckIntegrity(); err != nil {
		results = append(results, checkResult{
			name:    "Database integrity",
			error:   true,
			message: err.Error(),
		})
	} else {
		results = append(results, checkResult{name: "Database integrity", message: "ok"})
	}

	return results, db
}

// checkOrphanLaps finds laps whose driver or session is missing
func checkOrphanLaps(db *store.Store) checkResult {
	var count int
	err := db.DB().QueryRow(`
		SELECT COUNT(*) FROM laps l
		WHERE NOT EXISTS (SELECT 1 FROM drivers d WHERE d.driver_id = l.driver_id)
		   OR NOT EXISTS (SELECT 1 FROM sessions s WHERE s.session_id = l.session_id)
	`).Scan(&count)
	if err != nil {
		return checkResult{name: "Lap references", error: true, message: err.Error()}
	}
	if count > 0 {
		return checkResult{
			name:    "Lap references",
			warning: true,
			message: fmt.Sprintf("%d laps reference a missing driver or session", count),
		}
	}
	return checkResult{name: "Lap references", message: "all laps reference known drivers and sessions"}
}

// checkDanglingResults finds results for sessions that no longer exist
func checkDanglingResults(db *store.Store) checkResult {
	var count int
	err := db.DB().QueryRow(`
		SELECT COUNT(*) FROM results r
		WHERE NOT EXISTS (SELECT 1 FROM sessions s WHERE s.session_id = r.session_id)
	`).Scan(&count)
	if err != nil {
		return checkResult{name: "Result references", error: true, message: err.Error()}
	}
	if count > 0 {
		return checkResult{
			name:    "Result references",
			warning: true,
			message: fmt.Sprintf("%d results reference a missing session", count),
		}
	}
	return checkResult{name: "Result references", message: "all results reference known sessions"}
}

// checkRulesetCoverage warns about awarding seasons with no rules loaded
func checkRulesetCoverage(db *store.Store) checkResult {
	var count int
	err := db.DB().QueryRow(`
		SELECT COUNT(DISTINCT m.season)
		FROM sessions s
		JOIN meetings m ON m.meeting_id = s.meeting_id
		WHERE s.points_category != 'none'
		  AND NOT EXISTS (SELECT 1 FROM points_rules p WHERE p.season = m.season)
	`).Scan(&count)
	if err != nil {
		return checkResult{name: "Ruleset coverage", error: true, message: err.Error()}
	}
	if count > 0 {
		return checkResult{
			name:    "Ruleset coverage",
			warning: true,
			message: fmt.Sprintf("%d seasons have awarding sessions but no rules (pitwall rules load)", count),
		}
	}
	return checkResult{name: "Ruleset coverage", message: "every awarding season has rules"}
}

// checkArtifactsDir verifies the event log directory is writable
func checkArtifactsDir() checkResult {
	dir := viper.GetString("artifacts")
	if dir == "" {
		dir = "artifacts"
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return checkResult{
			name:    "Artifacts directory",
			error:   true,
			message: fmt.Sprintf("cannot create %s: %v", dir, err),
		}
	}

	probe := filepath.Join(dir, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		return checkResult{
			name:    "Artifacts directory",
			error:   true,
			message: fmt.Sprintf("cannot write to %s: %v", dir, err),
		}
	}
	os.Remove(probe)

	return checkResult{name: "Artifacts directory", message: dir}
}
