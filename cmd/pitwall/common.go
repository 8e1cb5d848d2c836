package main

import (
	"github.com/gavinmiller/pitwall/internal/report"
	"github.com/gavinmiller/pitwall/internal/store"
	"github.com/gavinmiller/pitwall/internal/util"
	"github.com/spf13/viper"
)

// applyLogFlags configures console log verbosity from the global flags
func applyLogFlags() {
	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))
}

// openStore opens the dataset database named by configuration
func openStore() (*store.Store, error) {
	dbPath := viper.GetString("db")
	util.InfoLog("Opening database: %s", dbPath)
	return store.Open(dbPath)
}

// newEventLogger creates the JSONL event logger under the artifacts
// directory, degrading to a null logger if the directory is unusable.
func newEventLogger() *report.EventLogger {
	logLevel := report.LevelInfo
	if viper.GetBool("quiet") {
		logLevel = report.LevelWarning
	} else if viper.GetBool("verbose") {
		logLevel = report.LevelDebug
	}

	outputDir := viper.GetString("artifacts")
	if outputDir == "" {
		outputDir = "artifacts"
	}

	logger, err := report.NewEventLogger(outputDir, logLevel)
	if err != nil {
		util.WarnLog("Failed to create event logger: %v", err)
		return report.NullLogger()
	}

	if logger.Path() != "" {
		util.InfoLog("Event log: %s", logger.Path())
	}
	return logger
}
