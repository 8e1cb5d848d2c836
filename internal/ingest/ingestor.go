package ingest

import (
	"strings"

	"github.com/gavinmiller/pitwall/internal/report"
	"github.com/gavinmiller/pitwall/internal/store"
)

// Skip reasons reported in run summaries
const (
	skipMalformed       = "malformed value"
	skipUnresolvedRef   = "unresolved reference"
	skipMissingRequired = "missing required field"
)

// Ingestor reconciles raw records into the canonical stratum. Each
// method runs one source to completion over its scope and returns a
// RunSummary; no state is shared between calls.
type Ingestor struct {
	store       *store.Store
	logger      *report.EventLogger
	concurrency int
}

// Config holds ingestor configuration
type Config struct {
	Store       *store.Store
	Logger      *report.EventLogger
	Concurrency int // partition workers for source-level mode
}

// New creates a new Ingestor
func New(cfg *Config) *Ingestor {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Ingestor{
		store:       cfg.Store,
		logger:      cfg.Logger,
		concurrency: cfg.Concurrency,
	}
}

// deriveSessionType maps an upstream session name to the canonical type.
// Unknown names yield an empty string.
func deriveSessionType(sessionName string) string {
	name := strings.ToLower(strings.TrimSpace(sessionName))
	switch {
	case name == "":
		return ""
	case strings.Contains(name, "sprint") && strings.Contains(name, "qualifying"),
		strings.Contains(name, "sprint") && strings.Contains(name, "shootout"):
		return store.SessionSprintQualifying
	case strings.Contains(name, "sprint"):
		return store.SessionSprint
	case strings.Contains(name, "qualifying"):
		return store.SessionQualifying
	case strings.Contains(name, "practice"):
		return store.SessionPractice
	case strings.Contains(name, "race"):
		return store.SessionRace
	}
	return ""
}

// derivePointsCategory maps a session type to its points category
func derivePointsCategory(sessionType string) string {
	switch sessionType {
	case store.SessionRace:
		return store.PointsRace
	case store.SessionSprint:
		return store.PointsSprint
	default:
		return store.PointsNone
	}
}

// normalizeSessionType maps the canonical session type to the context
// label the conflict resolver weighs.
func normalizeSessionType(sessionType string) string {
	switch sessionType {
	case store.SessionRace:
		return "race"
	case store.SessionQualifying:
		return "qualifying"
	case store.SessionSprintQualifying:
		return "sprint_qualifying"
	case store.SessionSprint:
		return "sprint"
	default:
		return "practice"
	}
}

// sanitizeIDPart lower-cases and hyphenates a fragment for use in a
// synthesized session ID.
func sanitizeIDPart(part string) string {
	part = strings.ToLower(strings.TrimSpace(part))
	part = strings.ReplaceAll(part, " ", "-")
	part = strings.ReplaceAll(part, "/", "-")

	var b strings.Builder
	for _, c := range part {
		if c == '-' || c == '_' || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
		}
	}
	return b.String()
}
