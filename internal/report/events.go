package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventResolve  EventType = "resolve"
	EventIngest   EventType = "ingest"
	EventDerive   EventType = "derive"
	EventScore    EventType = "score"
	EventSkip     EventType = "skip"
	EventIdentity EventType = "identity"
	EventError    EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// levelPriority maps event levels to numeric priorities for comparison
var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// Event represents a single event in the pipeline
type Event struct {
	Timestamp time.Time         `json:"ts"`
	RunID     string            `json:"run_id,omitempty"`
	Level     EventLevel        `json:"level"`
	Event     EventType         `json:"event"`
	Source    string            `json:"source,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	DriverID  string            `json:"driver_id,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	Count     int               `json:"count,omitempty"`
	Error     string            `json:"error,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// EventLogger writes events to a JSONL file
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	runID    string
	minLevel EventLevel
}

// NewEventLogger creates a new event logger with a minimum log level.
// Each logger carries a fresh run ID so one run's events can be pulled
// out of the artifact directory later.
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("events-%s.jsonl", timestamp)
	path := filepath.Join(outputDir, filename)

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		runID:    uuid.NewString(),
		minLevel: minLevel,
	}, nil
}

// LogEvent writes an event to the JSONL file
func (l *EventLogger) LogEvent(event *Event) error {
	if l == nil || l.file == nil {
		return nil // Silently ignore if logger not initialized
	}

	// Filter by minimum level
	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.RunID == "" {
		event.RunID = l.runID
	}

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return nil
}

// LogSkip logs a skipped record with its reason
func (l *EventLogger) LogSkip(source, sessionID, reason string) error {
	return l.LogEvent(&Event{
		Level:     LevelDebug,
		Event:     EventSkip,
		Source:    source,
		SessionID: sessionID,
		Reason:    reason,
	})
}

// LogIdentityCollision logs an ambiguous-identity warning. These are
// kept apart from ordinary skips: they risk silent data corruption and
// need a curated alias entry to fix.
func (l *EventLogger) LogIdentityCollision(detail string) error {
	return l.LogEvent(&Event{
		Level:  LevelWarning,
		Event:  EventIdentity,
		Reason: detail,
	})
}

// LogError logs an error event
func (l *EventLogger) LogError(event EventType, source string, err error) error {
	return l.LogEvent(&Event{
		Level:  LevelError,
		Event:  event,
		Source: source,
		Error:  err.Error(),
	})
}

// RunID returns the identifier attached to this run's events
func (l *EventLogger) RunID() string {
	if l == nil {
		return ""
	}
	return l.runID
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}
