// Package ingest reconciles raw feed records into the canonical store.
package ingest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gavinmiller/pitwall/internal/util"
)

// Raw payloads keep every upstream value as text, exactly as the
// fetcher received it. All typing happens here so a bad field becomes a
// counted malformed-value skip instead of a crash.

type rawMeeting struct {
	MeetingKey       string `json:"meeting_key"`
	Season           string `json:"season"`
	CircuitShortName string `json:"circuit_short_name"`
	CircuitName      string `json:"circuit_name"`
}

type rawSession struct {
	SessionKey    string `json:"session_key"`
	MeetingKey    string `json:"meeting_key"`
	SessionName   string `json:"session_name"`
	ScheduledLaps string `json:"scheduled_laps"`
	DateStart     string `json:"date_start"`
	DateEnd       string `json:"date_end"`
}

type rawDriver struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	FullName     string `json:"full_name"`
	NameAcronym  string `json:"name_acronym"`
	CountryCode  string `json:"country_code"`
	DriverNumber string `json:"driver_number"`
}

type rawLap struct {
	DriverNumber string `json:"driver_number"`
	LapNumber    string `json:"lap_number"`
	DateStart    string `json:"date_start"`
	LapDurationS string `json:"lap_duration_s"`
	IsPitOutLap  string `json:"is_pit_out_lap"`
}

type rawPitStop struct {
	DriverNumber string `json:"driver_number"`
	LapNumber    string `json:"lap_number"`
	PitDurationS string `json:"pit_duration_s"`
}

type rawRaceControl struct {
	Date         string `json:"date"`
	Category     string `json:"category"`
	Flag         string `json:"flag"`
	Scope        string `json:"scope"`
	Message      string `json:"message"`
	DriverNumber string `json:"driver_number"`
}

type rawResult struct {
	DriverNumber  string `json:"driver_number"`
	Position      string `json:"position"`
	DNF           string `json:"dnf"`
	DNS           string `json:"dns"`
	DSQ           string `json:"dsq"`
	LapsCompleted string `json:"laps_completed"`
	FastestLap    string `json:"fastest_lap"`
}

func decodePayload(payload string, v interface{}) error {
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return fmt.Errorf("%w: %v", util.ErrMalformed, err)
	}
	return nil
}

// parseInt parses an integer field, tolerating "5.0" style floats
func parseInt(value string) (int, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return int(f), true
	}
	return 0, false
}

// parseBool parses the truthy spellings the feed uses
func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "t", "1", "yes", "y":
		return true
	}
	return false
}

// parseSecondsToMS converts a fractional seconds field to milliseconds
func parseSecondsToMS(value string) (int64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return int64(f * 1000), true
}

// parseTimestamp validates an ISO 8601 timestamp, normalizing a
// trailing Z to an explicit offset.
func parseTimestamp(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	normalized := strings.Replace(value, "Z", "+00:00", 1)
	for _, layout := range []string{
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02T15:04:05-07:00",
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		if _, err := time.Parse(layout, normalized); err == nil {
			return normalized, true
		}
	}
	return "", false
}
