// Package validity derives per-lap flags from pit stops and race control
// messages.
package validity

import (
	"regexp"
	"strconv"
)

// Race control free text is the only carrier for lap and car references
// in many message categories, so extraction is kept in standalone
// functions rather than inlined into the derivation and scoring passes.
var (
	lapPattern = regexp.MustCompile(`(?i)LAP\s+(\d+)`)
	carPattern = regexp.MustCompile(`(?i)CAR\s+(\d+)`)
)

// ExtractLapNumber pulls the first "LAP <n>" reference out of a message.
// "DELETED LAP 15 FOR CAR 4" yields 15.
func ExtractLapNumber(message string) (int, bool) {
	return extractFirst(lapPattern, message)
}

// ExtractCarNumber pulls the first "CAR <n>" reference out of a message.
// "WAVED BLUE FLAG FOR CAR 11 (PER)" yields 11.
func ExtractCarNumber(message string) (int, bool) {
	return extractFirst(carPattern, message)
}

func extractFirst(pattern *regexp.Regexp, message string) (int, bool) {
	if message == "" {
		return 0, false
	}
	match := pattern.FindStringSubmatch(message)
	if match == nil {
		return 0, false
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
