package validity

import "testing"

func TestExtractLapNumber(t *testing.T) {
	testCases := []struct {
		name     string
		message  string
		expected int
		ok       bool
	}{
		{"deleted lap message", "CAR 4 (NOR) TIME 1:23.456 DELETED - LAP 15 TRACK LIMITS", 15, true},
		{"lap first", "DELETED LAP 15 FOR CAR 4", 15, true},
		{"lowercase", "deleted lap 7 for track limits", 7, true},
		{"first reference wins", "LAP 3 AND LAP 9 UNDER INVESTIGATION", 3, true},
		{"no lap reference", "YELLOW FLAG IN SECTOR 2", 0, false},
		{"lap without number", "FASTEST LAP BY VERSTAPPEN", 0, false},
		{"empty message", "", 0, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractLapNumber(tc.message)
			if ok != tc.ok || got != tc.expected {
				t.Errorf("expected (%d, %t), got (%d, %t)", tc.expected, tc.ok, got, ok)
			}
		})
	}
}

func TestExtractCarNumber(t *testing.T) {
	testCases := []struct {
		name     string
		message  string
		expected int
		ok       bool
	}{
		{"blue flag", "WAVED BLUE FLAG FOR CAR 11 (PER)", 11, true},
		{"deleted lap names car", "CAR 4 (NOR) TIME DELETED - LAP 15", 4, true},
		{"lowercase", "car 44 noted for weaving", 44, true},
		{"no car reference", "SAFETY CAR DEPLOYED", 0, false},
		{"empty message", "", 0, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractCarNumber(tc.message)
			if ok != tc.ok || got != tc.expected {
				t.Errorf("expected (%d, %t), got (%d, %t)", tc.expected, tc.ok, got, ok)
			}
		})
	}
}
