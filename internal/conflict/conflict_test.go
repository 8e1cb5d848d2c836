package conflict

import (
	"math/rand"
	"testing"
)

func TestResolve(t *testing.T) {
	testCases := []struct {
		name         string
		observations []Observation
		expected     int
	}{
		{
			name:         "single observation",
			observations: []Observation{{44, "practice"}},
			expected:     44,
		},
		{
			name: "race outranks practice frequency",
			observations: []Observation{
				{44, "race"},
				{63, "practice"},
				{63, "practice"},
				{63, "practice"},
			},
			expected: 44,
		},
		{
			name: "frequency breaks same-weight tie",
			observations: []Observation{
				{44, "practice"},
				{44, "practice"},
				{63, "practice"},
			},
			expected: 44,
		},
		{
			name: "lowest value breaks full tie",
			observations: []Observation{
				{63, "practice"},
				{44, "practice"},
			},
			expected: 44,
		},
		{
			name: "qualifying and sprint qualifying weigh the same",
			observations: []Observation{
				{27, "qualifying"},
				{27, "sprint_qualifying"},
				{11, "sprint_qualifying"},
			},
			expected: 27,
		},
		{
			name: "unknown context weighs zero",
			observations: []Observation{
				{99, "shakedown"},
				{12, "practice"},
			},
			expected: 12,
		},
		{
			name: "sprint counts as practice weight",
			observations: []Observation{
				{5, "sprint"},
				{3, "practice"},
			},
			expected: 3,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			value, ok := Resolve(tc.observations)
			if !ok {
				t.Fatal("expected a resolved value")
			}
			if value != tc.expected {
				t.Errorf("expected %d, got %d", tc.expected, value)
			}
		})
	}
}

func TestResolveEmpty(t *testing.T) {
	if _, ok := Resolve(nil); ok {
		t.Error("expected no value for empty input")
	}
}

// Any permutation of the same observation set must resolve to the same
// value.
func TestResolveOrderIndependent(t *testing.T) {
	observations := []Observation{
		{44, "race"},
		{44, "practice"},
		{63, "practice"},
		{63, "qualifying"},
		{27, "sprint"},
		{44, "qualifying"},
	}

	want, ok := Resolve(observations)
	if !ok {
		t.Fatal("expected a resolved value")
	}
	if want != 44 {
		t.Fatalf("expected 44, got %d", want)
	}

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		shuffled := make([]Observation, len(observations))
		copy(shuffled, observations)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		got, ok := Resolve(shuffled)
		if !ok || got != want {
			t.Fatalf("permutation %d resolved to %d, want %d", i, got, want)
		}
	}
}
