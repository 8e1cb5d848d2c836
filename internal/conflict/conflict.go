// Package conflict picks one value when the same canonical attribute was
// observed with different values across heterogeneous sessions.
package conflict

// Observation is one sighting of a candidate value together with the
// session type it was seen in.
type Observation struct {
	Value   int
	Context string
}

// Context weights: a race entry list outranks qualifying, which outranks
// practice and sprint sessions.
var contextWeight = map[string]int{
	"race":              3,
	"qualifying":        2,
	"sprint_qualifying": 2,
	"practice":          1,
	"sprint":            1,
}

// stage narrows a set of observations; each stage only sees the
// survivors of the previous one.
type stage func([]Observation) []Observation

var stages = []stage{
	keepMaxWeight,
	keepMostFrequent,
}

// Resolve returns exactly one value for a set of observations of the
// same attribute. The result does not depend on input order: surviving
// ties after the weight and frequency stages fall through to the lowest
// value. Returns false only for an empty input.
func Resolve(observations []Observation) (int, bool) {
	if len(observations) == 0 {
		return 0, false
	}

	survivors := observations
	for _, s := range stages {
		survivors = s(survivors)
		if len(survivors) == 1 {
			return survivors[0].Value, true
		}
	}

	return lowestValue(survivors), true
}

// keepMaxWeight keeps only observations from the highest-priority
// context present. Unknown contexts weigh 0.
func keepMaxWeight(observations []Observation) []Observation {
	maxWeight := 0
	for _, o := range observations {
		if w := contextWeight[o.Context]; w > maxWeight {
			maxWeight = w
		}
	}

	var survivors []Observation
	for _, o := range observations {
		if contextWeight[o.Context] == maxWeight {
			survivors = append(survivors, o)
		}
	}
	return survivors
}

// keepMostFrequent keeps only the value(s) observed most often
func keepMostFrequent(observations []Observation) []Observation {
	counts := make(map[int]int)
	for _, o := range observations {
		counts[o.Value]++
	}

	maxCount := 0
	for _, c := range counts {
		if c > maxCount {
			maxCount = c
		}
	}

	// One representative per surviving value is enough from here on
	var survivors []Observation
	seen := make(map[int]bool)
	for _, o := range observations {
		if counts[o.Value] == maxCount && !seen[o.Value] {
			survivors = append(survivors, o)
			seen[o.Value] = true
		}
	}
	return survivors
}

func lowestValue(observations []Observation) int {
	lowest := observations[0].Value
	for _, o := range observations[1:] {
		if o.Value < lowest {
			lowest = o.Value
		}
	}
	return lowest
}
