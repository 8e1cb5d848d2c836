// Package points assigns championship points to session results under a
// declarative ruleset.
package points

import (
	"fmt"
	"os"

	"github.com/gavinmiller/pitwall/internal/store"
	"github.com/gavinmiller/pitwall/internal/util"
	"gopkg.in/yaml.v3"
)

// Completion bands: the fraction of the scheduled distance actually run
// selects a reduced points scale.
const (
	BandFull         = "full"
	BandThreeQuarter = "three_quarter"
	BandHalf         = "half"
	BandMinimal      = "minimal"
)

// BonusFastestLap is the only bonus kind currently in use
const BonusFastestLap = "fastest_lap"

// ruleFile is the YAML shape of a ruleset file
type ruleFile struct {
	Rules []ruleEntry `yaml:"rules"`
}

type ruleEntry struct {
	Season         int     `yaml:"season"`
	RaceCategory   string  `yaml:"race_category"`
	CompletionBand string  `yaml:"completion_band"`
	Position       int     `yaml:"position,omitempty"`
	Bonus          string  `yaml:"bonus,omitempty"`
	Points         float64 `yaml:"points"`
}

var validBands = map[string]bool{
	BandFull:         true,
	BandThreeQuarter: true,
	BandHalf:         true,
	BandMinimal:      true,
}

var validCategories = map[string]bool{
	store.PointsRace:   true,
	store.PointsSprint: true,
}

// LoadRuleFile parses a YAML ruleset file into points rules
func LoadRuleFile(path string) ([]*store.PointsRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ruleset: %w", err)
	}

	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse ruleset: %w", err)
	}

	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("%w: ruleset contains no rules", util.ErrInvalidConfig)
	}

	rules := make([]*store.PointsRule, 0, len(file.Rules))
	for i, entry := range file.Rules {
		if err := validateRule(&entry); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i+1, err)
		}
		rules = append(rules, &store.PointsRule{
			Season:         entry.Season,
			RaceCategory:   entry.RaceCategory,
			CompletionBand: entry.CompletionBand,
			Position:       entry.Position,
			Bonus:          entry.Bonus,
			Points:         entry.Points,
		})
	}

	return rules, nil
}

func validateRule(entry *ruleEntry) error {
	if entry.Season == 0 {
		return fmt.Errorf("%w: missing season", util.ErrInvalidConfig)
	}
	if !validCategories[entry.RaceCategory] {
		return fmt.Errorf("%w: unknown race_category %q", util.ErrInvalidConfig, entry.RaceCategory)
	}
	if !validBands[entry.CompletionBand] {
		return fmt.Errorf("%w: unknown completion_band %q", util.ErrInvalidConfig, entry.CompletionBand)
	}
	if entry.Position == 0 && entry.Bonus == "" {
		return fmt.Errorf("%w: rule needs a position or a bonus kind", util.ErrInvalidConfig)
	}
	if entry.Position != 0 && entry.Bonus != "" {
		return fmt.Errorf("%w: rule cannot have both position and bonus", util.ErrInvalidConfig)
	}
	return nil
}
