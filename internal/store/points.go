package store

import (
	"database/sql"
	"fmt"
)

// PointsRule is one row of the declarative scoring table.
// Position is 0 for bonus rules; Bonus is empty for position rules.
type PointsRule struct {
	Season         int
	RaceCategory   string
	CompletionBand string
	Position       int
	Bonus          string
	Points         float64
}

// RuleKey identifies one rule for lookup during scoring
type RuleKey struct {
	Season         int
	RaceCategory   string
	CompletionBand string
	Position       int
	Bonus          string
}

// ReplacePointsRules swaps in a fresh ruleset for the seasons covered by
// the given rules. Seasons not mentioned are left alone.
func (s *Store) ReplacePointsRules(rules []*PointsRule) error {
	if len(rules) == 0 {
		return nil
	}

	seasons := make(map[int]bool)
	for _, r := range rules {
		seasons[r.Season] = true
	}

	return s.Transaction(func(tx *sql.Tx) error {
		for season := range seasons {
			if _, err := tx.Exec("DELETE FROM points_rules WHERE season = ?", season); err != nil {
				return fmt.Errorf("failed to clear points rules: %w", err)
			}
		}

		stmt, err := tx.Prepare(`
			INSERT INTO points_rules (season, race_category, completion_band, position, bonus, points)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare rule insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range rules {
			var position, bonus interface{}
			if r.Position > 0 {
				position = r.Position
			}
			if r.Bonus != "" {
				bonus = r.Bonus
			}
			if _, err := stmt.Exec(r.Season, r.RaceCategory, r.CompletionBand,
				position, bonus, r.Points); err != nil {
				return fmt.Errorf("failed to insert points rule: %w", err)
			}
		}
		return nil
	})
}

// GetPointsRuleMap loads the full ruleset into a lookup map
func (s *Store) GetPointsRuleMap() (map[RuleKey]float64, error) {
	rows, err := s.db.Query(`
		SELECT season, race_category, completion_band,
		       COALESCE(position, 0), COALESCE(bonus, ''), points
		FROM points_rules
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query points rules: %w", err)
	}
	defer rows.Close()

	rules := make(map[RuleKey]float64)
	for rows.Next() {
		var key RuleKey
		var points float64
		if err := rows.Scan(&key.Season, &key.RaceCategory, &key.CompletionBand,
			&key.Position, &key.Bonus, &points); err != nil {
			return nil, fmt.Errorf("failed to scan points rule: %w", err)
		}
		rules[key] = points
	}

	return rules, rows.Err()
}
