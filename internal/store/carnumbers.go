package store

import (
	"fmt"
)

// SeasonCarNumber represents one driver's car number within one season
type SeasonCarNumber struct {
	DriverID  string
	Season    int
	CarNumber int
}

// CarNumberKey identifies a car number observation across a season
type CarNumberKey struct {
	Season    int
	CarNumber int
}

// UpsertSeasonCarNumber inserts or replaces the car number for (driver, season)
func (s *Store) UpsertSeasonCarNumber(n *SeasonCarNumber) error {
	_, err := s.db.Exec(`
		INSERT INTO season_car_numbers (driver_id, season, car_number)
		VALUES (?, ?, ?)
		ON CONFLICT(driver_id, season) DO UPDATE SET
			car_number = excluded.car_number
	`, n.DriverID, n.Season, n.CarNumber)

	if err != nil {
		return fmt.Errorf("failed to upsert season car number: %w", err)
	}

	return nil
}

// GetCarNumberDriverMap returns the (season, car_number) -> driver_id lookup
// used to resolve driver references in lap, pit stop and result records.
func (s *Store) GetCarNumberDriverMap() (map[CarNumberKey]string, error) {
	rows, err := s.db.Query("SELECT season, car_number, driver_id FROM season_car_numbers")
	if err != nil {
		return nil, fmt.Errorf("failed to query season car numbers: %w", err)
	}
	defer rows.Close()

	lookup := make(map[CarNumberKey]string)
	for rows.Next() {
		var key CarNumberKey
		var driverID string
		if err := rows.Scan(&key.Season, &key.CarNumber, &driverID); err != nil {
			return nil, fmt.Errorf("failed to scan season car number: %w", err)
		}
		lookup[key] = driverID
	}

	return lookup, rows.Err()
}

// GetSeasonCarNumbers returns all car number rows for a season, keyed by driver
func (s *Store) GetSeasonCarNumbers(season int) (map[string]int, error) {
	rows, err := s.db.Query(
		"SELECT driver_id, car_number FROM season_car_numbers WHERE season = ?", season)
	if err != nil {
		return nil, fmt.Errorf("failed to query season car numbers: %w", err)
	}
	defer rows.Close()

	numbers := make(map[string]int)
	for rows.Next() {
		var driverID string
		var carNumber int
		if err := rows.Scan(&driverID, &carNumber); err != nil {
			return nil, fmt.Errorf("failed to scan season car number: %w", err)
		}
		numbers[driverID] = carNumber
	}

	return numbers, rows.Err()
}
