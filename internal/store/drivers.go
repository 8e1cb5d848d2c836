package store

import (
	"database/sql"
	"fmt"
)

// Driver represents a canonical driver identity
type Driver struct {
	DriverID    string
	FirstName   string
	LastName    string
	FullName    string
	ShortCode   string
	CountryCode string
}

// UpsertDriver inserts or updates a canonical driver row
func (s *Store) UpsertDriver(d *Driver) error {
	_, err := s.db.Exec(`
		INSERT INTO drivers (driver_id, first_name, last_name, full_name, short_code, country_code)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(driver_id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			full_name = excluded.full_name,
			short_code = excluded.short_code,
			country_code = excluded.country_code
		`, d.DriverID, d.FirstName, d.LastName, d.FullName, d.ShortCode, d.CountryCode)

	if err != nil {
		return fmt.Errorf("failed to upsert driver: %w", err)
	}

	return nil
}

// GetDriver retrieves a driver by ID, or nil if absent
func (s *Store) GetDriver(driverID string) (*Driver, error) {
	d := &Driver{}
	err := s.db.QueryRow(`
		SELECT driver_id, COALESCE(first_name, ''), COALESCE(last_name, ''),
		       COALESCE(full_name, ''), COALESCE(short_code, ''), COALESCE(country_code, '')
		FROM drivers WHERE driver_id = ?
	`, driverID).Scan(
		&d.DriverID, &d.FirstName, &d.LastName,
		&d.FullName, &d.ShortCode, &d.CountryCode,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get driver: %w", err)
	}

	return d, nil
}

// GetDriverIDs returns the set of canonical driver IDs
func (s *Store) GetDriverIDs() (map[string]bool, error) {
	rows, err := s.db.Query("SELECT driver_id FROM drivers")
	if err != nil {
		return nil, fmt.Errorf("failed to query driver ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan driver id: %w", err)
		}
		ids[id] = true
	}

	return ids, rows.Err()
}

// GetDriverAliasMap returns the full alias -> driver_id mapping
func (s *Store) GetDriverAliasMap() (map[string]string, error) {
	rows, err := s.db.Query("SELECT alias, driver_id FROM driver_alias")
	if err != nil {
		return nil, fmt.Errorf("failed to query driver aliases: %w", err)
	}
	defer rows.Close()

	aliases := make(map[string]string)
	for rows.Next() {
		var alias, driverID string
		if err := rows.Scan(&alias, &driverID); err != nil {
			return nil, fmt.Errorf("failed to scan driver alias: %w", err)
		}
		aliases[alias] = driverID
	}

	return aliases, rows.Err()
}

// UpsertDriverAlias inserts or repoints an alias
func (s *Store) UpsertDriverAlias(alias, driverID string) error {
	_, err := s.db.Exec(`
		INSERT INTO driver_alias (alias, driver_id)
		VALUES (?, ?)
		ON CONFLICT(alias) DO UPDATE SET driver_id = excluded.driver_id
	`, alias, driverID)

	if err != nil {
		return fmt.Errorf("failed to upsert driver alias: %w", err)
	}

	return nil
}

// GetCountryAliasMap returns the alias -> country_code mapping
func (s *Store) GetCountryAliasMap() (map[string]string, error) {
	rows, err := s.db.Query("SELECT alias, country_code FROM country_alias")
	if err != nil {
		return nil, fmt.Errorf("failed to query country aliases: %w", err)
	}
	defer rows.Close()

	aliases := make(map[string]string)
	for rows.Next() {
		var alias, code string
		if err := rows.Scan(&alias, &code); err != nil {
			return nil, fmt.Errorf("failed to scan country alias: %w", err)
		}
		aliases[alias] = code
	}

	return aliases, rows.Err()
}

// UpsertCountryAlias inserts or repoints a country code alias
func (s *Store) UpsertCountryAlias(alias, countryCode string) error {
	_, err := s.db.Exec(`
		INSERT INTO country_alias (alias, country_code)
		VALUES (?, ?)
		ON CONFLICT(alias) DO UPDATE SET country_code = excluded.country_code
	`, alias, countryCode)

	if err != nil {
		return fmt.Errorf("failed to upsert country alias: %w", err)
	}

	return nil
}
