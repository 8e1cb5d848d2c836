package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gavinmiller/pitwall/internal/conflict"
	"github.com/gavinmiller/pitwall/internal/identity"
	"github.com/gavinmiller/pitwall/internal/report"
	"github.com/gavinmiller/pitwall/internal/store"
	"github.com/gavinmiller/pitwall/internal/util"
)

// IngestDrivers upserts canonical drivers from raw entry lists. This is
// an identity-creating flow: a name with no alias hit gets a
// synthesized ID and a fresh driver row. Identity collisions abort the
// record and surface as warnings, never as quiet skips.
func (in *Ingestor) IngestDrivers(ctx context.Context) (*report.RunSummary, error) {
	util.InfoLog("Ingesting drivers")

	records, err := in.store.GetRawRecords(store.SourceDrivers, "")
	if err != nil {
		return nil, fmt.Errorf("failed to read raw drivers: %w", err)
	}

	resolver, err := identity.NewResolver(in.store)
	if err != nil {
		return nil, err
	}

	countryAliases, err := in.store.GetCountryAliasMap()
	if err != nil {
		return nil, err
	}

	summary := report.NewRunSummary()
	seen := make(map[string]bool)

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		summary.Processed++

		var raw rawDriver
		if err := decodePayload(record.Payload, &raw); err != nil {
			summary.Skip(skipMalformed)
			in.logger.LogSkip(store.SourceDrivers, record.SessionKey, err.Error())
			continue
		}

		if raw.FirstName == "" || raw.LastName == "" {
			summary.Skip(skipMissingRequired)
			continue
		}

		driverID, err := resolver.Resolve(raw.FirstName, raw.LastName)
		if err != nil {
			if errors.Is(err, util.ErrAmbiguousIdentity) {
				summary.Failed++
				in.logger.LogIdentityCollision(err.Error())
				continue
			}
			summary.Skip(skipMalformed)
			continue
		}

		// The same driver appears once per session in the raw feed
		if seen[driverID] {
			continue
		}
		seen[driverID] = true

		fullName := raw.FullName
		if fullName == "" {
			fullName = raw.FirstName + " " + raw.LastName
		}

		countryCode := raw.CountryCode
		if mapped, ok := countryAliases[countryCode]; ok {
			countryCode = mapped
		}

		isNew := !resolver.Known(driverID)
		driver := &store.Driver{
			DriverID:    driverID,
			FirstName:   raw.FirstName,
			LastName:    raw.LastName,
			FullName:    fullName,
			ShortCode:   raw.NameAcronym,
			CountryCode: countryCode,
		}
		if err := in.store.UpsertDriver(driver); err != nil {
			return nil, err
		}

		if isNew {
			resolver.AddKnown(driverID)
			summary.Inserted++
			// Seed the natural spelling so later records and runs
			// resolve by alias instead of re-synthesizing
			if err := in.store.UpsertDriverAlias(fullName, driverID); err != nil {
				return nil, err
			}
			resolver.AddAlias(fullName, driverID)
		} else {
			summary.Updated++
		}
	}

	summary.IdentityWarnings = resolver.Collisions()
	return summary, nil
}

// carNumberObservation is one raw sighting of a car number
type carNumberObservation struct {
	driverID string
	season   int
	number   int
	context  string
}

// IngestCarNumbers reconciles season car numbers from raw entry lists.
// This is an attribute-attachment flow: it only writes numbers for
// drivers that already exist, and conflicting observations for one
// (driver, season) collapse through the conflict resolver, so the
// one-number-per-driver-per-season invariant holds by construction.
func (in *Ingestor) IngestCarNumbers(ctx context.Context) (*report.RunSummary, error) {
	util.InfoLog("Ingesting season car numbers")

	records, err := in.store.GetRawRecords(store.SourceDrivers, "")
	if err != nil {
		return nil, fmt.Errorf("failed to read raw drivers: %w", err)
	}

	resolver, err := identity.NewResolver(in.store)
	if err != nil {
		return nil, err
	}

	sessions, err := in.store.GetSessionKeyMap()
	if err != nil {
		return nil, err
	}

	summary := report.NewRunSummary()
	groups := make(map[string][]carNumberObservation)

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		summary.Processed++

		var raw rawDriver
		if err := decodePayload(record.Payload, &raw); err != nil {
			summary.Skip(skipMalformed)
			continue
		}

		number, ok := parseInt(raw.DriverNumber)
		if !ok {
			summary.Skip(skipMalformed)
			in.logger.LogSkip(store.SourceDrivers, record.SessionKey, "bad driver number: "+raw.DriverNumber)
			continue
		}

		session, ok := sessions[record.SessionKey]
		if !ok || session.Season == 0 {
			summary.Skip(skipUnresolvedRef)
			in.logger.LogSkip(store.SourceDrivers, record.SessionKey, "unknown session")
			continue
		}

		driverID, ok := resolver.ResolveExisting(raw.FirstName, raw.LastName)
		if !ok {
			// Never fabricate a driver while attaching an attribute
			summary.Skip(skipUnresolvedRef)
			in.logger.LogSkip(store.SourceDrivers, record.SessionKey,
				fmt.Sprintf("driver %s %s not in canonical table", raw.FirstName, raw.LastName))
			continue
		}

		obs := carNumberObservation{
			driverID: driverID,
			season:   session.Season,
			number:   number,
			context:  normalizeSessionType(session.SessionType),
		}
		groupKey := fmt.Sprintf("%s|%d", driverID, session.Season)
		groups[groupKey] = append(groups[groupKey], obs)
	}

	// Deterministic apply order for stable logs
	groupKeys := make([]string, 0, len(groups))
	for key := range groups {
		groupKeys = append(groupKeys, key)
	}
	sort.Strings(groupKeys)

	for _, key := range groupKeys {
		group := groups[key]

		observations := make([]conflict.Observation, len(group))
		for i, obs := range group {
			observations[i] = conflict.Observation{Value: obs.number, Context: obs.context}
		}

		number, ok := conflict.Resolve(observations)
		if !ok {
			continue
		}

		if len(distinctNumbers(group)) > 1 {
			util.DebugLog("Car number conflict for %s: %d observations -> %d", key, len(group), number)
		}

		if err := in.store.UpsertSeasonCarNumber(&store.SeasonCarNumber{
			DriverID:  group[0].driverID,
			Season:    group[0].season,
			CarNumber: number,
		}); err != nil {
			return nil, err
		}
		summary.Inserted++
	}

	summary.IdentityWarnings = resolver.Collisions()
	return summary, nil
}

func distinctNumbers(group []carNumberObservation) []int {
	seen := make(map[int]bool)
	var numbers []int
	for _, obs := range group {
		if !seen[obs.number] {
			seen[obs.number] = true
			numbers = append(numbers, obs.number)
		}
	}
	return numbers
}

// ImportCountryAliases loads curated country code mappings from a
// CSV-style "alias,country_code" listing. Upstream feeds disagree on
// country codes, so the canonical code is whatever the curation says.
func (in *Ingestor) ImportCountryAliases(ctx context.Context, lines []string) (*report.RunSummary, error) {
	summary := report.NewRunSummary()
	for _, line := range lines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(strings.ToLower(line), "alias,") {
			continue
		}
		summary.Processed++

		parts := strings.SplitN(line, ",", 3)
		if len(parts) < 2 {
			summary.Skip(skipMalformed)
			continue
		}
		alias := strings.TrimSpace(parts[0])
		code := strings.TrimSpace(parts[1])
		if alias == "" || code == "" {
			summary.Skip(skipMalformed)
			continue
		}

		if err := in.store.UpsertCountryAlias(alias, code); err != nil {
			return nil, err
		}
		summary.Inserted++
	}

	return summary, nil
}

// ImportAliases loads curated alias rows from a CSV-style "alias,driver_id"
// listing, validating every target against the canonical driver table.
func (in *Ingestor) ImportAliases(ctx context.Context, lines []string) (*report.RunSummary, error) {
	known, err := in.store.GetDriverIDs()
	if err != nil {
		return nil, err
	}

	summary := report.NewRunSummary()
	for _, line := range lines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(strings.ToLower(line), "alias,") {
			continue
		}
		summary.Processed++

		parts := strings.SplitN(line, ",", 3)
		if len(parts) < 2 {
			summary.Skip(skipMalformed)
			continue
		}
		alias := strings.TrimSpace(parts[0])
		driverID := strings.TrimSpace(parts[1])
		if alias == "" || driverID == "" {
			summary.Skip(skipMalformed)
			continue
		}

		if !known[driverID] {
			summary.Skip(skipUnresolvedRef)
			in.logger.LogSkip("aliases", "", "driver "+driverID+" not in canonical table")
			continue
		}

		if err := in.store.UpsertDriverAlias(alias, driverID); err != nil {
			return nil, err
		}
		summary.Inserted++
	}

	return summary, nil
}
