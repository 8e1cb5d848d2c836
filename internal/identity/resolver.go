// Package identity maps raw driver names to stable canonical driver IDs.
package identity

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/gavinmiller/pitwall/internal/store"
	"github.com/gavinmiller/pitwall/internal/util"
)

// Resolver resolves driver names against the curated alias table, falling
// back to a deterministic synthesized ID.
type Resolver struct {
	aliases map[string]string // lower-cased alias -> driver_id
	known   map[string]bool   // canonical driver ids

	// synthesized ID -> the name that produced it first; a second,
	// different name landing on the same ID is an identity collision
	synthesized map[string]string
	collisions  []string
}

// NewResolver loads the alias table and the canonical driver set
func NewResolver(s *store.Store) (*Resolver, error) {
	aliasMap, err := s.GetDriverAliasMap()
	if err != nil {
		return nil, fmt.Errorf("failed to load driver aliases: %w", err)
	}

	aliases := make(map[string]string, len(aliasMap))
	for alias, driverID := range aliasMap {
		aliases[strings.ToLower(strings.TrimSpace(alias))] = driverID
	}

	known, err := s.GetDriverIDs()
	if err != nil {
		return nil, fmt.Errorf("failed to load driver ids: %w", err)
	}

	return &Resolver{
		aliases:     aliases,
		known:       known,
		synthesized: make(map[string]string),
	}, nil
}

// Resolve returns the canonical driver ID for a name. Alias hits win; a
// miss synthesizes a deterministic ID from the sanitized name. Source
// feeds flip name order, so both "First Last" and "Last First" are
// tried against the alias table.
func (r *Resolver) Resolve(firstName, lastName string) (string, error) {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	if firstName == "" || lastName == "" {
		return "", fmt.Errorf("%w: empty driver name", util.ErrMalformed)
	}

	candidates := []string{
		strings.ToLower(firstName + " " + lastName),
		strings.ToLower(lastName + " " + firstName),
	}
	for _, candidate := range candidates {
		if driverID, ok := r.aliases[candidate]; ok {
			return driverID, nil
		}
	}

	driverID := GenerateID(firstName, lastName)
	fullName := firstName + " " + lastName

	if prev, ok := r.synthesized[driverID]; ok && !strings.EqualFold(prev, fullName) {
		msg := fmt.Sprintf("%q and %q both generate %s; add a curated alias", prev, fullName, driverID)
		r.collisions = append(r.collisions, msg)
		util.WarnLog("Identity collision: %s", msg)
		return "", fmt.Errorf("%w: %s", util.ErrAmbiguousIdentity, msg)
	}
	r.synthesized[driverID] = fullName

	return driverID, nil
}

// ResolveExisting resolves a name and additionally requires the result to
// be present in the canonical driver table. Attribute-attachment flows
// use this so a typo can never fabricate a driver.
func (r *Resolver) ResolveExisting(firstName, lastName string) (string, bool) {
	driverID, err := r.Resolve(firstName, lastName)
	if err != nil {
		return "", false
	}
	if !r.known[driverID] {
		return driverID, false
	}
	return driverID, true
}

// AddAlias records an alias written during this run so later records
// resolve against it without a reload.
func (r *Resolver) AddAlias(alias, driverID string) {
	r.aliases[strings.ToLower(strings.TrimSpace(alias))] = driverID
}

// Known reports whether a driver ID exists in the canonical table
func (r *Resolver) Known(driverID string) bool {
	return r.known[driverID]
}

// AddKnown records a freshly upserted driver so later records in the
// same run resolve against it.
func (r *Resolver) AddKnown(driverID string) {
	r.known[driverID] = true
}

// Collisions returns the identity collisions seen during this run.
// These are surfaced separately from ordinary skip counts.
func (r *Resolver) Collisions() []string {
	return r.collisions
}

// GenerateID synthesizes a deterministic driver ID of the form
// drv:first-last. Lower-cased; whitespace and slashes become hyphens;
// any other non-alphanumeric character is stripped.
func GenerateID(firstName, lastName string) string {
	return "drv:" + sanitize(firstName) + "-" + sanitize(lastName)
}

func sanitize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))

	var b strings.Builder
	for _, c := range name {
		switch {
		case c == ' ' || c == '/' || c == '\\':
			b.WriteByte('-')
		case c == '-' || unicode.IsLetter(c) || unicode.IsDigit(c):
			b.WriteRune(c)
		}
	}
	return b.String()
}
