// Package models defines the core domain models for the cap-table engine.
// It includes the Shareholder and Safe entities, the ShareClass and
// SafeStatus enumerations, and the snapshot payload carried by mutation
// events.
package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ShareClass labels the class of stock held by a shareholder.
// The set is open-ended: future rounds may introduce new classes as
// plain strings.
type ShareClass string

const (
	// Common is the class assigned to founders and the options pool.
	Common ShareClass = "COMMON"
	// SeedPreferred is the default class granted to converted SAFE investors.
	SeedPreferred ShareClass = "SEED_PREFERRED"
	// SeriesAPreferred is the default class granted to priced-round investors.
	SeriesAPreferred ShareClass = "SERIES_A_PREFERRED"
)

// Shareholder represents one equity holder's position on the cap table.
type Shareholder struct {
	// ID is the unique identifier for the position.
	ID uuid.UUID
	// Name identifies the holder. Assumed unique, not enforced.
	Name string
	// ShareClass is the class of stock held.
	ShareClass ShareClass
	// NumShares is the share quantity; may be fractional during
	// intermediate computation.
	NumShares decimal.Decimal
	// Percent is the holder's fraction of total shares outstanding.
	// Derived; the owning cap table recomputes it after every mutation.
	Percent decimal.Decimal
	// Price is the per-share price currently assigned to the position.
	Price decimal.Decimal
	// Value is NumShares times Price. Derived; see RecomputeValue.
	Value decimal.Decimal
	// IsFounder marks founding shareholders. Set at creation, immutable.
	IsFounder bool
}

// RecomputeValue refreshes the derived Value field after NumShares or
// Price changed. The owning cap table invokes it on every structural
// change so the derivation lives in one place.
func (s *Shareholder) RecomputeValue() {
	s.Value = s.NumShares.Mul(s.Price)
}

// Clone returns a deep copy of the position. Decimal fields are
// immutable values, so copying the struct is sufficient.
func (s *Shareholder) Clone() *Shareholder {
	cp := *s
	return &cp
}
