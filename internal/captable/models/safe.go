package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SafeStatus tracks whether a SAFE is still awaiting conversion.
type SafeStatus string

const (
	// SafePending marks a SAFE that has not been through a priced round yet.
	SafePending SafeStatus = "PENDING"
	// SafeConverted marks a SAFE already exchanged for equity; converted
	// SAFEs are skipped by subsequent rounds.
	SafeConverted SafeStatus = "CONVERTED"
)

// SafeTerms carries the caller-supplied terms for one SAFE investment.
// Zero discount and valuation cap mean the respective term is absent;
// an empty share class defaults to SeedPreferred.
type SafeTerms struct {
	PaidAmount       decimal.Decimal
	Discount         decimal.Decimal
	ValuationCap     decimal.Decimal
	FutureShareClass ShareClass
}

// Safe represents a recorded Simple Agreement for Future Equity: an
// investment that converts into shares during a later priced round.
// Terms are immutable once recorded; only Status changes, and only when
// a priced round consumes the SAFE.
type Safe struct {
	// ID is the unique identifier for the record.
	ID uuid.UUID
	// Name identifies the investor.
	Name string
	// PaidAmount is the invested amount, recorded as-is; value
	// validation is the caller's responsibility.
	PaidAmount decimal.Decimal
	// Discount is the conversion price discount in [0,1); zero means none.
	Discount decimal.Decimal
	// ValuationCap caps the valuation used to derive the conversion
	// price; zero means no cap.
	ValuationCap decimal.Decimal
	// FutureShareClass is the class assigned on conversion.
	FutureShareClass ShareClass
	// Status is SafePending until a priced round converts the SAFE.
	Status SafeStatus
}

// Clone returns a deep copy of the SAFE record.
func (s *Safe) Clone() *Safe {
	cp := *s
	return &cp
}
