package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CapTableSnapshot is a deep-copied view of one cap table taken right
// after a mutation committed. It is the payload of mutation events and
// never aliases live aggregate state.
type CapTableSnapshot struct {
	// TableID identifies the cap table the snapshot was taken from.
	TableID uuid.UUID
	// TotalShares is the shares outstanding at snapshot time.
	TotalShares decimal.Decimal
	// Shareholders holds cloned positions in collection order.
	Shareholders []*Shareholder
	// Safes holds cloned SAFE records in collection order.
	Safes []*Safe
}
