// Package controller implements the cap-table aggregate: founding
// allocation, SAFE recording, priced-round conversion, and the event
// wiring that reports every committed mutation.
package controller

import (
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"
	e "github.com/mkarpov/equity/internal/captable/errors"
	"github.com/mkarpov/equity/internal/captable/events"
	"github.com/mkarpov/equity/internal/captable/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OptionsPoolName is the reserved holder name for the employee options
// pool carved out of the total at founding.
const OptionsPoolName = "Options pool"

// EventProducer publishes cap-table mutation events.
type EventProducer interface {
	Produce(eventType events.EventType, snapshot *models.CapTableSnapshot)
}

// CapTable is the aggregate root for one company's equity: the ordered
// shareholder collection, the recorded SAFEs, and the operations that
// mutate them. A CapTable is owned by a single caller; all operations
// are synchronous, in-memory computations.
type CapTable struct {
	id           uuid.UUID
	shareholders []*models.Shareholder
	safes        []*models.Safe
	producer     EventProducer
	logger       *zap.Logger
}

// Option configures optional CapTable dependencies.
type Option func(*CapTable)

// WithLogger attaches a zap logger; the default logs nothing.
func WithLogger(logger *zap.Logger) Option {
	return func(c *CapTable) {
		c.logger = logger
	}
}

// WithProducer attaches an event producer notified after every
// committed mutation; the default publishes nothing.
func WithProducer(producer EventProducer) Option {
	return func(c *CapTable) {
		c.producer = producer
	}
}

// NewCapTable founds a company: one Common shareholder per founder plus
// an "Options pool" holder absorbing the unallocated remainder. Each
// equity fraction must lie in (0,1) and the fractions must sum below 1
// so the pool is non-empty; totalShares must be positive and
// pricePerShare non-negative (zero covers par-value founding shares).
// Founders are inserted in sorted-name order to keep the collection
// deterministic.
func NewCapTable(founders map[string]decimal.Decimal, totalShares int64, pricePerShare decimal.Decimal, opts ...Option) (*CapTable, error) {
	if len(founders) == 0 {
		return nil, fmt.Errorf("%w: no founders", e.ErrInvalidInput)
	}
	if totalShares <= 0 {
		return nil, fmt.Errorf("%w: total shares must be positive", e.ErrInvalidInput)
	}
	if pricePerShare.IsNegative() {
		return nil, fmt.Errorf("%w: negative price per share", e.ErrInvalidInput)
	}

	one := decimal.NewFromInt(1)
	names := slices.Sorted(maps.Keys(founders))
	fractionSum := decimal.Zero
	for _, name := range names {
		fraction := founders[name]
		if !fraction.IsPositive() || fraction.GreaterThanOrEqual(one) {
			return nil, fmt.Errorf("%w: fraction %s for founder %q must be in (0,1)",
				e.ErrInvalidEquityAllocation, fraction, name)
		}
		fractionSum = fractionSum.Add(fraction)
	}
	if fractionSum.GreaterThanOrEqual(one) {
		return nil, fmt.Errorf("%w: founder fractions sum to %s, leaving no room for the options pool",
			e.ErrInvalidEquityAllocation, fractionSum)
	}

	c := &CapTable{
		id:     uuid.New(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("captable")

	total := decimal.NewFromInt(totalShares)
	for _, name := range names {
		fraction := founders[name]
		holder := &models.Shareholder{
			ID:         uuid.New(),
			Name:       name,
			ShareClass: models.Common,
			NumShares:  total.Mul(fraction),
			Percent:    fraction,
			Price:      pricePerShare,
			IsFounder:  true,
		}
		holder.RecomputeValue()
		c.shareholders = append(c.shareholders, holder)
	}

	poolPercent := one.Sub(fractionSum).Round(percentScale)
	pool := &models.Shareholder{
		ID:         uuid.New(),
		Name:       OptionsPoolName,
		ShareClass: models.Common,
		NumShares:  total.Mul(poolPercent),
		Percent:    poolPercent,
		Price:      pricePerShare,
	}
	pool.RecomputeValue()
	c.shareholders = append(c.shareholders, pool)

	c.logger.Info("cap table initialized",
		zap.String("captable_id", c.id.String()),
		zap.Int("founders", len(names)),
		zap.String("pool_percent", poolPercent.String()),
		zap.String("total_shares", c.TotalShares().String()),
	)
	c.publish(events.CapTableInitialized)
	return c, nil
}

// AddSafes appends one pending SAFE per investor, in sorted-name order.
// Zero discount and valuation cap mean the respective term is absent;
// an empty share class defaults to Seed Preferred. Terms are recorded
// as-is: value validation is the caller's responsibility. The
// shareholder collection is not touched.
func (c *CapTable) AddSafes(investors map[string]models.SafeTerms) {
	if len(investors) == 0 {
		return
	}
	for _, name := range slices.Sorted(maps.Keys(investors)) {
		terms := investors[name]
		class := terms.FutureShareClass
		if class == "" {
			class = models.SeedPreferred
		}
		c.safes = append(c.safes, &models.Safe{
			ID:               uuid.New(),
			Name:             name,
			PaidAmount:       terms.PaidAmount,
			Discount:         terms.Discount,
			ValuationCap:     terms.ValuationCap,
			FutureShareClass: class,
			Status:           models.SafePending,
		})
	}
	c.logger.Info("safes recorded",
		zap.String("captable_id", c.id.String()),
		zap.Int("count", len(investors)),
	)
	c.publish(events.SafesRecorded)
}

// Shareholders returns the positions in collection order: founders
// first, then the options pool, then successive round conversions.
// Entries are deep copies; mutating them does not affect the cap table.
func (c *CapTable) Shareholders() []*models.Shareholder {
	return cloneShareholders(c.shareholders)
}

// Safes returns the recorded SAFEs in collection order, as deep copies.
func (c *CapTable) Safes() []*models.Safe {
	return cloneSafes(c.safes)
}

// TotalShares is the current number of shares outstanding: the sum of
// NumShares across all positions.
func (c *CapTable) TotalShares() decimal.Decimal {
	return sumShares(c.shareholders)
}

// ID returns the aggregate identifier.
func (c *CapTable) ID() uuid.UUID {
	return c.id
}

func (c *CapTable) snapshot() *models.CapTableSnapshot {
	return &models.CapTableSnapshot{
		TableID:      c.id,
		TotalShares:  c.TotalShares(),
		Shareholders: cloneShareholders(c.shareholders),
		Safes:        cloneSafes(c.safes),
	}
}

// publish snapshots the committed state synchronously and hands the
// copy to the producer on a separate goroutine, so a mutation right
// after the call cannot leak into the payload.
func (c *CapTable) publish(eventType events.EventType) {
	if c.producer == nil {
		return
	}
	snap := c.snapshot()
	go func() {
		c.producer.Produce(eventType, snap)
	}()
}

func cloneShareholders(shareholders []*models.Shareholder) []*models.Shareholder {
	out := make([]*models.Shareholder, len(shareholders))
	for i, s := range shareholders {
		out[i] = s.Clone()
	}
	return out
}

func cloneSafes(safes []*models.Safe) []*models.Safe {
	out := make([]*models.Safe, len(safes))
	for i, s := range safes {
		out[i] = s.Clone()
	}
	return out
}

func sumShares(shareholders []*models.Shareholder) decimal.Decimal {
	sum := decimal.Zero
	for _, s := range shareholders {
		sum = sum.Add(s.NumShares)
	}
	return sum
}
