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

// Rounding policy: prices and share counts carry two decimal places,
// ownership fractions four.
const (
	priceScale   = 2
	shareScale   = 2
	percentScale = 4
)

type roundConfig struct {
	investorClass models.ShareClass
}

// RoundOption configures a single priced round.
type RoundOption func(*roundConfig)

// WithShareClass overrides the share class granted to the round's new
// investors; the default is Series A Preferred.
func WithShareClass(class models.ShareClass) RoundOption {
	return func(cfg *roundConfig) {
		cfg.investorClass = class
	}
}

// AddPricedRound closes a priced round: every pending SAFE converts at
// its most favorable price, each new investor buys in at the base
// price, and all positions are repriced so percents and values reflect
// the post-money totals. Returns the post-money valuation.
//
// The round is all-or-nothing: it is computed on deep copies of the
// collections and swapped in only on success, so a validation failure
// never leaves partial mutation behind. SAFEs consumed by the round are
// marked converted and skipped by subsequent rounds.
func (c *CapTable) AddPricedRound(investors map[string]decimal.Decimal, preMoneyValuation decimal.Decimal, opts ...RoundOption) (decimal.Decimal, error) {
	res, err := c.runPricedRound(investors, preMoneyValuation, opts...)
	if err != nil {
		return decimal.Decimal{}, err
	}
	c.shareholders = res.shareholders
	c.safes = res.safes

	c.logger.Info("priced round closed",
		zap.String("captable_id", c.id.String()),
		zap.String("base_price", res.basePrice.String()),
		zap.Int("safes_converted", res.safesConverted),
		zap.Int("new_investors", len(investors)),
		zap.String("post_money_valuation", res.postMoney.String()),
	)
	c.publish(events.PricedRoundClosed)
	return res.postMoney, nil
}

// IsPricedRoundFounderFriendly evaluates a prospective round without
// committing it: the conversion runs against deep copies and the live
// collections stay untouched. Returns true when the founders' combined
// post-round percent exceeds that of the preferred (non-Common)
// holders.
func (c *CapTable) IsPricedRoundFounderFriendly(investors map[string]decimal.Decimal, preMoneyValuation decimal.Decimal, opts ...RoundOption) (bool, error) {
	res, err := c.runPricedRound(investors, preMoneyValuation, opts...)
	if err != nil {
		return false, err
	}
	founders := decimal.Zero
	preferred := decimal.Zero
	for _, s := range res.shareholders {
		if s.IsFounder {
			founders = founders.Add(s.Percent)
		}
		if s.ShareClass != models.Common {
			preferred = preferred.Add(s.Percent)
		}
	}
	return founders.GreaterThan(preferred), nil
}

type roundResult struct {
	shareholders   []*models.Shareholder
	safes          []*models.Safe
	basePrice      decimal.Decimal
	postMoney      decimal.Decimal
	safesConverted int
}

// runPricedRound computes a full priced round on deep copies of the
// live collections. Callers either swap the result in (AddPricedRound)
// or read it and throw it away (IsPricedRoundFounderFriendly).
func (c *CapTable) runPricedRound(investors map[string]decimal.Decimal, preMoney decimal.Decimal, opts ...RoundOption) (*roundResult, error) {
	cfg := roundConfig{investorClass: models.SeriesAPreferred}
	for _, opt := range opts {
		opt(&cfg)
	}

	if !preMoney.IsPositive() {
		return nil, fmt.Errorf("%w: pre-money valuation %s must be positive", e.ErrInvalidValuation, preMoney)
	}
	totalPre := sumShares(c.shareholders)
	if totalPre.IsZero() {
		return nil, fmt.Errorf("%w: cannot price a round against an empty cap table", e.ErrNoSharesOutstanding)
	}
	basePrice := preMoney.Div(totalPre).Round(priceScale)
	if !basePrice.IsPositive() {
		return nil, fmt.Errorf("%w: price per share %s rounds to zero at valuation %s",
			e.ErrInvalidValuation, basePrice, preMoney)
	}

	res := &roundResult{
		shareholders: cloneShareholders(c.shareholders),
		safes:        cloneSafes(c.safes),
		basePrice:    basePrice,
	}
	one := decimal.NewFromInt(1)

	// Pending SAFEs convert first, in recording order. Each converts at
	// the lowest of its candidate prices: the cap price when the cap is
	// set and below the round valuation, further reduced by the
	// discount when one is present. The new position records the base
	// price; favorable terms show up as extra shares, not as a lower
	// recorded price.
	for _, safe := range res.safes {
		if safe.Status != models.SafePending {
			continue
		}
		effective := basePrice
		if safe.ValuationCap.IsPositive() && safe.ValuationCap.LessThan(preMoney) {
			effective = safe.ValuationCap.Div(totalPre).Round(priceScale)
		}
		if safe.Discount.IsPositive() {
			effective = effective.Mul(one.Sub(safe.Discount))
		}
		if !effective.IsPositive() {
			return nil, fmt.Errorf("%w: conversion price %s for SAFE %q is not positive",
				e.ErrInvalidValuation, effective, safe.Name)
		}
		holder := &models.Shareholder{
			ID:         uuid.New(),
			Name:       safe.Name,
			ShareClass: safe.FutureShareClass,
			NumShares:  safe.PaidAmount.Div(effective).Round(shareScale),
			Price:      basePrice,
		}
		res.shareholders = append(res.shareholders, holder)
		safe.Status = models.SafeConverted
		res.safesConverted++
	}

	// New investors buy in at the base price, in sorted-name order.
	for _, name := range slices.Sorted(maps.Keys(investors)) {
		holder := &models.Shareholder{
			ID:         uuid.New(),
			Name:       name,
			ShareClass: cfg.investorClass,
			NumShares:  investors[name].Div(basePrice).Round(shareScale),
			Price:      basePrice,
		}
		res.shareholders = append(res.shareholders, holder)
	}

	// Global recompute: every position, old and new, is repriced at the
	// base price and its percent rederived from the post-money total.
	totalPost := sumShares(res.shareholders)
	for _, s := range res.shareholders {
		s.Price = basePrice
		s.Percent = s.NumShares.Div(totalPost).Round(percentScale)
		s.RecomputeValue()
		res.postMoney = res.postMoney.Add(s.Value)
	}
	return res, nil
}
