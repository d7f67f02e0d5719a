package penalties

import (
	"fmt"
	"math"
	"time"
	_ "time/tzdata"

	"lendpool-backend/internal/domain"
)

type Mode string

const (
	ModeHours Mode = "hours"
	ModeDays  Mode = "days"
)

const periodLayout = "2006-01-02"

// Policy holds the business knobs for penalty accrual and the refund on
// full return.
type Policy struct {
	Mode             Mode
	Rate             float64
	Location         *time.Location
	RefundWindowDays int64
}

func NewPolicy(mode string, rate float64, timezone string, refundWindowDays int64) (Policy, error) {
	m := Mode(mode)
	if m != ModeHours && m != ModeDays {
		return Policy{}, fmt.Errorf("penalty mode %q: %w", mode, domain.ErrValidation)
	}
	if rate <= 0 {
		return Policy{}, fmt.Errorf("penalty rate must be positive: %w", domain.ErrValidation)
	}
	if refundWindowDays < 0 {
		return Policy{}, fmt.Errorf("refund window must not be negative: %w", domain.ErrValidation)
	}
	loc := time.UTC
	if timezone != "" {
		var err error
		if loc, err = time.LoadLocation(timezone); err != nil {
			return Policy{}, fmt.Errorf("penalty timezone %q: %w", timezone, err)
		}
	}
	return Policy{Mode: m, Rate: rate, Location: loc, RefundWindowDays: refundWindowDays}, nil
}

func (p Policy) loc() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// Unit is the length of one charged unit of lateness.
func (p Policy) Unit() time.Duration {
	if p.Mode == ModeDays {
		return 24 * time.Hour
	}
	return time.Hour
}

// AccrualPeriod names the calendar day t falls in, e.g. "2026-03-14".
func (p Policy) AccrualPeriod(t time.Time) string {
	return t.In(p.loc()).Format(periodLayout)
}

// PeriodStart is local midnight of t's accrual period, in UTC.
func (p Policy) PeriodStart(t time.Time) time.Time {
	local := t.In(p.loc())
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, p.loc()).UTC()
}

// Elapsed is the fractional number of units between from and now.
func (p Policy) Elapsed(from, now time.Time) float64 {
	if !now.After(from) {
		return 0
	}
	return float64(now.Sub(from)) / float64(p.Unit())
}

// Amount is ceil(elapsed * rate) per missing item.
func (p Policy) Amount(elapsed float64, missing int64) int64 {
	if elapsed <= 0 || missing <= 0 {
		return 0
	}
	return int64(math.Ceil(elapsed*p.Rate)) * missing
}

// RefundFor returns the credit given back when an item with penalties is fully
// returned. The latest charge is refunded pro rata for the days still left in
// the refund window since it was applied, and never more than was charged in
// total.
func (p Policy) RefundFor(b *domain.BorrowingTransaction, now time.Time) int64 {
	if b.AccumulatedPenalty <= 0 || b.LastPenaltyDate == nil || p.RefundWindowDays <= 0 {
		return 0
	}
	if now.Before(*b.LastPenaltyDate) {
		return 0
	}
	days := int64(now.Sub(*b.LastPenaltyDate) / (24 * time.Hour))
	if days >= p.RefundWindowDays {
		return 0
	}
	refund := b.LastPenaltyAmount * (p.RefundWindowDays - days) / p.RefundWindowDays
	if refund > b.AccumulatedPenalty {
		refund = b.AccumulatedPenalty
	}
	return refund
}
