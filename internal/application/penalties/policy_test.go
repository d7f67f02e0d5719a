package penalties

import (
	"testing"
	"time"

	"lendpool-backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPolicy_Validation(t *testing.T) {
	_, err := NewPolicy("weeks", 1, "", 7)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = NewPolicy("hours", 0, "", 7)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = NewPolicy("hours", 1, "Not/AZone", 7)
	assert.Error(t, err)

	p, err := NewPolicy("days", 2.5, "Asia/Bangkok", 7)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, p.Unit())
}

func TestAmount_ThirtyHoursTwoMissing(t *testing.T) {
	p, err := NewPolicy("hours", 5, "", 7)
	require.NoError(t, err)
	due := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	elapsed := p.Elapsed(due, due.Add(30*time.Hour))
	assert.InDelta(t, 30.0, elapsed, 1e-9)
	assert.Equal(t, int64(300), p.Amount(elapsed, 2))

	// partial units round up
	assert.Equal(t, int64(153), p.Amount(p.Elapsed(due, due.Add(30*time.Hour+30*time.Minute)), 1))
	assert.Equal(t, int64(0), p.Amount(p.Elapsed(due, due.Add(-time.Hour)), 1))
}

func TestAccrualPeriod_UsesConfiguredZone(t *testing.T) {
	p, err := NewPolicy("days", 1, "Asia/Bangkok", 7)
	require.NoError(t, err)
	// 20:00 UTC is 03:00 the next day in Bangkok
	at := time.Date(2026, 4, 1, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-04-02", p.AccrualPeriod(at))
	assert.Equal(t, time.Date(2026, 4, 1, 17, 0, 0, 0, time.UTC), p.PeriodStart(at))
}

func TestRefundFor(t *testing.T) {
	p, err := NewPolicy("days", 10, "", 4)
	require.NoError(t, err)
	charged := time.Date(2026, 4, 5, 0, 5, 0, 0, time.UTC)
	b := &domain.BorrowingTransaction{
		LastPenaltyDate:    &charged,
		LastPenaltyAmount:  80,
		AccumulatedPenalty: 200,
	}

	assert.Equal(t, int64(80), p.RefundFor(b, charged.Add(2*time.Hour)))
	assert.Equal(t, int64(40), p.RefundFor(b, charged.Add(49*time.Hour)))
	assert.Equal(t, int64(0), p.RefundFor(b, charged.Add(4*24*time.Hour)))

	b.AccumulatedPenalty = 30
	assert.Equal(t, int64(30), p.RefundFor(b, charged.Add(time.Hour)))

	b.LastPenaltyDate = nil
	assert.Equal(t, int64(0), p.RefundFor(b, charged))
}
