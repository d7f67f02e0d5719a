package penalties

import (
	"context"
	"errors"
	"testing"
	"time"

	"lendpool-backend/internal/application/ledger"
	"lendpool-backend/internal/application/notifications"
	"lendpool-backend/internal/domain"
	"lendpool-backend/internal/pkg/clock"
	"lendpool-backend/internal/pkg/testdb"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var dueAt = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	db    *gorm.DB
	clk   *clock.Manual
	svc   *Service
	led   *ledger.Service
	pool  domain.EquipmentPool
	owner domain.Member
}

func setupPenalties(t *testing.T, mode string, rate float64) *fixture {
	db := testdb.Open(t)
	clk := clock.NewManual(dueAt)
	led := ledger.NewService(db, clk)
	policy, err := NewPolicy(mode, rate, "", 7)
	require.NoError(t, err)

	f := &fixture{db: db, clk: clk, led: led, svc: NewService(db, led, policy, clk)}
	f.pool = domain.EquipmentPool{Name: "Tripod", Kind: domain.PoolSerialized, CreditCost: 5}
	require.NoError(t, db.Create(&f.pool).Error)
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		m, err := led.OpenAccount(tx, "Bo", 50, nil)
		if err == nil {
			f.owner = *m
		}
		return err
	}))
	return f
}

func (f *fixture) borrowing(t *testing.T, qty, returned int64, status domain.BorrowingStatus) domain.BorrowingTransaction {
	t.Helper()
	b := domain.BorrowingTransaction{
		MemberID:           f.owner.ID,
		PoolID:             f.pool.ID,
		QuantityBorrowed:   qty,
		TotalReturned:      returned,
		Status:             status,
		ExpectedReturnDate: dueAt,
		CreatedAt:          dueAt.Add(-72 * time.Hour),
	}
	require.NoError(t, f.db.Create(&b).Error)
	return b
}

func (f *fixture) penaltyEntries(t *testing.T) []domain.CreditTransaction {
	t.Helper()
	var entries []domain.CreditTransaction
	require.NoError(t, f.db.Where("member_id = ? AND transaction_type = ?", f.owner.ID, domain.CreditPenalty).Find(&entries).Error)
	return entries
}

func TestAccruePenalties_ThirtyHoursOverdue(t *testing.T) {
	f := setupPenalties(t, "hours", 5)
	b := f.borrowing(t, 2, 0, domain.BorrowingBorrowed)
	f.clk.Set(dueAt.Add(30 * time.Hour))

	report, err := f.svc.AccruePenalties(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Charged)
	assert.Equal(t, int64(300), report.Total)

	bal, err := f.led.Balance(context.Background(), f.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(-250), bal)

	var reloaded domain.BorrowingTransaction
	require.NoError(t, f.db.First(&reloaded, "id = ?", b.ID).Error)
	assert.Equal(t, int64(300), reloaded.AccumulatedPenalty)
	assert.Equal(t, int64(300), reloaded.LastPenaltyAmount)
	require.NotNil(t, reloaded.LastPenaltyDate)

	var events int64
	require.NoError(t, f.db.Model(&domain.OutboxEvent{}).Where("event_type = ?", notifications.PenaltyCharged).Count(&events).Error)
	assert.Equal(t, int64(1), events)
	assert.NoError(t, f.led.Verify(context.Background(), f.owner.ID))
}

func TestAccruePenalties_TwiceInOnePeriodChargesOnce(t *testing.T) {
	f := setupPenalties(t, "hours", 5)
	f.borrowing(t, 1, 0, domain.BorrowingApproved)
	f.clk.Set(dueAt.Add(13 * time.Hour))

	first, err := f.svc.AccruePenalties(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Charged)

	f.clk.Advance(2 * time.Hour)
	second, err := f.svc.AccruePenalties(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Candidates)

	var gates int64
	require.NoError(t, f.db.Model(&domain.PartialReturnPenalty{}).Count(&gates).Error)
	assert.Equal(t, int64(1), gates)
	assert.Len(t, f.penaltyEntries(t), 1)
}

func TestAccruePenalties_GateStopsReplayAfterMarkerLoss(t *testing.T) {
	f := setupPenalties(t, "hours", 5)
	b := f.borrowing(t, 1, 0, domain.BorrowingBorrowed)
	f.clk.Set(dueAt.Add(13 * time.Hour))

	_, err := f.svc.AccruePenalties(context.Background())
	require.NoError(t, err)

	// the candidate filter no longer excludes it; only the unique gate does
	require.NoError(t, f.db.Model(&domain.BorrowingTransaction{}).Where("id = ?", b.ID).
		Update("last_penalty_date", nil).Error)

	report, err := f.svc.AccruePenalties(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Candidates)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Charged)
	assert.Len(t, f.penaltyEntries(t), 1)
}

func TestAccruePenalties_NextPeriodChargesSinceLastPenalty(t *testing.T) {
	f := setupPenalties(t, "hours", 1)
	b := f.borrowing(t, 3, 1, domain.BorrowingBorrowed)

	f.clk.Set(dueAt.Add(10 * time.Hour)) // 22:00 on the due date
	_, err := f.svc.AccruePenalties(context.Background())
	require.NoError(t, err)

	f.clk.Advance(24 * time.Hour)
	report, err := f.svc.AccruePenalties(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Charged)
	assert.Equal(t, int64(48), report.Total)

	var reloaded domain.BorrowingTransaction
	require.NoError(t, f.db.First(&reloaded, "id = ?", b.ID).Error)
	assert.Equal(t, int64(20+48), reloaded.AccumulatedPenalty)
	assert.Equal(t, int64(48), reloaded.LastPenaltyAmount)
}

func TestAccruePenalties_IgnoresNonCandidates(t *testing.T) {
	f := setupPenalties(t, "days", 3)
	f.borrowing(t, 2, 2, domain.BorrowingBorrowed)
	f.borrowing(t, 1, 0, domain.BorrowingPending)
	f.borrowing(t, 1, 0, domain.BorrowingCompleted)
	notDue := f.borrowing(t, 1, 0, domain.BorrowingBorrowed)
	require.NoError(t, f.db.Model(&notDue).Update("expected_return_date", dueAt.Add(72*time.Hour)).Error)

	f.clk.Set(dueAt.Add(36 * time.Hour))
	report, err := f.svc.AccruePenalties(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Candidates)
	assert.Empty(t, f.penaltyEntries(t))
}

func TestAccruePenalties_FailureIsIsolated(t *testing.T) {
	f := setupPenalties(t, "days", 2)
	orphan := domain.BorrowingTransaction{
		MemberID: uuid.New(), PoolID: f.pool.ID, QuantityBorrowed: 1,
		Status: domain.BorrowingBorrowed, ExpectedReturnDate: dueAt.Add(-time.Hour),
	}
	require.NoError(t, f.db.Create(&orphan).Error)
	f.borrowing(t, 1, 0, domain.BorrowingBorrowed)

	f.clk.Set(dueAt.Add(48 * time.Hour))
	report, err := f.svc.AccruePenalties(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Candidates)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Charged)

	// the failed candidate left no gate row behind
	var gates int64
	require.NoError(t, f.db.Model(&domain.PartialReturnPenalty{}).Where("borrowing_id = ?", orphan.ID).Count(&gates).Error)
	assert.Equal(t, int64(0), gates)
}

type brokenMarker struct{}

func (brokenMarker) Mark(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return false, errors.New("redis down")
}
func (brokenMarker) Clear(ctx context.Context, key string) error { return nil }

func TestDetectOverdue_OncePerPeriod(t *testing.T) {
	f := setupPenalties(t, "hours", 1)
	f.borrowing(t, 1, 0, domain.BorrowingBorrowed)
	f.borrowing(t, 1, 0, domain.BorrowingPending)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	f.svc.Markers = NewRedisMarker(rdb)

	f.clk.Set(dueAt.Add(time.Hour))
	n, err := f.svc.DetectOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	f.clk.Advance(15 * time.Minute)
	n, err = f.svc.DetectOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// without redis the outbox check still dedupes
	mr.FlushAll()
	f.svc.Markers = brokenMarker{}
	n, err = f.svc.DetectOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	f.clk.Advance(24 * time.Hour)
	n, err = f.svc.DetectOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
