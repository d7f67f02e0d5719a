package jobs

import (
	"context"
	"fmt"
	"testing"
	"time"

	"lendpool-backend/internal/application/ledger"
	"lendpool-backend/internal/application/notifications"
	"lendpool-backend/internal/application/penalties"
	"lendpool-backend/internal/domain"
	"lendpool-backend/internal/infrastructure/redislock"
	"lendpool-backend/internal/pkg/clock"
	"lendpool-backend/internal/pkg/testdb"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type countingSink struct{ n int }

func (s *countingSink) Publish(ctx context.Context, e notifications.Event) error {
	s.n++
	return nil
}

type busyLocker struct{}

func (busyLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	return fmt.Errorf("%s: %w", key, redislock.ErrNotAcquired)
}

func setupRunner(t *testing.T, locker Locker) (*JobRunner, *gorm.DB, *countingSink) {
	db := testdb.Open(t)
	now := time.Date(2026, 8, 3, 0, 5, 0, 0, time.UTC)
	clk := clock.NewManual(now)
	led := ledger.NewService(db, clk)
	policy, err := penalties.NewPolicy("days", 4, "", 7)
	require.NoError(t, err)
	svc := penalties.NewService(db, led, policy, clk)
	sink := &countingSink{}
	relay := notifications.NewRelay(db, sink, clk)

	var member *domain.Member
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		member, err = led.OpenAccount(tx, "Eve", 10, nil)
		return err
	}))
	pool := domain.EquipmentPool{Name: "Laptop", Kind: domain.PoolSerialized}
	require.NoError(t, db.Create(&pool).Error)
	require.NoError(t, db.Create(&domain.BorrowingTransaction{
		MemberID: member.ID, PoolID: pool.ID, QuantityBorrowed: 1,
		Status: domain.BorrowingBorrowed, ExpectedReturnDate: now.Add(-48 * time.Hour),
	}).Error)

	return NewJobRunner(svc, relay, locker, time.Minute), db, sink
}

func TestRunOnce_All(t *testing.T) {
	jr, db, sink := setupRunner(t, nil)

	require.NoError(t, jr.RunOnce("all"))

	var penaltiesCharged int64
	require.NoError(t, db.Model(&domain.CreditTransaction{}).Where("transaction_type = ?", domain.CreditPenalty).Count(&penaltiesCharged).Error)
	assert.Equal(t, int64(1), penaltiesCharged)
	// overdue notice and penalty event
	assert.Equal(t, 2, sink.n)

	require.NoError(t, jr.RunOnce("all"))
	require.NoError(t, db.Model(&domain.CreditTransaction{}).Where("transaction_type = ?", domain.CreditPenalty).Count(&penaltiesCharged).Error)
	assert.Equal(t, int64(1), penaltiesCharged)
	assert.Equal(t, 2, sink.n)
}

func TestRunOnce_UnknownJob(t *testing.T) {
	jr, _, _ := setupRunner(t, nil)
	assert.Error(t, jr.RunOnce("send-invoices"))
}

func TestRunWithRecovery_LockHeldSkips(t *testing.T) {
	jr, db, _ := setupRunner(t, busyLocker{})
	require.NoError(t, jr.RunOnce(JobAccruePenalties))

	var gates int64
	require.NoError(t, db.Model(&domain.PartialReturnPenalty{}).Count(&gates).Error)
	assert.Equal(t, int64(0), gates)
}

func TestRunOnce_LockBackendDownFails(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	jr, db, _ := setupRunner(t, redislock.New(rdb, time.Minute))
	err := jr.RunOnce(JobAccruePenalties)
	require.Error(t, err)
	assert.NotErrorIs(t, err, redislock.ErrNotAcquired)

	var gates int64
	require.NoError(t, db.Model(&domain.PartialReturnPenalty{}).Count(&gates).Error)
	assert.Equal(t, int64(0), gates)
}

func TestRunWithRecovery_Panic(t *testing.T) {
	jr := NewJobRunner(nil, nil, nil, 0)
	err := jr.RunOnce(JobDetectOverdue)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")

	assert.NotPanics(t, jr.RelayOutbox)
}
