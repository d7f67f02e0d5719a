package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"lendpool-backend/internal/domain"
	"lendpool-backend/internal/pkg/clock"
	"lendpool-backend/internal/pkg/testdb"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupLedger(t *testing.T) (*Service, *gorm.DB) {
	db := testdb.Open(t)
	clk := clock.NewManual(time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC))
	return NewService(db, clk), db
}

func openMember(t *testing.T, s *Service, credit int64) domain.Member {
	t.Helper()
	var m *domain.Member
	require.NoError(t, s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		m, err = s.OpenAccount(tx, "Ana", credit, nil)
		return err
	}))
	return *m
}

func apply(s *Service, e Entry) (*domain.CreditTransaction, error) {
	var out *domain.CreditTransaction
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		out, err = s.Apply(tx, e)
		return err
	})
	return out, err
}

func TestApply_AppendsSnapshotAndSequence(t *testing.T) {
	s, _ := setupLedger(t)
	m := openMember(t, s, 100)

	entry, err := apply(s, Entry{MemberID: m.ID, Amount: -20, Type: domain.CreditBorrow, Description: "projector"})
	require.NoError(t, err)
	assert.Equal(t, int64(80), entry.BalanceAfter)
	assert.Equal(t, int64(2), entry.Sequence)

	bal, err := s.Balance(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(80), bal)
}

func TestApply_VoluntaryDeductionStopsAtZero(t *testing.T) {
	s, _ := setupLedger(t)
	m := openMember(t, s, 10)

	_, err := apply(s, Entry{MemberID: m.ID, Amount: -11, Type: domain.CreditBorrow})
	assert.ErrorIs(t, err, domain.ErrWouldGoNegative)

	_, err = apply(s, Entry{MemberID: m.ID, Amount: -11, Type: domain.CreditAdjustment})
	assert.ErrorIs(t, err, domain.ErrWouldGoNegative)

	bal, err := s.Balance(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), bal)

	history, err := s.History(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestApply_PenaltyMayGoNegative(t *testing.T) {
	s, _ := setupLedger(t)
	m := openMember(t, s, 10)

	entry, err := apply(s, Entry{MemberID: m.ID, Amount: -300, Type: domain.CreditPenalty})
	require.NoError(t, err)
	assert.Equal(t, int64(-290), entry.BalanceAfter)

	// credits are accepted while the balance is below zero
	entry, err = apply(s, Entry{MemberID: m.ID, Amount: 40, Type: domain.CreditRefund})
	require.NoError(t, err)
	assert.Equal(t, int64(-250), entry.BalanceAfter)
}

func TestFloorClassification(t *testing.T) {
	cases := map[domain.CreditTransactionType]bool{
		domain.CreditBorrow:     false,
		domain.CreditReturn:     false,
		domain.CreditPenalty:    true,
		domain.CreditAdjustment: false,
		domain.CreditRefund:     false,
	}
	for typ, want := range cases {
		assert.Equal(t, want, typ.MayBreachFloor(), string(typ))
		assert.True(t, typ.Valid())
	}
	assert.False(t, domain.CreditTransactionType("bonus").Valid())
}

func TestApply_Validation(t *testing.T) {
	s, _ := setupLedger(t)
	m := openMember(t, s, 10)

	_, err := apply(s, Entry{MemberID: m.ID, Amount: 0, Type: domain.CreditAdjustment})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = apply(s, Entry{MemberID: m.ID, Amount: 5, Type: "bonus"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = apply(s, Entry{MemberID: uuid.New(), Amount: 5, Type: domain.CreditAdjustment})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReset_SingleAdjustment(t *testing.T) {
	s, _ := setupLedger(t)
	m := openMember(t, s, 70)
	admin := uuid.New()

	var entry *domain.CreditTransaction
	require.NoError(t, s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = s.Reset(tx, m.ID, 100, "semester reset", &admin)
		return err
	}))
	require.NotNil(t, entry)
	assert.Equal(t, int64(30), entry.Amount)
	assert.Equal(t, domain.CreditAdjustment, entry.Type)
	assert.Equal(t, admin, *entry.ActingAdminID)

	require.NoError(t, s.DB.Transaction(func(tx *gorm.DB) error {
		entry, err := s.Reset(tx, m.ID, 100, "again", &admin)
		assert.Nil(t, entry)
		return err
	}))
	assert.NoError(t, s.Verify(context.Background(), m.ID))
}

func TestLedger_EntriesAreImmutable(t *testing.T) {
	s, db := setupLedger(t)
	m := openMember(t, s, 50)

	var entry domain.CreditTransaction
	require.NoError(t, db.Where("member_id = ?", m.ID).First(&entry).Error)

	err := db.Model(&entry).Update("amount", 1).Error
	assert.True(t, errors.Is(err, domain.ErrImmutableLedger))
	err = db.Delete(&entry).Error
	assert.True(t, errors.Is(err, domain.ErrImmutableLedger))
}

func TestVerify_ReplayInvariant(t *testing.T) {
	s, db := setupLedger(t)
	m := openMember(t, s, 100)

	for _, e := range []Entry{
		{MemberID: m.ID, Amount: -20, Type: domain.CreditBorrow},
		{MemberID: m.ID, Amount: 20, Type: domain.CreditReturn},
		{MemberID: m.ID, Amount: -150, Type: domain.CreditPenalty},
		{MemberID: m.ID, Amount: 25, Type: domain.CreditRefund},
	} {
		_, err := apply(s, e)
		require.NoError(t, err)
	}
	require.NoError(t, s.Verify(context.Background(), m.ID))

	history, err := s.History(context.Background(), m.ID)
	require.NoError(t, err)
	var running int64
	for i, e := range history {
		running += e.Amount
		assert.Equal(t, running, e.BalanceAfter)
		assert.Equal(t, int64(i+1), e.Sequence)
	}
	assert.Equal(t, int64(-25), running)

	// a write that bypasses the ledger is caught
	require.NoError(t, db.Model(&domain.Member{}).Where("id = ?", m.ID).Update("credit", 0).Error)
	assert.ErrorIs(t, s.Verify(context.Background(), m.ID), domain.ErrLedgerMismatch)
}

func TestReplay_DetectsBrokenSnapshot(t *testing.T) {
	entries := []domain.CreditTransaction{
		{Sequence: 1, Amount: 10, BalanceAfter: 10},
		{Sequence: 2, Amount: -5, BalanceAfter: 6},
	}
	assert.ErrorIs(t, Replay(6, entries), domain.ErrLedgerMismatch)

	entries[1].BalanceAfter = 5
	assert.NoError(t, Replay(5, entries))

	entries[1].Sequence = 1
	assert.ErrorIs(t, Replay(5, entries), domain.ErrLedgerMismatch)
}
