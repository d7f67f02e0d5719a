package lending

import (
	"context"
	"testing"

	"lendpool-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdjustCredit(t *testing.T) {
	svc, _, _ := setupLending(t)
	ctx := context.Background()
	m := register(t, svc, 30)

	entry, err := svc.AdjustCredit(ctx, m.ID, 20, "volunteer hours", approver)
	require.NoError(t, err)
	assert.Equal(t, int64(50), entry.BalanceAfter)
	assert.Equal(t, approver, *entry.ActingAdminID)

	_, err = svc.AdjustCredit(ctx, m.ID, -51, "correction", approver)
	assert.ErrorIs(t, err, domain.ErrWouldGoNegative)
	_, err = svc.AdjustCredit(ctx, m.ID, 5, "", approver)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.AdjustCredit(ctx, uuid.New(), 5, "ghost", approver)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	bal, err := svc.GetBalance(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), bal)
}

func TestResetCredit(t *testing.T) {
	svc, _, _ := setupLending(t)
	ctx := context.Background()
	m := register(t, svc, 30)

	entry, err := svc.ResetCredit(ctx, m.ID, 100, "new term", approver)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, int64(70), entry.Amount)

	entry, err = svc.ResetCredit(ctx, m.ID, 100, "new term", approver)
	require.NoError(t, err)
	assert.Nil(t, entry)

	history, err := svc.GetLedgerHistory(ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
	assert.NoError(t, svc.VerifyLedger(ctx, m.ID))
}

func TestRegisterMember(t *testing.T) {
	svc, _, _ := setupLending(t)
	ctx := context.Background()

	_, err := svc.RegisterMember(ctx, "", 10, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.RegisterMember(ctx, "<script>", 10, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	m, err := svc.RegisterMember(ctx, "  Dana   Okafor ", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, "Dana Okafor", m.Name)
	history, err := svc.GetLedgerHistory(ctx, m.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	assert.ErrorIs(t, svc.SetMemberStatus(ctx, m.ID, "banned"), domain.ErrValidation)
}
