package lending

import (
	"context"
	"fmt"

	"lendpool-backend/internal/application/ledger"
	"lendpool-backend/internal/application/notifications"
	"lendpool-backend/internal/domain"
	"lendpool-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RegisterMember opens an account with an opening balance booked on the ledger.
func (s *Service) RegisterMember(ctx context.Context, name string, opening int64, admin *uuid.UUID) (*domain.Member, error) {
	name = validation.CleanText(name)
	if !validation.IsValidName(name) {
		return nil, fmt.Errorf("member name %q: %w", name, domain.ErrValidation)
	}
	var out *domain.Member
	err := s.inTx(ctx, "register_member", func(tx *gorm.DB) error {
		m, err := s.Ledger.OpenAccount(tx, name, opening, admin)
		if err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetMemberStatus suspends or reactivates a member. Suspended members cannot
// file new requests; loans already out keep accruing penalties.
func (s *Service) SetMemberStatus(ctx context.Context, memberID uuid.UUID, status domain.MemberStatus) error {
	if status != domain.MemberActive && status != domain.MemberSuspended {
		return fmt.Errorf("member status %q: %w", status, domain.ErrValidation)
	}
	return s.inTx(ctx, "set_member_status", func(tx *gorm.DB) error {
		m, err := s.Ledger.LockMember(tx, memberID)
		if err != nil {
			return err
		}
		return tx.Model(m).Updates(map[string]interface{}{
			"status":     status,
			"updated_at": s.Clock.Now(),
		}).Error
	})
}

// AdjustCredit books an administrative credit or debit. Debits may not take
// the balance below zero.
func (s *Service) AdjustCredit(ctx context.Context, memberID uuid.UUID, amount int64, reason string, admin uuid.UUID) (*domain.CreditTransaction, error) {
	reason = validation.CleanText(reason)
	if !validation.IsValidReason(reason) {
		return nil, fmt.Errorf("reason is required, at most %d characters: %w", validation.MaxReasonLen, domain.ErrValidation)
	}
	var out *domain.CreditTransaction
	err := s.inTx(ctx, "adjust_credit", func(tx *gorm.DB) error {
		entry, err := s.Ledger.Apply(tx, ledger.Entry{
			MemberID:      memberID,
			Amount:        amount,
			Type:          domain.CreditAdjustment,
			Description:   reason,
			ActingAdminID: &admin,
		})
		if err != nil {
			return err
		}
		out = entry
		return notifications.Enqueue(tx, notifications.CreditAdjusted, memberID, entry, entry.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ResetCredit sets a balance to target. A nil entry means it was already there.
func (s *Service) ResetCredit(ctx context.Context, memberID uuid.UUID, target int64, reason string, admin uuid.UUID) (*domain.CreditTransaction, error) {
	reason = validation.CleanText(reason)
	if !validation.IsValidReason(reason) {
		return nil, fmt.Errorf("reason is required, at most %d characters: %w", validation.MaxReasonLen, domain.ErrValidation)
	}
	var out *domain.CreditTransaction
	err := s.inTx(ctx, "reset_credit", func(tx *gorm.DB) error {
		entry, err := s.Ledger.Reset(tx, memberID, target, reason, &admin)
		if err != nil || entry == nil {
			return err
		}
		out = entry
		return notifications.Enqueue(tx, notifications.CreditAdjusted, memberID, entry, entry.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) GetBalance(ctx context.Context, memberID uuid.UUID) (int64, error) {
	return s.Ledger.Balance(ctx, memberID)
}

func (s *Service) GetLedgerHistory(ctx context.Context, memberID uuid.UUID) ([]domain.CreditTransaction, error) {
	return s.Ledger.History(ctx, memberID)
}

func (s *Service) VerifyLedger(ctx context.Context, memberID uuid.UUID) error {
	return s.Ledger.Verify(ctx, memberID)
}
