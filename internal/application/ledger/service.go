package ledger

import (
	"context"
	"errors"
	"fmt"

	"lendpool-backend/internal/domain"
	"lendpool-backend/internal/infrastructure/database"
	"lendpool-backend/internal/pkg/clock"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Entry describes one balance change.
type Entry struct {
	MemberID       uuid.UUID
	Amount         int64
	Type           domain.CreditTransactionType
	BorrowingID    *uuid.UUID
	DisbursementID *uuid.UUID
	Description    string
	ActingAdminID  *uuid.UUID
}

// Service is the only writer of Member.Credit. Each Apply pairs the balance
// write with exactly one CreditTransaction in the caller's transaction.
type Service struct {
	DB    *gorm.DB
	Clock clock.Clock
}

func NewService(db *gorm.DB, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{DB: db, Clock: clk}
}

func (s *Service) LockMember(tx *gorm.DB, memberID uuid.UUID) (*domain.Member, error) {
	var m domain.Member
	if err := database.ForUpdate(tx).Where("id = ?", memberID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("member %s: %w", memberID, domain.ErrNotFound)
		}
		return nil, err
	}
	return &m, nil
}

// Apply locks the member, enforces the floor and appends the entry.
func (s *Service) Apply(tx *gorm.DB, e Entry) (*domain.CreditTransaction, error) {
	if !e.Type.Valid() {
		return nil, fmt.Errorf("unknown transaction type %q: %w", e.Type, domain.ErrValidation)
	}
	if e.Amount == 0 {
		return nil, fmt.Errorf("amount must be non-zero: %w", domain.ErrValidation)
	}

	member, err := s.LockMember(tx, e.MemberID)
	if err != nil {
		return nil, err
	}

	balance := member.Credit + e.Amount
	if e.Amount < 0 && balance < 0 && !e.Type.MayBreachFloor() {
		return nil, fmt.Errorf("%s of %d leaves member %s at %d: %w", e.Type, -e.Amount, member.ID, balance, domain.ErrWouldGoNegative)
	}

	var last int64
	if err := tx.Model(&domain.CreditTransaction{}).
		Where("member_id = ?", member.ID).
		Select("COALESCE(MAX(sequence), 0)").
		Row().Scan(&last); err != nil {
		return nil, err
	}

	if err := tx.Model(&domain.Member{}).
		Where("id = ?", member.ID).
		Update("credit", balance).Error; err != nil {
		return nil, err
	}

	entry := domain.CreditTransaction{
		MemberID:       member.ID,
		Sequence:       last + 1,
		Amount:         e.Amount,
		Type:           e.Type,
		BorrowingID:    e.BorrowingID,
		DisbursementID: e.DisbursementID,
		Description:    e.Description,
		BalanceAfter:   balance,
		ActingAdminID:  e.ActingAdminID,
		CreatedAt:      s.Clock.Now(),
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// Reset moves a balance to target through a single adjustment entry.
// A balance already at target writes nothing and returns a nil entry.
func (s *Service) Reset(tx *gorm.DB, memberID uuid.UUID, target int64, reason string, admin *uuid.UUID) (*domain.CreditTransaction, error) {
	if target < 0 {
		return nil, fmt.Errorf("target balance must not be negative: %w", domain.ErrValidation)
	}
	member, err := s.LockMember(tx, memberID)
	if err != nil {
		return nil, err
	}
	delta := target - member.Credit
	if delta == 0 {
		return nil, nil
	}
	return s.Apply(tx, Entry{
		MemberID:      memberID,
		Amount:        delta,
		Type:          domain.CreditAdjustment,
		Description:   reason,
		ActingAdminID: admin,
	})
}

// OpenAccount creates a member and books the opening balance as an adjustment,
// so the ledger accounts for every credit the member ever held.
func (s *Service) OpenAccount(tx *gorm.DB, name string, opening int64, admin *uuid.UUID) (*domain.Member, error) {
	if name == "" {
		return nil, fmt.Errorf("name is required: %w", domain.ErrValidation)
	}
	if opening < 0 {
		return nil, fmt.Errorf("opening balance must not be negative: %w", domain.ErrValidation)
	}
	now := s.Clock.Now()
	member := domain.Member{Name: name, Status: domain.MemberActive, CreatedAt: now, UpdatedAt: now}
	if err := tx.Create(&member).Error; err != nil {
		return nil, err
	}
	if opening > 0 {
		entry, err := s.Apply(tx, Entry{
			MemberID:      member.ID,
			Amount:        opening,
			Type:          domain.CreditAdjustment,
			Description:   "opening balance",
			ActingAdminID: admin,
		})
		if err != nil {
			return nil, err
		}
		member.Credit = entry.BalanceAfter
	}
	return &member, nil
}

func (s *Service) Balance(ctx context.Context, memberID uuid.UUID) (int64, error) {
	var m domain.Member
	if err := s.DB.WithContext(ctx).Where("id = ?", memberID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("member %s: %w", memberID, domain.ErrNotFound)
		}
		return 0, err
	}
	return m.Credit, nil
}

// History returns a member's entries in commit order.
func (s *Service) History(ctx context.Context, memberID uuid.UUID) ([]domain.CreditTransaction, error) {
	if _, err := s.Balance(ctx, memberID); err != nil {
		return nil, err
	}
	var entries []domain.CreditTransaction
	err := s.DB.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("sequence ASC").
		Find(&entries).Error
	return entries, err
}

// Verify replays a member's entries and checks every snapshot and the stored
// balance against the running sum.
func (s *Service) Verify(ctx context.Context, memberID uuid.UUID) error {
	var result error
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m domain.Member
		if err := tx.Where("id = ?", memberID).First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("member %s: %w", memberID, domain.ErrNotFound)
			}
			return err
		}
		var entries []domain.CreditTransaction
		if err := tx.Where("member_id = ?", memberID).Order("sequence ASC").Find(&entries).Error; err != nil {
			return err
		}
		result = Replay(m.Credit, entries)
		return nil
	})
	if err != nil {
		return err
	}
	return result
}

// Replay checks entries, already in sequence order, against a stored balance.
func Replay(stored int64, entries []domain.CreditTransaction) error {
	var running, prevSeq int64
	for _, e := range entries {
		if e.Sequence <= prevSeq {
			return fmt.Errorf("entry %s: sequence %d after %d: %w", e.ID, e.Sequence, prevSeq, domain.ErrLedgerMismatch)
		}
		running += e.Amount
		if e.BalanceAfter != running {
			return fmt.Errorf("entry %s: balance_after %d, running sum %d: %w", e.ID, e.BalanceAfter, running, domain.ErrLedgerMismatch)
		}
		prevSeq = e.Sequence
	}
	if running != stored {
		return fmt.Errorf("stored credit %d, ledger sum %d: %w", stored, running, domain.ErrLedgerMismatch)
	}
	return nil
}
