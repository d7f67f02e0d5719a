package lending

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lendpool-backend/internal/application/inventory"
	"lendpool-backend/internal/application/ledger"
	"lendpool-backend/internal/application/penalties"
	"lendpool-backend/internal/domain"
	"lendpool-backend/internal/infrastructure/database"
	"lendpool-backend/internal/pkg/clock"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	defaultMaxRetries   = 3
	defaultRetryBackoff = 25 * time.Millisecond
)

// Service runs every borrowing, disbursement and credit workflow as one
// database transaction. It is the only layer that retries.
type Service struct {
	DB           *gorm.DB
	Allocator    *inventory.Allocator
	Ledger       *ledger.Service
	Policy       penalties.Policy
	Clock        clock.Clock
	MaxRetries   int
	RetryBackoff time.Duration
}

func NewService(db *gorm.DB, alloc *inventory.Allocator, led *ledger.Service, policy penalties.Policy, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{
		DB:           db,
		Allocator:    alloc,
		Ledger:       led,
		Policy:       policy,
		Clock:        clk,
		MaxRetries:   defaultMaxRetries,
		RetryBackoff: defaultRetryBackoff,
	}
}

// inTx runs fn in a transaction and reruns the whole unit on transient
// faults. fn must not keep state across attempts.
func (s *Service) inTx(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	backoff := s.RetryBackoff
	for attempt := 0; ; attempt++ {
		err := s.DB.WithContext(ctx).Transaction(fn)
		if err == nil {
			return nil
		}
		if !isTransient(err) || attempt >= s.MaxRetries {
			return err
		}
		log.Warn().Err(err).Str("op", op).Int("attempt", attempt+1).Msg("Transient store error, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func (s *Service) lockBorrowing(tx *gorm.DB, id uuid.UUID) (*domain.BorrowingTransaction, error) {
	var b domain.BorrowingTransaction
	if err := database.ForUpdate(tx).Where("id = ?", id).First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("borrowing %s: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	return &b, nil
}

func (s *Service) lockDisbursement(tx *gorm.DB, id uuid.UUID) (*domain.DisbursementTransaction, error) {
	var d domain.DisbursementTransaction
	if err := database.ForUpdate(tx).Where("id = ?", id).First(&d).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("disbursement %s: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	return &d, nil
}

// requester loads a member for a new request and refuses suspended ones.
func requester(tx *gorm.DB, memberID uuid.UUID) (*domain.Member, error) {
	var m domain.Member
	if err := tx.Where("id = ?", memberID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("member %s: %w", memberID, domain.ErrNotFound)
		}
		return nil, err
	}
	if m.Status == domain.MemberSuspended {
		return nil, fmt.Errorf("member %s: %w", memberID, domain.ErrMemberSuspended)
	}
	return &m, nil
}

func loadPool(tx *gorm.DB, poolID uuid.UUID) (*domain.EquipmentPool, error) {
	var p domain.EquipmentPool
	if err := tx.Where("id = ?", poolID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("equipment pool %s: %w", poolID, domain.ErrNotFound)
		}
		return nil, err
	}
	return &p, nil
}

func (s *Service) GetBorrowing(ctx context.Context, id uuid.UUID) (*domain.BorrowingTransaction, error) {
	var b domain.BorrowingTransaction
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("borrowing %s: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	return &b, nil
}

func (s *Service) GetDisbursement(ctx context.Context, id uuid.UUID) (*domain.DisbursementTransaction, error) {
	var d domain.DisbursementTransaction
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("disbursement %s: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	return &d, nil
}
