package lending

import (
	"context"
	"fmt"

	"lendpool-backend/internal/application/inventory"
	"lendpool-backend/internal/application/notifications"
	"lendpool-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func disbursementPayload(d *domain.DisbursementTransaction) map[string]interface{} {
	return map[string]interface{}{
		"disbursement_id":    d.ID,
		"member_id":          d.MemberID,
		"pool_id":            d.PoolID,
		"status":             d.Status,
		"quantity_requested": d.QuantityRequested,
		"quantity_disbursed": d.QuantityDisbursed,
	}
}

func (s *Service) RequestDisbursement(ctx context.Context, memberID, poolID uuid.UUID, quantity int64) (*domain.DisbursementTransaction, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive: %w", domain.ErrValidation)
	}

	var out *domain.DisbursementTransaction
	err := s.inTx(ctx, "request_disbursement", func(tx *gorm.DB) error {
		now := s.Clock.Now()
		if _, err := requester(tx, memberID); err != nil {
			return err
		}
		pool, err := loadPool(tx, poolID)
		if err != nil {
			return err
		}
		if pool.Kind != domain.PoolQuantity {
			return fmt.Errorf("pool %s is lent per unit, request a borrowing: %w", poolID, domain.ErrValidation)
		}
		if pool.Quantity < quantity {
			return fmt.Errorf("pool %s has %d available: %w", poolID, pool.Quantity, domain.ErrInsufficientInventory)
		}

		d := &domain.DisbursementTransaction{
			MemberID:          memberID,
			PoolID:            poolID,
			QuantityRequested: quantity,
			Status:            domain.DisbursementPending,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := tx.Create(d).Error; err != nil {
			return err
		}
		out = d
		return notifications.Enqueue(tx, notifications.DisbursementRequested, d.ID, disbursementPayload(d), now)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ApproveDisbursement takes the requested quantity off the pool counter.
func (s *Service) ApproveDisbursement(ctx context.Context, id, approverID uuid.UUID) (*domain.DisbursementTransaction, error) {
	var out *domain.DisbursementTransaction
	err := s.inTx(ctx, "approve_disbursement", func(tx *gorm.DB) error {
		now := s.Clock.Now()
		d, err := s.lockDisbursement(tx, id)
		if err != nil {
			return err
		}
		if d.Status != domain.DisbursementPending {
			return fmt.Errorf("disbursement %s is %s: %w", id, d.Status, domain.ErrAlreadyProcessed)
		}
		alloc, err := s.Allocator.Decrement(tx, d.PoolID, d.QuantityRequested)
		if err != nil {
			return err
		}

		d.Status = domain.DisbursementApproved
		d.QuantityDisbursed = alloc.Quantity
		d.ApprovedBy = &approverID
		if err := tx.Model(d).Updates(map[string]interface{}{
			"status":             d.Status,
			"quantity_disbursed": alloc.Quantity,
			"approved_by":        approverID,
			"updated_at":         now,
		}).Error; err != nil {
			return err
		}
		out = d
		return notifications.Enqueue(tx, notifications.DisbursementApproved, d.ID, disbursementPayload(d), now)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) MarkDisbursed(ctx context.Context, id uuid.UUID) (*domain.DisbursementTransaction, error) {
	return s.transitionDisbursement(ctx, "mark_disbursed", id,
		domain.DisbursementApproved, domain.DisbursementDisbursed, notifications.DisbursementHandedOut, nil)
}

func (s *Service) RejectDisbursement(ctx context.Context, id, approverID uuid.UUID, reason string) (*domain.DisbursementTransaction, error) {
	return s.transitionDisbursement(ctx, "reject_disbursement", id,
		domain.DisbursementPending, domain.DisbursementRejected, notifications.DisbursementRejected,
		map[string]interface{}{"rejection_reason": reason, "approved_by": approverID})
}

func (s *Service) transitionDisbursement(ctx context.Context, op string, id uuid.UUID, from, to domain.DisbursementStatus, event string, extra map[string]interface{}) (*domain.DisbursementTransaction, error) {
	var out *domain.DisbursementTransaction
	err := s.inTx(ctx, op, func(tx *gorm.DB) error {
		now := s.Clock.Now()
		d, err := s.lockDisbursement(tx, id)
		if err != nil {
			return err
		}
		if d.Status != from {
			return fmt.Errorf("disbursement %s is %s: %w", id, d.Status, domain.ErrAlreadyProcessed)
		}
		updates := map[string]interface{}{"status": to, "updated_at": now}
		for k, v := range extra {
			updates[k] = v
		}
		if err := tx.Model(d).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ?", id).First(d).Error; err != nil {
			return err
		}
		out = d
		return notifications.Enqueue(tx, event, d.ID, disbursementPayload(d), now)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CancelDisbursement withdraws a member's request. An approved one puts its
// quantity back on the pool.
func (s *Service) CancelDisbursement(ctx context.Context, id, memberID uuid.UUID) (*domain.DisbursementTransaction, error) {
	var out *domain.DisbursementTransaction
	err := s.inTx(ctx, "cancel_disbursement", func(tx *gorm.DB) error {
		now := s.Clock.Now()
		d, err := s.lockDisbursement(tx, id)
		if err != nil {
			return err
		}
		if d.MemberID != memberID {
			return fmt.Errorf("disbursement %s belongs to another member: %w", id, domain.ErrValidation)
		}
		switch d.Status {
		case domain.DisbursementPending:
		case domain.DisbursementApproved:
			if err := s.Allocator.Release(tx, &inventory.Allocation{
				PoolID:   d.PoolID,
				Kind:     domain.PoolQuantity,
				Quantity: d.QuantityDisbursed,
			}); err != nil {
				return err
			}
		default:
			return fmt.Errorf("disbursement %s is %s: %w", id, d.Status, domain.ErrAlreadyProcessed)
		}

		d.Status = domain.DisbursementCancelled
		d.QuantityDisbursed = 0
		if err := tx.Model(d).Updates(map[string]interface{}{
			"status":             d.Status,
			"quantity_disbursed": 0,
			"updated_at":         now,
		}).Error; err != nil {
			return err
		}
		out = d
		return notifications.Enqueue(tx, notifications.DisbursementCancelled, d.ID, disbursementPayload(d), now)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
