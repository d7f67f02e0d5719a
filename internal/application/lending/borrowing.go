package lending

import (
	"context"
	"fmt"
	"time"

	"lendpool-backend/internal/application/ledger"
	"lendpool-backend/internal/application/notifications"
	"lendpool-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

func borrowingPayload(b *domain.BorrowingTransaction) map[string]interface{} {
	return map[string]interface{}{
		"borrowing_id":         b.ID,
		"member_id":            b.MemberID,
		"pool_id":              b.PoolID,
		"status":               b.Status,
		"quantity_borrowed":    b.QuantityBorrowed,
		"total_returned":       b.TotalReturned,
		"expected_return_date": b.ExpectedReturnDate,
	}
}

// depositShare is the part of the approval charge attributed to the first n
// items, so repeated partial returns never credit back more than was taken.
func depositShare(b *domain.BorrowingTransaction, n int64) int64 {
	if b.QuantityBorrowed == 0 {
		return 0
	}
	return b.CreditDeducted * n / b.QuantityBorrowed
}

// RequestBorrow files a pending request. Availability and balance are checked
// here only as advice to the member; Approve re-checks both under lock.
func (s *Service) RequestBorrow(ctx context.Context, memberID, poolID uuid.UUID, quantity int64, expectedReturn time.Time) (*domain.BorrowingTransaction, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive: %w", domain.ErrValidation)
	}
	now := s.Clock.Now()
	if expectedReturn.Before(s.Policy.PeriodStart(now)) {
		return nil, fmt.Errorf("expected return date is in the past: %w", domain.ErrValidation)
	}

	var out *domain.BorrowingTransaction
	err := s.inTx(ctx, "request_borrow", func(tx *gorm.DB) error {
		member, err := requester(tx, memberID)
		if err != nil {
			return err
		}
		pool, err := loadPool(tx, poolID)
		if err != nil {
			return err
		}
		if pool.Kind != domain.PoolSerialized {
			return fmt.Errorf("pool %s is consumable, request a disbursement: %w", poolID, domain.ErrValidation)
		}
		available, err := s.Allocator.Available(tx, poolID)
		if err != nil {
			return err
		}
		if available < quantity {
			return fmt.Errorf("pool %s has %d available: %w", poolID, available, domain.ErrInsufficientInventory)
		}
		if cost := pool.CreditCost * quantity; member.Credit < cost {
			return fmt.Errorf("cost %d exceeds balance %d: %w", cost, member.Credit, domain.ErrWouldGoNegative)
		}

		b := &domain.BorrowingTransaction{
			MemberID:           memberID,
			PoolID:             poolID,
			QuantityBorrowed:   quantity,
			Status:             domain.BorrowingPending,
			ExpectedReturnDate: expectedReturn.UTC(),
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := tx.Create(b).Error; err != nil {
			return err
		}
		out = b
		return notifications.Enqueue(tx, notifications.BorrowingRequested, b.ID, borrowingPayload(b), now)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Approve reserves the units and charges the member in one unit of work.
// Lock order: borrowing, pool, units, member.
func (s *Service) Approve(ctx context.Context, id, approverID uuid.UUID) (*domain.BorrowingTransaction, error) {
	var out *domain.BorrowingTransaction
	err := s.inTx(ctx, "approve", func(tx *gorm.DB) error {
		now := s.Clock.Now()
		b, err := s.lockBorrowing(tx, id)
		if err != nil {
			return err
		}
		if b.Status != domain.BorrowingPending {
			return fmt.Errorf("borrowing %s is %s: %w", id, b.Status, domain.ErrAlreadyProcessed)
		}

		pool, err := s.Allocator.LockPool(tx, b.PoolID)
		if err != nil {
			return err
		}
		alloc, err := s.Allocator.Reserve(tx, b.PoolID, b.QuantityBorrowed)
		if err != nil {
			return err
		}
		if err := s.Allocator.Attach(tx, b.ID, alloc, now); err != nil {
			return err
		}

		cost := pool.CreditCost * b.QuantityBorrowed
		if cost > 0 {
			if _, err := s.Ledger.Apply(tx, ledger.Entry{
				MemberID:      b.MemberID,
				Amount:        -cost,
				Type:          domain.CreditBorrow,
				BorrowingID:   &b.ID,
				Description:   fmt.Sprintf("borrow %d x %s", b.QuantityBorrowed, pool.Name),
				ActingAdminID: &approverID,
			}); err != nil {
				return err
			}
		}

		b.Status = domain.BorrowingApproved
		b.CreditDeducted = cost
		b.ApprovedBy = &approverID
		if err := tx.Model(b).Updates(map[string]interface{}{
			"status":          b.Status,
			"credit_deducted": cost,
			"approved_by":     approverID,
			"updated_at":      now,
		}).Error; err != nil {
			return err
		}
		out = b
		return notifications.Enqueue(tx, notifications.BorrowingApproved, b.ID, borrowingPayload(b), now)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("borrowing_id", id.String()).Int64("credit_deducted", out.CreditDeducted).Msg("Borrowing approved")
	return out, nil
}

func (s *Service) Reject(ctx context.Context, id, approverID uuid.UUID, reason string) (*domain.BorrowingTransaction, error) {
	var out *domain.BorrowingTransaction
	err := s.inTx(ctx, "reject", func(tx *gorm.DB) error {
		now := s.Clock.Now()
		b, err := s.lockBorrowing(tx, id)
		if err != nil {
			return err
		}
		if b.Status != domain.BorrowingPending {
			return fmt.Errorf("borrowing %s is %s: %w", id, b.Status, domain.ErrAlreadyProcessed)
		}
		b.Status = domain.BorrowingRejected
		b.RejectionReason = reason
		b.ApprovedBy = &approverID
		if err := tx.Model(b).Updates(map[string]interface{}{
			"status":           b.Status,
			"rejection_reason": reason,
			"approved_by":      approverID,
			"updated_at":       now,
		}).Error; err != nil {
			return err
		}
		out = b
		payload := borrowingPayload(b)
		payload["reason"] = reason
		return notifications.Enqueue(tx, notifications.BorrowingRejected, b.ID, payload, now)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Cancel withdraws a request on behalf of its member. An approved borrowing
// gives its units back and is refunded whatever has not already come back
// through returns.
func (s *Service) Cancel(ctx context.Context, id, memberID uuid.UUID) (*domain.BorrowingTransaction, error) {
	var out *domain.BorrowingTransaction
	err := s.inTx(ctx, "cancel", func(tx *gorm.DB) error {
		now := s.Clock.Now()
		b, err := s.lockBorrowing(tx, id)
		if err != nil {
			return err
		}
		if b.MemberID != memberID {
			return fmt.Errorf("borrowing %s belongs to another member: %w", id, domain.ErrValidation)
		}

		switch b.Status {
		case domain.BorrowingPending:
		case domain.BorrowingApproved:
			alloc, err := s.Allocator.AllocationFor(tx, b)
			if err != nil {
				return err
			}
			if err := s.Allocator.Release(tx, alloc); err != nil {
				return err
			}
			if err := tx.Model(&domain.BorrowingUnit{}).
				Where("borrowing_id = ? AND returned_at IS NULL", b.ID).
				Update("returned_at", now).Error; err != nil {
				return err
			}
			if refund := b.CreditDeducted - depositShare(b, b.TotalReturned); refund > 0 {
				if _, err := s.Ledger.Apply(tx, ledger.Entry{
					MemberID:    b.MemberID,
					Amount:      refund,
					Type:        domain.CreditRefund,
					BorrowingID: &b.ID,
					Description: "borrowing cancelled",
				}); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("borrowing %s is %s: %w", id, b.Status, domain.ErrAlreadyProcessed)
		}

		b.Status = domain.BorrowingCancelled
		if err := tx.Model(b).Updates(map[string]interface{}{
			"status":     b.Status,
			"updated_at": now,
		}).Error; err != nil {
			return err
		}
		out = b
		return notifications.Enqueue(tx, notifications.BorrowingCancelled, b.ID, borrowingPayload(b), now)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MarkBorrowed records the hand-over of an approved borrowing.
func (s *Service) MarkBorrowed(ctx context.Context, id uuid.UUID) (*domain.BorrowingTransaction, error) {
	var out *domain.BorrowingTransaction
	err := s.inTx(ctx, "mark_borrowed", func(tx *gorm.DB) error {
		now := s.Clock.Now()
		b, err := s.lockBorrowing(tx, id)
		if err != nil {
			return err
		}
		if b.Status != domain.BorrowingApproved {
			return fmt.Errorf("borrowing %s is %s: %w", id, b.Status, domain.ErrAlreadyProcessed)
		}
		b.Status = domain.BorrowingBorrowed
		if err := tx.Model(b).Updates(map[string]interface{}{
			"status":     b.Status,
			"updated_at": now,
		}).Error; err != nil {
			return err
		}
		out = b
		return notifications.Enqueue(tx, notifications.BorrowingHandedOut, b.ID, borrowingPayload(b), now)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReturnItems books a partial or full return. The last item back completes
// the borrowing and settles any penalty refund.
func (s *Service) ReturnItems(ctx context.Context, id uuid.UUID, quantity int64) (*domain.BorrowingTransaction, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive: %w", domain.ErrValidation)
	}

	var out *domain.BorrowingTransaction
	err := s.inTx(ctx, "return_items", func(tx *gorm.DB) error {
		now := s.Clock.Now()
		b, err := s.lockBorrowing(tx, id)
		if err != nil {
			return err
		}
		if b.Status == domain.BorrowingCompleted {
			return fmt.Errorf("borrowing %s is already fully returned: %w", id, domain.ErrOverReturn)
		}
		if !b.Status.Holding() {
			return fmt.Errorf("borrowing %s is %s: %w", id, b.Status, domain.ErrAlreadyProcessed)
		}
		if b.TotalReturned+quantity > b.QuantityBorrowed {
			return fmt.Errorf("returning %d with %d outstanding: %w", quantity, b.Outstanding(), domain.ErrOverReturn)
		}

		if err := s.Allocator.ReturnUnits(tx, b.PoolID, b.ID, quantity, now); err != nil {
			return err
		}

		returned := b.TotalReturned + quantity
		if deposit := depositShare(b, returned) - depositShare(b, b.TotalReturned); deposit > 0 {
			if _, err := s.Ledger.Apply(tx, ledger.Entry{
				MemberID:    b.MemberID,
				Amount:      deposit,
				Type:        domain.CreditReturn,
				BorrowingID: &b.ID,
				Description: fmt.Sprintf("returned %d item(s)", quantity),
			}); err != nil {
				return err
			}
		}

		updates := map[string]interface{}{
			"total_returned": returned,
			"updated_at":     now,
		}
		event := notifications.BorrowingReturned
		var refund int64
		if returned == b.QuantityBorrowed {
			updates["status"] = domain.BorrowingCompleted
			updates["completed_at"] = now
			event = notifications.BorrowingCompleted

			if refund = s.Policy.RefundFor(b, now); refund > 0 {
				if _, err := s.Ledger.Apply(tx, ledger.Entry{
					MemberID:    b.MemberID,
					Amount:      refund,
					Type:        domain.CreditRefund,
					BorrowingID: &b.ID,
					Description: "penalty refund on full return",
				}); err != nil {
					return err
				}
			}
		}

		res := tx.Model(&domain.BorrowingTransaction{}).
			Where("id = ? AND total_returned = ?", b.ID, b.TotalReturned).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return fmt.Errorf("borrowing %s changed concurrently: %w", id, domain.ErrAlreadyProcessed)
		}

		b.TotalReturned = returned
		if returned == b.QuantityBorrowed {
			b.Status = domain.BorrowingCompleted
			b.CompletedAt = &now
		}
		out = b
		payload := borrowingPayload(b)
		payload["quantity"] = quantity
		if refund > 0 {
			payload["penalty_refund"] = refund
		}
		return notifications.Enqueue(tx, event, b.ID, payload, now)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

