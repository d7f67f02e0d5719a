package notifications

import (
	"encoding/json"
	"time"

	"lendpool-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	BorrowingRequested = "borrowing.requested"
	BorrowingApproved  = "borrowing.approved"
	BorrowingRejected  = "borrowing.rejected"
	BorrowingCancelled = "borrowing.cancelled"
	BorrowingHandedOut = "borrowing.borrowed"
	BorrowingReturned  = "borrowing.returned"
	BorrowingCompleted = "borrowing.completed"
	BorrowingOverdue   = "borrowing.overdue"
	PenaltyCharged     = "penalty.charged"

	DisbursementRequested = "disbursement.requested"
	DisbursementApproved  = "disbursement.approved"
	DisbursementRejected  = "disbursement.rejected"
	DisbursementCancelled = "disbursement.cancelled"
	DisbursementHandedOut = "disbursement.disbursed"

	CreditAdjusted = "credit.adjusted"
)

// Event is what sinks receive.
type Event struct {
	ID          uuid.UUID       `json:"id"`
	Type        string          `json:"type"`
	AggregateID uuid.UUID       `json:"aggregate_id"`
	Payload     json.RawMessage `json:"payload"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// Enqueue writes an outbox row in the caller's transaction. Nothing leaves the
// process until the relay picks the row up after commit.
func Enqueue(tx *gorm.DB, eventType string, aggregateID uuid.UUID, payload interface{}, at time.Time) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return tx.Create(&domain.OutboxEvent{
		EventType:   eventType,
		AggregateID: aggregateID,
		Payload:     datatypes.JSON(b),
		Status:      domain.OutboxPending,
		CreatedAt:   at,
		UpdatedAt:   at,
	}).Error
}

func eventFromRow(row domain.OutboxEvent) Event {
	return Event{
		ID:          row.ID,
		Type:        row.EventType,
		AggregateID: row.AggregateID,
		Payload:     json.RawMessage(row.Payload),
		OccurredAt:  row.CreatedAt,
	}
}
