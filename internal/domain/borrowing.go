package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BorrowingStatus string

const (
	BorrowingPending   BorrowingStatus = "pending"
	BorrowingApproved  BorrowingStatus = "approved"
	BorrowingBorrowed  BorrowingStatus = "borrowed"
	BorrowingCompleted BorrowingStatus = "completed"
	BorrowingCancelled BorrowingStatus = "cancelled"
	BorrowingRejected  BorrowingStatus = "rejected"
)

// Holding reports whether the member currently has the equipment on loan.
func (s BorrowingStatus) Holding() bool {
	return s == BorrowingApproved || s == BorrowingBorrowed
}

type BorrowingTransaction struct {
	ID                 uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	MemberID           uuid.UUID       `gorm:"column:member_id;type:uuid;not null;index" json:"member_id"`
	PoolID             uuid.UUID       `gorm:"column:pool_id;type:uuid;not null;index" json:"pool_id"`
	QuantityBorrowed   int64           `gorm:"column:quantity_borrowed;not null;check:chk_borrowing_quantity_positive,quantity_borrowed > 0" json:"quantity_borrowed"`
	TotalReturned      int64           `gorm:"column:total_returned;not null;default:0;check:chk_borrowing_returned_bounds,total_returned >= 0 AND total_returned <= quantity_borrowed" json:"total_returned"`
	Status             BorrowingStatus `gorm:"column:status;type:varchar(20);not null;index" json:"status"`
	ExpectedReturnDate time.Time       `gorm:"column:expected_return_date;not null" json:"expected_return_date"`
	CreditDeducted     int64           `gorm:"column:credit_deducted;not null;default:0" json:"credit_deducted"`
	LastPenaltyDate    *time.Time      `gorm:"column:last_penalty_date" json:"last_penalty_date"`
	LastPenaltyAmount  int64           `gorm:"column:last_penalty_amount;not null;default:0" json:"last_penalty_amount"`
	AccumulatedPenalty int64           `gorm:"column:accumulated_penalty;not null;default:0" json:"accumulated_penalty"`
	ApprovedBy         *uuid.UUID      `gorm:"column:approved_by;type:uuid" json:"approved_by"`
	RejectionReason    string          `gorm:"column:rejection_reason;type:text" json:"rejection_reason,omitempty"`
	CompletedAt        *time.Time      `gorm:"column:completed_at" json:"completed_at"`
	CreatedAt          time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (BorrowingTransaction) TableName() string {
	return "borrowing_transactions"
}

func (b *BorrowingTransaction) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Outstanding is the quantity still out with the member.
func (b *BorrowingTransaction) Outstanding() int64 {
	return b.QuantityBorrowed - b.TotalReturned
}

// BorrowingUnit links a borrowing to one serialized unit it holds.
type BorrowingUnit struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	BorrowingID uuid.UUID  `gorm:"column:borrowing_id;type:uuid;not null;uniqueIndex:idx_borrowing_unit" json:"borrowing_id"`
	UnitID      uuid.UUID  `gorm:"column:unit_id;type:uuid;not null;uniqueIndex:idx_borrowing_unit" json:"unit_id"`
	ReturnedAt  *time.Time `gorm:"column:returned_at" json:"returned_at"`
	CreatedAt   time.Time  `gorm:"column:created_at" json:"created_at"`
}

func (BorrowingUnit) TableName() string {
	return "borrowing_units"
}

func (u *BorrowingUnit) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
