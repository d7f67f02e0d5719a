package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PartialReturnPenalty is the once-per-period gate for penalty accrual.
// The (borrowing_id, accrual_period) unique index is what makes reruns safe.
type PartialReturnPenalty struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	BorrowingID     uuid.UUID `gorm:"column:borrowing_id;type:uuid;not null;uniqueIndex:idx_penalty_borrowing_period,priority:1" json:"borrowing_id"`
	AccrualPeriod   string    `gorm:"column:accrual_period;type:varchar(10);not null;uniqueIndex:idx_penalty_borrowing_period,priority:2" json:"accrual_period"`
	Amount          int64     `gorm:"column:amount;not null" json:"amount"`
	MissingQuantity int64     `gorm:"column:missing_quantity;not null" json:"missing_quantity"`
	ElapsedUnits    int64     `gorm:"column:elapsed_units;not null" json:"elapsed_units"`
	CreatedAt       time.Time `gorm:"column:created_at" json:"created_at"`
}

func (PartialReturnPenalty) TableName() string {
	return "partial_return_penalties"
}

func (p *PartialReturnPenalty) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
