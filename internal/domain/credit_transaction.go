package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CreditTransactionType string

const (
	CreditBorrow     CreditTransactionType = "borrow"
	CreditReturn     CreditTransactionType = "return"
	CreditPenalty    CreditTransactionType = "penalty"
	CreditAdjustment CreditTransactionType = "adjustment"
	CreditRefund     CreditTransactionType = "refund"
)

// floorBreach lists the entry types allowed to push a balance below zero.
// Anything absent is a voluntary deduction and must leave the balance >= 0.
var floorBreach = map[CreditTransactionType]bool{
	CreditPenalty: true,
}

func (t CreditTransactionType) Valid() bool {
	switch t {
	case CreditBorrow, CreditReturn, CreditPenalty, CreditAdjustment, CreditRefund:
		return true
	}
	return false
}

func (t CreditTransactionType) MayBreachFloor() bool {
	return floorBreach[t]
}

// CreditTransaction is one immutable ledger entry.
type CreditTransaction struct {
	ID             uuid.UUID             `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	MemberID       uuid.UUID             `gorm:"column:member_id;type:uuid;not null;uniqueIndex:idx_credit_member_sequence,priority:1" json:"member_id"`
	Sequence       int64                 `gorm:"column:sequence;not null;uniqueIndex:idx_credit_member_sequence,priority:2" json:"sequence"`
	Amount         int64                 `gorm:"column:amount;not null" json:"amount"`
	Type           CreditTransactionType `gorm:"column:transaction_type;type:varchar(20);not null" json:"transaction_type"`
	BorrowingID    *uuid.UUID            `gorm:"column:borrowing_id;type:uuid;index" json:"borrowing_id,omitempty"`
	DisbursementID *uuid.UUID            `gorm:"column:disbursement_id;type:uuid;index" json:"disbursement_id,omitempty"`
	Description    string                `gorm:"column:description;type:text" json:"description"`
	BalanceAfter   int64                 `gorm:"column:balance_after;not null" json:"balance_after"`
	ActingAdminID  *uuid.UUID            `gorm:"column:acting_admin_id;type:uuid" json:"acting_admin_id,omitempty"`
	CreatedAt      time.Time             `gorm:"column:created_at" json:"created_at"`
}

func (CreditTransaction) TableName() string {
	return "credit_transactions"
}

func (c *CreditTransaction) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (c *CreditTransaction) BeforeUpdate(tx *gorm.DB) error {
	return ErrImmutableLedger
}

func (c *CreditTransaction) BeforeDelete(tx *gorm.DB) error {
	return ErrImmutableLedger
}
