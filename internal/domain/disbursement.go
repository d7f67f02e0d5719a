package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DisbursementStatus string

const (
	DisbursementPending   DisbursementStatus = "pending"
	DisbursementApproved  DisbursementStatus = "approved"
	DisbursementDisbursed DisbursementStatus = "disbursed"
	DisbursementCancelled DisbursementStatus = "cancelled"
	DisbursementRejected  DisbursementStatus = "rejected"
)

type DisbursementTransaction struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	MemberID          uuid.UUID          `gorm:"column:member_id;type:uuid;not null;index" json:"member_id"`
	PoolID            uuid.UUID          `gorm:"column:pool_id;type:uuid;not null;index" json:"pool_id"`
	QuantityRequested int64              `gorm:"column:quantity_requested;not null;check:chk_disbursement_quantity_positive,quantity_requested > 0" json:"quantity_requested"`
	QuantityDisbursed int64              `gorm:"column:quantity_disbursed;not null;default:0" json:"quantity_disbursed"`
	Status            DisbursementStatus `gorm:"column:status;type:varchar(20);not null;index" json:"status"`
	ApprovedBy        *uuid.UUID         `gorm:"column:approved_by;type:uuid" json:"approved_by"`
	RejectionReason   string             `gorm:"column:rejection_reason;type:text" json:"rejection_reason,omitempty"`
	CreatedAt         time.Time          `gorm:"column:created_at" json:"created_at"`
	UpdatedAt         time.Time          `gorm:"column:updated_at" json:"updated_at"`
}

func (DisbursementTransaction) TableName() string {
	return "disbursement_transactions"
}

func (d *DisbursementTransaction) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
