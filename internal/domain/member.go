package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MemberStatus string

const (
	MemberActive    MemberStatus = "active"
	MemberSuspended MemberStatus = "suspended"
)

// Member.Credit is written only by ledger.Service.Apply.
type Member struct {
	ID        uuid.UUID    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name      string       `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Credit    int64        `gorm:"column:credit;not null;default:0" json:"credit"`
	Status    MemberStatus `gorm:"column:status;type:varchar(20);not null;default:active" json:"status"`
	CreatedAt time.Time    `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time    `gorm:"column:updated_at" json:"updated_at"`
}

func (Member) TableName() string {
	return "members"
}

func (m *Member) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Status == "" {
		m.Status = MemberActive
	}
	return nil
}
