package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PoolKind string

const (
	PoolSerialized PoolKind = "serialized"
	PoolQuantity   PoolKind = "quantity"
)

// EquipmentPool is one equipment type. Serialized pools track stock through
// EquipmentUnit rows; quantity pools use the Quantity counter directly.
type EquipmentPool struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name       string    `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Kind       PoolKind  `gorm:"column:kind;type:varchar(20);not null" json:"kind"`
	Quantity   int64     `gorm:"column:quantity;not null;default:0;check:chk_pool_quantity_nonnegative,quantity >= 0" json:"quantity"`
	CreditCost int64     `gorm:"column:credit_cost;not null;default:0" json:"credit_cost"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (EquipmentPool) TableName() string {
	return "equipment_pools"
}

func (p *EquipmentPool) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

type UnitStatus string

const (
	UnitAvailable   UnitStatus = "available"
	UnitBorrowed    UnitStatus = "borrowed"
	UnitMaintenance UnitStatus = "maintenance"
	UnitDamaged     UnitStatus = "damaged"
	UnitLost        UnitStatus = "lost"
)

type EquipmentUnit struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	PoolID       uuid.UUID  `gorm:"column:pool_id;type:uuid;not null;index" json:"pool_id"`
	SerialNumber string     `gorm:"column:serial_number;type:varchar(100);not null;uniqueIndex" json:"serial_number"`
	Status       UnitStatus `gorm:"column:status;type:varchar(20);not null;default:available" json:"status"`
	CreatedAt    time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (EquipmentUnit) TableName() string {
	return "equipment_units"
}

func (u *EquipmentUnit) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Status == "" {
		u.Status = UnitAvailable
	}
	return nil
}
