package inventory

import (
	"errors"
	"fmt"
	"time"

	"lendpool-backend/internal/domain"
	"lendpool-backend/internal/infrastructure/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Allocation is the result of a successful reservation. For serialized pools
// UnitIDs holds the reserved units; for quantity pools Quantity was taken off
// the counter.
type Allocation struct {
	PoolID   uuid.UUID
	Kind     domain.PoolKind
	Quantity int64
	UnitIDs  []uuid.UUID
}

func (a *Allocation) Empty() bool {
	return a == nil || a.Quantity == 0
}

// Allocator mutates pool stock. Every method runs inside the caller's
// transaction and never commits, retries or opens one of its own.
type Allocator struct{}

func NewAllocator() *Allocator {
	return &Allocator{}
}

// LockPool loads the pool row under an exclusive lock.
func (a *Allocator) LockPool(tx *gorm.DB, poolID uuid.UUID) (*domain.EquipmentPool, error) {
	var pool domain.EquipmentPool
	if err := database.ForUpdate(tx).Where("id = ?", poolID).First(&pool).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("equipment pool %s: %w", poolID, domain.ErrNotFound)
		}
		return nil, err
	}
	return &pool, nil
}

// Available is an unlocked, advisory read of what a pool could hand out now.
func (a *Allocator) Available(tx *gorm.DB, poolID uuid.UUID) (int64, error) {
	var pool domain.EquipmentPool
	if err := tx.Where("id = ?", poolID).First(&pool).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("equipment pool %s: %w", poolID, domain.ErrNotFound)
		}
		return 0, err
	}
	if pool.Kind == domain.PoolQuantity {
		return pool.Quantity, nil
	}

	var count int64
	err := tx.Model(&domain.EquipmentUnit{}).
		Where("pool_id = ? AND status = ?", poolID, domain.UnitAvailable).
		Count(&count).Error
	return count, err
}

// Reserve takes quantity items out of the pool, all or nothing.
func (a *Allocator) Reserve(tx *gorm.DB, poolID uuid.UUID, quantity int64) (*Allocation, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive: %w", domain.ErrValidation)
	}
	pool, err := a.LockPool(tx, poolID)
	if err != nil {
		return nil, err
	}
	if pool.Kind == domain.PoolQuantity {
		return a.decrementLocked(tx, pool, quantity)
	}

	var units []domain.EquipmentUnit
	if err := database.ForUpdate(tx).
		Where("pool_id = ? AND status = ?", poolID, domain.UnitAvailable).
		Order("serial_number").
		Limit(int(quantity)).
		Find(&units).Error; err != nil {
		return nil, err
	}
	if int64(len(units)) < quantity {
		return nil, fmt.Errorf("pool %s has %d of %d units: %w", poolID, len(units), quantity, domain.ErrInsufficientInventory)
	}

	ids := make([]uuid.UUID, len(units))
	for i, u := range units {
		ids[i] = u.ID
	}
	res := tx.Model(&domain.EquipmentUnit{}).
		Where("id IN ? AND status = ?", ids, domain.UnitAvailable).
		Update("status", domain.UnitBorrowed)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected != quantity {
		return nil, fmt.Errorf("pool %s changed during reservation: %w", poolID, domain.ErrInsufficientInventory)
	}

	return &Allocation{PoolID: poolID, Kind: domain.PoolSerialized, Quantity: quantity, UnitIDs: ids}, nil
}

// Decrement takes quantity off a quantity pool's counter.
func (a *Allocator) Decrement(tx *gorm.DB, poolID uuid.UUID, quantity int64) (*Allocation, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive: %w", domain.ErrValidation)
	}
	pool, err := a.LockPool(tx, poolID)
	if err != nil {
		return nil, err
	}
	if pool.Kind != domain.PoolQuantity {
		return nil, fmt.Errorf("pool %s is not quantity-tracked: %w", poolID, domain.ErrValidation)
	}
	return a.decrementLocked(tx, pool, quantity)
}

func (a *Allocator) decrementLocked(tx *gorm.DB, pool *domain.EquipmentPool, quantity int64) (*Allocation, error) {
	if pool.Quantity < quantity {
		return nil, fmt.Errorf("pool %s has %d of %d: %w", pool.ID, pool.Quantity, quantity, domain.ErrInsufficientInventory)
	}
	res := tx.Model(&domain.EquipmentPool{}).
		Where("id = ? AND quantity >= ?", pool.ID, quantity).
		Update("quantity", gorm.Expr("quantity - ?", quantity))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("pool %s: %w", pool.ID, domain.ErrInsufficientInventory)
	}
	return &Allocation{PoolID: pool.ID, Kind: domain.PoolQuantity, Quantity: quantity}, nil
}

// Release gives an allocation back to its pool.
func (a *Allocator) Release(tx *gorm.DB, alloc *Allocation) error {
	if alloc.Empty() {
		return nil
	}
	if _, err := a.LockPool(tx, alloc.PoolID); err != nil {
		return err
	}
	if alloc.Kind == domain.PoolQuantity {
		return tx.Model(&domain.EquipmentPool{}).
			Where("id = ?", alloc.PoolID).
			Update("quantity", gorm.Expr("quantity + ?", alloc.Quantity)).Error
	}
	if len(alloc.UnitIDs) == 0 {
		return nil
	}
	return tx.Model(&domain.EquipmentUnit{}).
		Where("id IN ? AND status = ?", alloc.UnitIDs, domain.UnitBorrowed).
		Update("status", domain.UnitAvailable).Error
}

// Attach records which units a borrowing holds.
func (a *Allocator) Attach(tx *gorm.DB, borrowingID uuid.UUID, alloc *Allocation, at time.Time) error {
	if alloc.Empty() || len(alloc.UnitIDs) == 0 {
		return nil
	}
	rows := make([]domain.BorrowingUnit, len(alloc.UnitIDs))
	for i, id := range alloc.UnitIDs {
		rows[i] = domain.BorrowingUnit{BorrowingID: borrowingID, UnitID: id, CreatedAt: at}
	}
	return tx.Create(&rows).Error
}

// AllocationFor rebuilds the outstanding allocation of a borrowing from its
// unreturned units.
func (a *Allocator) AllocationFor(tx *gorm.DB, b *domain.BorrowingTransaction) (*Allocation, error) {
	var links []domain.BorrowingUnit
	if err := tx.Where("borrowing_id = ? AND returned_at IS NULL", b.ID).
		Order("created_at, unit_id").
		Find(&links).Error; err != nil {
		return nil, err
	}
	alloc := &Allocation{PoolID: b.PoolID, Kind: domain.PoolSerialized}
	for _, l := range links {
		alloc.UnitIDs = append(alloc.UnitIDs, l.UnitID)
	}
	alloc.Quantity = int64(len(alloc.UnitIDs))
	return alloc, nil
}

// ReturnUnits puts the first quantity unreturned units of a borrowing back on
// the shelf.
func (a *Allocator) ReturnUnits(tx *gorm.DB, poolID, borrowingID uuid.UUID, quantity int64, at time.Time) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive: %w", domain.ErrValidation)
	}
	if _, err := a.LockPool(tx, poolID); err != nil {
		return err
	}

	var links []domain.BorrowingUnit
	if err := database.ForUpdate(tx).
		Where("borrowing_id = ? AND returned_at IS NULL", borrowingID).
		Order("created_at, unit_id").
		Limit(int(quantity)).
		Find(&links).Error; err != nil {
		return err
	}
	if int64(len(links)) < quantity {
		return fmt.Errorf("borrowing %s holds %d units: %w", borrowingID, len(links), domain.ErrOverReturn)
	}

	linkIDs := make([]uuid.UUID, len(links))
	unitIDs := make([]uuid.UUID, len(links))
	for i, l := range links {
		linkIDs[i] = l.ID
		unitIDs[i] = l.UnitID
	}
	if err := tx.Model(&domain.BorrowingUnit{}).
		Where("id IN ?", linkIDs).
		Update("returned_at", at).Error; err != nil {
		return err
	}
	return tx.Model(&domain.EquipmentUnit{}).
		Where("id IN ? AND status = ?", unitIDs, domain.UnitBorrowed).
		Update("status", domain.UnitAvailable).Error
}
