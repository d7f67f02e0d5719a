package database

import (
	"lendpool-backend/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Open opens a GORM DB from a Postgres DSN.
// PreferSimpleProtocol disables prepared statement caching so the pool works behind PgBouncer.
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
}

// AutoMigrate creates the lending schema, including the check constraints and
// unique indexes the allocator, ledger and penalty gate depend on.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Member{},
		&domain.EquipmentPool{},
		&domain.EquipmentUnit{},
		&domain.BorrowingTransaction{},
		&domain.BorrowingUnit{},
		&domain.DisbursementTransaction{},
		&domain.CreditTransaction{},
		&domain.PartialReturnPenalty{},
		&domain.OutboxEvent{},
	)
}

// ForUpdate scopes the next query to SELECT ... FOR UPDATE. Dialects without
// row locks (SQLite) drop the clause; there the single writer serializes units.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
}
