package persistence

import (
	"context"

	appinv "github.com/kitchen/inventory/internal/application/inventory"
	"github.com/kitchen/inventory/internal/domain/shared"
	"gorm.io/gorm"
)

// NewRepositories builds the ledger repositories over db
func NewRepositories(db *gorm.DB) appinv.Repositories {
	return appinv.Repositories{
		MaterialRepo:    NewGormRawMaterialRepository(db),
		EntryRepo:       NewGormStockEntryRepository(db),
		MovementRepo:    NewGormStockMovementRepository(db),
		SectionRepo:     NewGormSectionRepository(db),
		AllocationRepo:  NewGormSectionInventoryRepository(db),
		ConsumptionRepo: NewGormSectionConsumptionRepository(db),
	}
}

// GormTransactionScope implements TransactionScope using GORM transactions.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs fn inside one database transaction. Every repository handed
// to fn shares the transaction. An error from fn rolls back; a failure to
// begin or commit is reported as a store error.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appinv.TransactionalRepositories) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
	if err != nil {
		return shared.WrapStoreError("commit ledger transaction", translateError(err))
	}
	return nil
}

var _ appinv.TransactionScope = (*GormTransactionScope)(nil)
