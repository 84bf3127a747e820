package inventory

import (
	"context"

	"github.com/kitchen/inventory/internal/domain/inventory"
)

// TransactionScope provides transactional access to the ledger repositories.
// All repository operations performed inside Execute are committed or rolled
// back together.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all ledger repositories within a transaction.
// All repositories returned share the same underlying database transaction.
//
// Writers must call Materials().TouchLedger before reading the entries and
// movements they validate against: the touch takes the material's row lock and
// serializes concurrent writers on the same material.
type TransactionalRepositories interface {
	Materials() inventory.RawMaterialRepository
	Entries() inventory.StockEntryRepository
	Movements() inventory.StockMovementRepository
	Sections() inventory.SectionRepository
	SectionInventory() inventory.SectionInventoryRepository
	Consumptions() inventory.SectionConsumptionRepository
}

// Repositories bundles the ledger repositories outside of a transaction
type Repositories struct {
	MaterialRepo    inventory.RawMaterialRepository
	EntryRepo       inventory.StockEntryRepository
	MovementRepo    inventory.StockMovementRepository
	SectionRepo     inventory.SectionRepository
	AllocationRepo  inventory.SectionInventoryRepository
	ConsumptionRepo inventory.SectionConsumptionRepository
}

// Materials returns the raw material repository.
func (r Repositories) Materials() inventory.RawMaterialRepository { return r.MaterialRepo }

// Entries returns the stock entry repository.
func (r Repositories) Entries() inventory.StockEntryRepository { return r.EntryRepo }

// Movements returns the stock movement repository.
func (r Repositories) Movements() inventory.StockMovementRepository { return r.MovementRepo }

// Sections returns the section repository.
func (r Repositories) Sections() inventory.SectionRepository { return r.SectionRepo }

// SectionInventory returns the section allocation repository.
func (r Repositories) SectionInventory() inventory.SectionInventoryRepository {
	return r.AllocationRepo
}

// Consumptions returns the section consumption repository.
func (r Repositories) Consumptions() inventory.SectionConsumptionRepository {
	return r.ConsumptionRepo
}

// NoOpTransactionScope is a transaction scope that doesn't actually use transactions.
// This is useful for testing or when transaction support is not required.
type NoOpTransactionScope struct {
	repos Repositories
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(repos Repositories) *NoOpTransactionScope {
	return &NoOpTransactionScope{repos: repos}
}

// Execute runs the function without a real transaction (for testing/compatibility).
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s.repos)
}

var (
	_ TransactionScope          = (*NoOpTransactionScope)(nil)
	_ TransactionalRepositories = Repositories{}
)
