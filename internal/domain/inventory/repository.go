package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kitchen/inventory/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// MaterialFilter narrows raw material queries
type MaterialFilter struct {
	shared.Filter
	Category        string
	IncludeInactive bool
}

// EntryFilter narrows stock entry queries
type EntryFilter struct {
	shared.Filter
	RawMaterialID *uuid.UUID
	Supplier      string
	Received      shared.DateRange
}

// MovementFilter narrows stock movement queries
type MovementFilter struct {
	shared.Filter
	RawMaterialID *uuid.UUID
	StockEntryID  *uuid.UUID
	SectionID     *uuid.UUID
	Types         []MovementType
	Occurred      shared.DateRange
}

// ConsumptionFilter narrows section consumption queries
type ConsumptionFilter struct {
	SectionID     *uuid.UUID
	RawMaterialID *uuid.UUID
	Consumed      shared.DateRange
}

// RawMaterialRepository persists raw materials
type RawMaterialRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*RawMaterial, error)
	FindAll(ctx context.Context, filter MaterialFilter) ([]RawMaterial, error)
	Count(ctx context.Context, filter MaterialFilter) (int64, error)
	Save(ctx context.Context, material *RawMaterial) error

	// TouchLedger bumps the material's ledger version inside the current
	// transaction. Concurrent writers on the same material queue behind it.
	TouchLedger(ctx context.Context, id uuid.UUID, at time.Time) error
}

// StockEntryRepository persists stock entries
type StockEntryRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*StockEntry, error)
	FindAll(ctx context.Context, filter EntryFilter) ([]StockEntry, error)
	FindByMaterial(ctx context.Context, materialID uuid.UUID) ([]StockEntry, error)
	Count(ctx context.Context, filter EntryFilter) (int64, error)
	Create(ctx context.Context, entry *StockEntry) error
	Update(ctx context.Context, entry *StockEntry) error
}

// StockMovementRepository appends to and reads the movement ledger
type StockMovementRepository interface {
	Create(ctx context.Context, movement *StockMovement) error
	FindAll(ctx context.Context, filter MovementFilter) ([]StockMovement, error)
	FindByEntries(ctx context.Context, entryIDs []uuid.UUID) ([]StockMovement, error)
	Count(ctx context.Context, filter MovementFilter) (int64, error)
}

// SectionRepository persists sections
type SectionRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Section, error)
	FindAll(ctx context.Context, includeInactive bool) ([]Section, error)
	Save(ctx context.Context, section *Section) error
}

// SectionInventoryRepository persists section allocations
type SectionInventoryRepository interface {
	Find(ctx context.Context, sectionID, materialID uuid.UUID) (*SectionInventory, error)
	FindBySection(ctx context.Context, sectionID uuid.UUID) ([]SectionInventory, error)
	FindByMaterial(ctx context.Context, materialID uuid.UUID) ([]SectionInventory, error)
	FindAll(ctx context.Context) ([]SectionInventory, error)

	// Allocate adds quantity to the row, creating it when missing
	Allocate(ctx context.Context, sectionID, materialID uuid.UUID, quantity decimal.Decimal, at time.Time) error

	// Draw subtracts quantity in a single conditional write. It returns an
	// INSUFFICIENT_STOCK error and changes nothing when the row holds less.
	Draw(ctx context.Context, sectionID, materialID uuid.UUID, quantity decimal.Decimal, at time.Time) error
}

// SectionConsumptionRepository persists section consumption records
type SectionConsumptionRepository interface {
	Create(ctx context.Context, record *SectionConsumption) error
	FindAll(ctx context.Context, filter ConsumptionFilter) ([]SectionConsumption, error)
}
