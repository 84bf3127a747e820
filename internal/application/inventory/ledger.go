package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kitchen/inventory/internal/domain/inventory"
	"github.com/kitchen/inventory/internal/domain/shared"
	"go.uber.org/zap"
)

// LoadLedger reads every material with its entries, consuming movements and
// section allocations. Other movement types never change a level, so they are
// left out of the read.
func LoadLedger(ctx context.Context, repos TransactionalRepositories) (inventory.Ledger, error) {
	materials, err := repos.Materials().FindAll(ctx, inventory.MaterialFilter{IncludeInactive: true})
	if err != nil {
		return inventory.Ledger{}, shared.WrapStoreError("load raw materials", err)
	}
	entries, err := repos.Entries().FindAll(ctx, inventory.EntryFilter{})
	if err != nil {
		return inventory.Ledger{}, shared.WrapStoreError("load stock entries", err)
	}
	movements, err := repos.Movements().FindAll(ctx, inventory.MovementFilter{
		Types: inventory.ConsumingMovementTypes(),
	})
	if err != nil {
		return inventory.Ledger{}, shared.WrapStoreError("load stock movements", err)
	}
	allocations, err := repos.SectionInventory().FindAll(ctx)
	if err != nil {
		return inventory.Ledger{}, shared.WrapStoreError("load section inventory", err)
	}
	return inventory.Ledger{
		Materials:   materials,
		Entries:     entries,
		Movements:   movements,
		Allocations: allocations,
	}, nil
}

// LoadMaterialLedger reads the part of the ledger belonging to one material.
// Movements of every type are returned.
func LoadMaterialLedger(ctx context.Context, repos TransactionalRepositories, material *inventory.RawMaterial) (inventory.Ledger, error) {
	entries, err := repos.Entries().FindByMaterial(ctx, material.ID)
	if err != nil {
		return inventory.Ledger{}, shared.WrapStoreError("load stock entries", err)
	}
	ids := make([]uuid.UUID, len(entries))
	for i := range entries {
		ids[i] = entries[i].ID
	}
	var movements []inventory.StockMovement
	if len(ids) > 0 {
		movements, err = repos.Movements().FindByEntries(ctx, ids)
		if err != nil {
			return inventory.Ledger{}, shared.WrapStoreError("load stock movements", err)
		}
	}
	allocations, err := repos.SectionInventory().FindByMaterial(ctx, material.ID)
	if err != nil {
		return inventory.Ledger{}, shared.WrapStoreError("load section inventory", err)
	}
	return inventory.Ledger{
		Materials:   []inventory.RawMaterial{*material},
		Entries:     entries,
		Movements:   movements,
		Allocations: allocations,
	}, nil
}

func findMaterial(ctx context.Context, repos TransactionalRepositories, id uuid.UUID) (*inventory.RawMaterial, error) {
	material, err := repos.Materials().FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewNotFoundError("Raw material", id)
		}
		return nil, shared.WrapStoreError("load raw material", err)
	}
	return material, nil
}

func findSection(ctx context.Context, repos TransactionalRepositories, id uuid.UUID) (*inventory.Section, error) {
	section, err := repos.Sections().FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewNotFoundError("Section", id)
		}
		return nil, shared.WrapStoreError("load section", err)
	}
	return section, nil
}

func findEntry(ctx context.Context, repos TransactionalRepositories, id uuid.UUID) (*inventory.StockEntry, error) {
	entry, err := repos.Entries().FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewNotFoundError("Stock entry", id)
		}
		return nil, shared.WrapStoreError("load stock entry", err)
	}
	return entry, nil
}

func logIntegrityWarnings(logger *zap.Logger, warnings []inventory.IntegrityWarning) {
	for _, w := range warnings {
		fields := []zap.Field{
			zap.String("raw_material_id", w.RawMaterialID.String()),
			zap.String("quantity", w.Quantity.String()),
		}
		if w.StockEntryID != nil {
			fields = append(fields, zap.String("stock_entry_id", w.StockEntryID.String()))
		}
		logger.Warn("ledger integrity warning: "+w.Message, fields...)
	}
}
