package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/kitchen/inventory/internal/domain/inventory"
	"github.com/kitchen/inventory/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// entryBatchSize bounds the IN list when loading movements by entry
const entryBatchSize = 500

// GormStockMovementRepository implements StockMovementRepository using GORM.
// The table is append-only: there is no update or delete.
type GormStockMovementRepository struct {
	db *gorm.DB
}

// NewGormStockMovementRepository creates a new GormStockMovementRepository
func NewGormStockMovementRepository(db *gorm.DB) *GormStockMovementRepository {
	return &GormStockMovementRepository{db: db}
}

// Create appends a movement
func (r *GormStockMovementRepository) Create(ctx context.Context, movement *inventory.StockMovement) error {
	return translateError(r.db.WithContext(ctx).Create(models.StockMovementModelFromDomain(movement)).Error)
}

// FindAll lists movements matching the filter. A zero PageSize returns every
// match.
func (r *GormStockMovementRepository) FindAll(ctx context.Context, filter inventory.MovementFilter) ([]inventory.StockMovement, error) {
	var rows []models.StockMovementModel
	query := applyPage(r.filtered(ctx, filter), filter.Filter, MovementSortFields, "occurred_at")
	if err := query.Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	return movementsToDomain(rows), nil
}

// FindByEntries loads every movement against the given entries in ledger order
func (r *GormStockMovementRepository) FindByEntries(ctx context.Context, entryIDs []uuid.UUID) ([]inventory.StockMovement, error) {
	var out []inventory.StockMovement
	for start := 0; start < len(entryIDs); start += entryBatchSize {
		end := min(start+entryBatchSize, len(entryIDs))
		var rows []models.StockMovementModel
		err := r.db.WithContext(ctx).
			Where("stock_entry_id IN ?", entryIDs[start:end]).
			Order("occurred_at ASC").Order("id ASC").
			Find(&rows).Error
		if err != nil {
			return nil, translateError(err)
		}
		out = append(out, movementsToDomain(rows)...)
	}
	return out, nil
}

// Count counts movements matching the filter, ignoring pagination
func (r *GormStockMovementRepository) Count(ctx context.Context, filter inventory.MovementFilter) (int64, error) {
	var count int64
	if err := r.filtered(ctx, filter).Count(&count).Error; err != nil {
		return 0, translateError(err)
	}
	return count, nil
}

func (r *GormStockMovementRepository) filtered(ctx context.Context, filter inventory.MovementFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.StockMovementModel{})
	if filter.RawMaterialID != nil {
		query = query.Where("raw_material_id = ?", *filter.RawMaterialID)
	}
	if filter.StockEntryID != nil {
		query = query.Where("stock_entry_id = ?", *filter.StockEntryID)
	}
	if filter.SectionID != nil {
		query = query.Where("(from_section_id = ? OR to_section_id = ?)", *filter.SectionID, *filter.SectionID)
	}
	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		query = query.Where("type IN ?", types)
	}
	return whereRange(query, "occurred_at", filter.Occurred)
}

func movementsToDomain(rows []models.StockMovementModel) []inventory.StockMovement {
	out := make([]inventory.StockMovement, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

var _ inventory.StockMovementRepository = (*GormStockMovementRepository)(nil)
