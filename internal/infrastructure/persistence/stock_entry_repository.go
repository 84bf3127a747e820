package persistence

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/kitchen/inventory/internal/domain/inventory"
	"github.com/kitchen/inventory/internal/domain/shared"
	"github.com/kitchen/inventory/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormStockEntryRepository implements StockEntryRepository using GORM
type GormStockEntryRepository struct {
	db *gorm.DB
}

// NewGormStockEntryRepository creates a new GormStockEntryRepository
func NewGormStockEntryRepository(db *gorm.DB) *GormStockEntryRepository {
	return &GormStockEntryRepository{db: db}
}

// FindByID finds a stock entry by its ID
func (r *GormStockEntryRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.StockEntry, error) {
	var model models.StockEntryModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindAll lists stock entries matching the filter. A zero PageSize returns
// every match.
func (r *GormStockEntryRepository) FindAll(ctx context.Context, filter inventory.EntryFilter) ([]inventory.StockEntry, error) {
	var rows []models.StockEntryModel
	query := applyPage(r.filtered(ctx, filter), filter.Filter, EntrySortFields, "received_date")
	if err := query.Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	return entriesToDomain(rows), nil
}

// FindByMaterial lists every entry of a material, oldest receipt first
func (r *GormStockEntryRepository) FindByMaterial(ctx context.Context, materialID uuid.UUID) ([]inventory.StockEntry, error) {
	var rows []models.StockEntryModel
	err := r.db.WithContext(ctx).
		Where("raw_material_id = ?", materialID).
		Order("received_date ASC").Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, translateError(err)
	}
	return entriesToDomain(rows), nil
}

// Count counts stock entries matching the filter, ignoring pagination
func (r *GormStockEntryRepository) Count(ctx context.Context, filter inventory.EntryFilter) (int64, error) {
	var count int64
	if err := r.filtered(ctx, filter).Count(&count).Error; err != nil {
		return 0, translateError(err)
	}
	return count, nil
}

func (r *GormStockEntryRepository) filtered(ctx context.Context, filter inventory.EntryFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.StockEntryModel{})
	if filter.RawMaterialID != nil {
		query = query.Where("raw_material_id = ?", *filter.RawMaterialID)
	}
	if filter.Supplier != "" {
		query = query.Where("LOWER(supplier) = ?", strings.ToLower(filter.Supplier))
	}
	return whereRange(query, "received_date", filter.Received)
}

// Create inserts a new stock entry
func (r *GormStockEntryRepository) Create(ctx context.Context, entry *inventory.StockEntry) error {
	return translateError(r.db.WithContext(ctx).Create(models.StockEntryModelFromDomain(entry)).Error)
}

// Update writes a corrected quantity and cost
func (r *GormStockEntryRepository) Update(ctx context.Context, entry *inventory.StockEntry) error {
	result := r.db.WithContext(ctx).
		Model(&models.StockEntryModel{}).
		Where("id = ?", entry.ID).
		UpdateColumns(map[string]any{
			"quantity":   entry.Quantity,
			"unit_cost":  entry.UnitCost,
			"total_cost": entry.TotalCost,
			"notes":      entry.Notes,
			"updated_at": entry.UpdatedAt,
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func entriesToDomain(rows []models.StockEntryModel) []inventory.StockEntry {
	out := make([]inventory.StockEntry, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// whereRange bounds column by r. Zero ends stay open.
func whereRange(query *gorm.DB, column string, r shared.DateRange) *gorm.DB {
	if !r.From.IsZero() {
		query = query.Where(column+" >= ?", r.From)
	}
	if !r.To.IsZero() {
		query = query.Where(column+" <= ?", r.To)
	}
	return query
}

var _ inventory.StockEntryRepository = (*GormStockEntryRepository)(nil)
