package persistence

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kitchen/inventory/internal/domain/inventory"
	"github.com/kitchen/inventory/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormRawMaterialRepository implements RawMaterialRepository using GORM
type GormRawMaterialRepository struct {
	db *gorm.DB
}

// NewGormRawMaterialRepository creates a new GormRawMaterialRepository
func NewGormRawMaterialRepository(db *gorm.DB) *GormRawMaterialRepository {
	return &GormRawMaterialRepository{db: db}
}

// FindByID finds a raw material by its ID, active or not
func (r *GormRawMaterialRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.RawMaterial, error) {
	var model models.RawMaterialModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindAll lists raw materials matching the filter
func (r *GormRawMaterialRepository) FindAll(ctx context.Context, filter inventory.MaterialFilter) ([]inventory.RawMaterial, error) {
	var rows []models.RawMaterialModel
	query := applyPage(r.filtered(ctx, filter), filter.Filter, MaterialSortFields, "name")
	if err := query.Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	out := make([]inventory.RawMaterial, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// Count counts raw materials matching the filter, ignoring pagination
func (r *GormRawMaterialRepository) Count(ctx context.Context, filter inventory.MaterialFilter) (int64, error) {
	var count int64
	if err := r.filtered(ctx, filter).Count(&count).Error; err != nil {
		return 0, translateError(err)
	}
	return count, nil
}

func (r *GormRawMaterialRepository) filtered(ctx context.Context, filter inventory.MaterialFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.RawMaterialModel{})
	if !filter.IncludeInactive {
		query = query.Where("active = ?", true)
	}
	if filter.Category != "" {
		query = query.Where("LOWER(category) = ?", strings.ToLower(filter.Category))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	return query
}

// Save creates or updates a raw material. The ledger columns are owned by
// TouchLedger and never written here.
func (r *GormRawMaterialRepository) Save(ctx context.Context, material *inventory.RawMaterial) error {
	model := models.RawMaterialModelFromDomain(material)
	err := r.db.WithContext(ctx).
		Omit("ledger_version", "last_movement_at").
		Save(model).Error
	return translateError(err)
}

// TouchLedger bumps ledger_version in place. Inside a PostgreSQL transaction
// the UPDATE holds the row lock until commit.
func (r *GormRawMaterialRepository) TouchLedger(ctx context.Context, id uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.RawMaterialModel{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"ledger_version":   gorm.Expr("ledger_version + 1"),
			"last_movement_at": at,
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return translateError(gorm.ErrRecordNotFound)
	}
	return nil
}

var _ inventory.RawMaterialRepository = (*GormRawMaterialRepository)(nil)
