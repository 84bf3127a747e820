package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kitchen/inventory/internal/domain/inventory"
	"github.com/kitchen/inventory/internal/domain/shared"
	"github.com/kitchen/inventory/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSectionRepository implements SectionRepository using GORM
type GormSectionRepository struct {
	db *gorm.DB
}

// NewGormSectionRepository creates a new GormSectionRepository
func NewGormSectionRepository(db *gorm.DB) *GormSectionRepository {
	return &GormSectionRepository{db: db}
}

// FindByID finds a section by its ID
func (r *GormSectionRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Section, error) {
	var model models.SectionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindAll lists sections by name
func (r *GormSectionRepository) FindAll(ctx context.Context, includeInactive bool) ([]inventory.Section, error) {
	var rows []models.SectionModel
	query := r.db.WithContext(ctx).Order("name ASC")
	if !includeInactive {
		query = query.Where("active = ?", true)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	out := make([]inventory.Section, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// Save creates or updates a section
func (r *GormSectionRepository) Save(ctx context.Context, section *inventory.Section) error {
	return translateError(r.db.WithContext(ctx).Save(models.SectionModelFromDomain(section)).Error)
}

// GormSectionInventoryRepository implements SectionInventoryRepository using
// GORM. Quantities only change through single-statement conditional writes.
type GormSectionInventoryRepository struct {
	db *gorm.DB
}

// NewGormSectionInventoryRepository creates a new GormSectionInventoryRepository
func NewGormSectionInventoryRepository(db *gorm.DB) *GormSectionInventoryRepository {
	return &GormSectionInventoryRepository{db: db}
}

// Find returns the allocation row of one material in one section
func (r *GormSectionInventoryRepository) Find(ctx context.Context, sectionID, materialID uuid.UUID) (*inventory.SectionInventory, error) {
	var model models.SectionInventoryModel
	err := r.db.WithContext(ctx).
		Where("section_id = ? AND raw_material_id = ?", sectionID, materialID).
		First(&model).Error
	if err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindBySection lists the allocations of a section
func (r *GormSectionInventoryRepository) FindBySection(ctx context.Context, sectionID uuid.UUID) ([]inventory.SectionInventory, error) {
	return r.find(ctx, "section_id = ?", sectionID)
}

// FindByMaterial lists the allocations of a material across sections
func (r *GormSectionInventoryRepository) FindByMaterial(ctx context.Context, materialID uuid.UUID) ([]inventory.SectionInventory, error) {
	return r.find(ctx, "raw_material_id = ?", materialID)
}

// FindAll lists every allocation row
func (r *GormSectionInventoryRepository) FindAll(ctx context.Context) ([]inventory.SectionInventory, error) {
	return r.find(ctx, "")
}

func (r *GormSectionInventoryRepository) find(ctx context.Context, where string, args ...any) ([]inventory.SectionInventory, error) {
	query := r.db.WithContext(ctx)
	if where != "" {
		query = query.Where(where, args...)
	}
	var rows []models.SectionInventoryModel
	if err := query.Order("section_id ASC").Order("raw_material_id ASC").Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	out := make([]inventory.SectionInventory, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// Allocate adds quantity to the (section, material) row with an upsert, so
// two first assignments racing on the same pair cannot create two rows.
func (r *GormSectionInventoryRepository) Allocate(ctx context.Context, sectionID, materialID uuid.UUID, quantity decimal.Decimal, at time.Time) error {
	if !quantity.IsPositive() {
		return shared.NewValidationError("quantity", "Quantity must be greater than zero")
	}
	row := &models.SectionInventoryModel{
		ID:             uuid.New(),
		SectionID:      sectionID,
		RawMaterialID:  materialID,
		Quantity:       quantity,
		LastAssignedAt: &at,
		Version:        1,
		UpdatedAt:      at,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "section_id"}, {Name: "raw_material_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"quantity":         gorm.Expr("section_inventories.quantity + excluded.quantity"),
			"version":          gorm.Expr("section_inventories.version + 1"),
			"last_assigned_at": gorm.Expr("excluded.last_assigned_at"),
			"updated_at":       gorm.Expr("excluded.updated_at"),
		}),
	}).Create(row).Error
	return translateError(err)
}

// Draw subtracts quantity only when the row holds at least that much. Zero
// rows affected means the section is short (or has no row) and nothing changed.
func (r *GormSectionInventoryRepository) Draw(ctx context.Context, sectionID, materialID uuid.UUID, quantity decimal.Decimal, at time.Time) error {
	if !quantity.IsPositive() {
		return shared.NewValidationError("quantity", "Quantity must be greater than zero")
	}
	result := r.db.WithContext(ctx).
		Model(&models.SectionInventoryModel{}).
		Where("section_id = ? AND raw_material_id = ? AND quantity >= ?", sectionID, materialID, quantity).
		UpdateColumns(map[string]any{
			"quantity":   gorm.Expr("quantity - ?", quantity),
			"version":    gorm.Expr("version + 1"),
			"updated_at": at,
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrInsufficientStock
	}
	return nil
}

// GormSectionConsumptionRepository implements SectionConsumptionRepository using GORM
type GormSectionConsumptionRepository struct {
	db *gorm.DB
}

// NewGormSectionConsumptionRepository creates a new GormSectionConsumptionRepository
func NewGormSectionConsumptionRepository(db *gorm.DB) *GormSectionConsumptionRepository {
	return &GormSectionConsumptionRepository{db: db}
}

// Create inserts a consumption record
func (r *GormSectionConsumptionRepository) Create(ctx context.Context, record *inventory.SectionConsumption) error {
	return translateError(r.db.WithContext(ctx).Create(models.SectionConsumptionModelFromDomain(record)).Error)
}

// FindAll lists consumption records, oldest first
func (r *GormSectionConsumptionRepository) FindAll(ctx context.Context, filter inventory.ConsumptionFilter) ([]inventory.SectionConsumption, error) {
	query := r.db.WithContext(ctx).Model(&models.SectionConsumptionModel{})
	if filter.SectionID != nil {
		query = query.Where("section_id = ?", *filter.SectionID)
	}
	if filter.RawMaterialID != nil {
		query = query.Where("raw_material_id = ?", *filter.RawMaterialID)
	}
	query = whereRange(query, "consumed_at", filter.Consumed)

	var rows []models.SectionConsumptionModel
	if err := query.Order("consumed_at ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	out := make([]inventory.SectionConsumption, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

var (
	_ inventory.SectionRepository            = (*GormSectionRepository)(nil)
	_ inventory.SectionInventoryRepository   = (*GormSectionInventoryRepository)(nil)
	_ inventory.SectionConsumptionRepository = (*GormSectionConsumptionRepository)(nil)
)
