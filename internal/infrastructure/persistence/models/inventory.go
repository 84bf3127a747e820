package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/kitchen/inventory/internal/domain/inventory"
	"github.com/kitchen/inventory/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// LedgerModels lists every ledger table, in dependency order
func LedgerModels() []any {
	return []any{
		&RawMaterialModel{},
		&SectionModel{},
		&StockEntryModel{},
		&StockMovementModel{},
		&SectionInventoryModel{},
		&SectionConsumptionModel{},
	}
}

// RawMaterialModel is the persistence model for RawMaterial
type RawMaterialModel struct {
	BaseModel
	Name           string          `gorm:"type:varchar(200);not null;index"`
	Category       string          `gorm:"type:varchar(100);not null;index"`
	Unit           string          `gorm:"type:varchar(20);not null"`
	UnitCost       decimal.Decimal `gorm:"type:numeric(24,10);not null"`
	Supplier       string          `gorm:"type:varchar(200)"`
	MinStockLevel  decimal.Decimal `gorm:"type:numeric(18,4);not null"`
	MaxStockLevel  decimal.Decimal `gorm:"type:numeric(18,4);not null"`
	UnitsPerPack   decimal.Decimal `gorm:"type:numeric(18,4);not null"`
	BaseUnit       string          `gorm:"type:varchar(20)"`
	Active         bool            `gorm:"not null;index"`
	LedgerVersion  int64           `gorm:"not null;default:0"`
	LastMovementAt *time.Time
}

// TableName returns the table name for GORM
func (RawMaterialModel) TableName() string {
	return "raw_materials"
}

// ToDomain converts the model to a RawMaterial
func (m *RawMaterialModel) ToDomain() *inventory.RawMaterial {
	return &inventory.RawMaterial{
		BaseAggregateRoot: shared.BaseAggregateRoot{BaseEntity: m.BaseModel.ToDomain()},
		MaterialDetails: inventory.MaterialDetails{
			Name:          m.Name,
			Category:      m.Category,
			Unit:          inventory.MeasureUnit(m.Unit),
			UnitCost:      m.UnitCost,
			Supplier:      m.Supplier,
			MinStockLevel: m.MinStockLevel,
			MaxStockLevel: m.MaxStockLevel,
			UnitsPerPack:  m.UnitsPerPack,
			BaseUnit:      inventory.MeasureUnit(m.BaseUnit),
		},
		Active:         m.Active,
		LedgerVersion:  m.LedgerVersion,
		LastMovementAt: m.LastMovementAt,
	}
}

// RawMaterialModelFromDomain creates a model from a RawMaterial
func RawMaterialModelFromDomain(r *inventory.RawMaterial) *RawMaterialModel {
	m := &RawMaterialModel{
		Name:           r.Name,
		Category:       r.Category,
		Unit:           string(r.Unit),
		UnitCost:       r.UnitCost,
		Supplier:       r.Supplier,
		MinStockLevel:  r.MinStockLevel,
		MaxStockLevel:  r.MaxStockLevel,
		UnitsPerPack:   r.UnitsPerPack,
		BaseUnit:       string(r.BaseUnit),
		Active:         r.Active,
		LedgerVersion:  r.LedgerVersion,
		LastMovementAt: r.LastMovementAt,
	}
	m.FromDomainBaseEntity(r.BaseEntity)
	return m
}

// StockEntryModel is the persistence model for StockEntry
type StockEntryModel struct {
	BaseModel
	RawMaterialID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Quantity      decimal.Decimal `gorm:"type:numeric(18,4);not null"`
	UnitCost      decimal.Decimal `gorm:"type:numeric(24,10);not null"`
	TotalCost     decimal.Decimal `gorm:"type:numeric(18,4);not null"`
	Supplier      string          `gorm:"type:varchar(200)"`
	BatchNumber   string          `gorm:"type:varchar(100)"`
	ExpiryDate    *time.Time      `gorm:"index"`
	ReceivedDate  time.Time       `gorm:"not null;index"`
	ReceivedBy    string          `gorm:"type:varchar(100);not null"`
	Notes         string          `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (StockEntryModel) TableName() string {
	return "stock_entries"
}

// ToDomain converts the model to a StockEntry
func (m *StockEntryModel) ToDomain() *inventory.StockEntry {
	return &inventory.StockEntry{
		BaseEntity:    m.BaseModel.ToDomain(),
		RawMaterialID: m.RawMaterialID,
		Quantity:      m.Quantity,
		UnitCost:      m.UnitCost,
		TotalCost:     m.TotalCost,
		Supplier:      m.Supplier,
		BatchNumber:   m.BatchNumber,
		ExpiryDate:    m.ExpiryDate,
		ReceivedDate:  m.ReceivedDate,
		ReceivedBy:    m.ReceivedBy,
		Notes:         m.Notes,
	}
}

// StockEntryModelFromDomain creates a model from a StockEntry
func StockEntryModelFromDomain(e *inventory.StockEntry) *StockEntryModel {
	m := &StockEntryModel{
		RawMaterialID: e.RawMaterialID,
		Quantity:      e.Quantity,
		UnitCost:      e.UnitCost,
		TotalCost:     e.TotalCost,
		Supplier:      e.Supplier,
		BatchNumber:   e.BatchNumber,
		ExpiryDate:    e.ExpiryDate,
		ReceivedDate:  e.ReceivedDate,
		ReceivedBy:    e.ReceivedBy,
		Notes:         e.Notes,
	}
	m.FromDomainBaseEntity(e.BaseEntity)
	return m
}

// StockMovementModel is the persistence model for StockMovement. Rows are
// insert-only.
type StockMovementModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	StockEntryID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	RawMaterialID uuid.UUID       `gorm:"type:uuid;not null;index:idx_stock_movements_material_occurred,priority:1"`
	Type          string          `gorm:"type:varchar(20);not null;index"`
	Quantity      decimal.Decimal `gorm:"type:numeric(18,4);not null"`
	FromSectionID *uuid.UUID      `gorm:"type:uuid;index"`
	ToSectionID   *uuid.UUID      `gorm:"type:uuid;index"`
	Reason        string          `gorm:"type:varchar(200)"`
	PerformedBy   string          `gorm:"type:varchar(100);not null"`
	OrderID       string          `gorm:"type:varchar(100)"`
	Notes         string          `gorm:"type:text"`
	OccurredAt    time.Time       `gorm:"not null;index:idx_stock_movements_material_occurred,priority:2"`
}

// TableName returns the table name for GORM
func (StockMovementModel) TableName() string {
	return "stock_movements"
}

// ToDomain converts the model to a StockMovement
func (m *StockMovementModel) ToDomain() *inventory.StockMovement {
	return &inventory.StockMovement{
		ID:            m.ID,
		StockEntryID:  m.StockEntryID,
		RawMaterialID: m.RawMaterialID,
		Type:          inventory.MovementType(m.Type),
		Quantity:      m.Quantity,
		FromSectionID: m.FromSectionID,
		ToSectionID:   m.ToSectionID,
		Reason:        m.Reason,
		PerformedBy:   m.PerformedBy,
		OrderID:       m.OrderID,
		Notes:         m.Notes,
		OccurredAt:    m.OccurredAt,
	}
}

// StockMovementModelFromDomain creates a model from a StockMovement
func StockMovementModelFromDomain(s *inventory.StockMovement) *StockMovementModel {
	return &StockMovementModel{
		ID:            s.ID,
		StockEntryID:  s.StockEntryID,
		RawMaterialID: s.RawMaterialID,
		Type:          string(s.Type),
		Quantity:      s.Quantity,
		FromSectionID: s.FromSectionID,
		ToSectionID:   s.ToSectionID,
		Reason:        s.Reason,
		PerformedBy:   s.PerformedBy,
		OrderID:       s.OrderID,
		Notes:         s.Notes,
		OccurredAt:    s.OccurredAt,
	}
}

// SectionModel is the persistence model for Section
type SectionModel struct {
	BaseModel
	Name        string `gorm:"type:varchar(100);not null"`
	Type        string `gorm:"type:varchar(20);not null"`
	Description string `gorm:"type:text"`
	Active      bool   `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SectionModel) TableName() string {
	return "sections"
}

// ToDomain converts the model to a Section
func (m *SectionModel) ToDomain() *inventory.Section {
	return &inventory.Section{
		BaseEntity:  m.BaseModel.ToDomain(),
		Name:        m.Name,
		Type:        inventory.SectionType(m.Type),
		Description: m.Description,
		Active:      m.Active,
	}
}

// SectionModelFromDomain creates a model from a Section
func SectionModelFromDomain(s *inventory.Section) *SectionModel {
	m := &SectionModel{
		Name:        s.Name,
		Type:        string(s.Type),
		Description: s.Description,
		Active:      s.Active,
	}
	m.FromDomainBaseEntity(s.BaseEntity)
	return m
}

// SectionInventoryModel is the persistence model for SectionInventory. One
// row per (section, material).
type SectionInventoryModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	SectionID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_section_inventories_section_material,priority:1"`
	RawMaterialID  uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_section_inventories_section_material,priority:2;index"`
	Quantity       decimal.Decimal `gorm:"type:numeric(18,4);not null"`
	LastAssignedAt *time.Time
	Version        int       `gorm:"not null;default:1"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SectionInventoryModel) TableName() string {
	return "section_inventories"
}

// ToDomain converts the model to a SectionInventory
func (m *SectionInventoryModel) ToDomain() *inventory.SectionInventory {
	return &inventory.SectionInventory{
		ID:             m.ID,
		SectionID:      m.SectionID,
		RawMaterialID:  m.RawMaterialID,
		Quantity:       m.Quantity,
		LastAssignedAt: m.LastAssignedAt,
		Version:        m.Version,
		UpdatedAt:      m.UpdatedAt,
	}
}

// SectionConsumptionModel is the persistence model for SectionConsumption
type SectionConsumptionModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	SectionID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	RawMaterialID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Quantity      decimal.Decimal `gorm:"type:numeric(18,4);not null"`
	Reason        string          `gorm:"type:varchar(200);not null"`
	ConsumedBy    string          `gorm:"type:varchar(100);not null"`
	OrderID       string          `gorm:"type:varchar(100)"`
	Notes         string          `gorm:"type:text"`
	ConsumedAt    time.Time       `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (SectionConsumptionModel) TableName() string {
	return "section_consumptions"
}

// ToDomain converts the model to a SectionConsumption
func (m *SectionConsumptionModel) ToDomain() *inventory.SectionConsumption {
	return &inventory.SectionConsumption{
		ID:            m.ID,
		SectionID:     m.SectionID,
		RawMaterialID: m.RawMaterialID,
		Quantity:      m.Quantity,
		Reason:        m.Reason,
		ConsumedBy:    m.ConsumedBy,
		OrderID:       m.OrderID,
		Notes:         m.Notes,
		ConsumedAt:    m.ConsumedAt,
	}
}

// SectionConsumptionModelFromDomain creates a model from a SectionConsumption
func SectionConsumptionModelFromDomain(c *inventory.SectionConsumption) *SectionConsumptionModel {
	return &SectionConsumptionModel{
		ID:            c.ID,
		SectionID:     c.SectionID,
		RawMaterialID: c.RawMaterialID,
		Quantity:      c.Quantity,
		Reason:        c.Reason,
		ConsumedBy:    c.ConsumedBy,
		OrderID:       c.OrderID,
		Notes:         c.Notes,
		ConsumedAt:    c.ConsumedAt,
	}
}
