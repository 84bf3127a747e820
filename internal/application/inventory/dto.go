package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/kitchen/inventory/internal/domain/inventory"
	"github.com/shopspring/decimal"
)

// Quantities in requests are expressed in the material's declared unit
// (packs for PACKS materials). Responses carry base units plus a display value.

// StockLevelResponse represents a derived stock level in API responses
type StockLevelResponse struct {
	RawMaterialID     uuid.UUID       `json:"raw_material_id"`
	MaterialName      string          `json:"material_name"`
	Category          string          `json:"category"`
	Unit              string          `json:"unit"`
	TotalReceived     decimal.Decimal `json:"total_received"`
	TotalConsumed     decimal.Decimal `json:"total_consumed"`
	AvailableQuantity decimal.Decimal `json:"available_quantity"`
	ReservedQuantity  decimal.Decimal `json:"reserved_quantity"`
	DisplayQuantity   decimal.Decimal `json:"display_quantity"`
	// thresholds are in base units, comparable with available_quantity
	MinStockLevel     decimal.Decimal `json:"min_stock_level"`
	MaxStockLevel     decimal.Decimal `json:"max_stock_level"`
	IsLowStock        bool            `json:"is_low_stock"`
	LastUpdated       time.Time       `json:"last_updated"`
	LastMovementAt    *time.Time      `json:"last_movement_at,omitempty"`
}

// SectionStockResponse represents one material held by a section
type SectionStockResponse struct {
	SectionID       uuid.UUID       `json:"section_id"`
	RawMaterialID   uuid.UUID       `json:"raw_material_id"`
	MaterialName    string          `json:"material_name"`
	Unit            string          `json:"unit"`
	Quantity        decimal.Decimal `json:"quantity"`
	DisplayQuantity decimal.Decimal `json:"display_quantity"`
	LastAssignedAt  *time.Time      `json:"last_assigned_at,omitempty"`
	LastUpdated     time.Time       `json:"last_updated"`
}

// MaterialResponse represents a raw material in API responses
type MaterialResponse struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	Category       string          `json:"category"`
	Unit           string          `json:"unit"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
	Supplier       string          `json:"supplier,omitempty"`
	MinStockLevel  decimal.Decimal `json:"min_stock_level"`
	MaxStockLevel  decimal.Decimal `json:"max_stock_level"`
	UnitsPerPack   decimal.Decimal `json:"units_per_pack,omitempty"`
	BaseUnit       string          `json:"base_unit,omitempty"`
	Active         bool            `json:"active"`
	LedgerVersion  int64           `json:"ledger_version"`
	LastMovementAt *time.Time      `json:"last_movement_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// StockEntryResponse represents a stock entry in API responses
type StockEntryResponse struct {
	ID            uuid.UUID       `json:"id"`
	RawMaterialID uuid.UUID       `json:"raw_material_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	Supplier      string          `json:"supplier,omitempty"`
	BatchNumber   string          `json:"batch_number,omitempty"`
	ExpiryDate    *time.Time      `json:"expiry_date,omitempty"`
	ReceivedDate  time.Time       `json:"received_date"`
	ReceivedBy    string          `json:"received_by"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// StockMovementResponse represents a ledger movement in API responses
type StockMovementResponse struct {
	ID            uuid.UUID       `json:"id"`
	StockEntryID  uuid.UUID       `json:"stock_entry_id"`
	RawMaterialID uuid.UUID       `json:"raw_material_id"`
	Type          string          `json:"type"`
	Quantity      decimal.Decimal `json:"quantity"`
	FromSectionID *uuid.UUID      `json:"from_section_id,omitempty"`
	ToSectionID   *uuid.UUID      `json:"to_section_id,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	PerformedBy   string          `json:"performed_by"`
	OrderID       string          `json:"order_id,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// SectionResponse represents a section in API responses
type SectionResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Description string    `json:"description,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// ConsumptionResponse represents a section consumption record
type ConsumptionResponse struct {
	ID            uuid.UUID               `json:"id"`
	SectionID     uuid.UUID               `json:"section_id"`
	RawMaterialID uuid.UUID               `json:"raw_material_id"`
	Quantity      decimal.Decimal         `json:"quantity"`
	Reason        string                  `json:"reason"`
	ConsumedBy    string                  `json:"consumed_by"`
	OrderID       string                  `json:"order_id,omitempty"`
	ConsumedAt    time.Time               `json:"consumed_at"`
	Movements     []StockMovementResponse `json:"movements"`
}

// MaterialRequest is the body for creating or updating a raw material.
// Stock thresholds are in the declared unit, like every other request quantity.
type MaterialRequest struct {
	Name          string          `json:"name" binding:"required,min=1,max=200"`
	Category      string          `json:"category" binding:"required,min=1,max=100"`
	Unit          string          `json:"unit" binding:"required"`
	UnitCost      decimal.Decimal `json:"unit_cost" binding:"required"`
	Supplier      string          `json:"supplier" binding:"max=200"`
	MinStockLevel decimal.Decimal `json:"min_stock_level"`
	MaxStockLevel decimal.Decimal `json:"max_stock_level" binding:"required"`
	UnitsPerPack  decimal.Decimal `json:"units_per_pack"`
	BaseUnit      string          `json:"base_unit"`
}

// MaterialListFilter represents filter options for the material list
type MaterialListFilter struct {
	Search          string `form:"search"`
	Category        string `form:"category"`
	IncludeInactive bool   `form:"include_inactive"`
	Page            int    `form:"page" binding:"omitempty,min=1"`
	PageSize        int    `form:"page_size" binding:"omitempty,min=1,max=200"`
	OrderBy         string `form:"order_by"`
	OrderDir        string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// StockLevelFilter narrows the stock level snapshot
type StockLevelFilter struct {
	Category     string `form:"category"`
	LowStockOnly bool   `form:"low_stock_only"`
}

// CreateEntryRequest records a receipt. Unit cost is per declared unit.
type CreateEntryRequest struct {
	RawMaterialID uuid.UUID       `json:"raw_material_id" binding:"required"`
	Quantity      decimal.Decimal `json:"quantity" binding:"required"`
	UnitCost      decimal.Decimal `json:"unit_cost" binding:"required"`
	ReceivedDate  time.Time       `json:"received_date" binding:"required"`
	ReceivedBy    string          `json:"received_by" binding:"max=100"`
	Supplier      string          `json:"supplier" binding:"max=200"`
	BatchNumber   string          `json:"batch_number" binding:"max=100"`
	ExpiryDate    *time.Time      `json:"expiry_date"`
	Notes         string          `json:"notes" binding:"max=1000"`
}

// CorrectEntryRequest edits a receipt. Omitted fields keep their value.
type CorrectEntryRequest struct {
	Quantity    *decimal.Decimal `json:"quantity"`
	UnitCost    *decimal.Decimal `json:"unit_cost"`
	PerformedBy string           `json:"performed_by" binding:"max=100"`
	Reason      string           `json:"reason" binding:"required,max=255"`
}

// EntryListFilter represents filter options for the entry list
type EntryListFilter struct {
	RawMaterialID *uuid.UUID `form:"-"`
	Supplier      string     `form:"supplier"`
	From          *time.Time `form:"from" time_format:"2006-01-02"`
	To            *time.Time `form:"to" time_format:"2006-01-02"`
	Page          int        `form:"page" binding:"omitempty,min=1"`
	PageSize      int        `form:"page_size" binding:"omitempty,min=1,max=500"`
}

// CreateMovementRequest appends a movement against a stock entry
type CreateMovementRequest struct {
	StockEntryID  uuid.UUID       `json:"stock_entry_id" binding:"required"`
	Type          string          `json:"type" binding:"required,oneof=IN OUT TRANSFER ADJUSTMENT EXPIRED DAMAGED"`
	Quantity      decimal.Decimal `json:"quantity" binding:"required"`
	Reason        string          `json:"reason" binding:"required,max=255"`
	PerformedBy   string          `json:"performed_by" binding:"max=100"`
	FromSectionID *uuid.UUID      `json:"from_section_id"`
	ToSectionID   *uuid.UUID      `json:"to_section_id"`
	OrderID       string          `json:"order_id" binding:"max=100"`
	Notes         string          `json:"notes" binding:"max=1000"`
}

// TransferRequest moves stock between sections
type TransferRequest struct {
	StockEntryID  uuid.UUID       `json:"stock_entry_id" binding:"required"`
	FromSectionID *uuid.UUID      `json:"from_section_id"`
	ToSectionID   *uuid.UUID      `json:"to_section_id"`
	Quantity      decimal.Decimal `json:"quantity" binding:"required"`
	PerformedBy   string          `json:"performed_by" binding:"max=100"`
	Reason        string          `json:"reason" binding:"max=255"`
}

// ConsumeStockRequest takes stock out of central inventory without a section
type ConsumeStockRequest struct {
	RawMaterialID uuid.UUID       `json:"raw_material_id" binding:"required"`
	Type          string          `json:"type" binding:"omitempty,oneof=OUT EXPIRED DAMAGED"`
	Quantity      decimal.Decimal `json:"quantity" binding:"required"`
	Reason        string          `json:"reason" binding:"required,max=255"`
	PerformedBy   string          `json:"performed_by" binding:"max=100"`
	OrderID       string          `json:"order_id" binding:"max=100"`
	Notes         string          `json:"notes" binding:"max=1000"`
}

// MovementListFilter represents filter options for the movement list
type MovementListFilter struct {
	RawMaterialID *uuid.UUID `form:"-"`
	StockEntryID  *uuid.UUID `form:"-"`
	SectionID     *uuid.UUID `form:"-"`
	Type          string     `form:"type" binding:"omitempty,oneof=IN OUT TRANSFER ADJUSTMENT EXPIRED DAMAGED"`
	From          *time.Time `form:"from" time_format:"2006-01-02"`
	To            *time.Time `form:"to" time_format:"2006-01-02"`
	Page          int        `form:"page" binding:"omitempty,min=1"`
	PageSize      int        `form:"page_size" binding:"omitempty,min=1,max=500"`
}

// SectionRequest is the body for creating a section
type SectionRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=100"`
	Type        string `json:"type" binding:"omitempty,oneof=KITCHEN BAR STORAGE OTHER"`
	Description string `json:"description" binding:"max=500"`
}

// AssignStockRequest allocates central stock to a section
type AssignStockRequest struct {
	RawMaterialID uuid.UUID       `json:"raw_material_id" binding:"required"`
	Quantity      decimal.Decimal `json:"quantity" binding:"required"`
	AssignedBy    string          `json:"assigned_by" binding:"max=100"`
	Notes         string          `json:"notes" binding:"max=1000"`
}

// RecordConsumptionRequest uses up stock held by a section
type RecordConsumptionRequest struct {
	RawMaterialID uuid.UUID       `json:"raw_material_id" binding:"required"`
	Quantity      decimal.Decimal `json:"quantity" binding:"required"`
	ConsumedBy    string          `json:"consumed_by" binding:"max=100"`
	Reason        string          `json:"reason" binding:"required,max=255"`
	OrderID       string          `json:"order_id" binding:"max=100"`
	Notes         string          `json:"notes" binding:"max=1000"`
}

// ToStockLevelResponse converts a domain StockLevel to a response
func ToStockLevelResponse(l inventory.StockLevel) StockLevelResponse {
	return StockLevelResponse{
		RawMaterialID:     l.RawMaterialID,
		MaterialName:      l.MaterialName,
		Category:          l.Category,
		Unit:              l.Unit.String(),
		TotalReceived:     l.TotalReceived,
		TotalConsumed:     l.TotalConsumed,
		AvailableQuantity: l.AvailableQuantity,
		ReservedQuantity:  l.ReservedQuantity,
		DisplayQuantity:   l.DisplayQuantity,
		MinStockLevel:     l.MinStockLevel,
		MaxStockLevel:     l.MaxStockLevel,
		IsLowStock:        l.IsLowStock,
		LastUpdated:       l.LastUpdated,
		LastMovementAt:    l.LastMovementAt,
	}
}

// ToStockLevelResponses converts a slice of stock levels
func ToStockLevelResponses(levels []inventory.StockLevel) []StockLevelResponse {
	out := make([]StockLevelResponse, len(levels))
	for i, l := range levels {
		out[i] = ToStockLevelResponse(l)
	}
	return out
}

// ToSectionStockResponses converts section levels
func ToSectionStockResponses(levels []inventory.SectionStockLevel) []SectionStockResponse {
	out := make([]SectionStockResponse, len(levels))
	for i, l := range levels {
		out[i] = SectionStockResponse{
			SectionID:       l.SectionID,
			RawMaterialID:   l.RawMaterialID,
			MaterialName:    l.MaterialName,
			Unit:            l.Unit.String(),
			Quantity:        l.Quantity,
			DisplayQuantity: l.DisplayQuantity,
			LastAssignedAt:  l.LastAssignedAt,
			LastUpdated:     l.LastUpdated,
		}
	}
	return out
}

// ToMaterialResponse converts a domain RawMaterial to a response
func ToMaterialResponse(m *inventory.RawMaterial) MaterialResponse {
	return MaterialResponse{
		ID:             m.ID,
		Name:           m.Name,
		Category:       m.Category,
		Unit:           m.Unit.String(),
		UnitCost:       m.UnitCost,
		Supplier:       m.Supplier,
		MinStockLevel:  inventory.FromBaseUnits(m.MinStockLevel, m),
		MaxStockLevel:  inventory.FromBaseUnits(m.MaxStockLevel, m),
		UnitsPerPack:   m.UnitsPerPack,
		BaseUnit:       m.BaseUnit.String(),
		Active:         m.Active,
		LedgerVersion:  m.LedgerVersion,
		LastMovementAt: m.LastMovementAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// ToStockEntryResponse converts a domain StockEntry to a response
func ToStockEntryResponse(e *inventory.StockEntry) StockEntryResponse {
	return StockEntryResponse{
		ID:            e.ID,
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
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

// ToStockMovementResponse converts a domain StockMovement to a response
func ToStockMovementResponse(m *inventory.StockMovement) StockMovementResponse {
	return StockMovementResponse{
		ID:            m.ID,
		StockEntryID:  m.StockEntryID,
		RawMaterialID: m.RawMaterialID,
		Type:          m.Type.String(),
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

// ToStockMovementResponses converts a slice of movements
func ToStockMovementResponses(movements []inventory.StockMovement) []StockMovementResponse {
	out := make([]StockMovementResponse, len(movements))
	for i := range movements {
		out[i] = ToStockMovementResponse(&movements[i])
	}
	return out
}

// ToSectionResponse converts a domain Section to a response
func ToSectionResponse(s *inventory.Section) SectionResponse {
	return SectionResponse{
		ID:          s.ID,
		Name:        s.Name,
		Type:        string(s.Type),
		Description: s.Description,
		Active:      s.Active,
		CreatedAt:   s.CreatedAt,
	}
}

func (r MaterialRequest) toDetails() inventory.MaterialDetails {
	return inventory.MaterialDetails{
		Name:          r.Name,
		Category:      r.Category,
		Unit:          inventory.MeasureUnit(r.Unit),
		UnitCost:      r.UnitCost,
		Supplier:      r.Supplier,
		MinStockLevel: r.MinStockLevel,
		MaxStockLevel: r.MaxStockLevel,
		UnitsPerPack:  r.UnitsPerPack,
		BaseUnit:      inventory.MeasureUnit(r.BaseUnit),
	}.WithThresholdsInBaseUnits()
}
