package inventory

import (
	"github.com/google/uuid"
	"github.com/kitchen/inventory/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Event type constants
const (
	EventTypeStockReceived     = "StockReceived"
	EventTypeStockConsumed     = "StockConsumed"
	EventTypeStockTransferred  = "StockTransferred"
	EventTypeStockBelowMinimum = "StockBelowMinimum"
)

// StockReceivedEvent is raised when a receipt is recorded
type StockReceivedEvent struct {
	shared.BaseDomainEvent
	StockEntryID uuid.UUID       `json:"stock_entry_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	TotalCost    decimal.Decimal `json:"total_cost"`
	ReceivedBy   string          `json:"received_by"`
}

// NewStockReceivedEvent creates a new StockReceivedEvent
func NewStockReceivedEvent(entry *StockEntry) *StockReceivedEvent {
	return &StockReceivedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockReceived, AggregateTypeRawMaterial, entry.RawMaterialID),
		StockEntryID:    entry.ID,
		Quantity:        entry.Quantity,
		TotalCost:       entry.TotalCost,
		ReceivedBy:      entry.ReceivedBy,
	}
}

// StockConsumedEvent is raised when stock leaves the business
type StockConsumedEvent struct {
	shared.BaseDomainEvent
	MovementType MovementType    `json:"movement_type"`
	Quantity     decimal.Decimal `json:"quantity"`
	SectionID    *uuid.UUID      `json:"section_id,omitempty"`
	Reason       string          `json:"reason"`
	PerformedBy  string          `json:"performed_by"`
}

// NewStockConsumedEvent creates a new StockConsumedEvent
func NewStockConsumedEvent(materialID uuid.UUID, movementType MovementType, quantity decimal.Decimal, sectionID *uuid.UUID, reason, performedBy string) *StockConsumedEvent {
	return &StockConsumedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockConsumed, AggregateTypeRawMaterial, materialID),
		MovementType:    movementType,
		Quantity:        quantity,
		SectionID:       sectionID,
		Reason:          reason,
		PerformedBy:     performedBy,
	}
}

// StockTransferredEvent is raised when stock moves between sections
type StockTransferredEvent struct {
	shared.BaseDomainEvent
	MovementID    uuid.UUID       `json:"movement_id"`
	FromSectionID *uuid.UUID      `json:"from_section_id,omitempty"`
	ToSectionID   *uuid.UUID      `json:"to_section_id,omitempty"`
	Quantity      decimal.Decimal `json:"quantity"`
}

// NewStockTransferredEvent creates a new StockTransferredEvent
func NewStockTransferredEvent(m *StockMovement) *StockTransferredEvent {
	return &StockTransferredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockTransferred, AggregateTypeRawMaterial, m.RawMaterialID),
		MovementID:      m.ID,
		FromSectionID:   m.FromSectionID,
		ToSectionID:     m.ToSectionID,
		Quantity:        m.Quantity,
	}
}

// StockBelowMinimumEvent is raised when a write leaves a material at or below its minimum
type StockBelowMinimumEvent struct {
	shared.BaseDomainEvent
	MaterialName      string          `json:"material_name"`
	Category          string          `json:"category"`
	AvailableQuantity decimal.Decimal `json:"available_quantity"`
	MinStockLevel     decimal.Decimal `json:"min_stock_level"`
	Shortfall         decimal.Decimal `json:"shortfall"`
}

// NewStockBelowMinimumEvent creates a new StockBelowMinimumEvent
func NewStockBelowMinimumEvent(level StockLevel) *StockBelowMinimumEvent {
	return &StockBelowMinimumEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeStockBelowMinimum, AggregateTypeRawMaterial, level.RawMaterialID),
		MaterialName:      level.MaterialName,
		Category:          level.Category,
		AvailableQuantity: level.AvailableQuantity,
		MinStockLevel:     level.MinStockLevel,
		Shortfall:         level.Shortfall(),
	}
}
