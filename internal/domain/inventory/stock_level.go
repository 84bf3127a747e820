package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockLevel is the derived state of one material. It is computed from the
// ledger on every read and never stored.
type StockLevel struct {
	RawMaterialID     uuid.UUID
	MaterialName      string
	Category          string
	Unit              MeasureUnit
	TotalReceived     decimal.Decimal
	TotalConsumed     decimal.Decimal
	AvailableQuantity decimal.Decimal
	// ReservedQuantity is the part of available stock allocated to sections.
	ReservedQuantity decimal.Decimal
	// DisplayQuantity is AvailableQuantity expressed in the declared unit.
	DisplayQuantity decimal.Decimal
	MinStockLevel   decimal.Decimal
	MaxStockLevel   decimal.Decimal
	IsLowStock      bool
	// LastUpdated is when this snapshot was computed, not when the ledger changed.
	LastUpdated time.Time
	// LastMovementAt is the time of the most recent ledger write for the material.
	LastMovementAt *time.Time
}

// Unallocated returns available stock not held by any section
func (l StockLevel) Unallocated() decimal.Decimal {
	return l.AvailableQuantity.Sub(l.ReservedQuantity)
}

// Shortfall returns how far available stock sits below the minimum, or zero
func (l StockLevel) Shortfall() decimal.Decimal {
	gap := l.MinStockLevel.Sub(l.AvailableQuantity)
	if gap.IsNegative() {
		return decimal.Zero
	}
	return gap
}

// SectionStockLevel is the derived state of one section allocation
type SectionStockLevel struct {
	SectionID       uuid.UUID
	RawMaterialID   uuid.UUID
	MaterialName    string
	Unit            MeasureUnit
	Quantity        decimal.Decimal
	DisplayQuantity decimal.Decimal
	LastAssignedAt  *time.Time
	LastUpdated     time.Time
}

// EntryBalance is the unconsumed remainder of a single stock entry
type EntryBalance struct {
	Entry     StockEntry
	Consumed  decimal.Decimal
	Remaining decimal.Decimal
}

// IntegrityWarning flags ledger state that normal operation cannot produce
type IntegrityWarning struct {
	RawMaterialID uuid.UUID
	StockEntryID  *uuid.UUID
	Quantity      decimal.Decimal
	Message       string
}
