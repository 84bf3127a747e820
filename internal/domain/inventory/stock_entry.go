package inventory

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kitchen/inventory/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Aggregate type constant
const AggregateTypeStockEntry = "StockEntry"

// moneyPlaces is the precision of computed costs
const moneyPlaces = 4

// ReceiptDetails describes one physical receipt of a material.
// Quantity is in base units.
type ReceiptDetails struct {
	RawMaterialID uuid.UUID
	Quantity      decimal.Decimal
	UnitCost      decimal.Decimal
	Supplier      string
	BatchNumber   string
	ExpiryDate    *time.Time
	ReceivedDate  time.Time
	ReceivedBy    string
	Notes         string
}

// StockEntry records a receipt. Its quantity only changes through Correct.
type StockEntry struct {
	shared.BaseEntity
	RawMaterialID uuid.UUID
	Quantity      decimal.Decimal
	UnitCost      decimal.Decimal
	TotalCost     decimal.Decimal
	Supplier      string
	BatchNumber   string
	ExpiryDate    *time.Time
	ReceivedDate  time.Time
	ReceivedBy    string
	Notes         string
}

// NewStockEntry creates a new stock entry with its total cost computed
func NewStockEntry(d ReceiptDetails) (*StockEntry, error) {
	if d.RawMaterialID == uuid.Nil {
		return nil, shared.NewValidationError("raw_material_id", "Raw material ID cannot be empty")
	}
	if !d.Quantity.IsPositive() {
		return nil, shared.NewValidationError("quantity", "Quantity must be greater than zero")
	}
	if err := CheckQuantityScale("quantity", d.Quantity); err != nil {
		return nil, err
	}
	if !d.UnitCost.IsPositive() {
		return nil, shared.NewValidationError("unit_cost", "Unit cost must be greater than zero")
	}
	if d.ReceivedDate.IsZero() {
		return nil, shared.NewValidationError("received_date", "Received date is required")
	}
	if strings.TrimSpace(d.ReceivedBy) == "" {
		return nil, shared.NewValidationError("received_by", "Receiver is required")
	}
	if d.ExpiryDate != nil && d.ExpiryDate.Before(d.ReceivedDate) {
		return nil, shared.NewValidationError("expiry_date", "Expiry date cannot be before the received date")
	}

	entry := &StockEntry{
		BaseEntity:    shared.NewBaseEntity(),
		RawMaterialID: d.RawMaterialID,
		Quantity:      d.Quantity,
		UnitCost:      d.UnitCost,
		Supplier:      strings.TrimSpace(d.Supplier),
		BatchNumber:   strings.TrimSpace(d.BatchNumber),
		ExpiryDate:    d.ExpiryDate,
		ReceivedDate:  d.ReceivedDate,
		ReceivedBy:    strings.TrimSpace(d.ReceivedBy),
		Notes:         d.Notes,
	}
	entry.recomputeCost()
	return entry, nil
}

// Correct applies a corrective edit. The quantity may not drop below what
// has already been consumed from the entry.
func (e *StockEntry) Correct(quantity, unitCost, consumed decimal.Decimal) error {
	if !quantity.IsPositive() {
		return shared.NewValidationError("quantity", "Quantity must be greater than zero")
	}
	if err := CheckQuantityScale("quantity", quantity); err != nil {
		return err
	}
	if !unitCost.IsPositive() {
		return shared.NewValidationError("unit_cost", "Unit cost must be greater than zero")
	}
	if quantity.LessThan(consumed) {
		return shared.NewInsufficientStockError(consumed, quantity).
			WithDetail("reason", "corrected quantity is below the consumed quantity")
	}
	e.Quantity = quantity
	e.UnitCost = unitCost
	e.recomputeCost()
	e.Touch()
	return nil
}

// IsExpired reports whether the entry's expiry date has passed
func (e *StockEntry) IsExpired(now time.Time) bool {
	return e.ExpiryDate != nil && now.After(*e.ExpiryDate)
}

// CostOf prices a quantity drawn from this entry
func (e *StockEntry) CostOf(quantity decimal.Decimal) decimal.Decimal {
	return quantity.Mul(e.UnitCost).Round(moneyPlaces)
}

func (e *StockEntry) recomputeCost() {
	e.TotalCost = e.Quantity.Mul(e.UnitCost).Round(moneyPlaces)
}
