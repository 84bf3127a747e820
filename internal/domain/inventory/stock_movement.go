package inventory

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kitchen/inventory/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// MovementType represents the kind of ledger event
type MovementType string

const (
	MovementIn         MovementType = "IN"
	MovementOut        MovementType = "OUT"
	MovementTransfer   MovementType = "TRANSFER"
	MovementAdjustment MovementType = "ADJUSTMENT"
	MovementExpired    MovementType = "EXPIRED"
	MovementDamaged    MovementType = "DAMAGED"
)

// String returns the string representation of MovementType
func (t MovementType) String() string {
	return string(t)
}

// IsValid returns true if the movement type is valid
func (t MovementType) IsValid() bool {
	switch t {
	case MovementIn, MovementOut, MovementTransfer, MovementAdjustment, MovementExpired, MovementDamaged:
		return true
	}
	return false
}

// IsConsuming returns true if the movement takes stock out of the business
func (t MovementType) IsConsuming() bool {
	switch t {
	case MovementOut, MovementExpired, MovementDamaged:
		return true
	}
	return false
}

// ConsumingMovementTypes lists the types that reduce available quantity
func ConsumingMovementTypes() []MovementType {
	return []MovementType{MovementOut, MovementExpired, MovementDamaged}
}

// StockMovement is an immutable ledger event against a stock entry.
// Quantity is always a non-negative magnitude in base units.
type StockMovement struct {
	ID            uuid.UUID
	StockEntryID  uuid.UUID
	RawMaterialID uuid.UUID
	Type          MovementType
	Quantity      decimal.Decimal
	FromSectionID *uuid.UUID
	ToSectionID   *uuid.UUID
	Reason        string
	PerformedBy   string
	OrderID       string
	Notes         string
	OccurredAt    time.Time
}

// NewStockMovement creates a new movement after validating it
func NewStockMovement(
	entry *StockEntry,
	movementType MovementType,
	quantity decimal.Decimal,
	reason string,
	performedBy string,
) (*StockMovement, error) {
	if entry == nil {
		return nil, shared.NewValidationError("stock_entry_id", "Stock entry is required")
	}
	if !movementType.IsValid() {
		return nil, shared.NewValidationError("type", "Invalid movement type "+movementType.String())
	}
	if quantity.IsNegative() {
		return nil, shared.NewValidationError("quantity", "Quantity cannot be negative")
	}
	if movementType != MovementAdjustment && quantity.IsZero() {
		return nil, shared.NewValidationError("quantity", "Quantity must be greater than zero")
	}
	if err := CheckQuantityScale("quantity", quantity); err != nil {
		return nil, err
	}
	if strings.TrimSpace(performedBy) == "" {
		return nil, shared.NewValidationError("performed_by", "Performer is required")
	}

	return &StockMovement{
		ID:            uuid.New(),
		StockEntryID:  entry.ID,
		RawMaterialID: entry.RawMaterialID,
		Type:          movementType,
		Quantity:      quantity,
		Reason:        strings.TrimSpace(reason),
		PerformedBy:   strings.TrimSpace(performedBy),
		OccurredAt:    time.Now().UTC(),
	}, nil
}

// NewTransferMovement creates a TRANSFER between sections. Either side may be
// nil (assignment from central stock has no source section) but not both.
func NewTransferMovement(
	entry *StockEntry,
	from, to *uuid.UUID,
	quantity decimal.Decimal,
	reason string,
	performedBy string,
) (*StockMovement, error) {
	if from == nil && to == nil {
		return nil, shared.NewValidationError("to_section_id", "Transfer needs a source or destination section")
	}
	if from != nil && to != nil && *from == *to {
		return nil, shared.NewValidationError("to_section_id", "Source and destination sections must differ")
	}
	m, err := NewStockMovement(entry, MovementTransfer, quantity, reason, performedBy)
	if err != nil {
		return nil, err
	}
	m.FromSectionID = from
	m.ToSectionID = to
	return m, nil
}

// WithOrder returns a copy referencing a customer order
func (m StockMovement) WithOrder(orderID string) *StockMovement {
	m.OrderID = strings.TrimSpace(orderID)
	return &m
}

// WithNotes returns a copy carrying free text notes
func (m StockMovement) WithNotes(notes string) *StockMovement {
	m.Notes = notes
	return &m
}

// WithOccurredAt returns a copy stamped with the given time
func (m StockMovement) WithOccurredAt(at time.Time) *StockMovement {
	m.OccurredAt = at
	return &m
}

// SignedQuantity returns the effect of the movement on central available stock
func (m *StockMovement) SignedQuantity() decimal.Decimal {
	if m.Type.IsConsuming() {
		return m.Quantity.Neg()
	}
	return decimal.Zero
}
