package inventory

import (
	"fmt"

	"github.com/kitchen/inventory/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// MeasureUnit is the unit a raw material is counted in
type MeasureUnit string

const (
	UnitKilogram   MeasureUnit = "KG"
	UnitGram       MeasureUnit = "G"
	UnitLiter      MeasureUnit = "L"
	UnitMilliliter MeasureUnit = "ML"
	UnitPieces     MeasureUnit = "PIECES"
	UnitPacks      MeasureUnit = "PACKS"
	UnitBoxes      MeasureUnit = "BOXES"
	UnitBottles    MeasureUnit = "BOTTLES"
	UnitCans       MeasureUnit = "CANS"
	UnitDozen      MeasureUnit = "DOZEN"
)

const (
	// QuantityPlaces is the scale of every stored quantity column. Finer
	// quantities are rejected, never rounded.
	QuantityPlaces = 4
	// CostPlaces is the scale of stored unit costs. A pack price divided
	// into base units is rounded to it once, before it is stored.
	CostPlaces = 10

	// displayPlaces is the precision used when presenting converted quantities.
	displayPlaces = 4
)

// String returns the string representation of MeasureUnit
func (u MeasureUnit) String() string {
	return string(u)
}

// IsValid returns true if the unit belongs to the supported set
func (u MeasureUnit) IsValid() bool {
	switch u {
	case UnitKilogram, UnitGram, UnitLiter, UnitMilliliter, UnitPieces,
		UnitPacks, UnitBoxes, UnitBottles, UnitCans, UnitDozen:
		return true
	}
	return false
}

// IsPackaged returns true for units that wrap a number of base units
func (u MeasureUnit) IsPackaged() bool {
	return u == UnitPacks || u == UnitBoxes
}

// PackDescriptor carries what conversion needs to know about a material.
// RawMaterial satisfies it.
type PackDescriptor interface {
	MeasureUnit() MeasureUnit
	PackSize() decimal.Decimal
}

// packFactor returns the number of base units in one declared unit.
// Non-packaged units and unset or non-positive pack sizes yield 1.
func packFactor(d PackDescriptor) decimal.Decimal {
	if d == nil || !d.MeasureUnit().IsPackaged() {
		return decimal.NewFromInt(1)
	}
	size := d.PackSize()
	if !size.IsPositive() {
		return decimal.NewFromInt(1)
	}
	return size
}

// ToBaseUnits converts a quantity entered in the material's declared unit
// into base units. All ledger quantities are stored in base units.
func ToBaseUnits(quantity decimal.Decimal, d PackDescriptor) decimal.Decimal {
	return quantity.Mul(packFactor(d))
}

// FromBaseUnits converts a base unit quantity back into the material's
// declared unit. It is the exact inverse of ToBaseUnits.
func FromBaseUnits(quantity decimal.Decimal, d PackDescriptor) decimal.Decimal {
	factor := packFactor(d)
	if factor.Equal(decimal.NewFromInt(1)) {
		return quantity
	}
	return quantity.Div(factor)
}

// DisplayQuantity converts a base unit quantity for presentation, rounded
// to four decimal places. Never store its result.
func DisplayQuantity(quantity decimal.Decimal, d PackDescriptor) decimal.Decimal {
	return FromBaseUnits(quantity, d).Round(displayPlaces)
}

// UnitCostInBaseUnits converts a price per declared unit (per pack, per box)
// into a price per base unit, rounded to CostPlaces.
func UnitCostInBaseUnits(cost decimal.Decimal, d PackDescriptor) decimal.Decimal {
	return FromBaseUnits(cost, d).Round(CostPlaces)
}

// CheckQuantityScale rejects a base unit quantity with more decimal places
// than the ledger stores.
func CheckQuantityScale(field string, quantity decimal.Decimal) error {
	if !quantity.Equal(quantity.Truncate(QuantityPlaces)) {
		return shared.NewValidationError(field,
			fmt.Sprintf("Quantity cannot have more than %d decimal places in base units", QuantityPlaces))
	}
	return nil
}
