package inventory

import (
	"strings"
	"time"

	"github.com/kitchen/inventory/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Aggregate type constant
const AggregateTypeRawMaterial = "RawMaterial"

// MaterialDetails holds the editable attributes of a raw material.
// Stock thresholds are expressed in base units.
type MaterialDetails struct {
	Name          string
	Category      string
	Unit          MeasureUnit
	UnitCost      decimal.Decimal
	Supplier      string
	MinStockLevel decimal.Decimal
	MaxStockLevel decimal.Decimal
	UnitsPerPack  decimal.Decimal
	BaseUnit      MeasureUnit
}

// Validate checks the material invariants
func (d MaterialDetails) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return shared.NewValidationError("name", "Material name cannot be empty")
	}
	if strings.TrimSpace(d.Category) == "" {
		return shared.NewValidationError("category", "Material category cannot be empty")
	}
	if !d.Unit.IsValid() {
		return shared.NewValidationError("unit", "Unsupported unit "+d.Unit.String())
	}
	if !d.UnitCost.IsPositive() {
		return shared.NewValidationError("unit_cost", "Unit cost must be greater than zero")
	}
	if !d.UnitCost.Equal(d.UnitCost.Truncate(CostPlaces)) {
		return shared.NewValidationError("unit_cost", "Unit cost cannot have more than 10 decimal places")
	}
	if d.MinStockLevel.IsNegative() {
		return shared.NewValidationError("min_stock_level", "Minimum stock level cannot be negative")
	}
	if err := CheckQuantityScale("min_stock_level", d.MinStockLevel); err != nil {
		return err
	}
	if err := CheckQuantityScale("max_stock_level", d.MaxStockLevel); err != nil {
		return err
	}
	if !d.MaxStockLevel.GreaterThan(d.MinStockLevel) {
		return shared.NewValidationError("max_stock_level", "Maximum stock level must be greater than minimum stock level")
	}
	if d.Unit.IsPackaged() {
		if d.UnitsPerPack.IsNegative() {
			return shared.NewValidationError("units_per_pack", "Units per pack cannot be negative")
		}
		if err := CheckQuantityScale("units_per_pack", d.UnitsPerPack); err != nil {
			return err
		}
		if d.BaseUnit != "" && (!d.BaseUnit.IsValid() || d.BaseUnit.IsPackaged()) {
			return shared.NewValidationError("base_unit", "Base unit must be a non-packaged unit")
		}
	}
	return nil
}

// MeasureUnit returns the declared unit, normalized
func (d MaterialDetails) MeasureUnit() MeasureUnit {
	return MeasureUnit(strings.ToUpper(strings.TrimSpace(string(d.Unit))))
}

// PackSize returns the number of base units per pack or box
func (d MaterialDetails) PackSize() decimal.Decimal {
	return d.UnitsPerPack
}

// WithThresholdsInBaseUnits converts stock thresholds given in the declared
// unit (packs, boxes) into base units.
func (d MaterialDetails) WithThresholdsInBaseUnits() MaterialDetails {
	d.MinStockLevel = ToBaseUnits(d.MinStockLevel, d)
	d.MaxStockLevel = ToBaseUnits(d.MaxStockLevel, d)
	return d
}

// RawMaterial is an ingredient or supply tracked by the ledger
type RawMaterial struct {
	shared.BaseAggregateRoot
	MaterialDetails
	Active bool
	// LedgerVersion increases with every ledger write against the material.
	LedgerVersion  int64
	LastMovementAt *time.Time
}

// NewRawMaterial creates a new active raw material
func NewRawMaterial(details MaterialDetails) (*RawMaterial, error) {
	details = normalizeDetails(details)
	if err := details.Validate(); err != nil {
		return nil, err
	}
	return &RawMaterial{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		MaterialDetails:   details,
		Active:            true,
	}, nil
}

// Update replaces the editable attributes after validating them
func (m *RawMaterial) Update(details MaterialDetails) error {
	details = normalizeDetails(details)
	if err := details.Validate(); err != nil {
		return err
	}
	m.MaterialDetails = details
	m.Touch()
	return nil
}

// Deactivate soft-deletes the material. Entries keep referencing it.
func (m *RawMaterial) Deactivate() {
	m.Active = false
	m.Touch()
}

// Activate restores a soft-deleted material
func (m *RawMaterial) Activate() {
	m.Active = true
	m.Touch()
}

// MeasureUnit returns the declared unit
func (m *RawMaterial) MeasureUnit() MeasureUnit {
	return m.Unit
}

// PackSize returns the number of base units per pack or box
func (m *RawMaterial) PackSize() decimal.Decimal {
	return m.UnitsPerPack
}

// IsLowStock reports whether the given available quantity is at or below the minimum
func (m *RawMaterial) IsLowStock(available decimal.Decimal) bool {
	return available.LessThanOrEqual(m.MinStockLevel)
}

// RecordLedgerWrite bumps the ledger version
func (m *RawMaterial) RecordLedgerWrite(at time.Time) {
	m.LedgerVersion++
	m.LastMovementAt = &at
}

func normalizeDetails(d MaterialDetails) MaterialDetails {
	d.Name = strings.TrimSpace(d.Name)
	d.Category = strings.TrimSpace(d.Category)
	d.Supplier = strings.TrimSpace(d.Supplier)
	d.Unit = MeasureUnit(strings.ToUpper(strings.TrimSpace(string(d.Unit))))
	d.BaseUnit = MeasureUnit(strings.ToUpper(strings.TrimSpace(string(d.BaseUnit))))
	if !d.Unit.IsPackaged() {
		d.UnitsPerPack = decimal.Zero
		d.BaseUnit = ""
	}
	return d
}
