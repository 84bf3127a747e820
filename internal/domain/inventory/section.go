package inventory

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kitchen/inventory/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// SectionType classifies a sub-location
type SectionType string

const (
	SectionKitchen SectionType = "KITCHEN"
	SectionBar     SectionType = "BAR"
	SectionStorage SectionType = "STORAGE"
	SectionOther   SectionType = "OTHER"
)

// IsValid returns true if the section type is valid
func (t SectionType) IsValid() bool {
	switch t {
	case SectionKitchen, SectionBar, SectionStorage, SectionOther:
		return true
	}
	return false
}

// Section is a physical or logical sub-location with its own allocation
type Section struct {
	shared.BaseEntity
	Name        string
	Type        SectionType
	Description string
	Active      bool
}

// NewSection creates a new active section
func NewSection(name string, sectionType SectionType, description string) (*Section, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewValidationError("name", "Section name cannot be empty")
	}
	if sectionType == "" {
		sectionType = SectionOther
	}
	if !sectionType.IsValid() {
		return nil, shared.NewValidationError("type", "Invalid section type "+string(sectionType))
	}
	return &Section{
		BaseEntity:  shared.NewBaseEntity(),
		Name:        name,
		Type:        sectionType,
		Description: strings.TrimSpace(description),
		Active:      true,
	}, nil
}

// SectionInventory is the quantity of one material allocated to one section.
// It is a sub-ledger of its own and never a view over central stock.
type SectionInventory struct {
	ID             uuid.UUID
	SectionID      uuid.UUID
	RawMaterialID  uuid.UUID
	Quantity       decimal.Decimal
	LastAssignedAt *time.Time
	Version        int
	UpdatedAt      time.Time
}

// NewSectionInventory creates an empty allocation row
func NewSectionInventory(sectionID, materialID uuid.UUID) *SectionInventory {
	return &SectionInventory{
		ID:            uuid.New(),
		SectionID:     sectionID,
		RawMaterialID: materialID,
		Quantity:      decimal.Zero,
		Version:       1,
		UpdatedAt:     time.Now().UTC(),
	}
}

// Allocate adds stock to the section
func (s *SectionInventory) Allocate(quantity decimal.Decimal, at time.Time) error {
	if !quantity.IsPositive() {
		return shared.NewValidationError("quantity", "Quantity must be greater than zero")
	}
	if err := CheckQuantityScale("quantity", quantity); err != nil {
		return err
	}
	s.Quantity = s.Quantity.Add(quantity)
	s.LastAssignedAt = &at
	s.Version++
	s.UpdatedAt = at
	return nil
}

// Draw removes stock from the section. It fails without side effects when
// the section holds less than requested.
func (s *SectionInventory) Draw(quantity decimal.Decimal, at time.Time) error {
	if !quantity.IsPositive() {
		return shared.NewValidationError("quantity", "Quantity must be greater than zero")
	}
	if err := CheckQuantityScale("quantity", quantity); err != nil {
		return err
	}
	if quantity.GreaterThan(s.Quantity) {
		return shared.NewInsufficientStockError(quantity, s.Quantity).
			WithDetail("section_id", s.SectionID.String())
	}
	s.Quantity = s.Quantity.Sub(quantity)
	s.Version++
	s.UpdatedAt = at
	return nil
}

// SectionConsumption records stock used up inside a section
type SectionConsumption struct {
	ID            uuid.UUID
	SectionID     uuid.UUID
	RawMaterialID uuid.UUID
	Quantity      decimal.Decimal
	Reason        string
	ConsumedBy    string
	OrderID       string
	Notes         string
	ConsumedAt    time.Time
}

// NewSectionConsumption creates a consumption record
func NewSectionConsumption(
	sectionID, materialID uuid.UUID,
	quantity decimal.Decimal,
	reason, consumedBy, orderID, notes string,
) (*SectionConsumption, error) {
	if !quantity.IsPositive() {
		return nil, shared.NewValidationError("quantity", "Quantity must be greater than zero")
	}
	if err := CheckQuantityScale("quantity", quantity); err != nil {
		return nil, err
	}
	if strings.TrimSpace(consumedBy) == "" {
		return nil, shared.NewValidationError("consumed_by", "Consumer is required")
	}
	if strings.TrimSpace(reason) == "" {
		return nil, shared.NewValidationError("reason", "Reason is required")
	}
	return &SectionConsumption{
		ID:            uuid.New(),
		SectionID:     sectionID,
		RawMaterialID: materialID,
		Quantity:      quantity,
		Reason:        strings.TrimSpace(reason),
		ConsumedBy:    strings.TrimSpace(consumedBy),
		OrderID:       strings.TrimSpace(orderID),
		Notes:         notes,
		ConsumedAt:    time.Now().UTC(),
	}, nil
}
