package inventory

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kitchen/inventory/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSection(t *testing.T) {
	s, err := NewSection(" Hot line ", SectionKitchen, "")
	require.NoError(t, err)
	assert.Equal(t, "Hot line", s.Name)
	assert.True(t, s.Active)

	s, err = NewSection("Cellar", "", "")
	require.NoError(t, err)
	assert.Equal(t, SectionOther, s.Type)

	_, err = NewSection("", SectionBar, "")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = NewSection("Roof", "GARDEN", "")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestSectionInventory_AllocateAndDraw(t *testing.T) {
	now := time.Now().UTC()
	inv := NewSectionInventory(uuid.New(), uuid.New())

	require.NoError(t, inv.Allocate(decimal.NewFromInt(20), now))
	assert.Equal(t, "20", inv.Quantity.String())
	assert.Equal(t, 2, inv.Version)

	err := inv.Draw(decimal.NewFromInt(25), now)
	assert.ErrorIs(t, err, shared.ErrInsufficientStock)
	assert.Equal(t, "20", inv.Quantity.String(), "failed draw changes nothing")

	require.NoError(t, inv.Draw(decimal.NewFromInt(20), now))
	assert.True(t, inv.Quantity.IsZero())

	assert.ErrorIs(t, inv.Allocate(decimal.Zero, now), shared.ErrInvalidInput)

	require.NoError(t, inv.Allocate(decimal.NewFromInt(1), now))
	assert.ErrorIs(t, inv.Draw(decimal.RequireFromString("0.00004"), now), shared.ErrInvalidInput)
	assert.Equal(t, "1", inv.Quantity.String())
}

func TestNewSectionConsumption(t *testing.T) {
	c, err := NewSectionConsumption(uuid.New(), uuid.New(), decimal.NewFromInt(3), "prep", "chef", "ORD-7", "")
	require.NoError(t, err)
	assert.Equal(t, "ORD-7", c.OrderID)

	_, err = NewSectionConsumption(uuid.New(), uuid.New(), decimal.Zero, "prep", "chef", "", "")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = NewSectionConsumption(uuid.New(), uuid.New(), decimal.NewFromInt(1), "", "chef", "", "")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}
