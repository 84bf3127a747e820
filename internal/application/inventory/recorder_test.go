package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kitchen/inventory/internal/domain/inventory"
	"github.com/kitchen/inventory/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// MockEventPublisher is a mock implementation of shared.EventPublisher
type MockEventPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{
		events: make([]shared.DomainEvent, 0),
	}
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *MockEventPublisher) GetEventsByType(eventType string) []shared.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]shared.DomainEvent, 0)
	for _, e := range m.events {
		if e.EventType() == eventType {
			result = append(result, e)
		}
	}
	return result
}

// recordingMetrics captures what the recorder reports
type recordingMetrics struct {
	mu         sync.Mutex
	movements  map[string]int
	rejections []string
	lowStock   int
}

func (m *recordingMetrics) MovementRecorded(_ context.Context, movementType string, _ decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.movements == nil {
		m.movements = make(map[string]int)
	}
	m.movements[movementType]++
}

func (m *recordingMetrics) WriteRejected(_ context.Context, operation, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejections = append(m.rejections, operation+":"+code)
}

func (m *recordingMetrics) LowStockDetected(context.Context, uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lowStock++
}

type ledgerFixture struct {
	ledger   *memLedger
	recorder *MovementRecorder
	service  *StockService
	events   *MockEventPublisher
	metrics  *recordingMetrics
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	l := newMemLedger()
	logger := zaptest.NewLogger(t)

	events := NewMockEventPublisher()
	metrics := &recordingMetrics{}
	recorder := NewMovementRecorder(memScope{l}, logger)
	recorder.SetEventPublisher(events)
	recorder.SetMetrics(metrics)

	return &ledgerFixture{
		ledger:   l,
		recorder: recorder,
		service:  NewStockService(l.repos(), logger),
		events:   events,
		metrics:  metrics,
	}
}

var day0 = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (f *ledgerFixture) material(t *testing.T, name, unit string, minLevel int64, unitsPerPack int64) uuid.UUID {
	t.Helper()
	resp, err := f.service.CreateMaterial(context.Background(), MaterialRequest{
		Name:          name,
		Category:      "Dairy",
		Unit:          unit,
		UnitCost:      dec("2"),
		MinStockLevel: decimal.NewFromInt(minLevel),
		MaxStockLevel: decimal.NewFromInt(1000),
		UnitsPerPack:  decimal.NewFromInt(unitsPerPack),
	})
	require.NoError(t, err)
	return resp.ID
}

func (f *ledgerFixture) receive(t *testing.T, materialID uuid.UUID, qty string, received time.Time, expiry *time.Time) *StockEntryResponse {
	t.Helper()
	resp, err := f.recorder.RecordReceipt(context.Background(), CreateEntryRequest{
		RawMaterialID: materialID,
		Quantity:      dec(qty),
		UnitCost:      dec("2"),
		ReceivedDate:  received,
		ReceivedBy:    "maria",
		ExpiryDate:    expiry,
	})
	require.NoError(t, err)
	return resp
}

func (f *ledgerFixture) section(t *testing.T, name string) uuid.UUID {
	t.Helper()
	resp, err := f.service.CreateSection(context.Background(), SectionRequest{Name: name, Type: "KITCHEN"})
	require.NoError(t, err)
	return resp.ID
}

func (f *ledgerFixture) level(t *testing.T, materialID uuid.UUID) *StockLevelResponse {
	t.Helper()
	level, err := f.service.GetStockLevel(context.Background(), materialID)
	require.NoError(t, err)
	return level
}

func (f *ledgerFixture) sectionQuantity(t *testing.T, sectionID, materialID uuid.UUID) string {
	t.Helper()
	rows, err := f.service.GetSectionInventory(context.Background(), sectionID)
	require.NoError(t, err)
	for _, r := range rows {
		if r.RawMaterialID == materialID {
			return r.Quantity.String()
		}
	}
	return "0"
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var de *shared.DomainError
	require.True(t, errors.As(err, &de), "expected a domain error, got %v", err)
	assert.Equal(t, code, de.Code)
}

func TestRecordReceipt(t *testing.T) {
	ctx := context.Background()

	t.Run("converts packs into base units", func(t *testing.T) {
		f := newLedgerFixture(t)
		eggs := f.material(t, "Eggs", "PACKS", 0, 12)

		entry, err := f.recorder.RecordReceipt(ctx, CreateEntryRequest{
			RawMaterialID: eggs,
			Quantity:      dec("5"),
			UnitCost:      dec("24"),
			ReceivedDate:  day0,
			ReceivedBy:    "maria",
			BatchNumber:   "B-1",
		})
		require.NoError(t, err)
		assert.Equal(t, "60", entry.Quantity.String())
		assert.Equal(t, "2", entry.UnitCost.String())
		assert.Equal(t, "120", entry.TotalCost.String())

		level := f.level(t, eggs)
		assert.Equal(t, "60", level.AvailableQuantity.String())
		assert.Equal(t, "5", level.DisplayQuantity.String())

		movements, total, err := f.service.ListMovements(ctx, MovementListFilter{StockEntryID: &entry.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, "IN", movements[0].Type)
		assert.Equal(t, "60", movements[0].Quantity.String())

		assert.Len(t, f.events.GetEventsByType(inventory.EventTypeStockReceived), 1)
		assert.Equal(t, 1, f.metrics.movements["IN"])
	})

	t.Run("keeps a repeating pack price at cost scale", func(t *testing.T) {
		f := newLedgerFixture(t)
		eggs := f.material(t, "Eggs", "PACKS", 0, 12)

		entry, err := f.recorder.RecordReceipt(ctx, CreateEntryRequest{
			RawMaterialID: eggs,
			Quantity:      dec("5"),
			UnitCost:      dec("10"),
			ReceivedDate:  day0,
			ReceivedBy:    "maria",
		})
		require.NoError(t, err)
		assert.Equal(t, "0.8333333333", entry.UnitCost.String())
		assert.Equal(t, "50", entry.TotalCost.String())

		stored, err := f.service.GetEntry(ctx, entry.ID)
		require.NoError(t, err)
		assert.True(t, entry.UnitCost.Equal(stored.UnitCost))
	})

	t.Run("bumps the material ledger version", func(t *testing.T) {
		f := newLedgerFixture(t)
		milk := f.material(t, "Milk", "L", 0, 0)
		f.receive(t, milk, "10", day0, nil)
		f.receive(t, milk, "10", day0, nil)

		m, err := f.service.GetMaterial(ctx, milk)
		require.NoError(t, err)
		assert.Equal(t, int64(2), m.LedgerVersion)
		assert.NotNil(t, m.LastMovementAt)
	})

	t.Run("rejects invalid receipts without writing", func(t *testing.T) {
		f := newLedgerFixture(t)
		milk := f.material(t, "Milk", "L", 0, 0)
		retired := f.material(t, "Cream", "L", 0, 0)
		require.NoError(t, f.service.DeactivateMaterial(ctx, retired))

		tests := []struct {
			name string
			req  CreateEntryRequest
			code string
		}{
			{"unknown material", CreateEntryRequest{RawMaterialID: uuid.New(), Quantity: dec("1"), UnitCost: dec("1"), ReceivedDate: day0, ReceivedBy: "maria"}, shared.CodeNotFound},
			{"inactive material", CreateEntryRequest{RawMaterialID: retired, Quantity: dec("1"), UnitCost: dec("1"), ReceivedDate: day0, ReceivedBy: "maria"}, shared.CodeInvalidInput},
			{"zero quantity", CreateEntryRequest{RawMaterialID: milk, Quantity: decimal.Zero, UnitCost: dec("1"), ReceivedDate: day0, ReceivedBy: "maria"}, shared.CodeInvalidInput},
			{"negative unit cost", CreateEntryRequest{RawMaterialID: milk, Quantity: dec("1"), UnitCost: dec("-1"), ReceivedDate: day0, ReceivedBy: "maria"}, shared.CodeInvalidInput},
			{"missing receiver", CreateEntryRequest{RawMaterialID: milk, Quantity: dec("1"), UnitCost: dec("1"), ReceivedDate: day0}, shared.CodeInvalidInput},
			{"quantity finer than stored", CreateEntryRequest{RawMaterialID: milk, Quantity: dec("0.00004"), UnitCost: dec("1"), ReceivedDate: day0, ReceivedBy: "maria"}, shared.CodeInvalidInput},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.recorder.RecordReceipt(ctx, tt.req)
				assertCode(t, err, tt.code)
				assert.Equal(t, 0, f.ledger.movementCount())
			})
		}

		m, err := f.service.GetMaterial(ctx, retired)
		require.NoError(t, err)
		assert.Equal(t, int64(0), m.LedgerVersion)
	})
}

func TestConsumeStock(t *testing.T) {
	ctx := context.Background()

	t.Run("receive 100 consume 95 leaves 5 and low stock", func(t *testing.T) {
		f := newLedgerFixture(t)
		flour := f.material(t, "Flour", "KG", 10, 0)
		f.receive(t, flour, "100", day0, nil)

		movements, err := f.recorder.ConsumeStock(ctx, ConsumeStockRequest{
			RawMaterialID: flour,
			Quantity:      dec("95"),
			Reason:        "bread",
			PerformedBy:   "chef",
		})
		require.NoError(t, err)
		require.Len(t, movements, 1)
		assert.Equal(t, "OUT", movements[0].Type)

		level := f.level(t, flour)
		assert.Equal(t, "5", level.AvailableQuantity.String())
		assert.True(t, level.IsLowStock)

		assert.Len(t, f.events.GetEventsByType(inventory.EventTypeStockConsumed), 1)
		lows := f.events.GetEventsByType(inventory.EventTypeStockBelowMinimum)
		require.Len(t, lows, 1)
		low := lows[0].(*inventory.StockBelowMinimumEvent)
		assert.Equal(t, "5", low.Shortfall.String())
		assert.Equal(t, 1, f.metrics.lowStock)
	})

	t.Run("insufficient stock appends nothing", func(t *testing.T) {
		f := newLedgerFixture(t)
		flour := f.material(t, "Flour", "KG", 0, 0)
		f.receive(t, flour, "10", day0, nil)
		before := f.ledger.movementCount()

		_, err := f.recorder.ConsumeStock(ctx, ConsumeStockRequest{
			RawMaterialID: flour,
			Quantity:      dec("11"),
			Reason:        "bread",
			PerformedBy:   "chef",
		})
		assertCode(t, err, shared.CodeInsufficientStock)
		assert.True(t, errors.Is(err, shared.ErrInsufficientStock))
		assert.Equal(t, before, f.ledger.movementCount())
		assert.Equal(t, "10", f.level(t, flour).AvailableQuantity.String())
		assert.Contains(t, f.metrics.rejections, "consume_stock:INSUFFICIENT_STOCK")
	})

	t.Run("quantity finer than the ledger stores is rejected", func(t *testing.T) {
		f := newLedgerFixture(t)
		flour := f.material(t, "Flour", "KG", 0, 0)
		f.receive(t, flour, "10", day0, nil)
		before := f.ledger.movementCount()

		_, err := f.recorder.ConsumeStock(ctx, ConsumeStockRequest{
			RawMaterialID: flour,
			Quantity:      dec("0.00004"),
			Reason:        "garnish",
			PerformedBy:   "chef",
		})
		assertCode(t, err, shared.CodeInvalidInput)
		assert.Equal(t, before, f.ledger.movementCount())
		assert.Equal(t, "10", f.level(t, flour).AvailableQuantity.String())
	})

	t.Run("draws the earliest expiry first", func(t *testing.T) {
		f := newLedgerFixture(t)
		milk := f.material(t, "Milk", "L", 0, 0)
		late := day0.AddDate(0, 0, 30)
		early := day0.AddDate(0, 0, 10)
		first := f.receive(t, milk, "10", day0, &late)
		second := f.receive(t, milk, "10", day0.AddDate(0, 0, 1), &early)

		movements, err := f.recorder.ConsumeStock(ctx, ConsumeStockRequest{
			RawMaterialID: milk,
			Type:          "EXPIRED",
			Quantity:      dec("15"),
			Reason:        "past date",
			PerformedBy:   "chef",
		})
		require.NoError(t, err)
		require.Len(t, movements, 2)
		assert.Equal(t, second.ID, movements[0].StockEntryID)
		assert.Equal(t, "10", movements[0].Quantity.String())
		assert.Equal(t, first.ID, movements[1].StockEntryID)
		assert.Equal(t, "5", movements[1].Quantity.String())
		assert.Equal(t, "EXPIRED", movements[1].Type)
		assert.Equal(t, "5", f.level(t, milk).AvailableQuantity.String())
	})

	t.Run("rejects non consuming types", func(t *testing.T) {
		f := newLedgerFixture(t)
		milk := f.material(t, "Milk", "L", 0, 0)
		_, err := f.recorder.ConsumeStock(ctx, ConsumeStockRequest{
			RawMaterialID: milk, Type: "ADJUSTMENT", Quantity: dec("1"), Reason: "x", PerformedBy: "chef",
		})
		assertCode(t, err, shared.CodeInvalidInput)
	})
}

func TestAssignStockToSection(t *testing.T) {
	ctx := context.Background()

	t.Run("assignment shows in section and leaves central stock alone", func(t *testing.T) {
		f := newLedgerFixture(t)
		flour := f.material(t, "Flour", "KG", 10, 0)
		kitchen := f.section(t, "Kitchen")
		f.receive(t, flour, "100", day0, nil)

		row, err := f.recorder.AssignStockToSection(ctx, kitchen, AssignStockRequest{
			RawMaterialID: flour, Quantity: dec("20"), AssignedBy: "manager",
		})
		require.NoError(t, err)
		assert.Equal(t, "20", row.Quantity.String())
		assert.NotNil(t, row.LastAssignedAt)

		assert.Equal(t, "20", f.sectionQuantity(t, kitchen, flour))
		level := f.level(t, flour)
		assert.Equal(t, "100", level.AvailableQuantity.String())
		assert.Equal(t, "20", level.ReservedQuantity.String())

		transfers, _, err := f.service.ListMovements(ctx, MovementListFilter{Type: "TRANSFER"})
		require.NoError(t, err)
		require.Len(t, transfers, 1)
		require.NotNil(t, transfers[0].ToSectionID)
		assert.Equal(t, kitchen, *transfers[0].ToSectionID)
		assert.Nil(t, transfers[0].FromSectionID)
	})

	t.Run("assign 20 then consume 25 fails and writes nothing", func(t *testing.T) {
		f := newLedgerFixture(t)
		flour := f.material(t, "Flour", "KG", 10, 0)
		kitchen := f.section(t, "Kitchen")
		f.receive(t, flour, "100", day0, nil)
		_, err := f.recorder.AssignStockToSection(ctx, kitchen, AssignStockRequest{
			RawMaterialID: flour, Quantity: dec("20"), AssignedBy: "manager",
		})
		require.NoError(t, err)
		before := f.ledger.movementCount()

		_, err = f.recorder.RecordConsumption(ctx, kitchen, RecordConsumptionRequest{
			RawMaterialID: flour, Quantity: dec("25"), ConsumedBy: "chef", Reason: "pasta",
		})
		assertCode(t, err, shared.CodeInsufficientStock)
		assert.Equal(t, before, f.ledger.movementCount())
		assert.Equal(t, "20", f.sectionQuantity(t, kitchen, flour))
		assert.Empty(t, f.ledger.consumptions)
	})

	t.Run("cannot assign more than available", func(t *testing.T) {
		f := newLedgerFixture(t)
		flour := f.material(t, "Flour", "KG", 0, 0)
		kitchen := f.section(t, "Kitchen")
		f.receive(t, flour, "10", day0, nil)

		_, err := f.recorder.AssignStockToSection(ctx, kitchen, AssignStockRequest{
			RawMaterialID: flour, Quantity: dec("11"), AssignedBy: "manager",
		})
		assertCode(t, err, shared.CodeInsufficientStock)
		assert.Equal(t, "0", f.sectionQuantity(t, kitchen, flour))
	})

	t.Run("unknown section", func(t *testing.T) {
		f := newLedgerFixture(t)
		flour := f.material(t, "Flour", "KG", 0, 0)
		_, err := f.recorder.AssignStockToSection(ctx, uuid.New(), AssignStockRequest{
			RawMaterialID: flour, Quantity: dec("1"), AssignedBy: "manager",
		})
		assertCode(t, err, shared.CodeNotFound)
	})
}

func TestAssignStockToSection_Allocation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		strict  bool
		wantErr bool
	}{
		{"lenient allows sections to overlap", false, false},
		{"strict caps at unallocated stock", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLedgerFixture(t)
			f.recorder.SetStrictAllocation(tt.strict)
			flour := f.material(t, "Flour", "KG", 0, 0)
			kitchen := f.section(t, "Kitchen")
			bar := f.section(t, "Bar")
			f.receive(t, flour, "100", day0, nil)

			_, err := f.recorder.AssignStockToSection(ctx, kitchen, AssignStockRequest{
				RawMaterialID: flour, Quantity: dec("60"), AssignedBy: "manager",
			})
			require.NoError(t, err)
			_, err = f.recorder.AssignStockToSection(ctx, bar, AssignStockRequest{
				RawMaterialID: flour, Quantity: dec("60"), AssignedBy: "manager",
			})
			if tt.wantErr {
				assertCode(t, err, shared.CodeInsufficientStock)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "120", f.level(t, flour).ReservedQuantity.String())
		})
	}
}

func TestRecordConsumption(t *testing.T) {
	ctx := context.Background()

	t.Run("decrements section and central stock together", func(t *testing.T) {
		f := newLedgerFixture(t)
		flour := f.material(t, "Flour", "KG", 10, 0)
		kitchen := f.section(t, "Kitchen")
		f.receive(t, flour, "100", day0, nil)
		_, err := f.recorder.AssignStockToSection(ctx, kitchen, AssignStockRequest{
			RawMaterialID: flour, Quantity: dec("20"), AssignedBy: "manager",
		})
		require.NoError(t, err)

		resp, err := f.recorder.RecordConsumption(ctx, kitchen, RecordConsumptionRequest{
			RawMaterialID: flour,
			Quantity:      dec("15"),
			ConsumedBy:    "chef",
			Reason:        "dinner service",
			OrderID:       "ORD-1",
		})
		require.NoError(t, err)
		assert.Equal(t, "15", resp.Quantity.String())
		require.Len(t, resp.Movements, 1)
		assert.Equal(t, "OUT", resp.Movements[0].Type)
		assert.Equal(t, "ORD-1", resp.Movements[0].OrderID)
		require.NotNil(t, resp.Movements[0].FromSectionID)
		assert.Equal(t, kitchen, *resp.Movements[0].FromSectionID)

		assert.Equal(t, "5", f.sectionQuantity(t, kitchen, flour))
		level := f.level(t, flour)
		assert.Equal(t, "85", level.AvailableQuantity.String())
		assert.Equal(t, "5", level.ReservedQuantity.String())
		assert.Len(t, f.ledger.consumptions, 1)

		consumed := f.events.GetEventsByType(inventory.EventTypeStockConsumed)
		require.Len(t, consumed, 1)
		assert.Equal(t, kitchen, *consumed[0].(*inventory.StockConsumedEvent).SectionID)
	})

	t.Run("quantity finer than the ledger stores leaves the section untouched", func(t *testing.T) {
		f := newLedgerFixture(t)
		flour := f.material(t, "Flour", "KG", 0, 0)
		kitchen := f.section(t, "Kitchen")
		f.receive(t, flour, "10", day0, nil)
		_, err := f.recorder.AssignStockToSection(ctx, kitchen, AssignStockRequest{
			RawMaterialID: flour, Quantity: dec("2"), AssignedBy: "manager",
		})
		require.NoError(t, err)
		before := f.ledger.movementCount()

		_, err = f.recorder.RecordConsumption(ctx, kitchen, RecordConsumptionRequest{
			RawMaterialID: flour,
			Quantity:      dec("0.00004"),
			ConsumedBy:    "chef",
			Reason:        "garnish",
		})
		assertCode(t, err, shared.CodeInvalidInput)
		assert.Equal(t, "2", f.sectionQuantity(t, kitchen, flour))
		assert.Equal(t, before, f.ledger.movementCount())
		assert.Empty(t, f.ledger.consumptions)
	})

	t.Run("central shortfall rolls back the section draw", func(t *testing.T) {
		f := newLedgerFixture(t)
		flour := f.material(t, "Flour", "KG", 0, 0)
		kitchen := f.section(t, "Kitchen")
		f.receive(t, flour, "10", day0, nil)
		_, err := f.recorder.AssignStockToSection(ctx, kitchen, AssignStockRequest{
			RawMaterialID: flour, Quantity: dec("10"), AssignedBy: "manager",
		})
		require.NoError(t, err)
		_, err = f.recorder.ConsumeStock(ctx, ConsumeStockRequest{
			RawMaterialID: flour, Quantity: dec("5"), Reason: "spill", PerformedBy: "chef", Type: "DAMAGED",
		})
		require.NoError(t, err)
		before := f.ledger.movementCount()

		_, err = f.recorder.RecordConsumption(ctx, kitchen, RecordConsumptionRequest{
			RawMaterialID: flour, Quantity: dec("8"), ConsumedBy: "chef", Reason: "pasta",
		})
		assertCode(t, err, shared.CodeInsufficientStock)
		assert.Equal(t, before, f.ledger.movementCount())
		assert.Equal(t, "10", f.sectionQuantity(t, kitchen, flour))
		assert.Empty(t, f.ledger.consumptions)
	})
}

func TestTransferStock(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	flour := f.material(t, "Flour", "KG", 0, 0)
	kitchen := f.section(t, "Kitchen")
	bar := f.section(t, "Bar")
	entry := f.receive(t, flour, "100", day0, nil)
	_, err := f.recorder.AssignStockToSection(ctx, kitchen, AssignStockRequest{
		RawMaterialID: flour, Quantity: dec("20"), AssignedBy: "manager",
	})
	require.NoError(t, err)

	t.Run("moves stock between sections", func(t *testing.T) {
		m, err := f.recorder.TransferStock(ctx, TransferRequest{
			StockEntryID:  entry.ID,
			FromSectionID: &kitchen,
			ToSectionID:   &bar,
			Quantity:      dec("5"),
			PerformedBy:   "manager",
		})
		require.NoError(t, err)
		assert.Equal(t, "TRANSFER", m.Type)
		assert.Equal(t, "15", f.sectionQuantity(t, kitchen, flour))
		assert.Equal(t, "5", f.sectionQuantity(t, bar, flour))
		assert.Equal(t, "100", f.level(t, flour).AvailableQuantity.String())
	})

	t.Run("source section must hold the quantity", func(t *testing.T) {
		_, err := f.recorder.TransferStock(ctx, TransferRequest{
			StockEntryID: entry.ID, FromSectionID: &kitchen, ToSectionID: &bar,
			Quantity: dec("30"), PerformedBy: "manager",
		})
		assertCode(t, err, shared.CodeInsufficientStock)
		assert.Equal(t, "15", f.sectionQuantity(t, kitchen, flour))
	})

	t.Run("invalid routes", func(t *testing.T) {
		_, err := f.recorder.TransferStock(ctx, TransferRequest{
			StockEntryID: entry.ID, FromSectionID: &kitchen, ToSectionID: &kitchen,
			Quantity: dec("1"), PerformedBy: "manager",
		})
		assertCode(t, err, shared.CodeInvalidInput)

		_, err = f.recorder.TransferStock(ctx, TransferRequest{
			StockEntryID: entry.ID, Quantity: dec("1"), PerformedBy: "manager",
		})
		assertCode(t, err, shared.CodeInvalidInput)
	})

	assert.Len(t, f.events.GetEventsByType(inventory.EventTypeStockTransferred), 2)
}

func TestCreateMovement(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	milk := f.material(t, "Milk", "L", 0, 0)
	kitchen := f.section(t, "Kitchen")
	small := f.receive(t, milk, "10", day0, nil)
	f.receive(t, milk, "50", day0, nil)

	t.Run("IN is refused", func(t *testing.T) {
		_, err := f.recorder.CreateMovement(ctx, CreateMovementRequest{
			StockEntryID: small.ID, Type: "IN", Quantity: dec("1"), Reason: "x", PerformedBy: "chef",
		})
		assertCode(t, err, shared.CodeInvalidInput)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := f.recorder.CreateMovement(ctx, CreateMovementRequest{
			StockEntryID: small.ID, Type: "LOST", Quantity: dec("1"), Reason: "x", PerformedBy: "chef",
		})
		assertCode(t, err, shared.CodeInvalidInput)
	})

	t.Run("consuming movement is capped by its entry", func(t *testing.T) {
		_, err := f.recorder.CreateMovement(ctx, CreateMovementRequest{
			StockEntryID: small.ID, Type: "OUT", Quantity: dec("20"), Reason: "x", PerformedBy: "chef",
		})
		assertCode(t, err, shared.CodeInsufficientStock)
		var de *shared.DomainError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, small.ID.String(), de.Details["stock_entry_id"])
	})

	t.Run("damaged stock reduces available", func(t *testing.T) {
		m, err := f.recorder.CreateMovement(ctx, CreateMovementRequest{
			StockEntryID: small.ID, Type: "damaged", Quantity: dec("4"), Reason: "broken bottle", PerformedBy: "chef",
		})
		require.NoError(t, err)
		assert.Equal(t, "DAMAGED", m.Type)
		assert.Equal(t, "56", f.level(t, milk).AvailableQuantity.String())
	})

	t.Run("adjustment is informational", func(t *testing.T) {
		_, err := f.recorder.CreateMovement(ctx, CreateMovementRequest{
			StockEntryID: small.ID, Type: "ADJUSTMENT", Quantity: decimal.Zero, Reason: "count check", PerformedBy: "chef",
		})
		require.NoError(t, err)
		assert.Equal(t, "56", f.level(t, milk).AvailableQuantity.String())
	})

	t.Run("transfer is delegated", func(t *testing.T) {
		m, err := f.recorder.CreateMovement(ctx, CreateMovementRequest{
			StockEntryID: small.ID, Type: "TRANSFER", Quantity: dec("6"), Reason: "prep", PerformedBy: "chef",
			ToSectionID: &kitchen,
		})
		require.NoError(t, err)
		assert.Equal(t, "TRANSFER", m.Type)
		assert.Equal(t, "6", f.sectionQuantity(t, kitchen, milk))
		assert.Equal(t, "56", f.level(t, milk).AvailableQuantity.String())
	})

	t.Run("unknown entry", func(t *testing.T) {
		_, err := f.recorder.CreateMovement(ctx, CreateMovementRequest{
			StockEntryID: uuid.New(), Type: "OUT", Quantity: dec("1"), Reason: "x", PerformedBy: "chef",
		})
		assertCode(t, err, shared.CodeNotFound)
	})
}

func TestCorrectEntry(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	cheese := f.material(t, "Cheese", "KG", 5, 0)
	entry := f.receive(t, cheese, "50", day0, nil)
	_, err := f.recorder.ConsumeStock(ctx, ConsumeStockRequest{
		RawMaterialID: cheese, Quantity: dec("30"), Reason: "pizza", PerformedBy: "chef",
	})
	require.NoError(t, err)

	t.Run("cannot drop below consumed", func(t *testing.T) {
		q := dec("20")
		_, err := f.recorder.CorrectEntry(ctx, entry.ID, CorrectEntryRequest{
			Quantity: &q, PerformedBy: "manager", Reason: "miscount",
		})
		assertCode(t, err, shared.CodeInsufficientStock)
	})

	t.Run("nothing to correct", func(t *testing.T) {
		_, err := f.recorder.CorrectEntry(ctx, entry.ID, CorrectEntryRequest{PerformedBy: "manager", Reason: "x"})
		assertCode(t, err, shared.CodeInvalidInput)
	})

	t.Run("recomputes cost and logs an adjustment", func(t *testing.T) {
		q, c := dec("40"), dec("3")
		resp, err := f.recorder.CorrectEntry(ctx, entry.ID, CorrectEntryRequest{
			Quantity: &q, UnitCost: &c, PerformedBy: "manager", Reason: "invoice fix",
		})
		require.NoError(t, err)
		assert.Equal(t, "40", resp.Quantity.String())
		assert.Equal(t, "120", resp.TotalCost.String())
		assert.Equal(t, "10", f.level(t, cheese).AvailableQuantity.String())

		adjustments, _, err := f.service.ListMovements(ctx, MovementListFilter{Type: "ADJUSTMENT"})
		require.NoError(t, err)
		require.Len(t, adjustments, 1)
		assert.Equal(t, "10", adjustments[0].Quantity.String())
		assert.Equal(t, "invoice fix", adjustments[0].Reason)
	})
}

func TestMovementRecorder_SerializesConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	flour := f.material(t, "Flour", "KG", 0, 0)
	f.receive(t, flour, "100", day0, nil)

	const workers = 15
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.recorder.ConsumeStock(ctx, ConsumeStockRequest{
				RawMaterialID: flour, Quantity: dec("10"), Reason: "batch", PerformedBy: "chef",
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.True(t, shared.IsCode(err, shared.CodeInsufficientStock), "unexpected error %v", err)
				rejected++
				return
			}
			succeeded++
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 5, rejected)
	assert.Equal(t, "0", f.level(t, flour).AvailableQuantity.String())
}

// hangUpScope commits like memScope, then cancels the caller's context the
// way a client disconnecting after the commit would.
type hangUpScope struct {
	memScope
	cancel context.CancelFunc
}

func (s hangUpScope) Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error {
	err := s.memScope.Execute(ctx, fn)
	s.cancel()
	return err
}

// contextCheckingPublisher records whether the publish context was live
type contextCheckingPublisher struct {
	errs []error
}

func (p *contextCheckingPublisher) Publish(ctx context.Context, _ ...shared.DomainEvent) error {
	p.errs = append(p.errs, ctx.Err())
	return nil
}

func TestMovementRecorder_PublishesAfterClientHangsUp(t *testing.T) {
	f := newLedgerFixture(t)
	flour := f.material(t, "Flour", "KG", 10, 0)
	f.receive(t, flour, "20", day0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	publisher := &contextCheckingPublisher{}
	recorder := NewMovementRecorder(hangUpScope{memScope: memScope{f.ledger}, cancel: cancel}, zaptest.NewLogger(t))
	recorder.SetEventPublisher(publisher)

	_, err := recorder.ConsumeStock(ctx, ConsumeStockRequest{
		RawMaterialID: flour, Quantity: dec("15"), Reason: "bread", PerformedBy: "chef",
	})
	require.NoError(t, err)
	require.Error(t, ctx.Err())

	require.Len(t, publisher.errs, 1)
	assert.NoError(t, publisher.errs[0])
}
