package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	appinv "github.com/kitchen/inventory/internal/application/inventory"
	"github.com/kitchen/inventory/internal/domain/inventory"
	"github.com/kitchen/inventory/internal/domain/shared"
	"github.com/kitchen/inventory/internal/infrastructure/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

var ledgerDay = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

// newLedgerDB opens a private in-memory SQLite database with the ledger tables
func newLedgerDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := NewDatabase(&config.DatabaseConfig{
		Driver:      "sqlite",
		SQLitePath:  ":memory:",
		AutoMigrate: true,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db.DB
}

func qty(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seedMaterial(t *testing.T, db *gorm.DB, name, category string) *inventory.RawMaterial {
	t.Helper()
	m, err := inventory.NewRawMaterial(inventory.MaterialDetails{
		Name:          name,
		Category:      category,
		Unit:          inventory.UnitKilogram,
		UnitCost:      qty("2.5"),
		MinStockLevel: qty("5"),
		MaxStockLevel: qty("100"),
	})
	require.NoError(t, err)
	require.NoError(t, NewGormRawMaterialRepository(db).Save(context.Background(), m))
	return m
}

func seedEntry(t *testing.T, db *gorm.DB, m *inventory.RawMaterial, quantity string, received time.Time) *inventory.StockEntry {
	t.Helper()
	e, err := inventory.NewStockEntry(inventory.ReceiptDetails{
		RawMaterialID: m.ID,
		Quantity:      qty(quantity),
		UnitCost:      qty("2"),
		Supplier:      "Green Farm",
		ReceivedDate:  received,
		ReceivedBy:    "maria",
	})
	require.NoError(t, err)
	require.NoError(t, NewGormStockEntryRepository(db).Create(context.Background(), e))
	return e
}

func seedSection(t *testing.T, db *gorm.DB, name string) *inventory.Section {
	t.Helper()
	s, err := inventory.NewSection(name, inventory.SectionKitchen, "")
	require.NoError(t, err)
	require.NoError(t, NewGormSectionRepository(db).Save(context.Background(), s))
	return s
}

func TestGormRawMaterialRepository_SQLite(t *testing.T) {
	ctx := context.Background()
	db := newLedgerDB(t)
	repo := NewGormRawMaterialRepository(db)

	milk := seedMaterial(t, db, "Whole Milk", "Dairy")
	seedMaterial(t, db, "Flour", "Dry Goods")
	cream := seedMaterial(t, db, "Cream", "Dairy")
	cream.Deactivate()
	require.NoError(t, repo.Save(ctx, cream))

	t.Run("round trips decimals and flags", func(t *testing.T) {
		found, err := repo.FindByID(ctx, milk.ID)
		require.NoError(t, err)
		assert.Equal(t, "Whole Milk", found.Name)
		assert.True(t, found.UnitCost.Equal(qty("2.5")))
		assert.True(t, found.MaxStockLevel.Equal(qty("100")))
		assert.True(t, found.Active)

		inactive, err := repo.FindByID(ctx, cream.ID)
		require.NoError(t, err)
		assert.False(t, inactive.Active)
	})

	t.Run("filters by category and search", func(t *testing.T) {
		list, err := repo.FindAll(ctx, inventory.MaterialFilter{Category: "DAIRY"})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, milk.ID, list[0].ID)

		list, err = repo.FindAll(ctx, inventory.MaterialFilter{Category: "dairy", IncludeInactive: true})
		require.NoError(t, err)
		assert.Len(t, list, 2)

		list, err = repo.FindAll(ctx, inventory.MaterialFilter{Filter: shared.Filter{Search: "FLO"}})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "Flour", list[0].Name)

		count, err := repo.Count(ctx, inventory.MaterialFilter{IncludeInactive: true})
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)
	})

	t.Run("sorts by name and paginates", func(t *testing.T) {
		list, err := repo.FindAll(ctx, inventory.MaterialFilter{
			Filter:          shared.Filter{Page: 1, PageSize: 2, OrderBy: "name", OrderDir: "asc"},
			IncludeInactive: true,
		})
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "Cream", list[0].Name)
		assert.Equal(t, "Flour", list[1].Name)
	})

	t.Run("touch ledger bumps the version and save leaves it alone", func(t *testing.T) {
		at := ledgerDay.Add(time.Hour)
		require.NoError(t, repo.TouchLedger(ctx, milk.ID, at))
		require.NoError(t, repo.TouchLedger(ctx, milk.ID, at))

		stale, err := repo.FindByID(ctx, milk.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), stale.LedgerVersion)
		require.NotNil(t, stale.LastMovementAt)
		assert.True(t, at.Equal(*stale.LastMovementAt))

		milk.Name = "Milk"
		milk.LedgerVersion = 0
		require.NoError(t, repo.Save(ctx, milk))

		found, err := repo.FindByID(ctx, milk.ID)
		require.NoError(t, err)
		assert.Equal(t, "Milk", found.Name)
		assert.Equal(t, int64(2), found.LedgerVersion)
	})

	t.Run("unknown material", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.ErrorIs(t, repo.TouchLedger(ctx, uuid.New(), ledgerDay), shared.ErrNotFound)
	})
}

func TestGormStockEntryRepository_SQLite(t *testing.T) {
	ctx := context.Background()
	db := newLedgerDB(t)
	repo := NewGormStockEntryRepository(db)

	milk := seedMaterial(t, db, "Milk", "Dairy")
	flour := seedMaterial(t, db, "Flour", "Dry Goods")
	first := seedEntry(t, db, milk, "10", ledgerDay)
	second := seedEntry(t, db, milk, "20", ledgerDay.AddDate(0, 0, 2))
	seedEntry(t, db, flour, "5", ledgerDay.AddDate(0, 0, 1))

	t.Run("by material oldest first", func(t *testing.T) {
		entries, err := repo.FindByMaterial(ctx, milk.ID)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, first.ID, entries[0].ID)
		assert.Equal(t, second.ID, entries[1].ID)
		assert.True(t, entries[1].TotalCost.Equal(qty("40")))
	})

	t.Run("received range is inclusive", func(t *testing.T) {
		filter := inventory.EntryFilter{Received: shared.DateRange{
			From: ledgerDay.AddDate(0, 0, 1),
			To:   ledgerDay.AddDate(0, 0, 2),
		}}
		entries, err := repo.FindAll(ctx, filter)
		require.NoError(t, err)
		assert.Len(t, entries, 2)

		count, err := repo.Count(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("zero page size returns every row", func(t *testing.T) {
		entries, err := repo.FindAll(ctx, inventory.EntryFilter{Filter: shared.Filter{Page: 3}})
		require.NoError(t, err)
		assert.Len(t, entries, 3)
	})

	t.Run("supplier filter ignores case", func(t *testing.T) {
		entries, err := repo.FindAll(ctx, inventory.EntryFilter{RawMaterialID: &flour.ID, Supplier: "green farm"})
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("update rewrites quantity and cost", func(t *testing.T) {
		require.NoError(t, first.Correct(qty("12"), qty("3"), decimal.Zero))
		require.NoError(t, repo.Update(ctx, first))

		found, err := repo.FindByID(ctx, first.ID)
		require.NoError(t, err)
		assert.True(t, found.Quantity.Equal(qty("12")))
		assert.True(t, found.TotalCost.Equal(qty("36")))
	})

	t.Run("update of a missing entry", func(t *testing.T) {
		ghost := *first
		ghost.ID = uuid.New()
		assert.ErrorIs(t, repo.Update(ctx, &ghost), shared.ErrNotFound)
	})
}

func TestGormStockMovementRepository_SQLite(t *testing.T) {
	ctx := context.Background()
	db := newLedgerDB(t)
	repo := NewGormStockMovementRepository(db)

	milk := seedMaterial(t, db, "Milk", "Dairy")
	entry := seedEntry(t, db, milk, "50", ledgerDay)
	other := seedEntry(t, db, milk, "50", ledgerDay)
	bar := seedSection(t, db, "Bar")

	record := func(m *inventory.StockMovement, err error) *inventory.StockMovement {
		t.Helper()
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, m))
		return m
	}
	in := record(inventory.NewStockMovement(entry, inventory.MovementIn, qty("50"), "receipt", "maria"))
	out := record(inventory.NewStockMovement(entry, inventory.MovementOut, qty("4.5"), "latte", "barista"))
	record(inventory.NewTransferMovement(other, nil, &bar.ID, qty("10"), "stock bar", "maria"))

	t.Run("type filter", func(t *testing.T) {
		rows, err := repo.FindAll(ctx, inventory.MovementFilter{Types: []inventory.MovementType{inventory.MovementOut}})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, out.ID, rows[0].ID)
		assert.True(t, rows[0].Quantity.Equal(qty("4.5")))
		assert.Equal(t, "barista", rows[0].PerformedBy)
	})

	t.Run("section filter matches either side", func(t *testing.T) {
		rows, err := repo.FindAll(ctx, inventory.MovementFilter{SectionID: &bar.ID})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Nil(t, rows[0].FromSectionID)
		require.NotNil(t, rows[0].ToSectionID)
		assert.Equal(t, bar.ID, *rows[0].ToSectionID)
	})

	t.Run("by entries", func(t *testing.T) {
		rows, err := repo.FindByEntries(ctx, []uuid.UUID{entry.ID})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		ids := []uuid.UUID{rows[0].ID, rows[1].ID}
		assert.ElementsMatch(t, []uuid.UUID{in.ID, out.ID}, ids)

		none, err := repo.FindByEntries(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("count by entry", func(t *testing.T) {
		count, err := repo.Count(ctx, inventory.MovementFilter{StockEntryID: &other.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}

func TestGormSectionInventoryRepository_SQLite(t *testing.T) {
	ctx := context.Background()
	db := newLedgerDB(t)
	repo := NewGormSectionInventoryRepository(db)

	milk := seedMaterial(t, db, "Milk", "Dairy")
	kitchen := seedSection(t, db, "Kitchen")
	bar := seedSection(t, db, "Bar")

	t.Run("allocate upserts one row per pair", func(t *testing.T) {
		require.NoError(t, repo.Allocate(ctx, kitchen.ID, milk.ID, qty("10"), ledgerDay))
		require.NoError(t, repo.Allocate(ctx, kitchen.ID, milk.ID, qty("2.5"), ledgerDay.Add(time.Hour)))

		row, err := repo.Find(ctx, kitchen.ID, milk.ID)
		require.NoError(t, err)
		assert.True(t, row.Quantity.Equal(qty("12.5")), "got %s", row.Quantity)
		assert.Equal(t, 2, row.Version)

		rows, err := repo.FindByMaterial(ctx, milk.ID)
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})

	t.Run("allocate rejects non-positive quantities", func(t *testing.T) {
		err := repo.Allocate(ctx, kitchen.ID, milk.ID, decimal.Zero, ledgerDay)
		assert.True(t, shared.IsCode(err, shared.CodeInvalidInput))
	})

	t.Run("draw within the allocation", func(t *testing.T) {
		require.NoError(t, repo.Draw(ctx, kitchen.ID, milk.ID, qty("12.5"), ledgerDay))
		row, err := repo.Find(ctx, kitchen.ID, milk.ID)
		require.NoError(t, err)
		assert.True(t, row.Quantity.IsZero())
		assert.Equal(t, 3, row.Version)
	})

	t.Run("overdraw changes nothing", func(t *testing.T) {
		require.NoError(t, repo.Allocate(ctx, kitchen.ID, milk.ID, qty("1"), ledgerDay))
		err := repo.Draw(ctx, kitchen.ID, milk.ID, qty("1.0001"), ledgerDay)
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)

		row, err := repo.Find(ctx, kitchen.ID, milk.ID)
		require.NoError(t, err)
		assert.True(t, row.Quantity.Equal(qty("1")))
	})

	t.Run("draw from a section without a row", func(t *testing.T) {
		err := repo.Draw(ctx, bar.ID, milk.ID, qty("1"), ledgerDay)
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)

		_, err = repo.Find(ctx, bar.ID, milk.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("lists by section", func(t *testing.T) {
		require.NoError(t, repo.Allocate(ctx, bar.ID, milk.ID, qty("3"), ledgerDay))
		rows, err := repo.FindBySection(ctx, bar.ID)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.True(t, rows[0].Quantity.Equal(qty("3")))

		all, err := repo.FindAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

func TestGormSectionRepositories_SQLite(t *testing.T) {
	ctx := context.Background()
	db := newLedgerDB(t)
	sections := NewGormSectionRepository(db)
	consumptions := NewGormSectionConsumptionRepository(db)

	milk := seedMaterial(t, db, "Milk", "Dairy")
	kitchen := seedSection(t, db, "Kitchen")
	patio := seedSection(t, db, "Patio Bar")
	patio.Active = false
	require.NoError(t, sections.Save(ctx, patio))

	active, err := sections.FindAll(ctx, false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, kitchen.ID, active[0].ID)

	all, err := sections.FindAll(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	for i, q := range []string{"2", "3"} {
		c, err := inventory.NewSectionConsumption(kitchen.ID, milk.ID, qty(q), "service", "chef", "", "")
		require.NoError(t, err)
		c.ConsumedAt = ledgerDay.Add(time.Duration(i) * time.Hour)
		require.NoError(t, consumptions.Create(ctx, c))
	}

	rows, err := consumptions.FindAll(ctx, inventory.ConsumptionFilter{SectionID: &kitchen.ID})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].Quantity.Equal(qty("2")))

	rows, err = consumptions.FindAll(ctx, inventory.ConsumptionFilter{
		RawMaterialID: &milk.ID,
		Consumed:      shared.DateRange{From: ledgerDay.Add(30 * time.Minute)},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Quantity.Equal(qty("3")))
}

func TestGormTransactionScope_SQLite(t *testing.T) {
	ctx := context.Background()
	db := newLedgerDB(t)
	scope := NewGormTransactionScope(db)
	milk := seedMaterial(t, db, "Milk", "Dairy")

	t.Run("rolls back every write on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := scope.Execute(ctx, func(repos appinv.TransactionalRepositories) error {
			require.NoError(t, repos.Materials().TouchLedger(ctx, milk.ID, ledgerDay))
			entry, err := inventory.NewStockEntry(inventory.ReceiptDetails{
				RawMaterialID: milk.ID, Quantity: qty("5"), UnitCost: qty("1"),
				ReceivedDate: ledgerDay, ReceivedBy: "maria",
			})
			require.NoError(t, err)
			require.NoError(t, repos.Entries().Create(ctx, entry))
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.True(t, shared.IsCode(err, shared.CodeStoreError))

		entries, err := NewGormStockEntryRepository(db).FindByMaterial(ctx, milk.ID)
		require.NoError(t, err)
		assert.Empty(t, entries)

		found, err := NewGormRawMaterialRepository(db).FindByID(ctx, milk.ID)
		require.NoError(t, err)
		assert.Zero(t, found.LedgerVersion)
	})

	t.Run("domain errors pass through", func(t *testing.T) {
		err := scope.Execute(ctx, func(repos appinv.TransactionalRepositories) error {
			return repos.Materials().TouchLedger(ctx, uuid.New(), ledgerDay)
		})
		assert.True(t, shared.IsCode(err, shared.CodeNotFound))
	})
}

// newSQLiteLedger wires the application services over a real SQLite ledger
func newSQLiteLedger(t *testing.T) (*appinv.MovementRecorder, *appinv.StockService) {
	t.Helper()
	db := newLedgerDB(t)
	logger := zaptest.NewLogger(t)
	return appinv.NewMovementRecorder(NewGormTransactionScope(db), logger),
		appinv.NewStockService(NewRepositories(db), logger)
}

func TestLedger_SQLiteEndToEnd(t *testing.T) {
	ctx := context.Background()
	recorder, service := newSQLiteLedger(t)

	milk, err := service.CreateMaterial(ctx, appinv.MaterialRequest{
		Name: "Milk", Category: "Dairy", Unit: "L", UnitCost: qty("1.1"),
		MinStockLevel: qty("10"), MaxStockLevel: qty("200"),
	})
	require.NoError(t, err)

	_, err = recorder.RecordReceipt(ctx, appinv.CreateEntryRequest{
		RawMaterialID: milk.ID, Quantity: qty("100"), UnitCost: qty("1.1"),
		ReceivedDate: ledgerDay, ReceivedBy: "maria",
	})
	require.NoError(t, err)

	kitchen, err := service.CreateSection(ctx, appinv.SectionRequest{Name: "Kitchen", Type: "KITCHEN"})
	require.NoError(t, err)

	_, err = recorder.AssignStockToSection(ctx, kitchen.ID, appinv.AssignStockRequest{
		RawMaterialID: milk.ID, Quantity: qty("30"), AssignedBy: "maria",
	})
	require.NoError(t, err)

	_, err = recorder.RecordConsumption(ctx, kitchen.ID, appinv.RecordConsumptionRequest{
		RawMaterialID: milk.ID, Quantity: qty("25"), ConsumedBy: "chef", Reason: "bechamel",
	})
	require.NoError(t, err)

	_, err = recorder.RecordConsumption(ctx, kitchen.ID, appinv.RecordConsumptionRequest{
		RawMaterialID: milk.ID, Quantity: qty("6"), ConsumedBy: "chef", Reason: "bechamel",
	})
	assert.True(t, shared.IsCode(err, shared.CodeInsufficientStock))

	_, err = recorder.ConsumeStock(ctx, appinv.ConsumeStockRequest{
		RawMaterialID: milk.ID, Quantity: qty("70"), Reason: "staff meal", PerformedBy: "chef",
	})
	require.NoError(t, err)

	level, err := service.GetStockLevel(ctx, milk.ID)
	require.NoError(t, err)
	assert.Equal(t, "100", level.TotalReceived.String())
	assert.Equal(t, "5", level.AvailableQuantity.String())
	assert.True(t, level.IsLowStock)

	rows, err := service.GetSectionInventory(ctx, kitchen.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "5", rows[0].Quantity.String())
}

func TestLedger_SQLiteConcurrentConsumers(t *testing.T) {
	ctx := context.Background()
	recorder, service := newSQLiteLedger(t)

	flour, err := service.CreateMaterial(ctx, appinv.MaterialRequest{
		Name: "Flour", Category: "Dry Goods", Unit: "KG", UnitCost: qty("0.8"),
		MaxStockLevel: qty("500"),
	})
	require.NoError(t, err)
	_, err = recorder.RecordReceipt(ctx, appinv.CreateEntryRequest{
		RawMaterialID: flour.ID, Quantity: qty("100"), UnitCost: qty("0.8"),
		ReceivedDate: ledgerDay, ReceivedBy: "maria",
	})
	require.NoError(t, err)

	const workers = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := recorder.ConsumeStock(ctx, appinv.ConsumeStockRequest{
				RawMaterialID: flour.ID, Quantity: qty("10"), Reason: "dough", PerformedBy: "baker",
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			assert.True(t, shared.IsCode(err, shared.CodeInsufficientStock), "unexpected error %v", err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	level, err := service.GetStockLevel(ctx, flour.ID)
	require.NoError(t, err)
	assert.True(t, level.AvailableQuantity.IsZero(), "available %s", level.AvailableQuantity)
}
