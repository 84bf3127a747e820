package inventory

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger is one consistent read of the stores the aggregator folds over
type Ledger struct {
	Materials   []RawMaterial
	Entries     []StockEntry
	Movements   []StockMovement
	Allocations []SectionInventory
}

// AggregationResult holds the computed levels and anything suspicious seen on the way
type AggregationResult struct {
	Levels   []StockLevel
	Warnings []IntegrityWarning
}

// Aggregator folds the entry and movement ledger into stock levels
type Aggregator struct {
	now func() time.Time
}

// NewAggregator creates an aggregator stamping snapshots with the wall clock
func NewAggregator() *Aggregator {
	return &Aggregator{now: func() time.Time { return time.Now().UTC() }}
}

// WithClock returns an aggregator using the given clock
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	return &Aggregator{now: now}
}

type ledgerIndex struct {
	entriesByMaterial  map[uuid.UUID][]StockEntry
	movementsByEntry   map[uuid.UUID][]StockMovement
	reservedByMaterial map[uuid.UUID]decimal.Decimal
}

func indexLedger(l Ledger) ledgerIndex {
	idx := ledgerIndex{
		entriesByMaterial:  make(map[uuid.UUID][]StockEntry, len(l.Materials)),
		movementsByEntry:   make(map[uuid.UUID][]StockMovement, len(l.Entries)),
		reservedByMaterial: make(map[uuid.UUID]decimal.Decimal),
	}
	for _, e := range l.Entries {
		idx.entriesByMaterial[e.RawMaterialID] = append(idx.entriesByMaterial[e.RawMaterialID], e)
	}
	for _, m := range l.Movements {
		idx.movementsByEntry[m.StockEntryID] = append(idx.movementsByEntry[m.StockEntryID], m)
	}
	for _, a := range l.Allocations {
		idx.reservedByMaterial[a.RawMaterialID] = idx.reservedByMaterial[a.RawMaterialID].Add(a.Quantity)
	}
	return idx
}

// Aggregate computes a level for every active material in the ledger.
// Levels are ordered by material name.
func (a *Aggregator) Aggregate(l Ledger) AggregationResult {
	idx := indexLedger(l)
	now := a.now()

	result := AggregationResult{Levels: make([]StockLevel, 0, len(l.Materials))}
	for i := range l.Materials {
		material := &l.Materials[i]
		if !material.Active {
			continue
		}
		level, warnings := a.fold(material, idx, now)
		result.Levels = append(result.Levels, level)
		result.Warnings = append(result.Warnings, warnings...)
	}

	sort.SliceStable(result.Levels, func(i, j int) bool {
		ni, nj := strings.ToLower(result.Levels[i].MaterialName), strings.ToLower(result.Levels[j].MaterialName)
		if ni != nj {
			return ni < nj
		}
		return result.Levels[i].RawMaterialID.String() < result.Levels[j].RawMaterialID.String()
	})
	return result
}

// AggregateMaterial computes the level of a single material whether or not it is active
func (a *Aggregator) AggregateMaterial(material *RawMaterial, l Ledger) (StockLevel, []IntegrityWarning) {
	return a.fold(material, indexLedger(l), a.now())
}

func (a *Aggregator) fold(material *RawMaterial, idx ledgerIndex, now time.Time) (StockLevel, []IntegrityWarning) {
	var warnings []IntegrityWarning
	received := decimal.Zero
	consumed := decimal.Zero

	for _, entry := range idx.entriesByMaterial[material.ID] {
		received = received.Add(entry.Quantity)
		used := consumedFrom(idx.movementsByEntry[entry.ID])
		consumed = consumed.Add(used)
		if used.GreaterThan(entry.Quantity) {
			entryID := entry.ID
			warnings = append(warnings, IntegrityWarning{
				RawMaterialID: material.ID,
				StockEntryID:  &entryID,
				Quantity:      entry.Quantity.Sub(used),
				Message:       "stock entry consumed beyond its received quantity",
			})
		}
	}

	available := received.Sub(consumed)
	if available.IsNegative() {
		warnings = append(warnings, IntegrityWarning{
			RawMaterialID: material.ID,
			Quantity:      available,
			Message:       "available quantity is negative",
		})
	}

	reserved, ok := idx.reservedByMaterial[material.ID]
	if !ok {
		reserved = decimal.Zero
	}

	return StockLevel{
		RawMaterialID:     material.ID,
		MaterialName:      material.Name,
		Category:          material.Category,
		Unit:              material.Unit,
		TotalReceived:     received,
		TotalConsumed:     consumed,
		AvailableQuantity: available,
		ReservedQuantity:  reserved,
		DisplayQuantity:   DisplayQuantity(available, material),
		MinStockLevel:     material.MinStockLevel,
		MaxStockLevel:     material.MaxStockLevel,
		IsLowStock:        material.IsLowStock(available),
		LastUpdated:       now,
		LastMovementAt:    material.LastMovementAt,
	}, warnings
}

func consumedFrom(movements []StockMovement) decimal.Decimal {
	total := decimal.Zero
	for _, m := range movements {
		if m.Type.IsConsuming() {
			total = total.Add(m.Quantity)
		}
	}
	return total
}

// EntryBalances returns the remainder of every entry, ordered for drawing
// stock: entries expiring soonest first, then entries without expiry by
// received date.
func EntryBalances(entries []StockEntry, movements []StockMovement) []EntryBalance {
	byEntry := make(map[uuid.UUID][]StockMovement, len(entries))
	for _, m := range movements {
		byEntry[m.StockEntryID] = append(byEntry[m.StockEntryID], m)
	}

	balances := make([]EntryBalance, 0, len(entries))
	for _, e := range entries {
		used := consumedFrom(byEntry[e.ID])
		balances = append(balances, EntryBalance{
			Entry:     e,
			Consumed:  used,
			Remaining: e.Quantity.Sub(used),
		})
	}

	sort.SliceStable(balances, func(i, j int) bool {
		ei, ej := balances[i].Entry, balances[j].Entry
		switch {
		case ei.ExpiryDate != nil && ej.ExpiryDate != nil && !ei.ExpiryDate.Equal(*ej.ExpiryDate):
			return ei.ExpiryDate.Before(*ej.ExpiryDate)
		case ei.ExpiryDate != nil && ej.ExpiryDate == nil:
			return true
		case ei.ExpiryDate == nil && ej.ExpiryDate != nil:
			return false
		}
		if !ei.ReceivedDate.Equal(ej.ReceivedDate) {
			return ei.ReceivedDate.Before(ej.ReceivedDate)
		}
		return ei.CreatedAt.Before(ej.CreatedAt)
	})
	return balances
}

// EntryRemaining returns the unconsumed quantity of one entry
func EntryRemaining(entry *StockEntry, movements []StockMovement) decimal.Decimal {
	used := decimal.Zero
	for _, m := range movements {
		if m.StockEntryID == entry.ID && m.Type.IsConsuming() {
			used = used.Add(m.Quantity)
		}
	}
	return entry.Quantity.Sub(used)
}

// Draw is a slice of a requested quantity taken from one entry
type Draw struct {
	Entry    StockEntry
	Quantity decimal.Decimal
}

// PlanDraws splits quantity across entry balances in order. It returns
// ok=false when the balances cannot cover the request.
func PlanDraws(balances []EntryBalance, quantity decimal.Decimal) ([]Draw, bool) {
	remaining := quantity
	var draws []Draw
	for _, b := range balances {
		if !remaining.IsPositive() {
			break
		}
		if !b.Remaining.IsPositive() {
			continue
		}
		take := decimal.Min(b.Remaining, remaining)
		draws = append(draws, Draw{Entry: b.Entry, Quantity: take})
		remaining = remaining.Sub(take)
	}
	return draws, !remaining.IsPositive()
}

// AggregateSections computes the levels of section allocation rows
func (a *Aggregator) AggregateSections(rows []SectionInventory, materials []RawMaterial) []SectionStockLevel {
	byID := make(map[uuid.UUID]*RawMaterial, len(materials))
	for i := range materials {
		byID[materials[i].ID] = &materials[i]
	}

	now := a.now()
	levels := make([]SectionStockLevel, 0, len(rows))
	for _, row := range rows {
		level := SectionStockLevel{
			SectionID:       row.SectionID,
			RawMaterialID:   row.RawMaterialID,
			Quantity:        row.Quantity,
			DisplayQuantity: row.Quantity,
			LastAssignedAt:  row.LastAssignedAt,
			LastUpdated:     now,
		}
		if m, ok := byID[row.RawMaterialID]; ok {
			level.MaterialName = m.Name
			level.Unit = m.Unit
			level.DisplayQuantity = DisplayQuantity(row.Quantity, m)
		}
		levels = append(levels, level)
	}
	sort.SliceStable(levels, func(i, j int) bool {
		return strings.ToLower(levels[i].MaterialName) < strings.ToLower(levels[j].MaterialName)
	})
	return levels
}
