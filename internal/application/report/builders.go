package report

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kitchen/inventory/internal/domain/inventory"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
)

// Period bounds a report. Zero values leave that side open.
type Period struct {
	From time.Time `json:"from,omitempty"`
	To   time.Time `json:"to,omitempty"`
}

// Contains reports whether t falls inside the period (inclusive)
func (p Period) Contains(t time.Time) bool {
	if !p.From.IsZero() && t.Before(p.From) {
		return false
	}
	if !p.To.IsZero() && t.After(p.To) {
		return false
	}
	return true
}

// GroupTotal is one row of a grouped summary
type GroupTotal struct {
	Key      string          `json:"key"`
	Label    string          `json:"label"`
	Quantity decimal.Decimal `json:"quantity"`
	Cost     decimal.Decimal `json:"cost"`
	Count    int             `json:"count"`
}

// MaterialTotal is the per-material row of a summary
type MaterialTotal struct {
	Rank          int             `json:"rank,omitempty"`
	RawMaterialID uuid.UUID       `json:"raw_material_id"`
	MaterialName  string          `json:"material_name"`
	Category      string          `json:"category"`
	Unit          string          `json:"unit"`
	Quantity      decimal.Decimal `json:"quantity"`
	Cost          decimal.Decimal `json:"cost"`
}

// ConsumptionReport summarizes stock that left the business
type ConsumptionReport struct {
	Period        Period          `json:"period"`
	SectionID     *uuid.UUID      `json:"section_id,omitempty"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	ByType        []GroupTotal    `json:"by_type"`
	ByReason      []GroupTotal    `json:"by_reason"`
	ByCategory    []GroupTotal    `json:"by_category"`
	ByMaterial    []MaterialTotal `json:"by_material"`
	TopMaterials  []MaterialTotal `json:"top_materials"`
}

// ExpenseReport summarizes spend on receipts
type ExpenseReport struct {
	Period       Period          `json:"period"`
	TotalSpend   decimal.Decimal `json:"total_spend"`
	EntryCount   int             `json:"entry_count"`
	ByCategory   []GroupTotal    `json:"by_category"`
	BySupplier   []GroupTotal    `json:"by_supplier"`
	ByMaterial   []MaterialTotal `json:"by_material"`
	TopMaterials []MaterialTotal `json:"top_materials"`
}

// LowStockItem is one material at or below its minimum
type LowStockItem struct {
	RawMaterialID     uuid.UUID       `json:"raw_material_id"`
	MaterialName      string          `json:"material_name"`
	Category          string          `json:"category"`
	Unit              string          `json:"unit"`
	AvailableQuantity decimal.Decimal `json:"available_quantity"`
	DisplayQuantity   decimal.Decimal `json:"display_quantity"`
	MinStockLevel     decimal.Decimal `json:"min_stock_level"`
	MaxStockLevel     decimal.Decimal `json:"max_stock_level"`
	Shortfall         decimal.Decimal `json:"shortfall"`
	ReorderQuantity   decimal.Decimal `json:"reorder_quantity"`
}

// LowStockReport lists low stock materials, largest shortfall first
type LowStockReport struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Items       []LowStockItem `json:"items"`
}

// SectionTotal is the per-section row of the section consumption report
type SectionTotal struct {
	SectionID   uuid.UUID       `json:"section_id"`
	SectionName string          `json:"section_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	Count       int             `json:"count"`
	ByReason    []GroupTotal    `json:"by_reason"`
	ByMaterial  []MaterialTotal `json:"by_material"`
}

// SectionConsumptionReport summarizes consumption recorded by sections
type SectionConsumptionReport struct {
	Period    Period         `json:"period"`
	Sections  []SectionTotal `json:"sections"`
	ByReason  []GroupTotal   `json:"by_reason"`
	TotalRows int            `json:"total_records"`
}

// grouper sums rows under case-folded keys. The label of a group is the
// first spelling seen.
type grouper struct {
	fold   cases.Caser
	order  []string
	groups map[string]*GroupTotal
}

func newGrouper() *grouper {
	return &grouper{fold: cases.Fold(), groups: make(map[string]*GroupTotal)}
}

func (g *grouper) add(label string, quantity, cost decimal.Decimal) {
	label = strings.TrimSpace(label)
	if label == "" {
		label = "Unspecified"
	}
	key := g.fold.String(label)
	row, ok := g.groups[key]
	if !ok {
		row = &GroupTotal{Key: key, Label: label, Quantity: decimal.Zero, Cost: decimal.Zero}
		g.groups[key] = row
		g.order = append(g.order, key)
	}
	row.Quantity = row.Quantity.Add(quantity)
	row.Cost = row.Cost.Add(cost)
	row.Count++
}

// rows returns groups by descending cost, then descending quantity, then key
func (g *grouper) rows() []GroupTotal {
	out := make([]GroupTotal, 0, len(g.order))
	for _, key := range g.order {
		out = append(out, *g.groups[key])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Cost.Cmp(out[j].Cost); c != 0 {
			return c > 0
		}
		if c := out[i].Quantity.Cmp(out[j].Quantity); c != 0 {
			return c > 0
		}
		return out[i].Key < out[j].Key
	})
	return out
}

type materialTotals struct {
	materials map[uuid.UUID]*inventory.RawMaterial
	totals    map[uuid.UUID]*MaterialTotal
}

func newMaterialTotals(materials []inventory.RawMaterial) *materialTotals {
	byID := make(map[uuid.UUID]*inventory.RawMaterial, len(materials))
	for i := range materials {
		byID[materials[i].ID] = &materials[i]
	}
	return &materialTotals{materials: byID, totals: make(map[uuid.UUID]*MaterialTotal)}
}

func (m *materialTotals) category(id uuid.UUID) string {
	if mat, ok := m.materials[id]; ok {
		return mat.Category
	}
	return ""
}

func (m *materialTotals) add(id uuid.UUID, quantity, cost decimal.Decimal) {
	row, ok := m.totals[id]
	if !ok {
		row = &MaterialTotal{RawMaterialID: id, Quantity: decimal.Zero, Cost: decimal.Zero}
		if mat, ok := m.materials[id]; ok {
			row.MaterialName = mat.Name
			row.Category = mat.Category
			row.Unit = mat.Unit.String()
		}
		m.totals[id] = row
	}
	row.Quantity = row.Quantity.Add(quantity)
	row.Cost = row.Cost.Add(cost)
}

// rows returns material totals by descending cost, then name
func (m *materialTotals) rows() []MaterialTotal {
	out := make([]MaterialTotal, 0, len(m.totals))
	for _, row := range m.totals {
		out = append(out, *row)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Cost.Cmp(out[j].Cost); c != 0 {
			return c > 0
		}
		if out[i].MaterialName != out[j].MaterialName {
			return out[i].MaterialName < out[j].MaterialName
		}
		return out[i].RawMaterialID.String() < out[j].RawMaterialID.String()
	})
	return out
}

func topN(rows []MaterialTotal, n int) []MaterialTotal {
	if n <= 0 || n > len(rows) {
		n = len(rows)
	}
	top := make([]MaterialTotal, n)
	copy(top, rows[:n])
	for i := range top {
		top[i].Rank = i + 1
	}
	return top
}

// BuildConsumptionReport totals the consuming movements that occurred in the
// period. Each movement is priced at the unit cost of the entry it drew from.
// With a section, only movements drawn from that section are counted.
func BuildConsumptionReport(ledger inventory.Ledger, period Period, sectionID *uuid.UUID, n int) ConsumptionReport {
	entries := make(map[uuid.UUID]*inventory.StockEntry, len(ledger.Entries))
	for i := range ledger.Entries {
		entries[ledger.Entries[i].ID] = &ledger.Entries[i]
	}

	byType := newGrouper()
	byReason := newGrouper()
	byCategory := newGrouper()
	byMaterial := newMaterialTotals(ledger.Materials)
	report := ConsumptionReport{
		Period:        period,
		SectionID:     sectionID,
		TotalQuantity: decimal.Zero,
		TotalCost:     decimal.Zero,
	}

	for _, m := range ledger.Movements {
		if !m.Type.IsConsuming() || !period.Contains(m.OccurredAt) {
			continue
		}
		if sectionID != nil && (m.FromSectionID == nil || *m.FromSectionID != *sectionID) {
			continue
		}
		cost := decimal.Zero
		if entry, ok := entries[m.StockEntryID]; ok {
			cost = entry.CostOf(m.Quantity)
		}
		report.TotalQuantity = report.TotalQuantity.Add(m.Quantity)
		report.TotalCost = report.TotalCost.Add(cost)
		byType.add(m.Type.String(), m.Quantity, cost)
		byReason.add(m.Reason, m.Quantity, cost)
		byCategory.add(byMaterial.category(m.RawMaterialID), m.Quantity, cost)
		byMaterial.add(m.RawMaterialID, m.Quantity, cost)
	}

	report.ByType = byType.rows()
	report.ByReason = byReason.rows()
	report.ByCategory = byCategory.rows()
	report.ByMaterial = byMaterial.rows()
	report.TopMaterials = topN(report.ByMaterial, n)
	return report
}

// BuildExpenseReport totals the cost of entries received in the period
func BuildExpenseReport(ledger inventory.Ledger, period Period, n int) ExpenseReport {
	byCategory := newGrouper()
	bySupplier := newGrouper()
	byMaterial := newMaterialTotals(ledger.Materials)
	report := ExpenseReport{Period: period, TotalSpend: decimal.Zero}

	for _, e := range ledger.Entries {
		if !period.Contains(e.ReceivedDate) {
			continue
		}
		report.TotalSpend = report.TotalSpend.Add(e.TotalCost)
		report.EntryCount++
		byCategory.add(byMaterial.category(e.RawMaterialID), e.Quantity, e.TotalCost)
		bySupplier.add(e.Supplier, e.Quantity, e.TotalCost)
		byMaterial.add(e.RawMaterialID, e.Quantity, e.TotalCost)
	}

	report.ByCategory = byCategory.rows()
	report.BySupplier = bySupplier.rows()
	report.ByMaterial = byMaterial.rows()
	report.TopMaterials = topN(report.ByMaterial, n)
	return report
}

// BuildLowStockReport lists low stock levels ordered by shortfall. The reorder
// quantity tops a material back up to its maximum.
func BuildLowStockReport(levels []inventory.StockLevel, generatedAt time.Time) LowStockReport {
	report := LowStockReport{GeneratedAt: generatedAt, Items: make([]LowStockItem, 0)}
	for _, l := range levels {
		if !l.IsLowStock {
			continue
		}
		reorder := l.MaxStockLevel.Sub(l.AvailableQuantity)
		if reorder.IsNegative() {
			reorder = decimal.Zero
		}
		report.Items = append(report.Items, LowStockItem{
			RawMaterialID:     l.RawMaterialID,
			MaterialName:      l.MaterialName,
			Category:          l.Category,
			Unit:              l.Unit.String(),
			AvailableQuantity: l.AvailableQuantity,
			DisplayQuantity:   l.DisplayQuantity,
			MinStockLevel:     l.MinStockLevel,
			MaxStockLevel:     l.MaxStockLevel,
			Shortfall:         l.Shortfall(),
			ReorderQuantity:   reorder,
		})
	}
	sort.SliceStable(report.Items, func(i, j int) bool {
		if c := report.Items[i].Shortfall.Cmp(report.Items[j].Shortfall); c != 0 {
			return c > 0
		}
		return strings.ToLower(report.Items[i].MaterialName) < strings.ToLower(report.Items[j].MaterialName)
	})
	return report
}

// BuildSectionConsumptionReport totals section consumption records by
// section and reason. Records carry no entry, so only quantities are summed.
func BuildSectionConsumptionReport(
	records []inventory.SectionConsumption,
	sections []inventory.Section,
	materials []inventory.RawMaterial,
	period Period,
	sectionID *uuid.UUID,
) SectionConsumptionReport {
	names := make(map[uuid.UUID]string, len(sections))
	for _, s := range sections {
		names[s.ID] = s.Name
	}

	type sectionAcc struct {
		total     SectionTotal
		reasons   *grouper
		materials *materialTotals
	}
	bySection := make(map[uuid.UUID]*sectionAcc)
	overall := newGrouper()
	report := SectionConsumptionReport{Period: period}

	for _, r := range records {
		if !period.Contains(r.ConsumedAt) {
			continue
		}
		if sectionID != nil && r.SectionID != *sectionID {
			continue
		}
		acc, ok := bySection[r.SectionID]
		if !ok {
			acc = &sectionAcc{
				total:     SectionTotal{SectionID: r.SectionID, SectionName: names[r.SectionID], Quantity: decimal.Zero},
				reasons:   newGrouper(),
				materials: newMaterialTotals(materials),
			}
			bySection[r.SectionID] = acc
		}
		acc.total.Quantity = acc.total.Quantity.Add(r.Quantity)
		acc.total.Count++
		acc.reasons.add(r.Reason, r.Quantity, decimal.Zero)
		acc.materials.add(r.RawMaterialID, r.Quantity, decimal.Zero)
		overall.add(r.Reason, r.Quantity, decimal.Zero)
		report.TotalRows++
	}

	report.Sections = make([]SectionTotal, 0, len(bySection))
	for _, acc := range bySection {
		acc.total.ByReason = acc.reasons.rows()
		acc.total.ByMaterial = acc.materials.rows()
		report.Sections = append(report.Sections, acc.total)
	}
	sort.SliceStable(report.Sections, func(i, j int) bool {
		if report.Sections[i].SectionName != report.Sections[j].SectionName {
			return report.Sections[i].SectionName < report.Sections[j].SectionName
		}
		return report.Sections[i].SectionID.String() < report.Sections[j].SectionID.String()
	})
	report.ByReason = overall.rows()
	return report
}
