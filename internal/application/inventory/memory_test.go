package inventory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kitchen/inventory/internal/domain/inventory"
	"github.com/kitchen/inventory/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// memLedger is an in-memory ledger store. Its scope serializes transactions
// and rolls back every change made by a failed one.
type memLedger struct {
	txMu sync.Mutex
	mu   sync.Mutex

	materials    map[uuid.UUID]inventory.RawMaterial
	entries      map[uuid.UUID]inventory.StockEntry
	movements    []inventory.StockMovement
	sections     map[uuid.UUID]inventory.Section
	allocations  map[[2]uuid.UUID]inventory.SectionInventory
	consumptions []inventory.SectionConsumption
}

func newMemLedger() *memLedger {
	return &memLedger{
		materials:   make(map[uuid.UUID]inventory.RawMaterial),
		entries:     make(map[uuid.UUID]inventory.StockEntry),
		sections:    make(map[uuid.UUID]inventory.Section),
		allocations: make(map[[2]uuid.UUID]inventory.SectionInventory),
	}
}

func (l *memLedger) repos() Repositories {
	return Repositories{
		MaterialRepo:    memMaterials{l},
		EntryRepo:       memEntries{l},
		MovementRepo:    memMovements{l},
		SectionRepo:     memSections{l},
		AllocationRepo:  memAllocations{l},
		ConsumptionRepo: memConsumptions{l},
	}
}

type memSnapshot struct {
	materials    map[uuid.UUID]inventory.RawMaterial
	entries      map[uuid.UUID]inventory.StockEntry
	movements    []inventory.StockMovement
	sections     map[uuid.UUID]inventory.Section
	allocations  map[[2]uuid.UUID]inventory.SectionInventory
	consumptions []inventory.SectionConsumption
}

func (l *memLedger) snapshot() memSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := memSnapshot{
		materials:    make(map[uuid.UUID]inventory.RawMaterial, len(l.materials)),
		entries:      make(map[uuid.UUID]inventory.StockEntry, len(l.entries)),
		movements:    append([]inventory.StockMovement(nil), l.movements...),
		sections:     make(map[uuid.UUID]inventory.Section, len(l.sections)),
		allocations:  make(map[[2]uuid.UUID]inventory.SectionInventory, len(l.allocations)),
		consumptions: append([]inventory.SectionConsumption(nil), l.consumptions...),
	}
	for k, v := range l.materials {
		s.materials[k] = v
	}
	for k, v := range l.entries {
		s.entries[k] = v
	}
	for k, v := range l.sections {
		s.sections[k] = v
	}
	for k, v := range l.allocations {
		s.allocations[k] = v
	}
	return s
}

func (l *memLedger) restore(s memSnapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.materials = s.materials
	l.entries = s.entries
	l.movements = s.movements
	l.sections = s.sections
	l.allocations = s.allocations
	l.consumptions = s.consumptions
}

func (l *memLedger) movementCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.movements)
}

// memScope runs each transaction alone and undoes it on error
type memScope struct {
	l *memLedger
}

func (s memScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	s.l.txMu.Lock()
	defer s.l.txMu.Unlock()
	snap := s.l.snapshot()
	if err := fn(s.l.repos()); err != nil {
		s.l.restore(snap)
		return err
	}
	return nil
}

type memMaterials struct{ l *memLedger }

func (r memMaterials) FindByID(_ context.Context, id uuid.UUID) (*inventory.RawMaterial, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	m, ok := r.l.materials[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &m, nil
}

func (r memMaterials) FindAll(_ context.Context, filter inventory.MaterialFilter) ([]inventory.RawMaterial, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	out := make([]inventory.RawMaterial, 0, len(r.l.materials))
	for _, m := range r.l.materials {
		if !filter.IncludeInactive && !m.Active {
			continue
		}
		if filter.Category != "" && !strings.EqualFold(filter.Category, m.Category) {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(m.Name), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r memMaterials) Count(ctx context.Context, filter inventory.MaterialFilter) (int64, error) {
	all, err := r.FindAll(ctx, filter)
	return int64(len(all)), err
}

func (r memMaterials) Save(_ context.Context, m *inventory.RawMaterial) error {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	r.l.materials[m.ID] = *m
	return nil
}

func (r memMaterials) TouchLedger(_ context.Context, id uuid.UUID, at time.Time) error {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	m, ok := r.l.materials[id]
	if !ok {
		return shared.ErrNotFound
	}
	m.RecordLedgerWrite(at)
	r.l.materials[id] = m
	return nil
}

type memEntries struct{ l *memLedger }

func (r memEntries) FindByID(_ context.Context, id uuid.UUID) (*inventory.StockEntry, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	e, ok := r.l.entries[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &e, nil
}

func (r memEntries) FindAll(_ context.Context, filter inventory.EntryFilter) ([]inventory.StockEntry, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	out := make([]inventory.StockEntry, 0, len(r.l.entries))
	for _, e := range r.l.entries {
		if filter.RawMaterialID != nil && e.RawMaterialID != *filter.RawMaterialID {
			continue
		}
		if filter.Supplier != "" && !strings.EqualFold(filter.Supplier, e.Supplier) {
			continue
		}
		if !filter.Received.Contains(e.ReceivedDate) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedDate.Before(out[j].ReceivedDate) })
	return out, nil
}

func (r memEntries) FindByMaterial(ctx context.Context, materialID uuid.UUID) ([]inventory.StockEntry, error) {
	return r.FindAll(ctx, inventory.EntryFilter{RawMaterialID: &materialID})
}

func (r memEntries) Count(ctx context.Context, filter inventory.EntryFilter) (int64, error) {
	all, err := r.FindAll(ctx, filter)
	return int64(len(all)), err
}

func (r memEntries) Create(_ context.Context, e *inventory.StockEntry) error {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	r.l.entries[e.ID] = *e
	return nil
}

func (r memEntries) Update(_ context.Context, e *inventory.StockEntry) error {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	if _, ok := r.l.entries[e.ID]; !ok {
		return shared.ErrNotFound
	}
	r.l.entries[e.ID] = *e
	return nil
}

type memMovements struct{ l *memLedger }

func (r memMovements) Create(_ context.Context, m *inventory.StockMovement) error {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	r.l.movements = append(r.l.movements, *m)
	return nil
}

func (r memMovements) FindAll(_ context.Context, filter inventory.MovementFilter) ([]inventory.StockMovement, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	var out []inventory.StockMovement
	for _, m := range r.l.movements {
		if filter.RawMaterialID != nil && m.RawMaterialID != *filter.RawMaterialID {
			continue
		}
		if filter.StockEntryID != nil && m.StockEntryID != *filter.StockEntryID {
			continue
		}
		if filter.SectionID != nil && !touchesSection(m, *filter.SectionID) {
			continue
		}
		if len(filter.Types) > 0 && !hasType(filter.Types, m.Type) {
			continue
		}
		if !filter.Occurred.Contains(m.OccurredAt) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func touchesSection(m inventory.StockMovement, id uuid.UUID) bool {
	return (m.FromSectionID != nil && *m.FromSectionID == id) || (m.ToSectionID != nil && *m.ToSectionID == id)
}

func hasType(types []inventory.MovementType, t inventory.MovementType) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

func (r memMovements) FindByEntries(_ context.Context, ids []uuid.UUID) ([]inventory.StockMovement, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []inventory.StockMovement
	for _, m := range r.l.movements {
		if want[m.StockEntryID] {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r memMovements) Count(ctx context.Context, filter inventory.MovementFilter) (int64, error) {
	all, err := r.FindAll(ctx, filter)
	return int64(len(all)), err
}

type memSections struct{ l *memLedger }

func (r memSections) FindByID(_ context.Context, id uuid.UUID) (*inventory.Section, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	s, ok := r.l.sections[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &s, nil
}

func (r memSections) FindAll(_ context.Context, includeInactive bool) ([]inventory.Section, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	var out []inventory.Section
	for _, s := range r.l.sections {
		if includeInactive || s.Active {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r memSections) Save(_ context.Context, s *inventory.Section) error {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	r.l.sections[s.ID] = *s
	return nil
}

type memAllocations struct{ l *memLedger }

func (r memAllocations) Find(_ context.Context, sectionID, materialID uuid.UUID) (*inventory.SectionInventory, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	row, ok := r.l.allocations[[2]uuid.UUID{sectionID, materialID}]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &row, nil
}

func (r memAllocations) filter(keep func(inventory.SectionInventory) bool) []inventory.SectionInventory {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	var out []inventory.SectionInventory
	for _, row := range r.l.allocations {
		if keep(row) {
			out = append(out, row)
		}
	}
	return out
}

func (r memAllocations) FindBySection(_ context.Context, sectionID uuid.UUID) ([]inventory.SectionInventory, error) {
	return r.filter(func(row inventory.SectionInventory) bool { return row.SectionID == sectionID }), nil
}

func (r memAllocations) FindByMaterial(_ context.Context, materialID uuid.UUID) ([]inventory.SectionInventory, error) {
	return r.filter(func(row inventory.SectionInventory) bool { return row.RawMaterialID == materialID }), nil
}

func (r memAllocations) FindAll(_ context.Context) ([]inventory.SectionInventory, error) {
	return r.filter(func(inventory.SectionInventory) bool { return true }), nil
}

func (r memAllocations) Allocate(_ context.Context, sectionID, materialID uuid.UUID, quantity decimal.Decimal, at time.Time) error {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	key := [2]uuid.UUID{sectionID, materialID}
	row, ok := r.l.allocations[key]
	if !ok {
		row = *inventory.NewSectionInventory(sectionID, materialID)
	}
	if err := row.Allocate(quantity, at); err != nil {
		return err
	}
	r.l.allocations[key] = row
	return nil
}

func (r memAllocations) Draw(_ context.Context, sectionID, materialID uuid.UUID, quantity decimal.Decimal, at time.Time) error {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	key := [2]uuid.UUID{sectionID, materialID}
	row, ok := r.l.allocations[key]
	if !ok {
		return shared.ErrInsufficientStock
	}
	if err := row.Draw(quantity, at); err != nil {
		return shared.ErrInsufficientStock
	}
	r.l.allocations[key] = row
	return nil
}

type memConsumptions struct{ l *memLedger }

func (r memConsumptions) Create(_ context.Context, c *inventory.SectionConsumption) error {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	r.l.consumptions = append(r.l.consumptions, *c)
	return nil
}

func (r memConsumptions) FindAll(_ context.Context, filter inventory.ConsumptionFilter) ([]inventory.SectionConsumption, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	var out []inventory.SectionConsumption
	for _, c := range r.l.consumptions {
		if filter.SectionID != nil && c.SectionID != *filter.SectionID {
			continue
		}
		if filter.RawMaterialID != nil && c.RawMaterialID != *filter.RawMaterialID {
			continue
		}
		if !filter.Consumed.Contains(c.ConsumedAt) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

var (
	_ inventory.RawMaterialRepository        = memMaterials{}
	_ inventory.StockEntryRepository         = memEntries{}
	_ inventory.StockMovementRepository      = memMovements{}
	_ inventory.SectionRepository            = memSections{}
	_ inventory.SectionInventoryRepository   = memAllocations{}
	_ inventory.SectionConsumptionRepository = memConsumptions{}
	_ TransactionScope                       = memScope{}
)
