package inventory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kitchen/inventory/internal/domain/inventory"
	"github.com/kitchen/inventory/internal/domain/shared"
	"go.uber.org/zap"
)

// StockService answers read queries over the ledger and manages the
// reference data (materials, sections) that ledger writes point at.
type StockService struct {
	repos      Repositories
	aggregator *inventory.Aggregator
	logger     *zap.Logger
}

// NewStockService creates a new StockService
func NewStockService(repos Repositories, logger *zap.Logger) *StockService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockService{
		repos:      repos,
		aggregator: inventory.NewAggregator(),
		logger:     logger,
	}
}

// SetAggregator replaces the aggregator, mainly to pin the clock in tests
func (s *StockService) SetAggregator(a *inventory.Aggregator) {
	s.aggregator = a
}

// GetCurrentStockLevels computes the level of every active material
func (s *StockService) GetCurrentStockLevels(ctx context.Context, filter StockLevelFilter) ([]StockLevelResponse, error) {
	ledger, err := LoadLedger(ctx, s.repos)
	if err != nil {
		return nil, err
	}
	result := s.aggregator.Aggregate(ledger)
	logIntegrityWarnings(s.logger, result.Warnings)

	levels := make([]inventory.StockLevel, 0, len(result.Levels))
	for _, l := range result.Levels {
		if filter.Category != "" && !strings.EqualFold(l.Category, filter.Category) {
			continue
		}
		if filter.LowStockOnly && !l.IsLowStock {
			continue
		}
		levels = append(levels, l)
	}
	return ToStockLevelResponses(levels), nil
}

// CountLowStock counts active materials at or below their minimum stock
func (s *StockService) CountLowStock(ctx context.Context) (int64, error) {
	levels, err := s.GetCurrentStockLevels(ctx, StockLevelFilter{LowStockOnly: true})
	if err != nil {
		return 0, err
	}
	return int64(len(levels)), nil
}

// GetStockLevel computes the level of a single material, active or not
func (s *StockService) GetStockLevel(ctx context.Context, materialID uuid.UUID) (*StockLevelResponse, error) {
	material, err := findMaterial(ctx, s.repos, materialID)
	if err != nil {
		return nil, err
	}
	ledger, err := LoadMaterialLedger(ctx, s.repos, material)
	if err != nil {
		return nil, err
	}
	level, warnings := s.aggregator.AggregateMaterial(material, ledger)
	logIntegrityWarnings(s.logger, warnings)
	resp := ToStockLevelResponse(level)
	return &resp, nil
}

// GetSectionInventory lists what a section currently holds
func (s *StockService) GetSectionInventory(ctx context.Context, sectionID uuid.UUID) ([]SectionStockResponse, error) {
	if _, err := findSection(ctx, s.repos, sectionID); err != nil {
		return nil, err
	}
	rows, err := s.repos.SectionInventory().FindBySection(ctx, sectionID)
	if err != nil {
		return nil, shared.WrapStoreError("load section inventory", err)
	}
	materials, err := s.repos.Materials().FindAll(ctx, inventory.MaterialFilter{IncludeInactive: true})
	if err != nil {
		return nil, shared.WrapStoreError("load raw materials", err)
	}
	return ToSectionStockResponses(s.aggregator.AggregateSections(rows, materials)), nil
}

// CreateMaterial registers a new raw material
func (s *StockService) CreateMaterial(ctx context.Context, req MaterialRequest) (*MaterialResponse, error) {
	material, err := inventory.NewRawMaterial(req.toDetails())
	if err != nil {
		return nil, err
	}
	if err := s.repos.Materials().Save(ctx, material); err != nil {
		return nil, shared.WrapStoreError("save raw material", err)
	}
	s.logger.Info("raw material created",
		zap.String("raw_material_id", material.ID.String()),
		zap.String("name", material.Name),
		zap.String("unit", material.Unit.String()),
	)
	resp := ToMaterialResponse(material)
	return &resp, nil
}

// UpdateMaterial replaces the editable fields of a raw material
func (s *StockService) UpdateMaterial(ctx context.Context, id uuid.UUID, req MaterialRequest) (*MaterialResponse, error) {
	material, err := findMaterial(ctx, s.repos, id)
	if err != nil {
		return nil, err
	}
	if err := material.Update(req.toDetails()); err != nil {
		return nil, err
	}
	if err := s.repos.Materials().Save(ctx, material); err != nil {
		return nil, shared.WrapStoreError("save raw material", err)
	}
	resp := ToMaterialResponse(material)
	return &resp, nil
}

// GetMaterial returns a raw material by ID
func (s *StockService) GetMaterial(ctx context.Context, id uuid.UUID) (*MaterialResponse, error) {
	material, err := findMaterial(ctx, s.repos, id)
	if err != nil {
		return nil, err
	}
	resp := ToMaterialResponse(material)
	return &resp, nil
}

// ListMaterials returns a page of raw materials and the total count
func (s *StockService) ListMaterials(ctx context.Context, filter MaterialListFilter) ([]MaterialResponse, int64, error) {
	f := inventory.MaterialFilter{
		Filter:          pageFilter(filter.Page, filter.PageSize, filter.OrderBy, filter.OrderDir),
		Category:        filter.Category,
		IncludeInactive: filter.IncludeInactive,
	}
	f.Search = filter.Search
	if filter.OrderBy == "" {
		f.OrderBy = "name"
		f.OrderDir = "asc"
	}

	materials, err := s.repos.Materials().FindAll(ctx, f)
	if err != nil {
		return nil, 0, shared.WrapStoreError("list raw materials", err)
	}
	total, err := s.repos.Materials().Count(ctx, f)
	if err != nil {
		return nil, 0, shared.WrapStoreError("count raw materials", err)
	}
	out := make([]MaterialResponse, len(materials))
	for i := range materials {
		out[i] = ToMaterialResponse(&materials[i])
	}
	return out, total, nil
}

// DeactivateMaterial soft-deletes a raw material. Its ledger history is kept.
func (s *StockService) DeactivateMaterial(ctx context.Context, id uuid.UUID) error {
	material, err := findMaterial(ctx, s.repos, id)
	if err != nil {
		return err
	}
	material.Deactivate()
	if err := s.repos.Materials().Save(ctx, material); err != nil {
		return shared.WrapStoreError("save raw material", err)
	}
	s.logger.Info("raw material deactivated", zap.String("raw_material_id", id.String()))
	return nil
}

// CreateSection registers a new section
func (s *StockService) CreateSection(ctx context.Context, req SectionRequest) (*SectionResponse, error) {
	section, err := inventory.NewSection(req.Name, inventory.SectionType(strings.ToUpper(req.Type)), req.Description)
	if err != nil {
		return nil, err
	}
	if err := s.repos.Sections().Save(ctx, section); err != nil {
		return nil, shared.WrapStoreError("save section", err)
	}
	resp := ToSectionResponse(section)
	return &resp, nil
}

// GetSection returns a section by ID
func (s *StockService) GetSection(ctx context.Context, id uuid.UUID) (*SectionResponse, error) {
	section, err := findSection(ctx, s.repos, id)
	if err != nil {
		return nil, err
	}
	resp := ToSectionResponse(section)
	return &resp, nil
}

// ListSections returns all sections ordered by name
func (s *StockService) ListSections(ctx context.Context, includeInactive bool) ([]SectionResponse, error) {
	sections, err := s.repos.Sections().FindAll(ctx, includeInactive)
	if err != nil {
		return nil, shared.WrapStoreError("list sections", err)
	}
	out := make([]SectionResponse, len(sections))
	for i := range sections {
		out[i] = ToSectionResponse(&sections[i])
	}
	return out, nil
}

// GetEntry returns a stock entry by ID
func (s *StockService) GetEntry(ctx context.Context, id uuid.UUID) (*StockEntryResponse, error) {
	entry, err := findEntry(ctx, s.repos, id)
	if err != nil {
		return nil, err
	}
	resp := ToStockEntryResponse(entry)
	return &resp, nil
}

// ListEntries returns a page of stock entries and the total count
func (s *StockService) ListEntries(ctx context.Context, filter EntryListFilter) ([]StockEntryResponse, int64, error) {
	f := inventory.EntryFilter{
		Filter:        pageFilter(filter.Page, filter.PageSize, "received_date", "desc"),
		RawMaterialID: filter.RawMaterialID,
		Supplier:      filter.Supplier,
		Received:      dateRange(filter.From, filter.To),
	}
	entries, err := s.repos.Entries().FindAll(ctx, f)
	if err != nil {
		return nil, 0, shared.WrapStoreError("list stock entries", err)
	}
	total, err := s.repos.Entries().Count(ctx, f)
	if err != nil {
		return nil, 0, shared.WrapStoreError("count stock entries", err)
	}
	out := make([]StockEntryResponse, len(entries))
	for i := range entries {
		out[i] = ToStockEntryResponse(&entries[i])
	}
	return out, total, nil
}

// ListMovements returns a page of ledger movements, newest first
func (s *StockService) ListMovements(ctx context.Context, filter MovementListFilter) ([]StockMovementResponse, int64, error) {
	f := inventory.MovementFilter{
		Filter:        pageFilter(filter.Page, filter.PageSize, "occurred_at", "desc"),
		RawMaterialID: filter.RawMaterialID,
		StockEntryID:  filter.StockEntryID,
		SectionID:     filter.SectionID,
		Occurred:      dateRange(filter.From, filter.To),
	}
	if filter.Type != "" {
		f.Types = []inventory.MovementType{inventory.MovementType(strings.ToUpper(filter.Type))}
	}
	movements, err := s.repos.Movements().FindAll(ctx, f)
	if err != nil {
		return nil, 0, shared.WrapStoreError("list stock movements", err)
	}
	total, err := s.repos.Movements().Count(ctx, f)
	if err != nil {
		return nil, 0, shared.WrapStoreError("count stock movements", err)
	}
	return ToStockMovementResponses(movements), total, nil
}

func pageFilter(page, pageSize int, orderBy, orderDir string) shared.Filter {
	f := shared.DefaultFilter()
	if page > 0 {
		f.Page = page
	}
	if pageSize > 0 {
		f.PageSize = pageSize
	}
	if orderBy != "" {
		f.OrderBy = orderBy
	}
	if orderDir != "" {
		f.OrderDir = orderDir
	}
	return f
}

// dateRange turns optional day bounds into an inclusive range. A bare date in
// To covers that whole day.
func dateRange(from, to *time.Time) shared.DateRange {
	var r shared.DateRange
	if from != nil {
		r.From = *from
	}
	if to != nil {
		end := *to
		if end.Equal(end.Truncate(24 * time.Hour)) {
			end = end.Add(24*time.Hour - time.Nanosecond)
		}
		r.To = end
	}
	return r
}
