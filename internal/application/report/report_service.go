package report

import (
	"context"
	"time"

	"github.com/google/uuid"
	appinventory "github.com/kitchen/inventory/internal/application/inventory"
	"github.com/kitchen/inventory/internal/domain/inventory"
	"github.com/kitchen/inventory/internal/domain/shared"
	"go.uber.org/zap"
)

// DefaultTopN is used when a request does not ask for a ranking size
const DefaultTopN = 10

// ReportFilter defines the request filter for ledger reports
type ReportFilter struct {
	From      *time.Time `form:"from" time_format:"2006-01-02"`
	To        *time.Time `form:"to" time_format:"2006-01-02"`
	SectionID *uuid.UUID `form:"-"`
	TopN      int        `form:"top_n" binding:"omitempty,min=1,max=100"`
}

// Period converts the filter into report bounds. A bare date in To covers
// the whole day.
func (f ReportFilter) Period() (Period, error) {
	var p Period
	if f.From != nil {
		p.From = *f.From
	}
	if f.To != nil {
		p.To = *f.To
		if p.To.Equal(p.To.Truncate(24 * time.Hour)) {
			p.To = p.To.Add(24*time.Hour - time.Nanosecond)
		}
	}
	if !p.From.IsZero() && !p.To.IsZero() && p.To.Before(p.From) {
		return Period{}, shared.NewValidationError("to", "End date cannot be before start date")
	}
	return p, nil
}

// ReportService builds reports from a single read of the ledger
type ReportService struct {
	repos       appinventory.Repositories
	aggregator  *inventory.Aggregator
	defaultTopN int
	logger      *zap.Logger
}

// NewReportService creates a new ReportService
func NewReportService(repos appinventory.Repositories, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		repos:       repos,
		aggregator:  inventory.NewAggregator(),
		defaultTopN: DefaultTopN,
		logger:      logger,
	}
}

// SetDefaultTopN changes the ranking size used when a request gives none
func (s *ReportService) SetDefaultTopN(n int) {
	if n > 0 {
		s.defaultTopN = n
	}
}

func (s *ReportService) topN(requested int) int {
	if requested > 0 {
		return requested
	}
	return s.defaultTopN
}

// GetConsumptionReport summarizes consumed stock with its cost
func (s *ReportService) GetConsumptionReport(ctx context.Context, filter ReportFilter) (*ConsumptionReport, error) {
	period, err := filter.Period()
	if err != nil {
		return nil, err
	}
	ledger, err := appinventory.LoadLedger(ctx, s.repos)
	if err != nil {
		return nil, err
	}
	report := BuildConsumptionReport(ledger, period, filter.SectionID, s.topN(filter.TopN))
	return &report, nil
}

// GetExpenseReport summarizes spend on receipts
func (s *ReportService) GetExpenseReport(ctx context.Context, filter ReportFilter) (*ExpenseReport, error) {
	period, err := filter.Period()
	if err != nil {
		return nil, err
	}
	ledger, err := appinventory.LoadLedger(ctx, s.repos)
	if err != nil {
		return nil, err
	}
	report := BuildExpenseReport(ledger, period, s.topN(filter.TopN))
	return &report, nil
}

// GetLowStockReport lists active materials at or below their minimum
func (s *ReportService) GetLowStockReport(ctx context.Context) (*LowStockReport, error) {
	ledger, err := appinventory.LoadLedger(ctx, s.repos)
	if err != nil {
		return nil, err
	}
	result := s.aggregator.Aggregate(ledger)
	for _, w := range result.Warnings {
		s.logger.Warn("ledger integrity warning: "+w.Message,
			zap.String("raw_material_id", w.RawMaterialID.String()),
			zap.String("quantity", w.Quantity.String()),
		)
	}
	generatedAt := time.Now().UTC()
	if len(result.Levels) > 0 {
		generatedAt = result.Levels[0].LastUpdated
	}
	report := BuildLowStockReport(result.Levels, generatedAt)
	return &report, nil
}

// GetSectionConsumptionReport summarizes consumption recorded by sections
func (s *ReportService) GetSectionConsumptionReport(ctx context.Context, filter ReportFilter) (*SectionConsumptionReport, error) {
	period, err := filter.Period()
	if err != nil {
		return nil, err
	}
	records, err := s.repos.Consumptions().FindAll(ctx, inventory.ConsumptionFilter{
		SectionID: filter.SectionID,
		Consumed:  shared.DateRange{From: period.From, To: period.To},
	})
	if err != nil {
		return nil, shared.WrapStoreError("load section consumption", err)
	}
	sections, err := s.repos.Sections().FindAll(ctx, true)
	if err != nil {
		return nil, shared.WrapStoreError("load sections", err)
	}
	materials, err := s.repos.Materials().FindAll(ctx, inventory.MaterialFilter{IncludeInactive: true})
	if err != nil {
		return nil, shared.WrapStoreError("load raw materials", err)
	}
	report := BuildSectionConsumptionReport(records, sections, materials, period, filter.SectionID)
	return &report, nil
}
