package handler

import (
	"github.com/gin-gonic/gin"
	reportapp "github.com/kitchen/inventory/internal/application/report"
)

// ReportHandler serves ledger reports
type ReportHandler struct {
	BaseHandler
	reportService *reportapp.ReportService
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(reportService *reportapp.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// bindFilter reads from, to, top_n and section_id
func (h *ReportHandler) bindFilter(c *gin.Context) (reportapp.ReportFilter, bool) {
	var filter reportapp.ReportFilter
	if !h.bindQuery(c, &filter) {
		return filter, false
	}
	sectionID, ok := h.optionalUUIDQuery(c, "section_id")
	if !ok {
		return filter, false
	}
	filter.SectionID = sectionID
	return filter, true
}

// GetConsumption returns consumption totals by reason, material and category
// GET /api/v1/reports/consumption
func (h *ReportHandler) GetConsumption(c *gin.Context) {
	filter, ok := h.bindFilter(c)
	if !ok {
		return
	}
	report, err := h.reportService.GetConsumptionReport(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// GetExpenses returns receipt spend by material, category and supplier
// GET /api/v1/reports/expenses
func (h *ReportHandler) GetExpenses(c *gin.Context) {
	filter, ok := h.bindFilter(c)
	if !ok {
		return
	}
	report, err := h.reportService.GetExpenseReport(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// GetLowStock lists materials at or below their minimum, largest shortfall first
// GET /api/v1/reports/low-stock
func (h *ReportHandler) GetLowStock(c *gin.Context) {
	report, err := h.reportService.GetLowStockReport(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// GetSectionConsumption returns section consumption totals
// GET /api/v1/reports/section-consumption
func (h *ReportHandler) GetSectionConsumption(c *gin.Context) {
	filter, ok := h.bindFilter(c)
	if !ok {
		return
	}
	report, err := h.reportService.GetSectionConsumptionReport(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}
