package handler

import (
	"github.com/gin-gonic/gin"
	inventoryapp "github.com/kitchen/inventory/internal/application/inventory"
	"github.com/kitchen/inventory/internal/interfaces/http/dto"
)

// StockHandler serves stock levels, receipts and movements
type StockHandler struct {
	BaseHandler
	stockService *inventoryapp.StockService
	recorder     *inventoryapp.MovementRecorder
}

// NewStockHandler creates a new StockHandler
func NewStockHandler(stockService *inventoryapp.StockService, recorder *inventoryapp.MovementRecorder) *StockHandler {
	return &StockHandler{
		stockService: stockService,
		recorder:     recorder,
	}
}

// ListStockLevels returns the current level of every active material
// GET /api/v1/stock-levels
func (h *StockHandler) ListStockLevels(c *gin.Context) {
	var filter inventoryapp.StockLevelFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	levels, err := h.stockService.GetCurrentStockLevels(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, levels)
}

// GetStockLevel returns the level of one material
// GET /api/v1/stock-levels/:materialId
func (h *StockHandler) GetStockLevel(c *gin.Context) {
	id, ok := h.uuidParam(c, "materialId")
	if !ok {
		return
	}
	level, err := h.stockService.GetStockLevel(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, level)
}

// CreateEntry records a receipt
// POST /api/v1/stock-entries
func (h *StockHandler) CreateEntry(c *gin.Context) {
	var req inventoryapp.CreateEntryRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.ReceivedBy = performer(c, req.ReceivedBy)

	entry, err := h.recorder.RecordReceipt(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, entry)
}

// ListEntries lists receipts, newest first
// GET /api/v1/stock-entries
func (h *StockHandler) ListEntries(c *gin.Context) {
	var filter inventoryapp.EntryListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	var ok bool
	if filter.RawMaterialID, ok = h.optionalUUIDQuery(c, "raw_material_id"); !ok {
		return
	}

	entries, total, err := h.stockService.ListEntries(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, entries, total, dto.PageRequest{Page: filter.Page, PageSize: filter.PageSize})
}

// GetEntry returns one receipt
// GET /api/v1/stock-entries/:id
func (h *StockHandler) GetEntry(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	entry, err := h.stockService.GetEntry(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// CorrectEntry edits a receipt's quantity or cost. The difference is
// recorded as an ADJUSTMENT movement.
// PUT /api/v1/stock-entries/:id
func (h *StockHandler) CorrectEntry(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.CorrectEntryRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.PerformedBy = performer(c, req.PerformedBy)

	entry, err := h.recorder.CorrectEntry(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// CreateMovement appends a movement against a stock entry
// POST /api/v1/stock-movements
func (h *StockHandler) CreateMovement(c *gin.Context) {
	var req inventoryapp.CreateMovementRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.PerformedBy = performer(c, req.PerformedBy)

	movement, err := h.recorder.CreateMovement(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, movement)
}

// ListMovements lists ledger movements, newest first
// GET /api/v1/stock-movements
func (h *StockHandler) ListMovements(c *gin.Context) {
	var filter inventoryapp.MovementListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	var ok bool
	if filter.RawMaterialID, ok = h.optionalUUIDQuery(c, "raw_material_id"); !ok {
		return
	}
	if filter.StockEntryID, ok = h.optionalUUIDQuery(c, "stock_entry_id"); !ok {
		return
	}
	if filter.SectionID, ok = h.optionalUUIDQuery(c, "section_id"); !ok {
		return
	}

	movements, total, err := h.stockService.ListMovements(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, movements, total, dto.PageRequest{Page: filter.Page, PageSize: filter.PageSize})
}

// TransferStock moves stock between sections
// POST /api/v1/stock-movements/transfer
func (h *StockHandler) TransferStock(c *gin.Context) {
	var req inventoryapp.TransferRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.PerformedBy = performer(c, req.PerformedBy)

	movement, err := h.recorder.TransferStock(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, movement)
}

// ConsumeStock takes stock out of central inventory, oldest receipts first
// POST /api/v1/stock-movements/consume
func (h *StockHandler) ConsumeStock(c *gin.Context) {
	var req inventoryapp.ConsumeStockRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.PerformedBy = performer(c, req.PerformedBy)

	movements, err := h.recorder.ConsumeStock(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, movements)
}
