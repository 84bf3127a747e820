package handler

import (
	"github.com/gin-gonic/gin"
	inventoryapp "github.com/kitchen/inventory/internal/application/inventory"
)

// SectionHandler handles kitchen section endpoints
type SectionHandler struct {
	BaseHandler
	stockService *inventoryapp.StockService
	recorder     *inventoryapp.MovementRecorder
}

// NewSectionHandler creates a new SectionHandler
func NewSectionHandler(stockService *inventoryapp.StockService, recorder *inventoryapp.MovementRecorder) *SectionHandler {
	return &SectionHandler{
		stockService: stockService,
		recorder:     recorder,
	}
}

// Create creates a section
// POST /api/v1/sections
func (h *SectionHandler) Create(c *gin.Context) {
	var req inventoryapp.SectionRequest
	if !h.bindJSON(c, &req) {
		return
	}
	section, err := h.stockService.CreateSection(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, section)
}

// List lists sections. Inactive ones are included with include_inactive=true.
// GET /api/v1/sections
func (h *SectionHandler) List(c *gin.Context) {
	includeInactive := c.Query("include_inactive") == "true"
	sections, err := h.stockService.ListSections(c.Request.Context(), includeInactive)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sections)
}

// GetByID returns one section
// GET /api/v1/sections/:id
func (h *SectionHandler) GetByID(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	section, err := h.stockService.GetSection(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, section)
}

// GetInventory returns what the section currently holds
// GET /api/v1/sections/:id/inventory
func (h *SectionHandler) GetInventory(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	inventory, err := h.stockService.GetSectionInventory(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inventory)
}

// AssignStock allocates central stock to the section
// POST /api/v1/sections/:id/assign
func (h *SectionHandler) AssignStock(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.AssignStockRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.AssignedBy = performer(c, req.AssignedBy)

	allocation, err := h.recorder.AssignStockToSection(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, allocation)
}

// RecordConsumption uses up stock held by the section
// POST /api/v1/sections/:id/consume
func (h *SectionHandler) RecordConsumption(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.RecordConsumptionRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.ConsumedBy = performer(c, req.ConsumedBy)

	consumption, err := h.recorder.RecordConsumption(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, consumption)
}
