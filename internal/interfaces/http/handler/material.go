package handler

import (
	"github.com/gin-gonic/gin"
	inventoryapp "github.com/kitchen/inventory/internal/application/inventory"
	"github.com/kitchen/inventory/internal/interfaces/http/dto"
)

// MaterialHandler handles raw material endpoints
type MaterialHandler struct {
	BaseHandler
	stockService *inventoryapp.StockService
}

// NewMaterialHandler creates a new MaterialHandler
func NewMaterialHandler(stockService *inventoryapp.StockService) *MaterialHandler {
	return &MaterialHandler{stockService: stockService}
}

// Create creates a raw material
// POST /api/v1/materials
func (h *MaterialHandler) Create(c *gin.Context) {
	var req inventoryapp.MaterialRequest
	if !h.bindJSON(c, &req) {
		return
	}
	material, err := h.stockService.CreateMaterial(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, material)
}

// List lists raw materials
// GET /api/v1/materials
func (h *MaterialHandler) List(c *gin.Context) {
	var filter inventoryapp.MaterialListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	materials, total, err := h.stockService.ListMaterials(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, materials, total, dto.PageRequest{Page: filter.Page, PageSize: filter.PageSize})
}

// GetByID returns one raw material
// GET /api/v1/materials/:id
func (h *MaterialHandler) GetByID(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	material, err := h.stockService.GetMaterial(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, material)
}

// Update replaces the descriptive fields of a raw material
// PUT /api/v1/materials/:id
func (h *MaterialHandler) Update(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.MaterialRequest
	if !h.bindJSON(c, &req) {
		return
	}
	material, err := h.stockService.UpdateMaterial(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, material)
}

// Deactivate hides a raw material from stock levels. Its history is kept.
// DELETE /api/v1/materials/:id
func (h *MaterialHandler) Deactivate(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.stockService.DeactivateMaterial(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Message(c, "Material deactivated")
}
