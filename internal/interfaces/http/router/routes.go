package router

import (
	"github.com/kitchen/inventory/internal/interfaces/http/handler"
)

// Handlers bundles the ledger endpoints
type Handlers struct {
	Stock    *handler.StockHandler
	Material *handler.MaterialHandler
	Section  *handler.SectionHandler
	Report   *handler.ReportHandler
	System   *handler.SystemHandler
}

// LedgerRoutes returns the route groups served under /api/v1
func LedgerRoutes(h Handlers) []RouteRegistrar {
	stockLevels := NewDomainGroup("stock-levels", "/stock-levels").
		GET("", h.Stock.ListStockLevels).
		GET("/:materialId", h.Stock.GetStockLevel)

	entries := NewDomainGroup("stock-entries", "/stock-entries").
		GET("", h.Stock.ListEntries).
		POST("", h.Stock.CreateEntry).
		GET("/:id", h.Stock.GetEntry).
		PUT("/:id", h.Stock.CorrectEntry)

	movements := NewDomainGroup("stock-movements", "/stock-movements").
		GET("", h.Stock.ListMovements).
		POST("", h.Stock.CreateMovement).
		POST("/transfer", h.Stock.TransferStock).
		POST("/consume", h.Stock.ConsumeStock)

	materials := NewDomainGroup("materials", "/materials").
		GET("", h.Material.List).
		POST("", h.Material.Create).
		GET("/:id", h.Material.GetByID).
		PUT("/:id", h.Material.Update).
		DELETE("/:id", h.Material.Deactivate)

	sections := NewDomainGroup("sections", "/sections").
		GET("", h.Section.List).
		POST("", h.Section.Create).
		GET("/:id", h.Section.GetByID).
		GET("/:id/inventory", h.Section.GetInventory).
		POST("/:id/assign", h.Section.AssignStock).
		POST("/:id/consume", h.Section.RecordConsumption)

	reports := NewDomainGroup("reports", "/reports").
		GET("/consumption", h.Report.GetConsumption).
		GET("/expenses", h.Report.GetExpenses).
		GET("/low-stock", h.Report.GetLowStock).
		GET("/section-consumption", h.Report.GetSectionConsumption)

	system := NewDomainGroup("system", "/system").
		GET("/info", h.System.GetSystemInfo)

	return []RouteRegistrar{stockLevels, entries, movements, materials, sections, reports, system}
}
