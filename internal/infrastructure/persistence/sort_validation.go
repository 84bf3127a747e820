package persistence

import (
	"strings"

	"github.com/kitchen/inventory/internal/domain/shared"
	"gorm.io/gorm"
)

// ValidateSortOrder normalizes the sort order to ASC or DESC.
// Anything other than "asc" yields DESC.
func ValidateSortOrder(orderDir string) string {
	if strings.EqualFold(strings.TrimSpace(orderDir), "asc") {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField returns sortField when it is whitelisted, else defaultField
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// MaterialSortFields contains allowed sort fields for raw materials
var MaterialSortFields = map[string]bool{
	"name":            true,
	"category":        true,
	"unit_cost":       true,
	"supplier":        true,
	"min_stock_level": true,
	"created_at":      true,
	"updated_at":      true,
}

// EntrySortFields contains allowed sort fields for stock entries
var EntrySortFields = map[string]bool{
	"received_date": true,
	"expiry_date":   true,
	"quantity":      true,
	"total_cost":    true,
	"supplier":      true,
	"created_at":    true,
}

// MovementSortFields contains allowed sort fields for stock movements
var MovementSortFields = map[string]bool{
	"occurred_at": true,
	"type":        true,
	"quantity":    true,
}

// applyPage orders and paginates a query. A zero PageSize means no limit.
// The id column breaks ties so pages are stable.
func applyPage(query *gorm.DB, filter shared.Filter, allowed map[string]bool, defaultField string) *gorm.DB {
	field := ValidateSortField(filter.OrderBy, allowed, defaultField)
	query = query.Order(field + " " + ValidateSortOrder(filter.OrderDir)).Order("id ASC")
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}
	return query
}
