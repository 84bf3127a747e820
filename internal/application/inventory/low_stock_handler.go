package inventory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kitchen/inventory/internal/domain/inventory"
	"github.com/kitchen/inventory/internal/domain/shared"
	"go.uber.org/zap"
)

// StockAlert represents a low stock alert for one material
type StockAlert struct {
	RawMaterialID     string `json:"raw_material_id"`
	MaterialName      string `json:"material_name"`
	Category          string `json:"category"`
	AvailableQuantity string `json:"available_quantity"`
	MinStockLevel     string `json:"min_stock_level"`
	Shortfall         string `json:"shortfall"`
	AlertType         string `json:"alert_type"` // "low_stock", "out_of_stock"
}

// StockAlertNotifier sends stock alerts to whoever restocks the kitchen
type StockAlertNotifier interface {
	SendAlert(ctx context.Context, alert StockAlert) error
}

// LowStockHandler turns StockBelowMinimum events into alerts. Repeated events
// for the same material inside the quiet period are dropped.
type LowStockHandler struct {
	logger      *zap.Logger
	notifier    StockAlertNotifier
	quietPeriod time.Duration
	now         func() time.Time

	mu       sync.Mutex
	lastSent map[uuid.UUID]time.Time
}

// NewLowStockHandler creates a new handler for low stock events
func NewLowStockHandler(logger *zap.Logger) *LowStockHandler {
	return &LowStockHandler{
		logger:   logger,
		now:      time.Now,
		lastSent: make(map[uuid.UUID]time.Time),
	}
}

// WithNotifier sets the notifier for sending alerts
func (h *LowStockHandler) WithNotifier(notifier StockAlertNotifier) *LowStockHandler {
	h.notifier = notifier
	return h
}

// WithQuietPeriod sets the minimum interval between alerts for one material
func (h *LowStockHandler) WithQuietPeriod(d time.Duration) *LowStockHandler {
	h.quietPeriod = d
	return h
}

// EventTypes returns the event types this handler is interested in
func (h *LowStockHandler) EventTypes() []string {
	return []string{inventory.EventTypeStockBelowMinimum}
}

// Handle processes a StockBelowMinimumEvent
func (h *LowStockHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	lowStock, ok := event.(*inventory.StockBelowMinimumEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", inventory.EventTypeStockBelowMinimum),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			inventory.EventTypeStockBelowMinimum, event.EventType())
	}

	materialID := event.AggregateID()
	h.logger.Warn("stock below minimum",
		zap.String("raw_material_id", materialID.String()),
		zap.String("material_name", lowStock.MaterialName),
		zap.String("available_quantity", lowStock.AvailableQuantity.String()),
		zap.String("min_stock_level", lowStock.MinStockLevel.String()),
		zap.String("shortfall", lowStock.Shortfall.String()),
	)

	if !h.shouldSend(materialID) {
		h.logger.Debug("low stock alert suppressed", zap.String("raw_material_id", materialID.String()))
		return nil
	}

	alertType := "low_stock"
	if !lowStock.AvailableQuantity.IsPositive() {
		alertType = "out_of_stock"
	}
	alert := StockAlert{
		RawMaterialID:     materialID.String(),
		MaterialName:      lowStock.MaterialName,
		Category:          lowStock.Category,
		AvailableQuantity: lowStock.AvailableQuantity.String(),
		MinStockLevel:     lowStock.MinStockLevel.String(),
		Shortfall:         lowStock.Shortfall.String(),
		AlertType:         alertType,
	}

	if h.notifier != nil {
		if err := h.notifier.SendAlert(ctx, alert); err != nil {
			// Notification failure shouldn't fail the event handling
			h.logger.Error("failed to send stock alert notification",
				zap.String("raw_material_id", alert.RawMaterialID),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (h *LowStockHandler) shouldSend(materialID uuid.UUID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.now()
	if last, ok := h.lastSent[materialID]; ok && h.quietPeriod > 0 && now.Sub(last) < h.quietPeriod {
		return false
	}
	h.lastSent[materialID] = now
	return true
}

var _ shared.EventHandler = (*LowStockHandler)(nil)

// LoggingStockAlertNotifier is a notifier that only logs alerts
type LoggingStockAlertNotifier struct {
	logger *zap.Logger
}

// NewLoggingStockAlertNotifier creates a new logging notifier
func NewLoggingStockAlertNotifier(logger *zap.Logger) *LoggingStockAlertNotifier {
	return &LoggingStockAlertNotifier{logger: logger}
}

// SendAlert logs the stock alert
func (n *LoggingStockAlertNotifier) SendAlert(_ context.Context, alert StockAlert) error {
	n.logger.Warn("STOCK ALERT",
		zap.String("type", alert.AlertType),
		zap.String("raw_material_id", alert.RawMaterialID),
		zap.String("material_name", alert.MaterialName),
		zap.String("available", alert.AvailableQuantity),
		zap.String("minimum", alert.MinStockLevel),
	)
	return nil
}

var _ StockAlertNotifier = (*LoggingStockAlertNotifier)(nil)
