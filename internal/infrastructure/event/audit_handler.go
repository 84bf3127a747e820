package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kitchen/inventory/internal/domain/inventory"
	"github.com/kitchen/inventory/internal/domain/shared"
	"github.com/kitchen/inventory/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// AuditLogHandler writes every ledger event to the log as a JSON payload,
// giving operators a readable trail of receipts, consumptions and transfers.
type AuditLogHandler struct {
	logger *zap.Logger
}

// NewAuditLogHandler creates a new audit handler
func NewAuditLogHandler(logger *zap.Logger) *AuditLogHandler {
	return &AuditLogHandler{logger: logger.Named("audit")}
}

// EventTypes returns the ledger event types
func (h *AuditLogHandler) EventTypes() []string {
	return []string{
		inventory.EventTypeStockReceived,
		inventory.EventTypeStockConsumed,
		inventory.EventTypeStockTransferred,
		inventory.EventTypeStockBelowMinimum,
	}
}

// Handle logs the event
func (h *AuditLogHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.EventType(), err)
	}
	fields := append([]zap.Field{
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
		zap.ByteString("payload", payload),
	}, logger.TraceFields(ctx)...)
	if performer := logger.GetPerformer(ctx); performer != "" {
		fields = append(fields, zap.String("performer", performer))
	}
	h.logger.Info("ledger event", fields...)
	return nil
}

var _ shared.EventHandler = (*AuditLogHandler)(nil)
