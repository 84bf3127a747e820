package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// LowStockCounter counts materials currently at or below their minimum
type LowStockCounter interface {
	CountLowStock(ctx context.Context) (int64, error)
}

// LedgerMetrics records ledger write outcomes as OpenTelemetry instruments.
type LedgerMetrics struct {
	movementsTotal   *Counter      // ledger_movements_total
	movedQuantity    *FloatCounter // ledger_moved_quantity
	rejectionsTotal  *Counter      // ledger_write_rejections_total
	lowStockAlerts   *Counter      // ledger_low_stock_alerts_total
	lowStockMaterial *Gauge        // ledger_low_stock_materials

	logger   *zap.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewLedgerMetrics creates the ledger instruments on meter
func NewLedgerMetrics(meter metric.Meter, logger *zap.Logger) (*LedgerMetrics, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	movementsTotal, err := NewCounter(meter, "ledger_movements_total",
		"Stock movements appended to the ledger by type", "{movement}")
	if err != nil {
		return nil, err
	}
	movedQuantity, err := NewFloatCounter(meter, "ledger_moved_quantity",
		"Quantity moved by stock movements, in material base units", "{unit}")
	if err != nil {
		return nil, err
	}
	rejectionsTotal, err := NewCounter(meter, "ledger_write_rejections_total",
		"Ledger writes that were rolled back, by operation and error code", "{write}")
	if err != nil {
		return nil, err
	}
	lowStockAlerts, err := NewCounter(meter, "ledger_low_stock_alerts_total",
		"Writes that left a material at or below its minimum stock", "{alert}")
	if err != nil {
		return nil, err
	}
	lowStockMaterial, err := NewGauge(meter, "ledger_low_stock_materials",
		"Active materials currently at or below their minimum stock", "{material}")
	if err != nil {
		return nil, err
	}

	return &LedgerMetrics{
		movementsTotal:   movementsTotal,
		movedQuantity:    movedQuantity,
		rejectionsTotal:  rejectionsTotal,
		lowStockAlerts:   lowStockAlerts,
		lowStockMaterial: lowStockMaterial,
		logger:           logger,
		stopCh:           make(chan struct{}),
	}, nil
}

// MovementRecorded counts a committed movement
func (m *LedgerMetrics) MovementRecorded(ctx context.Context, movementType string, qty decimal.Decimal) {
	m.movementsTotal.Inc(ctx, AttrMovementType.String(movementType))
	m.movedQuantity.Add(ctx, qty.Abs().InexactFloat64(), AttrMovementType.String(movementType))
}

// WriteRejected counts a rolled back write
func (m *LedgerMetrics) WriteRejected(ctx context.Context, op, code string) {
	m.rejectionsTotal.Inc(ctx, AttrOperation.String(op), AttrErrorCode.String(code))
}

// LowStockDetected counts a low stock signal
func (m *LedgerMetrics) LowStockDetected(ctx context.Context, materialID uuid.UUID) {
	m.lowStockAlerts.Inc(ctx, AttrMaterialID.String(materialID.String()))
}

// StartLowStockCollection samples counter every interval until Stop or ctx
// is done. The first sample is taken immediately.
func (m *LedgerMetrics) StartLowStockCollection(ctx context.Context, counter LowStockCounter, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		m.collectLowStock(ctx, counter)
		for {
			select {
			case <-ticker.C:
				m.collectLowStock(ctx, counter)
			case <-m.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (m *LedgerMetrics) collectLowStock(ctx context.Context, counter LowStockCounter) {
	n, err := counter.CountLowStock(ctx)
	if err != nil {
		m.logger.Warn("failed to count low stock materials", zap.Error(err))
		return
	}
	m.lowStockMaterial.Record(ctx, n)
}

// Stop ends low stock collection. Safe to call multiple times.
func (m *LedgerMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.wg.Wait()
	})
}
