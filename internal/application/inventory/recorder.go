package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kitchen/inventory/internal/domain/inventory"
	"github.com/kitchen/inventory/internal/domain/shared"
	"github.com/kitchen/inventory/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LedgerMetrics records the outcome of ledger writes
type LedgerMetrics interface {
	MovementRecorded(ctx context.Context, movementType string, quantity decimal.Decimal)
	WriteRejected(ctx context.Context, operation, code string)
	LowStockDetected(ctx context.Context, materialID uuid.UUID)
}

type nopLedgerMetrics struct{}

func (nopLedgerMetrics) MovementRecorded(context.Context, string, decimal.Decimal) {}
func (nopLedgerMetrics) WriteRejected(context.Context, string, string)            {}
func (nopLedgerMetrics) LowStockDetected(context.Context, uuid.UUID)              {}

// MovementRecorder is the only writer of ledger state. Every operation runs in
// one transaction that starts by bumping the target material's ledger version,
// so the stock check and the append that follows it cannot interleave with
// another writer on the same material.
type MovementRecorder struct {
	scope            TransactionScope
	aggregator       *inventory.Aggregator
	eventPublisher   shared.EventPublisher
	metrics          LedgerMetrics
	logger           *zap.Logger
	strictAllocation bool
	now              func() time.Time
}

// NewMovementRecorder creates a new MovementRecorder
func NewMovementRecorder(scope TransactionScope, logger *zap.Logger) *MovementRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MovementRecorder{
		scope:      scope,
		aggregator: inventory.NewAggregator(),
		metrics:    nopLedgerMetrics{},
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (r *MovementRecorder) SetEventPublisher(publisher shared.EventPublisher) {
	r.eventPublisher = publisher
}

// SetMetrics sets the metrics sink
func (r *MovementRecorder) SetMetrics(m LedgerMetrics) {
	if m == nil {
		m = nopLedgerMetrics{}
	}
	r.metrics = m
}

// SetStrictAllocation makes section assignment check against stock not
// already allocated to other sections instead of all available stock.
func (r *MovementRecorder) SetStrictAllocation(strict bool) {
	r.strictAllocation = strict
}

// ledgerWrite collects what a transaction produced so it can be published
// after commit
type ledgerWrite struct {
	events    []shared.DomainEvent
	movements []*inventory.StockMovement
}

func (w *ledgerWrite) append(ctx context.Context, repos TransactionalRepositories, m *inventory.StockMovement) error {
	if err := repos.Movements().Create(ctx, m); err != nil {
		return shared.WrapStoreError("append stock movement", err)
	}
	w.movements = append(w.movements, m)
	return nil
}

func (r *MovementRecorder) write(ctx context.Context, op string, fn func(repos TransactionalRepositories, w *ledgerWrite) error) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", op)
	defer span.End()

	w := &ledgerWrite{}
	err := r.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		return fn(repos, w)
	})
	if err != nil {
		code := shared.CodeStoreError
		var de *shared.DomainError
		if errors.As(err, &de) {
			code = de.Code
		}
		r.metrics.WriteRejected(ctx, op, code)
		span.SetAttributes(telemetry.AttrErrorCode.String(code))
		if code == shared.CodeStoreError {
			telemetry.RecordError(span, err)
		}
		if code == shared.CodeStoreError {
			r.logger.Error("ledger write failed", zap.String("operation", op), zap.Error(err))
		} else {
			r.logger.Info("ledger write rejected",
				zap.String("operation", op),
				zap.String("code", code),
				zap.String("reason", err.Error()),
			)
		}
		return err
	}

	for _, m := range w.movements {
		r.metrics.MovementRecorded(ctx, m.Type.String(), m.Quantity)
	}
	r.publish(ctx, w.events)
	return nil
}

func (r *MovementRecorder) publish(ctx context.Context, events []shared.DomainEvent) {
	for _, e := range events {
		if e.EventType() == inventory.EventTypeStockBelowMinimum {
			r.metrics.LowStockDetected(ctx, e.AggregateID())
		}
	}
	if r.eventPublisher == nil || len(events) == 0 {
		return
	}
	// Event delivery failures do not undo a committed write. The write is
	// committed, so a client hanging up must not drop its events.
	if err := r.eventPublisher.Publish(context.WithoutCancel(ctx), events...); err != nil {
		r.logger.Warn("failed to publish ledger events", zap.Error(err))
	}
}

// lockMaterial bumps the material's ledger version, which takes its row lock
// for the rest of the transaction, then loads it.
func (r *MovementRecorder) lockMaterial(ctx context.Context, repos TransactionalRepositories, id uuid.UUID, at time.Time) (*inventory.RawMaterial, error) {
	if err := repos.Materials().TouchLedger(ctx, id, at); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewNotFoundError("Raw material", id)
		}
		return nil, shared.WrapStoreError("lock raw material ledger", err)
	}
	return findMaterial(ctx, repos, id)
}

func (r *MovementRecorder) activeSection(ctx context.Context, repos TransactionalRepositories, id uuid.UUID, field string) (*inventory.Section, error) {
	section, err := findSection(ctx, repos, id)
	if err != nil {
		return nil, err
	}
	if !section.Active {
		return nil, shared.NewValidationError(field, "Section is inactive")
	}
	return section, nil
}

// checkLowStock re-reads the material's ledger inside the transaction and
// queues a StockBelowMinimum event when the write left it low.
func (r *MovementRecorder) checkLowStock(ctx context.Context, repos TransactionalRepositories, material *inventory.RawMaterial, w *ledgerWrite) error {
	ledger, err := LoadMaterialLedger(ctx, repos, material)
	if err != nil {
		return err
	}
	level, warnings := r.aggregator.AggregateMaterial(material, ledger)
	logIntegrityWarnings(r.logger, warnings)
	if level.IsLowStock {
		w.events = append(w.events, inventory.NewStockBelowMinimumEvent(level))
	}
	return nil
}

func requirePositive(field string, q decimal.Decimal) error {
	if !q.IsPositive() {
		return shared.NewValidationError(field, "Quantity must be greater than zero")
	}
	return nil
}

// RecordReceipt records a receipt of stock together with its IN movement.
// Quantity and unit cost are given in the material's declared unit.
func (r *MovementRecorder) RecordReceipt(ctx context.Context, req CreateEntryRequest) (*StockEntryResponse, error) {
	if err := requirePositive("quantity", req.Quantity); err != nil {
		return nil, err
	}

	var entry *inventory.StockEntry
	err := r.write(ctx, "record_receipt", func(repos TransactionalRepositories, w *ledgerWrite) error {
		now := r.now()
		material, err := r.lockMaterial(ctx, repos, req.RawMaterialID, now)
		if err != nil {
			return err
		}
		if !material.Active {
			return shared.NewValidationError("raw_material_id", "Raw material is inactive")
		}

		entry, err = inventory.NewStockEntry(inventory.ReceiptDetails{
			RawMaterialID: material.ID,
			Quantity:      inventory.ToBaseUnits(req.Quantity, material),
			UnitCost:      inventory.UnitCostInBaseUnits(req.UnitCost, material),
			Supplier:      firstNonEmpty(req.Supplier, material.Supplier),
			BatchNumber:   req.BatchNumber,
			ExpiryDate:    req.ExpiryDate,
			ReceivedDate:  req.ReceivedDate,
			ReceivedBy:    req.ReceivedBy,
			Notes:         req.Notes,
		})
		if err != nil {
			return err
		}
		if err := repos.Entries().Create(ctx, entry); err != nil {
			return shared.WrapStoreError("create stock entry", err)
		}

		in, err := inventory.NewStockMovement(entry, inventory.MovementIn, entry.Quantity, "receipt", entry.ReceivedBy)
		if err != nil {
			return err
		}
		if err := w.append(ctx, repos, in.WithOccurredAt(now).WithNotes(entry.BatchNumber)); err != nil {
			return err
		}
		w.events = append(w.events, inventory.NewStockReceivedEvent(entry))
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("stock received",
		zap.String("stock_entry_id", entry.ID.String()),
		zap.String("raw_material_id", entry.RawMaterialID.String()),
		zap.String("quantity", entry.Quantity.String()),
		zap.String("total_cost", entry.TotalCost.String()),
	)
	resp := ToStockEntryResponse(entry)
	return &resp, nil
}

// CreateMovement appends a movement against a stock entry. Consuming types
// are checked against both the entry's remaining quantity and the material's
// available quantity. TRANSFER is routed to TransferStock and IN is refused,
// since IN movements only come from receipts.
func (r *MovementRecorder) CreateMovement(ctx context.Context, req CreateMovementRequest) (*StockMovementResponse, error) {
	movementType := inventory.MovementType(strings.ToUpper(strings.TrimSpace(req.Type)))
	switch {
	case !movementType.IsValid():
		return nil, shared.NewValidationError("type", "Invalid movement type "+req.Type)
	case movementType == inventory.MovementIn:
		return nil, shared.NewValidationError("type", "IN movements are created by recording a stock entry")
	case movementType == inventory.MovementTransfer:
		return r.TransferStock(ctx, TransferRequest{
			StockEntryID:  req.StockEntryID,
			FromSectionID: req.FromSectionID,
			ToSectionID:   req.ToSectionID,
			Quantity:      req.Quantity,
			PerformedBy:   req.PerformedBy,
			Reason:        req.Reason,
		})
	case movementType == inventory.MovementAdjustment:
		if req.Quantity.IsNegative() {
			return nil, shared.NewValidationError("quantity", "Quantity cannot be negative")
		}
	default:
		if err := requirePositive("quantity", req.Quantity); err != nil {
			return nil, err
		}
	}

	var movement *inventory.StockMovement
	err := r.write(ctx, "create_movement", func(repos TransactionalRepositories, w *ledgerWrite) error {
		now := r.now()
		entry, err := findEntry(ctx, repos, req.StockEntryID)
		if err != nil {
			return err
		}
		material, err := r.lockMaterial(ctx, repos, entry.RawMaterialID, now)
		if err != nil {
			return err
		}
		quantity := inventory.ToBaseUnits(req.Quantity, material)
		if err := inventory.CheckQuantityScale("quantity", quantity); err != nil {
			return err
		}

		if movementType.IsConsuming() {
			ledger, err := LoadMaterialLedger(ctx, repos, material)
			if err != nil {
				return err
			}
			remaining := inventory.EntryRemaining(entry, ledger.Movements)
			if quantity.GreaterThan(remaining) {
				return shared.NewInsufficientStockError(quantity, remaining).
					WithDetail("stock_entry_id", entry.ID.String())
			}
			level, _ := r.aggregator.AggregateMaterial(material, ledger)
			if quantity.GreaterThan(level.AvailableQuantity) {
				return shared.NewInsufficientStockError(quantity, level.AvailableQuantity).
					WithDetail("raw_material_id", material.ID.String())
			}
		}

		m, err := inventory.NewStockMovement(entry, movementType, quantity, req.Reason, req.PerformedBy)
		if err != nil {
			return err
		}
		movement = m.WithOccurredAt(now).WithOrder(req.OrderID).WithNotes(req.Notes)

		if movementType.IsConsuming() && req.FromSectionID != nil {
			if _, err := r.activeSection(ctx, repos, *req.FromSectionID, "from_section_id"); err != nil {
				return err
			}
			if err := r.drawSection(ctx, repos, *req.FromSectionID, material.ID, quantity, now); err != nil {
				return err
			}
			movement.FromSectionID = req.FromSectionID
		}

		if err := w.append(ctx, repos, movement); err != nil {
			return err
		}
		if !movementType.IsConsuming() {
			return nil
		}
		w.events = append(w.events, inventory.NewStockConsumedEvent(
			material.ID, movementType, quantity, movement.FromSectionID, movement.Reason, movement.PerformedBy))
		return r.checkLowStock(ctx, repos, material, w)
	})
	if err != nil {
		return nil, err
	}
	resp := ToStockMovementResponse(movement)
	return &resp, nil
}

// drawSection decrements a section's allocation. The decrement is conditional
// on the section holding enough, so a concurrent draw cannot overdraw it.
func (r *MovementRecorder) drawSection(ctx context.Context, repos TransactionalRepositories, sectionID, materialID uuid.UUID, quantity decimal.Decimal, at time.Time) error {
	held := decimal.Zero
	row, err := repos.SectionInventory().Find(ctx, sectionID, materialID)
	switch {
	case err == nil:
		held = row.Quantity
	case !errors.Is(err, shared.ErrNotFound):
		return shared.WrapStoreError("load section inventory", err)
	}
	if quantity.GreaterThan(held) {
		return shared.NewInsufficientStockError(quantity, held).
			WithDetail("section_id", sectionID.String())
	}
	if err := repos.SectionInventory().Draw(ctx, sectionID, materialID, quantity, at); err != nil {
		if errors.Is(err, shared.ErrInsufficientStock) {
			return shared.NewInsufficientStockError(quantity, held).
				WithDetail("section_id", sectionID.String())
		}
		return shared.WrapStoreError("draw section inventory", err)
	}
	return nil
}

// allocationLimit is how much of the material can still be handed to a section
func (r *MovementRecorder) allocationLimit(level inventory.StockLevel) decimal.Decimal {
	if r.strictAllocation {
		return level.Unallocated()
	}
	return level.AvailableQuantity
}

// TransferStock moves stock between sections. Central available stock is not
// affected. The source section is drawn down and the destination topped up in
// the same transaction as the TRANSFER movement. A transfer without a source
// section hands out central stock and is checked like an assignment.
func (r *MovementRecorder) TransferStock(ctx context.Context, req TransferRequest) (*StockMovementResponse, error) {
	if err := requirePositive("quantity", req.Quantity); err != nil {
		return nil, err
	}

	var movement *inventory.StockMovement
	err := r.write(ctx, "transfer_stock", func(repos TransactionalRepositories, w *ledgerWrite) error {
		now := r.now()
		entry, err := findEntry(ctx, repos, req.StockEntryID)
		if err != nil {
			return err
		}
		material, err := r.lockMaterial(ctx, repos, entry.RawMaterialID, now)
		if err != nil {
			return err
		}
		quantity := inventory.ToBaseUnits(req.Quantity, material)
		if err := inventory.CheckQuantityScale("quantity", quantity); err != nil {
			return err
		}

		reason := req.Reason
		if strings.TrimSpace(reason) == "" {
			reason = "section transfer"
		}
		m, err := inventory.NewTransferMovement(entry, req.FromSectionID, req.ToSectionID, quantity, reason, req.PerformedBy)
		if err != nil {
			return err
		}
		movement = m.WithOccurredAt(now)

		if req.FromSectionID != nil {
			if _, err := r.activeSection(ctx, repos, *req.FromSectionID, "from_section_id"); err != nil {
				return err
			}
			if err := r.drawSection(ctx, repos, *req.FromSectionID, material.ID, quantity, now); err != nil {
				return err
			}
		} else {
			ledger, err := LoadMaterialLedger(ctx, repos, material)
			if err != nil {
				return err
			}
			level, _ := r.aggregator.AggregateMaterial(material, ledger)
			if limit := r.allocationLimit(level); quantity.GreaterThan(limit) {
				return shared.NewInsufficientStockError(quantity, limit).
					WithDetail("raw_material_id", material.ID.String())
			}
		}

		if req.ToSectionID != nil {
			if _, err := r.activeSection(ctx, repos, *req.ToSectionID, "to_section_id"); err != nil {
				return err
			}
			if err := repos.SectionInventory().Allocate(ctx, *req.ToSectionID, material.ID, quantity, now); err != nil {
				return shared.WrapStoreError("allocate section inventory", err)
			}
		}

		if err := w.append(ctx, repos, movement); err != nil {
			return err
		}
		w.events = append(w.events, inventory.NewStockTransferredEvent(movement))
		return nil
	})
	if err != nil {
		return nil, err
	}
	resp := ToStockMovementResponse(movement)
	return &resp, nil
}

// AssignStockToSection allocates central stock to a section. The quantity may
// not exceed the material's available stock, or with strict allocation the
// available stock not yet held by any section.
func (r *MovementRecorder) AssignStockToSection(ctx context.Context, sectionID uuid.UUID, req AssignStockRequest) (*SectionStockResponse, error) {
	if err := requirePositive("quantity", req.Quantity); err != nil {
		return nil, err
	}

	var level inventory.SectionStockLevel
	err := r.write(ctx, "assign_stock", func(repos TransactionalRepositories, w *ledgerWrite) error {
		now := r.now()
		if _, err := r.activeSection(ctx, repos, sectionID, "section_id"); err != nil {
			return err
		}
		material, err := r.lockMaterial(ctx, repos, req.RawMaterialID, now)
		if err != nil {
			return err
		}
		if !material.Active {
			return shared.NewValidationError("raw_material_id", "Raw material is inactive")
		}
		quantity := inventory.ToBaseUnits(req.Quantity, material)
		if err := inventory.CheckQuantityScale("quantity", quantity); err != nil {
			return err
		}

		ledger, err := LoadMaterialLedger(ctx, repos, material)
		if err != nil {
			return err
		}
		stock, _ := r.aggregator.AggregateMaterial(material, ledger)
		if limit := r.allocationLimit(stock); quantity.GreaterThan(limit) {
			return shared.NewInsufficientStockError(quantity, limit).
				WithDetail("raw_material_id", material.ID.String())
		}

		source := newestEntryWithStock(inventory.EntryBalances(ledger.Entries, ledger.Movements))
		if source == nil {
			return shared.NewInsufficientStockError(quantity, decimal.Zero).
				WithDetail("raw_material_id", material.ID.String())
		}

		if err := repos.SectionInventory().Allocate(ctx, sectionID, material.ID, quantity, now); err != nil {
			return shared.WrapStoreError("allocate section inventory", err)
		}
		to := sectionID
		m, err := inventory.NewTransferMovement(source, nil, &to, quantity, "assigned to section", req.AssignedBy)
		if err != nil {
			return err
		}
		movement := m.WithOccurredAt(now).WithNotes(req.Notes)
		if err := w.append(ctx, repos, movement); err != nil {
			return err
		}
		w.events = append(w.events, inventory.NewStockTransferredEvent(movement))

		row, err := repos.SectionInventory().Find(ctx, sectionID, material.ID)
		if err != nil {
			return shared.WrapStoreError("load section inventory", err)
		}
		levels := r.aggregator.AggregateSections([]inventory.SectionInventory{*row}, []inventory.RawMaterial{*material})
		level = levels[0]
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("stock assigned to section",
		zap.String("section_id", sectionID.String()),
		zap.String("raw_material_id", req.RawMaterialID.String()),
		zap.String("section_quantity", level.Quantity.String()),
	)
	resp := ToSectionStockResponses([]inventory.SectionStockLevel{level})[0]
	return &resp, nil
}

func newestEntryWithStock(balances []inventory.EntryBalance) *inventory.StockEntry {
	var newest *inventory.StockEntry
	for i := range balances {
		b := &balances[i]
		if !b.Remaining.IsPositive() {
			continue
		}
		if newest == nil || b.Entry.ReceivedDate.After(newest.ReceivedDate) ||
			(b.Entry.ReceivedDate.Equal(newest.ReceivedDate) && b.Entry.CreatedAt.After(newest.CreatedAt)) {
			newest = &b.Entry
		}
	}
	return newest
}

// RecordConsumption uses up stock held by a section. The section allocation is
// decremented, a consumption record is written, and OUT movements are drawn
// across the material's entries earliest expiry first, all in one transaction.
func (r *MovementRecorder) RecordConsumption(ctx context.Context, sectionID uuid.UUID, req RecordConsumptionRequest) (*ConsumptionResponse, error) {
	if err := requirePositive("quantity", req.Quantity); err != nil {
		return nil, err
	}

	var (
		record    *inventory.SectionConsumption
		movements []*inventory.StockMovement
	)
	err := r.write(ctx, "record_consumption", func(repos TransactionalRepositories, w *ledgerWrite) error {
		now := r.now()
		if _, err := findSection(ctx, repos, sectionID); err != nil {
			return err
		}
		material, err := r.lockMaterial(ctx, repos, req.RawMaterialID, now)
		if err != nil {
			return err
		}
		quantity := inventory.ToBaseUnits(req.Quantity, material)
		if err := inventory.CheckQuantityScale("quantity", quantity); err != nil {
			return err
		}

		record, err = inventory.NewSectionConsumption(sectionID, material.ID, quantity, req.Reason, req.ConsumedBy, req.OrderID, req.Notes)
		if err != nil {
			return err
		}
		record.ConsumedAt = now

		if err := r.drawSection(ctx, repos, sectionID, material.ID, quantity, now); err != nil {
			return err
		}
		if err := repos.Consumptions().Create(ctx, record); err != nil {
			return shared.WrapStoreError("create section consumption", err)
		}

		from := sectionID
		if err := r.drawEntries(ctx, repos, material, inventory.MovementOut, quantity, &from, w, func(m *inventory.StockMovement) *inventory.StockMovement {
			return m.WithOccurredAt(now).WithOrder(record.OrderID).WithNotes(record.Notes)
		}, record.Reason, record.ConsumedBy); err != nil {
			return err
		}
		movements = w.movements
		w.events = append(w.events, inventory.NewStockConsumedEvent(
			material.ID, inventory.MovementOut, quantity, &from, record.Reason, record.ConsumedBy))
		return r.checkLowStock(ctx, repos, material, w)
	})
	if err != nil {
		return nil, err
	}

	resp := ConsumptionResponse{
		ID:            record.ID,
		SectionID:     record.SectionID,
		RawMaterialID: record.RawMaterialID,
		Quantity:      record.Quantity,
		Reason:        record.Reason,
		ConsumedBy:    record.ConsumedBy,
		OrderID:       record.OrderID,
		ConsumedAt:    record.ConsumedAt,
		Movements:     make([]StockMovementResponse, len(movements)),
	}
	for i, m := range movements {
		resp.Movements[i] = ToStockMovementResponse(m)
	}
	return &resp, nil
}

// drawEntries appends consuming movements of the given type that together
// cover quantity, taking from the entries that expire first. It fails when the
// material's entries cannot cover the request.
func (r *MovementRecorder) drawEntries(
	ctx context.Context,
	repos TransactionalRepositories,
	material *inventory.RawMaterial,
	movementType inventory.MovementType,
	quantity decimal.Decimal,
	fromSection *uuid.UUID,
	w *ledgerWrite,
	decorate func(*inventory.StockMovement) *inventory.StockMovement,
	reason, performedBy string,
) error {
	ledger, err := LoadMaterialLedger(ctx, repos, material)
	if err != nil {
		return err
	}
	level, _ := r.aggregator.AggregateMaterial(material, ledger)
	if quantity.GreaterThan(level.AvailableQuantity) {
		return shared.NewInsufficientStockError(quantity, level.AvailableQuantity).
			WithDetail("raw_material_id", material.ID.String())
	}
	draws, ok := inventory.PlanDraws(inventory.EntryBalances(ledger.Entries, ledger.Movements), quantity)
	if !ok {
		return shared.NewInsufficientStockError(quantity, level.AvailableQuantity).
			WithDetail("raw_material_id", material.ID.String())
	}
	for i := range draws {
		m, err := inventory.NewStockMovement(&draws[i].Entry, movementType, draws[i].Quantity, reason, performedBy)
		if err != nil {
			return err
		}
		m = decorate(m)
		m.FromSectionID = fromSection
		if err := w.append(ctx, repos, m); err != nil {
			return err
		}
	}
	return nil
}

// ConsumeStock takes stock out of central inventory without going through a
// section, split across entries earliest expiry first.
func (r *MovementRecorder) ConsumeStock(ctx context.Context, req ConsumeStockRequest) ([]StockMovementResponse, error) {
	movementType := inventory.MovementOut
	if req.Type != "" {
		movementType = inventory.MovementType(strings.ToUpper(strings.TrimSpace(req.Type)))
	}
	if !movementType.IsConsuming() {
		return nil, shared.NewValidationError("type", "Consumption type must be OUT, EXPIRED or DAMAGED")
	}
	if err := requirePositive("quantity", req.Quantity); err != nil {
		return nil, err
	}

	var movements []*inventory.StockMovement
	err := r.write(ctx, "consume_stock", func(repos TransactionalRepositories, w *ledgerWrite) error {
		now := r.now()
		material, err := r.lockMaterial(ctx, repos, req.RawMaterialID, now)
		if err != nil {
			return err
		}
		quantity := inventory.ToBaseUnits(req.Quantity, material)
		if err := inventory.CheckQuantityScale("quantity", quantity); err != nil {
			return err
		}

		if r.strictAllocation {
			ledger, err := LoadMaterialLedger(ctx, repos, material)
			if err != nil {
				return err
			}
			level, _ := r.aggregator.AggregateMaterial(material, ledger)
			if unallocated := level.Unallocated(); quantity.GreaterThan(unallocated) {
				return shared.NewInsufficientStockError(quantity, unallocated).
					WithDetail("raw_material_id", material.ID.String())
			}
		}

		if err := r.drawEntries(ctx, repos, material, movementType, quantity, nil, w, func(m *inventory.StockMovement) *inventory.StockMovement {
			return m.WithOccurredAt(now).WithOrder(req.OrderID).WithNotes(req.Notes)
		}, req.Reason, req.PerformedBy); err != nil {
			return err
		}
		movements = w.movements
		w.events = append(w.events, inventory.NewStockConsumedEvent(
			material.ID, movementType, quantity, nil, req.Reason, req.PerformedBy))
		return r.checkLowStock(ctx, repos, material, w)
	})
	if err != nil {
		return nil, err
	}

	out := make([]StockMovementResponse, len(movements))
	for i, m := range movements {
		out[i] = ToStockMovementResponse(m)
	}
	return out, nil
}

// CorrectEntry edits a receipt's quantity or unit cost. The change is logged
// in the ledger as an ADJUSTMENT movement carrying the size of the delta.
func (r *MovementRecorder) CorrectEntry(ctx context.Context, entryID uuid.UUID, req CorrectEntryRequest) (*StockEntryResponse, error) {
	if req.Quantity == nil && req.UnitCost == nil {
		return nil, shared.NewValidationError("quantity", "Nothing to correct")
	}

	var entry *inventory.StockEntry
	err := r.write(ctx, "correct_entry", func(repos TransactionalRepositories, w *ledgerWrite) error {
		now := r.now()
		var err error
		entry, err = findEntry(ctx, repos, entryID)
		if err != nil {
			return err
		}
		material, err := r.lockMaterial(ctx, repos, entry.RawMaterialID, now)
		if err != nil {
			return err
		}
		ledger, err := LoadMaterialLedger(ctx, repos, material)
		if err != nil {
			return err
		}

		previous := entry.Quantity
		quantity := entry.Quantity
		if req.Quantity != nil {
			quantity = inventory.ToBaseUnits(*req.Quantity, material)
		}
		unitCost := entry.UnitCost
		if req.UnitCost != nil {
			unitCost = inventory.UnitCostInBaseUnits(*req.UnitCost, material)
		}
		consumed := previous.Sub(inventory.EntryRemaining(entry, ledger.Movements))
		if err := entry.Correct(quantity, unitCost, consumed); err != nil {
			return err
		}
		if err := repos.Entries().Update(ctx, entry); err != nil {
			return shared.WrapStoreError("update stock entry", err)
		}

		delta := quantity.Sub(previous)
		adj, err := inventory.NewStockMovement(entry, inventory.MovementAdjustment, delta.Abs(), req.Reason, req.PerformedBy)
		if err != nil {
			return err
		}
		note := fmt.Sprintf("quantity %s -> %s, unit cost %s", previous, quantity, unitCost)
		if err := w.append(ctx, repos, adj.WithOccurredAt(now).WithNotes(note)); err != nil {
			return err
		}
		if delta.IsNegative() {
			return r.checkLowStock(ctx, repos, material, w)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	resp := ToStockEntryResponse(entry)
	return &resp, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
