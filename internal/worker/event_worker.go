// Package worker handles domain events delivered over AMQP.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"lifehub/internal/core"
	"lifehub/internal/log"
	"lifehub/internal/sheets"
)

// Accounting is the part of the accounting service the worker needs.
type Accounting interface {
	RecordSnapshot(ctx context.Context, userID, eventID string) (core.NetWorthSnapshot, bool, error)
	GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error)
}

// EventWorker records a net worth snapshot for every committed card event
// and optionally exports the transaction and snapshot to a spreadsheet.
type EventWorker struct {
	accounting Accounting
	exporter   sheets.Exporter
}

// NewEventWorker creates a worker. exporter may be nil when export is disabled.
func NewEventWorker(accounting Accounting, exporter sheets.Exporter) *EventWorker {
	return &EventWorker{accounting: accounting, exporter: exporter}
}

// HandleEvent processes a single event. A returned error requeues the
// delivery; the snapshot is keyed by event id so redelivery is safe.
func (w *EventWorker) HandleEvent(ctx context.Context, evt core.Event) error {
	slog.InfoContext(ctx, "Processing event",
		log.FieldEventID, evt.ID,
		"type", evt.Type,
		"user_id", evt.UserID)

	switch evt.Type {
	case core.EventPurchaseRegistered, core.EventInvoicePaid:
	default:
		slog.WarnContext(ctx, "Ignoring unknown event type", log.FieldEventID, evt.ID, "type", evt.Type)
		return nil
	}

	snap, recorded, err := w.accounting.RecordSnapshot(ctx, evt.UserID, evt.ID)
	if err != nil {
		return fmt.Errorf("record snapshot: %w", err)
	}
	if !recorded {
		slog.InfoContext(ctx, "Event already processed, skipping", log.FieldEventID, evt.ID)
		return nil
	}

	if w.exporter == nil {
		return nil
	}
	w.export(ctx, evt, snap)
	return nil
}

// export appends the event's rows to the spreadsheet. Failures are logged:
// the snapshot is already committed and a requeue would skip it anyway.
func (w *EventWorker) export(ctx context.Context, evt core.Event, snap core.NetWorthSnapshot) {
	if evt.TransactionID != "" {
		txn, err := w.accounting.GetTransaction(ctx, evt.UserID, evt.TransactionID)
		switch {
		case errors.Is(err, core.ErrNotFound):
			slog.WarnContext(ctx, "Transaction for event no longer exists",
				log.FieldEventID, evt.ID, log.FieldTxnID, evt.TransactionID)
		case err != nil:
			slog.ErrorContext(ctx, "Failed to load transaction for export",
				log.FieldEventID, evt.ID, log.FieldTxnID, evt.TransactionID, "error", err)
		default:
			ref, err := w.exporter.ExportTransaction(ctx, txn)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to export transaction",
					log.FieldEventID, evt.ID, log.FieldTxnID, txn.ID, "error", err)
			} else {
				slog.InfoContext(ctx, "Successfully exported transaction",
					log.FieldTxnID, txn.ID, log.FieldSheetsRef, ref)
			}
		}
	}

	ref, err := w.exporter.ExportSnapshot(ctx, snap)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to export snapshot", log.FieldEventID, evt.ID, "error", err)
		return
	}
	slog.InfoContext(ctx, "Successfully exported snapshot", log.FieldEventID, evt.ID, log.FieldSheetsRef, ref)
}
