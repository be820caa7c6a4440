// Package worker runs the background side of qltc: recording transaction
// change events published by the API into the SQLite audit log.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"qltc/internal/amqp"
	applog "qltc/internal/log"
	"qltc/internal/storage"
)

type (
	// EventRecorder persists audit events, ignoring redeliveries.
	EventRecorder interface {
		RecordEvent(ctx context.Context, e storage.AuditEvent) (bool, error)
	}

	// EventSource delivers transaction events until ctx is done.
	EventSource interface {
		ConsumeTransactionEvents(ctx context.Context, handler func(context.Context, *amqp.TransactionEvent) error) error
	}
)

var (
	_ EventRecorder = (*storage.SQLiteRepository)(nil)
	_ EventSource   = (*amqp.Client)(nil)
)

// Metrics counts what the worker has seen since start.
type Metrics struct {
	Recorded   int64
	Duplicates int64
	Failed     int64
}

// AuditWorker records every transaction event it receives.
type AuditWorker struct {
	recorder EventRecorder
	logger   *slog.Logger

	recorded   int64
	duplicates int64
	failed     int64
}

func NewAuditWorker(recorder EventRecorder, logger *slog.Logger) *AuditWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditWorker{
		recorder: recorder,
		logger:   logger.With(applog.FieldComponent, applog.ComponentWorker),
	}
}

// HandleTransactionEvent stores ev. A returned error makes the source
// redeliver the event later.
func (w *AuditWorker) HandleTransactionEvent(ctx context.Context, ev *amqp.TransactionEvent) error {
	if ev == nil {
		return errors.New("nil event")
	}
	payload, err := ev.ToJSON()
	if err != nil {
		atomic.AddInt64(&w.failed, 1)
		return fmt.Errorf("encode event %s: %w", ev.EventID, err)
	}

	inserted, err := w.recorder.RecordEvent(ctx, storage.AuditEvent{
		EventID:       ev.EventID,
		Action:        ev.Action,
		TransactionID: ev.TransactionID,
		OccurredAt:    ev.Timestamp,
		Payload:       string(payload),
	})
	if err != nil {
		atomic.AddInt64(&w.failed, 1)
		w.logger.ErrorContext(ctx, "Failed to record event",
			applog.FieldEventID, ev.EventID,
			applog.FieldTransactionID, ev.TransactionID,
			applog.FieldError, err)
		return err
	}
	if !inserted {
		atomic.AddInt64(&w.duplicates, 1)
		w.logger.DebugContext(ctx, "Event already recorded", applog.FieldEventID, ev.EventID)
		return nil
	}

	atomic.AddInt64(&w.recorded, 1)
	w.logger.InfoContext(ctx, "Event recorded",
		applog.FieldEventID, ev.EventID,
		applog.FieldOperation, applog.OpRecord,
		applog.FieldAction, ev.Action,
		applog.FieldTransactionID, ev.TransactionID)
	return nil
}

// Run consumes from src until ctx is cancelled. Cancellation is not an error.
func (w *AuditWorker) Run(ctx context.Context, src EventSource) error {
	w.logger.InfoContext(ctx, "Audit worker started")
	err := src.ConsumeTransactionEvents(ctx, w.HandleTransactionEvent)
	if errors.Is(err, context.Canceled) {
		m := w.GetMetrics()
		w.logger.InfoContext(ctx, "Audit worker stopped",
			"recorded", m.Recorded,
			"duplicates", m.Duplicates,
			"failed", m.Failed)
		return nil
	}
	return err
}

func (w *AuditWorker) GetMetrics() Metrics {
	return Metrics{
		Recorded:   atomic.LoadInt64(&w.recorded),
		Duplicates: atomic.LoadInt64(&w.duplicates),
		Failed:     atomic.LoadInt64(&w.failed),
	}
}
