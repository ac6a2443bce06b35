// Package worker recomputes current billing-cycle balances on an interval
// and publishes them to RabbitMQ. A consume loop drains the queue and hands
// each batch to the configured export sink.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"spendview/internal/amqp"
	"spendview/internal/core"
	"spendview/internal/export"
)

// StatementSource computes the current statement set.
type StatementSource interface {
	CurrentStatements(ctx context.Context, asOf time.Time) ([]core.CardStatement, error)
}

// Publisher pushes a statement batch onto the message bus.
type Publisher interface {
	PublishStatementBatch(ctx context.Context, msg *amqp.StatementBatchMessage) error
}

// Consumer delivers statement batches from the message bus until the
// context is cancelled.
type Consumer interface {
	ConsumeStatementBatches(ctx context.Context, handler func(*amqp.StatementBatchMessage) error) error
}

type StatementWorker struct {
	source    StatementSource
	publisher Publisher
	consumer  Consumer               // optional
	exporter  export.StatementWriter // optional
	interval  time.Duration
}

func NewStatementWorker(source StatementSource, publisher Publisher, consumer Consumer, exporter export.StatementWriter, interval time.Duration) *StatementWorker {
	return &StatementWorker{
		source:    source,
		publisher: publisher,
		consumer:  consumer,
		exporter:  exporter,
		interval:  interval,
	}
}

// Run drives the publish loop and, when a consumer and an export sink are
// both configured, a consume loop that feeds the sink. Both run until the
// context is cancelled.
func (w *StatementWorker) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.publishLoop(gctx)
	})

	if w.consumer != nil && w.exporter != nil {
		g.Go(func() error {
			return w.consumer.ConsumeStatementBatches(gctx, func(msg *amqp.StatementBatchMessage) error {
				return w.HandleBatch(gctx, msg)
			})
		})
	}

	return g.Wait()
}

// publishLoop recomputes once at startup, then on every interval tick. A
// failed cycle is logged and retried on the next tick rather than stopping
// the worker.
func (w *StatementWorker) publishLoop(ctx context.Context) error {
	if err := w.RunOnce(ctx, time.Now()); err != nil {
		slog.ErrorContext(ctx, "Startup statement run failed", "error", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Statement worker stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			if err := w.RunOnce(ctx, time.Now()); err != nil {
				slog.ErrorContext(ctx, "Statement run failed", "error", err)
			}
		}
	}
}

// RunOnce computes the statement set for asOf and publishes it as a single
// batch. An empty set is not published.
func (w *StatementWorker) RunOnce(ctx context.Context, asOf time.Time) error {
	stmts, err := w.source.CurrentStatements(ctx, asOf)
	if err != nil {
		return fmt.Errorf("compute statements: %w", err)
	}
	if len(stmts) == 0 {
		slog.InfoContext(ctx, "No card spend in the current cycle, nothing to publish",
			"as_of", asOf.Format("2006-01-02"))
		return nil
	}

	msg := amqp.NewStatementBatchMessage(asOf, stmts)
	if err := w.publisher.PublishStatementBatch(ctx, msg); err != nil {
		return fmt.Errorf("publish batch: %w", err)
	}

	slog.InfoContext(ctx, "Statement run completed",
		"as_of", msg.AsOf,
		"statements", len(stmts))
	return nil
}

// HandleBatch writes one consumed batch to the export sink. Returning an
// error requeues the delivery.
func (w *StatementWorker) HandleBatch(ctx context.Context, msg *amqp.StatementBatchMessage) error {
	if w.exporter == nil {
		return nil
	}
	if err := w.exporter.AppendStatements(ctx, msg.AsOf, msg.Statements); err != nil {
		return fmt.Errorf("export batch: %w", err)
	}
	slog.InfoContext(ctx, "Exported statement batch",
		"as_of", msg.AsOf,
		"statements", len(msg.Statements))
	return nil
}

// IsShutdown reports whether the worker stopped because its context ended.
func IsShutdown(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
