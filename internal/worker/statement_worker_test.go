package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"spendview/internal/amqp"
	"spendview/internal/core"
	"spendview/internal/export/memory"
)

type fakeSource struct {
	stmts []core.CardStatement
	err   error
}

func (f *fakeSource) CurrentStatements(ctx context.Context, asOf time.Time) ([]core.CardStatement, error) {
	return f.stmts, f.err
}

type fakePublisher struct {
	published []*amqp.StatementBatchMessage
	err       error
}

func (f *fakePublisher) PublishStatementBatch(ctx context.Context, msg *amqp.StatementBatchMessage) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, msg)
	return nil
}

// fakeConsumer hands its queued messages to the handler, then blocks until
// the context ends, like a live channel subscription would.
type fakeConsumer struct {
	queued    []*amqp.StatementBatchMessage
	delivered chan struct{}
}

func (f *fakeConsumer) ConsumeStatementBatches(ctx context.Context, handler func(*amqp.StatementBatchMessage) error) error {
	for _, msg := range f.queued {
		if err := handler(msg); err != nil {
			return err
		}
	}
	if f.delivered != nil {
		close(f.delivered)
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestRunOncePublishes(t *testing.T) {
	stmts := []core.CardStatement{
		{SourceID: 1, CardName: "Amex", StatementDay: 5, BalanceCents: 12345},
	}
	pub := &fakePublisher{}
	w := NewStatementWorker(&fakeSource{stmts: stmts}, pub, nil, nil, time.Hour)

	asOf := time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)
	if err := w.RunOnce(context.Background(), asOf); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if len(pub.published) != 1 {
		t.Fatalf("published = %d batches, want 1", len(pub.published))
	}
	if pub.published[0].AsOf != "2025-01-15" {
		t.Errorf("AsOf = %q", pub.published[0].AsOf)
	}
}

func TestRunOnceSkipsEmptySet(t *testing.T) {
	pub := &fakePublisher{}
	w := NewStatementWorker(&fakeSource{}, pub, nil, nil, time.Hour)

	if err := w.RunOnce(context.Background(), time.Now()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(pub.published) != 0 {
		t.Error("empty statement set should not be published")
	}
}

func TestHandleBatchExports(t *testing.T) {
	sink := memory.New()
	w := NewStatementWorker(&fakeSource{}, &fakePublisher{}, nil, sink, time.Hour)

	stmts := []core.CardStatement{
		{SourceID: 1, CardName: "Amex", StatementDay: 5, BalanceCents: 12345},
	}
	msg := amqp.NewStatementBatchMessage(time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC), stmts)
	if err := w.HandleBatch(context.Background(), msg); err != nil {
		t.Fatalf("HandleBatch: %v", err)
	}

	batches := sink.Batches()
	if len(batches) != 1 || len(batches[0].Statements) != 1 {
		t.Fatalf("exported batches = %+v", batches)
	}
	if batches[0].AsOf != "2025-01-15" {
		t.Errorf("AsOf = %q", batches[0].AsOf)
	}
}

type failingSink struct{}

func (failingSink) AppendStatements(ctx context.Context, asOf string, stmts []core.CardStatement) error {
	return errors.New("quota exceeded")
}

func TestHandleBatchExportFailureRequeues(t *testing.T) {
	w := NewStatementWorker(&fakeSource{}, &fakePublisher{}, nil, failingSink{}, time.Hour)

	msg := amqp.NewStatementBatchMessage(time.Now(), []core.CardStatement{{SourceID: 1}})
	if err := w.HandleBatch(context.Background(), msg); err == nil {
		t.Fatal("expected export error to propagate for requeue")
	}
}

func TestRunConsumesBatchesIntoSink(t *testing.T) {
	stmts := []core.CardStatement{
		{SourceID: 1, CardName: "Visa", StatementDay: 20, BalanceCents: 9900},
	}
	consumer := &fakeConsumer{
		queued:    []*amqp.StatementBatchMessage{amqp.NewStatementBatchMessage(time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC), stmts)},
		delivered: make(chan struct{}),
	}
	sink := memory.New()
	w := NewStatementWorker(&fakeSource{}, &fakePublisher{}, consumer, sink, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case <-consumer.delivered:
	case <-time.After(time.Second):
		t.Fatal("consumer never delivered the batch")
	}
	cancel()

	select {
	case err := <-done:
		if !IsShutdown(err) {
			t.Fatalf("Run returned %v, want context cancellation", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	batches := sink.Batches()
	if len(batches) != 1 {
		t.Fatalf("exported batches = %d, want 1", len(batches))
	}
	if batches[0].AsOf != "2024-12-20" {
		t.Errorf("AsOf = %q", batches[0].AsOf)
	}
}

func TestRunWithoutConsumerOnlyPublishes(t *testing.T) {
	pub := &fakePublisher{}
	w := NewStatementWorker(&fakeSource{stmts: []core.CardStatement{{SourceID: 1}}}, pub, nil, nil, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !IsShutdown(err) {
			t.Fatalf("Run returned %v, want context cancellation", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	if len(pub.published) == 0 {
		t.Error("publish loop produced no batches")
	}
}

func TestRunOnceSourceFailure(t *testing.T) {
	w := NewStatementWorker(&fakeSource{err: core.ErrBackendUnavailable}, &fakePublisher{}, nil, nil, time.Hour)

	err := w.RunOnce(context.Background(), time.Now())
	if !errors.Is(err, core.ErrBackendUnavailable) {
		t.Fatalf("err = %v, want ErrBackendUnavailable", err)
	}
}

func TestRunOncePublishFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("channel closed")}
	w := NewStatementWorker(&fakeSource{stmts: []core.CardStatement{{SourceID: 1}}}, pub, nil, nil, time.Hour)

	if err := w.RunOnce(context.Background(), time.Now()); err == nil {
		t.Fatal("expected publish error")
	}
}
