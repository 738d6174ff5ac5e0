package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store is the outbox persistence the relay depends on.
type Store interface {
	FetchPending(ctx context.Context, tx pgx.Tx, limit int) ([]Message, error)
	MarkProcessed(ctx context.Context, tx pgx.Tx, id string) error
	MarkFailed(ctx context.Context, tx pgx.Tx, id string, cause error) error
}

// Handler reacts to one message in-process. It must be idempotent: a message
// is redelivered if marking it processed fails.
type Handler func(ctx context.Context, msg Message) error

// Publisher forwards messages to an external broker.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// DispatchRecorder counts dispatch outcomes; *metrics.Agreements satisfies it.
type DispatchRecorder interface {
	IncOutbox(topic, result string)
}

// Relay polls the outbox table and dispatches pending messages to the
// handlers registered for their topic and then to the publisher, if any.
type Relay struct {
	pool         TxBeginner
	store        Store
	handlers     map[string][]Handler
	publisher    Publisher
	batchSize    int
	pollInterval time.Duration
	recorder     DispatchRecorder
	logger       *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures the Relay.
type Option func(*Relay)

func WithBatchSize(size int) Option {
	return func(r *Relay) {
		if size > 0 {
			r.batchSize = size
		}
	}
}

func WithPollInterval(interval time.Duration) Option {
	return func(r *Relay) {
		if interval > 0 {
			r.pollInterval = interval
		}
	}
}

func WithPublisher(p Publisher) Option {
	return func(r *Relay) {
		r.publisher = p
	}
}

func WithRecorder(rec DispatchRecorder) Option {
	return func(r *Relay) {
		r.recorder = rec
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

// Handle registers h for topic.
func Handle(topic string, h Handler) Option {
	return func(r *Relay) {
		r.handlers[topic] = append(r.handlers[topic], h)
	}
}

func NewRelay(pool TxBeginner, store Store, opts ...Option) *Relay {
	r := &Relay{
		pool:         pool,
		store:        store,
		handlers:     make(map[string][]Handler),
		batchSize:    50,
		pollInterval: 2 * time.Second,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start begins the polling loop in a background goroutine. It stops when ctx
// is cancelled or Stop is called.
func (r *Relay) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go r.run(ctx)
}

func (r *Relay) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Poll(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("outbox poll failed", "error", err)
			}
		}
	}
}

// Stop cancels the loop and waits for the in-flight batch to finish.
func (r *Relay) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Poll processes one batch inside a single transaction and returns the number
// of messages dispatched successfully.
func (r *Relay) Poll(ctx context.Context) (n int, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("outbox: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	msgs, err := r.store.FetchPending(ctx, tx, r.batchSize)
	if err != nil {
		return 0, err
	}

	for _, msg := range msgs {
		if dispatchErr := r.dispatch(ctx, msg); dispatchErr != nil {
			r.logger.Warn("outbox dispatch failed",
				"id", msg.ID,
				"topic", msg.Topic,
				"attempt", msg.Attempts+1,
				"error", dispatchErr,
			)
			r.record(msg.Topic, "failed")
			if err = r.store.MarkFailed(ctx, tx, msg.ID, dispatchErr); err != nil {
				return n, err
			}
			continue
		}
		if err = r.store.MarkProcessed(ctx, tx, msg.ID); err != nil {
			return n, err
		}
		r.record(msg.Topic, "ok")
		n++
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("outbox: commit: %w", err)
	}
	return n, nil
}

func (r *Relay) dispatch(ctx context.Context, msg Message) error {
	for _, h := range r.handlers[msg.Topic] {
		if err := h(ctx, msg); err != nil {
			return err
		}
	}
	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, msg); err != nil {
			return fmt.Errorf("publish: %w", err)
		}
	}
	return nil
}

func (r *Relay) record(topic, result string) {
	if r.recorder != nil {
		r.recorder.IncOutbox(topic, result)
	}
}
