package archive

import (
	"context"
	"log/slog"
	"time"

	"whereabouts/internal/domain/chat"
	"whereabouts/internal/domain/geo"
	"whereabouts/internal/domain/presence"
	"whereabouts/internal/metrics"
)

// Store is the durable sink behind the archiver. Implementations persist
// best-effort; the in-memory hub never depends on them.
type Store interface {
	UpsertUser(ctx context.Context, u presence.User) error
	InsertMessage(ctx context.Context, m chat.Message) error
	InsertTrack(ctx context.Context, userID string, pos geo.Position) error
}

// Archiver is a fire-and-forget write-behind queue in front of a Store.
// Enqueueing never blocks: when the queue is full the operation is dropped
// and counted. Store failures are logged and swallowed so they can never
// roll back or block an in-memory state change.
type Archiver struct {
	store  Store
	ops    chan func(context.Context) error
	done   chan struct{}
	logger *slog.Logger
}

// NewArchiver creates an archiver with the given queue depth. A nil
// *Archiver is valid and discards everything, which is how deployments
// without a database run.
func NewArchiver(store Store, queueSize int, logger *slog.Logger) *Archiver {
	return &Archiver{
		store:  store,
		ops:    make(chan func(context.Context) error, queueSize),
		done:   make(chan struct{}),
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// Start launches the single consumer goroutine
func (a *Archiver) Start(ctx context.Context) {
	if a == nil {
		return
	}
	go a.run(ctx)
}

func (a *Archiver) run(ctx context.Context) {
	defer close(a.done)
	for {
		select {
		case op, ok := <-a.ops:
			if !ok {
				return
			}
			if err := op(ctx); err != nil {
				a.logger.Warn("persistence write failed", slog.Any("error", err))
			}
		case <-ctx.Done():
			return
		}
	}
}

// Stop closes the queue and waits for the consumer to drain it, up to the
// given timeout
func (a *Archiver) Stop(timeout time.Duration) {
	if a == nil {
		return
	}
	close(a.ops)
	select {
	case <-a.done:
	case <-time.After(timeout):
		a.logger.Warn("archiver stopped before draining")
	}
}

// UserSeen records a registration or presence update
func (a *Archiver) UserSeen(u presence.User) {
	if a == nil {
		return
	}
	a.enqueue(func(ctx context.Context) error {
		return a.store.UpsertUser(ctx, u)
	})
}

// MessageStored records an accepted chat message
func (a *Archiver) MessageStored(m chat.Message) {
	if a == nil {
		return
	}
	a.enqueue(func(ctx context.Context) error {
		return a.store.InsertMessage(ctx, m)
	})
}

// Track records a position sample
func (a *Archiver) Track(userID string, pos geo.Position) {
	if a == nil {
		return
	}
	a.enqueue(func(ctx context.Context) error {
		return a.store.InsertTrack(ctx, userID, pos)
	})
}

func (a *Archiver) enqueue(op func(context.Context) error) {
	select {
	case a.ops <- op:
	default:
		metrics.ArchiveDropsTotal.Inc()
		a.logger.Warn("archive queue full, dropping operation")
	}
}
