package livequery

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/support-portal/internal/domain"
	"github.com/spec-kit/support-portal/internal/events"
	apperrors "github.com/spec-kit/support-portal/pkg/util"
)

// Viewer scopes a subscription. Admins see the whole collection, other
// viewers only their own tickets.
type Viewer struct {
	UserID string
	Role   domain.Role
}

// Source runs the scoped store query a subscription re-executes on every
// change notification. Results are ordered by creation time descending.
type Source interface {
	SnapshotFor(ctx context.Context, viewer Viewer) ([]domain.Ticket, error)
}

// SourceFunc adapts a plain function to a Source.
type SourceFunc func(ctx context.Context, viewer Viewer) ([]domain.Ticket, error)

func (f SourceFunc) SnapshotFor(ctx context.Context, viewer Viewer) ([]domain.Ticket, error) {
	return f(ctx, viewer)
}

// Engine keeps client-local ticket views consistent with the store.
// Every ticket mutation event triggers a full re-query for each live
// subscription; subscribers always receive complete replacement
// snapshots, never diffs.
type Engine struct {
	source     Source
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewEngine constructs the engine.
func NewEngine(source Source, dispatcher events.Dispatcher, logger *zap.Logger) *Engine {
	return &Engine{source: source, dispatcher: dispatcher, logger: logger}
}

// Subscription is a live, cancelable view of tickets for one viewer.
// The materialized view is owned by the subscription and only ever
// replaced wholesale.
type Subscription struct {
	viewer Viewer

	updates chan []domain.Ticket
	notify  chan struct{}
	done    chan struct{}

	mu        sync.Mutex
	view      []domain.Ticket
	err       error
	closeOnce sync.Once

	registrations []events.Registration
	dispatcher    events.Dispatcher
}

// Subscribe runs the initial scoped query and starts a delivery
// goroutine. The initial snapshot is already queued on Updates when
// Subscribe returns. A failed initial query returns a subscription
// error and no subscription.
func (e *Engine) Subscribe(ctx context.Context, viewer Viewer) (*Subscription, error) {
	sub := &Subscription{
		viewer:     viewer,
		updates:    make(chan []domain.Ticket, 1),
		notify:     make(chan struct{}, 1),
		done:       make(chan struct{}),
		dispatcher: e.dispatcher,
	}

	// Register for change events before the initial query so no mutation
	// between query and registration is missed.
	for _, eventType := range events.TicketEventTypes {
		reg := e.dispatcher.Subscribe(eventType, func(context.Context, events.Event) error {
			sub.wake()
			return nil
		})
		sub.registrations = append(sub.registrations, reg)
	}

	initial, err := e.source.SnapshotFor(ctx, viewer)
	if err != nil {
		sub.Unsubscribe()
		return nil, apperrors.NewSubscriptionError(err)
	}
	sub.view = initial
	sub.updates <- snapshotCopy(initial)

	go e.run(ctx, sub)
	return sub, nil
}

// Resubscribe tears down the given subscription and creates a fresh one
// for the viewer. Used when the viewer identity or role changes, or on
// an explicit refresh signal.
func (e *Engine) Resubscribe(ctx context.Context, sub *Subscription, viewer Viewer) (*Subscription, error) {
	sub.Unsubscribe()
	return e.Subscribe(ctx, viewer)
}

func (e *Engine) run(ctx context.Context, sub *Subscription) {
	defer close(sub.updates)
	for {
		select {
		case <-sub.done:
			return
		case <-ctx.Done():
			sub.Unsubscribe()
			return
		case <-sub.notify:
			snapshot, err := e.source.SnapshotFor(ctx, sub.viewer)
			if err != nil {
				e.logger.Error("live query refresh failed",
					zap.String("viewer_id", sub.viewer.UserID),
					zap.String("viewer_role", string(sub.viewer.Role)),
					zap.Error(err))
				sub.fail(apperrors.NewSubscriptionError(err))
				return
			}
			if !sub.replace(snapshot) {
				return
			}
			sub.deliver(snapshotCopy(snapshot))
		}
	}
}

// Updates yields full replacement snapshots. The channel is closed once
// the subscription is torn down or enters the error state; check Err
// after it closes.
func (s *Subscription) Updates() <-chan []domain.Ticket {
	return s.updates
}

// Current returns a copy of the materialized view.
func (s *Subscription) Current() []domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshotCopy(s.view)
}

// Err reports the subscription failure, if any.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Unsubscribe cancels the subscription. It is idempotent, and no view
// mutation can happen after it returns.
func (s *Subscription) Unsubscribe() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		close(s.done)
		s.mu.Unlock()
		for _, reg := range s.registrations {
			s.dispatcher.Unsubscribe(reg)
		}
	})
}

// wake coalesces change notifications: a pending refresh absorbs any
// number of further events.
func (s *Subscription) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// replace swaps the materialized view atomically. It refuses the swap
// once the subscription is closed so Unsubscribe is deterministic.
func (s *Subscription) replace(snapshot []domain.Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return false
	default:
	}
	s.view = snapshot
	return true
}

func (s *Subscription) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.Unsubscribe()
}

// deliver pushes the snapshot to the consumer. A stale undelivered
// snapshot is displaced so the last produced snapshot always wins.
func (s *Subscription) deliver(snapshot []domain.Ticket) {
	for {
		select {
		case <-s.done:
			return
		case s.updates <- snapshot:
			return
		default:
			select {
			case <-s.updates:
			default:
			}
		}
	}
}

func snapshotCopy(tickets []domain.Ticket) []domain.Ticket {
	out := make([]domain.Ticket, len(tickets))
	copy(out, tickets)
	return out
}
