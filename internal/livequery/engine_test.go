package livequery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-portal/internal/domain"
	"github.com/spec-kit/support-portal/internal/events"
	apperrors "github.com/spec-kit/support-portal/pkg/util"
)

// fakeStore is an in-memory Source with the same visibility rule as the
// real store: admins see everything, users only their own tickets.
type fakeStore struct {
	mu      sync.Mutex
	tickets []domain.Ticket
	err     error
	queries int
}

func (s *fakeStore) SnapshotFor(_ context.Context, viewer Viewer) ([]domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	if s.err != nil {
		return nil, s.err
	}
	var out []domain.Ticket
	for _, t := range s.tickets {
		if viewer.Role == domain.RoleAdmin || t.UserID == viewer.UserID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeStore) add(ticket domain.Ticket) {
	s.mu.Lock()
	s.tickets = append(s.tickets, ticket)
	s.mu.Unlock()
}

func (s *fakeStore) failWith(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func publishCreated(t *testing.T, d events.Dispatcher, ticketID string) {
	t.Helper()
	if err := d.Publish(context.Background(), events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticketID,
	}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
}

func awaitSnapshot(t *testing.T, sub *Subscription) []domain.Ticket {
	t.Helper()
	select {
	case snapshot, ok := <-sub.Updates():
		if !ok {
			t.Fatalf("updates channel closed, err = %v", sub.Err())
		}
		return snapshot
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func awaitClose(t *testing.T, sub *Subscription) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-sub.Updates():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for updates channel to close")
		}
	}
}

func TestSubscribeDeliversInitialSnapshot(t *testing.T) {
	store := &fakeStore{tickets: []domain.Ticket{
		{ID: "t1", UserID: "u1"},
		{ID: "t2", UserID: "u2"},
	}}
	engine := NewEngine(store, events.NewInMemoryDispatcher(), zap.NewNop())

	sub, err := engine.Subscribe(context.Background(), Viewer{UserID: "admin", Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer sub.Unsubscribe()

	snapshot := awaitSnapshot(t, sub)
	if len(snapshot) != 2 {
		t.Fatalf("initial snapshot has %d tickets, want 2", len(snapshot))
	}
}

func TestSubscribeInitialQueryFailure(t *testing.T) {
	store := &fakeStore{}
	store.failWith(errors.New("store offline"))
	dispatcher := events.NewInMemoryDispatcher()
	engine := NewEngine(store, dispatcher, zap.NewNop())

	sub, err := engine.Subscribe(context.Background(), Viewer{UserID: "u1", Role: domain.RoleUser})
	if sub != nil {
		t.Fatal("Subscribe() returned a subscription despite query failure")
	}
	if !apperrors.IsCode(err, "SUBSCRIPTION_FAILED") {
		t.Fatalf("error = %v, want code SUBSCRIPTION_FAILED", err)
	}

	// The failed subscription must not leave handlers behind.
	store.failWith(nil)
	publishCreated(t, dispatcher, "t1")
	store.mu.Lock()
	queries := store.queries
	store.mu.Unlock()
	if queries != 1 {
		t.Errorf("store queried %d times after failed subscribe, want 1", queries)
	}
}

func TestChangeEventTriggersReplacementSnapshot(t *testing.T) {
	store := &fakeStore{tickets: []domain.Ticket{{ID: "t1", UserID: "u1"}}}
	dispatcher := events.NewInMemoryDispatcher()
	engine := NewEngine(store, dispatcher, zap.NewNop())

	sub, err := engine.Subscribe(context.Background(), Viewer{UserID: "u1", Role: domain.RoleUser})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer sub.Unsubscribe()

	if initial := awaitSnapshot(t, sub); len(initial) != 1 {
		t.Fatalf("initial snapshot has %d tickets, want 1", len(initial))
	}

	store.add(domain.Ticket{ID: "t2", UserID: "u1"})
	publishCreated(t, dispatcher, "t2")

	next := awaitSnapshot(t, sub)
	if len(next) != 2 {
		t.Fatalf("replacement snapshot has %d tickets, want 2", len(next))
	}
	if current := sub.Current(); len(current) != 2 {
		t.Errorf("Current() has %d tickets, want 2", len(current))
	}
}

func TestUserViewerNeverSeesForeignTickets(t *testing.T) {
	store := &fakeStore{tickets: []domain.Ticket{
		{ID: "t1", UserID: "u1"},
		{ID: "t2", UserID: "u2"},
	}}
	dispatcher := events.NewInMemoryDispatcher()
	engine := NewEngine(store, dispatcher, zap.NewNop())

	sub, err := engine.Subscribe(context.Background(), Viewer{UserID: "u1", Role: domain.RoleUser})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer sub.Unsubscribe()

	check := func(snapshot []domain.Ticket) {
		t.Helper()
		for _, ticket := range snapshot {
			if ticket.UserID != "u1" {
				t.Fatalf("user view contains foreign ticket %q owned by %q", ticket.ID, ticket.UserID)
			}
		}
	}
	check(awaitSnapshot(t, sub))

	store.add(domain.Ticket{ID: "t3", UserID: "u2"})
	store.add(domain.Ticket{ID: "t4", UserID: "u1"})
	publishCreated(t, dispatcher, "t4")

	next := awaitSnapshot(t, sub)
	check(next)
	if len(next) != 2 {
		t.Fatalf("user snapshot has %d tickets, want 2", len(next))
	}
}

func TestCoalescedDeliveryKeepsLastSnapshot(t *testing.T) {
	sub := &Subscription{
		updates: make(chan []domain.Ticket, 1),
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	stale := []domain.Ticket{{ID: "stale"}}
	fresh := []domain.Ticket{{ID: "fresh-1"}, {ID: "fresh-2"}}
	sub.deliver(stale)
	sub.deliver(fresh)

	got := <-sub.updates
	if len(got) != 2 || got[0].ID != "fresh-1" {
		t.Fatalf("consumer received %v, want the latest snapshot", got)
	}
	select {
	case extra := <-sub.updates:
		t.Fatalf("unexpected extra snapshot %v", extra)
	default:
	}
}

func TestWakeCoalescesNotifications(t *testing.T) {
	sub := &Subscription{notify: make(chan struct{}, 1)}
	for i := 0; i < 10; i++ {
		sub.wake()
	}
	<-sub.notify
	select {
	case <-sub.notify:
		t.Fatal("notifications were not coalesced")
	default:
	}
}

func TestUnsubscribeIsIdempotentAndFinal(t *testing.T) {
	store := &fakeStore{tickets: []domain.Ticket{{ID: "t1", UserID: "u1"}}}
	dispatcher := events.NewInMemoryDispatcher()
	engine := NewEngine(store, dispatcher, zap.NewNop())

	sub, err := engine.Subscribe(context.Background(), Viewer{UserID: "u1", Role: domain.RoleUser})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	awaitSnapshot(t, sub)

	sub.Unsubscribe()
	sub.Unsubscribe()
	awaitClose(t, sub)

	// No view mutation may land after Unsubscribe returns.
	if sub.replace([]domain.Ticket{{ID: "late"}}) {
		t.Error("replace() accepted a snapshot after Unsubscribe")
	}
	if current := sub.Current(); len(current) != 1 || current[0].ID != "t1" {
		t.Errorf("Current() = %v, want the pre-teardown view", current)
	}

	// Later events must not reach the closed subscription's store queries.
	store.mu.Lock()
	before := store.queries
	store.mu.Unlock()
	publishCreated(t, dispatcher, "t2")
	time.Sleep(50 * time.Millisecond)
	store.mu.Lock()
	after := store.queries
	store.mu.Unlock()
	if after != before {
		t.Errorf("store queried after Unsubscribe: %d -> %d", before, after)
	}
}

func TestQueryFailureEntersErrorState(t *testing.T) {
	store := &fakeStore{tickets: []domain.Ticket{{ID: "t1", UserID: "u1"}}}
	dispatcher := events.NewInMemoryDispatcher()
	engine := NewEngine(store, dispatcher, zap.NewNop())

	sub, err := engine.Subscribe(context.Background(), Viewer{UserID: "u1", Role: domain.RoleUser})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	awaitSnapshot(t, sub)

	store.failWith(errors.New("store offline"))
	publishCreated(t, dispatcher, "t2")
	awaitClose(t, sub)

	if !apperrors.IsCode(sub.Err(), "SUBSCRIPTION_FAILED") {
		t.Fatalf("Err() = %v, want code SUBSCRIPTION_FAILED", sub.Err())
	}
}

func TestResubscribeReplacesSubscription(t *testing.T) {
	store := &fakeStore{tickets: []domain.Ticket{
		{ID: "t1", UserID: "u1"},
		{ID: "t2", UserID: "u2"},
	}}
	dispatcher := events.NewInMemoryDispatcher()
	engine := NewEngine(store, dispatcher, zap.NewNop())

	sub, err := engine.Subscribe(context.Background(), Viewer{UserID: "u1", Role: domain.RoleUser})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if first := awaitSnapshot(t, sub); len(first) != 1 {
		t.Fatalf("user snapshot has %d tickets, want 1", len(first))
	}

	// Role escalation requires a fresh subscription with the wider scope.
	next, err := engine.Resubscribe(context.Background(), sub, Viewer{UserID: "u1", Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("Resubscribe() error = %v", err)
	}
	defer next.Unsubscribe()

	awaitClose(t, sub)
	if admin := awaitSnapshot(t, next); len(admin) != 2 {
		t.Fatalf("admin snapshot has %d tickets, want 2", len(admin))
	}
}
