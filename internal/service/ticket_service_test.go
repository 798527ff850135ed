package service

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/support-portal/internal/config"
	"github.com/spec-kit/support-portal/internal/domain"
	"github.com/spec-kit/support-portal/internal/events"
	"github.com/spec-kit/support-portal/internal/livequery"
	"github.com/spec-kit/support-portal/internal/payment"
	"github.com/spec-kit/support-portal/internal/repository"
	apperrors "github.com/spec-kit/support-portal/pkg/util"
)

// memTicketRepo is an in-memory TicketRepository with the same filter
// semantics as the SQL implementation.
type memTicketRepo struct {
	mu      sync.Mutex
	nextID  int
	tickets map[string]domain.Ticket
}

func newMemTicketRepo() *memTicketRepo {
	return &memTicketRepo{tickets: make(map[string]domain.Ticket)}
}

func (r *memTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	ticket.ID = "id-" + strconv.Itoa(r.nextID)
	r.tickets[ticket.ID] = *ticket
	return nil
}

func (r *memTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.tickets[ticket.ID] = *ticket
	return nil
}

func (r *memTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &ticket, nil
}

func (r *memTicketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, ticket := range r.tickets {
		if filter.OwnerID != nil && ticket.UserID != *filter.OwnerID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
			continue
		}
		if filter.SearchTerm != nil && !matchesTerm(ticket, *filter.SearchTerm) {
			continue
		}
		out = append(out, ticket)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func containsStatus(statuses []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func matchesTerm(ticket domain.Ticket, term string) bool {
	term = strings.ToLower(term)
	return strings.Contains(strings.ToLower(ticket.Title), term) ||
		strings.Contains(strings.ToLower(ticket.Description), term) ||
		strings.Contains(strings.ToLower(ticket.TicketNumber), term)
}

// recordingDispatcher captures published events.
type recordingDispatcher struct {
	events.Dispatcher
	mu        sync.Mutex
	published []events.Event
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{Dispatcher: events.NewInMemoryDispatcher()}
}

func (d *recordingDispatcher) Publish(ctx context.Context, event events.Event) error {
	d.mu.Lock()
	d.published = append(d.published, event)
	d.mu.Unlock()
	return d.Dispatcher.Publish(ctx, event)
}

func (d *recordingDispatcher) last(t *testing.T) events.Event {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.published) == 0 {
		t.Fatal("no events published")
	}
	return d.published[len(d.published)-1]
}

var (
	regularUser = &domain.User{ID: "u1", Name: "Dana", Email: "dana@example.com", Role: domain.RoleUser, Department: "IT"}
	otherUser   = &domain.User{ID: "u2", Name: "Sam", Email: "sam@example.com", Role: domain.RoleUser}
	adminUser   = &domain.User{ID: "a1", Name: "Root", Email: "root@example.com", Role: domain.RoleAdmin}
)

func newTestTicketService() (*TicketService, *memTicketRepo, *recordingDispatcher) {
	repo := newMemTicketRepo()
	dispatcher := newRecordingDispatcher()
	svc := NewTicketService(TicketDependencies{
		TicketRepo: repo,
		Dispatcher: dispatcher,
	})
	return svc, repo, dispatcher
}

func mustCreate(t *testing.T, svc *TicketService, creator *domain.User, title string) *domain.Ticket {
	t.Helper()
	ticket, err := svc.Create(context.Background(), creator, domain.TicketInput{
		Title:       title,
		Description: "description for " + title,
		Category:    "Software",
	})
	if err != nil {
		t.Fatalf("Create(%q) error = %v", title, err)
	}
	return ticket
}

func TestCreatePersistsAndAnnounces(t *testing.T) {
	svc, repo, dispatcher := newTestTicketService()

	ticket := mustCreate(t, svc, regularUser, "Broken build")

	stored, err := repo.GetByID(context.Background(), ticket.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.Status != domain.TicketStatusOpen || stored.UserID != "u1" {
		t.Errorf("stored ticket = %+v, want open ticket owned by u1", stored)
	}

	event := dispatcher.last(t)
	if event.Type != events.EventTicketCreated {
		t.Errorf("event type = %q, want %q", event.Type, events.EventTicketCreated)
	}
	if event.TicketID != ticket.ID || event.Actor.UserID != "u1" {
		t.Errorf("event = %+v, want ticket %s by u1", event, ticket.ID)
	}
	if event.ID == "" || event.Timestamp.IsZero() {
		t.Errorf("event missing id/timestamp: %+v", event)
	}
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	svc, _, dispatcher := newTestTicketService()

	_, err := svc.Create(context.Background(), regularUser, domain.TicketInput{Title: "no description"})
	if !apperrors.IsCode(err, "VALIDATION_FAILED") {
		t.Fatalf("error = %v, want code VALIDATION_FAILED", err)
	}
	dispatcher.mu.Lock()
	defer dispatcher.mu.Unlock()
	if len(dispatcher.published) != 0 {
		t.Error("event published for rejected ticket")
	}
}

func TestListScopesByRole(t *testing.T) {
	svc, _, _ := newTestTicketService()
	mustCreate(t, svc, regularUser, "Mine")
	mustCreate(t, svc, otherUser, "Theirs")

	own, err := svc.List(context.Background(), regularUser, ListFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(own) != 1 || own[0].UserID != "u1" {
		t.Errorf("user list = %+v, want only u1 tickets", own)
	}

	all, err := svc.List(context.Background(), adminUser, ListFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("admin list has %d tickets, want 2", len(all))
	}
}

func TestListRejectsUnknownStatus(t *testing.T) {
	svc, _, _ := newTestTicketService()
	_, err := svc.List(context.Background(), adminUser, ListFilter{Status: "archived"})
	if !apperrors.IsCode(err, "VALIDATION_FAILED") {
		t.Fatalf("error = %v, want code VALIDATION_FAILED", err)
	}
}

func TestGetForViewerEnforcesVisibility(t *testing.T) {
	svc, _, _ := newTestTicketService()
	ticket := mustCreate(t, svc, regularUser, "Mine")

	if _, err := svc.GetForViewer(context.Background(), regularUser, ticket.ID); err != nil {
		t.Errorf("owner GetForViewer() error = %v", err)
	}
	if _, err := svc.GetForViewer(context.Background(), adminUser, ticket.ID); err != nil {
		t.Errorf("admin GetForViewer() error = %v", err)
	}
	if _, err := svc.GetForViewer(context.Background(), otherUser, ticket.ID); !apperrors.IsCode(err, "FORBIDDEN") {
		t.Errorf("foreign GetForViewer() error = %v, want code FORBIDDEN", err)
	}
	if _, err := svc.GetForViewer(context.Background(), adminUser, "missing"); !apperrors.IsCode(err, "NOT_FOUND") {
		t.Errorf("missing GetForViewer() error = %v, want code NOT_FOUND", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	svc, repo, dispatcher := newTestTicketService()
	ticket := mustCreate(t, svc, regularUser, "Flaky wifi")

	t.Run("non-admin is rejected and status unchanged", func(t *testing.T) {
		_, err := svc.UpdateStatus(context.Background(), regularUser, ticket.ID, domain.TicketStatusResolved)
		if !apperrors.IsCode(err, "FORBIDDEN") {
			t.Fatalf("error = %v, want code FORBIDDEN", err)
		}
		stored, _ := repo.GetByID(context.Background(), ticket.ID)
		if stored.Status != domain.TicketStatusOpen {
			t.Errorf("status = %q, want unchanged open", stored.Status)
		}
	})

	t.Run("admin change persists and announces old and new status", func(t *testing.T) {
		updated, err := svc.UpdateStatus(context.Background(), adminUser, ticket.ID, domain.TicketStatusProgress)
		if err != nil {
			t.Fatalf("UpdateStatus() error = %v", err)
		}
		if updated.Status != domain.TicketStatusProgress {
			t.Errorf("status = %q, want progress", updated.Status)
		}

		event := dispatcher.last(t)
		if event.Type != events.EventTicketStatusChanged {
			t.Fatalf("event type = %q, want %q", event.Type, events.EventTicketStatusChanged)
		}
		payload, ok := event.Payload.(events.TicketStatusChangedPayload)
		if !ok {
			t.Fatalf("payload type %T", event.Payload)
		}
		if payload.OldStatus != domain.TicketStatusOpen || payload.NewStatus != domain.TicketStatusProgress {
			t.Errorf("payload = %+v, want open -> progress", payload)
		}
	})

	t.Run("missing ticket", func(t *testing.T) {
		_, err := svc.UpdateStatus(context.Background(), adminUser, "missing", domain.TicketStatusClosed)
		if !apperrors.IsCode(err, "NOT_FOUND") {
			t.Errorf("error = %v, want code NOT_FOUND", err)
		}
	})
}

func TestUpgradeToPremium(t *testing.T) {
	svc, repo, dispatcher := newTestTicketService()
	ticket := mustCreate(t, svc, regularUser, "Urgent outage")

	confirmation := payment.Confirmation{PaymentID: "pay_1", OrderID: "order_1", Signature: "sig_1"}
	upgraded, err := svc.UpgradeToPremium(context.Background(), regularUser, ticket.ID, confirmation)
	if err != nil {
		t.Fatalf("UpgradeToPremium() error = %v", err)
	}
	if !upgraded.IsPremium {
		t.Error("IsPremium = false, want true")
	}
	if upgraded.PaymentID == nil || *upgraded.PaymentID != "pay_1" {
		t.Errorf("PaymentID = %v, want pay_1", upgraded.PaymentID)
	}
	if upgraded.UpgradedAt == nil {
		t.Error("UpgradedAt = nil, want set")
	}

	stored, _ := repo.GetByID(context.Background(), ticket.ID)
	if !stored.IsPremium {
		t.Error("upgrade not persisted")
	}
	if event := dispatcher.last(t); event.Type != events.EventTicketPremiumUpgraded {
		t.Errorf("event type = %q, want %q", event.Type, events.EventTicketPremiumUpgraded)
	}

	// Second upgrade must fail and leave the payment record intact.
	_, err = svc.UpgradeToPremium(context.Background(), regularUser, ticket.ID, payment.Confirmation{PaymentID: "pay_9", OrderID: "order_9", Signature: "sig_9"})
	if !apperrors.IsCode(err, "ALREADY_PREMIUM") {
		t.Fatalf("error = %v, want code ALREADY_PREMIUM", err)
	}
	stored, _ = repo.GetByID(context.Background(), ticket.ID)
	if *stored.PaymentID != "pay_1" {
		t.Errorf("PaymentID = %q, want original pay_1", *stored.PaymentID)
	}
}

func TestStatsWithoutCache(t *testing.T) {
	svc, _, _ := newTestTicketService()
	base := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	offset := 0
	svc.now = func() time.Time {
		offset++
		return base.Add(time.Duration(offset) * time.Minute)
	}

	for i, status := range []domain.TicketStatus{
		domain.TicketStatusOpen,
		domain.TicketStatusOpen,
		domain.TicketStatusProgress,
		domain.TicketStatusResolved,
		domain.TicketStatusClosed,
	} {
		ticket := mustCreate(t, svc, regularUser, "ticket "+string(rune('a'+i)))
		if status != domain.TicketStatusOpen {
			if _, err := svc.UpdateStatus(context.Background(), adminUser, ticket.ID, status); err != nil {
				t.Fatalf("UpdateStatus() error = %v", err)
			}
		}
	}

	stats, err := svc.Stats(context.Background(), adminUser)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	want := livequery.Stats{Total: 5, Open: 2, Progress: 1, Resolved: 1, Closed: 1}
	if stats != want {
		t.Errorf("Stats() = %+v, want %+v", stats, want)
	}
}

func TestPaymentServiceFlow(t *testing.T) {
	svc, _, _ := newTestTicketService()
	provider := payment.NewSimulatedProvider(paymentTestConfig())
	payments := NewPaymentService(provider, svc, zap.NewNop())

	ticket := mustCreate(t, svc, regularUser, "Needs priority handling")

	order, err := payments.CreateUpgradeOrder(context.Background(), regularUser, ticket.ID)
	if err != nil {
		t.Fatalf("CreateUpgradeOrder() error = %v", err)
	}
	if order.Amount != 9900 || order.Currency != "INR" || order.Status != payment.OrderStatusCreated {
		t.Errorf("order = %+v, want 9900 INR created", order)
	}

	upgraded, err := payments.ConfirmWithConfirmation(context.Background(), regularUser, ticket.ID,
		payment.Confirmation{PaymentID: "pay_1", OrderID: order.ID, Signature: "sig_1"})
	if err != nil {
		t.Fatalf("ConfirmWithConfirmation() error = %v", err)
	}
	if !upgraded.IsPremium || *upgraded.PaymentID != "pay_1" {
		t.Errorf("upgraded ticket = %+v, want premium with pay_1", upgraded)
	}

	// A second order against the premium ticket is rejected up front.
	if _, err := payments.CreateUpgradeOrder(context.Background(), regularUser, ticket.ID); !apperrors.IsCode(err, "ALREADY_PREMIUM") {
		t.Errorf("error = %v, want code ALREADY_PREMIUM", err)
	}

	// Non-owners cannot open upgrade orders.
	other := mustCreate(t, svc, otherUser, "Foreign ticket")
	if _, err := payments.CreateUpgradeOrder(context.Background(), regularUser, other.ID); !apperrors.IsCode(err, "FORBIDDEN") {
		t.Errorf("error = %v, want code FORBIDDEN", err)
	}
}

func paymentTestConfig() config.PaymentConfig {
	return config.PaymentConfig{AmountMinor: 9900, Currency: "INR"}
}
