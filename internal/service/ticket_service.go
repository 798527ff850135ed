package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/support-portal/internal/domain"
	"github.com/spec-kit/support-portal/internal/events"
	"github.com/spec-kit/support-portal/internal/livequery"
	"github.com/spec-kit/support-portal/internal/payment"
	"github.com/spec-kit/support-portal/internal/repository"
	apperrors "github.com/spec-kit/support-portal/pkg/util"
)

const statsCacheTTL = 30 * time.Second

// TicketService coordinates ticket workflows: creation, listing, admin
// status changes and the premium upgrade transition.
type TicketService struct {
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
	cache      *redis.Client
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	Dispatcher events.Dispatcher
	Cache      *redis.Client
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		dispatcher: deps.Dispatcher,
		cache:      deps.Cache,
		now:        time.Now,
	}
}

// ListFilter describes listing parameters for the REST surface. Status
// "all" or empty spans every status.
type ListFilter struct {
	Status string
	Search string
	Limit  int
	Offset int
}

// Create validates input, persists the ticket and announces it.
func (s *TicketService) Create(ctx context.Context, creator *domain.User, input domain.TicketInput) (*domain.Ticket, error) {
	ticket, err := domain.NewTicket(input, creator, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    events.Actor{UserID: creator.ID, Role: creator.Role},
		Payload: events.TicketCreatedPayload{
			TicketNumber: ticket.TicketNumber,
			Category:     ticket.Category,
			Type:         ticket.Type,
			Priority:     ticket.Priority,
			Title:        ticket.Title,
		},
	})
	s.invalidateStats(ctx, ticket.UserID)
	return ticket, nil
}

// List returns tickets visible to the viewer. Admins span the whole
// collection, other viewers only their own tickets, newest first.
func (s *TicketService) List(ctx context.Context, viewer *domain.User, filter ListFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	if !viewer.IsAdmin() {
		ownerID := viewer.ID
		repoFilter.OwnerID = &ownerID
	}
	if filter.Status != "" && filter.Status != livequery.StatusFilterAll {
		status := domain.TicketStatus(filter.Status)
		if !status.Valid() {
			return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": filter.Status})
		}
		repoFilter.Statuses = []domain.TicketStatus{status}
	}
	if filter.Search != "" {
		search := filter.Search
		repoFilter.SearchTerm = &search
	}
	return s.tickets.List(ctx, repoFilter)
}

// GetForViewer fetches a ticket, enforcing the visibility boundary.
func (s *TicketService) GetForViewer(ctx context.Context, viewer *domain.User, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("ticket", nil)
		}
		return nil, err
	}
	if !viewer.IsAdmin() && ticket.UserID != viewer.ID {
		return nil, apperrors.NewForbidden("access denied")
	}
	return ticket, nil
}

// SnapshotFor implements livequery.Source: the full, ordered result set
// for one viewer scope.
func (s *TicketService) SnapshotFor(ctx context.Context, viewer livequery.Viewer) ([]domain.Ticket, error) {
	filter := repository.TicketFilter{}
	if viewer.Role != domain.RoleAdmin {
		ownerID := viewer.UserID
		filter.OwnerID = &ownerID
	}
	return s.tickets.List(ctx, filter)
}

// UpdateStatus applies an admin status change. Any status may follow
// any other; the policy lives in the domain layer.
func (s *TicketService) UpdateStatus(ctx context.Context, actor *domain.User, ticketID string, newStatus domain.TicketStatus) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("ticket", nil)
		}
		return nil, err
	}
	oldStatus := ticket.Status
	if err := domain.ApplyStatus(ticket, newStatus, actor.Role, s.now()); err != nil {
		return nil, err
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Actor:    events.Actor{UserID: actor.ID, Role: actor.Role},
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: newStatus,
		},
	})
	s.invalidateStats(ctx, ticket.UserID)
	return ticket, nil
}

// UpgradeToPremium applies a verified payment confirmation to the
// ticket. The transition is owner-only and one-way.
func (s *TicketService) UpgradeToPremium(ctx context.Context, actor *domain.User, ticketID string, confirmation payment.Confirmation) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("ticket", nil)
		}
		return nil, err
	}
	if err := domain.ApplyPremiumUpgrade(ticket, confirmation.PaymentID, actor.ID, s.now()); err != nil {
		return nil, err
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketPremiumUpgraded,
		TicketID: ticket.ID,
		Actor:    events.Actor{UserID: actor.ID, Role: actor.Role},
		Payload: events.TicketPremiumUpgradedPayload{
			TicketNumber: ticket.TicketNumber,
			PaymentID:    confirmation.PaymentID,
			OrderID:      confirmation.OrderID,
			UpgradedAt:   *ticket.UpgradedAt,
		},
	})
	s.invalidateStats(ctx, ticket.UserID)
	return ticket, nil
}

// Stats summarizes the viewer's visible tickets by status, cached
// briefly in Redis and invalidated on every ticket mutation.
func (s *TicketService) Stats(ctx context.Context, viewer *domain.User) (livequery.Stats, error) {
	key := s.statsKey(viewer)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key).Bytes(); err == nil {
			var cached livequery.Stats
			if json.Unmarshal(raw, &cached) == nil {
				return cached, nil
			}
		}
	}

	scope := livequery.Viewer{UserID: viewer.ID, Role: viewer.Role}
	tickets, err := s.SnapshotFor(ctx, scope)
	if err != nil {
		return livequery.Stats{}, err
	}
	stats := livequery.ComputeStats(tickets)

	if s.cache != nil {
		if raw, err := json.Marshal(stats); err == nil {
			s.cache.Set(ctx, key, raw, statsCacheTTL)
		}
	}
	return stats, nil
}

func (s *TicketService) statsKey(viewer *domain.User) string {
	if viewer.IsAdmin() {
		return "stats:admin"
	}
	return "stats:user:" + viewer.ID
}

// invalidateStats drops cached summaries affected by a mutation: the
// admin-wide key and the owner's key.
func (s *TicketService) invalidateStats(ctx context.Context, ownerID string) {
	if s.cache == nil {
		return
	}
	s.cache.Del(ctx, "stats:admin", "stats:user:"+ownerID)
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
