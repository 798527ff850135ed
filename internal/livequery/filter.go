package livequery

import (
	"strings"

	"github.com/spec-kit/support-portal/internal/domain"
)

// StatusFilterAll disables the status filter.
const StatusFilterAll = "all"

// Filter is a local, pure selection over a synchronized view. Status is
// "all" or one exact status; Search is a case-insensitive substring
// match over title, description and ticket number.
type Filter struct {
	Status string
	Search string
}

// Apply returns the tickets matching the filter. The input slice is
// never mutated; matching tickets are returned in their original order.
func (f Filter) Apply(tickets []domain.Ticket) []domain.Ticket {
	status := strings.TrimSpace(f.Status)
	if status == "" {
		status = StatusFilterAll
	}
	term := strings.ToLower(strings.TrimSpace(f.Search))

	matched := make([]domain.Ticket, 0, len(tickets))
	for _, ticket := range tickets {
		// A ticket-number hit is a direct lookup and wins over the
		// status filter.
		if term != "" && strings.Contains(strings.ToLower(ticket.TicketNumber), term) {
			matched = append(matched, ticket)
			continue
		}
		if status != StatusFilterAll && string(ticket.Status) != status {
			continue
		}
		if term != "" && !matchesSearch(ticket, term) {
			continue
		}
		matched = append(matched, ticket)
	}
	return matched
}

func matchesSearch(ticket domain.Ticket, term string) bool {
	return strings.Contains(strings.ToLower(ticket.Title), term) ||
		strings.Contains(strings.ToLower(ticket.Description), term)
}

// Stats summarizes a snapshot by status.
type Stats struct {
	Total    int `json:"total"`
	Open     int `json:"open"`
	Progress int `json:"progress"`
	Resolved int `json:"resolved"`
	Closed   int `json:"closed"`
}

// ComputeStats counts tickets per status.
func ComputeStats(tickets []domain.Ticket) Stats {
	stats := Stats{Total: len(tickets)}
	for _, ticket := range tickets {
		switch ticket.Status {
		case domain.TicketStatusOpen:
			stats.Open++
		case domain.TicketStatusProgress:
			stats.Progress++
		case domain.TicketStatusResolved:
			stats.Resolved++
		case domain.TicketStatusClosed:
			stats.Closed++
		}
	}
	return stats
}
