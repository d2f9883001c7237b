package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status enumerates ticket lifecycle states. The states form a flat set:
// a privileged caller may move a ticket between any two of them.
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusResolved   Status = "RESOLVED"
	StatusClosed     Status = "CLOSED"
)

// Priority enumerates urgency.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// Category enumerates the broad problem area of a ticket.
type Category string

const (
	CategoryHardware Category = "HARDWARE"
	CategorySoftware Category = "SOFTWARE"
	CategoryNetwork  Category = "NETWORK"
	CategoryOther    Category = "OTHER"
)

// ParseStatus validates a status literal.
func ParseStatus(value string) (Status, error) {
	switch Status(strings.ToUpper(strings.TrimSpace(value))) {
	case StatusOpen:
		return StatusOpen, nil
	case StatusInProgress:
		return StatusInProgress, nil
	case StatusResolved:
		return StatusResolved, nil
	case StatusClosed:
		return StatusClosed, nil
	}
	return "", fmt.Errorf("unknown status %q", value)
}

// ParsePriority validates a priority literal. Empty input falls back to
// the MEDIUM default.
func ParsePriority(value string) (Priority, error) {
	if strings.TrimSpace(value) == "" {
		return PriorityMedium, nil
	}
	switch Priority(strings.ToUpper(strings.TrimSpace(value))) {
	case PriorityLow:
		return PriorityLow, nil
	case PriorityMedium:
		return PriorityMedium, nil
	case PriorityHigh:
		return PriorityHigh, nil
	case PriorityUrgent:
		return PriorityUrgent, nil
	}
	return "", fmt.Errorf("unknown priority %q", value)
}

// ParseCategory validates a category literal. Empty input falls back to
// the OTHER default.
func ParseCategory(value string) (Category, error) {
	if strings.TrimSpace(value) == "" {
		return CategoryOther, nil
	}
	switch Category(strings.ToUpper(strings.TrimSpace(value))) {
	case CategoryHardware:
		return CategoryHardware, nil
	case CategorySoftware:
		return CategorySoftware, nil
	case CategoryNetwork:
		return CategoryNetwork, nil
	case CategoryOther:
		return CategoryOther, nil
	}
	return "", fmt.Errorf("unknown category %q", value)
}

// ActiveStatus reports whether a status counts toward an agent's current
// workload.
func ActiveStatus(s Status) bool {
	return s == StatusOpen || s == StatusInProgress
}

// Ticket is the aggregate for support requests. OwnerID is the creator
// and never changes; AssigneeID is set by privileged callers.
type Ticket struct {
	ID          int64
	Subject     string
	Description string
	Priority    Priority
	Category    Category
	Status      Status
	OwnerID     int64
	AssigneeID  *int64
	CreatedAt   time.Time
	Comments    []Comment
}

// Comment is an append-only entry in a ticket's thread.
type Comment struct {
	ID        int64
	TicketID  int64
	AuthorID  int64
	Text      string
	CreatedAt time.Time
}
