package scheduler

import (
	"fmt"
	"strings"
	"time"
)

// Priority orders bookings for override eligibility. The zero value means
// "unspecified" and is never stored.
type Priority int

const (
	PriorityUnspecified Priority = iota
	PriorityLow
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// String returns the lowercase label used on the wire and in storage.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unspecified"
	}
}

// Valid reports whether p is one of the four defined levels.
func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityCritical
}

// ParsePriority converts a label produced by String back into a Priority.
// An empty label maps to PriorityUnspecified.
func ParsePriority(value string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return PriorityUnspecified, nil
	case "low":
		return PriorityLow, nil
	case "normal":
		return PriorityNormal, nil
	case "high":
		return PriorityHigh, nil
	case "critical":
		return PriorityCritical, nil
	}
	return PriorityUnspecified, fmt.Errorf("scheduler: unknown priority %q", value)
}

// BookingStatus tracks the lifecycle of a booking.
type BookingStatus string

const (
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
	StatusCompleted BookingStatus = "completed"
)

// Booking is a reservation of one resource for one interval.
type Booking struct {
	ID               string
	ResourceID       string
	Title            string
	OwnerID          string
	Interval         TimeInterval
	Priority         Priority
	RecurringGroupID string
	Status           BookingStatus
	CreatedAt        time.Time
}

// Resource is a bookable room as seen by the engine.
type Resource struct {
	ID       string
	Name     string
	Location string
	Capacity int
}
