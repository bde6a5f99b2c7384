package scheduler

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidTransition is returned when a waitlist entry has already been decided.
var ErrInvalidTransition = errors.New("scheduler: waitlist entry is not pending")

// ErrInvalidOutcome is returned for resolution outcomes outside the known set.
var ErrInvalidOutcome = errors.New("scheduler: unknown resolution outcome")

// WaitlistStatus tracks a parked request.
type WaitlistStatus string

const (
	WaitlistPending  WaitlistStatus = "pending"
	WaitlistApproved WaitlistStatus = "approved"
	WaitlistRejected WaitlistStatus = "rejected"
)

// WaitlistEntry is a request held against a resource and time with no
// guarantee of admission.
type WaitlistEntry struct {
	ID          string
	Request     Booking
	RequestedAt time.Time
	Status      WaitlistStatus
	DecidedAt   time.Time
}

// Approve marks a pending entry as admitted.
func (e WaitlistEntry) Approve(at time.Time) (WaitlistEntry, error) {
	return e.decide(WaitlistApproved, at)
}

// Reject marks a pending entry as declined.
func (e WaitlistEntry) Reject(at time.Time) (WaitlistEntry, error) {
	return e.decide(WaitlistRejected, at)
}

func (e WaitlistEntry) decide(status WaitlistStatus, at time.Time) (WaitlistEntry, error) {
	if e.Status != WaitlistPending {
		return e, ErrInvalidTransition
	}
	e.Status = status
	e.DecidedAt = at
	return e, nil
}

// Outcome is how a conflict was settled.
type Outcome string

const (
	OutcomeOverride        Outcome = "override"
	OutcomeWaitlisted      Outcome = "waitlisted"
	OutcomeRescheduled     Outcome = "rescheduled"
	OutcomeResourceChanged Outcome = "resource_changed"
	OutcomeCancelled       Outcome = "cancelled"
)

// ParseOutcome validates a wire label.
func ParseOutcome(value string) (Outcome, error) {
	outcome := Outcome(strings.ToLower(strings.TrimSpace(value)))
	switch outcome {
	case OutcomeOverride, OutcomeWaitlisted, OutcomeRescheduled, OutcomeResourceChanged, OutcomeCancelled:
		return outcome, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidOutcome, value)
}

// ResolutionRecord is an append-only audit entry. It is never mutated after creation.
type ResolutionRecord struct {
	ID         string
	ConflictID string
	Outcome    Outcome
	ResolvedBy string
	Timestamp  time.Time
	Notes      string
}

// NewResolutionRecord validates outcome and assembles the record.
func NewResolutionRecord(id, conflictID string, outcome Outcome, resolvedBy, notes string, at time.Time) (ResolutionRecord, error) {
	if _, err := ParseOutcome(string(outcome)); err != nil {
		return ResolutionRecord{}, err
	}
	return ResolutionRecord{
		ID:         id,
		ConflictID: conflictID,
		Outcome:    outcome,
		ResolvedBy: resolvedBy,
		Timestamp:  at,
		Notes:      notes,
	}, nil
}
