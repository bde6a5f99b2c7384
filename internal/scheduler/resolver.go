package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"
)

const (
	// DefaultSuggestionLimit caps each suggestion list when callers pass no limit.
	DefaultSuggestionLimit = 3
	// SuggestionStep is the granularity of the alternative-time scan.
	SuggestionStep = 30 * time.Minute
)

// ResourceCatalog lists rooms able to seat at least capacity people.
type ResourceCatalog interface {
	ListResourcesByMinCapacity(ctx context.Context, capacity int) ([]Resource, error)
}

// SuggestionKind distinguishes alternative times from alternative rooms.
type SuggestionKind string

const (
	SuggestionTime     SuggestionKind = "time"
	SuggestionResource SuggestionKind = "resource"
)

// Suggestion is one ranked alternative for a conflicting candidate.
type Suggestion struct {
	Kind         SuggestionKind
	Interval     TimeInterval
	ResourceID   string
	ResourceName string
	Capacity     int
}

// ResolveInput carries a conflicting candidate and the bookings blocking it.
// ExcludeBookingID names a booking that no longer counts as occupying its
// slot, such as the one being rescheduled.
type ResolveInput struct {
	Candidate        Booking
	Blockers         []Booking
	ResourceName     string
	BusinessWindow   BusinessWindow
	MinCapacity      int
	Limit            int
	ExcludeBookingID string
}

// Resolution is the resolver's verdict for one candidate.
type Resolution struct {
	CanOverride         bool
	TimeSuggestions     []Suggestion
	ResourceSuggestions []Suggestion
}

// Resolver decides override eligibility and produces alternatives.
type Resolver struct {
	store       BookingStore
	catalog     ResourceCatalog
	detector    *Detector
	idGenerator func() string
	now         func() time.Time
	loc         *time.Location
}

// NewResolver wires a Resolver. catalog may be nil, in which case no
// alternative rooms are suggested.
func NewResolver(store BookingStore, catalog ResourceCatalog, idGenerator func() string, now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{
		store:       store,
		catalog:     catalog,
		detector:    NewDetector(store),
		idGenerator: idGenerator,
		now:         now,
	}
}

// InLocation makes SuggestTimes anchor the business window on the calendar
// day in loc instead of the candidate's own offset.
func (r *Resolver) InLocation(loc *time.Location) *Resolver {
	r.loc = loc
	return r
}

// CanOverride reports whether candidate outranks every blocker. Equal
// priority never overrides and an empty blocker list has nothing to override.
func CanOverride(candidate Booking, blockers []Booking) bool {
	if len(blockers) == 0 {
		return false
	}
	highest := PriorityUnspecified
	for _, blocker := range blockers {
		if blocker.Priority > highest {
			highest = blocker.Priority
		}
	}
	return candidate.Priority > highest
}

// Resolve computes the override verdict and both suggestion lists. Finding no
// alternatives is a valid outcome and is not reported as an error.
func (r *Resolver) Resolve(ctx context.Context, in ResolveInput) (Resolution, error) {
	resolution := Resolution{CanOverride: CanOverride(in.Candidate, in.Blockers)}

	times, err := r.SuggestTimes(ctx, in.Candidate, in.ResourceName, in.BusinessWindow, in.Limit, in.ExcludeBookingID)
	if err != nil {
		return Resolution{}, err
	}
	resolution.TimeSuggestions = times

	rooms, err := r.SuggestResources(ctx, in.Candidate, in.MinCapacity, in.Limit, in.ExcludeBookingID)
	if err != nil {
		return Resolution{}, err
	}
	resolution.ResourceSuggestions = rooms

	return resolution, nil
}

// SuggestTimes scans the candidate's day within window in SuggestionStep
// increments and returns the earliest conflict-free windows of the same length.
// The candidate itself and excludeBookingID never block a slot.
func (r *Resolver) SuggestTimes(ctx context.Context, candidate Booking, resourceName string, window BusinessWindow, limit int, excludeBookingID string) ([]Suggestion, error) {
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}
	duration := candidate.Interval.Duration()
	if duration <= 0 {
		return nil, ErrInvalidInterval
	}

	anchor := candidate.Interval.Start
	if r.loc != nil {
		anchor = anchor.In(r.loc)
	}
	day := window.On(anchor)
	existing, err := r.store.ListConfirmedBookings(ctx, candidate.ResourceID, day)
	if err != nil {
		return nil, fmt.Errorf("list confirmed bookings: %w", err)
	}

	var suggestions []Suggestion
	for start := day.Start; !start.Add(duration).After(day.End) && len(suggestions) < limit; start = start.Add(SuggestionStep) {
		slot := TimeInterval{Start: start, End: start.Add(duration)}
		if blocked(existing, candidate.ResourceID, slot, candidate.ID, excludeBookingID) {
			continue
		}
		suggestions = append(suggestions, Suggestion{
			Kind:         SuggestionTime,
			Interval:     slot,
			ResourceID:   candidate.ResourceID,
			ResourceName: resourceName,
		})
	}
	return suggestions, nil
}

func blocked(existing []Booking, resourceID string, slot TimeInterval, candidateID, excludeBookingID string) bool {
	for _, conflict := range DetectConflicts(existing, resourceID, slot, candidateID) {
		if excludeBookingID == "" || conflict.ID != excludeBookingID {
			return true
		}
	}
	return false
}

// SuggestResources returns rooms other than the candidate's that seat
// minCapacity and are free for the candidate's interval, smallest fit first.
func (r *Resolver) SuggestResources(ctx context.Context, candidate Booking, minCapacity, limit int, excludeBookingID string) ([]Suggestion, error) {
	if r.catalog == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}

	resources, err := r.catalog.ListResourcesByMinCapacity(ctx, minCapacity)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	sort.SliceStable(resources, func(i, j int) bool {
		if resources[i].Capacity != resources[j].Capacity {
			return resources[i].Capacity < resources[j].Capacity
		}
		if resources[i].Name != resources[j].Name {
			return resources[i].Name < resources[j].Name
		}
		return resources[i].ID < resources[j].ID
	})

	var suggestions []Suggestion
	for _, resource := range resources {
		if len(suggestions) >= limit {
			break
		}
		if resource.ID == candidate.ResourceID || resource.Capacity < minCapacity {
			continue
		}
		conflicts, err := r.detector.FindConflicts(ctx, resource.ID, candidate.Interval, excludeBookingID)
		if err != nil {
			return nil, err
		}
		if len(conflicts) > 0 {
			continue
		}
		suggestions = append(suggestions, Suggestion{
			Kind:         SuggestionResource,
			Interval:     candidate.Interval,
			ResourceID:   resource.ID,
			ResourceName: resource.Name,
			Capacity:     resource.Capacity,
		})
	}
	return suggestions, nil
}

// Enqueue parks candidate on the waitlist as a Pending entry.
func (r *Resolver) Enqueue(candidate Booking) WaitlistEntry {
	return WaitlistEntry{
		ID:          r.newID(),
		Request:     candidate,
		RequestedAt: r.now(),
		Status:      WaitlistPending,
	}
}

// Record builds the audit entry for a resolution decision.
func (r *Resolver) Record(conflictID string, outcome Outcome, resolvedBy, notes string) (ResolutionRecord, error) {
	return NewResolutionRecord(r.newID(), conflictID, outcome, resolvedBy, notes, r.now())
}

func (r *Resolver) newID() string {
	if r.idGenerator == nil {
		return ""
	}
	return r.idGenerator()
}
