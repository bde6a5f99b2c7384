package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/room-booking/internal/scheduler"
)

// AvailabilityCache stores ClassifyRange results until a booking of the
// resource changes. Callers read Generation before computing a range and pass
// it to Store; a range computed across an invalidation is never served.
type AvailabilityCache interface {
	Get(ctx context.Context, key AvailabilityKey) ([]scheduler.DayAvailability, bool)
	// Generation reports the resource's invalidation counter. ok is false
	// when it cannot be read, in which case nothing should be stored.
	Generation(ctx context.Context, resourceID string) (gen int64, ok bool)
	Store(ctx context.Context, key AvailabilityKey, gen int64, days []scheduler.DayAvailability)
	InvalidateResource(ctx context.Context, resourceID string)
}

// AvailabilityKey identifies one classified range.
type AvailabilityKey struct {
	ResourceID string
	From       time.Time
	Days       int
	Window     scheduler.BusinessWindow
}

// Suffix renders the key without the resource prefix.
func (k AvailabilityKey) Suffix() string {
	return fmt.Sprintf("%s|%d|%d-%d",
		k.From.Format("2006-01-02T15:04:05Z07:00"),
		k.Days,
		int64(k.Window.Start/time.Minute),
		int64(k.Window.End/time.Minute),
	)
}

// String renders the key for map and redis lookups.
func (k AvailabilityKey) String() string {
	return k.ResourceID + "|" + k.Suffix()
}

// MemoryAvailabilityCache is a process-local AvailabilityCache with TTL expiry.
type MemoryAvailabilityCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]availabilityCacheEntry
	gens       map[string]int64
}

type availabilityCacheEntry struct {
	resourceID string
	days       []scheduler.DayAvailability
	expiresAt  time.Time
}

// NewMemoryAvailabilityCache constructs a cache. Non-positive ttl and
// maxEntries fall back to 30 seconds and 128 entries.
func NewMemoryAvailabilityCache(ttl time.Duration, maxEntries int, now func() time.Time) *MemoryAvailabilityCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 128
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryAvailabilityCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]availabilityCacheEntry),
		gens:       make(map[string]int64),
	}
}

func (c *MemoryAvailabilityCache) Get(_ context.Context, key AvailabilityKey) ([]scheduler.DayAvailability, bool) {
	if c == nil {
		return nil, false
	}
	id := key.String()
	c.mu.RLock()
	entry, ok := c.entries[id]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, id)
		c.mu.Unlock()
		return nil, false
	}
	return cloneDays(entry.days), true
}

func (c *MemoryAvailabilityCache) Generation(_ context.Context, resourceID string) (int64, bool) {
	if c == nil {
		return 0, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gens[resourceID], true
}

// Store drops days computed under an older generation than the current one.
func (c *MemoryAvailabilityCache) Store(_ context.Context, key AvailabilityKey, gen int64, days []scheduler.DayAvailability) {
	if c == nil {
		return
	}
	cloned := cloneDays(days)
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gens[key.ResourceID] != gen {
		return
	}

	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key.String()] = availabilityCacheEntry{resourceID: key.ResourceID, days: cloned, expiresAt: expiry}
}

// InvalidateResource drops every cached range of resourceID and bumps its
// generation.
func (c *MemoryAvailabilityCache) InvalidateResource(_ context.Context, resourceID string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[resourceID]++
	for id, entry := range c.entries {
		if entry.resourceID == resourceID {
			delete(c.entries, id)
		}
	}
}

func (c *MemoryAvailabilityCache) cleanupLocked() {
	now := c.now()
	for id, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, id)
		}
	}
}

func (c *MemoryAvailabilityCache) evictOneLocked() {
	for id := range c.entries {
		delete(c.entries, id)
		return
	}
}

func cloneDays(days []scheduler.DayAvailability) []scheduler.DayAvailability {
	if len(days) == 0 {
		return nil
	}
	out := make([]scheduler.DayAvailability, len(days))
	copy(out, days)
	return out
}

