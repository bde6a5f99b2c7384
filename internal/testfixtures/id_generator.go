package testfixtures

import (
	"fmt"
	"sync"
)

// IDGenerator hands out deterministic identifiers. Each prefix has its own
// sequence, and every issued id is remembered so tests can assert on them.
type IDGenerator struct {
	mu       sync.Mutex
	prefix   string
	counters map[string]int
	issued   []string
}

// NewIDGenerator uses prefix for Next; an empty prefix means "id".
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{prefix: prefix, counters: make(map[string]int)}
}

func (g *IDGenerator) Next() string {
	return g.NextWith(g.prefix)
}

// NextWith returns the next id in prefix's sequence.
func (g *IDGenerator) NextWith(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counters[prefix]++
	id := fmt.Sprintf("%s-%d", prefix, g.counters[prefix])
	g.issued = append(g.issued, id)
	return id
}

// NextFunc exposes Next for injection.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

// Issued returns every id handed out so far, oldest first.
func (g *IDGenerator) Issued() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.issued))
	copy(out, g.issued)
	return out
}

// Reset clears every sequence.
func (g *IDGenerator) Reset() {
	g.mu.Lock()
	g.counters = make(map[string]int)
	g.issued = nil
	g.mu.Unlock()
}
