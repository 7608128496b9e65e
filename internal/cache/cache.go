// Package cache memoizes adapter responses per (entity, input) within a
// freshness window, suppressing duplicate invocations. Its useful lifetime is
// one orchestration run, so entries live in memory and expiry is checked
// lazily on read — no background sweep.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// Entry is one memoized adapter response.
type Entry struct {
	Output    string
	LatencyMs int64
	WrittenAt time.Time
	TTL       time.Duration
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits    int64
	Misses  int64
	HitRate float64
}

// Cache is a TTL-keyed memo of adapter responses.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]Entry
	defaultTTL time.Duration
	hits       int64
	misses     int64

	now func() time.Time
}

// New creates a cache whose Set calls use defaultTTL unless overridden.
func New(defaultTTL time.Duration) *Cache {
	return &Cache{
		entries:    make(map[string]Entry),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Key derives a deterministic fingerprint from entity identity and a
// structurally-normalized serialization of the input, so semantically equal
// inputs collide regardless of field order.
func Key(entityID string, input map[string]any) (string, error) {
	h := sha256.New()

	if err := writeString(h, entityID); err != nil {
		return "", err
	}

	normalized, err := normalizeJSON(input)
	if err != nil {
		return "", fmt.Errorf("normalizing input: %w", err)
	}
	if _, err := h.Write(normalized); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Get returns the memoized entry for (entity, input), or false if it was
// never written or its freshness window has elapsed. Expired entries read as
// absent and are evicted in place.
func (c *Cache) Get(entityID string, input map[string]any) (Entry, bool) {
	key, err := Key(entityID, input)
	if err != nil {
		// An unkeyable input is simply a miss; the orchestrator proceeds
		// with a real invocation.
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		return Entry{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		return Entry{}, false
	}
	if c.now().After(entry.WrittenAt.Add(entry.TTL)) {
		delete(c.entries, key)
		c.misses++
		return Entry{}, false
	}

	c.hits++
	return entry, true
}

// Set memoizes a response with the default TTL, unconditionally overwriting
// any prior entry for the same key.
func (c *Cache) Set(entityID string, input map[string]any, output string, latencyMs int64) error {
	return c.SetWithTTL(entityID, input, output, latencyMs, c.defaultTTL)
}

// SetWithTTL memoizes a response with an explicit TTL.
func (c *Cache) SetWithTTL(entityID string, input map[string]any, output string, latencyMs int64, ttl time.Duration) error {
	key, err := Key(entityID, input)
	if err != nil {
		return fmt.Errorf("deriving cache key: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = Entry{
		Output:    output,
		LatencyMs: latencyMs,
		WrittenAt: c.now(),
		TTL:       ttl,
	}
	return nil
}

// Clear removes all entries. Hit/miss counters are preserved.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry)
}

// Stats returns hit/miss counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{Hits: c.hits, Misses: c.misses}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// Len returns the number of stored entries, including not-yet-evicted
// expired ones.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// normalizeJSON round-trips the value through encoding/json so map keys
// serialize in sorted order regardless of how the input was built.
func normalizeJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}

func writeString(w io.Writer, s string) error {
	// Null byte delimiter prevents hash collisions between adjacent fields.
	_, err := w.Write([]byte(s + "\x00"))
	return err
}
