package cache

import (
	"context"
	"sync"
	"time"

	"github.com/zgpcy/azure-resource-explorer/internal/clock"
)

// MaxMemoryEntries caps the in-memory cache; expired entries are swept first
const MaxMemoryEntries = 10000

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process Cache with per-entry expiry
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	clock   clock.Clock
}

// NewMemory creates an empty in-memory cache
func NewMemory(clk clock.Clock) *Memory {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Memory{
		entries: make(map[string]memoryEntry),
		clock:   clk,
	}
}

// Get returns the value stored under key unless it expired
func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok || !m.clock.Now().Before(e.expiresAt) {
		return nil, ErrMiss
	}
	return e.value, nil
}

// Set stores value under key for ttl
func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.entries) >= MaxMemoryEntries {
		m.sweepLocked()
	}
	if len(m.entries) >= MaxMemoryEntries {
		// still full: drop everything rather than grow without bound
		m.entries = make(map[string]memoryEntry)
	}
	m.entries[key] = memoryEntry{value: value, expiresAt: m.clock.Now().Add(ttl)}
	return nil
}

// Len returns the number of stored entries, expired ones included
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) sweepLocked() {
	now := m.clock.Now()
	for k, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, k)
		}
	}
}
