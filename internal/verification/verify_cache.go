package verification

import (
	"strings"
	"sync"

	"mailscout/internal/verification/ports"
)

// VerifyCache remembers validator verdicts per address so a run never pays
// for the same address twice. Safe for concurrent use.
type VerifyCache struct {
	mu      sync.RWMutex
	entries map[string]ports.ValidationResult
}

func NewVerifyCache() *VerifyCache {
	return &VerifyCache{entries: make(map[string]ports.ValidationResult)}
}

func (c *VerifyCache) Get(address string) (ports.ValidationResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.entries[strings.ToLower(address)]
	return r, ok
}

func (c *VerifyCache) Put(address string, r ports.ValidationResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[strings.ToLower(address)] = r
}

// Len returns the number of cached verdicts.
func (c *VerifyCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
