package app

import (
	"math"
	"sync"
	"time"
)

// PriceCache holds the latest reference price. The price may be absent until
// the first quote arrives. Safe for concurrent use.
type PriceCache struct {
	mu        sync.RWMutex
	price     float64
	valid     bool
	updatedAt time.Time
	now       func() time.Time
}

// NewPriceCache creates an empty cache.
func NewPriceCache() *PriceCache {
	return &PriceCache{now: time.Now}
}

// Set records a new quote. Non-positive and non-finite quotes are ignored.
func (c *PriceCache) Set(price float64) {
	if !(price > 0) || math.IsInf(price, 0) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.price = price
	c.valid = true
	c.updatedAt = c.now()
}

// Latest returns a copy of the latest quote, or nil if none was recorded.
func (c *PriceCache) Latest() *float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.valid {
		return nil
	}
	p := c.price
	return &p
}

// UpdatedAt returns when the latest quote was recorded (zero if never).
func (c *PriceCache) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt
}
