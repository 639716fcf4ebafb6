// Package cache stores verification profiles for a fixed TTL. Expiry is
// checked lazily on read; PurgeExpired is the only sweep.
package cache

import (
	"context"
	"sync"
	"time"

	"trustex/internal/verification/models"
	id "trustex/pkg/domain"
	"trustex/pkg/platform/sentinel"
)

// InMemoryCache keeps cached profiles in a map keyed by company.
type InMemoryCache struct {
	mu      sync.Mutex
	entries map[id.CompanyID]models.CachedVerification
	ttl     time.Duration
}

func NewInMemoryCache(ttl time.Duration) *InMemoryCache {
	return &InMemoryCache{
		entries: make(map[id.CompanyID]models.CachedVerification),
		ttl:     ttl,
	}
}

// Get returns the cached entry for companyID. Returns sentinel.ErrNotFound
// when absent and sentinel.ErrExpired when the entry reached its TTL; the
// expired entry is removed.
func (c *InMemoryCache) Get(_ context.Context, companyID id.CompanyID, now time.Time) (*models.CachedVerification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[companyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if entry.Expired(now) {
		delete(c.entries, companyID)
		return nil, sentinel.ErrExpired
	}
	entry.Profile = entry.Profile.Clone()
	return &entry, nil
}

// Put overwrites the entry for the profile's company.
func (c *InMemoryCache) Put(_ context.Context, profile *models.Profile, now time.Time) error {
	if profile == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[profile.CompanyID] = models.CachedVerification{
		Profile:  profile.Clone(),
		CachedAt: now,
		TTL:      c.ttl,
	}
	return nil
}

func (c *InMemoryCache) Invalidate(_ context.Context, companyID id.CompanyID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, companyID)
	return nil
}

// PurgeExpired removes every entry expired at now and reports how many.
func (c *InMemoryCache) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, entry := range c.entries {
		if entry.Expired(now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed, nil
}

func (c *InMemoryCache) TTL() time.Duration {
	return c.ttl
}
