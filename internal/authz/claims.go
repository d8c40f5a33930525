package authz

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ClaimsLoader resolves a user's system permissions from storage.
type ClaimsLoader interface {
	LoadPrincipal(ctx context.Context, userID uuid.UUID) (Principal, error)
}

type claimsEntry struct {
	principal Principal
	expires   time.Time
}

// ClaimsCache is a process-wide userID -> Principal cache.
// Entries live for ttl; RefreshClaims evicts one user immediately and must be called
// whenever a write changes that user's system role or group memberships.
type ClaimsCache struct {
	loader  ClaimsLoader
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
	entries map[uuid.UUID]claimsEntry
	logger  *zap.Logger
}

// NewClaimsCache creates a cache backed by loader.
func NewClaimsCache(loader ClaimsLoader, ttl time.Duration, logger *zap.Logger) *ClaimsCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClaimsCache{
		loader:  loader,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[uuid.UUID]claimsEntry),
		logger:  logger,
	}
}

// Get returns the cached principal for userID, loading it on miss or expiry.
func (c *ClaimsCache) Get(ctx context.Context, userID uuid.UUID) (Principal, error) {
	now := c.now()
	c.mu.RLock()
	e, ok := c.entries[userID]
	c.mu.RUnlock()
	if ok && now.Before(e.expires) {
		return e.principal, nil
	}

	p, err := c.loader.LoadPrincipal(ctx, userID)
	if err != nil {
		return Principal{}, err
	}
	p.LoadedAt = now
	c.mu.Lock()
	c.entries[userID] = claimsEntry{principal: p, expires: now.Add(c.ttl)}
	c.mu.Unlock()
	return p, nil
}

// RefreshClaims evicts userID so the next Get reloads it.
func (c *ClaimsCache) RefreshClaims(userIDs ...uuid.UUID) {
	c.mu.Lock()
	for _, id := range userIDs {
		delete(c.entries, id)
	}
	c.mu.Unlock()
	c.logger.Debug("claims refreshed", zap.Int("users", len(userIDs)))
}

// Sweep drops expired entries and returns how many were removed.
func (c *ClaimsCache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for id, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, id)
			n++
		}
	}
	return n
}

// Len returns the number of cached entries.
func (c *ClaimsCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
