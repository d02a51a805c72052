package cache

import (
	"sync"
	"time"

	"github.com/epeers/exposure/internal/models"
)

// MemoryCache is an in-process L1 in front of the Postgres resolution cache,
// so repeated identities within a run never re-query the database.
type MemoryCache struct {
	identities map[string]identityEntry
	metadata   map[string]metadataEntry
	identityMu sync.RWMutex
	metadataMu sync.RWMutex
	ttl        time.Duration
}

type identityEntry struct {
	identity  models.ResolvedIdentity
	fetchedAt time.Time
}

type metadataEntry struct {
	meta      models.Metadata
	fetchedAt time.Time
}

// NewMemoryCache creates a new in-memory cache.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		identities: make(map[string]identityEntry),
		metadata:   make(map[string]metadataEntry),
		ttl:        ttl,
	}
}

// GetIdentity retrieves a cached resolution if fresh.
func (c *MemoryCache) GetIdentity(ticker string) (*models.ResolvedIdentity, bool) {
	c.identityMu.RLock()
	defer c.identityMu.RUnlock()

	entry, exists := c.identities[ticker]
	if !exists {
		return nil, false
	}
	if time.Since(entry.fetchedAt) > c.ttl {
		return nil, false
	}
	ri := entry.identity
	return &ri, true
}

// SetIdentity caches a resolution.
func (c *MemoryCache) SetIdentity(ticker string, ri models.ResolvedIdentity) {
	c.identityMu.Lock()
	defer c.identityMu.Unlock()

	c.identities[ticker] = identityEntry{
		identity:  ri,
		fetchedAt: time.Now(),
	}
}

// GetMetadata retrieves cached enrichment metadata if fresh.
func (c *MemoryCache) GetMetadata(identity string) (*models.Metadata, bool) {
	c.metadataMu.RLock()
	defer c.metadataMu.RUnlock()

	entry, exists := c.metadata[identity]
	if !exists {
		return nil, false
	}
	if time.Since(entry.fetchedAt) > c.ttl {
		return nil, false
	}
	m := entry.meta
	return &m, true
}

// SetMetadata caches enrichment metadata.
func (c *MemoryCache) SetMetadata(identity string, m models.Metadata) {
	c.metadataMu.Lock()
	defer c.metadataMu.Unlock()

	c.metadata[identity] = metadataEntry{
		meta:      m,
		fetchedAt: time.Now(),
	}
}

// Clear removes all cached data.
func (c *MemoryCache) Clear() {
	c.identityMu.Lock()
	c.identities = make(map[string]identityEntry)
	c.identityMu.Unlock()

	c.metadataMu.Lock()
	c.metadata = make(map[string]metadataEntry)
	c.metadataMu.Unlock()
}
