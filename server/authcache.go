package server

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/little-pan/sqlite-server/metadb"
)

// authCache memoizes metadb.LookupUser results keyed by a hash of
// (host, user, protocol), avoiding a meta database round trip on every
// new connection's handshake. Grounded on the teacher's replication
// path hashing its dedup keys with xxhash instead of a string map key,
// the same reasoning applies here: the key is hashed once per lookup
// rather than compared by string equality across a growing cache.
type authCache struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[uint64]authCacheEntry
}

type authCacheEntry struct {
	rec      *metadb.UserRecord
	cachedAt time.Time
}

func newAuthCache(ttl time.Duration) *authCache {
	return &authCache{ttl: ttl, entries: make(map[uint64]authCacheEntry)}
}

func authCacheKey(host, user, protocol string) uint64 {
	return xxhash.Sum64String(host + "\x00" + user + "\x00" + protocol)
}

// lookup returns a cached record if present and fresh, else calls load
// (the real metadb lookup) and caches its result.
func (c *authCache) lookup(host, user, protocol string, load func() (*metadb.UserRecord, error)) (*metadb.UserRecord, error) {
	key := authCacheKey(host, user, protocol)

	c.mu.Lock()
	if e, ok := c.entries[key]; ok && time.Since(e.cachedAt) < c.ttl {
		c.mu.Unlock()
		return e.rec, nil
	}
	c.mu.Unlock()

	rec, err := load()
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.entries[key] = authCacheEntry{rec: rec, cachedAt: time.Now()}
	c.mu.Unlock()
	return rec, nil
}

// invalidate drops the cached record for (host, user, protocol). The
// ALTER USER and DROP USER paths do not call it, so a record cached
// before such a change stays in use until its TTL expires.
func (c *authCache) invalidate(host, user, protocol string) {
	c.mu.Lock()
	delete(c.entries, authCacheKey(host, user, protocol))
	c.mu.Unlock()
}
