package channels

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"mediad/internal/catalog"
)

// DefaultCacheTTL is how long a cached listing stays servable.
const DefaultCacheTTL = 6 * time.Hour

// CacheKey identifies one cached listing. Every field that changes the
// result set must be part of the key.
type CacheKey struct {
	Scope          string
	ChannelID      uuid.UUID
	UserID         uuid.UUID
	FolderID       string
	SortBy         string
	SortDescending bool
}

func (k CacheKey) hash() string {
	sum := md5.Sum([]byte(k.Scope + "|" + k.UserID.String() + "|" + k.FolderID +
		"|" + k.SortBy + "|" + strconv.FormatBool(k.SortDescending)))
	return hex.EncodeToString(sum[:])
}

// ListingCache is a read-through file cache for channel listings. Fetches
// that miss the cache are serialized through a single shared permit so at
// most one remote listing fetch runs at a time, across all channels.
type ListingCache struct {
	root   string
	ttl    time.Duration
	permit *semaphore.Weighted
	clock  catalog.Clock
	logger catalog.Logger
}

func NewListingCache(root string, ttl time.Duration, permit *semaphore.Weighted, clock catalog.Clock, logger catalog.Logger) *ListingCache {
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}
	return &ListingCache{
		root:   root,
		ttl:    ttl,
		permit: permit,
		clock:  clock,
		logger: logger,
	}
}

// path buckets cache files by channel and by a hash of the provider's data
// version, so a version bump abandons every older file without touching it.
func (c *ListingCache) path(key CacheKey, dataVersion string) string {
	sum := md5.Sum([]byte(dataVersion))
	return filepath.Join(c.root, "channels", key.ChannelID.String(),
		hex.EncodeToString(sum[:]), key.hash()+".json")
}

// Get returns the cached listing when one is fresh, otherwise runs fetch
// under the shared permit and caches its result. Freshness is re-checked
// after acquiring the permit, so concurrent callers for the same key
// produce a single fetch.
func (c *ListingCache) Get(ctx context.Context, key CacheKey, dataVersion string, fetch func(context.Context) (*Listing, error)) (*Listing, error) {
	path := c.path(key, dataVersion)
	if listing, ok := c.readFresh(path); ok {
		return listing, nil
	}

	if err := c.permit.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("could not acquire fetch permit: %w", err)
	}
	defer c.permit.Release(1)

	if listing, ok := c.readFresh(path); ok {
		return listing, nil
	}

	listing, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.write(path, listing)
	return listing, nil
}

// readFresh returns the listing at path when the file exists, is within the
// TTL, and decodes. A missing, expired or corrupt file is a miss.
func (c *ListingCache) readFresh(path string) (*Listing, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if !info.ModTime().Add(c.ttl).After(c.clock.Now()) {
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		c.logger.Warn("could not read cached listing", "path", path, "error", err)
		return nil, false
	}
	var listing Listing
	if err := sonic.Unmarshal(data, &listing); err != nil {
		c.logger.Warn("discarding corrupt cached listing", "path", path, "error", err)
		return nil, false
	}
	return &listing, true
}

// write persists a fresh listing. A write failure only degrades caching, so
// it is logged and the caller still gets the fetched result.
func (c *ListingCache) write(path string, listing *Listing) {
	data, err := sonic.Marshal(listing)
	if err != nil {
		c.logger.Warn("could not encode listing for cache", "path", path, "error", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		c.logger.Warn("could not create cache directory", "path", path, "error", err)
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		c.logger.Warn("could not write cached listing", "path", path, "error", err)
	}
}
