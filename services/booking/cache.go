package booking

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"slotbook/models"
	"slotbook/utils"

	"github.com/go-redis/redis/v8"
)

// FetchCache holds the result of the last full read for a bounded time.
type FetchCache interface {
	Get(ctx context.Context) ([]models.Booking, bool)
	Set(ctx context.Context, bookings []models.Booking)
	Invalidate(ctx context.Context)
}

type cacheEntry struct {
	value     []models.Booking
	fetchedAt time.Time
}

// MemoryFetchCache keeps one entry in process and expires it after ttl.
type MemoryFetchCache struct {
	ttl   time.Duration
	clock utils.Clock

	mu    sync.Mutex
	entry *cacheEntry
}

func NewMemoryFetchCache(ttl time.Duration, clock utils.Clock) *MemoryFetchCache {
	if clock == nil {
		clock = utils.SystemClock()
	}
	return &MemoryFetchCache{ttl: ttl, clock: clock}
}

func (c *MemoryFetchCache) Get(context.Context) ([]models.Booking, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry == nil {
		return nil, false
	}
	if c.clock.Now().Sub(c.entry.fetchedAt) >= c.ttl {
		c.entry = nil
		return nil, false
	}
	return append([]models.Booking{}, c.entry.value...), true
}

func (c *MemoryFetchCache) Set(_ context.Context, bookings []models.Booking) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry = &cacheEntry{
		value:     append([]models.Booking{}, bookings...),
		fetchedAt: c.clock.Now(),
	}
}

func (c *MemoryFetchCache) Invalidate(context.Context) {
	c.mu.Lock()
	c.entry = nil
	c.mu.Unlock()
}

const bookingsCacheKey = "slotbook:bookings:all"

// RedisFetchCache stores the listing as JSON with ttl as key expiry. Redis
// failures degrade to a cache miss.
type RedisFetchCache struct {
	client *redis.Client
	ttl    time.Duration
	key    string
}

func NewRedisFetchCache(client *redis.Client, ttl time.Duration) *RedisFetchCache {
	return &RedisFetchCache{client: client, ttl: ttl, key: bookingsCacheKey}
}

func (c *RedisFetchCache) Get(ctx context.Context) ([]models.Booking, bool) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		return nil, false
	}
	var bookings []models.Booking
	if err := json.Unmarshal(data, &bookings); err != nil {
		return nil, false
	}
	return bookings, true
}

func (c *RedisFetchCache) Set(ctx context.Context, bookings []models.Booking) {
	data, err := json.Marshal(bookings)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, c.key, data, c.ttl).Err()
}

func (c *RedisFetchCache) Invalidate(ctx context.Context) {
	_ = c.client.Del(ctx, c.key).Err()
}

// noCache disables caching.
type noCache struct{}

func (noCache) Get(context.Context) ([]models.Booking, bool) { return nil, false }
func (noCache) Set(context.Context, []models.Booking)        {}
func (noCache) Invalidate(context.Context)                   {}

// NoFetchCache returns a FetchCache that never hits.
func NoFetchCache() FetchCache { return noCache{} }
