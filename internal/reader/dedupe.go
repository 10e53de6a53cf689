package reader

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupeStore is the bounded "seen row-id" retention bucket (spec section
// 4.1). SeenAndMark reports whether key has already been observed within
// the retention window and marks it seen either way, so the caller never
// needs two round trips.
type DedupeStore interface {
	SeenAndMark(ctx context.Context, key string) (bool, error)
}

// lruEntry pairs a dedupe key with the time it was marked, so expired
// entries can be evicted from the front of the list without a full scan.
type lruEntry struct {
	key    string
	marked time.Time
}

// LRUDedupe is the default in-process retention bucket: a bounded,
// time-ordered set evicted both by capacity and by retention age.
// Grounded on the teacher's per-symbol mutex-guarded state maps
// (internal/gates, internal/scoring), generalized to an LRU+TTL set.
type LRUDedupe struct {
	retention time.Duration
	maxSize   int

	mu    sync.Mutex
	order *list.List
	index map[string]*list.Element
}

// NewLRUDedupe constructs an in-process dedupe bucket retaining keys for
// retentionHours and capped at maxSize entries.
func NewLRUDedupe(retentionHours int, maxSize int) *LRUDedupe {
	if maxSize <= 0 {
		maxSize = 1_000_000
	}
	return &LRUDedupe{
		retention: time.Duration(retentionHours) * time.Hour,
		maxSize:   maxSize,
		order:     list.New(),
		index:     make(map[string]*list.Element),
	}
}

// SeenAndMark reports whether key was already marked within the
// retention window, then marks it seen (refreshing its position).
func (d *LRUDedupe) SeenAndMark(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.evictExpired()

	if el, ok := d.index[key]; ok {
		d.order.MoveToBack(el)
		el.Value.(*lruEntry).marked = time.Now()
		return true, nil
	}

	el := d.order.PushBack(&lruEntry{key: key, marked: time.Now()})
	d.index[key] = el

	for d.order.Len() > d.maxSize {
		oldest := d.order.Front()
		d.order.Remove(oldest)
		delete(d.index, oldest.Value.(*lruEntry).key)
	}

	return false, nil
}

func (d *LRUDedupe) evictExpired() {
	if d.retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-d.retention)
	for {
		front := d.order.Front()
		if front == nil {
			return
		}
		entry := front.Value.(*lruEntry)
		if entry.marked.After(cutoff) {
			return
		}
		d.order.Remove(front)
		delete(d.index, entry.key)
	}
}

// RedisDedupe backs the retention bucket with a go-redis/v9 key set so
// dedupe state survives worker restarts in a multi-worker deployment
// (spec section 4.1, expansion). Each key is set with NX semantics and a
// per-key EXPIRE of retention_hours*3600, mirroring the in-process LRU's
// eviction policy at the storage layer instead of in memory.
type RedisDedupe struct {
	client    *redis.Client
	retention time.Duration
	keyPrefix string
}

// NewRedisDedupe constructs a retention bucket against addr.
func NewRedisDedupe(addr string, retentionHours int) *RedisDedupe {
	return &RedisDedupe{
		client:    redis.NewClient(&redis.Options{Addr: addr}),
		retention: time.Duration(retentionHours) * time.Hour,
		keyPrefix: "oficvd:reader:seen:",
	}
}

// SeenAndMark uses SETNX-with-expiry semantics: SetNX returns false when
// the key already existed, which is exactly "already seen."
func (d *RedisDedupe) SeenAndMark(ctx context.Context, key string) (bool, error) {
	wasNew, err := d.client.SetNX(ctx, d.keyPrefix+key, 1, d.retention).Result()
	if err != nil {
		return false, fmt.Errorf("reader: redis dedupe: %w", err)
	}
	return !wasNew, nil
}

// Close releases the underlying Redis client.
func (d *RedisDedupe) Close() error {
	return d.client.Close()
}
