package querycache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	LookupHit   = "hit"
	LookupStale = "stale"
	LookupMiss  = "miss"
)

type entry struct {
	Seq       uint64          `json:"seq"`
	Stale     bool            `json:"stale"`
	FetchedAt time.Time       `json:"fetched_at"`
	Data      json.RawMessage `json:"data"`
}

type FetchFunc func(ctx context.Context) (any, error)

// Cache stores query results keyed by query identity. Stale entries keep being
// served while a single background refetch per key replaces them, and every
// write carries a sequence number so a superseded response never overwrites a
// newer one.
type Cache struct {
	store          Store
	ttl            time.Duration
	refreshTimeout time.Duration
	observe        func(entity, result string)

	inflight sync.Map
	wg       sync.WaitGroup
}

type Option func(*Cache)

func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Cache) {
		c.refreshTimeout = d
	}
}

// WithLookupObserver reports every lookup as hit, stale or miss.
func WithLookupObserver(fn func(entity, result string)) Option {
	return func(c *Cache) {
		c.observe = fn
	}
}

func New(store Store, ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		store:          store,
		ttl:            ttl,
		refreshTimeout: 10 * time.Second,
		observe:        func(string, string) {},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch decodes the cached result for key into out, running fetch on a miss.
// A stale entry is returned as is and refreshed in the background.
func (c *Cache) Fetch(ctx context.Context, key Key, out any, fetch FetchFunc) error {
	raw, err := c.store.Get(ctx, key.String())
	switch {
	case err == nil:
		var e entry
		if err := json.Unmarshal(raw, &e); err != nil {
			zap.L().Warn("Discarding unreadable query cache entry", zap.String("key", key.String()), zap.Error(err))
			break
		}

		if e.Stale {
			c.observe(key.Entity, LookupStale)
			c.refresh(ctx, key, fetch)
		} else {
			c.observe(key.Entity, LookupHit)
		}
		return json.Unmarshal(e.Data, out)
	case !errors.Is(err, ErrMiss):
		zap.L().Warn("Query cache unavailable, reading through", zap.String("key", key.String()), zap.Error(err))
	}

	c.observe(key.Entity, LookupMiss)
	data, err := c.load(ctx, key, fetch)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// Invalidate marks every cached query of entity stale. The stale entry takes a
// new sequence number, so loads that started before the invalidation can no
// longer replace it.
func (c *Cache) Invalidate(ctx context.Context, entity string) error {
	keys, err := c.Keys(ctx, entity)
	if err != nil {
		return err
	}

	for _, key := range keys {
		err := c.modify(ctx, key, func(e *entry) error {
			seq, err := c.store.NextSeq(ctx, key.String())
			if err != nil {
				return err
			}
			e.Seq = seq
			e.Stale = true
			return nil
		})
		if err != nil && !errors.Is(err, ErrMiss) {
			return err
		}
	}
	return nil
}

// Update rewrites the cached data of key in place, keeping its sequence.
// Returns ErrMiss when nothing is cached under key.
func (c *Cache) Update(ctx context.Context, key Key, fn func(data json.RawMessage) (json.RawMessage, error)) error {
	return c.modify(ctx, key, func(e *entry) error {
		data, err := fn(e.Data)
		if err != nil {
			return err
		}
		e.Data = data
		return nil
	})
}

func (c *Cache) Keys(ctx context.Context, entity string) ([]Key, error) {
	raw, err := c.store.Keys(ctx, EntityPrefix(entity))
	if err != nil {
		return nil, err
	}

	keys := make([]Key, 0, len(raw))
	for _, r := range raw {
		key, err := ParseKey(r)
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Wait blocks until in-flight background refetches are done.
func (c *Cache) Wait() {
	c.wg.Wait()
}

func (c *Cache) load(ctx context.Context, key Key, fetch FetchFunc) (json.RawMessage, error) {
	k := key.String()

	seq, seqErr := c.store.NextSeq(ctx, k)
	if seqErr != nil {
		zap.L().Warn("Query cache sequence unavailable, result will not be cached", zap.String("key", k), zap.Error(seqErr))
	}

	v, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("querycache: encode %s: %w", k, err)
	}

	if seqErr == nil {
		c.write(ctx, k, entry{Seq: seq, FetchedAt: time.Now().UTC(), Data: data})
	}
	return data, nil
}

func (c *Cache) write(ctx context.Context, k string, e entry) {
	raw, err := json.Marshal(e)
	if err != nil {
		zap.L().Error("Failed to encode query cache entry", zap.String("key", k), zap.Error(err))
		return
	}

	stored, err := c.store.SetIfNewer(ctx, k, e.Seq, raw, c.ttl)
	if err != nil {
		zap.L().Warn("Failed to write query cache entry", zap.String("key", k), zap.Error(err))
		return
	}
	if !stored {
		zap.L().Debug("Discarded superseded query result", zap.String("key", k), zap.Uint64("seq", e.Seq))
	}
}

func (c *Cache) modify(ctx context.Context, key Key, fn func(e *entry) error) error {
	k := key.String()

	raw, err := c.store.Get(ctx, k)
	if err != nil {
		return err
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return c.store.Delete(ctx, k)
	}

	if err := fn(&e); err != nil {
		return err
	}

	c.write(ctx, k, e)
	return nil
}

func (c *Cache) refresh(ctx context.Context, key Key, fetch FetchFunc) {
	k := key.String()
	if _, busy := c.inflight.LoadOrStore(k, struct{}{}); busy {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.inflight.Delete(k)

		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
		defer cancel()

		if _, err := c.load(refreshCtx, key, fetch); err != nil {
			zap.L().Warn("Background refetch failed", zap.String("key", k), zap.Error(err))
		}
	}()
}
