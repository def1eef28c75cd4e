package depcache

import (
	"context"
	"sort"
	"time"

	"github.com/unkn0wn-root/depcache/codec"
	"github.com/unkn0wn-root/depcache/store"
)

// Cache is a named, prefix-scoped facade over a store, a codec and an
// event emitter. Entries live at "<prefix>:<key>"; the reverse index
// from a dependency tag to the keys tagged with it lives at
// "<prefix>:deps:<tag>".
//
// Cache is fail-fast: store errors surface as *BackendError with no
// retries. Resilience on the wrapper path is WrapConfig's
// SilentBackendErrors knob.
type Cache struct {
	name   string
	prefix string
	store  store.Store
	codec  codec.Codec
	events *Emitter
	log    Logger
}

// Options tune a Cache. Only Store is required.
type Options struct {
	// Name identifies the cache in the manager registry.
	// Defaults to Prefix.
	Name string
	// Prefix scopes every key this cache writes. Defaults to "cache".
	Prefix string
	// Store is the backing key-value store. Required.
	Store store.Store
	// Codec serializes values. Defaults to codec.JSON{}.
	Codec codec.Codec
	// Logger receives diagnostics. Defaults to NopLogger.
	Logger Logger
	// SilentCallbackErrors swallows event-listener panics without
	// logging them. They are contained either way.
	SilentCallbackErrors bool
}

func New(opts Options) (*Cache, error) {
	if opts.Store == nil {
		return nil, &ConfigError{Reason: "store is required"}
	}
	c := &Cache{
		store:  opts.Store,
		prefix: coalesce(opts.Prefix, "cache"),
	}
	c.name = coalesce(opts.Name, c.prefix)
	c.codec = opts.Codec
	if c.codec == nil {
		c.codec = codec.JSON{}
	}
	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.events = NewEmitter(c.log, opts.SilentCallbackErrors)
	return c, nil
}

func (c *Cache) Name() string   { return c.name }
func (c *Cache) Prefix() string { return c.prefix }

// Events exposes the cache's emitter for registering observers.
func (c *Cache) Events() *Emitter { return c.events }

func (c *Cache) cacheKey(key string) string { return c.prefix + ":" + key }
func (c *Cache) depsKey(tag string) string  { return c.prefix + ":deps:" + tag }

// Set stores value under key with an optional TTL (ttl <= 0 means no
// expiry) and tags it with deps. For every tag the cache key is added
// to the tag's reverse index, and the index TTL is raised to at least
// ttl; an index that is already persistent stays persistent since it
// must outlive every dependent entry.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration, deps []string) error {
	blob, err := c.codec.Encode(value)
	if err != nil {
		return serializationErr("set", key, err)
	}
	ck := c.cacheKey(key)
	if err := c.store.Set(ctx, ck, blob, ttl); err != nil {
		return backendErr("set", key, err)
	}

	if len(deps) > 0 {
		sorted := make([]string, len(deps))
		copy(sorted, deps)
		sort.Strings(sorted)
		for _, dep := range sorted {
			if err := c.indexDependency(ctx, dep, ck, ttl); err != nil {
				return err
			}
		}
	}

	c.events.Emit(Event{
		Type:         EventSet,
		Key:          key,
		Value:        value,
		Dependencies: deps,
		TTL:          ttl,
	})
	return nil
}

// indexDependency adds cacheKey to dep's reverse index and applies the
// TTL-extension invariant. The index TTL is read before the add so a
// freshly created index is distinguishable from one that was already
// persistent.
func (c *Cache) indexDependency(ctx context.Context, dep, cacheKey string, ttl time.Duration) error {
	dk := c.depsKey(dep)
	cur, err := c.store.TTL(ctx, dk)
	if err != nil {
		return backendErr("ttl", dk, err)
	}
	if err := c.store.AddToSet(ctx, dk, cacheKey); err != nil {
		return backendErr("sadd", dk, err)
	}
	if ttl <= 0 {
		return nil
	}
	switch {
	case cur == store.Missing:
		// index created by this add; give it the entry's lifetime
		err = c.store.Expire(ctx, dk, ttl)
	case cur >= 0 && cur < ttl:
		err = c.store.Expire(ctx, dk, ttl)
	}
	if err != nil {
		return backendErr("expire", dk, err)
	}
	return nil
}

// Get returns the deserialized value stored at key. A cached exception
// decodes to its revived error, returned as the value.
func (c *Cache) Get(ctx context.Context, key string) (any, bool, error) {
	raw, ok, err := c.store.Get(ctx, c.cacheKey(key))
	if err != nil {
		return nil, false, backendErr("get", key, err)
	}
	if !ok {
		c.events.Emit(Event{Type: EventMiss, Key: key})
		return nil, false, nil
	}
	v, err := c.codec.Decode(raw)
	if err != nil {
		return nil, false, serializationErr("get", key, err)
	}
	c.events.Emit(Event{Type: EventHit, Key: key, Value: v})
	return v, true, nil
}

// GetInto decodes the value stored at key into dst. On a hit holding a
// cached exception, found is true and the revived error is returned
// with dst untouched. Store and codec failures report found=false.
func (c *Cache) GetInto(ctx context.Context, key string, dst any) (found bool, err error) {
	raw, ok, err := c.store.Get(ctx, c.cacheKey(key))
	if err != nil {
		return false, backendErr("get", key, err)
	}
	if !ok {
		c.events.Emit(Event{Type: EventMiss, Key: key})
		return false, nil
	}
	cached, err := c.codec.DecodeInto(raw, dst)
	if err != nil {
		return false, serializationErr("get", key, err)
	}
	if cached != nil {
		c.events.Emit(Event{Type: EventHit, Key: key, Value: cached})
		return true, cached
	}
	c.events.Emit(Event{Type: EventHit, Key: key, Value: dst})
	return true, nil
}

// Delete removes entries and returns how many existed.
func (c *Cache) Delete(ctx context.Context, keys ...string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	cks := make([]string, len(keys))
	for i, k := range keys {
		cks[i] = c.cacheKey(k)
	}
	n, err := c.store.Del(ctx, cks...)
	if err != nil {
		return 0, backendErr("del", keys[0], err)
	}
	for _, k := range keys {
		c.events.Emit(Event{Type: EventDelete, Key: k, Count: 1})
	}
	return n, nil
}

// Clear removes every entry whose logical key matches the glob pattern.
// An empty pattern clears the whole prefix. Note that "*" also matches
// dependency-index keys under the prefix.
func (c *Cache) Clear(ctx context.Context, pattern string) (int, error) {
	pattern = coalesce(pattern, "*")
	keys, err := c.store.ScanKeys(ctx, c.cacheKey(pattern))
	if err != nil {
		return 0, backendErr("scan", pattern, err)
	}
	n := 0
	if len(keys) > 0 {
		n, err = c.store.Del(ctx, keys...)
		if err != nil {
			return 0, backendErr("del", pattern, err)
		}
	}
	c.events.Emit(Event{Type: EventClear, Key: pattern, Count: n})
	return n, nil
}

// InvalidateDependency removes every entry tagged with tag, plus the
// tag's reverse index, and returns the number of entries removed.
// Concurrent Sets racing this call may leave a just-added key behind;
// invalidation is eventually consistent, not linearizable.
func (c *Cache) InvalidateDependency(ctx context.Context, tag string) (int, error) {
	dk := c.depsKey(tag)
	members, err := c.store.SetMembers(ctx, dk)
	if err != nil {
		return 0, backendErr("smembers", dk, err)
	}
	count := 0
	if len(members) > 0 {
		count, err = c.store.Del(ctx, members...)
		if err != nil {
			return 0, backendErr("del", tag, err)
		}
		if _, err := c.store.Del(ctx, dk); err != nil {
			return 0, backendErr("del", dk, err)
		}
	}
	c.events.Emit(Event{Type: EventInvalidate, Key: tag, Count: count})
	return count, nil
}

// Exists reports whether key currently holds an entry.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	ttl, err := c.store.TTL(ctx, c.cacheKey(key))
	if err != nil {
		return false, backendErr("ttl", key, err)
	}
	return ttl != store.Missing, nil
}

// TTL reports the remaining lifetime of key (store.NoExpiry for a
// persistent entry, store.Missing for an absent one).
func (c *Cache) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := c.store.TTL(ctx, c.cacheKey(key))
	if err != nil {
		return 0, backendErr("ttl", key, err)
	}
	return ttl, nil
}

// Close releases the underlying store.
func (c *Cache) Close(ctx context.Context) error {
	return c.store.Close(ctx)
}
