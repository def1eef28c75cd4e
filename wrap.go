package depcache

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"
)

// CallbackInfo describes the outcome of one wrapped call.
type CallbackInfo struct {
	Hit   bool
	Key   string
	Value any
	Err   error
}

// Callback observes wrapped-call outcomes. Callback failures are
// contained and logged; they never reach the caller.
type Callback func(ctx context.Context, info CallbackInfo)

// WrapConfig tunes a wrapped function. The zero value caches under the
// default manager with no expiry and no static dependencies.
type WrapConfig struct {
	// Manager names the registry entry to cache under.
	// Empty selects the default manager.
	Manager string
	// TTL is the static entry lifetime; SetCacheTTL inside the call
	// takes precedence. Zero means no expiry.
	TTL time.Duration
	// Dependencies seeds the operation frame with static tags.
	Dependencies []string
	// CacheableErrors opts error results into caching: an error is
	// cached when it is, or wraps, one of these exemplars (matched by
	// identity or concrete type). Empty means errors are never cached.
	CacheableErrors []error
	// Callback is invoked after every lookup or execution.
	Callback Callback
	// SilentBackendErrors downgrades store failures to logged warnings:
	// lookups behave as misses and persists are skipped, with the
	// wrapped function still executing normally. When false (default),
	// backend errors propagate to the caller.
	SilentBackendErrors bool
	// Key overrides the derived qualified function name in the cache
	// key. Useful for closures and method values with unstable names.
	Key string
}

// Wrap caches a nullary function's result under a key derived from its
// qualified name. The returned function has the same signature.
//
// The wrapped call participates in dependency tracking: tags recorded
// with AddDependency anywhere in its dynamic extent, including inside
// nested wrapped calls, attach to the stored entry.
func Wrap[R any](fn func(context.Context) (R, error), cfg WrapConfig) func(context.Context) (R, error) {
	qual := coalesce(cfg.Key, qualifiedName(fn))
	return func(ctx context.Context) (R, error) {
		return execute(ctx, qual, nil, cfg, fn)
	}
}

// Wrap1 caches a one-argument function. The argument contributes to the
// cache key via argCacheKey rules (CacheKeyer, PK/ID field, string form).
func Wrap1[A, R any](fn func(context.Context, A) (R, error), cfg WrapConfig) func(context.Context, A) (R, error) {
	qual := coalesce(cfg.Key, qualifiedName(fn))
	return func(ctx context.Context, a A) (R, error) {
		return execute(ctx, qual, []string{argCacheKey(a)}, cfg, func(ctx context.Context) (R, error) {
			return fn(ctx, a)
		})
	}
}

// Wrap2 caches a two-argument function.
func Wrap2[A, B, R any](fn func(context.Context, A, B) (R, error), cfg WrapConfig) func(context.Context, A, B) (R, error) {
	qual := coalesce(cfg.Key, qualifiedName(fn))
	return func(ctx context.Context, a A, b B) (R, error) {
		return execute(ctx, qual, []string{argCacheKey(a), argCacheKey(b)}, cfg, func(ctx context.Context) (R, error) {
			return fn(ctx, a, b)
		})
	}
}

// Wrap3 caches a three-argument function.
func Wrap3[A, B, C, R any](fn func(context.Context, A, B, C) (R, error), cfg WrapConfig) func(context.Context, A, B, C) (R, error) {
	qual := coalesce(cfg.Key, qualifiedName(fn))
	return func(ctx context.Context, a A, b B, c C) (R, error) {
		return execute(ctx, qual, []string{argCacheKey(a), argCacheKey(b), argCacheKey(c)}, cfg, func(ctx context.Context) (R, error) {
			return fn(ctx, a, b, c)
		})
	}
}

// execute drives one wrapped call through lookup, execution,
// persistence and notification.
func execute[R any](ctx context.Context, qual string, argKeys []string, cfg WrapConfig, call func(context.Context) (R, error)) (R, error) {
	var zero R

	m, err := GetOrCreateManager(cfg.Manager, nil)
	if err != nil {
		return zero, err // configuration errors are never silenced
	}
	if m == nil {
		// caching disabled: no key, no frame, no callback
		return call(ctx)
	}

	key := deriveKey(qual, argKeys)

	var out R
	found, lookupErr := m.GetInto(ctx, key, &out)
	switch {
	case lookupErr != nil && found:
		// cached application exception: re-raise without executing
		notify(ctx, m, cfg, CallbackInfo{Hit: true, Key: key, Err: lookupErr})
		return zero, lookupErr
	case lookupErr != nil:
		if !cfg.SilentBackendErrors {
			return zero, lookupErr
		}
		m.log.Warn("cache lookup failed; executing uncached", Fields{
			"key": key, "err": lookupErr,
		})
	case found:
		notify(ctx, m, cfg, CallbackInfo{Hit: true, Key: key, Value: out})
		return out, nil
	}

	opCtx := PushOperation(ctx, m.Name(), key, cfg.TTL, cfg.Dependencies...)
	defer PopOperation(opCtx) // stack integrity even on panic

	result, callErr := call(opCtx)

	// nested wrapped calls have merged their tags into this frame by now
	deps := Dependencies(opCtx).Slice()
	ttl, _ := CacheTTL(opCtx)

	var toStore any
	persist := false
	switch {
	case callErr == nil:
		toStore, persist = result, true
	case errorCacheable(callErr, cfg.CacheableErrors):
		toStore, persist = callErr, true
	}

	if persist {
		if err := m.Set(ctx, key, toStore, ttl, deps); err != nil {
			if !cfg.SilentBackendErrors {
				return zero, err
			}
			m.log.Warn("cache persist failed; result not cached", Fields{
				"key": key, "err": err,
			})
		}
	}

	notify(ctx, m, cfg, CallbackInfo{Hit: false, Key: key, Value: result, Err: callErr})
	return result, callErr
}

func notify(ctx context.Context, m *Cache, cfg WrapConfig, info CallbackInfo) {
	if cfg.Callback == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("wrapped-call callback panicked", Fields{
				"key": info.Key, "err": fmt.Sprint(r),
			})
		}
	}()
	cfg.Callback(ctx, info)
}

// errorCacheable reports whether err matches one of the opted-in
// exemplars: identity via errors.Is, or concrete type anywhere in the
// unwrap chain.
func errorCacheable(err error, exemplars []error) bool {
	if len(exemplars) == 0 {
		return false
	}
	for _, ex := range exemplars {
		if errors.Is(err, ex) {
			return true
		}
		et := reflect.TypeOf(ex)
		for e := err; e != nil; e = errors.Unwrap(e) {
			if reflect.TypeOf(e) == et {
				return true
			}
		}
	}
	return false
}
