// Package depcache caches computed function results behind a remote
// key-value store and invalidates them automatically when any piece of
// data they logically depend on changes.
//
// Components:
//   - store.Store: byte store with TTLs, sets and scan (Redis, memory).
//   - codec.Codec: (de)serializes values, including error round-trips.
//   - Cache: named, prefix-scoped manager maintaining a reverse index
//     from dependency tags to cache keys.
//   - Wrap/Wrap1..Wrap3: higher-order wrappers that cache a function's
//     results and collect its dependency tags transparently.
//
// Keys:
//
//	<prefix>:<key>        - cache entries
//	<prefix>:deps:<tag>   - tag reverse index (set of cache keys)
//
// Dependency tracking rides on context.Context: a wrapped call opens an
// operation frame; tags recorded with AddDependency anywhere in its
// dynamic extent, including inside nested wrapped calls, attach to the
// stored entry. When a nested wrapped call finishes, its tags merge
// into the enclosing frame, so invalidating an inner dependency also
// evicts the outer result:
//
//	inner := depcache.Wrap1(fetchUser, depcache.WrapConfig{TTL: time.Minute})
//	outer := depcache.Wrap1(func(ctx context.Context, id string) (Page, error) {
//	    depcache.AddDependency(ctx, "layout")
//	    u, err := inner(ctx, id)
//	    ...
//	}, depcache.WrapConfig{})
//
//	cache, _ := depcache.DefaultManager()
//	cache.InvalidateDependency(ctx, "user:"+id) // evicts inner and outer
package depcache
