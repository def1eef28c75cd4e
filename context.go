package depcache

import (
	"context"
	"sort"
	"sync"
	"time"
)

// TagSet is a set of dependency tags.
type TagSet map[string]struct{}

func NewTagSet(tags ...string) TagSet {
	s := make(TagSet, len(tags))
	for _, t := range tags {
		s[t] = struct{}{}
	}
	return s
}

func (s TagSet) Has(tag string) bool { _, ok := s[tag]; return ok }

// Slice returns the tags in sorted order.
func (s TagSet) Slice() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (s TagSet) clone() TagSet {
	out := make(TagSet, len(s))
	for t := range s {
		out[t] = struct{}{}
	}
	return out
}

// frame is one in-flight cache operation. Frames form a parent chain
// through the context; goroutines spawned with the same context share
// the same current frame, so mutation is lock-guarded.
type frame struct {
	mu      sync.Mutex
	parent  *frame
	manager string
	key     string
	ttl     time.Duration
	deps    map[string]TagSet // manager name -> tags
	popped  bool
}

type frameKey struct{}

func currentFrame(ctx context.Context) *frame {
	f, _ := ctx.Value(frameKey{}).(*frame)
	for f != nil {
		f.mu.Lock()
		popped := f.popped
		f.mu.Unlock()
		if !popped {
			return f
		}
		f = f.parent
	}
	return nil
}

// PushOperation opens a new operation frame on the returned context.
// The frame is seeded with the given manager-scoped dependency tags.
// Callers must balance every push with PopOperation on the same
// context, normally via defer.
func PushOperation(ctx context.Context, manager, cacheKey string, ttl time.Duration, deps ...string) context.Context {
	f := &frame{
		parent:  currentFrame(ctx),
		manager: manager,
		key:     cacheKey,
		ttl:     ttl,
		deps:    map[string]TagSet{manager: NewTagSet(deps...)},
	}
	return context.WithValue(ctx, frameKey{}, f)
}

// PopOperation closes the current frame, merging its dependency map
// into the parent frame, and returns the popped map. With no open
// frame it is a no-op returning an empty map. A frame pops once;
// repeated pops on the same context fall through to enclosing frames.
func PopOperation(ctx context.Context) map[string]TagSet {
	f := currentFrame(ctx)
	if f == nil {
		return map[string]TagSet{}
	}

	f.mu.Lock()
	f.popped = true
	popped := make(map[string]TagSet, len(f.deps))
	for name, tags := range f.deps {
		popped[name] = tags.clone()
	}
	f.mu.Unlock()

	if p := f.parent; p != nil {
		p.mu.Lock()
		for name, tags := range popped {
			dst, ok := p.deps[name]
			if !ok {
				dst = make(TagSet, len(tags))
				p.deps[name] = dst
			}
			for t := range tags {
				dst[t] = struct{}{}
			}
		}
		p.mu.Unlock()
	}
	return popped
}

// AddDependency records a dependency tag on the current frame under
// the frame's own manager. Outside an operation, or with no resolvable
// manager name, it degrades silently.
func AddDependency(ctx context.Context, tag string) {
	addDependency(ctx, "", tag)
}

// AddDependencyFor records a dependency tag for an explicit manager.
func AddDependencyFor(ctx context.Context, manager, tag string) {
	addDependency(ctx, manager, tag)
}

func addDependency(ctx context.Context, manager, tag string) {
	f := currentFrame(ctx)
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	name := coalesce(manager, f.manager)
	if name == "" {
		return
	}
	s, ok := f.deps[name]
	if !ok {
		s = make(TagSet)
		f.deps[name] = s
	}
	s[tag] = struct{}{}
}

// CurrentCacheKey returns the cache key of the current operation.
func CurrentCacheKey(ctx context.Context) (string, bool) {
	f := currentFrame(ctx)
	if f == nil {
		return "", false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.key, true
}

// SetCurrentCacheKey overrides the cache key of the current operation.
// No-op outside an operation.
func SetCurrentCacheKey(ctx context.Context, key string) {
	f := currentFrame(ctx)
	if f == nil {
		return
	}
	f.mu.Lock()
	f.key = key
	f.mu.Unlock()
}

// CacheTTL returns the effective TTL of the current operation.
func CacheTTL(ctx context.Context) (time.Duration, bool) {
	f := currentFrame(ctx)
	if f == nil {
		return 0, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ttl, true
}

// SetCacheTTL overrides the TTL the current operation will be stored
// with, taking precedence over the wrapper's static TTL. ttl <= 0
// means no expiry. No-op outside an operation.
func SetCacheTTL(ctx context.Context, ttl time.Duration) {
	f := currentFrame(ctx)
	if f == nil {
		return
	}
	f.mu.Lock()
	f.ttl = ttl
	f.mu.Unlock()
}

// Dependencies returns a copy of the current frame's tags for its own
// manager.
func Dependencies(ctx context.Context) TagSet {
	f := currentFrame(ctx)
	if f == nil {
		return TagSet{}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.manager == "" {
		return TagSet{}
	}
	if s, ok := f.deps[f.manager]; ok {
		return s.clone()
	}
	return TagSet{}
}

// DependenciesFor returns a copy of the current frame's tags for an
// explicit manager.
func DependenciesFor(ctx context.Context, manager string) TagSet {
	f := currentFrame(ctx)
	if f == nil {
		return TagSet{}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.deps[manager]; ok {
		return s.clone()
	}
	return TagSet{}
}

// AllDependencies returns a copy of the current frame's whole
// dependency map.
func AllDependencies(ctx context.Context) map[string]TagSet {
	f := currentFrame(ctx)
	if f == nil {
		return map[string]TagSet{}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]TagSet, len(f.deps))
	for name, tags := range f.deps {
		out[name] = tags.clone()
	}
	return out
}

// ClearDependencies drops every tag recorded on the current frame.
func ClearDependencies(ctx context.Context) {
	f := currentFrame(ctx)
	if f == nil {
		return
	}
	f.mu.Lock()
	f.deps = map[string]TagSet{}
	f.mu.Unlock()
}

// ResetOperations returns a context with no operation frames, hiding
// any frames on ctx from downstream callees.
func ResetOperations(ctx context.Context) context.Context {
	return context.WithValue(ctx, frameKey{}, (*frame)(nil))
}
