// Package memory provides an in-process implementation of the depcache
// store contract. It backs the test suites and works as a
// dependency-free store for development; it offers no persistence and
// no cross-process visibility.
package memory

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/unkn0wn-root/depcache/store"
)

type entry struct {
	value []byte
	exp   time.Time // zero => no expiry
}

type setEntry struct {
	members map[string]struct{}
	exp     time.Time
}

// Store keeps values and sets in maps guarded by one RWMutex.
// Expired keys are dropped lazily on access.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	sets    map[string]setEntry
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		entries: make(map[string]entry),
		sets:    make(map[string]setEntry),
	}
}

func expired(exp time.Time) bool {
	return !exp.IsZero() && time.Now().After(exp)
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if expired(e.exp) {
		delete(s.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	s.mu.Lock()
	s.entries[key] = entry{value: value, exp: exp}
	s.mu.Unlock()
	return nil
}

func (s *Store) Del(_ context.Context, keys ...string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for _, k := range keys {
		if e, ok := s.entries[k]; ok {
			delete(s.entries, k)
			if !expired(e.exp) {
				removed++
			}
			continue
		}
		if se, ok := s.sets[k]; ok {
			delete(s.sets, k)
			if !expired(se.exp) {
				removed++
			}
		}
	}
	return removed, nil
}

func (s *Store) ScanKeys(_ context.Context, pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k, e := range s.entries {
		if expired(e.exp) {
			delete(s.entries, k)
			continue
		}
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	for k, se := range s.sets {
		if expired(se.exp) {
			delete(s.sets, k)
			continue
		}
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (s *Store) AddToSet(_ context.Context, key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	se, ok := s.sets[key]
	if !ok || expired(se.exp) {
		se = setEntry{members: make(map[string]struct{})}
	}
	se.members[member] = struct{}{}
	s.sets[key] = se
	return nil
}

func (s *Store) SetMembers(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	se, ok := s.sets[key]
	if !ok {
		return nil, nil
	}
	if expired(se.exp) {
		delete(s.sets, key)
		return nil, nil
	}
	out := make([]string, 0, len(se.members))
	for m := range se.members {
		out = append(out, m)
	}
	return out, nil
}

func (s *Store) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok {
		if expired(e.exp) {
			delete(s.entries, key)
			return store.Missing, nil
		}
		if e.exp.IsZero() {
			return store.NoExpiry, nil
		}
		return time.Until(e.exp), nil
	}
	if se, ok := s.sets[key]; ok {
		if expired(se.exp) {
			delete(s.sets, key)
			return store.Missing, nil
		}
		if se.exp.IsZero() {
			return store.NoExpiry, nil
		}
		return time.Until(se.exp), nil
	}
	return store.Missing, nil
}

func (s *Store) Expire(_ context.Context, key string, ttl time.Duration) error {
	exp := time.Now().Add(ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok && !expired(e.exp) {
		e.exp = exp
		s.entries[key] = e
		return nil
	}
	if se, ok := s.sets[key]; ok && !expired(se.exp) {
		se.exp = exp
		s.sets[key] = se
	}
	return nil
}

func (s *Store) Close(context.Context) error { return nil }
