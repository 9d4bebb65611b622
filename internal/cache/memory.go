package cache

import (
	"context"
	"path"
	"sort"
	"strconv"
	"sync"
	"time"
)

// memoryStore is the in-process fallback. It mirrors the redis semantics of the
// Store operation set: expired keys read as absent, LRange accepts negative
// indices, HIncrBy creates missing hashes and fields, Scan pages a stable
// snapshot of matching keys.
type memoryStore struct {
	mu     sync.RWMutex
	data   map[string]string
	hashes map[string]map[string]string
	lists  map[string][]string
	expiry map[string]time.Time

	done chan struct{}
}

// NewMemoryStore builds a memory store and starts its minute sweep of expired
// keys.
func NewMemoryStore() Store {
	s := &memoryStore{
		data:   make(map[string]string),
		hashes: make(map[string]map[string]string),
		lists:  make(map[string][]string),
		expiry: make(map[string]time.Time),
		done:   make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

func (s *memoryStore) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *memoryStore) sweep() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, deadline := range s.expiry {
		if now.After(deadline) {
			s.purge(key)
		}
	}
}

// purge removes a key from every namespace. Callers hold the write lock.
func (s *memoryStore) purge(key string) {
	delete(s.data, key)
	delete(s.hashes, key)
	delete(s.lists, key)
	delete(s.expiry, key)
}

// expired reports whether a key has a lapsed deadline. Callers hold at least
// the read lock.
func (s *memoryStore) expired(key string) bool {
	deadline, ok := s.expiry[key]
	return ok && time.Now().After(deadline)
}

func (s *memoryStore) setTTL(key string, ttl time.Duration) {
	if ttl > 0 {
		s.expiry[key] = time.Now().Add(ttl)
	} else {
		delete(s.expiry, key)
	}
}

func (s *memoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.expired(key) {
		return "", false, nil
	}
	val, ok := s.data[key]
	return val, ok, nil
}

func (s *memoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	s.setTTL(key, ttl)
	return nil
}

func (s *memoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		s.purge(key)
	}
	return nil
}

func (s *memoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.expired(key) {
		return false, nil
	}
	if _, ok := s.data[key]; ok {
		return true, nil
	}
	if _, ok := s.hashes[key]; ok {
		return true, nil
	}
	_, ok := s.lists[key]
	return ok, nil
}

func (s *memoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setTTL(key, ttl)
	return nil
}

func (s *memoryStore) HSet(_ context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expired(key) {
		s.purge(key)
	}
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string, len(fields))
		s.hashes[key] = h
	}
	for f, v := range fields {
		h[f] = v
	}
	return nil
}

func (s *memoryStore) HGet(_ context.Context, key, field string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.expired(key) {
		return "", false, nil
	}
	val, ok := s.hashes[key][field]
	return val, ok, nil
}

func (s *memoryStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string)
	if s.expired(key) {
		return out, nil
	}
	for f, v := range s.hashes[key] {
		out[f] = v
	}
	return out, nil
}

func (s *memoryStore) HIncrBy(_ context.Context, key, field string, incr int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expired(key) {
		s.purge(key)
	}
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string)
		s.hashes[key] = h
	}
	cur, _ := strconv.ParseInt(h[field], 10, 64)
	cur += incr
	h[field] = strconv.FormatInt(cur, 10)
	return cur, nil
}

func (s *memoryStore) RPush(_ context.Context, key string, values ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expired(key) {
		s.purge(key)
	}
	s.lists[key] = append(s.lists[key], values...)
	return int64(len(s.lists[key])), nil
}

func (s *memoryStore) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.expired(key) {
		return nil, nil
	}
	list := s.lists[key]
	n := int64(len(list))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || n == 0 {
		return nil, nil
	}
	out := make([]string, stop-start+1)
	copy(out, list[start:stop+1])
	return out, nil
}

func (s *memoryStore) Scan(_ context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if count <= 0 {
		count = 10
	}

	var keys []string
	seen := make(map[string]bool)
	for _, ns := range []map[string]bool{keysOf(s.data), keysOfHashes(s.hashes), keysOfLists(s.lists)} {
		for key := range ns {
			if seen[key] || s.expired(key) {
				continue
			}
			seen[key] = true
			if ok, _ := path.Match(pattern, key); ok {
				keys = append(keys, key)
			}
		}
	}
	sort.Strings(keys)

	start := int(cursor)
	if start >= len(keys) {
		return nil, 0, nil
	}
	end := start + int(count)
	if end >= len(keys) {
		return keys[start:], 0, nil
	}
	return keys[start:end], uint64(end), nil
}

func keysOf(m map[string]string) map[string]bool {
	out := make(map[string]bool, len(m))
	for k := range m {
		out[k] = true
	}
	return out
}

func keysOfHashes(m map[string]map[string]string) map[string]bool {
	out := make(map[string]bool, len(m))
	for k := range m {
		out[k] = true
	}
	return out
}

func keysOfLists(m map[string][]string) map[string]bool {
	out := make(map[string]bool, len(m))
	for k := range m {
		out[k] = true
	}
	return out
}
