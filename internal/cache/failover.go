package cache

import (
	"context"
	"log"
	"sync/atomic"
	"time"
)

// failoverStore fronts a redis store with the in-process memory store. Every
// call tries redis first and falls back to memory on error, so callers never
// observe cache infrastructure failures. Availability transitions are logged
// once per change.
type failoverStore struct {
	primary  Store
	fallback Store
	up       atomic.Bool
}

// NewFailoverStore combines a redis-backed store with a memory fallback.
func NewFailoverStore(primary, fallback Store) Store {
	s := &failoverStore{primary: primary, fallback: fallback}
	s.up.Store(true)
	return s
}

func (s *failoverStore) markDown(op string, err error) {
	if s.up.CompareAndSwap(true, false) {
		log.Printf("cache: redis unavailable, serving from memory op=%s err=%v", op, err)
	}
}

func (s *failoverStore) markUp() {
	if s.up.CompareAndSwap(false, true) {
		log.Printf("cache: redis recovered")
	}
}

func (s *failoverStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, ok, err := s.primary.Get(ctx, key)
	if err == nil {
		s.markUp()
		return val, ok, nil
	}
	s.markDown("get", err)
	return s.fallback.Get(ctx, key)
}

func (s *failoverStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.primary.Set(ctx, key, value, ttl); err == nil {
		s.markUp()
		return nil
	} else {
		s.markDown("set", err)
	}
	return s.fallback.Set(ctx, key, value, ttl)
}

func (s *failoverStore) Del(ctx context.Context, keys ...string) error {
	if err := s.primary.Del(ctx, keys...); err == nil {
		s.markUp()
	} else {
		s.markDown("del", err)
	}
	// Deletes apply to both tiers so a degraded period never resurrects keys.
	return s.fallback.Del(ctx, keys...)
}

func (s *failoverStore) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := s.primary.Exists(ctx, key)
	if err == nil {
		s.markUp()
		return ok, nil
	}
	s.markDown("exists", err)
	return s.fallback.Exists(ctx, key)
}

func (s *failoverStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.primary.Expire(ctx, key, ttl); err == nil {
		s.markUp()
		return nil
	} else {
		s.markDown("expire", err)
	}
	return s.fallback.Expire(ctx, key, ttl)
}

func (s *failoverStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if err := s.primary.HSet(ctx, key, fields); err == nil {
		s.markUp()
		return nil
	} else {
		s.markDown("hset", err)
	}
	return s.fallback.HSet(ctx, key, fields)
}

func (s *failoverStore) HGet(ctx context.Context, key, field string) (string, bool, error) {
	val, ok, err := s.primary.HGet(ctx, key, field)
	if err == nil {
		s.markUp()
		return val, ok, nil
	}
	s.markDown("hget", err)
	return s.fallback.HGet(ctx, key, field)
}

func (s *failoverStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	fields, err := s.primary.HGetAll(ctx, key)
	if err == nil {
		s.markUp()
		return fields, nil
	}
	s.markDown("hgetall", err)
	return s.fallback.HGetAll(ctx, key)
}

func (s *failoverStore) HIncrBy(ctx context.Context, key, field string, incr int64) (int64, error) {
	n, err := s.primary.HIncrBy(ctx, key, field, incr)
	if err == nil {
		s.markUp()
		return n, nil
	}
	s.markDown("hincrby", err)
	return s.fallback.HIncrBy(ctx, key, field, incr)
}

func (s *failoverStore) RPush(ctx context.Context, key string, values ...string) (int64, error) {
	n, err := s.primary.RPush(ctx, key, values...)
	if err == nil {
		s.markUp()
		return n, nil
	}
	s.markDown("rpush", err)
	return s.fallback.RPush(ctx, key, values...)
}

func (s *failoverStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	list, err := s.primary.LRange(ctx, key, start, stop)
	if err == nil {
		s.markUp()
		return list, nil
	}
	s.markDown("lrange", err)
	return s.fallback.LRange(ctx, key, start, stop)
}

func (s *failoverStore) Scan(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error) {
	keys, next, err := s.primary.Scan(ctx, cursor, pattern, count)
	if err == nil {
		s.markUp()
		return keys, next, nil
	}
	s.markDown("scan", err)
	return s.fallback.Scan(ctx, cursor, pattern, count)
}
