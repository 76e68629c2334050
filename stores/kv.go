// Package stores vends the persistence surface of the discovery engine: a get/set-by-key store and the
// notification record / explored circle stores built on top of it.
package stores

import (
	"sync"

	"github.com/go-redis/redis"

	"wuyrush.io/serendipity/common/logging"
	pe "wuyrush.io/serendipity/errors"
)

// KV stores opaque values by key.
type KV interface {
	// Get returns an ErrCodeNotFound error when key holds no value
	Get(key string) ([]byte, *pe.Err)
	// Set overwrites the value of key. Set must be atomic at the granularity of one key
	Set(key string, val []byte) *pe.Err
	Close() *pe.Err
}

// RedisKV is a KV implementation driven by Redis.
type RedisKV struct {
	DB *redis.Client
	// Prefix namespaces keys so that several devices can share one Redis
	Prefix string
}

func (s *RedisKV) Get(key string) ([]byte, *pe.Err) {
	clog := logging.WithFuncName().WithField("key", key)
	b, err := s.DB.Get(s.Prefix + key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, pe.NewNotFound("key not found").WithCause(err)
		}
		msg := "error getting value from Redis"
		clog.WithError(err).Error(msg)
		return nil, pe.NewServiceFailure(msg).WithCause(err)
	}
	return b, nil
}

func (s *RedisKV) Set(key string, val []byte) *pe.Err {
	clog := logging.WithFuncName().WithField("key", key)
	// no expiry: notification records and the explored log outlive sessions
	if err := s.DB.Set(s.Prefix+key, val, 0).Err(); err != nil {
		msg := "error saving value to Redis"
		clog.WithError(err).Error(msg)
		return pe.NewServiceFailure(msg).WithCause(err)
	}
	return nil
}

func (s *RedisKV) Close() *pe.Err {
	if err := s.DB.Close(); err != nil {
		return pe.NewServiceFailure("failed close Redis client").WithCause(err)
	}
	return nil
}

// MemoryKV keeps values in process memory. It backs tests and sessions that opt out of persistence.
type MemoryKV struct {
	mu   sync.RWMutex
	vals map[string][]byte
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{vals: make(map[string][]byte)}
}

func (s *MemoryKV) Get(key string) ([]byte, *pe.Err) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vals[key]
	if !ok {
		return nil, pe.NewNotFound("key not found")
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}

func (s *MemoryKV) Set(key string, val []byte) *pe.Err {
	cp := make([]byte, len(val))
	copy(cp, val)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vals[key] = cp
	return nil
}

func (s *MemoryKV) Close() *pe.Err {
	return nil
}
