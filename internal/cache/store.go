package cache

import (
	"context"
	"path"
	"strings"
	"time"

	apperrors "messaging/pkg/errors"
	"messaging/pkg/metrics"
)

// Store is a durable key/value store for opaque blobs. Get returns an error
// matching apperrors.IsNotFound when the key does not exist.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Backend() string
}

// Key joins a cache directory and name into a store key.
func Key(dir, name string) string {
	return path.Join(strings.Trim(dir, "/"), strings.Trim(name, "/"))
}

func notFound(key string) error {
	return apperrors.ErrNotFound.WithMessage("cache entry not found").WithDetail("key", key)
}

type instrumentedStore struct {
	next Store
}

// Instrument records operation counts and latencies of a store.
func Instrument(store Store) Store {
	return &instrumentedStore{next: store}
}

func (s *instrumentedStore) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	value, err := s.next.Get(ctx, key)
	observed := err
	if apperrors.IsNotFound(err) {
		observed = nil
	}
	metrics.ObserveCacheOperation(s.next.Backend(), "get", time.Since(start), observed)
	return value, err
}

func (s *instrumentedStore) Set(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	err := s.next.Set(ctx, key, value)
	metrics.ObserveCacheOperation(s.next.Backend(), "set", time.Since(start), err)
	return err
}

func (s *instrumentedStore) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.next.Delete(ctx, key)
	metrics.ObserveCacheOperation(s.next.Backend(), "delete", time.Since(start), err)
	return err
}

func (s *instrumentedStore) Backend() string {
	return s.next.Backend()
}
