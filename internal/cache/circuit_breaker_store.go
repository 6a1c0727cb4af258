package cache

import (
	"context"
	"fmt"

	"messaging/pkg/circuitbreaker"
	apperrors "messaging/pkg/errors"
)

// CircuitBreakerStore guards a remote store. A missing key is a normal
// answer and does not count as a failure.
type CircuitBreakerStore struct {
	store Store
	cb    *circuitbreaker.Wrapper
}

func NewCircuitBreakerStore(store Store, cb *circuitbreaker.Wrapper) *CircuitBreakerStore {
	return &CircuitBreakerStore{store: store, cb: cb}
}

func (s *CircuitBreakerStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	var missing error
	err := s.cb.Run(ctx, func() error {
		v, err := s.store.Get(ctx, key)
		if apperrors.IsNotFound(err) {
			missing = err
			return nil
		}
		value = v
		return err
	})
	if err != nil {
		return nil, s.wrap(err)
	}
	if missing != nil {
		return nil, missing
	}
	return value, nil
}

func (s *CircuitBreakerStore) Set(ctx context.Context, key string, value []byte) error {
	return s.wrap(s.cb.Run(ctx, func() error {
		return s.store.Set(ctx, key, value)
	}))
}

func (s *CircuitBreakerStore) Delete(ctx context.Context, key string) error {
	return s.wrap(s.cb.Run(ctx, func() error {
		return s.store.Delete(ctx, key)
	}))
}

func (s *CircuitBreakerStore) Backend() string {
	return s.store.Backend()
}

func (s *CircuitBreakerStore) State() string {
	return s.cb.State().String()
}

func (s *CircuitBreakerStore) wrap(err error) error {
	if err == nil {
		return nil
	}
	if s.cb.IsOpen() {
		return apperrors.ErrServiceUnavailable.
			WithMessage(fmt.Sprintf("circuit breaker is open for %s", s.cb.Name())).
			WithCause(err)
	}
	return err
}
