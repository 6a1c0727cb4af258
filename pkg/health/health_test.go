package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging/pkg/circuitbreaker"
)

type staticChecker struct {
	name string
	err  error
}

func (c staticChecker) Name() string                { return c.name }
func (c staticChecker) Check(context.Context) error { return c.err }

func TestCheckerRegistry(t *testing.T) {
	tests := []struct {
		name     string
		checkers []Checker
		want     Status
	}{
		{"empty", nil, StatusHealthy},
		{"healthy", []Checker{staticChecker{name: "a"}}, StatusHealthy},
		{"degraded", []Checker{staticChecker{name: "a"}, staticChecker{name: "b", err: ErrDegraded}}, StatusDegraded},
		{"unhealthy wins", []Checker{
			staticChecker{name: "a", err: errors.New("down")},
			staticChecker{name: "b", err: ErrDegraded},
		}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewCheckerRegistry()
			for _, c := range tt.checkers {
				r.Register(c)
			}
			h := r.Check(context.Background())
			assert.Equal(t, tt.want, h.Status)
			assert.Len(t, h.Checks, len(tt.checkers))
		})
	}
}

func TestCircuitBreakerChecker(t *testing.T) {
	cfg := circuitbreaker.DefaultConfig("cache-redis")
	breaker := circuitbreaker.NewWrapper(cfg)
	checker := NewCircuitBreakerChecker(breaker)

	assert.Equal(t, "circuit_breaker_cache-redis", checker.Name())
	require.NoError(t, checker.Check(context.Background()))

	for i := 0; i < 3; i++ {
		_ = breaker.Run(context.Background(), func() error { return errors.New("fail") })
	}
	assert.True(t, errors.Is(checker.Check(context.Background()), ErrDegraded))
}
