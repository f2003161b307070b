package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"payment-orchestrator/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             50 * time.Millisecond,
		ConsecutiveFailures: 2,
	}
}

func TestManager_ExecuteSuccess(t *testing.T) {
	m := NewManager(testConfig(), zerolog.Nop())
	result, err := m.Execute(context.Background(), "stripe", func(ctx context.Context) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, "closed", m.State("stripe"))
}

func TestManager_TripsOpenAfterConsecutiveFailures(t *testing.T) {
	m := NewManager(testConfig(), zerolog.Nop())
	boom := errors.New("boom")

	for i := 0; i < 2; i++ {
		_, _ = m.Execute(context.Background(), "stripe", func(ctx context.Context) (any, error) {
			return nil, boom
		})
	}

	assert.Equal(t, "open", m.State("stripe"))

	_, err := m.Execute(context.Background(), "stripe", func(ctx context.Context) (any, error) {
		return "should not run", nil
	})
	assert.ErrorIs(t, err, ports.ErrCircuitOpen)
}

func TestManager_IsolatesPerProvider(t *testing.T) {
	m := NewManager(testConfig(), zerolog.Nop())
	boom := errors.New("boom")

	for i := 0; i < 2; i++ {
		_, _ = m.Execute(context.Background(), "stripe", func(ctx context.Context) (any, error) {
			return nil, boom
		})
	}
	assert.Equal(t, "open", m.State("stripe"))

	result, err := m.Execute(context.Background(), "vnpay", func(ctx context.Context) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, "closed", m.State("vnpay"))
}

func TestManager_UnknownProviderState(t *testing.T) {
	m := NewManager(testConfig(), zerolog.Nop())
	assert.Equal(t, "unknown", m.State("nope"))
}
