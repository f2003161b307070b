package saga

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaga_AllStepsSucceed(t *testing.T) {
	var order []string
	s := New("test", zerolog.Nop()).
		AddStep(Step{Name: "a", Do: func(ctx context.Context) error { order = append(order, "a"); return nil }}).
		AddStep(Step{Name: "b", Do: func(ctx context.Context) error { order = append(order, "b"); return nil }})

	result := s.Run(context.Background())
	require.True(t, result.Success)
	require.NoError(t, result.Err)
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, []string{"a", "b"}, result.CompletedSteps)
	assert.Empty(t, result.FailedStep)
}

func TestSaga_CompensatesInReverseOrder(t *testing.T) {
	var compensated []string
	boom := errors.New("boom")

	s := New("test", zerolog.Nop()).
		AddStep(Step{
			Name:       "a",
			Do:         func(ctx context.Context) error { return nil },
			Compensate: func(ctx context.Context) error { compensated = append(compensated, "a"); return nil },
		}).
		AddStep(Step{
			Name:       "b",
			Do:         func(ctx context.Context) error { return nil },
			Compensate: func(ctx context.Context) error { compensated = append(compensated, "b"); return nil },
		}).
		AddStep(Step{
			Name: "c",
			Do:   func(ctx context.Context) error { return boom },
		})

	result := s.Run(context.Background())
	require.False(t, result.Success)
	require.Error(t, result.Err)
	assert.ErrorIs(t, result.Err, boom)
	assert.Equal(t, "c", result.FailedStep)
	assert.Equal(t, []string{"a", "b"}, result.CompletedSteps)
	assert.Equal(t, []string{"b", "a"}, compensated)
}

func TestSaga_CompensationFailureDoesNotMaskOriginalError(t *testing.T) {
	boom := errors.New("boom")
	compensateErr := errors.New("compensate failed")

	s := New("test", zerolog.Nop()).
		AddStep(Step{
			Name:       "a",
			Do:         func(ctx context.Context) error { return nil },
			Compensate: func(ctx context.Context) error { return compensateErr },
		}).
		AddStep(Step{
			Name: "b",
			Do:   func(ctx context.Context) error { return boom },
		})

	result := s.Run(context.Background())
	require.False(t, result.Success)
	require.Error(t, result.Err)
	assert.ErrorIs(t, result.Err, boom)
}

func TestSaga_NilCompensateSkipped(t *testing.T) {
	boom := errors.New("boom")
	s := New("test", zerolog.Nop()).
		AddStep(Step{Name: "a", Do: func(ctx context.Context) error { return nil }}).
		AddStep(Step{Name: "b", Do: func(ctx context.Context) error { return boom }})

	result := s.Run(context.Background())
	require.False(t, result.Success)
	require.Error(t, result.Err)
}
