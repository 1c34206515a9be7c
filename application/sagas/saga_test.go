package sagas

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type pipelineState struct {
	trail []string
}

func TestSaga_RunsStepsInOrder(t *testing.T) {
	saga := NewSagaBuilder("map_generation", zap.NewNop()).
		WithStep("store_upload", func(ctx context.Context, d interface{}) (interface{}, error) {
			state := d.(*pipelineState)
			state.trail = append(state.trail, "store_upload")
			return state, nil
		}).
		WithStep("extract_text", func(ctx context.Context, d interface{}) (interface{}, error) {
			state := d.(*pipelineState)
			state.trail = append(state.trail, "extract_text")
			return state, nil
		}).
		WithStep("persist_map", func(ctx context.Context, d interface{}) (interface{}, error) {
			state := d.(*pipelineState)
			state.trail = append(state.trail, "persist_map")
			return state, nil
		}).
		Build()

	result, err := saga.Execute(context.Background(), &pipelineState{})

	require.NoError(t, err)
	state := result.(*pipelineState)
	assert.Equal(t, []string{"store_upload", "extract_text", "persist_map"}, state.trail)
}

func TestSaga_StopsAtFirstFailure(t *testing.T) {
	boom := errors.New("extraction failed")
	laterStepRan := false

	saga := NewSagaBuilder("map_generation", zap.NewNop()).
		WithStep("store_upload", func(ctx context.Context, d interface{}) (interface{}, error) {
			return d, nil
		}).
		WithStep("extract_text", func(ctx context.Context, d interface{}) (interface{}, error) {
			return nil, boom
		}).
		WithStep("persist_map", func(ctx context.Context, d interface{}) (interface{}, error) {
			laterStepRan = true
			return d, nil
		}).
		Build()

	result, err := saga.Execute(context.Background(), &pipelineState{})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failed at step extract_text")
	assert.Nil(t, result)
	assert.False(t, laterStepRan)
}

func TestSaga_CompensatesCompletedStepsInReverseOrder(t *testing.T) {
	var compensated []string
	failedStepCompensated := false

	compensable := func(name string) (func(context.Context, interface{}) (interface{}, error), func(context.Context, interface{}) error) {
		execute := func(ctx context.Context, d interface{}) (interface{}, error) { return d, nil }
		compensate := func(ctx context.Context, d interface{}) error {
			compensated = append(compensated, name)
			return nil
		}
		return execute, compensate
	}

	storeExec, storeComp := compensable("store_upload")
	extractExec, extractComp := compensable("extract_text")
	treeExec, treeComp := compensable("generate_tree")

	saga := NewSagaBuilder("map_generation", zap.NewNop()).
		WithCompensableStep("store_upload", storeExec, storeComp).
		WithCompensableStep("extract_text", extractExec, extractComp).
		WithCompensableStep("generate_tree", treeExec, treeComp).
		WithCompensableStep("persist_map",
			func(ctx context.Context, d interface{}) (interface{}, error) {
				return nil, errors.New("write rejected")
			},
			func(ctx context.Context, d interface{}) error {
				failedStepCompensated = true
				return nil
			},
		).
		Build()

	_, err := saga.Execute(context.Background(), &pipelineState{})

	require.Error(t, err)
	assert.Equal(t, []string{"generate_tree", "extract_text", "store_upload"}, compensated)
	assert.False(t, failedStepCompensated, "the failing step itself has nothing to undo")
}

func TestSaga_CompensationFailureDoesNotStopTheRest(t *testing.T) {
	var compensated []string

	saga := NewSagaBuilder("map_generation", zap.NewNop()).
		WithCompensableStep("store_upload",
			func(ctx context.Context, d interface{}) (interface{}, error) { return d, nil },
			func(ctx context.Context, d interface{}) error {
				compensated = append(compensated, "store_upload")
				return nil
			},
		).
		WithCompensableStep("extract_text",
			func(ctx context.Context, d interface{}) (interface{}, error) { return d, nil },
			func(ctx context.Context, d interface{}) error {
				compensated = append(compensated, "extract_text")
				return errors.New("cleanup failed")
			},
		).
		WithCompensableStep("generate_tree",
			func(ctx context.Context, d interface{}) (interface{}, error) { return d, nil },
			func(ctx context.Context, d interface{}) error {
				compensated = append(compensated, "generate_tree")
				return nil
			},
		).
		WithStep("persist_map", func(ctx context.Context, d interface{}) (interface{}, error) {
			return nil, errors.New("write rejected")
		}).
		Build()

	_, err := saga.Execute(context.Background(), &pipelineState{})

	require.Error(t, err)
	assert.Equal(t, []string{"generate_tree", "extract_text", "store_upload"}, compensated)
}

func TestSaga_RetryableStepSucceedsOnLaterAttempt(t *testing.T) {
	attempts := 0

	saga := NewSagaBuilder("map_generation", zap.NewNop()).
		WithRetryableStep("generate_tree",
			func(ctx context.Context, d interface{}) (interface{}, error) {
				attempts++
				if attempts < 2 {
					return nil, errors.New("model warming up")
				}
				return d, nil
			},
			3,
			5*time.Millisecond,
		).
		Build()

	_, err := saga.Execute(context.Background(), &pipelineState{})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestSaga_RetryExhaustionCompensatesEarlierSteps(t *testing.T) {
	boom := errors.New("model unavailable")
	uploadRemoved := false

	saga := NewSagaBuilder("map_generation", zap.NewNop()).
		WithCompensableStep("store_upload",
			func(ctx context.Context, d interface{}) (interface{}, error) { return d, nil },
			func(ctx context.Context, d interface{}) error {
				uploadRemoved = true
				return nil
			},
		).
		WithRetryableStep("generate_tree",
			func(ctx context.Context, d interface{}) (interface{}, error) {
				return nil, boom
			},
			2,
			time.Millisecond,
		).
		Build()

	_, err := saga.Execute(context.Background(), &pipelineState{})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.True(t, uploadRemoved)
}

func TestSaga_RetryStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	attempts := 0

	saga := NewSagaBuilder("map_generation", zap.NewNop()).
		WithRetryableStep("generate_tree",
			func(ctx context.Context, d interface{}) (interface{}, error) {
				attempts++
				cancel()
				return nil, errors.New("transient failure")
			},
			3,
			time.Hour,
		).
		Build()

	_, err := saga.Execute(ctx, &pipelineState{})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}
