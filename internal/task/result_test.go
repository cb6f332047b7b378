package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResult_FirstResolutionWins(t *testing.T) {
	r := NewResult[string]()

	assert.True(t, r.Resolve("first", nil))
	assert.False(t, r.Resolve("second", errors.New("late")))

	v, err := r.Wait(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "first", v)
}

func TestResult_WaitTimeout(t *testing.T) {
	r := NewResult[int]()

	_, err := r.Wait(context.Background(), 10*time.Millisecond)

	assert.ErrorIs(t, err, ErrTimeout)
	assert.True(t, r.Resolve(1, nil), "the result can still be resolved after the watch is abandoned")
}

func TestResult_WaitContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewResult[int]().Wait(ctx, time.Second)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestGo_WorkOutlivesWaiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	finished := make(chan error, 1)

	r := Go(ctx, func(ctx context.Context) (string, error) {
		<-release
		finished <- ctx.Err()
		return "draft-1", nil
	})

	_, err := r.Wait(ctx, 5*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)

	cancel()
	close(release)

	select {
	case err := <-finished:
		assert.NoError(t, err, "work context is not cancelled with the caller")
	case <-time.After(time.Second):
		t.Fatal("work did not finish")
	}
	<-r.Done()
	v, err := r.Wait(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "draft-1", v)
}

func TestGo_Error(t *testing.T) {
	r := Go(context.Background(), func(context.Context) (int, error) {
		return 0, errors.New("boom")
	})

	_, err := r.Wait(context.Background(), time.Second)

	assert.EqualError(t, err, "boom")
}
