package attachment

import (
	"context"
	"testing"
	"time"

	"github.com/AzielCF/az-wrap/domains/media"
	"github.com/AzielCF/az-wrap/pkg/lazyload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopQueue struct{}

func (nopQueue) Push(lazyload.Task) {}

func TestDecide(t *testing.T) {
	assert.Equal(t, Immediate, Decide(true, false, nopQueue{}))
	assert.Equal(t, Immediate, Decide(false, false, nil))
	assert.Equal(t, Immediate, Decide(false, true, nopQueue{}))
	assert.Equal(t, Deferred, Decide(false, false, nopQueue{}))
	assert.Equal(t, "deferred", Deferred.String())
}

func TestHandle_ReadyPath(t *testing.T) {
	h := NewHandle(media.KindPhoto, nil, nil)
	require.NotEmpty(t, h.ID)

	require.True(t, h.Transition(StateQueued))
	require.True(t, h.Transition(StateLoading))
	require.True(t, h.Ready())

	assert.Equal(t, []State{StatePlaceholder, StateQueued, StateLoading, StateReady}, h.History())
	require.NoError(t, h.Wait(context.Background()))

	assert.False(t, h.Transition(StateLoading), "ready is terminal")
	assert.False(t, h.Abort())
}

func TestHandle_RejectsInvalidTransitions(t *testing.T) {
	h := NewHandle(media.KindVideo, nil, nil)
	assert.False(t, h.Transition(StateCancelled))
	assert.False(t, h.Cancel())
	assert.Equal(t, StatePlaceholder, h.State())
}

func TestHandle_AbortSettlesWithStaleCompletion(t *testing.T) {
	h := NewHandle(media.KindVideo, nil, nil)
	h.Transition(StateLoading)
	require.True(t, h.Abort())
	assert.ErrorIs(t, h.Wait(context.Background()), media.ErrStaleCompletion)
}

func TestHandle_CancelThenRetry(t *testing.T) {
	h := NewHandle(media.KindDocument, nil, nil)
	require.True(t, h.Transition(StateLoading))
	first := h.Done()

	require.True(t, h.Cancel())
	assert.Equal(t, StatePlaceholder, h.State())
	assert.ErrorIs(t, h.Err(), media.ErrCancelled)
	select {
	case <-first:
	default:
		t.Fatal("cancel must settle the attempt")
	}

	require.True(t, h.Transition(StateLoading))
	second := h.Done()
	assert.NotEqual(t, first, second)
	assert.NoError(t, h.Err())

	require.True(t, h.Ready())
	require.NoError(t, h.Wait(context.Background()))
	assert.Equal(t, []State{
		StatePlaceholder, StateLoading, StateCancelled, StatePlaceholder, StateLoading, StateReady,
	}, h.History())
}

func TestHandle_FailRevertsToPlaceholder(t *testing.T) {
	h := NewHandle(media.KindPhoto, nil, nil)
	h.Transition(StateLoading)
	require.True(t, h.Fail(nil))
	assert.Equal(t, StatePlaceholder, h.State())
	assert.ErrorIs(t, h.Wait(context.Background()), media.ErrTransportFailure)
}

func TestHandle_WaitHonoursContext(t *testing.T) {
	h := NewHandle(media.KindPhoto, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.Wait(ctx), context.DeadlineExceeded)
}
