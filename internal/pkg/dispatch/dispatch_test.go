package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestQueue_RunsEveryTaskBeforeClose(t *testing.T) {
	q := New("test", 64, 4, time.Second, quietLogger())

	var ran atomic.Int32
	for i := 0; i < 50; i++ {
		require.True(t, q.Enqueue(func(ctx context.Context) error {
			ran.Add(1)
			return nil
		}))
	}

	require.NoError(t, q.Close(context.Background()))
	assert.Equal(t, int32(50), ran.Load())
}

func TestQueue_FailuresAndPanicsDoNotStopWorkers(t *testing.T) {
	q := New("test", 8, 1, time.Second, quietLogger())

	var ran atomic.Int32
	q.Enqueue(func(ctx context.Context) error { return errors.New("boom") })
	q.Enqueue(func(ctx context.Context) error { panic("kaboom") })
	q.Enqueue(func(ctx context.Context) error {
		ran.Add(1)
		return nil
	})

	require.NoError(t, q.Close(context.Background()))
	assert.Equal(t, int32(1), ran.Load())
}

func TestQueue_EnqueueAfterCloseIsRejected(t *testing.T) {
	q := New("test", 1, 1, 0, quietLogger())
	require.NoError(t, q.Close(context.Background()))

	assert.False(t, q.Enqueue(func(ctx context.Context) error { return nil }))
	assert.NoError(t, q.Close(context.Background()))
}

func TestQueue_FullBufferDropsTask(t *testing.T) {
	q := New("test", 1, 1, 0, quietLogger())

	release := make(chan struct{})
	started := make(chan struct{})
	require.True(t, q.Enqueue(func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started

	require.True(t, q.Enqueue(func(ctx context.Context) error { return nil }))
	assert.False(t, q.Enqueue(func(ctx context.Context) error { return nil }))

	close(release)
	require.NoError(t, q.Close(context.Background()))
}
