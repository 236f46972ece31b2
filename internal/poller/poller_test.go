package poller

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestPollerConfiguration(t *testing.T) {
	testCases := []struct {
		name     string
		interval time.Duration
	}{
		{"Default interval", 30 * time.Second},
		{"Short interval", time.Second},
		{"Long interval", time.Hour},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := New(quietLogger(), tc.interval, func(context.Context) {})
			assert.NotNil(t, p)
			assert.Equal(t, tc.interval, p.Interval())
			assert.False(t, p.Active())
		})
	}
}

func TestPollerTicks(t *testing.T) {
	var runs int32
	p := New(quietLogger(), time.Second, func(context.Context) {
		atomic.AddInt32(&runs, 1)
	})

	require.NoError(t, p.Start())
	assert.True(t, p.Active())
	assert.Error(t, p.Start())

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&runs) >= 1
	}, 3*time.Second, 20*time.Millisecond)

	p.Stop()
	assert.False(t, p.Active())

	after := atomic.LoadInt32(&runs)
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&runs))
}

func TestPollerSkipsOverlappingTicks(t *testing.T) {
	var (
		runs    int32
		running int32
		overlap int32
	)
	p := New(quietLogger(), time.Second, func(ctx context.Context) {
		if atomic.AddInt32(&running, 1) > 1 {
			atomic.StoreInt32(&overlap, 1)
		}
		atomic.AddInt32(&runs, 1)
		select {
		case <-time.After(2500 * time.Millisecond):
		case <-ctx.Done():
		}
		atomic.AddInt32(&running, -1)
	})

	require.NoError(t, p.Start())
	time.Sleep(3500 * time.Millisecond)
	p.Stop()

	assert.Equal(t, int32(0), atomic.LoadInt32(&overlap))
	assert.LessOrEqual(t, atomic.LoadInt32(&runs), int32(2))
}

func TestPollerAfter(t *testing.T) {
	p := New(quietLogger(), time.Hour, func(context.Context) {})

	fired := make(chan struct{}, 1)
	require.True(t, p.After(20*time.Millisecond, func(context.Context) {
		fired <- struct{}{}
	}))

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("follow-up did not fire")
	}
	p.Stop()
}

func TestPollerStopCancelsPending(t *testing.T) {
	p := New(quietLogger(), time.Hour, func(context.Context) {})

	var fired int32
	require.True(t, p.After(100*time.Millisecond, func(context.Context) {
		atomic.StoreInt32(&fired, 1)
	}))

	p.Stop()
	p.Stop()

	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
	assert.False(t, p.After(time.Millisecond, func(context.Context) {}))
	assert.Error(t, p.Start())
}

func TestPollerStopWaitsForRunningTask(t *testing.T) {
	p := New(quietLogger(), time.Hour, func(context.Context) {})

	started := make(chan struct{})
	var finished int32
	require.True(t, p.After(time.Millisecond, func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		atomic.StoreInt32(&finished, 1)
	}))

	<-started
	p.Stop()
	assert.Equal(t, int32(1), atomic.LoadInt32(&finished))
}
