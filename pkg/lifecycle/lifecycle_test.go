package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSleepIsInterruptedByShutdown(t *testing.T) {
	m := NewManager("test", nil)
	h, err := m.NewServiceHandle("sleeper")
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		defer h.Close()
		errCh <- h.Sleep(time.Hour)
	}()

	m.Shutdown()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.Empty(t, m.WaitWithTimeout(time.Second))
}

func TestSleepCompletes(t *testing.T) {
	m := NewManager("test", nil)
	h, err := m.NewServiceHandle("sleeper")
	require.NoError(t, err)
	defer h.Close()
	assert.NoError(t, h.Sleep(time.Millisecond))
}

func TestDuplicateServiceRejected(t *testing.T) {
	m := NewManager("test", nil)
	_, err := m.NewServiceHandle("a")
	require.NoError(t, err)
	_, err = m.NewServiceHandle("a")
	assert.Error(t, err)
}

func TestWaitReportsStuckServices(t *testing.T) {
	m := NewManager("test", nil)
	release := make(chan struct{})
	require.NoError(t, m.Go("stuck", func(h *Handle) { <-release }))
	require.NoError(t, m.Go("polite", func(h *Handle) { <-h.Done() }))

	m.Shutdown()
	assert.Equal(t, []string{"stuck"}, m.WaitWithTimeout(50*time.Millisecond))

	close(release)
	assert.Empty(t, m.WaitWithTimeout(time.Second))
}

func TestCloseIsIdempotent(t *testing.T) {
	m := NewManager("test", nil)
	h, err := m.NewServiceHandle("a")
	require.NoError(t, err)
	h.Close()
	h.Close()
	assert.Empty(t, m.WaitWithTimeout(time.Second))
}

func TestRegisterAfterShutdownFails(t *testing.T) {
	m := NewManager("test", nil)
	m.Shutdown()
	_, err := m.NewServiceHandle("late")
	assert.Error(t, err)
}

func TestEveryRunsUntilShutdown(t *testing.T) {
	m := NewManager("test", nil)
	runs := make(chan struct{}, 16)
	errCh := make(chan error, 1)
	require.NoError(t, m.Go("ticker", func(h *Handle) {
		errCh <- h.Every(time.Millisecond, func(context.Context) {
			select {
			case runs <- struct{}{}:
			default:
			}
		})
	}))

	<-runs
	<-runs
	m.Shutdown()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.Empty(t, m.WaitWithTimeout(time.Second))
}
