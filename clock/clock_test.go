package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestHostedClockMonotonic(t *testing.T) {
	c := NewHostedClock()
	a := c.Now()
	time.Sleep(time.Millisecond)
	b := c.Now()
	require.Greater(t, b, a)
}

func TestHostedClockSleepUntilExpires(t *testing.T) {
	c := NewHostedClock()
	deadline := c.Now() + int64(5*time.Millisecond)
	err := c.SleepUntil(context.Background(), deadline)
	require.NoError(t, err)
	require.GreaterOrEqual(t, c.Now(), deadline)
}

func TestHostedClockSleepUntilInterrupted(t *testing.T) {
	c := NewHostedClock()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.SleepUntil(ctx, c.Now()+int64(time.Hour))
	require.ErrorIs(t, err, ErrInterrupted)
}

func TestHostedClockSleepUntilInterruptedByAsyncEvent(t *testing.T) {
	c := NewHostedClock()
	done := make(chan error, 1)
	go func() {
		done <- c.SleepUntil(context.Background(), c.Now()+int64(time.Hour))
	}()

	time.Sleep(5 * time.Millisecond)
	c.NotifyAsyncEvent()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrInterrupted)
	case <-time.After(time.Second):
		t.Fatal("SleepUntil did not wake on async event")
	}
}

func TestCriticalSectionReentrant(t *testing.T) {
	disables, enables := 0, 0
	cs := &CriticalSection{
		Disable: func() { disables++ },
		Enable:  func() { enables++ },
	}
	cs.Enter()
	cs.Enter()
	require.Equal(t, 1, disables)
	require.Equal(t, 2, cs.Depth())

	require.NoError(t, cs.Exit())
	require.Equal(t, 0, enables)
	require.NoError(t, cs.Exit())
	require.Equal(t, 1, enables)
}

func TestCriticalSectionUnderflow(t *testing.T) {
	cs := NewCriticalSection()
	err := cs.Exit()
	require.ErrorIs(t, err, ErrCriticalSectionUnderflow)
}

func TestAsyncEventFlagWakesWaiter(t *testing.T) {
	flag := NewAsyncEventFlag()
	armed := flag.Armed()
	done := make(chan struct{})
	go func() {
		<-armed
		close(done)
	}()
	flag.NotifyAsyncEvent()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken")
	}
}
