package refresh

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newCountingScheduler(t *testing.T, window, debounce time.Duration) (*Scheduler, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	s, err := NewScheduler(window, debounce, func(context.Context) {
		calls.Add(1)
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, &calls
}

func TestFirstRequestFiresImmediately(t *testing.T) {
	s, calls := newCountingScheduler(t, 100*time.Millisecond, 10*time.Millisecond)

	s.RequestRefresh()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
}

func TestBurstCoalescesIntoOneTrailingCall(t *testing.T) {
	window := 100 * time.Millisecond
	s, calls := newCountingScheduler(t, window, 10*time.Millisecond)

	// One immediate call, then a burst inside the window.
	for i := 0; i < 10; i++ {
		s.RequestRefresh()
	}

	// Immediately after the burst only the leading call has run.
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 50*time.Millisecond, time.Millisecond)

	// The trailing call arrives once the window elapses, exactly once.
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, time.Millisecond)

	// And nothing further without new requests.
	time.Sleep(2 * window)
	require.Equal(t, int32(2), calls.Load())
}

func TestRefreshAlwaysFollowsLastRequest(t *testing.T) {
	window := 80 * time.Millisecond
	s, calls := newCountingScheduler(t, window, 10*time.Millisecond)

	s.RequestRefresh() // immediate
	time.Sleep(20 * time.Millisecond)
	s.RequestRefresh() // trailing

	// Bounded by window + debounce.
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, time.Millisecond)
}

func TestAtMostOneCallPerWindow(t *testing.T) {
	window := 120 * time.Millisecond
	s, calls := newCountingScheduler(t, window, 10*time.Millisecond)

	deadline := time.Now().Add(3 * window)
	for time.Now().Before(deadline) {
		s.RequestRefresh()
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(window + 50*time.Millisecond)

	// Four windows touched at most (leading edge plus three elapsed
	// windows), so no more than five calls can have fired.
	require.LessOrEqual(t, calls.Load(), int32(5))
	require.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestRequestRefreshNeverBlocks(t *testing.T) {
	block := make(chan struct{})
	s, err := NewScheduler(50*time.Millisecond, 10*time.Millisecond, func(context.Context) {
		<-block
	})
	require.NoError(t, err)
	defer s.Close()
	defer close(block)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			s.RequestRefresh()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RequestRefresh blocked the caller")
	}
}

func TestCloseCancelsTrailingCall(t *testing.T) {
	window := 100 * time.Millisecond
	s, calls := newCountingScheduler(t, window, 10*time.Millisecond)

	s.RequestRefresh() // immediate
	s.RequestRefresh() // schedules trailing
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	s.Close()
	time.Sleep(2 * window)
	require.Equal(t, int32(1), calls.Load())

	// Requests after Close are ignored.
	s.RequestRefresh()
	time.Sleep(window)
	require.Equal(t, int32(1), calls.Load())
}

func TestNewSchedulerValidation(t *testing.T) {
	_, err := NewScheduler(0, 0, func(context.Context) {})
	require.Error(t, err)
	_, err = NewScheduler(time.Second, 0, nil)
	require.Error(t, err)
}
