package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-realtime-shop/internal/checkout"
	"github.com/ariefcatur/go-realtime-shop/internal/orders"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualTimers captures scheduled callbacks so tests decide when they fire.
type manualTimers struct {
	mu     sync.Mutex
	delays []time.Duration
	fns    []func()
}

type manualTimer struct{ stopped bool }

func (t *manualTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

func (m *manualTimers) afterFunc(d time.Duration, f func()) Stopper {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays = append(m.delays, d)
	m.fns = append(m.fns, f)
	return &manualTimer{}
}

func (m *manualTimers) fire(i int) {
	m.mu.Lock()
	f := m.fns[i]
	m.mu.Unlock()
	f()
}

type fakeExpirer struct {
	mu    sync.Mutex
	calls []int64
	due   checkout.Due
	err   error
}

func (f *fakeExpirer) ExpireDue(_ context.Context, orderID int64) (checkout.Due, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, orderID)
	return f.due, f.err
}

func newTestScheduler(e Expirer) (*Scheduler, *manualTimers, time.Time) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	log, _ := logtest.NewNullLogger()
	m := &manualTimers{}
	s := New(e, log)
	s.Clock = func() time.Time { return now }
	s.AfterFunc = m.afterFunc
	return s, m, now
}

func TestArmIsIdempotentPerOrder(t *testing.T) {
	s, m, now := newTestScheduler(&fakeExpirer{})

	require.NoError(t, s.Arm(1, now.Add(time.Minute)))
	require.NoError(t, s.Arm(1, now.Add(time.Minute)))
	require.NoError(t, s.Arm(2, now.Add(30*time.Second)))

	assert.Equal(t, 2, s.Pending())
	assert.Equal(t, []time.Duration{time.Minute, 30 * time.Second}, m.delays)
}

func TestPastDeadlineFiresImmediately(t *testing.T) {
	s, m, now := newTestScheduler(&fakeExpirer{})
	require.NoError(t, s.Arm(1, now.Add(-time.Hour)))
	assert.Equal(t, []time.Duration{0}, m.delays)
}

func TestFireExpiresAndClearsEntry(t *testing.T) {
	e := &fakeExpirer{due: checkout.Due{Expired: true}}
	s, m, now := newTestScheduler(e)
	require.NoError(t, s.Arm(7, now.Add(time.Minute)))

	m.fire(0)

	assert.Equal(t, []int64{7}, e.calls)
	assert.Equal(t, 0, s.Pending())

	// the id can be armed again once its timer fired
	require.NoError(t, s.Arm(7, now.Add(time.Minute)))
	assert.Equal(t, 1, s.Pending())
}

func TestEarlyFireRearmsForRemaining(t *testing.T) {
	e := &fakeExpirer{due: checkout.Due{Remaining: 12 * time.Second}}
	s, m, now := newTestScheduler(e)
	require.NoError(t, s.Arm(3, now.Add(time.Minute)))

	m.fire(0)

	assert.Equal(t, 1, s.Pending())
	require.Len(t, m.delays, 2)
	assert.Equal(t, 12*time.Second, m.delays[1])
}

func TestTerminalOrderIsNotRearmed(t *testing.T) {
	e := &fakeExpirer{due: checkout.Due{Order: orders.Order{Status: orders.StatusPaid}}}
	s, m, now := newTestScheduler(e)
	require.NoError(t, s.Arm(3, now.Add(time.Minute)))

	m.fire(0)

	assert.Equal(t, 0, s.Pending())
	assert.Len(t, m.delays, 1)
}

func TestFireErrorsAreLoggedNotRetried(t *testing.T) {
	e := &fakeExpirer{err: errors.New("disk gone")}
	log, hook := logtest.NewNullLogger()
	s, m, now := newTestScheduler(e)
	s.Log = log
	require.NoError(t, s.Arm(3, now.Add(time.Minute)))

	m.fire(0)

	assert.Equal(t, 0, s.Pending())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "payment deadline check failed", hook.LastEntry().Message)
}

func TestStopRejectsNewTimersAndSkipsLateFires(t *testing.T) {
	e := &fakeExpirer{due: checkout.Due{Expired: true}}
	s, m, now := newTestScheduler(e)
	require.NoError(t, s.Arm(1, now.Add(time.Minute)))

	s.Stop()
	m.fire(0)

	assert.Empty(t, e.calls)
	assert.ErrorIs(t, s.Arm(2, now.Add(time.Minute)), ErrClosed)
}

func TestRealTimerFires(t *testing.T) {
	e := &fakeExpirer{due: checkout.Due{Expired: true}}
	log, _ := logtest.NewNullLogger()
	s := New(e, log)
	defer s.Stop()

	require.NoError(t, s.Arm(9, time.Now().Add(10*time.Millisecond)))
	assert.Eventually(t, func() bool {
		e.mu.Lock()
		defer e.mu.Unlock()
		return len(e.calls) == 1
	}, time.Second, 5*time.Millisecond)
}
