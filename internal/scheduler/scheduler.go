// Package scheduler arms one payment-deadline timer per order.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ariefcatur/go-realtime-shop/internal/checkout"
	"github.com/ariefcatur/go-realtime-shop/internal/orders"
	"github.com/sirupsen/logrus"
)

var ErrClosed = errors.New("scheduler closed")

// Expirer re-checks an order when its timer fires.
type Expirer interface {
	ExpireDue(ctx context.Context, orderID int64) (checkout.Due, error)
}

type Stopper interface {
	Stop() bool
}

// Scheduler keys timers by order id. Arming an id that already has a
// pending timer is a no-op. A fired timer re-validates the order through
// the Expirer and re-arms for the remaining time when it fired early.
type Scheduler struct {
	Expirer     Expirer
	Clock       func() time.Time
	Log         logrus.FieldLogger
	FireTimeout time.Duration // per-fire store deadline, default 5s
	// AfterFunc defaults to time.AfterFunc; tests replace it.
	AfterFunc func(d time.Duration, f func()) Stopper

	mu     sync.Mutex
	timers map[int64]Stopper
	closed bool
	wg     sync.WaitGroup
}

func New(e Expirer, log logrus.FieldLogger) *Scheduler {
	return &Scheduler{Expirer: e, Log: log}
}

func (s *Scheduler) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

func (s *Scheduler) afterFunc(d time.Duration, f func()) Stopper {
	if s.AfterFunc != nil {
		return s.AfterFunc(d, f)
	}
	return time.AfterFunc(d, f)
}

func (s *Scheduler) log() logrus.FieldLogger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}

// Arm schedules a deadline check for orderID. Past deadlines fire at once.
func (s *Scheduler) Arm(orderID int64, deadline time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.timers == nil {
		s.timers = make(map[int64]Stopper)
	}
	if _, ok := s.timers[orderID]; ok {
		return nil
	}
	d := deadline.Sub(s.now())
	if d < 0 {
		d = 0
	}
	// fire takes s.mu before touching the map, so storing after
	// scheduling is safe even for d == 0
	s.timers[orderID] = s.afterFunc(d, func() { s.fire(orderID) })
	return nil
}

// Pending is the number of armed timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels pending timers and waits for running checks to finish.
// Orders left behind are still expired lazily on their next read.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.closed = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) fire(orderID int64) {
	s.mu.Lock()
	delete(s.timers, orderID)
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	timeout := s.FireTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log := s.log().WithField("order_id", orderID)
	due, err := s.Expirer.ExpireDue(ctx, orderID)
	switch {
	case errors.Is(err, orders.ErrNotFound):
		log.Debug("timer fired for unknown order")
		return
	case err != nil:
		log.WithError(err).Warn("payment deadline check failed")
		return
	}

	switch {
	case due.Expired:
		log.Info("order auto-rejected after payment timeout")
	case due.Remaining > 0:
		// fired early (clock skew); try again when the deadline is really due
		if err := s.Arm(orderID, s.now().Add(due.Remaining)); err != nil {
			log.WithError(err).Warn("re-arm payment timer")
		}
	}
}
