package orders

import "time"

// DefaultPaymentTimeout is how long a buyer has to get proof in after checkout.
const DefaultPaymentTimeout = 60 * time.Second

func (o *Order) Deadline(timeout time.Duration) time.Time {
	return o.CreatedAt.Add(timeout)
}

// Expired reports whether now is at or past the order's deadline.
// A zero CreatedAt never expires.
func (o *Order) Expired(now time.Time, timeout time.Duration) bool {
	if o.CreatedAt.IsZero() {
		return false
	}
	return !now.Before(o.Deadline(timeout))
}

// Remaining is the time left before the deadline, never negative.
func (o *Order) Remaining(now time.Time, timeout time.Duration) time.Duration {
	if o.CreatedAt.IsZero() {
		return 0
	}
	d := o.Deadline(timeout).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// MarkTimedOut moves a payable order to rejected_timeout.
func (o *Order) MarkTimedOut(now time.Time) error {
	if err := o.Transition(StatusRejectedTimeout); err != nil {
		return err
	}
	t := now
	o.RejectedAt = &t
	return nil
}
