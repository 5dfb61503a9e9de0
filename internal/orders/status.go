package orders

import "fmt"

type Status string

const (
	StatusPendingPayment  Status = "pending_payment"
	StatusAwaitingProof   Status = "awaiting_proof"
	StatusProofSubmitted  Status = "proof_submitted"
	StatusPaid            Status = "paid"
	StatusRejected        Status = "rejected"
	StatusRejectedTimeout Status = "rejected_timeout"
	StatusCancelled       Status = "cancelled"
)

// Only these edges exist. Terminal statuses have no outgoing edge.
var validNext = map[Status]map[Status]bool{
	StatusPendingPayment:  {StatusAwaitingProof: true, StatusProofSubmitted: true, StatusRejected: true, StatusRejectedTimeout: true},
	StatusAwaitingProof:   {StatusAwaitingProof: true, StatusProofSubmitted: true, StatusRejected: true, StatusRejectedTimeout: true},
	StatusProofSubmitted:  {StatusPaid: true, StatusRejected: true, StatusCancelled: true},
	StatusPaid:            {},
	StatusRejected:        {},
	StatusRejectedTimeout: {},
	StatusCancelled:       {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Known reports whether s is one of the declared statuses.
func (s Status) Known() bool {
	_, ok := validNext[s]
	return ok
}

func (s Status) Terminal() bool {
	switch s {
	case StatusPaid, StatusRejected, StatusRejectedTimeout, StatusCancelled:
		return true
	default:
		return false
	}
}

// AwaitingPayment is true while the buyer still has the right to pay,
// i.e. the order is subject to the payment deadline.
func (s Status) AwaitingPayment() bool {
	return s == StatusPendingPayment || s == StatusAwaitingProof
}

// Transition moves o to next or fails with ErrWrongState when the edge
// is not declared. It never mutates o on failure.
func (o *Order) Transition(next Status) error {
	if !CanTransition(o.Status, next) {
		return fmt.Errorf("%w: %s -> %s", ErrWrongState, o.Status, next)
	}
	o.Status = next
	return nil
}
