package orders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStatuses = []Status{
	StatusPendingPayment,
	StatusAwaitingProof,
	StatusProofSubmitted,
	StatusPaid,
	StatusRejected,
	StatusRejectedTimeout,
	StatusCancelled,
}

func TestTerminalStatusesHaveNoExit(t *testing.T) {
	for _, from := range allStatuses {
		if !from.Terminal() {
			continue
		}
		for _, to := range allStatuses {
			assert.False(t, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestDeclaredTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPendingPayment, StatusAwaitingProof, true},
		{StatusAwaitingProof, StatusAwaitingProof, true},
		{StatusAwaitingProof, StatusProofSubmitted, true},
		{StatusPendingPayment, StatusRejectedTimeout, true},
		{StatusAwaitingProof, StatusRejectedTimeout, true},
		{StatusProofSubmitted, StatusPaid, true},
		{StatusProofSubmitted, StatusCancelled, true},
		{StatusProofSubmitted, StatusRejected, true},
		{StatusProofSubmitted, StatusRejectedTimeout, false},
		{StatusProofSubmitted, StatusAwaitingProof, false},
		{StatusPendingPayment, StatusPaid, false},
		{StatusPendingPayment, StatusCancelled, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestTransitionLeavesOrderUntouchedOnFailure(t *testing.T) {
	o := Order{Status: StatusPaid}
	err := o.Transition(StatusPendingPayment)
	require.ErrorIs(t, err, ErrWrongState)
	assert.Equal(t, StatusPaid, o.Status)

	assert.False(t, Status("bogus").Known())
	assert.True(t, StatusCancelled.Known())
}

func TestDeadline(t *testing.T) {
	t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	o := Order{Status: StatusPendingPayment, CreatedAt: t0}

	assert.False(t, o.Expired(t0.Add(59*time.Second), DefaultPaymentTimeout))
	assert.True(t, o.Expired(t0.Add(60*time.Second), DefaultPaymentTimeout))
	assert.Equal(t, 15*time.Second, o.Remaining(t0.Add(45*time.Second), DefaultPaymentTimeout))
	assert.Equal(t, time.Duration(0), o.Remaining(t0.Add(2*time.Minute), DefaultPaymentTimeout))

	var zero Order
	assert.False(t, zero.Expired(t0, DefaultPaymentTimeout))
}

func TestMarkTimedOut(t *testing.T) {
	now := time.Now().UTC()
	o := Order{Status: StatusAwaitingProof}
	require.NoError(t, o.MarkTimedOut(now))
	assert.Equal(t, StatusRejectedTimeout, o.Status)
	require.NotNil(t, o.RejectedAt)
	assert.True(t, now.Equal(*o.RejectedAt))

	require.ErrorIs(t, o.MarkTimedOut(now), ErrWrongState)
}

func TestDocumentCounters(t *testing.T) {
	d := NewDocument()
	p := d.AddProduct(Product{Name: "Widget", Price: 10000, Stock: 2})
	p2 := d.AddProduct(Product{Name: "Gadget", Price: 500, Stock: 1})
	assert.Equal(t, int64(1), p.ID)
	assert.Equal(t, int64(2), p2.ID)

	require.True(t, d.RemoveProduct(p2.ID))
	p3 := d.AddProduct(Product{Name: "Thing", Price: 1, Stock: 1})
	assert.Equal(t, int64(3), p3.ID, "ids are never reused")

	o := d.AddOrder(Order{ProductID: p.ID, Qty: 1})
	assert.Equal(t, int64(1), o.ID, "order ids have their own counter")
	assert.Nil(t, d.Order(42))
	assert.False(t, d.RemoveProduct(42))
}

func TestNormalizeRepairsCounters(t *testing.T) {
	d := &Document{Products: []Product{{ID: 4}}, Orders: []Order{{ID: 9}}}
	d.Normalize()
	assert.Equal(t, int64(5), d.NextProductID)
	assert.Equal(t, int64(10), d.NextOrderID)

	empty := &Document{}
	empty.Normalize()
	assert.Equal(t, NewDocument(), empty)
}
