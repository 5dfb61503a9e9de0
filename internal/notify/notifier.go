package notify

import (
	"context"

	"github.com/ariefcatur/go-realtime-shop/internal/auth"
	"github.com/ariefcatur/go-realtime-shop/internal/checkout"
	"github.com/ariefcatur/go-realtime-shop/internal/orders"
)

// Notifier turns order events into chat messages. Admin-facing events go to
// every admin, outcome events to the buyer.
type Notifier struct {
	Gateway *Gateway
	Admins  auth.AdminList
}

var _ checkout.Notifier = (*Notifier)(nil)

func (n *Notifier) OrderCreated(ctx context.Context, o orders.Order) {
	n.Gateway.Notify(ctx, n.Admins.IDs(), createdMessage(o))
}

func (n *Notifier) ProofSubmitted(ctx context.Context, o orders.Order) {
	n.Gateway.Notify(ctx, n.Admins.IDs(), proofMessage(o))
}

func (n *Notifier) OrderApproved(ctx context.Context, o orders.Order, p orders.Product) {
	n.Gateway.Notify(ctx, []int64{o.BuyerID}, approvedMessage(o, p))
}

func (n *Notifier) OrderRejected(ctx context.Context, o orders.Order) {
	n.Gateway.Notify(ctx, []int64{o.BuyerID}, rejectedMessage(o))
}

func (n *Notifier) OrderTimedOut(ctx context.Context, o orders.Order) {
	n.Gateway.Notify(ctx, []int64{o.BuyerID}, timedOutBuyerMessage(o))
	n.Gateway.Notify(ctx, n.Admins.IDs(), timedOutAdminMessage(o))
}

// Multi forwards every event to each notifier in order.
type Multi []checkout.Notifier

func (m Multi) OrderCreated(ctx context.Context, o orders.Order) {
	for _, n := range m {
		n.OrderCreated(ctx, o)
	}
}

func (m Multi) ProofSubmitted(ctx context.Context, o orders.Order) {
	for _, n := range m {
		n.ProofSubmitted(ctx, o)
	}
}

func (m Multi) OrderApproved(ctx context.Context, o orders.Order, p orders.Product) {
	for _, n := range m {
		n.OrderApproved(ctx, o, p)
	}
}

func (m Multi) OrderRejected(ctx context.Context, o orders.Order) {
	for _, n := range m {
		n.OrderRejected(ctx, o)
	}
}

func (m Multi) OrderTimedOut(ctx context.Context, o orders.Order) {
	for _, n := range m {
		n.OrderTimedOut(ctx, o)
	}
}
