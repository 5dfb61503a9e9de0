// Package checkout is the order state machine: it creates orders against the
// catalog, gates them behind payment proof, resolves them through admin
// decisions and expires them when the payment deadline passes.
//
// Every transition runs inside the store's exclusive section. Stock is only
// validated at creation; approval is the reservation point where it is
// checked again and decremented atomically.
package checkout

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ariefcatur/go-realtime-shop/internal/auth"
	"github.com/ariefcatur/go-realtime-shop/internal/orders"
	"github.com/ariefcatur/go-realtime-shop/internal/store"
	"github.com/sirupsen/logrus"
)

// Notifier receives committed state changes. Implementations are best
// effort and must not block for long; they run after the section is released.
type Notifier interface {
	OrderCreated(ctx context.Context, o orders.Order)
	ProofSubmitted(ctx context.Context, o orders.Order)
	OrderApproved(ctx context.Context, o orders.Order, p orders.Product)
	OrderRejected(ctx context.Context, o orders.Order)
	OrderTimedOut(ctx context.Context, o orders.Order)
}

// Timer arms the automatic expiry of an order.
type Timer interface {
	Arm(orderID int64, deadline time.Time) error
}

type Service struct {
	Store    *store.Store
	Timeout  time.Duration // payment window, default orders.DefaultPaymentTimeout
	Clock    func() time.Time
	Notifier Notifier
	Timers   Timer
	Log      logrus.FieldLogger
}

// Due is the result of a scheduler-driven deadline check.
type Due struct {
	Order     orders.Order
	Expired   bool          // this call moved the order to rejected_timeout
	Remaining time.Duration // > 0 when the deadline has not been reached yet
}

// Deadline identifies an order still waiting for payment.
type Deadline struct {
	OrderID int64
	At      time.Time
}

// PaymentTimeout is the payment window applied to every order.
func (s *Service) PaymentTimeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return orders.DefaultPaymentTimeout
}

func (s *Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) log() logrus.FieldLogger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}

func (s *Service) notifier() Notifier {
	if s.Notifier == nil {
		return nopNotifier{}
	}
	return s.Notifier
}

// Create validates availability and records a pending_payment order.
// Stock is not decremented here.
func (s *Service) Create(ctx context.Context, productID int64, qty int, buyer auth.Actor) (orders.Order, error) {
	if qty <= 0 {
		return orders.Order{}, fmt.Errorf("%w: qty must be positive", orders.ErrInvalidInput)
	}
	now := s.now()
	var created orders.Order
	err := s.Store.Update(ctx, func(doc *orders.Document) error {
		p := doc.Product(productID)
		if p == nil {
			return fmt.Errorf("product %d: %w", productID, orders.ErrNotFound)
		}
		if p.Stock < qty {
			return fmt.Errorf("product %d has %d left, want %d: %w", productID, p.Stock, qty, orders.ErrInsufficientStock)
		}
		if p.Price > math.MaxInt64/int64(qty) {
			return fmt.Errorf("%w: total of %d x %d overflows", orders.ErrInvalidInput, qty, p.Price)
		}
		created = doc.AddOrder(orders.Order{
			ProductID:        p.ID,
			ProductName:      p.Name,
			Qty:              qty,
			Total:            p.Price * int64(qty),
			BuyerID:          buyer.ID,
			BuyerDisplayName: buyer.Name,
			Status:           orders.StatusPendingPayment,
			CreatedAt:        now,
		})
		return nil
	})
	if err != nil {
		return orders.Order{}, err
	}

	log := s.log().WithFields(logrus.Fields{"order_id": created.ID, "product_id": productID, "buyer_id": buyer.ID})
	log.Info("order created")
	if s.Timers != nil {
		if err := s.Timers.Arm(created.ID, created.Deadline(s.PaymentTimeout())); err != nil {
			// lazy expiry still applies, the order is not lost
			log.WithError(err).Warn("arm payment timer")
		}
	}
	s.notifier().OrderCreated(ctx, created)
	return created, nil
}

// Get returns the order for its buyer or an admin, expiring it first when
// its deadline has passed.
func (s *Service) Get(ctx context.Context, orderID int64, viewer auth.Actor) (orders.Order, error) {
	now := s.now()
	var (
		out      orders.Order
		timedOut bool
	)
	err := s.Store.Update(ctx, func(doc *orders.Document) error {
		o := doc.Order(orderID)
		if o == nil {
			return fmt.Errorf("order %d: %w", orderID, orders.ErrNotFound)
		}
		if o.BuyerID != viewer.ID && !viewer.Admin {
			return fmt.Errorf("order %d: %w", orderID, orders.ErrForbidden)
		}
		timedOut = s.expireIfDue(o, now)
		out = *o
		if !timedOut {
			return store.ErrNoChange
		}
		return nil
	})
	if err != nil {
		return orders.Order{}, err
	}
	if timedOut {
		s.timedOut(ctx, out)
	}
	return out, nil
}

// ListByBuyer returns the buyer's orders, oldest first, after lazy expiry.
func (s *Service) ListByBuyer(ctx context.Context, buyer auth.Actor) ([]orders.Order, error) {
	now := s.now()
	var (
		out     []orders.Order
		expired []orders.Order
	)
	err := s.Store.Update(ctx, func(doc *orders.Document) error {
		out = []orders.Order{}
		for i := range doc.Orders {
			o := &doc.Orders[i]
			if o.BuyerID != buyer.ID {
				continue
			}
			if s.expireIfDue(o, now) {
				expired = append(expired, *o)
			}
			out = append(out, *o)
		}
		if len(expired) == 0 {
			return store.ErrNoChange
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, o := range expired {
		s.timedOut(ctx, o)
	}
	return out, nil
}

// RequestProof moves the order to awaiting_proof so the buyer can upload.
func (s *Service) RequestProof(ctx context.Context, orderID int64, buyer auth.Actor) (orders.Order, error) {
	return s.buyerTransition(ctx, orderID, buyer, func(o *orders.Order, _ time.Time) error {
		return o.Transition(orders.StatusAwaitingProof)
	})
}

// SubmitProof records the buyer's payment attachment. The reference is
// opaque and never verified.
func (s *Service) SubmitProof(ctx context.Context, orderID int64, buyer auth.Actor, ref string, kind orders.ProofType) (orders.Order, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return orders.Order{}, fmt.Errorf("%w: proof reference is empty", orders.ErrInvalidInput)
	}
	if !kind.Valid() {
		return orders.Order{}, fmt.Errorf("%w: proof type %q", orders.ErrInvalidInput, kind)
	}
	o, err := s.buyerTransition(ctx, orderID, buyer, func(o *orders.Order, now time.Time) error {
		if err := o.Transition(orders.StatusProofSubmitted); err != nil {
			return err
		}
		t := now
		o.ProofSubmittedAt = &t
		o.ProofType = kind
		o.ProofRef = ref
		return nil
	})
	if err != nil {
		return o, err
	}
	s.log().WithField("order_id", orderID).Info("payment proof submitted")
	s.notifier().ProofSubmitted(ctx, o)
	return o, nil
}

// buyerTransition applies the guards shared by buyer-side transitions:
// ownership, terminal state, then the payment deadline.
func (s *Service) buyerTransition(ctx context.Context, orderID int64, buyer auth.Actor, apply func(o *orders.Order, now time.Time) error) (orders.Order, error) {
	now := s.now()
	var (
		out      orders.Order
		timedOut bool
	)
	err := s.Store.Update(ctx, func(doc *orders.Document) error {
		o := doc.Order(orderID)
		if o == nil {
			return fmt.Errorf("order %d: %w", orderID, orders.ErrNotFound)
		}
		if o.BuyerID != buyer.ID {
			return fmt.Errorf("order %d: %w: not the buyer", orderID, orders.ErrForbidden)
		}
		if o.Status == orders.StatusRejectedTimeout {
			return fmt.Errorf("order %d: %w", orderID, orders.ErrExpired)
		}
		if !o.Status.AwaitingPayment() {
			return fmt.Errorf("order %d is %s: %w", orderID, o.Status, orders.ErrAlreadyProcessed)
		}
		if s.expireIfDue(o, now) {
			timedOut = true
			out = *o
			return nil
		}
		if err := apply(o, now); err != nil {
			return err
		}
		out = *o
		return nil
	})
	if err != nil {
		return orders.Order{}, err
	}
	if timedOut {
		s.timedOut(ctx, out)
		return out, fmt.Errorf("order %d: %w", orderID, orders.ErrExpired)
	}
	return out, nil
}

// Approve is the reservation point. Product existence and stock are checked
// again; if either fails the order is cancelled and the reason returned.
// On success the returned product carries the remaining stock.
func (s *Service) Approve(ctx context.Context, orderID int64, admin auth.Actor) (orders.Order, orders.Product, error) {
	if !admin.Admin {
		return orders.Order{}, orders.Product{}, fmt.Errorf("approve order %d: %w: admin only", orderID, orders.ErrForbidden)
	}
	now := s.now()
	var (
		out       orders.Order
		product   orders.Product
		timedOut  bool
		cancelErr error
	)
	err := s.Store.Update(ctx, func(doc *orders.Document) error {
		o := doc.Order(orderID)
		if o == nil {
			return fmt.Errorf("order %d: %w", orderID, orders.ErrNotFound)
		}
		if s.expireIfDue(o, now) {
			timedOut = true
			out = *o
			return nil
		}
		if o.Status != orders.StatusProofSubmitted {
			return fmt.Errorf("order %d is %s, want %s: %w", orderID, o.Status, orders.StatusProofSubmitted, orders.ErrWrongState)
		}

		p := doc.Product(o.ProductID)
		switch {
		case p == nil:
			cancelErr = fmt.Errorf("order %d cancelled, product %d: %w", orderID, o.ProductID, orders.ErrNotFound)
		case p.Stock < o.Qty:
			cancelErr = fmt.Errorf("order %d cancelled, product %d has %d left, want %d: %w", orderID, p.ID, p.Stock, o.Qty, orders.ErrInsufficientStock)
		}
		if cancelErr != nil {
			if err := o.Transition(orders.StatusCancelled); err != nil {
				return err
			}
			t := now
			o.CancelledAt = &t
			out = *o
			return nil
		}

		if err := o.Transition(orders.StatusPaid); err != nil {
			return err
		}
		p.Stock -= o.Qty
		t, by := now, admin.ID
		o.PaidAt = &t
		o.ApprovedBy = &by
		out, product = *o, *p
		return nil
	})
	if err != nil {
		return orders.Order{}, orders.Product{}, err
	}

	log := s.log().WithFields(logrus.Fields{"order_id": orderID, "admin_id": admin.ID})
	switch {
	case timedOut:
		s.timedOut(ctx, out)
		return out, orders.Product{}, fmt.Errorf("order %d: %w", orderID, orders.ErrExpired)
	case cancelErr != nil:
		log.WithError(cancelErr).Warn("order cancelled at approval")
		return out, orders.Product{}, cancelErr
	}
	log.WithField("stock_left", product.Stock).Info("order approved")
	s.notifier().OrderApproved(ctx, out, product)
	return out, product, nil
}

// Reject closes any non-terminal order. No stock was reserved, so none is returned.
func (s *Service) Reject(ctx context.Context, orderID int64, admin auth.Actor) (orders.Order, error) {
	if !admin.Admin {
		return orders.Order{}, fmt.Errorf("reject order %d: %w: admin only", orderID, orders.ErrForbidden)
	}
	now := s.now()
	var (
		out      orders.Order
		timedOut bool
	)
	err := s.Store.Update(ctx, func(doc *orders.Document) error {
		o := doc.Order(orderID)
		if o == nil {
			return fmt.Errorf("order %d: %w", orderID, orders.ErrNotFound)
		}
		if o.Status.Terminal() {
			return fmt.Errorf("order %d is %s: %w", orderID, o.Status, orders.ErrAlreadyProcessed)
		}
		if s.expireIfDue(o, now) {
			timedOut = true
			out = *o
			return nil
		}
		if err := o.Transition(orders.StatusRejected); err != nil {
			return err
		}
		t, by := now, admin.ID
		o.RejectedAt = &t
		o.RejectedBy = &by
		out = *o
		return nil
	})
	if err != nil {
		return orders.Order{}, err
	}
	if timedOut {
		s.timedOut(ctx, out)
		return out, fmt.Errorf("order %d: %w", orderID, orders.ErrExpired)
	}
	s.log().WithFields(logrus.Fields{"order_id": orderID, "admin_id": admin.ID}).Info("order rejected")
	s.notifier().OrderRejected(ctx, out)
	return out, nil
}

// Expire forces rejected_timeout regardless of the clock. It is a no-op
// (changed == false) for orders that are no longer awaiting payment.
func (s *Service) Expire(ctx context.Context, orderID int64) (o orders.Order, changed bool, err error) {
	now := s.now()
	err = s.Store.Update(ctx, func(doc *orders.Document) error {
		p := doc.Order(orderID)
		if p == nil {
			return fmt.Errorf("order %d: %w", orderID, orders.ErrNotFound)
		}
		o = *p
		if !p.Status.AwaitingPayment() {
			return store.ErrNoChange
		}
		if err := p.MarkTimedOut(now); err != nil {
			return err
		}
		o, changed = *p, true
		return nil
	})
	if err != nil {
		return orders.Order{}, false, err
	}
	if changed {
		s.timedOut(ctx, o)
	}
	return o, changed, nil
}

// ExpireDue is the scheduler entry point: expire only if the deadline has
// really passed, otherwise report how long is left.
func (s *Service) ExpireDue(ctx context.Context, orderID int64) (Due, error) {
	now := s.now()
	var due Due
	err := s.Store.Update(ctx, func(doc *orders.Document) error {
		o := doc.Order(orderID)
		if o == nil {
			return fmt.Errorf("order %d: %w", orderID, orders.ErrNotFound)
		}
		due.Order = *o
		if !o.Status.AwaitingPayment() {
			return store.ErrNoChange
		}
		if !o.Expired(now, s.PaymentTimeout()) {
			due.Remaining = o.Remaining(now, s.PaymentTimeout())
			return store.ErrNoChange
		}
		if err := o.MarkTimedOut(now); err != nil {
			return err
		}
		due.Order, due.Expired = *o, true
		return nil
	})
	if err != nil {
		return Due{}, err
	}
	if due.Expired {
		s.timedOut(ctx, due.Order)
	}
	return due, nil
}

// PendingDeadlines lists orders still awaiting payment, used to re-arm
// timers after a restart.
func (s *Service) PendingDeadlines(ctx context.Context) ([]Deadline, error) {
	doc, err := s.Store.View(ctx)
	if err != nil {
		return nil, err
	}
	var out []Deadline
	for i := range doc.Orders {
		o := &doc.Orders[i]
		if o.Status.AwaitingPayment() {
			out = append(out, Deadline{OrderID: o.ID, At: o.Deadline(s.PaymentTimeout())})
		}
	}
	return out, nil
}

// expireIfDue is the lazy half of deadline enforcement. It must run inside
// the section and reports whether it moved o to rejected_timeout.
func (s *Service) expireIfDue(o *orders.Order, now time.Time) bool {
	if !o.Status.AwaitingPayment() || !o.Expired(now, s.PaymentTimeout()) {
		return false
	}
	return o.MarkTimedOut(now) == nil
}

func (s *Service) timedOut(ctx context.Context, o orders.Order) {
	s.log().WithField("order_id", o.ID).Info("order timed out")
	s.notifier().OrderTimedOut(ctx, o)
}

type nopNotifier struct{}

func (nopNotifier) OrderCreated(context.Context, orders.Order)                  {}
func (nopNotifier) ProofSubmitted(context.Context, orders.Order)                {}
func (nopNotifier) OrderApproved(context.Context, orders.Order, orders.Product) {}
func (nopNotifier) OrderRejected(context.Context, orders.Order)                 {}
func (nopNotifier) OrderTimedOut(context.Context, orders.Order)                 {}
