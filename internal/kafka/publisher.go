package kafka

import (
	"context"
	"time"

	"github.com/ariefcatur/go-realtime-shop/internal/checkout"
	"github.com/ariefcatur/go-realtime-shop/internal/notify"
	"github.com/ariefcatur/go-realtime-shop/internal/orders"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Publisher is the part of Producer the adapters need.
type Publisher interface {
	TryPublish(key, value []byte, headers ...kafka.Header) error
}

// EventPublisher emits committed order transitions as v1 envelopes on
// orders.TopicOrderEvents, keyed by order id.
type EventPublisher struct {
	Out     Publisher
	Service string
	Clock   func() time.Time
	Log     logrus.FieldLogger
}

var _ checkout.Notifier = (*EventPublisher)(nil)

func (p *EventPublisher) OrderCreated(ctx context.Context, o orders.Order) {
	p.emit(ctx, orders.EventOrderCreated, o.ID, orders.OrderPayload{Order: o})
}

func (p *EventPublisher) ProofSubmitted(ctx context.Context, o orders.Order) {
	p.emit(ctx, orders.EventProofSubmitted, o.ID, orders.OrderPayload{Order: o})
}

func (p *EventPublisher) OrderApproved(ctx context.Context, o orders.Order, prod orders.Product) {
	p.emit(ctx, orders.EventOrderApproved, o.ID, orders.OrderApprovedPayload{Order: o, Product: prod})
}

func (p *EventPublisher) OrderRejected(ctx context.Context, o orders.Order) {
	p.emit(ctx, orders.EventOrderRejected, o.ID, orders.OrderPayload{Order: o})
}

func (p *EventPublisher) OrderTimedOut(ctx context.Context, o orders.Order) {
	p.emit(ctx, orders.EventOrderTimedOut, o.ID, orders.OrderPayload{Order: o})
}

func (p *EventPublisher) emit(ctx context.Context, eventType string, orderID int64, payload any) {
	now := time.Now
	if p.Clock != nil {
		now = p.Clock
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    now().UTC(),
		Producer:      p.Service,
		TraceID:       TraceID(ctx),
		CorrelationID: string(orders.PartitionKey(orderID)),
		Payload:       MustMarshal(payload),
	}
	if err := p.Out.TryPublish(orders.PartitionKey(orderID), MustMarshal(ev), EventHeaders(ev)...); err != nil {
		log := p.Log
		if log == nil {
			log = logrus.StandardLogger()
		}
		log.WithError(err).WithFields(logrus.Fields{"order_id": orderID, "event_type": eventType}).Warn("order event dropped")
	}
}

type traceKey struct{}

// WithTraceID tags ctx so published envelopes carry the request id.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

// TraceID returns the id set by WithTraceID, or "".
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}

// OutboxMessage is what a chat transport reads from orders.TopicChatOutbox.
type OutboxMessage struct {
	Recipient int64 `json:"recipient"`
	notify.Message
}

// OutboxSender hands notifications to the chat transport through Kafka.
type OutboxSender struct {
	Out Publisher
}

var _ notify.Sender = (*OutboxSender)(nil)

func (s *OutboxSender) Send(_ context.Context, recipient int64, msg notify.Message) error {
	return s.Out.TryPublish(orders.PartitionKey(recipient), MustMarshal(OutboxMessage{Recipient: recipient, Message: msg}))
}
