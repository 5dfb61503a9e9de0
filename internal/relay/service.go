// Package relay consumes order events from Kafka and turns them into chat
// notifications, once per event id.
package relay

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-realtime-shop/internal/checkout"
	kafkax "github.com/ariefcatur/go-realtime-shop/internal/kafka"
	"github.com/ariefcatur/go-realtime-shop/internal/orders"
	"github.com/ariefcatur/go-realtime-shop/internal/redisx"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

type Service struct {
	Dedup    *redisx.Dedup
	Notifier checkout.Notifier
	Log      logrus.FieldLogger
}

// HandleOrderEvent: dipasang sebagai handler consumer. Returning nil commits
// the offset, so undecodable messages are logged and skipped.
func (s *Service) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	log := s.log()

	// 1) decode envelope
	env, err := kafkax.UnmarshalEnvelope(m.Value)
	if err != nil {
		log.WithError(err).WithField("offset", m.Offset).Warn("skip undecodable event")
		return nil
	}
	log = log.WithFields(logrus.Fields{"event_id": env.EventID, "event_type": env.EventType})

	// 2) dedup via Redis (pakai event_id)
	if s.Dedup != nil {
		first, err := s.Dedup.Claim(ctx, env.EventID)
		switch {
		case err != nil:
			// redis down: better a duplicate message than a lost one
			log.WithError(err).Warn("dedup unavailable")
		case !first:
			log.Debug("duplicate event")
			return nil
		}
	}

	// 3) decode payload & dispatch
	if err := s.dispatch(ctx, env); err != nil {
		log.WithError(err).Warn("skip event with bad payload")
	}
	return nil
}

func (s *Service) dispatch(ctx context.Context, env orders.Envelope) error {
	if env.EventType == orders.EventOrderApproved {
		p, err := kafkax.UnwrapPayload[orders.OrderApprovedPayload](env.Payload)
		if err != nil {
			return err
		}
		s.Notifier.OrderApproved(ctx, p.Order, p.Product)
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.OrderPayload](env.Payload)
	if err != nil {
		return err
	}
	switch env.EventType {
	case orders.EventOrderCreated:
		s.Notifier.OrderCreated(ctx, p.Order)
	case orders.EventProofSubmitted:
		s.Notifier.ProofSubmitted(ctx, p.Order)
	case orders.EventOrderRejected:
		s.Notifier.OrderRejected(ctx, p.Order)
	case orders.EventOrderTimedOut:
		s.Notifier.OrderTimedOut(ctx, p.Order)
	default:
		return fmt.Errorf("unknown event type %q", env.EventType)
	}
	return nil
}

func (s *Service) log() logrus.FieldLogger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}
