// Package notify delivers order notifications to chat users. Delivery is
// best effort: every failure is logged per recipient and swallowed.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Sender delivers one message to one chat user.
type Sender interface {
	Send(ctx context.Context, recipient int64, msg Message) error
}

type SenderFunc func(ctx context.Context, recipient int64, msg Message) error

func (f SenderFunc) Send(ctx context.Context, recipient int64, msg Message) error {
	return f(ctx, recipient, msg)
}

type Gateway struct {
	Sender Sender
	Log    logrus.FieldLogger
}

// Notify sends msg to each recipient in turn and reports how many
// deliveries succeeded. It never returns an error and never retries.
func (g *Gateway) Notify(ctx context.Context, recipients []int64, msg Message) int {
	log := g.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	delivered := 0
	for _, rcpt := range recipients {
		if err := g.send(ctx, rcpt, msg); err != nil {
			log.WithError(err).WithField("recipient", rcpt).Warn("notification not delivered")
			continue
		}
		delivered++
	}
	return delivered
}

func (g *Gateway) send(ctx context.Context, rcpt int64, msg Message) (err error) {
	// a panicking sender must not take the caller down with it
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sender panic: %v", r)
		}
	}()
	return g.Sender.Send(ctx, rcpt, msg)
}

// LogSender only logs; used when no chat transport is configured.
type LogSender struct {
	Log logrus.FieldLogger
}

func (s LogSender) Send(_ context.Context, recipient int64, msg Message) error {
	log := s.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	e := log.WithField("recipient", recipient)
	if msg.Attachment != nil {
		e = e.WithField("attachment", msg.Attachment.Ref)
	}
	e.Info(msg.Text)
	return nil
}

// WebhookSender POSTs each message as JSON to the chat transport.
type WebhookSender struct {
	URL    string
	Client *http.Client
}

type webhookBody struct {
	Recipient int64 `json:"recipient"`
	Message
}

func (s *WebhookSender) Send(ctx context.Context, recipient int64, msg Message) error {
	b, err := json.Marshal(webhookBody{Recipient: recipient, Message: msg})
	if err != nil {
		return errors.Wrap(err, "encode webhook body")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(b))
	if err != nil {
		return errors.Wrap(err, "build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrap(err, "post webhook")
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return errors.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}
