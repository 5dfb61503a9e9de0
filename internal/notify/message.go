package notify

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ariefcatur/go-realtime-shop/internal/orders"
)

// Attachment forwards the buyer's proof file to admins. Ref is the opaque
// reference the chat transport handed in.
type Attachment struct {
	Kind orders.ProofType `json:"kind"`
	Ref  string           `json:"ref"`
}

type Message struct {
	Text       string      `json:"text"`
	Attachment *Attachment `json:"attachment,omitempty"`
}

const noDelivery = "delivery details will be sent by admin"

// Rupiah formats an amount as "Rp 10.000".
func Rupiah(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	digits := strconv.FormatInt(v, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return "Rp " + sign + b.String()
}

func orderLine(o orders.Order) string {
	return fmt.Sprintf("Order #%d: %s x%d, total %s", o.ID, o.ProductName, o.Qty, Rupiah(o.Total))
}

func buyerLabel(o orders.Order) string {
	if o.BuyerDisplayName == "" {
		return strconv.FormatInt(o.BuyerID, 10)
	}
	return fmt.Sprintf("%s (%d)", o.BuyerDisplayName, o.BuyerID)
}

func createdMessage(o orders.Order) Message {
	return Message{Text: fmt.Sprintf("New order\n%s\nBuyer: %s\nWaiting for payment.", orderLine(o), buyerLabel(o))}
}

func proofMessage(o orders.Order) Message {
	return Message{
		Text:       fmt.Sprintf("Payment proof received\n%s\nBuyer: %s\nApprove or reject order #%d.", orderLine(o), buyerLabel(o), o.ID),
		Attachment: &Attachment{Kind: o.ProofType, Ref: o.ProofRef},
	}
}

func approvedMessage(o orders.Order, p orders.Product) Message {
	delivery := strings.TrimSpace(p.Delivery)
	if delivery == "" {
		delivery = noDelivery
	}
	return Message{Text: fmt.Sprintf("Payment approved\n%s\n\n%s", orderLine(o), delivery)}
}

func rejectedMessage(o orders.Order) Message {
	return Message{Text: fmt.Sprintf("Payment rejected\n%s\nContact admin if you think this is a mistake.", orderLine(o))}
}

func timedOutBuyerMessage(o orders.Order) Message {
	return Message{Text: fmt.Sprintf("Payment time is up\n%s\nThe order was cancelled automatically.", orderLine(o))}
}

func timedOutAdminMessage(o orders.Order) Message {
	return Message{Text: fmt.Sprintf("Order timed out\n%s\nBuyer: %s", orderLine(o), buyerLabel(o))}
}
