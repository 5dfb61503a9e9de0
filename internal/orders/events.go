package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated   = "OrderCreated"
	EventProofSubmitted = "ProofSubmitted"
	EventOrderApproved  = "OrderApproved"
	EventOrderRejected  = "OrderRejected"
	EventOrderTimedOut  = "OrderTimedOut"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "shop-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- Payload tipe per event ----

// OrderPayload carries the order as committed; used by every event except approval.
type OrderPayload struct {
	Order Order `json:"order"`
}

type OrderApprovedPayload struct {
	Order   Order   `json:"order"`
	Product Product `json:"product"`
}
