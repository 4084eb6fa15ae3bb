package messaging

import (
	"encoding/json"
	"time"
)

const (
	EventOrderPaid = "order.paid"
)

// kafkaに流す共通の入れ物
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id"`
	Payload       json.RawMessage `json:"payload"`
}

type OrderPaidItem struct {
	VariantID int64 `json:"variant_id"`
	Quantity  int64 `json:"quantity"`
}

// 決済確定後の通知（メール送信などは購読側）
type OrderPaidPayload struct {
	OrderID         int64           `json:"order_id"`
	UserID          int64           `json:"user_id"`
	SessionID       string          `json:"session_id"`
	PaymentIntentID string          `json:"payment_intent_id"`
	Amount          string          `json:"amount"`
	AmountMinor     int64           `json:"amount_minor"`
	Currency        string          `json:"currency"`
	Items           []OrderPaidItem `json:"items"`
}
