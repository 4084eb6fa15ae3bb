package model

import "time"

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// 決済プロバイダのcheckout sessionと1対1の決済レコード
type Transaction struct {
	ID              int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID       string            `gorm:"type:varchar(255);not null;uniqueIndex" json:"session_id"`
	OrderID         int64             `gorm:"not null;index" json:"order_id"`
	Status          TransactionStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	PaymentIntentID string            `gorm:"type:varchar(255)" json:"payment_intent_id"`
	Amount          int64             `gorm:"not null" json:"amount"`
	Currency        string            `gorm:"type:varchar(8);not null" json:"currency"`
	CheckoutURL     string            `gorm:"type:text" json:"checkout_url,omitempty"`
	FailureReason   string            `gorm:"type:varchar(255)" json:"failure_reason,omitempty"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
	CreatedAt       time.Time         `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 終端状態（COMPLETED / FAILED）か
func (t Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusCompleted || t.Status == TransactionStatusFailed
}
