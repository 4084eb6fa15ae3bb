package model

import "time"

// 決済確定、決済失敗、放置注文のキャンセル、在庫設定など。
type AuditAction string

const (
	//決済を確定した操作。
	AuditActionSettlePayment AuditAction = "SETTLE_PAYMENT"
	//決済失敗（期限切れ・非同期決済の失敗）を反映した操作。
	AuditActionFailPayment AuditAction = "FAIL_PAYMENT"
	//放置された注文をキャンセルした操作。
	AuditActionCancelAbandonedOrder AuditAction = "CANCEL_ABANDONED_ORDER"
	//在庫を設定した操作。
	AuditActionUpdateStock AuditAction = "UPDATE_STOCK"
)

// 何に対する操作か
type AuditResourceType string

const (
	AuditResourceTransaction AuditResourceType = "transaction"
	AuditResourceOrder       AuditResourceType = "order"
	AuditResourceVariant     AuditResourceType = "variant"
)

// 監査ログ。
// 「誰が」「何を」「どの対象に」「どう変えたか」を残す。
type AuditLog struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	//操作した主体（"stripe-webhook" / "cleanup" / "admin:12" など）。
	Actor string `gorm:"type:varchar(64);not null;index" json:"actor"`

	Action AuditAction `gorm:"type:varchar(50);not null;index" json:"action"`

	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resource_type"`

	ResourceID int64 `gorm:"not null;index" json:"resource_id"`

	//JSON文字列で保存する。
	BeforeJSON string `gorm:"type:text" json:"before_json"`
	AfterJSON  string `gorm:"type:text" json:"after_json"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}
