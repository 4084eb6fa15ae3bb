package model

import (
	"time"

	"gorm.io/datatypes"
)

// 処理済みのWebhookイベント。同じイベントIDの再送を弾く。
type WebhookEvent struct {
	EventID     string         `gorm:"primaryKey;type:varchar(255)" json:"event_id"`
	EventType   string         `gorm:"type:varchar(100);not null;index" json:"event_type"`
	SessionID   string         `gorm:"type:varchar(255);index" json:"session_id"`
	Payload     datatypes.JSON `gorm:"not null" json:"payload"`
	ProcessedAt time.Time      `gorm:"not null" json:"processed_at"`
}
