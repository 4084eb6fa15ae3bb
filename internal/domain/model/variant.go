package model

import "time"

// SKU単位の商品
type Variant struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SKU       string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"sku"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Price     int64     `gorm:"not null" json:"price"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 在庫。決済確定時だけ行ロックを取って減らす。
type Stock struct {
	VariantID int64     `gorm:"primaryKey;autoIncrement:false" json:"variant_id"`
	Quantity  int64     `gorm:"not null;check:quantity >= 0" json:"quantity"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

type StockMovementReason string

const (
	StockMovementSettlement StockMovementReason = "SETTLEMENT"
	StockMovementAdjustment StockMovementReason = "ADJUSTMENT"
)

// 在庫の増減履歴
type StockMovement struct {
	ID        int64               `gorm:"primaryKey;autoIncrement" json:"id"`
	VariantID int64               `gorm:"not null;index" json:"variant_id"`
	OrderID   *int64              `gorm:"index" json:"order_id,omitempty"`
	Delta     int64               `gorm:"not null" json:"delta"`
	Reason    StockMovementReason `gorm:"type:varchar(30);not null" json:"reason"`
	Note      string              `gorm:"type:varchar(255)" json:"note"`
	Actor     string              `gorm:"type:varchar(64);not null" json:"actor"`
	CreatedAt time.Time           `gorm:"not null;autoCreateTime" json:"created_at"`
}
