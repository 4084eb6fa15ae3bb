package repository

import (
	"context"

	"github.com/rs-labo46/ec-payments/internal/domain/model"
)

type InventoryRepository interface {
	FindStock(ctx context.Context, variantID int64) (model.Stock, error)

	//在庫行を排他ロックして取得
	LockStock(ctx context.Context, variantID int64) (model.Stock, error)

	//在庫が足りるときだけ減算（足りなければfalse）
	DecreaseStockIfEnough(ctx context.Context, variantID int64, qty int64) (bool, error)

	//在庫の現在値を設定（行が無ければ作る）
	SetStock(ctx context.Context, variantID int64, quantity int64) error

	//増減履歴作成
	CreateMovement(ctx context.Context, m model.StockMovement) error

	FindVariant(ctx context.Context, variantID int64) (model.Variant, error)
}
