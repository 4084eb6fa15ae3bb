package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs-labo46/ec-payments/internal/domain/model"
	"github.com/rs-labo46/ec-payments/internal/infra/db"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// テストごとに別のインメモリDB。
// sqliteには行ロックが無いので接続を1本にしてTxを直列にする
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))
	return gdb
}

type seedLine struct {
	variantID int64
	qty       int64
	price     int64
}

// 商品と在庫を作る
func seedVariant(t *testing.T, gdb *gorm.DB, id int64, stock int64) {
	t.Helper()
	require.NoError(t, gdb.Create(&model.Variant{ID: id, SKU: fmt.Sprintf("SKU-%d", id), Name: fmt.Sprintf("item %d", id), Price: 1000, IsActive: true}).Error)
	require.NoError(t, gdb.Create(&model.Stock{VariantID: id, Quantity: stock}).Error)
}

// PENDINGの注文とtransactionを作る。transactionの作成時刻は注文と同じ
func seedPendingOrder(t *testing.T, gdb *gorm.DB, userID int64, sessionID string, createdAt time.Time, lines ...seedLine) (model.Order, model.Transaction) {
	t.Helper()

	var total int64
	items := make([]model.OrderItem, 0, len(lines))
	for _, l := range lines {
		total += l.price * l.qty
		items = append(items, model.OrderItem{
			VariantID:         l.variantID,
			NameSnapshot:      fmt.Sprintf("item %d", l.variantID),
			UnitPriceSnapshot: l.price,
			Quantity:          l.qty,
		})
	}

	o := model.Order{UserID: userID, Status: model.OrderStatusPending, TotalPrice: total, Currency: "jpy", Items: items, CreatedAt: createdAt}
	require.NoError(t, gdb.Create(&o).Error)

	var txn model.Transaction
	if sessionID != "" {
		txn = model.Transaction{SessionID: sessionID, OrderID: o.ID, Status: model.TransactionStatusPending, Amount: total, Currency: "jpy", CreatedAt: createdAt}
		require.NoError(t, gdb.Create(&txn).Error)
	}
	return o, txn
}

// 既存の注文に後から決済を始める
func seedTransaction(t *testing.T, gdb *gorm.DB, o model.Order, sessionID string, createdAt time.Time) model.Transaction {
	t.Helper()
	txn := model.Transaction{SessionID: sessionID, OrderID: o.ID, Status: model.TransactionStatusPending, Amount: o.TotalPrice, Currency: o.Currency, CreatedAt: createdAt}
	require.NoError(t, gdb.Create(&txn).Error)
	return txn
}

func stockOf(t *testing.T, gdb *gorm.DB, variantID int64) int64 {
	t.Helper()
	var s model.Stock
	require.NoError(t, gdb.Where("variant_id = ?", variantID).First(&s).Error)
	return s.Quantity
}

func reload[T any](t *testing.T, gdb *gorm.DB, id any) T {
	t.Helper()
	var v T
	require.NoError(t, gdb.WithContext(context.Background()).First(&v, id).Error)
	return v
}
