package repository

import (
	"context"
	"time"

	"github.com/rs-labo46/ec-payments/internal/domain/model"
)

type TransactionListFilter struct {
	Page   int
	Limit  int
	Status string
}

type TransactionRepository interface {
	FindBySessionID(ctx context.Context, sessionID string) (model.Transaction, error)

	//行ロック（SELECT ... FOR UPDATE）付きで取得。Tx内でだけ使う。
	LockBySessionID(ctx context.Context, sessionID string) (model.Transaction, error)

	FindPendingByOrderID(ctx context.Context, orderID int64) (model.Transaction, bool, error)

	//session_idが重複したらErrDuplicate
	Create(ctx context.Context, t model.Transaction) (int64, error)

	//PENDINGのときだけCOMPLETEDにする。PENDINGでなければErrStateConflict
	MarkCompleted(ctx context.Context, id int64, paymentIntentID string, at time.Time) error

	//PENDINGのときだけFAILEDにする。PENDINGでなければErrStateConflict
	MarkFailed(ctx context.Context, id int64, reason string) error

	ListAdmin(ctx context.Context, f TransactionListFilter) ([]model.Transaction, int64, error)
}
