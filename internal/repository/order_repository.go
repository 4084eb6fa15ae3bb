package repository

import (
	"context"
	"time"

	"github.com/rs-labo46/ec-payments/internal/domain/model"
)

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)

	//行ロック付き
	LockByID(ctx context.Context, orderID int64) (model.Order, error)

	//fromの状態のときだけtoに変える。違えばErrStateConflict
	TransitionStatus(ctx context.Context, orderID int64, from model.OrderStatus, to model.OrderStatus) error

	//createdBeforeより前に作られたPENDING注文。createdBefore以降に作られたPENDINGの決済がある注文は含めない。
	//ロックは取らないので呼び出し側でLockByIDして再確認する
	ListAbandoned(ctx context.Context, createdBefore time.Time, limit int) ([]model.Order, error)
}
