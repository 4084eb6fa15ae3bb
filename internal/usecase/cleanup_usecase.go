package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs-labo46/ec-payments/internal/domain/model"
	repo "github.com/rs-labo46/ec-payments/internal/repository"

	"github.com/labstack/gommon/log"
)

const (
	actorCleanup        = "cleanup"
	abandonedReason     = "abandoned"
	defaultCleanupBatch = 100
)

// 支払われないまま放置された注文をキャンセルする
type CleanupUsecase struct {
	tx     repo.TransactionManager
	orders repo.OrderRepository
	clock  Clock
	logger *log.Logger
	batch  int
}

func NewCleanupUsecase(tx repo.TransactionManager, orders repo.OrderRepository, clock Clock, logger *log.Logger) *CleanupUsecase {
	if clock == nil {
		clock = SystemClock{}
	}
	return &CleanupUsecase{tx: tx, orders: orders, clock: clock, logger: logger, batch: defaultCleanupBatch}
}

type CleanupResult struct {
	Scanned  int `json:"scanned"`
	Canceled int `json:"canceled"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// olderThanより前に作られたPENDING注文をキャンセルし、PENDINGのtransactionをFAILEDにする。
// 決済を始めてからolderThanが経っていない注文は支払い途中なので残す。
// 1注文1Tx。途中の1件が失敗しても残りは続ける
func (u *CleanupUsecase) Run(ctx context.Context, olderThan time.Duration) (CleanupResult, error) {
	if olderThan <= 0 {
		return CleanupResult{}, fmt.Errorf("cleanup: olderThan must be positive")
	}

	cutoff := u.clock.Now().Add(-olderThan)
	orders, err := u.orders.ListAbandoned(ctx, cutoff, u.batch)
	if err != nil {
		return CleanupResult{}, dbError(err)
	}

	res := CleanupResult{Scanned: len(orders)}
	for _, o := range orders {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			return u.cancelOne(ctx, r, o.ID, cutoff)
		})
		switch {
		case errors.Is(err, errNoop):
			res.Skipped++
		case err != nil:
			res.Failed++
			u.logger.Errorj(log.JSON{"msg": "abandoned order cleanup failed", "order_id": o.ID, "error": err.Error()})
		default:
			res.Canceled++
		}
	}

	u.logger.Infoj(log.JSON{
		"msg": "abandoned order cleanup", "cutoff": cutoff.Format(time.RFC3339),
		"scanned": res.Scanned, "canceled": res.Canceled, "skipped": res.Skipped, "failed": res.Failed,
	})
	return res, nil
}

func (u *CleanupUsecase) cancelOne(ctx context.Context, r repo.TxRepos, orderID int64, cutoff time.Time) error {
	//確定処理と同じく transaction → order の順でロックする
	pending, found, err := r.Transactions().FindPendingByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	var txnID int64
	if found {
		t, err := r.Transactions().LockBySessionID(ctx, pending.SessionID)
		if err != nil {
			return err
		}
		if t.Status != model.TransactionStatusPending {
			//ちょうど確定された
			return errNoop
		}
		if !t.CreatedAt.Before(cutoff) {
			//checkout sessionがまだ生きている
			return errNoop
		}
		if err := r.Transactions().MarkFailed(ctx, t.ID, abandonedReason); err != nil {
			if errors.Is(err, repo.ErrStateConflict) {
				return errNoop
			}
			return err
		}
		txnID = t.ID
	}

	o, err := r.Orders().LockByID(ctx, orderID)
	if err != nil {
		return err
	}
	if o.Status != model.OrderStatusPending {
		return errNoop
	}
	if err := r.Orders().TransitionStatus(ctx, orderID, model.OrderStatusPending, model.OrderStatusCanceled); err != nil {
		if errors.Is(err, repo.ErrStateConflict) {
			return errNoop
		}
		return err
	}

	return r.AuditLogs().Create(ctx, model.AuditLog{
		Actor:        actorCleanup,
		Action:       model.AuditActionCancelAbandonedOrder,
		ResourceType: model.AuditResourceOrder,
		ResourceID:   orderID,
		BeforeJSON:   `{"status":"PENDING"}`,
		AfterJSON:    fmt.Sprintf(`{"status":"CANCELED","failed_transaction_id":%d}`, txnID),
		CreatedAt:    u.clock.Now(),
	})
}
