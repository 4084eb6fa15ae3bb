package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs-labo46/ec-payments/internal/domain/model"
	repo "github.com/rs-labo46/ec-payments/internal/repository"
)

type AdminUsecase struct {
	tx        repo.TransactionManager
	txns      repo.TransactionRepository
	auditRepo repo.AuditLogRepository
	clock     Clock
}

func NewAdminUsecase(tx repo.TransactionManager, txns repo.TransactionRepository, auditRepo repo.AuditLogRepository, clock Clock) *AdminUsecase {
	if clock == nil {
		clock = SystemClock{}
	}
	return &AdminUsecase{tx: tx, txns: txns, auditRepo: auditRepo, clock: clock}
}

type TransactionListOutput struct {
	Items []model.Transaction `json:"items"`
	Total int64               `json:"total"`
	Page  int                 `json:"page"`
	Limit int                 `json:"limit"`
}

type TransactionDetailOutput struct {
	Transaction model.Transaction `json:"transaction"`
	Order       model.Order       `json:"order"`
	Items       []model.OrderItem `json:"items"`
}

type AdminSetStockInput struct {
	Quantity int64
	Reason   string
}

type StockOutput struct {
	VariantID int64 `json:"variant_id"`
	Quantity  int64 `json:"quantity"`
}

// 決済一覧
func (u *AdminUsecase) ListTransactions(ctx context.Context, f repo.TransactionListFilter) (TransactionListOutput, error) {
	if f.Page < 1 {
		return TransactionListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if f.Limit < 1 || f.Limit > 100 {
		return TransactionListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	f.Status = strings.ToUpper(strings.TrimSpace(f.Status))
	switch model.TransactionStatus(f.Status) {
	case "", model.TransactionStatusPending, model.TransactionStatusCompleted, model.TransactionStatusFailed:
	default:
		return TransactionListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	items, total, err := u.txns.ListAdmin(ctx, f)
	if err != nil {
		return TransactionListOutput{}, dbError(err)
	}
	return TransactionListOutput{Items: items, Total: total, Page: f.Page, Limit: f.Limit}, nil
}

// session_idで決済と注文をまとめて取得
func (u *AdminUsecase) GetTransaction(ctx context.Context, sessionID string) (TransactionDetailOutput, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return TransactionDetailOutput{}, NewHTTPError(http.StatusBadRequest, "invalid session id")
	}

	var out TransactionDetailOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		t, err := r.Transactions().FindBySessionID(ctx, sessionID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return dbError(err)
		}
		o, err := r.Orders().FindByID(ctx, t.OrderID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return dbError(err)
		}
		items, err := r.OrderItems().ListByOrderID(ctx, t.OrderID)
		if err != nil {
			return dbError(err)
		}
		out = TransactionDetailOutput{Transaction: t, Order: o, Items: items}
		return nil
	})
	if err != nil {
		return TransactionDetailOutput{}, err
	}
	return out, nil
}

func (u *AdminUsecase) ListAuditLogs(ctx context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	if f.Limit < 0 || f.Limit > 200 {
		return []model.AuditLog{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if f.Offset < 0 {
		return []model.AuditLog{}, NewHTTPError(http.StatusBadRequest, "invalid offset")
	}
	if f.ResourceType != nil {
		switch *f.ResourceType {
		case model.AuditResourceTransaction, model.AuditResourceOrder, model.AuditResourceVariant:
		default:
			return []model.AuditLog{}, NewHTTPError(http.StatusBadRequest, "invalid resource_type")
		}
	}
	if f.ResourceID != nil && *f.ResourceID <= 0 {
		return []model.AuditLog{}, NewHTTPError(http.StatusBadRequest, "invalid resource_id")
	}
	if f.CreatedFrom != nil && f.CreatedTo != nil && f.CreatedFrom.After(*f.CreatedTo) {
		return []model.AuditLog{}, NewHTTPError(http.StatusBadRequest, "invalid period")
	}
	logs, err := u.auditRepo.List(ctx, f)
	if err != nil {
		return []model.AuditLog{}, dbError(err)
	}
	return logs, nil
}

// 在庫の現在値。在庫行が無いバリアントは0
func (u *AdminUsecase) GetStock(ctx context.Context, variantID int64) (StockOutput, error) {
	if variantID <= 0 {
		return StockOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out StockOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := r.Inventory().FindVariant(ctx, variantID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusNotFound, "not found")
			}
			return dbError(err)
		}
		st, err := r.Inventory().FindStock(ctx, variantID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return dbError(err)
		}
		out = StockOutput{VariantID: variantID, Quantity: st.Quantity}
		return nil
	})
	if err != nil {
		return StockOutput{}, err
	}
	return out, nil
}

// 在庫を指定値にする。差分を履歴に、変更前後を監査ログに残す
func (u *AdminUsecase) SetStock(ctx context.Context, actorAdminUserID int64, variantID int64, in AdminSetStockInput) (StockOutput, error) {
	if actorAdminUserID <= 0 {
		return StockOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if variantID <= 0 {
		return StockOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if in.Quantity < 0 {
		return StockOutput{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return StockOutput{}, NewHTTPError(http.StatusBadRequest, "reason is required")
	}
	if len(reason) > 255 {
		return StockOutput{}, NewHTTPError(http.StatusBadRequest, "reason is too long")
	}

	actor := fmt.Sprintf("admin:%d", actorAdminUserID)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := r.Inventory().FindVariant(ctx, variantID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusNotFound, "not found")
			}
			return dbError(err)
		}

		//確定処理と同じ行ロックを取る
		var before int64
		st, err := r.Inventory().LockStock(ctx, variantID)
		switch {
		case err == nil:
			before = st.Quantity
		case errors.Is(err, repo.ErrNotFound):
			before = 0
		default:
			return dbError(err)
		}

		if before == in.Quantity {
			return nil
		}
		if err := r.Inventory().SetStock(ctx, variantID, in.Quantity); err != nil {
			return dbError(err)
		}
		if err := r.Inventory().CreateMovement(ctx, model.StockMovement{
			VariantID: variantID,
			Delta:     in.Quantity - before,
			Reason:    model.StockMovementAdjustment,
			Note:      reason,
			Actor:     actor,
		}); err != nil {
			return dbError(err)
		}

		//監査ログ（UPDATE_STOCK）
		after, _ := json.Marshal(map[string]any{"quantity": in.Quantity, "reason": reason})
		return asDBError(r.AuditLogs().Create(ctx, model.AuditLog{
			Actor:        actor,
			Action:       model.AuditActionUpdateStock,
			ResourceType: model.AuditResourceVariant,
			ResourceID:   variantID,
			BeforeJSON:   fmt.Sprintf(`{"quantity":%d}`, before),
			AfterJSON:    string(after),
			CreatedAt:    u.clock.Now(),
		}))
	})
	if err != nil {
		return StockOutput{}, err
	}
	return StockOutput{VariantID: variantID, Quantity: in.Quantity}, nil
}
