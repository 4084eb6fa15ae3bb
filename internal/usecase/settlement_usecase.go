package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/rs-labo46/ec-payments/internal/domain/model"
	"github.com/rs-labo46/ec-payments/internal/infra/messaging"
	"github.com/rs-labo46/ec-payments/internal/payment"
	repo "github.com/rs-labo46/ec-payments/internal/repository"

	"github.com/labstack/gommon/log"
	"gorm.io/datatypes"
)

const actorWebhook = "stripe-webhook"

// Webhookイベントを受けて決済を確定する。
// 確定（transaction→COMPLETED、注文→PROCESSING、在庫減算）は1つのTxで全部か何もしないか。
type SettlementUsecase struct {
	tx       repo.TransactionManager
	txns     repo.TransactionRepository
	events   repo.WebhookEventRepository
	cache    SettlementCache
	notifier OrderPaidNotifier
	clock    Clock
	logger   *log.Logger
}

func NewSettlementUsecase(
	tx repo.TransactionManager,
	txns repo.TransactionRepository,
	events repo.WebhookEventRepository,
	cache SettlementCache,
	notifier OrderPaidNotifier,
	clock Clock,
	logger *log.Logger,
) *SettlementUsecase {
	if cache == nil {
		cache = NoopSettlementCache{}
	}
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &SettlementUsecase{
		tx:       tx,
		txns:     txns,
		events:   events,
		cache:    cache,
		notifier: notifier,
		clock:    clock,
		logger:   logger,
	}
}

// Tx確定後に通知するための情報
type settledOrder struct {
	order model.Order
	txn   model.Transaction
	items []model.OrderItem
}

type lineNeed struct {
	variantID int64
	qty       int64
}

func (u *SettlementUsecase) HandleEvent(ctx context.Context, ev payment.Event) error {
	switch e := ev.(type) {
	case payment.CheckoutCompleted:
		if !e.Session.IsPaid() {
			//非同期決済はasync_payment_succeededで確定する
			u.logger.Infoj(log.JSON{"msg": "checkout completed but unpaid", "session_id": e.Session.SessionID, "payment_status": e.Session.PaymentStatus})
			return nil
		}
		return u.settle(ctx, e.Meta, e.Session)
	case payment.CheckoutAsyncSucceeded:
		return u.settle(ctx, e.Meta, e.Session)
	case payment.CheckoutFailed:
		seen, err := u.seen(ctx, e.Meta)
		if err != nil || seen {
			return err
		}
		return u.fail(ctx, e.Meta, e.Session, e.Reason)
	case payment.Unhandled:
		u.logger.Debugj(log.JSON{"msg": "unhandled webhook event", "event_id": e.ID, "type": e.Type})
		return nil
	default:
		return NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("unsupported event %T", ev))
	}
}

// 同じイベントIDの再送か
func (u *SettlementUsecase) seen(ctx context.Context, meta payment.Meta) (bool, error) {
	seen, err := u.events.Exists(ctx, meta.ID)
	if err != nil {
		return false, dbError(err)
	}
	if seen {
		u.logger.Infoj(log.JSON{"msg": "duplicate webhook event", "event_id": meta.ID, "type": meta.Type})
	}
	return seen, nil
}

// 冪等ガード：確定済み・レコード無しは何もしない
func (u *SettlementUsecase) settle(ctx context.Context, meta payment.Meta, s payment.CheckoutSession) error {
	sid := s.SessionID

	//キャッシュに当たればDBには行かない
	settled, err := u.cache.IsSettled(ctx, sid)
	if err != nil {
		//キャッシュが落ちていてもDBで判定できる
		u.logger.Warnj(log.JSON{"msg": "settlement cache lookup failed", "session_id": sid, "error": err.Error()})
	}
	if settled {
		u.logger.Infoj(log.JSON{"msg": "session already settled (cache)", "session_id": sid})
		return nil
	}

	dup, err := u.seen(ctx, meta)
	if err != nil || dup {
		return err
	}

	t, err := u.txns.FindBySessionID(ctx, sid)
	if errors.Is(err, repo.ErrNotFound) {
		u.logger.Warnj(log.JSON{"msg": "transaction not found for session", "session_id": sid, "event_id": meta.ID})
		return nil
	}
	if err != nil {
		return dbError(err)
	}
	switch t.Status {
	case model.TransactionStatusCompleted:
		u.logger.Infoj(log.JSON{"msg": "transaction already completed", "session_id": sid})
		return nil
	case model.TransactionStatusFailed:
		u.logger.Warnj(log.JSON{"msg": "payment received for failed transaction", "session_id": sid, "transaction_id": t.ID, "failure_reason": t.FailureReason})
		return nil
	}

	var out settledOrder
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		res, err := u.applySettlement(ctx, r, meta, s)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	if errors.Is(err, errNoop) {
		u.logger.Infoj(log.JSON{"msg": "settlement skipped", "session_id": sid})
		return nil
	}
	if err != nil {
		u.logger.Warnj(log.JSON{"msg": "settlement aborted", "session_id": sid, "error": err.Error()})
		return asDBError(err)
	}

	u.logger.Infoj(log.JSON{"msg": "settlement applied", "session_id": sid, "order_id": out.order.ID, "transaction_id": out.txn.ID})
	u.afterSettled(ctx, out, s)
	return nil
}

// 確定処理本体。どこで失敗してもerrorを返せばTxごと戻る
func (u *SettlementUsecase) applySettlement(ctx context.Context, r repo.TxRepos, meta payment.Meta, s payment.CheckoutSession) (settledOrder, error) {
	//transaction行をロックしてから状態を見直す（同時配信はここで直列になる）
	t, err := r.Transactions().LockBySessionID(ctx, s.SessionID)
	if errors.Is(err, repo.ErrNotFound) {
		return settledOrder{}, errNoop
	}
	if err != nil {
		return settledOrder{}, dbError(err)
	}
	if t.Status != model.TransactionStatusPending {
		return settledOrder{}, errNoop
	}

	now := u.clock.Now()

	//1) transaction → COMPLETED
	if err := r.Transactions().MarkCompleted(ctx, t.ID, s.PaymentIntentID, now); err != nil {
		if errors.Is(err, repo.ErrStateConflict) {
			return settledOrder{}, errNoop
		}
		return settledOrder{}, dbError(err)
	}
	t.Status = model.TransactionStatusCompleted
	t.PaymentIntentID = s.PaymentIntentID
	t.CompletedAt = &now

	//2) 注文 → PROCESSING
	o, err := r.Orders().LockByID(ctx, t.OrderID)
	if errors.Is(err, repo.ErrNotFound) {
		return settledOrder{}, WrapHTTPError(http.StatusConflict, "order not settleable", fmt.Errorf("%w: order %d missing", ErrOrderNotSettleable, t.OrderID))
	}
	if err != nil {
		return settledOrder{}, dbError(err)
	}
	if o.Status != model.OrderStatusPending {
		return settledOrder{}, WrapHTTPError(http.StatusConflict, "order not settleable", fmt.Errorf("%w: order %d is %s", ErrOrderNotSettleable, o.ID, o.Status))
	}
	if err := r.Orders().TransitionStatus(ctx, o.ID, model.OrderStatusPending, model.OrderStatusProcessing); err != nil {
		if errors.Is(err, repo.ErrStateConflict) {
			return settledOrder{}, WrapHTTPError(http.StatusConflict, "order not settleable", ErrOrderNotSettleable)
		}
		return settledOrder{}, dbError(err)
	}
	o.Status = model.OrderStatusProcessing

	//3) 在庫をロックして確認→減算
	items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
	if err != nil {
		return settledOrder{}, dbError(err)
	}
	lines, err := aggregateLines(items)
	if err != nil {
		return settledOrder{}, WrapHTTPError(http.StatusConflict, "order not settleable", fmt.Errorf("%w: order %d: %v", ErrOrderNotSettleable, o.ID, err))
	}
	for _, n := range lines {
		st, err := r.Inventory().LockStock(ctx, n.variantID)
		if errors.Is(err, repo.ErrNotFound) {
			return settledOrder{}, insufficientStock(n, 0)
		}
		if err != nil {
			return settledOrder{}, dbError(err)
		}
		if st.Quantity < n.qty {
			return settledOrder{}, insufficientStock(n, st.Quantity)
		}

		ok, err := r.Inventory().DecreaseStockIfEnough(ctx, n.variantID, n.qty)
		if err != nil {
			return settledOrder{}, dbError(err)
		}
		if !ok {
			return settledOrder{}, insufficientStock(n, st.Quantity)
		}

		orderID := o.ID
		if err := r.Inventory().CreateMovement(ctx, model.StockMovement{
			VariantID: n.variantID,
			OrderID:   &orderID,
			Delta:     -n.qty,
			Reason:    model.StockMovementSettlement,
			Note:      s.SessionID,
			Actor:     actorWebhook,
			CreatedAt: now,
		}); err != nil {
			return settledOrder{}, dbError(err)
		}
	}

	//4) 監査ログ
	if err := r.AuditLogs().Create(ctx, model.AuditLog{
		Actor:        actorWebhook,
		Action:       model.AuditActionSettlePayment,
		ResourceType: model.AuditResourceTransaction,
		ResourceID:   t.ID,
		BeforeJSON:   `{"status":"PENDING","order_status":"PENDING"}`,
		AfterJSON:    fmt.Sprintf(`{"status":"COMPLETED","order_status":"PROCESSING","payment_intent_id":%q}`, s.PaymentIntentID),
		CreatedAt:    now,
	}); err != nil {
		return settledOrder{}, dbError(err)
	}

	//5) イベントを処理済みにする
	if err := recordEvent(ctx, r, meta, s.SessionID, now); err != nil {
		return settledOrder{}, err
	}

	return settledOrder{order: o, txn: t, items: items}, nil
}

// 期限切れ・非同期決済の失敗。在庫は確定時にしか減らしていないので戻さない
func (u *SettlementUsecase) fail(ctx context.Context, meta payment.Meta, s payment.CheckoutSession, reason string) error {
	sid := s.SessionID

	t, err := u.txns.FindBySessionID(ctx, sid)
	if errors.Is(err, repo.ErrNotFound) {
		u.logger.Warnj(log.JSON{"msg": "transaction not found for session", "session_id": sid, "event_id": meta.ID})
		return nil
	}
	if err != nil {
		return dbError(err)
	}
	if t.IsTerminal() {
		u.logger.Infoj(log.JSON{"msg": "transaction already terminal", "session_id": sid, "status": t.Status})
		return nil
	}

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		t, err := r.Transactions().LockBySessionID(ctx, sid)
		if errors.Is(err, repo.ErrNotFound) {
			return errNoop
		}
		if err != nil {
			return dbError(err)
		}
		if t.Status != model.TransactionStatusPending {
			return errNoop
		}

		if err := r.Transactions().MarkFailed(ctx, t.ID, reason); err != nil {
			if errors.Is(err, repo.ErrStateConflict) {
				return errNoop
			}
			return dbError(err)
		}

		o, err := r.Orders().LockByID(ctx, t.OrderID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return dbError(err)
		}
		orderStatus := o.Status
		if err == nil && o.Status == model.OrderStatusPending {
			if err := r.Orders().TransitionStatus(ctx, o.ID, model.OrderStatusPending, model.OrderStatusCanceled); err != nil {
				return dbError(err)
			}
			orderStatus = model.OrderStatusCanceled
		}

		now := u.clock.Now()
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			Actor:        actorWebhook,
			Action:       model.AuditActionFailPayment,
			ResourceType: model.AuditResourceTransaction,
			ResourceID:   t.ID,
			BeforeJSON:   `{"status":"PENDING"}`,
			AfterJSON:    fmt.Sprintf(`{"status":"FAILED","reason":%q,"order_status":%q}`, reason, orderStatus),
			CreatedAt:    now,
		}); err != nil {
			return dbError(err)
		}

		return recordEvent(ctx, r, meta, sid, now)
	})
	if errors.Is(err, errNoop) {
		return nil
	}
	if err != nil {
		return asDBError(err)
	}

	u.logger.Infoj(log.JSON{"msg": "transaction failed", "session_id": sid, "reason": reason})
	return nil
}

// Tx確定後の処理。失敗してもWebhookの応答は変えない
func (u *SettlementUsecase) afterSettled(ctx context.Context, out settledOrder, s payment.CheckoutSession) {
	if err := u.cache.MarkSettled(ctx, out.txn.SessionID, out.order.ID); err != nil {
		u.logger.Warnj(log.JSON{"msg": "settlement cache write failed", "session_id": out.txn.SessionID, "error": err.Error()})
	}

	amount := out.txn.Amount
	currency := out.txn.Currency
	if s.AmountTotal > 0 {
		amount = s.AmountTotal
	}
	if s.Currency != "" {
		currency = s.Currency
	}

	items := make([]messaging.OrderPaidItem, 0, len(out.items))
	for _, it := range out.items {
		items = append(items, messaging.OrderPaidItem{VariantID: it.VariantID, Quantity: it.Quantity})
	}

	if err := u.notifier.PublishOrderPaid(ctx, messaging.OrderPaidPayload{
		OrderID:         out.order.ID,
		UserID:          out.order.UserID,
		SessionID:       out.txn.SessionID,
		PaymentIntentID: out.txn.PaymentIntentID,
		AmountMinor:     amount,
		Currency:        currency,
		Items:           items,
	}); err != nil {
		u.logger.Errorj(log.JSON{"msg": "order.paid publish failed", "order_id": out.order.ID, "error": err.Error()})
	}
}

// 同じイベントIDが先に記録されていたら、別のリクエストが処理済み
func recordEvent(ctx context.Context, r repo.TxRepos, meta payment.Meta, sessionID string, now time.Time) error {
	payload := datatypes.JSON(meta.Raw)
	if len(payload) == 0 {
		payload = datatypes.JSON(`{}`)
	}
	err := r.WebhookEvents().Create(ctx, model.WebhookEvent{
		EventID:     meta.ID,
		EventType:   meta.Type,
		SessionID:   sessionID,
		Payload:     payload,
		ProcessedAt: now,
	})
	if errors.Is(err, repo.ErrDuplicate) {
		return errNoop
	}
	if err != nil {
		return dbError(err)
	}
	return nil
}

// 同じvariantが複数行にあっても合算し、variant ID順にする（ロック順を揃えてデッドロックを避ける）。
// 数量が1未満の行があれば在庫を増やしてしまうのでエラー
func aggregateLines(items []model.OrderItem) ([]lineNeed, error) {
	byVariant := make(map[int64]int64, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("item %d has quantity %d", it.ID, it.Quantity)
		}
		byVariant[it.VariantID] += it.Quantity
	}
	out := make([]lineNeed, 0, len(byVariant))
	for id, q := range byVariant {
		out = append(out, lineNeed{variantID: id, qty: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].variantID < out[j].variantID })
	return out, nil
}

func insufficientStock(n lineNeed, available int64) error {
	return WrapHTTPError(http.StatusConflict, "insufficient stock",
		fmt.Errorf("%w: variant %d requested %d available %d", ErrInsufficientStock, n.variantID, n.qty, available))
}
