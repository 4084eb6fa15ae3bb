package usecase

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs-labo46/ec-payments/internal/domain/model"
	"github.com/rs-labo46/ec-payments/internal/payment"
	repo "github.com/rs-labo46/ec-payments/internal/repository"

	"github.com/labstack/gommon/log"
)

type CheckoutUsecase struct {
	orders  repo.OrderRepository
	items   repo.OrderItemRepository
	txns    repo.TransactionRepository
	creator CheckoutSessionCreator
	logger  *log.Logger
}

func NewCheckoutUsecase(
	orders repo.OrderRepository,
	items repo.OrderItemRepository,
	txns repo.TransactionRepository,
	creator CheckoutSessionCreator,
	logger *log.Logger,
) *CheckoutUsecase {
	return &CheckoutUsecase{orders: orders, items: items, txns: txns, creator: creator, logger: logger}
}

type CheckoutOutput struct {
	TransactionID int64  `json:"transaction_id"`
	SessionID     string `json:"session_id"`
	CheckoutURL   string `json:"checkout_url"`
	Status        string `json:"status"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
}

// 注文の決済を開始する。PENDINGのtransactionがすでにあればそれを返す
func (u *CheckoutUsecase) Start(ctx context.Context, userID int64, orderID int64) (CheckoutOutput, error) {
	if userID <= 0 {
		return CheckoutOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return CheckoutOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	o, err := u.orders.FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return CheckoutOutput{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return CheckoutOutput{}, dbError(err)
	}
	//他人の注文は存在しない扱い
	if o.UserID != userID {
		return CheckoutOutput{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if o.Status != model.OrderStatusPending {
		return CheckoutOutput{}, WrapHTTPError(http.StatusConflict, "order is not pending", ErrOrderNotSettleable)
	}

	existing, found, err := u.txns.FindPendingByOrderID(ctx, orderID)
	if err != nil {
		return CheckoutOutput{}, dbError(err)
	}
	if found {
		return toCheckoutOutput(existing), nil
	}

	items, err := u.items.ListByOrderID(ctx, orderID)
	if err != nil {
		return CheckoutOutput{}, dbError(err)
	}
	if len(items) == 0 {
		return CheckoutOutput{}, NewHTTPError(http.StatusBadRequest, "order has no items")
	}

	req := payment.CheckoutRequest{OrderID: o.ID, Currency: o.Currency}
	for _, it := range items {
		req.Items = append(req.Items, payment.CheckoutLineItem{
			Name:      it.NameSnapshot,
			UnitPrice: it.UnitPriceSnapshot,
			Quantity:  it.Quantity,
		})
	}

	//プロバイダ呼び出しはDBのTxの外で行う
	sess, err := u.creator.CreateSession(ctx, req)
	if err != nil {
		u.logger.Errorj(log.JSON{"msg": "create checkout session failed", "order_id": orderID, "error": err.Error()})
		return CheckoutOutput{}, WrapHTTPError(http.StatusBadGateway, "payment provider error", err)
	}

	t := model.Transaction{
		SessionID:   sess.SessionID,
		OrderID:     o.ID,
		Status:      model.TransactionStatusPending,
		Amount:      o.TotalPrice,
		Currency:    o.Currency,
		CheckoutURL: sess.URL,
	}
	id, err := u.txns.Create(ctx, t)
	if errors.Is(err, repo.ErrDuplicate) {
		//同じidempotency keyで同じsessionが返ってきた
		got, ferr := u.txns.FindBySessionID(ctx, sess.SessionID)
		if ferr != nil {
			return CheckoutOutput{}, dbError(ferr)
		}
		return toCheckoutOutput(got), nil
	}
	if err != nil {
		return CheckoutOutput{}, dbError(err)
	}
	t.ID = id

	u.logger.Infoj(log.JSON{"msg": "checkout started", "order_id": orderID, "session_id": sess.SessionID})
	return toCheckoutOutput(t), nil
}

func toCheckoutOutput(t model.Transaction) CheckoutOutput {
	return CheckoutOutput{
		TransactionID: t.ID,
		SessionID:     t.SessionID,
		CheckoutURL:   t.CheckoutURL,
		Status:        string(t.Status),
		Amount:        t.Amount,
		Currency:      t.Currency,
	}
}
