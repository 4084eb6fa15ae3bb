package usecase_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs-labo46/ec-payments/internal/domain/model"
	"github.com/rs-labo46/ec-payments/internal/infra/logging"
	"github.com/rs-labo46/ec-payments/internal/infra/messaging"
	"github.com/rs-labo46/ec-payments/internal/payment"
	repo "github.com/rs-labo46/ec-payments/internal/repository"

	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/mock"
)

// =====================
// TxManager / TxRepos
// =====================

// WithinTxの中で渡すreposを固定する
type TxManagerMock struct {
	mock.Mock
	Repos repo.TxRepos
}

func (m *TxManagerMock) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	m.Called(ctx)
	return fn(m.Repos)
}

type TxReposMock struct {
	txns      repo.TransactionRepository
	orders    repo.OrderRepository
	items     repo.OrderItemRepository
	inventory repo.InventoryRepository
	events    repo.WebhookEventRepository
	audits    repo.AuditLogRepository
}

func (r *TxReposMock) Transactions() repo.TransactionRepository   { return r.txns }
func (r *TxReposMock) Orders() repo.OrderRepository               { return r.orders }
func (r *TxReposMock) OrderItems() repo.OrderItemRepository       { return r.items }
func (r *TxReposMock) Inventory() repo.InventoryRepository        { return r.inventory }
func (r *TxReposMock) WebhookEvents() repo.WebhookEventRepository { return r.events }
func (r *TxReposMock) AuditLogs() repo.AuditLogRepository         { return r.audits }

// =====================
// Repository mocks
// =====================

type TransactionRepoMock struct{ mock.Mock }

func (m *TransactionRepoMock) FindBySessionID(ctx context.Context, sessionID string) (model.Transaction, error) {
	args := m.Called(ctx, sessionID)
	t, _ := args.Get(0).(model.Transaction)
	return t, args.Error(1)
}

func (m *TransactionRepoMock) LockBySessionID(ctx context.Context, sessionID string) (model.Transaction, error) {
	args := m.Called(ctx, sessionID)
	t, _ := args.Get(0).(model.Transaction)
	return t, args.Error(1)
}

func (m *TransactionRepoMock) FindPendingByOrderID(ctx context.Context, orderID int64) (model.Transaction, bool, error) {
	args := m.Called(ctx, orderID)
	t, _ := args.Get(0).(model.Transaction)
	return t, args.Bool(1), args.Error(2)
}

func (m *TransactionRepoMock) Create(ctx context.Context, t model.Transaction) (int64, error) {
	args := m.Called(ctx, t)
	return args.Get(0).(int64), args.Error(1)
}

func (m *TransactionRepoMock) MarkCompleted(ctx context.Context, id int64, paymentIntentID string, at time.Time) error {
	args := m.Called(ctx, id, paymentIntentID, at)
	return args.Error(0)
}

func (m *TransactionRepoMock) MarkFailed(ctx context.Context, id int64, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *TransactionRepoMock) ListAdmin(ctx context.Context, f repo.TransactionListFilter) ([]model.Transaction, int64, error) {
	args := m.Called(ctx, f)
	ts, _ := args.Get(0).([]model.Transaction)
	return ts, args.Get(1).(int64), args.Error(2)
}

type OrderRepoMock struct{ mock.Mock }

func (m *OrderRepoMock) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) LockByID(ctx context.Context, orderID int64) (model.Order, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) TransitionStatus(ctx context.Context, orderID int64, from model.OrderStatus, to model.OrderStatus) error {
	args := m.Called(ctx, orderID, from, to)
	return args.Error(0)
}

func (m *OrderRepoMock) ListAbandoned(ctx context.Context, createdBefore time.Time, limit int) ([]model.Order, error) {
	args := m.Called(ctx, createdBefore, limit)
	orders, _ := args.Get(0).([]model.Order)
	return orders, args.Error(1)
}

type OrderItemRepoMock struct{ mock.Mock }

func (m *OrderItemRepoMock) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	args := m.Called(ctx, orderID)
	items, _ := args.Get(0).([]model.OrderItem)
	return items, args.Error(1)
}

type InventoryRepoMock struct{ mock.Mock }

func (m *InventoryRepoMock) FindStock(ctx context.Context, variantID int64) (model.Stock, error) {
	args := m.Called(ctx, variantID)
	s, _ := args.Get(0).(model.Stock)
	return s, args.Error(1)
}

func (m *InventoryRepoMock) LockStock(ctx context.Context, variantID int64) (model.Stock, error) {
	args := m.Called(ctx, variantID)
	s, _ := args.Get(0).(model.Stock)
	return s, args.Error(1)
}

func (m *InventoryRepoMock) DecreaseStockIfEnough(ctx context.Context, variantID int64, qty int64) (bool, error) {
	args := m.Called(ctx, variantID, qty)
	return args.Bool(0), args.Error(1)
}

func (m *InventoryRepoMock) SetStock(ctx context.Context, variantID int64, quantity int64) error {
	args := m.Called(ctx, variantID, quantity)
	return args.Error(0)
}

func (m *InventoryRepoMock) CreateMovement(ctx context.Context, mv model.StockMovement) error {
	args := m.Called(ctx, mv)
	return args.Error(0)
}

func (m *InventoryRepoMock) FindVariant(ctx context.Context, variantID int64) (model.Variant, error) {
	args := m.Called(ctx, variantID)
	v, _ := args.Get(0).(model.Variant)
	return v, args.Error(1)
}

type WebhookEventRepoMock struct{ mock.Mock }

func (m *WebhookEventRepoMock) Exists(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *WebhookEventRepoMock) Create(ctx context.Context, ev model.WebhookEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

type AuditRepoMock struct{ mock.Mock }

func (m *AuditRepoMock) Create(ctx context.Context, l model.AuditLog) error {
	args := m.Called(ctx, l)
	return args.Error(0)
}

func (m *AuditRepoMock) List(ctx context.Context, filter repo.AuditLogFilter) ([]model.AuditLog, error) {
	args := m.Called(ctx, filter)
	logs, _ := args.Get(0).([]model.AuditLog)
	return logs, args.Error(1)
}

// =====================
// Ports
// =====================

type CacheMock struct{ mock.Mock }

func (m *CacheMock) IsSettled(ctx context.Context, sessionID string) (bool, error) {
	args := m.Called(ctx, sessionID)
	return args.Bool(0), args.Error(1)
}

func (m *CacheMock) MarkSettled(ctx context.Context, sessionID string, orderID int64) error {
	args := m.Called(ctx, sessionID, orderID)
	return args.Error(0)
}

type NotifierMock struct{ mock.Mock }

func (m *NotifierMock) PublishOrderPaid(ctx context.Context, in messaging.OrderPaidPayload) error {
	args := m.Called(ctx, in)
	return args.Error(0)
}

type CheckoutCreatorMock struct{ mock.Mock }

func (m *CheckoutCreatorMock) CreateSession(ctx context.Context, in payment.CheckoutRequest) (payment.CreatedSession, error) {
	args := m.Called(ctx, in)
	s, _ := args.Get(0).(payment.CreatedSession)
	return s, args.Error(1)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// ログはバッファに捨てる
func testLogger(t *testing.T) *log.Logger {
	t.Helper()
	return logging.NewWithOutput("test", "debug", &bytes.Buffer{})
}
