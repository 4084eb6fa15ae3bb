package usecase

import (
	"context"
	"time"

	"github.com/rs-labo46/ec-payments/internal/infra/messaging"
	"github.com/rs-labo46/ec-payments/internal/payment"
)

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// 確定済みsessionのキャッシュ（Redis）
type SettlementCache interface {
	IsSettled(ctx context.Context, sessionID string) (bool, error)
	MarkSettled(ctx context.Context, sessionID string, orderID int64) error
}

// 決済確定の通知先（Kafka）
type OrderPaidNotifier interface {
	PublishOrderPaid(ctx context.Context, in messaging.OrderPaidPayload) error
}

// プロバイダのcheckout session作成
type CheckoutSessionCreator interface {
	CreateSession(ctx context.Context, in payment.CheckoutRequest) (payment.CreatedSession, error)
}

// Redisを使わないとき
type NoopSettlementCache struct{}

func (NoopSettlementCache) IsSettled(context.Context, string) (bool, error)  { return false, nil }
func (NoopSettlementCache) MarkSettled(context.Context, string, int64) error { return nil }

// Kafkaを使わないとき
type NoopNotifier struct{}

func (NoopNotifier) PublishOrderPaid(context.Context, messaging.OrderPaidPayload) error { return nil }
