package repository

import (
	"context"

	"github.com/rs-labo46/ec-payments/internal/domain/model"
)

// 処理済みWebhookイベントの記録
type WebhookEventRepository interface {
	Exists(ctx context.Context, eventID string) (bool, error)

	//同じイベントIDがあればErrDuplicate
	Create(ctx context.Context, ev model.WebhookEvent) error
}
