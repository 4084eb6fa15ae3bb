package repository

import (
	"context"

	"github.com/rs-labo46/ec-payments/internal/domain/model"
)

type OrderItemRepository interface {
	ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error)
}
