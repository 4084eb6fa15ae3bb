package repository

import (
	"context"

	"github.com/rs-labo46/ec-payments/internal/domain/model"
	repo "github.com/rs-labo46/ec-payments/internal/repository"

	"gorm.io/gorm"
)

type WebhookEventGormRepository struct {
	db *gorm.DB
}

func NewWebhookEventGormRepository(db *gorm.DB) *WebhookEventGormRepository {
	return &WebhookEventGormRepository{db: db}
}

func (r *WebhookEventGormRepository) Exists(ctx context.Context, eventID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.WebhookEvent{}).
		Where("event_id = ?", eventID).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *WebhookEventGormRepository) Create(ctx context.Context, ev model.WebhookEvent) error {
	if err := r.db.WithContext(ctx).Create(&ev).Error; err != nil {
		if isUniqueViolation(err) {
			return repo.ErrDuplicate
		}
		return err
	}
	return nil
}
