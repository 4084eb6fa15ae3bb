package repository

import (
	"context"
	"time"

	"github.com/rs-labo46/ec-payments/internal/domain/model"
	repo "github.com/rs-labo46/ec-payments/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TransactionGormRepository struct {
	db *gorm.DB
}

func NewTransactionGormRepository(db *gorm.DB) *TransactionGormRepository {
	return &TransactionGormRepository{db: db}
}

func (r *TransactionGormRepository) FindBySessionID(ctx context.Context, sessionID string) (model.Transaction, error) {
	var t model.Transaction
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&t).Error
	if isNotFound(err) {
		return model.Transaction{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Transaction{}, err
	}
	return t, nil
}

// SELECT ... FOR UPDATE。同じsessionの確定処理はここで直列になる
func (r *TransactionGormRepository) LockBySessionID(ctx context.Context, sessionID string) (model.Transaction, error) {
	var t model.Transaction
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("session_id = ?", sessionID).
		First(&t).Error
	if isNotFound(err) {
		return model.Transaction{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Transaction{}, err
	}
	return t, nil
}

func (r *TransactionGormRepository) FindPendingByOrderID(ctx context.Context, orderID int64) (model.Transaction, bool, error) {
	var t model.Transaction
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, model.TransactionStatusPending).
		Order("id desc").
		First(&t).Error
	if isNotFound(err) {
		return model.Transaction{}, false, nil
	}
	if err != nil {
		return model.Transaction{}, false, err
	}
	return t, true, nil
}

func (r *TransactionGormRepository) Create(ctx context.Context, t model.Transaction) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&t).Error; err != nil {
		if isUniqueViolation(err) {
			return 0, repo.ErrDuplicate
		}
		return 0, err
	}
	return t.ID, nil
}

func (r *TransactionGormRepository) MarkCompleted(ctx context.Context, id int64, paymentIntentID string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("id = ? AND status = ?", id, model.TransactionStatusPending).
		Updates(map[string]interface{}{
			"status":            model.TransactionStatusCompleted,
			"payment_intent_id": paymentIntentID,
			"completed_at":      at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrStateConflict
	}
	return nil
}

func (r *TransactionGormRepository) MarkFailed(ctx context.Context, id int64, reason string) error {
	res := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("id = ? AND status = ?", id, model.TransactionStatusPending).
		Updates(map[string]interface{}{
			"status":         model.TransactionStatusFailed,
			"failure_reason": reason,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrStateConflict
	}
	return nil
}

func (r *TransactionGormRepository) ListAdmin(ctx context.Context, f repo.TransactionListFilter) ([]model.Transaction, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}

	q := r.db.WithContext(ctx).Model(&model.Transaction{})

	//status 絞り込み
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return []model.Transaction{}, 0, err
	}

	var items []model.Transaction
	offset := (f.Page - 1) * f.Limit
	if err := q.Order("id desc").Limit(f.Limit).Offset(offset).Find(&items).Error; err != nil {
		return []model.Transaction{}, 0, err
	}

	return items, total, nil
}
