package webhook

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	WithTrx(tx *gorm.DB) Repository
	Create(ctx context.Context, event *WebhookEvent) error
	FindByProviderEvent(ctx context.Context, provider, providerEventID string) (*WebhookEvent, error)
	Save(ctx context.Context, event *WebhookEvent) error
	ListRetrying(ctx context.Context, notBefore time.Time, maxRetries, limit int) ([]WebhookEvent, error)
	AbandonStale(ctx context.Context, before time.Time, maxRetries int) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTrx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, event *WebhookEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) FindByProviderEvent(ctx context.Context, provider, providerEventID string) (*WebhookEvent, error) {
	var event WebhookEvent
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_event_id = ?", provider, providerEventID).
		First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repository) Save(ctx context.Context, event *WebhookEvent) error {
	return r.db.WithContext(ctx).Save(event).Error
}

func (r *repository) ListRetrying(ctx context.Context, notBefore time.Time, maxRetries, limit int) ([]WebhookEvent, error) {
	var events []WebhookEvent
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at >= ? AND retry_count < ?", EventRetrying, notBefore, maxRetries).
		Order("created_at ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *repository) AbandonStale(ctx context.Context, before time.Time, maxRetries int) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&WebhookEvent{}).
		Where("status = ? AND (created_at < ? OR retry_count >= ?)", EventRetrying, before, maxRetries).
		Update("status", EventAbandoned)
	return res.RowsAffected, res.Error
}
