package payment

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository describes database operations available for payments.
type Repository interface {
	WithTrx(tx *gorm.DB) Repository
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, paymentID snowflake.ID) (*Payment, error)
	FindByCorrelation(ctx context.Context, correlationID string) (*Payment, error)
	Save(ctx context.Context, p *Payment) error
	HasApplication(ctx context.Context, paymentID snowflake.ID) (bool, error)
	CreateApplication(ctx context.Context, app *Application) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository returns a gorm backed Repository implementation.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTrx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &gormRepository{db: tx}
}

func (r *gormRepository) Create(ctx context.Context, p *Payment) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *gormRepository) GetByID(ctx context.Context, paymentID snowflake.ID) (*Payment, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	var p Payment
	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindByCorrelation resolves a payment by either correlation id the provider
// may echo back. Returns nil without error when nothing matches.
func (r *gormRepository) FindByCorrelation(ctx context.Context, correlationID string) (*Payment, error) {
	if correlationID == "" {
		return nil, nil
	}

	var p Payment
	err := r.db.WithContext(ctx).
		Where("external_transaction_id = ? OR provider_reference = ?", correlationID, correlationID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) Save(ctx context.Context, p *Payment) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *gormRepository) HasApplication(ctx context.Context, paymentID snowflake.ID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&Application{}).
		Where("payment_id = ?", paymentID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *gormRepository) CreateApplication(ctx context.Context, app *Application) error {
	return r.db.WithContext(ctx).Create(app).Error
}
