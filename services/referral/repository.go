package referral

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	WithTrx(tx *gorm.DB) Repository
	Create(ctx context.Context, referral *Referral) error
	GetByID(ctx context.Context, referralID snowflake.ID) (*Referral, error)
	FindByReferred(ctx context.Context, referredID string) (*Referral, error)
	FindByCode(ctx context.Context, code string) (*Referral, error)
	ListByReferrer(ctx context.Context, referrerID string) ([]Referral, error)
	AddBonus(ctx context.Context, referralID snowflake.ID, earned, paid decimal.Decimal) error
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

func (r *repository) Create(ctx context.Context, referral *Referral) error {
	return r.db.WithContext(ctx).Create(referral).Error
}

func (r *repository) GetByID(ctx context.Context, referralID snowflake.ID) (*Referral, error) {
	var referral Referral
	if err := r.db.WithContext(ctx).First(&referral, "referral_id = ?", referralID).Error; err != nil {
		return nil, err
	}
	return &referral, nil
}

func (r *repository) FindByReferred(ctx context.Context, referredID string) (*Referral, error) {
	var referral Referral
	err := r.db.WithContext(ctx).First(&referral, "referred_id = ?", referredID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &referral, nil
}

func (r *repository) FindByCode(ctx context.Context, code string) (*Referral, error) {
	var referral Referral
	err := r.db.WithContext(ctx).First(&referral, "referral_code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &referral, nil
}

func (r *repository) ListByReferrer(ctx context.Context, referrerID string) ([]Referral, error) {
	var referrals []Referral
	err := r.db.WithContext(ctx).
		Where("referrer_id = ?", referrerID).
		Order("created_at ASC").
		Find(&referrals).Error
	return referrals, err
}

func (r *repository) AddBonus(ctx context.Context, referralID snowflake.ID, earned, paid decimal.Decimal) error {
	updates := map[string]any{}
	if !earned.IsZero() {
		updates["bonus_earned"] = gorm.Expr("bonus_earned + ?", earned)
	}
	if !paid.IsZero() {
		updates["bonus_paid"] = gorm.Expr("bonus_paid + ?", paid)
	}
	if len(updates) == 0 {
		return nil
	}

	res := r.db.WithContext(ctx).
		Model(&Referral{}).
		Where("referral_id = ?", referralID).
		UpdateColumns(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
