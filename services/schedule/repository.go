package schedule

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, schedule *PaymentSchedule) error
	GetByID(ctx context.Context, scheduleID snowflake.ID) (*PaymentSchedule, error)
	FindByCampaign(ctx context.Context, campaignID string) (*PaymentSchedule, error)
	Save(ctx context.Context, schedule *PaymentSchedule) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, schedule *PaymentSchedule) error {
	return r.db.WithContext(ctx).Create(schedule).Error
}

func (r *repository) GetByID(ctx context.Context, scheduleID snowflake.ID) (*PaymentSchedule, error) {
	var schedule PaymentSchedule
	if err := r.db.WithContext(ctx).First(&schedule, "schedule_id = ?", scheduleID).Error; err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *repository) FindByCampaign(ctx context.Context, campaignID string) (*PaymentSchedule, error) {
	var schedule PaymentSchedule
	err := r.db.WithContext(ctx).First(&schedule, "campaign_id = ?", campaignID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *repository) Save(ctx context.Context, schedule *PaymentSchedule) error {
	return r.db.WithContext(ctx).Save(schedule).Error
}
