package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository describes database operations available for ledger entries.
type Repository interface {
	WithTrx(tx *gorm.DB) Repository
	EnsureScope(ctx context.Context, entry *Entry) (*Entry, error)
	GetByID(ctx context.Context, earningID snowflake.ID) (*Entry, error)
	FindScope(ctx context.Context, creatorID, campaignID, applicationID string) (*Entry, error)
	ListByCreator(ctx context.Context, creatorID string) ([]Entry, error)
	ListByCampaign(ctx context.Context, campaignID string) ([]Entry, error)
	ListByCreatorCampaign(ctx context.Context, creatorID, campaignID string) ([]Entry, error)
	AddToBucket(ctx context.Context, earningID snowflake.ID, bucket Bucket, amount any) error
	SetBuckets(ctx context.Context, earningID snowflake.ID, values map[string]any) error
	AddToTotalPaid(ctx context.Context, earningID snowflake.ID, amount any) error
	Archive(ctx context.Context, earningID snowflake.ID) error
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

func (r *gormRepository) GetByID(ctx context.Context, earningID snowflake.ID) (*Entry, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	var entry Entry
	err := r.db.WithContext(ctx).
		Where("earning_id = ?", earningID).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// EnsureScope inserts the entry unless a concurrent credit already created
// its (creator, campaign, application) scope, and returns the surviving row
// either way.
func (r *gormRepository) EnsureScope(ctx context.Context, entry *Entry) (*Entry, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "creator_id"}, {Name: "campaign_id"}, {Name: "application_id"},
			},
			DoNothing: true,
		}).
		Create(entry)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected > 0 {
		return entry, nil
	}
	return r.FindScope(ctx, entry.CreatorID, entry.CampaignID, entry.ApplicationID)
}

// FindScope resolves the entry for one (creator, campaign, application)
// tuple. Returns nil without error when no entry exists yet.
func (r *gormRepository) FindScope(ctx context.Context, creatorID, campaignID, applicationID string) (*Entry, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	var entry Entry
	err := r.db.WithContext(ctx).
		Where("creator_id = ? AND campaign_id = ? AND application_id = ?", creatorID, campaignID, applicationID).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *gormRepository) ListByCreator(ctx context.Context, creatorID string) ([]Entry, error) {
	var entries []Entry
	err := r.db.WithContext(ctx).
		Where("creator_id = ? AND archived = ?", creatorID, false).
		Order("first_earned_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *gormRepository) ListByCampaign(ctx context.Context, campaignID string) ([]Entry, error) {
	var entries []Entry
	err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND archived = ?", campaignID, false).
		Order("first_earned_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *gormRepository) ListByCreatorCampaign(ctx context.Context, creatorID, campaignID string) ([]Entry, error) {
	var entries []Entry
	err := r.db.WithContext(ctx).
		Where("creator_id = ? AND campaign_id = ? AND archived = ?", creatorID, campaignID, false).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// AddToBucket increments one bucket atomically in the database so concurrent
// credits to the same entry serialize on the row.
func (r *gormRepository) AddToBucket(ctx context.Context, earningID snowflake.ID, bucket Bucket, amount any) error {
	res := r.db.WithContext(ctx).
		Model(&Entry{}).
		Where("earning_id = ?", earningID).
		UpdateColumns(map[string]any{
			string(bucket): gorm.Expr(string(bucket)+" + ?", amount),
			"last_updated": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetBuckets overwrites bucket values, used by idempotent re-derivation.
func (r *gormRepository) SetBuckets(ctx context.Context, earningID snowflake.ID, values map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&Entry{}).
		Where("earning_id = ?", earningID).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *gormRepository) AddToTotalPaid(ctx context.Context, earningID snowflake.ID, amount any) error {
	res := r.db.WithContext(ctx).
		Model(&Entry{}).
		Where("earning_id = ?", earningID).
		UpdateColumn("total_paid", gorm.Expr("total_paid + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *gormRepository) Archive(ctx context.Context, earningID snowflake.ID) error {
	return r.db.WithContext(ctx).
		Model(&Entry{}).
		Where("earning_id = ?", earningID).
		Update("archived", true).Error
}
