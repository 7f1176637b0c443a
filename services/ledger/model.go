package ledger

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Bucket names one of the four independently credited earning buckets.
type Bucket string

const (
	BucketBase       Bucket = "base_earnings"
	BucketCommission Bucket = "gmv_commission"
	BucketBonus      Bucket = "bonus_earnings"
	BucketReferral   Bucket = "referral_earnings"
)

func (b Bucket) Valid() bool {
	switch b {
	case BucketBase, BucketCommission, BucketBonus, BucketReferral:
		return true
	}
	return false
}

// Entry accumulates a creator's earnings for one (campaign, application)
// pair. Buckets only grow through credits; total_paid only grows through
// payment application. Entries are archived, never hard-deleted.
type Entry struct {
	EarningID        snowflake.ID    `gorm:"column:earning_id;primaryKey;autoIncrement:false" json:"earning_id"`
	CreatorID        string          `gorm:"column:creator_id;not null;uniqueIndex:idx_ledger_scope,priority:1" json:"creator_id"`
	CampaignID       string          `gorm:"column:campaign_id;not null;uniqueIndex:idx_ledger_scope,priority:2" json:"campaign_id"`
	ApplicationID    string          `gorm:"column:application_id;not null;uniqueIndex:idx_ledger_scope,priority:3" json:"application_id"`
	BaseEarnings     decimal.Decimal `gorm:"column:base_earnings;type:decimal(12,2);not null;default:0" json:"base_earnings"`
	GMVCommission    decimal.Decimal `gorm:"column:gmv_commission;type:decimal(12,2);not null;default:0" json:"gmv_commission"`
	BonusEarnings    decimal.Decimal `gorm:"column:bonus_earnings;type:decimal(12,2);not null;default:0" json:"bonus_earnings"`
	ReferralEarnings decimal.Decimal `gorm:"column:referral_earnings;type:decimal(12,2);not null;default:0" json:"referral_earnings"`
	TotalPaid        decimal.Decimal `gorm:"column:total_paid;type:decimal(12,2);not null;default:0" json:"total_paid"`
	Archived         bool            `gorm:"column:archived;not null;default:false" json:"archived"`
	FirstEarnedAt    time.Time       `gorm:"column:first_earned_at" json:"first_earned_at"`
	LastUpdated      time.Time       `gorm:"column:last_updated;autoUpdateTime" json:"last_updated"`
}

func (Entry) TableName() string {
	return "earnings_ledger"
}

// TotalEarnings is derived on read, never stored as independent truth.
func (e Entry) TotalEarnings() decimal.Decimal {
	return e.BaseEarnings.
		Add(e.GMVCommission).
		Add(e.BonusEarnings).
		Add(e.ReferralEarnings)
}

// Pending is what the creator has earned but not yet been paid.
func (e Entry) Pending() decimal.Decimal {
	return e.TotalEarnings().Sub(e.TotalPaid)
}

// Summary is the creator-facing earnings rollup.
type Summary struct {
	CreatorID        string          `json:"creator_id"`
	BaseEarnings     decimal.Decimal `json:"base_earnings"`
	GMVCommission    decimal.Decimal `json:"gmv_commission"`
	BonusEarnings    decimal.Decimal `json:"bonus_earnings"`
	ReferralEarnings decimal.Decimal `json:"referral_earnings"`
	TotalEarnings    decimal.Decimal `json:"total_earnings"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	PendingPayment   decimal.Decimal `json:"pending_payment"`
	Campaigns        []CampaignTotal `json:"campaigns"`
}

// CampaignTotal is one campaign's slice of a creator summary.
type CampaignTotal struct {
	CampaignID     string          `json:"campaign_id"`
	TotalEarnings  decimal.Decimal `json:"total_earnings"`
	TotalPaid      decimal.Decimal `json:"total_paid"`
	PendingPayment decimal.Decimal `json:"pending_payment"`
}
