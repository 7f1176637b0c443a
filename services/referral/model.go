package referral

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Referral links a referred creator to the referrer who recruited them.
// Bonus amounts mirror the referrer's referral_earnings ledger bucket.
type Referral struct {
	ReferralID   snowflake.ID    `gorm:"column:referral_id;primaryKey" json:"referral_id"`
	ReferrerID   string          `gorm:"column:referrer_id;index" json:"referrer_id"`
	ReferredID   string          `gorm:"column:referred_id;uniqueIndex" json:"referred_id"`
	CampaignID   *string         `gorm:"column:campaign_id" json:"campaign_id,omitempty"`
	ReferralCode string          `gorm:"column:referral_code;uniqueIndex" json:"referral_code"`
	BonusEarned  decimal.Decimal `gorm:"column:bonus_earned;type:decimal(12,2)" json:"bonus_earned"`
	BonusPaid    decimal.Decimal `gorm:"column:bonus_paid;type:decimal(12,2)" json:"bonus_paid"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Referral) TableName() string { return "referrals" }

// PendingBonus is the earned but not yet paid referral amount.
func (r *Referral) PendingBonus() decimal.Decimal {
	return r.BonusEarned.Sub(r.BonusPaid)
}
