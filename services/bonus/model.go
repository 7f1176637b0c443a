package bonus

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

const (
	TypeFlatAmount         = "flat_amount"
	TypeCommissionIncrease = "commission_increase"
)

// Tier is one GMV band of a campaign's bonus ladder. Bands are cumulative:
// every band whose range contains the GMV contributes.
type Tier struct {
	TierID     snowflake.ID     `gorm:"column:tier_id;primaryKey;autoIncrement:false" json:"tier_id"`
	CampaignID string           `gorm:"column:campaign_id;index;not null" json:"campaign_id"`
	MinGMV     decimal.Decimal  `gorm:"column:min_gmv;type:decimal(14,2);not null" json:"min_gmv"`
	MaxGMV     *decimal.Decimal `gorm:"column:max_gmv;type:decimal(14,2)" json:"max_gmv,omitempty"`
	BonusType  string           `gorm:"column:bonus_type;not null" json:"bonus_type"`
	BonusValue decimal.Decimal  `gorm:"column:bonus_value;type:decimal(12,2);not null" json:"bonus_value"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Tier) TableName() string {
	return "bonus_tiers"
}

// Matches reports whether the tier's band contains gmv. MaxGMV absent means
// the band is open ended.
func (t Tier) Matches(gmv decimal.Decimal) bool {
	if gmv.LessThan(t.MinGMV) {
		return false
	}
	if t.MaxGMV != nil && gmv.GreaterThan(*t.MaxGMV) {
		return false
	}
	return true
}

// LeaderboardRule grants a flat bonus to creators finishing inside a
// position range. Ranges are assumed non-overlapping; first match wins.
type LeaderboardRule struct {
	RuleID        snowflake.ID    `gorm:"column:rule_id;primaryKey;autoIncrement:false" json:"rule_id"`
	CampaignID    string          `gorm:"column:campaign_id;index;not null" json:"campaign_id"`
	PositionStart int             `gorm:"column:position_start;not null" json:"position_start"`
	PositionEnd   int             `gorm:"column:position_end;not null" json:"position_end"`
	BonusAmount   decimal.Decimal `gorm:"column:bonus_amount;type:decimal(12,2);not null" json:"bonus_amount"`
	MetricType    string          `gorm:"column:metric_type;default:'gmv'" json:"metric_type"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (LeaderboardRule) TableName() string {
	return "leaderboard_bonus_rules"
}
