package bonus

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"settlement-engine/pkg/errutil"
)

// Service owns bonus configuration and exposes the calculators against a
// campaign's stored tiers and rules.
type Service struct {
	db   *gorm.DB
	node *snowflake.Node
}

type Params struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p Params) *Service {
	return &Service{db: p.DB, node: p.Node}
}

func (s *Service) CreateTier(ctx context.Context, tier *Tier) error {
	if tier.CampaignID == "" {
		return errutil.ValidationFailed("campaign_id is required", nil)
	}
	if tier.BonusType != TypeFlatAmount && tier.BonusType != TypeCommissionIncrease {
		return errutil.ValidationFailed("unknown bonus_type", nil)
	}
	if tier.MaxGMV != nil && tier.MaxGMV.LessThan(tier.MinGMV) {
		return errutil.ValidationFailed("max_gmv must not be below min_gmv", nil)
	}

	tier.TierID = s.node.Generate()
	return s.db.WithContext(ctx).Create(tier).Error
}

func (s *Service) ListTiers(ctx context.Context, campaignID string) ([]Tier, error) {
	var tiers []Tier
	err := s.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("min_gmv ASC").
		Find(&tiers).Error
	if err != nil {
		return nil, err
	}
	return tiers, nil
}

func (s *Service) CreateLeaderboardRule(ctx context.Context, rule *LeaderboardRule) error {
	if rule.CampaignID == "" {
		return errutil.ValidationFailed("campaign_id is required", nil)
	}
	if rule.PositionStart <= 0 || rule.PositionEnd < rule.PositionStart {
		return errutil.ValidationFailed("invalid position range", nil)
	}

	rule.RuleID = s.node.Generate()
	return s.db.WithContext(ctx).Create(rule).Error
}

func (s *Service) ListLeaderboardRules(ctx context.Context, campaignID string) ([]LeaderboardRule, error) {
	var rules []LeaderboardRule
	err := s.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("position_start ASC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

// CampaignTierAmount evaluates the stored ladder for a campaign.
func (s *Service) CampaignTierAmount(ctx context.Context, campaignID string, gmv decimal.Decimal) (decimal.Decimal, error) {
	tiers, err := s.ListTiers(ctx, campaignID)
	if err != nil {
		return decimal.Zero, err
	}
	return TierAmount(gmv, tiers), nil
}
