package referral

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"settlement-engine/pkg/client"
	"settlement-engine/pkg/errutil"
	"settlement-engine/pkg/money"
	"settlement-engine/services/ledger"
)

// Service tracks referral relationships and feeds the referrer's
// referral_earnings ledger bucket.
type Service struct {
	db        *gorm.DB
	node      *snowflake.Node
	referrals Repository
	ledger    *ledger.Service
	users     client.UserClient
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Ledger *ledger.Service
	Users  client.UserClient `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:        p.DB,
		node:      p.Node,
		referrals: NewRepository(p.DB),
		ledger:    p.Ledger,
		users:     p.Users,
	}
}

// RedeemInput links a referred creator to a referrer through a code.
type RedeemInput struct {
	ReferrerID   string  `json:"referrer_id" binding:"required"`
	ReferredID   string  `json:"referred_id" binding:"required"`
	ReferralCode string  `json:"referral_code" binding:"required"`
	CampaignID   *string `json:"campaign_id"`
}

// Redeem records the referral. A creator can only ever be referred once.
func (s *Service) Redeem(ctx context.Context, in RedeemInput) (*Referral, error) {
	if in.ReferrerID == in.ReferredID {
		return nil, errutil.ValidationFailed("a creator cannot refer themselves", nil)
	}

	if s.users != nil {
		if _, err := s.users.GetUser(ctx, in.ReferredID); err != nil {
			return nil, err
		}
	}

	existing, err := s.referrals.FindByReferred(ctx, in.ReferredID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errutil.Conflict("creator was already referred", nil)
	}

	taken, err := s.referrals.FindByCode(ctx, in.ReferralCode)
	if err != nil {
		return nil, err
	}
	if taken != nil {
		return nil, errutil.Conflict("referral code already registered", nil)
	}

	referral := &Referral{
		ReferralID:   s.node.Generate(),
		ReferrerID:   in.ReferrerID,
		ReferredID:   in.ReferredID,
		CampaignID:   in.CampaignID,
		ReferralCode: in.ReferralCode,
		BonusEarned:  decimal.Zero,
		BonusPaid:    decimal.Zero,
	}
	if err := s.referrals.Create(ctx, referral); err != nil {
		return nil, err
	}

	zap.L().Info("referral redeemed",
		zap.String("referral_id", referral.ReferralID.String()),
		zap.String("referrer_id", in.ReferrerID),
		zap.String("referred_id", in.ReferredID),
	)
	return referral, nil
}

// AccrueInput awards a referral bonus for activity by the referred creator.
type AccrueInput struct {
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	CampaignID    string          `json:"campaign_id" binding:"required"`
	ApplicationID string          `json:"application_id" binding:"required"`
}

// AccrueBonus credits the referrer's referral bucket and mirrors the amount
// on the referral row.
func (s *Service) AccrueBonus(ctx context.Context, referralID snowflake.ID, in AccrueInput) (*Referral, error) {
	span := trace.SpanFromContext(ctx)
	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("referral_id", referralID.String()),
	)

	if in.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, errutil.ValidationFailed("bonus amount must be positive", nil)
	}
	amount := money.Round(in.Amount)

	referral, err := s.referrals.GetByID(ctx, referralID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errutil.NotFound("referral not found", nil)
	}
	if err != nil {
		return nil, err
	}

	if _, err := s.ledger.Credit(ctx, ledger.CreditInput{
		CreatorID:     referral.ReferrerID,
		CampaignID:    in.CampaignID,
		ApplicationID: in.ApplicationID,
		Bucket:        ledger.BucketReferral,
		Amount:        amount,
	}); err != nil {
		return nil, err
	}

	if err := s.referrals.AddBonus(ctx, referralID, amount, decimal.Zero); err != nil {
		return nil, err
	}

	zapLog.Info("referral bonus accrued", zap.String("amount", amount.StringFixed(2)))
	return s.referrals.GetByID(ctx, referralID)
}

// MarkPaid mirrors a settled referral payout on the referral row.
func (s *Service) MarkPaid(ctx context.Context, referralID snowflake.ID, amount decimal.Decimal) (*Referral, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, errutil.ValidationFailed("paid amount must be positive", nil)
	}

	err := s.referrals.AddBonus(ctx, referralID, decimal.Zero, money.Round(amount))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errutil.NotFound("referral not found", nil)
	}
	if err != nil {
		return nil, err
	}
	return s.referrals.GetByID(ctx, referralID)
}

// ListByReferrer returns every referral a creator has made.
func (s *Service) ListByReferrer(ctx context.Context, referrerID string) ([]Referral, error) {
	if referrerID == "" {
		return nil, errutil.ValidationFailed("referrer_id is required", nil)
	}
	return s.referrals.ListByReferrer(ctx, referrerID)
}
