package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"settlement-engine/pkg/client"
	"settlement-engine/pkg/errutil"
	"settlement-engine/pkg/money"
	"settlement-engine/services/bonus"
)

// Service owns the earnings ledger. Credits grow the four earning buckets;
// ApplyPayment is the single path that couples a payment outcome to ledger
// state and is only called by the payment state machine.
type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	entries  Repository
	bonus    *bonus.Service
	campaign client.CampaignClient
}

type ServiceParams struct {
	fx.In
	DB       *gorm.DB
	Node     *snowflake.Node
	Bonus    *bonus.Service
	Campaign client.CampaignClient `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		entries:  NewRepository(p.DB),
		bonus:    p.Bonus,
		campaign: p.Campaign,
	}
}

// CreditInput identifies the ledger scope and the bucket to grow.
type CreditInput struct {
	CreatorID     string
	CampaignID    string
	ApplicationID string
	Bucket        Bucket
	Amount        decimal.Decimal
}

// Credit appends to exactly one bucket, creating the entry on first credit.
func (s *Service) Credit(ctx context.Context, in CreditInput) (*Entry, error) {
	span := trace.SpanFromContext(ctx)
	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("creator_id", in.CreatorID),
		zap.String("campaign_id", in.CampaignID),
		zap.String("bucket", string(in.Bucket)),
	)

	if in.CreatorID == "" || in.CampaignID == "" || in.ApplicationID == "" {
		return nil, errutil.ValidationFailed("creator_id, campaign_id and application_id are required", nil)
	}
	if !in.Bucket.Valid() {
		return nil, errutil.ValidationFailed("unknown earning bucket", nil)
	}
	if in.Amount.LessThan(decimal.Zero) {
		return nil, errutil.ValidationFailed("credit amount must not be negative", nil)
	}

	amount := money.Round(in.Amount)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.entries.WithTrx(tx)

		entry, err := repo.FindScope(ctx, in.CreatorID, in.CampaignID, in.ApplicationID)
		if err != nil {
			return err
		}

		if entry == nil {
			entry, err = repo.EnsureScope(ctx, &Entry{
				EarningID:     s.node.Generate(),
				CreatorID:     in.CreatorID,
				CampaignID:    in.CampaignID,
				ApplicationID: in.ApplicationID,
				FirstEarnedAt: time.Now(),
			})
			if err != nil {
				return err
			}
		}

		return repo.AddToBucket(ctx, entry.EarningID, in.Bucket, amount)
	})
	if err != nil {
		zapLog.Error("failed to credit ledger", zap.Error(err))
		return nil, err
	}

	entry, err := s.entries.FindScope(ctx, in.CreatorID, in.CampaignID, in.ApplicationID)
	if err != nil {
		return nil, err
	}

	zapLog.Info("ledger credited", zap.String("amount", amount.StringFixed(2)))
	return entry, nil
}

// GetEntry looks up a single ledger entry.
func (s *Service) GetEntry(ctx context.Context, earningID snowflake.ID) (*Entry, error) {
	entry, err := s.entries.GetByID(ctx, earningID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errutil.NotFound("ledger entry not found", nil)
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// GetPending returns total_earnings - total_paid for the creator under one
// campaign, summed across applications.
func (s *Service) GetPending(ctx context.Context, creatorID, campaignID string) (decimal.Decimal, error) {
	entries, err := s.entries.ListByCreatorCampaign(ctx, creatorID, campaignID)
	if err != nil {
		return decimal.Zero, err
	}

	pending := decimal.Zero
	for _, e := range entries {
		pending = pending.Add(e.Pending())
	}
	return pending, nil
}

// ArchiveEntry retires an entry from listings. Entries are never hard
// deleted.
func (s *Service) ArchiveEntry(ctx context.Context, earningID snowflake.ID) error {
	err := s.entries.Archive(ctx, earningID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errutil.NotFound("ledger entry not found", nil)
	}
	return err
}

// CampaignEntries lists active ledger entries under one campaign.
func (s *Service) CampaignEntries(ctx context.Context, campaignID string) ([]Entry, error) {
	if campaignID == "" {
		return nil, errutil.ValidationFailed("campaign_id is required", nil)
	}
	return s.entries.ListByCampaign(ctx, campaignID)
}

// ApplyPayment increments total_paid for the entry a completed payment
// settles. It runs inside the payment state machine's transaction; the
// caller gates re-application through the payment application record.
func (s *Service) ApplyPayment(ctx context.Context, tx *gorm.DB, earningID snowflake.ID, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return errutil.ValidationFailed("applied amount must be positive", nil)
	}

	repo := s.entries.WithTrx(tx)

	entry, err := repo.GetByID(ctx, earningID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errutil.NotFound("ledger entry not found", nil)
	}
	if err != nil {
		return err
	}

	if entry.TotalPaid.Add(amount).GreaterThan(entry.TotalEarnings()) {
		zap.L().Warn("payment application exceeds total earnings",
			zap.String("earning_id", earningID.String()),
			zap.String("amount", amount.StringFixed(2)),
			zap.String("total_earnings", entry.TotalEarnings().StringFixed(2)),
			zap.String("total_paid", entry.TotalPaid.StringFixed(2)),
		)
	}

	return repo.AddToTotalPaid(ctx, earningID, money.Round(amount))
}

// CreatorSummary aggregates the creator's ledger across campaigns.
func (s *Service) CreatorSummary(ctx context.Context, creatorID string) (*Summary, error) {
	if creatorID == "" {
		return nil, errutil.ValidationFailed("creator_id is required", nil)
	}

	entries, err := s.entries.ListByCreator(ctx, creatorID)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		CreatorID:        creatorID,
		BaseEarnings:     decimal.Zero,
		GMVCommission:    decimal.Zero,
		BonusEarnings:    decimal.Zero,
		ReferralEarnings: decimal.Zero,
		TotalEarnings:    decimal.Zero,
		TotalPaid:        decimal.Zero,
		PendingPayment:   decimal.Zero,
		Campaigns:        make([]CampaignTotal, 0),
	}

	perCampaign := make(map[string]*CampaignTotal)
	order := make([]string, 0)

	for _, e := range entries {
		summary.BaseEarnings = summary.BaseEarnings.Add(e.BaseEarnings)
		summary.GMVCommission = summary.GMVCommission.Add(e.GMVCommission)
		summary.BonusEarnings = summary.BonusEarnings.Add(e.BonusEarnings)
		summary.ReferralEarnings = summary.ReferralEarnings.Add(e.ReferralEarnings)
		summary.TotalEarnings = summary.TotalEarnings.Add(e.TotalEarnings())
		summary.TotalPaid = summary.TotalPaid.Add(e.TotalPaid)
		summary.PendingPayment = summary.PendingPayment.Add(e.Pending())

		ct, ok := perCampaign[e.CampaignID]
		if !ok {
			ct = &CampaignTotal{
				CampaignID:     e.CampaignID,
				TotalEarnings:  decimal.Zero,
				TotalPaid:      decimal.Zero,
				PendingPayment: decimal.Zero,
			}
			perCampaign[e.CampaignID] = ct
			order = append(order, e.CampaignID)
		}
		ct.TotalEarnings = ct.TotalEarnings.Add(e.TotalEarnings())
		ct.TotalPaid = ct.TotalPaid.Add(e.TotalPaid)
		ct.PendingPayment = ct.PendingPayment.Add(e.Pending())
	}

	for _, id := range order {
		summary.Campaigns = append(summary.Campaigns, *perCampaign[id])
	}

	return summary, nil
}

// RecalculateInput carries the external facts earnings derive from.
type RecalculateInput struct {
	CreatorID           string
	CampaignID          string
	ApplicationID       string
	GMV                 decimal.Decimal
	CommissionRate      decimal.Decimal
	BaseAmount          *decimal.Decimal
	LeaderboardPosition int
}

// Recalculate re-derives the base, commission and bonus buckets from the
// given deliverable and GMV facts. Setting buckets rather than adding makes
// the operation safe to repeat with the same inputs.
func (s *Service) Recalculate(ctx context.Context, in RecalculateInput) (*Entry, error) {
	if in.CreatorID == "" || in.CampaignID == "" || in.ApplicationID == "" {
		return nil, errutil.ValidationFailed("creator_id, campaign_id and application_id are required", nil)
	}
	if in.GMV.LessThan(decimal.Zero) {
		return nil, errutil.ValidationFailed("gmv must not be negative", nil)
	}

	base := decimal.Zero
	if in.BaseAmount != nil {
		base = money.Round(*in.BaseAmount)
	} else if s.campaign != nil {
		deliverables, err := s.campaign.GetDeliverables(ctx, in.ApplicationID)
		if err != nil {
			return nil, err
		}
		for _, d := range deliverables {
			if !d.Completed() || d.AgreedAmount == nil {
				continue
			}
			amount, err := decimal.NewFromString(*d.AgreedAmount)
			if err != nil {
				continue
			}
			base = base.Add(amount)
		}
		base = money.Round(base)
	}

	commission := money.GMVCommission(in.GMV, in.CommissionRate)

	tierBonus, err := s.bonus.CampaignTierAmount(ctx, in.CampaignID, in.GMV)
	if err != nil {
		return nil, err
	}

	leaderboardBonus := decimal.Zero
	if in.LeaderboardPosition > 0 {
		rules, err := s.bonus.ListLeaderboardRules(ctx, in.CampaignID)
		if err != nil {
			return nil, err
		}
		leaderboardBonus = bonus.LeaderboardAmount(in.LeaderboardPosition, rules)
	}

	bonusTotal := money.Round(tierBonus.Add(leaderboardBonus))

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.entries.WithTrx(tx)

		entry, err := repo.FindScope(ctx, in.CreatorID, in.CampaignID, in.ApplicationID)
		if err != nil {
			return err
		}
		if entry == nil {
			entry, err = repo.EnsureScope(ctx, &Entry{
				EarningID:     s.node.Generate(),
				CreatorID:     in.CreatorID,
				CampaignID:    in.CampaignID,
				ApplicationID: in.ApplicationID,
				FirstEarnedAt: time.Now(),
			})
			if err != nil {
				return err
			}
		}

		return repo.SetBuckets(ctx, entry.EarningID, map[string]any{
			"base_earnings":  base,
			"gmv_commission": commission,
			"bonus_earnings": bonusTotal,
			"last_updated":   time.Now(),
		})
	})
	if err != nil {
		return nil, err
	}

	return s.entries.FindScope(ctx, in.CreatorID, in.CampaignID, in.ApplicationID)
}
