package schedule

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

	"settlement-engine/pkg/errutil"
	"settlement-engine/services/ledger"
	"settlement-engine/services/payment"
)

// Service evaluates payout schedules and runs batch payouts against the
// ledger and the payment state machine.
type Service struct {
	db        *gorm.DB
	node      *snowflake.Node
	schedules Repository
	ledger    *ledger.Service
	payments  *payment.Service
	evaluator *Evaluator
}

type ServiceParams struct {
	fx.In
	DB       *gorm.DB
	Node     *snowflake.Node
	Ledger   *ledger.Service
	Payments *payment.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:        p.DB,
		node:      p.Node,
		schedules: NewRepository(p.DB),
		ledger:    p.Ledger,
		payments:  p.Payments,
		evaluator: NewEvaluator(),
	}
}

// UpsertInput carries the configurable schedule fields.
type UpsertInput struct {
	IsAutomated                    bool             `json:"is_automated"`
	TriggerOnDeliverableCompletion bool             `json:"trigger_on_deliverable_completion"`
	TriggerOnGMVMilestone          bool             `json:"trigger_on_gmv_milestone"`
	GMVMilestoneAmount             *decimal.Decimal `json:"gmv_milestone_amount"`
	TriggerOnCampaignCompletion    bool             `json:"trigger_on_campaign_completion"`
	TriggerExpression              string           `json:"trigger_expression"`
	PaymentDelayDays               int              `json:"payment_delay_days"`
	MinimumPayoutAmount            decimal.Decimal  `json:"minimum_payout_amount"`
	PaymentMethod                  payment.Method   `json:"payment_method"`
}

// Upsert creates or replaces the schedule for one campaign.
func (s *Service) Upsert(ctx context.Context, campaignID string, in UpsertInput) (*PaymentSchedule, error) {
	if campaignID == "" {
		return nil, errutil.ValidationFailed("campaign_id is required", nil)
	}
	if in.PaymentDelayDays < 0 {
		return nil, errutil.ValidationFailed("payment_delay_days must not be negative", nil)
	}
	if in.MinimumPayoutAmount.LessThan(decimal.Zero) {
		return nil, errutil.ValidationFailed("minimum_payout_amount must not be negative", nil)
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = payment.MethodStripe
	}
	if !in.PaymentMethod.Valid() {
		return nil, errutil.ValidationFailed("unknown payment_method", nil)
	}
	if in.TriggerOnGMVMilestone && in.GMVMilestoneAmount == nil {
		return nil, errutil.ValidationFailed("gmv_milestone_amount is required when trigger_on_gmv_milestone is set", nil)
	}
	if in.TriggerExpression != "" {
		// Fail fast on expressions that will never evaluate.
		if _, err := s.evaluator.Evaluate(in.TriggerExpression, sampleTriggerContext()); err != nil {
			return nil, errutil.ValidationFailed("invalid trigger_expression", err)
		}
	}

	schedule, err := s.schedules.FindByCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if schedule == nil {
		schedule = &PaymentSchedule{
			ScheduleID: s.node.Generate(),
			CampaignID: campaignID,
		}
	}

	schedule.IsAutomated = in.IsAutomated
	schedule.TriggerOnDeliverableCompletion = in.TriggerOnDeliverableCompletion
	schedule.TriggerOnGMVMilestone = in.TriggerOnGMVMilestone
	schedule.GMVMilestoneAmount = in.GMVMilestoneAmount
	schedule.TriggerOnCampaignCompletion = in.TriggerOnCampaignCompletion
	schedule.TriggerExpression = in.TriggerExpression
	schedule.PaymentDelayDays = in.PaymentDelayDays
	schedule.MinimumPayoutAmount = in.MinimumPayoutAmount
	schedule.PaymentMethod = in.PaymentMethod

	if err := s.schedules.Save(ctx, schedule); err != nil {
		return nil, err
	}
	return schedule, nil
}

// GetByCampaign looks up a campaign's schedule.
func (s *Service) GetByCampaign(ctx context.Context, campaignID string) (*PaymentSchedule, error) {
	schedule, err := s.schedules.FindByCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if schedule == nil {
		return nil, errutil.NotFound("no schedule for campaign", nil)
	}
	return schedule, nil
}

// EligibleCreators returns ledger entries payable under the campaign's
// schedule: pending balance at or above the minimum, with the payment delay
// elapsed since the entry last changed. The minimum applies to the creator's
// pending total, not each entry. A campaign without a schedule pays out with
// no minimum and no delay.
func (s *Service) EligibleCreators(ctx context.Context, campaignID string) ([]EligibleCreator, error) {
	schedule, err := s.schedules.FindByCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if schedule == nil {
		schedule = &PaymentSchedule{MinimumPayoutAmount: decimal.Zero}
	}

	entries, err := s.ledger.CampaignEntries(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	delay := time.Duration(schedule.PaymentDelayDays) * 24 * time.Hour

	candidates := make(map[string][]EligibleCreator)
	totals := make(map[string]decimal.Decimal)
	order := make([]string, 0)

	for _, e := range entries {
		pending := e.Pending()
		if pending.LessThanOrEqual(decimal.Zero) {
			continue
		}
		eligibleAt := e.LastUpdated.Add(delay)
		if eligibleAt.After(now) {
			continue
		}
		if _, ok := totals[e.CreatorID]; !ok {
			order = append(order, e.CreatorID)
			totals[e.CreatorID] = decimal.Zero
		}
		totals[e.CreatorID] = totals[e.CreatorID].Add(pending)
		candidates[e.CreatorID] = append(candidates[e.CreatorID], EligibleCreator{
			CreatorID:     e.CreatorID,
			EarningID:     e.EarningID,
			PendingAmount: pending,
			EligibleAt:    eligibleAt,
		})
	}

	eligible := make([]EligibleCreator, 0)
	for _, creatorID := range order {
		if totals[creatorID].LessThan(schedule.MinimumPayoutAmount) {
			continue
		}
		eligible = append(eligible, candidates[creatorID]...)
	}
	return eligible, nil
}

// Execute runs a batch payout for every eligible entry. Per-creator failures
// are reported in the result list and never abort the batch.
func (s *Service) Execute(ctx context.Context, scheduleID snowflake.ID) ([]ExecutionResult, error) {
	span := trace.SpanFromContext(ctx)
	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("schedule_id", scheduleID.String()),
	)

	schedule, err := s.schedules.GetByID(ctx, scheduleID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errutil.NotFound("schedule not found", nil)
	}
	if err != nil {
		return nil, err
	}

	eligible, err := s.EligibleCreators(ctx, schedule.CampaignID)
	if err != nil {
		return nil, err
	}

	results := make([]ExecutionResult, 0, len(eligible))
	for _, ec := range eligible {
		result := ExecutionResult{
			CreatorID: ec.CreatorID,
			Amount:    ec.PendingAmount,
		}

		earningID := ec.EarningID
		p, err := s.payments.Create(ctx, payment.CreateInput{
			CreatorID:   ec.CreatorID,
			CampaignID:  &schedule.CampaignID,
			EarningID:   &earningID,
			Amount:      ec.PendingAmount,
			PaymentType: payment.TypeBasePayout,
			Method:      schedule.PaymentMethod,
		})
		if err == nil {
			p, err = s.payments.Dispatch(ctx, p.PaymentID)
		}

		if err != nil {
			result.Status = ResultFailed
			result.Error = err.Error()
			zapLog.Warn("scheduled payout failed",
				zap.String("creator_id", ec.CreatorID),
				zap.Error(err),
			)
		} else {
			result.Status = ResultDispatched
			result.PaymentID = &p.PaymentID
		}
		results = append(results, result)
	}

	zapLog.Info("schedule executed",
		zap.String("campaign_id", schedule.CampaignID),
		zap.Int("payouts", len(results)),
	)
	return results, nil
}

// TriggerContext carries the campaign facts a trigger decision needs.
type TriggerContext struct {
	DeliverableCompleted bool
	CampaignCompleted    bool
	TotalGMV             decimal.Decimal
}

// ShouldTriggerPayout decides whether campaign activity should start an
// automated payout run. A custom CEL expression, when present, replaces the
// built-in trigger flags.
func (s *Service) ShouldTriggerPayout(ctx context.Context, campaignID string, tc TriggerContext) (bool, error) {
	schedule, err := s.schedules.FindByCampaign(ctx, campaignID)
	if err != nil {
		return false, err
	}
	if schedule == nil || !schedule.IsAutomated {
		return false, nil
	}

	if schedule.TriggerExpression != "" {
		milestone := 0.0
		if schedule.GMVMilestoneAmount != nil {
			milestone = schedule.GMVMilestoneAmount.InexactFloat64()
		}
		return s.evaluator.Evaluate(schedule.TriggerExpression, map[string]any{
			"deliverable_completed": tc.DeliverableCompleted,
			"campaign_completed":    tc.CampaignCompleted,
			"total_gmv":             tc.TotalGMV.InexactFloat64(),
			"gmv_milestone":         milestone,
		})
	}

	if schedule.TriggerOnDeliverableCompletion && tc.DeliverableCompleted {
		return true, nil
	}
	if schedule.TriggerOnCampaignCompletion && tc.CampaignCompleted {
		return true, nil
	}
	if schedule.TriggerOnGMVMilestone && schedule.GMVMilestoneAmount != nil &&
		tc.TotalGMV.GreaterThanOrEqual(*schedule.GMVMilestoneAmount) {
		return true, nil
	}
	return false, nil
}

func sampleTriggerContext() map[string]any {
	return map[string]any{
		"deliverable_completed": true,
		"campaign_completed":    false,
		"total_gmv":             0.0,
		"gmv_milestone":         0.0,
	}
}
