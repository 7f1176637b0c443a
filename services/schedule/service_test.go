package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"settlement-engine/pkg/config"
	"settlement-engine/services/bonus"
	"settlement-engine/services/ledger"
	"settlement-engine/services/payment"
	"settlement-engine/services/testutil"
)

type okProvider struct{}

func (okProvider) Dispatch(ctx context.Context, p *payment.Payment) (string, error) {
	return "tr_" + p.PaymentID.String(), nil
}

type testEnv struct {
	svc      *Service
	ledger   *ledger.Service
	payments *payment.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewTestDB(t,
		&ledger.Entry{}, &bonus.Tier{}, &bonus.LeaderboardRule{},
		&payment.Payment{}, &payment.Application{}, &PaymentSchedule{},
	)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Providers.Timeout = time.Second

	ledgerSvc := ledger.NewService(ledger.ServiceParams{
		DB:    db,
		Node:  node,
		Bonus: bonus.NewService(bonus.Params{DB: db, Node: node}),
	})
	paymentSvc := payment.NewService(payment.ServiceParams{
		DB:        db,
		Node:      node,
		Config:    cfg,
		Ledger:    ledgerSvc,
		Providers: payment.Providers{payment.MethodStripe: okProvider{}},
	})
	svc := NewService(ServiceParams{
		DB:       db,
		Node:     node,
		Ledger:   ledgerSvc,
		Payments: paymentSvc,
	})

	return &testEnv{svc: svc, ledger: ledgerSvc, payments: paymentSvc}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (e *testEnv) credit(t *testing.T, creatorID, campaignID, appID, amount string) *ledger.Entry {
	t.Helper()
	entry, err := e.ledger.Credit(context.Background(), ledger.CreditInput{
		CreatorID:     creatorID,
		CampaignID:    campaignID,
		ApplicationID: appID,
		Bucket:        ledger.BucketBase,
		Amount:        dec(amount),
	})
	require.NoError(t, err)
	return entry
}

func TestUpsertCreatesAndUpdates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.svc.Upsert(ctx, "campaign-1", UpsertInput{
		IsAutomated:         true,
		MinimumPayoutAmount: dec("100"),
		PaymentDelayDays:    7,
	})
	require.NoError(t, err)
	require.Equal(t, payment.MethodStripe, created.PaymentMethod)

	updated, err := env.svc.Upsert(ctx, "campaign-1", UpsertInput{
		MinimumPayoutAmount: dec("25"),
	})
	require.NoError(t, err)
	require.Equal(t, created.ScheduleID, updated.ScheduleID)
	require.Equal(t, "25.00", updated.MinimumPayoutAmount.StringFixed(2))
	require.False(t, updated.IsAutomated)
}

func TestUpsertRejectsInvalidInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Upsert(ctx, "campaign-1", UpsertInput{PaymentDelayDays: -1})
	require.Error(t, err)

	_, err = env.svc.Upsert(ctx, "campaign-1", UpsertInput{MinimumPayoutAmount: dec("-1")})
	require.Error(t, err)

	_, err = env.svc.Upsert(ctx, "campaign-1", UpsertInput{TriggerOnGMVMilestone: true})
	require.Error(t, err)

	_, err = env.svc.Upsert(ctx, "campaign-1", UpsertInput{TriggerExpression: "total_gmv >"})
	require.Error(t, err)
}

func TestEligibleCreatorsAppliesMinimum(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Upsert(ctx, "campaign-1", UpsertInput{
		MinimumPayoutAmount: dec("100"),
	})
	require.NoError(t, err)

	// Below the minimum: excluded. At or above: included.
	env.credit(t, "creator-low", "campaign-1", "app-1", "50")
	included := env.credit(t, "creator-high", "campaign-1", "app-2", "150")

	eligible, err := env.svc.EligibleCreators(ctx, "campaign-1")
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	require.Equal(t, "creator-high", eligible[0].CreatorID)
	require.Equal(t, included.EarningID, eligible[0].EarningID)
	require.Equal(t, "150.00", eligible[0].PendingAmount.StringFixed(2))
}

func TestEligibleCreatorsMinimumAppliesToCreatorTotal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Upsert(ctx, "campaign-1", UpsertInput{
		MinimumPayoutAmount: dec("100"),
	})
	require.NoError(t, err)

	// Two entries of 60 each clear the 100 minimum together.
	env.credit(t, "creator-1", "campaign-1", "app-1", "60")
	env.credit(t, "creator-1", "campaign-1", "app-2", "60")

	eligible, err := env.svc.EligibleCreators(ctx, "campaign-1")
	require.NoError(t, err)
	require.Len(t, eligible, 2)
}

func TestEligibleCreatorsWithoutScheduleDefaultsToNoMinimum(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.credit(t, "creator-1", "campaign-1", "app-1", "5")

	eligible, err := env.svc.EligibleCreators(ctx, "campaign-1")
	require.NoError(t, err)
	require.Len(t, eligible, 1)
}

func TestEligibleCreatorsHonorsPaymentDelay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Upsert(ctx, "campaign-1", UpsertInput{
		MinimumPayoutAmount: dec("10"),
		PaymentDelayDays:    7,
	})
	require.NoError(t, err)

	env.credit(t, "creator-1", "campaign-1", "app-1", "150")

	eligible, err := env.svc.EligibleCreators(ctx, "campaign-1")
	require.NoError(t, err)
	require.Empty(t, eligible)
}

func TestExecuteDispatchesEligiblePayouts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	schedule, err := env.svc.Upsert(ctx, "campaign-1", UpsertInput{
		MinimumPayoutAmount: dec("100"),
	})
	require.NoError(t, err)

	entry := env.credit(t, "creator-1", "campaign-1", "app-1", "150")
	env.credit(t, "creator-low", "campaign-1", "app-2", "50")

	results, err := env.svc.Execute(ctx, schedule.ScheduleID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, ResultDispatched, results[0].Status)
	require.NotNil(t, results[0].PaymentID)

	p, err := env.payments.Get(ctx, *results[0].PaymentID)
	require.NoError(t, err)
	require.Equal(t, payment.StatusProcessing, p.Status)
	require.Equal(t, "150.00", p.Amount.StringFixed(2))
	require.NotNil(t, p.EarningID)
	require.Equal(t, entry.EarningID, *p.EarningID)
}

func TestShouldTriggerPayoutFlags(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	milestone := dec("10000")
	_, err := env.svc.Upsert(ctx, "campaign-1", UpsertInput{
		IsAutomated:                    true,
		TriggerOnDeliverableCompletion: true,
		TriggerOnGMVMilestone:          true,
		GMVMilestoneAmount:             &milestone,
	})
	require.NoError(t, err)

	ok, err := env.svc.ShouldTriggerPayout(ctx, "campaign-1", TriggerContext{DeliverableCompleted: true})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = env.svc.ShouldTriggerPayout(ctx, "campaign-1", TriggerContext{TotalGMV: dec("12000")})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = env.svc.ShouldTriggerPayout(ctx, "campaign-1", TriggerContext{TotalGMV: dec("9000")})
	require.NoError(t, err)
	require.False(t, ok)

	// No schedule means no automation.
	ok, err = env.svc.ShouldTriggerPayout(ctx, "campaign-unknown", TriggerContext{DeliverableCompleted: true})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestShouldTriggerPayoutManualScheduleNeverFires(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Upsert(ctx, "campaign-1", UpsertInput{
		IsAutomated:                    false,
		TriggerOnDeliverableCompletion: true,
	})
	require.NoError(t, err)

	ok, err := env.svc.ShouldTriggerPayout(ctx, "campaign-1", TriggerContext{DeliverableCompleted: true})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestShouldTriggerPayoutExpressionOverridesFlags(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Upsert(ctx, "campaign-1", UpsertInput{
		IsAutomated:       true,
		TriggerExpression: "campaign_completed && total_gmv >= 5000.0",
	})
	require.NoError(t, err)

	ok, err := env.svc.ShouldTriggerPayout(ctx, "campaign-1", TriggerContext{
		CampaignCompleted: true,
		TotalGMV:          dec("6000"),
	})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = env.svc.ShouldTriggerPayout(ctx, "campaign-1", TriggerContext{
		CampaignCompleted: true,
		TotalGMV:          dec("4000"),
	})
	require.NoError(t, err)
	require.False(t, ok)
}
