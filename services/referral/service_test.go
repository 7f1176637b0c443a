package referral

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"settlement-engine/pkg/client"
	"settlement-engine/pkg/errutil"
	"settlement-engine/services/bonus"
	"settlement-engine/services/ledger"
	"settlement-engine/services/testutil"
)

type testEnv struct {
	svc    *Service
	ledger *ledger.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewTestDB(t,
		&ledger.Entry{}, &bonus.Tier{}, &bonus.LeaderboardRule{}, &Referral{},
	)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	ledgerSvc := ledger.NewService(ledger.ServiceParams{
		DB:    db,
		Node:  node,
		Bonus: bonus.NewService(bonus.Params{DB: db, Node: node}),
	})
	svc := NewService(ServiceParams{DB: db, Node: node, Ledger: ledgerSvc})

	return &testEnv{svc: svc, ledger: ledgerSvc}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRedeemLinksReferral(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	referral, err := env.svc.Redeem(ctx, RedeemInput{
		ReferrerID:   "creator-1",
		ReferredID:   "creator-2",
		ReferralCode: "CR1-INVITE",
	})
	require.NoError(t, err)
	require.Equal(t, "creator-1", referral.ReferrerID)
	require.Equal(t, "0.00", referral.BonusEarned.StringFixed(2))
	require.Equal(t, "0.00", referral.PendingBonus().StringFixed(2))
}

func TestRedeemRejectsSelfReferral(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Redeem(context.Background(), RedeemInput{
		ReferrerID:   "creator-1",
		ReferredID:   "creator-1",
		ReferralCode: "CR1-INVITE",
	})
	require.Error(t, err)
}

type stubUserClient struct {
	known map[string]bool
}

func (s stubUserClient) GetUser(ctx context.Context, userID string) (*client.User, error) {
	if !s.known[userID] {
		return nil, errutil.NotFound("user not found", nil)
	}
	return &client.User{ID: userID, Role: "creator"}, nil
}

func TestRedeemRejectsUnknownReferredCreator(t *testing.T) {
	env := newTestEnv(t)
	env.svc.users = stubUserClient{known: map[string]bool{"creator-1": true}}
	ctx := context.Background()

	_, err := env.svc.Redeem(ctx, RedeemInput{
		ReferrerID: "creator-1", ReferredID: "creator-9", ReferralCode: "CR1-INVITE",
	})
	require.Error(t, err)
	require.Equal(t, errutil.StatusNotFound, errutil.StatusOf(err))

	env.svc.users = stubUserClient{known: map[string]bool{"creator-1": true, "creator-2": true}}
	_, err = env.svc.Redeem(ctx, RedeemInput{
		ReferrerID: "creator-1", ReferredID: "creator-2", ReferralCode: "CR1-INVITE",
	})
	require.NoError(t, err)
}

func TestRedeemRejectsSecondReferral(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Redeem(ctx, RedeemInput{
		ReferrerID: "creator-1", ReferredID: "creator-2", ReferralCode: "CR1-INVITE",
	})
	require.NoError(t, err)

	_, err = env.svc.Redeem(ctx, RedeemInput{
		ReferrerID: "creator-3", ReferredID: "creator-2", ReferralCode: "CR3-INVITE",
	})
	require.Error(t, err)
}

func TestRedeemRejectsDuplicateReferralCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Redeem(ctx, RedeemInput{
		ReferrerID: "creator-1", ReferredID: "creator-2", ReferralCode: "CR1-INVITE",
	})
	require.NoError(t, err)

	_, err = env.svc.Redeem(ctx, RedeemInput{
		ReferrerID: "creator-3", ReferredID: "creator-4", ReferralCode: "CR1-INVITE",
	})
	require.Error(t, err)
	require.Equal(t, errutil.StatusConflict, errutil.StatusOf(err))
}

func TestAccrueBonusCreditsReferrerLedger(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	referral, err := env.svc.Redeem(ctx, RedeemInput{
		ReferrerID: "creator-1", ReferredID: "creator-2", ReferralCode: "CR1-INVITE",
	})
	require.NoError(t, err)

	referral, err = env.svc.AccrueBonus(ctx, referral.ReferralID, AccrueInput{
		Amount:        dec("25"),
		CampaignID:    "campaign-1",
		ApplicationID: "app-referral",
	})
	require.NoError(t, err)
	require.Equal(t, "25.00", referral.BonusEarned.StringFixed(2))
	require.Equal(t, "25.00", referral.PendingBonus().StringFixed(2))

	// The bonus lands in the referrer's ledger, not the referred creator's.
	summary, err := env.ledger.CreatorSummary(ctx, "creator-1")
	require.NoError(t, err)
	require.Equal(t, "25.00", summary.ReferralEarnings.StringFixed(2))
}

func TestAccrueBonusRejectsNonPositiveAmount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	referral, err := env.svc.Redeem(ctx, RedeemInput{
		ReferrerID: "creator-1", ReferredID: "creator-2", ReferralCode: "CR1-INVITE",
	})
	require.NoError(t, err)

	_, err = env.svc.AccrueBonus(ctx, referral.ReferralID, AccrueInput{
		Amount:        decimal.Zero,
		CampaignID:    "campaign-1",
		ApplicationID: "app-referral",
	})
	require.Error(t, err)
}

func TestMarkPaidReducesPendingBonus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	referral, err := env.svc.Redeem(ctx, RedeemInput{
		ReferrerID: "creator-1", ReferredID: "creator-2", ReferralCode: "CR1-INVITE",
	})
	require.NoError(t, err)

	_, err = env.svc.AccrueBonus(ctx, referral.ReferralID, AccrueInput{
		Amount:        dec("25"),
		CampaignID:    "campaign-1",
		ApplicationID: "app-referral",
	})
	require.NoError(t, err)

	referral, err = env.svc.MarkPaid(ctx, referral.ReferralID, dec("25"))
	require.NoError(t, err)
	require.Equal(t, "25.00", referral.BonusPaid.StringFixed(2))
	require.Equal(t, "0.00", referral.PendingBonus().StringFixed(2))
}

func TestListByReferrer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i, referred := range []string{"creator-2", "creator-3"} {
		_, err := env.svc.Redeem(ctx, RedeemInput{
			ReferrerID: "creator-1", ReferredID: referred,
			ReferralCode: fmt.Sprintf("CR1-INVITE-%d", i+1),
		})
		require.NoError(t, err)
	}

	referrals, err := env.svc.ListByReferrer(ctx, "creator-1")
	require.NoError(t, err)
	require.Len(t, referrals, 2)
}
