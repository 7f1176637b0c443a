package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
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

const testPayoutSecret = "payout-secret"

type stubProvider struct{}

func (stubProvider) Dispatch(ctx context.Context, p *payment.Payment) (string, error) {
	return "po_" + p.PaymentID.String(), nil
}

type testEnv struct {
	svc      *Service
	payments *payment.Service
	ledger   *ledger.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewTestDB(t,
		&ledger.Entry{}, &bonus.Tier{}, &bonus.LeaderboardRule{},
		&payment.Payment{}, &payment.Application{}, &WebhookEvent{},
	)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Providers.Timeout = time.Second
	cfg.Providers.Payout.WebhookSecret = testPayoutSecret
	cfg.Providers.Card.WebhookSecret = "card-secret"
	cfg.Settlement = config.SettlementConfig{
		RetryInterval:    5 * time.Minute,
		RetryMaxAge:      24 * time.Hour,
		RetryMaxAttempts: 3,
		RetryBatchSize:   25,
	}

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
		Providers: payment.Providers{payment.MethodFanbasis: stubProvider{}},
	})
	svc := NewService(ServiceParams{
		DB:       db,
		Node:     node,
		Config:   cfg,
		Adapters: NewAdapters(cfg),
		Payments: paymentSvc,
	})

	return &testEnv{svc: svc, payments: paymentSvc, ledger: ledgerSvc}
}

// dispatchedPayment creates a processing payment whose correlation id the
// payout adapter will resolve.
func (e *testEnv) dispatchedPayment(t *testing.T, amount string) *payment.Payment {
	t.Helper()
	ctx := context.Background()

	p, err := e.payments.Create(ctx, payment.CreateInput{
		CreatorID:   "creator-1",
		Amount:      decimal.RequireFromString(amount),
		PaymentType: payment.TypeBasePayout,
		Method:      payment.MethodFanbasis,
	})
	require.NoError(t, err)

	p, err = e.payments.Dispatch(ctx, p.PaymentID)
	require.NoError(t, err)
	require.Equal(t, payment.StatusProcessing, p.Status)
	return p
}

func payoutBody(t *testing.T, eventID, event, payoutID, errMsg string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]string{
		"event_id":  eventID,
		"event":     event,
		"payout_id": payoutID,
		"error":     errMsg,
	})
	require.NoError(t, err)
	return body
}

func signedHeader(body []byte) http.Header {
	h := http.Header{}
	h.Set("X-Webhook-Signature", signBody([]byte(testPayoutSecret), body))
	return h
}

func TestProcessRejectsBadSignature(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	body := payoutBody(t, "evt-1", "payout.completed", "po_1", "")
	h := http.Header{}
	h.Set("X-Webhook-Signature", "deadbeef")

	_, err := env.svc.Process(ctx, "payout", h, body)
	require.Error(t, err)

	// A rejected delivery must leave no record behind.
	row, err := env.svc.events.FindByProviderEvent(ctx, "payout", "evt-1")
	require.NoError(t, err)
	require.Nil(t, row)
}

func TestProcessRejectsMalformedPayload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	body := []byte(`{"event_id": "evt-1"}`)
	_, err := env.svc.Process(ctx, "payout", signedHeader(body), body)
	require.Error(t, err)
}

func TestProcessUnknownProvider(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Process(context.Background(), "carrier-pigeon", http.Header{}, []byte(`{}`))
	require.Error(t, err)
}

func TestProcessIgnoresUnknownEventType(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	body := payoutBody(t, "evt-1", "payout.created", "po_1", "")
	result, err := env.svc.Process(ctx, "payout", signedHeader(body), body)
	require.NoError(t, err)
	require.Equal(t, EventIgnored, result.Status)
	require.False(t, result.Processed)
}

func TestProcessAcksUnmatchedCorrelation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	body := payoutBody(t, "evt-1", "payout.completed", "po_nobody", "")
	result, err := env.svc.Process(ctx, "payout", signedHeader(body), body)
	require.NoError(t, err)
	require.Equal(t, EventUnmatched, result.Status)
	require.False(t, result.Processed)

	// Kept for audit even though nothing matched.
	row, err := env.svc.events.FindByProviderEvent(ctx, "payout", "evt-1")
	require.NoError(t, err)
	require.NotNil(t, row)
}

func TestProcessSuccessCompletesPayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p := env.dispatchedPayment(t, "100")
	body := payoutBody(t, "evt-1", "payout.completed", p.ExternalTransactionID, "")

	result, err := env.svc.Process(ctx, "payout", signedHeader(body), body)
	require.NoError(t, err)
	require.Equal(t, EventProcessed, result.Status)
	require.True(t, result.Processed)

	got, err := env.payments.Get(ctx, p.PaymentID)
	require.NoError(t, err)
	require.Equal(t, payment.StatusCompleted, got.Status)
}

func TestProcessDuplicateDeliveryIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p := env.dispatchedPayment(t, "100")
	body := payoutBody(t, "evt-1", "payout.completed", p.ExternalTransactionID, "")

	first, err := env.svc.Process(ctx, "payout", signedHeader(body), body)
	require.NoError(t, err)
	require.True(t, first.Processed)

	second, err := env.svc.Process(ctx, "payout", signedHeader(body), body)
	require.NoError(t, err)
	require.True(t, second.Duplicate)
	require.False(t, second.Processed)

	got, err := env.payments.Get(ctx, p.PaymentID)
	require.NoError(t, err)
	require.Equal(t, payment.StatusCompleted, got.Status)
}

func TestProcessFailureCapturesProviderMessage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p := env.dispatchedPayment(t, "100")
	body := payoutBody(t, "evt-1", "payout.failed", p.ExternalTransactionID, "recipient account closed")

	result, err := env.svc.Process(ctx, "payout", signedHeader(body), body)
	require.NoError(t, err)
	require.Equal(t, EventProcessed, result.Status)

	got, err := env.payments.Get(ctx, p.PaymentID)
	require.NoError(t, err)
	require.Equal(t, payment.StatusFailed, got.Status)
	require.Equal(t, "recipient account closed", got.FailureReason)
}

func TestProcessCancellationCancelsPayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p := env.dispatchedPayment(t, "100")
	body := payoutBody(t, "evt-1", "payout.cancelled", p.ExternalTransactionID, "merchant requested")

	result, err := env.svc.Process(ctx, "payout", signedHeader(body), body)
	require.NoError(t, err)
	require.Equal(t, EventProcessed, result.Status)

	got, err := env.payments.Get(ctx, p.PaymentID)
	require.NoError(t, err)
	require.Equal(t, payment.StatusCancelled, got.Status)
}

func TestCardAdapterSignatureScheme(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	body := []byte(`{"id":"evt_1","type":"payout.created","data":{"object":{"id":"po_1"}}}`)
	ts := fmt.Sprintf("%d", time.Now().Unix())
	signed := append([]byte(ts+"."), body...)

	h := http.Header{}
	h.Set("Webhook-Signature", "t="+ts+",v1="+signBody([]byte("card-secret"), signed))

	result, err := env.svc.Process(ctx, "card", h, body)
	require.NoError(t, err)
	require.Equal(t, EventIgnored, result.Status)
}

func TestRetrySweepAbandonsStaleEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	stale := &WebhookEvent{
		EventID:         node.Generate(),
		Provider:        "payout",
		ProviderEventID: "evt-stale",
		EventType:       "payout.completed",
		CorrelationID:   "po_gone",
		Payload:         payoutBody(t, "evt-stale", "payout.completed", "po_gone", ""),
		Status:          EventRetrying,
		RetryCount:      1,
	}
	require.NoError(t, env.svc.events.Create(ctx, stale))
	// Age the row past the retry window.
	require.NoError(t, env.svc.db.Model(&WebhookEvent{}).
		Where("event_id = ?", stale.EventID).
		Update("created_at", time.Now().Add(-25*time.Hour)).Error)

	require.NoError(t, env.svc.RetrySweep(ctx))

	row, err := env.svc.events.FindByProviderEvent(ctx, "payout", "evt-stale")
	require.NoError(t, err)
	require.Equal(t, EventAbandoned, row.Status)
}

func TestRetrySweepNeverReprocessesExhaustedEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	p := env.dispatchedPayment(t, "100")

	row := &WebhookEvent{
		EventID:         node.Generate(),
		Provider:        "payout",
		ProviderEventID: "evt-exhausted",
		EventType:       "payout.completed",
		CorrelationID:   p.ExternalTransactionID,
		Payload:         payoutBody(t, "evt-exhausted", "payout.completed", p.ExternalTransactionID, ""),
		Status:          EventRetrying,
		RetryCount:      3,
	}
	require.NoError(t, env.svc.events.Create(ctx, row))

	require.NoError(t, env.svc.RetrySweep(ctx))

	after, err := env.svc.events.FindByProviderEvent(ctx, "payout", "evt-exhausted")
	require.NoError(t, err)
	require.Equal(t, EventAbandoned, after.Status)

	// The payment was never touched by the exhausted event.
	got, err := env.payments.Get(ctx, p.PaymentID)
	require.NoError(t, err)
	require.Equal(t, payment.StatusProcessing, got.Status)
}

func TestRetrySweepReappliesRetryingEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	p := env.dispatchedPayment(t, "100")

	row := &WebhookEvent{
		EventID:         node.Generate(),
		Provider:        "payout",
		ProviderEventID: "evt-retry",
		EventType:       "payout.completed",
		CorrelationID:   p.ExternalTransactionID,
		Payload:         payoutBody(t, "evt-retry", "payout.completed", p.ExternalTransactionID, ""),
		Status:          EventRetrying,
		RetryCount:      1,
	}
	require.NoError(t, env.svc.events.Create(ctx, row))

	require.NoError(t, env.svc.RetrySweep(ctx))

	after, err := env.svc.events.FindByProviderEvent(ctx, "payout", "evt-retry")
	require.NoError(t, err)
	require.Equal(t, EventProcessed, after.Status)

	got, err := env.payments.Get(ctx, p.PaymentID)
	require.NoError(t, err)
	require.Equal(t, payment.StatusCompleted, got.Status)
}
