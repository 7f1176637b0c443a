package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/transfer"
	"go.uber.org/zap"

	"settlement-engine/pkg/config"
)

var centsPerUnit = decimal.NewFromInt(100)

// Rejection is a definitive provider-side decline. Anything else returned by
// a provider call is treated as ambiguous and leaves the payment processing.
type Rejection struct {
	Reason string
}

func (r Rejection) Error() string {
	return "provider rejected payment: " + r.Reason
}

// Provider dispatches a payment onto an external rail and returns the
// provider-side correlation id a later webhook will carry.
type Provider interface {
	Dispatch(ctx context.Context, p *Payment) (string, error)
}

// Providers routes payments to the rail their method selects.
type Providers map[Method]Provider

func (p Providers) For(method Method) (Provider, bool) {
	provider, ok := p[method]
	return provider, ok
}

// NewProviders wires the card rail (Stripe transfers), the payout rail
// (Fanbasis HTTP API) and the manual rail.
func NewProviders(cfg *config.Config) Providers {
	manual := &manualProvider{}
	return Providers{
		MethodStripe:       newStripeProvider(cfg),
		MethodFanbasis:     newFanbasisProvider(cfg),
		MethodManual:       manual,
		MethodBankTransfer: manual,
	}
}

type stripeProvider struct {
	apiKey string
}

func newStripeProvider(cfg *config.Config) *stripeProvider {
	stripe.Key = cfg.Providers.Card.APIKey
	return &stripeProvider{apiKey: cfg.Providers.Card.APIKey}
}

func (s *stripeProvider) Dispatch(ctx context.Context, p *Payment) (string, error) {
	if p.ProviderAccount == "" {
		return "", Rejection{Reason: "no connected account on file"}
	}

	params := &stripe.TransferParams{
		Amount:      stripe.Int64(p.Amount.Mul(centsPerUnit).IntPart()),
		Currency:    stripe.String(string(stripe.CurrencyUSD)),
		Destination: stripe.String(p.ProviderAccount),
	}
	params.Context = ctx
	params.IdempotencyKey = stripe.String("payment-" + p.PaymentID.String())
	params.AddMetadata("payment_id", p.PaymentID.String())
	params.AddMetadata("creator_id", p.CreatorID)

	tr, err := transfer.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			switch stripeErr.Type {
			case stripe.ErrorTypeInvalidRequest, stripe.ErrorTypeCard:
				return "", Rejection{Reason: stripeErr.Msg}
			}
		}
		return "", err
	}

	return tr.ID, nil
}

type fanbasisProvider struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func newFanbasisProvider(cfg *config.Config) *fanbasisProvider {
	return &fanbasisProvider{
		baseURL: cfg.Providers.Payout.BaseURL,
		apiKey:  cfg.Providers.Payout.APIKey,
		http:    &http.Client{Timeout: cfg.Providers.Timeout},
	}
}

func (f *fanbasisProvider) Dispatch(ctx context.Context, p *Payment) (string, error) {
	body, err := json.Marshal(map[string]string{
		"reference":  p.PaymentID.String(),
		"creator_id": p.CreatorID,
		"amount":     p.Amount.StringFixed(2),
		"currency":   "USD",
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+"/v1/payouts", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.apiKey)
	req.Header.Set("Idempotency-Key", p.PaymentID.String())

	resp, err := f.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return "", fmt.Errorf("payout provider returned %d", resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		var decline struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&decline)
		if decline.Message == "" {
			decline.Message = fmt.Sprintf("payout provider returned %d", resp.StatusCode)
		}
		return "", Rejection{Reason: decline.Message}
	}

	var out struct {
		PayoutID string `json:"payout_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.PayoutID, nil
}

// manualProvider covers rails where money moves outside any API. The payment
// stays processing until an operator confirms it through the payout webhook.
type manualProvider struct{}

func (m *manualProvider) Dispatch(ctx context.Context, p *Payment) (string, error) {
	ref := "manual-" + p.PaymentID.String()
	zap.L().Info("manual payment awaiting operator confirmation",
		zap.String("payment_id", p.PaymentID.String()),
		zap.String("reference", ref),
	)
	return ref, nil
}
