package payment

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
	"settlement-engine/pkg/config"
	"settlement-engine/pkg/errutil"
	"settlement-engine/pkg/money"
	"settlement-engine/services/ledger"
)

// Service is the payment state machine. It exclusively owns payment rows:
// pending -> processing -> {completed | failed | cancelled}, with
// failed -> pending through an explicit retry.
type Service struct {
	db        *gorm.DB
	node      *snowflake.Node
	payments  Repository
	ledger    *ledger.Service
	providers Providers
	campaign  client.CampaignClient
	timeout   time.Duration
}

type ServiceParams struct {
	fx.In
	DB        *gorm.DB
	Node      *snowflake.Node
	Config    *config.Config
	Ledger    *ledger.Service
	Providers Providers
	Campaign  client.CampaignClient `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:        p.DB,
		node:      p.Node,
		payments:  NewRepository(p.DB),
		ledger:    p.Ledger,
		providers: p.Providers,
		campaign:  p.Campaign,
		timeout:   p.Config.Providers.Timeout,
	}
}

// CreateInput describes a new money movement.
type CreateInput struct {
	CreatorID       string
	CampaignID      *string
	EarningID       *snowflake.ID
	Amount          decimal.Decimal
	PaymentType     Type
	Method          Method
	ProviderAccount string
}

// Create validates and persists a payment in pending.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Payment, error) {
	if in.CreatorID == "" {
		return nil, errutil.ValidationFailed("creator_id is required", nil)
	}
	if in.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, errutil.ValidationFailed("payment amount must be positive", nil)
	}
	if !in.PaymentType.Valid() {
		return nil, errutil.ValidationFailed("unknown payment_type", nil)
	}
	if !in.Method.Valid() {
		return nil, errutil.ValidationFailed("unknown payment_method", nil)
	}

	now := time.Now()
	p := &Payment{
		PaymentID:       s.node.Generate(),
		CreatorID:       in.CreatorID,
		CampaignID:      in.CampaignID,
		EarningID:       in.EarningID,
		Amount:          money.Round(in.Amount),
		PaymentType:     in.PaymentType,
		Method:          in.Method,
		Status:          StatusPending,
		ProviderAccount: in.ProviderAccount,
		InitiatedAt:     &now,
	}

	if err := s.payments.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Get looks up one payment.
func (s *Service) Get(ctx context.Context, paymentID snowflake.ID) (*Payment, error) {
	p, err := s.payments.GetByID(ctx, paymentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errutil.NotFound("payment not found", nil)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// FindByCorrelation resolves a payment by a provider correlation id.
func (s *Service) FindByCorrelation(ctx context.Context, correlationID string) (*Payment, error) {
	return s.payments.FindByCorrelation(ctx, correlationID)
}

// Dispatch moves a pending payment to processing and calls the provider.
// A definitive provider rejection fails the payment; a timeout or transport
// error is ambiguous and leaves it processing for the webhook or retry
// worker to resolve.
func (s *Service) Dispatch(ctx context.Context, paymentID snowflake.ID) (*Payment, error) {
	span := trace.SpanFromContext(ctx)
	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("payment_id", paymentID.String()),
	)

	p, err := s.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusPending {
		return nil, errutil.Conflict("payment is not pending", nil)
	}

	provider, ok := s.providers.For(p.Method)
	if !ok {
		return nil, errutil.UnprocessableEntity("no provider for payment method", nil)
	}

	now := time.Now()
	p.Status = StatusProcessing
	p.ProcessedAt = &now
	if err := s.payments.Save(ctx, p); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	externalID, err := provider.Dispatch(callCtx, p)
	if err != nil {
		var rejection Rejection
		if errors.As(err, &rejection) {
			zapLog.Warn("provider rejected payment", zap.String("reason", rejection.Reason))
			return s.failLocked(ctx, p, rejection.Reason)
		}
		// Ambiguous outcome: the provider may still settle. Stay processing.
		zapLog.Warn("provider call unresolved, awaiting webhook", zap.Error(err))
		return p, nil
	}

	p.ExternalTransactionID = externalID
	if err := s.payments.Save(ctx, p); err != nil {
		return nil, err
	}

	zapLog.Info("payment dispatched",
		zap.String("method", string(p.Method)),
		zap.String("external_transaction_id", externalID),
	)
	return p, nil
}

// Complete applies a provider-confirmed success. The status flip, the
// application record and the ledger increment commit in one transaction, so
// a re-delivered success event is a no-op. Returns whether this call applied
// the payment.
func (s *Service) Complete(ctx context.Context, paymentID snowflake.ID, providerRef string) (bool, error) {
	applied := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.payments.WithTrx(tx)

		p, err := repo.GetByID(ctx, paymentID)
		if err != nil {
			return err
		}

		if p.Status == StatusCompleted {
			return nil
		}

		// Replay guard independent of the status column: an existing
		// application row means a previous delivery already settled this
		// payment.
		alreadyApplied, err := repo.HasApplication(ctx, p.PaymentID)
		if err != nil {
			return err
		}
		if alreadyApplied {
			return nil
		}

		if p.Status != StatusProcessing {
			return errutil.Conflict("payment cannot complete from status "+string(p.Status), nil)
		}

		now := time.Now()
		p.Status = StatusCompleted
		p.CompletedAt = &now
		if providerRef != "" {
			p.ProviderReference = providerRef
		}
		if err := repo.Save(ctx, p); err != nil {
			return err
		}

		if p.EarningID != nil {
			if err := repo.CreateApplication(ctx, &Application{
				PaymentID: p.PaymentID,
				EarningID: *p.EarningID,
				Amount:    p.Amount,
			}); err != nil {
				return err
			}
			if err := s.ledger.ApplyPayment(ctx, tx, *p.EarningID, p.Amount); err != nil {
				return err
			}
		}

		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if applied {
		s.notifySpend(ctx, paymentID)
	}
	return applied, nil
}

// notifySpend tells the campaign collaborator about settled spend.
// Best-effort: failure is logged, never propagated.
func (s *Service) notifySpend(ctx context.Context, paymentID snowflake.ID) {
	if s.campaign == nil {
		return
	}

	p, err := s.Get(ctx, paymentID)
	if err != nil || p.CampaignID == nil {
		return
	}

	if err := s.campaign.NotifySpendUpdate(ctx, *p.CampaignID, p.Amount); err != nil {
		zap.L().Warn("failed to notify campaign spend update",
			zap.String("payment_id", paymentID.String()),
			zap.String("campaign_id", *p.CampaignID),
			zap.Error(err),
		)
	}
}

// Fail applies a provider-confirmed failure. The ledger is not touched.
func (s *Service) Fail(ctx context.Context, paymentID snowflake.ID, reason string) (*Payment, error) {
	p, err := s.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusProcessing && p.Status != StatusPending {
		return nil, errutil.Conflict("payment cannot fail from status "+string(p.Status), nil)
	}
	return s.failLocked(ctx, p, reason)
}

func (s *Service) failLocked(ctx context.Context, p *Payment, reason string) (*Payment, error) {
	now := time.Now()
	p.Status = StatusFailed
	p.FailedAt = &now
	p.FailureReason = reason
	if err := s.payments.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Cancel stops a payment that has not reached a terminal state. An in-flight
// provider call cannot be aborted; cancelling a processing payment only
// records the cancellation this side.
func (s *Service) Cancel(ctx context.Context, paymentID snowflake.ID, reason string) (*Payment, error) {
	p, err := s.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusPending && p.Status != StatusProcessing {
		return nil, errutil.Conflict("payment cannot be cancelled from status "+string(p.Status), nil)
	}

	p.Status = StatusCancelled
	if reason != "" {
		p.FailureReason = reason
	}
	if err := s.payments.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Retry re-enters a failed payment into the machine under the same row and
// dispatches a fresh provider attempt.
func (s *Service) Retry(ctx context.Context, paymentID snowflake.ID) (*Payment, error) {
	p, err := s.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusFailed {
		return nil, errutil.Conflict("only failed payments can be retried", nil)
	}

	p.Status = StatusPending
	p.FailureReason = ""
	p.FailedAt = nil
	p.ExternalTransactionID = ""
	if err := s.payments.Save(ctx, p); err != nil {
		return nil, err
	}

	return s.Dispatch(ctx, p.PaymentID)
}
