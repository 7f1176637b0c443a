package webhook

import (
	"context"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"settlement-engine/pkg/config"
	"settlement-engine/pkg/errutil"
	"settlement-engine/services/payment"
)

// Service reconciles provider webhook events against the payment state
// machine. Every verified event is recorded; events that match nothing are
// acknowledged and kept for audit so providers stop redelivering them.
type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	events   Repository
	adapters Adapters
	payments *payment.Service
	retry    config.SettlementConfig
}

type ServiceParams struct {
	fx.In
	DB       *gorm.DB
	Node     *snowflake.Node
	Config   *config.Config
	Adapters Adapters
	Payments *payment.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		events:   NewRepository(p.DB),
		adapters: p.Adapters,
		payments: p.Payments,
		retry:    p.Config.Settlement,
	}
}

// Result is what the webhook endpoint acknowledges with.
type Result struct {
	Status    EventStatus `json:"status"`
	Processed bool        `json:"processed"`
	Duplicate bool        `json:"duplicate,omitempty"`
}

// Process runs one delivery through the reconciliation pipeline. Signature
// and schema failures return an error before any state is touched; every
// verified event produces exactly one webhook_events row.
func (s *Service) Process(ctx context.Context, provider string, header http.Header, body []byte) (*Result, error) {
	span := trace.SpanFromContext(ctx)
	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("provider", provider),
	)

	adapter, ok := s.adapters.For(provider)
	if !ok {
		return nil, errutil.NotFound("unknown webhook provider", nil)
	}

	if err := adapter.Verify(header, body); err != nil {
		zapLog.Warn("webhook verification failed", zap.Error(err))
		return nil, err
	}

	event, err := adapter.Parse(body)
	if err != nil {
		return nil, err
	}

	existing, err := s.events.FindByProviderEvent(ctx, provider, event.ProviderEventID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		zapLog.Info("duplicate webhook delivery acknowledged",
			zap.String("provider_event_id", event.ProviderEventID),
			zap.String("status", string(existing.Status)),
		)
		return &Result{Status: existing.Status, Processed: false, Duplicate: true}, nil
	}

	row := &WebhookEvent{
		EventID:         s.node.Generate(),
		Provider:        provider,
		ProviderEventID: event.ProviderEventID,
		EventType:       event.Type,
		CorrelationID:   event.CorrelationID,
		Payload:         datatypes.JSON(body),
	}

	if event.Kind == KindUnknown {
		row.Status = EventIgnored
		if err := s.events.Create(ctx, row); err != nil {
			return nil, err
		}
		zapLog.Info("webhook event type ignored", zap.String("event_type", event.Type))
		return &Result{Status: EventIgnored}, nil
	}

	row.Status, row.LastError = s.apply(ctx, event)
	if row.Status == EventRetrying {
		row.RetryCount = 1
	}
	if err := s.events.Create(ctx, row); err != nil {
		return nil, err
	}

	zapLog.Info("webhook event reconciled",
		zap.String("provider_event_id", event.ProviderEventID),
		zap.String("event_type", event.Type),
		zap.String("correlation_id", event.CorrelationID),
		zap.String("status", string(row.Status)),
	)
	return &Result{Status: row.Status, Processed: row.Status == EventProcessed}, nil
}

// apply resolves the correlated payment and drives its transition. The
// returned status is the disposition for the event row.
func (s *Service) apply(ctx context.Context, event *Event) (EventStatus, string) {
	p, err := s.payments.FindByCorrelation(ctx, event.CorrelationID)
	if err != nil {
		return EventRetrying, err.Error()
	}
	if p == nil {
		return EventUnmatched, ""
	}

	switch event.Kind {
	case KindSucceeded:
		_, err = s.payments.Complete(ctx, p.PaymentID, event.CorrelationID)
	case KindFailed:
		_, err = s.payments.Fail(ctx, p.PaymentID, event.Message)
	case KindCanceled:
		_, err = s.payments.Cancel(ctx, p.PaymentID, event.Message)
	}
	if err == nil {
		return EventProcessed, ""
	}

	// A business conflict will never resolve on retry; record it and ack.
	switch errutil.StatusOf(err) {
	case errutil.StatusConflict, errutil.StatusBadRequest, errutil.StatusNotFound:
		return EventProcessed, err.Error()
	default:
		return EventRetrying, err.Error()
	}
}
