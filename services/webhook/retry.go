package webhook

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"settlement-engine/pkg/config"
)

// TaskRetrySweep re-drives webhook events parked in retrying.
const TaskRetrySweep = "webhook:retry_sweep"

func NewSweepTask() *asynq.Task {
	return asynq.NewTask(TaskRetrySweep, nil, asynq.Queue("default"), asynq.MaxRetry(0))
}

// RegisterSweepHandler binds the sweep task to the worker mux.
func RegisterSweepHandler(mux *asynq.ServeMux, svc *Service) {
	mux.HandleFunc(TaskRetrySweep, func(ctx context.Context, _ *asynq.Task) error {
		return svc.RetrySweep(ctx)
	})
}

// RegisterScheduler enqueues a sweep task on a fixed interval for the
// lifetime of the process.
func RegisterScheduler(lc fx.Lifecycle, client *asynq.Client, cfg *config.Config) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				ticker := time.NewTicker(cfg.Settlement.RetryInterval)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						if _, err := client.EnqueueContext(ctx, NewSweepTask()); err != nil {
							zap.L().Error("failed to enqueue webhook retry sweep", zap.Error(err))
						}
					}
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			<-done
			return nil
		},
	})
}

// RetrySweep abandons events past the retry window and re-applies the rest.
func (s *Service) RetrySweep(ctx context.Context) error {
	now := time.Now()
	cutoff := now.Add(-s.retry.RetryMaxAge)

	abandoned, err := s.events.AbandonStale(ctx, cutoff, s.retry.RetryMaxAttempts)
	if err != nil {
		return err
	}
	if abandoned > 0 {
		zap.L().Warn("abandoned webhook events past retry window", zap.Int64("count", abandoned))
	}

	events, err := s.events.ListRetrying(ctx, cutoff, s.retry.RetryMaxAttempts, s.retry.RetryBatchSize)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range events {
		event := events[i]
		g.Go(func() error {
			s.retryEvent(ctx, &event)
			return nil
		})
	}
	return g.Wait()
}

func (s *Service) retryEvent(ctx context.Context, row *WebhookEvent) {
	zapLog := zap.L().With(
		zap.String("event_id", row.EventID.String()),
		zap.String("provider", row.Provider),
		zap.Int("retry_count", row.RetryCount),
	)

	adapter, ok := s.adapters.For(row.Provider)
	if !ok {
		row.Status = EventAbandoned
		row.LastError = "no adapter for provider"
	} else if event, err := adapter.Parse(row.Payload); err != nil {
		row.Status = EventAbandoned
		row.LastError = err.Error()
	} else {
		row.Status, row.LastError = s.apply(ctx, event)
		if row.Status == EventRetrying {
			row.RetryCount++
			if row.RetryCount >= s.retry.RetryMaxAttempts {
				row.Status = EventAbandoned
			}
		}
	}

	if err := s.events.Save(ctx, row); err != nil {
		zapLog.Error("failed to persist webhook retry result", zap.Error(err))
		return
	}
	if row.Status == EventAbandoned {
		zapLog.Warn("webhook event abandoned", zap.String("last_error", row.LastError))
		return
	}
	zapLog.Info("webhook event retried", zap.String("status", string(row.Status)))
}
