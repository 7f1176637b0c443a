package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"settlement-engine/pkg/client"
	"settlement-engine/pkg/config"
	"settlement-engine/pkg/db"
	"settlement-engine/pkg/gen"
	"settlement-engine/pkg/logger"
	"settlement-engine/pkg/redis"
	"settlement-engine/pkg/task"
	"settlement-engine/services/bonus"
	"settlement-engine/services/ledger"
	"settlement-engine/services/payment"
	"settlement-engine/services/webhook"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		task.Client,
		task.Server,
		gen.Module,
		client.Module,
		bonus.Module,
		ledger.Module,
		payment.Module,
		webhook.Module,
		webhook.Worker,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	fx.New(opts...).Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})
