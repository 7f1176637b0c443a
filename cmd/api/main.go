package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"settlement-engine/pkg/client"
	"settlement-engine/pkg/config"
	"settlement-engine/pkg/db"
	"settlement-engine/pkg/gen"
	"settlement-engine/pkg/health"
	"settlement-engine/pkg/logger"
	"settlement-engine/pkg/redis"
	"settlement-engine/pkg/server"
	"settlement-engine/pkg/task"
	"settlement-engine/services/bonus"
	"settlement-engine/services/ledger"
	"settlement-engine/services/payment"
	"settlement-engine/services/referral"
	"settlement-engine/services/schedule"
	"settlement-engine/services/webhook"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		task.Client,
		gen.Module,
		client.Module,
		server.Module,
		health.Module,
		bonus.Module,
		bonus.Gateway,
		ledger.Module,
		ledger.Gateway,
		payment.Module,
		payment.Gateway,
		webhook.Module,
		webhook.Gateway,
		schedule.Module,
		schedule.Gateway,
		referral.Module,
		referral.Gateway,
		fx.Invoke(autoMigrate),
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

func autoMigrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&bonus.Tier{},
		&bonus.LeaderboardRule{},
		&ledger.Entry{},
		&payment.Payment{},
		&payment.Application{},
		&webhook.WebhookEvent{},
		&schedule.PaymentSchedule{},
		&referral.Referral{},
	)
}
