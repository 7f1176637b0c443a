package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var config = viper.New()

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	Server     struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Database struct {
		Type           string `mapstructure:"TYPE"`
		Host           string `mapstructure:"HOST"`
		Port           string `mapstructure:"PORT"`
		DBNAME         string `mapstructure:"DBNAME"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		SSLMode        string `mapstructure:"SSLMODE"`
		Timezone       string `mapstructure:"TIMEZONE"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConn     int           `mapstructure:"MAX_OPEN_CONN"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	Providers struct {
		Card struct {
			APIKey        string `mapstructure:"API_KEY"`
			WebhookSecret string `mapstructure:"WEBHOOK_SECRET"`
		} `mapstructure:"CARD"`
		Payout struct {
			BaseURL       string `mapstructure:"BASE_URL"`
			APIKey        string `mapstructure:"API_KEY"`
			WebhookSecret string `mapstructure:"WEBHOOK_SECRET"`
		} `mapstructure:"PAYOUT"`
		Timeout time.Duration `mapstructure:"TIMEOUT"`
	} `mapstructure:"PROVIDERS"`
	Collaborators struct {
		CampaignURL string        `mapstructure:"CAMPAIGN_URL"`
		UserURL     string        `mapstructure:"USER_URL"`
		Timeout     time.Duration `mapstructure:"TIMEOUT"`
	} `mapstructure:"COLLABORATORS"`
	Settlement SettlementConfig `mapstructure:"SETTLEMENT"`
}

// SettlementConfig tunes the webhook retry sweep.
type SettlementConfig struct {
	RetryInterval    time.Duration `mapstructure:"RETRY_INTERVAL"`
	RetryMaxAge      time.Duration `mapstructure:"RETRY_MAX_AGE"`
	RetryMaxAttempts int           `mapstructure:"RETRY_MAX_ATTEMPTS"`
	RetryBatchSize   int           `mapstructure:"RETRY_BATCH_SIZE"`
}

var Module = fx.Module("config", fx.Provide(LoadConfig))

func LoadConfig() *Config {
	config.SetConfigName("config")
	config.SetConfigType("yaml")
	config.AddConfigPath(".")

	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()

	setDefaults()

	if err := config.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			zap.L().Error("failed to read config file", zap.Error(err))
			os.Exit(1)
		}
	}

	var cfg Config
	if err := config.Unmarshal(&cfg); err != nil {
		zap.L().Error("failed to unmarshal config", zap.Error(err))
		os.Exit(1)
	}

	return &cfg
}

func setDefaults() {
	config.SetDefault("APP_ENV", "development")
	config.SetDefault("APP_NAME", "settlement-engine")
	config.SetDefault("HTTP_SERVER.ADDR", ":8080")
	config.SetDefault("HTTP_SERVER.READ_TIMEOUT", "15s")
	config.SetDefault("HTTP_SERVER.WRITE_TIMEOUT", "30s")
	config.SetDefault("HTTP_SERVER.IDLE_TIMEOUT", "60s")
	config.SetDefault("DATABASE.TYPE", "postgres")
	config.SetDefault("DATABASE.SSLMODE", "disable")
	config.SetDefault("REDIS.ADDR", "127.0.0.1:6379")
	config.SetDefault("PROVIDERS.TIMEOUT", "30s")
	config.SetDefault("COLLABORATORS.TIMEOUT", "30s")
	config.SetDefault("SETTLEMENT.RETRY_INTERVAL", "5m")
	config.SetDefault("SETTLEMENT.RETRY_MAX_AGE", "24h")
	config.SetDefault("SETTLEMENT.RETRY_MAX_ATTEMPTS", 3)
	config.SetDefault("SETTLEMENT.RETRY_BATCH_SIZE", 25)
}
