package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Log        LogConfig
	JWT        JWTConfig
	Telegram   TelegramConfig
	Processing ProcessingConfig
	Gateway    GatewayConfig
	Ledger     LedgerConfig
	Referral   ReferralConfig
	Cloudinary CloudinaryConfig
	RabbitMQ   RabbitMQConfig
	Admin      AdminConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	PublicURL    string // e.g. https://bot.example.com, used to build callback URLs
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Driver          string // mysql | postgres | sqlite
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	AcquireTimeout  time.Duration
}

type LogConfig struct {
	Level  string
	Format string // json | text
}

type JWTConfig struct {
	AccessSecret string
	AccessExpiry time.Duration
	Issuer       string
}

type TelegramConfig struct {
	Token       string
	Workers     int
	PollTimeout int
}

type ProcessingConfig struct {
	BaseURL     string
	SubmitPath  string
	APIKey      string
	Operation   string
	WebhookPath string
	Timeout     time.Duration
}

// GatewayConfig holds the payment gateway shop credentials.
type GatewayConfig struct {
	APIURL      string
	ShopID      string
	Token       string
	WebhookPath string
	Timeout     time.Duration
}

type LedgerConfig struct {
	RetryAttempts   int
	RetryBaseDelay  time.Duration
	RetryMaxDelay   time.Duration
	RetryMaxElapsed time.Duration
	TaskTimeout     time.Duration
	SweepInterval   time.Duration
	SweepBatch      int
}

type ReferralConfig struct {
	CommissionRate decimal.Decimal
	MinWithdrawal  decimal.Decimal
}

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

type RabbitMQConfig struct {
	URL      string
	Exchange string
}

type AdminConfig struct {
	IDs []int64
}

// Enabled reports whether result archiving is configured.
func (c CloudinaryConfig) Enabled() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.public_url", "http://localhost:8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "creditbot.db")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.acquire_timeout", 5*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("jwt.access_secret", "change-me-in-production")
	v.SetDefault("jwt.access_expiry", 12*time.Hour)
	v.SetDefault("jwt.issuer", "creditbot")

	v.SetDefault("telegram.workers", 32)
	v.SetDefault("telegram.poll_timeout", 60)

	v.SetDefault("processing.submit_path", "/process")
	v.SetDefault("processing.operation", "default")
	v.SetDefault("processing.webhook_path", "/webhook")
	v.SetDefault("processing.timeout", 2*time.Minute)

	v.SetDefault("gateway.api_url", "https://lk.rukassa.pro/api/v1/create")
	v.SetDefault("gateway.webhook_path", "/rukassa/webhook")
	v.SetDefault("gateway.timeout", 10*time.Second)

	v.SetDefault("ledger.retry_attempts", 4)
	v.SetDefault("ledger.retry_base_delay", 500*time.Millisecond)
	v.SetDefault("ledger.retry_max_delay", 5*time.Second)
	v.SetDefault("ledger.retry_max_elapsed", 20*time.Second)
	v.SetDefault("ledger.task_timeout", 24*time.Hour)
	v.SetDefault("ledger.sweep_interval", 10*time.Minute)
	v.SetDefault("ledger.sweep_batch", 100)

	v.SetDefault("referral.commission_rate", "0.5")
	v.SetDefault("referral.min_withdrawal", "100")

	v.SetDefault("cloudinary.folder", "results")
	v.SetDefault("rabbitmq.exchange", "creditbot.events")
}

// Load reads configuration from an optional .env file, an optional config.yaml and
// the environment (SERVER_PORT, DATABASE_DSN, GATEWAY_TOKEN, ...).
func Load() *Config {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	_ = v.ReadInConfig()

	return &Config{
		Server: ServerConfig{
			Port:         v.GetString("server.port"),
			Env:          v.GetString("server.env"),
			PublicURL:    strings.TrimRight(v.GetString("server.public_url"), "/"),
			ReadTimeout:  v.GetDuration("server.read_timeout"),
			WriteTimeout: v.GetDuration("server.write_timeout"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			DSN:             v.GetString("database.dsn"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
			AcquireTimeout:  v.GetDuration("database.acquire_timeout"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		JWT: JWTConfig{
			AccessSecret: v.GetString("jwt.access_secret"),
			AccessExpiry: v.GetDuration("jwt.access_expiry"),
			Issuer:       v.GetString("jwt.issuer"),
		},
		Telegram: TelegramConfig{
			Token:       v.GetString("telegram.token"),
			Workers:     v.GetInt("telegram.workers"),
			PollTimeout: v.GetInt("telegram.poll_timeout"),
		},
		Processing: ProcessingConfig{
			BaseURL:     v.GetString("processing.base_url"),
			SubmitPath:  v.GetString("processing.submit_path"),
			APIKey:      v.GetString("processing.api_key"),
			Operation:   v.GetString("processing.operation"),
			WebhookPath: v.GetString("processing.webhook_path"),
			Timeout:     v.GetDuration("processing.timeout"),
		},
		Gateway: GatewayConfig{
			APIURL:      v.GetString("gateway.api_url"),
			ShopID:      v.GetString("gateway.shop_id"),
			Token:       v.GetString("gateway.token"),
			WebhookPath: v.GetString("gateway.webhook_path"),
			Timeout:     v.GetDuration("gateway.timeout"),
		},
		Ledger: LedgerConfig{
			RetryAttempts:   v.GetInt("ledger.retry_attempts"),
			RetryBaseDelay:  v.GetDuration("ledger.retry_base_delay"),
			RetryMaxDelay:   v.GetDuration("ledger.retry_max_delay"),
			RetryMaxElapsed: v.GetDuration("ledger.retry_max_elapsed"),
			TaskTimeout:     v.GetDuration("ledger.task_timeout"),
			SweepInterval:   v.GetDuration("ledger.sweep_interval"),
			SweepBatch:      v.GetInt("ledger.sweep_batch"),
		},
		Referral: ReferralConfig{
			CommissionRate: decimalOr(v.GetString("referral.commission_rate"), decimal.NewFromFloat(0.5)),
			MinWithdrawal:  decimalOr(v.GetString("referral.min_withdrawal"), decimal.NewFromInt(100)),
		},
		Cloudinary: CloudinaryConfig{
			CloudName: v.GetString("cloudinary.cloud_name"),
			APIKey:    v.GetString("cloudinary.api_key"),
			APISecret: v.GetString("cloudinary.api_secret"),
			Folder:    v.GetString("cloudinary.folder"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      v.GetString("rabbitmq.url"),
			Exchange: v.GetString("rabbitmq.exchange"),
		},
		Admin: AdminConfig{
			IDs: parseIDs(v.GetString("admin.ids")),
		},
	}
}

func decimalOr(s string, fallback decimal.Decimal) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return d
}

// parseIDs parses a comma separated list of Telegram user ids, skipping garbage.
func parseIDs(s string) []int64 {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err == nil && id > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

// IsAdmin reports whether the Telegram user id is configured as an administrator.
func (c AdminConfig) IsAdmin(userID int64) bool {
	for _, id := range c.IDs {
		if id == userID {
			return true
		}
	}
	return false
}
