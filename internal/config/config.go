package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	DatabaseDriver string        `mapstructure:"DATABASE_DRIVER"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32         `mapstructure:"DB_MIN_CONNS"`
	AuthSigningKey string        `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer     string        `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string        `mapstructure:"AUTH_AUDIENCE"`
	CronSecret     string        `mapstructure:"CRON_SECRET"`
	Timezone       string        `mapstructure:"TIMEZONE"`
	NotifyChannels []string      `mapstructure:"NOTIFY_CHANNELS"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`

	WhatsAppAPIURL        string `mapstructure:"WHATSAPP_API_URL"`
	WhatsAppPhoneNumberID string `mapstructure:"WHATSAPP_PHONE_NUMBER_ID"`
	WhatsAppAccessToken   string `mapstructure:"WHATSAPP_ACCESS_TOKEN"`
	WhatsAppLanguage      string `mapstructure:"WHATSAPP_LANGUAGE"`

	GatewayTimeout time.Duration `mapstructure:"GATEWAY_TIMEOUT"`
	GatewayRPS     float64       `mapstructure:"GATEWAY_RPS"`

	SMSEnabled         bool   `mapstructure:"SMS_ENABLED"`
	AWSRegion          string `mapstructure:"AWS_REGION"`
	AWSEndpointURL     string `mapstructure:"AWS_ENDPOINT_URL"`
	AWSAccessKeyID     string `mapstructure:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `mapstructure:"AWS_SECRET_ACCESS_KEY"`

	SendLedger             string `mapstructure:"SEND_LEDGER"`
	DynamoTableSendRecords string `mapstructure:"DYNAMO_TABLE_SEND_RECORDS"`

	PollConcurrency int           `mapstructure:"POLL_CONCURRENCY"`
	PollTimeout     time.Duration `mapstructure:"POLL_TIMEOUT"`
	PollInterval    time.Duration `mapstructure:"POLL_INTERVAL"`
}

var envKeys = []string{
	"PORT", "ENV", "DATABASE_DRIVER", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"AUTH_SIGNING_KEY", "AUTH_ISSUER", "AUTH_AUDIENCE", "CRON_SECRET", "TIMEZONE",
	"NOTIFY_CHANNELS", "CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"WHATSAPP_API_URL", "WHATSAPP_PHONE_NUMBER_ID", "WHATSAPP_ACCESS_TOKEN", "WHATSAPP_LANGUAGE",
	"GATEWAY_TIMEOUT", "GATEWAY_RPS",
	"SMS_ENABLED", "AWS_REGION", "AWS_ENDPOINT_URL", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY",
	"SEND_LEDGER", "DYNAMO_TABLE_SEND_RECORDS",
	"POLL_CONCURRENCY", "POLL_TIMEOUT", "POLL_INTERVAL",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DATABASE_DRIVER", "postgres")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("TIMEZONE", "America/Mexico_City")
	v.SetDefault("NOTIFY_CHANNELS", "whatsapp")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("WHATSAPP_API_URL", "https://graph.facebook.com/v19.0")
	v.SetDefault("WHATSAPP_LANGUAGE", "es_MX")
	v.SetDefault("GATEWAY_TIMEOUT", "10s")
	v.SetDefault("GATEWAY_RPS", 20)
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("SEND_LEDGER", "sql")
	v.SetDefault("DYNAMO_TABLE_SEND_RECORDS", "notification_send_records")
	v.SetDefault("POLL_CONCURRENCY", 8)
	v.SetDefault("POLL_TIMEOUT", "2m")
	v.SetDefault("POLL_INTERVAL", "0s")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(cfg.CORSOrigins, v.GetString("CORS_ORIGINS"))
	cfg.NotifyChannels = splitList(cfg.NotifyChannels, v.GetString("NOTIFY_CHANNELS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: running in DEVELOPMENT mode (ENV=development); requests without a token act as dev-user")
	}

	return cfg, nil
}

// splitList normalises comma separated env values; viper may hand them back
// as a single element or with untrimmed spaces.
func splitList(parsed []string, raw string) []string {
	if raw == "" {
		return parsed
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Location resolves TIMEZONE. Calendar-day arithmetic for expiry thresholds
// and send records happens in this zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be \"postgres\" or \"sqlite\", got %q", c.DatabaseDriver)
	}
	switch c.SendLedger {
	case "sql", "dynamodb":
	default:
		return fmt.Errorf("SEND_LEDGER must be \"sql\" or \"dynamodb\", got %q", c.SendLedger)
	}
	if !c.IsDev() && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required outside development")
	}
	if c.IsProduction() && c.CronSecret == "" {
		return fmt.Errorf("CRON_SECRET is required in production")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	for _, ch := range c.NotifyChannels {
		switch ch {
		case "whatsapp":
			if c.IsProduction() && (c.WhatsAppPhoneNumberID == "" || c.WhatsAppAccessToken == "") {
				return fmt.Errorf("WHATSAPP_PHONE_NUMBER_ID and WHATSAPP_ACCESS_TOKEN are required for the whatsapp channel")
			}
		case "sms":
			if !c.SMSEnabled {
				return fmt.Errorf("NOTIFY_CHANNELS includes sms but SMS_ENABLED is false")
			}
		default:
			return fmt.Errorf("unknown notify channel %q", ch)
		}
	}
	if c.GatewayTimeout <= 0 || c.GatewayTimeout > time.Minute {
		return fmt.Errorf("GATEWAY_TIMEOUT must be between 0 and 1m, got %s", c.GatewayTimeout)
	}
	if c.PollConcurrency <= 0 {
		return fmt.Errorf("POLL_CONCURRENCY must be positive, got %d", c.PollConcurrency)
	}
	return nil
}
