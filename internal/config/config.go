package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

// Provider backends.
const (
	ProviderNone    = "none"
	ProviderSES     = "ses"
	ProviderWebhook = "webhook"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RedisURL    string `env:"REDIS_URL"`
	APIPort     int    `env:"API_PORT,default=8080"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`

	// Provider selects the delivery backend: ses, webhook, or none.
	// With none the API still serves prepare, dry runs, tracking and
	// analytics; sends fail with a configuration error.
	Provider   string `env:"EMAIL_PROVIDER,default=none"`
	WebhookURL string `env:"WEBHOOK_URL"`

	AWSRegion          string `env:"AWS_REGION"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`

	SESFromEmail string `env:"SES_FROM_EMAIL"`
	SESFromName  string `env:"SES_FROM_NAME"`

	TrackingSecret string `env:"TRACKING_SECRET"`
	CronSecret     string `env:"CRON_SECRET"`
	PublicBaseURL  string `env:"PUBLIC_BASE_URL,default=http://localhost:8080"`

	RatePerSec    float64 `env:"RATE_PER_SEC,default=1"`
	MaxRatePerSec float64 `env:"MAX_RATE_PER_SEC,default=14"`

	SchedulerInterval     time.Duration `env:"SCHEDULER_INTERVAL,default=1m"`
	SchedulerMaxCampaigns int           `env:"SCHEDULER_MAX_CAMPAIGNS,default=10"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = ProviderNone
	}

	switch c.Provider {
	case ProviderNone:
	case ProviderSES:
		if strings.TrimSpace(c.SESFromEmail) == "" {
			return fmt.Errorf("SES_FROM_EMAIL is required when EMAIL_PROVIDER=ses")
		}
	case ProviderWebhook:
		if strings.TrimSpace(c.WebhookURL) == "" {
			return fmt.Errorf("WEBHOOK_URL is required when EMAIL_PROVIDER=webhook")
		}
	default:
		return fmt.Errorf("unknown EMAIL_PROVIDER %q", c.Provider)
	}

	if c.RatePerSec <= 0 {
		return fmt.Errorf("RATE_PER_SEC must be positive, got %v", c.RatePerSec)
	}
	if c.MaxRatePerSec <= 0 {
		return fmt.Errorf("MAX_RATE_PER_SEC must be positive, got %v", c.MaxRatePerSec)
	}
	if c.RatePerSec > c.MaxRatePerSec {
		return fmt.Errorf("RATE_PER_SEC %v exceeds MAX_RATE_PER_SEC %v", c.RatePerSec, c.MaxRatePerSec)
	}

	return nil
}

// FromEmail is the sender address used regardless of backend.
func (c *Config) FromEmail() string {
	return strings.TrimSpace(c.SESFromEmail)
}
