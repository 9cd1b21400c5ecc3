package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store drivers.
const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreMemory   = "memory"
)

// Mail drivers.
const (
	MailSMTP     = "smtp"
	MailPostmark = "postmark"
)

// Config holds notification service configuration loaded from the environment.
type Config struct {
	AppName   string `env:"APP_NAME" envDefault:"notification_service"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
	HTTPPort  string `env:"HTTP_PORT" envDefault:"3003"`

	RabbitURL          string        `env:"RABBITMQ_URL"`
	ReconnectDelay     time.Duration `env:"RECONNECT_DELAY" envDefault:"5s"`
	EventsExchange     string        `env:"EVENTS_EXCHANGE" envDefault:"notifications_events"`
	DeadLetterExchange string        `env:"DEAD_LETTER_EXCHANGE" envDefault:"notifications_dlx"`
	Queue              string        `env:"NOTIFICATIONS_QUEUE" envDefault:"notifications_queue"`
	DeadLetterQueue    string        `env:"NOTIFICATIONS_DLQ" envDefault:"notifications_dead_letter_queue"`

	StoreDriver   string `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL   string `env:"DATABASE_URL"`
	MongoURL      string `env:"MONGODB_URL"`
	MongoDatabase string `env:"MONGODB_DATABASE" envDefault:"notifications"`

	RedisURL          string        `env:"REDIS_URL"`
	DirectoryCacheTTL time.Duration `env:"DIRECTORY_CACHE_TTL" envDefault:"1h"`

	DirectoryURL           string        `env:"DIRECTORY_URL" envDefault:"http://localhost:4000/graphql"`
	DirectoryLoginEmail    string        `env:"DIRECTORY_LOGIN_EMAIL"`
	DirectoryLoginPassword string        `env:"DIRECTORY_LOGIN_PASSWORD"`
	DirectoryTokenTTL      time.Duration `env:"DIRECTORY_TOKEN_TTL" envDefault:"10m"`
	DirectoryTimeout       time.Duration `env:"DIRECTORY_TIMEOUT" envDefault:"10s"`
	DirectoryWarmOnStart   bool          `env:"DIRECTORY_WARM_ON_START" envDefault:"false"`

	MailDriver           string `env:"MAIL_DRIVER" envDefault:"smtp"`
	MailFrom             string `env:"MAIL_FROM"`
	SMTPHost             string `env:"SMTP_HOST"`
	SMTPPort             int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser             string `env:"SMTP_USER"`
	SMTPPassword         string `env:"SMTP_PASSWORD"`
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`

	AppBaseURL string `env:"APP_BASE_URL"`

	RetryMaxAttempts    int           `env:"RETRY_MAX_ATTEMPTS" envDefault:"3"`
	RetryInitialBackoff time.Duration `env:"RETRY_INITIAL_BACKOFF" envDefault:"500ms"`
	RetryMaxBackoff     time.Duration `env:"RETRY_MAX_BACKOFF" envDefault:"5s"`
}

// Load loads configuration and performs basic validation.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	c.MailDriver = strings.ToLower(strings.TrimSpace(c.MailDriver))

	var missing []string
	if c.RabbitURL == "" {
		missing = append(missing, "RABBITMQ_URL")
	}
	if c.RedisURL == "" {
		missing = append(missing, "REDIS_URL")
	}
	if c.MailFrom == "" {
		missing = append(missing, "MAIL_FROM")
	}

	switch c.StoreDriver {
	case StorePostgres:
		if c.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case StoreMongo:
		if c.MongoURL == "" {
			missing = append(missing, "MONGODB_URL")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.MailDriver {
	case MailSMTP:
		if c.SMTPHost == "" {
			missing = append(missing, "SMTP_HOST")
		}
	case MailPostmark:
		if c.PostmarkServerToken == "" {
			missing = append(missing, "POSTMARK_SERVER_TOKEN")
		}
		if c.PostmarkAccountToken == "" {
			missing = append(missing, "POSTMARK_ACCOUNT_TOKEN")
		}
	default:
		return fmt.Errorf("unsupported MAIL_DRIVER %q", c.MailDriver)
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}
	return nil
}
