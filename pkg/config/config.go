package config

import (
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort              string `env:"SERVER_PORT,default=8080"`
	Environment             string `env:"ENVIRONMENT,default=development"`
	FirebaseProject         string `env:"FIREBASE_PROJECT_ID"`
	FirebaseCredentialsJSON string `env:"FIREBASE_SERVICE_ACCOUNT_JSON"`
	FirebaseCredentialsPath string `env:"FIREBASE_SERVICE_ACCOUNT_PATH"`
	StorageDriver           string `env:"STORAGE_DRIVER,default=firestore"` // firestore | memory
	InternalAPIKey          string `env:"INTERNAL_API_KEY"`
	AllowedOrigins          string `env:"ALLOWED_ORIGINS"` // comma separated, empty allows any

	Moderation ModerationConfig
	Offers     OfferConfig
	Payments   PaymentConfig
	RateLimit  RateLimitConfig
}

type ModerationConfig struct {
	WebhookURL     string        `env:"MODERATION_WEBHOOK_URL"`
	WebhookAPIKey  string        `env:"MODERATION_WEBHOOK_API_KEY"`
	WebhookTimeout time.Duration `env:"MODERATION_WEBHOOK_TIMEOUT,default=5s"`
	Placeholder    string        `env:"MODERATION_PLACEHOLDER"`
	ExtraKeywords  string        `env:"MODERATION_EXTRA_KEYWORDS"` // comma separated
	ListenEnabled  bool          `env:"MODERATION_LISTEN_ENABLED,default=true"`
	ListenLookback time.Duration `env:"MODERATION_LISTEN_LOOKBACK,default=10m"`
	ListenWindow   time.Duration `env:"MODERATION_LISTEN_WINDOW,default=15m"`
	Shards         int           `env:"MODERATION_SHARDS,default=8"`
	ShardBuffer    int           `env:"MODERATION_SHARD_BUFFER,default=256"`
	MaxAttempts    int           `env:"MODERATION_MAX_ATTEMPTS,default=5"`
	RetryBackoff   time.Duration `env:"MODERATION_RETRY_BACKOFF,default=500ms"`
}

type OfferConfig struct {
	TTL           time.Duration `env:"OFFER_TTL,default=72h"`
	SweepSchedule string        `env:"OFFER_SWEEP_SCHEDULE,default=@every 1m"`
	SweepBatch    int           `env:"OFFER_SWEEP_BATCH,default=100"`
	Currency      string        `env:"OFFER_CURRENCY,default=ARS"`
}

type PaymentConfig struct {
	MercadoPagoBaseURL     string        `env:"MERCADOPAGO_BASE_URL,default=https://api.mercadopago.com"`
	MercadoPagoAccessToken string        `env:"MERCADOPAGO_ACCESS_TOKEN"`
	MercadoPagoSecret      string        `env:"MERCADOPAGO_WEBHOOK_SECRET"`
	NotificationURL        string        `env:"MERCADOPAGO_NOTIFICATION_URL"`
	SuccessURL             string        `env:"PAYMENT_SUCCESS_URL"`
	FailureURL             string        `env:"PAYMENT_FAILURE_URL"`
	PendingURL             string        `env:"PAYMENT_PENDING_URL"`
	Timeout                time.Duration `env:"PAYMENT_TIMEOUT,default=10s"`
}

type RateLimitConfig struct {
	MutationsPerMinute int `env:"RATE_LIMIT_MUTATIONS_PER_MINUTE,default=30"`
	Burst              int `env:"RATE_LIMIT_BURST,default=10"`
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{}
	if err := envdecode.Decode(config); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return nil, err
	}

	return config, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Origins splits the comma separated allowed origins.
func (c *Config) Origins() []string {
	return splitList(c.AllowedOrigins)
}

// Keywords splits the comma separated extra social keywords.
func (m ModerationConfig) Keywords() []string {
	out := splitList(m.ExtraKeywords)
	for i, k := range out {
		out[i] = strings.ToLower(k)
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
