package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName          string
	AppVersion       string
	Environment      string
	HTTPAddr         string
	AppURL           string
	AuthCookieSecure bool
	AdminPortalKey   string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis RedisConfig

	OpenAI OpenAIConfig
	Stripe StripeConfig
	Email  EmailConfig

	Pricing   PricingConfig
	RateLimit RateLimitConfig
	Bootstrap BootstrapConfig
	Scheduler SchedulerConfig
}

// SchedulerConfig drives the background maintenance jobs.
type SchedulerConfig struct {
	Enabled                bool
	IntervalSeconds        int
	StaleGeneratingMinutes int
	SessionRetentionDays   int
	EnabledJobs            []string
}

// BootstrapConfig seeds the first super-user admin on an empty install.
type BootstrapConfig struct {
	AdminEmail    string
	AdminPassword string
	AdminName     string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a redis address was configured.
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

type StripeConfig struct {
	SecretKey      string
	WebhookSecret  string
	TimeoutSeconds int
}

type EmailConfig struct {
	From           string
	ResendAPIKey   string
	SendGridAPIKey string
	SESRegion      string
	SMTPHost       string
	SMTPPort       int
	SMTPUsername   string
	SMTPPassword   string
}

type RateLimitConfig struct {
	AuthPerMinute     int
	AuthBurst         int
	GeneratePerMinute int
	GenerateBurst     int
	SettleLockSeconds int
}

type PricingConfig struct {
	BypassCouponCode           string
	BypassCommissionEmployeeID int64
	CommissionRate             string
	EmployeeDiscountPercent    int
	SubscriptionPeriodDays     int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")
	authCookieSecure := environment == "production"
	if !authCookieSecure {
		authCookieSecure = getenvBool("AUTH_COOKIE_SECURE", false)
	}

	cfg := Config{
		AppName:          getenv("APP_SERVICE", "lexdraft"),
		AppVersion:       getenv("APP_VERSION", "0.1.0"),
		Environment:      environment,
		HTTPAddr:         getenv("HTTP_ADDR", ":8080"),
		AppURL:           strings.TrimRight(getenv("APP_URL", "http://localhost:3000"), "/"),
		AuthCookieSecure: authCookieSecure,
		AdminPortalKey:   strings.TrimSpace(getenv("ADMIN_PORTAL_KEY", "")),
		OTLPEndpoint:     strings.TrimSpace(getenv("OTLP_ENDPOINT", "")),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "lexdraft"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "lexdraft.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
		OpenAI: OpenAIConfig{
			APIKey:         strings.TrimSpace(getenv("OPENAI_API_KEY", "")),
			BaseURL:        strings.TrimSpace(getenv("OPENAI_BASE_URL", "")),
			Model:          getenv("OPENAI_MODEL", "gpt-4-turbo"),
			TimeoutSeconds: getenvInt("OPENAI_TIMEOUT_SECONDS", 60),
		},
		Stripe: StripeConfig{
			SecretKey:      strings.TrimSpace(getenv("STRIPE_SECRET_KEY", "")),
			WebhookSecret:  strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
			TimeoutSeconds: getenvInt("STRIPE_TIMEOUT_SECONDS", 20),
		},
		Email: EmailConfig{
			From:           getenv("EMAIL_FROM", "Talk-To-My-Lawyer <noreply@talk-to-my-lawyer.com>"),
			ResendAPIKey:   strings.TrimSpace(getenv("RESEND_API_KEY", "")),
			SendGridAPIKey: strings.TrimSpace(getenv("SENDGRID_API_KEY", "")),
			SESRegion:      strings.TrimSpace(getenv("SES_REGION", "")),
			SMTPHost:       strings.TrimSpace(getenv("SMTP_HOST", "")),
			SMTPPort:       getenvInt("SMTP_PORT", 587),
			SMTPUsername:   getenv("SMTP_USERNAME", ""),
			SMTPPassword:   getenv("SMTP_PASSWORD", ""),
		},
		Pricing: PricingConfig{
			BypassCouponCode:           strings.TrimSpace(getenv("BYPASS_COUPON_CODE", "TALK3")),
			BypassCommissionEmployeeID: getenvInt64("BYPASS_COMMISSION_EMPLOYEE_ID", 0),
			CommissionRate:             getenv("COMMISSION_RATE", "0.05"),
			EmployeeDiscountPercent:    getenvInt("EMPLOYEE_DISCOUNT", 20),
			SubscriptionPeriodDays:     getenvInt("SUBSCRIPTION_PERIOD_DAYS", 30),
		},
		RateLimit: RateLimitConfig{
			AuthPerMinute:     getenvInt("RATE_LIMIT_AUTH_PER_MINUTE", 10),
			AuthBurst:         getenvInt("RATE_LIMIT_AUTH_BURST", 5),
			GeneratePerMinute: getenvInt("RATE_LIMIT_GENERATE_PER_MINUTE", 5),
			GenerateBurst:     getenvInt("RATE_LIMIT_GENERATE_BURST", 3),
			SettleLockSeconds: getenvInt("SETTLE_LOCK_SECONDS", 30),
		},
		Bootstrap: BootstrapConfig{
			AdminEmail:    strings.TrimSpace(getenv("BOOTSTRAP_ADMIN_EMAIL", "")),
			AdminPassword: getenv("BOOTSTRAP_ADMIN_PASSWORD", ""),
			AdminName:     getenv("BOOTSTRAP_ADMIN_NAME", "LexDraft Admin"),
		},
		Scheduler: SchedulerConfig{
			Enabled:                getenvBool("SCHEDULER_ENABLED", true),
			IntervalSeconds:        getenvInt("SCHEDULER_INTERVAL_SECONDS", 60),
			StaleGeneratingMinutes: getenvInt("SCHEDULER_STALE_GENERATING_MINUTES", 10),
			SessionRetentionDays:   getenvInt("SCHEDULER_SESSION_RETENTION_DAYS", 30),
			EnabledJobs:            splitList(getenv("SCHEDULER_JOBS", "")),
		},
	}

	return cfg
}

// IsProduction reports whether the service runs in the production environment.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
