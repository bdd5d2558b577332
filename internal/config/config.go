package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName          string
	AppVersion       string
	Environment      string
	HTTPAddr         string
	AuthCookieSecure bool
	AuthCookieName   string
	AuthCookieDomain string
	DefaultOrgID     int64
	PublicBaseURL    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis     RedisConfig
	Email     EmailConfig
	SMS       SMSConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Scheduler SchedulerConfig
	Bootstrap BootstrapConfig

	BoardConfigPath string
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

// SMSConfig configures the Twilio messaging client.
type SMSConfig struct {
	Enabled    bool
	AccountSID string
	AuthToken  string
	From       string
	BaseURL    string
}

type CORSConfig struct {
	AllowOrigins []string
}

type RateLimitConfig struct {
	LoginEnabled bool
	LoginRate    float64
	LoginBurst   int
}

type SchedulerConfig struct {
	Enabled     bool
	RunInterval time.Duration
	BatchSize   int
	EnabledJobs []string
}

type BootstrapConfig struct {
	EnsureDefaultOrgAndUser bool
	AdminEmail              string
	AdminPassword           string
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
		AppName:          getenv("APP_SERVICE", "taskboard"),
		AppVersion:       getenv("APP_VERSION", "0.1.0"),
		Environment:      environment,
		HTTPAddr:         getenv("HTTP_ADDR", ":8080"),
		AuthCookieSecure: authCookieSecure,
		AuthCookieName:   getenv("AUTH_COOKIE_NAME", ""),
		AuthCookieDomain: getenv("AUTH_COOKIE_DOMAIN", ""),
		DefaultOrgID:     getenvInt64("DEFAULT_ORG", 0),
		PublicBaseURL:    strings.TrimRight(getenv("PUBLIC_BASE_URL", "http://localhost:5173"), "/"),
		OTLPEndpoint:     getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "taskboard"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 10)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 50)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 300)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 60)),

		Redis: RedisConfig{
			Enabled:  getenvBool("REDIS_ENABLED", true),
			Addr:     getenv("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       int(getenvInt64("REDIS_DB", 0)),
		},
		Email: EmailConfig{
			SMTPHost:     strings.TrimSpace(getenv("SMTP_HOST", "")),
			SMTPPort:     int(getenvInt64("SMTP_PORT", 587)),
			SMTPUsername: strings.TrimSpace(getenv("SMTP_USERNAME", "")),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", "Taskboard <no-reply@taskboard.local>"),
		},
		SMS: SMSConfig{
			Enabled:    getenvBool("SMS_ENABLED", false),
			AccountSID: strings.TrimSpace(getenv("TWILIO_ACCOUNT_SID", "")),
			AuthToken:  strings.TrimSpace(getenv("TWILIO_AUTH_TOKEN", "")),
			From:       strings.TrimSpace(getenv("TWILIO_FROM_NUMBER", "")),
			BaseURL:    strings.TrimRight(getenv("TWILIO_BASE_URL", "https://api.twilio.com"), "/"),
		},
		CORS: CORSConfig{
			AllowOrigins: splitList(getenv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		},
		RateLimit: RateLimitConfig{
			LoginEnabled: getenvBool("RATE_LIMIT_LOGIN_ENABLED", true),
			LoginRate:    getenvFloat("RATE_LIMIT_LOGIN_RATE", 0.2),
			LoginBurst:   int(getenvInt64("RATE_LIMIT_LOGIN_BURST", 5)),
		},
		Scheduler: SchedulerConfig{
			Enabled:     getenvBool("SCHEDULER_ENABLED", true),
			RunInterval: getenvDuration("SCHEDULER_RUN_INTERVAL", 30*time.Second),
			BatchSize:   int(getenvInt64("SCHEDULER_BATCH_SIZE", 50)),
			EnabledJobs: splitList(getenv("SCHEDULER_JOBS", "")),
		},
		Bootstrap: BootstrapConfig{
			EnsureDefaultOrgAndUser: getenvBool("BOOTSTRAP_DEFAULT_ORG_AND_USER", true),
			AdminEmail:              getenv("BOOTSTRAP_ADMIN_EMAIL", "admin@taskboard.local"),
			AdminPassword:           getenv("BOOTSTRAP_ADMIN_PASSWORD", "admin12345"),
		},
		BoardConfigPath: getenv("BOARD_CONFIG", ""),
	}

	return cfg
}

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

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
