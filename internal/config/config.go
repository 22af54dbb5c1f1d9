// Package config provides environment configuration for the API server.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Event bus choices.
const (
	EventBusNATS  = "nats"
	EventBusKafka = "kafka"
	EventBusNone  = "none"
)

// Config holds all configuration for the application.
type Config struct {
	Env string

	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	AllowedOrigins     []string

	// Event bus
	EventBus string

	// NATS settings
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string
	SnapshotTTL  time.Duration

	// Kafka settings
	KafkaBrokers     []string
	KafkaTopicPrefix string

	// JWT settings
	AuthEnabled   bool
	JWTSecret     string
	JWTExpiration time.Duration

	// LLM settings
	AnthropicAPIKey string
	OpenAIAPIKey    string
	DefaultLLM      string
	LLMModel        string

	// OutboundTimeout bounds every language model, collaborator and event
	// bus call.
	OutboundTimeout time.Duration

	// Loan policy
	MinAge             int
	MaxAge             int
	MinLoanAmount      int64
	MaxLoanAmount      int64
	InterestRate       decimal.Decimal
	TenureMonths       int
	MinCreditScore     int
	MaxEMIRatio        decimal.Decimal
	DefaultCreditScore int
	DefaultLimit       int64

	// Collaborator data
	KYCDataFile      string
	CreditScoresFile string
	OffersFile       string

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
	TracingInsecure bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Env: getEnv("ENV", "production"),

		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 60*time.Second),
		AllowedOrigins:     getListEnv("ALLOWED_ORIGINS", []string{"*"}),

		EventBus: strings.ToLower(getEnv("EVENT_BUS", EventBusNATS)),

		// NATS
		NATSURL:      getEnv("NATS_URL", "nats://localhost:4222"),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),
		SnapshotTTL:  getDurationEnv("SNAPSHOT_TTL", 30*24*time.Hour),

		// Kafka
		KafkaBrokers:     getListEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaTopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", "loan"),

		// JWT
		AuthEnabled:   getBoolEnv("AUTH_ENABLED", false),
		JWTSecret:     getEnv("JWT_SECRET", "development-secret-change-in-production"),
		JWTExpiration: getDurationEnv("JWT_EXPIRATION", 15*time.Minute),

		// LLM
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		DefaultLLM:      getEnv("DEFAULT_LLM", "anthropic"),
		LLMModel:        getEnv("LLM_MODEL", ""),

		OutboundTimeout: getDurationEnv("OUTBOUND_TIMEOUT", 10*time.Second),

		// Loan policy
		MinAge:             getIntEnv("MIN_AGE", 21),
		MaxAge:             getIntEnv("MAX_AGE", 65),
		MinLoanAmount:      getInt64Env("MIN_LOAN_AMOUNT", 10_000),
		MaxLoanAmount:      getInt64Env("MAX_LOAN_AMOUNT", 5_000_000),
		InterestRate:       getDecimalEnv("INTEREST_RATE", decimal.NewFromInt(12)),
		TenureMonths:       getIntEnv("TENURE_MONTHS", 36),
		MinCreditScore:     getIntEnv("MIN_CREDIT_SCORE", 700),
		MaxEMIRatio:        getDecimalEnv("MAX_EMI_RATIO", decimal.RequireFromString("0.5")),
		DefaultCreditScore: getIntEnv("DEFAULT_CREDIT_SCORE", 750),
		DefaultLimit:       getInt64Env("DEFAULT_PRE_APPROVED_LIMIT", 500_000),

		// Collaborator data
		KYCDataFile:      getEnv("KYC_DATA_FILE", "data/kyc_data.csv"),
		CreditScoresFile: getEnv("CREDIT_SCORES_FILE", "data/credit_scores.csv"),
		OffersFile:       getEnv("OFFERS_FILE", "data/offers.csv"),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
		TracingInsecure: getBoolEnv("TRACING_INSECURE", true),
	}
}

// LLMAPIKey returns the key for the configured provider.
func (c *Config) LLMAPIKey() string {
	if strings.EqualFold(c.DefaultLLM, "openai") {
		return c.OpenAIAPIKey
	}
	return c.AnthropicAPIKey
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDecimalEnv(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
