package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures all service configuration. It is resolved once at startup
// and never re-read mid-pipeline.
type Config struct {
	Addr        string
	Environment string

	// Ledger settings. SimulationMode forces the simulated client; it is
	// also implied when ContractAddress is empty, so local development never
	// needs a chain.
	SimulationMode  bool
	LedgerRPCURL    string
	LedgerChainID   int64
	SigningKeyHex   string
	ContractAddress string
	ConfirmTimeout  time.Duration

	// Content store (pinning endpoint) settings.
	PinningBaseURL string
	PinningJWT     string
	GatewayBaseURL string

	// Issuer identity stamped into certificate metadata.
	IssuerName string

	DatabaseURL string
	RedisURL    string

	// Kafka audit trail. Empty brokers disables publishing.
	KafkaBrokers    string
	AuditTopic      string
	DeliveryTimeout time.Duration

	Retry RetryConfig
}

// RetryConfig holds the default retry policy for content-store uploads and
// persistence writes. The ledger submission step is never retried.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Config{
		Addr:            envOr("SKILLCHAIN_ADDR", ":8080"),
		Environment:     envOr("ENVIRONMENT", "development"),
		SimulationMode:  os.Getenv("LEDGER_SIMULATION_MODE") == "true",
		LedgerRPCURL:    os.Getenv("LEDGER_RPC_URL"),
		SigningKeyHex:   os.Getenv("LEDGER_SIGNING_KEY"),
		ContractAddress: os.Getenv("REGISTRY_CONTRACT_ADDRESS"),
		ConfirmTimeout:  durationOr("LEDGER_CONFIRM_TIMEOUT", 60*time.Second),
		PinningBaseURL:  envOr("PINNING_BASE_URL", "https://api.pinata.cloud"),
		PinningJWT:      os.Getenv("PINNING_JWT"),
		GatewayBaseURL:  envOr("PINNING_GATEWAY_URL", "https://gateway.pinata.cloud/ipfs"),
		IssuerName:      envOr("CERTIFICATE_ISSUER", "SkillChain"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		KafkaBrokers:    os.Getenv("KAFKA_BROKERS"),
		AuditTopic:      envOr("AUDIT_TOPIC", "skillchain.certificate.audit"),
		DeliveryTimeout: durationOr("KAFKA_DELIVERY_TIMEOUT", 10*time.Second),
		Retry: RetryConfig{
			MaxAttempts:  intOr("RETRY_MAX_ATTEMPTS", 5),
			InitialDelay: durationOr("RETRY_INITIAL_DELAY", time.Second),
			MaxDelay:     durationOr("RETRY_MAX_DELAY", 30*time.Second),
			Multiplier:   2,
		},
	}
	if chainID := os.Getenv("LEDGER_CHAIN_ID"); chainID != "" {
		if v, err := strconv.ParseInt(chainID, 10, 64); err == nil {
			cfg.LedgerChainID = v
		}
	}
	// No contract address means there is nothing real to submit to.
	if cfg.ContractAddress == "" {
		cfg.SimulationMode = true
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func intOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
