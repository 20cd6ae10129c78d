// Package config builds runtime configuration from environment variables so
// main stays lean.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// BuyerCacheTTL bounds how long compliance attributes may be served from
// cache.
var BuyerCacheTTL = 5 * time.Minute

// Config captures process-level configuration.
type Config struct {
	Addr          string
	LogLevel      string
	JWTSigningKey string
	JWTIssuer     string

	// Token identity this gateway instance governs.
	TokenID       string
	TokenSymbol   string
	TokenName     string
	OwnerEIN      uint64
	OwnerAddress  string
	EscrowAddress string

	// DatabaseURL enables PostgreSQL persistence; empty keeps in-memory
	// stores.
	DatabaseURL string

	// RedisURL enables the buyer registry cache and token revocation checks.
	RedisURL string

	// AuditBrokers enables the Kafka audit sink.
	AuditBrokers []string
	AuditTopic   string

	ShutdownTimeout time.Duration
}

// FromEnv reads configuration with development defaults.
func FromEnv() Config {
	return Config{
		Addr:            envOr("STO_GATEWAY_ADDR", ":8080"),
		LogLevel:        envOr("STO_GATEWAY_LOG_LEVEL", "info"),
		JWTSigningKey:   envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:       envOr("JWT_ISSUER", "sto-gateway"),
		TokenID:         os.Getenv("STO_TOKEN_ID"),
		TokenSymbol:     envOr("STO_TOKEN_SYMBOL", "HST"),
		TokenName:       envOr("STO_TOKEN_NAME", "Hydro Security Token"),
		OwnerEIN:        envUint("STO_OWNER_EIN", 1),
		OwnerAddress:    envOr("STO_OWNER_ADDRESS", "0xowner"),
		EscrowAddress:   envOr("STO_ESCROW_ADDRESS", "0xescrow"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		AuditBrokers:    splitList(os.Getenv("AUDIT_BROKERS")),
		AuditTopic:      envOr("AUDIT_TOPIC", "sto.audit.events"),
		ShutdownTimeout: 10 * time.Second,
	}
}

func envUint(key string, fallback uint64) uint64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
