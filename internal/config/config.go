package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string // "production" enables the Secure cookie attribute

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	SNSRegion string

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	TokenIssuer       string // exact issuer URL stamped into and required of every token
	JWKSURL           string // where the verifier fetches the signing-key set
	IdentityTokenTTL  time.Duration
	RenewalTokenTTL   time.Duration

	JWKSCacheTTL     time.Duration
	DecisionCacheTTL time.Duration

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users    string
	Attempts string
}

// IsProduction reports whether the service runs with production hardening
// (Secure cookies, no LocalStack endpoints).
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load reads all configuration from environment variables.
func Load() *Config {
	port := getEnv("APP_PORT", "3000")
	return &Config{
		AppPort: port,
		AppEnv:  getEnv("APP_ENV", "development"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:    getEnv("DYNAMO_TABLE_USERS", "users"),
			Attempts: getEnv("DYNAMO_TABLE_LOGIN_ATTEMPTS", "login_attempts"),
		},

		SNSRegion: getEnv("SNS_REGION", "us-east-1"),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		TokenIssuer:       getEnv("TOKEN_ISSUER", fmt.Sprintf("http://localhost:%s", port)),
		JWKSURL:           getEnv("JWKS_URL", fmt.Sprintf("http://localhost:%s/.well-known/jwks.json", port)),
		// Cookie Max-Age values derive from these same two fields so the
		// cookie lifetime can never drift from the token lifetime.
		IdentityTokenTTL: getEnvDuration("IDENTITY_TOKEN_TTL", time.Hour),
		RenewalTokenTTL:  getEnvDuration("RENEWAL_TOKEN_TTL", 7*24*time.Hour),
		JWKSCacheTTL:     getEnvDuration("JWKS_CACHE_TTL", time.Hour),
		DecisionCacheTTL: getEnvDuration("DECISION_CACHE_TTL", 5*time.Minute),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return fallback
}
