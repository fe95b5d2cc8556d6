// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles,
// with an optional .env file for local development.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/keyport/keyport/internal/auth"
	"github.com/keyport/keyport/internal/rpc"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`
	AppName string `env:"APP_NAME" envDefault:"Keyport"`

	// Public URL the browser reaches the app at
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// Cache (Redis)
	RedisURL       string `env:"REDIS_URL,required,notEmpty"`
	RedisNamespace string `env:"REDIS_NAMESPACE" envDefault:"keyport"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Custody API
	CustodyAPIHost              string        `env:"CUSTODY_API_HOST" envDefault:"https://api.turnkey.com"`
	CustodyAPIPublicKey         string        `env:"CUSTODY_API_PUBLIC_KEY,required,notEmpty"`
	CustodyAPIPrivateKey        string        `env:"CUSTODY_API_PRIVATE_KEY,required,notEmpty"`
	CustodyOrganizationID       string        `env:"CUSTODY_ORGANIZATION_ID,required,notEmpty"`
	CustodyDefaultUserPublicKey string        `env:"CUSTODY_DEFAULT_USER_PUBLIC_KEY"`
	CustodyTimeout              time.Duration `env:"CUSTODY_TIMEOUT" envDefault:"30s"`

	// WebAuthn relying party
	WebAuthnRPID          string        `env:"WEBAUTHN_RP_ID" envDefault:"localhost"`
	WebAuthnRPDisplayName string        `env:"WEBAUTHN_RP_DISPLAY_NAME" envDefault:"Keyport Demo Wallet"`
	WebAuthnRPOrigins     []string      `env:"WEBAUTHN_RP_ORIGINS" envSeparator:","`
	WebAuthnCeremonyTTL   time.Duration `env:"WEBAUTHN_CEREMONY_TTL" envDefault:"5m"`

	// Sessions
	SessionSecret string        `env:"SESSION_SECRET,required,notEmpty"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	// Ethereum JSON-RPC upstream. Defaults to Infura mainnet when unset.
	RPCURL       string `env:"RPC_URL"`
	InfuraAPIKey string `env:"INFURA_API_KEY"`

	// Rate limiting
	RateLimitAuthEnabled  bool `env:"RATE_LIMIT_AUTH_ENABLED" envDefault:"true"`
	RateLimitAuthRPS      int  `env:"RATE_LIMIT_AUTH_RPS" envDefault:"5"`
	RateLimitAuthBurst    int  `env:"RATE_LIMIT_AUTH_BURST" envDefault:"10"`
	RateLimitRPCPerMinute int  `env:"RATE_LIMIT_RPC_PER_MINUTE" envDefault:"600"`
	RateLimitRPCBurst     int  `env:"RATE_LIMIT_RPC_BURST" envDefault:"60"`

	// Honour X-Forwarded-For / X-Real-IP. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" envDefault:"false"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// SecureCookies reports whether cookies should carry the Secure flag.
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.BaseURL, "https://")
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Validate checks values env tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	if len(c.SessionSecret) < auth.MinSecretLength {
		errs = append(errs, fmt.Errorf("SESSION_SECRET must be at least %d bytes", auth.MinSecretLength))
	}
	if c.RPCURL == "" {
		errs = append(errs, errors.New("RPC_URL or INFURA_API_KEY is required"))
	}
	if u, err := url.Parse(c.BaseURL); err != nil || u.Host == "" {
		errs = append(errs, fmt.Errorf("BASE_URL %q is not an absolute URL", c.BaseURL))
	}
	if c.IsProduction() && !c.SecureCookies() {
		errs = append(errs, errors.New("BASE_URL must use https in production"))
	}
	if c.RateLimitAuthEnabled && (c.RateLimitAuthRPS <= 0 || c.RateLimitAuthBurst <= 0) {
		errs = append(errs, errors.New("RATE_LIMIT_AUTH_RPS and RATE_LIMIT_AUTH_BURST must be positive"))
	}

	return errors.Join(errs...)
}

// Load reads an optional .env file, parses environment variables and
// returns a validated Config. Variables already set in the environment
// win over the .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	return parse()
}

func parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.RPCURL == "" && cfg.InfuraAPIKey != "" {
		cfg.RPCURL = rpc.InfuraMainnetURL(cfg.InfuraAPIKey)
	}
	if len(cfg.WebAuthnRPOrigins) == 0 {
		cfg.WebAuthnRPOrigins = []string{strings.TrimRight(cfg.BaseURL, "/")}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
