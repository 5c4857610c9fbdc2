package config

import (
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                string        `mapstructure:"PORT"`
	Env                 string        `mapstructure:"ENV"`
	DatabaseURL         string        `mapstructure:"DATABASE_URL"`
	DBMaxConns          int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns          int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL            string        `mapstructure:"REDIS_URL"`
	CORSOrigins         []string      `mapstructure:"CORS_ORIGINS"`
	JWTSecret           string        `mapstructure:"JWT_SECRET"`
	TokenTTL            time.Duration `mapstructure:"TOKEN_TTL"`
	IdentifierLookupKey string        `mapstructure:"IDENTIFIER_LOOKUP_KEY"`
	PatientLookupMode   string        `mapstructure:"PATIENT_LOOKUP_MODE"`
	BcryptCost          int           `mapstructure:"BCRYPT_COST"`
	ScorerURL           string        `mapstructure:"SCORER_URL"`
	ScorerTimeout       time.Duration `mapstructure:"SCORER_TIMEOUT"`
	RequestTimeout      time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	RateLimitRPS        float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst      int           `mapstructure:"RATE_LIMIT_BURST"`
}

// devJWTSecret signs tokens when ENV=development and JWT_SECRET is unset.
const devJWTSecret = "carelink-dev-secret-do-not-use-in-production"

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("PATIENT_LOOKUP_MODE", "") // auto: index when a lookup key is set
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("SCORER_TIMEOUT", "3s")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("REDIS_URL")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("TOKEN_TTL")
	v.BindEnv("IDENTIFIER_LOOKUP_KEY")
	v.BindEnv("PATIENT_LOOKUP_MODE")
	v.BindEnv("BCRYPT_COST")
	v.BindEnv("SCORER_URL")
	v.BindEnv("SCORER_TIMEOUT")
	v.BindEnv("REQUEST_TIMEOUT")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" && cfg.IsDev() {
		cfg.JWTSecret = devJWTSecret
		log.Println("WARNING: JWT_SECRET is not set; using the built-in development secret.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ResolvedLookupMode returns the effective patient lookup mode. If
// PATIENT_LOOKUP_MODE is set it wins; otherwise "index" is used when an
// identifier lookup key is configured and "scan" when it is not.
func (c *Config) ResolvedLookupMode() string {
	if c.PatientLookupMode != "" {
		return c.PatientLookupMode
	}
	if c.IdentifierLookupKey != "" {
		return "index"
	}
	return "scan"
}

// Validate checks that the configuration is safe to run. Outside development
// JWT_SECRET must be set. In production IDENTIFIER_LOOKUP_KEY is required and
// must be a 64-character hex string (32 bytes when decoded).
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when ENV=%q", c.Env)
	}
	if !c.IsDev() && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters outside development")
	}

	if c.IsProduction() && c.IdentifierLookupKey == "" {
		return fmt.Errorf("IDENTIFIER_LOOKUP_KEY is required in production")
	}
	if c.IdentifierLookupKey != "" {
		keyBytes, err := hex.DecodeString(c.IdentifierLookupKey)
		if err != nil {
			return fmt.Errorf("IDENTIFIER_LOOKUP_KEY is not valid hex: %w", err)
		}
		if len(keyBytes) != 32 {
			return fmt.Errorf("IDENTIFIER_LOOKUP_KEY must be 32 bytes (64 hex chars), got %d bytes", len(keyBytes))
		}
	}

	switch c.ResolvedLookupMode() {
	case "scan":
	case "index":
		if c.IdentifierLookupKey == "" {
			return fmt.Errorf("PATIENT_LOOKUP_MODE=index requires IDENTIFIER_LOOKUP_KEY")
		}
	default:
		return fmt.Errorf("PATIENT_LOOKUP_MODE must be \"index\" or \"scan\", got %q", c.PatientLookupMode)
	}

	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if c.ScorerTimeout <= 0 {
		return fmt.Errorf("SCORER_TIMEOUT must be positive")
	}

	return nil
}
