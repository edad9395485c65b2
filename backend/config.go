package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/roomiematch/roomiematch/backend/compat"
)

const devJWTSecret = "dev-secret-change-me"

// Config is read from the environment, optionally seeded from a .env file.
type Config struct {
	Port string `mapstructure:"PORT"`
	Env  string `mapstructure:"APP_ENV"`

	JWTSecret  string        `mapstructure:"JWT_SECRET"`
	JWTTTL     time.Duration `mapstructure:"JWT_TTL"`
	BcryptCost int           `mapstructure:"BCRYPT_COST"`

	StoreDriver   string `mapstructure:"STORE_DRIVER"`
	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	MongoURI      string `mapstructure:"MONGODB_URI"`
	MongoDatabase string `mapstructure:"MONGODB_DATABASE"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	CORSAllowedOrigins []string      `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RateLimit          int           `mapstructure:"RATE_LIMIT"`
	AuthRateLimit      int           `mapstructure:"AUTH_RATE_LIMIT"`
	RateLimitWindow    time.Duration `mapstructure:"RATE_LIMIT_WINDOW"`

	MatchScoring string        `mapstructure:"MATCH_SCORING"`
	DraftTTL     time.Duration `mapstructure:"DRAFT_TTL"`

	LogJSON  bool `mapstructure:"LOG_JSON"`
	LogDebug bool `mapstructure:"LOG_DEBUG"`
}

var configDefaults = map[string]any{
	"PORT":    "5000",
	"APP_ENV": "development",

	"JWT_SECRET":  "",
	"JWT_TTL":     "168h",
	"BCRYPT_COST": 12,

	"STORE_DRIVER":     "memory",
	"DATABASE_URL":     "",
	"MONGODB_URI":      "",
	"MONGODB_DATABASE": "roomiematch",
	"REDIS_ADDR":       "",
	"REDIS_PASSWORD":   "",

	"CORS_ALLOWED_ORIGINS": "",
	"RATE_LIMIT":           100,
	"AUTH_RATE_LIMIT":      20,
	"RATE_LIMIT_WINDOW":    "15m",

	"MATCH_SCORING": string(compat.PolicyTwoFactor),
	"DRAFT_TTL":     "72h",

	"LOG_JSON":  false,
	"LOG_DEBUG": false,
}

// loadConfig reads .env (if present) and the process environment.
func loadConfig() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	for k, val := range configDefaults {
		v.SetDefault(k, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, cfg.Validate()
}

func (c *Config) applyDefaults() {
	if c.JWTSecret == "" && !c.IsProduction() {
		c.JWTSecret = devJWTSecret
	}
	if len(c.CORSAllowedOrigins) == 0 || (len(c.CORSAllowedOrigins) == 1 && c.CORSAllowedOrigins[0] == "") {
		if c.IsProduction() {
			c.CORSAllowedOrigins = []string{"https://gary136.github.io"}
		} else {
			c.CORSAllowedOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}
		}
	}
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func (c Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required in production"))
	}
	if c.JWTTTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL must be positive"))
	}
	switch c.StoreDriver {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	case "mongo":
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGODB_URI is required for the mongo store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	if _, err := compat.ParsePolicy(c.MatchScoring); err != nil {
		errs = append(errs, err)
	}
	if c.RateLimit < 0 || c.AuthRateLimit < 0 {
		errs = append(errs, errors.New("rate limits cannot be negative"))
	}
	return errors.Join(errs...)
}
