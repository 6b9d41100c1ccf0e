// Package config loads runtime settings. Sources are applied in order:
// built-in defaults, an optional .env file, the process environment, then
// command-line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"

	defaultEnvFile  = ".env"
	minSecretLength = 16
)

// OIDC configures single sign-on. It is disabled when Issuer is empty.
type OIDC struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Enabled reports whether SSO is configured.
func (o OIDC) Enabled() bool { return o.Issuer != "" }

// S3 configures avatar storage. It is disabled when Bucket is empty.
type S3 struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	PublicURL string
}

// Enabled reports whether avatar uploads are configured.
func (s S3) Enabled() bool { return s.Bucket != "" }

// Config holds all runtime settings.
type Config struct {
	Addr            string
	DatabaseURL     string
	StoreBackend    string
	SessionBackend  string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	SessionSecret   string
	SessionTTL      time.Duration
	ResetTokenTTL   time.Duration
	SignUpTokenTTL  time.Duration
	JanitorInterval time.Duration
	BcryptCost      int
	AMQPURL         string
	LogLevel        string
	OIDC            OIDC
	S3              S3
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Addr:            ":8080",
		StoreBackend:    BackendMemory,
		SessionBackend:  BackendMemory,
		SessionTTL:      7 * 24 * time.Hour,
		ResetTokenTTL:   15 * time.Minute,
		SignUpTokenTTL:  30 * time.Minute,
		JanitorInterval: 10 * time.Minute,
		BcryptCost:      bcrypt.DefaultCost,
		LogLevel:        "info",
		S3:              S3{Region: "us-east-1"},
	}
}

// Load builds the configuration from the environment and args (without the
// program name).
func Load(args []string) (Config, error) {
	return load(args, os.LookupEnv)
}

func load(args []string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	env, err := readEnvFile(lookup)
	if err != nil {
		return Config{}, err
	}
	// The process environment wins over the file.
	get := func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := env[key]
		return v, ok
	}

	if err := applyEnv(&cfg, get); err != nil {
		return Config{}, err
	}
	if err := parseFlags(&cfg, args); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// readEnvFile reads ENV_FILE, or .env when unset. Only an explicitly named
// file must exist.
func readEnvFile(lookup func(string) (string, bool)) (map[string]string, error) {
	path, explicit := lookup("ENV_FILE")
	if !explicit || path == "" {
		path, explicit = defaultEnvFile, false
	}
	env, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read env file %s: %w", path, err)
	}
	return env, nil
}

func applyEnv(cfg *Config, get func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := get(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	dur := func(key string, dst *time.Duration) {
		if v, ok := get(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	num := func(key string, dst *int) {
		if v, ok := get(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	str("ADDR", &cfg.Addr)
	str("DATABASE_URL", &cfg.DatabaseURL)
	str("STORE_BACKEND", &cfg.StoreBackend)
	str("SESSION_BACKEND", &cfg.SessionBackend)
	str("REDIS_ADDR", &cfg.RedisAddr)
	str("REDIS_PASSWORD", &cfg.RedisPassword)
	num("REDIS_DB", &cfg.RedisDB)
	str("SESSION_SECRET", &cfg.SessionSecret)
	dur("SESSION_TTL", &cfg.SessionTTL)
	dur("RESET_TOKEN_TTL", &cfg.ResetTokenTTL)
	dur("SIGNUP_TOKEN_TTL", &cfg.SignUpTokenTTL)
	dur("JANITOR_INTERVAL", &cfg.JanitorInterval)
	num("BCRYPT_COST", &cfg.BcryptCost)
	str("AMQP_URL", &cfg.AMQPURL)
	str("LOG_LEVEL", &cfg.LogLevel)

	str("OIDC_ISSUER", &cfg.OIDC.Issuer)
	str("OIDC_CLIENT_ID", &cfg.OIDC.ClientID)
	str("OIDC_CLIENT_SECRET", &cfg.OIDC.ClientSecret)
	str("OIDC_REDIRECT_URL", &cfg.OIDC.RedirectURL)

	str("S3_BUCKET", &cfg.S3.Bucket)
	str("S3_REGION", &cfg.S3.Region)
	str("S3_ENDPOINT", &cfg.S3.Endpoint)
	str("S3_ACCESS_KEY", &cfg.S3.AccessKey)
	str("S3_SECRET_KEY", &cfg.S3.SecretKey)
	str("S3_PUBLIC_URL", &cfg.S3.PublicURL)

	return errors.Join(errs...)
}

func parseFlags(cfg *Config, args []string) error {
	set := flag.NewFlagSet("darim", flag.ContinueOnError)
	set.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	set.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "PostgreSQL connection string")
	set.StringVar(&cfg.StoreBackend, "store", cfg.StoreBackend, "data store backend (memory, postgres)")
	set.StringVar(&cfg.SessionBackend, "sessions", cfg.SessionBackend, "session backend (memory, postgres, redis)")
	set.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address")
	set.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	set.DurationVar(&cfg.SessionTTL, "session-ttl", cfg.SessionTTL, "session lifetime")
	return set.Parse(args)
}

// Validate reports every invalid or missing setting.
func (c Config) Validate() error {
	var errs []error
	switch c.StoreBackend {
	case BackendMemory, BackendPostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.StoreBackend))
	}
	switch c.SessionBackend {
	case BackendMemory, BackendRedis:
	case BackendPostgres:
		if c.StoreBackend != BackendPostgres {
			errs = append(errs, errors.New("postgres sessions require the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown session backend %q", c.SessionBackend))
	}
	if c.StoreBackend == BackendPostgres && c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
	}
	if c.SessionBackend == BackendRedis && c.RedisAddr == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required for redis sessions"))
	}
	if len(c.SessionSecret) < minSecretLength {
		errs = append(errs, fmt.Errorf("SESSION_SECRET must be at least %d bytes", minSecretLength))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	for name, d := range map[string]time.Duration{
		"SESSION_TTL":      c.SessionTTL,
		"RESET_TOKEN_TTL":  c.ResetTokenTTL,
		"SIGNUP_TOKEN_TTL": c.SignUpTokenTTL,
		"JANITOR_INTERVAL": c.JanitorInterval,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.OIDC.Enabled() && (c.OIDC.ClientID == "" || c.OIDC.RedirectURL == "") {
		errs = append(errs, errors.New("OIDC_CLIENT_ID and OIDC_REDIRECT_URL are required with OIDC_ISSUER"))
	}
	return errors.Join(errs...)
}
