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
	UsersDatabaseURL    string        `mapstructure:"USERS_DATABASE_URL"`
	PatientsDatabaseURL string        `mapstructure:"PATIENTS_DATABASE_URL"`
	AuditDatabaseURL    string        `mapstructure:"AUDIT_DATABASE_URL"`
	UsersSchema         string        `mapstructure:"USERS_SCHEMA"`
	PatientsSchema      string        `mapstructure:"PATIENTS_SCHEMA"`
	AuditSchema         string        `mapstructure:"AUDIT_SCHEMA"`
	DBMaxConns          int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns          int32         `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir       string        `mapstructure:"MIGRATIONS_DIR"`
	SessionSigningKey   string        `mapstructure:"SESSION_SIGNING_KEY"`
	SessionTTL          time.Duration `mapstructure:"SESSION_TTL"`
	SessionCacheTTL     time.Duration `mapstructure:"SESSION_CACHE_TTL"`
	StatsCacheTTL       time.Duration `mapstructure:"STATS_CACHE_TTL"`
	ReportLimit         int           `mapstructure:"REPORT_LIMIT"`
	CORSOrigins         []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS        float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst      int           `mapstructure:"RATE_LIMIT_BURST"`
	BodyLimit           string        `mapstructure:"BODY_LIMIT"`
	RequestTimeout      time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	AdminEmail          string        `mapstructure:"ADMIN_EMAIL"`
	AdminPassword       string        `mapstructure:"ADMIN_PASSWORD"`
	TLSEnabled          bool          `mapstructure:"TLS_ENABLED"`
	TLSCertFile         string        `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile          string        `mapstructure:"TLS_KEY_FILE"`
}

var envKeys = []string{
	"PORT", "ENV",
	"DATABASE_URL", "USERS_DATABASE_URL", "PATIENTS_DATABASE_URL", "AUDIT_DATABASE_URL",
	"USERS_SCHEMA", "PATIENTS_SCHEMA", "AUDIT_SCHEMA",
	"DB_MAX_CONNS", "DB_MIN_CONNS", "MIGRATIONS_DIR",
	"SESSION_SIGNING_KEY", "SESSION_TTL", "SESSION_CACHE_TTL", "STATS_CACHE_TTL",
	"REPORT_LIMIT", "CORS_ORIGINS",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "BODY_LIMIT", "REQUEST_TIMEOUT",
	"ADMIN_EMAIL", "ADMIN_PASSWORD",
	"TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("USERS_SCHEMA", "user_management")
	v.SetDefault("PATIENTS_SCHEMA", "stroke_patient")
	v.SetDefault("AUDIT_SCHEMA", "audit_logs")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("SESSION_TTL", "1h")
	v.SetDefault("SESSION_CACHE_TTL", "1m")
	v.SetDefault("STATS_CACHE_TTL", "30s")
	v.SetDefault("REPORT_LIMIT", 50)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 1)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("BODY_LIMIT", "64K")
	v.SetDefault("REQUEST_TIMEOUT", "15s")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

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

	if cfg.DatabaseURL == "" && (cfg.UsersDatabaseURL == "" || cfg.PatientsDatabaseURL == "" || cfg.AuditDatabaseURL == "") {
		return nil, fmt.Errorf("DATABASE_URL is required unless USERS_DATABASE_URL, PATIENTS_DATABASE_URL and AUDIT_DATABASE_URL are all set")
	}

	if cfg.IsDev() {
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: Requests without a bearer token act as the dev admin user.")
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

// UsersURL returns the connection string for the user management namespace.
func (c *Config) UsersURL() string {
	return firstNonEmpty(c.UsersDatabaseURL, c.DatabaseURL)
}

// PatientsURL returns the connection string for the patient records namespace.
func (c *Config) PatientsURL() string {
	return firstNonEmpty(c.PatientsDatabaseURL, c.DatabaseURL)
}

// AuditURL returns the connection string for the audit namespace.
func (c *Config) AuditURL() string {
	return firstNonEmpty(c.AuditDatabaseURL, c.DatabaseURL)
}

// SigningKey decodes SESSION_SIGNING_KEY. It returns nil when the key is unset.
func (c *Config) SigningKey() ([]byte, error) {
	if c.SessionSigningKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.SessionSigningKey)
	if err != nil {
		return nil, fmt.Errorf("SESSION_SIGNING_KEY is not valid hex: %w", err)
	}
	return key, nil
}

// Validate checks that the configuration is safe to run. In production a
// session signing key of at least 32 bytes is required so tokens survive
// restarts and cannot be forged.
func (c *Config) Validate() error {
	if c.IsProduction() && c.SessionSigningKey == "" {
		return fmt.Errorf("SESSION_SIGNING_KEY is required in production")
	}
	key, err := c.SigningKey()
	if err != nil {
		return err
	}
	if key != nil && len(key) < 32 {
		return fmt.Errorf("SESSION_SIGNING_KEY must be at least 32 bytes (64 hex chars), got %d bytes", len(key))
	}

	for name, schema := range map[string]string{
		"USERS_SCHEMA":    c.UsersSchema,
		"PATIENTS_SCHEMA": c.PatientsSchema,
		"AUDIT_SCHEMA":    c.AuditSchema,
	} {
		if schema == "" {
			return fmt.Errorf("%s must not be empty", name)
		}
	}

	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.ReportLimit <= 0 {
		return fmt.Errorf("REPORT_LIMIT must be positive")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must not be negative")
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}

	// TLS validation: when TLS is enabled, cert and key files must be specified.
	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
