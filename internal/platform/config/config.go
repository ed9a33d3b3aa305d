package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"weict/pkg/platform/middleware/metadata"
)

// Email providers understood by EmailConfig.Provider.
const (
	EmailProviderResend = "resend"
	EmailProviderSMTP   = "smtp"
	EmailProviderLog    = "log"
)

// Config is the full runtime configuration of the registration service.
type Config struct {
	Addr           string
	RequestTimeout time.Duration
	LogLevel       string
	Database       DatabaseConfig
	Email          EmailConfig
	Routes         RoutesConfig
	Redis          RedisConfig
	RateLimit      RateLimitConfig
	// TrustedProxies are CIDRs or addresses allowed to set X-Forwarded-For.
	TrustedProxies []string
}

// DatabaseConfig configures the Postgres pool backing the registrations table.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrateOnStart  bool
}

// EmailConfig selects and configures the confirmation email provider.
type EmailConfig struct {
	Provider     string
	From         string
	ResendAPIKey string
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
}

// RoutesConfig toggles the two registration routes and their CORS origins.
type RoutesConfig struct {
	OpenEnabled  bool
	OpenOrigin   string
	PagesEnabled bool
	PagesOrigin  string
}

// RedisConfig configures the optional Redis client used by the rate limiter.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RateLimitConfig bounds submissions per client IP per minute.
type RateLimitConfig struct {
	PerMinute int
}

// RateLimitEnabled reports whether submissions are rate limited.
func (c Config) RateLimitEnabled() bool {
	return c.Redis.URL != "" && c.RateLimit.PerMinute > 0
}

// SetDefaults registers every key with its default so AutomaticEnv can bind it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("log_level", "info")

	v.SetDefault("database_url", "")
	v.SetDefault("db_max_open_conns", 10)
	v.SetDefault("db_max_idle_conns", 2)
	v.SetDefault("db_conn_max_lifetime", 5*time.Minute)
	v.SetDefault("db_migrate_on_start", true)

	v.SetDefault("email_provider", EmailProviderResend)
	v.SetDefault("email_from", "WE-ICT Workshop <onboarding@resend.dev>")
	v.SetDefault("resend_api_key", "")
	v.SetDefault("smtp_host", "")
	v.SetDefault("smtp_port", 587)
	v.SetDefault("smtp_user", "")
	v.SetDefault("smtp_password", "")

	v.SetDefault("route_open_enabled", true)
	v.SetDefault("cors_open_origin", "*")
	v.SetDefault("route_pages_enabled", true)
	v.SetDefault("cors_pages_origin", "https://prothomaa.github.io")

	v.SetDefault("redis_url", "")
	v.SetDefault("redis_pool_size", 10)
	v.SetDefault("redis_min_idle_conns", 1)
	v.SetDefault("redis_dial_timeout", 5*time.Second)
	v.SetDefault("redis_read_timeout", 3*time.Second)
	v.SetDefault("redis_write_timeout", 3*time.Second)
	v.SetDefault("rate_limit_per_minute", 10)
	v.SetDefault("trusted_proxies", "")
}

// Load reads configuration from the environment and, when configFile is set,
// from that file. Environment variables win over the file.
func Load(configFile string) (Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	return FromViper(v), nil
}

// FromViper maps a populated viper instance onto Config.
func FromViper(v *viper.Viper) Config {
	return Config{
		Addr:           v.GetString("addr"),
		RequestTimeout: v.GetDuration("request_timeout"),
		LogLevel:       v.GetString("log_level"),
		Database: DatabaseConfig{
			URL:             v.GetString("database_url"),
			MaxOpenConns:    v.GetInt("db_max_open_conns"),
			MaxIdleConns:    v.GetInt("db_max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("db_conn_max_lifetime"),
			MigrateOnStart:  v.GetBool("db_migrate_on_start"),
		},
		Email: EmailConfig{
			Provider:     strings.ToLower(strings.TrimSpace(v.GetString("email_provider"))),
			From:         v.GetString("email_from"),
			ResendAPIKey: v.GetString("resend_api_key"),
			SMTPHost:     v.GetString("smtp_host"),
			SMTPPort:     v.GetInt("smtp_port"),
			SMTPUser:     v.GetString("smtp_user"),
			SMTPPassword: v.GetString("smtp_password"),
		},
		Routes: RoutesConfig{
			OpenEnabled:  v.GetBool("route_open_enabled"),
			OpenOrigin:   v.GetString("cors_open_origin"),
			PagesEnabled: v.GetBool("route_pages_enabled"),
			PagesOrigin:  v.GetString("cors_pages_origin"),
		},
		Redis: RedisConfig{
			URL:          v.GetString("redis_url"),
			PoolSize:     v.GetInt("redis_pool_size"),
			MinIdleConns: v.GetInt("redis_min_idle_conns"),
			DialTimeout:  v.GetDuration("redis_dial_timeout"),
			ReadTimeout:  v.GetDuration("redis_read_timeout"),
			WriteTimeout: v.GetDuration("redis_write_timeout"),
		},
		RateLimit: RateLimitConfig{
			PerMinute: v.GetInt("rate_limit_per_minute"),
		},
		TrustedProxies: splitList(v.GetString("trusted_proxies")),
	}
}

// InMemory reports whether registrations are kept in process memory. Only
// allowed together with the log email provider, for local development.
func (c Config) InMemory() bool {
	return c.Database.URL == ""
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the settings the serve command cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.InMemory() && c.Email.Provider != EmailProviderLog {
		errs = append(errs, errors.New("DATABASE_URL is required unless EMAIL_PROVIDER=log"))
	}
	switch c.Email.Provider {
	case EmailProviderResend:
		if c.Email.ResendAPIKey == "" {
			errs = append(errs, errors.New("RESEND_API_KEY is required for the resend provider"))
		}
	case EmailProviderSMTP:
		if c.Email.SMTPHost == "" {
			errs = append(errs, errors.New("SMTP_HOST is required for the smtp provider"))
		}
	case EmailProviderLog:
	default:
		errs = append(errs, fmt.Errorf("unknown EMAIL_PROVIDER %q", c.Email.Provider))
	}
	if !c.Routes.OpenEnabled && !c.Routes.PagesEnabled {
		errs = append(errs, errors.New("at least one registration route must be enabled"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must be positive"))
	}
	if _, err := metadata.ParseTrustedProxies(c.TrustedProxies); err != nil {
		errs = append(errs, fmt.Errorf("TRUSTED_PROXIES: %w", err))
	}
	return errors.Join(errs...)
}
