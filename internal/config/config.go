package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Env            string   `mapstructure:"ENV"`
	DatabaseURL    string   `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`

	LLMBaseURL        string `mapstructure:"LLM_BASE_URL"`
	LLMAPIKey         string `mapstructure:"LLM_API_KEY"`
	LLMModel          string `mapstructure:"LLM_MODEL"`
	LLMTimeoutSeconds int    `mapstructure:"LLM_TIMEOUT_SECONDS"`

	SessionTTLMinutes int `mapstructure:"SESSION_TTL_MINUTES"`

	EmergencyKeywords []string `mapstructure:"EMERGENCY_KEYWORDS"`

	TelephonyAccountSID     string `mapstructure:"TELEPHONY_ACCOUNT_SID"`
	TelephonyAuthToken      string `mapstructure:"TELEPHONY_AUTH_TOKEN"`
	TelephonyFromNumber     string `mapstructure:"TELEPHONY_FROM_NUMBER"`
	TelephonyWebhookBaseURL string `mapstructure:"TELEPHONY_WEBHOOK_BASE_URL"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("LLM_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("LLM_MODEL", "gpt-4o-mini")
	v.SetDefault("LLM_TIMEOUT_SECONDS", 30)
	v.SetDefault("SESSION_TTL_MINUTES", 30)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("LLM_BASE_URL")
	v.BindEnv("LLM_API_KEY")
	v.BindEnv("LLM_MODEL")
	v.BindEnv("LLM_TIMEOUT_SECONDS")
	v.BindEnv("SESSION_TTL_MINUTES")
	v.BindEnv("EMERGENCY_KEYWORDS")
	v.BindEnv("TELEPHONY_ACCOUNT_SID")
	v.BindEnv("TELEPHONY_AUTH_TOKEN")
	v.BindEnv("TELEPHONY_FROM_NUMBER")
	v.BindEnv("TELEPHONY_WEBHOOK_BASE_URL")

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
	if cfg.EmergencyKeywords == nil {
		keywords := v.GetString("EMERGENCY_KEYWORDS")
		if keywords != "" {
			cfg.EmergencyKeywords = strings.Split(keywords, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// LLMTimeout returns the per-stage completion timeout.
func (c *Config) LLMTimeout() time.Duration {
	if c.LLMTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.LLMTimeoutSeconds) * time.Second
}

// SessionTTL returns how long an idle conversation session is kept before
// eviction.
func (c *Config) SessionTTL() time.Duration {
	if c.SessionTTLMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// Validate checks that the configuration is safe to run. The LLM key may be
// empty (the orchestrator degrades every turn), but outbound telephony needs
// full credentials or none at all.
func (c *Config) Validate() error {
	if c.DBMaxConns < c.DBMinConns {
		return fmt.Errorf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", c.DBMaxConns, c.DBMinConns)
	}

	telephonySet := 0
	for _, s := range []string{c.TelephonyAccountSID, c.TelephonyAuthToken, c.TelephonyFromNumber} {
		if s != "" {
			telephonySet++
		}
	}
	if telephonySet != 0 && telephonySet != 3 {
		return fmt.Errorf("TELEPHONY_ACCOUNT_SID, TELEPHONY_AUTH_TOKEN and TELEPHONY_FROM_NUMBER must be set together")
	}

	return nil
}

// TelephonyEnabled reports whether outbound call initiation is configured.
func (c *Config) TelephonyEnabled() bool {
	return c.TelephonyAccountSID != "" && c.TelephonyAuthToken != "" && c.TelephonyFromNumber != ""
}
