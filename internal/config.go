package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Topup         TopupConfig         `mapstructure:"topup"`
	Beneficiary   BeneficiaryConfig   `mapstructure:"beneficiary"`
	Webhook       WebhookConfig       `mapstructure:"webhook"`
	Commission    CommissionConfig    `mapstructure:"commission"`
	Notification  NotificationConfig  `mapstructure:"notification"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Source          string        `mapstructure:"source"`
}

type SecurityConfig struct {
	// JWTSecret verifies bearer tokens minted by the identity provider.
	// Identity is an external capability; this service only extracts the
	// stable user id and permission claims.
	JWTSecret string `mapstructure:"jwt_secret"`
}

type TopupConfig struct {
	MinAmount         int64         `mapstructure:"min_amount"`
	MaxPendingPerUser int           `mapstructure:"max_pending_per_user"`
	ValidityWindow    time.Duration `mapstructure:"validity_window"`
	MemoPrefix        string        `mapstructure:"memo_prefix"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
}

type BeneficiaryConfig struct {
	BankCode      string `mapstructure:"bank_code"`
	AccountNumber string `mapstructure:"account_number"`
	AccountName   string `mapstructure:"account_name"`
}

type WebhookConfig struct {
	Secret string `mapstructure:"secret"`
}

// CommissionTier is one step of a data-driven step table: the percentage
// applies from Threshold upward, until the next tier's threshold.
type CommissionTier struct {
	Threshold int64 `mapstructure:"threshold"`
	Percent   int   `mapstructure:"percent"`
}

type CommissionConfig struct {
	// ReferralTiers is keyed by the referrer's successful referral count.
	ReferralTiers []CommissionTier `mapstructure:"referral_tiers"`
	// RankTiers is keyed by the buyer's lifetime deposited amount.
	RankTiers []CommissionTier `mapstructure:"rank_tiers"`
	// ReferralDiscountPercent is the buyer-side discount for being referred.
	ReferralDiscountPercent int `mapstructure:"referral_discount_percent"`
	// MaxDiscountPercent caps the additive buyer discount.
	MaxDiscountPercent int `mapstructure:"max_discount_percent"`
}

type NotificationConfig struct {
	WebhookURL string        `mapstructure:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ----------------- DEFAULTS -----------------

// DefaultReferralTiers: 2% for the first successful referral, +2% per
// additional referral, 10% from the fifth onward.
func DefaultReferralTiers() []CommissionTier {
	return []CommissionTier{
		{Threshold: 1, Percent: 2},
		{Threshold: 2, Percent: 4},
		{Threshold: 3, Percent: 6},
		{Threshold: 4, Percent: 8},
		{Threshold: 5, Percent: 10},
	}
}

func DefaultRankTiers() []CommissionTier {
	return []CommissionTier{
		{Threshold: 0, Percent: 0},
		{Threshold: 1_000_000, Percent: 2},
		{Threshold: 5_000_000, Percent: 4},
		{Threshold: 20_000_000, Percent: 6},
	}
}

func (c *Config) ApplyDefaults() {
	if c.Topup.MinAmount == 0 {
		c.Topup.MinAmount = 10_000
	}
	if c.Topup.MaxPendingPerUser == 0 {
		c.Topup.MaxPendingPerUser = 2
	}
	if c.Topup.ValidityWindow == 0 {
		c.Topup.ValidityWindow = 15 * time.Minute
	}
	if c.Topup.MemoPrefix == "" {
		c.Topup.MemoPrefix = "DH"
	}
	if c.Topup.SweepInterval == 0 {
		c.Topup.SweepInterval = time.Minute
	}
	if len(c.Commission.ReferralTiers) == 0 {
		c.Commission.ReferralTiers = DefaultReferralTiers()
	}
	if len(c.Commission.RankTiers) == 0 {
		c.Commission.RankTiers = DefaultRankTiers()
	}
	if c.Commission.ReferralDiscountPercent == 0 {
		c.Commission.ReferralDiscountPercent = 2
	}
	if c.Commission.MaxDiscountPercent == 0 {
		c.Commission.MaxDiscountPercent = 10
	}
	if c.Notification.Timeout == 0 {
		c.Notification.Timeout = 5 * time.Second
	}
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

// LoadConfigFromEnv builds a minimal config from environment variables for
// containerized deployments.
func LoadConfigFromEnv() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("HTTP_PORT", 8080),
			BaseURL:           getEnv("BASE_URL", ""),
			AllowedOrigins:    getEnv("ALLOWED_ORIGINS", "*"),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		Database: DatabaseConfig{
			Source:          getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: 15 * time.Minute,
		},
		Security: SecurityConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Beneficiary: BeneficiaryConfig{
			BankCode:      getEnv("BENEFICIARY_BANK_CODE", ""),
			AccountNumber: getEnv("BENEFICIARY_ACCOUNT_NUMBER", ""),
			AccountName:   getEnv("BENEFICIARY_ACCOUNT_NAME", ""),
		},
		Webhook: WebhookConfig{
			Secret: getEnv("BANK_WEBHOOK_SECRET", ""),
		},
		Notification: NotificationConfig{
			WebhookURL: getEnv("NOTIFICATION_WEBHOOK_URL", ""),
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
			Logging: LoggingConfig{Level: getEnv("LOG_LEVEL", "info"), Format: "json"},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Topup.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("topup config: %v", err))
	}

	if err := c.Beneficiary.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("beneficiary config: %v", err))
	}

	if err := c.Commission.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("commission config: %v", err))
	}

	if c.Webhook.Secret == "" {
		errs = append(errs, "webhook config: secret is required")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *TopupConfig) Validate() error {
	if c.MinAmount <= 0 {
		return errors.New("min_amount must be positive")
	}
	if c.MaxPendingPerUser <= 0 {
		return errors.New("max_pending_per_user must be positive")
	}
	if c.ValidityWindow <= 0 {
		return errors.New("validity_window must be positive")
	}
	return nil
}

func (c *BeneficiaryConfig) Validate() error {
	if c.BankCode == "" || c.AccountNumber == "" {
		return errors.New("bank_code and account_number are required")
	}
	return nil
}

func (c *CommissionConfig) Validate() error {
	if err := validateTiers(c.ReferralTiers); err != nil {
		return fmt.Errorf("referral_tiers: %w", err)
	}
	if err := validateTiers(c.RankTiers); err != nil {
		return fmt.Errorf("rank_tiers: %w", err)
	}
	if c.MaxDiscountPercent < 0 || c.MaxDiscountPercent > 100 {
		return errors.New("max_discount_percent must be within [0, 100]")
	}
	return nil
}

func validateTiers(tiers []CommissionTier) error {
	if len(tiers) == 0 {
		return errors.New("at least one tier is required")
	}
	sorted := sort.SliceIsSorted(tiers, func(i, j int) bool {
		return tiers[i].Threshold < tiers[j].Threshold
	})
	if !sorted {
		return errors.New("tiers must be sorted by threshold")
	}
	for _, t := range tiers {
		if t.Percent < 0 || t.Percent > 100 {
			return fmt.Errorf("tier percent %d out of range", t.Percent)
		}
	}
	return nil
}
