package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"billine-gateway/internal/signing"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Billine  BillineConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Callback CallbackConfig
	Logging  LoggingConfig
	Tracing  TracingConfig
}

type ServerConfig struct {
	Port         int
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// TrustedProxies may set X-Forwarded-For / X-Real-IP.
	TrustedProxies []string
}

type BillineConfig struct {
	BaseURL           string
	SecretKey         signing.Secret
	MerchantID        string
	HTTPTimeout       time.Duration
	IframePath        string
	PayoutPath        string
	IframeAlgorithm   signing.Algorithm
	PayoutAlgorithm   signing.Algorithm
	CallbackAlgorithm signing.Algorithm
	AllowedCIDRs      []string
}

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DB       string
	SSLMode  string
}

// Enabled reports whether the callback audit trail should be written.
func (p PostgresConfig) Enabled() bool {
	return p.Host != ""
}

// DSN builds a lib/pq key=value connection string. Every value is quoted so
// spaces, quotes and backslashes survive.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		quoteDSN(p.Host), p.Port, quoteDSN(p.User), quoteDSN(p.Password), quoteDSN(p.DB), quoteDSN(p.SSLMode))
}

func quoteDSN(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

type RedisConfig struct {
	Host      string
	Port      int
	Password  string
	DB        int
	KeyPrefix string
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, fmt.Sprint(r.Port))
}

type CallbackConfig struct {
	Stream   string
	DedupTTL time.Duration
}

type LoggingConfig struct {
	Level    string
	Encoding string
}

type TracingConfig struct {
	Enabled     bool
	ServiceName string
}

func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_READ_TIMEOUT", "10s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "10s")
	v.SetDefault("BILLINE_HTTP_TIMEOUT", "10s")
	v.SetDefault("BILLINE_IFRAME_PATH", "/api/iframe")
	v.SetDefault("BILLINE_PAYOUT_PATH", "/api/payout")
	v.SetDefault("BILLINE_IFRAME_ALGORITHM", "sha256")
	v.SetDefault("BILLINE_PAYOUT_ALGORITHM", "md5")
	v.SetDefault("BILLINE_CALLBACK_ALGORITHM", "sha256")
	v.SetDefault("BILLINE_CALLBACK_STREAM", "billine.callbacks")
	v.SetDefault("CALLBACK_DEDUP_TTL", "24h")
	v.SetDefault("REDIS_KEY_PREFIX", "billine")
	v.SetDefault("POSTGRES_PORT", 5432)
	v.SetDefault("POSTGRES_SSL_MODE", "disable")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_ENCODING", "json")
	v.SetDefault("SERVICE_NAME", "billine-gateway")

	readTimeout, err := parseDurationWithDefault(v.GetString("SERVER_READ_TIMEOUT"), 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_READ_TIMEOUT: %w", err)
	}
	writeTimeout, err := parseDurationWithDefault(v.GetString("SERVER_WRITE_TIMEOUT"), 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT: %w", err)
	}
	httpTimeout, err := parseDurationWithDefault(v.GetString("BILLINE_HTTP_TIMEOUT"), 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid BILLINE_HTTP_TIMEOUT: %w", err)
	}
	dedupTTL, err := parseDurationWithDefault(v.GetString("CALLBACK_DEDUP_TTL"), 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid CALLBACK_DEDUP_TTL: %w", err)
	}

	iframeAlg, err := signing.ParseAlgorithm(v.GetString("BILLINE_IFRAME_ALGORITHM"))
	if err != nil {
		return nil, fmt.Errorf("invalid BILLINE_IFRAME_ALGORITHM: %w", err)
	}
	payoutAlg, err := signing.ParseAlgorithm(v.GetString("BILLINE_PAYOUT_ALGORITHM"))
	if err != nil {
		return nil, fmt.Errorf("invalid BILLINE_PAYOUT_ALGORITHM: %w", err)
	}
	callbackAlg, err := signing.ParseAlgorithm(v.GetString("BILLINE_CALLBACK_ALGORITHM"))
	if err != nil {
		return nil, fmt.Errorf("invalid BILLINE_CALLBACK_ALGORITHM: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetInt("SERVER_PORT"),
			Host:           v.GetString("SERVER_HOST"),
			ReadTimeout:    readTimeout,
			WriteTimeout:   writeTimeout,
			TrustedProxies: parseList(v.GetString("SERVER_TRUSTED_PROXIES")),
		},
		Billine: BillineConfig{
			BaseURL:           strings.TrimRight(v.GetString("BILLINE_BASE_URL"), "/"),
			SecretKey:         signing.NewSecret(v.GetString("BILLINE_SECRET_KEY")),
			MerchantID:        v.GetString("BILLINE_MERCHANT_ID"),
			HTTPTimeout:       httpTimeout,
			IframePath:        v.GetString("BILLINE_IFRAME_PATH"),
			PayoutPath:        v.GetString("BILLINE_PAYOUT_PATH"),
			IframeAlgorithm:   iframeAlg,
			PayoutAlgorithm:   payoutAlg,
			CallbackAlgorithm: callbackAlg,
			AllowedCIDRs:      parseList(v.GetString("BILLINE_ALLOWED_CIDRS")),
		},
		Postgres: PostgresConfig{
			Host:     v.GetString("POSTGRES_HOST"),
			Port:     v.GetInt("POSTGRES_PORT"),
			User:     v.GetString("POSTGRES_USER"),
			Password: v.GetString("POSTGRES_PASSWORD"),
			DB:       v.GetString("POSTGRES_DB"),
			SSLMode:  v.GetString("POSTGRES_SSL_MODE"),
		},
		Redis: RedisConfig{
			Host:      v.GetString("REDIS_HOST"),
			Port:      v.GetInt("REDIS_PORT"),
			Password:  v.GetString("REDIS_PASSWORD"),
			DB:        v.GetInt("REDIS_DB"),
			KeyPrefix: v.GetString("REDIS_KEY_PREFIX"),
		},
		Callback: CallbackConfig{
			Stream:   v.GetString("BILLINE_CALLBACK_STREAM"),
			DedupTTL: dedupTTL,
		},
		Logging: LoggingConfig{
			Level:    v.GetString("LOG_LEVEL"),
			Encoding: v.GetString("LOG_ENCODING"),
		},
		Tracing: TracingConfig{
			Enabled:     v.GetBool("TRACING_ENABLED"),
			ServiceName: v.GetString("SERVICE_NAME"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.validateBilline(); err != nil {
		return fmt.Errorf("billine config: %w", err)
	}
	if err := c.validateRedis(); err != nil {
		return fmt.Errorf("redis config: %w", err)
	}
	if err := c.validatePostgres(); err != nil {
		return fmt.Errorf("postgres config: %w", err)
	}
	if err := c.validateCallback(); err != nil {
		return fmt.Errorf("callback config: %w", err)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	for _, cidr := range c.Server.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return fmt.Errorf("invalid trusted proxy cidr %q", cidr)
		}
	}
	return nil
}

func (c *Config) validateBilline() error {
	if c.Billine.BaseURL == "" {
		return fmt.Errorf("base url is required")
	}
	u, err := url.Parse(c.Billine.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base url must be absolute")
	}
	if c.Billine.SecretKey.IsZero() {
		return fmt.Errorf("secret key is required")
	}
	if c.Billine.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be greater than 0")
	}
	if !strings.HasPrefix(c.Billine.IframePath, "/") || !strings.HasPrefix(c.Billine.PayoutPath, "/") {
		return fmt.Errorf("endpoint paths must start with /")
	}
	for _, cidr := range c.Billine.AllowedCIDRs {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return fmt.Errorf("invalid allowed cidr %q", cidr)
		}
	}
	return nil
}

func (c *Config) validateRedis() error {
	if c.Redis.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Redis.Port == 0 {
		return fmt.Errorf("port is required")
	}
	return nil
}

func (c *Config) validatePostgres() error {
	if !c.Postgres.Enabled() {
		return nil
	}
	if c.Postgres.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if c.Postgres.User == "" {
		return fmt.Errorf("user is required")
	}
	if c.Postgres.DB == "" {
		return fmt.Errorf("database name is required")
	}
	return nil
}

func (c *Config) validateCallback() error {
	if c.Callback.Stream == "" {
		return fmt.Errorf("stream is required")
	}
	if c.Callback.DedupTTL <= 0 {
		return fmt.Errorf("dedup ttl must be greater than 0")
	}
	return nil
}

func parseList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration string")
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	return d, nil
}

func parseDurationWithDefault(s string, defaultVal time.Duration) (time.Duration, error) {
	if s == "" {
		return defaultVal, nil
	}
	return parseDuration(s)
}
