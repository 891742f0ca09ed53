package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	QR        QRConfig
	Scan      ScanConfig
	Dashboard DashboardConfig
	Admin     AdminBootstrapConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// QRConfig governs token issuance and payload rendering.
type QRConfig struct {
	// TokenTTL is the validity window stamped onto every issued token.
	TokenTTL time.Duration
	// BaseURL is the public origin embedded in scan URLs.
	BaseURL string
	// ImageSize is the rendered PNG edge length in pixels.
	ImageSize int
	// EmbedRoster includes a display-only student snapshot in the QR payload.
	// The snapshot is never consulted during scan validation.
	EmbedRoster bool
}

// ScanConfig tunes rate limiting on the public scan endpoint.
type ScanConfig struct {
	RatePerMinute int
	Burst         int
}

// DashboardConfig governs dashboard exposure and cache tuning.
type DashboardConfig struct {
	Enabled  bool
	CacheTTL time.Duration
}

// AdminBootstrapConfig seeds the first administrator account.
type AdminBootstrapConfig struct {
	Username string
	Password string
	FullName string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.QR = QRConfig{
		TokenTTL:    parseDuration(v.GetString("QR_TOKEN_TTL"), 30*time.Second),
		BaseURL:     strings.TrimRight(v.GetString("QR_BASE_URL"), "/"),
		ImageSize:   v.GetInt("QR_IMAGE_SIZE"),
		EmbedRoster: v.GetBool("QR_EMBED_ROSTER"),
	}

	cfg.Scan = ScanConfig{
		RatePerMinute: v.GetInt("SCAN_RATE_PER_MINUTE"),
		Burst:         v.GetInt("SCAN_RATE_BURST"),
	}

	cfg.Dashboard = DashboardConfig{
		Enabled:  v.GetBool("ENABLE_DASHBOARD"),
		CacheTTL: parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Admin = AdminBootstrapConfig{
		Username: v.GetString("ADMIN_USERNAME"),
		Password: v.GetString("ADMIN_PASSWORD"),
		FullName: v.GetString("ADMIN_FULL_NAME"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "qr_attendance")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "qr-attendance-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("QR_TOKEN_TTL", "30s")
	v.SetDefault("QR_BASE_URL", "http://localhost:8080")
	v.SetDefault("QR_IMAGE_SIZE", 300)
	v.SetDefault("QR_EMBED_ROSTER", false)

	v.SetDefault("SCAN_RATE_PER_MINUTE", 60)
	v.SetDefault("SCAN_RATE_BURST", 20)

	v.SetDefault("ENABLE_DASHBOARD", true)
	v.SetDefault("DASHBOARD_CACHE_TTL", "5m")

	v.SetDefault("ADMIN_USERNAME", "admin")
	v.SetDefault("ADMIN_PASSWORD", "admin123")
	v.SetDefault("ADMIN_FULL_NAME", "Administrator")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
