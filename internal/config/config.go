package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"GO_ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	JWTSecret   string `mapstructure:"JWT_SECRET"`
	JWTTTLHours int    `mapstructure:"JWT_TTL_HOURS"`
	FrontendURL string `mapstructure:"FRONTEND_URL"`

	// Redis
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	// Socket sendMessage limit per user, enforced through Redis
	SocketMessageLimit         int `mapstructure:"SOCKET_MESSAGE_LIMIT"`
	SocketMessageWindowSeconds int `mapstructure:"SOCKET_MESSAGE_WINDOW_SECONDS"`

	// S3 compatible avatar storage
	S3Endpoint        string `mapstructure:"S3_ENDPOINT"`
	S3Region          string `mapstructure:"S3_REGION"`
	S3AccessKeyID     string `mapstructure:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `mapstructure:"S3_SECRET_ACCESS_KEY"`
	S3Bucket          string `mapstructure:"S3_BUCKET"`
	S3PublicURL       string `mapstructure:"S3_PUBLIC_URL"`

	// Tracing
	OtelEnabled      bool    `mapstructure:"OTEL_ENABLED"`
	OtelEndpoint     string  `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OtelSamplerRatio float64 `mapstructure:"OTEL_SAMPLER_RATIO"`
}

var AppConfig *Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "5000")
	v.SetDefault("GO_ENV", "development")
	v.SetDefault("JWT_TTL_HOURS", 24*7)
	v.SetDefault("FRONTEND_URL", "http://localhost:5173")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("SOCKET_MESSAGE_LIMIT", 30)
	v.SetDefault("SOCKET_MESSAGE_WINDOW_SECONDS", 60)
	v.SetDefault("S3_REGION", "auto")
	v.SetDefault("OTEL_SAMPLER_RATIO", 0.1)
}

// bindKeys makes AutomaticEnv visible to Unmarshal for keys absent from .env.
func bindKeys(v *viper.Viper) {
	for _, key := range []string{
		"DATABASE_URL", "JWT_SECRET", "REDIS_PASSWORD",
		"S3_ENDPOINT", "S3_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY", "S3_BUCKET", "S3_PUBLIC_URL",
		"OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT",
	} {
		_ = v.BindEnv(key)
	}
}

func LoadConfig() {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	setDefaults(v)
	bindKeys(v)

	if err := v.ReadInConfig(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		log.Fatalf("Unable to decode config: %v", err)
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}
	AppConfig = cfg
}

// TokenTTL is the lifetime of issued access tokens.
func (c *Config) TokenTTL() time.Duration {
	if c.JWTTTLHours <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(c.JWTTTLHours) * time.Hour
}

// SocketMessageWindow is the window SocketMessageLimit applies to.
func (c *Config) SocketMessageWindow() time.Duration {
	if c.SocketMessageWindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.SocketMessageWindowSeconds) * time.Second
}
