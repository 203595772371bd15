package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	DynamoDB DynamoDBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	OTP      OTPConfig
	SMS      SMSConfig
	Gateway  GatewayConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DynamoDBConfig struct {
	Endpoint  string
	Region    string
	TableName string
}

type RedisConfig struct {
	Endpoint string
	Password string
	DB       int
}

type JWTConfig struct {
	SecretKey     string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

type OTPConfig struct {
	Length      int
	Expiry      time.Duration
	MaxAttempts int
}

// SMSConfig selects the OTP delivery backend. Mode "local" generates codes
// in-process and logs them; "http" talks to the external SMS provider.
type SMSConfig struct {
	Mode    string
	BaseURL string
	Timeout time.Duration
}

// GatewayConfig selects the payment gateway adapter. Mode "mock" resolves
// after MockDelay without any network; "live" drives the provider intent
// endpoints through BaseURL.
type GatewayConfig struct {
	Mode      string
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
	MockDelay time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		DynamoDB: DynamoDBConfig{
			Endpoint:  getEnv("DYNAMODB_ENDPOINT", ""),
			Region:    getEnv("DYNAMODB_REGION", "ap-northeast-1"),
			TableName: getEnv("DYNAMODB_TABLE_NAME", "PixmartTable"),
		},
		Redis: RedisConfig{
			Endpoint: getEnv("REDIS_ENDPOINT", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			SecretKey:     getEnv("JWT_SECRET_KEY", ""),
			AccessExpiry:  getEnvAsDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
			RefreshExpiry: getEnvAsDuration("JWT_REFRESH_EXPIRY", 7*24*time.Hour),
		},
		OTP: OTPConfig{
			Length:      getEnvAsInt("OTP_LENGTH", 6),
			Expiry:      getEnvAsDuration("OTP_EXPIRY", 10*time.Minute),
			MaxAttempts: getEnvAsInt("OTP_MAX_ATTEMPTS", 5),
		},
		SMS: SMSConfig{
			Mode:    getEnv("SMS_MODE", "local"),
			BaseURL: getEnv("SMS_BASE_URL", ""),
			Timeout: getEnvAsDuration("SMS_TIMEOUT", 10*time.Second),
		},
		Gateway: GatewayConfig{
			Mode:      getEnv("GATEWAY_MODE", "mock"),
			BaseURL:   getEnv("GATEWAY_BASE_URL", ""),
			SecretKey: getEnv("GATEWAY_SECRET_KEY", ""),
			Timeout:   getEnvAsDuration("GATEWAY_TIMEOUT", 15*time.Second),
			MockDelay: getEnvAsDuration("GATEWAY_MOCK_DELAY", 2*time.Second),
		},
	}

	if cfg.JWT.SecretKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is required")
	}

	if len(cfg.JWT.SecretKey) < 32 {
		return nil, fmt.Errorf("JWT_SECRET_KEY must be at least 32 bytes (256 bits)")
	}

	if cfg.SMS.Mode != "local" && cfg.SMS.Mode != "http" {
		return nil, fmt.Errorf("SMS_MODE must be \"local\" or \"http\", got %q", cfg.SMS.Mode)
	}
	if cfg.SMS.Mode == "http" && cfg.SMS.BaseURL == "" {
		return nil, fmt.Errorf("SMS_BASE_URL is required when SMS_MODE is \"http\"")
	}

	if cfg.Gateway.Mode != "mock" && cfg.Gateway.Mode != "live" {
		return nil, fmt.Errorf("GATEWAY_MODE must be \"mock\" or \"live\", got %q", cfg.Gateway.Mode)
	}
	if cfg.Gateway.Mode == "live" && cfg.Gateway.BaseURL == "" {
		return nil, fmt.Errorf("GATEWAY_BASE_URL is required when GATEWAY_MODE is \"live\"")
	}
	if cfg.Gateway.Mode == "live" && cfg.Gateway.SecretKey == "" {
		return nil, fmt.Errorf("GATEWAY_SECRET_KEY is required when GATEWAY_MODE is \"live\"")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
