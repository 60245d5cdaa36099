package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ServerPort    string `yaml:"server_port"`
	PublicBaseURL string `yaml:"public_base_url"`

	// DBDriver is "postgres" or "memory"; memory keeps nothing across restarts.
	DBDriver   string `yaml:"db_driver"`
	DBHost     string `yaml:"db_host"`
	DBPort     string `yaml:"db_port"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBName     string `yaml:"db_name"`
	DBSSLMode  string `yaml:"db_sslmode"`

	JWTSecret     string `yaml:"jwt_secret"`
	AdminPassword string `yaml:"admin_password"`

	StoragePath          string `yaml:"storage_path"`
	ChatImageMaxBytes    int64  `yaml:"chat_image_max_bytes"`
	ProductImageMaxBytes int64  `yaml:"product_image_max_bytes"`

	NatsURL string `yaml:"nats_url"`

	KeepAliveCron  string  `yaml:"keepalive_cron"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
}

// Load builds the configuration from defaults, an optional YAML file named
// by CONFIG_FILE and the environment, in increasing order of precedence.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	cfg.ServerPort = getEnv("SERVER_PORT", cfg.ServerPort)
	cfg.PublicBaseURL = getEnv("PUBLIC_BASE_URL", cfg.PublicBaseURL)
	cfg.DBDriver = getEnv("DB_DRIVER", cfg.DBDriver)
	cfg.DBHost = getEnv("DB_HOST", cfg.DBHost)
	cfg.DBPort = getEnv("DB_PORT", cfg.DBPort)
	cfg.DBUser = getEnv("DB_USER", cfg.DBUser)
	cfg.DBPassword = getEnv("DB_PASSWORD", cfg.DBPassword)
	cfg.DBName = getEnv("DB_NAME", cfg.DBName)
	cfg.DBSSLMode = getEnv("DB_SSLMODE", cfg.DBSSLMode)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.AdminPassword = getEnv("ADMIN_PASSWORD", cfg.AdminPassword)
	cfg.StoragePath = getEnv("STORAGE_PATH", cfg.StoragePath)
	cfg.NatsURL = getEnv("NATS_URL", cfg.NatsURL)
	cfg.KeepAliveCron = getEnv("KEEPALIVE_CRON", cfg.KeepAliveCron)

	var err error
	if cfg.ChatImageMaxBytes, err = getEnvInt64("CHAT_IMAGE_MAX_BYTES", cfg.ChatImageMaxBytes); err != nil {
		return nil, err
	}
	if cfg.ProductImageMaxBytes, err = getEnvInt64("PRODUCT_IMAGE_MAX_BYTES", cfg.ProductImageMaxBytes); err != nil {
		return nil, err
	}
	if cfg.RateLimitRPS, err = getEnvFloat("RATE_LIMIT_RPS", cfg.RateLimitRPS); err != nil {
		return nil, err
	}
	burst, err := getEnvInt64("RATE_LIMIT_BURST", int64(cfg.RateLimitBurst))
	if err != nil {
		return nil, err
	}
	cfg.RateLimitBurst = int(burst)

	if cfg.DBDriver != "postgres" && cfg.DBDriver != "memory" {
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver)
	}

	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = "http://localhost:" + cfg.ServerPort
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		ServerPort:           "8080",
		DBDriver:             "postgres",
		DBHost:               "localhost",
		DBPort:               "5432",
		DBUser:               "onionparts",
		DBPassword:           "onionparts_dev_password",
		DBName:               "onionparts",
		DBSSLMode:            "disable",
		JWTSecret:            "dev-secret-change-me",
		StoragePath:          "data/objects",
		ChatImageMaxBytes:    5 << 20,
		ProductImageMaxBytes: 10 << 20,
		KeepAliveCron:        "*/5 * * * *",
		RateLimitRPS:         5,
		RateLimitBurst:       10,
	}
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	val, exists := os.LookupEnv(key)

	if exists {
		return val
	}

	return fallback
}

func getEnvInt64(key string, fallback int64) (int64, error) {
	val, exists := os.LookupEnv(key)
	if !exists || val == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, val, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	val, exists := os.LookupEnv(key)
	if !exists || val == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, val, err)
	}
	return f, nil
}
