package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	SnapshotBackendRedis  = "redis"
	SnapshotBackendMemory = "memory"

	InventoryBackendHTTP  = "http"
	InventoryBackendMySQL = "mysql"
)

type Config struct {
	AppEnv   string
	LogLevel string

	HTTPAddr string
	GRPCAddr string

	SnapshotBackend string
	SnapshotKey     string
	RedisAddr       string

	InventoryBackend string
	InventoryURL     string
	InventoryTimeout time.Duration
	MySQLDSN         string

	KafkaBrokers []string
	NoticeTopic  string

	HealthInterval  time.Duration
	ShutdownTimeout time.Duration
}

// Load reads the configuration from the environment. Call godotenv.Load
// first to pick up a local .env file.
func Load() (Config, error) {
	cfg := Config{
		AppEnv:   getEnv("APP_ENV", "dev"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		GRPCAddr: getEnv("GRPC_ADDR", ":50051"),

		SnapshotBackend: strings.ToLower(getEnv("SNAPSHOT_BACKEND", SnapshotBackendRedis)),
		SnapshotKey:     getEnv("SNAPSHOT_KEY", "@cartstore:cart"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),

		InventoryBackend: strings.ToLower(getEnv("INVENTORY_BACKEND", InventoryBackendHTTP)),
		InventoryURL:     getEnv("INVENTORY_URL", "http://localhost:3333"),
		MySQLDSN:         getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/cartstore?parseTime=true"),

		KafkaBrokers: getEnvList("KAFKA_BROKERS"),
		NoticeTopic:  getEnv("NOTICE_TOPIC", "cart.notices"),
	}

	var err error
	if cfg.InventoryTimeout, err = getEnvDuration("INVENTORY_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.HealthInterval, err = getEnvDuration("HEALTH_INTERVAL", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownTimeout, err = getEnvDuration("SHUTDOWN_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}

	switch cfg.SnapshotBackend {
	case SnapshotBackendRedis, SnapshotBackendMemory:
	default:
		return Config{}, fmt.Errorf("SNAPSHOT_BACKEND must be %q or %q, got %q", SnapshotBackendRedis, SnapshotBackendMemory, cfg.SnapshotBackend)
	}

	switch cfg.InventoryBackend {
	case InventoryBackendHTTP, InventoryBackendMySQL:
	default:
		return Config{}, fmt.Errorf("INVENTORY_BACKEND must be %q or %q, got %q", InventoryBackendHTTP, InventoryBackendMySQL, cfg.InventoryBackend)
	}

	if cfg.SnapshotKey == "" {
		return Config{}, fmt.Errorf("SNAPSHOT_KEY is required")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}
