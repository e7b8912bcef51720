package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/altave/settlement-service/internal/model"
)

type Config struct {
	Server     ServerConfig
	Logger     LoggerConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Gateway    GatewayConfig
	Settlement SettlementConfig
}

type ServerConfig struct {
	AppEnv   string
	HTTPPort string
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	ConnMaxIdleTime int
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

type GatewayConfig struct {
	BaseURL       string
	APIKey        string
	ChargeTimeout time.Duration
	PayoutTimeout time.Duration
}

// SettlementConfig carries the policy knobs the schema leaves open: the
// commission rate table per seller plan, the escrow auto-release window and
// the reconciliation sweep cadence.
type SettlementConfig struct {
	CommissionRates   map[model.SellerPlan]float64
	EscrowAutoRelease time.Duration
	SweepInterval     time.Duration
	ListingRecount    time.Duration
}

func LoadEnv() *Config {
	return &Config{
		Server: ServerConfig{
			AppEnv:   getEnv("APP_ENV", "dev"),
			HTTPPort: getEnv("HTTP_PORT", ":8083"),
		},
		Logger: LoggerConfig{
			Level:             getEnv("LOGGER_LEVEL", "debug"),
			Encoding:          getEnv("LOGGER_ENCODING", "console"),
			DisableCaller:     getEnvBool("LOGGER_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOGGER_DISABLE_STACKTRACE", true),
		},
		Postgres: PostgresConfig{
			Host:            getEnv("POSTGRES_HOST", "localhost"),
			Port:            getEnv("POSTGRES_PORT", "5432"),
			User:            getEnv("POSTGRES_USER", "settlement"),
			Password:        getEnv("POSTGRES_PASSWORD", "settlement"),
			DBName:          getEnv("POSTGRES_DB", "settlement"),
			SSLMode:         getEnv("POSTGRES_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("POSTGRES_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvInt("POSTGRES_CONN_MAX_LIFETIME", 300),
			ConnMaxIdleTime: getEnvInt("POSTGRES_CONN_MAX_IDLE_TIME", 60),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Brokers: getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnv("KAFKA_TOPIC_SETTLEMENT", "settlement.events"),
		},
		Gateway: GatewayConfig{
			BaseURL:       getEnv("GATEWAY_BASE_URL", "http://localhost:9090"),
			APIKey:        getEnv("GATEWAY_API_KEY", ""),
			ChargeTimeout: getEnvDuration("GATEWAY_CHARGE_TIMEOUT", 10*time.Second),
			PayoutTimeout: getEnvDuration("GATEWAY_PAYOUT_TIMEOUT", 10*time.Second),
		},
		Settlement: SettlementConfig{
			CommissionRates: map[model.SellerPlan]float64{
				model.PlanFree:         getEnvFloat("COMMISSION_RATE_FREE", 0.10),
				model.PlanRetailSub:    getEnvFloat("COMMISSION_RATE_RETAIL", 0.05),
				model.PlanWholesaleSub: getEnvFloat("COMMISSION_RATE_WHOLESALE", 0.03),
			},
			EscrowAutoRelease: getEnvDuration("ESCROW_AUTO_RELEASE", 7*24*time.Hour),
			SweepInterval:     getEnvDuration("SETTLEMENT_SWEEP_INTERVAL", time.Minute),
			ListingRecount:    getEnvDuration("LISTING_RECOUNT_INTERVAL", 5*time.Minute),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.Split(value, ",")
	}
	return fallback
}
