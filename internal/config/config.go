// Package config loads server settings from defaults, an optional YAML file and
// SHIRTTRACK_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "SHIRTTRACK"

const (
	keyHTTPAddr            = "http.addr"
	keyHTTPRequestTimeout  = "http.request_timeout"
	keyHTTPShutdownTimeout = "http.shutdown_timeout"
	keyGRPCAddr            = "grpc.addr"
	keyDatabaseDriver      = "database.driver"
	keyDatabaseDSN         = "database.dsn"
	keyDatabaseMaxOpen     = "database.max_open_conns"
	keyDatabaseMaxIdle     = "database.max_idle_conns"
	keyDatabaseLifetime    = "database.conn_max_lifetime"
	keyDatabaseMigrate     = "database.migrate"
	keyRedisAddr           = "redis.addr"
	keyRedisPassword       = "redis.password"
	keyRedisDB             = "redis.db"
	keyRedisIdempotencyTTL = "redis.idempotency_ttl"
	keyKafkaBrokers        = "kafka.brokers"
	keyKafkaTopic          = "kafka.topic"
	keyCORSAllowedOrigins  = "cors.allowed_origins"
)

type Config struct {
	HTTP     HTTPConfig
	GRPC     GRPCConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	CORS     CORSConfig
}

type HTTPConfig struct {
	Addr            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// GRPCConfig: an empty Addr disables the gRPC server.
type GRPCConfig struct {
	Addr string
}

type DatabaseConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Migrate         bool
}

// RedisConfig: an empty Addr disables scan idempotency.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	IdempotencyTTL time.Duration
}

// KafkaConfig: no brokers disables lifecycle events.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type CORSConfig struct {
	AllowedOrigins []string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(keyHTTPAddr, ":8000")
	v.SetDefault(keyHTTPRequestTimeout, 10*time.Second)
	v.SetDefault(keyHTTPShutdownTimeout, 5*time.Second)
	v.SetDefault(keyGRPCAddr, ":50051")
	v.SetDefault(keyDatabaseDriver, "sqlite")
	v.SetDefault(keyDatabaseDSN, "file:shirttrack.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite")
	v.SetDefault(keyDatabaseMaxOpen, 50)
	v.SetDefault(keyDatabaseMaxIdle, 25)
	v.SetDefault(keyDatabaseLifetime, 5*time.Minute)
	v.SetDefault(keyDatabaseMigrate, true)
	v.SetDefault(keyRedisAddr, "")
	v.SetDefault(keyRedisPassword, "")
	v.SetDefault(keyRedisDB, 0)
	v.SetDefault(keyRedisIdempotencyTTL, 24*time.Hour)
	v.SetDefault(keyKafkaBrokers, []string{})
	v.SetDefault(keyKafkaTopic, "shirt-lifecycle")
	v.SetDefault(keyCORSAllowedOrigins, []string{"http://localhost:5173", "http://127.0.0.1:5173"})
}

// Load reads configuration. configFile may be empty, in which case only
// defaults and the environment are used.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	cfg := &Config{
		HTTP: HTTPConfig{
			Addr:            v.GetString(keyHTTPAddr),
			RequestTimeout:  v.GetDuration(keyHTTPRequestTimeout),
			ShutdownTimeout: v.GetDuration(keyHTTPShutdownTimeout),
		},
		GRPC: GRPCConfig{
			Addr: v.GetString(keyGRPCAddr),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString(keyDatabaseDriver),
			DSN:             v.GetString(keyDatabaseDSN),
			MaxOpenConns:    v.GetInt(keyDatabaseMaxOpen),
			MaxIdleConns:    v.GetInt(keyDatabaseMaxIdle),
			ConnMaxLifetime: v.GetDuration(keyDatabaseLifetime),
			Migrate:         v.GetBool(keyDatabaseMigrate),
		},
		Redis: RedisConfig{
			Addr:           v.GetString(keyRedisAddr),
			Password:       v.GetString(keyRedisPassword),
			DB:             v.GetInt(keyRedisDB),
			IdempotencyTTL: v.GetDuration(keyRedisIdempotencyTTL),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetStringSlice(keyKafkaBrokers)),
			Topic:   v.GetString(keyKafkaTopic),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetStringSlice(keyCORSAllowedOrigins)),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr must not be empty")
	}
	if c.Database.Driver == "" {
		return errors.New("database.driver must not be empty")
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn must not be empty")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return errors.New("kafka.topic must be set when kafka.brokers is")
	}
	return nil
}

// splitList accepts both YAML lists and comma separated env values.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
