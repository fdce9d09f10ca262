package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Registry backend selectors.
const (
	BackendMemory  = "memory"
	BackendRedis   = "redis"
	BackendMongoDB = "mongodb"
)

// ServerConfig holds all configuration for the verifier server.
// Tags use mapstructure for Viper unmarshalling.
type ServerConfig struct {
	HTTPPort string `mapstructure:"HTTP_PORT"`
	// HostURL is the absolute base URL embedded in callback URLs; it must be
	// reachable by holder wallets.
	HostURL   string `mapstructure:"HOST_URL"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`

	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// BodyLimit caps callback bodies; proofs with large public signal
	// vectors still fit comfortably under the reference 5MB.
	BodyLimit string `mapstructure:"BODY_LIMIT"`

	// AuthReason is the human-readable purpose on issued requests.
	AuthReason string `mapstructure:"AUTH_REASON"`

	// SessionTTLMin bounds session lifetime in minutes; 0 keeps records for
	// the verifier's uptime, the reference behavior.
	SessionTTLMin int `mapstructure:"SESSION_TTL_MIN"`

	// RegistryBackend selects the session store: memory, redis or mongodb.
	RegistryBackend string `mapstructure:"REGISTRY_BACKEND"`
	RedisAddr       string `mapstructure:"REDIS_ADDR"`
	RedisPrefix     string `mapstructure:"REDIS_PREFIX"`
	MongoURI        string `mapstructure:"MONGO_URI"`
	MongoDBName     string `mapstructure:"MONGO_DB_NAME"`
}

// LoadConfig reads configuration from file, environment variables, and defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/echoid-verify/")
	v.AddConfigPath("$HOME/.echoid-verify")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("HOST_URL", "http://localhost:8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("OTEL_SERVICE_NAME", "echoid-verify")
	v.SetDefault("BODY_LIMIT", "5M")
	v.SetDefault("AUTH_REASON", "Proof verification")
	v.SetDefault("SESSION_TTL_MIN", 0)
	v.SetDefault("REGISTRY_BACKEND", BackendMemory)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PREFIX", "verify")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/echoid_verify_dev")
	v.SetDefault("MONGO_DB_NAME", "echoid_verify_dev")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, we fall back to env and defaults.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	switch cfg.RegistryBackend {
	case BackendMemory, BackendRedis, BackendMongoDB:
	default:
		return nil, fmt.Errorf("unknown REGISTRY_BACKEND %q", cfg.RegistryBackend)
	}

	return &cfg, nil
}
