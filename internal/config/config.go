package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/septivank/meter-reading-uploads/internal/upload"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	ServiceName string
	ServicePort int
	LogLevel    string
	Database    DatabaseConfig
	RabbitMQ    RabbitMQConfig
	Upload      UploadConfig
	CORS        CORSConfig
	Metrics     MetricsConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL             string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

// RabbitMQConfig holds RabbitMQ settings. An empty URL disables publishing.
type RabbitMQConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
}

// UploadConfig holds the CSV upload limits and rules
type UploadConfig struct {
	MaxBytes int64
	Rules    upload.Rules
}

// CORSConfig holds allowed frontend origins
type CORSConfig struct {
	AllowedOrigins []string
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled   bool
	Namespace string
}

// Load reads configuration from an optional config.yaml and the environment.
// Environment variables win; nested keys map as database.url -> DATABASE_URL.
func Load() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set in environment variables")
	}

	return cfg, nil
}

// LoadOffline is Load without the database requirement, for commands that
// never touch the store.
func LoadOffline() (*Config, error) {
	return load()
}

func load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	rules := upload.DefaultRules()
	rules.MinValue = v.GetInt("upload.min_value")
	rules.MaxValue = v.GetInt("upload.max_value")
	if layouts := listValue(v, "upload.datetime_layouts", ";"); len(layouts) > 0 {
		rules.DateTimeLayouts = layouts
	}
	if rules.MinValue > rules.MaxValue {
		return nil, fmt.Errorf("UPLOAD_MIN_VALUE (%d) must not exceed UPLOAD_MAX_VALUE (%d)", rules.MinValue, rules.MaxValue)
	}

	return &Config{
		ServiceName: v.GetString("service.name"),
		ServicePort: v.GetInt("service.port"),
		LogLevel:    v.GetString("log.level"),
		Database: DatabaseConfig{
			URL:             v.GetString("database.url"),
			MaxConns:        v.GetInt32("database.max_conns"),
			MaxConnLifetime: v.GetDuration("database.max_conn_lifetime"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:        v.GetString("rabbitmq.url"),
			Exchange:   v.GetString("rabbitmq.exchange"),
			RoutingKey: v.GetString("rabbitmq.routing_key"),
		},
		Upload: UploadConfig{
			MaxBytes: v.GetInt64("upload.max_bytes"),
			Rules:    rules,
		},
		CORS: CORSConfig{
			AllowedOrigins: listValue(v, "cors.allowed_origins", ","),
		},
		Metrics: MetricsConfig{
			Enabled:   v.GetBool("metrics.enabled"),
			Namespace: v.GetString("metrics.namespace"),
		},
	}, nil
}

func setDefaults(v *viper.Viper) {
	defaults := upload.DefaultRules()

	v.SetDefault("service.name", "meter-reading-uploads")
	v.SetDefault("service.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.max_conn_lifetime", 30*time.Minute)
	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.exchange", "meter-readings.events.exchange")
	v.SetDefault("rabbitmq.routing_key", "meter.reading.accepted")
	v.SetDefault("upload.max_bytes", 32<<20)
	v.SetDefault("upload.min_value", defaults.MinValue)
	v.SetDefault("upload.max_value", defaults.MaxValue)
	v.SetDefault("upload.datetime_layouts", []string{})
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "meter_uploads")
}

// listValue reads a list that may come from YAML as a sequence or from the
// environment as a sep-separated string.
func listValue(v *viper.Viper, key, sep string) []string {
	raw, ok := v.Get(key).(string)
	if !ok {
		return v.GetStringSlice(key)
	}

	var out []string
	for _, item := range strings.Split(raw, sep) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
