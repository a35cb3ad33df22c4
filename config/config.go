package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all service settings. Values come from environment
// variables; a YAML file pointed at by LOANCRM_CONFIG overrides them.
type Config struct {
	// Port the HTTP server listens on (default "8080").
	Port string `yaml:"port"`

	// Postgres connection settings.
	DBHost     string `yaml:"db_host"`
	DBPort     string `yaml:"db_port"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBName     string `yaml:"db_name"`

	// RedisAddr is host:port of the Redis used for sessions and the
	// published-definition cache.
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`

	// KafkaBroker is host:port of the event broker. Empty disables eventing.
	KafkaBroker string `yaml:"kafka_broker"`

	// ElasticsearchURL is the client search index. Empty disables search.
	ElasticsearchURL string `yaml:"elasticsearch_url"`

	// SentryDSN enables error reporting when set.
	SentryDSN string `yaml:"sentry_dsn"`

	// AppEnv tags Sentry events (e.g. "production", "staging").
	AppEnv string `yaml:"app_env"`

	// IdentitySectionMarker is the section title that carries the
	// identity fields in a questionnaire definition.
	IdentitySectionMarker string `yaml:"identity_section_marker"`
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:                  getenv("PORT", "8080"),
		DBHost:                getenv("DB_HOST", "localhost"),
		DBPort:                getenv("DB_PORT", "5432"),
		DBUser:                getenv("DB_USER", "postgres"),
		DBPassword:            os.Getenv("DB_PASSWORD"),
		DBName:                getenv("DB_NAME", "loancrm"),
		RedisAddr:             getenv("REDIS_HOST", "localhost:6379"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		KafkaBroker:           os.Getenv("KAFKA_BROKER"),
		ElasticsearchURL:      os.Getenv("ELASTICSEARCH_URL"),
		SentryDSN:             os.Getenv("SENTRY_DSN"),
		AppEnv:                getenv("APP_ENV", "development"),
		IdentitySectionMarker: getenv("INTAKE_IDENTITY_SECTION", "个人信息"),
	}

	if path := os.Getenv("LOANCRM_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	return cfg, nil
}

// DSN builds the Postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort,
	)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
