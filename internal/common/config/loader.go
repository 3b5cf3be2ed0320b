// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, overlays config.<env>.yaml and applies env overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return decode(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	paths := []string{".env", "../.env", "../../.env"}
	if root := findProjectRoot(); root != "" {
		paths = append(paths, filepath.Join(root, ".env"))
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets from conventional env names when the yaml left them blank.
func overrideEmptyConfig(cfg *Config) {
	setIfEmpty(&cfg.Database.Postgres.User, "DB_USER")
	setIfEmpty(&cfg.Database.Postgres.Password, "DB_PASSWORD")
	setIfEmpty(&cfg.Database.Redis.Password, "REDIS_PASSWORD")
	setIfEmpty(&cfg.Email.SMTP.Username, "SMTP_USERNAME")
	setIfEmpty(&cfg.Email.SMTP.Password, "SMTP_PASSWORD")
	setIfEmpty(&cfg.InApp.TopicARN, "INAPP_TOPIC_ARN")
}

func setIfEmpty(field *string, env string) {
	if *field != "" {
		return
	}
	if val := os.Getenv(env); val != "" {
		*field = val
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "notification-workers"
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}

	s := &cfg.Streams
	if s.Transport == "" {
		s.Transport = "redis"
	}
	defaultConsumer(&s.Email, "notifications.email", "notifications-email")
	defaultConsumer(&s.Receiver, "notifications.receiver", "notifications-receiver")
	defaultConsumer(&s.FanOut, "notifications.fan-out", "notifications-fan-out")
	if s.BatchSize == 0 {
		s.BatchSize = 10
	}
	if s.BlockTimeout == 0 {
		s.BlockTimeout = 5000
	}
	if s.AckWait == 0 {
		s.AckWait = 30000
	}
	if s.MaxDeliver == 0 {
		s.MaxDeliver = 5
	}
	if s.ReclaimInterval == 0 {
		s.ReclaimInterval = 15000
	}
	if s.MaxLen == 0 {
		s.MaxLen = 100000
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Email.Provider == "" {
		cfg.Email.Provider = "smtp"
	}
	if cfg.Email.SMTP.Port == 0 {
		cfg.Email.SMTP.Port = 587
	}
	if cfg.Email.SMTP.Timeout == 0 {
		cfg.Email.SMTP.Timeout = 10000
	}

	if cfg.InApp.Transport == "" {
		cfg.InApp.Transport = "redis"
	}
	if cfg.InApp.ChannelPrefix == "" {
		cfg.InApp.ChannelPrefix = "notifications:user"
	}

	if cfg.Reminder.KeyPrefix == "" {
		cfg.Reminder.KeyPrefix = "transaction:sign:reminder"
	}
	if cfg.Reminder.Delay == 0 {
		cfg.Reminder.Delay = 24 * 60 * 60
	}
	if cfg.Reminder.LockTTL == 0 {
		cfg.Reminder.LockTTL = 10000
	}
	if cfg.Reminder.RetryDelay == 0 {
		cfg.Reminder.RetryDelay = 60
	}

	if cfg.Audit.Index == "" {
		cfg.Audit.Index = "notification-deliveries"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = ":8080"
	}
}

func defaultConsumer(c *ConsumerConfig, stream, durable string) {
	if c.Stream == "" {
		c.Stream = stream
	}
	if c.Durable == "" {
		c.Durable = durable
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}
	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}

	switch cfg.Streams.Transport {
	case "redis":
	case "zeebe":
		if cfg.Camunda.BrokerAddress == "" {
			return fmt.Errorf("camunda.broker_address is required for the zeebe transport")
		}
	default:
		return fmt.Errorf("streams.transport must be redis or zeebe, got %q", cfg.Streams.Transport)
	}

	switch cfg.Email.Provider {
	case "smtp":
		if cfg.Email.SMTP.Host == "" {
			return fmt.Errorf("email.smtp.host is required")
		}
	case "ses":
		if cfg.AWS.Region == "" {
			return fmt.Errorf("aws.region is required for the ses provider")
		}
	default:
		return fmt.Errorf("email.provider must be smtp or ses, got %q", cfg.Email.Provider)
	}
	if cfg.Email.From == "" {
		return fmt.Errorf("email.from is required")
	}

	switch cfg.InApp.Transport {
	case "hub", "redis":
	case "sns":
		if cfg.InApp.TopicARN == "" {
			return fmt.Errorf("inapp.topic_arn is required for the sns transport")
		}
		if cfg.AWS.Region == "" {
			return fmt.Errorf("aws.region is required for the sns transport")
		}
	default:
		return fmt.Errorf("inapp.transport must be hub, redis or sns, got %q", cfg.InApp.Transport)
	}

	if cfg.Audit.Enabled && cfg.Database.Elasticsearch.GetURL() == "" {
		return fmt.Errorf("database.elasticsearch.addresses or url is required when audit is enabled")
	}
	return nil
}
