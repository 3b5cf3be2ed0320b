// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Streams   StreamsConfig   `mapstructure:"streams"`
	Camunda   CamundaConfig   `mapstructure:"camunda"`
	Email     EmailConfig     `mapstructure:"email"`
	InApp     InAppConfig     `mapstructure:"inapp"`
	Reminder  ReminderConfig  `mapstructure:"reminder"`
	Audit     AuditConfig     `mapstructure:"audit"`
	AWS       AWSConfig       `mapstructure:"aws"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Templates TemplatesConfig `mapstructure:"templates"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Messaging ---

// StreamsConfig selects the consumer transport and its tuning.
type StreamsConfig struct {
	Transport       string         `mapstructure:"transport"` // redis | zeebe
	Email           ConsumerConfig `mapstructure:"email"`
	Receiver        ConsumerConfig `mapstructure:"receiver"`
	FanOut          ConsumerConfig `mapstructure:"fanout"`
	BatchSize       int            `mapstructure:"batch_size"`
	BlockTimeout    int            `mapstructure:"block_timeout"`    // milliseconds
	AckWait         int            `mapstructure:"ack_wait"`         // milliseconds
	MaxDeliver      int            `mapstructure:"max_deliver"`      // 0 = unlimited
	ReclaimInterval int            `mapstructure:"reclaim_interval"` // milliseconds
	MaxLen          int64          `mapstructure:"max_len"`
}

// ConsumerConfig names one durable consumer.
type ConsumerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Stream  string `mapstructure:"stream"`
	Durable string `mapstructure:"durable"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// --- Channels ---

// EmailConfig configures the outbound mail provider.
type EmailConfig struct {
	Provider string `mapstructure:"provider"` // smtp | ses
	From     string `mapstructure:"from"`
	SMTP     struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		UseTLS   bool   `mapstructure:"use_tls"`
		Timeout  int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"smtp"`
}

// InAppConfig configures how in-app events reach connected clients.
type InAppConfig struct {
	Transport     string `mapstructure:"transport"` // hub | redis | sns
	ChannelPrefix string `mapstructure:"channel_prefix"`
	TopicARN      string `mapstructure:"topic_arn"`
}

type AWSConfig struct {
	Region string `mapstructure:"region"`
}

// ReminderConfig drives the signature reminder scheduler.
type ReminderConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	KeyPrefix string `mapstructure:"key_prefix"`
	Delay     int    `mapstructure:"delay"`    // seconds
	LockTTL   int    `mapstructure:"lock_ttl"` // milliseconds
	// RetryDelay re-arms a reminder whose send failed transiently.
	RetryDelay int `mapstructure:"retry_delay"` // seconds
}

type AuditConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Index   string `mapstructure:"index"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

// TemplatesConfig holds the links embedded in email bodies.
type TemplatesConfig struct {
	AppURL string `mapstructure:"app_url"`
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
