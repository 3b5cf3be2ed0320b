package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalConfig = `
database:
  postgres:
    host: localhost
    database: notifications
    user: ${TEST_NOTIF_DB_USER}
  redis:
    address: localhost:6379
email:
  from: noreply@example.com
  smtp:
    host: smtp.example.com
`

func TestLoadFromFile_DefaultsAndExpansion(t *testing.T) {
	t.Setenv("TEST_NOTIF_DB_USER", "notifier")

	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "notifier", cfg.Database.Postgres.User)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)

	assert.Equal(t, "redis", cfg.Streams.Transport)
	assert.Equal(t, "notifications.email", cfg.Streams.Email.Stream)
	assert.Equal(t, "notifications-receiver", cfg.Streams.Receiver.Durable)
	assert.Equal(t, "notifications-fan-out", cfg.Streams.FanOut.Durable)
	assert.Equal(t, 5, cfg.Streams.MaxDeliver)

	assert.Equal(t, "smtp", cfg.Email.Provider)
	assert.Equal(t, 587, cfg.Email.SMTP.Port)
	assert.Equal(t, "redis", cfg.InApp.Transport)
	assert.Equal(t, "transaction:sign:reminder", cfg.Reminder.KeyPrefix)
	assert.Equal(t, 60, cfg.Reminder.RetryDelay)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		extra   string
		wantErr string
	}{
		{
			name:    "zeebe without broker",
			extra:   "streams:\n  transport: zeebe\n",
			wantErr: "camunda.broker_address",
		},
		{
			name:    "unknown transport",
			extra:   "streams:\n  transport: kafka\n",
			wantErr: "streams.transport",
		},
		{
			name:    "sns without topic",
			extra:   "inapp:\n  transport: sns\naws:\n  region: us-east-1\n",
			wantErr: "inapp.topic_arn",
		},
		{
			name:    "audit without elasticsearch",
			extra:   "audit:\n  enabled: true\n",
			wantErr: "elasticsearch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_NOTIF_DB_USER", "notifier")
			_, err := LoadFromFile(writeConfig(t, minimalConfig+tt.extra))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPostgresConfig_GetDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", p.GetDSN())
}
