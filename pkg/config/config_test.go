package config

import (
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"PORT", "DB_PATH", "LOG_LEVEL", "JWT_SECRET", "TOKEN_TTL", "ADMIN_USERNAME", "ADMIN_PASSWORD",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "SENDER_EMAIL",
	"REMINDER_SCHEDULE", "REMINDER_LEAD_DAYS",
}

// clearEnv unsets every key Load reads for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok {
			require.NoError(t, os.Unsetenv(k))
			t.Cleanup(func() { os.Setenv(k, v) })
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "microfin.db", cfg.DBPath)
	assert.Equal(t, logrus.InfoLevel, cfg.LogLevel)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "@daily", cfg.ReminderSchedule)
	assert.Equal(t, 3, cfg.ReminderLeadDays)
	assert.False(t, cfg.SMTPEnabled())
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("DB_PATH", "/var/lib/microfin/data.db")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("TOKEN_TTL", "90m")
	t.Setenv("ADMIN_USERNAME", "root")
	t.Setenv("ADMIN_PASSWORD", "s3cret")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SENDER_EMAIL", "loans@example.com")
	t.Setenv("REMINDER_SCHEDULE", "0 8 * * *")
	t.Setenv("REMINDER_LEAD_DAYS", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "/var/lib/microfin/data.db", cfg.DBPath)
	assert.Equal(t, logrus.DebugLevel, cfg.LogLevel)
	assert.Equal(t, 90*time.Minute, cfg.TokenTTL)
	assert.Equal(t, "root", cfg.AdminUsername)
	assert.Equal(t, "0 8 * * *", cfg.ReminderSchedule)
	assert.Equal(t, 5, cfg.ReminderLeadDays)
	assert.True(t, cfg.SMTPEnabled())
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"log level":       {"LOG_LEVEL": "loud"},
		"token ttl":       {"TOKEN_TTL": "forever"},
		"negative ttl":    {"TOKEN_TTL": "-1h"},
		"lead days":       {"REMINDER_LEAD_DAYS": "soon"},
		"negative lead":   {"REMINDER_LEAD_DAYS": "-2"},
		"cron":            {"REMINDER_SCHEDULE": "every tuesday"},
		"empty secret":    {"JWT_SECRET": ""},
		"half admin":      {"ADMIN_USERNAME": "root"},
		"empty db path":   {"DB_PATH": ""},
		"empty http port": {"PORT": ""},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			cfg, err := Load()
			assert.Nil(t, cfg)
			assert.Error(t, err)
		})
	}
}
