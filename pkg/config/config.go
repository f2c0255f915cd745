package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Config holds application configuration
type Config struct {
	Port     string
	DBPath   string
	LogLevel logrus.Level

	JWTSecret string
	TokenTTL  time.Duration

	// Bootstrap admin, created on start when both are set and the
	// username is not taken yet.
	AdminUsername string
	AdminPassword string

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SenderEmail  string

	ReminderSchedule string
	ReminderLeadDays int
}

// SMTPEnabled reports whether reminders can go out by email.
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != "" && c.SenderEmail != ""
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var errs []error

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		DBPath:           getEnv("DB_PATH", "microfin.db"),
		JWTSecret:        getEnv("JWT_SECRET", "change-me-in-production"),
		AdminUsername:    getEnv("ADMIN_USERNAME", ""),
		AdminPassword:    getEnv("ADMIN_PASSWORD", ""),
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         getEnv("SMTP_PORT", "587"),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		SenderEmail:      getEnv("SENDER_EMAIL", ""),
		ReminderSchedule: getEnv("REMINDER_SCHEDULE", "@daily"),
	}

	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	cfg.LogLevel = level

	if cfg.TokenTTL, err = getEnvDuration("TOKEN_TTL", 24*time.Hour); err != nil {
		errs = append(errs, err)
	}
	if cfg.ReminderLeadDays, err = getEnvInt("REMINDER_LEAD_DAYS", 3); err != nil {
		errs = append(errs, err)
	}

	if cfg.Port == "" {
		errs = append(errs, errors.New("PORT is required"))
	}
	if cfg.DBPath == "" {
		errs = append(errs, errors.New("DB_PATH is required"))
	}
	if cfg.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if cfg.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if cfg.ReminderLeadDays < 0 {
		errs = append(errs, errors.New("REMINDER_LEAD_DAYS must not be negative"))
	}
	if (cfg.AdminUsername == "") != (cfg.AdminPassword == "") {
		errs = append(errs, errors.New("ADMIN_USERNAME and ADMIN_PASSWORD must be set together"))
	}
	if cfg.ReminderSchedule != "" {
		if _, err := cron.ParseStandard(cfg.ReminderSchedule); err != nil {
			errs = append(errs, fmt.Errorf("REMINDER_SCHEDULE: %w", err))
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultVal, fmt.Errorf("%s: %q is not an integer", key, value)
	}
	return n, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultVal, fmt.Errorf("%s: %q is not a duration", key, value)
	}
	return d, nil
}
