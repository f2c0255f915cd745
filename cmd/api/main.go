package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcclellann/microfin/pkg/auth"
	"github.com/mcclellann/microfin/pkg/config"
	"github.com/mcclellann/microfin/pkg/metrics"
	"github.com/mcclellann/microfin/pkg/reminder"
	"github.com/mcclellann/microfin/pkg/store"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	log.SetLevel(cfg.LogLevel)

	// Initialize SQLite Store
	sqliteStore, err := store.NewSQLiteStore(cfg.DBPath, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize SQLite store")
	}
	defer sqliteStore.Close()

	tokens, err := auth.NewJWTService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize token service")
	}

	m := metrics.New()
	server := NewServer(sqliteStore, tokens, log, m)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.AdminUsername != "" {
		if err := server.auth.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
			log.WithError(err).Fatal("Failed to bootstrap admin")
		}
	}

	// Payment reminders run on a cron schedule.
	var sender reminder.Sender = reminder.LogSender{Log: log}
	if cfg.SMTPEnabled() {
		sender = reminder.NewSMTPSender(reminder.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SenderEmail,
		})
	} else {
		log.Warn("SMTP not configured, reminders will only be logged")
	}
	job := reminder.NewJob(sqliteStore, sender, cfg.ReminderLeadDays, log, m)
	c := cron.New()
	if _, err := job.Schedule(c, cfg.ReminderSchedule); err != nil {
		log.WithError(err).Fatal("Failed to schedule reminders")
	}
	c.Start()
	defer func() { <-c.Stop().Done() }()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
}
