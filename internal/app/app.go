package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"ticketdesk-go/internal/attach"
	"ticketdesk-go/internal/config"
	"ticketdesk-go/internal/db"
	"ticketdesk-go/internal/handlers"
	"ticketdesk-go/internal/instagram"
	"ticketdesk-go/internal/mailbox"
	"ticketdesk-go/internal/mailer"
	"ticketdesk-go/internal/metrics"
	"ticketdesk-go/internal/normalize"
	"ticketdesk-go/internal/pipeline"
	"ticketdesk-go/internal/repository"
	"ticketdesk-go/internal/scheduler"
	"ticketdesk-go/internal/server"
	"ticketdesk-go/internal/tagger"
)

// Run initializes and starts the application
func Run() error {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	logrus.Info("Starting Ticketdesk Service")

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	dbConn, err := db.Init(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	m := metrics.NewMetrics()
	repo := repository.New(dbConn)

	var source mailbox.Source
	if cfg.Mailbox.UseIMAP {
		source = mailbox.NewIMAPSource(&cfg.Mailbox)
		logrus.Info("Using IMAP mailbox source")
	} else {
		source, err = mailbox.NewGmailSource(&cfg.Mailbox)
		if err != nil {
			return fmt.Errorf("failed to create Gmail source: %w", err)
		}
		logrus.Info("Using Gmail API mailbox source")
	}

	attachments, err := attach.NewDiskStore(cfg.Ingest.AttachmentDir)
	if err != nil {
		return fmt.Errorf("failed to initialize attachment store: %w", err)
	}

	norm := normalize.New(cfg.Ingest.ReplyPrefixes, cfg.Ingest.RelayDomains)
	tg := tagger.New(nil, nil, nil)
	sender := mailer.NewSMTPSender(&cfg.SMTP)

	p := pipeline.New(repo, norm, tg, sender, attachments, m, cfg.SMTP.From)

	lookback := time.Duration(cfg.Ingest.LookbackHours) * time.Hour
	sched := scheduler.New(&cfg.Scheduler, lookback, source, p, m)

	var igClient *instagram.Client
	if cfg.Instagram.Enabled {
		igClient = instagram.NewClient(cfg.Instagram)
	}

	h := handlers.NewHandlers(dbConn, repo, p, sched, igClient, cfg.Instagram)
	router := server.SetupRouter(h)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sched.Stop(); err != nil {
		logrus.Errorf("Failed to stop scheduler: %v", err)
	}
	sched.Wait()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	if err := source.Close(); err != nil {
		logrus.Errorf("Failed to close mailbox source: %v", err)
	}

	logrus.Info("Server stopped gracefully")
	return nil
}
