// Command eduauth runs the identity service: HTTP API in front of the
// auth engine, PostgreSQL for accounts and revocations, Redis for
// counters and pending registrations.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/redis/go-redis/v9"

	"github.com/aimlabs/eduauth"
	"github.com/aimlabs/eduauth/httpapi"
	"github.com/aimlabs/eduauth/internal/audit"
	"github.com/aimlabs/eduauth/internal/googleid"
	"github.com/aimlabs/eduauth/internal/notify"
	"github.com/aimlabs/eduauth/internal/otp"
	"github.com/aimlabs/eduauth/internal/store/postgres"
)

type appConfig struct {
	HTTPAddr      string        `env:"HTTP_ADDR" envDefault:":8080"`
	DatabaseDSN   string        `env:"DATABASE_DSN,required"`
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD,unset"`
	LogLevel      slog.Level    `env:"LOG_LEVEL" envDefault:"info"`
	PurgeInterval time.Duration `env:"REVOCATION_PURGE_INTERVAL" envDefault:"1h"`

	Engine eduauth.Config

	Twilio struct {
		AccountSID string `env:"ACCOUNT_SID"`
		AuthToken  string `env:"AUTH_TOKEN,unset"`
		ServiceSID string `env:"VERIFY_SID"`
	} `envPrefix:"TWILIO_"`

	SendGrid struct {
		APIKey      string `env:"API_KEY,unset"`
		FromEmail   string `env:"FROM_EMAIL"`
		FromName    string `env:"FROM_NAME" envDefault:"EduAuth"`
		FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
	} `envPrefix:"SENDGRID_"`

	GoogleClientID string `env:"GOOGLE_CLIENT_ID"`
}

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := env.ParseAsWithOptions[appConfig](env.Options{Prefix: "EDUAUTH_"})
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return err
	}

	gateway, err := otp.NewTwilio(otp.TwilioConfig{
		AccountSID: cfg.Twilio.AccountSID,
		AuthToken:  cfg.Twilio.AuthToken,
		ServiceSID: cfg.Twilio.ServiceSID,
	})
	if err != nil {
		return err
	}

	var mailer notify.Mailer = notify.NoOp{}
	if cfg.SendGrid.APIKey != "" {
		mailer, err = notify.NewSendGrid(notify.SendGridConfig{
			APIKey:      cfg.SendGrid.APIKey,
			FromEmail:   cfg.SendGrid.FromEmail,
			FromName:    cfg.SendGrid.FromName,
			FrontendURL: cfg.SendGrid.FrontendURL,
		})
		if err != nil {
			return err
		}
	} else {
		logger.Warn("sendgrid not configured, mail delivery disabled")
	}

	var verifier *googleid.Verifier
	if cfg.GoogleClientID != "" {
		verifier, err = googleid.New(cfg.GoogleClientID)
		if err != nil {
			return err
		}
	} else {
		logger.Warn("google client ID not configured, federated login disabled")
	}

	engine, err := eduauth.New(cfg.Engine, eduauth.Deps{
		Redis:       redisClient,
		Users:       db.Users(),
		Revocations: db.Revocations(),
		OTP:         gateway,
		Mailer:      mailer,
		Google:      verifier,
		AuditSink:   audit.NewJSONWriterSink(os.Stdout),
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer engine.Close()

	go purgeLoop(ctx, engine, logger, cfg.PurgeInterval)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.New(engine, redisClient, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// purgeLoop evicts revocation entries whose tokens expired anyway.
func purgeLoop(ctx context.Context, engine *eduauth.Engine, logger *slog.Logger, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := engine.PurgeRevoked(ctx)
			if err != nil {
				logger.Warn("revocation purge failed", "error", err)
				continue
			}
			if removed > 0 {
				logger.Info("revocation list purged", "removed", removed)
			}
		}
	}
}
