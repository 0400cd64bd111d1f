package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"label-ecg/internal/account"
	"label-ecg/internal/analysis"
	"label-ecg/internal/annotation"
	"label-ecg/internal/config"
	"label-ecg/internal/dataset"
	"label-ecg/internal/logging"
	"label-ecg/internal/metrics"
	"label-ecg/internal/report"
	"label-ecg/internal/server"
	"label-ecg/internal/workspace"
)

func serveCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the annotation web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.v.BindPFlag("server.port", cmd.Flags().Lookup("port")); err != nil {
				return err
			}
			if err := a.v.BindPFlag("logging.level", cmd.Flags().Lookup("log-level")); err != nil {
				return err
			}

			cfg, err := config.Load(a.v)
			if err != nil {
				return err
			}
			log, level, err := logging.New(cfg.Logging)
			if err != nil {
				return err
			}
			defer log.Sync()

			config.Watch(a.v, log, func(next *config.Config) {
				if err := logging.SetLevel(level, next.Logging.Level); err != nil {
					log.Error("Ignoring invalid log level", zap.String("level", next.Logging.Level), zap.Error(err))
					return
				}
				log.Info("Log level updated", zap.String("level", next.Logging.Level))
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			handler, err := buildHandler(ctx, cfg, log, prometheus.NewRegistry())
			if err != nil {
				return err
			}
			return server.Run(ctx, ":"+cfg.Server.Port, handler, log)
		},
	}
	cmd.Flags().String("port", "8080", "HTTP listen port")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}

// buildHandler seeds the in-memory data and wires services into the router.
func buildHandler(ctx context.Context, cfg *config.Config, log *zap.Logger, reg *prometheus.Registry) (http.Handler, error) {
	datasets, err := dataset.Seed(ctx, dataset.NewGenerator(nil, cfg.Data.SamplesPerLead), analysis.NewCannedClient())
	if err != nil {
		return nil, fmt.Errorf("seed datasets: %w", err)
	}
	datasetRepo := dataset.NewRepository(datasets)
	annotationRepo := annotation.NewRepository()
	accounts := account.NewService(account.NewRepository(account.SeedUsers()), account.NewRegistrar(), log)
	states := workspace.NewStateStore(cfg.Server.SessionTTL)

	var opts []workspace.Option
	var gatherer prometheus.Gatherer
	if cfg.Metrics.Enabled {
		m, err := metrics.New(reg)
		if err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		if err := metrics.RegisterSessionGauge(reg, states.Len); err != nil {
			return nil, fmt.Errorf("register session gauge: %w", err)
		}
		opts = append(opts, workspace.WithMetrics(m))
		gatherer = reg
	}

	svc := workspace.NewService(states, accounts, datasetRepo, dataset.NewUploader(), annotationRepo, log, opts...)
	reports := report.NewService(datasetRepo, annotationRepo, cfg.Report.FontPaths, log)

	h, err := workspace.NewHandler(svc, newSessionStore(cfg.Server, log), cfg.Server.CookieName, reports, log)
	if err != nil {
		return nil, err
	}

	log.Info("Seeded sample data",
		zap.Int("datasets", len(datasets)),
		zap.Int("samples_per_lead", cfg.Data.SamplesPerLead))
	return server.NewRouter(cfg, log, h, gatherer), nil
}

func newSessionStore(cfg config.ServerConfig, log *zap.Logger) *sessions.CookieStore {
	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		log.Warn("server.session_secret is empty, sessions will not survive a restart")
		secret = securecookie.GenerateRandomKey(32)
	}
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 30,
		HttpOnly: true,
		Secure:   cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
	if cfg.SessionTTL > 0 {
		store.Options.MaxAge = int(cfg.SessionTTL.Seconds())
	}
	return store
}
