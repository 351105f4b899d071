package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"sheetdrip/internal/api"
	"sheetdrip/internal/app"
	"sheetdrip/internal/config"
	"sheetdrip/internal/handlers/shell"
	"sheetdrip/internal/handlers/webhook"
	"sheetdrip/internal/metrics"
	"sheetdrip/internal/queue"
	"sheetdrip/internal/scheduler"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler and its HTTP control API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "HTTP bind address (overrides server.addr)")
}

func newSubmitter(cfg config.DeliveryConfig) scheduler.Submitter {
	if cfg.Driver == "shell" {
		return shell.Shell{Command: cfg.Command, Args: cfg.Args}
	}
	return webhook.New(cfg.Timeout, webhook.WithRateLimit(cfg.MaxPerMinute))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	setupLogger(cfg.Logging)

	repo, err := queue.Open(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("open storage")
	}
	defer repo.Close()

	m := metrics.New()
	a, err := app.New(context.Background(), repo, newSubmitter(cfg.Delivery), cfg.Automator, app.Options{
		Metrics:       m,
		EventCapacity: cfg.Events.Capacity,
		AutoStartCron: cfg.AutoStart.Cron,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("init automator")
	}
	a.Run()

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: api.NewServerWithDebug(a, m, cfg.Server.Debug)}
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	log.Info().Msg("shutting down")
	ctxTimeout, cancelTimeout := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelTimeout()
	_ = srv.Shutdown(ctxTimeout)
	if err := a.Shutdown(ctxTimeout); err != nil {
		log.Warn().Err(err).Msg("in-flight batch did not finish before shutdown")
	}
	return nil
}
