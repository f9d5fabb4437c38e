package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LungheSam/FareFlow-Server/internal/api"
	"github.com/LungheSam/FareFlow-Server/internal/busstate"
	"github.com/LungheSam/FareFlow-Server/internal/config"
	"github.com/LungheSam/FareFlow-Server/internal/logging"
	"github.com/LungheSam/FareFlow-Server/internal/notify"
	"github.com/LungheSam/FareFlow-Server/internal/service"
	"github.com/LungheSam/FareFlow-Server/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("config load failed")
	}
	logging.Init(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.New(ctx, cfg.Database.Source)
	if err != nil {
		logging.Fatal().Err(err).Msg("database connection failed")
	}
	defer st.Close()

	bs, err := busstate.Open(cfg.BusState.Path)
	if err != nil {
		logging.Fatal().Err(err).Msg("busstate store open failed")
	}
	defer bs.Close()

	// Requeue notifications a previous instance claimed but never acked.
	if n, err := st.ResetStale(ctx); err != nil {
		logging.Fatal().Err(err).Msg("outbox recovery failed")
	} else if n > 0 {
		logging.Warn().Int64("requeued", n).Msg("recovered stale outbox rows")
	}

	sms := notify.WithBreaker(notify.NewSMSClient(cfg.SMS))
	email := notify.WithBreaker(notify.NewEmailClient(cfg.Email))
	dispatcher := notify.NewDispatcher(st, cfg.Outbox, sms, email)
	go dispatcher.Run(ctx)

	svc := service.NewFareService(st, st, bs, st, cfg.Fare)
	handler := api.NewHandler(svc)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      api.NewRouter(handler),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	go func() {
		logging.Info().Str("port", cfg.Server.Port).Str("environment", cfg.Server.Environment).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logging.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("server shutdown failed")
	}
	// One final drain so committed notification intents are not left for the
	// next boot when the gateways are healthy.
	if err := dispatcher.Drain(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("final outbox drain failed")
	}
}
