package app

import (
	"context"
	"time"

	"github.com/ggrandes/jupdate53/internal/admission"
	"github.com/ggrandes/jupdate53/internal/config"
	"github.com/ggrandes/jupdate53/internal/domain"
	"github.com/ggrandes/jupdate53/internal/metrics"
	"github.com/ggrandes/jupdate53/internal/transport/grpc"
	httpgw "github.com/ggrandes/jupdate53/internal/transport/http"
	"github.com/ggrandes/jupdate53/internal/updater"
	"github.com/ggrandes/jupdate53/internal/whitelist"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func Run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	m := metrics.New(prometheus.DefaultRegisterer)

	wl, err := whitelist.Load(cfg.WhitelistPath, log.With().Str("component", "whitelist").Logger())
	if err != nil {
		// Keep serving: every update is rejected and readiness reports it.
		log.Error().Err(err).Str("path", cfg.WhitelistPath).Msg("whitelist not loaded, running with an empty one")
		wl = domain.Whitelist{}
	}
	ready := len(wl) > 0

	gate := admission.NewGate(wl, admission.WithFreshWindow(cfg.FreshWindow))

	client, err := updater.NewRoute53Client(updater.Route53Config{
		Region:            cfg.AWSRegion,
		RequestsPerSecond: cfg.ProviderRPS,
	}, log.With().Str("component", "route53").Logger(), updater.WithRequestRecorder(m.ObserveProviderRequest))
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Error().Err(err).Msg("closing route53 client")
		}
	}()

	upd := updater.New(client, log.With().Str("component", "updater").Logger(),
		updater.WithWaitBudget(cfg.WaitBudget),
		updater.WithObserver(func(status domain.ChangeStatus, waited time.Duration) {
			m.ObserveConvergence(string(status), waited)
		}),
	)

	httpLog := log.With().Str("component", "http").Logger()
	handler := httpgw.NewHandler(gate, upd, cfg.WaitForSync, m, httpLog)
	mux, err := httpgw.NewMux(handler, func() bool { return ready })
	if err != nil {
		return err
	}

	hs := grpc.NewHealthServer(ready)

	log.Info().
		Int("whitelist_entries", len(wl)).
		Bool("wait_for_sync", cfg.WaitForSync).
		Dur("fresh_window", gate.FreshWindow()).
		Msg("starting")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return gate.RunSweeper(ctx, cfg.SweepInterval, cfg.ThrottleRetention,
			log.With().Str("component", "admission").Logger(), m.SetThrottleEntries)
	})

	g.Go(func() error {
		return grpc.RunGRPCServer(ctx, cfg.GRPCAddr, hs, log.With().Str("component", "grpc").Logger())
	})

	g.Go(func() error {
		return httpgw.RunHTTPServer(ctx, cfg.HTTPAddr, mux, cfg.WaitBudget, httpLog)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("servers stopped with error")
		return err
	}

	log.Info().Msg("servers stopped gracefully")
	return nil
}
