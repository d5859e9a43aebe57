// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Command audiopolicyd runs the audio stream usage-policy daemon:
// original_source's AudioAdmin/IdlePolicy/PolicyLoader reimagined as a
// standalone Go service fronted by an HTTP admin API.
//
// # Application architecture
//
// main wires components in the same order as the teacher's cmd/server:
//
//  1. Configuration: three-layer koanf load (defaults, optional YAML
//     file, environment), then Validate.
//  2. Logging: zerolog initialized from config, bridged to slog for
//     sutureslog.
//  3. Policy store: the admin engine owns the live *policy.Store; the
//     policy.Locator never touches it directly, instead posting every
//     load/reload through the dispatcher (policy.Installer), same as the
//     HTTP reload endpoint.
//  4. Admin engine: the interaction matrix, registry, and log-only
//     collaborators, fronted by a single-goroutine Dispatcher.
//  5. Event bus: in-process gochannel pub/sub, optionally mirrored to
//     NATS.
//  6. Subscribers: Prometheus metrics and the Badger-backed audit log.
//  7. HTTP admin API: JWT + Casbin RBAC over policy/state/audit routes.
//  8. Supervisor tree: every long-running piece above runs under one
//     suture tree, split into an engine layer and an API layer.
//
// # Signal handling
//
// SIGINT and SIGTERM trigger a graceful shutdown: the root context is
// canceled, every supervised service gets ShutdownTimeout to stop, and
// any service that misses that deadline is reported before exit.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/audiopolicyd/internal/admin"
	"github.com/tomtom215/audiopolicyd/internal/audit"
	"github.com/tomtom215/audiopolicyd/internal/config"
	"github.com/tomtom215/audiopolicyd/internal/httpapi"
	"github.com/tomtom215/audiopolicyd/internal/httpapi/authz"
	"github.com/tomtom215/audiopolicyd/internal/idle"
	"github.com/tomtom215/audiopolicyd/internal/logging"
	"github.com/tomtom215/audiopolicyd/internal/metrics"
	"github.com/tomtom215/audiopolicyd/internal/natsbridge"
	"github.com/tomtom215/audiopolicyd/internal/policy"
	"github.com/tomtom215/audiopolicyd/internal/registry"
	"github.com/tomtom215/audiopolicyd/internal/supervisor"
)

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Error().Err(err).Msg("failed to load configuration")
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logging.Error().Err(err).Msg("invalid configuration")
		os.Exit(1)
	}

	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	log := logging.WithComponent("main")
	log.Info().Msg("audiopolicyd starting")

	store := policy.NewStore()

	bus := admin.NewEventBus()
	var natsPub *natsbridge.Publisher
	if cfg.NATSEnabled() {
		natsPub, err = natsbridge.New(natsbridge.Config{URL: cfg.NATS.URL})
		if err != nil {
			log.Error().Err(err).Msg("failed to connect NATS mirror")
			os.Exit(1)
		}
		breaker := admin.NewCircuitBreaker("nats-mirror", cfg.NATS.BreakerFailures, cfg.NATS.BreakerOpenDuration)
		bus = bus.WithNATSBridge(natsPub.Publisher(), breaker)
		log.Info().Str("url", cfg.NATS.URL).Msg("NATS mirror enabled")
	}

	idlePolicy := idle.NewPolicy()

	engine := admin.NewEngine(admin.Config{
		Store:    store,
		Active:   registry.New(),
		Gain:     cfg.ResolvedGain(),
		Volume:   admin.LogVolumeSink{},
		Actions:  admin.LogPolicyActionReporter{},
		Activity: admin.LogActivityDispatcher{},
		Counts:   idlePolicy,
		Bus:      bus,
	})
	dispatcher := admin.NewDispatcher(engine)

	// Locator installs through dispatcher, not directly into store, so a
	// filesystem-triggered reload goes through the same single-dispatcher
	// recompute every other policy mutation does (admin.Dispatcher
	// satisfies policy.Installer).
	locator := policy.NewLocator(dispatcher, cfg.Policy.SearchPaths, logging.Logger())

	metricsSubscriber := metrics.NewSubscriber(bus)

	var auditStore *audit.Store
	var auditSubscriber *audit.Subscriber
	if cfg.Audit.Enabled {
		auditStore, err = audit.Open(cfg.Audit.Dir)
		if err != nil {
			log.Error().Err(err).Msg("failed to open audit store")
			os.Exit(1)
		}
		auditSubscriber = audit.NewSubscriber(bus, auditStore)
	}

	enforcer, err := authz.NewEnforcer(cfg.Auth.CasbinModelPath, cfg.Auth.CasbinPolicyPath)
	if err != nil {
		log.Error().Err(err).Msg("failed to load Casbin RBAC model/policy")
		os.Exit(1)
	}
	tokens, err := httpapi.NewTokenManager(cfg.Auth.JWTSecret, 24*time.Hour)
	if err != nil {
		log.Error().Err(err).Msg("failed to build JWT token manager")
		os.Exit(1)
	}

	server := httpapi.NewServer(httpapi.Config{
		ListenAddr:      cfg.HTTP.ListenAddr,
		CORSOrigins:     cfg.HTTP.CORSOrigins,
		RateLimitPerMin: cfg.HTTP.RateLimitPerMinute,
		Dispatcher:      dispatcher,
		Bus:             bus,
		Tokens:          tokens,
		Enforcer:        enforcer,
		AuditStore:      auditStore,
	})

	tree := supervisor.New(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddEngineService(dispatcher)
	tree.AddEngineService(idlePolicy)
	tree.AddEngineService(metricsSubscriber)
	if auditSubscriber != nil {
		tree.AddEngineService(auditSubscriber)
	}
	if natsPub != nil {
		tree.AddEngineService(natsPub)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	log.Info().Msg("starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	// The dispatcher's Serve loop is now running, so Locator can post its
	// initial load through it; only once that completes does the locator
	// start watching for hot reloads and the HTTP admin API start
	// accepting connections.
	if n, err := locator.LoadOnce(); err != nil {
		log.Error().Err(err).Msg("failed to load initial policy document")
		os.Exit(1)
	} else {
		log.Info().Int("rules", n).Msg("initial policy document loaded")
	}
	tree.AddEngineService(locator)
	tree.AddAPIService(server)

	select {
	case <-ctx.Done():
		log.Info().Msg("context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("supervisor shutdown error")
		}
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		log.Warn().Int("count", len(unstopped)).Msg("services failed to stop within timeout")
		for _, svc := range unstopped {
			log.Warn().Str("service", svc.Name).Msg("service failed to stop")
		}
	}

	log.Info().Msg("audiopolicyd stopped gracefully")
}
