// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package httpapi exposes the local admin HTTP surface SPEC_FULL.md §8
// adds on top of original_source's FIDL-only AudioAdmin: policy
// mutation/query, activity/gain introspection, a websocket live feed, and
// a Prometheus /metrics endpoint, guarded by Casbin RBAC over a bearer
// token's role claim.
package httpapi

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/audiopolicyd/internal/admin"
	"github.com/tomtom215/audiopolicyd/internal/audit"
	"github.com/tomtom215/audiopolicyd/internal/httpapi/authz"
	"github.com/tomtom215/audiopolicyd/internal/logging"
)

// Config gathers Server's dependencies and tunables.
type Config struct {
	ListenAddr        string
	CORSOrigins       []string
	RateLimitPerMin   int
	Dispatcher        *admin.Dispatcher
	Bus               *admin.EventBus
	Tokens            *TokenManager
	Enforcer          *authz.Enforcer
	ReadHeaderTimeout time.Duration
	AuditStore        *audit.Store // optional; audit routes are omitted if nil
}

// Server is the admin HTTP API, wrapping a chi router and a stdlib
// http.Server so it can be supervised as a suture.Service.
type Server struct {
	cfg        Config
	dispatcher *admin.Dispatcher
	bus        *admin.EventBus
	tokens     *TokenManager
	enforcer   *authz.Enforcer
	auditStore *audit.Store

	httpServer *http.Server
}

// NewServer builds a Server ready to Serve. Panics if a required
// collaborator is nil, matching admin.Engine's construction-time
// misconfiguration-is-a-programmer-error convention.
func NewServer(cfg Config) *Server {
	switch {
	case cfg.Dispatcher == nil:
		panic("httpapi: Config.Dispatcher is required")
	case cfg.Bus == nil:
		panic("httpapi: Config.Bus is required")
	case cfg.Tokens == nil:
		panic("httpapi: Config.Tokens is required")
	case cfg.Enforcer == nil:
		panic("httpapi: Config.Enforcer is required")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 5 * time.Second
	}

	s := &Server{
		cfg:        cfg,
		dispatcher: cfg.Dispatcher,
		bus:        cfg.Bus,
		tokens:     cfg.Tokens,
		enforcer:   cfg.Enforcer,
		auditStore: cfg.AuditStore,
	}
	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.router(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
	return s
}

// String implements fmt.Stringer for suture's logging.
func (s *Server) String() string { return "httpapi.server" }

// Serve implements suture.Service: it listens on cfg.ListenAddr and runs
// until ctx is cancelled, then gracefully shuts down.
func (s *Server) Serve(ctx context.Context) error {
	log := logging.WithComponent("httpapi.server")

	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.ListenAddr).Msg("http server started")
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Info().Msg("http server stopping")
		_ = s.httpServer.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogging)
	r.Use(metricsMiddleware)
	r.Use(corsMiddleware(s.cfg.CORSOrigins))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.authenticate)

		r.With(s.authorize(authz.ObjectActivity, authz.ActionRead)).
			Get("/state/activity", s.handleActivity)
		r.With(s.authorize(authz.ObjectPolicy, authz.ActionRead)).
			Get("/state/usage", s.handleUsageState)
		r.With(s.authorize(authz.ObjectStream, authz.ActionRead)).
			Get("/stream", s.handleStream)

		r.Route("/policy", func(r chi.Router) {
			r.Use(s.authorize(authz.ObjectPolicy, authz.ActionWrite))
			r.Post("/interactions", s.handleSetInteraction)
			r.Post("/reset", s.handleResetInteractions)
			r.With(rateLimit(s.cfg.RateLimitPerMin)).Post("/reload", s.handleReloadPolicy)
		})

		if s.auditStore != nil {
			r.With(s.authorize(authz.ObjectAudit, authz.ActionRead)).
				Get("/audit/entries", s.handleAuditEntries)
		}
	})

	return r
}
