// Package app wires the job-execution engine and its ambient collaborators
// (config, logging, discovery) into a runnable HTTP front-end.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/arcmirror/arcproxy/internal/adapter/cachefile"
	"github.com/arcmirror/arcproxy/internal/adapter/channelpool"
	"github.com/arcmirror/arcproxy/internal/adapter/discovery"
	registryadapter "github.com/arcmirror/arcproxy/internal/adapter/registry"
	"github.com/arcmirror/arcproxy/internal/adapter/scheduler"
	"github.com/arcmirror/arcproxy/internal/adapter/transport"
	"github.com/arcmirror/arcproxy/internal/config"
	"github.com/arcmirror/arcproxy/internal/core/domain"
	"github.com/arcmirror/arcproxy/internal/core/ports"
	"github.com/arcmirror/arcproxy/internal/logger"
	"github.com/arcmirror/arcproxy/internal/router"
	"github.com/arcmirror/arcproxy/internal/util"
)

// Application wires the engine and front-end together and owns their
// lifecycle.
type Application struct {
	config    *config.Config
	server    *http.Server
	logger    *logger.StyledLogger
	registry  *router.RouteRegistry
	engine    ports.Engine
	providers ports.ProviderRegistry
	refresher *discovery.Refresher
	startTime time.Time
	errCh     chan error

	trustProxyHeaders bool
	trustedCIDRs      []*net.IPNet
}

// New constructs an Application from cfg, wiring the provider registry,
// channel pool, cache-file registry and scheduler into a single Engine.
func New(cfg *config.Config, startTime time.Time, styled *logger.StyledLogger) (*Application, error) {
	trustedCIDRs, err := util.ParseTrustedCIDRs(cfg.Server.TrustedCIDRs)
	if err != nil {
		return nil, fmt.Errorf("parse trusted CIDRs: %w", err)
	}

	providerRegistry := registryadapter.New(toDomainProviders(cfg.Discovery.Static.Providers))

	source := discovery.NewStaticSource(toDomainProviders(cfg.Discovery.Static.Providers))
	refresher := discovery.NewRefresher(source, providerRegistry, cfg.Discovery.RefreshInterval, styled.Underlying())

	files := cachefile.NewRegistry(cfg.Engine.CacheRoot)
	factory := transport.NewHTTPHandleFactory()
	pool, err := channelpool.NewPool(factory, files, cfg.Engine.ChannelPoolCapacity)
	if err != nil {
		return nil, fmt.Errorf("create channel pool: %w", err)
	}

	engine := scheduler.New(providerRegistry, pool, files, styled.Underlying(), cfg.Engine.LowSpeedFloorBytesPerSec, cfg.Engine.LowSpeedFloorDuration)

	registry := router.NewRouteRegistry(styled)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Application{
		config:    cfg,
		server:    server,
		logger:    styled,
		registry:  registry,
		engine:    engine,
		providers: providerRegistry,
		refresher: refresher,
		startTime: startTime,
		errCh:     make(chan error, 1),

		trustProxyHeaders: cfg.Server.TrustProxyHeaders,
		trustedCIDRs:      trustedCIDRs,
	}, nil
}

// Start starts the HTTP front-end and the provider-discovery refresher.
func (a *Application) Start(ctx context.Context) error {
	go func() {
		select {
		case err := <-a.errCh:
			a.logger.Error("server startup error", "error", err)
		case <-ctx.Done():
			return
		}
	}()

	a.startWebServer()

	if err := a.refresher.Start(ctx); err != nil {
		a.logger.Error("provider discovery startup error", "error", err)
		a.errCh <- err
	}

	a.logger.Info("arcproxy started", "bind", a.server.Addr)
	return nil
}

// Stop shuts down the HTTP front-end within the configured grace period.
func (a *Application) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}
	return nil
}

func (a *Application) registerRoutes() {
	a.registry.RegisterWithMethod(a.config.Server.FetchPrefix, a.fetchHandler, "Package fetch endpoint (cache-or-stream)", "GET")
	a.registry.Register("/stats", a.statsHandler, "Engine activity counters")
	a.registry.Register("/healthz", a.healthHandler, "Liveness and provider-registry readiness")
}

func (a *Application) startWebServer() {
	a.logger.Info("starting web server", "host", a.config.Server.Host, "port", a.config.Server.Port)

	mux := http.NewServeMux()
	a.registerRoutes()
	a.registry.WireUp(mux)
	a.server.Handler = mux

	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server error", "error", err)
			a.errCh <- err
		}
	}()

	a.logger.Info("started web server", "bind", a.server.Addr)
}

func toDomainProviders(cfgs []config.ProviderConfig) []domain.Provider {
	out := make([]domain.Provider, 0, len(cfgs))
	for _, c := range cfgs {
		out = append(out, domain.Provider{
			Name:    c.Name,
			BaseURI: util.NormaliseBaseURL(c.BaseURI),
			Country: c.Country,
			Score:   domain.NewScore(c.NameLookupTime, c.ConnectTime),
		})
	}
	return out
}
